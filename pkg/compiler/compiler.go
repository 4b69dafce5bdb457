// Package compiler translates an AST into bytecode chunks. It is a
// single pass: one Chunk per function body, with the top-level program
// treated as an implicit zero-arity function.
package compiler

import (
	"arcane/pkg/ast"
	"arcane/pkg/bytecode"
	arcaneerrors "arcane/pkg/errors"
	"arcane/pkg/value"
)

type local struct {
	name     string
	depth    int
	captured bool
}

type frameKind int

const (
	frameScript frameKind = iota
	frameFunction
)

// frame is one compiler activation: the chunk under construction plus
// the bookkeeping needed to resolve locals and upvalues.
type frame struct {
	enclosing  *frame
	kind       frameKind
	chunk      *bytecode.Chunk
	fn         *value.Function
	locals     []local
	scopeDepth int
	upvalues   []bytecode.UpvalueDescriptor
}

// Compiler holds the frame stack for one compilation.
type Compiler struct {
	cur *frame
}

// New returns a Compiler ready to compile a top-level program.
func New() *Compiler {
	return &Compiler{}
}

// Compile compiles a whole program into its top-level chunk, which the
// VM runs as the implicit <script> function.
func Compile(program []ast.Stmt) (*bytecode.Chunk, error) {
	c := &Compiler{}
	c.pushFrame(frameScript, "<script>", 0)
	for _, stmt := range program {
		if err := c.compileStmt(stmt); err != nil {
			return nil, err
		}
	}
	c.emitDefaultReturn(0)
	chunk := c.cur.chunk
	return chunk, nil
}

func (c *Compiler) pushFrame(kind frameKind, name string, arity int) {
	f := &frame{
		enclosing: c.cur,
		kind:      kind,
		chunk:     &bytecode.Chunk{},
		fn:        &value.Function{Name: name, Arity: arity},
	}
	c.cur = f
}

// popFrame pops the current frame and returns its compiled function and
// the upvalue descriptors the enclosing Closure instruction needs.
func (c *Compiler) popFrame() (*value.Function, []bytecode.UpvalueDescriptor) {
	f := c.cur
	f.fn.Chunk = f.chunk
	f.fn.UpvalueCount = len(f.upvalues)
	c.cur = f.enclosing
	return f.fn, f.upvalues
}

func (c *Compiler) emit(in bytecode.Instruction) int { return c.cur.chunk.Write(in) }

func (c *Compiler) emitOp(op bytecode.OpCode, line int) int {
	return c.emit(bytecode.Instruction{Op: op, Line: line})
}

func (c *Compiler) emitA(op bytecode.OpCode, a, line int) int {
	return c.emit(bytecode.Instruction{Op: op, A: a, Line: line})
}

func (c *Compiler) emitStr(op bytecode.OpCode, s string, line int) int {
	return c.emit(bytecode.Instruction{Op: op, Str: s, Line: line})
}

func (c *Compiler) emitConstant(v value.Value, line int) {
	k := c.cur.chunk.AddConstant(v)
	c.emitA(bytecode.Constant, k, line)
}

func (c *Compiler) emitDefaultReturn(line int) {
	last := len(c.cur.chunk.Code)
	if last > 0 && c.cur.chunk.Code[last-1].Op == bytecode.Return {
		return
	}
	c.emitConstant(value.Nil(), line)
	c.emitOp(bytecode.Return, line)
}

func (c *Compiler) patch(offset int) {
	c.cur.chunk.PatchJump(offset, len(c.cur.chunk.Code))
}

// --- Scopes & locals ---

func (c *Compiler) beginScope() { c.cur.scopeDepth++ }

func (c *Compiler) endScope(line int) {
	c.cur.scopeDepth--
	f := c.cur
	for len(f.locals) > 0 && f.locals[len(f.locals)-1].depth > f.scopeDepth {
		last := f.locals[len(f.locals)-1]
		if last.captured {
			c.emitOp(bytecode.CloseUpvalue, line)
		} else {
			c.emitOp(bytecode.Pop, line)
		}
		f.locals = f.locals[:len(f.locals)-1]
	}
}

func (c *Compiler) declareLocal(name string) {
	c.cur.locals = append(c.cur.locals, local{name: name, depth: c.cur.scopeDepth})
}

// isLocalScope reports whether a declaration at the current frame/depth
// should become a stack local rather than a global. The outermost script
// frame treats depth 0 as global scope; any function frame is never
// global, even at its own depth 0.
func (c *Compiler) isLocalScope() bool {
	return c.cur.kind == frameFunction || c.cur.scopeDepth > 0
}

func resolveLocal(f *frame, name string) int {
	for i := len(f.locals) - 1; i >= 0; i-- {
		if f.locals[i].name == name {
			return i
		}
	}
	return -1
}

func addUpvalue(f *frame, index int, isLocal bool) int {
	for i, d := range f.upvalues {
		if d.Index == index && d.IsLocal == isLocal {
			return i
		}
	}
	f.upvalues = append(f.upvalues, bytecode.UpvalueDescriptor{Index: index, IsLocal: isLocal})
	return len(f.upvalues) - 1
}

func resolveUpvalue(f *frame, name string) int {
	if f.enclosing == nil {
		return -1
	}
	if local := resolveLocal(f.enclosing, name); local != -1 {
		f.enclosing.locals[local].captured = true
		return addUpvalue(f, local, true)
	}
	if up := resolveUpvalue(f.enclosing, name); up != -1 {
		return addUpvalue(f, up, false)
	}
	return -1
}

// --- Statements ---

func (c *Compiler) compileStmt(s ast.Stmt) error {
	switch st := s.(type) {
	case *ast.ExprStmt:
		if err := c.compileExpr(st.Expr); err != nil {
			return err
		}
		c.emitOp(bytecode.Pop, lineOf(st.Expr))
		return nil
	case *ast.PrintStmt:
		if err := c.compileExpr(st.Expr); err != nil {
			return err
		}
		c.emitOp(bytecode.Print, lineOf(st.Expr))
		return nil
	case *ast.VarDecl:
		if err := c.compileExpr(st.Initializer); err != nil {
			return err
		}
		line := lineOf(st.Initializer)
		if c.isLocalScope() {
			c.declareLocal(st.Name)
			return nil
		}
		c.emitStr(bytecode.DefineGlobal, st.Name, line)
		return nil
	case *ast.Block:
		c.beginScope()
		for _, inner := range st.Stmts {
			if err := c.compileStmt(inner); err != nil {
				return err
			}
		}
		c.endScope(0)
		return nil
	case *ast.If:
		return c.compileIf(st)
	case *ast.While:
		return c.compileWhile(st)
	case *ast.FunctionDecl:
		return c.compileFunctionDecl(st)
	case *ast.Return:
		return c.compileReturn(st)
	case *ast.TypeDecl:
		return c.compileTypeDecl(st)
	case *ast.LoadModule:
		line := 0
		c.emit(bytecode.Instruction{Op: bytecode.LoadModule, Str: st.Path, Str2: st.Alias, Line: line})
		if c.isLocalScope() {
			c.declareLocal(st.Alias)
			return nil
		}
		c.emitStr(bytecode.DefineGlobal, st.Alias, line)
		return nil
	case *ast.Provide:
		// `verskaf name` marks a global for module export; the module
		// loader finds it by walking the parsed program's top-level
		// Provide statements, so no instruction is emitted.
		return nil
	default:
		return arcaneerrors.NewRuntime(0, "onbekende stelling tipe")
	}
}

func (c *Compiler) compileIf(st *ast.If) error {
	cond := st.Condition
	if err := c.compileExpr(cond); err != nil {
		return err
	}
	line := lineOf(cond)
	elseJump := c.emitA(bytecode.JumpIfFalse, 0, line)
	c.emitOp(bytecode.Pop, line)
	if err := c.compileStmt(st.Then); err != nil {
		return err
	}
	if st.Else != nil {
		endJump := c.emitA(bytecode.Jump, 0, line)
		c.patch(elseJump)
		c.emitOp(bytecode.Pop, line)
		if err := c.compileStmt(st.Else); err != nil {
			return err
		}
		c.patch(endJump)
	} else {
		c.patch(elseJump)
		c.emitOp(bytecode.Pop, line)
	}
	return nil
}

func (c *Compiler) compileWhile(st *ast.While) error {
	start := len(c.cur.chunk.Code)
	if err := c.compileExpr(st.Condition); err != nil {
		return err
	}
	line := lineOf(st.Condition)
	exitJump := c.emitA(bytecode.JumpIfFalse, 0, line)
	c.emitOp(bytecode.Pop, line)
	if err := c.compileStmt(st.Body); err != nil {
		return err
	}
	c.emitA(bytecode.Jump, start, line)
	c.patch(exitJump)
	c.emitOp(bytecode.Pop, line)
	return nil
}

func (c *Compiler) compileFunctionDecl(st *ast.FunctionDecl) error {
	// The function's own name is visible to itself (and later siblings)
	// as a global/local binding *before* the body compiles, so direct
	// recursion resolves normally through the usual name lookup.
	if c.isLocalScope() {
		c.declareLocal(st.Name)
	}
	if err := c.compileFunctionBody(st.Name, st.Params, st.Body, st.Line); err != nil {
		return err
	}
	if !c.isLocalScope() {
		c.emitStr(bytecode.DefineGlobal, st.Name, st.Line)
	}
	return nil
}

// compileFunctionBody compiles params+body into a fresh frame and emits
// a Closure instruction in the enclosing frame that constructs it.
func (c *Compiler) compileFunctionBody(name string, params []string, body []ast.Stmt, line int) error {
	c.pushFrame(frameFunction, name, len(params))
	for _, p := range params {
		c.declareLocal(p)
	}
	for _, inner := range body {
		if err := c.compileStmt(inner); err != nil {
			return err
		}
	}
	c.emitDefaultReturn(line)
	fn, upvalues := c.popFrame()

	k := c.cur.chunk.AddConstant(value.FunctionVal(fn))
	c.emit(bytecode.Instruction{Op: bytecode.MakeClosure, A: k, Descriptors: upvalues, Line: line})
	return nil
}

func (c *Compiler) compileReturn(st *ast.Return) error {
	if st.Value == nil {
		c.emitConstant(value.Nil(), st.Line)
		c.emitOp(bytecode.Return, st.Line)
		return nil
	}
	// Only a Return inside an actual function body becomes a TailCall;
	// at script scope a returned call compiles to an ordinary Call
	// followed by Return.
	if call, ok := st.Value.(*ast.Call); ok && c.cur.kind == frameFunction {
		if err := c.compileCallArgs(call); err != nil {
			return err
		}
		c.emitA(bytecode.TailCall, len(call.Args), call.Line)
		return nil
	}
	if err := c.compileExpr(st.Value); err != nil {
		return err
	}
	c.emitOp(bytecode.Return, st.Line)
	return nil
}

func (c *Compiler) compileTypeDecl(st *ast.TypeDecl) error {
	for _, ctor := range st.Constructors {
		if ctor.Arity == 0 {
			adt := &value.Adt{TypeName: st.Name, CtorName: ctor.Name}
			c.emitConstant(value.AdtVal(adt), 0)
		} else {
			tc := &value.TypeConstructor{TypeName: st.Name, CtorName: ctor.Name, Arity: ctor.Arity}
			c.emitConstant(value.ConstructorVal(tc), 0)
		}
		if c.isLocalScope() {
			c.declareLocal(ctor.Name)
		} else {
			c.emitStr(bytecode.DefineGlobal, ctor.Name, 0)
		}
	}
	return nil
}

// --- Expressions ---

func (c *Compiler) compileExpr(e ast.Expr) error {
	switch ex := e.(type) {
	case *ast.NumberLit:
		c.emitConstant(value.Number(ex.Value), ex.Line)
		return nil
	case *ast.StringLit:
		c.emitConstant(value.String(ex.Value), ex.Line)
		return nil
	case *ast.BoolLit:
		c.emitConstant(value.Boolean(ex.Value), ex.Line)
		return nil
	case *ast.NilLit:
		c.emitConstant(value.Nil(), ex.Line)
		return nil
	case *ast.Variable:
		return c.compileVariableRead(ex.Name, ex.Line)
	case *ast.Grouping:
		return c.compileExpr(ex.Inner)
	case *ast.Assign:
		if err := c.compileExpr(ex.Value); err != nil {
			return err
		}
		return c.compileVariableWrite(ex.Name, ex.Line)
	case *ast.Unary:
		if err := c.compileExpr(ex.Right); err != nil {
			return err
		}
		switch ex.Op {
		case ast.OpNeg:
			c.emitOp(bytecode.Negate, ex.Line)
		case ast.OpNot:
			c.emitOp(bytecode.Not, ex.Line)
		}
		return nil
	case *ast.Binary:
		return c.compileBinary(ex)
	case *ast.ListLit:
		for _, el := range ex.Elements {
			if err := c.compileExpr(el); err != nil {
				return err
			}
		}
		c.emitA(bytecode.MakeList, len(ex.Elements), ex.Line)
		return nil
	case *ast.Index:
		if err := c.compileExpr(ex.Target); err != nil {
			return err
		}
		if err := c.compileExpr(ex.Index); err != nil {
			return err
		}
		c.emitOp(bytecode.GetIndex, ex.Line)
		return nil
	case *ast.Call:
		if err := c.compileCallArgs(ex); err != nil {
			return err
		}
		c.emitA(bytecode.Call, len(ex.Args), ex.Line)
		return nil
	case *ast.FunctionLit:
		return c.compileFunctionBody(ex.Name, ex.Params, ex.Body, ex.Line)
	case *ast.Match:
		return c.compileMatch(ex)
	case *ast.Member:
		if err := c.compileExpr(ex.Module); err != nil {
			return err
		}
		c.emitStr(bytecode.GetMember, ex.Name, ex.Line)
		return nil
	default:
		return arcaneerrors.NewRuntime(0, "onbekende uitdrukking tipe")
	}
}

func (c *Compiler) compileCallArgs(call *ast.Call) error {
	if err := c.compileExpr(call.Callee); err != nil {
		return err
	}
	for _, arg := range call.Args {
		if err := c.compileExpr(arg); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileBinary(ex *ast.Binary) error {
	switch ex.Op {
	case ast.OpAnd:
		if err := c.compileExpr(ex.Left); err != nil {
			return err
		}
		end := c.emitA(bytecode.JumpIfFalse, 0, ex.Line)
		c.emitOp(bytecode.Pop, ex.Line)
		if err := c.compileExpr(ex.Right); err != nil {
			return err
		}
		c.patch(end)
		return nil
	case ast.OpOr:
		if err := c.compileExpr(ex.Left); err != nil {
			return err
		}
		right := c.emitA(bytecode.JumpIfFalse, 0, ex.Line)
		end := c.emitA(bytecode.Jump, 0, ex.Line)
		c.patch(right)
		c.emitOp(bytecode.Pop, ex.Line)
		if err := c.compileExpr(ex.Right); err != nil {
			return err
		}
		c.patch(end)
		return nil
	}

	if err := c.compileExpr(ex.Left); err != nil {
		return err
	}
	if err := c.compileExpr(ex.Right); err != nil {
		return err
	}
	var op bytecode.OpCode
	switch ex.Op {
	case ast.OpAdd:
		op = bytecode.Add
	case ast.OpSub:
		op = bytecode.Subtract
	case ast.OpMul:
		op = bytecode.Multiply
	case ast.OpDiv:
		op = bytecode.Divide
	case ast.OpMod:
		op = bytecode.Modulo
	case ast.OpEq:
		op = bytecode.Equal
	case ast.OpNeq:
		op = bytecode.NotEqual
	case ast.OpLt:
		op = bytecode.Less
	case ast.OpLte:
		op = bytecode.LessEqual
	case ast.OpGt:
		op = bytecode.Greater
	case ast.OpGte:
		op = bytecode.GreaterEqual
	}
	c.emitOp(op, ex.Line)
	return nil
}

func (c *Compiler) compileVariableRead(name string, line int) error {
	if idx := resolveLocal(c.cur, name); idx != -1 {
		c.emitA(bytecode.GetLocal, idx, line)
		return nil
	}
	if idx := resolveUpvalue(c.cur, name); idx != -1 {
		c.emitA(bytecode.GetUpvalue, idx, line)
		return nil
	}
	c.emitStr(bytecode.GetGlobal, name, line)
	return nil
}

func (c *Compiler) compileVariableWrite(name string, line int) error {
	if idx := resolveLocal(c.cur, name); idx != -1 {
		c.emitA(bytecode.SetLocal, idx, line)
		return nil
	}
	if idx := resolveUpvalue(c.cur, name); idx != -1 {
		c.emitA(bytecode.SetUpvalue, idx, line)
		return nil
	}
	c.emitStr(bytecode.SetGlobal, name, line)
	return nil
}

// compileMatch lowers `pas E geval P1 => B1 geval P2 => B2 ...` per the
// scheme in §4.2. The scrutinee is evaluated once and pinned in a
// single hidden local (sSlot) for the whole match, re-read per arm via
// GetLocal rather than re-duplicated; every pattern test operates on a
// fresh copy of whatever value it is matching against, consuming it by
// either discarding it (wildcard), claiming its slot as a new bound
// local (bind, constructor), or comparing it away (literal). Because
// compiling is a single linear pass, a failing test cleans up exactly
// the locals bound along the unique path that reaches it before
// jumping to the arm's failure label; nothing is batched across
// differently-shaped failure points.
func (c *Compiler) compileMatch(m *ast.Match) error {
	if err := c.compileExpr(m.Scrutinee); err != nil {
		return err
	}
	c.beginScope()
	sSlot := len(c.cur.locals)
	c.declareLocal("")

	var endJumps []int
	for _, arm := range m.Arms {
		base := len(c.cur.locals)
		var armFails []int
		c.emitA(bytecode.GetLocal, sSlot, m.Line)
		if err := c.compilePatternTest(arm.Pattern, base, &armFails, m.Line); err != nil {
			return err
		}
		if err := c.compileExpr(arm.Body); err != nil {
			return err
		}
		c.collapseTo(sSlot, m.Line)
		endJumps = append(endJumps, c.emitA(bytecode.Jump, 0, m.Line))

		for _, j := range armFails {
			c.patch(j)
		}
		// Every failure path above already popped itself back down to
		// base at runtime; reset the compile-time view to match before
		// compiling whatever reaches here next (the next arm, or the
		// no-match fallback).
		c.cur.locals = c.cur.locals[:base]
	}
	c.emitConstant(value.Nil(), m.Line)
	c.collapseTo(sSlot, m.Line)
	for _, j := range endJumps {
		c.patch(j)
	}
	c.cur.locals = c.cur.locals[:sSlot]
	c.cur.scopeDepth--
	return nil
}

// collapseTo overwrites the local at targetSlot with whatever is
// currently on top of the stack (SetLocal leaves that value on the
// stack) and pops every slot above it, landing with just that value on
// top at depth targetSlot+1.
func (c *Compiler) collapseTo(targetSlot, line int) {
	extra := len(c.cur.locals) - targetSlot
	c.emitA(bytecode.SetLocal, targetSlot, line)
	for i := 0; i < extra; i++ {
		c.emitOp(bytecode.Pop, line)
	}
}

// emitCleanupFrom pops (or closes) whatever locals have been bound at
// or above base along the path reaching this point, without mutating
// the frame's locals table — the caller is emitting a failure branch
// that the compile-time bookkeeping must not treat as taken.
func (c *Compiler) emitCleanupFrom(base, line int) {
	f := c.cur
	for i := len(f.locals) - 1; i >= base; i-- {
		if f.locals[i].captured {
			c.emitOp(bytecode.CloseUpvalue, line)
		} else {
			c.emitOp(bytecode.Pop, line)
		}
	}
}

// emitTestBranch consumes a boolean test result left on top of the
// stack by a pattern test (Equal, CheckConstructor). On true it drops
// the boolean and falls through; on false it drops the boolean, cleans
// up whatever this pattern test bound since base, and appends a Jump to
// armFails for the caller to patch at the arm's failure label.
func (c *Compiler) emitTestBranch(base int, armFails *[]int, line int) {
	failJump := c.emitA(bytecode.JumpIfFalse, 0, line)
	c.emitOp(bytecode.Pop, line) // true: discard it, fall through
	skip := c.emitA(bytecode.Jump, 0, line)
	c.patch(failJump)
	c.emitOp(bytecode.Pop, line) // false: discard it before cleanup
	c.emitCleanupFrom(base, line)
	*armFails = append(*armFails, c.emitA(bytecode.Jump, 0, line))
	c.patch(skip)
}

// compilePatternTest compiles pat against the value on top of the
// stack. Wildcard and Bind always match: wildcard discards the value,
// bind claims its slot as a freshly declared local. Literal and
// Constructor can fail, and branch via emitTestBranch into armFails.
func (c *Compiler) compilePatternTest(pat ast.Pattern, base int, armFails *[]int, line int) error {
	switch p := pat.(type) {
	case *ast.WildcardPattern:
		c.emitOp(bytecode.Pop, line)
		return nil
	case *ast.BindPattern:
		c.declareLocal(p.Name)
		return nil
	case *ast.LiteralPattern:
		if err := c.compileExpr(p.Value); err != nil {
			return err
		}
		c.emitOp(bytecode.Equal, line)
		c.emitTestBranch(base, armFails, line)
		return nil
	case *ast.ConstructorPattern:
		return c.compileConstructorPattern(p, base, armFails, line)
	default:
		return arcaneerrors.NewRuntime(line, "onbekende patroon tipe")
	}
}

// compileConstructorPattern claims the already-on-stack tested value as
// a hidden local (adtSlot) first, exactly like a bind pattern, so the
// usual local-cleanup path covers it on failure too. It then tests a
// fresh copy for name/arity and, on success, re-fetches each field from
// adtSlot in turn — GetFieldPop needs its own copy of the ADT per
// field, since an earlier field's bound local now sits above it.
func (c *Compiler) compileConstructorPattern(p *ast.ConstructorPattern, base int, armFails *[]int, line int) error {
	adtSlot := len(c.cur.locals)
	c.declareLocal("")
	c.emitA(bytecode.GetLocal, adtSlot, line)
	c.emit(bytecode.Instruction{Op: bytecode.CheckConstructor, Str: p.Name, A: len(p.Fields), Line: line})
	c.emitTestBranch(base, armFails, line)

	for i, field := range p.Fields {
		c.emitA(bytecode.GetLocal, adtSlot, line)
		c.emitA(bytecode.GetFieldPop, i, line)
		if err := c.compilePatternTest(field, base, armFails, line); err != nil {
			return err
		}
	}
	return nil
}

func lineOf(e ast.Expr) int {
	switch ex := e.(type) {
	case *ast.NumberLit:
		return ex.Line
	case *ast.StringLit:
		return ex.Line
	case *ast.BoolLit:
		return ex.Line
	case *ast.NilLit:
		return ex.Line
	case *ast.Variable:
		return ex.Line
	case *ast.Grouping:
		return ex.Line
	case *ast.Assign:
		return ex.Line
	case *ast.Unary:
		return ex.Line
	case *ast.Binary:
		return ex.Line
	case *ast.ListLit:
		return ex.Line
	case *ast.Index:
		return ex.Line
	case *ast.Call:
		return ex.Line
	case *ast.FunctionLit:
		return ex.Line
	case *ast.Match:
		return ex.Line
	case *ast.Member:
		return ex.Line
	default:
		return 0
	}
}
