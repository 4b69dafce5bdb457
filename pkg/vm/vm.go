// Package vm executes compiled bytecode chunks against a value stack, a
// call-frame stack, a global environment, and an open-upvalue registry.
package vm

import (
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"arcane/pkg/bytecode"
	arcaneerrors "arcane/pkg/errors"
	"arcane/pkg/value"
)

const maxStack = 1 << 16
const maxFrames = 1024

// ModuleLoader resolves a `laai "path" as alias` target and returns the
// Module value to bind. Implemented by pkg/modules; kept as a narrow
// interface here so the VM and the loader can reference each other
// without an import cycle — the loader itself compiles and runs module
// programs in fresh VM instances.
type ModuleLoader interface {
	Load(path string) (value.Value, error)
}

// CallFrame is the VM's record of one function activation: the closure
// being executed, the instruction pointer within its chunk, and the
// stack base at which local slot 0 lies.
type CallFrame struct {
	closure *value.Closure
	ip      int
	base    int
}

type openUpvalue struct {
	idx int
	up  *value.Upvalue
}

// VM is one interpreter instance. The value stack is a fixed-size array
// rather than a growable slice so that open upvalues can hold a stable
// *value.Value pointer into it without risking invalidation by a
// reallocating append — the same reason register-file VMs preallocate.
type VM struct {
	stack  [maxStack]value.Value
	sp     int
	frames []CallFrame

	globals map[string]value.Value
	open    []openUpvalue // sorted ascending by idx

	loader ModuleLoader
	out    io.Writer
}

// New returns a VM with the three native built-ins (§4.6) installed as
// globals, ready to Run a compiled chunk. loader may be nil for a VM
// that never executes a `laai` statement; a `laai` run on such a VM is a
// runtime error.
func New(loader ModuleLoader) *VM {
	vm := &VM{
		globals: make(map[string]value.Value),
		loader:  loader,
		out:     os.Stdout,
	}
	vm.installNatives()
	return vm
}

// Globals exposes the VM's global environment. The module loader reads
// this after running a module program to collect its `verskaf`'d names.
func (vm *VM) Globals() map[string]value.Value { return vm.globals }

// SetLoader attaches or replaces the VM's ModuleLoader after
// construction.
func (vm *VM) SetLoader(loader ModuleLoader) { vm.loader = loader }

// SetOutput redirects `druk` output, used by tests to capture a run's
// printed lines instead of writing to stdout.
func (vm *VM) SetOutput(w io.Writer) { vm.out = w }

func (vm *VM) installNatives() {
	vm.globals["lengte"] = value.NativeVal(&value.NativeFunction{Name: "lengte", Arity: 1, Fn: nativeLengte})
	vm.globals["tipe_van"] = value.NativeVal(&value.NativeFunction{Name: "tipe_van", Arity: 1, Fn: nativeTipeVan})
	vm.globals["klok"] = value.NativeVal(&value.NativeFunction{Name: "klok", Arity: 0, Fn: nativeKlok})
}

func nativeLengte(args []value.Value) (value.Value, error) {
	switch args[0].Type {
	case value.TypeString:
		return value.Number(float64(len(*args[0].Str))), nil
	case value.TypeList:
		return value.Number(float64(len(*args[0].List))), nil
	default:
		return value.Value{}, arcaneerrors.NewRuntime(0, "lengte verwag 'n string of lys, het %s gekry", args[0].TypeName())
	}
}

func nativeTipeVan(args []value.Value) (value.Value, error) {
	return value.String(args[0].TypeName()), nil
}

func nativeKlok(_ []value.Value) (value.Value, error) {
	return value.Number(float64(time.Now().Unix())), nil
}

// Run executes chunk as the implicit top-level `<script>` function and
// returns the value of its top-level `Return` (Nil for a script that
// falls through without an explicit one — the compiler appends a
// default `Nil; Return` unless the chunk already ends in a Return).
func (vm *VM) Run(chunk *bytecode.Chunk) (value.Value, error) {
	fn := &value.Function{Name: "<script>", Chunk: chunk}
	closure := &value.Closure{Fn: fn}
	vm.frames = append(vm.frames, CallFrame{closure: closure, base: 0})
	return vm.run()
}

func (vm *VM) push(v value.Value) { vm.stack[vm.sp] = v; vm.sp++ }

// pop and peek guard against stack underflow rather than letting a
// compiler bug panic with a raw Go index-out-of-range; run recovers the
// panic at the top of the dispatch loop and reports it the normal way.
func (vm *VM) pop() value.Value {
	if vm.sp == 0 {
		panic(arcaneerrors.NewRuntime(0, "Stapel onderloop."))
	}
	vm.sp--
	return vm.stack[vm.sp]
}

func (vm *VM) peek(depth int) value.Value {
	idx := vm.sp - 1 - depth
	if idx < 0 {
		panic(arcaneerrors.NewRuntime(0, "Stapel onderloop."))
	}
	return vm.stack[idx]
}

func constAt(frame *CallFrame, k int) value.Value {
	return frame.closure.Fn.Chunk.Constants[k].(value.Value)
}

// run is the dispatch loop. ip mutations from jumps/calls/returns take
// effect before the next fetch, matching §4.4.
func (vm *VM) run() (result value.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			if re, ok := r.(error); ok {
				result, err = value.Nil(), re
				return
			}
			panic(r)
		}
	}()

	for {
		frame := &vm.frames[len(vm.frames)-1]
		code := frame.closure.Fn.Chunk.Code
		if frame.ip >= len(code) {
			return value.Nil(), arcaneerrors.NewRuntime(0, "chunk het sonder 'n gee-stelling geëindig")
		}
		in := code[frame.ip]
		frame.ip++

		switch in.Op {
		case bytecode.Constant:
			vm.push(constAt(frame, in.A))
		case bytecode.Pop:
			vm.pop()
		case bytecode.Dup:
			vm.push(vm.peek(0))
		case bytecode.DefineGlobal:
			vm.globals[in.Str] = vm.pop()
		case bytecode.GetGlobal:
			v, ok := vm.globals[in.Str]
			if !ok {
				return value.Nil(), arcaneerrors.NewRuntime(in.Line, "Ongedefinieerde veranderlike: '%s'", in.Str)
			}
			vm.push(v)
		case bytecode.SetGlobal:
			if _, ok := vm.globals[in.Str]; !ok {
				return value.Nil(), arcaneerrors.NewRuntime(in.Line, "Ongedefinieerde veranderlike: '%s'", in.Str)
			}
			vm.globals[in.Str] = vm.peek(0)
		case bytecode.GetLocal:
			vm.push(vm.stack[frame.base+in.A])
		case bytecode.SetLocal:
			vm.stack[frame.base+in.A] = vm.peek(0)
		case bytecode.GetUpvalue:
			vm.push(frame.closure.Upvalues[in.A].Get())
		case bytecode.SetUpvalue:
			frame.closure.Upvalues[in.A].Set(vm.peek(0))
		case bytecode.MakeClosure:
			vm.makeClosure(frame, in)
		case bytecode.CloseUpvalue:
			vm.closeUpvaluesFrom(vm.sp - 1)
			vm.pop()

		case bytecode.Add, bytecode.Subtract, bytecode.Multiply, bytecode.Divide, bytecode.Modulo:
			if err := vm.binaryArith(in); err != nil {
				return value.Nil(), err
			}
		case bytecode.Negate:
			if err := vm.negate(in.Line); err != nil {
				return value.Nil(), err
			}
		case bytecode.Equal:
			b, a := vm.pop(), vm.pop()
			vm.push(value.Boolean(value.Equal(a, b)))
		case bytecode.NotEqual:
			b, a := vm.pop(), vm.pop()
			vm.push(value.Boolean(!value.Equal(a, b)))
		case bytecode.Less, bytecode.LessEqual, bytecode.Greater, bytecode.GreaterEqual:
			if err := vm.compareNumbers(in); err != nil {
				return value.Nil(), err
			}
		case bytecode.Not:
			vm.push(value.Boolean(!vm.pop().IsTruthy()))

		case bytecode.Print:
			fmt.Fprintln(vm.out, vm.pop().String())

		case bytecode.Jump:
			frame.ip = in.A
		case bytecode.JumpIfFalse:
			if !vm.peek(0).IsTruthy() {
				frame.ip = in.A
			}

		case bytecode.Call:
			if err := vm.call(in.A, in.Line); err != nil {
				return value.Nil(), err
			}
		case bytecode.TailCall:
			result, done, err := vm.tailCall(in.A, in.Line)
			if err != nil {
				return value.Nil(), err
			}
			if done {
				return result, nil
			}
		case bytecode.Return:
			if result, done := vm.doReturn(); done {
				return result, nil
			}

		case bytecode.MakeList:
			vm.makeList(in.A)
		case bytecode.GetIndex:
			if err := vm.getIndex(in.Line); err != nil {
				return value.Nil(), err
			}

		case bytecode.CheckConstructor:
			vm.checkConstructor(in)
		case bytecode.GetField:
			if err := vm.getField(in.A, in.Line, false); err != nil {
				return value.Nil(), err
			}
		case bytecode.GetFieldPop:
			if err := vm.getField(in.A, in.Line, true); err != nil {
				return value.Nil(), err
			}

		case bytecode.LoadModule:
			if err := vm.loadModule(in); err != nil {
				return value.Nil(), err
			}
		case bytecode.GetMember:
			if err := vm.getMember(in); err != nil {
				return value.Nil(), err
			}

		default:
			return value.Nil(), arcaneerrors.NewRuntime(in.Line, "onbekende opkode %s", in.Op)
		}
	}
}

func (vm *VM) makeClosure(frame *CallFrame, in bytecode.Instruction) {
	fn := constAt(frame, in.A).Fn
	closure := &value.Closure{Fn: fn, Upvalues: make([]*value.Upvalue, len(in.Descriptors))}
	for i, d := range in.Descriptors {
		if d.IsLocal {
			closure.Upvalues[i] = vm.captureUpvalue(frame.base + d.Index)
		} else {
			closure.Upvalues[i] = frame.closure.Upvalues[d.Index]
		}
	}
	vm.push(value.ClosureVal(closure))
}

// captureUpvalue returns the open upvalue for stack slot idx, reusing
// one already registered there, or creating and registering a new one.
// The registry stays sorted ascending by idx so CloseUpvalue/Return can
// close the correct suffix in one pass.
func (vm *VM) captureUpvalue(idx int) *value.Upvalue {
	for _, o := range vm.open {
		if o.idx == idx {
			return o.up
		}
	}
	u := &value.Upvalue{Location: &vm.stack[idx]}
	i := 0
	for i < len(vm.open) && vm.open[i].idx < idx {
		i++
	}
	vm.open = append(vm.open, openUpvalue{})
	copy(vm.open[i+1:], vm.open[i:])
	vm.open[i] = openUpvalue{idx: idx, up: u}
	return u
}

// closeUpvaluesFrom closes every open upvalue at idx >= threshold, in
// LIFO order (highest index first), converting each to a Closed cell
// holding a copy of its current stack value before the slot vanishes.
func (vm *VM) closeUpvaluesFrom(threshold int) {
	i := len(vm.open)
	for i > 0 && vm.open[i-1].idx >= threshold {
		i--
	}
	for j := len(vm.open) - 1; j >= i; j-- {
		vm.open[j].up.Close()
	}
	vm.open = vm.open[:i]
}

func (vm *VM) binaryArith(in bytecode.Instruction) error {
	b := vm.pop()
	a := vm.pop()
	if in.Op == bytecode.Add && a.Type == value.TypeString && b.Type == value.TypeString {
		vm.push(value.String(*a.Str + *b.Str))
		return nil
	}
	if a.Type != value.TypeNumber || b.Type != value.TypeNumber {
		return arcaneerrors.NewRuntime(in.Line, "%s verwag twee nommers, het %s en %s gekry", in.Op, a.TypeName(), b.TypeName())
	}
	switch in.Op {
	case bytecode.Add:
		vm.push(value.Number(a.Num + b.Num))
	case bytecode.Subtract:
		vm.push(value.Number(a.Num - b.Num))
	case bytecode.Multiply:
		vm.push(value.Number(a.Num * b.Num))
	case bytecode.Divide:
		if b.Num == 0.0 {
			return arcaneerrors.NewRuntime(in.Line, "Deling deur nul.")
		}
		vm.push(value.Number(a.Num / b.Num))
	case bytecode.Modulo:
		if b.Num == 0.0 {
			return arcaneerrors.NewRuntime(in.Line, "modulo deur nul")
		}
		vm.push(value.Number(math.Mod(a.Num, b.Num)))
	}
	return nil
}

func (vm *VM) negate(line int) error {
	v := vm.pop()
	if v.Type != value.TypeNumber {
		return arcaneerrors.NewRuntime(line, "negasie verwag 'n nommer, het %s gekry", v.TypeName())
	}
	vm.push(value.Number(-v.Num))
	return nil
}

func (vm *VM) compareNumbers(in bytecode.Instruction) error {
	b := vm.pop()
	a := vm.pop()
	if a.Type != value.TypeNumber || b.Type != value.TypeNumber {
		return arcaneerrors.NewRuntime(in.Line, "%s verwag twee nommers, het %s en %s gekry", in.Op, a.TypeName(), b.TypeName())
	}
	var result bool
	switch in.Op {
	case bytecode.Less:
		result = a.Num < b.Num
	case bytecode.LessEqual:
		result = a.Num <= b.Num
	case bytecode.Greater:
		result = a.Num > b.Num
	case bytecode.GreaterEqual:
		result = a.Num >= b.Num
	}
	vm.push(value.Boolean(result))
	return nil
}

func (vm *VM) makeList(n int) {
	items := make([]value.Value, n)
	copy(items, vm.stack[vm.sp-n:vm.sp])
	vm.sp -= n
	vm.push(value.List(items))
}

func (vm *VM) getIndex(line int) error {
	idx := vm.pop()
	target := vm.pop()
	if target.Type != value.TypeList {
		return arcaneerrors.NewRuntime(line, "indeksering verwag 'n lys, het %s gekry", target.TypeName())
	}
	if idx.Type != value.TypeNumber || idx.Num != math.Trunc(idx.Num) {
		return arcaneerrors.NewRuntime(line, "indeks moet 'n heelgetal wees")
	}
	i := int(idx.Num)
	items := *target.List
	if i < 0 || i >= len(items) {
		return arcaneerrors.NewRuntime(line, "indeks buite grense: %d", i)
	}
	vm.push(items[i])
	return nil
}

func (vm *VM) checkConstructor(in bytecode.Instruction) {
	v := vm.pop()
	ok := v.Type == value.TypeAdt && v.Adt.CtorName == in.Str && len(v.Adt.Fields) == in.A
	vm.push(value.Boolean(ok))
}

func (vm *VM) getField(i, line int, consume bool) error {
	var v value.Value
	if consume {
		v = vm.pop()
	} else {
		v = vm.peek(0)
	}
	if v.Type != value.TypeAdt || i < 0 || i >= len(v.Adt.Fields) {
		return arcaneerrors.NewRuntime(line, "ongeldige veldtoegang")
	}
	vm.push(v.Adt.Fields[i])
	return nil
}

func (vm *VM) getMember(in bytecode.Instruction) error {
	m := vm.pop()
	if m.Type != value.TypeModule {
		return arcaneerrors.NewRuntime(in.Line, "lidtoegang verwag 'n module, het %s gekry", m.TypeName())
	}
	member, ok := m.Module.Members[in.Str]
	if !ok {
		return arcaneerrors.NewRuntime(in.Line, "module '%s' het nie lid '%s' nie", m.Module.Name, in.Str)
	}
	vm.push(member)
	return nil
}

func (vm *VM) loadModule(in bytecode.Instruction) error {
	if vm.loader == nil {
		return arcaneerrors.NewRuntime(in.Line, "modules kan nie gelaai word in hierdie konteks nie")
	}
	m, err := vm.loader.Load(in.Str)
	if err != nil {
		return err
	}
	vm.push(m)
	return nil
}
