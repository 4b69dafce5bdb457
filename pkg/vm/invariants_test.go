package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arcane/pkg/bytecode"
	"arcane/pkg/compiler"
	arcaneerrors "arcane/pkg/errors"
	"arcane/pkg/lexer"
	"arcane/pkg/parser"
	"arcane/pkg/value"
)

func compileSource(t *testing.T, source string) *VM {
	t.Helper()
	toks, err := lexer.New(source).ScanTokens()
	require.NoError(t, err)
	prog, err := parser.New(toks).Parse()
	require.NoError(t, err)
	chunk, err := compiler.Compile(prog)
	require.NoError(t, err)

	machine := New(nil)
	_, err = machine.Run(chunk)
	require.NoError(t, err)
	return machine
}

func TestStackEmptyAfterTopLevelReturn(t *testing.T) {
	machine := compileSource(t, "laat x = 1 + 2\n")
	assert.Equal(t, 0, machine.sp)
}

func TestPopOnEmptyStackReportsUnderflowInsteadOfPanicking(t *testing.T) {
	machine := New(nil)
	assert.PanicsWithValue(t, &arcaneerrors.RuntimeError{Msg: "Stapel onderloop.", Ln: 0}, func() {
		machine.pop()
	})
}

func TestPeekBeyondStackReportsUnderflowInsteadOfPanicking(t *testing.T) {
	machine := New(nil)
	machine.push(value.Number(1))
	assert.PanicsWithValue(t, &arcaneerrors.RuntimeError{Msg: "Stapel onderloop.", Ln: 0}, func() {
		machine.peek(1)
	})
}

func TestRunRecoversUnderflowPanicIntoRuntimeError(t *testing.T) {
	// Pop is only reachable underflowed by a genuine compiler bug; poke
	// the dispatch loop directly by starting a frame with an empty stack
	// and a Pop instruction to exercise run()'s recover wrapper.
	chunk := &bytecode.Chunk{Code: []bytecode.Instruction{{Op: bytecode.Pop}}}
	machine := New(nil)
	_, err := machine.Run(chunk)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Stapel onderloop.")
}

func TestNoOpenUpvaluesSurviveReturn(t *testing.T) {
	src := `
laat mk = fn () {
  laat c = 0
  gee fn () { gee c }
}
laat f = mk()
druk(f())
`
	machine := compileSource(t, src)
	assert.Equal(t, 0, machine.sp)
	assert.Empty(t, machine.open)
}

func TestTwoClosuresShareCapturedLocal(t *testing.T) {
	src := `
laat mk = fn () {
  laat c = 0
  gee [fn () {
    c = c + 1
    gee c
  }, fn () { gee c }]
}
laat pair = mk()
laat inc = pair[0]
laat peek = pair[1]
druk(inc())
druk(peek())
`
	var out = &captureWriter{}
	toks, err := lexer.New(src).ScanTokens()
	require.NoError(t, err)
	prog, err := parser.New(toks).Parse()
	require.NoError(t, err)
	chunk, err := compiler.Compile(prog)
	require.NoError(t, err)

	machine := New(nil)
	machine.SetOutput(out)
	_, err = machine.Run(chunk)
	require.NoError(t, err)
	assert.Equal(t, "1\n1\n", out.String())
}

type captureWriter struct{ buf []byte }

func (w *captureWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *captureWriter) String() string { return string(w.buf) }
