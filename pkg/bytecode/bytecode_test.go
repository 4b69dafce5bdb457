package bytecode_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"arcane/pkg/bytecode"
)

func TestPatchJumpRewritesTarget(t *testing.T) {
	var chunk bytecode.Chunk
	offset := chunk.Write(bytecode.Instruction{Op: bytecode.Jump})
	chunk.PatchJump(offset, 42)
	assert.Equal(t, 42, chunk.Code[offset].A)
}

func TestPatchJumpPanicsOnNonJump(t *testing.T) {
	var chunk bytecode.Chunk
	offset := chunk.Write(bytecode.Instruction{Op: bytecode.Add})
	assert.Panics(t, func() { chunk.PatchJump(offset, 1) })
}

func TestAddConstantReturnsIndex(t *testing.T) {
	var chunk bytecode.Chunk
	i1 := chunk.AddConstant("a")
	i2 := chunk.AddConstant("b")
	assert.Equal(t, 0, i1)
	assert.Equal(t, 1, i2)
}

func TestDisassembleListsEveryInstruction(t *testing.T) {
	var chunk bytecode.Chunk
	k := chunk.AddConstant("hi")
	chunk.Write(bytecode.Instruction{Op: bytecode.Constant, A: k, Line: 1})
	chunk.Write(bytecode.Instruction{Op: bytecode.Return, Line: 1})

	out := chunk.Disassemble("test")
	assert.True(t, strings.Contains(out, "== test =="))
	assert.True(t, strings.Contains(out, "Constant"))
	assert.True(t, strings.Contains(out, "Return"))
}

func TestOpCodeStringOmitsAndOr(t *testing.T) {
	// And/Or were dropped from the instruction set entirely; every
	// remaining opcode must still render a non-"Unknown" name.
	for op := bytecode.Constant; op <= bytecode.GetMember; op++ {
		assert.NotEqual(t, "Unknown", op.String(), "opcode %d", op)
	}
}
