package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble renders chunk as a human-readable instruction listing
// under the given name, one line per instruction, mirroring the
// teacher's own DisassembleChunk debug output.
func (c *Chunk) Disassemble(name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s ==\n", name)
	for i, in := range c.Code {
		fmt.Fprintf(&b, "%04d %4d %s\n", i, in.Line, c.disassembleInstruction(in))
	}
	return b.String()
}

func (c *Chunk) disassembleInstruction(in Instruction) string {
	switch in.Op {
	case Constant:
		return fmt.Sprintf("%-16s %4d '%v'", in.Op, in.A, c.Constants[in.A])
	case DefineGlobal, GetGlobal, SetGlobal, CheckConstructor, LoadModule, GetMember:
		return fmt.Sprintf("%-16s '%s'", in.Op, in.Str)
	case GetLocal, SetLocal, GetUpvalue, SetUpvalue, Call, TailCall, MakeList, GetIndex, GetField, GetFieldPop:
		return fmt.Sprintf("%-16s %4d", in.Op, in.A)
	case Jump, JumpIfFalse:
		return fmt.Sprintf("%-16s -> %d", in.Op, in.A)
	case MakeClosure:
		return fmt.Sprintf("%-16s %4d '%v' (%d upvalues)", in.Op, in.A, c.Constants[in.A], len(in.Descriptors))
	default:
		return in.Op.String()
	}
}

// Size returns the chunk's approximate in-memory footprint in bytes,
// used by the disasm command's human-readable summary.
func (c *Chunk) Size() int {
	const instrSize = 64 // rough per-Instruction footprint, fields + slice headers
	return len(c.Code)*instrSize + len(c.Constants)*16
}
