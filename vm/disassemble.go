package vm

import (
	"fmt"
	"strings"

	"github.com/sn-x/snx-sim/ir"
)

// instText returns the canonical trace text for inst: its original
// source line when one was captured, otherwise a reconstruction from the
// resolved IR fields.
func (m *Machine) instText(inst *ir.Instruction) string {
	if t := strings.TrimSpace(inst.RawLine); t != "" {
		return t
	}
	return disassemble(inst)
}

// Disassemble reconstructs the mnemonic text of the instruction at pc
// from its resolved IR fields, ignoring any captured source text. It
// supports introspecting a program built without a source file.
func (m *Machine) Disassemble(pc int) (string, bool) {
	if pc < 0 || pc >= len(m.program.Instructions) {
		return "", false
	}
	return disassemble(m.program.Instructions[pc]), true
}

func disassemble(inst *ir.Instruction) string {
	switch inst.Opcode {
	case ir.ADD, ir.AND, ir.SUB, ir.SLT:
		return fmt.Sprintf("%s $%d, $%d, $%d", inst.Opcode, inst.Dest, inst.Src1, inst.Src2)

	case ir.NOT, ir.SR:
		return fmt.Sprintf("%s $%d, $%d", inst.Opcode, inst.Dest, inst.Src1)

	case ir.HLT:
		return inst.Opcode.String()

	case ir.IN, ir.OUT:
		return fmt.Sprintf("%s $%d", inst.Opcode, inst.Dest)

	case ir.LD, ir.ST, ir.LDA:
		return fmt.Sprintf("%s $%d, %d($%d)", inst.Opcode, inst.Dest, inst.Imm, inst.Src1)

	case ir.BZ:
		if inst.Target >= 0 {
			return fmt.Sprintf("BZ $%d, %d", inst.Dest, inst.Target)
		}
		return fmt.Sprintf("BZ $%d, %d($%d)", inst.Dest, inst.Imm, inst.Src1)

	case ir.BAL:
		if inst.Target >= 0 {
			return fmt.Sprintf("BAL $%d, %d", inst.Dest, inst.Target)
		}
		return fmt.Sprintf("BAL $%d, %d($%d)", inst.Dest, inst.Imm, inst.Src1)

	default:
		return "???"
	}
}
