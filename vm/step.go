package vm

import (
	"fmt"

	"github.com/sn-x/snx-sim/ir"
)

// ErrStepCapExceeded is returned by Run when execution does not reach
// halted within MaxSteps steps.
var ErrStepCapExceeded = fmt.Errorf("vm: step count exceeded safety cap")

// Step executes a single instruction. It returns (false, nil) once the
// machine is halted or PC has run off the end of the program, and
// (false, err) if a callback failed or the step cap was exceeded.
func (m *Machine) Step() (bool, error) {
	if m.Halted {
		return false, nil
	}
	if m.PC < 0 || m.PC >= len(m.program.Instructions) {
		m.Halted = true
		return false, nil
	}
	if m.Steps >= m.MaxSteps {
		return false, ErrStepCapExceeded
	}
	m.Steps++

	inst := m.program.Instructions[m.PC]
	instText := m.instText(inst)

	entry := TraceEntry{PC: m.PC, InstText: instText, Regs: append([]uint16(nil), m.Regs...)}
	m.Trace = append(m.Trace, entry)
	if m.OnTrace != nil {
		if err := m.invokeTrace(entry); err != nil {
			return false, err
		}
	}

	m.Stats.record(inst.Opcode, m.PC)

	branched, err := m.execute(inst, instText)
	if err != nil {
		return false, err
	}

	if !branched {
		m.PC = (m.PC + 1) & 0xFFFF
	}
	return !m.Halted, nil
}

// execute dispatches on opcode and returns whether control flow branched
// (so Step should not apply the default PC+1 advance).
func (m *Machine) execute(inst *ir.Instruction, instText string) (branched bool, err error) {
	switch inst.Opcode {
	case ir.ADD:
		m.Regs[inst.Dest] = m.Reg(inst.Src1) + m.Reg(inst.Src2)

	case ir.AND:
		m.Regs[inst.Dest] = m.Reg(inst.Src1) & m.Reg(inst.Src2)

	case ir.SUB:
		m.Regs[inst.Dest] = m.Reg(inst.Src1) - m.Reg(inst.Src2)

	case ir.SLT:
		if int16(m.Reg(inst.Src1)) < int16(m.Reg(inst.Src2)) {
			m.Regs[inst.Dest] = 1
		} else {
			m.Regs[inst.Dest] = 0
		}

	case ir.NOT:
		m.Regs[inst.Dest] = ^m.Reg(inst.Src1)

	case ir.SR:
		m.Regs[inst.Dest] = m.Reg(inst.Src1) >> 1

	case ir.HLT:
		m.Halted = true

	case ir.LD:
		addr := m.effectiveAddress(inst.Src1, inst.Imm)
		val, oobErr := m.memRead(addr, m.PC, instText)
		if oobErr != nil {
			return false, oobErr
		}
		m.Regs[inst.Dest] = val

	case ir.ST:
		addr := m.effectiveAddress(inst.Src1, inst.Imm)
		if oobErr := m.memWrite(addr, m.PC, instText, m.Reg(inst.Dest)); oobErr != nil {
			return false, oobErr
		}

	case ir.LDA:
		m.Regs[inst.Dest] = uint16(m.effectiveAddress(inst.Src1, inst.Imm))

	case ir.IN:
		if m.OnInput == nil {
			m.Regs[inst.Dest] = 0
			break
		}
		val, inErr := m.invokeInput()
		if inErr != nil {
			return false, inErr
		}
		m.Regs[inst.Dest] = val

	case ir.OUT:
		val := m.Reg(inst.Dest)
		m.Output = append(m.Output, val)
		if m.OnOutput != nil {
			if outErr := m.invokeOutput(val); outErr != nil {
				return false, outErr
			}
		}

	case ir.BZ:
		m.Stats.Branches++
		if m.Reg(inst.Dest) == 0 {
			m.Stats.BranchesTaken++
			target := inst.Target
			if target < 0 {
				target = m.effectiveAddress(inst.Src1, inst.Imm)
			}
			m.PC = target & 0xFFFF
			return true, nil
		}

	case ir.BAL:
		target := inst.Target
		if target < 0 {
			target = m.effectiveAddress(inst.Src1, inst.Imm)
		}
		m.Regs[inst.Dest] = uint16((m.PC + 1) & 0xFFFF)
		m.PC = target & 0xFFFF
		return true, nil
	}

	return false, nil
}

// Run steps the machine until it halts, a callback fails, or the step
// cap is exceeded.
func (m *Machine) Run() error {
	for {
		more, err := m.Step()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}
