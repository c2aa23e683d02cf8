// Package vm implements the non-pipelined SN/X simulator: it executes a
// lowered IR program against a configurable register file and data
// memory, honoring two's-complement 16-bit wraparound and invoking
// user-supplied I/O, out-of-bounds, and trace callbacks.
package vm

import (
	"fmt"

	"github.com/sn-x/snx-sim/ir"
)

// DefaultMaxSteps is the safety cap applied by Run when the caller does
// not override MaxSteps.
const DefaultMaxSteps = 1_000_000

// InputFunc supplies the value for an IN instruction.
type InputFunc func() (uint16, error)

// OutputFunc observes the value produced by an OUT instruction, in
// addition to it being appended to Machine.Output.
type OutputFunc func(value uint16) error

// OOBKind names the kind of out-of-bounds memory access.
type OOBKind string

const (
	OOBLoad  OOBKind = "load"
	OOBStore OOBKind = "store"
)

// OOBFunc is invoked when a memory access falls outside [0, mem_size).
type OOBFunc func(kind OOBKind, addr, pc int, instText string, memSize int) error

// TraceFunc observes each step's trace entry as it is recorded.
type TraceFunc func(entry TraceEntry)

// Machine is one simulator instance: its registers, memory, trace, and
// output buffer are owned exclusively by it and never shared.
type Machine struct {
	RegCount int
	MemSize  int
	MaxSteps int

	Regs   []uint16
	Mem    []uint16
	PC     int
	Halted bool
	Steps  int

	Output []uint16
	Trace  []TraceEntry
	Stats  *Statistics

	OnInput  InputFunc
	OnOutput OutputFunc
	OnOOB    OOBFunc
	OnTrace  TraceFunc

	program *ir.Program
}

// New constructs a Machine for program with the given register count and
// memory size. It rejects mem_size > 0x10000 per the documented
// construction-time behavior for oversized memories.
func New(program *ir.Program, regCount, memSize int) (*Machine, error) {
	if regCount <= 0 {
		return nil, fmt.Errorf("vm: reg_count must be positive, got %d", regCount)
	}
	if memSize <= 0 {
		return nil, fmt.Errorf("vm: mem_size must be positive, got %d", memSize)
	}
	if memSize > 0x10000 {
		return nil, fmt.Errorf("vm: mem_size %d exceeds 0x10000", memSize)
	}

	m := &Machine{
		RegCount: regCount,
		MemSize:  memSize,
		MaxSteps: DefaultMaxSteps,
		Regs:     make([]uint16, regCount),
		Mem:      make([]uint16, memSize),
		Stats:    newStatistics(),
		program:  program,
	}
	return m, nil
}

// Reg returns the current value of register i, or 0 if out of range.
func (m *Machine) Reg(i int) uint16 {
	if i < 0 || i >= len(m.Regs) {
		return 0
	}
	return m.Regs[i]
}

// sext8 sign-extends the low 8 bits of v to a full int.
func sext8(v int) int {
	v &= 0xFF
	if v&0x80 != 0 {
		return v - 0x100
	}
	return v
}

// effectiveAddress computes ea(imm, base) per the ISA contract: base==0
// is treated as constant zero regardless of R[0]'s stored value.
func (m *Machine) effectiveAddress(base, imm int) int {
	baseVal := 0
	if base != 0 {
		baseVal = int(m.Reg(base))
	}
	return (baseVal + sext8(imm)) & 0xFFFF
}

func (m *Machine) memRead(addr, pc int, instText string) (uint16, error) {
	if addr < 0 || addr >= m.MemSize {
		if m.OnOOB != nil {
			if err := m.invokeOOB(OOBLoad, addr, pc, instText); err != nil {
				return 0, err
			}
		}
		return 0, nil
	}
	return m.Mem[addr], nil
}

func (m *Machine) memWrite(addr, pc int, instText string, value uint16) error {
	if addr < 0 || addr >= m.MemSize {
		if m.OnOOB != nil {
			if err := m.invokeOOB(OOBStore, addr, pc, instText); err != nil {
				return err
			}
		}
		return nil
	}
	m.Mem[addr] = value
	return nil
}

func (m *Machine) invokeOOB(kind OOBKind, addr, pc int, instText string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("vm: oob callback panicked: %v", r)
		}
	}()
	return m.OnOOB(kind, addr, pc, instText, m.MemSize)
}

func (m *Machine) invokeInput() (val uint16, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("vm: input callback panicked: %v", r)
		}
	}()
	return m.OnInput()
}

func (m *Machine) invokeOutput(value uint16) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("vm: output callback panicked: %v", r)
		}
	}()
	return m.OnOutput(value)
}

func (m *Machine) invokeTrace(entry TraceEntry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("vm: trace callback panicked: %v", r)
		}
	}()
	m.OnTrace(entry)
	return nil
}
