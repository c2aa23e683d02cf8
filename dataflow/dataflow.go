// Package dataflow performs a forward, may-analysis fixpoint over a
// lowered SN/X program to flag reads of possibly-uninitialized registers
// and memory cells, and jumps through registers never set by BAL.
package dataflow

import (
	"github.com/sn-x/snx-sim/cfg"
	"github.com/sn-x/snx-sim/diag"
	"github.com/sn-x/snx-sim/ir"
)

// Status is a point in the three-element lattice Uninit | MaybeInit |
// Init. Join moves toward MaybeInit whenever the two input states
// disagree; Init values additionally carry the set of defining PCs.
type Status int

const (
	Uninit Status = iota
	MaybeInit
	Init
)

// Value is one lattice element: a status plus, for Init/MaybeInit, the
// set of PCs where the value may have been defined.
type Value struct {
	Status  Status
	Origins map[int]bool
}

func definedAt(pc int) Value {
	return Value{Status: Init, Origins: map[int]bool{pc: true}}
}

func join(a, b Value) Value {
	if a.Status == Uninit && b.Status == Uninit {
		return Value{Status: Uninit}
	}
	if a.Status == Init && b.Status == Init {
		origins := map[int]bool{}
		for pc := range a.Origins {
			origins[pc] = true
		}
		for pc := range b.Origins {
			origins[pc] = true
		}
		return Value{Status: Init, Origins: origins}
	}
	origins := map[int]bool{}
	for pc := range a.Origins {
		origins[pc] = true
	}
	for pc := range b.Origins {
		origins[pc] = true
	}
	if len(origins) == 0 {
		return Value{Status: MaybeInit}
	}
	return Value{Status: MaybeInit, Origins: origins}
}

// State is the lattice value of every register and known-address memory
// cell at one program point, plus the return-address taint bit for each
// register set by a BAL instruction.
type State struct {
	Regs     map[int]Value
	Mem      map[int]Value
	RetTaint map[int]bool
}

func newState() *State {
	return &State{Regs: map[int]Value{}, Mem: map[int]Value{}, RetTaint: map[int]bool{}}
}

func (s *State) reg(i int) Value {
	if v, ok := s.Regs[i]; ok {
		return v
	}
	return Value{Status: Uninit}
}

func (s *State) mem(addr int) Value {
	if v, ok := s.Mem[addr]; ok {
		return v
	}
	return Value{Status: Uninit}
}

func (s *State) clone() *State {
	c := newState()
	for k, v := range s.Regs {
		c.Regs[k] = v
	}
	for k, v := range s.Mem {
		c.Mem[k] = v
	}
	for k, v := range s.RetTaint {
		c.RetTaint[k] = v
	}
	return c
}

func joinState(a, b *State) *State {
	out := newState()
	for k := range unionKeys(a.Regs, b.Regs) {
		av, bv := a.reg(k), b.reg(k)
		out.Regs[k] = join(av, bv)
	}
	for k := range unionKeysMem(a.Mem, b.Mem) {
		av, bv := a.mem(k), b.mem(k)
		out.Mem[k] = join(av, bv)
	}
	for k := range a.RetTaint {
		out.RetTaint[k] = out.RetTaint[k] || a.RetTaint[k]
	}
	for k := range b.RetTaint {
		out.RetTaint[k] = out.RetTaint[k] || b.RetTaint[k]
	}
	return out
}

func unionKeys(a, b map[int]Value) map[int]bool {
	out := map[int]bool{}
	for k := range a {
		out[k] = true
	}
	for k := range b {
		out[k] = true
	}
	return out
}

func unionKeysMem(a, b map[int]Value) map[int]bool {
	return unionKeys(a, b)
}

func equalState(a, b *State) bool {
	if len(a.Regs) != len(b.Regs) || len(a.Mem) != len(b.Mem) || len(a.RetTaint) != len(b.RetTaint) {
		return false
	}
	for k, av := range a.Regs {
		bv, ok := b.Regs[k]
		if !ok || av.Status != bv.Status || len(av.Origins) != len(bv.Origins) {
			return false
		}
	}
	for k, av := range a.Mem {
		bv, ok := b.Mem[k]
		if !ok || av.Status != bv.Status || len(av.Origins) != len(bv.Origins) {
			return false
		}
	}
	for k, av := range a.RetTaint {
		if b.RetTaint[k] != av {
			return false
		}
	}
	return true
}

// Result is the per-PC entry state of a completed analysis.
type Result struct {
	Entry []*State // Entry[pc] is the state before executing instruction pc
}

// Analyze runs the worklist fixpoint over program using graph for control
// edges between blocks, then makes one pass over every reachable
// instruction's converged entry state to emit diagnostics for
// uninitialized reads and implausible BAL-return jumps into diags.
//
// entry[pc] is nil until pc is first reached; that nil (not a zero-value
// State) is the lattice bottom for "never visited", so a node's first
// incoming edge adopts the predecessor's state outright instead of being
// joined against a placeholder all-Uninit state. Without that
// distinction, an edge that carries no new information (e.g. a branch
// that defines nothing) would never mark its successor dirty, and that
// successor's reads would never be checked at all.
func Analyze(program *ir.Program, graph *cfg.Graph, diags *diag.Diagnostics) *Result {
	n := len(program.Instructions)
	result := &Result{Entry: make([]*State, n)}
	if n == 0 {
		return result
	}

	entry := make([]*State, n)
	entry[0] = newState()

	queue := []int{0}
	queued := make([]bool, n)
	queued[0] = true

	for len(queue) > 0 {
		pc := queue[0]
		queue = queue[1:]
		queued[pc] = false

		after := transferState(entry[pc], program.Instructions[pc], pc)

		for _, succ := range successorPCs(program, graph, pc) {
			merged := after
			if entry[succ] != nil {
				merged = joinState(entry[succ], after)
			}
			if entry[succ] == nil || !equalState(merged, entry[succ]) {
				entry[succ] = merged
				if !queued[succ] {
					queued[succ] = true
					queue = append(queue, succ)
				}
			}
		}
	}

	for pc, st := range entry {
		if st == nil {
			result.Entry[pc] = newState()
			continue
		}
		result.Entry[pc] = st
		reportFindings(st, program.Instructions[pc], diags)
	}

	return result
}

func successorPCs(program *ir.Program, graph *cfg.Graph, pc int) []int {
	idx := graph.BlockAt(pc)
	if idx < 0 {
		return nil
	}
	block := graph.Blocks[idx]
	if pc+1 < block.End {
		return []int{pc + 1}
	}
	var out []int
	for _, e := range block.Succs {
		if e.To < 0 {
			continue
		}
		out = append(out, graph.Blocks[e.To].Start)
	}
	return out
}

// transferState applies one instruction's effect to before, with no
// diagnostic side effects: it is run once per worklist visit, possibly
// before the entry state at pc has reached its final converged value.
func transferState(before *State, inst *ir.Instruction, pc int) *State {
	after := before.clone()

	switch inst.Opcode {
	case ir.ADD, ir.AND, ir.SUB, ir.SLT, ir.NOT, ir.SR, ir.LD, ir.LDA, ir.IN:
		after.Regs[inst.Dest] = definedAt(pc)

	case ir.ST:
		if inst.Src1 == 0 {
			after.Mem[inst.Imm&0xFFFF] = definedAt(pc)
		}

	case ir.BAL:
		after.Regs[inst.Dest] = definedAt(pc)
		after.RetTaint[inst.Dest] = true
	}

	return after
}

// reportFindings checks one instruction's operand reads against its
// converged entry state before, emitting uninitialized-read and
// invalid-return diagnostics. It runs exactly once per reachable
// instruction, after the worklist fixpoint has settled, so every
// instruction is checked regardless of whether its entry state ever
// changed after first being computed.
func reportFindings(before *State, inst *ir.Instruction, diags *diag.Diagnostics) {
	checkUse := func(reg int) {
		v := before.reg(reg)
		if v.Status != Init {
			diags.Addf(diag.Warning, diag.CodeUninitRead, inst.Pos,
				"register $%d may be read before it is initialized", reg)
		}
	}
	checkMemUse := func(addr int) {
		v := before.mem(addr)
		if v.Status != Init {
			diags.Addf(diag.Warning, diag.CodeUninitRead, inst.Pos,
				"memory address %d may be read before it is initialized", addr)
		}
	}

	switch inst.Opcode {
	case ir.ADD, ir.AND, ir.SUB, ir.SLT:
		checkUse(inst.Src1)
		checkUse(inst.Src2)

	case ir.NOT, ir.SR:
		checkUse(inst.Src1)

	case ir.LD:
		if inst.Src1 == 0 {
			checkMemUse(inst.Imm & 0xFFFF)
		}

	case ir.ST:
		checkUse(inst.Dest) // Dest holds the value being stored

	case ir.OUT:
		checkUse(inst.Dest) // Dest holds the value being output

	case ir.BZ:
		checkUse(inst.Dest) // Dest holds the register tested for zero

	case ir.BAL:
		if inst.Target < 0 {
			// return form: jumping through Src1, which should have been
			// tainted by a prior BAL writing a return address into it.
			if !before.RetTaint[inst.Src1] {
				diags.Addf(diag.Warning, diag.CodeInvalidReturn, inst.Pos,
					"register $%d used as a return target was never set by BAL", inst.Src1)
			}
		}
	}
}
