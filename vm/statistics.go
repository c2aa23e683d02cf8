package vm

import "github.com/sn-x/snx-sim/ir"

// Statistics accumulates execution counters for one Machine's lifetime:
// per-opcode dispatch counts, code coverage (distinct PCs visited), and
// conditional-branch taken/not-taken totals.
type Statistics struct {
	TotalSteps    int
	OpcodeCounts  map[ir.Opcode]int
	Visited       map[int]bool
	Branches      int
	BranchesTaken int
}

func newStatistics() *Statistics {
	return &Statistics{
		OpcodeCounts: make(map[ir.Opcode]int),
		Visited:      make(map[int]bool),
	}
}

func (s *Statistics) record(op ir.Opcode, pc int) {
	s.TotalSteps++
	s.OpcodeCounts[op]++
	s.Visited[pc] = true
}

// BranchesNotTaken derives the not-taken count from Branches and
// BranchesTaken.
func (s *Statistics) BranchesNotTaken() int {
	return s.Branches - s.BranchesTaken
}

// CoveragePCs returns the distinct instruction indices executed at
// least once, in ascending order.
func (s *Statistics) CoveragePCs() []int {
	out := make([]int, 0, len(s.Visited))
	for pc := range s.Visited {
		out = append(out, pc)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
