package cfg

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sn-x/snx-sim/encoder"
	"github.com/sn-x/snx-sim/parser"
)

func build(t *testing.T, source string) *Graph {
	t.Helper()
	p := parser.New(source)
	program, diags := p.Parse()
	require.False(t, diags.HasErrors())

	low := encoder.New(4, 256)
	ir := low.Lower(program)
	require.False(t, low.Diagnostics().HasErrors(), low.Diagnostics().Format())

	return Build(ir)
}

func TestStraightLineProgramIsOneBlock(t *testing.T) {
	g := build(t, "ADD $1, $2, $3\nSUB $1, $2, $3\nHLT\n")
	require.Len(t, g.Blocks, 1)
	require.Empty(t, g.Blocks[0].Succs)
}

func TestBranchSplitsIntoFallthroughAndTaken(t *testing.T) {
	g := build(t, "BZ $1, target\nADD $1, $2, $3\ntarget: HLT\n")
	require.Len(t, g.Blocks, 3)

	entry := g.Blocks[g.BlockAt(0)]
	kinds := map[EdgeKind]bool{}
	for _, e := range entry.Succs {
		kinds[e.Kind] = true
	}
	require.True(t, kinds[Taken])
	require.True(t, kinds[Fallthrough])
}

func TestUnconditionalJumpHasOnlyJumpEdge(t *testing.T) {
	g := build(t, "BAL $1, target\nHLT\ntarget: HLT\n")
	entry := g.Blocks[g.BlockAt(0)]
	require.Len(t, entry.Succs, 1)
	require.Equal(t, Jump, entry.Succs[0].Kind)
}

func TestReturnFormHasReturnEdgeWithNoTarget(t *testing.T) {
	g := build(t, "BAL $1, 0($2)\n")
	entry := g.Blocks[g.BlockAt(0)]
	require.Len(t, entry.Succs, 1)
	require.Equal(t, Return, entry.Succs[0].Kind)
	require.Equal(t, -1, entry.Succs[0].To)
}

func TestUnreachableBlockAfterUnconditionalJump(t *testing.T) {
	g := build(t, "BAL $1, target\nADD $1, $2, $3\ntarget: HLT\n")
	unreachable := g.Unreachable()
	require.NotEmpty(t, unreachable)

	deadBlock := g.Blocks[g.BlockAt(1)]
	found := false
	for _, idx := range unreachable {
		if g.Blocks[idx] == deadBlock {
			found = true
		}
	}
	require.True(t, found)
}

func TestSelfLoopIsInfiniteLoop(t *testing.T) {
	g := build(t, "loop: BZ $0, loop\n")
	loops := g.InfiniteLoops()
	require.NotEmpty(t, loops)
}

func TestSimpleLoopWithExitIsNotInfinite(t *testing.T) {
	g := build(t, "loop: BZ $1, done\nBAL $0, loop\ndone: HLT\n")
	loops := g.InfiniteLoops()
	require.Empty(t, loops)
}
