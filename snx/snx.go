// Package snx is the facade over the SN/X toolchain: one call compiles
// source text through lexing, parsing, lowering, and static analysis,
// and a pair of constructors turn a successful compile into a runnable
// simulator.
package snx

import (
	"fmt"

	"github.com/sn-x/snx-sim/cfg"
	"github.com/sn-x/snx-sim/dataflow"
	"github.com/sn-x/snx-sim/diag"
	"github.com/sn-x/snx-sim/encoder"
	"github.com/sn-x/snx-sim/ir"
	"github.com/sn-x/snx-sim/parser"
	"github.com/sn-x/snx-sim/vm"
)

// CompileResult is the outcome of compiling one source file: the AST,
// the IR, all diagnostics collected across every pass, and, when static
// checks were requested, the control-flow graph and dataflow facts.
type CompileResult struct {
	Program     *parser.Program
	IR          *ir.Program
	Diagnostics *diag.Diagnostics
	CFG         *cfg.Graph
	Dataflow    *dataflow.Result

	RegCount int
	MemSize  int
}

// HasErrors reports whether any Error-severity diagnostic was recorded.
func (r *CompileResult) HasErrors() bool {
	return r.Diagnostics.HasErrors()
}

// HasWarnings reports whether any Warning-severity diagnostic was recorded.
func (r *CompileResult) HasWarnings() bool {
	return r.Diagnostics.HasWarnings()
}

// FormatDiagnostics renders all diagnostics as line-anchored text.
func (r *CompileResult) FormatDiagnostics() string {
	return r.Diagnostics.Format()
}

// CompileProgram runs source through the full C1-C6 pipeline. When
// runStaticChecks is true, the control-flow graph and dataflow analysis
// also run and contribute unreachable-code, infinite-loop, uninitialized
// read, and invalid-return diagnostics.
func CompileProgram(source string, regCount, memSize int, runStaticChecks bool) *CompileResult {
	p := parser.New(source)
	program, parseDiags := p.Parse()

	low := encoder.New(regCount, memSize)
	irProgram := low.Lower(program)

	diags := &diag.Diagnostics{}
	for _, d := range parseDiags.All() {
		diags.Add(d.Severity, d.Code, d.Pos, d.Message)
	}
	for _, d := range low.Diagnostics().All() {
		diags.Add(d.Severity, d.Code, d.Pos, d.Message)
	}

	result := &CompileResult{
		Program:     program,
		IR:          irProgram,
		Diagnostics: diags,
		RegCount:    regCount,
		MemSize:     memSize,
	}

	if runStaticChecks {
		graph := cfg.Build(irProgram)
		result.CFG = graph

		reportStaticFindings(irProgram, graph, diags)

		result.Dataflow = dataflow.Analyze(irProgram, graph, diags)
	}

	diags.SortStable()
	return result
}

// reportStaticFindings emits the informational unreachable-code and
// infinite-loop-without-HLT findings from the control-flow graph.
func reportStaticFindings(program *ir.Program, graph *cfg.Graph, diags *diag.Diagnostics) {
	for _, idx := range graph.Unreachable() {
		block := graph.Blocks[idx]
		if block.Start >= len(program.Instructions) {
			continue
		}
		pos := program.Instructions[block.Start].Pos
		diags.Addf(diag.Info, diag.CodeUnreachable, pos, "unreachable code at PC %d", block.Start)
	}

	for _, scc := range graph.InfiniteLoops() {
		if hasIO(program, graph, scc) {
			continue
		}
		first := scc[0]
		for _, b := range scc {
			if b < first {
				first = b
			}
		}
		pos := program.Instructions[graph.Blocks[first].Start].Pos
		diags.Addf(diag.Warning, diag.CodeInfiniteLoop, pos,
			"infinite loop detected with no HLT or I/O reachable")
	}
}

func hasIO(program *ir.Program, graph *cfg.Graph, scc []int) bool {
	for _, blockIdx := range scc {
		block := graph.Blocks[blockIdx]
		for pc := block.Start; pc < block.End; pc++ {
			switch program.Instructions[pc].Opcode {
			case ir.IN, ir.OUT:
				return true
			}
		}
	}
	return false
}

// FromCompileResult constructs a simulator from a completed compile. It
// refuses to proceed if the compile recorded any error-severity
// diagnostic.
func FromCompileResult(result *CompileResult) (*vm.Machine, error) {
	if result.HasErrors() {
		return nil, fmt.Errorf("snx: cannot construct simulator: %s", result.FormatDiagnostics())
	}
	return vm.New(result.IR, result.RegCount, result.MemSize)
}

// FromSource compiles source and constructs a simulator in one step.
func FromSource(source string, regCount, memSize int, runStaticChecks bool) (*vm.Machine, *CompileResult, error) {
	result := CompileProgram(source, regCount, memSize, runStaticChecks)
	machine, err := FromCompileResult(result)
	return machine, result, err
}
