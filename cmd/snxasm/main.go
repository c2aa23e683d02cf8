// Command snxasm compiles and runs a single SN/X assembly source file.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sn-x/snx-sim/config"
	"github.com/sn-x/snx-sim/snx"
	"github.com/sn-x/snx-sim/vm"
)

var (
	regCount   int
	memSize    int
	maxSteps   int
	noStatic   bool
	usePager   bool
	configPath string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(2)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "snxasm SOURCE",
		Short:        "Assemble, analyze, and run an SN/X program",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         runAssemble,
	}

	cfg := config.DefaultConfig()
	root.Flags().IntVar(&regCount, "reg-count", cfg.Execution.RegCount, "number of general-purpose registers")
	root.Flags().IntVar(&memSize, "mem-size", cfg.Execution.MemSize, "data memory size in 16-bit words")
	root.Flags().IntVar(&maxSteps, "max-steps", cfg.Execution.MaxSteps, "safety cap on executed steps")
	root.Flags().BoolVar(&noStatic, "no-static-checks", false, "skip CFG and dataflow analysis")
	root.Flags().BoolVar(&usePager, "pager", false, "page the execution trace interactively")
	root.Flags().StringVar(&configPath, "config", "", "path to a TOML config file (defaults to the platform config path)")

	return root
}

func runAssemble(cmd *cobra.Command, args []string) error {
	sourcePath := args[0]

	loadedCfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyFlagOverrides(cmd, loadedCfg)

	source, err := os.ReadFile(sourcePath) // #nosec G304 -- user-provided assembly file path
	if err != nil {
		return fmt.Errorf("reading %s: %w", sourcePath, err)
	}

	result := snx.CompileProgram(string(source), loadedCfg.Execution.RegCount, loadedCfg.Execution.MemSize, loadedCfg.Execution.RunStaticChecks)

	if len(result.Diagnostics.All()) > 0 {
		fmt.Fprint(os.Stderr, result.FormatDiagnostics())
	}

	if result.HasErrors() {
		os.Exit(1)
	}

	machine, err := snx.FromCompileResult(result)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	machine.MaxSteps = loadedCfg.Execution.MaxSteps

	if runErr := machine.Run(); runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		os.Exit(2)
	}

	if usePager {
		if pagerErr := runPager(machine); pagerErr != nil {
			return pagerErr
		}
		return nil
	}

	printTrace(machine)
	return nil
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFrom(configPath)
	}
	return config.Load()
}

// applyFlagOverrides lets any explicitly-set flag win over the loaded
// config file, while unset flags keep the config's (or default) values.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("reg-count") {
		cfg.Execution.RegCount = regCount
	}
	if cmd.Flags().Changed("mem-size") {
		cfg.Execution.MemSize = memSize
	}
	if cmd.Flags().Changed("max-steps") {
		cfg.Execution.MaxSteps = maxSteps
	}
	if cmd.Flags().Changed("no-static-checks") {
		cfg.Execution.RunStaticChecks = !noStatic
	}
}

func printTrace(machine *vm.Machine) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-6s %-24s %s\n", "PC", "INSTRUCTION", "REGISTERS")
	for _, entry := range machine.Trace {
		fmt.Fprintf(&sb, "%-6d %-24s %s\n", entry.PC, entry.InstText, formatRegs(entry.Regs))
	}
	fmt.Print(sb.String())

	if len(machine.Output) > 0 {
		fmt.Println("output:", machine.Output)
	}
}

func formatRegs(regs []uint16) string {
	parts := make([]string, len(regs))
	for i, r := range regs {
		parts[i] = fmt.Sprintf("$%d=%04x", i, r)
	}
	return strings.Join(parts, " ")
}
