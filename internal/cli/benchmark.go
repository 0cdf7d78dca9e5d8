package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Soochol/superclaude-auto-flags/internal/benchmark"
)

// NewBenchmarkCmd creates the 'benchmark' command for latency testing.
func NewBenchmarkCmd() *cobra.Command {
	var iterations int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Measure recommendation latency against the latency budget",
		Long: `Issue recommendations for every category against the real learning store
and report min/avg/p95/max latency and the share of calls within
engine.latency_budget. Recommendations made here are not recorded.`,
		Example: `  # Run benchmark
  autoflags benchmark

  # Run with more iterations
  autoflags benchmark --iterations 2000 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp()

			result, err := benchmark.Run(cmd.Context(), a.Engine, iterations)
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderBenchmark(result))
			return nil
		},
	}

	cmd.Flags().IntVarP(&iterations, "iterations", "n", 500, "Number of recommendations")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	return cmd
}
