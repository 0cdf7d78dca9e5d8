package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Soochol/superclaude-auto-flags/internal/learning"
	"github.com/Soochol/superclaude-auto-flags/internal/rules"
)

// NewFeedbackCmd creates the 'feedback' command.
func NewFeedbackCmd() *cobra.Command {
	var (
		failed      bool
		rating      int
		executionMs int64
		actualFlags string
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "feedback <interaction-id>",
		Short: "Report the outcome of a recommendation",
		Long: `Report how a recommendation worked out. Each interaction accepts feedback once.

A --rating (1-5) overrides success/failure. --time-ms is compared with the
recent average for the category: faster runs strengthen the signal.
--flags records the flags you actually used when they differ.`,
		Example: `  autoflags feedback 42
  autoflags feedback 42 --failed
  autoflags feedback 42 --rating 5 --time-ms 1800
  autoflags feedback 42 --flags "--persona-security --think-hard"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid interaction id %q", args[0])
			}

			fb := learning.Feedback{InteractionID: id, Success: !failed}
			if cmd.Flags().Changed("rating") {
				fb.Rating = &rating
			}
			if cmd.Flags().Changed("time-ms") {
				fb.ExecutionMs = &executionMs
			}
			if actualFlags != "" {
				fb.ActualFlags = rules.ParseFlags(actualFlags)
			}

			a, closeApp, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp()

			res, err := a.SubmitFeedback(cmd.Context(), fb)
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderFeedback(res))
			return nil
		},
	}

	cmd.Flags().BoolVar(&failed, "failed", false, "The recommendation did not work")
	cmd.Flags().IntVarP(&rating, "rating", "r", 0, "Explicit rating from 1 to 5")
	cmd.Flags().Int64Var(&executionMs, "time-ms", 0, "Execution time in milliseconds")
	cmd.Flags().StringVar(&actualFlags, "flags", "", "Flags actually used")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	return cmd
}
