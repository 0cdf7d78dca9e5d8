package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// newLearningStatusCmd shows learning statistics.
func newLearningStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show learning statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp()

			status, err := collectStatus(cmd.Context(), a)
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), status)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderStatus(status))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	return cmd
}

// newLearningExportCmd exports learned state as JSON.
func newLearningExportCmd() *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export learned patterns and preferences as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp()

			export, err := collectExport(cmd.Context(), a, time.Now())
			if err != nil {
				return err
			}

			output, err := formatJSON(export)
			if err != nil {
				return fmt.Errorf("failed to format JSON: %w", err)
			}

			if outputFile != "" {
				if err := os.WriteFile(outputFile, []byte(output+"\n"), 0o600); err != nil {
					return fmt.Errorf("failed to write file: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d patterns and %d preferences to %s\n",
					len(export.Patterns), len(export.Preferences), outputFile)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), output)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

// newLearningEvictCmd applies the retention policy.
func newLearningEvictCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "evict",
		Short: "Remove patterns and interactions older than retention.max_age",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp()

			res, err := a.Evict(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Evicted %d patterns and %d interactions unused for %s\n",
				res.Patterns, res.Interactions, a.Config.Retention.MaxAge)
			return nil
		},
	}
}

// newLearningClearCmd deletes all learning data.
func newLearningClearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all learning data",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				fmt.Fprintln(cmd.OutOrStdout(), "This deletes every interaction, pattern and preference.")
				fmt.Fprintln(cmd.OutOrStdout(), "Run again with --yes to confirm.")
				return nil
			}

			a, closeApp, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp()

			if err := a.Store.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("failed to clear learning data: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Learning data cleared successfully")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm deletion")

	return cmd
}
