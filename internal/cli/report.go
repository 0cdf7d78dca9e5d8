package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewReportCmd creates the 'report' command.
func NewReportCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "report [user-id]",
		Short: "Show the personalization report",
		Long: `Compare the last week's outcomes with the weeks before it: success rate,
mean confidence, the share of personalized recommendations and your
strongest preferences. Windows are set in the 'report' config section.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp()

			user := ""
			if len(args) == 1 {
				user = args[0]
			}
			report, err := a.Report(cmd.Context(), user)
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderReport(report))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	return cmd
}
