package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Soochol/superclaude-auto-flags/internal/app"
)

// NewRecommendCmd creates the 'recommend' command.
func NewRecommendCmd() *cobra.Command {
	var in app.RecommendInput
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "recommend [request text]",
		Short: "Recommend flags for a request",
		Long: `Recommend SuperClaude flags for a request.

The category is matched from the request text unless --category is given.
The project in --dir (default: current directory) is inspected for its size,
languages and frameworks so patterns learned on similar projects apply.

The recommendation is recorded; report the outcome with 'autoflags feedback'.`,
		Example: `  autoflags recommend "audit the login handler for injection"
  autoflags recommend --category implement_ui --dir ./web
  autoflags recommend --category security --json
  autoflags recommend --explain "speed up the report query"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Text = strings.Join(args, " ")
			if in.Text == "" && in.Category == "" {
				return fmt.Errorf("give the request text or --category")
			}

			a, closeApp, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp()

			res, err := a.Recommend(cmd.Context(), in)
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderRecommendation(res))
			if in.Explain {
				fmt.Fprint(cmd.OutOrStdout(), renderMatches(res.Matches, res.Category))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&in.Category, "category", "c", "", "Request category (skips text matching)")
	cmd.Flags().StringVarP(&in.Dir, "dir", "d", ".", "Project directory to inspect")
	cmd.Flags().StringVarP(&in.UserID, "user", "u", "", "User id (default: local user)")
	cmd.Flags().BoolVar(&in.Explain, "explain", false, "Show how the request text matched each category")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	return cmd
}
