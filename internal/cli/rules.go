package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Soochol/superclaude-auto-flags/internal/rules"
)

// NewRulesCmd creates the 'rules' command group.
func NewRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect the static rule table",
	}
	cmd.AddCommand(newRulesListCmd())
	return cmd
}

// newRulesListCmd lists every category of the loaded rule table.
func newRulesListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List rule categories with their flags",
		Long: `Display every category of the rule table in use: ~/.autoflags/rules.yaml
when present (rules.path in config), otherwise the built-in table.
Entries that failed to load are reported as warnings.`,
		Example: `  autoflags rules list
  autoflags rules ls --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			table, warnings, err := rules.Load(cfg.Rules.Path)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v (using built-in rules)\n", err)
			}

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"version": table.Version(),
					"entries": table.Entries(),
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderRules(table, warnings))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	return cmd
}
