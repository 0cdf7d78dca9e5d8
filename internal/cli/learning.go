package cli

import (
	"github.com/spf13/cobra"
)

// NewLearningCmd creates the learning command group.
func NewLearningCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "learning",
		Short: "Manage learned patterns and preferences",
		Long: `The learning store records every recommendation, the patterns learned per
category and project context, and your preference weights.

All data is stored locally in ~/.autoflags/learning.db. Project paths are
stored as SHA-256 fingerprints only.

Commands:
  status  Show learning statistics
  export  Export learned patterns and preferences as JSON
  evict   Remove data unused for longer than retention.max_age
  clear   Delete all learning data`,
	}

	cmd.AddCommand(newLearningStatusCmd())
	cmd.AddCommand(newLearningExportCmd())
	cmd.AddCommand(newLearningEvictCmd())
	cmd.AddCommand(newLearningClearCmd())

	return cmd
}
