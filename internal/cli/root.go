/*
Package cli implements the autoflags command tree.

Every command that needs the engine opens an app.App through openApp, which
loads the configuration, builds the zap logger and opens the learning store.
Human-readable output is coloured with fatih/color; --json prints the raw
result instead.
*/
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Soochol/superclaude-auto-flags/internal/app"
	"github.com/Soochol/superclaude-auto-flags/internal/config"
	"github.com/Soochol/superclaude-auto-flags/internal/logging"
	"github.com/Soochol/superclaude-auto-flags/internal/version"
)

// NewRootCmd builds the autoflags command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "autoflags",
		Short: "Adaptive SuperClaude flag recommendations",
		Long: `autoflags recommends SuperClaude flags (personas, focus, thinking depth)
for a request and learns from the outcome.

Recommendations start from a static rule table. As feedback arrives, patterns
learned for similar projects and your personal preference weights take over
whenever there is enough evidence. Everything is stored locally in
~/.autoflags/learning.db.`,
		Version:       version.Get().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.autoflags/config.yaml)")

	rootCmd.AddCommand(NewRecommendCmd())
	rootCmd.AddCommand(NewFeedbackCmd())
	rootCmd.AddCommand(NewReportCmd())
	rootCmd.AddCommand(NewLearningCmd())
	rootCmd.AddCommand(NewRulesCmd())
	rootCmd.AddCommand(NewConfigCmd())
	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewHTTPCmd())
	rootCmd.AddCommand(NewBenchmarkCmd())
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// loadConfig honours --config when set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

// openApp loads config, builds the logger and opens the app. The returned
// close function must be called when the command is done.
func openApp(cmd *cobra.Command) (*app.App, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, err
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		_ = logging.Sync(logger)
		return nil, nil, err
	}

	return a, func() {
		if err := a.Close(); err != nil {
			logger.Warn("failed to close app", zap.Error(err))
		}
		_ = logging.Sync(logger)
	}, nil
}

// writeJSON pretty-prints v for --json output.
func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
