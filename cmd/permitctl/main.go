// Command permitctl drives the permit wizards from the command line: it validates, reviews, and
// submits applications described in an answers file, and runs single verification or extraction
// checks against the configured permit office.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"permitflow/internal/config"
	"permitflow/internal/logger"
)

var (
	logLevel string
	strict   bool

	cfg *config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "permitctl",
	Short:         "Validate, review, and submit business permit applications",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		if cmd.Flags().Changed("strict") {
			cfg.Verification.Strict = strict
		}
		log, err = logger.New(cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&strict, "strict", false, "require ID-only attachments to pass verification")

	rootCmd.AddCommand(formsCmd, validateCmd, verifyCmd, extractCmd, reviewCmd, submitCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
