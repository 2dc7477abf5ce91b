// director is a chat frontend with an orchestration layer: after each
// assistant turn it can ask a guidance model for the next narrative
// direction and inject it back into the conversation.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"director/internal/config"
	"director/internal/logging"
)

var (
	// Global flags
	verbose   bool
	workspace string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "director",
	Short: "director - LLM-guided story orchestration for chat sessions",
	Long: `director hosts a chat session and, once started, runs guidance rounds:
after each assistant turn it asks a second model what should happen next
and injects that direction as a new user turn, for a configured number
of rounds.

Run without arguments to start the interactive session.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg = zap.NewDevelopmentConfig()
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err := config.Load(config.Path(workspace))
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return logging.Configure(stateDir(), logging.Options{
			DebugMode:  cfg.Logging.DebugMode,
			Level:      cfg.Logging.Level,
			Categories: cfg.Logging.Categories,
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// stateDir returns the workspace state directory.
func stateDir() string {
	return filepath.Join(workspace, config.StateDirName)
}

func init() {
	// Assigned here rather than in the literal to avoid an initialization
	// cycle: runSession refers back to rootCmd.
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runSession()
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", ".", "workspace directory")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(presetCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}
