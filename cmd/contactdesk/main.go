// Package main is the contactdesk command line: a terminal client for the
// contacts service with an interactive mode and scriptable subcommands.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"contactdesk/internal/config"
	"contactdesk/internal/logging"
)

var (
	// Global flags
	configPath string
	serverURL  string
	verbose    bool
	timeout    time.Duration

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "contactdesk",
	Short: "contactdesk - terminal client for the contacts service",
	Long: `contactdesk manages your contacts on a contacts service.

Run without arguments to start the interactive interface. Subcommands cover
the same operations for scripting: sign in, list, add, edit, delete, and
export or import the whole collection as JSON or XML.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zc := zap.NewProductionConfig()
		zc.Encoding = "console"
		zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return loadConfig()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runInteractive,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "", "Contacts service base URL")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Per-request timeout (default from config)")

	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, whoamiCmd)
	rootCmd.AddCommand(listCmd, showCmd, addCmd, editCmd, deleteCmd)
	rootCmd.AddCommand(exportCmd, importCmd)
	rootCmd.AddCommand(serveDevCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig() error {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	var err error
	if cfg, err = config.Load(path); err != nil {
		return err
	}
	if serverURL != "" {
		cfg.Server.BaseURL = serverURL
	}
	if verbose {
		cfg.Logging.DebugMode = true
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := logging.Initialize(cfg.State.Dir, logging.Config{
		DebugMode:  cfg.Logging.DebugMode,
		Level:      cfg.Logging.Level,
		JSONFormat: cfg.Logging.JSONFormat(),
		Categories: cfg.Logging.Categories,
	}); err != nil {
		logger.Warn("file logging disabled", zap.Error(err))
	}
	logging.Boot("contactdesk starting: server=%s state=%s", cfg.Server.BaseURL, cfg.State.Dir)
	return nil
}

func requestTimeout() time.Duration {
	if timeout > 0 {
		return timeout
	}
	return cfg.GetServerTimeout()
}
