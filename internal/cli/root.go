// Package cli implements the gocoro command line.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/gocoro/internal/config"
	"github.com/me/gocoro/internal/journal"
	"github.com/me/gocoro/internal/logging"
)

var (
	flagConfig    string
	flagDB        string
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	cfg    config.Config
	logger *slog.Logger
)

// defaultServer returns the status API URL, checking GOCORO_SERVER first.
func defaultServer() string {
	if s := os.Getenv("GOCORO_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the gocoro CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gocoro",
		Short: "gocoro runs cooperative task workloads on a bounded tick scheduler",
		Long: "gocoro loads YAML workloads of step-function tasks, drives them on a fixed-capacity\n" +
			"cooperative scheduler and journals every task start and finish to SQLite.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(flagConfig)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("log-level") || cfg.LogLevel == "" {
				cfg.LogLevel = flagLogLevel
			}
			if flags.Changed("log-format") || cfg.LogFormat == "" {
				cfg.LogFormat = flagLogFormat
			}
			if flags.Changed("db") {
				cfg.DBPath = flagDB
			}
			if flagDebug {
				cfg.LogLevel = "debug"
			}
			logger = logging.NewLoggerWithWriter(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, cmd.ErrOrStderr())
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to a YAML config file")
	root.PersistentFlags().StringVar(&flagDB, "db", "", "Journal database path (default ~/.gocoro/journal.db)")
	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "Status API URL for remote commands (or GOCORO_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newRunCmd(),
		newValidateCmd(),
		newHistoryCmd(),
		newEventsCmd(),
		newStatusCmd(),
	)

	return root
}

// openJournal opens and migrates the configured journal database.
func openJournal(ctx context.Context) (*journal.SQLiteStore, error) {
	path, err := cfg.ResolveDBPath()
	if err != nil {
		return nil, err
	}
	st, err := journal.NewSQLiteStore(path, logger)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	logger.Debug("journal ready", "path", path)
	return st, nil
}
