package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edukit/gradebatch/internal/audit"
	"github.com/edukit/gradebatch/internal/config"
	"github.com/edukit/gradebatch/internal/records"
	"github.com/edukit/gradebatch/internal/service"
	"github.com/edukit/gradebatch/pkg/log"
)

// Execute runs the root command under the process context.
func Execute(ctx context.Context, version string) error {
	return NewRootCmd(version).ExecuteContext(ctx)
}

// NewRootCmd creates the gradebatch root command with all subcommands
// attached.
func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "gradebatch",
		Short:   "Batch grade report exporter",
		Long:    "gradebatch renders per-student grade reports in parallel:\nseed or import a gradebook, export it as CSV, JSON or binary\nreports, and watch the run live.",
		Version: version,
		Example: `  # Fill the gradebook with a demo roster
  gradebatch seed --students 50

  # Export every format with 8 workers
  gradebatch export --format all --workers 8 --output ./reports

  # Run the daemon: nightly schedule plus status API
  gradebatch serve --addr :8080`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error (default from config)")
	cmd.PersistentFlags().String("data-dir", "", "directory holding the gradebook database and audit trail (default from config)")

	cmd.AddCommand(
		NewExportCmd(),
		NewServeCmd(),
		NewImportCmd(),
		NewSeedCmd(),
		NewConfigCmd(),
	)
	return cmd
}

// loadConfig assembles the configuration with persistent flag overrides
// applied, then points logging at the configured sink.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	logLevel, _ := cmd.Flags().GetString("log-level")
	dataDir, _ := cmd.Flags().GetString("data-dir")

	cfg, err := config.New(
		config.WithLogLevel(logLevel),
		config.WithDataDir(dataDir),
	)
	if err != nil {
		return nil, err
	}
	initLogging(cfg)
	return cfg, nil
}

func initLogging(cfg *config.Config) {
	level := log.ParseLevel(cfg.Log.Level)
	if cfg.Log.File != "" {
		if _, err := log.InitFileLogger(cfg.Log.File, level); err == nil {
			return
		}
		// Unwritable log file falls back to stdout.
	}
	log.InitLogger(level)
}

// openService builds the record store, audit trail and service. The
// returned cleanup closes both.
func openService(cfg *config.Config) (*service.Service, func(), error) {
	store, err := records.NewStore(cfg.DBPath())
	if err != nil {
		return nil, nil, fmt.Errorf("open record store: %w", err)
	}
	trail, err := audit.Open(cfg.AuditPath())
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("open audit trail: %w", err)
	}
	cleanup := func() {
		_ = trail.Close()
		_ = store.Close()
	}
	return service.New(cfg, store, trail), cleanup, nil
}
