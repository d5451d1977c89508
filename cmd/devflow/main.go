// devflow: phase-driven development workflow MCP server.
//
// Walks a project through requirements, confirmation, design, tasks and
// completion, persisting every step and writing a markdown document for
// each phase.
//
// Usage:
//
//	devflow serve      # Start MCP server (stdio transport)
//	devflow projects   # List stored projects
//	devflow show <id>  # Render a generated document
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/HendryAvila/devflow/internal/config"
	"github.com/HendryAvila/devflow/internal/logging"
	devserver "github.com/HendryAvila/devflow/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath  string
	dataDir     string
	logLevel    string
	noBackup    bool
	metricsAddr string
}

func rootCmd() *cobra.Command {
	var flags globalFlags

	cmd := &cobra.Command{
		Use:   "devflow",
		Short: "Phase-driven development workflow MCP server",
		Long: `devflow guides an AI assistant and its user through a fixed workflow:
init, requirement, confirmation, design, todo, task_complete and finish.

Every phase is validated, saved with automatic backups, and rendered to a
markdown document under <data_dir>/output/<project id>/.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML, default ~/.devflow/config.yaml)")
	pf.StringVar(&flags.dataDir, "data-dir", "", "Data directory (overrides config)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.BoolVar(&flags.noBackup, "no-backup", false, "Disable automatic backups")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	cmd.AddCommand(
		serveCmd(&flags),
		projectsCmd(&flags),
		statsCmd(&flags),
		backupsCmd(&flags),
		restoreCmd(&flags),
		showCmd(&flags),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "devflow v%s\n", devserver.Version)
			},
		},
	)
	return cmd
}

// settings loads the config file and environment, then applies flags.
func (f *globalFlags) settings(cmd *cobra.Command) (*config.Settings, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	fs := cmd.Flags()
	if fs.Changed("data-dir") {
		cfg.DataDir = f.dataDir
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if fs.Changed("no-backup") {
		cfg.AutoBackup = !f.noBackup
	}
	if fs.Changed("metrics-addr") {
		cfg.MetricsAddr = f.metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// open builds a wired App for subcommands. The returned cleanup flushes the
// logger and closes the journal.
func (f *globalFlags) open(cmd *cobra.Command) (*devserver.App, func(), error) {
	cfg, err := f.settings(cmd)
	if err != nil {
		return nil, nil, err
	}
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	app, cleanup, err := devserver.New(cmd.Context(), cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, nil, fmt.Errorf("creating server: %w", err)
	}
	return app, func() {
		cleanup()
		_ = log.Sync()
	}, nil
}

func serveCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Graceful shutdown on interrupt.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)

			app, cleanup, err := flags.open(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := app.Serve(ctx); err != nil && ctx.Err() == nil {
				app.Log.Error("server stopped", zap.Error(err))
				return err
			}
			return nil
		},
	}
}

// withApp runs fn against a wired App and releases it afterwards.
func withApp(flags *globalFlags, fn func(ctx context.Context, cmd *cobra.Command, app *devserver.App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, cleanup, err := flags.open(cmd)
		if err != nil {
			return err
		}
		defer cleanup()
		return fn(cmd.Context(), cmd, app, args)
	}
}
