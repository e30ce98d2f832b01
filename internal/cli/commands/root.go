// Package commands implements the whomstctl command tree.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"whomst/internal/backend"
	"whomst/internal/cli"
	"whomst/internal/config"
	"whomst/internal/log"
	"whomst/internal/store"
)

// app carries the settings every subcommand shares.
type app struct {
	out    io.Writer
	errOut io.Writer

	backend  string
	dataDir  string
	dbPath   string
	policy   string
	logLevel string
	days     int

	cfg    *config.Config
	logger *log.Logger
}

// NewRootCmd builds the command tree. Flag defaults come from the
// environment, so a .env file configures the CLI the same way it
// configures the server.
func NewRootCmd(out, errOut io.Writer) *cobra.Command {
	cfg := config.Load()
	a := &app{out: out, errOut: errOut, cfg: cfg}

	root := &cobra.Command{
		Use:           "whomstctl",
		Short:         "Shared expense ledger from the terminal",
		Long:          "Record, remove, list and report shared expenses in the same store the whomst server uses.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.backend, "backend", cfg.DataBackend, fmt.Sprintf("Storage backend %v", backend.GetBackendTypeStrings()))
	flags.StringVarP(&a.dataDir, "data-dir", "d", cfg.DataDir, "Entry directory (files backend) and dump location")
	flags.StringVar(&a.dbPath, "db", cfg.SQLiteDBPath, "SQLite database path (sqlite backend)")
	flags.StringVar(&a.policy, "load-policy", cfg.LoadPolicy, "How unreadable records are handled: strict or skip")
	flags.StringVar(&a.logLevel, "log-level", "warn", "Log level for diagnostics on stderr")
	flags.IntVarP(&a.days, "days", "n", cfg.TrailingDays, "Trailing window in days, 0 for everything")

	root.AddCommand(
		a.submitCmd(),
		a.removeCmd(),
		a.listCmd(),
		a.reportCmd(),
		a.dumpCmd(),
		a.seedCmd(),
		a.importCmd(),
	)
	return root
}

// Execute is the entry point called from main.
func Execute() {
	root := NewRootCmd(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, cli.RenderWarning("%v", err))
		os.Exit(1)
	}
}

func (a *app) setup() error {
	lvl := log.ParseLevel(a.logLevel)
	a.logger = log.New(log.Config{
		Level:     lvl,
		Component: "whomstctl",
		Handler:   slog.NewTextHandler(a.errOut, &slog.HandlerOptions{Level: lvl}),
	})
	log.SetDefault(a.logger)

	a.cfg.DataBackend = a.backend
	a.cfg.DataDir = a.dataDir
	a.cfg.SQLiteDBPath = a.dbPath
	a.cfg.LoadPolicy = a.policy
	a.cfg.TrailingDays = a.days
	// The CLI never publishes; the server's worker backfills the mirror.
	a.cfg.AMQPURL = ""

	if _, err := store.ParsePolicy(a.policy); err != nil {
		return err
	}
	if a.days < 0 {
		return fmt.Errorf("invalid --days %d: must be zero or positive", a.days)
	}
	return nil
}

// open wires the configured store. Callers must run the cleanup.
func (a *app) open(ctx context.Context) (*backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(a.cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(a.logger).CreateBackend(ctx, bcfg)
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *app) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}
