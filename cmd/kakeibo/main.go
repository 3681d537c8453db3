package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"kakeibo/internal/backend"
	"kakeibo/internal/cli"
	"kakeibo/internal/config"
	"kakeibo/internal/core"
	"kakeibo/internal/services"
)

const skipBackend = "skip-backend"

// app carries what PersistentPreRunE opened for the subcommands.
type app struct {
	v         *viper.Viper
	cfg       *config.Config
	logger    *slog.Logger
	backend   *backend.BackendResult
	processor *services.RecurringProcessor
	now       func() time.Time
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{v: viper.New(), now: time.Now}

	root := &cobra.Command{
		Use:   "kakeibo",
		Short: "Household ledger with monthly recurring items",
		Long: `kakeibo keeps a household ledger of incomes and expenses.

Recurring rules (rent, salary, subscriptions) are materialized into the
ledger once per month. Running materialize again for the same month is
always safe: entries that already exist are reported as duplicates.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.String("backend", "", "data backend (memory, sqlite, postgres)")
	flags.String("sqlite-db-path", "", "SQLite database path")
	flags.String("database-url", "", "Postgres connection URL")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (text, json)")
	_ = a.v.BindPFlag("data_backend", flags.Lookup("backend"))
	_ = a.v.BindPFlag("sqlite_db_path", flags.Lookup("sqlite-db-path"))
	_ = a.v.BindPFlag("database_url", flags.Lookup("database-url"))
	_ = a.v.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("log_format", flags.Lookup("log-format"))

	root.AddCommand(materializeCmd(a))
	root.AddCommand(summarizeCmd(a))
	root.AddCommand(rulesCmd(a))
	root.AddCommand(entriesCmd(a))
	root.AddCommand(migrateCmd(a))
	return root, a
}

// execute runs one command line and always releases the backend, including
// when the command failed.
func execute(ctx context.Context, args []string, out, errOut io.Writer) error {
	root, a := newRootCmd()
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)
	err := root.ExecuteContext(ctx)
	return errors.Join(err, a.close())
}

func main() {
	cli.LoadEnvFile()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadFrom(a.v)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = cli.SetupLoggerTo(cmd.ErrOrStderr(), cfg)

	if cmd.Annotations[skipBackend] == "true" {
		return nil
	}
	res, err := cli.InitBackend(cmd.Context(), a.logger, cfg)
	if err != nil {
		return err
	}
	a.backend = res
	a.processor = services.NewRecurringProcessor(res.Store, res.Store, res.Publisher,
		services.WithConcurrency(cfg.RecurringConcurrency))
	return nil
}

func (a *app) close() error {
	if a.backend == nil {
		return nil
	}
	err := a.backend.Cleanup()
	a.backend = nil
	return err
}

// monthFlag parses --month, defaulting to the current month.
func (a *app) monthFlag(cmd *cobra.Command) (core.YearMonth, error) {
	s, _ := cmd.Flags().GetString("month")
	if s == "" {
		return core.YearMonthOf(a.now()), nil
	}
	return core.ParseYearMonth(s)
}

func addOwnerFlag(cmd *cobra.Command, required bool) {
	cmd.Flags().String("owner", "", "owner id")
	if required {
		_ = cmd.MarkFlagRequired("owner")
	}
}

func addMonthFlag(cmd *cobra.Command) {
	cmd.Flags().String("month", "", "month as YYYY-MM (default: current month)")
}
