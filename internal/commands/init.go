package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/grandlivre/internal/accounts"
	"github.com/cleared-dev/grandlivre/internal/config"
	"github.com/cleared-dev/grandlivre/internal/journal"
	"github.com/cleared-dev/grandlivre/internal/logging"
	"github.com/cleared-dev/grandlivre/internal/model"
	"github.com/cleared-dev/grandlivre/internal/numbering"
	"github.com/cleared-dev/grandlivre/internal/store"
)

type initOptions struct {
	name   string
	chart  string
	driver string
	dsn    string
	year   int
	empty  bool
}

func newInitCommand(a *app) *cobra.Command {
	var opts initOptions

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create an enterprise ledger and write its configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, a.configPath, opts)
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "enterprise name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&opts.chart, "chart", string(model.ChartFR), "chart of accounts: FR or OHADA")
	cmd.Flags().StringVar(&opts.driver, "driver", store.DriverSQLite, "database driver: sqlite or postgres")
	cmd.Flags().StringVar(&opts.dsn, "dsn", "", "database file or connection string (default grandlivre.db next to the config)")
	cmd.Flags().IntVar(&opts.year, "year", 0, "open a calendar-year period for this year")
	cmd.Flags().BoolVar(&opts.empty, "empty", false, "do not seed the default chart of accounts")

	return cmd
}

func runInit(cmd *cobra.Command, configPath string, opts initOptions) error {
	cfg := config.Default(opts.name, model.Chart(opts.chart))
	cfg.Database.Driver = opts.driver
	cfg.Database.DSN = opts.dsn
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = filepath.Join(filepath.Dir(configPath), "grandlivre.db")
	}
	if err := config.ApplyEnv(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	db, err := openStore(cmd, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	ctx := cmd.Context()

	ent := model.Enterprise{Name: cfg.Enterprise.Name, Chart: cfg.Enterprise.Chart}
	err = db.InTx(ctx, func(tx *store.Tx) error {
		return tx.InsertEnterprise(ctx, &ent)
	})
	if err != nil {
		return fmt.Errorf("creating enterprise: %w", err)
	}
	cfg.Enterprise.ID = ent.ID

	seeded := 0
	if !opts.empty {
		seeded, err = accounts.NewService(db, log).Seed(ctx, ent.ID)
		if err != nil {
			return fmt.Errorf("seeding chart of accounts: %w", err)
		}
	}
	if opts.year != 0 {
		periods := journal.NewService(db, numbering.New(db, log), nil, log)
		start := time.Date(opts.year, time.January, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(opts.year, time.December, 31, 0, 0, 0, 0, time.UTC)
		if _, err := periods.OpenPeriod(ctx, ent.ID, start, end); err != nil {
			return err
		}
	}

	if err := config.Save(configPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s ledger for %s (enterprise %d, %d accounts)\n",
		ent.Chart, ent.Name, ent.ID, seeded)
	return nil
}
