package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cleared-dev/grandlivre/internal/accounts"
	"github.com/cleared-dev/grandlivre/internal/config"
	"github.com/cleared-dev/grandlivre/internal/journal"
	"github.com/cleared-dev/grandlivre/internal/logging"
	"github.com/cleared-dev/grandlivre/internal/numbering"
	"github.com/cleared-dev/grandlivre/internal/propagation"
	"github.com/cleared-dev/grandlivre/internal/statements"
	"github.com/cleared-dev/grandlivre/internal/store"
)

// app holds what a command needs once the ledger is open.
type app struct {
	configPath string
	user       string

	cfg        *config.Config
	log        *zap.Logger
	db         *store.DB
	accounts   *accounts.Service
	journal    *journal.Service
	prop       *propagation.Service
	statements *statements.Engine
}

func (a *app) enterpriseID() int64 { return a.cfg.Enterprise.ID }

// withLedger opens the configured ledger around fn.
func (a *app) withLedger(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		if cfg.Enterprise.ID == 0 {
			return errors.New("configuration has no enterprise id; run grandlivre init first")
		}
		log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		db, err := openStore(cmd, cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		a.cfg, a.log, a.db = cfg, log, db
		a.accounts = accounts.NewService(db, log)
		a.prop = propagation.New(db, log)
		a.journal = journal.NewService(db, numbering.New(db, log), a.prop, log,
			journal.WithRetry(cfg.Numbering.MaxAttempts, cfg.Numbering.Backoff))
		a.statements = statements.NewEngine(db, log)
		return fn(cmd, args)
	}
}

func openStore(cmd *cobra.Command, cfg *config.Config) (*store.DB, error) {
	db, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(cmd.Context()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return db, nil
}
