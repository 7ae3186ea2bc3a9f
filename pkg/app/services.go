package app

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/dig"

	"github.com/evgeny-myasishchev/ledger.simple-banking/config"
	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/banking"
	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/dal"
	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/ledger"
)

// Injector is a function that will inject desired services
// to a target function
type Injector func(function interface{}) error

func newStorage(ctx context.Context, cfg config.Storage) (dal.Storage, error) {
	switch cfg.Driver {
	case "sqlite3":
		db, err := dal.OpenSQLiteDb(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return dal.NewSQLStorage(dal.WithSQLDb(db))
	case "postgres":
		pool, err := dal.NewPgPool(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return dal.NewPgStorage(dal.WithPgPool(pool), dal.WithPgDSN(cfg.DSN))
	case "bolt":
		return dal.NewBoltStorage(cfg.DSN)
	}
	return nil, errors.Errorf("Unsupported storage driver: %v", cfg.Driver)
}

// BootstrapServices setup di container with all app services
func BootstrapServices(ctx context.Context, appCfg *config.Config) Injector {
	c := dig.New()

	c.Provide(func() (dal.Storage, error) {
		return newStorage(ctx, appCfg.Storage)
	})

	c.Provide(func(storage dal.Storage) ledger.Service {
		return ledger.NewService(
			ledger.WithStorage(storage),
			ledger.WithAllocatorOpts(banking.WithMaxAttempts(appCfg.Accounts.NumberMaxAttempts)),
		)
	})

	return func(function interface{}) error {
		return c.Invoke(function)
	}
}
