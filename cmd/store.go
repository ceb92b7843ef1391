package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/calder-retail/replenish-cli/internal/master"
)

func initStore(ctx context.Context) (master.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "replenish.db"
		}
		return master.NewSQLite(dsn)
	case "postgres":
		return master.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}
