package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dashboard-api/internal/config"
	"github.com/sells-group/dashboard-api/internal/store"
)

const defaultSQLitePath = "dashboard.db"

func initStore(ctx context.Context, c config.StoreConfig) (store.Store, error) {
	switch c.Driver {
	case "sqlite":
		dsn := c.DatabaseURL
		if dsn == "" {
			dsn = defaultSQLitePath
		}
		s, err := store.NewSQLite(dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := store.NewPostgres(ctx, c.DatabaseURL, nil)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Driver)
	}
}
