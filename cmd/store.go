package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/truepath-leads/intake-cli/internal/store"
	"github.com/truepath-leads/intake-cli/pkg/crm"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "intake.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initCRM() crm.Client {
	opts := []crm.Option{crm.WithRateLimit(cfg.CRM.RateLimit)}
	if cfg.CRM.BaseURL != "" {
		opts = append(opts, crm.WithBaseURL(cfg.CRM.BaseURL))
	}
	return crm.NewClient(cfg.CRM.Token, opts...)
}
