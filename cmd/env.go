package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/certi-mate/compliance-api/internal/access"
	"github.com/certi-mate/compliance-api/internal/diagnostic"
	"github.com/certi-mate/compliance-api/internal/gateway"
	"github.com/certi-mate/compliance-api/internal/prompt"
	"github.com/certi-mate/compliance-api/internal/schema"
	"github.com/certi-mate/compliance-api/internal/store"
	anthropicpkg "github.com/certi-mate/compliance-api/pkg/anthropic"
)

// env bundles the wired components most commands need.
type env struct {
	Store store.Store
	Gate  *access.Gate
	Orch  *diagnostic.Orchestrator
}

func (e *env) Close() {
	if e.Store != nil {
		e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "certimate.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.MaxConns, cfg.Store.MinConns)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv wires the store, prompt builder, gateway, orchestrator, and access
// gate from config. Commands that run diagnostics need the Anthropic key;
// everything else works without it.
func initEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	builder, err := prompt.New(schema.MustLoad(), cfg.Prompts.Language)
	if err != nil {
		st.Close()
		return nil, eris.Wrap(err, "init prompt builder")
	}

	gw := gateway.New(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic)

	return &env{
		Store: st,
		Gate:  access.New(st, cfg.Access.Enforce),
		Orch:  diagnostic.New(builder, gw, st),
	}, nil
}
