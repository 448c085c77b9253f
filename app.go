package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ecoroute/ecoroute-go/internal/api"
	"github.com/ecoroute/ecoroute-go/internal/config"
	"github.com/ecoroute/ecoroute-go/internal/credstore"
	"github.com/ecoroute/ecoroute-go/internal/session"
)

// App wires the client stack for a command: credential store, session
// manager, and the authenticated gateway. Constructed once per invocation
// and passed explicitly — no ambient globals hold session or cache state.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Store   credstore.Store
	Session *session.Manager
	Auth    *api.AuthClient
	Client  *api.Client
}

// newApp assembles the stack and restores any persisted session. The
// returned App is ready for API calls when Session.State() is
// Authenticated; commands that require auth should check and direct the
// user to login otherwise.
func newApp(ctx context.Context) (*App, error) {
	logger := buildLogger()
	cfg := resolvedCfg

	store, err := credstore.NewSQLite(cfg.ResolveStorePath(), logger)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.APITimeout()}
	authClient := api.NewAuthClient(cfg.API.BaseURL, httpClient, logger)

	manager := session.NewManager(authClient, store, session.Config{
		TokenLifetime:   cfg.TokenLifetime(),
		RefreshInterval: cfg.RefreshInterval(),
	}, logger)

	if err := manager.Init(ctx); err != nil {
		store.Close()
		return nil, err
	}

	client := api.NewClient(cfg.API.BaseURL, httpClient, manager, logger)

	return &App{
		Config:  cfg,
		Logger:  logger,
		Store:   store,
		Session: manager,
		Auth:    authClient,
		Client:  client,
	}, nil
}

// Close stops the renewal scheduler and releases the credential store.
func (a *App) Close() {
	a.Session.Close()

	if err := a.Store.Close(); err != nil {
		a.Logger.Warn("closing credential store", slog.String("error", err.Error()))
	}
}
