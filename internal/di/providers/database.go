package providers

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/lucidlyapp/lucidly/internal/config"
	"github.com/lucidlyapp/lucidly/internal/gateway"
	"github.com/lucidlyapp/lucidly/internal/gateway/postgres"
	"github.com/lucidlyapp/lucidly/internal/gateway/rest"
	"github.com/lucidlyapp/lucidly/internal/logger"
	"github.com/lucidlyapp/lucidly/internal/migrations"
	"github.com/lucidlyapp/lucidly/internal/sse"
	"github.com/lucidlyapp/lucidly/internal/store"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Component("sse"))

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// GatewayHandle wraps the configured book gateway with shutdown capability.
type GatewayHandle struct {
	gateway.Gateway
	close func() error
}

// Shutdown implements do.Shutdownable.
func (h *GatewayHandle) Shutdown() error {
	if h.close == nil {
		return nil
	}
	return h.close()
}

// ProvideGateway provides the book gateway selected by the store backend setting.
func ProvideGateway(i do.Injector) (*GatewayHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	switch cfg.Store.Backend {
	case config.BackendREST:
		client := rest.New(rest.Config{
			BaseURL: cfg.Supabase.URL,
			AnonKey: cfg.Supabase.AnonKey,
			Timeout: cfg.Store.Timeout,
			RPS:     cfg.Store.RateLimit,
			Burst:   cfg.Store.RateBurst,
		}, log.Component("rest"))

		log.Info("Using hosted REST backend", "url", cfg.Supabase.URL)
		return &GatewayHandle{Gateway: client, close: func() error {
			client.Close()
			return nil
		}}, nil

	case config.BackendPostgres:
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := migrations.Up(ctx, cfg.Store.DatabaseURL); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		db, err := postgres.Open(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}

		log.Info("Using Postgres backend")
		return &GatewayHandle{
			Gateway: postgres.NewBooks(db, cfg.Store.Timeout, log.Component("postgres")),
			close: func() error {
				db.Close()
				return nil
			},
		}, nil

	case config.BackendLocal:
		dbPath := filepath.Join(cfg.App.DataPath, "db")
		db, err := store.New(dbPath, log.Component("store"))
		if err != nil {
			return nil, err
		}

		log.Info("Using local database", "path", dbPath)
		return &GatewayHandle{Gateway: db, close: db.Close}, nil
	}

	return nil, fmt.Errorf("invalid store backend: %q", cfg.Store.Backend)
}
