package providers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/samber/do/v2"

	"github.com/lucidlyapp/lucidly/internal/api"
	"github.com/lucidlyapp/lucidly/internal/auth"
	"github.com/lucidlyapp/lucidly/internal/config"
	"github.com/lucidlyapp/lucidly/internal/domain"
	"github.com/lucidlyapp/lucidly/internal/logger"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	handler *api.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Server.Shutdown(ctx)
	h.handler.Close()
	return err
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	sessions := do.MustInvoke[*auth.Sessions](i)
	registry := do.MustInvoke[*RegistryHandle](i)
	index := do.MustInvoke[*SearchIndexHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)

	handler := api.NewServer(api.Deps{
		Sessions: sessions,
		Registry: registry.Registry,
		Search:   index.Index,
		SSE:      sseHandle.Manager,
	}, api.Options{
		Goal:          domain.Goal{Books: cfg.Reading.Goal, Year: cfg.Reading.Year},
		SiteURL:       cfg.Server.SiteURL,
		CORSOrigins:   cfg.Server.CORSOrigins,
		SecureCookies: strings.HasPrefix(cfg.Server.SiteURL, "https://"),
	}, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr, "site_url", cfg.Server.SiteURL)

	return &HTTPServerHandle{Server: srv, handler: handler}, nil
}
