// Package api provides the HTTP server: the HTML pages and HTMX fragments of
// the web app, the typed JSON API, the live-update stream, and sign-in.
package api

import (
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/lucidlyapp/lucidly/internal/auth"
	"github.com/lucidlyapp/lucidly/internal/domain"
	"github.com/lucidlyapp/lucidly/internal/search"
	"github.com/lucidlyapp/lucidly/internal/sse"
	"github.com/lucidlyapp/lucidly/internal/tracker"
	"github.com/lucidlyapp/lucidly/internal/validation"
)

// Options configures the server.
type Options struct {
	Goal          domain.Goal
	SiteURL       string // public origin, e.g. https://lucidly.app
	CORSOrigins   []string
	SecureCookies bool
}

// Deps are the components the server routes requests to.
type Deps struct {
	Sessions *auth.Sessions
	Registry *tracker.Registry
	Search   *search.Index
	SSE      *sse.Manager
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	sessions        *auth.Sessions
	registry        *tracker.Registry
	search          *search.Index
	sseManager      *sse.Manager
	sseHandler      *sse.Handler
	validator       *validation.Validator
	pages           *template.Template
	opts            Options
	router          *chi.Mux
	api             huma.API
	authRateLimiter *RateLimiter
	unsubscribe     func()
	logger          *slog.Logger
	now             func() time.Time
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(deps Deps, opts Options, logger *slog.Logger) *Server {
	opts.SiteURL = strings.TrimSuffix(opts.SiteURL, "/")

	router := chi.NewRouter()
	s := &Server{
		sessions:        deps.Sessions,
		registry:        deps.Registry,
		search:          deps.Search,
		sseManager:      deps.SSE,
		validator:       validation.New(),
		pages:           parsePages(),
		opts:            opts,
		router:          router,
		authRateLimiter: NewRateLimiter(20, time.Minute, 10),
		logger:          logger,
		now:             time.Now,
	}
	s.sseHandler = sse.NewHandler(deps.SSE, s.mountGate, logger)
	s.unsubscribe = deps.Sessions.Subscribe(s.onSessionEvent)

	s.setupMiddleware()

	humaConfig := huma.DefaultConfig("Lucidly API", "1.0.0")
	humaConfig.Info.Description = "Reading tracker API. Mutations apply locally first and are confirmed by the store in the background."
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"session": {
			Type: "apiKey",
			In:   "cookie",
			Name: SessionCookie,
		},
	}
	s.api = humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerBookRoutes()
	s.registerStatsRoutes()
	s.registerSearchRoutes()
	s.registerErrorRoutes()
	s.registerWebRoutes()
	s.registerAuthRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	s.unsubscribe()
	s.authRateLimiter.Stop()
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	if len(s.opts.CORSOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.opts.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "HX-Request", "HX-Target", "HX-Current-URL"},
			ExposedHeaders:   []string{"HX-Trigger", "HX-Redirect"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	s.router.Use(s.sessionMiddleware)
}

// requestLogger logs one line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// The stream logs its own lifecycle.
		if r.URL.Path == "/events" {
			return
		}
		s.logger.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	})
}
