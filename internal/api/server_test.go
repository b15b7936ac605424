package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/require"

	"github.com/lucidlyapp/lucidly/internal/auth"
	"github.com/lucidlyapp/lucidly/internal/domain"
	"github.com/lucidlyapp/lucidly/internal/gateway"
	"github.com/lucidlyapp/lucidly/internal/search"
	"github.com/lucidlyapp/lucidly/internal/sse"
	"github.com/lucidlyapp/lucidly/internal/store"
	"github.com/lucidlyapp/lucidly/internal/tracker"
)

// testNow is the server clock in tests: day 59 of 2026.
var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// flakyGateway wraps the badger store and fails the operations listed in failing.
type flakyGateway struct {
	gateway.Gateway
	mu      sync.Mutex
	failing map[string]bool
}

func (g *flakyGateway) failOn(ops ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failing = make(map[string]bool, len(ops))
	for _, op := range ops {
		g.failing[op] = true
	}
}

func (g *flakyGateway) check(op string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failing[op] {
		return gateway.Wrap(op, gateway.ErrBackend, "store is read-only")
	}
	return nil
}

func (g *flakyGateway) ListBooks(ctx context.Context, scope gateway.Scope) ([]domain.Book, error) {
	if err := g.check(gateway.OpList); err != nil {
		return nil, err
	}
	return g.Gateway.ListBooks(ctx, scope)
}

func (g *flakyGateway) CreateBook(ctx context.Context, scope gateway.Scope, d domain.Draft) (domain.Book, error) {
	if err := g.check(gateway.OpCreate); err != nil {
		return domain.Book{}, err
	}
	return g.Gateway.CreateBook(ctx, scope, d)
}

func (g *flakyGateway) UpdateBook(ctx context.Context, scope gateway.Scope, id string, c domain.Changes) (domain.Book, error) {
	if err := g.check(gateway.OpUpdate); err != nil {
		return domain.Book{}, err
	}
	return g.Gateway.UpdateBook(ctx, scope, id, c)
}

func (g *flakyGateway) DeleteBook(ctx context.Context, scope gateway.Scope, id string) error {
	if err := g.check(gateway.OpDelete); err != nil {
		return err
	}
	return g.Gateway.DeleteBook(ctx, scope, id)
}

// fakeAuthServer stands in for the hosted auth service.
func fakeAuthServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["auth_code"] != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"invalid flow state"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"a1","refresh_token":"r1","expires_in":3600,
			"user":{"id":"u1","email":"u1@example.com","user_metadata":{"full_name":"Una"}}}`))
	})
	mux.HandleFunc("POST /auth/v1/logout", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

type testEnv struct {
	server   *Server
	api      humatest.TestAPI
	gw       *flakyGateway
	registry *tracker.Registry
	sessions *auth.Sessions
	index    *search.Index
	cookie   string // Cookie header of a signed-in user u1
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	st, err := store.NewInMemory(logger)
	require.NoError(t, err)
	gw := &flakyGateway{Gateway: st}

	key, err := auth.LoadOrGenerateKey(t.TempDir())
	require.NoError(t, err)
	sealer, err := auth.NewSealer(key, time.Hour)
	require.NoError(t, err)
	authServer := fakeAuthServer(t)
	provider := auth.NewProvider(auth.ProviderConfig{URL: authServer.URL, AnonKey: "anon", Timeout: time.Second},
		nil, auth.NewBroadcaster(logger), logger)
	sessions := auth.NewSessions(provider, sealer, logger)

	index, err := search.New(logger)
	require.NoError(t, err)
	manager := sse.NewManager(logger)
	registry := tracker.NewRegistry(gw, logger, index, manager)

	srv := NewServer(Deps{Sessions: sessions, Registry: registry, Search: index, SSE: manager},
		Options{Goal: domain.Goal{Books: 12, Year: 2026}, SiteURL: "http://lucidly.test/"}, logger)
	srv.now = func() time.Time { return testNow }

	t.Cleanup(func() {
		registry.Wait()
		srv.Close()
		_ = manager.Shutdown(context.Background())
		_ = index.Close()
		_ = st.Close()
	})

	sealed, err := sealer.Seal(auth.Session{
		AccessToken:  "a1",
		RefreshToken: "r1",
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         auth.User{ID: "u1", Email: "u1@example.com", Name: "Una"},
	})
	require.NoError(t, err)

	return &testEnv{
		server:   srv,
		api:      humatest.Wrap(t, srv.api),
		gw:       gw,
		registry: registry,
		sessions: sessions,
		index:    index,
		cookie:   "Cookie: " + SessionCookie + "=" + sealed,
	}
}

// seed adds books for u1 through the tracker and waits for the store.
func (e *testEnv) seed(t *testing.T, drafts ...domain.Draft) []domain.Book {
	t.Helper()
	tr := e.registry.For(gateway.Scope{UserID: "u1", AccessToken: "a1"})
	require.NoError(t, tr.Load(context.Background()))
	out := make([]domain.Book, 0, len(drafts))
	for _, d := range drafts {
		_, ticket, err := tr.Add(context.Background(), d)
		require.NoError(t, err)
		require.NoError(t, ticket.Wait(context.Background()))
		out = append(out, ticket.Book())
	}
	return out
}

func draft(title, author, started string) domain.Draft {
	return domain.Draft{Title: title, Author: author, DateStarted: domain.MustParseDate(started)}
}

// do sends a request through the full router.
// A non-empty form is sent url-encoded.
func (e *testEnv) do(method, target string, form url.Values, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

// signedIn returns the header pair that carries the u1 session cookie.
func (e *testEnv) signedIn() []string {
	return []string{"Cookie", e.cookie[len("Cookie: "):]}
}
