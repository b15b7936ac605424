package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/lucidlyapp/lucidly/internal/errors"
)

func testKey() []byte {
	return []byte(strings.Repeat("k", keyLength))
}

func testSession(userID string) Session {
	return Session{
		AccessToken:  "access-" + userID,
		RefreshToken: "refresh-" + userID,
		ExpiresAt:    time.Now().Add(time.Hour).UTC().Truncate(time.Second),
		User:         User{ID: userID, Email: userID + "@example.com"},
	}
}

func TestLoadOrGenerateKey(t *testing.T) {
	dir := t.TempDir()

	key, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Len(t, key, keyLength)

	info, err := os.Stat(filepath.Join(dir, KeyFile))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Equal(t, key, again, "existing key is reused")
}

func TestLoadOrGenerateKey_RejectsBadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, KeyFile), []byte("abcd"), 0o600))

	_, err := LoadOrGenerateKey(dir)
	assert.ErrorContains(t, err, "invalid session key length")

	require.NoError(t, os.WriteFile(filepath.Join(dir, KeyFile), []byte(strings.Repeat("z", keyHexLength)), 0o600))
	_, err = LoadOrGenerateKey(dir)
	assert.ErrorContains(t, err, "not valid hex")
}

func TestSealer_RoundTrip(t *testing.T) {
	s, err := NewSealer(testKey(), time.Hour)
	require.NoError(t, err)

	sess := testSession("u1")
	sealed, err := s.Seal(sess)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, "v4.local."))
	assert.NotContains(t, sealed, "access-u1")

	opened, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, sess.User, opened.User)
	assert.Equal(t, sess.AccessToken, opened.AccessToken)
	assert.True(t, sess.ExpiresAt.Equal(opened.ExpiresAt))
}

func TestSealer_RejectsExpiredAndForeign(t *testing.T) {
	s, err := NewSealer(testKey(), time.Hour)
	require.NoError(t, err)

	sealed, err := s.Seal(testSession("u1"))
	require.NoError(t, err)

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = s.Open(sealed)
	assert.Error(t, err, "expired cookie")

	other, err := NewSealer([]byte(strings.Repeat("o", keyLength)), time.Hour)
	require.NoError(t, err)
	_, err = other.Open(sealed)
	assert.Error(t, err, "wrong key")

	_, err = NewSealer([]byte("short"), time.Hour)
	assert.Error(t, err)
}

func TestSealer_Flow(t *testing.T) {
	s, err := NewSealer(testKey(), 24*time.Hour)
	require.NoError(t, err)

	sealed, err := s.SealFlow(Authorization{State: "oauth-1", Verifier: "v1"})
	require.NoError(t, err)

	state, verifier, err := s.OpenFlow(sealed)
	require.NoError(t, err)
	assert.Equal(t, "oauth-1", state)
	assert.Equal(t, "v1", verifier)

	// A session cookie is not a sign-in cookie.
	session, err := s.Seal(testSession("u1"))
	require.NoError(t, err)
	_, _, err = s.OpenFlow(session)
	assert.Error(t, err)

	// Flows expire well before sessions do.
	s.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, _, err = s.OpenFlow(sealed)
	assert.Error(t, err)
}

func signJWT(t *testing.T, secret string, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestVerifier(t *testing.T) {
	v := NewVerifier("secret")

	good := signJWT(t, "secret", AccessClaims{
		Email: "a@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	claims, err := v.Verify(good)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "a@example.com", claims.Email)

	tests := map[string]string{
		"wrong secret": signJWT(t, "other", jwt.RegisteredClaims{
			Subject: "u1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}),
		"expired": signJWT(t, "secret", jwt.RegisteredClaims{
			Subject: "u1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		}),
		"no expiry":  signJWT(t, "secret", jwt.RegisteredClaims{Subject: "u1"}),
		"no subject": signJWT(t, "secret", jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}),
		"garbage":    "not-a-jwt",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestChallenge(t *testing.T) {
	// RFC 7636 appendix B.
	assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		Challenge("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"))

	v, err := NewCodeVerifier()
	require.NoError(t, err)
	assert.Len(t, v, 43)
}

func TestBroadcaster(t *testing.T) {
	b := NewBroadcaster(nil)

	var mu sync.Mutex
	var got []EventType
	unsubscribe := b.Subscribe(func(ev Event) {
		mu.Lock()
		got = append(got, ev.Type)
		mu.Unlock()
	})
	assert.Equal(t, 1, b.Len())

	b.Notify(Event{Type: EventSignedIn, UserID: "u1"})
	unsubscribe()
	unsubscribe()
	b.Notify(Event{Type: EventSignedOut, UserID: "u1"})

	assert.Equal(t, []EventType{EventSignedIn}, got)
	assert.Equal(t, 0, b.Len())
}

// fakeAuthServer mimics the token, user, and logout endpoints.
func fakeAuthServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "anon", r.Header.Get("apikey"))
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)

		switch r.URL.Query().Get("grant_type") {
		case "pkce":
			if body["auth_code"] != "good-code" || body["code_verifier"] == "" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"invalid flow state"}`))
				return
			}
		case "refresh_token":
			if body["refresh_token"] != "r1" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Refresh Token Not Found"}`))
				return
			}
		}
		_, _ = w.Write([]byte(`{"access_token":"a1","refresh_token":"r1","expires_in":3600,
			"user":{"id":"u1","email":"u1@example.com","user_metadata":{"full_name":"Una"}}}`))
	})
	mux.HandleFunc("GET /auth/v1/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer a1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"msg":"invalid JWT"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"u1","email":"u1@example.com","user_metadata":{"name":"una"}}`))
	})
	mux.HandleFunc("POST /auth/v1/logout", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestProvider(t *testing.T, verifier *Verifier) (*Provider, *Broadcaster) {
	server := fakeAuthServer(t)
	b := NewBroadcaster(nil)
	p := NewProvider(ProviderConfig{URL: server.URL + "/", AnonKey: "anon", Timeout: time.Second}, verifier, b, nil)
	return p, b
}

func TestProvider_SignInURL(t *testing.T) {
	p, _ := newTestProvider(t, nil)

	authz, err := p.SignInURL("http://localhost:8080/auth/callback")
	require.NoError(t, err)

	u, err := url.Parse(authz.URL)
	require.NoError(t, err)
	assert.Equal(t, "/auth/v1/authorize", u.Path)
	q := u.Query()
	assert.Equal(t, "google", q.Get("provider"))
	assert.Equal(t, "http://localhost:8080/auth/callback", q.Get("redirect_to"))
	assert.Equal(t, Challenge(authz.Verifier), q.Get("code_challenge"))
	assert.Equal(t, "s256", q.Get("code_challenge_method"))
	assert.Equal(t, authz.State, q.Get("state"))
	assert.True(t, strings.HasPrefix(authz.State, "oauth-"))
}

func TestProvider_ExchangeNotifies(t *testing.T) {
	p, b := newTestProvider(t, nil)

	var events []Event
	b.Subscribe(func(ev Event) { events = append(events, ev) })

	sess, err := p.Exchange(context.Background(), "good-code", "verifier")
	require.NoError(t, err)
	assert.Equal(t, "a1", sess.AccessToken)
	assert.Equal(t, User{ID: "u1", Email: "u1@example.com", Name: "Una"}, sess.User)
	assert.WithinDuration(t, time.Now().Add(time.Hour), sess.ExpiresAt, time.Minute)

	require.Len(t, events, 1)
	assert.Equal(t, EventSignedIn, events[0].Type)

	_, err = p.Exchange(context.Background(), "bad-code", "verifier")
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)
	assert.ErrorContains(t, err, "invalid flow state")
	assert.Len(t, events, 1)
}

func TestProvider_UserAndSignOut(t *testing.T) {
	p, b := newTestProvider(t, nil)

	u, err := p.User(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "una", u.Name)

	_, err = p.User(context.Background(), "nope")
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)

	var signedOut bool
	b.Subscribe(func(ev Event) { signedOut = ev.Type == EventSignedOut && ev.UserID == "u1" })
	require.NoError(t, p.SignOut(context.Background(), Session{AccessToken: "a1", User: User{ID: "u1"}}))
	assert.True(t, signedOut)
}

func TestProvider_UserVerifiedLocally(t *testing.T) {
	p, _ := newTestProvider(t, NewVerifier("secret"))

	token := signJWT(t, "secret", AccessClaims{
		Email: "x@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "u9", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	u, err := p.User(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, User{ID: "u9", Email: "x@example.com"}, u)
}

func TestProvider_Unreachable(t *testing.T) {
	p := NewProvider(ProviderConfig{URL: "http://127.0.0.1:1", AnonKey: "anon", Timeout: time.Second}, nil, NewBroadcaster(nil), nil)

	_, err := p.Refresh(context.Background(), "r1")
	assert.ErrorIs(t, err, domainerrors.ErrUnavailable)
}

func TestSessions_Resolve(t *testing.T) {
	p, _ := newTestProvider(t, nil)
	sealer, err := NewSealer(testKey(), time.Hour)
	require.NoError(t, err)
	s := NewSessions(p, sealer, nil)

	_, _, err = s.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)

	_, _, err = s.Resolve(context.Background(), "garbage")
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)

	fresh := testSession("u1")
	sealed, err := sealer.Seal(fresh)
	require.NoError(t, err)
	got, resealed, err := s.Resolve(context.Background(), sealed)
	require.NoError(t, err)
	assert.Empty(t, resealed)
	assert.Equal(t, "access-u1", got.AccessToken)

	stale := testSession("u1")
	stale.RefreshToken = "r1"
	stale.ExpiresAt = time.Now().Add(-time.Minute)
	sealed, err = sealer.Seal(stale)
	require.NoError(t, err)
	got, resealed, err = s.Resolve(context.Background(), sealed)
	require.NoError(t, err)
	assert.NotEmpty(t, resealed)
	assert.Equal(t, "a1", got.AccessToken)
}

func TestSessions_Complete(t *testing.T) {
	p, _ := newTestProvider(t, nil)
	sealer, err := NewSealer(testKey(), time.Hour)
	require.NoError(t, err)
	s := NewSessions(p, sealer, nil)

	sess, sealed, err := s.Complete(context.Background(), "good-code", "v")
	require.NoError(t, err)

	opened, err := sealer.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, sess.User, opened.User)
}

func TestGate(t *testing.T) {
	current := func(sess Session, err error) CurrentFunc {
		return func(context.Context) (Session, error) { return sess, err }
	}

	t.Run("authenticated", func(t *testing.T) {
		b := NewBroadcaster(nil)
		g := Mount(context.Background(), current(testSession("u1"), nil), b)
		defer g.Unmount()

		assert.Equal(t, StateAuthenticated, g.State())
		sess, ok := g.Session()
		assert.True(t, ok)
		assert.Equal(t, "u1", sess.User.ID)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		b := NewBroadcaster(nil)
		g := Mount(context.Background(), current(Session{}, domainerrors.Unauthorized("no")), b)
		defer g.Unmount()

		assert.Equal(t, StateUnauthenticated, g.State())
		_, ok := g.Session()
		assert.False(t, ok)
	})

	t.Run("follows refresh and sign-out", func(t *testing.T) {
		b := NewBroadcaster(nil)
		g := Mount(context.Background(), current(testSession("u1"), nil), b)
		defer g.Unmount()

		refreshed := testSession("u1")
		refreshed.AccessToken = "new"
		b.Notify(Event{Type: EventTokenRefreshed, UserID: "u1", Session: &refreshed})
		sess, _ := g.Session()
		assert.Equal(t, "new", sess.AccessToken)

		b.Notify(Event{Type: EventSignedOut, UserID: "someone-else"})
		assert.Equal(t, StateAuthenticated, g.State())

		b.Notify(Event{Type: EventSignedOut, UserID: "u1"})
		assert.Equal(t, StateUnauthenticated, g.State())
		select {
		case <-g.SignedOut():
		default:
			t.Fatal("signed-out channel not closed")
		}

		b.Notify(Event{Type: EventSignedOut, UserID: "u1"})
	})

	t.Run("unmount tears down subscription", func(t *testing.T) {
		b := NewBroadcaster(nil)
		g := Mount(context.Background(), current(testSession("u1"), nil), b)
		assert.Equal(t, 1, b.Len())
		g.Unmount()
		g.Unmount()
		assert.Equal(t, 0, b.Len())
	})

	assert.Equal(t, "loading", StateLoading.String())
}
