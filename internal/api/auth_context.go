package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/lucidlyapp/lucidly/internal/auth"
	domainerrors "github.com/lucidlyapp/lucidly/internal/errors"
	"github.com/lucidlyapp/lucidly/internal/gateway"
	"github.com/lucidlyapp/lucidly/internal/tracker"
)

// Cookie names.
const (
	SessionCookie = "lucidly_session"
	FlowCookie    = "lucidly_flow"
)

// ctxKey is the type for context keys to avoid collisions.
type ctxKey string

// sessionKey is the context key for the resolved provider session.
const sessionKey ctxKey = "session"

// GetSession returns the signed-in session from context.
// Returns 401 error if user is not authenticated.
func GetSession(ctx context.Context) (auth.Session, error) {
	sess, ok := ctx.Value(sessionKey).(auth.Session)
	if !ok || !sess.Valid() {
		return auth.Session{}, huma.Error401Unauthorized("Authentication required")
	}
	return sess, nil
}

// setSession stores the session in context.
func setSession(ctx context.Context, sess auth.Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// sessionMiddleware resolves the session cookie once per request. A refreshed
// session is written back; an unreadable one is cleared. Requests without a
// session continue, and handlers use GetSession to require one.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookie)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		sess, resealed, err := s.sessions.Resolve(r.Context(), cookie.Value)
		if err != nil {
			if domainerrors.CodeOf(err) == domainerrors.CodeUnauthorized {
				s.clearCookie(w, SessionCookie)
			}
			next.ServeHTTP(w, r)
			return
		}
		if resealed != "" {
			s.setCookie(w, SessionCookie, resealed, s.sessions.Sealer().Lifetime())
		}

		next.ServeHTTP(w, r.WithContext(setSession(r.Context(), sess)))
	})
}

// scopeOf is the store capability of a session.
func scopeOf(sess auth.Session) gateway.Scope {
	return gateway.Scope{UserID: sess.User.ID, AccessToken: sess.AccessToken}
}

// currentTracker returns the tracker of the signed-in user without loading it.
func (s *Server) currentTracker(ctx context.Context) (*tracker.Tracker, error) {
	sess, err := GetSession(ctx)
	if err != nil {
		return nil, err
	}
	return s.registry.For(scopeOf(sess)), nil
}

// loadedTracker returns the tracker of the signed-in user after its first
// load. A failed load is returned as the error and stays in the error slot.
func (s *Server) loadedTracker(ctx context.Context) (*tracker.Tracker, error) {
	t, err := s.currentTracker(ctx)
	if err != nil {
		return nil, err
	}
	if err := t.Load(ctx); err != nil {
		return t, err
	}
	return t, nil
}

// mountGate opens a session gate for a live-update stream.
func (s *Server) mountGate(r *http.Request) *auth.Gate {
	return auth.Mount(r.Context(), func(ctx context.Context) (auth.Session, error) {
		return GetSession(ctx)
	}, s.sessions)
}

func (s *Server) setCookie(w http.ResponseWriter, name, value string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
