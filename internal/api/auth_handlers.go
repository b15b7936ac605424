package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lucidlyapp/lucidly/internal/auth"
	"github.com/lucidlyapp/lucidly/internal/http/response"
)

// flowCookieAge is how long, in seconds, a started sign-in waits for its callback.
const flowCookieAge = 10 * 60

func (s *Server) registerAuthRoutes() {
	s.router.Route("/auth", func(r chi.Router) {
		r.Use(RateLimitMiddleware(s.authRateLimiter, s.logger))
		r.Get("/signin", s.handleSignIn)
		r.Get("/callback", s.handleCallback)
		r.Post("/signout", s.handleSignOut)
	})
}

// handleSignIn starts the provider redirect. The verifier and state ride in
// a short-lived sealed cookie until the provider sends the browser back.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	authz, err := s.sessions.Start(s.opts.SiteURL + "/auth/callback")
	if err != nil {
		s.signInFailed(w, err)
		return
	}
	sealed, err := s.sessions.Sealer().SealFlow(authz)
	if err != nil {
		s.signInFailed(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     FlowCookie,
		Value:    sealed,
		Path:     "/auth",
		MaxAge:   flowCookieAge,
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, authz.URL, http.StatusFound)
}

// handleCallback completes the redirect flow started by handleSignIn.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if reason := q.Get("error"); reason != "" {
		if desc := q.Get("error_description"); desc != "" {
			reason = desc
		}
		s.logger.Info("sign-in declined", "reason", reason)
		s.render(w, http.StatusUnauthorized, "signin", signInPage{Error: "Sign-in failed: " + reason})
		return
	}

	cookie, err := r.Cookie(FlowCookie)
	if err != nil {
		s.render(w, http.StatusBadRequest, "signin", signInPage{Error: "Sign-in expired. Please try again."})
		return
	}
	state, verifier, err := s.sessions.Sealer().OpenFlow(cookie.Value)
	if err != nil || state != q.Get("state") || q.Get("code") == "" {
		s.render(w, http.StatusBadRequest, "signin", signInPage{Error: "Sign-in expired. Please try again."})
		return
	}

	sess, sealed, err := s.sessions.Complete(r.Context(), q.Get("code"), verifier)
	if err != nil {
		s.signInFailed(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{Name: FlowCookie, Path: "/auth", MaxAge: -1, HttpOnly: true, Secure: s.opts.SecureCookies})
	s.setCookie(w, SessionCookie, sealed, s.sessions.Sealer().Lifetime())
	s.logger.Info("user signed in", "user_id", sess.User.ID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) signInFailed(w http.ResponseWriter, err error) {
	e := response.Classify(err)
	s.logger.Warn("sign-in failed", "error", err)
	s.render(w, e.HTTPStatus(), "signin", signInPage{Error: "Sign-in failed: " + e.Message})
}

// handleSignOut ends the session. The cookie is cleared even when the
// provider cannot be reached.
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if sess, err := GetSession(r.Context()); err == nil {
		if err := s.sessions.End(r.Context(), sess); err != nil {
			s.logger.Warn("sign-out at provider failed", "user_id", sess.User.ID, "error", err)
		}
	}
	s.clearCookie(w, SessionCookie)

	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/")
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// onSessionEvent drops the books of users who sign out.
func (s *Server) onSessionEvent(ev auth.Event) {
	if ev.Type == auth.EventSignedOut && ev.UserID != "" {
		s.registry.Evict(ev.UserID)
	}
}
