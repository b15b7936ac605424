package auth

import (
	"context"
	"log/slog"
	"time"

	domainerrors "github.com/lucidlyapp/lucidly/internal/errors"
)

// refreshSkew refreshes access tokens slightly before they lapse.
const refreshSkew = time.Minute

// Sessions turns the sealed cookie value into a live provider session.
type Sessions struct {
	provider *Provider
	sealer   *Sealer
	logger   *slog.Logger
	now      func() time.Time
}

// NewSessions creates a session resolver.
func NewSessions(provider *Provider, sealer *Sealer, logger *slog.Logger) *Sessions {
	return &Sessions{provider: provider, sealer: sealer, logger: logger, now: time.Now}
}

// Provider returns the underlying identity provider client.
func (s *Sessions) Provider() *Provider { return s.provider }

// Sealer returns the cookie sealer.
func (s *Sessions) Sealer() *Sealer { return s.sealer }

// Resolve opens sealed and refreshes the session when the access token has
// lapsed. resealed is non-empty when the cookie must be rewritten.
func (s *Sessions) Resolve(ctx context.Context, sealed string) (sess Session, resealed string, err error) {
	if sealed == "" {
		return Session{}, "", domainerrors.Unauthorized("not signed in")
	}

	sess, err = s.sealer.Open(sealed)
	if err != nil {
		return Session{}, "", domainerrors.Wrap(err, domainerrors.CodeUnauthorized, "not signed in")
	}
	if !sess.Valid() {
		return Session{}, "", domainerrors.Unauthorized("not signed in")
	}
	if !sess.Expired(s.now(), refreshSkew) {
		return sess, "", nil
	}

	refreshed, err := s.provider.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		if s.logger != nil {
			s.logger.Info("session refresh failed", "user_id", sess.User.ID, "error", err)
		}
		return Session{}, "", err
	}
	resealed, err = s.sealer.Seal(refreshed)
	if err != nil {
		return Session{}, "", domainerrors.Wrap(err, domainerrors.CodeInternal, "could not store session")
	}
	return refreshed, resealed, nil
}

// Start begins a sign-in whose callback lands on redirect.
func (s *Sessions) Start(redirect string) (Authorization, error) {
	return s.provider.SignInURL(redirect)
}

// Complete finishes a sign-in and returns the sealed session.
func (s *Sessions) Complete(ctx context.Context, code, verifier string) (Session, string, error) {
	sess, err := s.provider.Exchange(ctx, code, verifier)
	if err != nil {
		return Session{}, "", err
	}
	sealed, err := s.sealer.Seal(sess)
	if err != nil {
		return Session{}, "", domainerrors.Wrap(err, domainerrors.CodeInternal, "could not store session")
	}
	return sess, sealed, nil
}

// End signs the user out at the provider.
func (s *Sessions) End(ctx context.Context, sess Session) error {
	return s.provider.SignOut(ctx, sess)
}

// Subscribe registers a session-change listener.
func (s *Sessions) Subscribe(fn Listener) (unsubscribe func()) {
	return s.provider.Subscribe(fn)
}
