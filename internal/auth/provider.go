package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainerrors "github.com/lucidlyapp/lucidly/internal/errors"
	"github.com/lucidlyapp/lucidly/internal/id"
)

// DefaultProvider is the OAuth provider used when none is configured.
const DefaultProvider = "google"

// ProviderConfig configures the identity provider client.
type ProviderConfig struct {
	URL      string // Project URL, e.g. https://xyz.supabase.co
	AnonKey  string
	Provider string // OAuth provider name
	Timeout  time.Duration
}

// Authorization is a started sign-in. Verifier and State must be kept until the callback.
type Authorization struct {
	URL      string
	Verifier string
	State    string
}

// Provider talks to the hosted auth service.
type Provider struct {
	http        *http.Client
	baseURL     string
	anonKey     string
	provider    string
	verifier    *Verifier
	broadcaster *Broadcaster
	logger      *slog.Logger
	now         func() time.Time
}

// NewProvider creates a client. verifier may be nil, in which case access
// tokens are checked against the provider's user endpoint instead.
func NewProvider(cfg ProviderConfig, verifier *Verifier, broadcaster *Broadcaster, logger *slog.Logger) *Provider {
	name := cfg.Provider
	if name == "" {
		name = DefaultProvider
	}
	return &Provider{
		http:        &http.Client{Timeout: cfg.Timeout},
		baseURL:     strings.TrimRight(cfg.URL, "/"),
		anonKey:     cfg.AnonKey,
		provider:    name,
		verifier:    verifier,
		broadcaster: broadcaster,
		logger:      logger,
		now:         time.Now,
	}
}

// Subscribe registers a session-change listener.
func (p *Provider) Subscribe(fn Listener) (unsubscribe func()) {
	return p.broadcaster.Subscribe(fn)
}

// SignInURL starts the redirect flow. The provider sends the browser back to
// redirect with a code to pass to Exchange.
func (p *Provider) SignInURL(redirect string) (Authorization, error) {
	verifier, err := NewCodeVerifier()
	if err != nil {
		return Authorization{}, err
	}
	state, err := id.Generate(id.PrefixState)
	if err != nil {
		return Authorization{}, err
	}

	q := url.Values{}
	q.Set("provider", p.provider)
	q.Set("redirect_to", redirect)
	q.Set("code_challenge", Challenge(verifier))
	q.Set("code_challenge_method", "s256")
	q.Set("state", state)

	return Authorization{
		URL:      p.baseURL + "/auth/v1/authorize?" + q.Encode(),
		Verifier: verifier,
		State:    state,
	}, nil
}

// Exchange completes the redirect flow.
func (p *Provider) Exchange(ctx context.Context, code, verifier string) (Session, error) {
	sess, err := p.token(ctx, "pkce", map[string]string{
		"auth_code":     code,
		"code_verifier": verifier,
	})
	if err != nil {
		return Session{}, err
	}
	p.broadcaster.Notify(Event{Type: EventSignedIn, UserID: sess.User.ID, Session: &sess})
	return sess, nil
}

// Refresh trades a refresh token for a new session.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	sess, err := p.token(ctx, "refresh_token", map[string]string{
		"refresh_token": refreshToken,
	})
	if err != nil {
		return Session{}, err
	}
	p.broadcaster.Notify(Event{Type: EventTokenRefreshed, UserID: sess.User.ID, Session: &sess})
	return sess, nil
}

// SignOut revokes the session at the provider. Listeners hear about the
// sign-out even when revocation fails, since the browser forgets the session either way.
func (p *Provider) SignOut(ctx context.Context, sess Session) error {
	defer p.broadcaster.Notify(Event{Type: EventSignedOut, UserID: sess.User.ID})

	req, err := p.request(ctx, http.MethodPost, "/auth/v1/logout", sess.AccessToken, nil)
	if err != nil {
		return err
	}
	return p.do(req, nil)
}

// User returns the account an access token belongs to.
func (p *Provider) User(ctx context.Context, accessToken string) (User, error) {
	if p.verifier != nil {
		claims, err := p.verifier.Verify(accessToken)
		if err != nil {
			return User{}, domainerrors.Wrap(err, domainerrors.CodeUnauthorized, "session is no longer valid")
		}
		return User{ID: claims.Subject, Email: claims.Email}, nil
	}

	req, err := p.request(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil)
	if err != nil {
		return User{}, err
	}
	var u userResponse
	if err := p.do(req, &u); err != nil {
		return User{}, err
	}
	return u.user(), nil
}

type userResponse struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	UserMetadata struct {
		FullName string `json:"full_name"`
		Name     string `json:"name"`
	} `json:"user_metadata"`
}

func (u userResponse) user() User {
	name := u.UserMetadata.FullName
	if name == "" {
		name = u.UserMetadata.Name
	}
	return User{ID: u.ID, Email: u.Email, Name: name}
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	User         userResponse `json:"user"`
}

func (p *Provider) token(ctx context.Context, grant string, body map[string]string) (Session, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return Session{}, fmt.Errorf("encode token request: %w", err)
	}
	req, err := p.request(ctx, http.MethodPost, "/auth/v1/token?grant_type="+grant, "", bytes.NewReader(payload))
	if err != nil {
		return Session{}, err
	}

	var tr tokenResponse
	if err := p.do(req, &tr); err != nil {
		return Session{}, err
	}

	expires := time.Unix(tr.ExpiresAt, 0)
	if tr.ExpiresAt == 0 {
		expires = p.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	sess := Session{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    expires.UTC(),
		User:         tr.User.user(),
	}
	if !sess.Valid() {
		return Session{}, domainerrors.Unauthorized("sign-in did not return a session")
	}
	return sess, nil
}

func (p *Provider) request(ctx context.Context, method, path, bearer string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build auth request: %w", err)
	}
	req.Header.Set("apikey", p.anonKey)
	if bearer == "" {
		bearer = p.anonKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// authError is the error body of the auth service.
type authError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Message          string `json:"msg"`
}

func (e authError) text() string {
	for _, s := range []string{e.ErrorDescription, e.Message, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

func (p *Provider) do(req *http.Request, dest any) error {
	resp, err := p.http.Do(req)
	if err != nil {
		if p.logger != nil {
			p.logger.Warn("auth request failed", "path", req.URL.Path, "error", err)
		}
		return domainerrors.Wrap(err, domainerrors.CodeUnavailable, "could not reach the sign-in service")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var ae authError
		_ = json.NewDecoder(resp.Body).Decode(&ae)
		msg := ae.text()
		if msg == "" {
			msg = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		}
		if resp.StatusCode < http.StatusInternalServerError {
			return domainerrors.Unauthorized(msg)
		}
		return domainerrors.Upstream(msg)
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeUpstream, "unreadable sign-in response")
	}
	return nil
}
