// Package rest implements the book gateway over a hosted PostgREST endpoint
// (the Supabase REST API).
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/lucidlyapp/lucidly/internal/domain"
	"github.com/lucidlyapp/lucidly/internal/gateway"
	"github.com/lucidlyapp/lucidly/internal/ratelimit"
)

const (
	booksPath = "/rest/v1/books"

	// Returns a single JSON object instead of an array, and 406 when no row matched.
	acceptObject = "application/vnd.pgrst.object+json"

	// PostgREST code for "JSON object requested, multiple (or no) rows returned".
	codeNoRows = "PGRST116"

	defaultRPS   = 10.0
	defaultBurst = 20
)

// Config configures a Client.
type Config struct {
	BaseURL string // Project URL, e.g. https://abc.supabase.co
	AnonKey string // Sent as the apikey header
	// Timeout bounds each call. Zero disables the timeout.
	Timeout time.Duration
	RPS     float64
	Burst   int
}

// Client is a rate-limited PostgREST books client. It implements gateway.Gateway.
type Client struct {
	http    *http.Client
	baseURL string
	anonKey string
	limiter *ratelimit.KeyedRateLimiter
	logger  *slog.Logger
	now     func() time.Time
}

var _ gateway.Gateway = (*Client)(nil)

// New creates a client.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.RPS <= 0 {
		cfg.RPS = defaultRPS
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		anonKey: cfg.AnonKey,
		limiter: ratelimit.New(cfg.RPS, cfg.Burst),
		logger:  logger,
		now:     time.Now,
	}
}

// Close releases resources held by the client.
func (c *Client) Close() {
	c.limiter.Stop()
}

// ListBooks implements gateway.Gateway.
func (c *Client) ListBooks(ctx context.Context, scope gateway.Scope) ([]domain.Book, error) {
	query := url.Values{}
	query.Set("select", "*")
	query.Set("user_id", "eq."+scope.UserID)
	query.Set("order", "date_started.desc")

	body, err := c.doRequest(ctx, scope, http.MethodGet, query, nil, false)
	if err != nil {
		return nil, wrapError(gateway.OpList, err)
	}

	var books []domain.Book
	if err := json.Unmarshal(body, &books); err != nil {
		return nil, wrapError(gateway.OpList, fmt.Errorf("parse response: %w", err))
	}
	if books == nil {
		books = []domain.Book{}
	}
	return books, nil
}

// CreateBook implements gateway.Gateway.
func (c *Client) CreateBook(ctx context.Context, scope gateway.Scope, draft domain.Draft) (domain.Book, error) {
	row := map[string]any{
		"user_id":      scope.UserID,
		"title":        draft.Title,
		"author":       draft.Author,
		"date_started": draft.DateStarted.String(),
		"intention":    draft.Intention,
		"status":       domain.StatusReading,
	}

	query := url.Values{}
	query.Set("select", "*")

	body, err := c.doRequest(ctx, scope, http.MethodPost, query, row, true)
	if err != nil {
		return domain.Book{}, wrapError(gateway.OpCreate, err)
	}
	return decodeBook(gateway.OpCreate, body)
}

// UpdateBook implements gateway.Gateway.
func (c *Client) UpdateBook(ctx context.Context, scope gateway.Scope, id string, changes domain.Changes) (domain.Book, error) {
	row := make(map[string]any)
	for _, col := range changes.Columns() {
		row[col.Name] = col.Value
	}
	row["updated_at"] = c.now().UTC().Format(time.RFC3339Nano)

	query := url.Values{}
	query.Set("select", "*")
	query.Set("id", "eq."+id)
	query.Set("user_id", "eq."+scope.UserID)

	body, err := c.doRequest(ctx, scope, http.MethodPatch, query, row, true)
	if err != nil {
		return domain.Book{}, wrapError(gateway.OpUpdate, err)
	}
	return decodeBook(gateway.OpUpdate, body)
}

// DeleteBook implements gateway.Gateway.
func (c *Client) DeleteBook(ctx context.Context, scope gateway.Scope, id string) error {
	query := url.Values{}
	query.Set("id", "eq."+id)
	query.Set("user_id", "eq."+scope.UserID)

	if _, err := c.doRequest(ctx, scope, http.MethodDelete, query, nil, false); err != nil {
		return wrapError(gateway.OpDelete, err)
	}
	return nil
}

func decodeBook(op string, body []byte) (domain.Book, error) {
	var b domain.Book
	if err := json.Unmarshal(body, &b); err != nil {
		return domain.Book{}, wrapError(op, fmt.Errorf("parse response: %w", err))
	}
	return b, nil
}

// doRequest executes a PostgREST request with rate limiting. When single is
// set the response must be exactly one row.
func (c *Client) doRequest(ctx context.Context, scope gateway.Scope, method string, query url.Values, payload any, single bool) ([]byte, error) {
	if err := c.limiter.Wait(ctx, scope.UserID); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	u := c.baseURL + booksPath + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("apikey", c.anonKey)
	token := scope.AccessToken
	if token == "" {
		token = c.anonKey
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if single {
		req.Header.Set("Accept", acceptObject)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "return=representation")
	}

	c.logger.Debug("store request",
		"method", method,
		"path", booksPath,
		"user_id", scope.UserID,
	)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("store request failed", "method", method, "error", err)
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}
	return nil, statusError(resp.StatusCode, body)
}

// apiError is the PostgREST error body.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
	// Auth gateway errors use these keys instead.
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// failure pairs a sentinel with the backend's message.
type failure struct {
	sentinel error
	message  string
}

func (f *failure) Error() string { return f.message }
func (f *failure) Unwrap() error { return f.sentinel }

func statusError(status int, body []byte) error {
	var apiErr apiError
	_ = json.Unmarshal(body, &apiErr)

	message := apiErr.Message
	if message == "" {
		message = apiErr.ErrorDescription
	}
	if message == "" {
		message = apiErr.Error
	}
	if message == "" {
		message = fmt.Sprintf("unexpected status %d", status)
	}

	switch {
	case apiErr.Code == codeNoRows, status == http.StatusNotFound:
		return &failure{gateway.ErrNotFound, message}
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return &failure{gateway.ErrUnauthorized, message}
	case status == http.StatusTooManyRequests:
		return &failure{gateway.ErrRateLimited, message}
	default:
		return &failure{gateway.ErrBackend, message}
	}
}

func transportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &failure{gateway.ErrTimeout, "the request timed out"}
	}
	return &failure{gateway.ErrBackend, "could not reach the store"}
}

// wrapError converts any failure into a gateway.Error.
func wrapError(op string, err error) error {
	var f *failure
	if errors.As(err, &f) {
		return gateway.Wrap(op, f.sentinel, f.message)
	}
	return gateway.Wrap(op, gateway.ErrBackend, err.Error())
}
