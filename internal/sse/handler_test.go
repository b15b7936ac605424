package sse

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucidlyapp/lucidly/internal/auth"
	domainerrors "github.com/lucidlyapp/lucidly/internal/errors"
)

func gateFor(b *auth.Broadcaster, sess *auth.Session) GateFunc {
	return func(r *http.Request) *auth.Gate {
		return auth.Mount(r.Context(), func(context.Context) (auth.Session, error) {
			if sess == nil {
				return auth.Session{}, domainerrors.Unauthorized("not signed in")
			}
			return *sess, nil
		}, b)
	}
}

// readEvents sends the event names of a stream to a channel.
func readEvents(t *testing.T, resp *http.Response) <-chan string {
	t.Helper()
	out := make(chan string, 16)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if name, ok := strings.CutPrefix(sc.Text(), "event: "); ok {
				out <- name
			}
		}
	}()
	return out
}

func next(t *testing.T, events <-chan string) string {
	t.Helper()
	select {
	case name, ok := <-events:
		if !ok {
			return ""
		}
		return name
	case <-time.After(2 * time.Second):
		t.Fatal("no event on stream")
		return ""
	}
}

func TestHandler_Unauthenticated(t *testing.T) {
	h := NewHandler(NewManager(testLogger()), gateFor(auth.NewBroadcaster(nil), nil), testLogger())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	h := NewHandler(NewManager(testLogger()), gateFor(auth.NewBroadcaster(nil), nil), testLogger())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/events", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandler_StreamsUntilSignOut(t *testing.T) {
	m := startManager(t)
	b := auth.NewBroadcaster(nil)
	sess := &auth.Session{AccessToken: "a1", User: auth.User{ID: "u1"}}

	srv := httptest.NewServer(NewHandler(m, gateFor(b, sess), testLogger()))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := readEvents(t, resp)
	assert.Equal(t, "connected", next(t, events))

	m.EmitToUser("u1", NewErrorDismissedEvent("u1"))
	assert.Equal(t, string(EventErrorDismissed), next(t, events))

	// Another user's sign-out leaves this stream open.
	b.Notify(auth.Event{Type: auth.EventSignedOut, UserID: "u2"})
	b.Notify(auth.Event{Type: auth.EventSignedOut, UserID: "u1"})
	assert.Equal(t, string(EventSignedOut), next(t, events))
	assert.Equal(t, "", next(t, events), "stream closed")
}
