package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucidlyapp/lucidly/internal/gateway"
)

func TestRegistry(t *testing.T) {
	gw := newFakeGateway(stored("a", "2026-01-01"))
	rec := &recorder{}
	r := NewRegistry(gw, nil, rec)

	first := r.For(gateway.Scope{UserID: "u1", AccessToken: "old"})
	again := r.For(gateway.Scope{UserID: "u1", AccessToken: "new"})
	other := r.For(gateway.Scope{UserID: "u2"})

	assert.Same(t, first, again)
	assert.NotSame(t, first, other)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, "new", first.scope.AccessToken)

	require.NoError(t, first.Load(context.Background()))
	ticket, err := first.Delete(context.Background(), "a")
	require.NoError(t, err)
	r.Wait()
	require.NoError(t, ticket.Wait(context.Background()))

	r.Evict("u1")
	r.Evict("u1")
	_, ok := r.Lookup("u1")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())

	evictions := 0
	for _, k := range rec.kinds() {
		if k == ChangeEvicted {
			evictions++
		}
	}
	assert.Equal(t, 1, evictions)
}

func TestRegistry_WaitCoversEvictedTrackers(t *testing.T) {
	gw := newFakeGateway(stored("a", "2026-01-01"))
	r := NewRegistry(gw, nil)

	tr := r.For(gateway.Scope{UserID: "u1"})
	require.NoError(t, tr.Load(context.Background()))

	gw.hold = make(chan struct{})
	ticket, err := tr.Delete(context.Background(), "a")
	require.NoError(t, err)

	r.Evict("u1")
	assert.Equal(t, 0, r.Len())

	waited := make(chan struct{})
	go func() {
		r.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		t.Fatal("Wait returned before the evicted tracker's delete finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(gw.hold)
	select {
	case <-waited:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after the delete finished")
	}
	require.NoError(t, ticket.Wait(context.Background()))

	assert.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.draining) == 0
	}, time.Second, 5*time.Millisecond)
}
