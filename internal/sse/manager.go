package sse

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lucidlyapp/lucidly/internal/id"
	"github.com/lucidlyapp/lucidly/internal/tracker"
)

const (
	queueSize    = 256
	clientBuffer = 32
)

// Client is one open event stream of a signed-in user.
type Client struct {
	ID          string
	UserID      string
	ConnectedAt time.Time
	EventChan   chan Event
	Done        chan struct{}
}

// Manager routes tracker changes to the open streams of the user they belong to.
// A user with several tabs open has one Client per tab.
type Manager struct {
	logger *slog.Logger
	queue  chan Event

	mu    sync.RWMutex
	users map[string]map[string]*Client // user id -> client id -> client
	count int

	// queueMu guards closed and every send on queue.
	queueMu sync.RWMutex
	closed  bool

	running sync.WaitGroup
}

// NewManager creates a Manager. Call Start to begin delivering events.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		logger: logger,
		queue:  make(chan Event, queueSize),
		users:  make(map[string]map[string]*Client),
	}
}

// Start delivers queued events until ctx is done or Shutdown drains the queue.
func (m *Manager) Start(ctx context.Context) {
	m.running.Add(1)
	defer m.running.Done()

	m.logger.Info("SSE manager starting")

	for {
		select {
		case event, ok := <-m.queue:
			if !ok {
				return
			}
			m.deliver(event)
		case <-ctx.Done():
			m.logger.Info("SSE manager stopping")
			m.dropAll()
			return
		}
	}
}

// Shutdown stops accepting events, delivers what is queued, and closes every stream.
// Calling it more than once is a no-op.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.queueMu.Lock()
	if m.closed {
		m.queueMu.Unlock()
		return nil
	}
	m.closed = true
	close(m.queue)
	m.queueMu.Unlock()

	drained := make(chan struct{})
	go func() {
		for event := range m.queue {
			m.deliver(event)
		}
		m.running.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-ctx.Done():
		m.logger.Warn("SSE shutdown timed out, queued events dropped")
	}

	m.dropAll()
	m.logger.Info("SSE manager shut down")
	return nil
}

// Connect opens a stream for userID.
func (m *Manager) Connect(userID string) (*Client, error) {
	clientID, err := id.Generate(id.PrefixClient)
	if err != nil {
		return nil, err
	}
	c := &Client{
		ID:          clientID,
		UserID:      userID,
		ConnectedAt: time.Now(),
		EventChan:   make(chan Event, clientBuffer),
		Done:        make(chan struct{}),
	}

	m.mu.Lock()
	streams, ok := m.users[userID]
	if !ok {
		streams = make(map[string]*Client)
		m.users[userID] = streams
	}
	streams[c.ID] = c
	m.count++
	total := m.count
	m.mu.Unlock()

	m.logger.Info("SSE client connected",
		slog.String("client_id", c.ID),
		slog.String("user_id", userID),
		slog.Int("total_clients", total))
	return c, nil
}

// Disconnect closes c. Disconnecting a closed client does nothing.
func (m *Manager) Disconnect(c *Client) {
	m.mu.Lock()
	streams := m.users[c.UserID]
	if _, ok := streams[c.ID]; !ok {
		m.mu.Unlock()
		return
	}
	delete(streams, c.ID)
	if len(streams) == 0 {
		delete(m.users, c.UserID)
	}
	m.count--
	total := m.count
	m.mu.Unlock()

	closeClient(c)

	m.logger.Info("SSE client disconnected",
		slog.String("client_id", c.ID),
		slog.Duration("duration", time.Since(c.ConnectedAt)),
		slog.Int("total_clients", total))
}

// Emit queues an event. An event with no UserID goes to every stream.
// Events are dropped once the queue is full or the manager has shut down.
func (m *Manager) Emit(event Event) {
	m.queueMu.RLock()
	defer m.queueMu.RUnlock()
	if m.closed {
		return
	}
	select {
	case m.queue <- event:
	default:
		m.logger.Error("SSE queue full, dropping event", slog.String("event_type", string(event.Type)))
	}
}

// EmitToUser queues an event for userID's streams only.
func (m *Manager) EmitToUser(userID string, event Event) {
	event.UserID = userID
	m.Emit(event)
}

// Observe implements tracker.Observer. A failure raises the banner before the
// list refresh so the page shows both in one pass.
func (m *Manager) Observe(c tracker.Change) {
	switch c.Kind {
	case tracker.ChangeEvicted:
		return
	case tracker.ChangeDismissed:
		m.Emit(NewErrorDismissedEvent(c.UserID))
		return
	case tracker.ChangeFailed, tracker.ChangeRolledBack:
		if c.Error != nil {
			m.Emit(NewErrorRaisedEvent(c.UserID, *c.Error))
		}
	}
	m.Emit(NewBooksChangedEvent(c))
}

// ClientCount returns the number of open streams.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.count
}

func (m *Manager) deliver(event Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var delivered, dropped int
	send := func(c *Client) {
		select {
		case c.EventChan <- event:
			delivered++
		default:
			dropped++
			m.logger.Warn("dropped event for slow client",
				slog.String("client_id", c.ID),
				slog.String("event_type", string(event.Type)))
		}
	}

	if event.UserID == "" {
		for _, streams := range m.users {
			for _, c := range streams {
				send(c)
			}
		}
	} else {
		for _, c := range m.users[event.UserID] {
			send(c)
		}
	}

	m.logger.Debug("event delivered",
		slog.String("event_type", string(event.Type)),
		slog.String("user_id", event.UserID),
		slog.Int("delivered", delivered),
		slog.Int("dropped", dropped))
}

func (m *Manager) dropAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, streams := range m.users {
		for _, c := range streams {
			closeClient(c)
		}
	}
	m.users = make(map[string]map[string]*Client)
	m.count = 0
}

func closeClient(c *Client) {
	close(c.Done)
	close(c.EventChan)
}
