package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/lucidlyapp/lucidly/internal/auth"
)

const (
	heartbeatInterval = 30 * time.Second
	writeTimeout      = 60 * time.Second
)

// GateFunc mounts a session gate for the request.
type GateFunc func(r *http.Request) *auth.Gate

// Handler serves GET /events. A stream lives as long as the page and its
// session; signing out anywhere closes it.
type Handler struct {
	manager   *Manager
	gate      GateFunc
	logger    *slog.Logger
	heartbeat time.Duration
}

// NewHandler creates a Handler.
func NewHandler(manager *Manager, gate GateFunc, logger *slog.Logger) *Handler {
	return &Handler{
		manager:   manager,
		gate:      gate,
		logger:    logger,
		heartbeat: heartbeatInterval,
	}
}

// stream writes SSE frames to one response.
type stream struct {
	w  io.Writer
	rc *http.ResponseController
}

func (s stream) send(event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return err
	}
	if err := s.rc.Flush(); err != nil {
		return err
	}
	// Not every ResponseWriter supports deadlines.
	_ = s.rc.SetWriteDeadline(time.Now().Add(writeTimeout))
	return nil
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.Context().Err() != nil {
		return
	}

	gate := h.gate(r)
	defer gate.Unmount()

	sess, ok := gate.Session()
	if !ok {
		http.Error(w, "Not signed in", http.StatusUnauthorized)
		return
	}
	userID := sess.User.ID

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	out := stream{w: w, rc: http.NewResponseController(w)}
	if err := out.rc.Flush(); err != nil {
		h.logger.Error("streaming not supported", slog.String("error", err.Error()))
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	client, err := h.manager.Connect(userID)
	if err != nil {
		h.logger.Error("failed to register SSE client", slog.String("error", err.Error()))
		http.Error(w, "Failed to establish connection", http.StatusInternalServerError)
		return
	}
	defer h.manager.Disconnect(client)

	log := h.logger.With(slog.String("client_id", client.ID), slog.String("user_id", userID))

	connected := Event{
		Type:      EventConnected,
		Data:      map[string]string{"client_id": client.ID},
		Timestamp: time.Now(),
	}
	if err := out.send(connected); err != nil {
		log.Warn("failed to send connected event", slog.String("error", err.Error()))
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-client.EventChan:
			if !ok {
				return
			}
			if err := out.send(event); err != nil {
				log.Info("client went away")
				return
			}

		case <-ticker.C:
			if err := out.send(NewHeartbeatEvent()); err != nil {
				log.Info("client went away")
				return
			}

		case <-gate.SignedOut():
			if err := out.send(NewSignedOutEvent(userID)); err != nil {
				log.Info("client went away during sign-out")
			}
			log.Info("stream closed after sign-out")
			return

		case <-client.Done:
			return

		case <-r.Context().Done():
			return
		}
	}
}
