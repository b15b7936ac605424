package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

// Component health states, worst last.
const (
	healthy   = "healthy"
	degraded  = "degraded"
	unhealthy = "unhealthy"
)

var healthRank = map[string]int{healthy: 0, degraded: 1, unhealthy: 2}

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Reports the search index, live-update streams and in-memory lists",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" enum:"healthy,degraded,unhealthy" doc:"Component status"`
	Latency string `json:"latency,omitempty" doc:"Time taken by the check"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string                     `json:"status" enum:"healthy,degraded,unhealthy" doc:"Worst component status"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(_ context.Context, _ *struct{}) (*HealthOutput, error) {
	checks := map[string]func() ComponentHealth{
		"search":   s.checkSearchIndex,
		"sse":      s.checkStreams,
		"trackers": s.checkTrackers,
	}

	resp := HealthResponse{Status: healthy, Components: make(map[string]ComponentHealth, len(checks))}
	for name, check := range checks {
		c := check()
		resp.Components[name] = c
		if healthRank[c.Status] > healthRank[resp.Status] {
			resp.Status = c.Status
		}
	}
	return &HealthOutput{Body: resp}, nil
}

func (s *Server) checkSearchIndex() ComponentHealth {
	if s.search == nil {
		return ComponentHealth{Status: degraded, Message: "search disabled"}
	}

	start := time.Now()
	total, err := s.search.Total()
	latency := time.Since(start).String()
	if err != nil {
		return ComponentHealth{Status: unhealthy, Latency: latency, Message: "search index unreachable"}
	}
	return ComponentHealth{
		Status:  healthy,
		Latency: latency,
		Message: countOf(int(total), "indexed book", "indexed books"),
	}
}

func (s *Server) checkStreams() ComponentHealth {
	if s.sseManager == nil {
		return ComponentHealth{Status: degraded, Message: "live updates disabled"}
	}
	return ComponentHealth{
		Status:  healthy,
		Message: countOf(s.sseManager.ClientCount(), "connected client", "connected clients"),
	}
}

func (s *Server) checkTrackers() ComponentHealth {
	return ComponentHealth{
		Status:  healthy,
		Message: countOf(s.registry.Len(), "active user", "active users"),
	}
}

// countOf renders n with the singular or plural noun: "no books", "1 book", "3 books".
func countOf(n int, one, many string) string {
	switch n {
	case 0:
		return "no " + many
	case 1:
		return "1 " + one
	default:
		return strconv.Itoa(n) + " " + many
	}
}
