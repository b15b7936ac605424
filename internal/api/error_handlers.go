package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/lucidlyapp/lucidly/internal/tracker"
)

func (s *Server) registerErrorRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getError",
		Method:      http.MethodGet,
		Path:        "/api/v1/error",
		Summary:     "Current error",
		Description: "Returns the last store failure, or null",
		Tags:        []string{"Errors"},
		Security:    []map[string][]string{{"session": {}}},
	}, s.handleGetError)

	huma.Register(s.api, huma.Operation{
		OperationID:   "dismissError",
		Method:        http.MethodDelete,
		Path:          "/api/v1/error",
		Summary:       "Dismiss error",
		Description:   "Clears the error banner. Dismissing twice is the same as once",
		Tags:          []string{"Errors"},
		DefaultStatus: http.StatusNoContent,
		Security:      []map[string][]string{{"session": {}}},
	}, s.handleDismissError)
}

// ErrorSlotResponse holds the error slot.
type ErrorSlotResponse struct {
	Error *tracker.Failure `json:"error" doc:"Last store failure, null when clear"`
}

// ErrorSlotOutput wraps the error slot for Huma.
type ErrorSlotOutput struct {
	Body ErrorSlotResponse
}

func (s *Server) handleGetError(ctx context.Context, _ *struct{}) (*ErrorSlotOutput, error) {
	t, err := s.currentTracker(ctx)
	if err != nil {
		return nil, err
	}

	out := &ErrorSlotOutput{}
	if f, ok := t.Error(); ok {
		out.Body.Error = &f
	}
	return out, nil
}

func (s *Server) handleDismissError(ctx context.Context, _ *struct{}) (*struct{}, error) {
	t, err := s.currentTracker(ctx)
	if err != nil {
		return nil, err
	}
	t.Dismiss()
	return nil, nil
}
