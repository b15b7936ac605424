package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/lucidlyapp/lucidly/internal/color"
	"github.com/lucidlyapp/lucidly/internal/domain"
)

func (s *Server) registerStatsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getPace",
		Method:      http.MethodGet,
		Path:        "/api/v1/stats/pace",
		Summary:     "Reading pace",
		Description: "Compares finished books with the annual goal as of today",
		Tags:        []string{"Stats"},
		Security:    []map[string][]string{{"session": {}}},
	}, s.handleGetPace)

	huma.Register(s.api, huma.Operation{
		OperationID: "getShelf",
		Method:      http.MethodGet,
		Path:        "/api/v1/shelf",
		Summary:     "Shelf",
		Description: "Finished books in completion order, each with its spine color",
		Tags:        []string{"Stats"},
		Security:    []map[string][]string{{"session": {}}},
	}, s.handleGetShelf)
}

// PaceResponse contains the pace indicator.
type PaceResponse struct {
	Goal          int     `json:"goal" doc:"Books to finish this year"`
	Year          int     `json:"year" doc:"Goal year"`
	Finished      int     `json:"finished" doc:"Books finished"`
	DayOfYear     int     `json:"day_of_year" doc:"Whole days since January 1"`
	Expected      float64 `json:"expected" doc:"Books expected by today"`
	Delta         float64 `json:"delta" doc:"Finished minus expected"`
	DaysRemaining int     `json:"days_remaining" doc:"Days left in the goal year"`
	Progress      float64 `json:"progress" doc:"Finished over goal, capped at 1"`
	Message       string  `json:"message" doc:"Summary sentence"`
}

// PaceOutput wraps the pace response for Huma.
type PaceOutput struct {
	Body PaceResponse
}

// ShelfBookResponse is one finished book on the shelf.
type ShelfBookResponse struct {
	ID            string `json:"id" doc:"Book ID"`
	Title         string `json:"title" doc:"Title"`
	Author        string `json:"author" doc:"Author"`
	DateCompleted string `json:"date_completed" doc:"Completion date, YYYY-MM-DD"`
	Color         string `json:"color" doc:"Spine color as CSS hsl()"`
	Hex           string `json:"hex" doc:"Spine color as #RRGGBB"`
}

// ShelfResponse contains the shelf.
type ShelfResponse struct {
	Books []ShelfBookResponse `json:"books" doc:"Finished books, earliest completion first"`
}

// ShelfOutput wraps the shelf response for Huma.
type ShelfOutput struct {
	Body ShelfResponse
}

func (s *Server) handleGetPace(ctx context.Context, _ *struct{}) (*PaceOutput, error) {
	t, err := s.loadedTracker(ctx)
	if err != nil {
		return nil, err
	}

	p := domain.ComputePace(s.opts.Goal, t.Books(), s.now())
	return &PaceOutput{
		Body: PaceResponse{
			Goal:          s.opts.Goal.Books,
			Year:          s.opts.Goal.Year,
			Finished:      p.Finished,
			DayOfYear:     p.DayOfYear,
			Expected:      p.Expected,
			Delta:         p.Delta,
			DaysRemaining: p.DaysRemaining,
			Progress:      p.Progress,
			Message:       p.Message,
		},
	}, nil
}

func (s *Server) handleGetShelf(ctx context.Context, _ *struct{}) (*ShelfOutput, error) {
	t, err := s.loadedTracker(ctx)
	if err != nil {
		return nil, err
	}

	shelf := domain.Shelf(t.Books())
	books := make([]ShelfBookResponse, len(shelf))
	for i, b := range shelf {
		spine := color.ForTitle(b.Title)
		books[i] = ShelfBookResponse{
			ID:            b.ID,
			Title:         b.Title,
			Author:        b.Author,
			DateCompleted: b.DateCompleted.String(),
			Color:         spine.CSS(),
			Hex:           spine.Hex(),
		}
	}
	return &ShelfOutput{Body: ShelfResponse{Books: books}}, nil
}
