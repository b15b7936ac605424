package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/lucidlyapp/lucidly/internal/search"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/search",
		Summary:     "Search books",
		Description: "Full-text search over title, author, intention, and notes of your books",
		Tags:        []string{"Search"},
		Security:    []map[string][]string{{"session": {}}},
	}, s.handleSearch)
}

// SearchInput contains search parameters.
type SearchInput struct {
	Query  string `query:"q" doc:"Search terms. Empty lists every book"`
	Status string `query:"status" doc:"Only books with this status: reading, finished, or abandoned"`
	Limit  int    `query:"limit" minimum:"0" maximum:"100" doc:"Maximum hits (default 20)"`
}

// SearchOutput wraps the search result for Huma.
type SearchOutput struct {
	Body *search.Result
}

func (s *Server) handleSearch(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	t, err := s.loadedTracker(ctx)
	if err != nil {
		return nil, err
	}

	result, err := s.search.Search(ctx, search.Params{
		UserID: t.UserID(),
		Query:  input.Query,
		Status: input.Status,
		Limit:  input.Limit,
	})
	if err != nil {
		return nil, err
	}
	return &SearchOutput{Body: result}, nil
}
