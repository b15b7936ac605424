package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Params configures a search.
type Params struct {
	UserID string
	Query  string
	Status string // empty for every status
	Limit  int
}

// DefaultLimit caps the number of hits when Params.Limit is unset.
const DefaultLimit = 20

// Result holds the hits of a search.
type Result struct {
	Query  string `json:"query"`
	Total  uint64 `json:"total"`
	TookMs int64  `json:"took_ms"`
	Hits   []Hit  `json:"hits"`
}

// Hit is one matching book.
type Hit struct {
	BookID      string            `json:"book_id"`
	Score       float64           `json:"score"`
	Title       string            `json:"title"`
	Author      string            `json:"author"`
	Status      string            `json:"status"`
	DateStarted string            `json:"date_started"`
	Highlights  map[string]string `json:"highlights,omitempty"`
}

// Search finds the user's books matching params. An empty query lists every
// book, newest start first.
func (s *Index) Search(ctx context.Context, params Params) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.flush(params.UserID); err != nil {
		return nil, err
	}

	limit := params.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	req := bleve.NewSearchRequestOptions(buildSearchQuery(params), limit, 0, false)
	if strings.TrimSpace(params.Query) == "" {
		req.SortBy([]string{"-date_started", "title"})
	} else {
		req.SortBy([]string{"-_score"})
		req.Highlight = bleve.NewHighlight()
		req.Highlight.AddField("title")
		req.Highlight.AddField("author")
	}
	req.Fields = []string{"book_id", "title", "author", "status", "date_started"}

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &Result{
		Query:  params.Query,
		Total:  res.Total,
		TookMs: res.Took.Milliseconds(),
		Hits:   make([]Hit, 0, len(res.Hits)),
	}
	for _, h := range res.Hits {
		hit := Hit{Score: h.Score}
		hit.BookID, _ = h.Fields["book_id"].(string)
		hit.Title, _ = h.Fields["title"].(string)
		hit.Author, _ = h.Fields["author"].(string)
		hit.Status, _ = h.Fields["status"].(string)
		hit.DateStarted, _ = h.Fields["date_started"].(string)

		if len(h.Fragments) > 0 {
			hit.Highlights = make(map[string]string)
			for field, fragments := range h.Fragments {
				if len(fragments) > 0 {
					hit.Highlights[field] = fragments[0]
				}
			}
		}
		result.Hits = append(result.Hits, hit)
	}
	return result, nil
}

// buildSearchQuery scopes the text query to the owner and optional status.
func buildSearchQuery(params Params) query.Query {
	owner := bleve.NewTermQuery(params.UserID)
	owner.SetField("user_id")
	queries := []query.Query{owner}

	if params.Status != "" {
		status := bleve.NewTermQuery(params.Status)
		status.SetField("status")
		queries = append(queries, status)
	}

	if q := strings.TrimSpace(params.Query); q != "" {
		title := bleve.NewMatchQuery(q)
		title.SetField("title")
		title.SetBoost(3.0)

		author := bleve.NewMatchQuery(q)
		author.SetField("author")
		author.SetBoost(2.0)

		intention := bleve.NewMatchQuery(q)
		intention.SetField("intention")

		notes := bleve.NewMatchQuery(q)
		notes.SetField("notes")

		// Typo tolerance on titles
		fuzzy := bleve.NewFuzzyQuery(strings.ToLower(q))
		fuzzy.SetFuzziness(1)
		fuzzy.SetField("title")
		fuzzy.SetBoost(0.8)

		text := []query.Query{title, author, intention, notes, fuzzy}

		// Prefix query for autocomplete (minimum 2 chars)
		if len(q) >= 2 {
			prefix := bleve.NewPrefixQuery(strings.ToLower(q))
			prefix.SetField("title")
			prefix.SetBoost(0.5)
			text = append(text, prefix)
		}
		queries = append(queries, bleve.NewDisjunctionQuery(text...))
	}

	return bleve.NewConjunctionQuery(queries...)
}
