package search

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/lucidlyapp/lucidly/internal/domain"
	"github.com/lucidlyapp/lucidly/internal/tracker"
)

// Index is an in-memory book index shared by all users.
//
// Tracker changes are recorded as pending snapshots and applied the next time
// the user searches, so observing never waits on Bleve.
type Index struct {
	index  bleve.Index
	logger *slog.Logger

	// mu serializes index access and guards indexed.
	mu      sync.Mutex
	indexed map[string]map[string]struct{} // userID -> doc ids in the index

	pendingMu sync.Mutex
	pending   map[string][]domain.Book // userID -> latest list not yet indexed
}

// New creates an empty in-memory index.
func New(logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return &Index{
		index:   index,
		logger:  logger,
		pending: make(map[string][]domain.Book),
		indexed: make(map[string]map[string]struct{}),
	}, nil
}

// Close closes the index and releases resources.
func (s *Index) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// Observe implements tracker.Observer.
func (s *Index) Observe(c tracker.Change) {
	if c.Kind == tracker.ChangeLoading {
		return
	}
	s.pendingMu.Lock()
	s.pending[c.UserID] = c.Books
	s.pendingMu.Unlock()
}

// DocumentCount returns the number of indexed documents of userID, after
// applying pending changes.
func (s *Index) DocumentCount(userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.flush(userID); err != nil {
		return 0, err
	}
	return len(s.indexed[userID]), nil
}

// takePending removes and returns the pending list of userID.
func (s *Index) takePending(userID string) ([]domain.Book, bool) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	books, ok := s.pending[userID]
	delete(s.pending, userID)
	return books, ok
}

// restorePending puts back a list that failed to index, unless a newer one
// arrived meanwhile.
func (s *Index) restorePending(userID string, books []domain.Book) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	if _, newer := s.pending[userID]; !newer {
		s.pending[userID] = books
	}
}

// flush replaces the indexed documents of userID with its pending list.
// Caller holds s.mu.
func (s *Index) flush(userID string) (err error) {
	books, ok := s.takePending(userID)
	if !ok {
		return nil
	}
	defer func() {
		if err != nil {
			s.restorePending(userID, books)
		}
	}()

	batch := s.index.NewBatch()
	next := make(map[string]struct{}, len(books))
	for _, b := range books {
		doc := FromBook(userID, b)
		if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
			return fmt.Errorf("batch index %s: %w", doc.ID, err)
		}
		next[doc.ID] = struct{}{}
	}
	for id := range s.indexed[userID] {
		if _, keep := next[id]; !keep {
			batch.Delete(id)
		}
	}
	if err := s.index.Batch(batch); err != nil {
		return fmt.Errorf("commit batch for %s: %w", userID, err)
	}

	if len(next) == 0 {
		delete(s.indexed, userID)
	} else {
		s.indexed[userID] = next
	}
	s.logger.Debug("search index synced", "user_id", userID, "documents", len(next))
	return nil
}

// Total returns the number of indexed documents across all users. Pending
// changes are not applied.
func (s *Index) Total() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.DocCount()
}
