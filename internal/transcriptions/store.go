package transcriptions

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"transcriber/internal/api"
	"transcriber/internal/logging"
	"transcriber/internal/textutil"
)

// Lister performs GET /transcriptions.
type Lister interface {
	Transcriptions(ctx context.Context) ([]api.Transcription, error)
}

// Store is an ordered collection of transcription records.
type Store struct {
	lister Lister
	logger *slog.Logger

	mu      sync.RWMutex
	records []api.Transcription
	issued  uint64
	applied uint64
	synced  bool
}

// NewStore returns an empty collection.
func NewStore(lister Lister, logger *slog.Logger) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store{
		lister: lister,
		logger: logging.NewComponentLogger(logger, "transcriptions"),
	}
}

// Append adds record at the tail.
func (s *Store) Append(record api.Transcription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
}

// Refresh replaces the collection with the backend list. Responses older than
// an already applied refresh are dropped. A failed fetch leaves the
// collection unchanged.
func (s *Store) Refresh(ctx context.Context) error {
	if s.lister == nil {
		return errors.New("transcription lister not configured")
	}
	s.mu.Lock()
	s.issued++
	ticket := s.issued
	s.mu.Unlock()

	records, err := s.lister.Transcriptions(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket <= s.applied {
		s.logger.Debug("discarded stale transcription list", logging.Int64("ticket", int64(ticket)))
		return nil
	}
	s.applied = ticket
	s.records = append([]api.Transcription(nil), records...)
	s.synced = true
	s.logger.Debug("transcriptions refreshed", logging.Int("count", len(records)))
	return nil
}

// Synced reports whether at least one Refresh has been applied.
func (s *Store) Synced() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.synced
}

// List returns a copy of the collection in order.
func (s *Store) List() []api.Transcription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]api.Transcription{}, s.records...)
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Find returns the first record with id.
func (s *Store) Find(id string) (api.Transcription, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, record := range s.records {
		if record.ID == id {
			return record, true
		}
	}
	return api.Transcription{}, false
}

// Remove drops every record with id and reports how many were removed.
func (s *Store) Remove(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.records[:0]
	removed := 0
	for _, record := range s.records {
		if record.ID == id {
			removed++
			continue
		}
		kept = append(kept, record)
	}
	clear(s.records[len(kept):])
	s.records = kept
	return removed
}

// Result is a ranked search hit.
type Result struct {
	Record api.Transcription
	Score  float64
}

// Search ranks the cached records against query by name and text. Records
// with no shared terms are omitted.
func (s *Store) Search(query string) []Result {
	records := s.List()
	docs := make([]string, len(records))
	for i, record := range records {
		docs[i] = record.DisplayName() + "\n" + record.Text
	}
	matches := textutil.NewIndex(docs).Search(query)
	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		results = append(results, Result{Record: records[m.Position], Score: m.Score})
	}
	return results
}
