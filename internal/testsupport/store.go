package testsupport

import (
	"errors"
	"sync"
	"testing"

	"transcriber/internal/config"
	"transcriber/internal/localstore"
)

// ErrStorageDown is returned by FailingStorage operations that are switched off.
var ErrStorageDown = errors.New("storage down")

// MustOpenStorage opens the configured storage backend and registers cleanup.
func MustOpenStorage(t testing.TB, cfg *config.Config) localstore.Storage {
	t.Helper()

	storage, err := localstore.Open(cfg, nil)
	if err != nil {
		t.Fatalf("localstore.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = storage.Close()
	})
	return storage
}

// FailingStorage is an in-memory Storage whose operations can be made to fail.
type FailingStorage struct {
	mu         sync.Mutex
	entries    map[string]string
	FailGet    bool
	FailSet    bool
	FailRemove bool
}

// NewFailingStorage returns a FailingStorage with every operation succeeding.
func NewFailingStorage() *FailingStorage {
	return &FailingStorage{entries: make(map[string]string)}
}

func (s *FailingStorage) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailGet {
		return "", false, ErrStorageDown
	}
	value, ok := s.entries[key]
	return value, ok, nil
}

func (s *FailingStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSet {
		return ErrStorageDown
	}
	s.entries[key] = value
	return nil
}

func (s *FailingStorage) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailRemove {
		return ErrStorageDown
	}
	delete(s.entries, key)
	return nil
}

func (s *FailingStorage) Close() error { return nil }

// Peek reads an entry regardless of the failure switches.
func (s *FailingStorage) Peek(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.entries[key]
	return value, ok
}
