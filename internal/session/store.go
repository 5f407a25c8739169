package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"transcriber/internal/api"
	"transcriber/internal/localstore"
	"transcriber/internal/logging"
)

// StorageKey is the durable entry holding the serialized credentials.
const StorageKey = "access_token"

// LoginRoute is the route name LogOut navigates to.
const LoginRoute = "login"

// ErrPersistence reports that durable storage could not be updated. The
// in-memory session is still authoritative when it is returned.
var ErrPersistence = errors.New("session persistence failed")

// Navigator moves the client to a named route.
type Navigator interface {
	Navigate(route string) error
}

// Snapshot is a point-in-time copy of the session.
type Snapshot struct {
	Credentials  *api.Credentials
	Avatar       []byte
	UploadedFile string
}

// Store holds the session state.
type Store struct {
	storage localstore.Storage
	nav     Navigator
	logger  *slog.Logger

	mu           sync.RWMutex
	creds        *api.Credentials
	avatar       []byte
	uploadedFile string
}

// NewStore builds an empty, unauthenticated session. nav may be nil.
func NewStore(storage localstore.Storage, nav Navigator, logger *slog.Logger) *Store {
	if storage == nil {
		storage = localstore.NewMemory()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store{
		storage: storage,
		nav:     nav,
		logger:  logging.NewComponentLogger(logger, "session"),
	}
}

// SetNavigator replaces the navigator used by LogOut.
func (s *Store) SetNavigator(nav Navigator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nav = nav
}

// Restore loads persisted credentials. It reports whether a session was
// restored. Unreadable storage and corrupt entries both leave the session
// signed out; a corrupt entry is removed.
func (s *Store) Restore() bool {
	ctx := context.Background()
	raw, ok, err := s.storage.Get(StorageKey)
	if err != nil {
		hint := "check storage.path permissions"
		if errors.Is(err, localstore.ErrCorrupt) {
			hint = "remove the corrupt storage file"
		}
		logging.WarnWithContext(ctx, s.logger, "session storage unreadable", "storage_unavailable",
			logging.Error(err),
			logging.Impact("starting signed out"),
			logging.Hint(hint),
		)
		return false
	}
	if !ok {
		s.logger.Debug("no stored session")
		return false
	}

	var creds *api.Credentials
	if err := json.Unmarshal([]byte(raw), &creds); err != nil || creds == nil {
		if err == nil {
			err = errors.New("stored session is null")
		}
		attrs := []logging.Attr{
			logging.Error(err),
			logging.Impact("stored session discarded"),
			logging.Hint("log in again"),
		}
		if rmErr := s.storage.Remove(StorageKey); rmErr != nil {
			attrs = append(attrs, logging.String("remove_error", rmErr.Error()))
		}
		logging.WarnWithContext(ctx, s.logger, "stored session corrupt", "session_corrupt", attrs...)
		return false
	}

	s.mu.Lock()
	s.creds = creds
	s.mu.Unlock()
	s.logger.Info("session restored")
	return true
}

// LogIn replaces the session with creds and persists them. No shape
// validation is performed. A persistence failure keeps the in-memory session
// and returns an error matching ErrPersistence.
func (s *Store) LogIn(creds api.Credentials) error {
	copyCreds := creds
	s.mu.Lock()
	s.creds = &copyCreds
	s.mu.Unlock()

	payload, err := json.Marshal(copyCreds)
	if err != nil {
		return fmt.Errorf("%w: encode credentials: %w", ErrPersistence, err)
	}
	if err := s.storage.Set(StorageKey, string(payload)); err != nil {
		logging.WarnWithContext(context.Background(), s.logger, "session not persisted", "storage_unavailable",
			logging.Error(err),
			logging.Impact("session lasts only for this process"),
		)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	s.logger.Info("logged in")
	return nil
}

// LogOut clears the session, removes the persisted entry and navigates to the
// login route. Memory is cleared and navigation happens even when removal
// fails; the removal failure is returned as ErrPersistence.
func (s *Store) LogOut() error {
	s.mu.Lock()
	s.creds = nil
	s.avatar = nil
	s.uploadedFile = ""
	nav := s.nav
	s.mu.Unlock()

	var errs []error
	if err := s.storage.Remove(StorageKey); err != nil {
		logging.WarnWithContext(context.Background(), s.logger, "stored session not removed", "storage_unavailable",
			logging.Error(err),
			logging.Impact("next start may restore the old session"),
		)
		errs = append(errs, fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	if nav != nil {
		if err := nav.Navigate(LoginRoute); err != nil {
			errs = append(errs, fmt.Errorf("navigate to %s: %w", LoginRoute, err))
		}
	}
	s.logger.Info("logged out")
	return errors.Join(errs...)
}

// IsAuthenticated reports whether credentials are held in memory.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds != nil
}

// Credentials implements api.TokenSource.
func (s *Store) Credentials() (api.Credentials, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil {
		return api.Credentials{}, false
	}
	return *s.creds, true
}

// Session returns a copy of the current state.
func (s *Store) Session() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{UploadedFile: s.uploadedFile}
	if s.creds != nil {
		c := *s.creds
		snap.Credentials = &c
	}
	if s.avatar != nil {
		snap.Avatar = append([]byte(nil), s.avatar...)
	}
	return snap
}

// SetAvatar stores the avatar image bytes in memory.
func (s *Store) SetAvatar(image []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if image == nil {
		s.avatar = nil
		return
	}
	s.avatar = append([]byte(nil), image...)
}

// SetUploadedFile records the most recently uploaded file.
func (s *Store) SetUploadedFile(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploadedFile = ref
}
