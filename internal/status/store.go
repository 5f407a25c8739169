package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"transcriber/internal/api"
	"transcriber/internal/logging"
)

var (
	// ErrInvalidTransition is returned by Transition for moves the table rejects.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidStatus is returned for values outside the enumeration.
	ErrInvalidStatus = errors.New("invalid status")
)

// Fetcher performs GET /status.
type Fetcher interface {
	Status(ctx context.Context) (api.InProgress, error)
}

// Snapshot is a point-in-time copy of the store.
type Snapshot struct {
	Status         Status
	JobID          string
	UploadProgress float64
}

// HasJobID reports whether the backend identified the running job.
func (s Snapshot) HasJobID() bool {
	return s.JobID != ""
}

// Store holds the transcription status.
type Store struct {
	fetcher Fetcher
	logger  *slog.Logger

	mu       sync.Mutex
	status   Status
	jobID    string
	progress float64
	// issued is the last ticket handed to a refresh; applied is the newest
	// ticket whose result is reflected in the state.
	issued  uint64
	applied uint64
}

// NewStore returns a store in the Loading status.
func NewStore(fetcher Fetcher, logger *slog.Logger) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store{
		fetcher: fetcher,
		logger:  logging.NewComponentLogger(logger, "status"),
		status:  Loading,
	}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Status: s.status, JobID: s.jobID, UploadProgress: s.progress}
}

// Status returns the current status.
func (s *Store) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// JobID returns the running job id, if the backend reported one.
func (s *Store) JobID() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobID, s.jobID != ""
}

// SetStatus overwrites the status without consulting the transition table.
// Leaving Transcribing clears the job id.
func (s *Store) SetStatus(next Status) error {
	if !next.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, next)
	}
	s.mu.Lock()
	prev := s.status
	s.setLocked(next, s.jobIDFor(next))
	s.mu.Unlock()
	s.logChange(prev, next)
	return nil
}

// Transition moves to next only when the transition table permits it.
func (s *Store) Transition(next Status) error {
	if !next.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, next)
	}
	s.mu.Lock()
	prev := s.status
	if !CanTransition(prev, next) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prev, next)
	}
	s.setLocked(next, s.jobIDFor(next))
	s.mu.Unlock()
	s.logChange(prev, next)
	return nil
}

// SetUploadProgress overwrites the upload percentage. Values are not clamped.
func (s *Store) SetUploadProgress(value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = value
}

// Refresh fetches the backend status and applies it unless a newer refresh
// or an explicit status change landed first. The fetch error is returned
// unchanged and leaves the state untouched.
func (s *Store) Refresh(ctx context.Context) (Snapshot, error) {
	if s.fetcher == nil {
		return s.Snapshot(), errors.New("status fetcher not configured")
	}
	s.mu.Lock()
	s.issued++
	ticket := s.issued
	s.mu.Unlock()

	inProgress, err := s.fetcher.Status(ctx)
	if err != nil {
		return s.Snapshot(), err
	}

	next, jobID := Transcribing, inProgress.JobID
	if !inProgress.Active() {
		next, jobID = WaitingOnUserInput, ""
	}
	if inProgress.Kind == api.InProgressAnonymous {
		jobID = ""
	}

	s.mu.Lock()
	if ticket <= s.applied {
		snap := Snapshot{Status: s.status, JobID: s.jobID, UploadProgress: s.progress}
		s.mu.Unlock()
		s.logger.Debug("discarded stale status response", logging.Int64("ticket", int64(ticket)))
		return snap, nil
	}
	s.applied = ticket
	prev := s.status
	s.status = next
	s.jobID = jobID
	snap := Snapshot{Status: s.status, JobID: s.jobID, UploadProgress: s.progress}
	s.mu.Unlock()

	s.logChange(prev, next, logging.JobID(jobID))
	return snap, nil
}

// Watch refreshes every interval, calling onChange whenever the snapshot
// differs from the previous one. It returns nil once the backend reports no
// running transcription, or the context error on cancellation. limiter may be
// nil. Refresh failures are handed to onError when set and polling continues;
// without onError the first failure is returned.
func (s *Store) Watch(ctx context.Context, interval time.Duration, limiter *rate.Limiter, onChange func(Snapshot), onError func(error)) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last Snapshot
	first := true
	for {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return ctxErr(ctx, err)
			}
		}
		snap, err := s.Refresh(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case err != nil && onError == nil:
			return err
		case err != nil:
			onError(err)
		default:
			if onChange != nil && (first || snap != last) {
				onChange(snap)
			}
			first = false
			last = snap
			if snap.Status != Transcribing {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// setLocked applies an explicit change and invalidates in-flight refreshes.
func (s *Store) setLocked(next Status, jobID string) {
	s.status = next
	s.jobID = jobID
	s.applied = s.issued
}

func (s *Store) jobIDFor(next Status) string {
	if next == Transcribing {
		return s.jobID
	}
	return ""
}

func (s *Store) logChange(prev, next Status, attrs ...logging.Attr) {
	if prev == next {
		return
	}
	attrs = append(attrs,
		logging.String("previous", string(prev)),
		logging.Status(string(next)),
	)
	s.logger.Info("status changed", logging.Args(attrs...)...)
}
