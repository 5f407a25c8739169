package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"transcriber/internal/logging"
)

// CorruptSuffix is appended to a document that failed to decode when it is
// moved out of the way.
const CorruptSuffix = ".corrupt"

// File stores entries as a JSON object on disk. Every operation takes an
// exclusive flock on "<path>.lock" so read-modify-write cycles from separate
// processes do not lose updates. A document that no longer decodes is moved
// to "<path>.corrupt" and the store starts over empty.
type File struct {
	path   string
	lock   *flock.Flock
	logger *slog.Logger
}

// FileOption configures a File.
type FileOption func(*File)

// WithFileLogger reports recovered documents to logger.
func WithFileLogger(logger *slog.Logger) FileOption {
	return func(f *File) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFile builds a File rooted at the provided path. The file is created on
// first write.
func NewFile(path string, opts ...FileOption) *File {
	f := &File{path: path, lock: flock.New(path + ".lock"), logger: logging.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	f.logger = logging.NewComponentLogger(f.logger, "localstore")
	return f
}

// Path returns the backing file location.
func (f *File) Path() string { return f.path }

func (f *File) Get(key string) (string, bool, error) {
	var (
		value string
		ok    bool
	)
	err := f.withLock(func() error {
		entries, err := f.load()
		if err != nil {
			return err
		}
		value, ok = entries[key]
		return nil
	})
	return value, ok, err
}

func (f *File) Set(key, value string) error {
	return f.withLock(func() error {
		entries, err := f.load()
		if err != nil {
			return err
		}
		entries[key] = value
		return f.save(entries)
	})
}

func (f *File) Remove(key string) error {
	return f.withLock(func() error {
		entries, err := f.load()
		if err != nil {
			return err
		}
		if _, ok := entries[key]; !ok {
			return nil
		}
		delete(entries, key)
		return f.save(entries)
	})
}

func (f *File) Close() error { return nil }

func (f *File) withLock(fn func() error) error {
	if err := f.lock.Lock(); err != nil {
		return fmt.Errorf("%w: lock %s: %w", ErrUnavailable, f.lock.Path(), err)
	}
	defer func() { _ = f.lock.Unlock() }()
	return fn()
}

// load reads the document. A missing file is an empty store.
func (f *File) load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("%w: read %s: %w", ErrUnavailable, f.path, err)
	}
	entries := map[string]string{}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return f.quarantine(err)
	}
	if entries == nil {
		entries = map[string]string{}
	}
	return entries, nil
}

// quarantine moves an undecodable document aside so later writes succeed.
// Must be called with the lock held.
func (f *File) quarantine(decodeErr error) (map[string]string, error) {
	target := f.path + CorruptSuffix
	if err := os.Rename(f.path, target); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w (move aside: %v)", ErrCorrupt, f.path, decodeErr, err)
	}
	logging.WarnWithContext(context.Background(), f.logger, "local storage corrupt, starting empty", "storage_corrupt",
		logging.Error(decodeErr),
		logging.String("path", f.path),
		logging.String("moved_to", target),
		logging.Impact("stored session and client id discarded"),
		logging.Hint("log in again"),
	)
	return map[string]string{}, nil
}

func (f *File) save(entries map[string]string) error {
	if err := mkdirAll(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("%w: ensure storage directory: %w", ErrUnavailable, err)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode local storage: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrUnavailable, tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: replace %s: %w", ErrUnavailable, f.path, err)
	}
	return nil
}

func mkdirAll(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o700)
}
