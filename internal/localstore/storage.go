package localstore

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"transcriber/internal/config"
)

// ErrUnavailable marks failures caused by storage the environment will not
// let us use (missing permissions, unopenable database, held lock).
var ErrUnavailable = errors.New("local storage unavailable")

// ErrCorrupt marks a stored document that does not decode and could not be
// moved aside.
var ErrCorrupt = errors.New("local storage corrupt")

// Storage is a synchronous string key-value store. Get reports ok=false for
// absent keys; Remove of an absent key is not an error.
type Storage interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
	Close() error
}

// Open builds the storage backend selected by cfg.Storage.Backend. logger may
// be nil.
func Open(cfg *config.Config, logger *slog.Logger) (Storage, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	backend := strings.TrimSpace(cfg.Storage.Backend)
	if backend == config.StorageMemory {
		return NewMemory(), nil
	}

	path := cfg.StoragePath()
	if err := ProbeWritable(filepath.Dir(path)); err != nil {
		return nil, err
	}

	switch backend {
	case config.StorageFile:
		return NewFile(path, WithFileLogger(logger)), nil
	case config.StorageSQLite, "":
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// ProbeWritable verifies that dir exists (creating it if needed) and that the
// current user may create files in it.
func ProbeWritable(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("%w: empty storage directory", ErrUnavailable)
	}
	if err := mkdirAll(dir); err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrUnavailable, dir, err)
	}
	if err := unix.Access(dir, unix.W_OK|unix.X_OK); err != nil {
		return fmt.Errorf("%w: %s not writable: %w", ErrUnavailable, dir, err)
	}
	return nil
}
