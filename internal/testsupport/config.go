package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"transcriber/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Storage defaults to the in-memory backend.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Storage.Backend = config.StorageMemory
	cfgVal.Backend.URL = "http://127.0.0.1:1"
	cfgVal.Backend.TimeoutSeconds = 5
	cfgVal.Watch.PollIntervalSeconds = 1
	cfgVal.Watch.MaxRequestsPerSecond = 100
	cfgVal.Upload.ProbeMedia = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithBackendURL points the test config at a backend origin.
func WithBackendURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Backend.URL = url
	}
}

// WithStorageBackend selects a durable storage backend under the state dir.
func WithStorageBackend(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Storage.Backend = backend
	}
}

// WithStubbedFFmpeg writes a shell stub named ffmpeg that copies the -i input
// to the final argument, and points the config at it.
func WithStubbedFFmpeg() ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte(`#!/bin/sh
in=""
out=""
while [ $# -gt 0 ]; do
  case "$1" in
    -i) in="$2"; shift ;;
  esac
  out="$1"
  shift
done
cp "$in" "$out"
`)
		target := filepath.Join(binDir, "ffmpeg")
		if err := os.WriteFile(target, script, 0o755); err != nil {
			b.t.Fatalf("write ffmpeg stub: %v", err)
		}
		b.cfg.Upload.FFmpegBinary = target
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
