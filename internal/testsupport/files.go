package testsupport

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// wavMagic opens every fixture so it reads as a WAV container at a glance.
var wavMagic = []byte("RIFF\x00\x00\x00\x00WAVEfmt ")

// WriteFile creates a stand-in media file of exactly size bytes at path: the
// WAV magic followed by silence. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}

	header := wavMagic
	if int64(len(header)) > size {
		header = header[:size]
	}
	body := io.MultiReader(bytes.NewReader(header), io.LimitReader(silence{}, size-int64(len(header))))

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		t.Fatalf("write %s: %v", path, err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close %s: %v", path, err)
	}
}

type silence struct{}

func (silence) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}
