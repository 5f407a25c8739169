package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Range is a [From, To) window into a media file. A zero To means the end of
// the file.
type Range struct {
	From time.Duration
	To   time.Duration
}

// IsZero reports whether r selects the whole file.
func (r Range) IsZero() bool {
	return r.From == 0 && r.To == 0
}

// Validate rejects negative and inverted windows.
func (r Range) Validate() error {
	if r.From < 0 || r.To < 0 {
		return errors.New("cut range must not be negative")
	}
	if r.To != 0 && r.To <= r.From {
		return fmt.Errorf("cut end %s must be after start %s", r.To, r.From)
	}
	return nil
}

// Cutter trims media with ffmpeg stream copy.
type Cutter struct {
	Binary string
	// TempDir holds cut output; empty uses the system temp dir.
	TempDir string
}

// Cut writes the selected window of src to a temporary file with the same
// extension. The caller removes the returned path when done.
func (c Cutter) Cut(ctx context.Context, src string, window Range) (string, error) {
	if err := window.Validate(); err != nil {
		return "", err
	}
	binary := strings.TrimSpace(c.Binary)
	if binary == "" {
		binary = "ffmpeg"
	}

	out, err := os.CreateTemp(c.TempDir, "cut-*"+filepath.Ext(src))
	if err != nil {
		return "", fmt.Errorf("create cut output: %w", err)
	}
	outPath := out.Name()
	_ = out.Close()

	args := []string{"-hide_banner", "-loglevel", "error", "-y"}
	if window.From > 0 {
		args = append(args, "-ss", formatSeconds(window.From))
	}
	if window.To > 0 {
		args = append(args, "-to", formatSeconds(window.To))
	}
	args = append(args, "-i", src, "-c", "copy", outPath)

	cmd := exec.CommandContext(ctx, binary, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		_ = os.Remove(outPath)
		return "", fmt.Errorf("ffmpeg cut: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return outPath, nil
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
