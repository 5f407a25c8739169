package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"transcriber/internal/api"
	"transcriber/internal/deps"
	"transcriber/internal/status"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Transcription", statusError, "Error", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Transcription:", "[ERROR] Error")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Transcription", statusOK, "Transcribed", true)
	if !strings.HasPrefix(got, ansiGreen) || !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected green line, got %q", got)
	}
}

func TestSnapshotLines(t *testing.T) {
	lines := snapshotLines(status.Snapshot{Status: status.Transcribing, JobID: "j9"}, false)
	if len(lines) != 1 || !strings.Contains(lines[0], "[WARN] Transcribing (job j9)") {
		t.Fatalf("unexpected lines %q", lines)
	}
	lines = snapshotLines(status.Snapshot{Status: status.Uploading, UploadProgress: 42.4}, false)
	if len(lines) != 2 || !strings.Contains(lines[1], "42%") {
		t.Fatalf("expected upload progress line, got %q", lines)
	}
}

func TestRenderTranscriptionTable(t *testing.T) {
	out := renderTranscriptionTable([]api.Transcription{
		{ID: "a1", TranscriptionName: "weekly sync", FileName: "sync.mp3", CreatedAt: "09.03.2024 14:05:00", Text: "one two three"},
		{ID: "b2", FileName: "raw.wav"},
	})
	for _, fragment := range []string{"weekly sync", "2024-03-09 14:05", "raw.wav", "2 transcription(s)"} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("expected %q in table:\n%s", fragment, out)
		}
	}
}

func TestMaskToken(t *testing.T) {
	if got := maskToken("abcdefghijkl"); got != "abcd****ijkl" {
		t.Fatalf("unexpected mask %q", got)
	}
	if got := maskToken("short"); got != "*****" {
		t.Fatalf("unexpected short mask %q", got)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatal("expected non-file writer to disable color")
	}
}

func TestDependencyLines(t *testing.T) {
	lines := dependencyLines([]deps.Status{
		{Name: "FFmpeg", Available: true, Version: "ffmpeg version 6.1"},
		{Name: "FFprobe", Detail: `binary "ffprobe" not found`, Description: "Checks that uploads carry an audio stream", Optional: true},
		{Name: "Required", Detail: "command not configured", Description: "Needed"},
	}, false)
	if len(lines) != 3 {
		t.Fatalf("expected three lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "[OK] Ready (ffmpeg version 6.1)") {
		t.Fatalf("unexpected ready line %q", lines[0])
	}
	if !strings.Contains(lines[1], "[WARN]") || !strings.Contains(lines[1], "checks that uploads carry an audio stream is disabled") {
		t.Fatalf("unexpected optional line %q", lines[1])
	}
	if !strings.Contains(lines[2], "[ERROR] command not configured") {
		t.Fatalf("unexpected required line %q", lines[2])
	}
}
