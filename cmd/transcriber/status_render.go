package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"transcriber/internal/status"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 16
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := fmt.Sprintf("[%s]", statusKindLabel(kind))
	if message != "" {
		statusText += " " + message
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

// transcriptionKind maps a workflow status onto a render severity.
func transcriptionKind(s status.Status) statusKind {
	switch s {
	case status.Transcribed, status.WaitingOnUserInput:
		return statusOK
	case status.Error:
		return statusError
	case status.Cutting, status.Uploading, status.Transcribing:
		return statusWarn
	default:
		return statusInfo
	}
}

func snapshotLines(snap status.Snapshot, colorize bool) []string {
	message := snap.Status.Label()
	if snap.HasJobID() {
		message += " (job " + snap.JobID + ")"
	}
	lines := []string{renderStatusLine("Transcription", transcriptionKind(snap.Status), message, colorize)}
	if snap.Status == status.Uploading {
		lines = append(lines, renderStatusLine("Upload", statusInfo, fmt.Sprintf("%.0f%%", snap.UploadProgress), colorize))
	}
	return lines
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
