package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"transcriber/internal/config"
)

const versionTimeout = 5 * time.Second

// Requirement names an external binary the client shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports whether a requirement resolved on this host.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Path        string
	Version     string
	Detail      string
}

// UploadRequirements lists the media tools used by the upload workflow.
// ffprobe becomes mandatory when media probing is enabled.
func UploadRequirements(cfg config.Upload) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary,
			Description: "Cuts media before upload (--from/--to)",
			Optional:    true,
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary,
			Description: "Checks that uploads carry an audio stream",
			Optional:    !cfg.ProbeMedia,
		},
	}
}

// Available reports whether command resolves to an executable.
func Available(command string) bool {
	command = strings.TrimSpace(command)
	if command == "" {
		return false
	}
	_, err := exec.LookPath(command)
	return err == nil
}

// CheckBinaries evaluates the provided requirements and reports availability.
// Resolved binaries are asked for -version; a failing version probe keeps the
// binary available and records the error as detail.
func CheckBinaries(ctx context.Context, requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		path, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Path = path
		version, err := probeVersion(ctx, path)
		if err != nil {
			status.Detail = err.Error()
		}
		status.Version = version
		results = append(results, status)
	}
	return results
}

// Missing returns the required entries that did not resolve.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status)
		}
	}
	return missing
}

func probeVersion(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, path, "-version")
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s -version: %w", path, err)
	}
	scanner := bufio.NewScanner(&stdout)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()), nil
	}
	return "", nil
}
