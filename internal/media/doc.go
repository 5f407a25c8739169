// Package media wraps the ffmpeg tools used before an upload.
//
// Key types:
//   - Probe: parsed ffprobe output (streams and container duration)
//   - Cutter: trims a source file to a time range with stream copy
//
// Primary entry points:
//   - Inspect: executes ffprobe and returns the parsed Probe
//   - Cutter.Cut: writes the trimmed copy to a temporary file
package media
