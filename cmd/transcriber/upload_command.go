package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"transcriber/internal/media"
	"transcriber/internal/router"
	"transcriber/internal/upload"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var from string
	var to string
	var noProgress bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:         "upload <file>",
		Short:       "Upload a media file and wait for its transcription",
		Args:        cobra.ExactArgs(1),
		Annotations: routeAnnotation(router.Home),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			window, err := parseWindow(from, to)
			if err != nil {
				return err
			}
			if !window.IsZero() && !a.FFmpegAvailable() {
				return fmt.Errorf("--from/--to need ffmpeg; %q not found (set upload.ffmpeg_binary)", a.Config.Upload.FFmpegBinary)
			}

			path := args[0]
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("upload source: %w", err)
			}

			req := upload.Request{Path: path, Window: window}
			var bar *progressbar.ProgressBar
			if !noProgress && !jsonOut {
				bar = progressbar.NewOptions(100,
					progressbar.OptionSetWriter(cmd.ErrOrStderr()),
					progressbar.OptionSetDescription("Uploading "+info.Name()),
					progressbar.OptionSetWidth(30),
					progressbar.OptionShowElapsedTimeOnFinish(),
					progressbar.OptionClearOnFinish(),
				)
				req.Progress = func(percent float64) {
					_ = bar.Set(int(percent))
				}
			}

			result, err := a.Upload.Run(cmd.Context(), req)
			if bar != nil {
				_ = bar.Finish()
			}
			if err != nil {
				if errors.Is(err, upload.ErrBusy) {
					return errors.New("the backend is already transcribing; try again when `transcriber status` reports idle")
				}
				return ctx.apiError(err)
			}
			if jsonOut {
				return writeJSON(cmd, result.Transcription)
			}

			out := cmd.OutOrStdout()
			source := humanize.Bytes(uint64(result.Bytes))
			if result.Cut {
				source += " (cut)"
			}
			fmt.Fprintf(out, "Uploaded %s, %s\n", info.Name(), source)
			fmt.Fprintf(out, "Transcription %s ready: `transcriber show %s`\n", result.Transcription.ID, result.Transcription.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Start offset (e.g. 90, 1:30 or 1m30s)")
	cmd.Flags().StringVar(&to, "to", "", "End offset (same formats as --from)")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Hide the progress bar")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the created record as JSON")
	return cmd
}

func parseWindow(from, to string) (media.Range, error) {
	start, err := parseOffset(from)
	if err != nil {
		return media.Range{}, fmt.Errorf("--from: %w", err)
	}
	end, err := parseOffset(to)
	if err != nil {
		return media.Range{}, fmt.Errorf("--to: %w", err)
	}
	window := media.Range{From: start, To: end}
	if err := window.Validate(); err != nil {
		return media.Range{}, err
	}
	return window, nil
}

// parseOffset accepts seconds ("90", "12.5"), clock notation ("1:30",
// "1:02:03") or Go durations ("1m30s").
func parseOffset(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		if seconds < 0 {
			return 0, fmt.Errorf("offset %q is negative", value)
		}
		return time.Duration(seconds * float64(time.Second)), nil
	}
	if strings.Contains(value, ":") {
		parts := strings.Split(value, ":")
		if len(parts) > 3 {
			return 0, fmt.Errorf("offset %q has too many fields", value)
		}
		var total float64
		for _, part := range parts {
			n, err := strconv.ParseFloat(part, 64)
			if err != nil || n < 0 {
				return 0, fmt.Errorf("offset %q is not a valid clock time", value)
			}
			total = total*60 + n
		}
		return time.Duration(total * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("offset %q: %w", value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("offset %q is negative", value)
	}
	return d, nil
}
