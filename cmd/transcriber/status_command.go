package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"transcriber/internal/api"
	"transcriber/internal/app"
	"transcriber/internal/notifications"
	"transcriber/internal/router"
	"transcriber/internal/status"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var watch bool
	var interval time.Duration
	var jsonOut bool

	cmd := &cobra.Command{
		Use:         "status",
		Short:       "Show whether a transcription is running",
		Args:        cobra.NoArgs,
		Annotations: routeAnnotation(router.Home),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			if !watch {
				snap, err := a.Status.Refresh(cmd.Context())
				if err != nil {
					return ctx.apiError(err)
				}
				if jsonOut {
					return writeJSON(cmd, statusJSON(snap))
				}
				for _, line := range snapshotLines(snap, colorize) {
					fmt.Fprintln(out, line)
				}
				return nil
			}

			if interval <= 0 {
				interval = a.Config.PollInterval()
			}
			watchCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			watchCtx, cancel := context.WithCancel(watchCtx)
			defer cancel()

			var fatal error
			var last status.Snapshot
			var jobID string
			sawRunning := false
			err = a.Status.Watch(watchCtx, interval, a.WatchLimiter(), func(snap status.Snapshot) {
				last = snap
				if snap.Status == status.Transcribing {
					sawRunning = true
					if snap.HasJobID() {
						jobID = snap.JobID
					}
				}
				if jsonOut {
					_ = writeJSON(cmd, statusJSON(snap))
					return
				}
				stamp := time.Now().Format("15:04:05")
				for _, line := range snapshotLines(snap, colorize) {
					fmt.Fprintf(out, "%s %s\n", stamp, line)
				}
			}, func(err error) {
				if errors.Is(err, api.ErrUnauthorized) {
					fatal = ctx.apiError(err)
					cancel()
					return
				}
				fmt.Fprintln(cmd.ErrOrStderr(), renderStatusLine("Backend", statusError, err.Error(), false))
			})
			if fatal != nil {
				return fatal
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				return ctx.apiError(err)
			}
			if err == nil && sawRunning {
				notifyFinished(cmd, a, last, jobID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Poll until the running transcription finishes")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Polling interval (defaults to watch.poll_interval_seconds)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON")
	return cmd
}

// notifyFinished announces the end of a watched transcription. The backend
// only reports idle afterwards, so anything but an error reads as finished.
func notifyFinished(cmd *cobra.Command, a *app.App, snap status.Snapshot, jobID string) {
	if !notifications.Enabled(a.Notifier) {
		return
	}
	payload := notifications.Payload{"jobID": jobID}
	if snap.Status == status.Error {
		payload["status"] = "failed"
	}
	err := a.Notifier.Publish(cmd.Context(), notifications.EventTranscriptionFinished, payload)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), renderStatusLine("Notify", statusWarn, err.Error(), false))
	}
}

type statusPayload struct {
	Status         string  `json:"status"`
	Label          string  `json:"label"`
	JobID          string  `json:"job_id,omitempty"`
	UploadProgress float64 `json:"upload_progress"`
}

func statusJSON(snap status.Snapshot) statusPayload {
	return statusPayload{
		Status:         string(snap.Status),
		Label:          snap.Status.Label(),
		JobID:          snap.JobID,
		UploadProgress: snap.UploadProgress,
	}
}
