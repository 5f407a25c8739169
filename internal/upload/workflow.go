package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"transcriber/internal/api"
	"transcriber/internal/logging"
	"transcriber/internal/media"
	"transcriber/internal/notifications"
	"transcriber/internal/status"
	"transcriber/internal/transcriptions"
)

var (
	// ErrBusy is returned when the backend is already transcribing.
	ErrBusy = errors.New("a transcription is already in progress")
	// ErrNoAudio is returned when the probe finds no audio stream.
	ErrNoAudio = errors.New("file has no audio stream")
)

// Uploader sends media to the backend.
type Uploader interface {
	Upload(ctx context.Context, req api.UploadRequest) (api.Transcription, error)
}

// Cutter trims a source file to a window.
type Cutter interface {
	Cut(ctx context.Context, src string, window media.Range) (string, error)
}

// Prober inspects a media file.
type Prober func(ctx context.Context, path string) (media.Probe, error)

// UploadedFileRecorder remembers the last uploaded file for the session.
type UploadedFileRecorder interface {
	SetUploadedFile(ref string)
}

// Request describes one upload.
type Request struct {
	Path   string
	Window media.Range
	// Progress receives the upload percentage as bytes are sent.
	Progress func(percent float64)
}

// Result is the outcome of a successful upload.
type Result struct {
	Transcription api.Transcription
	Bytes         int64
	Cut           bool
}

// Workflow runs uploads against the shared stores.
type Workflow struct {
	uploader   Uploader
	status     *status.Store
	collection *transcriptions.Store
	recorder   UploadedFileRecorder
	cutter     Cutter
	prober     Prober
	notifier   notifications.Service
	logger     *slog.Logger
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithCutter enables cutting for requests with a window.
func WithCutter(cutter Cutter) Option {
	return func(w *Workflow) { w.cutter = cutter }
}

// WithProber enables the audio stream check.
func WithProber(prober Prober) Option {
	return func(w *Workflow) { w.prober = prober }
}

// WithRecorder records the uploaded file name on success.
func WithRecorder(recorder UploadedFileRecorder) Option {
	return func(w *Workflow) { w.recorder = recorder }
}

// WithNotifier publishes completion and failure events.
func WithNotifier(notifier notifications.Service) Option {
	return func(w *Workflow) { w.notifier = notifier }
}

// WithLogger sets the workflow logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWorkflow wires the workflow to its collaborators.
func NewWorkflow(uploader Uploader, statusStore *status.Store, collection *transcriptions.Store, opts ...Option) *Workflow {
	w := &Workflow{
		uploader:   uploader,
		status:     statusStore,
		collection: collection,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	w.logger = logging.NewComponentLogger(w.logger, "upload")
	return w
}

// Run uploads req.Path and waits for the backend to finish transcribing.
func (w *Workflow) Run(ctx context.Context, req Request) (Result, error) {
	snap, err := w.status.Refresh(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("check backend status: %w", err)
	}
	if snap.Status == status.Transcribing {
		return Result{}, ErrBusy
	}

	info, err := os.Stat(req.Path)
	if err != nil {
		return Result{}, fmt.Errorf("upload source: %w", err)
	}
	if info.IsDir() {
		return Result{}, fmt.Errorf("upload source %s is a directory", req.Path)
	}
	if err := req.Window.Validate(); err != nil {
		return Result{}, err
	}
	if !req.Window.IsZero() && w.cutter == nil {
		return Result{}, errors.New("cutting requested but no cutter configured")
	}
	if w.prober != nil {
		probe, err := w.prober(ctx, req.Path)
		if err != nil {
			return Result{}, fmt.Errorf("probe %s: %w", req.Path, err)
		}
		if probe.AudioStreams() == 0 {
			return Result{}, fmt.Errorf("%s: %w", req.Path, ErrNoAudio)
		}
	}

	fileName := filepath.Base(req.Path)
	logger := w.logger.With(logging.String("file", fileName))
	source := req.Path
	cut := false
	if !req.Window.IsZero() {
		w.setStatus(status.Cutting)
		out, err := w.cutter.Cut(ctx, req.Path, req.Window)
		if err != nil {
			return Result{}, w.fail(ctx, logger, "cut failed", err)
		}
		defer os.Remove(out)
		source = out
		cut = true
		logger.Info("cut source",
			logging.Duration("from", req.Window.From),
			logging.Duration("to", req.Window.To),
		)
	}

	file, err := os.Open(source)
	if err != nil {
		return Result{}, w.fail(ctx, logger, "open upload source failed", err)
	}
	defer file.Close()
	stat, err := file.Stat()
	if err != nil {
		return Result{}, w.fail(ctx, logger, "stat upload source failed", err)
	}
	size := stat.Size()

	w.setStatus(status.Uploading)
	w.status.SetUploadProgress(0)
	var sentOnce sync.Once
	progress := func(sent, total int64) {
		percent := 0.0
		if total > 0 {
			percent = float64(sent) / float64(total) * 100
		}
		w.status.SetUploadProgress(percent)
		if req.Progress != nil {
			req.Progress(percent)
		}
		if total > 0 && sent >= total {
			sentOnce.Do(func() { w.setStatus(status.Transcribing) })
		}
	}
	logger.Info("uploading", logging.Int64("bytes", size))

	record, err := w.uploader.Upload(ctx, api.UploadRequest{
		FileName: fileName,
		Body:     file,
		Size:     size,
		Progress: progress,
	})
	if err != nil {
		return Result{}, w.fail(ctx, logger, "upload failed", err)
	}

	w.status.SetUploadProgress(100)
	w.setStatus(status.Transcribed)
	w.collection.Append(record)
	if w.recorder != nil {
		w.recorder.SetUploadedFile(fileName)
	}
	logger.Info("transcription complete", logging.JobID(record.ID))
	w.notify(ctx, logger, notifications.EventUploadCompleted, notifications.Payload{
		"name":            record.DisplayName(),
		"fileName":        fileName,
		"transcriptionID": record.ID,
	})
	return Result{Transcription: record, Bytes: size, Cut: cut}, nil
}

func (w *Workflow) setStatus(next status.Status) {
	// Known statuses never fail SetStatus.
	_ = w.status.SetStatus(next)
}

func (w *Workflow) fail(ctx context.Context, logger *slog.Logger, msg string, err error) error {
	w.setStatus(status.Error)
	logging.ErrorWithContext(ctx, logger, msg, "upload_failed",
		logging.Error(err),
		logging.Impact("transcription not created"),
	)
	w.notify(ctx, logger, notifications.EventError, notifications.Payload{
		"context": "upload",
		"error":   err,
	})
	return err
}

func (w *Workflow) notify(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if w.notifier == nil {
		return
	}
	if err := w.notifier.Publish(context.WithoutCancel(ctx), event, payload); err != nil {
		logging.WarnWithContext(ctx, logger, "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.Impact("user not notified"),
		)
	}
}
