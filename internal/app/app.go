package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"transcriber/internal/api"
	"transcriber/internal/config"
	"transcriber/internal/deps"
	"transcriber/internal/localstore"
	"transcriber/internal/logging"
	"transcriber/internal/media"
	"transcriber/internal/notifications"
	"transcriber/internal/router"
	"transcriber/internal/session"
	"transcriber/internal/status"
	"transcriber/internal/transcriptions"
	"transcriber/internal/upload"
)

// ClientIDKey is the durable entry holding the install identifier.
const ClientIDKey = "client_id"

// App is the application context shared by every command.
type App struct {
	Config         *config.Config
	Logger         *slog.Logger
	Storage        localstore.Storage
	Router         *router.Router
	Session        *session.Store
	Status         *status.Store
	Transcriptions *transcriptions.Store
	Client         *api.Client
	Upload         *upload.Workflow
	Notifier       notifications.Service
	ClientID       string

	degraded bool
	restored bool
}

// Option customizes New.
type Option func(*options)

type options struct {
	storage  localstore.Storage
	http     api.HTTPDoer
	notifier notifications.Service
}

// WithStorage uses storage instead of opening the configured backend.
func WithStorage(storage localstore.Storage) Option {
	return func(o *options) { o.storage = storage }
}

// WithHTTPClient overrides the HTTP implementation used by the backend client.
func WithHTTPClient(doer api.HTTPDoer) Option {
	return func(o *options) { o.http = doer }
}

// WithNotifier replaces the notification service built from config.
func WithNotifier(notifier notifications.Service) Option {
	return func(o *options) { o.notifier = notifier }
}

// New builds the application context and restores any persisted session.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	a := &App{Config: cfg, Logger: logger}
	a.Storage = o.storage
	if a.Storage == nil {
		a.Storage, a.degraded = openStorage(cfg, logger)
	}
	a.ClientID = loadClientID(a.Storage, logger)

	a.Router = router.New(router.DefaultRoutes(), logger)
	a.Session = session.NewStore(a.Storage, a.Router, logger)
	a.Router.Bind(a.Session)
	a.restored = a.Session.Restore()

	clientOpts := []api.Option{
		api.WithTimeout(cfg.RequestTimeout()),
		api.WithUploadTimeout(cfg.UploadTimeout()),
		api.WithTokenSource(a.Session),
		api.WithClientID(a.ClientID),
		api.WithLogger(logger),
	}
	if o.http != nil {
		clientOpts = append(clientOpts, api.WithHTTPClient(o.http))
	}
	client, err := api.New(cfg.Backend.URL, clientOpts...)
	if err != nil {
		_ = a.Storage.Close()
		return nil, err
	}
	a.Client = client

	a.Status = status.NewStore(client, logger)
	a.Transcriptions = transcriptions.NewStore(client, logger)
	a.Notifier = o.notifier
	if a.Notifier == nil {
		a.Notifier = notifications.NewService(cfg)
	}

	workflowOpts := []upload.Option{
		upload.WithCutter(media.Cutter{Binary: cfg.Upload.FFmpegBinary}),
		upload.WithRecorder(a.Session),
		upload.WithNotifier(a.Notifier),
		upload.WithLogger(logger),
	}
	if cfg.Upload.ProbeMedia {
		binary := cfg.Upload.FFprobeBinary
		workflowOpts = append(workflowOpts, upload.WithProber(func(ctx context.Context, path string) (media.Probe, error) {
			return media.Inspect(ctx, binary, path)
		}))
	}
	a.Upload = upload.NewWorkflow(client, a.Status, a.Transcriptions, workflowOpts...)
	return a, nil
}

func openStorage(cfg *config.Config, logger *slog.Logger) (localstore.Storage, bool) {
	storage, err := localstore.Open(cfg, logger)
	if err == nil {
		return storage, false
	}
	logging.WarnWithContext(context.Background(), logger, "local storage unavailable, using memory", "storage_unavailable",
		logging.Error(err),
		logging.String("backend", cfg.Storage.Backend),
		logging.String("path", cfg.StoragePath()),
		logging.Impact("login will not survive this process"),
		logging.Hint("fix storage.path permissions or set storage.backend"),
	)
	return localstore.NewMemory(), true
}

func loadClientID(storage localstore.Storage, logger *slog.Logger) string {
	if value, ok, err := storage.Get(ClientIDKey); err == nil && ok {
		if id, parseErr := uuid.Parse(strings.TrimSpace(value)); parseErr == nil {
			return id.String()
		}
	}
	id := uuid.NewString()
	if err := storage.Set(ClientIDKey, id); err != nil {
		logging.WarnWithContext(context.Background(), logger, "client id not persisted", "storage_unavailable",
			logging.Error(err),
			logging.Impact("a new client id is sent next run"),
		)
	}
	return id
}

// StorageDegraded reports whether the configured storage was replaced by memory.
func (a *App) StorageDegraded() bool {
	return a.degraded
}

// Restored reports whether a persisted session was loaded at startup.
func (a *App) Restored() bool {
	return a.restored
}

// WatchLimiter returns a limiter for status polling.
func (a *App) WatchLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(a.Config.Watch.MaxRequestsPerSecond), 1)
}

// HandleUnauthorized logs the session out when err is a 401. It reports
// whether err was a 401.
func (a *App) HandleUnauthorized(err error) bool {
	if !errors.Is(err, api.ErrUnauthorized) {
		return false
	}
	if a.Session.IsAuthenticated() {
		logging.WarnWithContext(context.Background(), a.Logger, "backend rejected stored session", "session_expired",
			logging.Impact("signed out"),
			logging.Hint("run transcriber login"),
		)
		if logoutErr := a.Session.LogOut(); logoutErr != nil {
			a.Logger.Debug("logout after 401 incomplete", logging.Error(logoutErr))
		}
	}
	return true
}

// DeleteTranscription removes a record on the backend and from the local
// collection.
func (a *App) DeleteTranscription(ctx context.Context, id string) error {
	if err := a.Client.DeleteTranscription(ctx, id); err != nil {
		return err
	}
	a.Transcriptions.Remove(id)
	return nil
}

// Close releases durable storage.
func (a *App) Close() error {
	if a == nil || a.Storage == nil {
		return nil
	}
	if err := a.Storage.Close(); err != nil {
		return fmt.Errorf("close storage: %w", err)
	}
	return nil
}

// FFmpegAvailable reports whether the configured ffmpeg binary can be run.
func (a *App) FFmpegAvailable() bool {
	return deps.Available(a.Config.Upload.FFmpegBinary)
}
