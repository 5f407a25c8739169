package upload_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"transcriber/internal/api"
	"transcriber/internal/media"
	"transcriber/internal/notifications"
	"transcriber/internal/status"
	"transcriber/internal/testsupport"
	"transcriber/internal/transcriptions"
	"transcriber/internal/upload"
)

type fixture struct {
	backend    *testsupport.FakeBackend
	client     *api.Client
	status     *status.Store
	collection *transcriptions.Store
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	fb := testsupport.NewFakeBackend(t, "alice", "secret", "tok")
	client, err := api.New(fb.URL(), api.WithTokenSource(api.TokenFunc(func() (api.Credentials, bool) {
		return api.Credentials{AccessToken: "tok"}, true
	})))
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	return fixture{
		backend:    fb,
		client:     client,
		status:     status.NewStore(client, nil),
		collection: transcriptions.NewStore(client, nil),
	}
}

type recorder struct{ name string }

func (r *recorder) SetUploadedFile(ref string) { r.name = ref }

type stubCutter struct {
	mu     sync.Mutex
	window media.Range
	err    error
}

func (c *stubCutter) Cut(_ context.Context, src string, window media.Range) (string, error) {
	c.mu.Lock()
	c.window = window
	c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	out := src + ".cut"
	if err := os.WriteFile(out, []byte("trimmed"), 0o644); err != nil {
		return "", err
	}
	return out, nil
}

type capturedEvent struct {
	event   notifications.Event
	payload notifications.Payload
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []capturedEvent
	err    error
}

func (n *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, capturedEvent{event: event, payload: payload})
	return n.err
}

type failingUploader struct{ err error }

func (f failingUploader) Upload(context.Context, api.UploadRequest) (api.Transcription, error) {
	return api.Transcription{}, f.err
}

func TestRunUploadsAndRecords(t *testing.T) {
	fx := newFixture(t)
	path := filepath.Join(t.TempDir(), "lecture.wav")
	testsupport.WriteFile(t, path, 100*1024)
	rec := &recorder{}

	var percents []float64
	wf := upload.NewWorkflow(fx.client, fx.status, fx.collection, upload.WithRecorder(rec))
	result, err := wf.Run(context.Background(), upload.Request{
		Path:     path,
		Progress: func(p float64) { percents = append(percents, p) },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Bytes != 100*1024 || result.Cut {
		t.Fatalf("unexpected result %+v", result)
	}
	snap := fx.status.Snapshot()
	if snap.Status != status.Transcribed || snap.UploadProgress != 100 {
		t.Fatalf("unexpected final snapshot %+v", snap)
	}
	if fx.collection.Len() != 1 || fx.collection.List()[0].ID != result.Transcription.ID {
		t.Fatalf("expected uploaded record appended, got %+v", fx.collection.List())
	}
	if rec.name != "lecture.wav" {
		t.Fatalf("expected uploaded file recorded, got %q", rec.name)
	}
	if len(percents) == 0 || percents[len(percents)-1] != 100 {
		t.Fatalf("expected progress ending at 100, got %v", percents)
	}
	if body, ok := fx.backend.Uploaded("lecture.wav"); !ok || len(body) != 100*1024 {
		t.Fatalf("backend received %d bytes (ok=%v)", len(body), ok)
	}
}

func TestRunRejectsBusyBackend(t *testing.T) {
	fx := newFixture(t)
	fx.backend.SetInProgress(`"job-7"`)
	path := filepath.Join(t.TempDir(), "a.mp3")
	testsupport.WriteFile(t, path, 10)

	wf := upload.NewWorkflow(fx.client, fx.status, fx.collection)
	if _, err := wf.Run(context.Background(), upload.Request{Path: path}); !errors.Is(err, upload.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if fx.backend.Len() != 0 {
		t.Fatal("busy backend must not receive an upload")
	}
}

func TestRunCutsBeforeUpload(t *testing.T) {
	fx := newFixture(t)
	path := filepath.Join(t.TempDir(), "interview.mp3")
	testsupport.WriteFile(t, path, 2048)
	cutter := &stubCutter{}

	wf := upload.NewWorkflow(fx.client, fx.status, fx.collection, upload.WithCutter(cutter))
	window := media.Range{From: 5 * time.Second, To: 65 * time.Second}
	result, err := wf.Run(context.Background(), upload.Request{Path: path, Window: window})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Cut || cutter.window != window {
		t.Fatalf("expected cut with window %+v, got result %+v window %+v", window, result, cutter.window)
	}
	body, ok := fx.backend.Uploaded("interview.mp3")
	if !ok || string(body) != "trimmed" {
		t.Fatalf("expected trimmed body uploaded under original name, got %q", body)
	}
	if _, err := os.Stat(path + ".cut"); !os.IsNotExist(err) {
		t.Fatalf("expected cut output removed, stat err=%v", err)
	}
}

func TestRunCutFailureSetsError(t *testing.T) {
	fx := newFixture(t)
	path := filepath.Join(t.TempDir(), "clip.mp4")
	testsupport.WriteFile(t, path, 16)
	boom := errors.New("ffmpeg exploded")

	wf := upload.NewWorkflow(fx.client, fx.status, fx.collection, upload.WithCutter(&stubCutter{err: boom}))
	_, err := wf.Run(context.Background(), upload.Request{Path: path, Window: media.Range{To: time.Second}})
	if !errors.Is(err, boom) {
		t.Fatalf("expected cut error, got %v", err)
	}
	if fx.status.Status() != status.Error {
		t.Fatalf("expected error status, got %s", fx.status.Status())
	}
}

func TestRunUploadFailureSetsError(t *testing.T) {
	fx := newFixture(t)
	path := filepath.Join(t.TempDir(), "clip.mp3")
	testsupport.WriteFile(t, path, 16)

	wf := upload.NewWorkflow(failingUploader{err: api.ErrUnauthorized}, fx.status, fx.collection)
	_, err := wf.Run(context.Background(), upload.Request{Path: path})
	if !errors.Is(err, api.ErrUnauthorized) {
		t.Fatalf("expected wrapped upload error, got %v", err)
	}
	if fx.status.Status() != status.Error {
		t.Fatalf("expected error status, got %s", fx.status.Status())
	}
	if fx.collection.Len() != 0 {
		t.Fatal("failed upload must not append a record")
	}
}

func TestRunValidationLeavesStatus(t *testing.T) {
	fx := newFixture(t)
	wf := upload.NewWorkflow(fx.client, fx.status, fx.collection,
		upload.WithProber(func(context.Context, string) (media.Probe, error) {
			return media.Probe{Streams: []media.Stream{{CodecType: "video"}}}, nil
		}),
	)

	if _, err := wf.Run(context.Background(), upload.Request{Path: filepath.Join(t.TempDir(), "missing.mp3")}); err == nil {
		t.Fatal("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "silent.mp4")
	testsupport.WriteFile(t, path, 16)
	if _, err := wf.Run(context.Background(), upload.Request{Path: path}); !errors.Is(err, upload.ErrNoAudio) {
		t.Fatalf("expected ErrNoAudio, got %v", err)
	}
	if _, err := wf.Run(context.Background(), upload.Request{Path: path, Window: media.Range{To: time.Second}}); err == nil {
		t.Fatal("expected error when cutting without a cutter")
	}
	if fx.status.Status() != status.WaitingOnUserInput {
		t.Fatalf("validation failures must not change status, got %s", fx.status.Status())
	}
}

func TestRunPublishesNotifications(t *testing.T) {
	fx := newFixture(t)
	path := filepath.Join(t.TempDir(), "standup.mp3")
	testsupport.WriteFile(t, path, 64)
	notifier := &recordingNotifier{err: errors.New("ntfy down")}

	wf := upload.NewWorkflow(fx.client, fx.status, fx.collection, upload.WithNotifier(notifier))
	result, err := wf.Run(context.Background(), upload.Request{Path: path})
	if err != nil {
		t.Fatalf("notification failures must not fail the upload: %v", err)
	}
	if len(notifier.events) != 1 || notifier.events[0].event != notifications.EventUploadCompleted {
		t.Fatalf("expected upload completed event, got %+v", notifier.events)
	}
	if notifier.events[0].payload["transcriptionID"] != result.Transcription.ID {
		t.Fatalf("unexpected payload %+v", notifier.events[0].payload)
	}

	failing := upload.NewWorkflow(failingUploader{err: errors.New("boom")}, fx.status, fx.collection, upload.WithNotifier(notifier))
	if _, err := failing.Run(context.Background(), upload.Request{Path: path}); err == nil {
		t.Fatal("expected upload error")
	}
	if len(notifier.events) != 2 || notifier.events[1].event != notifications.EventError {
		t.Fatalf("expected error event, got %+v", notifier.events)
	}
}

func TestRunWaitsForSlowTranscription(t *testing.T) {
	fb := testsupport.NewFakeBackend(t, "alice", "secret", "tok")
	fb.SetTranscribeDelay(700 * time.Millisecond)
	client, err := api.New(fb.URL(),
		api.WithTimeout(250*time.Millisecond),
		api.WithTokenSource(api.TokenFunc(func() (api.Credentials, bool) {
			return api.Credentials{AccessToken: "tok"}, true
		})),
	)
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	statusStore := status.NewStore(client, nil)
	collection := transcriptions.NewStore(client, nil)
	path := filepath.Join(t.TempDir(), "interview.wav")
	testsupport.WriteFile(t, path, 4096)

	wf := upload.NewWorkflow(client, statusStore, collection)
	if _, err := wf.Run(context.Background(), upload.Request{Path: path}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := statusStore.Snapshot().Status; got != status.Transcribed {
		t.Fatalf("expected transcribed, got %q", got)
	}
	if collection.Len() != 1 {
		t.Fatalf("expected record appended, got %d", collection.Len())
	}
}
