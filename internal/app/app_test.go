package app_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"transcriber/internal/api"
	"transcriber/internal/app"
	"transcriber/internal/config"
	"transcriber/internal/localstore"
	"transcriber/internal/logging"
	"transcriber/internal/notifications"
	"transcriber/internal/router"
	"transcriber/internal/session"
	"transcriber/internal/testsupport"
)

func TestNewRestoresSessionAndPersistsClientID(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStorageBackend(config.StorageFile))
	storage := testsupport.MustOpenStorage(t, cfg)
	if err := storage.Set(session.StorageKey, `{"access_token":"tok","token_type":"bearer"}`); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	a, err := app.New(cfg, logging.NewNop(), app.WithStorage(storage))
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	if !a.Restored() || !a.Session.IsAuthenticated() {
		t.Fatal("expected persisted session restored")
	}
	if a.ClientID == "" {
		t.Fatal("expected client id")
	}
	stored, ok, err := storage.Get(app.ClientIDKey)
	if err != nil || !ok || stored != a.ClientID {
		t.Fatalf("expected client id persisted, got %q ok=%v err=%v", stored, ok, err)
	}

	again, err := app.New(cfg, logging.NewNop(), app.WithStorage(storage))
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	if again.ClientID != a.ClientID {
		t.Fatalf("expected stable client id, got %q then %q", a.ClientID, again.ClientID)
	}
}

func TestGuardUsesSession(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	a, err := app.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	decision, err := a.Router.Resolve(router.Home)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !decision.Redirected {
		t.Fatal("expected redirect while signed out")
	}
	if err := a.Session.LogIn(api.Credentials{AccessToken: "tok"}); err != nil {
		t.Fatalf("LogIn: %v", err)
	}
	decision, err = a.Router.Resolve(router.Home)
	if err != nil || decision.Redirected {
		t.Fatalf("expected home allowed after login, got %+v err=%v", decision, err)
	}
}

func TestUnwritableStorageFallsBackToMemory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	locked := filepath.Join(t.TempDir(), "locked")
	if err := os.MkdirAll(locked, 0o500); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cfg := testsupport.NewConfig(t, testsupport.WithStorageBackend(config.StorageSQLite))
	cfg.Storage.Path = filepath.Join(locked, "store.db")

	a, err := app.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	defer a.Close()
	if !a.StorageDegraded() {
		t.Fatal("expected degraded storage")
	}
	if err := a.Session.LogIn(api.Credentials{AccessToken: "tok"}); err != nil {
		t.Fatalf("memory fallback should accept login: %v", err)
	}
}

func TestHandleUnauthorizedLogsOut(t *testing.T) {
	fb := testsupport.NewFakeBackend(t, "alice", "secret", "tok")
	cfg := testsupport.NewConfig(t, testsupport.WithBackendURL(fb.URL()))
	storage := localstore.NewMemory()
	a, err := app.New(cfg, logging.NewNop(), app.WithStorage(storage))
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	if err := a.Session.LogIn(api.Credentials{AccessToken: "tok"}); err != nil {
		t.Fatalf("LogIn: %v", err)
	}
	fb.RevokeToken()

	err = a.Transcriptions.Refresh(context.Background())
	if !a.HandleUnauthorized(err) {
		t.Fatalf("expected 401 handled, got %v", err)
	}
	if a.Session.IsAuthenticated() {
		t.Fatal("expected session cleared after 401")
	}
	if a.Router.Current() != router.Login {
		t.Fatalf("expected navigation to login, got %q", a.Router.Current())
	}
	if _, ok, _ := storage.Get(session.StorageKey); ok {
		t.Fatal("expected stored session removed")
	}
	if a.HandleUnauthorized(errors.New("other")) {
		t.Fatal("non-401 errors must not be handled")
	}
}

func TestDeleteTranscriptionSyncsCollection(t *testing.T) {
	fb := testsupport.NewFakeBackend(t, "alice", "secret", "tok")
	id := fb.AddTranscription("call.mp3", "hello", []byte("audio"))
	cfg := testsupport.NewConfig(t, testsupport.WithBackendURL(fb.URL()))
	a, err := app.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	if err := a.Session.LogIn(api.Credentials{AccessToken: "tok"}); err != nil {
		t.Fatalf("LogIn: %v", err)
	}
	ctx := context.Background()
	if err := a.Transcriptions.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if err := a.DeleteTranscription(ctx, id); err != nil {
		t.Fatalf("DeleteTranscription: %v", err)
	}
	if a.Transcriptions.Len() != 0 || fb.Len() != 0 {
		t.Fatalf("expected record removed locally and remotely, local=%d remote=%d", a.Transcriptions.Len(), fb.Len())
	}
	for _, got := range fb.ClientIDs() {
		if got != a.ClientID {
			t.Fatalf("unexpected client id header %q", got)
		}
	}
}

func TestNotifierFollowsConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	a, err := app.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	if notifications.Enabled(a.Notifier) {
		t.Fatal("expected notifications disabled without a topic")
	}

	cfg.Notifications.NtfyTopic = "http://127.0.0.1:1/transcripts"
	a, err = app.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	if !notifications.Enabled(a.Notifier) {
		t.Fatal("expected ntfy notifier once a topic is configured")
	}
}
