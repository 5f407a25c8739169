package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"transcriber/internal/api"
	"transcriber/internal/config"
	"transcriber/internal/testsupport"
)

func TestProtectedCommandRequiresLogin(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, env, "", "list")
	if !errors.Is(err, errLoginRequired) {
		t.Fatalf("expected errLoginRequired, got %v", err)
	}
}

func TestLoginPersistsAcrossInvocations(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, testPassword+"\n", "login", "-u", testUser, "--password-stdin")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	requireContains(t, out, "Logged in as alice")

	out, _, err = runCLI(t, env, "", "whoami")
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	requireContains(t, out, env.backend.URL())
	requireContains(t, out, "toke****3456")
	requireContains(t, out, "Restored:      yes")

	out, _, err = runCLI(t, env, "", "logout")
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	requireContains(t, out, "Logged out")

	if _, _, err := runCLI(t, env, "", "whoami"); !errors.Is(err, errLoginRequired) {
		t.Fatalf("expected login required after logout, got %v", err)
	}
}

func TestLoginPromptsForUsername(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, testUser+"\n"+testPassword+"\n", "login")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	requireContains(t, out, "Username: ")
	requireContains(t, out, "Logged in as alice")
}

func TestLoginRejectsBadPassword(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, env, "wrong\n", "login", "-u", testUser, "--password-stdin")
	if !errors.Is(err, api.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, _, err := runCLI(t, env, "", "status"); !errors.Is(err, errLoginRequired) {
		t.Fatalf("failed login must not create a session, got %v", err)
	}
}

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	login(t, env)

	out, _, err := runCLI(t, env, "", "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "[OK] Waiting On User Input")

	env.backend.SetInProgress(`"job-42"`)
	out, _, err = runCLI(t, env, "", "status", "--json")
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode status json: %v (%q)", err, out)
	}
	if payload["status"] != "transcribing" || payload["job_id"] != "job-42" {
		t.Fatalf("unexpected status payload %v", payload)
	}
}

func TestStatusWatchExitsWhenIdle(t *testing.T) {
	env := setupCLITestEnv(t)
	login(t, env)

	out, _, err := runCLI(t, env, "", "status", "--watch", "--interval", "10ms")
	if err != nil {
		t.Fatalf("status --watch: %v", err)
	}
	requireContains(t, out, "Waiting On User Input")
}

func TestRevokedTokenLogsOut(t *testing.T) {
	env := setupCLITestEnv(t)
	login(t, env)
	env.backend.RevokeToken()

	_, _, err := runCLI(t, env, "", "list")
	if !errors.Is(err, api.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, _, err := runCLI(t, env, "", "list"); !errors.Is(err, errLoginRequired) {
		t.Fatalf("expected session cleared after 401, got %v", err)
	}
}

func TestUploadListShowAudioDelete(t *testing.T) {
	env := setupCLITestEnv(t)
	login(t, env)

	media := filepath.Join(env.baseDir, "standup.mp3")
	testsupport.WriteFile(t, media, 4096)

	out, _, err := runCLI(t, env, "", "upload", media, "--no-progress")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	requireContains(t, out, "Uploaded standup.mp3, 4.1 kB")
	if env.backend.Len() != 1 {
		t.Fatalf("expected backend to hold one record, got %d", env.backend.Len())
	}

	out, _, err = runCLI(t, env, "", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "standup")
	requireContains(t, out, "1 transcription(s)")

	out, _, err = runCLI(t, env, "", "list", "--json")
	if err != nil {
		t.Fatalf("list --json: %v", err)
	}
	var records []map[string]any
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("decode list json: %v", err)
	}
	if len(records) != 1 || records[0]["model"] != "whisper-large-v3" {
		t.Fatalf("expected raw backend record, got %v", records)
	}
	id, _ := records[0]["id"].(string)

	out, _, err = runCLI(t, env, "", "list", "--search", "transcribed bytes")
	if err != nil {
		t.Fatalf("list --search: %v", err)
	}
	requireContains(t, out, id)
	out, _, err = runCLI(t, env, "", "list", "--search", "volcano")
	if err != nil {
		t.Fatalf("list --search: %v", err)
	}
	requireContains(t, out, `No transcriptions match "volcano"`)

	out, _, err = runCLI(t, env, "", "show", id)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "== standup ==")
	requireContains(t, out, "transcribed 4096 bytes")

	out, _, err = runCLI(t, env, "", "show", id, "--chunks")
	if err != nil {
		t.Fatalf("show --chunks: %v", err)
	}
	requireContains(t, out, "[0:00.0 - 0:01.5]")

	target := filepath.Join(env.baseDir, "download.mp3")
	out, _, err = runCLI(t, env, "", "audio", id, "-o", target)
	if err != nil {
		t.Fatalf("audio: %v", err)
	}
	requireContains(t, out, "Wrote 4.1 kB")
	if info, err := os.Stat(target); err != nil || info.Size() != 4096 {
		t.Fatalf("expected downloaded audio, stat err=%v", err)
	}
	if _, _, err := runCLI(t, env, "", "audio", id, "-o", target); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected refusal to overwrite, got %v", err)
	}

	out, _, err = runCLI(t, env, "", "delete", id)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	requireContains(t, out, "Deleted "+id)

	if _, _, err := runCLI(t, env, "", "show", id); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestAudioOverwriteKeepsFileWhenDownloadFails(t *testing.T) {
	env := setupCLITestEnv(t)
	login(t, env)

	target := filepath.Join(env.baseDir, "keep.wav")
	if err := os.WriteFile(target, []byte("precious"), 0o644); err != nil {
		t.Fatalf("seed target: %v", err)
	}

	_, _, err := runCLI(t, env, "", "audio", "missing-id", "-o", target, "--overwrite")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("expected target to survive: %v", err)
	}
	if string(data) != "precious" {
		t.Fatalf("expected target contents kept, got %q", data)
	}
	leftovers, err := filepath.Glob(filepath.Join(env.baseDir, ".keep.wav.*.part"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(leftovers) != 0 {
		t.Fatalf("expected temp download removed, found %v", leftovers)
	}
}

func TestUploadRejectsBusyBackend(t *testing.T) {
	env := setupCLITestEnv(t)
	login(t, env)
	env.backend.SetInProgress("true")

	media := filepath.Join(env.baseDir, "clip.wav")
	testsupport.WriteFile(t, media, 10)
	_, _, err := runCLI(t, env, "", "upload", media, "--no-progress")
	if err == nil || !strings.Contains(err.Error(), "already transcribing") {
		t.Fatalf("expected busy error, got %v", err)
	}
}

func TestUploadWithCut(t *testing.T) {
	backend := testsupport.NewFakeBackend(t, testUser, testPassword, testToken)
	cfg := testsupport.NewConfig(t,
		testsupport.WithBackendURL(backend.URL()),
		testsupport.WithStorageBackend(config.StorageFile),
		testsupport.WithStubbedFFmpeg(),
	)
	base := testsupport.BaseDir(cfg)
	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)
	env := &cliTestEnv{cfg: cfg, backend: backend, configPath: configPath, baseDir: base}
	t.Setenv("TRANSCRIBER_BACKEND_URL", "")
	login(t, env)

	media := filepath.Join(base, "talk.mp3")
	testsupport.WriteFile(t, media, 512)
	out, _, err := runCLI(t, env, "", "upload", media, "--from", "1:30", "--to", "2m", "--no-progress")
	if err != nil {
		t.Fatalf("upload with cut: %v", err)
	}
	requireContains(t, out, "(cut)")
	if body, ok := backend.Uploaded("talk.mp3"); !ok || len(body) != 512 {
		t.Fatalf("expected stub-cut body uploaded, got %d bytes ok=%v", len(body), ok)
	}
}

func TestServerCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	login(t, env)
	env.backend.SetServerOnline(false)

	out, _, err := runCLI(t, env, "", "server", "status")
	if err != nil {
		t.Fatalf("server status: %v", err)
	}
	requireContains(t, out, "[WARN] offline")

	out, _, err = runCLI(t, env, "", "server", "wake")
	if err != nil {
		t.Fatalf("server wake: %v", err)
	}
	requireContains(t, out, "Wake request sent")

	out, _, err = runCLI(t, env, "", "server", "status")
	if err != nil {
		t.Fatalf("server status: %v", err)
	}
	requireContains(t, out, "[OK] online")
}

func TestParseOffset(t *testing.T) {
	cases := map[string]string{
		"":        "0s",
		"90":      "1m30s",
		"12.5":    "12.5s",
		"1:30":    "1m30s",
		"1:02:03": "1h2m3s",
		"1m30s":   "1m30s",
	}
	for input, want := range cases {
		got, err := parseOffset(input)
		if err != nil {
			t.Fatalf("parseOffset(%q): %v", input, err)
		}
		if got.String() != want {
			t.Fatalf("parseOffset(%q) = %s, want %s", input, got, want)
		}
	}
	for _, bad := range []string{"-5", "1:xx", "1:2:3:4", "soon"} {
		if _, err := parseOffset(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
	if _, err := parseWindow("2:00", "1:00"); err == nil {
		t.Fatal("expected inverted window error")
	}
}

func TestDoctorReportsClientAndDependencies(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "", "doctor")
	if err != nil {
		t.Fatalf("doctor: %v", err)
	}
	requireContains(t, out, "== Client ==")
	requireContains(t, out, "[INFO] not logged in")
	requireContains(t, out, "== Dependencies ==")
	requireContains(t, out, "FFmpeg")

	login(t, env)
	out, _, err = runCLI(t, env, "", "doctor")
	if err != nil {
		t.Fatalf("doctor after login: %v", err)
	}
	requireContains(t, out, "(model online)")
}

func TestTestNotify(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, env, "", "test-notify"); err == nil || !strings.Contains(err.Error(), "disabled") {
		t.Fatalf("expected disabled error, got %v", err)
	}

	var mu sync.Mutex
	var titles []string
	ntfy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		titles = append(titles, r.Header.Get("Title"))
		mu.Unlock()
	}))
	t.Cleanup(ntfy.Close)
	env.cfg.Notifications.NtfyTopic = ntfy.URL + "/transcripts"
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := runCLI(t, env, "", "test-notify")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Test notification sent")

	login(t, env)
	media := filepath.Join(env.baseDir, "memo.m4a")
	testsupport.WriteFile(t, media, 32)
	if _, _, err := runCLI(t, env, "", "upload", media, "--no-progress"); err != nil {
		t.Fatalf("upload: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(titles) != 2 || titles[0] != "Transcriber - Test" || titles[1] != "Transcriber - Ready" {
		t.Fatalf("unexpected notifications %v", titles)
	}
}

func TestStatusWatchNotifiesWhenFinished(t *testing.T) {
	env := setupCLITestEnv(t)

	bodies := make(chan string, 4)
	ntfy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies <- string(body)
	}))
	t.Cleanup(ntfy.Close)
	env.cfg.Notifications.NtfyTopic = ntfy.URL + "/transcripts"
	writeTestConfig(t, env.configPath, env.cfg)
	login(t, env)

	var mu sync.Mutex
	polls := 0
	env.backend.SetStatusHandler(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		polls++
		n := polls
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if n < 3 {
			_, _ = io.WriteString(w, `{"transcription_in_progress":"job-9"}`)
			return
		}
		_, _ = io.WriteString(w, `{"transcription_in_progress":false}`)
	})

	out, _, err := runCLI(t, env, "", "status", "--watch", "--interval", "10ms")
	if err != nil {
		t.Fatalf("status --watch: %v", err)
	}
	requireContains(t, out, "Transcribing (job job-9)")
	requireContains(t, out, "Waiting On User Input")

	select {
	case body := <-bodies:
		if body != "Transcription job-9 finished" {
			t.Fatalf("unexpected notification body %q", body)
		}
	default:
		t.Fatal("expected a finished notification")
	}
}
