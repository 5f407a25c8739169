package testsupport

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
)

// FakeBackend is an in-process transcription backend for tests.
type FakeBackend struct {
	Server *httptest.Server

	mu             sync.Mutex
	username       string
	password       string
	token          string
	inProgress     json.RawMessage
	records        []map[string]any
	audio          map[string][]byte
	serverOnline   bool
	nextID         int
	requestIDs     []string
	clientIDs      []string
	statusHandler  http.HandlerFunc
	uploadedBodies map[string][]byte
	transcribeTime time.Duration
}

// NewFakeBackend starts a backend accepting username/password and issuing
// token. The server is closed on test cleanup.
func NewFakeBackend(t testing.TB, username, password, token string) *FakeBackend {
	t.Helper()

	fb := &FakeBackend{
		username:       username,
		password:       password,
		token:          token,
		inProgress:     json.RawMessage("false"),
		audio:          make(map[string][]byte),
		serverOnline:   true,
		uploadedBodies: make(map[string][]byte),
	}

	r := mux.NewRouter()
	r.HandleFunc("/token", fb.handleToken).Methods(http.MethodPost)
	r.HandleFunc("/status", fb.authed(fb.handleStatus)).Methods(http.MethodGet)
	r.HandleFunc("/transcriptions", fb.authed(fb.handleList)).Methods(http.MethodGet)
	r.HandleFunc("/transcriptions/{id}", fb.authed(fb.handleGet)).Methods(http.MethodGet)
	r.HandleFunc("/transcriptions/{id}", fb.authed(fb.handleDelete)).Methods(http.MethodDelete)
	r.HandleFunc("/transcribe", fb.authed(fb.handleTranscribe)).Methods(http.MethodPost)
	r.HandleFunc("/audio/{id}", fb.authed(fb.handleAudio)).Methods(http.MethodGet)
	r.HandleFunc("/server_status", fb.authed(fb.handleServerStatus)).Methods(http.MethodGet)
	r.HandleFunc("/live_server_status", fb.authed(fb.handleWake)).Methods(http.MethodPost)
	r.Use(fb.recordHeaders)

	fb.Server = httptest.NewServer(r)
	t.Cleanup(fb.Server.Close)
	return fb
}

// URL returns the backend origin.
func (fb *FakeBackend) URL() string {
	return fb.Server.URL
}

// SetInProgress sets the raw JSON returned as transcription_in_progress.
// An empty value omits the field.
func (fb *FakeBackend) SetInProgress(raw string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.inProgress = json.RawMessage(raw)
}

// SetStatusHandler replaces the /status handler (after the auth check).
func (fb *FakeBackend) SetStatusHandler(h http.HandlerFunc) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.statusHandler = h
}

// SetTranscribeDelay makes /transcribe answer only after d, the way a real
// backend holds the request open while the model runs.
func (fb *FakeBackend) SetTranscribeDelay(d time.Duration) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.transcribeTime = d
}

// RevokeToken makes every authenticated endpoint answer 401.
func (fb *FakeBackend) RevokeToken() {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.token = ""
}

// SetServerOnline toggles the reported model server state.
func (fb *FakeBackend) SetServerOnline(online bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.serverOnline = online
}

// AddTranscription seeds a record with audio bytes and returns its id.
func (fb *FakeBackend) AddTranscription(fileName, text string, audio []byte) string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.addLocked(fileName, text, audio)
}

// Len reports how many records the backend holds.
func (fb *FakeBackend) Len() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return len(fb.records)
}

// Uploaded returns the bytes received for an uploaded file name.
func (fb *FakeBackend) Uploaded(fileName string) ([]byte, bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	body, ok := fb.uploadedBodies[fileName]
	return body, ok
}

// RequestIDs returns the X-Request-ID headers seen so far.
func (fb *FakeBackend) RequestIDs() []string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]string(nil), fb.requestIDs...)
}

// ClientIDs returns the X-Client-ID headers seen so far.
func (fb *FakeBackend) ClientIDs() []string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]string(nil), fb.clientIDs...)
}

func (fb *FakeBackend) addLocked(fileName, text string, audio []byte) string {
	fb.nextID++
	id := fmt.Sprintf("tr-%d", fb.nextID)
	name := strings.TrimSuffix(fileName, extOf(fileName))
	fb.records = append(fb.records, map[string]any{
		"id":                 id,
		"text":               text,
		"chunks":             []map[string]any{{"timestamp": []any{0.0, 1.5}, "text": text}},
		"file_name":          fileName,
		"transcription_name": name,
		"created_at":         time.Date(2024, 3, 9, 14, 5, 0, 0, time.Local).Format("02.01.2006 15:04:05"),
		"model":              "whisper-large-v3",
	})
	fb.audio[id] = audio
	return id
}

func extOf(name string) string {
	if idx := strings.LastIndex(name, "."); idx > 0 {
		return name[idx:]
	}
	return ""
}

func (fb *FakeBackend) recordHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fb.mu.Lock()
		fb.requestIDs = append(fb.requestIDs, r.Header.Get("X-Request-ID"))
		if id := r.Header.Get("X-Client-ID"); id != "" {
			fb.clientIDs = append(fb.clientIDs, id)
		}
		fb.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (fb *FakeBackend) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fb.mu.Lock()
		token := fb.token
		fb.mu.Unlock()
		if token == "" || r.Header.Get("Authorization") != "Bearer "+token {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Could not validate credentials"})
			return
		}
		next(w, r)
	}
}

func (fb *FakeBackend) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": err.Error()})
		return
	}
	fb.mu.Lock()
	ok := r.PostForm.Get("username") == fb.username && r.PostForm.Get("password") == fb.password
	token := fb.token
	fb.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Incorrect username or password"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"access_token": token, "token_type": "bearer"})
}

func (fb *FakeBackend) handleStatus(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	custom := fb.statusHandler
	raw := fb.inProgress
	fb.mu.Unlock()
	if custom != nil {
		custom(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if len(raw) == 0 {
		_, _ = io.WriteString(w, "{}")
		return
	}
	_, _ = fmt.Fprintf(w, `{"transcription_in_progress":%s}`, raw)
}

func (fb *FakeBackend) handleList(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	records := append([]map[string]any{}, fb.records...)
	fb.mu.Unlock()
	writeJSON(w, http.StatusOK, records)
}

func (fb *FakeBackend) handleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	fb.mu.Lock()
	defer fb.mu.Unlock()
	for _, record := range fb.records {
		if record["id"] == id {
			writeJSON(w, http.StatusOK, record)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Transcription not found"})
}

func (fb *FakeBackend) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	fb.mu.Lock()
	defer fb.mu.Unlock()
	for i, record := range fb.records {
		if record["id"] == id {
			fb.records = append(fb.records[:i], fb.records[i+1:]...)
			delete(fb.audio, id)
			writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Transcription not found"})
}

func (fb *FakeBackend) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "file is required"})
		return
	}
	defer file.Close()
	body, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": err.Error()})
		return
	}

	fb.mu.Lock()
	delay := fb.transcribeTime
	fb.uploadedBodies[header.Filename] = body
	fb.addLocked(header.Filename, fmt.Sprintf("transcribed %d bytes", len(body)), body)
	record := fb.records[len(fb.records)-1]
	fb.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	writeJSON(w, http.StatusOK, record)
}

func (fb *FakeBackend) handleAudio(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	fb.mu.Lock()
	audio, ok := fb.audio[id]
	fb.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Audio file not found"})
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	_, _ = w.Write(audio)
}

func (fb *FakeBackend) handleServerStatus(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	online := fb.serverOnline
	fb.mu.Unlock()
	state := "offline"
	if online {
		state = "online"
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": state})
}

func (fb *FakeBackend) handleWake(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	fb.serverOnline = true
	fb.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
