package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"transcriber/internal/config"
)

const userAgent = "transcriber-cli/0.1"

// Event identifies a notification kind.
type Event string

const (
	EventUploadCompleted       Event = "upload_completed"
	EventTranscriptionFinished Event = "transcription_finished"
	EventError                 Event = "error"
	EventTest                  Event = "test"
)

// Payload carries event fields; unknown keys are ignored.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether svc actually delivers anything.
func Enabled(svc Service) bool {
	if svc == nil {
		return false
	}
	_, noop := svc.(noopService)
	return !noop
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := format(event, payload)
	if !ok {
		return fmt.Errorf("unsupported notification event %q", event)
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventUploadCompleted:
		name := payload.text("name")
		if name == "" {
			name = payload.text("fileName")
		}
		body := fmt.Sprintf("Transcribed: %s", name)
		if id := payload.text("transcriptionID"); id != "" {
			body += fmt.Sprintf("\nID: %s", id)
		}
		return message{
			title: "Transcriber - Ready",
			body:  body,
			tags:  []string{"transcriber", "upload", "completed"},
		}, true
	case EventTranscriptionFinished:
		state := payload.text("status")
		if state == "" {
			state = "finished"
		}
		body := fmt.Sprintf("Transcription %s", state)
		if job := payload.text("jobID"); job != "" {
			body = fmt.Sprintf("Transcription %s %s", job, state)
		}
		return message{
			title:    "Transcriber - Finished",
			body:     body,
			tags:     []string{"transcriber", "status", "finished"},
			priority: "high",
		}, true
	case EventError:
		var b strings.Builder
		b.WriteString("Error")
		if label := payload.text("context"); label != "" {
			b.WriteString(" during ")
			b.WriteString(label)
		}
		b.WriteString(": ")
		if detail := payload.text("error"); detail != "" {
			b.WriteString(detail)
		} else {
			b.WriteString("unknown")
		}
		return message{
			title:    "Transcriber - Error",
			body:     b.String(),
			tags:     []string{"transcriber", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Transcriber - Test",
			body:     "Notification system test",
			tags:     []string{"transcriber", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (p Payload) text(key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
