package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
)

var (
	// ErrUnauthorized matches 401 responses: the token is missing, expired or revoked.
	ErrUnauthorized = errors.New("backend rejected credentials")
	// ErrNotFound matches 404 responses.
	ErrNotFound = errors.New("backend resource not found")
	// ErrMalformedResponse marks a 2xx body the client cannot interpret.
	ErrMalformedResponse = errors.New("malformed backend response")
)

// Error describes a non-2xx backend response.
type Error struct {
	StatusCode int
	Detail     string
	Method     string
	Path       string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s %s: backend returned %d", e.Method, e.Path, e.StatusCode)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Is maps status codes onto the package sentinels.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

func newError(method, path string, status int, body []byte) *Error {
	return &Error{
		StatusCode: status,
		Detail:     parseDetail(body),
		Method:     method,
		Path:       path,
	}
}

// parseDetail extracts FastAPI's {"detail": ...} message, falling back to the
// trimmed body text.
func parseDetail(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}
	var payload errorResponse
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Detail) > 0 {
		var text string
		if err := json.Unmarshal(payload.Detail, &text); err == nil {
			return text
		}
		return string(payload.Detail)
	}
	const limit = 200
	if len(trimmed) > limit {
		trimmed = trimmed[:limit] + "..."
	}
	return trimmed
}

// IsUnreachable reports whether err is a connection-level failure rather than
// a backend response.
func IsUnreachable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
