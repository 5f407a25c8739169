package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// createdAtLayout is the backend's created_at format (day.month.year).
const createdAtLayout = "02.01.2006 15:04:05"

// Credentials is the token pair issued by POST /token.
type Credentials struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// AuthorizationHeader renders the Authorization header value. An empty token
// type defaults to Bearer.
func (c Credentials) AuthorizationHeader() string {
	tokenType := strings.TrimSpace(c.TokenType)
	if tokenType == "" || strings.EqualFold(tokenType, "bearer") {
		tokenType = "Bearer"
	}
	return tokenType + " " + c.AccessToken
}

// InProgressKind discriminates the shapes of transcription_in_progress.
type InProgressKind int

const (
	// InProgressNone is the literal false: nothing is being transcribed.
	InProgressNone InProgressKind = iota
	// InProgressAnonymous is the literal true: a job runs but has no usable id.
	InProgressAnonymous
	// InProgressJob carries the backend job identifier.
	InProgressJob
)

func (k InProgressKind) String() string {
	switch k {
	case InProgressNone:
		return "none"
	case InProgressAnonymous:
		return "anonymous"
	case InProgressJob:
		return "job"
	default:
		return fmt.Sprintf("InProgressKind(%d)", int(k))
	}
}

// InProgress is the decoded transcription_in_progress value.
type InProgress struct {
	Kind  InProgressKind
	JobID string
}

// Active reports whether a transcription is running.
func (p InProgress) Active() bool {
	return p.Kind != InProgressNone
}

// UnmarshalJSON accepts false, true, a non-empty string id or a number id.
func (p *InProgress) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.Equal(trimmed, []byte("false")):
		*p = InProgress{Kind: InProgressNone}
		return nil
	case bytes.Equal(trimmed, []byte("true")):
		*p = InProgress{Kind: InProgressAnonymous}
		return nil
	case len(trimmed) > 0 && trimmed[0] == '"':
		var id string
		if err := json.Unmarshal(trimmed, &id); err != nil {
			return fmt.Errorf("decode transcription_in_progress: %w", err)
		}
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("decode transcription_in_progress: empty job id")
		}
		*p = InProgress{Kind: InProgressJob, JobID: id}
		return nil
	default:
		var num json.Number
		if err := json.Unmarshal(trimmed, &num); err != nil {
			return fmt.Errorf("decode transcription_in_progress: unsupported value %s", trimmed)
		}
		*p = InProgress{Kind: InProgressJob, JobID: num.String()}
		return nil
	}
}

// MarshalJSON writes the backend representation back out.
func (p InProgress) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case InProgressNone:
		return []byte("false"), nil
	case InProgressAnonymous:
		return []byte("true"), nil
	default:
		return json.Marshal(p.JobID)
	}
}

// StatusResponse is the body of GET /status. A missing or null
// transcription_in_progress leaves the pointer nil, which the client rejects.
type StatusResponse struct {
	TranscriptionInProgress *InProgress `json:"transcription_in_progress"`
}

// Chunk is a timestamped span of transcribed text. Either bound of
// Timestamp may be null for an open-ended chunk.
type Chunk struct {
	Timestamp [2]*float64 `json:"timestamp"`
	Text      string      `json:"text"`
}

// Transcription is a backend transcription record.
type Transcription struct {
	ID                string  `json:"id"`
	Text              string  `json:"text"`
	Chunks            []Chunk `json:"chunks,omitempty"`
	FileName          string  `json:"file_name"`
	TranscriptionName string  `json:"transcription_name"`
	CreatedAt         string  `json:"created_at"`

	raw json.RawMessage
}

type transcriptionFields Transcription

// UnmarshalJSON decodes the known fields and keeps the full payload.
func (t *Transcription) UnmarshalJSON(data []byte) error {
	var fields transcriptionFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*t = Transcription(fields)
	t.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON emits the modeled fields over the original payload, so fields
// this client does not model survive a round trip and local edits are kept.
func (t Transcription) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(transcriptionFields(t))
	if err != nil || len(t.raw) == 0 {
		return known, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(t.raw, &merged); err != nil || merged == nil {
		return known, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	for key, value := range fields {
		merged[key] = value
	}
	if len(t.Chunks) == 0 {
		var stale []Chunk
		if json.Unmarshal(merged["chunks"], &stale) == nil && len(stale) > 0 {
			delete(merged, "chunks")
		}
	}
	return json.Marshal(merged)
}

// Raw returns a copy of the decoded payload, or nil for locally built records.
func (t Transcription) Raw() json.RawMessage {
	return append(json.RawMessage(nil), t.raw...)
}

// Created parses CreatedAt in the backend's local-time layout.
func (t Transcription) Created() (time.Time, bool) {
	value := strings.TrimSpace(t.CreatedAt)
	if value == "" {
		return time.Time{}, false
	}
	parsed, err := time.ParseInLocation(createdAtLayout, value, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

// DisplayName prefers the backend-assigned transcription name.
func (t Transcription) DisplayName() string {
	if name := strings.TrimSpace(t.TranscriptionName); name != "" {
		return name
	}
	if name := strings.TrimSpace(t.FileName); name != "" {
		return name
	}
	return t.ID
}

// ServerState is reported by GET /server_status.
type ServerState string

const (
	ServerOnline  ServerState = "online"
	ServerOffline ServerState = "offline"
)

type serverStatusResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}
