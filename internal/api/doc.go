// Package api is the HTTP client and wire-format layer for the transcription
// backend.
//
// # Key Types
//
// Client: issues authenticated requests against the configured backend origin
// (login, status, transcription listing and retrieval, upload, delete, audio
// download, model server status).
//
// InProgress: tagged decoding of the status endpoint's
// transcription_in_progress field, which the backend sends as false, true or a
// job identifier.
//
// Transcription: a backend transcription record. The raw payload is retained
// so records can be re-emitted verbatim.
//
// Error: non-2xx responses, matching ErrUnauthorized or ErrNotFound through
// errors.Is.
//
// # Design Notes
//
// JSON tags follow the backend's snake_case names. Every request carries an
// X-Request-ID; callers may pin one through logging.WithRequestID.
package api
