// Package transcriptions caches the user's transcription history.
//
// Refresh replaces the whole collection with the backend list, discarding
// local appends the backend does not know about. Append never deduplicates.
package transcriptions
