// Package notifications delivers client events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when notifications are disabled. Events
// cover upload completion, the end of a watched transcription and failures, so
// callers emit consistent messages without duplicating HTTP glue.
package notifications
