// Package logging assembles structured slog loggers used across transcriber.
//
// The console handler prints the component and a short tag block built from
// request_id, job_id, route and status ahead of the message, so a single
// upload can be followed through the log file. The JSON handler keeps every
// field as a key. NewNop supplies a discarding logger for tests and wiring
// code that cannot fail.
package logging
