// Package app builds the process-wide application context: configuration,
// logger, durable storage, the router with its auth guard, the session,
// status and collection stores, the backend client and the upload workflow.
//
// One App is built per process. Storage that cannot be opened degrades to an
// in-memory store with a warning, so the client still works for the lifetime
// of the process.
package app
