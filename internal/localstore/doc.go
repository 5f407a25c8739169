// Package localstore provides the durable key-value storage that survives
// between CLI invocations, the equivalent of browser local storage.
//
// Three backends implement Storage: SQLite (default, modernc.org/sqlite),
// File (a JSON document guarded by an advisory flock so concurrent processes
// do not interleave writes) and Memory (process lifetime only, used for tests
// and as the fallback when durable storage cannot be opened). Open selects the
// backend from configuration.
package localstore
