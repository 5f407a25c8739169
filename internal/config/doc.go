// Package config loads, normalizes, and validates transcriber configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, and honours environment fallbacks such as
// TRANSCRIBER_BACKEND_URL. The Config type centralizes the backend origin,
// durable storage location, watch cadence, and logging settings so the CLI
// and the application context discover them in one pass.
package config
