// Package deps resolves the external media binaries the upload workflow
// shells out to and reports their availability for `transcriber doctor`.
package deps
