// Package upload drives a media file through the transcription workflow:
// optional probe and cut, upload with progress, then recording the result in
// the collection.
//
// The status store follows the workflow: cutting while ffmpeg trims the
// source, uploading while bytes are sent, transcribing once the body is on
// the backend, and transcribed or error at the end. Input validation failures
// (busy backend, missing file, no audio stream, bad cut range) return before
// the status is touched.
package upload
