// Package status tracks what the backend is doing with the user's media: the
// coarse transcription status, the job id while a transcription runs and the
// upload progress percentage.
//
// Refresh polls GET /status. Overlapping refreshes are ordered by a ticket
// taken when the request is sent, so a slow response can never overwrite the
// result of a newer one. Explicit SetStatus and Transition calls also
// invalidate refreshes still in flight.
package status
