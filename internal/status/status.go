package status

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Status is the coarse state of the transcription workflow.
type Status string

const (
	Loading            Status = "loading"
	WaitingOnUserInput Status = "waiting_on_user_input"
	Cutting            Status = "cutting"
	Uploading          Status = "uploading"
	Transcribing       Status = "transcribing"
	Transcribed        Status = "transcribed"
	Error              Status = "error"
)

var allStatuses = []Status{Loading, WaitingOnUserInput, Cutting, Uploading, Transcribing, Transcribed, Error}

// All returns every status in workflow order.
func All() []Status {
	return append([]Status(nil), allStatuses...)
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range allStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Label renders s for display, e.g. "Waiting On User Input".
func (s Status) Label() string {
	return cases.Title(language.Und).String(strings.ReplaceAll(string(s), "_", " "))
}

func (s Status) String() string { return string(s) }

// Parse maps a status name onto a Status. Hyphens and case are ignored and
// "waiting" is accepted for WaitingOnUserInput.
func Parse(value string) (Status, bool) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "-", "_")
	if normalized == "waiting" {
		return WaitingOnUserInput, true
	}
	s := Status(normalized)
	return s, s.Valid()
}

// allowed lists the strict successors of each status. Remaining in the same
// status and returning to Loading are always allowed.
var allowed = map[Status][]Status{
	Loading:            {WaitingOnUserInput, Transcribing, Transcribed, Error},
	WaitingOnUserInput: {Cutting, Uploading, Transcribing, Error},
	Cutting:            {Uploading, WaitingOnUserInput, Error},
	Uploading:          {Transcribing, Transcribed, WaitingOnUserInput, Error},
	Transcribing:       {Transcribed, WaitingOnUserInput, Error},
	Transcribed:        {WaitingOnUserInput, Error},
	Error:              {WaitingOnUserInput},
}

// CanTransition reports whether the strict table permits from -> to.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to || to == Loading {
		return true
	}
	for _, next := range allowed[from] {
		if next == to {
			return true
		}
	}
	return false
}
