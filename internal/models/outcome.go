package models

import "fmt"

// Status is the terminal state of one source's pipeline sequence.
type Status int16

const (
	StatusSaved Status = iota
	StatusSkippedTooLarge
	StatusSkippedNoMarker
	StatusSkippedEmpty
	StatusSkippedInvalidFormat
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSaved:
		return "saved"
	case StatusSkippedTooLarge:
		return "skipped_too_large"
	case StatusSkippedNoMarker:
		return "skipped_no_marker"
	case StatusSkippedEmpty:
		return "skipped_empty"
	case StatusSkippedInvalidFormat:
		return "skipped_invalid_format"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", int16(s))
}

// MarshalJSON emits the string form so manifests and API responses
// stay readable; the database keeps the compact int16 form.
func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Outcome records how one source URL fared, with enough diagnostics
// to explain the status without re-fetching.
type Outcome struct {
	Index     int    `json:"index"`
	URL       string `json:"url"`
	Status    Status `json:"status"`
	Channels  int    `json:"channels,omitempty"`
	Groups    int    `json:"groups,omitempty"`
	Bytes     int64  `json:"bytes,omitempty"`
	File      string `json:"file,omitempty"`
	Error     string `json:"error,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms"`
}
