package models

import "time"

// Run is one harvest execution recorded in the catalog.
type Run struct {
	ID            string     `json:"id"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	Sources       int        `json:"sources"`
	Saved         int        `json:"saved"`
	TooLarge      int        `json:"skipped_too_large"`
	NoMarker      int        `json:"skipped_no_marker"`
	Empty         int        `json:"skipped_empty"`
	InvalidFormat int        `json:"skipped_invalid_format"`
	Failed        int        `json:"failed"`
	Cancelled     bool       `json:"cancelled"`
}
