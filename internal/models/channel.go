package models

// Channel represents a single stream entry parsed from an M3U directive line.
type Channel struct {
	// Duration in seconds; -1 means live/unknown.
	Duration int
	// Name is the display name after the last comma of the directive.
	// Never empty; defaulted when the source omits it.
	Name string
	// Attrs holds every key=value pair found on the directive line.
	// Always contains "group-title" after normalization.
	Attrs Attributes
	// URL may be empty when the source document is malformed; such
	// records are kept for accounting but never written out.
	URL string
	// Group is the normalized group-title value.
	Group string
	// Raw is the original directive line, retained for diagnostics.
	Raw string
}
