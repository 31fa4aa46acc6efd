package models

// Fallback values applied during channel normalization.
const (
	// DefaultGroup is the sentinel group for channels whose directive
	// carries no usable group-title attribute.
	DefaultGroup = "General"
	// DefaultName is used when the directive has no display name.
	DefaultName = "Unnamed Channel"
)
