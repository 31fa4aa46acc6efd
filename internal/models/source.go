package models

// Source is one playlist URL to harvest. Index is 1-based position in
// the input list and determines the output file name.
type Source struct {
	Index int    `json:"index"`
	URL   string `json:"url"`
}
