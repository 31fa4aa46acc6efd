package models

// Playlist is the result of parsing one M3U document.
type Playlist struct {
	// Channels in source document order. A channel exists here iff its
	// directive line was recognized, whether or not a URL followed it.
	Channels []Channel
	// Groups holds the unique group titles with original casing, in
	// first-seen order.
	Groups []string
	// HasMarker is true when any group title contains the configured
	// marker substring, compared case-insensitively.
	HasMarker bool
}

// Playable returns the number of channels with a non-empty URL,
// i.e. the records eligible for serialization.
func (p *Playlist) Playable() int {
	n := 0
	for i := range p.Channels {
		if p.Channels[i].URL != "" {
			n++
		}
	}
	return n
}
