package playlist

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/voyagen/streamsift/internal/models"
)

// Render serializes the playlist in the given group order: header
// line, then for each group its channels in original document order.
// Records with an empty URL are skipped. It returns the document bytes
// plus the written and eligible record counts; a mismatch between the
// two is the caller's cue to log a consistency warning.
func Render(pl *models.Playlist, order []string) (data []byte, written, eligible int) {
	var buf bytes.Buffer
	buf.WriteString(headerMarker)
	buf.WriteByte('\n')

	eligible = pl.Playable()
	for _, group := range order {
		for i := range pl.Channels {
			ch := &pl.Channels[i]
			if ch.Group != group || ch.URL == "" {
				continue
			}
			buf.WriteString(directiveLine(ch, group))
			buf.WriteByte('\n')
			buf.WriteString(ch.URL)
			buf.WriteByte('\n')
			written++
		}
	}
	return buf.Bytes(), written, eligible
}

// directiveLine rebuilds a channel's #EXTINF line from its stored
// attributes, forcing group-title to the group being emitted so a
// document with inconsistent casing serializes uniformly.
func directiveLine(ch *models.Channel, group string) string {
	parts := []string{fmt.Sprintf("%s%d", directivePrefix, ch.Duration)}
	for _, key := range ch.Attrs.Keys() {
		value := ch.Attrs.Value(key)
		if key == "group-title" {
			value = group
		}
		// A literal double quote would break the token; a single
		// quote keeps the line valid without an escaping grammar.
		value = strings.ReplaceAll(value, `"`, `'`)
		parts = append(parts, key+`="`+value+`"`)
	}
	return strings.Join(parts, " ") + "," + ch.Name
}

// WriteAtomic commits data to path through a uniquely named temp file
// in the same directory followed by a rename, so concurrent readers
// never observe a partial file. On failure the temp file is removed
// and any prior content at path is left untouched.
func WriteAtomic(path string, data []byte) error {
	tmp := fmt.Sprintf("%s.%s.tmp", path, uuid.New().String())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write temp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
