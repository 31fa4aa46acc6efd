// Package playlist implements EXTM3U parsing, the tiered group
// ordering policy, and atomic serialization of accepted documents.
package playlist

import (
	"bufio"
	"errors"
	"strconv"
	"strings"

	"github.com/voyagen/streamsift/internal/models"
)

const (
	headerMarker    = "#EXTM3U"
	directivePrefix = "#EXTINF:"
	hlsPrefix       = "#EXT-X-"
)

// ErrInvalidFormat means the document does not start with the EXTM3U
// header marker and is not worth parsing further.
var ErrInvalidFormat = errors.New("document does not start with " + headerMarker)

// Parser turns raw document bytes into a models.Playlist. Marker is
// the group-title substring (matched case-insensitively) that decides
// whether the document is worth keeping.
type Parser struct {
	Marker string
}

// Parse decodes data permissively (invalid UTF-8 replaced, never
// fatal) and walks the document line by line. Directive/URL pairing is
// a two-state walk: after a directive the parser scans past blanks and
// comments for the URL; a new directive or header line instead
// finalizes the pending record with an empty URL. A document with zero
// recognized directives parses successfully into an empty playlist;
// skipping those is the pipeline's call, not a parse error.
func (p *Parser) Parse(data []byte) (*models.Playlist, error) {
	text := strings.ToValidUTF8(string(data), "�")
	if !strings.HasPrefix(strings.TrimSpace(text), headerMarker) {
		return nil, ErrInvalidFormat
	}

	scanner := bufio.NewScanner(strings.NewReader(text))
	// Some playlists carry very long directive lines.
	const maxLine = 1024 * 1024
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)

	pl := &models.Playlist{}
	seen := make(map[string]struct{})
	record := func(ch models.Channel) {
		pl.Channels = append(pl.Channels, ch)
		if _, ok := seen[ch.Group]; !ok {
			seen[ch.Group] = struct{}{}
			pl.Groups = append(pl.Groups, ch.Group)
		}
	}

	var pending *models.Channel
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, directivePrefix):
			if pending != nil {
				// Previous directive never found its URL.
				record(*pending)
			}
			ch := parseDirective(line)
			pending = &ch
		case line == "":
			continue
		case strings.HasPrefix(line, headerMarker), strings.HasPrefix(line, hlsPrefix):
			if pending != nil {
				record(*pending)
				pending = nil
			}
		case strings.HasPrefix(line, "#"):
			continue
		default:
			if pending == nil {
				// URL with no preceding directive; nothing to attach it to.
				continue
			}
			pending.URL = line
			record(*pending)
			pending = nil
		}
	}
	if pending != nil {
		record(*pending)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	marker := strings.ToLower(p.Marker)
	for _, g := range pl.Groups {
		if strings.Contains(strings.ToLower(g), marker) {
			pl.HasMarker = true
			break
		}
	}
	return pl, nil
}

// parseDirective splits one #EXTINF line into duration, attributes,
// and display name. The name is everything after the last comma; the
// duration is the first whitespace-delimited token, falling back to -1
// when it is not an integer.
func parseDirective(line string) models.Channel {
	body := line[len(directivePrefix):]

	attrSeg := body
	name := ""
	if i := strings.LastIndexByte(body, ','); i >= 0 {
		attrSeg = body[:i]
		name = strings.TrimSpace(body[i+1:])
	}

	duration := -1
	rest := attrSeg
	if end := strings.IndexAny(attrSeg, " \t"); end >= 0 {
		if d, err := strconv.Atoi(attrSeg[:end]); err == nil {
			duration = d
		}
		rest = attrSeg[end:]
	} else {
		if d, err := strconv.Atoi(attrSeg); err == nil {
			duration = d
		}
		rest = ""
	}

	attrs := parseAttributes(rest)
	if name == "" {
		name = models.DefaultName
	}
	group := models.DefaultGroup
	if v, ok := attrs.Get("group-title"); ok && strings.TrimSpace(v) != "" {
		group = v
	}
	attrs.Set("group-title", group)

	return models.Channel{
		Duration: duration,
		Name:     name,
		Attrs:    attrs,
		Group:    group,
		Raw:      line,
	}
}

// parseAttributes tokenizes key=value pairs: a key is a run of
// [A-Za-z0-9_-], '=' must follow, and the value is either quoted
// (ending at the next double quote) or bare (ending at whitespace).
// Anything that does not fit is skipped without failing the line.
func parseAttributes(s string) models.Attributes {
	var attrs models.Attributes
	i := 0
	for i < len(s) {
		for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
			i++
		}
		if i >= len(s) {
			break
		}
		start := i
		for i < len(s) && isKeyByte(s[i]) {
			i++
		}
		if i == start {
			i++
			continue
		}
		key := s[start:i]
		if i >= len(s) || s[i] != '=' {
			continue
		}
		i++
		var value string
		if i < len(s) && s[i] == '"' {
			i++
			if end := strings.IndexByte(s[i:], '"'); end >= 0 {
				value = s[i : i+end]
				i += end + 1
			} else {
				value = s[i:]
				i = len(s)
			}
		} else {
			start = i
			for i < len(s) && s[i] != ' ' && s[i] != '\t' {
				i++
			}
			value = s[start:i]
		}
		attrs.Set(key, value)
	}
	return attrs
}

func isKeyByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' || c == '-' || c == '_'
}
