package playlist

import (
	"errors"
	"strings"
	"testing"

	"github.com/voyagen/streamsift/internal/models"
)

func TestParseRejectsMissingHeader(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"html error page", "<html><body>not found</body></html>"},
		{"plain text", "this is not a playlist"},
		{"empty document", ""},
		{"header not first", "# hello\n#EXTM3U\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Parser{Marker: "bein"}
			_, err := p.Parse([]byte(tt.data))
			if !errors.Is(err, ErrInvalidFormat) {
				t.Errorf("expected ErrInvalidFormat, got %v", err)
			}
		})
	}
}

func TestParseBasicDocument(t *testing.T) {
	doc := `#EXTM3U
#EXTINF:-1 tvg-id="one" group-title="IRAN Sports",Varzesh
http://host/1.ts
#EXTINF:120 group-title="News, World" tvg-logo="l.png",CNN International
http://host/2.ts
`
	p := &Parser{Marker: "iran"}
	pl, err := p.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pl.Channels) != 2 {
		t.Fatalf("expected 2 channels, got %d", len(pl.Channels))
	}

	first := pl.Channels[0]
	if first.Duration != -1 {
		t.Errorf("expected duration -1, got %d", first.Duration)
	}
	if first.Name != "Varzesh" {
		t.Errorf("expected name Varzesh, got %q", first.Name)
	}
	if first.Group != "IRAN Sports" {
		t.Errorf("expected group IRAN Sports, got %q", first.Group)
	}
	if first.URL != "http://host/1.ts" {
		t.Errorf("expected URL http://host/1.ts, got %q", first.URL)
	}
	if v := first.Attrs.Value("tvg-id"); v != "one" {
		t.Errorf("expected tvg-id one, got %q", v)
	}

	second := pl.Channels[1]
	if second.Duration != 120 {
		t.Errorf("expected duration 120, got %d", second.Duration)
	}
	// The display name starts after the last comma, so the quoted
	// comma inside group-title must not split the line early.
	if second.Name != "CNN International" {
		t.Errorf("expected name CNN International, got %q", second.Name)
	}
	if second.Group != "News, World" {
		t.Errorf("expected group with embedded comma, got %q", second.Group)
	}

	wantGroups := []string{"IRAN Sports", "News, World"}
	if len(pl.Groups) != len(wantGroups) {
		t.Fatalf("expected %d groups, got %d", len(wantGroups), len(pl.Groups))
	}
	for i, g := range wantGroups {
		if pl.Groups[i] != g {
			t.Errorf("group %d: expected %q, got %q", i, g, pl.Groups[i])
		}
	}
	if !pl.HasMarker {
		t.Error("expected marker iran to be found")
	}
}

func TestParseDirectiveEdgeCases(t *testing.T) {
	tests := []struct {
		name         string
		line         string
		wantDuration int
		wantName     string
		wantGroup    string
	}{
		{
			name:         "non-numeric duration falls back",
			line:         `#EXTINF:abc group-title="X",Chan`,
			wantDuration: -1,
			wantName:     "Chan",
			wantGroup:    "X",
		},
		{
			name:         "fractional duration falls back",
			line:         `#EXTINF:2.5,Chan`,
			wantDuration: -1,
			wantName:     "Chan",
			wantGroup:    "General",
		},
		{
			name:         "zero duration kept",
			line:         `#EXTINF:0,Chan`,
			wantDuration: 0,
			wantName:     "Chan",
			wantGroup:    "General",
		},
		{
			name:         "missing group-title defaults",
			line:         `#EXTINF:-1 tvg-id="x",Chan`,
			wantDuration: -1,
			wantName:     "Chan",
			wantGroup:    "General",
		},
		{
			name:         "empty group-title defaults",
			line:         `#EXTINF:-1 group-title="",Chan`,
			wantDuration: -1,
			wantName:     "Chan",
			wantGroup:    "General",
		},
		{
			name:         "blank name defaults",
			line:         `#EXTINF:-1 group-title="X",`,
			wantDuration: -1,
			wantName:     "Unnamed Channel",
			wantGroup:    "X",
		},
		{
			name:         "no comma at all",
			line:         `#EXTINF:-1`,
			wantDuration: -1,
			wantName:     "Unnamed Channel",
			wantGroup:    "General",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := parseDirective(tt.line)
			if ch.Duration != tt.wantDuration {
				t.Errorf("expected duration %d, got %d", tt.wantDuration, ch.Duration)
			}
			if ch.Name != tt.wantName {
				t.Errorf("expected name %q, got %q", tt.wantName, ch.Name)
			}
			if ch.Group != tt.wantGroup {
				t.Errorf("expected group %q, got %q", tt.wantGroup, ch.Group)
			}
			if v := ch.Attrs.Value("group-title"); v != tt.wantGroup {
				t.Errorf("expected group-title attr %q, got %q", tt.wantGroup, v)
			}
		})
	}
}

func TestParseURLPairing(t *testing.T) {
	t.Run("url found past blanks and comments", func(t *testing.T) {
		doc := "#EXTM3U\n#EXTINF:-1,A\n\n# a stray comment\nhttp://host/a\n"
		pl := mustParse(t, doc)
		if len(pl.Channels) != 1 || pl.Channels[0].URL != "http://host/a" {
			t.Fatalf("expected one channel with URL, got %+v", pl.Channels)
		}
	})

	t.Run("new directive finalizes urlless record", func(t *testing.T) {
		doc := "#EXTM3U\n#EXTINF:-1,A\n#EXTINF:-1,B\nhttp://host/b\n"
		pl := mustParse(t, doc)
		if len(pl.Channels) != 2 {
			t.Fatalf("expected 2 channels, got %d", len(pl.Channels))
		}
		if pl.Channels[0].Name != "A" || pl.Channels[0].URL != "" {
			t.Errorf("expected A with empty URL, got %+v", pl.Channels[0])
		}
		if pl.Channels[1].URL != "http://host/b" {
			t.Errorf("expected B with URL, got %+v", pl.Channels[1])
		}
	})

	t.Run("header class line finalizes urlless record", func(t *testing.T) {
		doc := "#EXTM3U\n#EXTINF:-1,A\n#EXT-X-VERSION:3\nhttp://host/late\n"
		pl := mustParse(t, doc)
		if len(pl.Channels) != 1 {
			t.Fatalf("expected 1 channel, got %d", len(pl.Channels))
		}
		if pl.Channels[0].URL != "" {
			t.Errorf("expected empty URL after header-class line, got %q", pl.Channels[0].URL)
		}
	})

	t.Run("url without directive is dropped", func(t *testing.T) {
		doc := "#EXTM3U\nhttp://host/orphan\n#EXTINF:-1,A\nhttp://host/a\n"
		pl := mustParse(t, doc)
		if len(pl.Channels) != 1 || pl.Channels[0].URL != "http://host/a" {
			t.Fatalf("expected only the paired channel, got %+v", pl.Channels)
		}
	})

	t.Run("pending record at end of input is kept", func(t *testing.T) {
		doc := "#EXTM3U\n#EXTINF:-1,Tail"
		pl := mustParse(t, doc)
		if len(pl.Channels) != 1 || pl.Channels[0].Name != "Tail" {
			t.Fatalf("expected trailing channel, got %+v", pl.Channels)
		}
		if pl.Channels[0].URL != "" {
			t.Errorf("expected empty URL, got %q", pl.Channels[0].URL)
		}
	})

	t.Run("header only parses to empty playlist", func(t *testing.T) {
		pl := mustParse(t, "#EXTM3U\n")
		if len(pl.Channels) != 0 || len(pl.Groups) != 0 {
			t.Fatalf("expected empty playlist, got %+v", pl)
		}
	})
}

func TestParseInvalidUTF8(t *testing.T) {
	doc := append([]byte("#EXTM3U\n#EXTINF:-1,Bad"), 0xff, 0xfe)
	doc = append(doc, []byte("Name\nhttp://host/x\n")...)

	pl := mustParse(t, string(doc))
	if len(pl.Channels) != 1 {
		t.Fatalf("expected 1 channel, got %d", len(pl.Channels))
	}
	if !strings.Contains(pl.Channels[0].Name, "�") {
		t.Errorf("expected replacement character in name, got %q", pl.Channels[0].Name)
	}
}

func TestParseMarker(t *testing.T) {
	tests := []struct {
		name   string
		marker string
		groups string
		want   bool
	}{
		{"case-insensitive substring", "bein", `group-title="BeIN SPORTS HD"`, true},
		{"no group contains marker", "bein", `group-title="News"`, false},
		{"substring match needs no word boundary", "bein", `group-title="being"`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := "#EXTM3U\n#EXTINF:-1 " + tt.groups + ",A\nhttp://host/a\n"
			p := &Parser{Marker: tt.marker}
			pl, err := p.Parse([]byte(doc))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if pl.HasMarker != tt.want {
				t.Errorf("expected HasMarker %v, got %v", tt.want, pl.HasMarker)
			}
		})
	}

	t.Run("marker matched across all groups", func(t *testing.T) {
		doc := "#EXTM3U\n" +
			"#EXTINF:-1 group-title=\"Movies\",M\nhttp://host/m\n" +
			"#EXTINF:-1 group-title=\"beIN 1\",B\nhttp://host/b\n"
		p := &Parser{Marker: "BEIN"}
		pl, err := p.Parse([]byte(doc))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !pl.HasMarker {
			t.Error("expected marker found in second group")
		}
	})
}

func TestParseAttributes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want map[string]string
	}{
		{
			name: "quoted and bare values",
			in:   ` a="1" b=two`,
			want: map[string]string{"a": "1", "b": "two"},
		},
		{
			name: "quoted value with spaces",
			in:   ` group-title="My Group" x="y"`,
			want: map[string]string{"group-title": "My Group", "x": "y"},
		},
		{
			name: "key without equals is skipped",
			in:   ` a="1" orphan b="2"`,
			want: map[string]string{"a": "1", "b": "2"},
		},
		{
			name: "unterminated quote runs to end",
			in:   ` a="unfinished`,
			want: map[string]string{"a": "unfinished"},
		},
		{
			name: "hyphen and underscore keys",
			in:   ` tvg-logo="l" time_shift=4`,
			want: map[string]string{"tvg-logo": "l", "time_shift": "4"},
		},
		{
			name: "empty input",
			in:   "",
			want: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := parseAttributes(tt.in)
			if attrs.Len() != len(tt.want) {
				t.Fatalf("expected %d attrs, got %d (%v)", len(tt.want), attrs.Len(), attrs.Keys())
			}
			for k, v := range tt.want {
				if got := attrs.Value(k); got != v {
					t.Errorf("attr %s: expected %q, got %q", k, v, got)
				}
			}
		})
	}
}

func mustParse(t *testing.T, doc string) *models.Playlist {
	t.Helper()
	p := &Parser{Marker: "bein"}
	pl, err := p.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	return pl
}
