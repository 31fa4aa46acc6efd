// Package sources reads the ordered playlist URL list that feeds a
// harvest run.
package sources

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/voyagen/streamsift/internal/models"
)

// Load reads one URL per line from path, skipping blank lines and
// comments. Lines that are not valid http/https URLs are returned in
// rejected for the caller to report. Indexes are assigned by position,
// 1-based, counting only accepted URLs.
func Load(path string) (list []models.Source, rejected []string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open sources: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !validURL(line) {
			rejected = append(rejected, line)
			continue
		}
		list = append(list, models.Source{Index: len(list) + 1, URL: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("read sources: %w", err)
	}
	return list, rejected, nil
}

func validURL(s string) bool {
	u, err := url.ParseRequestURI(s)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
