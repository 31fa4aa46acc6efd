package config

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"
)

// loadEnvFiles applies .env.local and .env from the working directory
// and the executable's directory. Variables already present in the
// environment always win; files never override them.
func loadEnvFiles() {
	for _, path := range envFileCandidates() {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		for key, value := range parseEnvFile(data) {
			if os.Getenv(key) == "" {
				_ = os.Setenv(key, value)
			}
		}
	}
}

func envFileCandidates() []string {
	var dirs []string
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, cwd)
	}
	if exe, err := os.Executable(); err == nil {
		if dir := filepath.Dir(exe); dir != "" {
			dirs = append(dirs, dir)
		}
	}
	var paths []string
	for _, dir := range dirs {
		paths = append(paths, filepath.Join(dir, ".env.local"), filepath.Join(dir, ".env"))
	}
	return paths
}

// parseEnvFile understands KEY=VALUE lines, comments, and an optional
// leading "export ". Quotes around the value are stripped.
func parseEnvFile(data []byte) map[string]string {
	vars := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		i := strings.Index(line, "=")
		if i <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:i])
		value := strings.Trim(strings.TrimSpace(line[i+1:]), `"'`)
		if key != "" {
			vars[key] = value
		}
	}
	return vars
}
