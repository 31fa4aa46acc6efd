package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk shape. Durations are strings ("30s", "2m")
// so both YAML and TOML stay human-editable.
type fileConfig struct {
	Marker      string  `yaml:"marker" toml:"marker"`
	MaxBytes    int64   `yaml:"max_response_bytes" toml:"max_response_bytes"`
	Timeout     string  `yaml:"timeout" toml:"timeout"`
	Workers     int     `yaml:"workers" toml:"workers"`
	Rate        float64 `yaml:"rate_per_second" toml:"rate_per_second"`
	SourcesFile string  `yaml:"sources_file" toml:"sources_file"`
	Dir         string  `yaml:"destination_dir" toml:"destination_dir"`
	UserAgent   string  `yaml:"user_agent" toml:"user_agent"`
	DatabaseURL string  `yaml:"database_url" toml:"database_url"`
	RedisURL    string  `yaml:"redis_url" toml:"redis_url"`
	MetricsAddr string  `yaml:"metrics_addr" toml:"metrics_addr"`

	Probe fileProbeConfig `yaml:"probe" toml:"probe"`
}

type fileProbeConfig struct {
	Window     string   `yaml:"window" toml:"window"`
	Buffer     string   `yaml:"buffer" toml:"buffer"`
	MinKBps    float64  `yaml:"min_kbps" toml:"min_kbps"`
	Workers    int      `yaml:"workers" toml:"workers"`
	DNSServers []string `yaml:"dns_servers" toml:"dns_servers"`
	BestDir    string   `yaml:"best_dir" toml:"best_dir"`
	Queue      string   `yaml:"queue" toml:"queue"`
}

// applyFile overlays values from a YAML or TOML file onto c. Only
// fields present in the file override the current values.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var f fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if f.Marker != "" {
		c.Marker = f.Marker
	}
	if f.MaxBytes > 0 {
		c.MaxBytes = f.MaxBytes
	}
	if f.Timeout != "" {
		if d, err := time.ParseDuration(f.Timeout); err == nil {
			c.Timeout = d
		}
	}
	if f.Workers > 0 {
		c.Workers = f.Workers
	}
	if f.Rate > 0 {
		c.Rate = f.Rate
	}
	if f.SourcesFile != "" {
		c.SourcesFile = f.SourcesFile
	}
	if f.Dir != "" {
		c.Dir = f.Dir
	}
	if f.UserAgent != "" {
		c.UserAgent = f.UserAgent
	}
	if f.DatabaseURL != "" {
		c.DatabaseURL = f.DatabaseURL
	}
	if f.RedisURL != "" {
		c.RedisURL = f.RedisURL
	}
	if f.MetricsAddr != "" {
		c.MetricsAddr = f.MetricsAddr
	}

	if f.Probe.Window != "" {
		if d, err := time.ParseDuration(f.Probe.Window); err == nil {
			c.Probe.Window = d
		}
	}
	if f.Probe.Buffer != "" {
		if d, err := time.ParseDuration(f.Probe.Buffer); err == nil {
			c.Probe.Buffer = d
		}
	}
	if f.Probe.MinKBps > 0 {
		c.Probe.MinKBps = f.Probe.MinKBps
	}
	if f.Probe.Workers > 0 {
		c.Probe.Workers = f.Probe.Workers
	}
	if len(f.Probe.DNSServers) > 0 {
		c.Probe.DNSServers = f.Probe.DNSServers
	}
	if f.Probe.BestDir != "" {
		c.Probe.BestDir = f.Probe.BestDir
	}
	if f.Probe.Queue != "" {
		c.Probe.Queue = f.Probe.Queue
	}
	return nil
}
