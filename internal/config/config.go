package config

import (
	"os"
	"strconv"
	"time"
)

// Defaults for the harvest pipeline. Workers stays deliberately modest;
// operators tune it per deployment.
const (
	DefaultMarker      = "bein"
	DefaultMaxBytes    = 30 << 20 // 30 MiB response ceiling
	DefaultTimeout     = 30 * time.Second
	DefaultWorkers     = 16
	DefaultSourcesFile = "m3ulinks.txt"
	DefaultDir         = "specialiptvs"
	DefaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/110.0.0.0 Safari/537.36"
)

// Probe defaults mirror the operational values the verifier has always
// used: an 80 second watch window, 5 seconds of buffering grace, and a
// 40 KiB/s floor.
const (
	DefaultProbeWindow  = 80 * time.Second
	DefaultProbeBuffer  = 5 * time.Second
	DefaultProbeMinKBps = 40.0
	DefaultProbeWorkers = 4
	DefaultBestDir      = "best"
	DefaultProbeQueue   = "streamsift:jobs:probe"
)

// Config holds application configuration for the harvest pipeline, the
// optional run catalog (Postgres), Redis, metrics, and the prober.
type Config struct {
	Marker      string
	MaxBytes    int64
	Timeout     time.Duration
	Workers     int
	Rate        float64 // fetch starts per second, 0 = unlimited
	SourcesFile string
	Dir         string
	UserAgent   string

	DatabaseURL string
	RedisURL    string
	MetricsAddr string

	Probe ProbeConfig
}

// ProbeConfig configures the stream liveness verifier.
type ProbeConfig struct {
	Window     time.Duration
	Buffer     time.Duration
	MinKBps    float64
	Workers    int
	DNSServers []string
	BestDir    string
	Queue      string
}

// Load builds config from defaults, an optional config file (YAML or
// TOML by extension), and environment variables, in that precedence.
// .env.local and .env are consulted first for unset variables.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	c := defaults()
	if path != "" {
		if err := c.applyFile(path); err != nil {
			return nil, err
		}
	}
	c.applyEnv()

	if c.Marker == "" {
		c.Marker = DefaultMarker
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = DefaultMaxBytes
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	return c, nil
}

func defaults() *Config {
	return &Config{
		Marker:      DefaultMarker,
		MaxBytes:    DefaultMaxBytes,
		Timeout:     DefaultTimeout,
		Workers:     DefaultWorkers,
		SourcesFile: DefaultSourcesFile,
		Dir:         DefaultDir,
		UserAgent:   DefaultUserAgent,
		Probe: ProbeConfig{
			Window:  DefaultProbeWindow,
			Buffer:  DefaultProbeBuffer,
			MinKBps: DefaultProbeMinKBps,
			Workers: DefaultProbeWorkers,
			BestDir: DefaultBestDir,
			Queue:   DefaultProbeQueue,
		},
	}
}

// applyEnv overlays STREAMSIFT_* variables plus the conventional
// DATABASE_URL and REDIS_URL names.
func (c *Config) applyEnv() {
	setString(&c.Marker, "STREAMSIFT_MARKER")
	setInt64(&c.MaxBytes, "STREAMSIFT_MAX_RESPONSE_BYTES")
	setDuration(&c.Timeout, "STREAMSIFT_TIMEOUT")
	setInt(&c.Workers, "STREAMSIFT_WORKERS")
	setFloat(&c.Rate, "STREAMSIFT_RATE_PER_SECOND")
	setString(&c.SourcesFile, "STREAMSIFT_SOURCES_FILE")
	setString(&c.Dir, "STREAMSIFT_DESTINATION_DIR")
	setString(&c.UserAgent, "STREAMSIFT_USER_AGENT")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.RedisURL, "REDIS_URL")
	setString(&c.MetricsAddr, "STREAMSIFT_METRICS_ADDR")
	setDuration(&c.Probe.Window, "STREAMSIFT_PROBE_WINDOW")
	setDuration(&c.Probe.Buffer, "STREAMSIFT_PROBE_BUFFER")
	setFloat(&c.Probe.MinKBps, "STREAMSIFT_PROBE_MIN_KBPS")
	setInt(&c.Probe.Workers, "STREAMSIFT_PROBE_WORKERS")
	setString(&c.Probe.BestDir, "STREAMSIFT_PROBE_BEST_DIR")
	setString(&c.Probe.Queue, "STREAMSIFT_PROBE_QUEUE")
}

func setString(dst *string, key string) {
	if s := os.Getenv(key); s != "" {
		*dst = s
	}
}

func setInt(dst *int, key string) {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if s := os.Getenv(key); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			*dst = d
		}
	}
}
