package config

import "errors"

var (
	// ErrNoDatabaseURL is returned by features that need the run
	// catalog when database_url is not configured.
	ErrNoDatabaseURL = errors.New("database_url is not configured")
	// ErrNoRedisURL is returned by features that need Redis (probe
	// worker mode) when redis_url is not configured.
	ErrNoRedisURL = errors.New("redis_url is not configured")
)
