// Package config loads server settings from the environment, with an
// optional .env file for local development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the server binary needs to run.
type Config struct {
	// Transport is "tcp" or "unix".
	Transport string
	// Endpoint is the port for tcp or the socket name for unix.
	Endpoint string
	// Password is the shared password clients must present.
	Password string
	// LogLevel is a zerolog level string.
	LogLevel string
	// OpsAddr is the ops HTTP listener address; empty disables it.
	OpsAddr string
	// RedisAddr selects the redis snapshot cache; empty means in-memory.
	RedisAddr string
	// SnapshotTTL is how long a cached spectator snapshot stays fresh.
	SnapshotTTL time.Duration
	// ReadTimeout bounds each socket read so session loops stay responsive.
	ReadTimeout time.Duration
	// LoopDelay is the sleep between session loop iterations.
	LoopDelay time.Duration
}

// Load reads the configuration from WORDDUEL_* environment variables. A .env
// file in the working directory is loaded first when present.
//
// Returns:
//   - The populated Config; unset variables get their defaults
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Transport:   getEnv("WORDDUEL_TRANSPORT", "tcp"),
		Endpoint:    getEnv("WORDDUEL_ENDPOINT", "8080"),
		Password:    getEnv("WORDDUEL_PASSWORD", ""),
		LogLevel:    getEnv("WORDDUEL_LOG_LEVEL", "info"),
		OpsAddr:     getEnv("WORDDUEL_OPS_ADDR", ""),
		RedisAddr:   getEnv("WORDDUEL_REDIS_ADDR", ""),
		SnapshotTTL: getDuration("WORDDUEL_SNAPSHOT_TTL", time.Second),
		ReadTimeout: getDuration("WORDDUEL_READ_TIMEOUT", 200*time.Millisecond),
		LoopDelay:   getDuration("WORDDUEL_LOOP_DELAY", 20*time.Millisecond),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

// getDuration accepts Go duration strings ("200ms") and bare integers, which
// are read as milliseconds.
func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}

	if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}

	return fallback
}
