// Package config centralizes environment-variable configuration, loaded
// from a .env file for local development. Security-sensitive values have
// no hard-coded fallback and must come from the environment.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads a .env file if present. Missing .env is not an error — it's
// the normal case in production where real env vars are already set.
func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println("[Config] No .env file found, relying on process environment")
	}
}

// RequireEnv reads a required environment variable and exits if it is not
// set. This prevents the binary from starting with missing critical
// configuration.
func RequireEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("FATAL: Required environment variable %s is not set. "+
			"Copy .env.example to .env and fill in your values: cp .env.example .env", key)
	}
	return val
}

// GetOrDefault returns the env var value or a safe default for non-secret
// settings.
func GetOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// GetIntOrDefault parses an integer env var, falling back on absence or
// parse failure.
func GetIntOrDefault(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		log.Printf("[Config] %s=%q is not an integer, using default %d", key, val, fallback)
		return fallback
	}
	return n
}

// GetDurationOrDefault parses a Go duration string env var (e.g. "30s"),
// falling back on absence or parse failure.
func GetDurationOrDefault(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		log.Printf("[Config] %s=%q is not a duration, using default %s", key, val, fallback)
		return fallback
	}
	return d
}

// GetBoolOrDefault parses a boolean env var, falling back on absence or
// parse failure. Used for explicit opt-ins like GRAVELPIT_SSH_INSECURE,
// which must never default to true.
func GetBoolOrDefault(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		log.Printf("[Config] %s=%q is not a boolean, using default %v", key, val, fallback)
		return fallback
	}
	return b
}
