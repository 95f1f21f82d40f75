// Package config centralises all environment / flag configuration for the API.
// It should be imported only by `cmd/server` (and test code). Business‑logic
// layers receive an already‑built Config instance via dependency‑injection.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime option the server needs.
// Keep it flat and simple—prefer primitive types over embedding structs.
type Config struct {
	// Network
	Port string

	// External services
	GitHubToken string // optional dev fallback; production tokens arrive per-request

	// Server tuning
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Pipeline tuning
	QueryTimeout          time.Duration // bounds one whole query pipeline, not each sub-call
	CodeReferenceMaxLines int           // line cap for code-reference excerpts
}

// Load parses the environment (and an optional .env file) into Config.
// It panics on missing critical variables so mis‑configurations fail fast.
func Load() Config {
	// godotenv.Load() is a no‑op if .env doesn't exist—safe in production.
	_ = godotenv.Load()

	return Config{
		Port:                  must("PORT"),
		GitHubToken:           os.Getenv("GITHUB_TOKEN"),
		ReadTimeout:           getDuration("READ_TIMEOUT_SEC", 5),
		WriteTimeout:          getDuration("WRITE_TIMEOUT_SEC", 120),
		QueryTimeout:          getDuration("QUERY_TIMEOUT_SEC", 60),
		CodeReferenceMaxLines: getInt("CODE_REF_MAX_LINES", 100),
	}
}

// must fetches a required env var or terminates the program.
func must(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("env var %s is required", key)
	}
	return val
}

// getInt reads a positive integer from env, falling back to defaultVal.
func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		log.Printf("invalid %s=%q; using default %d", key, v, defaultVal)
	}
	return defaultVal
}

// getDuration reads an integer (seconds) from env, falling back to defaultSec.
func getDuration(key string, defaultSec int) time.Duration {
	if v := os.Getenv(key); v != "" {
		if sec, err := strconv.Atoi(v); err == nil {
			return time.Duration(sec) * time.Second
		}
		log.Printf("invalid %s=%q; using default %ds", key, v, defaultSec)
	}
	return time.Duration(defaultSec) * time.Second
}
