package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the service configuration read from the environment.
type Config struct {
	Port           string
	LogLevel       string
	LogFormat      string
	UpdateInterval time.Duration
	PlaybackPacing string
	StoreBackend   string
	StoreDir       string
	RedisURL       string
	RedisPrefix    string
	Readers        []string
	// IngestMaxFrameBytes caps one websocket frame message, header included.
	IngestMaxFrameBytes int
}

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist, Load returns an error but
// callers can ignore it and use system env or defaults. Pass one or more paths
// to load from specific files (e.g. ".env"); with no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// FromEnv builds a Config from the environment, falling back to defaults.
func FromEnv() Config {
	return Config{
		Port:           GetEnv("PORT", "8080"),
		LogLevel:       GetEnv("LOG_LEVEL", "info"),
		LogFormat:      GetEnv("LOG_FORMAT", "json"),
		UpdateInterval: GetEnvDuration("UPDATE_INTERVAL", 16*time.Millisecond),
		PlaybackPacing: GetEnv("PLAYBACK_PACING", "realtime"),
		StoreBackend:   GetEnv("STORE_BACKEND", "file"),
		StoreDir:       GetEnv("STORE_DIR", "./playback"),
		RedisURL:       GetEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisPrefix:    GetEnv("REDIS_PREFIX", "facecapture"),
		Readers:        GetEnvList("READERS", []string{"default"}),

		IngestMaxFrameBytes: GetEnvInt("INGEST_MAX_FRAME_BYTES", 1<<20),
	}
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvDuration parses the variable with time.ParseDuration (e.g. "16ms").
// Unset, empty, invalid or non-positive values yield fallback.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

// GetEnvList splits a comma-separated variable, dropping empty items.
func GetEnvList(key string, fallback []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
