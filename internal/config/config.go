package config

import (
	_ "embed"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed tolerances.yaml
var tolerancesYAML []byte

type Config struct {
	Database    DatabaseConfig
	Embedding   EmbeddingConfig
	Central     CentralConfig
	Terminal    TerminalConfig
	Bridge      BridgeConfig
	Recognition RecognitionConfig
	Web         WebConfig
}

type DatabaseConfig struct {
	URL           string // PostgreSQL connection URL
	MaxOpenConns  int    // Maximum open connections (default 25)
	MaxIdleConns  int    // Maximum idle connections (default 5)
	CascadeDelete bool   // Delete attendance history with the staff row instead of blocking
}

type EmbeddingConfig struct {
	URL           string // Face embedding service base URL (default http://localhost:8000)
	Dim           int    // Encoding vector length (default 128, dlib)
	MaxFrameWidth int    // Frames wider than this are downscaled before upload (default 640)
}

type CentralConfig struct {
	URL         string // Central restaurant backend base URL
	Token       string // API token for the central backend
	DatabaseURL string // Optional MariaDB DSN for direct roster reads
}

type TerminalConfig struct {
	CameraURL      string        // Frame source URL; empty disables the capture loop
	Interval       time.Duration // Capture tick interval (default 2s)
	Cooldown       time.Duration // Per-staff detection cooldown (default 30s)
	MinShift       time.Duration // Minimum shift length before checkout (default 1h)
	IndexThreshold int           // Roster size above which the HNSW index is used (default 64)
}

type BridgeConfig struct {
	Interval time.Duration // Sync interval (default 5m)
}

type RecognitionConfig struct {
	Tolerances []float64 // Ordered tolerance ladder, strictest first
}

type WebConfig struct {
	APIToken string // Bearer token required on mutating routes; empty disables auth
}

// embeddedTolerances mirrors the structure of tolerances.yaml.
type embeddedTolerances struct {
	Tolerances []float64 `yaml:"tolerances"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envDuration reads an environment variable and parses it as a duration.
// Returns the default value if the env var is unset, empty, or invalid.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

// envBool reads an environment variable as a boolean ("true"/"1" are true).
func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// envString reads an environment variable with a fallback default.
func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// parseTolerances parses a comma-separated tolerance list. Invalid entries
// are dropped; the result is sorted ascending so the strictest rung comes
// first. Returns nil if nothing parses.
func parseTolerances(s string) []float64 {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if v, err := strconv.ParseFloat(part, 64); err == nil && v > 0 {
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}

// loadTolerances returns the tolerance ladder from the environment if set,
// otherwise the embedded defaults.
func loadTolerances() []float64 {
	if env := os.Getenv("RECOGNITION_TOLERANCES"); env != "" {
		if ladder := parseTolerances(env); len(ladder) > 0 {
			return ladder
		}
	}

	var defaults embeddedTolerances
	if err := yaml.Unmarshal(tolerancesYAML, &defaults); err != nil {
		// Embedded file, should never happen in practice.
		panic("failed to unmarshal embedded tolerances.yaml: " + err.Error())
	}
	sort.Float64s(defaults.Tolerances)
	return defaults.Tolerances
}

func Load() *Config {
	return &Config{
		Database: DatabaseConfig{
			URL:           os.Getenv("DATABASE_URL"),
			MaxOpenConns:  envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  envInt("DATABASE_MAX_IDLE_CONNS", 5),
			CascadeDelete: envBool("STAFF_DELETE_CASCADE"),
		},
		Embedding: EmbeddingConfig{
			URL:           envString("EMBEDDING_URL", "http://localhost:8000"),
			Dim:           envInt("EMBEDDING_DIM", 128),
			MaxFrameWidth: envInt("EMBEDDING_MAX_FRAME_WIDTH", 640),
		},
		Central: CentralConfig{
			URL:         os.Getenv("CENTRAL_URL"),
			Token:       os.Getenv("CENTRAL_TOKEN"),
			DatabaseURL: os.Getenv("CENTRAL_DATABASE_URL"),
		},
		Terminal: TerminalConfig{
			CameraURL:      os.Getenv("CAMERA_URL"),
			Interval:       envDuration("TERMINAL_INTERVAL", 2*time.Second),
			Cooldown:       envDuration("TERMINAL_COOLDOWN", 30*time.Second),
			MinShift:       envDuration("TERMINAL_MIN_SHIFT", time.Hour),
			IndexThreshold: envInt("TERMINAL_INDEX_THRESHOLD", 64),
		},
		Bridge: BridgeConfig{
			Interval: envDuration("SYNC_INTERVAL", 5*time.Minute),
		},
		Recognition: RecognitionConfig{
			Tolerances: loadTolerances(),
		},
		Web: WebConfig{
			APIToken: os.Getenv("API_TOKEN"),
		},
	}
}
