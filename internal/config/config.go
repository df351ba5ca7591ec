package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	// APIBaseURL is the base URL of the manifestation service (without trailing slash).
	APIBaseURL string `json:"api_base_url,omitempty"`

	// RequestTimeoutSeconds is the transport timeout for calls to the manifestation service.
	// It is the only timeout applied to a submission.
	RequestTimeoutSeconds int `json:"request_timeout_seconds,omitempty"`

	// DraftDebounceMillis is the quiescence window before a draft edit is committed.
	DraftDebounceMillis int `json:"draft_debounce_ms,omitempty"`

	// MaxAudioBytes, MaxImageBytes and MaxVideoBytes bound attachment payloads
	// before submission. A recording that reaches MaxAudioBytes is stopped.
	MaxAudioBytes int64 `json:"max_audio_bytes,omitempty"`
	MaxImageBytes int64 `json:"max_image_bytes,omitempty"`
	MaxVideoBytes int64 `json:"max_video_bytes,omitempty"`

	// MaxCaptureSeconds stops a recording session after this many seconds.
	MaxCaptureSeconds int `json:"max_capture_seconds,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default. Typically set equal to DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// EnvAPIBaseURL overrides APIBaseURL when set.
const EnvAPIBaseURL = "OUVIDORIA_API_BASE_URL"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		APIBaseURL:            "http://localhost:8787/api",
		RequestTimeoutSeconds: 30,
		DraftDebounceMillis:   450,
		MaxAudioBytes:         25 << 20,
		MaxImageBytes:         10 << 20,
		MaxVideoBytes:         100 << 20,
		MaxCaptureSeconds:     300,
	}
}

// Load loads configuration from baseDir/config.json and applies environment overrides.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.ouvidoria.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	applyEnv(cfg)
	return cfg, nil
}

// RequestTimeout returns the transport timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// DraftDebounce returns the draft quiescence window as a duration.
func (c *Config) DraftDebounce() time.Duration {
	return time.Duration(c.DraftDebounceMillis) * time.Millisecond
}

// MaxCaptureDuration returns the recording duration cap as a duration.
func (c *Config) MaxCaptureDuration() time.Duration {
	return time.Duration(c.MaxCaptureSeconds) * time.Second
}

// applyEnv overlays environment variables onto cfg.
func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvAPIBaseURL)); v != "" {
		cfg.APIBaseURL = v
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.APIBaseURL = strings.TrimRight(strings.TrimSpace(overlay.APIBaseURL), "/")
	if result.APIBaseURL == "" {
		result.APIBaseURL = base.APIBaseURL
	}

	result.RequestTimeoutSeconds = firstNonZero(overlay.RequestTimeoutSeconds, base.RequestTimeoutSeconds)
	result.DraftDebounceMillis = firstNonZero(overlay.DraftDebounceMillis, base.DraftDebounceMillis)
	result.MaxCaptureSeconds = firstNonZero(overlay.MaxCaptureSeconds, base.MaxCaptureSeconds)
	result.DBMaxOpenConns = firstNonZero(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = firstNonZero(overlay.DBMaxIdleConns, base.DBMaxIdleConns)

	result.MaxAudioBytes = firstNonZero(overlay.MaxAudioBytes, base.MaxAudioBytes)
	result.MaxImageBytes = firstNonZero(overlay.MaxImageBytes, base.MaxImageBytes)
	result.MaxVideoBytes = firstNonZero(overlay.MaxVideoBytes, base.MaxVideoBytes)

	// Arrays: merge and deduplicate
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func firstNonZero[T int | int64](overlay, base T) T {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
