package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultWhenMissing(t *testing.T) {
	t.Setenv(EnvAPIBaseURL, "")
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	def := DefaultConfig()
	if cfg.DraftDebounceMillis != def.DraftDebounceMillis {
		t.Fatalf("DraftDebounceMillis = %d, want %d", cfg.DraftDebounceMillis, def.DraftDebounceMillis)
	}
	if cfg.APIBaseURL != def.APIBaseURL {
		t.Fatalf("APIBaseURL = %q, want %q", cfg.APIBaseURL, def.APIBaseURL)
	}
	if cfg.DraftDebounce() != 450*time.Millisecond {
		t.Fatalf("DraftDebounce() = %v, want 450ms", cfg.DraftDebounce())
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	t.Setenv(EnvAPIBaseURL, "")
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	body := `{"api_base_url": "https://ouvidoria.example/api/", "draft_debounce_ms": 200, "max_video_bytes": 1024}`
	if err := os.WriteFile(configPath, []byte(body), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIBaseURL != "https://ouvidoria.example/api" {
		t.Errorf("APIBaseURL = %q, want trailing slash trimmed", cfg.APIBaseURL)
	}
	if cfg.DraftDebounceMillis != 200 {
		t.Errorf("DraftDebounceMillis = %d, want 200", cfg.DraftDebounceMillis)
	}
	if cfg.MaxVideoBytes != 1024 {
		t.Errorf("MaxVideoBytes = %d, want 1024", cfg.MaxVideoBytes)
	}
	// Untouched keys keep defaults
	if cfg.MaxAudioBytes != DefaultConfig().MaxAudioBytes {
		t.Errorf("MaxAudioBytes = %d, want default", cfg.MaxAudioBytes)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv(EnvAPIBaseURL, "http://127.0.0.1:9999/api")
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIBaseURL != "http://127.0.0.1:9999/api" {
		t.Errorf("APIBaseURL = %q, want env value", cfg.APIBaseURL)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{not json}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestMerge_DisabledToolsDeduplicated(t *testing.T) {
	base := &Config{DisabledTools: []string{"draft_clear", " manifestation_submit "}}
	overlay := &Config{DisabledTools: []string{"manifestation_submit", ""}}

	got := Merge(base, overlay)
	if len(got.DisabledTools) != 2 {
		t.Fatalf("DisabledTools = %v, want 2 entries", got.DisabledTools)
	}
	if got.DisabledTools[0] != "draft_clear" || got.DisabledTools[1] != "manifestation_submit" {
		t.Errorf("DisabledTools = %v", got.DisabledTools)
	}
}

func TestMerge_EmptyArraysStayNil(t *testing.T) {
	got := Merge(&Config{}, &Config{})
	if got.DisabledTools != nil {
		t.Errorf("DisabledTools = %v, want nil", got.DisabledTools)
	}
}

func TestDurations(t *testing.T) {
	cfg := &Config{RequestTimeoutSeconds: 5, MaxCaptureSeconds: 60}
	if cfg.RequestTimeout() != 5*time.Second {
		t.Errorf("RequestTimeout() = %v", cfg.RequestTimeout())
	}
	if cfg.MaxCaptureDuration() != time.Minute {
		t.Errorf("MaxCaptureDuration() = %v", cfg.MaxCaptureDuration())
	}
}
