package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()
	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("logging defaults = %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.Engine.URL != "http://127.0.0.1:8188" {
		t.Errorf("engine URL = %q", cfg.Engine.URL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
addr: ":9090"
log_level: debug
db_path: /tmp/comfyflow.db
engine:
  url: http://gpu-box:8188
  dispatch: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path, DefaultServerConfig())
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Errorf("Addr = %q, want :9090", cfg.Addr)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	// Defaults survive for fields the file does not set.
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, want text", cfg.LogFormat)
	}
	if cfg.Engine.URL != "http://gpu-box:8188" || !cfg.Engine.Dispatch {
		t.Errorf("engine = %+v", cfg.Engine)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("log_level: loud\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path, DefaultServerConfig()); err == nil {
		t.Fatal("expected validation error, got nil")
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile("/does/not/exist.yaml", DefaultServerConfig()); err == nil {
		t.Fatal("expected error, got nil")
	}
}
