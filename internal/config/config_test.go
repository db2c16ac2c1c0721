package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Default()
	cfg.DefaultSession = "work"
	cfg.BaseURL = "http://10.0.0.5:3000/api/v1"
	cfg.RequestTimeout = Duration{12 * time.Second}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultSession != "work" {
		t.Errorf("DefaultSession = %q, want %q", loaded.DefaultSession, "work")
	}
	if loaded.BaseURL != "http://10.0.0.5:3000/api/v1" {
		t.Errorf("BaseURL = %q", loaded.BaseURL)
	}
	if loaded.RequestTimeout.Duration != 12*time.Second {
		t.Errorf("RequestTimeout = %v, want 12s", loaded.RequestTimeout.Duration)
	}
}

func TestLoadFillsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := os.WriteFile(path, []byte("default_session = \"main\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.RequestTimeout.Duration != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want 30s default", loaded.RequestTimeout.Duration)
	}
	if loaded.ProbeInterval.Duration != 10*time.Second {
		t.Errorf("ProbeInterval = %v, want 10s default", loaded.ProbeInterval.Duration)
	}
	if loaded.PageSize != 30 {
		t.Errorf("PageSize = %d, want 30 default", loaded.PageSize)
	}
}

func TestValidateRequiresBaseURL(t *testing.T) {
	cfg := Default()
	err := cfg.Validate("/home/u/.chatline/config.toml")
	if err == nil {
		t.Fatal("Validate() should reject an empty base_url")
	}
	if !strings.Contains(err.Error(), "base_url") {
		t.Errorf("error %q does not name the field", err)
	}
	if !strings.Contains(err.Error(), "/home/u/.chatline/config.toml") {
		t.Errorf("error %q does not name the config path", err)
	}

	cfg.BaseURL = "http://10.0.0.5:3000/api/v1"
	if err := cfg.Validate("/home/u/.chatline/config.toml"); err != nil {
		t.Errorf("Validate() with base_url set = %v", err)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
