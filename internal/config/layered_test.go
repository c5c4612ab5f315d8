package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type nested struct {
	Port    int           `yaml:"port" env:"TESTCFG_PORT"`
	Timeout time.Duration `yaml:"timeout" env:"TESTCFG_TIMEOUT"`
}

type testConfig struct {
	Name    string   `yaml:"name" env:"TESTCFG_NAME"`
	Enabled bool     `yaml:"enabled" env:"TESTCFG_ENABLED"`
	Tags    []string `yaml:"tags" env:"TESTCFG_TAGS"`
	Server  nested   `yaml:"server"`
}

func defaults() *testConfig {
	return &testConfig{
		Name:    "default",
		Enabled: true,
		Server:  nested{Port: 8443, Timeout: 10 * time.Second},
	}
}

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg := defaults()
	if err := Load(cfg, ""); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Name != "default" || cfg.Server.Port != 8443 {
		t.Errorf("defaults not preserved: %+v", cfg)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	content := "name: from-file\nserver:\n  port: 9443\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := defaults()
	if err := Load(cfg, path); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Name != "from-file" {
		t.Errorf("Name = %q, want %q", cfg.Name, "from-file")
	}
	if cfg.Server.Port != 9443 {
		t.Errorf("Server.Port = %d, want 9443", cfg.Server.Port)
	}
	// Untouched fields keep defaults.
	if cfg.Server.Timeout != 10*time.Second {
		t.Errorf("Server.Timeout = %v, want 10s", cfg.Server.Timeout)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(path, []byte("name: from-file\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("TESTCFG_NAME", "from-env")
	t.Setenv("TESTCFG_PORT", "1234")
	t.Setenv("TESTCFG_TAGS", "a, b,c")

	cfg := defaults()
	if err := Load(cfg, path); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Name != "from-env" {
		t.Errorf("Name = %q, want %q", cfg.Name, "from-env")
	}
	if cfg.Server.Port != 1234 {
		t.Errorf("Server.Port = %d, want 1234", cfg.Server.Port)
	}
	if len(cfg.Tags) != 3 || cfg.Tags[1] != "b" {
		t.Errorf("Tags = %v, want [a b c]", cfg.Tags)
	}
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	cfg := defaults()
	if err := Load(cfg, "/does/not/exist.yaml"); err != nil {
		t.Fatalf("Load() with missing file failed: %v", err)
	}
}

func TestLoad_MalformedFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(path, []byte("{not yaml"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if err := Load(defaults(), path); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestLoadFromEnv_InvalidValues(t *testing.T) {
	t.Setenv("TESTCFG_ENABLED", "not-a-bool")
	if err := LoadFromEnv(defaults()); err == nil {
		t.Error("expected error for invalid boolean")
	}

	os.Unsetenv("TESTCFG_ENABLED")
	t.Setenv("TESTCFG_TIMEOUT", "not-a-duration")
	if err := LoadFromEnv(defaults()); err == nil {
		t.Error("expected error for invalid duration")
	}
}
