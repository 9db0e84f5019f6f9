package config

import (
	"os"
	"path/filepath"
	"testing"
)

// mockEnv creates an environment lookup function from a map.
func mockEnv(env map[string]string) func(string) string {
	return func(key string) string {
		return env[key]
	}
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig() returned nil")
	}

	if len(cfg.Logs) != 4 {
		t.Errorf("DefaultConfig() Logs len = %d, want 4", len(cfg.Logs))
	}
	if _, ok := cfg.LogByKey("doc_updates"); !ok {
		t.Error("DefaultConfig() missing doc_updates log")
	}

	if cfg.Rotation.ThresholdEntries != 200 {
		t.Errorf("DefaultConfig() Rotation.ThresholdEntries = %d, want 200", cfg.Rotation.ThresholdEntries)
	}
	if !cfg.Normalize.IgnoreCodeFences {
		t.Error("DefaultConfig() Normalize.IgnoreCodeFences should be true")
	}
	if cfg.TOC.MarkerStart != "<!-- TOC:start -->" {
		t.Errorf("DefaultConfig() TOC.MarkerStart = %q", cfg.TOC.MarkerStart)
	}
	if !cfg.Writer.Fsync {
		t.Error("DefaultConfig() Writer.Fsync should be true")
	}
	if cfg.Lock.TimeoutSeconds != 30 {
		t.Errorf("DefaultConfig() Lock.TimeoutSeconds = %d, want 30", cfg.Lock.TimeoutSeconds)
	}
}

func TestLoadWithConfigFile(t *testing.T) {
	t.Parallel()
	tmpDir := t.TempDir()
	configDir := filepath.Join(tmpDir, "scribe")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}

	configPath := filepath.Join(configDir, "config.yaml")
	configContent := `
rotation:
  threshold_entries: 500
normalize:
  ignore_code_fences: false
lock:
  timeout_seconds: 10
logs:
  - key: progress
    path_template: "{docs_dir}/progress.md"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	env := mockEnv(map[string]string{
		"XDG_CONFIG_HOME": tmpDir,
	})

	cfg, err := LoadWithEnv(env)
	if err != nil {
		t.Fatalf("LoadWithEnv() error: %v", err)
	}

	if cfg.Rotation.ThresholdEntries != 500 {
		t.Errorf("LoadWithEnv() Rotation.ThresholdEntries = %d, want 500", cfg.Rotation.ThresholdEntries)
	}
	if cfg.Normalize.IgnoreCodeFences {
		t.Error("LoadWithEnv() Normalize.IgnoreCodeFences should be false (overridden)")
	}
	if cfg.Lock.TimeoutSeconds != 10 {
		t.Errorf("LoadWithEnv() Lock.TimeoutSeconds = %d, want 10", cfg.Lock.TimeoutSeconds)
	}
	if len(cfg.Logs) != 1 {
		t.Errorf("LoadWithEnv() Logs len = %d, want 1 (file replaces default slice)", len(cfg.Logs))
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Parallel()
	tmpDir := t.TempDir()
	configDir := filepath.Join(tmpDir, "scribe")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}

	configPath := filepath.Join(configDir, "config.yaml")
	configContent := `rotation:
  threshold_entries: 500`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	env := mockEnv(map[string]string{
		"XDG_CONFIG_HOME":           tmpDir,
		"SCRIBE_ROTATION_THRESHOLD": "999",
	})

	cfg, err := LoadWithEnv(env)
	if err != nil {
		t.Fatalf("LoadWithEnv() error: %v", err)
	}

	if cfg.Rotation.ThresholdEntries != 999 {
		t.Errorf("LoadWithEnv() Rotation.ThresholdEntries = %d, want 999 (env override)", cfg.Rotation.ThresholdEntries)
	}
}

func TestLoadNoConfigFile(t *testing.T) {
	t.Parallel()
	tmpDir := t.TempDir()

	env := mockEnv(map[string]string{
		"XDG_CONFIG_HOME": tmpDir,
	})

	cfg, err := LoadWithEnv(env)
	if err != nil {
		t.Fatalf("LoadWithEnv() error: %v", err)
	}

	if cfg.Rotation.ThresholdEntries != 200 {
		t.Errorf("LoadWithEnv() without file should use default threshold, got %d", cfg.Rotation.ThresholdEntries)
	}
	if len(cfg.Logs) != 4 {
		t.Errorf("LoadWithEnv() without file should use default logs, got %d", len(cfg.Logs))
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	t.Parallel()
	tmpDir := t.TempDir()
	configDir := filepath.Join(tmpDir, "scribe")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}

	configPath := filepath.Join(configDir, "config.yaml")
	invalidContent := `
rotation: [this is invalid yaml
`
	if err := os.WriteFile(configPath, []byte(invalidContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	env := mockEnv(map[string]string{
		"XDG_CONFIG_HOME": tmpDir,
	})

	_, err := LoadWithEnv(env)
	if err == nil {
		t.Error("LoadWithEnv() with invalid YAML should return error")
	}
}

func TestGetConfigPathXDG(t *testing.T) {
	t.Parallel()
	tmpDir := "/custom/config/path"

	env := mockEnv(map[string]string{
		"XDG_CONFIG_HOME": tmpDir,
	})

	path := getConfigPathWithEnv(env)
	expected := filepath.Join(tmpDir, "scribe", "config.yaml")
	if path != expected {
		t.Errorf("getConfigPathWithEnv() = %q, want %q", path, expected)
	}
}

func TestGetConfigPathFallback(t *testing.T) {
	t.Parallel()
	env := mockEnv(map[string]string{})

	path := getConfigPathWithEnv(env)
	home, _ := os.UserHomeDir()
	expected := filepath.Join(home, ".config", "scribe", "config.yaml")
	if path != expected {
		t.Errorf("getConfigPathWithEnv() = %q, want %q", path, expected)
	}
}

func TestLockTimeout(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	if cfg.LockTimeout().Seconds() != 30 {
		t.Errorf("LockTimeout() = %v, want 30s", cfg.LockTimeout())
	}
}
