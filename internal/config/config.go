// Package config loads the document lifecycle engine's configuration: the
// log routing table, rotation/normalize/TOC/writer/lock options enumerated
// in the specification. It follows the teacher's pattern of a YAML file
// merged with environment overrides, resolved through an injectable getenv
// function so tests never touch the real environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// LogDefinition describes one append-only log the engine knows how to
// route entries into (§3 Log, §6 `logs`).
type LogDefinition struct {
	Key          string   `yaml:"key"`
	PathTemplate string   `yaml:"path_template"`
	RequiredMeta []string `yaml:"required_metadata"`
	EmojiDefault string   `yaml:"emoji_default"`
}

// RotationConfig holds the advisory rotation threshold (§6).
type RotationConfig struct {
	ThresholdEntries int `yaml:"threshold_entries"`
}

// NormalizeConfig controls header normalization behavior (§6).
type NormalizeConfig struct {
	IgnoreCodeFences bool `yaml:"ignore_code_fences"`
}

// TOCConfig controls the literal TOC marker strings (§6).
type TOCConfig struct {
	MarkerStart string `yaml:"marker_start"`
	MarkerEnd   string `yaml:"marker_end"`
}

// WriterConfig controls the atomic writer's durability behavior (§6).
type WriterConfig struct {
	Fsync bool `yaml:"fsync"`
}

// LockConfig controls the per-resource lock manager's timeout (§6).
type LockConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Config is the full set of enumerated options from §6.
type Config struct {
	Logs      []LogDefinition `yaml:"logs"`
	Rotation  RotationConfig  `yaml:"rotation"`
	Normalize NormalizeConfig `yaml:"normalize"`
	TOC       TOCConfig       `yaml:"toc"`
	Writer    WriterConfig    `yaml:"writer"`
	Lock      LockConfig      `yaml:"lock"`
}

// DefaultConfig returns the baseline configuration described in §6: the
// four default logs, a 200-entry rotation reminder, fence-aware
// normalization, the literal TOC markers, fsync-on, and a 30s lock timeout.
func DefaultConfig() *Config {
	return &Config{
		Logs: []LogDefinition{
			{Key: "progress", PathTemplate: "{docs_dir}/progress.md", EmojiDefault: "📝"},
			{Key: "doc_updates", PathTemplate: "{docs_dir}/doc_updates.md", RequiredMeta: []string{"doc", "section", "action"}, EmojiDefault: "📄"},
			{Key: "security", PathTemplate: "{docs_dir}/security.md", RequiredMeta: []string{"severity"}, EmojiDefault: "🔒"},
			{Key: "bugs", PathTemplate: "{docs_dir}/bugs.md", RequiredMeta: []string{"severity"}, EmojiDefault: "🐛"},
		},
		Rotation: RotationConfig{
			ThresholdEntries: 200,
		},
		Normalize: NormalizeConfig{
			IgnoreCodeFences: true,
		},
		TOC: TOCConfig{
			MarkerStart: "<!-- TOC:start -->",
			MarkerEnd:   "<!-- TOC:end -->",
		},
		Writer: WriterConfig{
			Fsync: true,
		},
		Lock: LockConfig{
			TimeoutSeconds: 30,
		},
	}
}

// LogByKey returns the named log definition, if configured.
func (c *Config) LogByKey(key string) (LogDefinition, bool) {
	for _, l := range c.Logs {
		if l.Key == key {
			return l, true
		}
	}
	return LogDefinition{}, false
}

// LockTimeout returns the configured lock acquisition timeout as a
// time.Duration.
func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.Lock.TimeoutSeconds) * time.Second
}

// Load loads configuration using the real environment.
func Load() (*Config, error) {
	return LoadWithEnv(os.Getenv)
}

// LoadWithEnv loads configuration using the provided environment lookup
// function. This allows tests to provide isolated environment values.
func LoadWithEnv(getenv func(string) string) (*Config, error) {
	cfg := DefaultConfig()

	configPath := getConfigPathWithEnv(getenv)
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if threshold := getenv("SCRIBE_ROTATION_THRESHOLD"); threshold != "" {
		var n int
		if _, err := fmt.Sscanf(threshold, "%d", &n); err == nil {
			cfg.Rotation.ThresholdEntries = n
		}
	}

	return cfg, nil
}

func getConfigPath() string {
	return getConfigPathWithEnv(os.Getenv)
}

func getConfigPathWithEnv(getenv func(string) string) string {
	if xdgConfig := getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "scribe", "config.yaml")
	}

	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "scribe", "config.yaml")
}

// Watcher watches the config file for edits and invokes onChange with the
// freshly reloaded configuration. It is optional: callers who don't need
// hot-reload never construct one. Errors reading the reloaded file are
// delivered to onError instead of onChange so a transient bad write never
// replaces a good in-memory config.
type Watcher struct {
	fsw *fsnotify.Watcher
}

// WatchConfig starts watching the resolved config path (real environment)
// and fires onChange on every write/create event, after a successful
// reload. Call Close to stop watching.
func WatchConfig(onChange func(*Config), onError func(error)) (*Watcher, error) {
	path := getConfigPath()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch config dir: %w", err)
	}

	go func() {
		for {
			select {
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(path) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := Load()
				if err != nil {
					if onError != nil {
						onError(err)
					}
					continue
				}
				if onChange != nil {
					onChange(cfg)
				}
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				if onError != nil {
					onError(err)
				}
			}
		}
	}()

	return &Watcher{fsw: fsw}, nil
}

// Close stops the watcher goroutine.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
