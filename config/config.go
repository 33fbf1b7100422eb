// Package config loads runtime configuration from bridge.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/runtime"
	"github.com/wippyai/wasm-bridge/task"
)

// FileNames are the config file names FindConfig looks for, in order.
var FileNames = []string{"bridge.yaml", "bridge.yml"}

// Config represents the top-level bridge.yaml configuration.
type Config struct {
	Log    Log    `yaml:"log"`
	Engine Engine `yaml:"engine"`
	Tasks  Tasks  `yaml:"tasks"`
}

// Engine configures isolates.
type Engine struct {
	// CacheDir persists compiled wasm between runs. Relative paths are
	// resolved against the config file's directory.
	CacheDir string `yaml:"cache_dir,omitempty"`

	// MemoryLimitPages caps isolate linear memory in 64KiB pages.
	MemoryLimitPages uint32 `yaml:"memory_limit_pages,omitempty"`

	// HeapPages is the initial linear memory size. Defaults to 1.
	HeapPages uint32 `yaml:"heap_pages,omitempty"`

	// MaxCallDepth bounds nested native calls. Defaults to 512.
	MaxCallDepth int `yaml:"max_call_depth,omitempty"`
}

// Tasks configures background task scheduling.
type Tasks struct {
	// MaxWorkers bounds concurrent Perform calls per isolate.
	// 0 means unbounded.
	MaxWorkers int `yaml:"max_workers,omitempty"`
}

// Log configures the zap logger.
type Log struct {
	// Level is a zap level name: debug, info, warn, error. Defaults to info.
	Level string `yaml:"level,omitempty"`

	// Format is "console" or "json". Defaults to console.
	Format string `yaml:"format,omitempty"`

	// Output lists zap sink URLs or paths. Defaults to stderr.
	Output []string `yaml:"output,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// Load reads and parses a bridge.yaml file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse parses bridge.yaml content from bytes.
// The path argument is used for error messages and to resolve relative
// paths.
func Parse(data []byte, path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	if cfg.Engine.CacheDir != "" && !filepath.IsAbs(cfg.Engine.CacheDir) && path != "" {
		cfg.Engine.CacheDir = filepath.Join(filepath.Dir(path), cfg.Engine.CacheDir)
	}
	return &cfg, nil
}

// FindConfig searches for a config file starting from dir and walking up
// to parent directories. It returns an empty path and nil error when
// none is found.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		for _, name := range FileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// validate checks the configuration for semantic errors.
func (c *Config) validate(path string) error {
	if c.Engine.MemoryLimitPages > 65536 {
		return fmt.Errorf("%s: engine.memory_limit_pages: %d exceeds 65536", path, c.Engine.MemoryLimitPages)
	}
	if c.Engine.MemoryLimitPages > 0 && c.Engine.HeapPages > c.Engine.MemoryLimitPages {
		return fmt.Errorf("%s: engine.heap_pages (%d) exceeds memory_limit_pages (%d)",
			path, c.Engine.HeapPages, c.Engine.MemoryLimitPages)
	}
	if c.Engine.MaxCallDepth < 0 {
		return fmt.Errorf("%s: engine.max_call_depth must not be negative", path)
	}
	if c.Tasks.MaxWorkers < 0 {
		return fmt.Errorf("%s: tasks.max_workers must not be negative", path)
	}
	if c.Log.Level != "" {
		if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
			return fmt.Errorf("%s: log.level: %w", path, err)
		}
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("%s: log.format must be console or json, got %q", path, c.Log.Format)
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Engine.HeapPages == 0 {
		c.Engine.HeapPages = 1
	}
	if c.Engine.MaxCallDepth == 0 {
		c.Engine.MaxCallDepth = 512
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if len(c.Log.Output) == 0 {
		c.Log.Output = []string{"stderr"}
	}
}

// RuntimeOptions maps the configuration to runtime options.
func (c *Config) RuntimeOptions() *runtime.Options {
	return &runtime.Options{
		Engine: engine.Config{
			CacheDir:         c.Engine.CacheDir,
			MemoryLimitPages: c.Engine.MemoryLimitPages,
			HeapPages:        c.Engine.HeapPages,
			MaxCallDepth:     c.Engine.MaxCallDepth,
		},
		Tasks: task.Options{MaxWorkers: c.Tasks.MaxWorkers},
	}
}

// Logger builds the configured zap logger.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.Log.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Encoding = c.Log.Format
	zc.OutputPaths = c.Log.Output
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}
