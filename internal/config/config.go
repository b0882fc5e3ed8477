// Package config loads codenode workspace configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"

	"github.com/Benny93/codenode/internal/graph"
)

// FileName is the workspace configuration file looked up at the root.
const FileName = ".codenode.yaml"

// GraphConfig toggles which edge kinds and derived nodes are visible.
type GraphConfig struct {
	Imports      bool `yaml:"imports"`
	Declarations bool `yaml:"declarations"`
	Wikilinks    bool `yaml:"wikilinks"`
	Links        bool `yaml:"links"`
	URLs         bool `yaml:"urls"`
}

// Config holds build settings for a workspace.
type Config struct {
	Workers          int           `yaml:"workers" validate:"gte=0,lte=1024"`
	MaxFileSize      int64         `yaml:"max_file_size" validate:"gte=0"`
	ReadTimeout      time.Duration `yaml:"read_timeout" validate:"gte=0"`
	Exclude          []string      `yaml:"exclude" validate:"dive,required"`
	RespectGitignore bool          `yaml:"respect_gitignore"`
	CacheSize        int           `yaml:"cache_size" validate:"gte=0"`
	CacheDir         string        `yaml:"cache_dir"`
	LogLevel         string        `yaml:"log_level" validate:"oneof=debug info warn error"`
	Graph            GraphConfig   `yaml:"graph"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Workers:          0,
		MaxFileSize:      10 << 20,
		ReadTimeout:      5 * time.Second,
		RespectGitignore: true,
		CacheSize:        4096,
		LogLevel:         "info",
		Graph: GraphConfig{
			Imports:      true,
			Declarations: true,
			Wikilinks:    true,
			Links:        true,
			URLs:         true,
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path
// returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadWorkspace loads root/.codenode.yaml if it exists, otherwise the
// defaults.
func LoadWorkspace(root string) (*Config, error) {
	path := filepath.Join(root, FileName)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("checking config: %w", err)
	}
	return Load(path)
}

var validate = validator.New()

// Validate checks field constraints and that every exclude pattern
// compiles.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	for _, pattern := range c.Exclude {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			return fmt.Errorf("exclude pattern %q: %w", pattern, err)
		}
	}
	return nil
}

// WorkerCount resolves the configured worker count, where 0 means one
// worker per CPU.
func (c *Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

// Filter converts the graph toggles into filter options.
func (c *Config) Filter() graph.FilterOptions {
	return graph.FilterOptions{
		Imports:      c.Graph.Imports,
		Declarations: c.Graph.Declarations,
		Wikilinks:    c.Graph.Wikilinks,
		Links:        c.Graph.Links,
		URLs:         c.Graph.URLs,
	}
}
