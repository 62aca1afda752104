// Package config loads per-project settings: a .env file, then
// typewire.yaml, then TYPEWIRE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileNames are the config file names looked up in the project root, in
// order.
var FileNames = []string{"typewire.yaml", ".typewire.yaml"}

const DefaultCacheSize = 256

// Environment overrides.
const (
	EnvLogLevel    = "TYPEWIRE_LOG_LEVEL"
	EnvDatabase    = "TYPEWIRE_DB"
	EnvSearchPaths = "TYPEWIRE_SEARCH_PATHS"
	EnvCacheSize   = "TYPEWIRE_CACHE_SIZE"
)

type Config struct {
	// SearchPaths are extra module roots. Relative entries are resolved
	// against the project root by Load.
	SearchPaths []string `yaml:"searchPaths"`
	// Exclude holds glob patterns, matched against project-relative
	// slash paths, that file resolution rejects.
	Exclude   []string `yaml:"exclude" validate:"dive,required"`
	CacheSize int      `yaml:"cacheSize" validate:"gte=1"`
	// Database is an optional SQLite path; empty disables persistence.
	Database       string `yaml:"database"`
	LogLevel       string `yaml:"logLevel" validate:"omitempty,oneof=debug info warn warning error DEBUG INFO WARN WARNING ERROR"`
	IncludeDisplay *bool  `yaml:"includeDisplay"`

	// Path is the config file that was read, empty if none.
	Path string `yaml:"-"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{CacheSize: DefaultCacheSize}
}

// DisplayDefault reports the includeDisplay value for requests that omit it.
func (c *Config) DisplayDefault() bool {
	if c.IncludeDisplay == nil {
		return true
	}
	return *c.IncludeDisplay
}

var validate = validator.New()

// Load reads the configuration for projectRoot. Missing files are not an
// error; unreadable or malformed ones are.
func Load(projectRoot string) (*Config, error) {
	projectRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := loadDotEnv(filepath.Join(projectRoot, ".env")); err != nil {
		return nil, err
	}

	cfg := Default()
	for _, name := range FileNames {
		path := filepath.Join(projectRoot, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
		cfg.Path = path
		break
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.resolvePaths(projectRoot)
	return cfg, nil
}

// loadDotEnv sets variables from path without overriding the real
// environment.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("config: loading %s: %w", path, err)
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvDatabase); v != "" {
		c.Database = v
	}
	if v := os.Getenv(EnvSearchPaths); v != "" {
		c.SearchPaths = filepath.SplitList(v)
	}
	if v := os.Getenv(EnvCacheSize); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvCacheSize, err)
		}
		c.CacheSize = n
	}
	return nil
}

func (c *Config) resolvePaths(root string) {
	for i, p := range c.SearchPaths {
		if !filepath.IsAbs(p) {
			c.SearchPaths[i] = filepath.Join(root, p)
		}
	}
	if c.Database != "" && c.Database != ":memory:" && !filepath.IsAbs(c.Database) {
		c.Database = filepath.Join(root, c.Database)
	}
}
