package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// MaxConfigFileBytes bounds the size of a config file read by Load.
const MaxConfigFileBytes = 1 << 20

// EnvPrefix is prepended to every environment override, e.g. FIELDTOOLS_STORE_KIND.
const EnvPrefix = "FIELDTOOLS_"

// StoreConfig selects where cameras and the selection are persisted.
type StoreConfig struct {
	Kind string `yaml:"kind" env:"STORE_KIND"` // "memory", "file" or "sqlite"
	Path string `yaml:"path" env:"STORE_PATH"` // file or database path; empty = user config dir
}

// LogConfig configures the zerolog logger.
type LogConfig struct {
	Level  int    `yaml:"level" env:"LOG_LEVEL"`   // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	Format string `yaml:"format" env:"LOG_FORMAT"` // "console" or "json"
}

// WebConfig configures the HTTP API.
type WebConfig struct {
	Port int `yaml:"port" env:"WEB_PORT"`
}

// DefaultsConfig contains the values used when a command omits them.
type DefaultsConfig struct {
	SeedPresets   bool    `yaml:"seed_presets" env:"SEED_PRESETS"`       // fill an empty store with the CoC presets
	FocalLengthMm float64 `yaml:"focal_length_mm" env:"FOCAL_LENGTH_MM"` // default lens for dof
	Aperture      float64 `yaml:"aperture" env:"APERTURE"`               // default f-number for dof
	DistanceM     float64 `yaml:"distance_m" env:"DISTANCE_M"`           // default subject distance for dof
}

// Config aggregates all application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Log      LogConfig      `yaml:"log"`
	Web      WebConfig      `yaml:"web"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Store:    StoreConfig{Kind: "file"},
		Log:      LogConfig{Level: 1, Format: "console"},
		Web:      WebConfig{Port: 8080},
		Defaults: DefaultsConfig{SeedPresets: true, FocalLengthMm: 50, Aperture: 8, DistanceM: 3},
	}
}

// Load reads a YAML file over the defaults, applies environment overrides
// and validates the result.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if info.Size() > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), MaxConfigFileBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	return finish(cfg)
}

// LoadOrDefault behaves like Load but falls back to Default (plus
// environment overrides) when path does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return finish(Default())
	}
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return finish(Default())
	}
	return cfg, err
}

func finish(cfg *Config) (*Config, error) {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and fills the defaults that depend on other fields.
func (c *Config) Validate() error {
	switch c.Store.Kind {
	case "memory", "file", "sqlite":
	case "":
		c.Store.Kind = "file"
	default:
		return fmt.Errorf("store.kind must be memory, file or sqlite, got %q", c.Store.Kind)
	}
	if c.Log.Level < 0 || c.Log.Level > 4 {
		return fmt.Errorf("log.level must be between 0 and 4, got %d", c.Log.Level)
	}
	switch c.Log.Format {
	case "console", "json":
	case "":
		c.Log.Format = "console"
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}
	if c.Web.Port <= 0 || c.Web.Port > 65535 {
		return fmt.Errorf("web.port must be 1-65535, got %d", c.Web.Port)
	}
	if err := positive("defaults.focal_length_mm", c.Defaults.FocalLengthMm); err != nil {
		return err
	}
	if err := positive("defaults.aperture", c.Defaults.Aperture); err != nil {
		return err
	}
	if err := positive("defaults.distance_m", c.Defaults.DistanceM); err != nil {
		return err
	}
	return nil
}

func positive(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return fmt.Errorf("%s must be > 0, got %g", name, v)
	}
	return nil
}

// StorePath returns the configured store path, or a file under the user
// config directory when none is set.
func (c *Config) StorePath() (string, error) {
	if c.Store.Path != "" {
		return c.Store.Path, nil
	}
	if c.Store.Kind == "memory" {
		return "", nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate user config dir: %w", err)
	}
	name := "settings.yaml"
	if c.Store.Kind == "sqlite" {
		name = "settings.sqlite"
	}
	return filepath.Join(dir, "fieldtools", name), nil
}

// Addr returns the listen address of the HTTP API.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Web.Port)
}
