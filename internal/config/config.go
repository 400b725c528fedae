// Package config loads the softgpu CLI configuration from defaults, a YAML
// config file, SOFTGPU_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. SOFTGPU_LOG_LEVEL.
const EnvPrefix = "SOFTGPU"

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

var (
	validLevels  = []string{"debug", "info", "warn", "error"}
	validFormats = []string{FormatText, FormatJSON}
)

// Config is the CLI configuration.
type Config struct {
	Log    LogConfig    `mapstructure:"log"`
	Engine EngineConfig `mapstructure:"engine"`
	Output OutputConfig `mapstructure:"output"`
}

// LogConfig controls diagnostic logging to stderr.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// EngineConfig selects and sizes the shader engine.
type EngineConfig struct {
	Name      string `mapstructure:"name"`
	CacheSize int    `mapstructure:"cache_size"`
}

// OutputConfig controls how command results are printed.
type OutputConfig struct {
	Format string `mapstructure:"format"`
}

// FlagKeys maps configuration keys to the flag names that override them.
var FlagKeys = map[string]string{
	"log.level":         "log-level",
	"engine.name":       "engine",
	"engine.cache_size": "cache-size",
	"output.format":     "output",
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Log:    LogConfig{Level: "warn"},
		Engine: EngineConfig{Name: "software", CacheSize: 64},
		Output: OutputConfig{Format: FormatText},
	}
}

// Load reads the configuration. cfgFile may be empty, in which case
// $HOME/.softgpu/config.yaml and ./config.yaml are tried and a missing file
// is not an error. flags may be nil; only flags the user set override other
// sources.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	cfg := DefaultConfig()
	setDefaults(v, cfg)

	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".softgpu"))
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %q: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Validate checks that every value is in range.
func (c *Config) Validate() error {
	if !slices.Contains(validLevels, c.Log.Level) {
		return fmt.Errorf("log.level must be one of: %v", validLevels)
	}
	if !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("output.format must be one of: %v", validFormats)
	}
	if c.Engine.Name == "" {
		return errors.New("engine.name must not be empty")
	}
	if c.Engine.CacheSize < 1 {
		return errors.New("engine.cache_size must be at least 1")
	}
	return nil
}

// SlogLevel returns Log.Level as a slog level.
func (c *Config) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelWarn
	}
	return l
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("engine.name", cfg.Engine.Name)
	v.SetDefault("engine.cache_size", cfg.Engine.CacheSize)
	v.SetDefault("output.format", cfg.Output.Format)
}
