// Package config loads the inkcloud runtime configuration from a YAML file,
// an optional .env file and INKCLOUD_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "INKCLOUD_"

var (
	// ErrInvalid marks a configuration that failed validation.
	ErrInvalid = errors.New("config: invalid")
)

// Config is the application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
	Settings SettingsConfig `yaml:"settings"`
	API      APIConfig      `yaml:"api"`
	Activity ActivityConfig `yaml:"activity"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// StorageConfig selects the persistence backend. DSN is a sqlite file path.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SettingsConfig tunes the settings controllers.
type SettingsConfig struct {
	Debounce     time.Duration `yaml:"debounce"`
	SuccessReset time.Duration `yaml:"success_reset"`
	PollInterval time.Duration `yaml:"poll_interval"`
	RulesEngine  string        `yaml:"rules_engine"`
}

// APIConfig points CLI commands at a running server. An empty BaseURL makes
// them use local storage directly.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type ActivityConfig struct {
	Enabled bool   `yaml:"enabled"`
	Channel string `yaml:"channel"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server:  ServerConfig{Addr: ":8080"},
		Storage: StorageConfig{Driver: "memory"},
		Log:     LogConfig{Level: "info", Format: "json"},
		Settings: SettingsConfig{
			Debounce:     650 * time.Millisecond,
			SuccessReset: 1800 * time.Millisecond,
			PollInterval: 30 * time.Second,
			RulesEngine:  "expr",
		},
		API:      APIConfig{Timeout: 10 * time.Second},
		Activity: ActivityConfig{Enabled: true, Channel: "dashboard"},
	}
}

// Load builds the configuration. path may be empty; a missing file at path
// is an error, a missing envFile is not.
func Load(path, envFile string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	strs := map[string]*string{
		"ADDR":             &c.Server.Addr,
		"STORAGE_DRIVER":   &c.Storage.Driver,
		"STORAGE_DSN":      &c.Storage.DSN,
		"LOG_LEVEL":        &c.Log.Level,
		"LOG_FORMAT":       &c.Log.Format,
		"RULES_ENGINE":     &c.Settings.RulesEngine,
		"API_BASE_URL":     &c.API.BaseURL,
		"ACTIVITY_CHANNEL": &c.Activity.Channel,
	}
	for key, target := range strs {
		if value, ok := lookup(EnvPrefix + key); ok {
			*target = strings.TrimSpace(value)
		}
	}

	durations := map[string]*time.Duration{
		"DEBOUNCE":      &c.Settings.Debounce,
		"SUCCESS_RESET": &c.Settings.SuccessReset,
		"POLL_INTERVAL": &c.Settings.PollInterval,
		"API_TIMEOUT":   &c.API.Timeout,
	}
	for key, target := range durations {
		value, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err)
		}
		*target = parsed
	}

	if value, ok := lookup(EnvPrefix + "ACTIVITY_ENABLED"); ok {
		enabled, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("config: %sACTIVITY_ENABLED: %w", EnvPrefix, err)
		}
		c.Activity.Enabled = enabled
	}
	return nil
}

// Validate rejects unknown drivers, engines and log settings and
// non-positive timings.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case "memory":
	case "sqlite":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			errs = append(errs, fmt.Errorf("%w: storage.dsn is required for sqlite", ErrInvalid))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: storage.driver %q", ErrInvalid, c.Storage.Driver))
	}
	switch c.Settings.RulesEngine {
	case "expr", "cel", "js":
	default:
		errs = append(errs, fmt.Errorf("%w: settings.rules_engine %q", ErrInvalid, c.Settings.RulesEngine))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("%w: log.format %q", ErrInvalid, c.Log.Format))
	}
	for name, d := range map[string]time.Duration{
		"settings.debounce":      c.Settings.Debounce,
		"settings.success_reset": c.Settings.SuccessReset,
		"settings.poll_interval": c.Settings.PollInterval,
		"api.timeout":            c.API.Timeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%w: %s must be positive", ErrInvalid, name))
		}
	}
	return errors.Join(errs...)
}
