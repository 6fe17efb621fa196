// Package config loads the daemon configuration.
//
// Configuration comes from a single YAML file named by the --config flag or
// the DISCIPLINE_CONFIG environment variable. A missing file means defaults,
// which depend on whether the process runs as root.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/infra"
)

// EnvConfigPath names the environment variable that selects the config file.
const EnvConfigPath = "DISCIPLINE_CONFIG"

// Duration is a time.Duration written as a Go duration string ("5m").
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config is the daemon configuration.
type Config struct {
	// DataDir holds the encrypted store, its key and the instance lock.
	DataDir string `yaml:"data_dir"`

	// SocketPath is the control API Unix socket.
	SocketPath string `yaml:"socket_path"`

	// LogFile receives the daemon log. Empty logs to stderr.
	LogFile string `yaml:"log_file"`

	// Workers is the number of concurrent enforcement task executors.
	Workers int `yaml:"workers"`

	// DefaultCheckInterval applies to accounts managed without an explicit interval.
	DefaultCheckInterval Duration `yaml:"default_check_interval"`

	// HeartbeatInterval controls how often the scheduler logs its queue depth.
	HeartbeatInterval Duration `yaml:"heartbeat_interval"`

	// Debug switches logging to the development encoder at debug level.
	Debug bool `yaml:"debug"`
}

// Default returns the configuration for the given execution mode.
func Default(mode *infra.ExecModeConfig) *Config {
	return &Config{
		DataDir:              mode.DataDir,
		SocketPath:           mode.SocketPath,
		LogFile:              mode.LogFile,
		Workers:              4,
		DefaultCheckInterval: Duration(5 * time.Minute),
		HeartbeatInterval:    Duration(5 * time.Minute),
	}
}

// Path returns the config file to read: flagValue if set, then
// DISCIPLINE_CONFIG, then the mode's default location.
func Path(flagValue string, mode *infra.ExecModeConfig) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env
	}
	return mode.ConfigPath
}

// Load reads path over the defaults for mode and validates the result.
// A missing file is not an error.
func Load(path string, mode *infra.ExecModeConfig) (*Config, error) {
	cfg := Default(mode)

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if c.SocketPath == "" {
		errs = append(errs, errors.New("socket_path is required"))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if d := time.Duration(c.DefaultCheckInterval); d < time.Second || d > 24*time.Hour {
		errs = append(errs, fmt.Errorf("default_check_interval must be between 1s and 24h, got %s", d))
	}
	if time.Duration(c.HeartbeatInterval) < time.Second {
		errs = append(errs, fmt.Errorf("heartbeat_interval must be at least 1s, got %s", time.Duration(c.HeartbeatInterval)))
	}

	return errors.Join(errs...)
}
