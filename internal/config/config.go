// Package config loads dagrun configuration through viper.
//
// Settings come from a YAML config file, DAGRUN_* environment variables,
// and built-in defaults, in that order of precedence. The executor never
// reads global process state; cmd materializes a Config and passes the
// relevant pieces down explicitly.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete dagrun configuration
type Config struct {
	Executor ExecutorConfig `mapstructure:"executor"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Paths    PathsConfig    `mapstructure:"paths"`
}

// ExecutorConfig controls the scheduling loop and per-task retry
type ExecutorConfig struct {
	// MaxConcurrent is the maximum number of tasks running at once.
	// 0 means the available processor count.
	MaxConcurrent int `mapstructure:"max_concurrent"`
	// MaxAttempts bounds the per-task retry loop. 0 means unbounded.
	MaxAttempts int `mapstructure:"max_attempts"`
	// RetryBackoffMs is the pause between a phase failure and its retry.
	RetryBackoffMs int `mapstructure:"retry_backoff_ms"`
	// PollIntervalMs is the control loop's sleep between scheduling passes.
	PollIntervalMs int `mapstructure:"poll_interval_ms"`
	// StallThreshold is how many consecutive idle polls trigger the
	// deadlock resolver.
	StallThreshold int `mapstructure:"stall_threshold"`
	// MaxDeadlockRetries bounds resolver attempts before the run aborts.
	MaxDeadlockRetries int `mapstructure:"max_deadlock_retries"`
	// Phases is the phase allow-list. Empty means all phases.
	// Options: "plan", "implement", "review", "sweep"
	Phases []string `mapstructure:"phases"`
}

// RetryBackoff returns the backoff as a duration
func (c *ExecutorConfig) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMs) * time.Millisecond
}

// PollInterval returns the poll interval as a duration
func (c *ExecutorConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// LoggingConfig controls structured logging
type LoggingConfig struct {
	// Enabled controls whether a log file is written at all
	Enabled bool `mapstructure:"enabled"`
	// Level is the minimum level logged: debug, info, warn, error
	Level string `mapstructure:"level"`
}

// PathsConfig controls filesystem locations
type PathsConfig struct {
	// WorkDir is the root holding per-task work directories and run logs.
	// Relative paths resolve against the current directory.
	WorkDir string `mapstructure:"work_dir"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Executor: ExecutorConfig{
			MaxConcurrent:      max(runtime.NumCPU(), 1),
			MaxAttempts:        3,
			RetryBackoffMs:     2000,
			PollIntervalMs:     500,
			StallThreshold:     5,
			MaxDeadlockRetries: 3,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
		},
		Paths: PathsConfig{
			WorkDir: ".dagrun",
		},
	}
}

// SetDefaults registers all defaults with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("executor.max_concurrent", defaults.Executor.MaxConcurrent)
	viper.SetDefault("executor.max_attempts", defaults.Executor.MaxAttempts)
	viper.SetDefault("executor.retry_backoff_ms", defaults.Executor.RetryBackoffMs)
	viper.SetDefault("executor.poll_interval_ms", defaults.Executor.PollIntervalMs)
	viper.SetDefault("executor.stall_threshold", defaults.Executor.StallThreshold)
	viper.SetDefault("executor.max_deadlock_retries", defaults.Executor.MaxDeadlockRetries)
	viper.SetDefault("executor.phases", defaults.Executor.Phases)

	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)

	viper.SetDefault("paths.work_dir", defaults.Paths.WorkDir)
}

// Init wires viper to the config file and environment.
// Missing config files are fine; defaults apply.
func Init() error {
	SetDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(ConfigDir())
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("DAGRUN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "dagrun")
	}
	// Fall back to ~/.config/dagrun
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dagrun"
	}
	return filepath.Join(home, ".config", "dagrun")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
