package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Default values for Config.
const (
	DefaultServerURL            = "http://localhost:8642"
	DefaultBaseDelayMS          = 1000
	DefaultMaxReconnectAttempts = 5
	DefaultIdleTimeoutMS        = 90000
	DefaultLogLevel             = "warn"
)

// Environment variables that override the config file.
const (
	EnvServerURL = "SYNDE_SERVER_URL"
	EnvAuthToken = "SYNDE_AUTH_TOKEN"
)

// DefaultStream returns stream settings with sensible default values.
func DefaultStream() Stream {
	return Stream{
		BaseDelayMS:          DefaultBaseDelayMS,
		MaxReconnectAttempts: DefaultMaxReconnectAttempts,
		IdleTimeoutMS:        DefaultIdleTimeoutMS,
	}
}

// DefaultNotify returns notification settings with sensible default values.
func DefaultNotify() Notify {
	return Notify{
		Bell:          true,
		Desktop:       false,
		WebhookFormat: WebhookFormatGeneric,
	}
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Server:   Server{URL: DefaultServerURL},
		Stream:   DefaultStream(),
		Notify:   DefaultNotify(),
		LogLevel: DefaultLogLevel,
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// DefaultPath returns the default config file location (~/.synde/config.yaml).
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".synde", "config.yaml"), nil
}

// Load reads and parses the config file at the given path. An empty path
// means the default location. A missing file yields the default config.
// Environment overrides are applied after the file, defaults fill any
// missing fields, and the result is validated.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnv overrides file values from the environment.
func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvServerURL); v != "" {
		cfg.Server.URL = v
	}
	if v := os.Getenv(EnvAuthToken); v != "" {
		cfg.Server.AuthToken = v
	}
}

// applyDefaults fills fields an explicit config file left zero.
func applyDefaults(cfg *Config) {
	if cfg.Server.URL == "" {
		cfg.Server.URL = DefaultServerURL
	}
	if cfg.Stream.BaseDelayMS == 0 {
		cfg.Stream.BaseDelayMS = DefaultBaseDelayMS
	}
	if cfg.Stream.MaxReconnectAttempts == 0 {
		cfg.Stream.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.Notify.WebhookFormat == "" {
		cfg.Notify.WebhookFormat = WebhookFormatGeneric
	}
}

// Validate checks that all config values are valid.
func Validate(cfg *Config) error {
	u, err := url.Parse(cfg.Server.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ValidationError{Field: "server.url", Message: "must be an absolute http(s) URL"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ValidationError{Field: "server.url", Message: "scheme must be http or https"}
	}
	if cfg.Stream.BaseDelayMS <= 0 {
		return ValidationError{Field: "stream.base_delay_ms", Message: "must be positive"}
	}
	if cfg.Stream.MaxReconnectAttempts <= 0 {
		return ValidationError{Field: "stream.max_reconnect_attempts", Message: "must be positive"}
	}
	if cfg.Stream.IdleTimeoutMS < 0 {
		return ValidationError{Field: "stream.idle_timeout_ms", Message: "must not be negative"}
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return ValidationError{Field: "log_level", Message: "must be one of debug, info, warn, error"}
	}
	switch cfg.Notify.WebhookFormat {
	case WebhookFormatGeneric, WebhookFormatSlack:
	default:
		return ValidationError{Field: "notify.webhook_format", Message: "must be generic or slack"}
	}
	if cfg.Notify.WebhookURL != "" {
		wu, err := url.Parse(cfg.Notify.WebhookURL)
		if err != nil || wu.Scheme == "" || wu.Host == "" {
			return ValidationError{Field: "notify.webhook_url", Message: "must be an absolute http(s) URL"}
		}
	}
	return nil
}

// StateDirPath resolves the directory session state is recorded in.
func (c *Config) StateDirPath() (string, error) {
	if c.StateDir != "" {
		return c.StateDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".synde"), nil
}

// IsValidationError checks if an error is a ValidationError.
func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}
