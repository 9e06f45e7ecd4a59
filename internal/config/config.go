package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Gateway drivers.
const (
	DriverREST     = "rest"
	DriverPostgres = "postgres"
)

// Config is galley's runtime configuration.
type Config struct {
	Gateway GatewayConfig
	Sync    SyncConfig
	Storage StorageConfig
	Log     LogConfig
	Webhook WebhookConfig
}

// GatewayConfig selects and configures the remote order gateway.
type GatewayConfig struct {
	Driver         string
	URL            string
	APIKey         string
	Table          string
	DSN            string
	RequestTimeout time.Duration // zero means no timeout
}

// SyncConfig controls polling.
type SyncConfig struct {
	PollInterval time.Duration
}

// StorageConfig locates the local database.
type StorageConfig struct {
	Path string
}

// LogConfig locates the log file and sets its level.
type LogConfig struct {
	Path  string
	Level string
}

// WebhookConfig is shown on the admin screen for integrators.
type WebhookConfig struct {
	URL string
}

const (
	defaultConfigPath   = "~/.config/galley/config.toml"
	defaultStoragePath  = "~/.local/share/galley/galley.db"
	defaultLogPath      = "~/.local/state/galley/galley.log"
	defaultLogLevel     = "info"
	defaultTable        = "kitchen_orders"
	defaultPollInterval = 5 * time.Second
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Gateway: GatewayConfig{Driver: DriverREST, Table: defaultTable},
		Sync:    SyncConfig{PollInterval: defaultPollInterval},
		Storage: StorageConfig{Path: mustExpand(defaultStoragePath)},
		Log:     LogConfig{Path: mustExpand(defaultLogPath), Level: defaultLogLevel},
	}
}

type rawConfig struct {
	Gateway struct {
		Driver         string `toml:"driver"`
		URL            string `toml:"url"`
		APIKey         string `toml:"api_key"`
		Table          string `toml:"table"`
		DSN            string `toml:"dsn"`
		RequestTimeout string `toml:"request_timeout"`
	} `toml:"gateway"`
	Sync struct {
		PollInterval string `toml:"poll_interval"`
	} `toml:"sync"`
	Storage struct {
		Path string `toml:"path"`
	} `toml:"storage"`
	Log struct {
		Path  string `toml:"path"`
		Level string `toml:"level"`
	} `toml:"log"`
	Webhook struct {
		URL string `toml:"url"`
	} `toml:"webhook"`
}

// Load locates and parses the galley config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.ToLower(strings.TrimSpace(raw.Gateway.Driver)); v != "" {
		cfg.Gateway.Driver = v
	}
	cfg.Gateway.URL = strings.TrimSpace(raw.Gateway.URL)
	cfg.Gateway.APIKey = strings.TrimSpace(raw.Gateway.APIKey)
	if v := strings.TrimSpace(raw.Gateway.Table); v != "" {
		cfg.Gateway.Table = v
	}
	cfg.Gateway.DSN = strings.TrimSpace(raw.Gateway.DSN)
	if cfg.Gateway.RequestTimeout, err = parseDuration("gateway.request_timeout", raw.Gateway.RequestTimeout, 0); err != nil {
		return Config{}, err
	}
	if cfg.Sync.PollInterval, err = parseDuration("sync.poll_interval", raw.Sync.PollInterval, defaultPollInterval); err != nil {
		return Config{}, err
	}
	if cfg.Sync.PollInterval == 0 {
		cfg.Sync.PollInterval = defaultPollInterval
	}
	if v := strings.TrimSpace(raw.Storage.Path); v != "" {
		cfg.Storage.Path = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.Log.Path); v != "" {
		cfg.Log.Path = mustExpand(v)
	}
	if v := strings.ToLower(strings.TrimSpace(raw.Log.Level)); v != "" {
		cfg.Log.Level = v
	}
	cfg.Webhook.URL = strings.TrimSpace(raw.Webhook.URL)

	return cfg, nil
}

// Validate reports configuration that cannot start a gateway.
func (c Config) Validate() error {
	switch c.Gateway.Driver {
	case DriverREST:
		if c.Gateway.URL == "" {
			return fmt.Errorf("gateway.url is required for the %s driver", DriverREST)
		}
	case DriverPostgres:
		if c.Gateway.DSN == "" {
			return fmt.Errorf("gateway.dsn is required for the %s driver", DriverPostgres)
		}
	default:
		return fmt.Errorf("unknown gateway driver %q (want %s or %s)", c.Gateway.Driver, DriverREST, DriverPostgres)
	}
	return nil
}

// DefaultPath returns the config path used when none is given.
func DefaultPath() string {
	return mustExpand(defaultConfigPath)
}

func parseDuration(field, value string, fallback time.Duration) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse config: %s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("parse config: %s must not be negative", field)
	}
	return d, nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
