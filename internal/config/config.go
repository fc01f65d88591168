// Package config loads the litws configuration file.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"

	"github.com/litwallet/litclient.go/pkg/constants"
)

//go:embed sample_config.toml
var sampleConfig string

// Environment variables that override the file.
const (
	EnvHost = "LITWS_HOST"
	EnvPort = "LITWS_PORT"
)

// Config is the parsed litws configuration.
type Config struct {
	Daemon  Daemon  `toml:"daemon"`
	Client  Client  `toml:"client"`
	Logging Logging `toml:"logging"`
}

type Daemon struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
	Path string `toml:"path"`
	TLS  bool   `toml:"tls"`
}

type Client struct {
	Timeout   string  `toml:"timeout"`
	RateLimit float64 `toml:"rate_limit"`
	Burst     int     `toml:"burst"`

	// Compression offers permessage-deflate during the handshake.
	Compression bool `toml:"compression"`

	timeout time.Duration
}

type Logging struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Daemon: Daemon{
			Host: constants.DefaultHost,
			Port: constants.DefaultPort,
			Path: constants.DefaultPath,
		},
		Client: Client{
			Timeout:     constants.DefaultTimeout.String(),
			Burst:       1,
			Compression: true,
			timeout:     constants.DefaultTimeout,
		},
		Logging: Logging{
			Level: "warn",
		},
	}
}

// SampleConfig returns a commented configuration file with the defaults.
func SampleConfig() string {
	return sampleConfig
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/litws/config.toml")
}

// Load reads the configuration at path, or the default location when path
// is empty. A missing file is not an error; the defaults apply. It also
// returns the resolved path and whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value
}

func (c *Config) applyEnv() error {
	c.Daemon.Host = getEnvOrDefault(EnvHost, c.Daemon.Host)

	if port := os.Getenv(EnvPort); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPort, err)
		}
		c.Daemon.Port = p
	}

	return nil
}

func (c *Config) normalize() error {
	c.Daemon.Host = strings.TrimSpace(c.Daemon.Host)
	if c.Daemon.Path == "" {
		c.Daemon.Path = constants.DefaultPath
	} else if !strings.HasPrefix(c.Daemon.Path, "/") {
		c.Daemon.Path = "/" + c.Daemon.Path
	}

	timeout := strings.TrimSpace(c.Client.Timeout)
	if timeout == "" {
		c.Client.timeout = constants.DefaultTimeout
	} else {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("client.timeout: %w", err)
		}
		c.Client.timeout = d
	}

	if c.Client.Burst <= 0 {
		c.Client.Burst = 1
	}

	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.File != "" {
		file, err := expandPath(c.Logging.File)
		if err != nil {
			return err
		}
		c.Logging.File = file
	}

	return nil
}

// Validate ensures the configuration values are usable.
func (c *Config) Validate() error {
	if c.Daemon.Host == "" {
		return errors.New("daemon.host must be set")
	}
	if c.Daemon.Port <= 0 || c.Daemon.Port > 65535 {
		return fmt.Errorf("daemon.port must be between 1 and 65535, got %d", c.Daemon.Port)
	}
	if c.Client.timeout < 0 {
		return fmt.Errorf("client.timeout must not be negative, got %s", c.Client.timeout)
	}
	if c.Client.RateLimit < 0 {
		return fmt.Errorf("client.rate_limit must not be negative, got %g", c.Client.RateLimit)
	}
	if _, err := c.Logging.ZerologLevel(); err != nil {
		return err
	}
	return nil
}

// PortNumber is the daemon port as a uint16. Validate keeps it in range.
func (d Daemon) PortNumber() uint16 {
	return uint16(d.Port)
}

// TimeoutDuration is the parsed client.timeout.
func (c Client) TimeoutDuration() time.Duration {
	return c.timeout
}

// SetTimeout overrides client.timeout, e.g. from a command line flag.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
	c.Timeout = d.String()
}

// ZerologLevel parses logging.level. Empty means warn.
func (l Logging) ZerologLevel() (zerolog.Level, error) {
	if l.Level == "" {
		return zerolog.WarnLevel, nil
	}
	level, err := zerolog.ParseLevel(l.Level)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", false, err
		}
		path = defaultPath
	}

	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path %s is a directory", expanded)
	}
	return expanded, true, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && pathValue[1] == '/' {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}
