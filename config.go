package paper_cmdline

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultHost              = "127.0.0.1"
	DefaultPort              = 3145
	DefaultConnectTimeout    = 5 * time.Second
	DefaultReconnectAttempts = 3
)

type (
	// Config holds the shell settings. Precedence, highest first:
	// command-line flags, PAPER_* environment variables, the config file,
	// then the defaults above.
	Config struct {
		Host              string `toml:"host"`
		Port              int    `toml:"port"`
		ConnectTimeoutMs  int    `toml:"connect_timeout_ms"`
		ReconnectAttempts int    `toml:"reconnect_attempts"`
		Color             *bool  `toml:"color"`
	}
)

func DefaultConfig() *Config {
	color := true
	return &Config{
		Host:              DefaultHost,
		Port:              DefaultPort,
		ConnectTimeoutMs:  int(DefaultConnectTimeout / time.Millisecond),
		ReconnectAttempts: DefaultReconnectAttempts,
		Color:             &color,
	}
}

// ConfigDir resolves $PAPER_CLI_CONFIG_DIR, then
// $XDG_CONFIG_HOME/paper-cli, then ~/.config/paper-cli.
func ConfigDir() string {
	if dir := os.Getenv("PAPER_CLI_CONFIG_DIR"); dir != "" {
		return dir
	}
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "paper-cli")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "paper-cli")
	}
	return filepath.Join(home, ".config", "paper-cli")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// LoadConfig reads the config file at path (ConfigPath() when empty) and
// applies environment overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	defaults := DefaultConfig()
	if cfg.Host == "" {
		cfg.Host = defaults.Host
	}
	if cfg.Port == 0 {
		cfg.Port = defaults.Port
	}
	if cfg.ConnectTimeoutMs <= 0 {
		cfg.ConnectTimeoutMs = defaults.ConnectTimeoutMs
	}
	if cfg.ReconnectAttempts < 0 {
		cfg.ReconnectAttempts = 0
	}
	if cfg.Color == nil {
		cfg.Color = defaults.Color
	}

	if host := os.Getenv("PAPER_HOST"); host != "" {
		cfg.Host = host
	}
	if portStr := os.Getenv("PAPER_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		}
	}
	if os.Getenv("NO_COLOR") != "" {
		color := false
		cfg.Color = &color
	}

	return cfg, nil
}

func (cfg *Config) ConnectTimeout() time.Duration {
	return time.Duration(cfg.ConnectTimeoutMs) * time.Millisecond
}

func (cfg *Config) Addr() string {
	return ServerAddress(cfg.Host, cfg.Port)
}
