package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultServerURL is used when config.toml names no server.
const DefaultServerURL = "ws://localhost:5000/chat"

// Config represents the global ~/.clinicchat/config.toml.
type Config struct {
	ServerURL string    `toml:"server_url"`
	LogLevel  string    `toml:"log_level"`
	Identity  Identity  `toml:"identity"`
	Reconnect Reconnect `toml:"reconnect"`
}

// Identity is the default local user.
type Identity struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`
	Role string `toml:"role"`
}

// Reconnect bounds the transport's retry backoff.
type Reconnect struct {
	Min Duration `toml:"min"`
	Max Duration `toml:"max"`
}

// Duration is a time.Duration written as a Go duration string ("500ms").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		ServerURL: DefaultServerURL,
		LogLevel:  "info",
		Reconnect: Reconnect{
			Min: Duration{500 * time.Millisecond},
			Max: Duration{30 * time.Second},
		},
	}
}

// Load reads config from the given path over the defaults. Returns error if file missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, falling back to Default when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
