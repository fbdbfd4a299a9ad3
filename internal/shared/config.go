package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Cache       CacheConfig       `toml:"cache"`
	Worker      WorkerConfig      `toml:"worker"`
}

// CredentialsConfig contains per-provider credentials and endpoints.
type CredentialsConfig struct {
	Spotify     SpotifyConfig     `toml:"spotify"`
	MusicBrainz MusicBrainzConfig `toml:"musicbrainz"`
	Deezer      DeezerConfig      `toml:"deezer"`
}

// SpotifyConfig contains Spotify API credentials (client-credentials flow).
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// MusicBrainzConfig identifies this application to MusicBrainz.
// MusicBrainz requires a meaningful User-Agent with contact information.
type MusicBrainzConfig struct {
	AppName    string `toml:"app_name"`
	AppVersion string `toml:"app_version"`
	Contact    string `toml:"contact"`
}

// DeezerConfig contains Deezer API settings (keyless public API).
type DeezerConfig struct {
	BaseURL string `toml:"base_url"`
}

// CacheConfig contains cache backend connection settings.
type CacheConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// WorkerConfig contains worker pool settings.
type WorkerConfig struct {
	Count          int     `toml:"count"`
	MaxRetries     int     `toml:"max_retries"`
	RequestTimeout float64 `toml:"request_timeout_seconds"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, ErrInvalidArgument)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
