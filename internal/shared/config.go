package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	Stripe  StripeConfig  `toml:"stripe"`
}

// SpotifyConfig contains Spotify API credentials for the PKCE public client.
type SpotifyConfig struct {
	ClientID    string   `toml:"client_id"`
	RedirectURI string   `toml:"redirect_uri"`
	Scopes      []string `toml:"scopes"`
}

// StripeConfig contains Stripe checkout credentials.
type StripeConfig struct {
	SecretKey      string `toml:"secret_key"`
	PublishableKey string `toml:"publishable_key"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host               string `toml:"host"`
	Port               int    `toml:"port"`
	BaseURL            string `toml:"base_url"`
	SessionSecret      string `toml:"session_secret"`
	SessionTTLMinutes  int    `toml:"session_ttl_minutes"`
	RateLimitRequests  int    `toml:"rate_limit_requests"`
	RateLimitWindowMin int    `toml:"rate_limit_window_minutes"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// A .env file in the working directory and process environment variables
// override file values (SPOTIFY_CLIENT_ID, SPOTIFY_REDIRECT_URI,
// STRIPE_SECRET_KEY, STRIPE_PUBLISHABLE_KEY, SESSION_SECRET, BASE_URL, PORT).
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyEnv()
	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	config.applyEnv()
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	// Write the embedded example config to the file
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnv overlays .env and process environment values onto the config.
func (c *Config) applyEnv() {
	godotenv.Load()

	overlay := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	overlay(&c.Credentials.Spotify.ClientID, "SPOTIFY_CLIENT_ID")
	overlay(&c.Credentials.Spotify.RedirectURI, "SPOTIFY_REDIRECT_URI")
	overlay(&c.Credentials.Stripe.SecretKey, "STRIPE_SECRET_KEY")
	overlay(&c.Credentials.Stripe.PublishableKey, "STRIPE_PUBLISHABLE_KEY")
	overlay(&c.Server.SessionSecret, "SESSION_SECRET")
	overlay(&c.Server.BaseURL, "BASE_URL")

	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

// Addr returns the host:port listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
