// Package config loads and persists CLI configuration.
//
// Precedence for effective values is flags > environment > config file >
// built-in defaults, mirroring how the hosted client libraries resolve their
// settings. A .env file in the working directory is loaded into the process
// environment first, so it participates at the environment level.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Built-in defaults for the Anaconda.cloud API and identity service.
const (
	DefaultDomain      = "anaconda.cloud"
	DefaultClientID    = "b4ad7f1d-c784-46b5-a9fe-106e50441f5a"
	DefaultRedirectURI = "http://127.0.0.1:8000/auth/oidc"
)

// Environment variable names recognized by Load.
const (
	EnvAPIDomain       = "ANACONDA_CLOUD_API_DOMAIN"
	EnvAPIKey          = "ANACONDA_CLOUD_API_KEY"
	EnvAPISSLVerify    = "ANACONDA_CLOUD_API_SSL_VERIFY"
	EnvAPIExtraHeaders = "ANACONDA_CLOUD_API_EXTRA_HEADERS"
	EnvAAUToken        = "ANACONDA_CLOUD_API_AAU_TOKEN"
	EnvAuthDomain      = "ANACONDA_CLOUD_AUTH_DOMAIN"
	EnvAuthClientID    = "ANACONDA_CLOUD_AUTH_CLIENT_ID"
	EnvAuthRedirectURI = "ANACONDA_CLOUD_AUTH_REDIRECT_URI"
)

// Config represents the CLI configuration
type Config struct {
	// API domain, e.g. anaconda.cloud
	Domain string `yaml:"domain,omitempty"`

	// API key. Normally credentials live in the keyring; this exists for
	// environments where a keyring is unavailable.
	APIKey string `yaml:"api_key,omitempty"`

	// TLS verification toggle. Unset means true.
	SSLVerify *bool `yaml:"ssl_verify,omitempty"`

	// Extra headers added to every API request (never overriding ones the
	// client already sets).
	ExtraHeaders map[string]string `yaml:"extra_headers,omitempty"`

	// Anaconda analytics client token, sent as X-AAU-CLIENT when present.
	AAUToken string `yaml:"aau_token,omitempty"`

	// Identity service domain. Unset means id.{domain}.
	AuthDomain string `yaml:"auth_domain,omitempty"`

	// OAuth client ID registered with the identity service.
	ClientID string `yaml:"client_id,omitempty"`

	// Redirect URI registered for the OAuth client. The login flow binds a
	// loopback listener to this host:port.
	RedirectURI string `yaml:"redirect_uri,omitempty"`

	// "What's new" feed endpoint. Unset means https://{domain}/api/whats-new.
	UpdatesURL string `yaml:"updates_url,omitempty"`

	// WhatsNew carries local state for the updates feed.
	WhatsNew WhatsNewState `yaml:"whats_new,omitempty"`

	// Default output format (text, json, table, yaml)
	Output string `yaml:"output,omitempty"`

	// Default color mode (auto, always, never)
	Color string `yaml:"color,omitempty"`
}

// WhatsNewState is the locally persisted state of the updates feed.
type WhatsNewState struct {
	// Hide suppresses the feed on startup-style invocations.
	Hide bool `yaml:"hide,omitempty"`

	// Seen holds IDs of updates the user has already been shown.
	Seen []string `yaml:"seen,omitempty"`

	// Server-managed state echoed back on every fetch.
	CloudLoginPopupState int   `yaml:"cloud_login_popup_state,omitempty"`
	CloudLoginPopupTS    int64 `yaml:"cloud_login_popup_ts,omitempty"`
}

// configPathFunc is the function used to get the default config path
// It can be overridden for testing
var configPathFunc = defaultConfigPath

// SetConfigPathFunc sets the config path function for testing.
// Returns the original function so it can be restored.
func SetConfigPathFunc(fn func() (string, error)) func() (string, error) {
	orig := configPathFunc
	configPathFunc = fn
	return orig
}

// defaultConfigPath returns ~/.config/anaconda-cli/config.yaml
func defaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "anaconda-cli", "config.yaml"), nil
}

// DefaultConfigPath returns ~/.config/anaconda-cli/config.yaml
func DefaultConfigPath() (string, error) {
	return configPathFunc()
}

// Load loads config from the default path and applies environment
// overrides. A .env file in the working directory is honored. Returns a
// default config if no file exists.
func Load() (*Config, error) {
	// Missing .env is the normal case.
	_ = godotenv.Load()

	path, err := DefaultConfigPath()
	if err != nil {
		cfg := &Config{}
		return cfg, cfg.applyEnv()
	}
	return LoadFromPath(path)
}

// LoadFile reads the config file without applying environment
// overrides. Mutation flows load through it so session-only environment
// values are never written back to disk on save.
func LoadFile() (*Config, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid config file: %w", err)
		}
	}
	return cfg, nil
}

// LoadFromPath loads config from a specific path and applies environment
// overrides.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides file values with environment variables.
func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvAPIDomain); v != "" {
		c.Domain = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv(EnvAPISSLVerify); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", EnvAPISSLVerify, v, err)
		}
		c.SSLVerify = &b
	}
	if v := os.Getenv(EnvAAUToken); v != "" {
		c.AAUToken = v
	}
	if v := os.Getenv(EnvAuthDomain); v != "" {
		c.AuthDomain = v
	}
	if v := os.Getenv(EnvAuthClientID); v != "" {
		c.ClientID = v
	}
	if v := os.Getenv(EnvAuthRedirectURI); v != "" {
		c.RedirectURI = v
	}
	if v := os.Getenv(EnvAPIExtraHeaders); v != "" {
		headers, err := ParseExtraHeaders(v)
		if err != nil {
			return err
		}
		c.ExtraHeaders = headers
	}
	return nil
}

// ParseExtraHeaders parses the JSON-object form of extra headers used by the
// ANACONDA_CLOUD_API_EXTRA_HEADERS environment variable.
func ParseExtraHeaders(raw string) (map[string]string, error) {
	var headers map[string]string
	if err := json.Unmarshal([]byte(raw), &headers); err != nil {
		return nil, fmt.Errorf("%q is not valid JSON: %w", raw, err)
	}
	return headers, nil
}

// Save saves config to the default path
func (c *Config) Save() error {
	path, err := DefaultConfigPath()
	if err != nil {
		return err
	}
	return c.SaveToPath(path)
}

// SaveToPath saves config to a specific path
func (c *Config) SaveToPath(path string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// GetDomain returns the effective API domain.
func (c *Config) GetDomain() string {
	if c.Domain != "" {
		return c.Domain
	}
	return DefaultDomain
}

// GetAuthDomain returns the effective identity service domain.
func (c *Config) GetAuthDomain() string {
	if c.AuthDomain != "" {
		return c.AuthDomain
	}
	return "id." + c.GetDomain()
}

// GetClientID returns the effective OAuth client ID.
func (c *Config) GetClientID() string {
	if c.ClientID != "" {
		return c.ClientID
	}
	return DefaultClientID
}

// GetRedirectURI returns the effective OAuth redirect URI.
func (c *Config) GetRedirectURI() string {
	if c.RedirectURI != "" {
		return c.RedirectURI
	}
	return DefaultRedirectURI
}

// GetSSLVerify returns the effective TLS verification setting.
func (c *Config) GetSSLVerify() bool {
	if c.SSLVerify != nil {
		return *c.SSLVerify
	}
	return true
}

// GetUpdatesURL returns the effective "what's new" feed endpoint.
func (c *Config) GetUpdatesURL() string {
	if c.UpdatesURL != "" {
		return c.UpdatesURL
	}
	return "https://" + c.GetDomain() + "/api/whats-new"
}

// GetOutput returns the effective output format (config default or empty)
func (c *Config) GetOutput() string {
	return c.Output
}

// GetColor returns the effective color mode (config default or empty)
func (c *Config) GetColor() string {
	return c.Color
}
