// Package file loads onenote-explorer settings from a TOML file, a .env file
// and the process environment, in increasing order of precedence.
package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/onenote-explorer/internal/connectors/microsoft"
	"github.com/custodia-labs/onenote-explorer/internal/core/domain"
)

// Environment variables that override the file.
const (
	EnvClientID   = "ONENOTE_CLIENT_ID"
	EnvTenantID   = "ONENOTE_TENANT_ID"
	EnvAuthFlow   = "ONENOTE_AUTH_FLOW"
	EnvBaseURL    = "ONENOTE_BASE_URL"
	EnvTokenCache = "ONENOTE_TOKEN_CACHE"
	EnvTimeout    = "ONENOTE_TIMEOUT"
)

const (
	dirName  = ".onenote-explorer"
	fileName = "config.toml"

	// TokenCacheMemory keeps tokens only for the life of the process.
	TokenCacheMemory = "memory"

	defaultTimeout = 60 * time.Second
)

// Config is the full settings tree.
type Config struct {
	Auth    AuthConfig    `toml:"auth"`
	API     APIConfig     `toml:"api"`
	Storage StorageConfig `toml:"storage"`
}

// AuthConfig describes the Entra ID app registration.
type AuthConfig struct {
	ClientID    string   `toml:"client_id"`
	TenantID    string   `toml:"tenant_id"`
	Flow        string   `toml:"flow"`
	RedirectURL string   `toml:"redirect_url,omitempty"`
	Scopes      []string `toml:"scopes"`
}

// APIConfig configures the OneNote dispatcher.
type APIConfig struct {
	BaseURL string `toml:"base_url"`
	// Timeout is a Go duration string such as "60s".
	Timeout string `toml:"timeout"`
}

// StorageConfig selects the token cache: "memory" or a SQLite file path.
type StorageConfig struct {
	TokenCache string `toml:"token_cache"`
}

// Default returns the built-in settings. dir is the settings directory.
func Default(dir string) *Config {
	return &Config{
		Auth: AuthConfig{
			TenantID: "common",
			Flow:     string(domain.AuthFlowDeviceCode),
			Scopes:   microsoft.DefaultScopes(),
		},
		API: APIConfig{
			BaseURL: microsoft.OneNoteBaseURL,
			Timeout: defaultTimeout.String(),
		},
		Storage: StorageConfig{
			TokenCache: filepath.Join(dir, "tokens.db"),
		},
	}
}

// DefaultDir returns ~/.onenote-explorer.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// Store reads and writes the config file.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the config file path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, fileName)
}

// Load reads the config file over the defaults, then applies .env and
// environment overrides. A missing file is not an error.
func (s *Store) Load() (*Config, error) {
	cfg := Default(s.dir)

	data, err := os.ReadFile(s.Path())
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", s.Path(), err)
		}
	}

	if err := LoadDotEnv(filepath.Join(s.dir, ".env"), ".env"); err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to the config file, creating the directory.
func (s *Store) Save(cfg *Config) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(s.Path(), data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// LoadDotEnv loads each existing file into the environment. Variables that
// are already set win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(EnvClientID, &c.Auth.ClientID)
	set(EnvTenantID, &c.Auth.TenantID)
	set(EnvAuthFlow, &c.Auth.Flow)
	set(EnvBaseURL, &c.API.BaseURL)
	set(EnvTokenCache, &c.Storage.TokenCache)
	set(EnvTimeout, &c.API.Timeout)
}

// Validate checks values that cannot be used as given.
func (c *Config) Validate() error {
	if !domain.AuthFlow(c.Auth.Flow).Valid() {
		return fmt.Errorf("auth flow %q: must be %q or %q", c.Auth.Flow, domain.AuthFlowDeviceCode, domain.AuthFlowBrowser)
	}
	if _, err := c.TimeoutDuration(); err != nil {
		return err
	}
	if c.API.BaseURL == "" {
		return errors.New("api base_url is empty")
	}
	return nil
}

// TimeoutDuration parses API.Timeout. Empty means the default.
func (c *Config) TimeoutDuration() (time.Duration, error) {
	if c.API.Timeout == "" {
		return defaultTimeout, nil
	}
	d, err := time.ParseDuration(c.API.Timeout)
	if err != nil {
		return 0, fmt.Errorf("api timeout %q: %w", c.API.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("api timeout %q must be positive", c.API.Timeout)
	}
	return d, nil
}

// AuthProvider converts the auth section into the domain provider.
func (c *Config) AuthProvider() *domain.AuthProvider {
	return &domain.AuthProvider{
		Name: "microsoft",
		Flow: domain.AuthFlow(c.Auth.Flow),
		OAuth: &domain.OAuthProviderConfig{
			ClientID: c.Auth.ClientID,
			TenantID: c.Auth.TenantID,
			Scopes:   append([]string(nil), c.Auth.Scopes...),
		},
	}
}
