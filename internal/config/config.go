// Package config handles application configuration
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed config.sample.yaml
var sampleConfig string

// GetSampleConfig returns the embedded sample configuration content
func GetSampleConfig() string {
	return sampleConfig
}

// DefaultServerAddr is where the OAuth callback and metrics server listens.
const DefaultServerAddr = "localhost:8085"

// Config represents the application configuration
type Config struct {
	Providers    ProvidersConfig `yaml:"providers"`
	DefaultList  string          `yaml:"default_list"`
	OutputFormat string          `yaml:"output_format"`
	Server       ServerConfig    `yaml:"server"`
	UI           UIConfig        `yaml:"ui"`
	Logging      LoggingConfig   `yaml:"logging"`
}

// ProvidersConfig holds configuration for all providers
type ProvidersConfig struct {
	Local  LocalConfig `yaml:"local"`
	MSTodo OAuthConfig `yaml:"mstodo"`
	Google OAuthConfig `yaml:"google"`
}

// LocalConfig holds the local SQLite provider configuration
type LocalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// OAuthConfig holds a remote provider's OAuth client registration
type OAuthConfig struct {
	Enabled      bool   `yaml:"enabled"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Tenant       string `yaml:"tenant"`   // mstodo only (default: "common")
	Endpoint     string `yaml:"endpoint"` // API base URL override, mainly for testing
}

// ServerConfig holds the loopback server settings
type ServerConfig struct {
	Addr    string `yaml:"addr"`
	Metrics *bool  `yaml:"metrics"` // serve /metrics (default: true)
}

// UIConfig holds terminal UI settings
type UIConfig struct {
	ExpandSubTasks   bool `yaml:"expand_subtasks"`
	SidebarCollapsed bool `yaml:"sidebar_collapsed"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Verbose           bool  `yaml:"verbose"`
	BackgroundEnabled *bool `yaml:"background_enabled"` // log file while the TUI runs (default: true)
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Providers: ProvidersConfig{
			Local: LocalConfig{
				Enabled: true,
				Path:    filepath.Join(GetDataDir(), "tasks.db"),
			},
			MSTodo: OAuthConfig{Tenant: "common"},
		},
		DefaultList:  "all",
		OutputFormat: "text",
		Server:       ServerConfig{Addr: DefaultServerAddr},
	}
}

// Load loads configuration from the specified path, or the default XDG path if empty.
// If the config file doesn't exist, it is created from the embedded sample.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = filepath.Join(GetConfigDir(), "config.yaml")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := writeSample(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML and fills defaults for unset fields. Providers are not
// defaulted: they must be enabled explicitly.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in config file: %w", err)
	}

	if cfg.DefaultList == "" {
		cfg.DefaultList = "all"
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = "text"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultServerAddr
	}
	if cfg.Providers.MSTodo.Tenant == "" {
		cfg.Providers.MSTodo.Tenant = "common"
	}
	if cfg.Providers.Local.Path == "" {
		cfg.Providers.Local.Path = filepath.Join(GetDataDir(), "tasks.db")
	}
	cfg.Providers.Local.Path = ExpandPath(cfg.Providers.Local.Path)

	return cfg, nil
}

// writeSample writes the embedded sample config to path
func writeSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.OutputFormat != "text" && c.OutputFormat != "json" {
		return fmt.Errorf("invalid output_format: %q (must be 'text' or 'json')", c.OutputFormat)
	}

	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		return fmt.Errorf("invalid server.addr %q: %w", c.Server.Addr, err)
	}

	if c.Providers.MSTodo.Enabled && c.Providers.MSTodo.ClientID == "" {
		return errors.New("providers.mstodo.client_id is required when mstodo is enabled")
	}
	if c.Providers.Google.Enabled && c.Providers.Google.ClientID == "" {
		return errors.New("providers.google.client_id is required when google is enabled")
	}

	if !c.Providers.Local.Enabled && !c.Providers.MSTodo.Enabled && !c.Providers.Google.Enabled {
		return errors.New("no provider is enabled")
	}

	return nil
}

// ApplyFlags applies CLI flag overrides to the configuration
func (c *Config) ApplyFlags(verbose bool, outputFormat string) {
	if verbose {
		c.Logging.Verbose = true
	}
	if outputFormat != "" {
		c.OutputFormat = outputFormat
	}
}

// RedirectURL returns the OAuth redirect URL served for a provider.
func (c *Config) RedirectURL(service string) string {
	return fmt.Sprintf("http://%s/oauth/%s/callback", c.Server.Addr, service)
}

// IsMetricsEnabled returns true if /metrics is served (default: true)
func (c *Config) IsMetricsEnabled() bool {
	if c.Server.Metrics == nil {
		return true
	}
	return *c.Server.Metrics
}

// IsBackgroundLoggingEnabled returns true if the TUI should log to a file.
// Returns true (default) if not configured.
func (c *Config) IsBackgroundLoggingEnabled() bool {
	if c.Logging.BackgroundEnabled == nil {
		return true
	}
	return *c.Logging.BackgroundEnabled
}

// getXDGDir returns a directory path following XDG spec.
// envVar is the XDG environment variable (e.g., "XDG_CONFIG_HOME").
// fallbackPath is the relative path from home (e.g., ".config").
func getXDGDir(envVar, fallbackPath string) string {
	if xdgDir := os.Getenv(envVar); xdgDir != "" {
		return filepath.Join(xdgDir, appDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", fallbackPath, appDirName)
	}
	return filepath.Join(home, fallbackPath, appDirName)
}

// GetConfigDir returns the configuration directory following XDG spec
func GetConfigDir() string {
	return getXDGDir("XDG_CONFIG_HOME", ".config")
}

// GetDataDir returns the data directory following XDG spec
func GetDataDir() string {
	return getXDGDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// ExpandPath expands ~ and environment variables in a path
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	return os.ExpandEnv(path)
}
