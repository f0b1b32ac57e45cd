package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/raysh454/policyctl/internal/apiclient"
	"github.com/raysh454/policyctl/internal/credential"
	"github.com/raysh454/policyctl/internal/webclient"
)

// Environment variables consulted by ApplyEnv.
const (
	EnvBaseURL = "POLICYCTL_BASE_URL"
	EnvAPIKey  = "POLICYCTL_API_KEY"
	EnvStore   = "POLICYCTL_STORE"
)

// Config contains the runtime configuration of policyctl.
type Config struct {
	// BaseURL is the backend origin. Requests to any other origin are refused.
	BaseURL string `yaml:"base_url"`

	// DualHeader also sends "Authorization: ApiKey <key>".
	DualHeader bool `yaml:"dual_header"`

	Timeout   time.Duration    `yaml:"timeout"`
	Transport webclient.Client `yaml:"transport"`
	LogLevel  string           `yaml:"log_level"`

	Store   credential.Config `yaml:"store"`
	Metrics MetricsConfig     `yaml:"metrics"`

	// APIKey overrides the stored key for this process only. It is never
	// read from the config file.
	APIKey string `yaml:"-"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`

	// Textfile, when set, receives the collected metrics in Prometheus text
	// format on Close, for pickup by a node-exporter textfile collector.
	Textfile string `yaml:"textfile"`
}

// DefaultConfig returns a Config populated with local development defaults.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "http://localhost:8000",
		DualHeader: true,
		Timeout:    30 * time.Second,
		Transport:  webclient.ClientNetHTTP,
		LogLevel:   "error",
		Store: credential.Config{
			Backend: credential.BackendFile,
		},
		Metrics: MetricsConfig{Namespace: "policyctl"},
	}
}

// DefaultConfigPath returns ~/.config/policyctl/config.yaml.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "policyctl", "config.yaml")
}

// LoadConfig reads path over the defaults. An empty path means the default
// location, which may be missing; an explicit path must exist.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. getenv is os.Getenv outside tests.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvBaseURL)); v != "" {
		c.BaseURL = v
	}
	if v := strings.TrimSpace(getenv(EnvAPIKey)); v != "" {
		c.APIKey = v
	}
	if v := strings.TrimSpace(getenv(EnvStore)); v != "" {
		c.Store.Backend = credential.Backend(v)
	}
}

// Validate checks the fields that would otherwise fail later with a less
// helpful message.
func (c *Config) Validate() error {
	if _, err := apiclient.ParseOrigin(c.BaseURL); err != nil {
		return fmt.Errorf("base_url: %w", err)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	return nil
}
