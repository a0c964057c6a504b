package config

import (
	"fmt"
	"net/url"
	"time"

	pkgconfig "github.com/bookhaven/storefront/pkg/config"
)

// Config holds all configuration for the storefront client.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Remote bookstore API
	APIBaseURL     string `env:"STOREFRONT_API_BASE_URL" envDefault:"http://localhost:8080"`
	RequestTimeout int    `env:"STOREFRONT_REQUEST_TIMEOUT_SECONDS" envDefault:"30"`

	// Circuit breaker in front of the transport (fail-fast only, never retries)
	BreakerEnabled bool `env:"STOREFRONT_BREAKER_ENABLED" envDefault:"false"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid API base URL: %q", c.APIBaseURL)
	}
	if c.RequestTimeout < 1 {
		return fmt.Errorf("invalid request timeout: %d", c.RequestTimeout)
	}
	return nil
}

// Timeout returns the request timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}
