package httpapi

import (
	"fmt"
	"time"
)

const defaultTimeout = 30 * time.Second

// Config configures the API client.
type Config struct {
	// BaseURL is the versioned API root, e.g. "https://api.reloom.io/api/v1".
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// Timeout is the per-request timeout. Defaults to 30s.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// Headers are default headers applied to all requests.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`

	// H2C enables cleartext HTTP/2 transport (development backends).
	H2C bool `yaml:"h2c" mapstructure:"h2c"`

	// TokenSource returns the current access token, or "" when logged out.
	// Called on every outbound request.
	TokenSource func() string `yaml:"-" mapstructure:"-"`

	// OnUnauthorized is invoked once per 401 response, before the error is
	// returned to the caller. Used for global session teardown.
	OnUnauthorized func() `yaml:"-" mapstructure:"-"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("httpapi: base_url is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("httpapi: timeout must be positive")
	}
	return nil
}
