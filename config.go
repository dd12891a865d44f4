package markupcheck

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/validatehq/markupcheck/w3c"
)

// Config controls a Filter. Zero values mean "use the default", so a
// partially filled literal works the same as the matching environment
// variables left unset.
type Config struct {
	// Enabled turns interception on. When false the middleware is a pure
	// passthrough.
	Enabled bool `env:"MARKUPCHECK_ENABLED" envDefault:"true"`
	// CheckURL is the markup-validation endpoint documents are posted to.
	CheckURL string `env:"MARKUPCHECK_CHECK_URL" envDefault:"http://validator.w3.org/check"`
	// JQueryURL is where browsers fetch jQuery from for the status box.
	JQueryURL string `env:"MARKUPCHECK_JQUERY_URL" envDefault:"http://ajax.googleapis.com/ajax/libs/jquery/1.3.2/jquery.min.js"`
	// Timeout bounds one validation round trip, and with it how long a
	// finishing HTML response can stall on the validation service.
	Timeout time.Duration `env:"MARKUPCHECK_TIMEOUT" envDefault:"30s"`
	// CacheSize is the number of validation results retained for the
	// view-result page.
	CacheSize int `env:"MARKUPCHECK_CACHE_SIZE" envDefault:"20"`
	// PreProcess, when set, rewrites the captured HTML before it is sent
	// to the validation service. The response the client sees is not
	// affected.
	PreProcess func(html string) string
}

// DefaultConfig returns the configuration used when no environment is
// consulted.
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		CheckURL:  w3c.DefaultCheckURL,
		JQueryURL: DefaultJQueryURL,
		Timeout:   w3c.DefaultTimeout,
		CacheSize: DefaultCacheSize,
	}
}

// ConfigFromEnv loads the configuration from MARKUPCHECK_* environment
// variables, with the same defaults as DefaultConfig.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse markupcheck config: %w", err)
	}
	return cfg, nil
}

// withDefaults fills zero values with the package defaults, mirroring the
// envDefault tags for configs built in code.
func (c Config) withDefaults() Config {
	if c.CheckURL == "" {
		c.CheckURL = w3c.DefaultCheckURL
	}
	if c.JQueryURL == "" {
		c.JQueryURL = DefaultJQueryURL
	}
	if c.Timeout <= 0 {
		c.Timeout = w3c.DefaultTimeout
	}
	if c.CacheSize < 1 {
		c.CacheSize = DefaultCacheSize
	}
	return c
}
