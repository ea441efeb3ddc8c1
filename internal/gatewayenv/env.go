// Package gatewayenv loads the demo gateway CLI's environment-based
// configuration: a single envconfig.Process call, followed by a Validate
// pass that normalizes string fields and rejects anything envconfig's
// struct tags cannot express on their own.
package gatewayenv

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Env holds every environment-driven setting for cmd/gatecli. It is
// intentionally separate from gateclient.Config: Config is the library's
// own explicitly-constructed, per-call type, while Env exists only for the
// demo binary's process bootstrap.
type Env struct {
	LogLevel string `envconfig:"GATECLI_LOG_LEVEL" default:"info"`

	AdminBindAddress string `envconfig:"GATECLI_ADMIN_BIND_ADDRESS" default:"127.0.0.1"`
	AdminPort        int    `envconfig:"GATECLI_ADMIN_PORT" default:"8081"`
	AdminRateLimitRPS int   `envconfig:"GATECLI_ADMIN_RATE_LIMIT_RPS" default:"10"`

	UpstreamURL       string        `envconfig:"GATECLI_UPSTREAM_URL" default:"https://httpbin.org/get"`
	UpstreamGroup     string        `envconfig:"GATECLI_UPSTREAM_GROUP" default:"default"`
	RequestTimeout    time.Duration `envconfig:"GATECLI_REQUEST_TIMEOUT" default:"30s"`
	MaxDeferralMs     int64         `envconfig:"GATECLI_MAX_DEFERRAL_MS" default:"2500"`
	MaxRetries        int           `envconfig:"GATECLI_MAX_RETRIES" default:"5"`
	QueueCapacity     int           `envconfig:"GATECLI_QUEUE_CAPACITY" default:"25"`
}

// Load reads Env from the process environment and validates it.
func Load() (*Env, error) {
	const op = "gatewayenv.Load"

	var e Env
	if err := envconfig.Process("", &e); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &e, nil
}

// Validate normalizes string fields and rejects values envconfig's struct
// tags cannot express (ranges, cross-field constraints).
func (e *Env) Validate() error {
	e.LogLevel = strings.ToLower(strings.TrimSpace(e.LogLevel))
	switch e.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid GATECLI_LOG_LEVEL: must be one of debug, info, warn, error")
	}

	if e.AdminPort < 0 || e.AdminPort > 65535 {
		return fmt.Errorf("invalid GATECLI_ADMIN_PORT: must be between 0 and 65535")
	}
	if strings.TrimSpace(e.AdminBindAddress) == "" {
		return fmt.Errorf("GATECLI_ADMIN_BIND_ADDRESS cannot be empty")
	}
	if e.AdminRateLimitRPS < 1 {
		return fmt.Errorf("invalid GATECLI_ADMIN_RATE_LIMIT_RPS: must be greater than 0")
	}

	if strings.TrimSpace(e.UpstreamURL) == "" {
		return fmt.Errorf("GATECLI_UPSTREAM_URL cannot be empty")
	}
	if e.RequestTimeout <= 0 {
		return fmt.Errorf("invalid GATECLI_REQUEST_TIMEOUT: must be greater than 0")
	}
	if e.MaxDeferralMs < 100 {
		return fmt.Errorf("invalid GATECLI_MAX_DEFERRAL_MS: must be >= 100")
	}
	if e.MaxRetries < 0 || e.MaxRetries > 10 {
		return fmt.Errorf("invalid GATECLI_MAX_RETRIES: must be between 0 and 10")
	}
	if e.QueueCapacity < 1 {
		return fmt.Errorf("invalid GATECLI_QUEUE_CAPACITY: must be greater than 0")
	}

	return nil
}
