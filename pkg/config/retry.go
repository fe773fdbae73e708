package config

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
)

// RetryConfig configures retries of transient service failures. Delays are
// in milliseconds.
type RetryConfig struct {
	Attempts     int    `mapstructure:"attempts" validate:"gte=1"`
	InitialDelay int    `mapstructure:"initial_delay" validate:"gte=0"`
	MaxDelay     int    `mapstructure:"max_delay" validate:"gte=0"`
	BackoffType  string `mapstructure:"backoff_type" validate:"oneof=fixed exponential"`
}

// DefaultRetryConfig is used when a client is built without configuration.
var DefaultRetryConfig = RetryConfig{
	Attempts:     3,
	InitialDelay: 1000,
	MaxDelay:     10000,
	BackoffType:  "exponential",
}

// Options returns retry-go options for this configuration. retryIf decides
// which errors are transient; onRetry may be nil.
func (r RetryConfig) Options(ctx context.Context, retryIf retry.RetryIfFunc, onRetry retry.OnRetryFunc) []retry.Option {
	delayType := retry.BackOffDelay
	if r.BackoffType == "fixed" {
		delayType = retry.FixedDelay
	}

	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}

	opts := []retry.Option{
		retry.Attempts(uint(attempts)),
		retry.Delay(time.Duration(r.InitialDelay) * time.Millisecond),
		retry.MaxDelay(time.Duration(r.MaxDelay) * time.Millisecond),
		retry.DelayType(delayType),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	}
	if retryIf != nil {
		opts = append(opts, retry.RetryIf(retryIf))
	}
	if onRetry != nil {
		opts = append(opts, retry.OnRetry(onRetry))
	}
	return opts
}
