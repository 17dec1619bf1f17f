// Package retry repeats failing operations with exponential backoff. Only
// errors whose code is marked retryable are repeated.
package retry

import (
	"context"
	stderr "errors"
	"math"
	"math/rand"
	"time"

	"github.com/eoprod/eoprod/pkg/errors"
)

// Config defines retry behavior configuration
type Config struct {
	// MaxAttempts is the maximum number of attempts, the first one included.
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`

	// InitialDelay is the delay before the first retry
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`

	// MaxDelay caps the delay between attempts.
	MaxDelay time.Duration `yaml:"max_delay" json:"max_delay"`

	// Multiplier is the factor by which delay increases after each retry
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`

	// Jitter varies each delay by up to 20%.
	Jitter bool `yaml:"jitter" json:"jitter"`

	// RetryableErrors lists codes retried in addition to errors flagged
	// Retryable.
	RetryableErrors []errors.ErrorCode `yaml:"retryable_errors" json:"retryable_errors"`

	// OnRetry is called before each retry attempt
	OnRetry func(attempt int, err error, delay time.Duration) `yaml:"-" json:"-"`
}

// DefaultConfig retries network failures up to three times.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     3,
		InitialDelay:    200 * time.Millisecond,
		MaxDelay:        10 * time.Second,
		Multiplier:      2.0,
		Jitter:          true,
		RetryableErrors: []errors.ErrorCode{errors.ErrCodeNetworkError},
	}
}

// Retryer handles retry logic with exponential backoff
type Retryer struct {
	config Config
}

// New creates a Retryer. Zero values take the defaults.
func New(config Config) *Retryer {
	def := DefaultConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = def.MaxAttempts
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = def.InitialDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = def.MaxDelay
	}
	if config.Multiplier <= 0 {
		config.Multiplier = def.Multiplier
	}
	return &Retryer{config: config}
}

// Do runs fn until it succeeds, fails with a non-retryable error, ctx ends or
// the attempts are used up. The error of the last attempt is returned
// unchanged so its code survives; a cancelled wait yields NETWORK_ERROR.
func (r *Retryer) Do(ctx context.Context, fn func(context.Context) error) error {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return canceled(err, attempt-1)
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !r.shouldRetry(err, attempt) {
			return err
		}

		delay := r.delay(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return canceled(ctx.Err(), attempt).WithDetail("last_error", err.Error())
		case <-timer.C:
		}
	}
}

// Attempts returns the configured attempt limit.
func (r *Retryer) Attempts() int {
	return r.config.MaxAttempts
}

func (r *Retryer) shouldRetry(err error, attempt int) bool {
	if attempt >= r.config.MaxAttempts {
		return false
	}

	var pe *errors.ProductError
	if !stderr.As(err, &pe) {
		return false
	}
	if pe.Retryable {
		return true
	}
	for _, code := range r.config.RetryableErrors {
		if pe.Code == code {
			return true
		}
	}
	return false
}

// delay returns InitialDelay * Multiplier^(attempt-1), capped at MaxDelay.
func (r *Retryer) delay(attempt int) time.Duration {
	d := float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(attempt-1))
	if d > float64(r.config.MaxDelay) {
		d = float64(r.config.MaxDelay)
	}
	if r.config.Jitter {
		d += d * 0.2 * (rand.Float64()*2 - 1)
	}
	return time.Duration(d)
}

func canceled(err error, attempts int) *errors.ProductError {
	return errors.NewError(errors.ErrCodeNetworkError, "operation canceled").
		WithCause(err).
		WithDetail("attempts", attempts).
		WithComponent("retry")
}
