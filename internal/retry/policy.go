// Package retry re-runs job bodies that fail with a retryable error.
package retry

import (
	"context"
	"errors"
	"time"

	"git.home.luguber.info/inful/bookversions/internal/config"
)

// Policy is the backoff applied between job attempts.
type Policy struct {
	Mode       config.RetryBackoffMode
	Initial    time.Duration // delay before the first retry
	Max        time.Duration // upper bound for any delay
	MaxRetries int           // retries after the first attempt
}

// DefaultPolicy is linear backoff from 1s up to 30s with two retries.
func DefaultPolicy() Policy {
	return Policy{Mode: config.RetryBackoffLinear, Initial: time.Second, Max: 30 * time.Second, MaxRetries: 2}
}

// FromJobs builds the policy configured in the jobs section. Unset or invalid fields
// keep the default.
func FromJobs(cfg config.JobsConfig) Policy {
	p := DefaultPolicy()
	initial, maxDelay := cfg.RetryDelays()
	if initial > 0 {
		p.Initial = initial
	}
	if maxDelay > 0 {
		p.Max = maxDelay
	}
	if cfg.MaxRetries >= 0 {
		p.MaxRetries = cfg.MaxRetries
	}
	if mode := config.NormalizeRetryBackoff(string(cfg.RetryBackoff)); mode != "" {
		p.Mode = mode
	}
	p.Initial = min(p.Initial, p.Max)
	return p
}

// Delay is the wait before retry n (1-based). It never exceeds Max.
func (p Policy) Delay(n int) time.Duration {
	if n < 1 {
		return 0
	}
	var d time.Duration
	switch p.Mode {
	case config.RetryBackoffFixed:
		d = p.Initial
	case config.RetryBackoffExponential:
		// bounded shift, no overflow
		d = p.Initial << min(n-1, 30)
	default:
		d = p.Initial * time.Duration(n)
	}
	if d > p.Max || d < 0 {
		return p.Max
	}
	return d
}

// RetryFunc observes a retry before its delay starts.
type RetryFunc func(retry int, delay time.Duration, err error)

// Do calls fn until it succeeds, fails with an error retryable rejects, runs out of
// retries, or ctx ends while waiting. The last error is returned.
func (p Policy) Do(ctx context.Context, retryable func(error) bool, fn func(context.Context) error, onRetry RetryFunc) error {
	for n := 1; ; n++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if n > p.MaxRetries || retryable == nil || !retryable(err) {
			return err
		}
		delay := p.Delay(n)
		if onRetry != nil {
			onRetry(n, delay, err)
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
}
