package config

import (
	"strings"
	"time"
)

// RetryBackoffMode selects how the delay between job retries grows.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

var retryBackoffModes = map[string]RetryBackoffMode{
	"fixed":       RetryBackoffFixed,
	"linear":      RetryBackoffLinear,
	"exponential": RetryBackoffExponential,
}

// NormalizeRetryBackoff maps user input onto a mode ignoring case and surrounding
// blanks. Unknown input yields "".
func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	return retryBackoffModes[strings.ToLower(strings.TrimSpace(raw))]
}

// RetryDelays parses the retry delays. Callers run ValidateConfig first; a malformed
// value yields 0.
func (j JobsConfig) RetryDelays() (initial, maxDelay time.Duration) {
	initial, _ = time.ParseDuration(j.RetryInitialDelay)
	maxDelay, _ = time.ParseDuration(j.RetryMaxDelay)
	return initial, maxDelay
}
