package supervisor

import (
	"time"

	"github.com/oliver-os/conductor/config"
)

// ============================================================================
// RETRY BACKOFF
// ============================================================================

// RetryPolicy computes the delay before each retry attempt from a
// supervision backoff configuration.
type RetryPolicy struct {
	maxRetries int
	backoff    config.BackoffConfig
}

// NewRetryPolicy builds a policy from configuration, applying defaults
// for unset fields.
func NewRetryPolicy(retry config.RetryPolicyConfig, backoff config.BackoffConfig) *RetryPolicy {
	retry.SetDefaults()
	backoff.SetDefaults()
	return &RetryPolicy{
		maxRetries: retry.MaxRetries,
		backoff:    backoff,
	}
}

// MaxRetries returns how many retry attempts the policy allows.
func (p *RetryPolicy) MaxRetries() int { return p.maxRetries }

// NextDelay returns the delay before the given attempt. Attempts are
// 1-based; the first retry is attempt 1. The delay never exceeds the
// configured maximum: exponential backoff at 1s base doubles through
// 1s, 2s, 4s, 8s, 16s and then holds at the 30s cap.
func (p *RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := time.Duration(p.backoff.BaseDelay) * time.Second
	max := time.Duration(p.backoff.MaxDelay) * time.Second

	var delay time.Duration
	switch p.backoff.Type {
	case "linear":
		delay = base * time.Duration(attempt)
	case "fixed":
		delay = base
	default: // exponential
		delay = base
		for i := 1; i < attempt; i++ {
			delay = time.Duration(float64(delay) * p.backoff.Multiplier)
			if max > 0 && delay >= max {
				return max
			}
		}
	}
	if max > 0 && delay > max {
		return max
	}
	return delay
}
