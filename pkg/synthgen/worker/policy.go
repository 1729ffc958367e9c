package worker

import "time"

// Policy controls what the runner does when Generate fails.
type Policy struct {
	// Retry re-runs a failed task with the same seed.
	Retry bool
	// MaxAttempts caps the number of Generate calls per task when Retry is set.
	// Zero means no cap: the task is retried until it succeeds.
	MaxAttempts int
	// Backoff is the delay before the first retry. It doubles on every further
	// retry up to MaxBackoff. Zero retries immediately.
	Backoff    time.Duration
	MaxBackoff time.Duration
}

// DefaultPolicy retries forever with no delay.
func DefaultPolicy() Policy {
	return Policy{Retry: true}
}

// NoRetry gives up after the first failure.
func NoRetry() Policy {
	return Policy{}
}

// shouldRetry reports whether another attempt follows attempt number n (1-based).
func (p Policy) shouldRetry(n int) bool {
	if !p.Retry {
		return false
	}
	return p.MaxAttempts <= 0 || n < p.MaxAttempts
}

// delay returns the wait before the attempt that follows attempt number n.
func (p Policy) delay(n int) time.Duration {
	if p.Backoff <= 0 {
		return 0
	}
	d := p.Backoff
	for i := 1; i < n; i++ {
		d *= 2
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}
