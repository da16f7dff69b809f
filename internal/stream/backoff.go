package stream

import (
	"math/rand"
	"time"
)

// BackoffConfig defines reconnect delay behavior.
type BackoffConfig struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
	JitterMax time.Duration
}

// DefaultBackoff provides sensible defaults: 1s doubling to a 60s ceiling,
// with up to 1s of jitter to avoid synchronized reconnect storms.
var DefaultBackoff = BackoffConfig{
	BaseDelay: 1 * time.Second,
	MaxDelay:  60 * time.Second,
	JitterMax: 1 * time.Second,
}

// Delay computes the reconnect delay for the given attempt:
// min(base * 2^attempt, max) + random jitter. Monotonically non-decreasing
// in attempt up to the ceiling.
func (c BackoffConfig) Delay(attempt int) time.Duration {
	base := c.BaseDelay
	if base <= 0 {
		base = DefaultBackoff.BaseDelay
	}
	max := c.MaxDelay
	if max <= 0 {
		max = DefaultBackoff.MaxDelay
	}

	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			d = max
			break
		}
	}

	if c.JitterMax > 0 {
		d += time.Duration(rand.Int63n(int64(c.JitterMax)))
	}
	return d
}
