package reconnect

import (
	"math"
	"math/rand"
	"time"
)

// Backoff computes reconnect delays:
// min(base * growth^(attempt-1) * jitter, cap), attempt counter capped
// at MaxAttempts.
type Backoff struct {
	Base        time.Duration
	Cap         time.Duration
	Growth      float64
	MaxAttempts int

	// jitter returns a factor in [0.5, 1.5). Overridable in tests.
	jitter func() float64
}

func NewBackoff(base, cap time.Duration, maxAttempts int) Backoff {
	return Backoff{
		Base:        base,
		Cap:         cap,
		Growth:      2,
		MaxAttempts: maxAttempts,
		jitter: func() float64 {
			return 0.5 + rand.Float64()
		},
	}
}

// Delay returns the wait before the given 1-based attempt. Exhausted
// reports whether the attempt is past the cap.
func (b Backoff) Delay(attempt int) time.Duration {
	jitter := 1.0
	if b.jitter != nil {
		jitter = b.jitter()
	}

	raw := float64(b.Base) * math.Pow(b.Growth, float64(attempt-1)) * jitter

	if d := time.Duration(raw); d < b.Cap {
		return d
	}

	return b.Cap
}

func (b Backoff) Exhausted(attempt int) bool {
	return attempt > b.MaxAttempts
}
