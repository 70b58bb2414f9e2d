package webhook

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff returns the delay before retry number attempt (starting at 1).
type Backoff interface {
	NextInterval(attempt int) time.Duration
}

// ExponentialBackoff grows the delay by Multiplier per attempt, capped at
// MaxInterval, with a random spread of JitterFactor in both directions.
type ExponentialBackoff struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	JitterFactor    float64
}

func (e ExponentialBackoff) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	initial := e.InitialInterval
	if initial <= 0 {
		initial = time.Second
	}
	ceiling := e.MaxInterval
	if ceiling <= 0 {
		ceiling = 30 * time.Second
	}
	mult := e.Multiplier
	if mult <= 0 {
		mult = 2
	}

	interval := float64(initial) * math.Pow(mult, float64(attempt-1))
	if e.JitterFactor > 0 {
		interval *= 1 + (rand.Float64()*2-1)*e.JitterFactor
	}
	if interval > float64(ceiling) {
		return ceiling
	}
	return time.Duration(interval)
}

// FixedBackoff waits the same interval before every retry.
type FixedBackoff struct {
	Interval time.Duration
}

func (f FixedBackoff) NextInterval(int) time.Duration { return f.Interval }

// DefaultBackoff is exponential from 1s to 30s with 10% jitter.
func DefaultBackoff() Backoff {
	return ExponentialBackoff{
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2,
		JitterFactor:    0.1,
	}
}
