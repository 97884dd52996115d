package watch

import (
	"math/rand"
	"time"
)

const (
	defaultBackoffBase = 2 * time.Second
	defaultBackoffMax  = 5 * time.Minute
	defaultJitter      = 0.1
)

// Backoff computes retry delays that double per attempt up to a ceiling,
// with a small random jitter so many watchers retrying against the same
// dead server do not wake in lockstep.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64

	attempts int
	rng      *rand.Rand
}

// NewBackoff returns a backoff with the default jitter. Zero base or max
// select the defaults.
func NewBackoff(base, max time.Duration) *Backoff {
	if base <= 0 {
		base = defaultBackoffBase
	}
	if max <= 0 {
		max = defaultBackoffMax
	}
	return &Backoff{
		Base:   base,
		Max:    max,
		Jitter: defaultJitter,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the delay before the next attempt and advances the counter.
func (b *Backoff) Next() time.Duration {
	d := b.Base
	for i := 0; i < b.attempts && d < b.Max; i++ {
		d *= 2
	}
	if d > b.Max {
		d = b.Max
	}
	b.attempts++

	if b.Jitter > 0 && b.rng != nil {
		d += time.Duration(b.rng.Float64() * b.Jitter * float64(d))
	}
	return d
}

// Attempts returns how many delays have been handed out since the last
// reset.
func (b *Backoff) Attempts() int { return b.attempts }

// Reset restarts the curve at the base delay.
func (b *Backoff) Reset() { b.attempts = 0 }
