package watch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffMonotonicUpToCeiling(t *testing.T) {
	b := NewBackoff(time.Second, time.Minute)
	b.Jitter = 0

	var prev time.Duration
	for i := 0; i < 6; i++ {
		d := b.Next()
		assert.Greater(t, d, prev, "delay must strictly increase before the ceiling")
		prev = d
	}
	require.Equal(t, time.Minute, prev)

	// pinned at the ceiling from here on
	assert.Equal(t, time.Minute, b.Next())
	assert.Equal(t, time.Minute, b.Next())
}

func TestBackoffBounded(t *testing.T) {
	b := NewBackoff(2*time.Second, 30*time.Second)

	bound := time.Duration(float64(30*time.Second) * (1 + b.Jitter))
	for i := 0; i < 20; i++ {
		d := b.Next()
		assert.LessOrEqual(t, d, bound)
		assert.GreaterOrEqual(t, d, 2*time.Second)
	}
}

func TestBackoffJitterWithinFraction(t *testing.T) {
	b := NewBackoff(time.Second, time.Hour)

	d := b.Next()
	assert.GreaterOrEqual(t, d, time.Second)
	assert.LessOrEqual(t, d, time.Duration(float64(time.Second)*(1+b.Jitter)))
}

func TestBackoffReset(t *testing.T) {
	b := NewBackoff(time.Second, time.Minute)
	b.Jitter = 0

	b.Next()
	b.Next()
	b.Next()
	require.Equal(t, 3, b.Attempts())

	b.Reset()
	assert.Equal(t, 0, b.Attempts())
	assert.Equal(t, time.Second, b.Next())
}

func TestBackoffDefaults(t *testing.T) {
	b := NewBackoff(0, 0)
	assert.Equal(t, defaultBackoffBase, b.Base)
	assert.Equal(t, defaultBackoffMax, b.Max)
	assert.Equal(t, defaultJitter, b.Jitter)
}
