package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(limit int, window time.Duration) (*Limiter, *time.Time) {
	l := New(limit, window)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestAllowUntilEmpty(t *testing.T) {
	l, _ := newTestLimiter(3, time.Minute)
	defer l.Close()

	for i := 0; i < 3; i++ {
		ok, _ := l.Allow("10.0.0.1")
		assert.True(t, ok, "request %d", i)
	}
	ok, wait := l.Allow("10.0.0.1")
	assert.False(t, ok)
	assert.InDelta(t, 20.0, wait.Seconds(), 0.001)

	ok, _ = l.Allow("10.0.0.2")
	assert.True(t, ok, "keys are independent")
}

func TestRefill(t *testing.T) {
	l, now := newTestLimiter(2, time.Second)
	defer l.Close()

	l.Allow("k")
	l.Allow("k")
	ok, _ := l.Allow("k")
	assert.False(t, ok)

	*now = now.Add(500 * time.Millisecond)
	ok, _ = l.Allow("k")
	assert.True(t, ok)
}

func TestEvictIdle(t *testing.T) {
	l, now := newTestLimiter(2, time.Second)
	defer l.Close()

	l.Allow("a")
	*now = now.Add(5 * time.Second)
	l.Allow("b")
	l.evictIdle()
	assert.Equal(t, 1, l.Len())
}

func TestBurstThenSteadyRate(t *testing.T) {
	l, now := newTestLimiter(4, 4*time.Second)
	defer l.Close()

	for i := range 4 {
		ok, _ := l.Allow("k")
		assert.True(t, ok, "burst request %d", i)
	}
	ok, wait := l.Allow("k")
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait)

	// one token per second after the burst
	for range 3 {
		*now = now.Add(time.Second)
		ok, _ = l.Allow("k")
		assert.True(t, ok)
		ok, _ = l.Allow("k")
		assert.False(t, ok)
	}
}
