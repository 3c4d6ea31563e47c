// Package ratelimit limits requests per client key with the generic cell
// rate algorithm: each key stores only the time its bucket would be full
// again, which allows bursts of up to limit requests per window.
package ratelimit

import (
	"sync"
	"time"
)

type Limiter struct {
	interval time.Duration // one token's worth of window
	window   time.Duration
	now      func() time.Time

	mu  sync.Mutex
	tat map[string]time.Time // theoretical arrival time per key

	done      chan struct{}
	closeOnce sync.Once
}

// New allows limit requests per window for each key. A background sweep
// drops keys whose buckets have refilled.
func New(limit int, window time.Duration) *Limiter {
	l := &Limiter{
		interval: window / time.Duration(max(limit, 1)),
		window:   window,
		now:      time.Now,
		tat:      make(map[string]time.Time),
		done:     make(chan struct{}),
	}
	go l.sweepEvery(min(max(window, time.Second), 5*time.Minute))
	return l
}

// Allow takes one request from key's budget. When the budget is spent it
// returns false and how long until the next request would be admitted.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	tat := l.tat[key]
	if tat.Before(now) {
		tat = now
	}
	next := tat.Add(l.interval)
	if over := next.Sub(now) - l.window; over > 0 {
		return false, over
	}
	l.tat[key] = next
	return true, 0
}

// Len reports how many keys are tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tat)
}

func (l *Limiter) Close() {
	l.closeOnce.Do(func() { close(l.done) })
}

func (l *Limiter) sweepEvery(d time.Duration) {
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-t.C:
			l.evictIdle()
		}
	}
}

// evictIdle forgets keys whose bucket is full again; a forgotten key starts
// from a full bucket, so nothing changes for the client.
func (l *Limiter) evictIdle() {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, tat := range l.tat {
		if !tat.After(now) {
			delete(l.tat, key)
		}
	}
}
