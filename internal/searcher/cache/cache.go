// Package cache memoizes search results. Entries live in a process-local LRU
// and, when configured, in Redis so that replicas share them. Redis calls go
// through a circuit breaker and a per-call timeout; a failing Redis only
// costs a miss.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/resilience"
)

const (
	keyPrefix   = "search:"
	breakerName = "redis-cache"
)

// Status reports where a result came from.
type Status string

const (
	StatusLocalHit  Status = "local"
	StatusRemoteHit Status = "remote"
	StatusMiss      Status = "miss"
)

// Remote is the shared tier. *redis.Client satisfies it.
type Remote interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type Options struct {
	LocalSize     int
	TTL           time.Duration
	RemoteTimeout time.Duration
}

type QueryCache struct {
	local   *lru.Cache[string, executor.Result]
	remote  Remote
	opts    Options
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger

	localHits  atomic.Int64
	remoteHits atomic.Int64
	misses     atomic.Int64
}

// New creates a QueryCache. remote and m may be nil.
func New(opts Options, remote Remote, m *metrics.Metrics) (*QueryCache, error) {
	if opts.LocalSize <= 0 {
		opts.LocalSize = 1024
	}
	local, err := lru.New[string, executor.Result](opts.LocalSize)
	if err != nil {
		return nil, fmt.Errorf("creating local cache: %w", err)
	}
	breakerCfg := resilience.CircuitBreakerConfig{}
	if m != nil {
		m.CircuitBreakerState.WithLabelValues(breakerName).Set(float64(resilience.StateClosed))
		breakerCfg.OnStateChange = func(name string, _, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		}
	}
	return &QueryCache{
		local:   local,
		remote:  remote,
		opts:    opts,
		breaker: resilience.NewCircuitBreaker(breakerName, breakerCfg),
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}, nil
}

// Key derives the cache key of a query from one JSON document holding the
// payload, the name and the terms, so no field can bleed into another. Map
// keys are marshaled in sorted order, so equal payloads give equal keys
// however they were written.
func Key(indexes map[string]index.Index, name string, terms []string) (string, error) {
	doc, err := json.Marshal(struct {
		Indexes map[string]index.Index `json:"i"`
		Name    string                 `json:"n"`
		Terms   []string               `json:"t"`
	}{indexes, name, terms})
	if err != nil {
		return "", fmt.Errorf("encoding cache key: %w", err)
	}
	sum := sha256.Sum256(doc)
	return keyPrefix + hex.EncodeToString(sum[:]), nil
}

// Get looks key up locally, then remotely. A remote hit is copied into the
// local tier.
func (c *QueryCache) Get(ctx context.Context, key string) (executor.Result, Status) {
	if result, ok := c.local.Get(key); ok {
		c.localHits.Add(1)
		c.recordHit(StatusLocalHit)
		return result, StatusLocalHit
	}
	if result, ok := c.getRemote(ctx, key); ok {
		c.local.Add(key, result)
		c.remoteHits.Add(1)
		c.recordHit(StatusRemoteHit)
		return result, StatusRemoteHit
	}
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
	return nil, StatusMiss
}

// Set stores result in both tiers.
func (c *QueryCache) Set(ctx context.Context, key string, result executor.Result) {
	c.local.Add(key, result)
	if c.remote == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.callRemote(ctx, "cache.set", func(ctx context.Context) error {
		return c.remote.Set(ctx, key, data, c.opts.TTL)
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for key or computes it once, however
// many callers ask for the same key concurrently. Errors are not cached.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	key string,
	computeFn func() (executor.Result, error),
) (executor.Result, Status, error) {
	if result, status := c.Get(ctx, key); status != StatusMiss {
		return result, status, nil
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, result)
		return result, nil
	})
	if err != nil {
		return nil, StatusMiss, err
	}
	return val.(executor.Result), StatusMiss, nil
}

// Invalidate empties the local tier and deletes every search key in Redis.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted := int64(c.local.Len())
	c.local.Purge()
	if c.remote == nil {
		c.logger.Info("cache invalidated", "keys_deleted", deleted)
		return deleted, nil
	}
	var remoteDeleted int64
	err := c.callRemote(ctx, "cache.invalidate", func(ctx context.Context) error {
		n, err := c.remote.FlushByPattern(ctx, keyPrefix+"*")
		remoteDeleted = n
		return err
	})
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	deleted += remoteDeleted
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

type Stats struct {
	LocalHits    int64  `json:"local_hits"`
	RemoteHits   int64  `json:"remote_hits"`
	Misses       int64  `json:"misses"`
	Total        int64  `json:"total"`
	HitRate      string `json:"hit_rate"`
	LocalEntries int    `json:"local_entries"`
	Remote       string `json:"remote"`
}

func (c *QueryCache) Stats() Stats {
	s := Stats{
		LocalHits:    c.localHits.Load(),
		RemoteHits:   c.remoteHits.Load(),
		Misses:       c.misses.Load(),
		LocalEntries: c.local.Len(),
		Remote:       "disabled",
	}
	s.Total = s.LocalHits + s.RemoteHits + s.Misses
	var hitRate float64
	if s.Total > 0 {
		hitRate = float64(s.LocalHits+s.RemoteHits) / float64(s.Total) * 100
	}
	s.HitRate = fmt.Sprintf("%.1f%%", hitRate)
	if c.remote != nil {
		s.Remote = c.breaker.State().String()
	}
	return s
}

func (c *QueryCache) getRemote(ctx context.Context, key string) (executor.Result, bool) {
	if c.remote == nil {
		return nil, false
	}
	var data []byte
	err := c.callRemote(ctx, "cache.get", func(ctx context.Context) error {
		var err error
		data, err = c.remote.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			data = nil
			return nil
		}
		return err
	})
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "error", err)
		return nil, false
	}
	if data == nil {
		return nil, false
	}
	var result executor.Result
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return nil, false
	}
	return result, true
}

// callRemote runs fn under the breaker and the remote timeout.
func (c *QueryCache) callRemote(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	return c.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, c.opts.RemoteTimeout, name, fn)
	})
}

func (c *QueryCache) recordHit(status Status) {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(string(status)).Inc()
	}
}
