// Package cache memoizes score results keyed by a fingerprint of the
// applicant profile.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-redis/redis/v8"
	"github.com/rotisserie/eris"

	"github.com/sells-group/credit-scorer/internal/config"
	"github.com/sells-group/credit-scorer/internal/model"
)

// Cache stores score results by key.
type Cache interface {
	Get(ctx context.Context, key string) (*model.ScoreResult, bool, error)
	Set(ctx context.Context, key string, res model.ScoreResult) error
}

// Key fingerprints p within namespace. The namespace should change whenever
// the scoring configuration or model artifact does.
func Key(namespace string, p model.ApplicantProfile) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", eris.Wrap(err, "cache: marshal profile")
	}
	h := xxhash.New()
	h.WriteString(namespace) //nolint:errcheck
	h.WriteString("\x00")    //nolint:errcheck
	h.Write(data)            //nolint:errcheck
	return fmt.Sprintf("%s:%016x", namespace, h.Sum64()), nil
}

// Namespace derives a key namespace from the model identity and the
// scoring configuration, so results never outlive either.
func Namespace(modelID, modelVersion string, scoringCfg any) (string, error) {
	data, err := json.Marshal(scoringCfg)
	if err != nil {
		return "", eris.Wrap(err, "cache: marshal scoring config")
	}
	return fmt.Sprintf("credit:%s@%s:%08x", modelID, modelVersion, uint32(xxhash.Sum64(data))), nil
}

// Open builds the configured cache. The "none" driver returns nil.
func Open(ctx context.Context, cfg config.CacheConfig) (Cache, error) {
	ttl := time.Duration(cfg.TTLMinutes) * time.Minute
	switch cfg.Driver {
	case "none":
		return nil, nil
	case "memory":
		return NewMemory(ttl), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			PoolSize:     10,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "cache: connect redis %s", cfg.RedisAddr)
		}
		return NewRedis(client, ttl), nil
	default:
		return nil, eris.Errorf("cache: unknown driver %q", cfg.Driver)
	}
}

// DefaultMaxEntries bounds a Memory cache built by Open.
const DefaultMaxEntries = 10000

type entry struct {
	res     model.ScoreResult
	added   time.Time
	expires time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}

// Memory is an in-process Cache with per-entry expiry and a size bound.
// Expired entries are swept when a Set finds the cache full; if none have
// expired the oldest entry is evicted.
type Memory struct {
	ttl        time.Duration
	maxEntries int

	mu      sync.Mutex
	entries map[string]entry

	nowFunc func() time.Time
}

// NewMemory creates a Memory cache holding at most DefaultMaxEntries
// results. A non-positive ttl never expires.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:        ttl,
		maxEntries: DefaultMaxEntries,
		entries:    make(map[string]entry),
		nowFunc:    time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) (*model.ScoreResult, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if e.expired(m.nowFunc()) {
		delete(m.entries, key)
		return nil, false, nil
	}
	res := cloneResult(e.res)
	return &res, true, nil
}

func (m *Memory) Set(_ context.Context, key string, res model.ScoreResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowFunc()
	if _, ok := m.entries[key]; !ok && m.maxEntries > 0 && len(m.entries) >= m.maxEntries {
		m.sweep(now)
		if len(m.entries) >= m.maxEntries {
			m.evictOldest()
		}
	}

	e := entry{res: cloneResult(res), added: now}
	if m.ttl > 0 {
		e.expires = now.Add(m.ttl)
	}
	m.entries[key] = e
	return nil
}

// Len returns the number of stored entries, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) sweep(now time.Time) {
	for k, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, k)
		}
	}
}

func (m *Memory) evictOldest() {
	var (
		oldest string
		at     time.Time
		found  bool
	)
	for k, e := range m.entries {
		if !found || e.added.Before(at) {
			oldest, at, found = k, e.added, true
		}
	}
	delete(m.entries, oldest)
}

// cloneResult copies res so callers never share its slices or pointers
// with the cache.
func cloneResult(res model.ScoreResult) model.ScoreResult {
	if res.Factors != nil {
		res.Factors = append([]model.FactorContribution(nil), res.Factors...)
	}
	if res.Recommendations != nil {
		res.Recommendations = append([]string(nil), res.Recommendations...)
	}
	if res.ModelScore != nil {
		ms := *res.ModelScore
		res.ModelScore = &ms
	}
	return res
}

// Redis is a Cache backed by a Redis server.
type Redis struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedis creates a Redis cache on client.
func NewRedis(client redis.Cmdable, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, key string) (*model.ScoreResult, bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "cache: redis get %s", key)
	}
	var res model.ScoreResult
	if err := json.Unmarshal(val, &res); err != nil {
		return nil, false, eris.Wrapf(err, "cache: decode %s", key)
	}
	return &res, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, res model.ScoreResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return eris.Wrap(err, "cache: encode result")
	}
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return eris.Wrapf(err, "cache: redis set %s", key)
	}
	return nil
}
