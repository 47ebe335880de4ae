package cache

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/sundayezeilo/linkpool/internal/observability"
)

// Local is an in-process ListCache backed by ristretto.
// Entries are namespaced by a generation counter. A Set carrying a
// generation older than the current one is dropped; one that loses the race
// with Invalidate lands in a namespace nothing reads any more.
type Local struct {
	cache      *ristretto.Cache
	ttl        time.Duration
	generation atomic.Uint64
}

// NewLocal creates a cache holding at most maxItems pages.
func NewLocal(maxItems int64, ttl time.Duration) (*Local, error) {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxItems * 10,
		MaxCost:     maxItems,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Local{cache: c, ttl: ttl}, nil
}

func localKey(gen uint64, key string) string {
	return strconv.FormatUint(gen, 10) + ":" + key
}

func (l *Local) Get(_ context.Context, key string) ([]byte, uint64, bool, error) {
	gen := l.generation.Load()
	v, ok := l.cache.Get(localKey(gen, key))
	if !ok {
		observability.CacheOperations.WithLabelValues(BackendLocal, resultMiss).Inc()
		return nil, gen, false, nil
	}
	observability.CacheOperations.WithLabelValues(BackendLocal, resultHit).Inc()
	return v.([]byte), gen, true, nil
}

// Set stores value with cost 1 so MaxCost bounds the entry count.
// ristretto applies sets asynchronously; call Wait to observe them.
func (l *Local) Set(_ context.Context, gen uint64, key string, value []byte) error {
	if gen != l.generation.Load() {
		observability.CacheOperations.WithLabelValues(BackendLocal, resultStale).Inc()
		return nil
	}
	l.cache.SetWithTTL(localKey(gen, key), value, 1, l.ttl)
	return nil
}

func (l *Local) Invalidate(context.Context) error {
	l.generation.Add(1)
	l.cache.Clear()
	return nil
}

// Wait blocks until buffered writes are applied.
func (l *Local) Wait() {
	l.cache.Wait()
}

func (l *Local) Close() error {
	l.cache.Close()
	return nil
}
