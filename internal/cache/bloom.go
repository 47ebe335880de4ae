package cache

import (
	"context"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
)

// CodeFilter answers "definitely absent" for short codes without a query.
// Deletes cannot be removed from a bloom filter, so the filter only grows
// until Rebuild reloads it from the store.
type CodeFilter struct {
	mu            sync.RWMutex
	filter        *bloom.BloomFilter
	expectedItems uint
	fpRate        float64
	rebuiltAt     time.Time

	// pending collects codes added while a rebuild is loading, so they
	// survive the swap.
	rebuilding bool
	pending    []string

	rebuildMu sync.Mutex
}

// NewCodeFilter sizes the filter for expectedItems at falsePositiveRate.
// The filter starts empty and counts as never rebuilt.
func NewCodeFilter(expectedItems uint, falsePositiveRate float64) *CodeFilter {
	return &CodeFilter{
		filter:        bloom.NewWithEstimates(expectedItems, falsePositiveRate),
		expectedItems: expectedItems,
		fpRate:        falsePositiveRate,
	}
}

func (f *CodeFilter) Add(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter.AddString(code)
	if f.rebuilding {
		f.pending = append(f.pending, code)
	}
}

// AddAll adds every code under a single lock.
func (f *CodeFilter) AddAll(codes []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range codes {
		f.filter.AddString(c)
	}
	if f.rebuilding {
		f.pending = append(f.pending, codes...)
	}
}

// MightExist returns false only when code was never added.
func (f *CodeFilter) MightExist(code string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.filter.TestString(code)
}

// Rebuild replaces the filter contents with the codes returned by load,
// unless another rebuild finished within maxAge. Codes added while load
// runs are carried into the new filter. Concurrent callers are serialized,
// so a burst of stale misses loads the store once.
func (f *CodeFilter) Rebuild(ctx context.Context, maxAge time.Duration, load func(context.Context) ([]string, error)) (bool, error) {
	if maxAge > 0 && !f.olderThan(maxAge) {
		return false, nil
	}

	f.rebuildMu.Lock()
	defer f.rebuildMu.Unlock()

	// Another caller may have rebuilt while this one waited.
	if maxAge > 0 && !f.olderThan(maxAge) {
		return false, nil
	}

	f.mu.Lock()
	f.rebuilding = true
	f.pending = nil
	f.mu.Unlock()

	codes, err := load(ctx)
	if err != nil {
		f.mu.Lock()
		f.rebuilding = false
		f.pending = nil
		f.mu.Unlock()
		return false, err
	}

	next := bloom.NewWithEstimates(f.expectedItems, f.fpRate)
	for _, c := range codes {
		next.AddString(c)
	}

	f.mu.Lock()
	for _, c := range f.pending {
		next.AddString(c)
	}
	f.filter = next
	f.rebuilding = false
	f.pending = nil
	f.rebuiltAt = time.Now()
	f.mu.Unlock()
	return true, nil
}

// olderThan reports whether the last rebuild is at least d old.
func (f *CodeFilter) olderThan(d time.Duration) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.rebuiltAt.IsZero() || time.Since(f.rebuiltAt) >= d
}

// ApproximateCount estimates how many codes were added.
func (f *CodeFilter) ApproximateCount() uint32 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.filter.ApproximatedSize()
}
