// Package memory is a process-local storage.Backend. Records vanish with the
// process; it backs tests and one-shot collection runs.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/FranksOps/rival/internal/storage"
)

var _ storage.Backend = (*memoryBackend)(nil)

type indexKey struct {
	class storage.Class
	key   string
}

type memoryBackend struct {
	mu      sync.RWMutex
	records map[indexKey]storage.Record
}

// New creates an empty in-memory storage.Backend.
func New() storage.Backend {
	return &memoryBackend{records: make(map[indexKey]storage.Record)}
}

func (b *memoryBackend) Get(ctx context.Context, class storage.Class, key string) (*storage.Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.records[indexKey{class, key}]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return clone(r), nil
}

func (b *memoryBackend) Save(ctx context.Context, r *storage.Record) error {
	stored := *clone(*r)
	b.mu.Lock()
	b.records[indexKey{r.Class, r.Key}] = stored
	b.mu.Unlock()
	return nil
}

func (b *memoryBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Record, error) {
	b.mu.RLock()
	var matched []*storage.Record
	for _, r := range b.records {
		if filter.Matches(&r) {
			matched = append(matched, clone(r))
		}
	}
	b.mu.RUnlock()

	slices.SortFunc(matched, func(a, c *storage.Record) int {
		return c.StoredAt.Compare(a.StoredAt)
	})
	return filter.Page(matched), nil
}

func (b *memoryBackend) Delete(ctx context.Context, class storage.Class, key string) error {
	b.mu.Lock()
	delete(b.records, indexKey{class, key})
	b.mu.Unlock()
	return nil
}

func (b *memoryBackend) DeleteStale(ctx context.Context, class storage.Class, key string, cutoff time.Time) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := indexKey{class, key}
	r, ok := b.records[k]
	if !ok || !r.StoredAt.Before(cutoff) {
		return false, nil
	}
	delete(b.records, k)
	return true, nil
}

func (b *memoryBackend) Purge(ctx context.Context, class storage.Class, cutoff time.Time) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var n int64
	for k, r := range b.records {
		if k.class == class && r.StoredAt.Before(cutoff) {
			delete(b.records, k)
			n++
		}
	}
	return n, nil
}

func (b *memoryBackend) Close() error { return nil }

// clone copies the payload so callers cannot mutate stored bytes.
func clone(r storage.Record) *storage.Record {
	r.Payload = slices.Clone(r.Payload)
	return &r
}
