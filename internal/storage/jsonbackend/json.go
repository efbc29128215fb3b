package jsonbackend

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/FranksOps/rival/internal/storage"
)

// ensure jsonBackend implements storage.Backend and storage.Compactor
var (
	_ storage.Backend   = (*jsonBackend)(nil)
	_ storage.Compactor = (*jsonBackend)(nil)
)

// entry is one line of the log. A tombstone carries only Class and Key.
type entry struct {
	Deleted bool `json:"deleted,omitempty"`
	storage.Record
}

type indexKey struct {
	class storage.Class
	key   string
}

// jsonBackend keeps every live record in memory and appends each mutation to
// an NDJSON log. On open the log is replayed; the last line for a key wins.
type jsonBackend struct {
	mu    sync.RWMutex
	path  string
	file  *os.File
	index map[indexKey]*storage.Record
	lines int
}

// New creates a new NDJSON-backed storage.Backend.
func New(filePath string) (storage.Backend, error) {
	return open(filePath)
}

func open(filePath string) (*jsonBackend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("json open: %w", err)
	}

	b := &jsonBackend{
		path:  filePath,
		file:  f,
		index: make(map[indexKey]*storage.Record),
	}
	if err := b.replay(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return b, nil
}

func (b *jsonBackend) replay() error {
	scanner := bufio.NewScanner(b.file)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e entry
		if err := json.Unmarshal(line, &e); err != nil {
			return fmt.Errorf("json replay line %d: %w", b.lines+1, err)
		}
		b.apply(e)
		b.lines++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("json replay: %w", err)
	}
	return nil
}

func (b *jsonBackend) apply(e entry) {
	k := indexKey{e.Class, e.Key}
	if e.Deleted {
		delete(b.index, k)
		return
	}
	r := e.Record
	b.index[k] = &r
}

// appendLocked writes e to the log and applies it. Callers hold b.mu.
func (b *jsonBackend) appendLocked(e entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	if _, err := b.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("json write: %w", err)
	}
	b.apply(e)
	b.lines++
	return nil
}

func tombstone(class storage.Class, key string) entry {
	return entry{Deleted: true, Record: storage.Record{Class: class, Key: key}}
}

func (b *jsonBackend) Get(ctx context.Context, class storage.Class, key string) (*storage.Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	r, ok := b.index[indexKey{class, key}]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (b *jsonBackend) Save(ctx context.Context, r *storage.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.appendLocked(entry{Record: *r})
}

func (b *jsonBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Record, error) {
	b.mu.RLock()
	var matched []*storage.Record
	for _, r := range b.index {
		if filter.Matches(r) {
			cp := *r
			matched = append(matched, &cp)
		}
	}
	b.mu.RUnlock()

	// Order by stored_at DESC
	slices.SortFunc(matched, func(a, c *storage.Record) int {
		return c.StoredAt.Compare(a.StoredAt)
	})
	return filter.Page(matched), nil
}

func (b *jsonBackend) Delete(ctx context.Context, class storage.Class, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.index[indexKey{class, key}]; !ok {
		return nil
	}
	return b.appendLocked(tombstone(class, key))
}

func (b *jsonBackend) DeleteStale(ctx context.Context, class storage.Class, key string, cutoff time.Time) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, ok := b.index[indexKey{class, key}]
	if !ok || !r.StoredAt.Before(cutoff) {
		return false, nil
	}
	if err := b.appendLocked(tombstone(class, key)); err != nil {
		return false, err
	}
	return true, nil
}

func (b *jsonBackend) Purge(ctx context.Context, class storage.Class, cutoff time.Time) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var n int64
	for k, r := range b.index {
		if k.class != class || !r.StoredAt.Before(cutoff) {
			continue
		}
		if err := b.appendLocked(tombstone(k.class, k.key)); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Compact rewrites the log so it holds exactly one line per live record.
func (b *jsonBackend) Compact() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(b.path), filepath.Base(b.path)+".compact-*")
	if err != nil {
		return fmt.Errorf("json compact: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	for _, r := range b.index {
		if err := enc.Encode(entry{Record: *r}); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("json compact: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("json compact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("json compact: %w", err)
	}

	if err := b.file.Close(); err != nil {
		return fmt.Errorf("json compact: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.path); err != nil {
		return fmt.Errorf("json compact: %w", err)
	}
	f, err := os.OpenFile(b.path, os.O_APPEND|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("json compact reopen: %w", err)
	}
	b.file = f
	b.lines = len(b.index)
	return nil
}

func (b *jsonBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
