// Package cache is the artifact store in front of a storage.Backend. It hashes
// identifiers into keys, applies the freshness policy on read and never lets
// a backend failure escape as anything but a miss or a dropped write.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/FranksOps/rival/internal/fault"
	"github.com/FranksOps/rival/internal/freshness"
	"github.com/FranksOps/rival/internal/identity"
	"github.com/FranksOps/rival/internal/metrics"
	"github.com/FranksOps/rival/internal/storage"
)

// DefaultTimeout bounds each backend call.
const DefaultTimeout = 5 * time.Second

// Config tunes a Store.
type Config struct {
	Policy  freshness.Policy
	Timeout time.Duration
	Logger  *slog.Logger
}

// Entry is a fresh cached artifact.
type Entry struct {
	Key      identity.Key
	Payload  json.RawMessage
	StoredAt time.Time
}

// Decode unmarshals the payload into v.
func (e Entry) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// Store is safe for concurrent use.
type Store struct {
	backend storage.Backend
	policy  freshness.Policy
	timeout time.Duration
	logger  *slog.Logger
}

// New wraps backend. A zero Policy falls back to freshness.DefaultPolicy.
func New(backend storage.Backend, cfg Config) *Store {
	if cfg.Policy.Windows == nil {
		cfg.Policy = freshness.DefaultPolicy()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Store{
		backend: backend,
		policy:  cfg.Policy,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
	}
}

// Policy returns the freshness policy the store applies.
func (s *Store) Policy() freshness.Policy {
	return s.policy
}

// Get returns the fresh record stored for identifier. A stale record is
// deleted as a side effect and reported absent. Backend errors are logged
// and reported absent.
func (s *Store) Get(ctx context.Context, class storage.Class, identifier string) (Entry, bool) {
	key := identity.Hash(identifier)
	log := s.logger.With("class", class, "key", key.Short())

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rec, err := s.backend.Get(ctx, class, key.String())
	if errors.Is(err, storage.ErrNotFound) {
		metrics.CacheLookups.WithLabelValues(string(class), "miss").Inc()
		return Entry{}, false
	}
	if err != nil {
		metrics.CacheLookups.WithLabelValues(string(class), "error").Inc()
		log.Warn("cache read failed, treating as miss", "err", fault.New(fault.KindStore, "get", err))
		return Entry{}, false
	}

	if s.policy.IsStale(rec.StoredAt, class) {
		metrics.CacheLookups.WithLabelValues(string(class), "stale").Inc()
		deleted, err := s.backend.DeleteStale(ctx, class, key.String(), s.policy.Cutoff(class))
		switch {
		case err != nil:
			log.Warn("failed to expire stale record", "stored_at", rec.StoredAt, "err", err)
		case deleted:
			metrics.CacheEvictions.WithLabelValues(string(class), "read").Inc()
			log.Debug("expired stale record", "stored_at", rec.StoredAt)
		}
		return Entry{}, false
	}

	metrics.CacheLookups.WithLabelValues(string(class), "hit").Inc()
	return Entry{Key: key, Payload: rec.Payload, StoredAt: rec.StoredAt}, true
}

// Put upserts payload as the record for identifier, stamped with the current
// time, and returns that stamp. Failures are fault.KindStore errors; callers
// log and drop them.
func (s *Store) Put(ctx context.Context, class storage.Class, identifier string, payload any) (time.Time, error) {
	key := identity.Hash(identifier)

	data, err := json.Marshal(payload)
	if err != nil {
		metrics.CacheWrites.WithLabelValues(string(class), "error").Inc()
		return time.Time{}, fault.New(fault.KindStore, "encode", err)
	}

	storedAt := s.policy.Clock().UTC()
	rec := &storage.Record{
		Class:      class,
		Key:        key.String(),
		Identifier: identifier,
		Payload:    data,
		StoredAt:   storedAt,
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.backend.Save(ctx, rec); err != nil {
		metrics.CacheWrites.WithLabelValues(string(class), "error").Inc()
		return time.Time{}, fault.New(fault.KindStore, "put", err)
	}

	metrics.CacheWrites.WithLabelValues(string(class), "ok").Inc()
	s.logger.Debug("cached artifact", "class", class, "key", key.Short(), "bytes", len(data))
	return storedAt, nil
}

// Forget removes the record for identifier regardless of its age.
func (s *Store) Forget(ctx context.Context, class storage.Class, identifier string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.backend.Delete(ctx, class, identity.Hash(identifier).String()); err != nil {
		return fault.New(fault.KindStore, "forget", err)
	}
	return nil
}

// ClearExpired removes every stale record of every class and returns how
// many were removed per class. A record refreshed while the sweep runs is
// never removed. Running it twice in a row removes nothing the second time.
func (s *Store) ClearExpired(ctx context.Context) (map[storage.Class]int64, error) {
	removed := make(map[storage.Class]int64)
	var errs []error

	for _, class := range storage.Classes() {
		if _, ok := s.policy.Window(class); !ok {
			continue
		}
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		n, err := s.backend.Purge(cctx, class, s.policy.Cutoff(class))
		cancel()

		removed[class] = n
		if n > 0 {
			metrics.CacheEvictions.WithLabelValues(string(class), "sweep").Add(float64(n))
		}
		if err != nil {
			errs = append(errs, fault.New(fault.KindStore, "purge "+string(class), err))
		}
	}

	if c, ok := s.backend.(storage.Compactor); ok {
		if err := c.Compact(); err != nil {
			errs = append(errs, fault.New(fault.KindStore, "compact", err))
		}
	}

	return removed, errors.Join(errs...)
}

// RunSweeper calls ClearExpired every interval until ctx is done.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.ClearExpired(ctx)
			if err != nil {
				s.logger.Warn("cache sweep incomplete", "err", err)
			}
			for class, n := range removed {
				if n > 0 {
					s.logger.Info("cache sweep", "class", class, "removed", n)
				}
			}
		}
	}
}

// Stats counts stored records per class, stale ones included.
func (s *Store) Stats(ctx context.Context) (map[storage.Class]int, error) {
	stats := make(map[storage.Class]int)
	for _, class := range storage.Classes() {
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		recs, err := s.backend.Query(cctx, storage.Filter{Class: class})
		cancel()
		if err != nil {
			return nil, fault.New(fault.KindStore, "stats", err)
		}
		stats[class] = len(recs)
	}
	return stats, nil
}

// Records lists stored records matching filter, newest first.
func (s *Store) Records(ctx context.Context, filter storage.Filter) ([]*storage.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	recs, err := s.backend.Query(ctx, filter)
	if err != nil {
		return nil, fault.New(fault.KindStore, "records", err)
	}
	return recs, nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
