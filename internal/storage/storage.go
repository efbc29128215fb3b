package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Backend.Get when no record exists for a key.
var ErrNotFound = errors.New("storage: record not found")

// Class is the retention class of a record. The class name doubles as the
// namespace the record lives in.
type Class string

const (
	ClassSearchResults      Class = "search_results"
	ClassCompetitorProfiles Class = "competitor_profiles"
)

// Classes lists every retention class in a stable order.
func Classes() []Class {
	return []Class{ClassSearchResults, ClassCompetitorProfiles}
}

// ParseClass converts a namespace name into a Class.
func ParseClass(s string) (Class, error) {
	for _, c := range Classes() {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("storage: unknown class %q", s)
}

// Record is a single cached artifact.
type Record struct {
	Class      Class           `json:"class"`
	Key        string          `json:"key"`
	Identifier string          `json:"identifier"`
	Payload    json.RawMessage `json:"payload"`
	StoredAt   time.Time       `json:"stored_at"`
}

// Filter allows querying for specific records.
type Filter struct {
	Class        Class
	Key          string
	StoredBefore *time.Time
	StoredSince  *time.Time
	Limit        int
	Offset       int
}

// Backend persists records. Save is an upsert that replaces the whole record
// atomically; readers never observe a partially written record.
type Backend interface {
	Get(ctx context.Context, class Class, key string) (*Record, error)
	Save(ctx context.Context, record *Record) error
	Query(ctx context.Context, filter Filter) ([]*Record, error)
	Delete(ctx context.Context, class Class, key string) error
	// DeleteStale removes the record only while it is still stored before
	// cutoff, so a record refreshed in the meantime survives.
	DeleteStale(ctx context.Context, class Class, key string, cutoff time.Time) (bool, error)
	// Purge removes every record of class stored before cutoff.
	Purge(ctx context.Context, class Class, cutoff time.Time) (int64, error)
	Close() error
}

// Compactor is implemented by backends whose files grow with every write.
type Compactor interface {
	Compact() error
}

// Matches reports whether r satisfies the filter's predicates. Limit and
// Offset are not considered.
func (f Filter) Matches(r *Record) bool {
	if f.Class != "" && r.Class != f.Class {
		return false
	}
	if f.Key != "" && r.Key != f.Key {
		return false
	}
	if f.StoredBefore != nil && !r.StoredAt.Before(*f.StoredBefore) {
		return false
	}
	if f.StoredSince != nil && r.StoredAt.Before(*f.StoredSince) {
		return false
	}
	return true
}

// Page applies Offset and Limit to an already ordered slice.
func (f Filter) Page(records []*Record) []*Record {
	if f.Offset > 0 {
		if f.Offset >= len(records) {
			return []*Record{}
		}
		records = records[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(records) {
		records = records[:f.Limit]
	}
	return records
}
