// Package freshness decides whether a cached record is still usable.
package freshness

import (
	"time"

	"github.com/FranksOps/rival/internal/storage"
)

// Default retention windows.
const (
	DefaultSearchResultsWindow      = 7 * 24 * time.Hour
	DefaultCompetitorProfilesWindow = 30 * 24 * time.Hour
)

// Policy maps each retention class to the maximum age of its records.
type Policy struct {
	Windows map[storage.Class]time.Duration
	Now     func() time.Time
}

// DefaultPolicy returns the 7 day / 30 day policy on the wall clock.
func DefaultPolicy() Policy {
	return Policy{
		Windows: map[storage.Class]time.Duration{
			storage.ClassSearchResults:      DefaultSearchResultsWindow,
			storage.ClassCompetitorProfiles: DefaultCompetitorProfilesWindow,
		},
		Now: time.Now,
	}
}

// Window returns the retention window for class, and false when the class
// has none configured.
func (p Policy) Window(class storage.Class) (time.Duration, bool) {
	w, ok := p.Windows[class]
	return w, ok
}

// IsStale reports whether a record of class stored at storedAt has outlived
// its window. A record exactly window old is still fresh. Classes without a
// window are always stale.
func (p Policy) IsStale(storedAt time.Time, class storage.Class) bool {
	w, ok := p.Window(class)
	if !ok {
		return true
	}
	return p.now().Sub(storedAt) > w
}

// Cutoff returns the instant before which records of class are stale.
func (p Policy) Cutoff(class storage.Class) time.Time {
	w, ok := p.Window(class)
	if !ok {
		return p.now()
	}
	return p.now().Add(-w)
}

// Clock returns the policy's current time.
func (p Policy) Clock() time.Time {
	return p.now()
}

func (p Policy) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}
