// Package storagetest holds the behaviour every storage.Backend must share.
// Driver packages call Run from their own tests.
package storagetest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/FranksOps/rival/internal/storage"
)

// Run exercises b against the storage.Backend contract. b must be empty.
func Run(t *testing.T, b storage.Backend) {
	t.Helper()

	// Subtests share b, so each uses its own keys.
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, b) })
	t.Run("SaveUpsert", func(t *testing.T) { testSaveUpsert(t, b) })
	t.Run("ClassIsolation", func(t *testing.T) { testClassIsolation(t, b) })
	t.Run("Query", func(t *testing.T) { testQuery(t, b) })
	t.Run("DeleteStale", func(t *testing.T) { testDeleteStale(t, b) })
	t.Run("Purge", func(t *testing.T) { testPurge(t, b) })
	t.Run("ConcurrentSave", func(t *testing.T) { testConcurrentSave(t, b) })
}

func record(class storage.Class, key string, storedAt time.Time, payload any) *storage.Record {
	data, _ := json.Marshal(payload)
	return &storage.Record{
		Class:      class,
		Key:        key,
		Identifier: "id-" + key,
		Payload:    data,
		StoredAt:   storedAt,
	}
}

// now is truncated to microseconds, the coarsest precision among drivers.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func testGetMissing(t *testing.T, b storage.Backend) {
	_, err := b.Get(context.Background(), storage.ClassSearchResults, "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testSaveUpsert(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	first := now().Add(-time.Hour)

	if err := b.Save(ctx, record(storage.ClassSearchResults, "upsert", first, []string{"a"})); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	second := now()
	if err := b.Save(ctx, record(storage.ClassSearchResults, "upsert", second, []string{"b", "c"})); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}

	got, err := b.Get(ctx, storage.ClassSearchResults, "upsert")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	var payload []string
	if err := json.Unmarshal(got.Payload, &payload); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if len(payload) != 2 || payload[0] != "b" {
		t.Errorf("expected overwritten payload [b c], got %v", payload)
	}
	if !got.StoredAt.Equal(second) {
		t.Errorf("expected StoredAt %v, got %v", second, got.StoredAt)
	}
	if got.Identifier != "id-upsert" || got.Class != storage.ClassSearchResults {
		t.Errorf("unexpected record metadata: %+v", got)
	}

	all, err := b.Query(ctx, storage.Filter{Key: "upsert"})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected upsert to keep a single record, got %d", len(all))
	}
}

func testClassIsolation(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	if err := b.Save(ctx, record(storage.ClassCompetitorProfiles, "shared", now(), "profile")); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if _, err := b.Get(ctx, storage.ClassSearchResults, "shared"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected key to be invisible in another class, got %v", err)
	}
	if err := b.Delete(ctx, storage.ClassCompetitorProfiles, "shared"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := b.Get(ctx, storage.ClassCompetitorProfiles, "shared"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected deleted record to be gone, got %v", err)
	}
}

func testQuery(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	base := now()
	for i := 0; i < 3; i++ {
		r := record(storage.ClassCompetitorProfiles, fmt.Sprintf("query-%d", i), base.Add(time.Duration(-i)*time.Hour), i)
		if err := b.Save(ctx, r); err != nil {
			t.Fatalf("save %d failed: %v", i, err)
		}
	}

	since := base.Add(-90 * time.Minute)
	results, err := b.Query(ctx, storage.Filter{Class: storage.ClassCompetitorProfiles, StoredSince: &since})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results since cutoff, got %d", len(results))
	}
	if results[0].Key != "query-0" {
		t.Errorf("expected newest first, got %s", results[0].Key)
	}

	limited, err := b.Query(ctx, storage.Filter{Class: storage.ClassCompetitorProfiles, StoredSince: &since, Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("paged query failed: %v", err)
	}
	if len(limited) != 1 || limited[0].Key != "query-1" {
		t.Errorf("expected query-1 on the second page, got %v", limited)
	}

	for i := 0; i < 3; i++ {
		_ = b.Delete(ctx, storage.ClassCompetitorProfiles, fmt.Sprintf("query-%d", i))
	}
}

func testDeleteStale(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	storedAt := now().Add(-48 * time.Hour)
	if err := b.Save(ctx, record(storage.ClassSearchResults, "stale", storedAt, "old")); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// The record was refreshed after the cutoff: it must survive.
	refreshed := now()
	if err := b.Save(ctx, record(storage.ClassSearchResults, "stale", refreshed, "new")); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	deleted, err := b.DeleteStale(ctx, storage.ClassSearchResults, "stale", now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("delete stale failed: %v", err)
	}
	if deleted {
		t.Errorf("refreshed record must not be deleted")
	}
	if _, err := b.Get(ctx, storage.ClassSearchResults, "stale"); err != nil {
		t.Errorf("expected refreshed record to survive, got %v", err)
	}

	deleted, err = b.DeleteStale(ctx, storage.ClassSearchResults, "stale", refreshed.Add(time.Second))
	if err != nil {
		t.Fatalf("delete stale failed: %v", err)
	}
	if !deleted {
		t.Errorf("expected record older than cutoff to be deleted")
	}
	if _, err := b.Get(ctx, storage.ClassSearchResults, "stale"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func testPurge(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	cutoff := now().Add(-7 * 24 * time.Hour)

	_ = b.Save(ctx, record(storage.ClassSearchResults, "purge-old", cutoff.Add(-time.Minute), 1))
	_ = b.Save(ctx, record(storage.ClassSearchResults, "purge-fresh", cutoff.Add(time.Minute), 2))
	_ = b.Save(ctx, record(storage.ClassCompetitorProfiles, "purge-other", cutoff.Add(-time.Minute), 3))

	n, err := b.Purge(ctx, storage.ClassSearchResults, cutoff)
	if err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 purged record, got %d", n)
	}

	if _, err := b.Get(ctx, storage.ClassSearchResults, "purge-old"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected purge-old to be gone, got %v", err)
	}
	if _, err := b.Get(ctx, storage.ClassSearchResults, "purge-fresh"); err != nil {
		t.Errorf("expected purge-fresh to survive, got %v", err)
	}
	if _, err := b.Get(ctx, storage.ClassCompetitorProfiles, "purge-other"); err != nil {
		t.Errorf("purge must not cross classes, got %v", err)
	}

	// Idempotent.
	n, err = b.Purge(ctx, storage.ClassSearchResults, cutoff)
	if err != nil || n != 0 {
		t.Errorf("expected second purge to remove nothing, got %d, %v", n, err)
	}
}

func testConcurrentSave(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = b.Save(ctx, record(storage.ClassSearchResults, "contended", now(), map[string]int{"writer": i}))
		}(i)
	}
	wg.Wait()

	got, err := b.Get(ctx, storage.ClassSearchResults, "contended")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	var payload map[string]int
	if err := json.Unmarshal(got.Payload, &payload); err != nil {
		t.Fatalf("last writer left a torn record: %v", err)
	}
	if _, ok := payload["writer"]; !ok {
		t.Errorf("expected a complete payload, got %s", got.Payload)
	}
}
