package jsonbackend

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/FranksOps/rival/internal/storage"
	"github.com/FranksOps/rival/internal/storage/storagetest"
)

func TestJSONBackend(t *testing.T) {
	b, err := New(filepath.Join(t.TempDir(), "rival.jsonl"))
	if err != nil {
		t.Fatalf("Failed to create JSON backend: %v", err)
	}
	defer b.Close()

	storagetest.Run(t, b)
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open log: %v", err)
	}
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		n++
	}
	return n
}

func TestJSONBackend_ReplayAndCompact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rival.jsonl")
	ctx := context.Background()
	now := time.Now().UTC()

	b, err := open(path)
	if err != nil {
		t.Fatalf("Failed to create JSON backend: %v", err)
	}

	save := func(key, payload string, at time.Time) {
		t.Helper()
		err := b.Save(ctx, &storage.Record{
			Class:    storage.ClassSearchResults,
			Key:      key,
			Payload:  []byte(payload),
			StoredAt: at,
		})
		if err != nil {
			t.Fatalf("Failed to save %s: %v", key, err)
		}
	}
	save("k1", `"first"`, now.Add(-time.Hour))
	save("k1", `"second"`, now)
	save("k2", `"gone"`, now)
	if err := b.Delete(ctx, storage.ClassSearchResults, "k2"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}

	if got := countLines(t, path); got != 4 {
		t.Fatalf("Expected 4 log lines before compaction, got %d", got)
	}

	b, err = open(path)
	if err != nil {
		t.Fatalf("Failed to reopen JSON backend: %v", err)
	}
	defer b.Close()

	got, err := b.Get(ctx, storage.ClassSearchResults, "k1")
	if err != nil {
		t.Fatalf("Expected k1 after replay: %v", err)
	}
	if string(got.Payload) != `"second"` {
		t.Errorf("Expected last write to win, got %s", got.Payload)
	}
	if _, err := b.Get(ctx, storage.ClassSearchResults, "k2"); err != storage.ErrNotFound {
		t.Errorf("Expected tombstoned k2 to stay deleted, got %v", err)
	}

	if err := b.Compact(); err != nil {
		t.Fatalf("Failed to compact: %v", err)
	}
	if got := countLines(t, path); got != 1 {
		t.Errorf("Expected 1 log line after compaction, got %d", got)
	}

	// Writes after compaction land in the new file.
	save("k3", `"after"`, now)
	if got := countLines(t, path); got != 2 {
		t.Errorf("Expected 2 log lines after a post-compaction write, got %d", got)
	}
}

func TestJSONBackend_CorruptLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rival.jsonl")
	if err := os.WriteFile(path, []byte("{not json\n"), 0644); err != nil {
		t.Fatalf("Failed to seed log: %v", err)
	}
	if _, err := New(path); err == nil {
		t.Fatalf("Expected error opening a corrupt log")
	}
}
