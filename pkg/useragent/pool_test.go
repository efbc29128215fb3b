package useragent

import (
	"sync"
	"testing"
)

func TestPool_RoundRobin(t *testing.T) {
	p := NewPool([]string{"A", "B", "C"}, RoundRobin)

	for i, want := range []string{"A", "B", "C", "A"} {
		if got := p.Next(); got != want {
			t.Errorf("call %d: expected %s, got %s", i, want, got)
		}
	}
}

func TestPool_Default(t *testing.T) {
	p := NewPool([]string{"", "   "}, RoundRobin)
	if p.Len() != len(DefaultPool) {
		t.Errorf("expected pool length %d, got %d", len(DefaultPool), p.Len())
	}
	if got := p.Next(); got != DefaultPool[0] {
		t.Errorf("expected %s, got %s", DefaultPool[0], got)
	}
}

func TestPool_Random(t *testing.T) {
	p := NewPool([]string{"A", "B"}, Random)

	seen := map[string]bool{}
	// Try 100 times, highly likely we see both A and B
	for i := 0; i < 100; i++ {
		got := p.Next()
		if got != "A" && got != "B" {
			t.Fatalf("unexpected UA: %s", got)
		}
		seen[got] = true
	}
	if !seen["A"] || !seen["B"] {
		t.Errorf("expected to see both A and B randomly, saw %v", seen)
	}
}

func TestPool_Concurrent(t *testing.T) {
	uas := []string{"X", "Y", "Z"}
	p := NewPool(uas, RoundRobin)

	const routines = 50
	const iterations = 300

	var (
		mu     sync.Mutex
		counts = map[string]int{}
		wg     sync.WaitGroup
	)
	for i := 0; i < routines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := map[string]int{}
			for j := 0; j < iterations; j++ {
				local[p.Next()]++
			}
			mu.Lock()
			for k, v := range local {
				counts[k] += v
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	// 15000 calls divide evenly across three entries.
	for _, ua := range uas {
		if counts[ua] != routines*iterations/len(uas) {
			t.Errorf("expected %d hits for %s, got %d", routines*iterations/len(uas), ua, counts[ua])
		}
	}
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"", RoundRobin, false},
		{"round_robin", RoundRobin, false},
		{"Random", Random, false},
		{"weighted", RoundRobin, true},
	}
	for _, tt := range tests {
		got, err := ParseStrategy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStrategy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseStrategy(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
