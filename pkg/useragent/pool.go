package useragent

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync/atomic"
)

// DefaultPool holds current desktop browser User-Agents.
var DefaultPool = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/132.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:133.0) Gecko/20100101 Firefox/133.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.2 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36 Edg/131.0.0.0",
}

// Strategy selects how Next walks the pool.
type Strategy int

const (
	RoundRobin Strategy = iota
	Random
)

// ParseStrategy accepts "round_robin" (or "") and "random".
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "round_robin", "sequential":
		return RoundRobin, nil
	case "random":
		return Random, nil
	default:
		return RoundRobin, fmt.Errorf("useragent: unknown strategy %q", s)
	}
}

// Pool hands out User-Agents. It is safe for concurrent use.
type Pool struct {
	uas      []string
	strategy Strategy
	counter  atomic.Uint64
}

// NewPool creates a pool over uas, or DefaultPool when uas is empty. Blank
// entries are skipped.
func NewPool(uas []string, strategy Strategy) *Pool {
	var kept []string
	for _, ua := range uas {
		if ua = strings.TrimSpace(ua); ua != "" {
			kept = append(kept, ua)
		}
	}
	if len(kept) == 0 {
		kept = slices.Clone(DefaultPool)
	}
	return &Pool{uas: kept, strategy: strategy}
}

// Next returns the next User-Agent according to the pool's strategy.
func (p *Pool) Next() string {
	if len(p.uas) == 0 {
		return ""
	}
	if p.strategy == Random {
		return p.uas[rand.IntN(len(p.uas))]
	}
	idx := p.counter.Add(1) - 1
	return p.uas[idx%uint64(len(p.uas))]
}

// Len returns the number of User-Agents in the pool.
func (p *Pool) Len() int {
	return len(p.uas)
}
