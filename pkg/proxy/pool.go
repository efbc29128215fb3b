package proxy

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

// ErrUnknownProxy is returned when reporting on a proxy the pool never held.
var ErrUnknownProxy = errors.New("proxy: not in pool")

type endpoint struct {
	url           *url.URL
	failures      int
	disabledUntil time.Time
}

// Pool rotates through proxies round-robin and benches a proxy for a
// cooldown once its failure count reaches MaxFailures. Each success pays
// one failure back.
type Pool struct {
	mu          sync.Mutex
	endpoints   []*endpoint
	cursor      int
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time
}

// Config defines settings for the Proxy Pool.
type Config struct {
	// MaxFailures before disabling a proxy temporarily.
	MaxFailures int
	// Cooldown is how long a proxy remains disabled after hitting MaxFailures.
	Cooldown time.Duration
}

// NewPool creates an empty pool. Zero config values use 3 failures and a
// five minute cooldown.
func NewPool(cfg Config) *Pool {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	return &Pool{
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
		now:         time.Now,
	}
}

// LoadFile adds proxies from a file with one URL per line. Blank lines and
// lines starting with '#' are ignored.
func (p *Pool) LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("proxy: open list: %w", err)
	}
	defer file.Close()

	var urls []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("proxy: read list: %w", err)
	}

	return p.Add(urls...)
}

// Add parses raw proxy URLs; a missing scheme defaults to http. Nothing is
// added if any entry fails to parse.
func (p *Pool) Add(rawURLs ...string) error {
	parsed := make([]*endpoint, 0, len(rawURLs))
	for _, raw := range rawURLs {
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return fmt.Errorf("proxy: invalid url %q", raw)
		}
		parsed = append(parsed, &endpoint{url: u})
	}

	p.mu.Lock()
	p.endpoints = append(p.endpoints, parsed...)
	p.mu.Unlock()
	return nil
}

// Len returns how many proxies the pool holds, benched ones included.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.endpoints)
}

// Next returns the next proxy that is not cooling down, or nil when the
// pool is empty or fully benched.
func (p *Pool) Next() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for range p.endpoints {
		ep := p.endpoints[p.cursor]
		p.cursor = (p.cursor + 1) % len(p.endpoints)

		if !ep.disabledUntil.IsZero() {
			if now.Before(ep.disabledUntil) {
				continue
			}
			ep.disabledUntil = time.Time{}
			ep.failures = 0
		}
		return ep.url
	}
	return nil
}

// MarkSuccess records a successful request through proxyURL.
func (p *Pool) MarkSuccess(proxyURL *url.URL) error {
	return p.update(proxyURL, func(ep *endpoint) {
		if ep.failures > 0 {
			ep.failures--
		}
	})
}

// MarkFailure records a failed request through proxyURL and benches it once
// it reaches the failure limit.
func (p *Pool) MarkFailure(proxyURL *url.URL) error {
	return p.update(proxyURL, func(ep *endpoint) {
		ep.failures++
		if ep.failures >= p.maxFailures {
			ep.disabledUntil = p.now().Add(p.cooldown)
		}
	})
}

func (p *Pool) update(proxyURL *url.URL, fn func(*endpoint)) error {
	if proxyURL == nil {
		return errors.New("proxy: nil url")
	}
	target := proxyURL.String()

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ep := range p.endpoints {
		if ep.url.String() == target {
			fn(ep)
			return nil
		}
	}
	return ErrUnknownProxy
}
