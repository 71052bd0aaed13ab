package utils

import (
	"net/url"
	"sync"
	"time"
)

// Pacer bounds the request rate against scraped hosts. Wait blocks until a
// request to the given URL's host is allowed. Pacing is a politeness
// discipline, not an optimization: target sites throttle or block clients
// that hammer them.
type Pacer interface {
	Wait(rawURL string)
}

// HostPacer enforces a minimum interval between requests to the same host.
// Distinct hosts are paced independently.
type HostPacer struct {
	interval time.Duration

	mu   sync.Mutex
	last map[string]time.Time
}

// NewHostPacer creates a HostPacer with the given per-host minimum interval.
func NewHostPacer(interval time.Duration) *HostPacer {
	return &HostPacer{
		interval: interval,
		last:     make(map[string]time.Time),
	}
}

// Wait sleeps until the host's minimum interval has elapsed since the
// previous request, then records the new request time.
func (p *HostPacer) Wait(rawURL string) {
	host := hostOf(rawURL)

	p.mu.Lock()
	now := time.Now()
	next := p.last[host].Add(p.interval)
	if next.Before(now) {
		next = now
	}
	p.last[host] = next
	p.mu.Unlock()

	if d := time.Until(next); d > 0 {
		time.Sleep(d)
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}

// NopPacer performs no pacing. Used in tests.
type NopPacer struct{}

func (NopPacer) Wait(string) {}

// URLSet is a thread-safe set tracking URLs already seen within one run.
type URLSet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewURLSet creates an empty URLSet.
func NewURLSet() *URLSet {
	return &URLSet{seen: make(map[string]struct{})}
}

// Add returns true if the URL was newly added, false if already present.
func (s *URLSet) Add(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[url]; exists {
		return false
	}
	s.seen[url] = struct{}{}
	return true
}

// Contains returns true if the URL has already been seen.
func (s *URLSet) Contains(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.seen[url]
	return exists
}

// Size returns the number of unique URLs tracked.
func (s *URLSet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}
