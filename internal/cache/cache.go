// Package cache provides a small in-process TTL store for provider results.
// Eviction happens lazily on read or through an explicit Clear; there is no
// background sweeper.
package cache

import (
	"fmt"
	"sync"
	"time"
)

// Kind partitions cache entries so each class of data can carry its own TTL.
type Kind string

const (
	KindQuote         Kind = "quote"
	KindHistory       Kind = "history"
	KindIntraday      Kind = "intraday"
	KindFallbackDaily Kind = "fallback_daily"
)

// Key identifies one cached provider result.
type Key struct {
	Symbol      string
	Window      string
	Granularity string
	Kind        Kind
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s|%s", k.Kind, k.Symbol, k.Window, k.Granularity)
}

type entry struct {
	value     interface{}
	fetchedAt time.Time
	ttl       time.Duration
}

// Store is a mutex-guarded TTL map. A zero-value Store is not usable; call New.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{entries: make(map[string]entry), now: time.Now}
}

// NewWithClock creates a Store with an injected clock, for tests.
func NewWithClock(now func() time.Time) *Store {
	return &Store{entries: make(map[string]entry), now: now}
}

// Get returns the cached value for key if it is present and within its TTL.
// Expired entries are removed on the way out.
func (s *Store) Get(key Key) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key.String()
	e, ok := s.entries[k]
	if !ok {
		return nil, false
	}
	if s.now().Sub(e.fetchedAt) > e.ttl {
		delete(s.entries, k)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with the given TTL.
func (s *Store) Set(key Key, value interface{}, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key.String()] = entry{value: value, fetchedAt: s.now(), ttl: ttl}
}

// Clear drops every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]entry)
}

// Len returns the number of entries, expired ones included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
