package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps keys in process memory.  It provides the same atomic
// single-key semantics as the remote backends, which makes it suitable for
// tests and single-instance development.  It must not be used when more than
// one instance serves traffic: locks would not be shared.
//
// Expired entries are removed lazily on access.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
	expiry map[string]time.Time
	now    func() time.Time
}

// NewMemoryStore returns an empty store using the wall clock.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]string),
		expiry: make(map[string]time.Time),
		now:    time.Now,
	}
}

// WithClock replaces the time source, letting tests move time forward.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// live reports whether key exists and has not expired.  Callers hold mu.
func (s *MemoryStore) live(key string) bool {
	if _, ok := s.values[key]; !ok {
		return false
	}
	if exp, ok := s.expiry[key]; ok && !s.now().Before(exp) {
		delete(s.values, key)
		delete(s.expiry, key)
		return false
	}
	return true
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.live(key) {
		return "", false, nil
	}
	return s.values[key], true, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string, opts SetOptions) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if opts.OnlyIfAbsent && s.live(key) {
		return false, nil
	}
	s.values[key] = value
	if opts.TTL > 0 {
		s.expiry[key] = s.now().Add(opts.TTL)
	} else {
		delete(s.expiry, key)
	}
	return true, nil
}

func (s *MemoryStore) Swap(_ context.Context, key, old, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.live(key) || s.values[key] != old {
		return false, nil
	}
	s.values[key] = value
	if ttl > 0 {
		s.expiry[key] = s.now().Add(ttl)
	} else {
		delete(s.expiry, key)
	}
	return true, nil
}

func (s *MemoryStore) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	delete(s.expiry, key)
	return nil
}

func (s *MemoryStore) TTL(_ context.Context, key string) (time.Duration, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.live(key) {
		return 0, false, nil
	}
	exp, ok := s.expiry[key]
	if !ok {
		return 0, false, nil
	}
	return exp.Sub(s.now()), true, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
