// Package blob hands generated files over from one request to a following one.
package blob

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long a stored entry stays retrievable.
const DefaultTTL = 5 * time.Minute

type Entry struct {
	ID        string
	Data      []byte
	FileName  string
	ExpiresAt time.Time
}

// Store is an in-memory, single-read store of short lived entries.
// Expired entries are swept on every Put; there is no background timer.
type Store struct {
	mu      sync.Mutex
	entries map[string]Entry
	ttl     time.Duration

	// NowFunc is mockable in tests.
	NowFunc func() time.Time
}

func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		entries: make(map[string]Entry),
		ttl:     ttl,
		NowFunc: time.Now,
	}
}

// Put stores data under a fresh random id and returns it.
func (s *Store) Put(data []byte, fileName string) string {
	id := uuid.New().String()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.NowFunc()
	s.evictExpiredLocked(now)
	s.entries[id] = Entry{
		ID:        id,
		Data:      data,
		FileName:  fileName,
		ExpiresAt: now.Add(s.ttl),
	}
	return id
}

// Get consumes the entry stored under id. Missing, consumed and expired entries are all reported as absent.
func (s *Store) Get(id string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return Entry{}, false
	}

	delete(s.entries, id)
	if !s.NowFunc().Before(entry.ExpiresAt) {
		return Entry{}, false
	}
	return entry, true
}

// Len returns the number of entries held, expired ones not yet swept included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) evictExpiredLocked(now time.Time) {
	for id, entry := range s.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(s.entries, id)
		}
	}
}
