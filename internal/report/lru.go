package report

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// LRUStore is an in-memory LRU cache that delegates to a backing Store on miss.
type LRUStore struct {
	cache *lru.Cache[string, *Run]
	back  Store
}

// NewLRUStore creates an LRU cache with the given capacity that delegates
// to back on cache misses. Capacities below 1 are raised to 1.
func NewLRUStore(size int, back Store) *LRUStore {
	if size < 1 {
		size = 1
	}
	// lru.New only fails for non-positive sizes.
	cache, _ := lru.New[string, *Run](size)
	return &LRUStore{cache: cache, back: back}
}

// Save writes the run to the cache and delegates to the backing store.
func (s *LRUStore) Save(run *Run) error {
	s.cache.Add(run.ID, run)
	return s.back.Save(run)
}

// Load checks the cache first. On miss, loads from the backing store and
// promotes the run into the cache.
func (s *LRUStore) Load(runID string) (*Run, error) {
	if run, ok := s.cache.Get(runID); ok {
		return run, nil
	}
	run, err := s.back.Load(runID)
	if err != nil {
		return nil, err
	}
	s.cache.Add(runID, run)
	return run, nil
}

// Len returns the number of cached runs.
func (s *LRUStore) Len() int {
	return s.cache.Len()
}
