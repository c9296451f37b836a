// Package unitstore is the indexed collection of canonical transcript units
// for one room, bounded by an LRU eviction policy.
package unitstore

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kgr0831/relay/internal/roomcore"
)

// Store indexes Units by root, evicting the least-recently-used root once
// the configured bound is exceeded.
type Store struct {
	cache *lru.Cache[string, *roomcore.Unit]

	// onEvict is invoked with the root being evicted, so callers (the
	// Translation Cache) can clear dependent state in lockstep.
	onEvict func(root string)
}

// New builds a Store bounded to size entries (size must be > 0).
func New(size int, onEvict func(root string)) *Store {
	if size <= 0 {
		size = 1
	}
	s := &Store{onEvict: onEvict}
	c, err := lru.NewWithEvict[string, *roomcore.Unit](size, func(root string, _ *roomcore.Unit) {
		if s.onEvict != nil {
			s.onEvict(root)
		}
	})
	if err != nil {
		// size is validated above to be > 0, the only documented failure mode.
		panic(err)
	}
	s.cache = c
	return s
}

// Peek looks up the current Unit for root without changing recency.
func (s *Store) Peek(root string) (*roomcore.Unit, bool) {
	return s.cache.Peek(root)
}

// Get looks up the current Unit for root, marking it most-recently-used.
func (s *Store) Get(root string) (*roomcore.Unit, bool) {
	return s.cache.Get(root)
}

// Replace deletes then re-inserts the unit for its root, per §4.1 step 5:
// "Replace the Unit atomically (delete-then-insert to update LRU recency)".
// The delete half does not fire onEvict; only LRU pressure from the insert does.
func (s *Store) Replace(u *roomcore.Unit) {
	cb := s.onEvict
	s.onEvict = nil
	s.cache.Remove(u.Root)
	s.onEvict = cb
	s.cache.Add(u.Root, u)
}

// Delete removes the unit for root, if any, without counting as an eviction
// callback trigger (used by explicit cancellation, not LRU pressure).
func (s *Store) Delete(root string) {
	cb := s.onEvict
	s.onEvict = nil
	s.cache.Remove(root)
	s.onEvict = cb
}

// Len reports the number of tracked roots.
func (s *Store) Len() int {
	return s.cache.Len()
}

// Clear empties the store (Room Supervisor reset). The underlying cache
// invokes onEvict per removed entry, same as natural LRU pressure.
func (s *Store) Clear() {
	s.cache.Purge()
}

// Roots returns every tracked root, oldest first.
func (s *Store) Roots() []string {
	return s.cache.Keys()
}
