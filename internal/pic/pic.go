// Copyright 2012, Fedor Indutny.

// Package pic implements a polymorphic inline cache for property
// access: each call site remembers up to MaxSize (map, offset) pairs
// it has already seen, so a repeated property load/store on a shape
// it recognizes skips the full hash lookup in internal/heap's Map.
package pic

import "github.com/indutny/candor/internal/heap"

// MaxSize bounds how many distinct shapes one call site's cache will
// remember before falling back to the megamorphic path (a plain Map
// lookup on every call, with no further caching attempted).
const MaxSize = 5

// entry is one cached (shape, offset) pair: the map the object had
// when this entry was recorded, the version that map was at (Map.version
// bumps on every shape-changing mutation — see internal/heap), and the
// slot index the property was found at under that shape.
type entry struct {
	mapAddr heap.Address
	version uint32
	offset  int64
}

// Site is one property-access call site's cache state.
type Site struct {
	entries      [MaxSize]entry
	size         int
	megamorphic  bool
	hits, misses int
}

// New returns an empty cache for one call site.
func New() *Site { return &Site{} }

// Lookup consults the cache for obj's current map. It returns the
// cached slot offset and true on a hit; on a miss (unseen shape, or
// the cached shape's version moved on) it returns ok=false and the
// caller must fall back to a full Map lookup and call Record.
func (s *Site) Lookup(obj heap.ObjectView) (offset int64, ok bool) {
	if s.megamorphic {
		s.misses++
		return 0, false
	}
	m := obj.Map()
	addr := m.Addr()
	version := m.Version()
	for i := 0; i < s.size; i++ {
		e := s.entries[i]
		if e.mapAddr == addr && e.version == version {
			s.hits++
			return e.offset, true
		}
	}
	s.misses++
	return 0, false
}

// Record adds a new (map, offset) pair to the cache after a miss. When
// the cache already holds MaxSize shapes and another distinct one is
// recorded, the site is marked megamorphic and stops growing: every
// further lookup misses and the caller performs the
// full lookup without being cached, since a cache this site keeps
// missing on is one the fixed-size stub can never keep up with.
func (s *Site) Record(obj heap.ObjectView, offset int64) {
	if s.megamorphic {
		return
	}
	m := obj.Map()
	addr := m.Addr()
	version := m.Version()
	for i := 0; i < s.size; i++ {
		if s.entries[i].mapAddr == addr {
			s.entries[i].version = version
			s.entries[i].offset = offset
			return
		}
	}
	if s.size == MaxSize {
		s.megamorphic = true
		return
	}
	s.entries[s.size] = entry{mapAddr: addr, version: version, offset: offset}
	s.size++
}

// Megamorphic reports whether this site gave up caching after seeing
// more than MaxSize distinct shapes.
func (s *Site) Megamorphic() bool { return s.megamorphic }

// Stats returns the running hit/miss counters, useful for diagnostics.
func (s *Site) Stats() (hits, misses int) { return s.hits, s.misses }

// Reset clears a site back to empty, used by tests and by a
// shape-invalidation sweep that decided a full rebuild is cheaper than
// per-entry eviction.
func (s *Site) Reset() {
	*s = Site{}
}
