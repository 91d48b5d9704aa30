// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heap

import "fmt"

// Generation distinguishes new space from old space: objects are
// allocated in new space and promoted to old space when they survive
// a new-space collection.
type Generation byte

const (
	NewSpace Generation = iota
	OldSpace
)

// A Space is a sequence of fixed-granularity Pages, bump-allocated
// within each page. Modeled on the original source's Space/Page split
// (src/heap.h): "Both spaces are lists of allocated buffers (pages)
// with a stack structure."
type Space struct {
	gen   Generation
	pages []*Page
}

func newSpace(gen Generation) *Space {
	return &Space{gen: gen}
}

// NewTempSpace creates an unattached Space of the given generation,
// used by the collector as a copy destination before it is swapped
// in to replace a Heap's live space.
func NewTempSpace(gen Generation) *Space {
	return newSpace(gen)
}

// Generation reports which generation this space represents.
func (s *Space) Generation() Generation { return s.gen }

// Allocate reserves n bytes somewhere in the space, creating a new
// page if no existing page has room. Returns false if a new page
// could not be mapped (caller escalates to a collection or the older
// generation).
func (s *Space) Allocate(n int64) (Address, bool) {
	for _, p := range s.pages {
		if a, ok := p.bump(n); ok {
			return a, true
		}
	}
	p, err := newPage()
	if err != nil {
		return 0, false
	}
	s.pages = append(s.pages, p)
	a, ok := p.bump(n)
	if !ok {
		// n is larger than an entire page; this runtime has no
		// large-object space, so this is a configuration error
		// rather than a recoverable allocation failure.
		panic(fmt.Sprintf("heap: allocation of %d bytes exceeds page size %d", n, pageSize))
	}
	return a, true
}

// pageFor returns the page containing a, or nil if a is not owned by
// this space.
func (s *Space) pageFor(a Address) *Page {
	for _, p := range s.pages {
		if p.Contains(a) {
			return p
		}
	}
	return nil
}

// Reset discards all pages, freeing their backing mappings. Used by
// SwapNew to free the space a collection has just copied its
// survivors out of, before the other space takes its place.
func (s *Space) Reset() {
	for _, p := range s.pages {
		p.free()
	}
	s.pages = s.pages[:0]
}

// Live reports the number of bytes bump-allocated across all pages
// (not bytes reachable — just bytes handed out since the space was
// last reset).
func (s *Space) Live() int64 {
	var n int64
	for _, p := range s.pages {
		n += p.top
	}
	return n
}
