// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heap

import "fmt"

// GCRequest records which generation's collection the allocator is
// asking for, set by a failed allocation and cleared once the
// collector (package gc) has run.
type GCRequest byte

const (
	GCNone GCRequest = iota
	GCNewSpace
	GCOldSpace
)

// oldSpaceGenerationThreshold is the survival-count at which an
// object allocated in new space is promoted to old space instead of
// being copied to the other new-space semispace again.
const oldSpaceGenerationThreshold = 1

// Heap owns the two generational spaces and the allocation-triggered
// GC handshake flag. It holds no tracing logic of its own — that is
// package gc's job, operating through the Header/Map/Array views this
// package exposes.
type Heap struct {
	New *Space
	Old *Space

	// NeedsGC is set by a failed Allocate call and must be checked
	// (and acted on, then cleared) by the caller at the next
	// safepoint; safepoints occur implicitly at the end of each
	// allocating stub.
	NeedsGC GCRequest

	// generation counts survivor ages; read by the collector to
	// decide new-space-survivor promotion.
	generation map[Address]int
}

// New constructs an empty heap with fresh new/old spaces.
func New() *Heap {
	return &Heap{
		New:        newSpace(NewSpace),
		Old:        newSpace(OldSpace),
		generation: make(map[Address]int),
	}
}

func (hp *Heap) pageFor(a Address) *Page {
	if p := hp.New.pageFor(a); p != nil {
		return p
	}
	return hp.Old.pageFor(a)
}

// SpaceOf reports which generation owns a, or false if neither does.
func (hp *Heap) SpaceOf(a Address) (Generation, bool) {
	if hp.New.pageFor(a) != nil {
		return NewSpace, true
	}
	if hp.Old.pageFor(a) != nil {
		return OldSpace, true
	}
	return 0, false
}

// Allocate reserves headerSize+payloadBytes bytes in new space,
// writes tag/repr into the header, and returns the object's address.
// On failure it records which generation's collection is needed and
// returns (0, false); the caller must run that collection and retry.
func (hp *Heap) Allocate(tag Tag, repr StringRepr, payloadBytes int64) (Address, bool) {
	a, ok := hp.New.Allocate(headerSize + payloadBytes)
	if !ok {
		hp.NeedsGC = GCNewSpace
		return 0, false
	}
	h := hp.HeaderAt(a)
	h.SetTag(tag)
	h.SetRepr(repr)
	h.ClearForward()
	return a, true
}

// AllocateTenured reserves space directly in old space, used by the
// collector when promoting a survivor and by the runtime for values
// known to be long-lived (interned literals in a root context).
func (hp *Heap) AllocateTenured(tag Tag, repr StringRepr, payloadBytes int64) (Address, bool) {
	a, ok := hp.Old.Allocate(headerSize + payloadBytes)
	if !ok {
		hp.NeedsGC = GCOldSpace
		return 0, false
	}
	h := hp.HeaderAt(a)
	h.SetTag(tag)
	h.SetRepr(repr)
	h.ClearForward()
	return a, true
}

// Survivals returns the survivor count recorded for a, used by the
// collector to decide whether a new-space survivor is promoted to old
// space this cycle.
func (hp *Heap) Survivals(a Address) int {
	return hp.generation[a]
}

// Survived increments a's survivor count and reports whether it has
// now crossed the promotion threshold.
func (hp *Heap) Survived(a Address) bool {
	hp.generation[a]++
	return hp.generation[a] >= oldSpaceGenerationThreshold
}

// ForgetSurvivor drops survivor bookkeeping for an address that has
// moved (its old address will never be queried again).
func (hp *Heap) ForgetSurvivor(a Address) {
	delete(hp.generation, a)
}

func (hp *Heap) String() string {
	return fmt.Sprintf("heap{new=%dB old=%dB}", hp.New.Live(), hp.Old.Live())
}
