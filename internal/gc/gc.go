// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gc implements Candor's stop-the-world, moving, generational
// garbage collector: a minor collection evacuates surviving
// new-space objects to old space (or back to a fresh new-space
// semispace), and a major collection evacuates surviving old-space
// objects into a fresh old space. Tracing runs over three
// worklists — grey (reachable, not yet traced), weak (deferred until
// the rest of the graph has settled) and black (old-space objects
// soft-marked while a minor collection runs, so their own edges are
// still walked without being moved).
package gc

import (
	"github.com/indutny/candor/internal/heap"
)

// Mode selects which generation is being collected.
type Mode byte

const (
	Minor Mode = iota // new space -> old/new
	Major             // old space -> old
)

// Root is a strong GC root: a slot, outside the managed heap, holding
// a Value that must be kept alive and updated if its target moves.
// Populated from the persistent handle registry and from the value
// slots of every live native (interpreter) frame.
type Root struct {
	Slot *heap.Value
}

// WeakRoot is a weak GC root: traced last, relocated if its target
// survived, otherwise cleared with Callback invoked on the dead value.
type WeakRoot struct {
	Slot     *heap.Value
	Callback func(heap.Value)
}

// RootSet is everything the collector needs from outside the heap to
// find the live object graph.
type RootSet struct {
	Strong []Root
	Weak   []WeakRoot
}

// Collector runs collections against a single Heap. It carries no
// state between collections; each Collect call is self-contained.
type Collector struct {
	hp *heap.Heap

	from, to   *heap.Space
	mode       Mode
	grey       []heap.Address // copied/in-place objects whose edges need tracing
	blackSeen  map[heap.Address]bool
	weakFields []weakField
}

// weakField defers an internal weak edge (currently just Object.proto)
// until the strong graph has settled, the same way host WeakRoots are
// deferred.
type weakField struct {
	owner heap.Address // already-relocated address of the owning object
	word  int
}

// New constructs a collector for hp.
func New(hp *heap.Heap) *Collector {
	return &Collector{hp: hp}
}

// Collect runs one collection cycle, relocating every Root and
// WeakRoot in roots in place, and returns statistics useful for
// diagnostics and tests.
func (c *Collector) Collect(mode Mode, roots RootSet) Stats {
	c.mode = mode
	c.blackSeen = make(map[heap.Address]bool)
	c.grey = nil
	c.weakFields = nil

	if mode == Minor {
		c.from = c.hp.New
		c.to = heap.NewTempSpace(heap.NewSpace)
	} else {
		c.from = c.hp.Old
		c.to = heap.NewTempSpace(heap.OldSpace)
	}

	before := c.from.Live()

	for i := range roots.Strong {
		*roots.Strong[i].Slot = c.evacuate(*roots.Strong[i].Slot)
	}
	c.drain()

	// Internal weak fields (Object.proto) settle alongside host weak
	// roots: both are resolved only once the strong graph is fully
	// traced, so a proto that is itself only weakly reachable from
	// elsewhere is correctly seen as dead.
	for _, wf := range c.weakFields {
		hdr := c.hp.HeaderAt(wf.owner)
		v := hdr.Value(wf.word)
		hdr.SetValue(wf.word, c.relocateIfSurvived(v))
	}
	for i := range roots.Weak {
		v := *roots.Weak[i].Slot
		nv := c.relocateIfSurvived(v)
		if nv.IsNil() && v.IsPointer() {
			if cb := roots.Weak[i].Callback; cb != nil {
				cb(v)
			}
		}
		*roots.Weak[i].Slot = nv
	}

	c.clearSoftMarks()

	if mode == Minor {
		c.hp.SwapNew(c.to)
	} else {
		c.hp.SwapOld(c.to)
	}

	return Stats{
		Mode:     mode,
		BytesIn:  before,
		BytesOut: c.to.Live(),
	}
}

// Stats summarizes one collection, useful for tests and diagnostics
// (cmd/candorobj).
type Stats struct {
	Mode     Mode
	BytesIn  int64
	BytesOut int64
}

// relocateIfSurvived returns v's relocated form if it already
// survived tracing (i.e. its old header is forwarded), or Nil if it
// was never reached — the "did this weak target survive" test used
// for both host WeakRoots and internal weak object fields.
func (c *Collector) relocateIfSurvived(v heap.Value) heap.Value {
	if v.IsSmi() || v.IsNil() {
		return v
	}
	addr := v.Addr()
	gen, ok := c.hp.SpaceOf(addr)
	if !ok {
		return v
	}
	if (c.mode == Minor && gen != heap.NewSpace) || (c.mode == Major && gen != heap.OldSpace) {
		// Target lives in the generation not being collected this
		// cycle: it was never at risk, so it "survived" unchanged.
		return v
	}
	hdr := c.hp.HeaderAt(addr)
	if !hdr.Forwarded() {
		return heap.Nil
	}
	return heap.PointerValue(hdr.ForwardAddr())
}

// evacuate is the strong-reference half of the tracing algorithm:
// unboxed/nil values pass through untouched; pointers into
// the generation not being collected are soft-marked and their edges
// are still traced (so cross-space pointers inside them stay
// correct) but the object itself never moves; pointers into the
// collected generation are copied (once) to their destination, with
// the old header left forwarding to the new address.
func (c *Collector) evacuate(v heap.Value) heap.Value {
	if v.IsSmi() || v.IsNil() {
		return v
	}
	addr := v.Addr()
	gen, ok := c.hp.SpaceOf(addr)
	if !ok {
		// Not a heap pointer this collector knows about (e.g. a
		// Function's code-page entry word, which is never tagged as
		// a Value in the first place). Defensive no-op.
		return v
	}
	collecting := (c.mode == Minor && gen == heap.NewSpace) || (c.mode == Major && gen == heap.OldSpace)
	if !collecting {
		if !c.blackSeen[addr] {
			c.blackSeen[addr] = true
			c.grey = append(c.grey, addr)
		}
		return v
	}
	hdr := c.hp.HeaderAt(addr)
	if hdr.Forwarded() {
		return heap.PointerValue(hdr.ForwardAddr())
	}
	dst := c.to
	if c.mode == Minor && c.hp.Survived(addr) {
		dst = c.hp.Old
	}
	size := c.hp.ObjectSize(addr)
	na, ok := c.hp.CopyRaw(dst, addr, size)
	if !ok {
		panic("gc: copy destination exhausted mid-collection")
	}
	hdr.SetForward(na)
	if dst == c.hp.Old {
		c.hp.ForgetSurvivor(addr)
	}
	c.grey = append(c.grey, na)
	return heap.PointerValue(na)
}

// drain processes the grey worklist until empty, tracing each
// object's outgoing edges per tag.
func (c *Collector) drain() {
	for len(c.grey) > 0 {
		a := c.grey[len(c.grey)-1]
		c.grey = c.grey[:len(c.grey)-1]
		c.traceEdges(a)
	}
}

func (c *Collector) traceEdges(a heap.Address) {
	hdr := c.hp.HeaderAt(a)
	switch hdr.Tag() {
	case heap.TagContext:
		n := int(hdr.Word(1))
		hdr.SetValue(0, c.evacuate(hdr.Value(0))) // parent
		for i := 0; i < n; i++ {
			word := 2 + i
			hdr.SetValue(word, c.evacuate(hdr.Value(word)))
		}
	case heap.TagFunction:
		fn := c.hp.FunctionView(a)
		if !fn.IsBinding() {
			hdr.SetValue(0, c.evacuate(hdr.Value(0))) // parent context
		}
		hdr.SetValue(2, c.evacuate(hdr.Value(2))) // root context
	case heap.TagObject:
		c.weakFields = append(c.weakFields, weakField{owner: a, word: 0}) // proto: weak
		hdr.SetValue(1, c.evacuate(hdr.Value(1)))                         // map: strong
	case heap.TagArray:
		hdr.SetValue(1, c.evacuate(hdr.Value(1))) // map: strong (no proto edge for arrays)
	case heap.TagMap:
		cap := int64(hdr.Word(0))
		for i := int64(0); i < cap; i++ {
			kw, vw := int(2+i), int(2+cap+i)
			k := hdr.Value(kw)
			if k.IsNil() {
				continue
			}
			hdr.SetValue(kw, c.evacuate(k))
			hdr.SetValue(vw, c.evacuate(hdr.Value(vw)))
		}
	case heap.TagString:
		if hdr.Repr() == heap.StringCons {
			hdr.SetValue(2, c.evacuate(hdr.Value(2)))
			hdr.SetValue(3, c.evacuate(hdr.Value(3)))
		}
	case heap.TagNumber, heap.TagBoolean, heap.TagCData, heap.TagNil:
		// No edges.
	}
}

// clearSoftMarks resets the black list's bookkeeping at end-of-cycle.
// The blackSeen map itself is discarded with the Collector; nothing
// in the heap's own state records a soft mark, so there is nothing
// further to undo on the heap side.
func (c *Collector) clearSoftMarks() {
	c.blackSeen = nil
}
