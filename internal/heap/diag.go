// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heap

import "fmt"

// Edge is one outgoing reference from an object, labeled for display
// by cmd/candorobj's graph dump.
type Edge struct {
	Label string
	To    Value
}

// Edges returns every heap-pointer-valued word reachable directly
// from the object at a, labeled by role. Nil and smi words are
// included verbatim (the caller filters with Value.IsPointer if it
// only wants real edges) so a histogram of "how many slots are
// actually empty" stays possible too.
func (hp *Heap) Edges(a Address) []Edge {
	h := hp.HeaderAt(a)
	switch h.Tag() {
	case TagObject:
		o := hp.ObjectView(a)
		return []Edge{{"proto", o.Proto()}, {"map", o.mapValue()}}
	case TagArray:
		ar := hp.ArrayView(a)
		return []Edge{{"proto", ar.Proto()}, {"map", ar.mapValue()}}
	case TagFunction:
		f := hp.FunctionView(a)
		return []Edge{{"parent", f.Parent()}, {"root", f.Root()}}
	case TagContext:
		c := hp.ContextView(a)
		edges := []Edge{{"parent", c.Parent()}}
		for i := 0; i < c.Count(); i++ {
			edges = append(edges, Edge{fmt.Sprintf("slot%d", i), c.Slot(i)})
		}
		return edges
	case TagMap:
		m := hp.MapView(a)
		var edges []Edge
		for i := int64(0); i < m.Capacity(); i++ {
			k := m.KeyAt(i)
			if k.IsNil() {
				continue
			}
			edges = append(edges, Edge{"key", k}, Edge{"value", m.ValueAt(i)})
		}
		return edges
	case TagString:
		if h.Repr() == StringCons {
			return []Edge{{"left", h.Value(consLeftWord)}, {"right", h.Value(consRightWord)}}
		}
	}
	return nil
}

// Walk visits every live (bump-allocated) object across both
// generations in allocation order, calling fn with its address, tag,
// and occupied size in bytes. It exists for diagnostics
// (cmd/candorobj's heap histogram and object graph) rather than for
// the collector, which never needs a linear scan of its own — tracing
// follows pointers outward from roots instead.
func (hp *Heap) Walk(fn func(a Address, tag Tag, size int64)) {
	for _, sp := range []*Space{hp.New, hp.Old} {
		for _, p := range sp.pages {
			var off int64
			for off < p.top {
				a := p.base.Add(off)
				h := hp.HeaderAt(a)
				size := hp.ObjectSize(a)
				fn(a, h.Tag(), size)
				off += align(size)
			}
		}
	}
}
