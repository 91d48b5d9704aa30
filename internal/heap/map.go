// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heap

// A Map is the open-addressed hash table that backs both Object and
// Array property storage. Payload layout:
//
//	word 0: capacity (always a power of two)
//	word 1: version  (incremented on every shape-changing mutation;
//	        inline caches key their validity off this counter instead
//	        of a sentinel proto slot)
//	word 2 .. 2+capacity-1:            key slots
//	word 2+capacity .. 2+2*capacity-1: value slots
//
// Every (key, value) pair is written together by construction: Set
// either occupies both slots of a pair or neither.
type MapView struct {
	h *Heap
	a Address
}

func (hp *Heap) MapView(a Address) MapView {
	return MapView{hp, a}
}

const (
	mapCapacityWord = 0
	mapVersionWord  = 1
	mapSlotsBase    = 2

	mapMinCapacity = 8
	mapLoadFactor  = 0.75
)

// NewMap allocates an empty Map with the given minimum capacity
// (rounded up to a power of two, at least mapMinCapacity).
func (hp *Heap) NewMap(minCapacity int64) (Address, bool) {
	cap := int64(mapMinCapacity)
	for cap < minCapacity {
		cap *= 2
	}
	a, ok := hp.Allocate(TagMap, 0, 16+16*cap)
	if !ok {
		return 0, false
	}
	hdr := hp.HeaderAt(a)
	hdr.SetWord(mapCapacityWord, uint64(cap))
	hdr.SetWord(mapVersionWord, 0)
	for i := int64(0); i < cap; i++ {
		hdr.SetValue(int(mapSlotsBase+i), Nil)
		hdr.SetValue(int(mapSlotsBase+cap+i), Nil)
	}
	return a, true
}

func (m MapView) header() Header { return m.h.HeaderAt(m.a) }

// Addr returns the map's heap address, stable for as long as the map
// hasn't moved under a collection. internal/pic keys its inline-cache
// entries on this alongside Version, since a GC-moved but
// shape-unchanged map still invalidates any cache entry recorded
// against its old address.
func (m MapView) Addr() Address { return m.a }

// Capacity returns the number of (key, value) slot pairs.
func (m MapView) Capacity() int64 {
	return int64(m.header().Word(mapCapacityWord))
}

// Version returns the map's shape-change counter.
func (m MapView) Version() uint32 {
	return uint32(m.header().Word(mapVersionWord))
}

func (m MapView) bumpVersion() {
	hdr := m.header()
	hdr.SetWord(mapVersionWord, hdr.Word(mapVersionWord)+1)
}

// KeyAt and ValueAt read slot i directly (0 <= i < Capacity).
func (m MapView) KeyAt(i int64) Value {
	return m.header().Value(int(mapSlotsBase + i))
}

func (m MapView) ValueAt(i int64) Value {
	cap := m.Capacity()
	return m.header().Value(int(mapSlotsBase + cap + i))
}

func (m MapView) setSlot(i int64, key, value Value) {
	cap := m.Capacity()
	hdr := m.header()
	hdr.SetValue(int(mapSlotsBase+i), key)
	hdr.SetValue(int(mapSlotsBase+cap+i), value)
}

func valuesEqual(h *Heap, a, b Value) bool {
	if a == b {
		return true
	}
	if a.IsPointer() && b.IsPointer() {
		ha, hb := h.HeaderAt(a.Addr()), h.HeaderAt(b.Addr())
		if ha.Tag() == TagString && hb.Tag() == TagString {
			return h.StringView(a.Addr()).Equal(h.StringView(b.Addr()))
		}
	}
	return false
}

// Find returns the slot index that holds key, or the first empty
// slot key would probe into if absent.
func (m MapView) Find(key Value) (idx int64, found bool) {
	cap := m.Capacity()
	mask := cap - 1
	start := int64(m.h.HashValue(key)) & mask
	for probe := int64(0); probe < cap; probe++ {
		i := (start + probe) & mask
		k := m.KeyAt(i)
		if k.IsNil() {
			return i, false
		}
		if valuesEqual(m.h, k, key) {
			return i, true
		}
	}
	// Table is full of non-matching keys: caller must grow first.
	return -1, false
}

// Get looks up key, reporting whether it is present.
func (m MapView) Get(key Value) (Value, bool) {
	i, found := m.Find(key)
	if !found {
		return Nil, false
	}
	return m.ValueAt(i), true
}

// loadExceeded reports whether inserting one more key would exceed
// the table's load factor.
func (m MapView) loadExceeded(occupied int64) bool {
	return float64(occupied+1) > float64(m.Capacity())*mapLoadFactor
}

// occupied counts non-nil key slots.
func (m MapView) occupied() int64 {
	var n int64
	cap := m.Capacity()
	for i := int64(0); i < cap; i++ {
		if !m.KeyAt(i).IsNil() {
			n++
		}
	}
	return n
}

// Set inserts or updates key -> value. If the table must grow to
// satisfy the load factor (or ran out of probe slots), it allocates a
// replacement Map, rehashes every existing pair into it, and returns
// its address with grew=true; the caller (Object/Array) must update
// its stored Map pointer to the returned address.
func (m MapView) Set(key, value Value) (newMap Address, grew bool, ok bool) {
	occ := m.occupied()
	if i, found := m.Find(key); found {
		m.setSlot(i, key, value)
		return m.a, false, true
	} else if i >= 0 && !m.loadExceeded(occ) {
		m.setSlot(i, key, value)
		m.bumpVersion()
		return m.a, false, true
	}
	grownAddr, ok := m.grow()
	if !ok {
		return 0, false, false
	}
	grownView := m.h.MapView(grownAddr)
	i, _ := grownView.Find(key)
	grownView.setSlot(i, key, value)
	grownView.bumpVersion()
	return grownAddr, true, true
}

// Delete removes key, if present, restoring the (nil, nil) invariant
// at that slot. Linear-probe deletion requires closing the probe
// chain, so this rehashes the cluster following the removed slot
// rather than leaving a tombstone.
func (m MapView) Delete(key Value) bool {
	i, found := m.Find(key)
	if !found {
		return false
	}
	cap := m.Capacity()
	mask := cap - 1
	m.setSlot(i, Nil, Nil)
	m.bumpVersion()
	j := i
	for {
		j = (j + 1) & mask
		k := m.KeyAt(j)
		if k.IsNil() {
			break
		}
		v := m.ValueAt(j)
		m.setSlot(j, Nil, Nil)
		ii, _ := m.Find(k)
		m.setSlot(ii, k, v)
	}
	return true
}

func (m MapView) grow() (Address, bool) {
	newCap := m.Capacity() * 2
	na, ok := m.h.NewMap(newCap)
	if !ok {
		return 0, false
	}
	nv := m.h.MapView(na)
	cap := m.Capacity()
	for i := int64(0); i < cap; i++ {
		k := m.KeyAt(i)
		if k.IsNil() {
			continue
		}
		idx, _ := nv.Find(k)
		nv.setSlot(idx, k, m.ValueAt(i))
	}
	return na, true
}

// Keys returns every occupied key, in slot order (an implementation
// detail; the language does not promise enumeration order).
func (m MapView) Keys() []Value {
	var keys []Value
	cap := m.Capacity()
	for i := int64(0); i < cap; i++ {
		if k := m.KeyAt(i); !k.IsNil() {
			keys = append(keys, k)
		}
	}
	return keys
}
