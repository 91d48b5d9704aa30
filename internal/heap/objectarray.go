// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heap

// Object and Array payload layout:
//
//	word 0: proto (Value, weakly traced by the collector)
//	word 1: map   (Value pointing at a Map object)
//	word 2: length (Array only; unused by Object)
const (
	objProtoWord  = 0
	objMapWord    = 1
	arrLengthWord = 2
)

// ObjectView is a typed view over an Object or Array's proto/map
// pair. Array embeds it and adds the length word and the dense
// fast path.
type ObjectView struct {
	h *Heap
	a Address
}

func (hp *Heap) ObjectView(a Address) ObjectView { return ObjectView{hp, a} }

// NewObject allocates an empty object with no prototype.
func (hp *Heap) NewObject() (Address, bool) {
	mapAddr, ok := hp.NewMap(mapMinCapacity)
	if !ok {
		return 0, false
	}
	a, ok := hp.Allocate(TagObject, 0, 16)
	if !ok {
		return 0, false
	}
	hdr := hp.HeaderAt(a)
	hdr.SetValue(objProtoWord, Nil)
	hdr.SetValue(objMapWord, PointerValue(mapAddr))
	return a, true
}

func (o ObjectView) header() Header { return o.h.HeaderAt(o.a) }

func (o ObjectView) Proto() Value         { return o.header().Value(objProtoWord) }
func (o ObjectView) SetProto(v Value)     { o.header().SetValue(objProtoWord, v); o.Map().bumpVersion() }
func (o ObjectView) mapValue() Value      { return o.header().Value(objMapWord) }
func (o ObjectView) setMapValue(v Value)  { o.header().SetValue(objMapWord, v) }
func (o ObjectView) Map() MapView         { return o.h.MapView(o.mapValue().Addr()) }

// Get looks up key on this object only (no prototype walk — that is
// the PIC/runtime LookupProperty's job, since it differs between
// Object and Array and needs the miss-handling hooks of component I).
func (o ObjectView) Get(key Value) (Value, bool) {
	return o.Map().Get(key)
}

// Set stores key -> value, growing the backing Map if needed and
// rewriting this object's map pointer when it does. Returns whether
// the map identity changed (shape change: PIC sites keyed on the
// old Map must be invalidated — naturally true, since Find/Version
// already bumped on the new Map).
func (o ObjectView) Set(key, value Value) (shapeChanged bool, ok bool) {
	newMap, grew, ok := o.Map().Set(key, value)
	if !ok {
		return false, false
	}
	if grew {
		o.setMapValue(PointerValue(newMap))
	}
	return grew, true
}

// Delete removes key from this object's own properties.
func (o ObjectView) Delete(key Value) bool {
	return o.Map().Delete(key)
}

// Keys enumerates this object's own property keys.
func (o ObjectView) Keys() []Value {
	return o.Map().Keys()
}

// Clone allocates a shallow copy: a fresh Object sharing this one's
// proto and a structurally-copied Map (so subsequent mutation of
// either does not affect the other).
func (o ObjectView) Clone() (Address, bool) {
	na, ok := o.h.NewObject()
	if !ok {
		return 0, false
	}
	clone := o.h.ObjectView(na)
	clone.SetProto(o.Proto())
	srcMap := o.Map()
	cap := srcMap.Capacity()
	for i := int64(0); i < cap; i++ {
		k := srcMap.KeyAt(i)
		if k.IsNil() {
			continue
		}
		newMap, grew, ok := clone.Map().Set(k, srcMap.ValueAt(i))
		if !ok {
			return 0, false
		}
		// Set may have grown clone's map; Clone calls MapView.Set
		// directly, so mirror ObjectView.Set's bookkeeping here.
		if grew {
			clone.setMapValue(PointerValue(newMap))
		}
	}
	return na, true
}

// ArrayView adds length tracking and the dense small-index fast path
// to ObjectView.
type ArrayView struct {
	ObjectView
}

func (hp *Heap) ArrayView(a Address) ArrayView {
	return ArrayView{ObjectView{hp, a}}
}

// NewArray allocates an empty array.
func (hp *Heap) NewArray() (Address, bool) {
	mapAddr, ok := hp.NewMap(mapMinCapacity)
	if !ok {
		return 0, false
	}
	a, ok := hp.Allocate(TagArray, 0, 24)
	if !ok {
		return 0, false
	}
	hdr := hp.HeaderAt(a)
	hdr.SetValue(objProtoWord, Nil)
	hdr.SetValue(objMapWord, PointerValue(mapAddr))
	hdr.SetWord(arrLengthWord, 0)
	return a, true
}

func (a ArrayView) Length() int64 {
	return int64(a.header().Word(arrLengthWord))
}

func (a ArrayView) setLength(n int64) {
	a.header().SetWord(arrLengthWord, uint64(n))
}

// dense reports whether this array's length is at most
// kDenseLengthMax. It does not change how an index is found: GetIndex
// probes the Map either way.
func (a ArrayView) dense() bool {
	return a.Length() <= kDenseLengthMax
}

// GetIndex reads array index i, honoring the dense/hash-probing split.
func (a ArrayView) GetIndex(i int64) (Value, bool) {
	if a.dense() && i >= 0 && i < a.Length() {
		if v, ok := a.Map().Get(SmiValue(i)); ok {
			return v, true
		}
		return Nil, true // never-assigned dense slot reads as nil
	}
	return a.Map().Get(SmiValue(i))
}

// SetIndex writes array index i, growing Length when i extends past
// the current end (e.g. `a = []; a[3] = 4` leaves `sizeof a == 4`).
func (a ArrayView) SetIndex(i int64, v Value) bool {
	_, ok := a.Set(SmiValue(i), v)
	if !ok {
		return false
	}
	if i+1 > a.Length() {
		a.setLength(i + 1)
	}
	return true
}

// Push appends v at the current length.
func (a ArrayView) Push(v Value) bool {
	return a.SetIndex(a.Length(), v)
}
