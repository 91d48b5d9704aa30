// Copyright 2012, Fedor Indutny.

package pic

import (
	"testing"

	"github.com/indutny/candor/internal/heap"
)

func newObj(t *testing.T, hp *heap.Heap) heap.ObjectView {
	t.Helper()
	a, ok := hp.NewObject()
	if !ok {
		t.Fatalf("NewObject failed")
	}
	return hp.ObjectView(a)
}

func key(t *testing.T, hp *heap.Heap, s string) heap.Value {
	t.Helper()
	a, ok := hp.NewString(s)
	if !ok {
		t.Fatalf("NewString failed")
	}
	return heap.PointerValue(a)
}

func TestMissThenHitAfterRecord(t *testing.T) {
	hp := heap.New()
	obj := newObj(t, hp)
	k := key(t, hp, "x")
	if _, ok := obj.Set(k, heap.SmiValue(1)); !ok {
		t.Fatalf("Set failed")
	}
	idx, _ := obj.Map().Find(k)

	s := New()
	if _, ok := s.Lookup(obj); ok {
		t.Fatalf("empty cache should miss")
	}
	s.Record(obj, idx)
	if off, ok := s.Lookup(obj); !ok || off != idx {
		t.Fatalf("want cached hit at offset %d, got %d ok=%v", idx, off, ok)
	}
	if hits, misses := s.Stats(); hits != 1 || misses != 1 {
		t.Fatalf("want 1 hit 1 miss, got hits=%d misses=%d", hits, misses)
	}
}

func TestShapeChangeInvalidatesCache(t *testing.T) {
	hp := heap.New()
	obj := newObj(t, hp)
	k := key(t, hp, "x")
	obj.Set(k, heap.SmiValue(1))
	idx, _ := obj.Map().Find(k)

	s := New()
	s.Record(obj, idx)

	// Grow the map past its load factor by adding enough distinct keys
	// to force a rehash, which changes Version (and may change Addr).
	for i := 0; i < 16; i++ {
		obj.Set(key(t, hp, string(rune('a'+i))), heap.SmiValue(int64(i)))
	}

	if _, ok := s.Lookup(obj); ok {
		t.Fatalf("cache entry recorded against the old shape should no longer hit")
	}
}

func TestMegamorphicFallbackAfterMaxSizeShapes(t *testing.T) {
	s := New()
	hp := heap.New()
	for i := 0; i < MaxSize; i++ {
		obj := newObj(t, hp)
		k := key(t, hp, "x")
		obj.Set(k, heap.SmiValue(1))
		idx, _ := obj.Map().Find(k)
		s.Record(obj, idx)
	}
	if s.Megamorphic() {
		t.Fatalf("should not be megamorphic after exactly MaxSize distinct shapes")
	}

	obj := newObj(t, hp)
	k := key(t, hp, "x")
	obj.Set(k, heap.SmiValue(1))
	idx, _ := obj.Map().Find(k)
	s.Record(obj, idx)
	if !s.Megamorphic() {
		t.Fatalf("want megamorphic after exceeding MaxSize distinct shapes")
	}

	s.Reset()
	if s.Megamorphic() {
		t.Fatalf("Reset should clear megamorphic state")
	}
	if _, ok := s.Lookup(obj); ok {
		t.Fatalf("Reset should clear all entries")
	}
}
