// Copyright 2012, Fedor Indutny.

package sourcemap

import "testing"

func TestCommitResolvesQueuedOffsets(t *testing.T) {
	m := New()
	m.Push(0, 0)
	m.Push(8, 6)
	m.Commit("a.candor", "a = 1\nb = 2", 0x1000)

	e, ok := m.Get(0x1000)
	if !ok || e.Offset != 0 {
		t.Fatalf("want entry at base address with offset 0, got %+v ok=%v", e, ok)
	}
	e, ok = m.Get(0x1008)
	if !ok || e.Offset != 6 {
		t.Fatalf("want entry at base+8 with offset 6, got %+v ok=%v", e, ok)
	}
}

func TestGetFallsBackToNearestPrecedingEntry(t *testing.T) {
	m := New()
	m.Push(0, 0)
	m.Push(10, 5)
	m.Commit("a.candor", "a = 1", 0x2000)

	e, ok := m.Get(0x2007)
	if !ok || e.Offset != 0 {
		t.Fatalf("want the entry at 0x2000 to cover an address between entries, got %+v ok=%v", e, ok)
	}
}

func TestGetMissesBeforeFirstEntry(t *testing.T) {
	m := New()
	m.Push(4, 0)
	m.Commit("a.candor", "a = 1", 0x3000)

	if _, ok := m.Get(0x2fff); ok {
		t.Fatalf("address before the first committed entry should miss")
	}
}

func TestLineColCountsNewlines(t *testing.T) {
	e := Entry{Source: "a = 1\nb = 2\nc = 3", Offset: 13}
	line, col := e.LineCol()
	if line != 3 || col != 2 {
		t.Fatalf("want line 3 col 2, got line %d col %d", line, col)
	}
}
