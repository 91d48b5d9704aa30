// Copyright 2012, Fedor Indutny.

package regalloc

import (
	"testing"

	"github.com/indutny/candor/internal/hir"
	"github.com/indutny/candor/internal/lir"
	"github.com/indutny/candor/internal/parse"
	"github.com/indutny/candor/internal/scope"
)

func buildLIR(t *testing.T, src string) *lir.Func {
	t.Helper()
	prog, err := parse.Parse(src)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	info := scope.Analyze(prog)
	h := hir.Build(prog, info)
	l := lir.Build(h)
	return l.Top
}

func TestEveryVirtualGetsALocation(t *testing.T) {
	fn := buildLIR(t, `
		a = 1
		b = 2
		a + b
	`)
	res := Allocate(fn)
	if len(res.Intervals) != len(fn.Virtuals) {
		t.Fatalf("want an interval built for every virtual: got %d intervals for %d virtuals", len(res.Intervals), len(fn.Virtuals))
	}
	seen := make(map[*lir.Virtual]bool)
	for _, iv := range res.Intervals {
		seen[iv.Virtual] = true
	}
	for _, v := range fn.Virtuals {
		if !seen[v] {
			t.Fatalf("virtual %d was never assigned an interval", v.ID)
		}
	}
}

func TestOverflowingRegistersSpillsSomething(t *testing.T) {
	fn := buildLIR(t, `
		a = 1
		b = 2
		c = 3
		d = 4
		e = 5
		f = 6
		g = 7
		h = 8
		a + b + c + d + e + f + g + h
	`)
	res := Allocate(fn)
	if res.SpillSlots == 0 {
		t.Fatalf("want at least one spill once live virtuals exceed RegisterCount=%d", RegisterCount)
	}
}

func TestNonOverlappingIntervalsShareARegister(t *testing.T) {
	fn := buildLIR(t, `
		a = 1
		a
		b = 2
		b
	`)
	res := Allocate(fn)
	if res.SpillSlots != 0 {
		t.Fatalf("sequential non-overlapping locals shouldn't need a spill, got %d slots", res.SpillSlots)
	}
}
