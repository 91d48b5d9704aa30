// Copyright 2012, Fedor Indutny.

package codegen

import (
	"testing"

	"github.com/indutny/candor/internal/gc"
	"github.com/indutny/candor/internal/handle"
	"github.com/indutny/candor/internal/heap"
	"github.com/indutny/candor/internal/hir"
	"github.com/indutny/candor/internal/lir"
	"github.com/indutny/candor/internal/parse"
	"github.com/indutny/candor/internal/scope"
)

func compileSrc(t *testing.T, src string) (*CodeSpace, uint64) {
	t.Helper()
	prog, err := parse.Parse(src)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	info := scope.Analyze(prog)
	h := hir.Build(prog, info)
	l := lir.Build(h)

	hp := heap.New()
	collector := gc.New(hp)
	handles := handle.NewRegistry()
	cs := NewCodeSpace(hp, collector, handles)
	cs.Stubs.SetGlobals(info.Globals)

	entry, err := cs.CompileProgram(l, "test.candor", src)
	if err != nil {
		t.Fatalf("CompileProgram: %v", err)
	}
	return cs, entry
}

func TestArithmeticReturnsSmi(t *testing.T) {
	cs, entry := compileSrc(t, `
		a = 1
		b = 2
		return a + b * 3
	`)
	v, err := cs.Execute(entry, nil, heap.Nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !v.IsSmi() || v.Smi() != 7 {
		t.Fatalf("want smi(7), got %v", v)
	}
}

func TestIfBranchSelectsArm(t *testing.T) {
	cs, entry := compileSrc(t, `
		a = 1
		if (a) {
			a = 10
		} else {
			a = 20
		}
		return a
	`)
	v, err := cs.Execute(entry, nil, heap.Nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if v.Smi() != 10 {
		t.Fatalf("want smi(10) (truthy branch taken), got %v", v)
	}
}

func TestObjectPropertyRoundTrip(t *testing.T) {
	cs, entry := compileSrc(t, `
		o = {}
		o.x = 42
		return o.x
	`)
	v, err := cs.Execute(entry, nil, heap.Nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if v.Smi() != 42 {
		t.Fatalf("want smi(42), got %v", v)
	}
}

func TestFunctionCallReturnsValue(t *testing.T) {
	cs, entry := compileSrc(t, `
		f = () { return 99 }
		return f()
	`)
	v, err := cs.Execute(entry, nil, heap.Nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if v.Smi() != 99 {
		t.Fatalf("want smi(99), got %v", v)
	}
}

func TestLocalReassignmentVisibleAcrossAccesses(t *testing.T) {
	cs, entry := compileSrc(t, `
		shared = 5
		shared = shared + 1
		return shared
	`)
	v, err := cs.Execute(entry, nil, heap.Nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if v.Smi() != 6 {
		t.Fatalf("want smi(6), got %v", v)
	}
}

func TestStringConcat(t *testing.T) {
	cs, entry := compileSrc(t, `
		return "a" + "b"
	`)
	v, err := cs.Execute(entry, nil, heap.Nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !v.IsPointer() {
		t.Fatalf("want a pointer (boxed string), got %v", v)
	}
	sv := cs.Stubs.hp.StringView(v.Addr())
	if sv.String() != "ab" {
		t.Fatalf("want %q, got %q", "ab", sv.String())
	}
}
