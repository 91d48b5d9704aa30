// Copyright 2012, Fedor Indutny.

package lir

import (
	"testing"

	"github.com/indutny/candor/internal/hir"
	"github.com/indutny/candor/internal/parse"
	"github.com/indutny/candor/internal/scope"
)

func buildSrc(t *testing.T, src string) *Program {
	t.Helper()
	prog, err := parse.Parse(src)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	info := scope.Analyze(prog)
	h := hir.Build(prog, info)
	return Build(h)
}

func countOps(fn *Func, op Op) int {
	n := 0
	for _, blk := range fn.Blocks {
		for _, in := range blk.Instrs {
			if in.Op == op {
				n++
			}
		}
		if blk.Term != nil && blk.Term.Op == op {
			n++
		}
	}
	return n
}

func totalMoves(fn *Func) int {
	n := 0
	for _, blk := range fn.Blocks {
		if blk.Gap != nil {
			n += len(blk.Gap.Moves)
		}
	}
	return n
}

func TestEveryBlockGetsLabelAndGap(t *testing.T) {
	p := buildSrc(t, `a = 1`)
	for _, blk := range p.Top.Blocks {
		if blk.Label == nil || blk.Label.Op != OpLabel {
			t.Fatalf("block %d missing Label", blk.ID)
		}
		if blk.Gap == nil || blk.Gap.Op != OpGap {
			t.Fatalf("block %d missing Gap", blk.ID)
		}
	}
}

func TestIfJoinPhiResolvesToPredecessorMoves(t *testing.T) {
	p := buildSrc(t, `
		a = 1
		if (a) {
			a = 2
		}
		a
	`)
	if countOps(p.Top, OpPhi) != 1 {
		t.Fatalf("want one Phi instruction surviving into LIR")
	}
	if totalMoves(p.Top) != 2 {
		t.Fatalf("want 2 resolving moves (one per predecessor of the join), got %d", totalMoves(p.Top))
	}
}

func TestCallMarksHasCall(t *testing.T) {
	p := buildSrc(t, `
		f = () { 1 }
		f()
	`)
	found := false
	for _, blk := range p.Top.Blocks {
		for _, in := range blk.Instrs {
			if in.Op == OpCall {
				found = true
				if !in.HasCall {
					t.Fatalf("Call instruction should set HasCall")
				}
			}
		}
	}
	if !found {
		t.Fatalf("expected a Call instruction to be lowered")
	}
}

func TestLoadContextDoesNotSetHasCall(t *testing.T) {
	p := buildSrc(t, `print`)
	for _, blk := range p.Top.Blocks {
		for _, in := range blk.Instrs {
			if in.Op == OpLoadContext && in.HasCall {
				t.Fatalf("LoadContext should not be marked HasCall")
			}
		}
	}
}

func TestAllocateFunctionReferencesLIRFunc(t *testing.T) {
	p := buildSrc(t, `f = () { 1 }`)
	if len(p.Functions) != 1 {
		t.Fatalf("want one nested lir.Func, got %d", len(p.Functions))
	}
	for _, blk := range p.Top.Blocks {
		for _, in := range blk.Instrs {
			if in.Op == OpAllocateFunction {
				lf, ok := in.Aux.(*Func)
				if !ok || lf != p.Functions[0] {
					t.Fatalf("AllocateFunction.Aux should reference the nested lir.Func")
				}
			}
		}
	}
}
