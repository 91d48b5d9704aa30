// Copyright 2012, Fedor Indutny.

package hir

import (
	"testing"

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
	return Build(prog, info)
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

func TestEntryAndReturnAlwaysPresent(t *testing.T) {
	p := buildSrc(t, `a = 1`)
	if countOps(p.Top, OpEntry) != 1 {
		t.Fatalf("want exactly one Entry instruction")
	}
	if p.Top.Entry.Term == nil {
		if countOps(p.Top, OpReturn) == 0 {
			t.Fatalf("want an implicit Return when the function falls off the end")
		}
	}
}

func TestIfWithoutElseMergesAtJoin(t *testing.T) {
	p := buildSrc(t, `
		a = 1
		if (a) {
			a = 2
		}
		a
	`)
	if countOps(p.Top, OpIf) != 1 {
		t.Fatalf("want exactly one If instruction")
	}
	if countOps(p.Top, OpPhi) != 1 {
		t.Fatalf("want a join phi merging the two values of a, got %d", countOps(p.Top, OpPhi))
	}
}

func TestIfBothBranchesReturnNoJoinPhi(t *testing.T) {
	p := buildSrc(t, `
		f = (a) {
			if (a) {
				return 1
			} else {
				return 2
			}
		}
	`)
	fn := p.Functions[0]
	if countOps(fn, OpPhi) != 0 {
		t.Fatalf("want no phi when both arms terminate, got %d", countOps(fn, OpPhi))
	}
	// Both arms return explicitly; the unreachable join block picks up
	// its own synthesized Return so every block stays terminated.
	if countOps(fn, OpReturn) < 2 {
		t.Fatalf("want at least two Return instructions, got %d", countOps(fn, OpReturn))
	}
}

func TestWhileLoopHeaderCarriesPhi(t *testing.T) {
	p := buildSrc(t, `
		a = 0
		while (a) {
			a = a
		}
	`)
	var header *Block
	for _, blk := range p.Top.Blocks {
		if blk.IsLoopHdr {
			header = blk
		}
	}
	if header == nil {
		t.Fatalf("no loop header block found")
	}
	found := false
	for _, in := range header.Instrs {
		if in.Op == OpPhi {
			found = true
			if len(in.Args) != 2 {
				t.Fatalf("loop header phi should have 2 args (preheader + back-edge), got %d", len(in.Args))
			}
		}
	}
	if !found {
		t.Fatalf("want a phi in the loop header for the live slot carried around the loop")
	}
}

func TestShortCircuitAndLowersToDiamond(t *testing.T) {
	p := buildSrc(t, `a = 1 && 2`)
	if countOps(p.Top, OpIf) != 1 {
		t.Fatalf("want a diamond branch for &&")
	}
	if countOps(p.Top, OpPhi) != 1 {
		t.Fatalf("want a join phi combining short-circuit result")
	}
}

func TestNestedFunctionLitLowersToAllocateFunction(t *testing.T) {
	p := buildSrc(t, `f = () { 1 }`)
	if countOps(p.Top, OpAllocateFunction) != 1 {
		t.Fatalf("want one AllocateFunction instruction")
	}
	if len(p.Functions) != 1 {
		t.Fatalf("want one nested Func recorded, got %d", len(p.Functions))
	}
}

func TestMemberAccessUsesUniformArgsShape(t *testing.T) {
	p := buildSrc(t, `a = {} a.x = 1 a.x`)
	var store, load *Instr
	for _, blk := range p.Top.Blocks {
		for _, in := range blk.Instrs {
			switch in.Op {
			case OpStoreProperty:
				store = in
			case OpLoadProperty:
				load = in
			}
		}
	}
	if store == nil || len(store.Args) != 3 {
		t.Fatalf("want StoreProperty with 3 args [object, key, value]")
	}
	if load == nil || len(load.Args) != 2 {
		t.Fatalf("want LoadProperty with 2 args [object, key]")
	}
	if store.Args[1].Op != OpLiteral || store.Args[1].Aux != "x" {
		t.Fatalf("want the property name lowered as a synthesized literal key")
	}
}

func TestGlobalReferenceLowersToLoadWithDepthMinusOne(t *testing.T) {
	p := buildSrc(t, `print`)
	var load *Instr
	for _, blk := range p.Top.Blocks {
		for _, in := range blk.Instrs {
			if in.Op == OpLoad {
				load = in
			}
		}
	}
	if load == nil {
		t.Fatalf("want a Load instruction for the undeclared global reference")
	}
	ref, ok := load.Aux.(VarRef)
	if !ok {
		t.Fatalf("Load.Aux should be a VarRef, got %T", load.Aux)
	}
	if ref.Depth != -1 {
		t.Fatalf("Depth = %d, want -1 for a global", ref.Depth)
	}
}
