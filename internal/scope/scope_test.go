// Copyright 2012, Fedor Indutny.

package scope

import (
	"testing"

	"github.com/indutny/candor/internal/ast"
	"github.com/indutny/candor/internal/parse"
)

func mustParse(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := parse.Parse(src)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	return prog
}

func firstExprStmt(body []ast.Node, i int) ast.Node {
	return body[i].(*ast.ExprStmt).X
}

func TestAssignedNameIsStackLocal(t *testing.T) {
	prog := mustParse(t, `a = 1`)
	info := Analyze(prog)
	if info.Program.StackCount != 1 {
		t.Fatalf("StackCount = %d, want 1", info.Program.StackCount)
	}
	if info.Program.ContextCount != 0 {
		t.Fatalf("ContextCount = %d, want 0", info.Program.ContextCount)
	}
}

func TestUndeclaredNameIsGlobal(t *testing.T) {
	prog := mustParse(t, `print`)
	info := Analyze(prog)
	id := firstExprStmt(prog.Body, 0).(*ast.Ident)
	ref, ok := info.Refs[id]
	if !ok {
		t.Fatalf("no Ref recorded for %q", id.Name)
	}
	if ref.Depth != -1 {
		t.Fatalf("Depth = %d, want -1 (global)", ref.Depth)
	}
	if len(info.Globals) != 1 || info.Globals[0] != "print" {
		t.Fatalf("Globals = %v, want [print]", info.Globals)
	}
}

func TestNestedFunctionCapturePromotesToContext(t *testing.T) {
	prog := mustParse(t, `
		a = 1
		f = () { a }
	`)
	info := Analyze(prog)

	assign := firstExprStmt(prog.Body, 0).(*ast.Assign)
	outerA := assign.Target.(*ast.Ident)
	outerRef := info.Refs[outerA]
	if outerRef.Slot.Kind != KindContext {
		t.Fatalf("outer a Kind = %v, want KindContext (escapes to nested function)", outerRef.Slot.Kind)
	}
	if outerRef.Depth != 0 {
		t.Fatalf("outer a Depth = %d, want 0", outerRef.Depth)
	}

	fnAssign := firstExprStmt(prog.Body, 1).(*ast.Assign)
	fn := fnAssign.Value.(*ast.FunctionLit)
	innerA := firstExprStmt(fn.Body, 0).(*ast.Ident)
	innerRef := info.Refs[innerA]
	if innerRef.Slot != outerRef.Slot {
		t.Fatalf("inner a resolved to a different Slot than outer a")
	}
	if innerRef.Depth != 1 {
		t.Fatalf("inner a Depth = %d, want 1", innerRef.Depth)
	}

	if info.Program.ContextCount != 1 {
		t.Fatalf("Program ContextCount = %d, want 1", info.Program.ContextCount)
	}
}

func TestParamsAreStackLocalByDefault(t *testing.T) {
	prog := mustParse(t, `f = (a, b) { a b }`)
	info := Analyze(prog)
	fnAssign := firstExprStmt(prog.Body, 0).(*ast.Assign)
	fn := fnAssign.Value.(*ast.FunctionLit)
	fi := info.Functions[fn]
	if fi.StackCount != 2 {
		t.Fatalf("StackCount = %d, want 2", fi.StackCount)
	}
	if fi.ContextCount != 0 {
		t.Fatalf("ContextCount = %d, want 0", fi.ContextCount)
	}
}

func TestScopeDeclEagerlyPromotesToContext(t *testing.T) {
	prog := mustParse(t, `
		f = () {
			scope { a, b }
			a = 1
		}
	`)
	info := Analyze(prog)
	fnAssign := firstExprStmt(prog.Body, 0).(*ast.Assign)
	fn := fnAssign.Value.(*ast.FunctionLit)
	fi := info.Functions[fn]
	if fi.ContextCount != 2 {
		t.Fatalf("ContextCount = %d, want 2 (a and b both forced into context)", fi.ContextCount)
	}
	if fi.StackCount != 0 {
		t.Fatalf("StackCount = %d, want 0", fi.StackCount)
	}
}
