// Copyright 2012, Fedor Indutny.

package isolate

import "testing"

func TestCompileAndRunReturnsResult(t *testing.T) {
	iso := New()
	c, err := iso.Compile("t.candor", "a = 1\nreturn a + 41")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	v, err := c.Run(nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !v.IsSmi() || v.Smi() != 42 {
		t.Fatalf("want smi(42), got %v", v)
	}
	if iso.HasError() {
		t.Fatalf("HasError should be false after a clean run")
	}
}

func TestCompileSyntaxErrorRecordsPosition(t *testing.T) {
	iso := New()
	_, err := iso.Compile("bad.candor", "a = ")
	if err == nil {
		t.Fatalf("want a compile error")
	}
	ce, ok := err.(*CompileError)
	if !ok {
		t.Fatalf("want *CompileError, got %T", err)
	}
	if ce.Line == 0 {
		t.Fatalf("want a resolved line number, got %d", ce.Line)
	}
	if !iso.HasError() {
		t.Fatalf("HasError should be true after a compile error")
	}
	if iso.PrintError() == "" {
		t.Fatalf("PrintError should be non-empty after a compile error")
	}
}

func TestGetCurrentTracksMostRecentIsolate(t *testing.T) {
	iso := New()
	if GetCurrent() != iso {
		t.Fatalf("GetCurrent should return the isolate just constructed")
	}
	iso2 := New()
	if GetCurrent() != iso2 {
		t.Fatalf("GetCurrent should track the most recently constructed isolate")
	}
}
