// Copyright 2012, Fedor Indutny.

package embed

import "testing"

func TestCompileRunAndValueCoercion(t *testing.T) {
	iso := NewIsolate()
	prog, err := iso.Compile("t.candor", "a = 10\nb = 32\nreturn a + b")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	v, err := prog.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	n, ok := v.AsNumber()
	if !ok || n != 42 {
		t.Fatalf("want 42, got %v ok=%v", n, ok)
	}
	if v.ToString() != "42" {
		t.Fatalf("want ToString() == %q, got %q", "42", v.ToString())
	}
}

func TestObjectGetSetDeleteAndKeys(t *testing.T) {
	iso := NewIsolate()
	o, err := iso.Object()
	if err != nil {
		t.Fatalf("Object: %v", err)
	}
	s, err := iso.String("hello")
	if err != nil {
		t.Fatalf("String: %v", err)
	}
	if err := o.Set("x", s); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !o.HasProperty("x") {
		t.Fatalf("want HasProperty(x) true")
	}
	keys, err := o.Keys()
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if keys.Length() != 1 {
		t.Fatalf("want 1 key, got %d", keys.Length())
	}
	k, ok := keys.GetIndex(0)
	if name, _ := k.AsString(); !ok || name != "x" {
		t.Fatalf("want key %q, got %q ok=%v", "x", name, ok)
	}
	got, err := o.Get("x")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	str, ok := got.AsString()
	if !ok || str != "hello" {
		t.Fatalf("want %q, got %q ok=%v", "hello", str, ok)
	}
	if !o.Delete("x") {
		t.Fatalf("want Delete(x) true")
	}
	if o.HasProperty("x") {
		t.Fatalf("x should no longer be a property after Delete")
	}
}

func TestArrayPushLengthAndIndex(t *testing.T) {
	iso := NewIsolate()
	arr, err := iso.Array()
	if err != nil {
		t.Fatalf("Array: %v", err)
	}
	arr.Push(iso.Int(1))
	arr.Push(iso.Int(2))
	arr.Push(iso.Int(3))
	if arr.Length() != 3 {
		t.Fatalf("want length 3, got %d", arr.Length())
	}
	v, ok := arr.GetIndex(1)
	if !ok {
		t.Fatalf("GetIndex(1) should succeed")
	}
	n, _ := v.AsNumber()
	if n != 2 {
		t.Fatalf("want 2, got %v", n)
	}
}

func TestFunctionFromBindingCallRoundTrip(t *testing.T) {
	iso := NewIsolate()
	fn, err := iso.FunctionFromBinding(func(args []Value) (Value, error) {
		a, _ := args[0].AsNumber()
		b, _ := args[1].AsNumber()
		return iso.Number(a + b)
	})
	if err != nil {
		t.Fatalf("FunctionFromBinding: %v", err)
	}
	result, err := fn.Call(iso.Nil(), iso.Int(3), iso.Int(4))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	n, ok := result.AsNumber()
	if !ok || n != 7 {
		t.Fatalf("want 7, got %v ok=%v", n, ok)
	}
}

func TestFunctionFromSourceClosesOverGlobal(t *testing.T) {
	iso := NewIsolate()
	global, err := iso.Global()
	if err != nil {
		t.Fatalf("Global: %v", err)
	}
	if err := global.Set("shared", iso.Int(99)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	fn, err := iso.FunctionFromSource("f.candor", "return shared")
	if err != nil {
		t.Fatalf("FunctionFromSource: %v", err)
	}
	result, err := fn.Call(iso.Nil())
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	n, ok := result.AsNumber()
	if !ok || n != 99 {
		t.Fatalf("want 99, got %v ok=%v", n, ok)
	}
}

func TestHandleScopeReleasesOnClose(t *testing.T) {
	iso := NewIsolate()
	before := len(iso.iso.Handles.StrongSlots())
	scope := iso.OpenHandleScope()
	s, err := iso.String("scoped")
	if err != nil {
		t.Fatalf("String: %v", err)
	}
	h := scope.New(s)
	if h.Value().ToString() != "scoped" {
		t.Fatalf("want %q, got %q", "scoped", h.Value().ToString())
	}
	scope.Close()
	if n := len(iso.iso.Handles.StrongSlots()); n != before {
		t.Fatalf("want %d strong handles after Close, got %d", before, n)
	}
}

func TestWrapAndUnwrapCWrapperPattern(t *testing.T) {
	iso := NewIsolate()
	const magic = 0xC0FFEE
	type nativeThing struct{ n int }
	wrapped, err := iso.Wrap(magic, &nativeThing{n: 7})
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	if !wrapped.HasClass(magic) {
		t.Fatalf("want HasClass(magic) true")
	}
	if wrapped.HasClass(magic + 1) {
		t.Fatalf("want HasClass of a different magic to be false")
	}
	obj, ok := wrapped.Unwrap()
	if !ok {
		t.Fatalf("Unwrap should succeed")
	}
	nt, ok := obj.(*nativeThing)
	if !ok || nt.n != 7 {
		t.Fatalf("want the wrapped *nativeThing back, got %#v", obj)
	}
}
