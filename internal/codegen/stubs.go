// Copyright 2012, Fedor Indutny.

package codegen

import (
	"fmt"
	"math"

	"github.com/indutny/candor/internal/gc"
	"github.com/indutny/candor/internal/handle"
	"github.com/indutny/candor/internal/heap"
)

// Stubs is this interpreter's equivalent of the original's
// STUBS_LIST/BINARY_STUBS_LIST generated assembly routines: the
// fixed set of runtime operations every compiled function can invoke
// that are too large, too generic, or too allocation-heavy to inline
// at every call site.
type Stubs struct {
	hp       *heap.Heap
	gcc      *gc.Collector
	handles  *handle.Registry
	cs       *CodeSpace
	globals  heap.Value // the shared global object, created lazily
	names    []string   // scope.Info.Globals, set by SetGlobals
	interned map[string]*heap.Value
	binding  map[uint64]func([]heap.Value) (heap.Value, error)
	nextBind uint64
}

func newStubs(hp *heap.Heap, collector *gc.Collector, handles *handle.Registry, cs *CodeSpace) *Stubs {
	return &Stubs{
		hp:       hp,
		gcc:      collector,
		handles:  handles,
		cs:       cs,
		interned: make(map[string]*heap.Value),
		binding:  make(map[uint64]func([]heap.Value) (heap.Value, error)),
	}
}

// SetGlobals installs the global-property name table the scope
// analyzer built (VarRef.Depth == -1 indexes into it).
func (s *Stubs) SetGlobals(names []string) {
	s.names = names
}

// Global returns the shared global object, allocating it on first
// use.
func (s *Stubs) Global() (heap.Value, error) {
	if s.globals.IsNil() {
		a, ok := s.hp.NewObject()
		if !ok {
			return heap.Nil, s.outOfMemory()
		}
		s.globals = heap.PointerValue(a)
	}
	return s.globals, nil
}

// GlobalName returns the interned string value for global slot index,
// boxing it the first time it's referenced.
func (s *Stubs) GlobalName(index int) (heap.Value, error) {
	if index < 0 || index >= len(s.names) {
		return heap.Nil, fmt.Errorf("codegen: global index %d out of range", index)
	}
	return s.Intern(s.names[index])
}

// Intern returns a cached boxed String value for s, allocating it the
// first time it's seen. Mirrors the original's single interned-string
// table for property/global names, kept here instead of in
// internal/heap because it is a compiler-level cache, not part of the
// managed object graph's own invariants.
func (s *Stubs) Intern(str string) (heap.Value, error) {
	if v, ok := s.interned[str]; ok {
		return *v, nil
	}
	a, ok := s.hp.NewString(str)
	if !ok {
		return heap.Nil, s.outOfMemory()
	}
	v := heap.PointerValue(a)
	s.interned[str] = &v
	return v, nil
}

func (s *Stubs) outOfMemory() error {
	return fmt.Errorf("codegen: allocation failed even after a collection pass")
}

// RegisterBinding installs a native (Go) callback as a Candor
// function, returning the Function's address. Used by the embedding
// bridge (internal/embed) to expose host functions to compiled code,
// and by CallBinding to recognize FunctionView.IsBinding entries.
func (s *Stubs) RegisterBinding(fn func([]heap.Value) (heap.Value, error)) (heap.Address, error) {
	id := s.nextBind
	s.nextBind++
	s.binding[id] = fn
	a, ok := s.hp.NewBinding(id, heap.Nil)
	if !ok {
		return 0, s.outOfMemory()
	}
	return a, nil
}

// CallBinding invokes the native callback registered under id.
func (s *Stubs) CallBinding(id uint64, args []heap.Value) (heap.Value, error) {
	fn, ok := s.binding[id]
	if !ok {
		return heap.Nil, fmt.Errorf("codegen: no binding registered for id %d", id)
	}
	return fn(args)
}

// number unboxes a Value to a float64, treating smis and boxed
// numbers uniformly.
func (s *Stubs) number(v heap.Value) float64 {
	if v.IsSmi() {
		return float64(v.Smi())
	}
	if v.IsPointer() && s.hp.HeaderAt(v.Addr()).Tag() == heap.TagNumber {
		return s.hp.NumberValue(v.Addr())
	}
	return math.NaN()
}

// boxNumber returns the smallest representation for f: a smi when f
// is integral and fits, a boxed Number otherwise.
func (s *Stubs) boxNumber(f float64) (heap.Value, error) {
	if i := int64(f); float64(i) == f && i<<1>>1 == i {
		return heap.SmiValue(i), nil
	}
	a, ok := s.hp.NewNumber(f)
	if !ok {
		return heap.Nil, s.outOfMemory()
	}
	return heap.PointerValue(a), nil
}

// BoxNumber is the embedding bridge's Number constructor, exposing the
// same smi-vs-boxed decision the arithmetic stubs use internally.
func (s *Stubs) BoxNumber(f float64) (heap.Value, error) { return s.boxNumber(f) }

// BoxBool is the embedding bridge's Bool constructor.
func (s *Stubs) BoxBool(b bool) (heap.Value, error) { return s.boxBool(b) }

func (s *Stubs) boxBool(b bool) (heap.Value, error) {
	a, ok := s.hp.NewBoolean(b)
	if !ok {
		return heap.Nil, s.outOfMemory()
	}
	return heap.PointerValue(a), nil
}

// CoerceToBoolean implements the language's truthiness rule: nil and
// the boolean/number/string zero values are false, everything else
// (including every Object/Array/Function) is true.
func (s *Stubs) CoerceToBoolean(v heap.Value) bool {
	switch {
	case v.IsNil():
		return false
	case v.IsSmi():
		return v.Smi() != 0
	case v.IsPointer():
		hdr := s.hp.HeaderAt(v.Addr())
		switch hdr.Tag() {
		case heap.TagBoolean:
			return s.hp.BooleanValue(v.Addr())
		case heap.TagNumber:
			return s.hp.NumberValue(v.Addr()) != 0
		case heap.TagString:
			return s.hp.StringView(v.Addr()).Length() != 0
		default:
			return true
		}
	}
	return false
}

// Typeof implements the `typeof` unary operator.
func (s *Stubs) Typeof(v heap.Value) (heap.Value, error) {
	switch {
	case v.IsNil():
		return s.Intern("nil")
	case v.IsSmi():
		return s.Intern("number")
	default:
		return s.Intern(s.hp.HeaderAt(v.Addr()).Tag().String())
	}
}

// Sizeof implements the `sizeof` unary operator: an Object's own
// property count, an Array's length, a String's length, 0 otherwise.
func (s *Stubs) Sizeof(v heap.Value) (heap.Value, error) {
	if !v.IsPointer() {
		return heap.SmiValue(0), nil
	}
	switch s.hp.HeaderAt(v.Addr()).Tag() {
	case heap.TagObject:
		return heap.SmiValue(int64(len(s.hp.ObjectView(v.Addr()).Keys()))), nil
	case heap.TagArray:
		return heap.SmiValue(s.hp.ArrayView(v.Addr()).Length()), nil
	case heap.TagString:
		return heap.SmiValue(s.hp.StringView(v.Addr()).Length()), nil
	default:
		return heap.SmiValue(0), nil
	}
}

// Keysof implements the `keysof` unary operator: an Array of an
// Object/Array's own property keys.
func (s *Stubs) Keysof(v heap.Value) (heap.Value, error) {
	a, ok := s.hp.NewArray()
	if !ok {
		return heap.Nil, s.outOfMemory()
	}
	arr := s.hp.ArrayView(a)
	if v.IsPointer() {
		tag := s.hp.HeaderAt(v.Addr()).Tag()
		if tag == heap.TagObject || tag == heap.TagArray {
			for _, k := range s.hp.ObjectView(v.Addr()).Keys() {
				arr.Push(k)
			}
		}
	}
	return heap.PointerValue(a), nil
}

// CloneObject implements the `clone` unary operator.
func (s *Stubs) CloneObject(v heap.Value) (heap.Value, error) {
	if !v.IsPointer() || s.hp.HeaderAt(v.Addr()).Tag() != heap.TagObject {
		return v, nil
	}
	a, ok := s.hp.ObjectView(v.Addr()).Clone()
	if !ok {
		return heap.Nil, s.outOfMemory()
	}
	return heap.PointerValue(a), nil
}

// HashValue exposes the heap's key-hashing function.
func (s *Stubs) HashValue(v heap.Value) uint64 {
	return s.hp.HashValue(v)
}

// CollectGarbage runs a minor collection with every root the embedder
// and this call's live interpreter state can supply.
func (s *Stubs) CollectGarbage(extraRoots []*heap.Value) gc.Stats {
	roots := gc.RootSet{}
	for _, slot := range extraRoots {
		roots.Strong = append(roots.Strong, gc.Root{Slot: slot})
	}
	if !s.globals.IsNil() {
		roots.Strong = append(roots.Strong, gc.Root{Slot: &s.globals})
	}
	for _, v := range s.interned {
		roots.Strong = append(roots.Strong, gc.Root{Slot: v})
	}
	for _, slot := range s.handles.StrongSlots() {
		roots.Strong = append(roots.Strong, gc.Root{Slot: slot})
	}
	for _, w := range s.handles.WeakEntries() {
		roots.Weak = append(roots.Weak, gc.WeakRoot{Slot: w.Slot(), Callback: w.Callback()})
	}
	return s.gcc.Collect(gc.Minor, roots)
}

// BinOp dispatches one of BINARY_STUBS_LIST's arithmetic/relational
// operators by the operator string the parser/HIR carry through
// unchanged (`internal/hir.OpBinOp`'s Aux).
func (s *Stubs) BinOp(op string, l, r heap.Value) (heap.Value, error) {
	switch op {
	case "+":
		if isString(s.hp, l) || isString(s.hp, r) {
			return s.concat(l, r)
		}
		return s.boxNumber(s.number(l) + s.number(r))
	case "-":
		return s.boxNumber(s.number(l) - s.number(r))
	case "*":
		return s.boxNumber(s.number(l) * s.number(r))
	case "/":
		return s.boxNumber(s.number(l) / s.number(r))
	case "%":
		return s.boxNumber(math.Mod(s.number(l), s.number(r)))
	case "&":
		return s.boxNumber(float64(int64(s.number(l)) & int64(s.number(r))))
	case "|":
		return s.boxNumber(float64(int64(s.number(l)) | int64(s.number(r))))
	case "^":
		return s.boxNumber(float64(int64(s.number(l)) ^ int64(s.number(r))))
	case "<<":
		return s.boxNumber(float64(int64(s.number(l)) << uint(int64(s.number(r)))))
	case ">>":
		return s.boxNumber(float64(int64(s.number(l)) >> uint(int64(s.number(r)))))
	case "==", "===":
		return s.boxBool(s.equal(l, r))
	case "!=", "!==":
		return s.boxBool(!s.equal(l, r))
	case "<":
		return s.boxBool(s.number(l) < s.number(r))
	case ">":
		return s.boxBool(s.number(l) > s.number(r))
	case "<=":
		return s.boxBool(s.number(l) <= s.number(r))
	case ">=":
		return s.boxBool(s.number(l) >= s.number(r))
	default:
		return heap.Nil, fmt.Errorf("codegen: unknown binary operator %q", op)
	}
}

// ToString is the embedding bridge's ToString coercion (spec.md §6.1),
// exposed since the package-private toString does the same work
// internally for "+" concatenation.
func (s *Stubs) ToString(v heap.Value) string { return s.toString(v) }

// ToNumber is the embedding bridge's ToNumber coercion.
func (s *Stubs) ToNumber(v heap.Value) float64 { return s.number(v) }

func isString(hp *heap.Heap, v heap.Value) bool {
	return v.IsPointer() && hp.HeaderAt(v.Addr()).Tag() == heap.TagString
}

func (s *Stubs) concat(l, r heap.Value) (heap.Value, error) {
	ls, rs := s.toString(l), s.toString(r)
	a, ok := s.hp.NewString(ls + rs)
	if !ok {
		return heap.Nil, s.outOfMemory()
	}
	return heap.PointerValue(a), nil
}

func (s *Stubs) toString(v heap.Value) string {
	switch {
	case v.IsNil():
		return ""
	case v.IsSmi():
		return fmt.Sprintf("%d", v.Smi())
	case isString(s.hp, v):
		return s.hp.StringView(v.Addr()).String()
	case v.IsPointer() && s.hp.HeaderAt(v.Addr()).Tag() == heap.TagNumber:
		return fmt.Sprintf("%g", s.hp.NumberValue(v.Addr()))
	default:
		return v.String()
	}
}

func (s *Stubs) equal(l, r heap.Value) bool {
	if l == r {
		return true
	}
	if isString(s.hp, l) && isString(s.hp, r) {
		return s.hp.StringView(l.Addr()).Equal(s.hp.StringView(r.Addr()))
	}
	lNum, lIsNum := s.asNumberLike(l)
	rNum, rIsNum := s.asNumberLike(r)
	if lIsNum && rIsNum {
		return lNum == rNum
	}
	return false
}

func (s *Stubs) asNumberLike(v heap.Value) (float64, bool) {
	if v.IsSmi() {
		return float64(v.Smi()), true
	}
	if v.IsPointer() && s.hp.HeaderAt(v.Addr()).Tag() == heap.TagNumber {
		return s.hp.NumberValue(v.Addr()), true
	}
	return 0, false
}
