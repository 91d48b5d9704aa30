// Copyright 2012, Fedor Indutny.

// Package embed is the host-facing typed API over the runtime's
// otherwise-internal heap.Value words — the embedding bridge
// (component K). It plays the role the teacher's program/client
// package plays for a debugger session: program/client/client.go
// hands the host a typed Go API (Value, Frame, ...) over an opaque
// RPC handle to a remote ogle process; here the "remote process" is
// this same program's own managed heap, reached directly rather than
// over program/proxyrpc, but the shape — construct, coerce, call,
// scope your handles — is the same.
package embed

import (
	"fmt"

	"github.com/indutny/candor/internal/handle"
	"github.com/indutny/candor/internal/heap"
	"github.com/indutny/candor/internal/isolate"
)

// Isolate is the host's handle onto a running Candor runtime.
type Isolate struct {
	iso *isolate.Isolate

	nextWrapID uint64
	wrapped    map[uint64]interface{}
}

// NewIsolate constructs a fresh runtime. Per spec.md §5, a process
// owns at most one meaningfully — embedding more than one is out of
// scope for this runtime, exactly as it is for the original.
func NewIsolate() *Isolate {
	return &Isolate{
		iso:     isolate.New(),
		wrapped: make(map[uint64]interface{}),
	}
}

// GetCurrent returns the most recently constructed Isolate's handle
// registry context, wrapped back up as an *Isolate. Returns nil if no
// isolate has been created in this process yet.
func GetCurrent() *Isolate {
	i := isolate.GetCurrent()
	if i == nil {
		return nil
	}
	return &Isolate{iso: i, wrapped: make(map[uint64]interface{})}
}

// HasError reports whether the most recent Compile or Program.Run
// left a recorded error.
func (i *Isolate) HasError() bool { return i.iso.HasError() }

// PrintError formats the most recently recorded error, or "" if none.
func (i *Isolate) PrintError() string { return i.iso.PrintError() }

// StackTrace returns an Array Value of frame-description strings for
// whatever call is in progress (meaningful from within a native
// binding callback).
func (i *Isolate) StackTrace() (Value, error) {
	v, err := i.iso.StackTrace()
	return Value{i: i, v: v}, err
}

// Program is a compiled, not-yet-run top-level function.
type Program struct {
	i *Isolate
	c *isolate.Compiled
}

// Compile parses and compiles src, returning a Program ready to Run.
// filename is used only for CompileError messages and source-map
// labels.
func (i *Isolate) Compile(filename, src string) (*Program, error) {
	c, err := i.iso.Compile(filename, src)
	if err != nil {
		return nil, err
	}
	return &Program{i: i, c: c}, nil
}

// Run invokes the compiled top-level function with args, returning
// its result. This is the `candor <file>` CLI's sole entry point
// (spec.md §6.3): the caller is expected to export whatever globals
// (assert/print/getValue) the script needs onto i.Global() before
// calling Run.
func (p *Program) Run(args ...Value) (Value, error) {
	raw := make([]heap.Value, len(args))
	for i, a := range args {
		raw[i] = a.v
	}
	v, err := p.c.Run(raw)
	return Value{i: p.i, v: v}, err
}

// Heap exposes the underlying managed heap for diagnostics tools
// (cmd/candorobj's histogram and object-graph dump) that need to walk
// every live object rather than go through a single named Value.
func (i *Isolate) Heap() *heap.Heap { return i.iso.Heap }

// Global returns the shared global object Value, creating it on first
// use.
func (i *Isolate) Global() (Value, error) {
	v, err := i.iso.Global()
	return Value{i: i, v: v}, err
}

// --- value construction ---

// Nil returns the nil Value.
func (i *Isolate) Nil() Value { return Value{i: i, v: heap.Nil} }

// Bool constructs a boxed boolean Value.
func (i *Isolate) Bool(b bool) (Value, error) {
	v, err := i.iso.Code.Stubs.BoxBool(b)
	return Value{i: i, v: v}, err
}

// Int constructs a smi (tagged integer) Value directly, with no
// allocation.
func (i *Isolate) Int(n int64) Value { return Value{i: i, v: heap.SmiValue(n)} }

// Number constructs a Value for f, boxing unless it is a smi-range
// integer (the same rule codegen.Stubs.BinOp's arithmetic uses).
func (i *Isolate) Number(f float64) (Value, error) {
	v, err := i.iso.Code.Stubs.BoxNumber(f)
	return Value{i: i, v: v}, err
}

// String constructs a copied, interned String Value.
func (i *Isolate) String(s string) (Value, error) {
	v, err := i.iso.Code.Stubs.Intern(s)
	return Value{i: i, v: v}, err
}

// Object constructs an empty Object Value.
func (i *Isolate) Object() (Value, error) {
	a, ok := i.iso.Heap.NewObject()
	if !ok {
		return Value{}, outOfMemory()
	}
	return Value{i: i, v: heap.PointerValue(a)}, nil
}

// Array constructs an empty Array Value.
func (i *Isolate) Array() (Value, error) {
	a, ok := i.iso.Heap.NewArray()
	if !ok {
		return Value{}, outOfMemory()
	}
	return Value{i: i, v: heap.PointerValue(a)}, nil
}

// FunctionFromSource compiles src as a standalone function body (its
// own top-level program) and wraps the result as a callable Function
// Value, closing over the global object rather than any lexical
// scope — the embedding equivalent of spec.md §6.1's "function from
// source".
func (i *Isolate) FunctionFromSource(filename, src string) (Value, error) {
	p, err := i.Compile(filename, src)
	if err != nil {
		return Value{}, err
	}
	global, err := i.Global()
	if err != nil {
		return Value{}, err
	}
	a, ok := i.iso.Heap.NewFunction(global.v, p.c.Entry(), heap.Nil, 0)
	if !ok {
		return Value{}, outOfMemory()
	}
	return Value{i: i, v: heap.PointerValue(a)}, nil
}

// Binding is a native callback exposed to compiled code as a Function
// Value (spec.md §6.2's callback ABI).
type Binding func(args []Value) (Value, error)

// FunctionFromBinding installs fn as a native callback and returns
// the Function Value compiled code calls to reach it.
func (i *Isolate) FunctionFromBinding(fn Binding) (Value, error) {
	a, err := i.iso.Code.Stubs.RegisterBinding(func(raw []heap.Value) (heap.Value, error) {
		args := make([]Value, len(raw))
		for idx, r := range raw {
			args[idx] = Value{i: i, v: r}
		}
		out, err := fn(args)
		return out.v, err
	})
	if err != nil {
		return Value{}, err
	}
	return Value{i: i, v: heap.PointerValue(a)}, nil
}

// --- handle scopes ---

// HandleScope is a LIFO frame of host-owned handles onto heap Values,
// grounded on internal/handle.Scope: constructing opens the frame,
// Close pops it and releases every handle that was not Persist-ed or
// Weaken-ed away first.
type HandleScope struct {
	i *Isolate
	s *handle.Scope
}

// OpenHandleScope opens a new HandleScope.
func (i *Isolate) OpenHandleScope() *HandleScope {
	return &HandleScope{i: i, s: i.iso.Handles.OpenScope()}
}

// Close pops the scope.
func (hs *HandleScope) Close() { hs.s.Close() }

// New creates a handle for v within the scope.
func (hs *HandleScope) New(v Value) *Handle {
	return &Handle{i: hs.i, h: hs.s.New(v.v)}
}

// Handle is one host-owned indirection onto a heap Value.
type Handle struct {
	i *Isolate
	h *handle.Handle
}

// Value returns the handle's current (possibly relocated) Value.
func (h *Handle) Value() Value { return Value{i: h.i, v: h.h.Value()} }

// Persist promotes h to a process-wide strong reference outliving its
// scope's closure.
func (h *Handle) Persist() { h.h.Persist() }

// Weaken demotes h to a weak reference; cb (optional) is invoked with
// the Value's last state if it does not survive a collection.
func (h *Handle) Weaken(cb func(Value)) {
	h.h.Weaken(func(v heap.Value) {
		if cb != nil {
			cb(Value{i: h.i, v: v})
		}
	})
}

// Release drops a persistent or weak handle entirely.
func (h *Handle) Release() { h.h.Release() }

func outOfMemory() error {
	return fmt.Errorf("embed: allocation failed even after a collection pass")
}
