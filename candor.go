// Copyright 2012, Fedor Indutny.

// Package candor is the public embedding surface for the Candor
// runtime: construct an Isolate, Compile source, Run it, and trade
// Values back and forth with host Go code. It is a thin re-export of
// internal/embed, the same shape the teacher's own public package
// (golang.org/x/debug) takes over its internal subsystems — a small
// stable façade so internal/embed stays free to evolve without
// breaking callers pinned to this import path.
package candor

import (
	"github.com/indutny/candor/internal/embed"
	"github.com/indutny/candor/internal/isolate"
)

// Isolate owns one running Candor runtime: its heap, collector,
// handle registry, and compiled code. Per the runtime's concurrency
// model, a process embeds at most one meaningfully.
type Isolate = embed.Isolate

// Value is an opaque handle onto a heap value: nil, boolean, number,
// string, object, array, function, or CData.
type Value = embed.Value

// Program is a compiled, not-yet-run top-level script.
type Program = embed.Program

// Binding is a native Go callback exposed to compiled code as a
// callable Function Value.
type Binding = embed.Binding

// HandleScope is a LIFO frame of host-owned handles onto Values.
type HandleScope = embed.HandleScope

// Handle is one host-owned indirection onto a Value, opened within a
// HandleScope.
type Handle = embed.Handle

// CompileError is returned by Isolate.Compile on a syntax error, with
// file/line/column detail.
type CompileError = isolate.CompileError

// NewIsolate constructs a fresh runtime.
func NewIsolate() *Isolate { return embed.NewIsolate() }

// GetCurrent returns the most recently constructed Isolate in this
// process, or nil if none exists yet.
func GetCurrent() *Isolate { return embed.GetCurrent() }
