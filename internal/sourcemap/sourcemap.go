// Copyright 2012, Fedor Indutny.

// Package sourcemap records, for each function the code emitter
// generates, which source byte offset each generated instruction came
// from, so a runtime stack trace or a disassembly listing can report
// real file/line/column positions instead of bare JIT addresses.
//
// Entries are queued against a jit offset (a position relative to the
// start of the function's generated code, which isn't known until
// internal/codegen finishes emitting it) and only resolved to real
// addresses once Commit is called with the function's final base
// address — mirroring the two-phase Push-then-Commit protocol
// original codegens for this runtime used, since an instruction's
// final address isn't known until the whole function has been laid
// out and mapped executable.
package sourcemap

import (
	"fmt"
	"sort"
)

// Entry is one committed (jit address, source position) pair.
type Entry struct {
	Addr     uintptr
	Offset   uint32 // byte offset into Source
	Filename string
	Source   string
}

// pending is one queued-but-not-yet-committed entry.
type pending struct {
	jitOffset uint32
	offset    uint32
}

// Map accumulates queued entries for a single function under
// construction, then commits them into an address-sorted table once
// the function's code has a final address.
type Map struct {
	queue   []pending
	entries []Entry
}

// New returns an empty source map.
func New() *Map { return &Map{} }

// Push queues a source position for the instruction currently being
// emitted at jitOffset bytes into the function body.
func (m *Map) Push(jitOffset, offset uint32) {
	m.queue = append(m.queue, pending{jitOffset, offset})
}

// Commit resolves every queued entry against addr, the function's
// final base address, tagging each with filename/source, and clears
// the queue. Entries are kept sorted by address so Get can binary
// search.
func (m *Map) Commit(filename, source string, addr uintptr) {
	for _, p := range m.queue {
		m.entries = append(m.entries, Entry{
			Addr:     addr + uintptr(p.jitOffset),
			Offset:   p.offset,
			Filename: filename,
			Source:   source,
		})
	}
	m.queue = m.queue[:0]
	sort.Slice(m.entries, func(i, j int) bool { return m.entries[i].Addr < m.entries[j].Addr })
}

// Get returns the entry covering addr: the greatest committed entry
// whose Addr is <= addr, i.e. the instruction addr falls inside. ok is
// false if addr precedes every committed entry.
func (m *Map) Get(addr uintptr) (Entry, bool) {
	i := sort.Search(len(m.entries), func(i int) bool { return m.entries[i].Addr > addr })
	if i == 0 {
		return Entry{}, false
	}
	return m.entries[i-1], true
}

// LineCol converts a byte Offset within Source into a 1-based
// (line, column) pair, the way a stack trace frame or `candorobj`
// wants to print it.
func (e Entry) LineCol() (line, col int) {
	line = 1
	col = 1
	for i := 0; i < int(e.Offset) && i < len(e.Source); i++ {
		if e.Source[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

// String renders "filename:line:col", the frame format
// Isolate.StackTrace and cmd/candor's error reporting both use.
func (e Entry) String() string {
	line, col := e.LineCol()
	return fmt.Sprintf("%s:%d:%d", e.Filename, line, col)
}
