// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heap

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// pageSize is the granularity of a single Space page. Chosen as a
// multiple of the host's native page size; bump allocation happens
// within a page, never across one.
const pageSize = 1 << 20 // 1 MiB

// A Page is a bump-allocated block of heap memory, backed by an
// anonymous mmap mapping so its address is stable across the life of
// the process (the GC relies on objects never silently moving except
// during a deliberate, accounted-for copy). Mapped read-write for
// mutation.
type Page struct {
	base  Address
	mem   []byte
	top   int64 // bump pointer, offset from base
	limit int64 // usable byte count
}

func newPage() (*Page, error) {
	mem, err := unix.Mmap(-1, 0, pageSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("heap: mmap page: %w", err)
	}
	return &Page{
		base:  Address(uintptr(uintptrOf(mem))),
		mem:   mem,
		top:   0,
		limit: pageSize,
	}, nil
}

func (p *Page) free() error {
	return unix.Munmap(p.mem)
}

// Contains reports whether a falls within this page's allocated
// range (including bytes not yet bump-allocated; used for ownership
// tests, not liveness tests).
func (p *Page) Contains(a Address) bool {
	return a >= p.base && a < p.base.Add(p.limit)
}

// remaining returns the number of unallocated bytes in the page.
func (p *Page) remaining() int64 {
	return p.limit - p.top
}

// bump reserves n bytes, returning their address, or false if the
// page does not have room.
func (p *Page) bump(n int64) (Address, bool) {
	n = align(n)
	if p.remaining() < n {
		return 0, false
	}
	addr := p.base.Add(p.top)
	p.top += n
	return addr, true
}

func (p *Page) offset(a Address) int64 {
	return a.Sub(p.base)
}

// ReadWord reads the 8-byte word at a.
func (p *Page) ReadWord(a Address) uint64 {
	off := p.offset(a)
	return binary.LittleEndian.Uint64(p.mem[off : off+8])
}

// WriteWord writes the 8-byte word at a.
func (p *Page) WriteWord(a Address, v uint64) {
	off := p.offset(a)
	binary.LittleEndian.PutUint64(p.mem[off:off+8], v)
}

// ReadByte reads the byte at a.
func (p *Page) ReadByte(a Address) byte {
	return p.mem[p.offset(a)]
}

// WriteByte writes the byte at a.
func (p *Page) WriteByte(a Address, b byte) {
	p.mem[p.offset(a)] = b
}

// Bytes returns the raw backing slice starting at a, for bulk copies.
func (p *Page) Bytes(a Address, n int64) []byte {
	off := p.offset(a)
	return p.mem[off : off+n]
}

func align(n int64) int64 {
	const wordAlign = 8
	return (n + wordAlign - 1) &^ (wordAlign - 1)
}
