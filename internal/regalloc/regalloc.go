// Copyright 2012, Fedor Indutny.

// Package regalloc assigns every LIR virtual a physical register or a
// spill slot using linear-scan allocation: number every instruction,
// derive a live interval per virtual from block-level liveness, then
// walk the intervals in start order handing out registers until none
// remain, at which point the interval that frees a register latest is
// evicted to a spill slot.
package regalloc

import (
	"sort"

	"github.com/indutny/candor/internal/lir"
)

// RegisterCount is the size of the allocatable general-purpose
// register file this implementation targets. Concrete machine
// register names are an external, architecture-specific concern;
// callers of internal/codegen map register numbers 0..RegisterCount-1
// onto whatever the target's calling convention reserves for
// JIT-generated code.
const RegisterCount = 6

// Interval is one virtual's live range: the half-open position ranges
// [Start, End) during which it must be kept somewhere readable.
type Interval struct {
	Virtual *lir.Virtual
	Ranges  []Range
	Start   int
	End     int
}

// Range is one contiguous half-open live range within an Interval.
type Range struct {
	Start, End int
}

func (iv *Interval) covers(pos int) bool {
	for _, r := range iv.Ranges {
		if pos >= r.Start && pos < r.End {
			return true
		}
	}
	return false
}

func (iv *Interval) addRange(start, end int) {
	if start >= end {
		return
	}
	iv.Ranges = append(iv.Ranges, Range{start, end})
	if len(iv.Ranges) == 1 || start < iv.Start {
		iv.Start = start
	}
	if end > iv.End {
		iv.End = end
	}
}

// Result is the outcome of allocating one Func: every interval built
// for it, alongside the spill slot count the allocator ended up
// needing.
type Result struct {
	Intervals  []*Interval
	SpillSlots int
}

// Allocate assigns a register or spill slot to every virtual in fn,
// writing the decision back onto each lir.Virtual, and returns the
// intervals built along the way (mainly useful for tests and for a
// disassembly/diagnostics view).
func Allocate(fn *lir.Func) *Result {
	positions := number(fn)
	intervals := buildIntervals(fn, positions)

	sort.Slice(intervals, func(i, j int) bool { return intervals[i].Start < intervals[j].Start })

	r := &Result{Intervals: intervals}
	walk(intervals, r)
	return r
}

// number assigns each instruction (Label, body instructions, Gap,
// Term) in fn a strictly increasing integer position in block-listed
// order, used as the coordinate system live intervals are expressed
// in.
func number(fn *lir.Func) map[*lir.Instr]int {
	pos := make(map[*lir.Instr]int)
	n := 0
	for _, blk := range fn.Blocks {
		pos[blk.Label] = n
		n++
		for _, in := range blk.Instrs {
			pos[in] = n
			n++
		}
		if blk.Gap != nil {
			pos[blk.Gap] = n
			n++
		}
		if blk.Term != nil {
			pos[blk.Term] = n
			n++
		}
	}
	return pos
}

// buildIntervals runs backward liveness to a fixpoint over fn's CFG,
// then walks every block once more to turn the per-block live-in/out
// sets plus each instruction's own def/use into concrete ranges.
//
// This models each virtual's liveness as a single contiguous interval
// per block it is live in (rather than splitting around interior
// same-block gaps): adequate for a non-optimizing allocator, and
// simpler than tracking per-instruction holes.
func buildIntervals(fn *lir.Func, pos map[*lir.Instr]int) []*Interval {
	liveIn := make(map[*lir.Block]map[*lir.Virtual]bool)
	liveOut := make(map[*lir.Block]map[*lir.Virtual]bool)
	use := make(map[*lir.Block]map[*lir.Virtual]bool)
	def := make(map[*lir.Block]map[*lir.Virtual]bool)

	for _, blk := range fn.Blocks {
		u, d := blockUseDef(blk)
		use[blk], def[blk] = u, d
		liveIn[blk] = make(map[*lir.Virtual]bool)
		liveOut[blk] = make(map[*lir.Virtual]bool)
	}

	for changed := true; changed; {
		changed = false
		for _, blk := range fn.Blocks {
			out := make(map[*lir.Virtual]bool)
			for _, s := range blk.Succs {
				for v := range liveIn[s] {
					out[v] = true
				}
			}
			in := make(map[*lir.Virtual]bool)
			for v := range use[blk] {
				in[v] = true
			}
			for v := range out {
				if !def[blk][v] {
					in[v] = true
				}
			}
			if !sameSet(in, liveIn[blk]) || !sameSet(out, liveOut[blk]) {
				liveIn[blk], liveOut[blk] = in, out
				changed = true
			}
		}
	}

	byVirtual := make(map[*lir.Virtual]*Interval)
	get := func(v *lir.Virtual) *Interval {
		iv, ok := byVirtual[v]
		if !ok {
			iv = &Interval{Virtual: v}
			byVirtual[v] = iv
		}
		return iv
	}

	for _, blk := range fn.Blocks {
		blockStart := pos[blk.Label]
		blockEnd := blockStart
		if blk.Term != nil {
			blockEnd = pos[blk.Term] + 1
		} else if blk.Gap != nil {
			blockEnd = pos[blk.Gap] + 1
		}

		// localDefPos records, as we walk forward, the position at
		// which a virtual was defined earlier in this same block —
		// used so a use's range starts at the actual definition
		// rather than conservatively at the block's start.
		localDefPos := make(map[*lir.Virtual]int)
		recordDef := func(v *lir.Virtual, p int) {
			localDefPos[v] = p
			get(v).addRange(p, p+1)
		}
		recordUse := func(v *lir.Virtual, p int) {
			start := blockStart
			if d, ok := localDefPos[v]; ok {
				start = d
			}
			get(v).addRange(start, p+1)
		}

		for _, in := range blk.Instrs {
			p := pos[in]
			if in.Op != lir.OpPhi {
				// A phi's own Inputs are resolved via predecessor Gap
				// moves, not a use at the phi's own position.
				for _, u := range in.Inputs {
					recordUse(u.Value, p)
				}
			}
			if in.Result != nil {
				recordDef(in.Result, p)
			}
		}
		if blk.Gap != nil {
			p := pos[blk.Gap]
			for _, mv := range blk.Gap.Moves {
				recordUse(mv.From.Value, p)
				recordDef(mv.To.Value, p)
			}
		}
		if blk.Term != nil {
			p := pos[blk.Term]
			for _, u := range blk.Term.Inputs {
				recordUse(u.Value, p)
			}
		}

		for v := range liveIn[blk] {
			get(v).addRange(blockStart, blockEnd)
		}
		for v := range liveOut[blk] {
			if d, ok := localDefPos[v]; ok {
				get(v).addRange(d, blockEnd)
			} else {
				get(v).addRange(blockStart, blockEnd)
			}
		}
	}

	out := make([]*Interval, 0, len(byVirtual))
	for _, iv := range byVirtual {
		out = append(out, iv)
	}
	return out
}

func blockUseDef(blk *lir.Block) (use, def map[*lir.Virtual]bool) {
	use = make(map[*lir.Virtual]bool)
	def = make(map[*lir.Virtual]bool)
	mark := func(in *lir.Instr) {
		if in.Op != lir.OpPhi {
			for _, u := range in.Inputs {
				if !def[u.Value] {
					use[u.Value] = true
				}
			}
		}
		if in.Result != nil {
			def[in.Result] = true
		}
	}
	for _, in := range blk.Instrs {
		mark(in)
	}
	if blk.Gap != nil {
		for _, mv := range blk.Gap.Moves {
			if !def[mv.From.Value] {
				use[mv.From.Value] = true
			}
			def[mv.To.Value] = true
		}
	}
	if blk.Term != nil {
		for _, u := range blk.Term.Inputs {
			if !def[u.Value] {
				use[u.Value] = true
			}
		}
	}
	return use, def
}

func sameSet(a, b map[*lir.Virtual]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for v := range a {
		if !b[v] {
			return false
		}
	}
	return true
}

// active is the linear-scan working set: intervals currently holding
// a register, kept sorted by End so the one that frees latest is easy
// to find for AllocateBlockedReg.
type active struct {
	items []*Interval
	free  [RegisterCount]bool
}

func newActive() *active {
	a := &active{}
	for i := range a.free {
		a.free[i] = true
	}
	return a
}

func (a *active) expire(pos int) {
	kept := a.items[:0]
	for _, iv := range a.items {
		if iv.End <= pos {
			a.free[iv.Virtual.Reg] = true
		} else {
			kept = append(kept, iv)
		}
	}
	a.items = kept
}

func (a *active) add(iv *Interval) {
	a.items = append(a.items, iv)
	sort.Slice(a.items, func(i, j int) bool { return a.items[i].End < a.items[j].End })
}

// walk is the linear-scan main loop: AllocateFreeReg when a register
// is free, AllocateBlockedReg (spill the interval ending latest)
// otherwise.
func walk(intervals []*Interval, r *Result) {
	act := newActive()
	nextSpill := 0

	allocateFreeReg := func(iv *Interval) bool {
		for reg, isFree := range act.free {
			if isFree {
				act.free[reg] = false
				iv.Virtual.HasReg = true
				iv.Virtual.Reg = reg
				return true
			}
		}
		return false
	}

	allocateBlockedReg := func(iv *Interval) {
		if len(act.items) == 0 {
			assignSpill(iv, &nextSpill)
			return
		}
		// items sorted by End ascending; the last one ends latest.
		worst := act.items[len(act.items)-1]
		if worst.End > iv.End {
			// Evict worst, hand its register to iv.
			reg := worst.Virtual.Reg
			assignSpill(worst, &nextSpill)
			act.items = act.items[:len(act.items)-1]
			worst.Virtual.HasReg = false
			iv.Virtual.HasReg = true
			iv.Virtual.Reg = reg
			act.add(iv)
		} else {
			assignSpill(iv, &nextSpill)
		}
	}

	for _, iv := range intervals {
		act.expire(iv.Start)
		if allocateFreeReg(iv) {
			act.add(iv)
		} else {
			allocateBlockedReg(iv)
		}
	}

	r.SpillSlots = nextSpill
}

func assignSpill(iv *Interval, nextSpill *int) {
	iv.Virtual.HasReg = false
	iv.Virtual.Spill = *nextSpill
	*nextSpill++
}
