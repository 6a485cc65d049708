// Package virtual defines VirtualIndex, VirtualKey, and Segment: the
// identity of one element in a composite view and the contiguous runs a
// CompositeIndexSet is built from (§3.3).
package virtual

import "github.com/tugtool/arbor/spread"

// Kind tags which variant a VirtualIndex holds.
type Kind int

const (
	Base Kind = iota
	Appended
	Inserted
)

// Index identifies one element in a composite view.
type Index struct {
	kind   Kind
	slot   uint64 // valid iff kind == Inserted
	offset int    // backing index for Base, offset for Appended/Inserted
}

func NewBase(backingIdx int) Index     { return Index{kind: Base, offset: backingIdx} }
func NewAppended(offset int) Index     { return Index{kind: Appended, offset: offset} }
func NewInserted(slot uint64, offset int) Index {
	return Index{kind: Inserted, slot: slot, offset: offset}
}

func (v Index) Kind() Kind   { return v.kind }
func (v Index) Offset() int  { return v.offset }
func (v Index) Slot() uint64 { return v.slot }

// Key mirrors Index for Appended/Inserted entries in the replacement
// maps; it deliberately excludes Base (base replacements are keyed
// directly by backing index, a plain int, per §3.5).
type Key struct {
	kind   Kind
	slot   uint64
	offset int
}

// AsKey converts an Appended/Inserted Index into its replacement-map key.
// Calling it on a Base Index is a programmer error in this package's
// callers (base replacements never go through VirtualKey); it returns the
// zero Key in that case.
func (v Index) AsKey() Key {
	if v.kind == Base {
		return Key{}
	}
	return Key{kind: v.kind, slot: v.slot, offset: v.offset}
}

// Segment is one contiguous run of virtual indices in logical order.
type Segment struct {
	kind Kind

	// Base / Appended / Inserted all address a range via a Spread of
	// either backing indices (Base) or vector offsets (Appended,
	// Inserted). PermutedBase instead slices a shared perm array.
	spread spread.Spread

	// PermutedBase fields. perm is shared (reference-counted in the
	// source language; Go's GC plus a shared slice header gives the same
	// effect) so splitting is O(1).
	isPermutedBase bool
	perm           []int
	permStart      int
	permLen        int

	// Inserted-only.
	slot uint64

	// Appended/Inserted: the first offset the segment covers.
	startOffset int
}

func NewBaseSegment(sp spread.Spread) Segment {
	return Segment{kind: Base, spread: sp}
}

// NewPermutedBaseSegment wraps a shared perm array. perm holds offsets
// into sp; permStart/permLen slice the logical range this segment covers.
func NewPermutedBaseSegment(sp spread.Spread, perm []int, permStart, permLen int) Segment {
	return Segment{kind: Base, spread: sp, isPermutedBase: true, perm: perm, permStart: permStart, permLen: permLen}
}

// NewAppendedSegment covers count offsets starting at startOffset into
// the appends vector.
func NewAppendedSegment(startOffset, count int) Segment {
	return Segment{kind: Appended, startOffset: startOffset, spread: spread.FromRange(startOffset, startOffset+count)}
}

// NewAppendedSegmentFromSpread rebuilds an Appended segment directly from
// an offsets Spread (used after a removal punches holes).
func NewAppendedSegmentFromSpread(sp spread.Spread) Segment {
	start, _, contiguous := sp.AsRange()
	if !contiguous {
		start, _ = sp.Get(0)
	}
	return Segment{kind: Appended, startOffset: start, spread: sp}
}

func NewInsertedSegment(slot uint64, startOffset, count int) Segment {
	return Segment{kind: Inserted, slot: slot, startOffset: startOffset, spread: spread.FromRange(startOffset, startOffset+count)}
}

func NewInsertedSegmentFromSpread(slot uint64, sp spread.Spread) Segment {
	start, _, contiguous := sp.AsRange()
	if !contiguous {
		start, _ = sp.Get(0)
	}
	return Segment{kind: Inserted, slot: slot, startOffset: start, spread: sp}
}

func (s Segment) Kind() Kind             { return s.kind }
func (s Segment) IsPermutedBase() bool   { return s.isPermutedBase }
func (s Segment) Slot() uint64           { return s.slot }
func (s Segment) OffsetsSpread() spread.Spread { return s.spread }
func (s Segment) StartOffset() int       { return s.startOffset }

func (s Segment) Len() int {
	if s.isPermutedBase {
		return s.permLen
	}
	return s.spread.Len()
}

// Get resolves local position i (0 <= i < Len()) to a VirtualIndex.
func (s Segment) Get(i int) Index {
	switch {
	case s.isPermutedBase:
		offset := s.perm[s.permStart+i]
		backing, _ := s.spread.Get(offset)
		return NewBase(backing)
	case s.kind == Base:
		backing, _ := s.spread.Get(i)
		return NewBase(backing)
	case s.kind == Appended:
		off, _ := s.spread.Get(i)
		return NewAppended(off)
	default: // Inserted
		off, _ := s.spread.Get(i)
		return NewInserted(s.slot, off)
	}
}

// SplitAt splits the segment into [0,at) and [at,Len()). For PermutedBase
// this is O(1) through shared perm.
func (s Segment) SplitAt(at int) (left, right Segment) {
	if s.isPermutedBase {
		left = Segment{kind: Base, spread: s.spread, isPermutedBase: true, perm: s.perm, permStart: s.permStart, permLen: at}
		right = Segment{kind: Base, spread: s.spread, isPermutedBase: true, perm: s.perm, permStart: s.permStart + at, permLen: s.permLen - at}
		return left, right
	}

	// Base/Appended/Inserted: the embedded spread is ascending (built
	// from a single run or from Excluding, which may leave holes but
	// never reintroduces an out-of-order run), so splitting at a local
	// offset is Head/Skip at that logical position.
	leftSp, rightSp := splitSpreadAt(s.spread, at)
	switch s.kind {
	case Base:
		return NewBaseSegment(leftSp), NewBaseSegment(rightSp)
	case Appended:
		return NewAppendedSegmentFromSpread(leftSp), NewAppendedSegmentFromSpread(rightSp)
	default:
		return NewInsertedSegmentFromSpread(s.slot, leftSp), NewInsertedSegmentFromSpread(s.slot, rightSp)
	}
}

func splitSpreadAt(sp spread.Spread, at int) (left, right spread.Spread) {
	return sp.Head(at), sp.Skip(at)
}

// Removing drops the given local (segment-relative) offsets, already
// sorted and deduplicated, and returns the resulting segment plus
// whether it is now empty.
func (s Segment) Removing(localOffsets []int) (Segment, bool) {
	if len(localOffsets) == 0 {
		return s, s.Len() == 0
	}
	if s.isPermutedBase {
		newLen := s.permLen - len(localOffsets)
		if newLen <= 0 {
			return Segment{}, true
		}
		drop := make(map[int]bool, len(localOffsets))
		for _, o := range localOffsets {
			drop[o] = true
		}
		newPerm := make([]int, 0, newLen)
		for i := 0; i < s.permLen; i++ {
			if !drop[i] {
				newPerm = append(newPerm, s.perm[s.permStart+i])
			}
		}
		return Segment{kind: Base, spread: s.spread, isPermutedBase: true, perm: newPerm, permStart: 0, permLen: len(newPerm)}, false
	}

	backingRemovals := make([]int, 0, len(localOffsets))
	for _, o := range localOffsets {
		backing, _ := s.spread.Get(o)
		backingRemovals = append(backingRemovals, backing)
	}
	newSpread := s.spread.Excluding(backingRemovals)
	if newSpread.IsEmpty() {
		return Segment{}, true
	}
	switch s.kind {
	case Base:
		return NewBaseSegment(newSpread), false
	case Appended:
		return NewAppendedSegmentFromSpread(newSpread), false
	default:
		return NewInsertedSegmentFromSpread(s.slot, newSpread), false
	}
}
