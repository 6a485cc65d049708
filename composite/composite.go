// Package composite implements CompositeIndexSet: an ordered sequence of
// Segments representing a virtual selection that may include appends,
// insertions, holes, and permutations (§3.4, §4.3).
package composite

import (
	"sort"

	"github.com/tugtool/arbor/errs"
	"github.com/tugtool/arbor/indexset"
	"github.com/tugtool/arbor/spread"
	"github.com/tugtool/arbor/virtual"
)

// CompositeIndexSet is an ordered sequence of Segments plus a cached
// total length. Empty segments are never stored.
type CompositeIndexSet struct {
	segments []virtual.Segment
	length   int
}

// FromSpread builds a one-segment composite over a base Spread.
func FromSpread(sp spread.Spread) CompositeIndexSet {
	if sp.IsEmpty() {
		return CompositeIndexSet{}
	}
	return CompositeIndexSet{segments: []virtual.Segment{virtual.NewBaseSegment(sp)}, length: sp.Len()}
}

// FromIndexSet turns an Ordered or Permuted IndexSet into a one-segment
// composite, preserving PermutedBase identity (and its O(1)-split shared
// perm array) for the Permuted case.
func FromIndexSet(is indexset.IndexSet) CompositeIndexSet {
	if is.IsEmpty() {
		return CompositeIndexSet{}
	}
	if is.IsOrdered() {
		return FromSpread(is.Spread())
	}
	perm := is.LogicalPerm()
	seg := virtual.NewPermutedBaseSegment(is.Spread(), perm, 0, len(perm))
	return CompositeIndexSet{segments: []virtual.Segment{seg}, length: seg.Len()}
}

func (c CompositeIndexSet) Len() int      { return c.length }
func (c CompositeIndexSet) IsEmpty() bool { return c.length == 0 }

// Segments exposes the backing runs read-only.
func (c CompositeIndexSet) Segments() []virtual.Segment { return c.segments }

// Get walks segments, subtracting segment.Len() until remaining <
// segment.Len(), then defers to Segment.Get(remaining). O(S).
func (c CompositeIndexSet) Get(logicalPos int) (virtual.Index, bool) {
	if logicalPos < 0 || logicalPos >= c.length {
		return virtual.Index{}, false
	}
	remaining := logicalPos
	for _, seg := range c.segments {
		if remaining < seg.Len() {
			return seg.Get(remaining), true
		}
		remaining -= seg.Len()
	}
	return virtual.Index{}, false
}

func rebuild(segments []virtual.Segment) CompositeIndexSet {
	var filtered []virtual.Segment
	length := 0
	for _, s := range segments {
		if s.Len() == 0 {
			continue
		}
		filtered = append(filtered, s)
		length += s.Len()
	}
	return CompositeIndexSet{segments: filtered, length: length}
}

// Appending extends the trailing Appended segment if its run is
// contiguous with [appendStart, appendStart+count), otherwise pushes a
// new Appended segment. O(1).
func (c CompositeIndexSet) Appending(appendStart, count int) CompositeIndexSet {
	if count <= 0 {
		return c
	}
	if len(c.segments) > 0 {
		last := c.segments[len(c.segments)-1]
		if last.Kind() == virtual.Appended {
			start, end, ok := last.OffsetsSpread().AsRange()
			if ok && end == appendStart {
				newSeg := virtual.NewAppendedSegment(start, (end+count)-start)
				segs := append(append([]virtual.Segment(nil), c.segments[:len(c.segments)-1]...), newSeg)
				return CompositeIndexSet{segments: segs, length: c.length + count}
			}
		}
	}
	newSeg := virtual.NewAppendedSegment(appendStart, count)
	segs := append(append([]virtual.Segment(nil), c.segments...), newSeg)
	return CompositeIndexSet{segments: segs, length: c.length + count}
}

// Removing drops the given logical positions (sorted+deduped internally)
// via one pass over segments carrying a cumulative logical offset and a
// position cursor (§4.3). Positions >= Len() are rejected with
// IndexOutOfBounds.
func (c CompositeIndexSet) Removing(op string, logicalPositions []int) (CompositeIndexSet, error) {
	if len(logicalPositions) == 0 {
		return c, nil
	}
	sorted := append([]int(nil), logicalPositions...)
	sort.Ints(sorted)
	sorted = dedupSorted(sorted)
	for _, p := range sorted {
		if p < 0 || p >= c.length {
			return CompositeIndexSet{}, errs.OutOfBounds(op, p, c.length)
		}
	}

	var newSegments []virtual.Segment
	segStart := 0
	posIdx := 0
	for _, seg := range c.segments {
		segEnd := segStart + seg.Len()
		var local []int
		for posIdx < len(sorted) && sorted[posIdx] < segEnd {
			local = append(local, sorted[posIdx]-segStart)
			posIdx++
		}
		if len(local) == 0 {
			newSegments = append(newSegments, seg)
		} else {
			newSeg, empty := seg.Removing(local)
			if !empty {
				newSegments = append(newSegments, newSeg)
			}
		}
		segStart = segEnd
	}
	return rebuild(newSegments), nil
}

// Inserting splits the segment containing pos (boundary pos==segEnd
// attaches to that segment's end) and places an Inserted segment of
// count elements between the halves. pos == Len() appends at the tail.
// O(S); splitting a PermutedBase half is O(1).
func (c CompositeIndexSet) Inserting(op string, slot uint64, pos, count int) (CompositeIndexSet, error) {
	if pos < 0 || pos > c.length {
		return CompositeIndexSet{}, errs.OutOfBounds(op, pos, c.length+1)
	}
	if count <= 0 {
		return c, nil
	}
	insertedSeg := virtual.NewInsertedSegment(slot, 0, count)

	if pos == c.length {
		segs := append(append([]virtual.Segment(nil), c.segments...), insertedSeg)
		return CompositeIndexSet{segments: segs, length: c.length + count}, nil
	}

	var newSegments []virtual.Segment
	segStart := 0
	placed := false
	for _, seg := range c.segments {
		segEnd := segStart + seg.Len()
		if !placed && pos >= segStart && pos < segEnd {
			local := pos - segStart
			if local == 0 {
				newSegments = append(newSegments, insertedSeg, seg)
			} else {
				left, right := seg.SplitAt(local)
				newSegments = append(newSegments, left, insertedSeg, right)
			}
			placed = true
		} else {
			newSegments = append(newSegments, seg)
		}
		segStart = segEnd
	}
	if !placed {
		// pos == c.length already handled above; this path only runs if
		// segments is empty and pos == 0 == c.length, also handled above.
		newSegments = append(newSegments, insertedSeg)
	}
	return CompositeIndexSet{segments: newSegments, length: c.length + count}, nil
}

// Head keeps the first n logical positions (min(n, Len())), expressed as
// a Removing of the complementary tail range so no new segment
// algorithms are needed beyond removing.
func (c CompositeIndexSet) Head(n int) CompositeIndexSet {
	if n < 0 {
		n = 0
	}
	if n >= c.length {
		return c
	}
	drop := make([]int, 0, c.length-n)
	for i := n; i < c.length; i++ {
		drop = append(drop, i)
	}
	out, _ := c.Removing("CompositeIndexSet.Head", drop)
	return out
}

// Tail keeps the last n logical positions, symmetric to Head.
func (c CompositeIndexSet) Tail(n int) CompositeIndexSet {
	if n < 0 {
		n = 0
	}
	if n >= c.length {
		return c
	}
	drop := make([]int, 0, c.length-n)
	for i := 0; i < c.length-n; i++ {
		drop = append(drop, i)
	}
	out, _ := c.Removing("CompositeIndexSet.Tail", drop)
	return out
}

func dedupSorted(xs []int) []int {
	if len(xs) == 0 {
		return xs
	}
	out := xs[:1]
	for _, x := range xs[1:] {
		if x != out[len(out)-1] {
			out = append(out, x)
		}
	}
	return out
}
