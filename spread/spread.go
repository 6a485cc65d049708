// Package spread implements Stretch and Spread: a run-length-encoded
// sparse set of non-negative integer indices, and the set-algebra
// operations the physical executor composes without ever materializing
// tree data (§3.1, §4.1 of the specification).
package spread

import (
	"sort"

	"golang.org/x/exp/slices"
)

// Stretch is a half-open range [Start, End) of indices. It is empty iff
// Start == End.
type Stretch struct {
	Start, End int
}

func (s Stretch) Len() int { return s.End - s.Start }
func (s Stretch) Empty() bool { return s.Start >= s.End }

// Spread is a sorted, non-overlapping, non-adjacent, non-empty sequence
// of stretches with a cached cardinality.
type Spread struct {
	stretches []Stretch
	length    int
}

// Empty is the canonical empty Spread.
var Empty = Spread{}

// Full returns the Spread covering [0, n).
func Full(n int) Spread {
	if n <= 0 {
		return Empty
	}
	return Spread{stretches: []Stretch{{0, n}}, length: n}
}

// FromRange returns the Spread covering [start, end).
func FromRange(start, end int) Spread {
	if end <= start {
		return Empty
	}
	return Spread{stretches: []Stretch{{start, end}}, length: end - start}
}

// FromSorted builds a Spread from a sorted, possibly-duplicated slice of
// indices, deduplicating and merging runs into stretches.
func FromSorted(indices []int) Spread {
	if len(indices) == 0 {
		return Empty
	}
	var out []Stretch
	start := indices[0]
	prev := indices[0]
	for _, idx := range indices[1:] {
		if idx == prev {
			continue
		}
		if idx == prev+1 {
			prev = idx
			continue
		}
		out = append(out, Stretch{start, prev + 1})
		start = idx
		prev = idx
	}
	out = append(out, Stretch{start, prev + 1})
	return fromStretches(out)
}

// FromUnsorted sorts and deduplicates indices before delegating to
// FromSorted.
func FromUnsorted(indices []int) Spread {
	if len(indices) == 0 {
		return Empty
	}
	cp := slices.Clone(indices)
	sort.Ints(cp)
	return FromSorted(cp)
}

// FromOrderedIndices builds a Spread-backed ordered view that preserves
// the caller's original order by returning both the Spread of the
// deduplicated-but-sorted backing indices AND the permutation needed to
// restore the caller's order; see indexset.FromOrderedIndices for the
// IndexSet-level constructor. This resolves the Open Question in §9
// ("Spread::from_ordered_indices"): a Spread alone cannot carry order
// (its invariant is ascending sort), so the order-preserving constructor
// lives one layer up, in indexset, and is built from this function's
// two return values.
func FromOrderedIndices(indices []int) (sp Spread, perm []int) {
	if len(indices) == 0 {
		return Empty, nil
	}
	type pair struct{ idx, pos int }
	pairs := make([]pair, len(indices))
	for i, idx := range indices {
		pairs[i] = pair{idx, i}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].idx < pairs[j].idx })

	sorted := make([]int, len(pairs))
	for i, p := range pairs {
		sorted[i] = p.idx
	}
	sp = FromSorted(sorted)

	// perm[i] must be an offset into sp (post-dedup) for logical position
	// i in the caller's original order. Build offset-in-sp for each
	// deduplicated sorted index, then map original order through it.
	offsetOf := make(map[int]int, sp.length)
	pos := 0
	for _, st := range sp.stretches {
		for v := st.Start; v < st.End; v++ {
			offsetOf[v] = pos
			pos++
		}
	}
	seen := make(map[int]bool, len(indices))
	perm = make([]int, 0, len(indices))
	for _, idx := range indices {
		if seen[idx] {
			continue
		}
		seen[idx] = true
		perm = append(perm, offsetOf[idx])
	}
	return sp, perm
}

func fromStretches(stretches []Stretch) Spread {
	length := 0
	for _, s := range stretches {
		length += s.Len()
	}
	if length == 0 {
		return Empty
	}
	return Spread{stretches: stretches, length: length}
}

func (s Spread) Len() int { return s.length }

func (s Spread) IsEmpty() bool { return s.length == 0 }

// Stretches exposes the backing runs read-only.
func (s Spread) Stretches() []Stretch { return s.stretches }

// IsContiguous reports whether the Spread is a single stretch.
func (s Spread) IsContiguous() bool { return len(s.stretches) == 1 }

// AsRange returns (start, end, true) when the Spread is a single
// contiguous stretch, else (0, 0, false).
func (s Spread) AsRange() (int, int, bool) {
	if !s.IsContiguous() {
		return 0, 0, false
	}
	return s.stretches[0].Start, s.stretches[0].End, true
}

// Get returns the backing index at logical_offset, walking stretches in
// order (O(S), S = number of stretches).
func (s Spread) Get(logicalOffset int) (int, bool) {
	if logicalOffset < 0 || logicalOffset >= s.length {
		return 0, false
	}
	remaining := logicalOffset
	for _, st := range s.stretches {
		if remaining < st.Len() {
			return st.Start + remaining, true
		}
		remaining -= st.Len()
	}
	return 0, false
}

// Contains reports whether index is present, via binary search over
// stretch starts (O(log S)).
func (s Spread) Contains(index int) bool {
	i, found := slices.BinarySearchFunc(s.stretches, index, func(st Stretch, target int) int {
		if target < st.Start {
			return 1
		}
		if target >= st.End {
			return -1
		}
		return 0
	})
	return found && s.stretches[i].Start <= index && index < s.stretches[i].End
}

// Excluding removes the given backing indices (need not be sorted or
// deduplicated by the caller) and returns a new Spread, splitting
// stretches at the removal points. O(K log K + S).
func (s Spread) Excluding(removals []int) Spread {
	if len(removals) == 0 || s.IsEmpty() {
		return s
	}
	rm := slices.Clone(removals)
	sort.Ints(rm)
	rm = dedupSorted(rm)

	var out []Stretch
	ri := 0
	for _, st := range s.stretches {
		cur := st.Start
		for ri < len(rm) && rm[ri] < st.Start {
			ri++
		}
		for ri < len(rm) && rm[ri] < st.End {
			if rm[ri] > cur {
				out = append(out, Stretch{cur, rm[ri]})
			}
			cur = rm[ri] + 1
			ri++
		}
		if cur < st.End {
			out = append(out, Stretch{cur, st.End})
		}
	}
	return fromStretches(out)
}

// Appending merges other onto the end of s. The caller guarantees
// other's smallest index is >= s's largest index; adjacent runs at the
// boundary are coalesced.
func (s Spread) Appending(other Spread) Spread {
	if s.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return s
	}
	out := make([]Stretch, 0, len(s.stretches)+len(other.stretches))
	out = append(out, s.stretches...)
	last := out[len(out)-1]
	first := other.stretches[0]
	if last.End == first.Start {
		out[len(out)-1] = Stretch{last.Start, first.End}
		out = append(out, other.stretches[1:]...)
	} else {
		out = append(out, other.stretches...)
	}
	return fromStretches(out)
}

// Head returns the prefix of size min(n, Len()); a stretch straddling
// the boundary is truncated rather than split-and-kept whole.
func (s Spread) Head(n int) Spread {
	if n <= 0 {
		return Empty
	}
	if n >= s.length {
		return s
	}
	var out []Stretch
	remaining := n
	for _, st := range s.stretches {
		if remaining <= 0 {
			break
		}
		if st.Len() <= remaining {
			out = append(out, st)
			remaining -= st.Len()
		} else {
			out = append(out, Stretch{st.Start, st.Start + remaining})
			remaining = 0
		}
	}
	return fromStretches(out)
}

// Skip drops the first n indices, returning the remainder.
func (s Spread) Skip(n int) Spread {
	if n <= 0 {
		return s
	}
	if n >= s.length {
		return Empty
	}
	var out []Stretch
	remaining := n
	for _, st := range s.stretches {
		if remaining <= 0 {
			out = append(out, st)
			continue
		}
		if st.Len() <= remaining {
			remaining -= st.Len()
			continue
		}
		out = append(out, Stretch{st.Start + remaining, st.End})
		remaining = 0
	}
	return fromStretches(out)
}

// Tail returns the suffix of size min(n, Len()).
func (s Spread) Tail(n int) Spread {
	if n <= 0 {
		return Empty
	}
	if n >= s.length {
		return s
	}
	return s.Skip(s.length - n)
}

// Intersection sweeps both sorted stretch lists with two cursors.
func (s Spread) Intersection(other Spread) Spread {
	var out []Stretch
	i, j := 0, 0
	for i < len(s.stretches) && j < len(other.stretches) {
		a, b := s.stretches[i], other.stretches[j]
		start := max(a.Start, b.Start)
		end := min(a.End, b.End)
		if start < end {
			out = append(out, Stretch{start, end})
		}
		if a.End < b.End {
			i++
		} else {
			j++
		}
	}
	return fromStretches(out)
}

// ReversedPerm returns the same index set with Iteration order reversed,
// expressed as a permutation over this Spread's offsets (0..Len()-1
// reversed).
func (s Spread) ReversedPerm() []int {
	perm := make([]int, s.length)
	for i := range perm {
		perm[i] = s.length - 1 - i
	}
	return perm
}

// Iterate calls yield for every index in ascending order without heap
// allocation beyond the closure capture.
func (s Spread) Iterate(yield func(index int) bool) {
	for _, st := range s.stretches {
		for i := st.Start; i < st.End; i++ {
			if !yield(i) {
				return
			}
		}
	}
}

// ToSlice materializes all indices; intended for tests and small spreads
// (the iteration budget machinery in physical avoids this on hot paths).
func (s Spread) ToSlice() []int {
	out := make([]int, 0, s.length)
	s.Iterate(func(i int) bool {
		out = append(out, i)
		return true
	})
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

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
