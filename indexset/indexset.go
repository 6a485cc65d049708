// Package indexset implements IndexSet: an ordered or permuted selection
// over a single source (§3.2, §4.2).
package indexset

import (
	"sort"

	"github.com/tugtool/arbor/errs"
	"github.com/tugtool/arbor/spread"
)

// Variant tags which shape an IndexSet holds.
type Variant int

const (
	VariantOrdered Variant = iota
	VariantPermuted
)

// IndexSet is one of Ordered(Spread) or Permuted{spread, perm,
// batch_grouped, restore_order}. Both shapes are held in one struct
// (rather than a Go interface) because every consumer needs to switch on
// Variant anyway and a flat struct keeps the hot paths (get_backing_index)
// allocation-free.
type IndexSet struct {
	variant Variant

	// Ordered
	ordered spread.Spread

	// Permuted
	permSpread     spread.Spread
	perm           []int // offsets into permSpread
	batchGrouped   bool
	restoreOrder   []int // optional; present iff batchGrouped
}

// Ordered builds an Ordered IndexSet over s.
func Ordered(s spread.Spread) IndexSet {
	return IndexSet{variant: VariantOrdered, ordered: s}
}

// Permuted builds a Permuted IndexSet. perm holds offsets into s, one per
// logical position, in logical (not storage-batch) order.
func Permuted(s spread.Spread, perm []int) IndexSet {
	return IndexSet{variant: VariantPermuted, permSpread: s, perm: perm}
}

// PermutedBatchGrouped builds a Permuted IndexSet whose perm has already
// been reordered to group offsets by storage batch, with restoreOrder
// recovering the logical order (a slice of positions into the grouped
// perm, one per logical position).
func PermutedBatchGrouped(s spread.Spread, groupedPerm, restoreOrder []int) IndexSet {
	return IndexSet{
		variant:      VariantPermuted,
		permSpread:   s,
		perm:         groupedPerm,
		batchGrouped: true,
		restoreOrder: restoreOrder,
	}
}

// FromOrderedIndices builds a Permuted IndexSet preserving the caller's
// original (possibly unsorted) logical order, resolving the Open
// Question from §9 about Spread::from_ordered_indices: the order lives
// in perm, not in the Spread, which must stay ascending-sorted by
// invariant.
func FromOrderedIndices(indices []int) IndexSet {
	sp, perm := spread.FromOrderedIndices(indices)
	return Permuted(sp, perm)
}

func (s IndexSet) Variant() Variant { return s.variant }
func (s IndexSet) IsOrdered() bool  { return s.variant == VariantOrdered }
func (s IndexSet) IsPermuted() bool { return s.variant == VariantPermuted }

// Spread returns the backing Spread regardless of variant.
func (s IndexSet) Spread() spread.Spread {
	if s.variant == VariantOrdered {
		return s.ordered
	}
	return s.permSpread
}

// Perm returns the permutation array for a Permuted set (nil for Ordered).
func (s IndexSet) Perm() []int { return s.perm }

// BatchGrouped reports whether perm has been reordered for I/O locality.
func (s IndexSet) BatchGrouped() bool { return s.batchGrouped }

// RestoreOrder returns the optional order-recovery slice.
func (s IndexSet) RestoreOrder() []int { return s.restoreOrder }

func (s IndexSet) Len() int {
	if s.variant == VariantOrdered {
		return s.ordered.Len()
	}
	return len(s.perm)
}

func (s IndexSet) IsEmpty() bool { return s.Len() == 0 }

// collapse returns the canonical empty Ordered IndexSet when s has
// become logically empty, otherwise s unchanged. Every transformation
// below funnels its result through this so no empty Permuted value
// escapes (§4.2: "Any IndexSet that after an operation becomes logically
// empty collapses to Ordered(Spread::EMPTY)").
func collapse(s IndexSet) IndexSet {
	if s.Len() == 0 {
		return Ordered(spread.Empty)
	}
	return s
}

// GetBackingIndex resolves a logical position to a backing index: for
// Ordered, delegates to spread.Get; for Permuted, resolves restoreOrder
// (if present) then perm then spread.Get.
func (s IndexSet) GetBackingIndex(logicalPos int) (int, bool) {
	if s.variant == VariantOrdered {
		return s.ordered.Get(logicalPos)
	}
	p := logicalPos
	if s.restoreOrder != nil {
		if p < 0 || p >= len(s.restoreOrder) {
			return 0, false
		}
		p = s.restoreOrder[p]
	}
	if p < 0 || p >= len(s.perm) {
		return 0, false
	}
	offset := s.perm[p]
	return s.permSpread.Get(offset)
}

// ToBackingIndicesForMutation sorts+dedups logical and validates bounds,
// returning the backing indices (§3.2, §4.2).
func (s IndexSet) ToBackingIndicesForMutation(op string, logical []int) ([]int, error) {
	sorted := append([]int(nil), logical...)
	sort.Ints(sorted)
	sorted = dedupSorted(sorted)

	n := s.Len()
	out := make([]int, 0, len(sorted))
	for _, pos := range sorted {
		if pos < 0 || pos >= n {
			return nil, errs.OutOfBounds(op, pos, n)
		}
		backing, ok := s.GetBackingIndex(pos)
		if !ok {
			return nil, errs.OutOfBounds(op, pos, n)
		}
		out = append(out, backing)
	}
	return out, nil
}

// Head returns the prefix of size min(n, Len()).
func (s IndexSet) Head(n int) IndexSet {
	if n < 0 {
		n = 0
	}
	if n >= s.Len() {
		return s
	}
	if s.variant == VariantOrdered {
		return collapse(Ordered(s.ordered.Head(n)))
	}
	perm := s.perm
	if s.restoreOrder != nil {
		// Materialize logical order before truncating; batch grouping
		// does not survive a narrowing operation.
		perm = logicalPerm(s)
	}
	return collapse(Permuted(s.permSpread, append([]int(nil), perm[:n]...)))
}

// Tail returns the suffix of size min(n, Len()).
func (s IndexSet) Tail(n int) IndexSet {
	if n < 0 {
		n = 0
	}
	if n >= s.Len() {
		return s
	}
	if s.variant == VariantOrdered {
		return collapse(Ordered(s.ordered.Tail(n)))
	}
	perm := logicalPerm(s)
	start := len(perm) - n
	return collapse(Permuted(s.permSpread, append([]int(nil), perm[start:]...)))
}

// Reverse returns a Permuted IndexSet iterating s in reverse logical
// order.
func (s IndexSet) Reverse() IndexSet {
	perm := logicalPerm(s)
	rev := make([]int, len(perm))
	for i, p := range perm {
		rev[len(perm)-1-i] = p
	}
	backing := s.Spread()
	return collapse(Permuted(backing, rev))
}

// LogicalPerm returns the permutation array in logical order (applying
// RestoreOrder if present), synthesizing the identity permutation for an
// Ordered set. Used by the composite package to lift an IndexSet into a
// CompositeIndexSet without losing batch-grouping's logical order.
func (s IndexSet) LogicalPerm() []int { return logicalPerm(s) }

// logicalPerm returns the perm slice in logical order, applying
// restoreOrder if present, for an Ordered set it synthesizes the
// identity perm 0..Len()-1.
func logicalPerm(s IndexSet) []int {
	if s.variant == VariantOrdered {
		perm := make([]int, s.ordered.Len())
		for i := range perm {
			perm[i] = i
		}
		return perm
	}
	if s.restoreOrder == nil {
		return s.perm
	}
	out := make([]int, len(s.restoreOrder))
	for i, p := range s.restoreOrder {
		out[i] = s.perm[p]
	}
	return out
}

// FilterBackingIndices restricts the set to only those logical positions
// whose backing index satisfies keep, preserving order. On an Ordered
// input the Spread is restricted directly; on a Permuted input the
// Spread is restricted and perm is rebuilt to drop offsets that now
// point outside the restricted Spread (§4.5).
func (s IndexSet) FilterBackingIndices(keep func(backingIdx int) bool) IndexSet {
	if s.variant == VariantOrdered {
		var kept []int
		s.ordered.Iterate(func(i int) bool {
			if keep(i) {
				kept = append(kept, i)
			}
			return true
		})
		return collapse(Ordered(spread.FromSorted(kept)))
	}

	perm := logicalPerm(s)
	keptIdx := make([]int, 0, len(perm))
	for _, off := range perm {
		backing, ok := s.permSpread.Get(off)
		if ok && keep(backing) {
			keptIdx = append(keptIdx, backing)
		}
	}
	sortedKept := append([]int(nil), keptIdx...)
	sort.Ints(sortedKept)
	newSpread := spread.FromSorted(sortedKept)

	offsetOf := make(map[int]int, newSpread.Len())
	pos := 0
	for _, st := range newSpread.Stretches() {
		for v := st.Start; v < st.End; v++ {
			offsetOf[v] = pos
			pos++
		}
	}
	newPerm := make([]int, 0, len(keptIdx))
	for _, off := range perm {
		backing, ok := s.permSpread.Get(off)
		if ok && keep(backing) {
			newPerm = append(newPerm, offsetOf[backing])
		}
	}
	return collapse(Permuted(newSpread, newPerm))
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
