// Package mutation implements MutationLayer, CompositeSource, and slot id
// allocation: the overlay that carries actual tree data for non-Base
// virtual indices, plus replacement trees (§3.5, §3.6, §4.4).
package mutation

import (
	"sync/atomic"

	"github.com/tugtool/arbor/tree"
	"github.com/tugtool/arbor/virtual"
)

// slotCounter is the process-wide monotonic counter slot ids are drawn
// from (§4.4: "a process-wide monotonic u64 counter, incremented at
// Insert plan-node construction"). Correctness only requires uniqueness
// within one process, never a happens-before relation across processes,
// so relaxed atomic increment is sufficient (§5).
var slotCounter uint64

// NextSlot allocates a fresh, process-unique insertion slot id. Called
// exactly once per Insert plan node, at construction time — never during
// execution or optimization, so cloning a plan never reallocates ids.
func NextSlot() uint64 {
	return atomic.AddUint64(&slotCounter, 1)
}

// Layer carries the trees addressed by non-Base virtual indices and the
// replacement overlays for all variants. Once an *Layer value has been
// wrapped for sharing (handed to more than one PhysicalResult/Arbor), it
// is never mutated again; extending it for a flattened composite
// constructs a new Layer value (§5, §9).
type Layer struct {
	Appends      []*tree.OwnedTree
	Insertions   map[uint64][]*tree.OwnedTree
	BaseReplacements    map[int]*tree.OwnedTree
	VirtualReplacements map[virtual.Key]*tree.OwnedTree
}

// Empty returns a fresh Layer with no overlay data.
func Empty() *Layer {
	return &Layer{
		Insertions:          make(map[uint64][]*tree.OwnedTree),
		BaseReplacements:    make(map[int]*tree.OwnedTree),
		VirtualReplacements: make(map[virtual.Key]*tree.OwnedTree),
	}
}

// WithAppended returns a new Layer whose Appends has the given trees
// added at the end. The receiver is left untouched; this is the "extend
// the layer... flatten, do not nest" operation from §4.5, expressed as a
// value copy-on-write since the layer is conceptually immutable once
// shared.
func (l *Layer) WithAppended(trees []*tree.OwnedTree) *Layer {
	next := l.shallowCopy()
	next.Appends = append(append([]*tree.OwnedTree(nil), l.Appends...), trees...)
	return next
}

// WithInsertion returns a new Layer with insertions[slot] = trees.
func (l *Layer) WithInsertion(slot uint64, trees []*tree.OwnedTree) *Layer {
	next := l.shallowCopy()
	next.Insertions = cloneTreeMap(l.Insertions)
	next.Insertions[slot] = trees
	return next
}

// WithBaseReplacement returns a new Layer with base_replacements[backingIdx] = t.
func (l *Layer) WithBaseReplacement(backingIdx int, t *tree.OwnedTree) *Layer {
	next := l.shallowCopy()
	next.BaseReplacements = cloneIntMap(l.BaseReplacements)
	next.BaseReplacements[backingIdx] = t
	return next
}

// WithVirtualReplacement returns a new Layer with
// virtual_replacements[key] = t.
func (l *Layer) WithVirtualReplacement(key virtual.Key, t *tree.OwnedTree) *Layer {
	next := l.shallowCopy()
	next.VirtualReplacements = cloneKeyMap(l.VirtualReplacements)
	next.VirtualReplacements[key] = t
	return next
}

func (l *Layer) shallowCopy() *Layer {
	return &Layer{
		Appends:             l.Appends,
		Insertions:          l.Insertions,
		BaseReplacements:    l.BaseReplacements,
		VirtualReplacements: l.VirtualReplacements,
	}
}

func cloneTreeMap(m map[uint64][]*tree.OwnedTree) map[uint64][]*tree.OwnedTree {
	next := make(map[uint64][]*tree.OwnedTree, len(m)+1)
	for k, v := range m {
		next[k] = v
	}
	return next
}

func cloneIntMap(m map[int]*tree.OwnedTree) map[int]*tree.OwnedTree {
	next := make(map[int]*tree.OwnedTree, len(m)+1)
	for k, v := range m {
		next[k] = v
	}
	return next
}

func cloneKeyMap(m map[virtual.Key]*tree.OwnedTree) map[virtual.Key]*tree.OwnedTree {
	next := make(map[virtual.Key]*tree.OwnedTree, len(m)+1)
	for k, v := range m {
		next[k] = v
	}
	return next
}

// Resolve fetches the tree at idx by consulting replacements first, then
// the layer's appends/insertions, then base, in the order fixed by §4.4.
// base is the "underlying base source, which may itself be in-memory or
// stored" from §3.6.
func (l *Layer) Resolve(base tree.Source, idx virtual.Index) (*tree.OwnedTree, error) {
	switch idx.Kind() {
	case virtual.Base:
		if t, ok := l.BaseReplacements[idx.Offset()]; ok {
			return t, nil
		}
		return base.GetBacking(idx.Offset())
	case virtual.Appended:
		if t, ok := l.VirtualReplacements[idx.AsKey()]; ok {
			return t, nil
		}
		return l.Appends[idx.Offset()], nil
	default: // Inserted
		if t, ok := l.VirtualReplacements[idx.AsKey()]; ok {
			return t, nil
		}
		return l.Insertions[idx.Slot()][idx.Offset()], nil
	}
}

// Source binds a Layer to a tree.Source, giving CompositeSource's
// resolve-a-VirtualIndex-to-a-tree behavior from §3.6 as a single call.
type Source struct {
	Layer *Layer
	Base  tree.Source
}

func NewSource(layer *Layer, base tree.Source) Source {
	return Source{Layer: layer, Base: base}
}

func (s Source) Resolve(idx virtual.Index) (*tree.OwnedTree, error) {
	return s.Layer.Resolve(s.Base, idx)
}
