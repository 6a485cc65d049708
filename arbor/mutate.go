package arbor

import (
	"github.com/tugtool/arbor/plan"
	"github.com/tugtool/arbor/tree"
)

// Append adds trees to the end.
func (a *Arbor) Append(trees ...*tree.OwnedTree) (*Arbor, error) {
	return derive(a, &plan.Append{Source: a.plan, Trees: trees}, tree.NewSchema())
}

// Insert places trees starting at position, shifting rows at and after
// position back.
func (a *Arbor) Insert(position int, trees ...*tree.OwnedTree) (*Arbor, error) {
	return derive(a, plan.NewInsert(a.plan, position, trees), tree.NewSchema())
}

// Set replaces the row at index.
func (a *Arbor) Set(index int, t *tree.OwnedTree) (*Arbor, error) {
	return derive(a, &plan.Set{Source: a.plan, Index: index, Tree: t}, tree.NewSchema())
}

// Remove drops the given logical positions.
func (a *Arbor) Remove(indices ...int) (*Arbor, error) {
	return derive(a, &plan.Remove{Source: a.plan, Indices: indices}, a.schema)
}

// Concat appends every row of other to the end of a. It materializes
// other (its rows become ordinary Append input) rather than threading
// two independent plans through one executor, since CompositeIndexSet's
// Base segments are only ever expressed in one root source's index
// space (see Execution's doc comment in package physical).
func (a *Arbor) Concat(other *Arbor) (*Arbor, error) {
	data, err := other.Collect()
	if err != nil {
		return nil, err
	}
	return a.Append(data.Trees...)
}
