// Package physical implements PhysicalResult, the physical executor, and
// lazy chunked iteration (§3.7, §4.5, §4.8).
package physical

import (
	"github.com/tugtool/arbor/composite"
	"github.com/tugtool/arbor/indexset"
	"github.com/tugtool/arbor/mutation"
	"github.com/tugtool/arbor/tree"
)

// Variant tags which shape a Result holds.
type Variant int

const (
	VariantIndices Variant = iota
	VariantCompositeIndices
	VariantComposite
	VariantInMemory
)

// Result is PhysicalResult (§3.7), the output of executing one plan
// node. Held as a flat tagged struct (like indexset.IndexSet) rather
// than an interface because the executor and iterator switch on Variant
// constantly and a flat struct keeps that allocation-free; Composite's
// Base field makes it self-referential, so it is held behind a pointer
// even though Result values themselves are usually passed by value.
type Result struct {
	variant Variant

	indices   indexset.IndexSet          // Indices
	composite composite.CompositeIndexSet // CompositeIndices, Composite

	base  *Result      // Composite
	layer *mutation.Layer // Composite

	data *tree.Materialized // InMemory
}

func FromIndices(is indexset.IndexSet) Result {
	return Result{variant: VariantIndices, indices: is}
}

func FromCompositeIndices(ci composite.CompositeIndexSet) Result {
	return Result{variant: VariantCompositeIndices, composite: ci}
}

// FromComposite builds a Composite result. Per §3.7's flatness
// invariant, base must not itself be VariantComposite — callers extend
// an existing Composite in place (see Append/Remove/Set/Insert
// execution) rather than nesting.
func FromComposite(base *Result, layer *mutation.Layer, ci composite.CompositeIndexSet) Result {
	return Result{variant: VariantComposite, base: base, layer: layer, composite: ci}
}

func FromInMemory(data *tree.Materialized) Result {
	return Result{variant: VariantInMemory, data: data}
}

func (r Result) Variant() Variant                         { return r.variant }
func (r Result) Indices() indexset.IndexSet               { return r.indices }
func (r Result) Composite() composite.CompositeIndexSet   { return r.composite }
func (r Result) Base() *Result                            { return r.base }
func (r Result) Layer() *mutation.Layer                   { return r.layer }
func (r Result) Data() *tree.Materialized                  { return r.data }

func (r Result) Len() int {
	switch r.variant {
	case VariantIndices:
		return r.indices.Len()
	case VariantCompositeIndices, VariantComposite:
		return r.composite.Len()
	default:
		return len(r.data.Trees)
	}
}

// HasOverlay reports whether resolving an element of this result may
// require consulting a MutationLayer (true only for Composite).
func (r Result) HasOverlay() bool { return r.variant == VariantComposite }
