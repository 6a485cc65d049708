// Package plan defines LogicalPlan: an immutable tree of query and
// mutation operations (§3.8). Node mirrors the sum-type-via-interface
// shape of internal/parser/ast.go's Expr, but seals the variant set with
// an unexported method — the optimizer and physical executor type-switch
// over the concrete node types rather than single-dispatching through a
// visitor, since each consumer needs a different return shape.
package plan

import (
	"github.com/tugtool/arbor/mutation"
	"github.com/tugtool/arbor/tree"
)

// Node is one operation in a LogicalPlan. Every concrete node below is a
// plain, immutable struct: no node caches a result or carries mutable
// state (§3.8's third invariant). A Node value rooted anywhere in the
// tree is itself a valid LogicalPlan.
type Node interface {
	isNode()
}

// ---- leaves ----

// InMemory is a leaf sourcing its rows directly from an in-memory
// materialized collection.
type InMemory struct {
	Data *tree.Materialized
}

func (*InMemory) isNode() {}

// Scoped is a leaf sourcing its rows from a snapshot-bound base (a
// stored Arbor opened under a named MVCC snapshot). Source resolves
// backing indices against that snapshot for as long as the snapshot
// stays alive.
type Scoped struct {
	Source tree.Source
	Name   string
}

func (*Scoped) isNode() {}

// ---- unary queries ----

// NamedExpr pairs an output field name with the expression producing it,
// used by Select and Aggregate.
type NamedExpr struct {
	Name string
	Expr tree.Expr
}

// FilterMode distinguishes filter variants; only Keep is implemented.
// The field exists because §3.8 names Filter{source, predicate, mode}
// explicitly as part of the node's shape.
type FilterMode int

const (
	// Keep retains trees for which the predicate returns true.
	Keep FilterMode = iota
)

// Filter carries its predicate as a conjunct list rather than one closure:
// the optimizer's filter-fusion and selectivity-reordering passes (§4.6)
// need to inspect and reorder individual conjuncts, which an already-
// combined closure would hide. NewFilter still presents the single-
// predicate construction spec §3.8 names; Predicate() recombines the
// list into the one closure the physical executor evaluates.
//
// Fields, when non-nil, is the exact set of top-level/dotted field paths
// every conjunct reads. It is an optional, caller-supplied hint (nil
// means "unknown, assume all fields") that lets predicate pushdown fire
// without requiring introspection into an otherwise-opaque
// tree.Predicate closure.
type Filter struct {
	Source     Node
	Predicates []tree.Predicate
	Fields     []string
	Mode       FilterMode
}

func (*Filter) isNode() {}

func NewFilter(source Node, predicate tree.Predicate) *Filter {
	return &Filter{Source: source, Predicates: []tree.Predicate{predicate}, Mode: Keep}
}

// NewFilterOnFields builds a Filter annotated with the fields its
// predicate reads, enabling the optimizer's predicate-pushdown pass past
// a Select/AddField that is known to preserve those fields unchanged.
func NewFilterOnFields(source Node, predicate tree.Predicate, fields ...string) *Filter {
	return &Filter{Source: source, Predicates: []tree.Predicate{predicate}, Fields: fields, Mode: Keep}
}

// Predicate returns the conjunction of all conjuncts, in order.
func (f *Filter) Predicate() tree.Predicate {
	if len(f.Predicates) == 1 {
		return f.Predicates[0]
	}
	return tree.And(f.Predicates...)
}

// Select projects each input tree through Exprs, producing an object
// keyed by each NamedExpr's Name. PassthroughFields, when non-nil, names
// exactly the output fields that are unchanged copies of a same-named
// input field (built via NewSelectFields); nil means the projection may
// rename or compute fields and predicate pushdown past it is unsafe.
type Select struct {
	Source           Node
	Exprs            []NamedExpr
	PassthroughFields []string
}

func (*Select) isNode() {}

// NewSelect builds a Select from arbitrary named expressions; pushdown
// past it is conservatively disabled since the exprs may not be pure
// same-named field passthroughs.
func NewSelect(source Node, exprs ...NamedExpr) *Select {
	return &Select{Source: source, Exprs: exprs}
}

// NewSelectFields builds a Select that projects exactly the given fields
// unchanged (the common case, mirroring tree.OwnedTree.Project), marking
// them as PassthroughFields so the optimizer can push filters past it.
func NewSelectFields(source Node, fields ...string) *Select {
	exprs := make([]NamedExpr, len(fields))
	for i, f := range fields {
		exprs[i] = NamedExpr{Name: f, Expr: tree.Field(f).Expr()}
	}
	return &Select{Source: source, Exprs: exprs, PassthroughFields: fields}
}

type AddField struct {
	Source Node
	Name   string
	Expr   tree.Expr
}

func (*AddField) isNode() {}

// Explode flattens the array found at Path, emitting one output tree per
// element, with the element bound under AsBinding (or Path itself when
// AsBinding is empty).
type Explode struct {
	Source    Node
	Path      string
	AsBinding string
}

func (*Explode) isNode() {}

type Sort struct {
	Source Node
	Keys   []tree.KeySpec
}

func (*Sort) isNode() {}

type Shuffle struct {
	Source  Node
	Seed    int64
	HasSeed bool
}

func (*Shuffle) isNode() {}

type Head struct {
	Source Node
	N      int
}

func (*Head) isNode() {}

type Tail struct {
	Source Node
	N      int
}

func (*Tail) isNode() {}

// Take selects exactly the given logical positions, in the given order
// (a caller-supplied permutation, not necessarily ascending).
type Take struct {
	Source  Node
	Indices []int
}

func (*Take) isNode() {}

type Sample struct {
	Source  Node
	N       int
	Seed    int64
	HasSeed bool
}

func (*Sample) isNode() {}

// ---- aggregation ----

type Aggregate struct {
	Source Node
	Exprs  []NamedExpr
}

func (*Aggregate) isNode() {}

type GroupBy struct {
	Source Node
	Keys   []tree.KeySpec
}

func (*GroupBy) isNode() {}

type IndexBy struct {
	Source Node
	Key    tree.KeySpec
}

func (*IndexBy) isNode() {}

// ---- supplemented: first-class top-k/bottom-k (§4 of SPEC_FULL) ----

// TopK keeps the first N trees of the order Keys define without
// materializing a full sort; the optimizer's top-k fusion rule rewrites
// Head(n) after Sort(keys) into this node, and it may also be
// constructed directly.
type TopK struct {
	Source Node
	Keys   []tree.KeySpec
	N      int
}

func (*TopK) isNode() {}

type BottomK struct {
	Source Node
	Keys   []tree.KeySpec
	N      int
}

func (*BottomK) isNode() {}

// Reverse flips logical order end to end. Supplemented alongside TopK and
// BottomK (SPEC_FULL §4): it composes with the existing Spread/perm
// machinery (indexset.IndexSet.Reverse) with no new index-algebra
// primitive, so it is given its own node rather than folded into Sort.
type Reverse struct {
	Source Node
}

func (*Reverse) isNode() {}

// ---- mutations (v1) ----

type Append struct {
	Source Node
	Trees  []*tree.OwnedTree
}

func (*Append) isNode() {}

// Insert's Slot is allocated once, at construction, from the
// process-wide monotonic counter (§4.4) — never reallocated by cloning
// or optimizing the plan.
type Insert struct {
	Source   Node
	Slot     uint64
	Position int
	Trees    []*tree.OwnedTree
}

func (*Insert) isNode() {}

// NewInsert allocates a fresh slot id and builds the node in one step,
// the only sanctioned way to construct an Insert node.
func NewInsert(source Node, position int, trees []*tree.OwnedTree) *Insert {
	return &Insert{Source: source, Slot: mutation.NextSlot(), Position: position, Trees: trees}
}

type Set struct {
	Source Node
	Index  int
	Tree   *tree.OwnedTree
}

func (*Set) isNode() {}

type Remove struct {
	Source  Node
	Indices []int
}

func (*Remove) isNode() {}

// Child returns the single child of any non-leaf node, and (nil, false)
// for InMemory/Scoped. It exists so the optimizer's fixed-point rewriter
// and arbor's leaf rebinding can walk the tree generically before
// falling back to a type switch for node-specific rewrites.
func Child(n Node) (Node, bool) {
	switch t := n.(type) {
	case *Filter:
		return t.Source, true
	case *Select:
		return t.Source, true
	case *AddField:
		return t.Source, true
	case *Explode:
		return t.Source, true
	case *Sort:
		return t.Source, true
	case *Shuffle:
		return t.Source, true
	case *Head:
		return t.Source, true
	case *Tail:
		return t.Source, true
	case *Take:
		return t.Source, true
	case *Sample:
		return t.Source, true
	case *Aggregate:
		return t.Source, true
	case *GroupBy:
		return t.Source, true
	case *IndexBy:
		return t.Source, true
	case *TopK:
		return t.Source, true
	case *BottomK:
		return t.Source, true
	case *Reverse:
		return t.Source, true
	case *Append:
		return t.Source, true
	case *Insert:
		return t.Source, true
	case *Set:
		return t.Source, true
	case *Remove:
		return t.Source, true
	default:
		return nil, false
	}
}

// WithSource returns a shallow copy of n with its single child replaced by
// src, for every non-leaf node type. Leaves (InMemory, Scoped) pass through
// unchanged since Child already reports ok=false for them. Shared by the
// optimizer's fixed-point rewriter and Arbor.Refresh's leaf rebinding, so
// both stay in sync with the node set defined here instead of keeping two
// copies of this switch.
func WithSource(n Node, src Node) Node {
	switch t := n.(type) {
	case *Filter:
		c := *t
		c.Source = src
		return &c
	case *Select:
		c := *t
		c.Source = src
		return &c
	case *AddField:
		c := *t
		c.Source = src
		return &c
	case *Explode:
		c := *t
		c.Source = src
		return &c
	case *Sort:
		c := *t
		c.Source = src
		return &c
	case *Shuffle:
		c := *t
		c.Source = src
		return &c
	case *Head:
		c := *t
		c.Source = src
		return &c
	case *Tail:
		c := *t
		c.Source = src
		return &c
	case *Take:
		c := *t
		c.Source = src
		return &c
	case *Sample:
		c := *t
		c.Source = src
		return &c
	case *Aggregate:
		c := *t
		c.Source = src
		return &c
	case *GroupBy:
		c := *t
		c.Source = src
		return &c
	case *IndexBy:
		c := *t
		c.Source = src
		return &c
	case *TopK:
		c := *t
		c.Source = src
		return &c
	case *BottomK:
		c := *t
		c.Source = src
		return &c
	case *Reverse:
		c := *t
		c.Source = src
		return &c
	case *Append:
		c := *t
		c.Source = src
		return &c
	case *Insert:
		c := *t
		c.Source = src
		return &c
	case *Set:
		c := *t
		c.Source = src
		return &c
	case *Remove:
		c := *t
		c.Source = src
		return &c
	default:
		return n
	}
}
