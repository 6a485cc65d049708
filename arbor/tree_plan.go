package arbor

import (
	"github.com/tugtool/arbor/errs"
	"github.com/tugtool/arbor/plan"
	"github.com/tugtool/arbor/tree"
)

// Tree is a single, standalone row — the unit tree.plan() starts a
// TreePlan from, and the unit CollectTree() hands back when a plan
// collapses to exactly one row (§6.2).
type Tree struct {
	Root *tree.OwnedTree
}

func NewTree(root *tree.OwnedTree) Tree { return Tree{Root: root} }

func (t Tree) materialized() *tree.Materialized {
	return tree.NewMaterialized([]*tree.OwnedTree{t.Root}, tree.NewSchema().InferTree(t.Root))
}

// Plan starts a TreePlan over this single tree, reusing the same query
// node set (Select/AddField/Filter/Explode) a multi-row Arbor uses —
// tree.plan() never needed its own expression surface, only a
// single-input entry point into the existing one (§6.2).
func (t Tree) Plan() *TreePlan {
	return &TreePlan{arbor: FromMaterialized(t.materialized())}
}

// Save writes this single tree under name in the .arbors file at path.
func (t Tree) Save(path, name string) error {
	return SaveMultiple(path, []NamedData{{Name: name, Data: t.materialized()}}, Options{})
}

// TreePlan chains query-only operations over a Tree's single row,
// re-collapsing to a Tree (or erroring on cardinality) at CollectTree.
type TreePlan struct {
	arbor *Arbor
}

func (tp *TreePlan) Select(exprs ...plan.NamedExpr) (*TreePlan, error) {
	a, err := tp.arbor.Select(exprs...)
	if err != nil {
		return nil, err
	}
	return &TreePlan{arbor: a}, nil
}

func (tp *TreePlan) AddField(name string, expr tree.Expr) (*TreePlan, error) {
	a, err := tp.arbor.AddField(name, expr)
	if err != nil {
		return nil, err
	}
	return &TreePlan{arbor: a}, nil
}

func (tp *TreePlan) Filter(preds ...tree.Predicate) (*TreePlan, error) {
	a, err := tp.arbor.Filter(preds...)
	if err != nil {
		return nil, err
	}
	return &TreePlan{arbor: a}, nil
}

func (tp *TreePlan) Explode(path, asBinding string) (*TreePlan, error) {
	a, err := tp.arbor.Explode(path, asBinding)
	if err != nil {
		return nil, err
	}
	return &TreePlan{arbor: a}, nil
}

// Collect terminates the plan as a multi-row Arbor, for callers that no
// longer expect exactly one row (e.g. after Explode).
func (tp *TreePlan) Collect() *Arbor { return tp.arbor }

// CollectTree terminates the plan back into a single Tree, failing with
// CardinalityErr if the result is not exactly one row.
func (tp *TreePlan) CollectTree() (Tree, error) {
	data, err := tp.arbor.Collect()
	if err != nil {
		return Tree{}, err
	}
	if len(data.Trees) != 1 {
		return Tree{}, &errs.Error{
			Kind:    errs.CardinalityErr,
			Op:      "TreePlan.CollectTree",
			Message: "expected exactly one tree",
			Count:   len(data.Trees),
		}
	}
	return Tree{Root: data.Trees[0]}, nil
}
