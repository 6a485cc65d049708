package optimizer

import (
	"testing"

	"github.com/tugtool/arbor/plan"
	"github.com/tugtool/arbor/tree"
)

func leaf(n int) plan.Node {
	trees := make([]*tree.OwnedTree, n)
	for i := range trees {
		trees[i] = tree.NewTree(tree.NewNumber(float64(i)))
	}
	return &plan.InMemory{Data: tree.NewMaterialized(trees, tree.NewSchema())}
}

func alwaysTrue(*tree.OwnedTree) (bool, error) { return true, nil }

func TestFilterFusion(t *testing.T) {
	p := plan.NewFilter(plan.NewFilter(leaf(5), alwaysTrue), alwaysTrue)
	out := Optimize(p)
	f, ok := out.(*plan.Filter)
	if !ok {
		t.Fatalf("expected a single fused Filter, got %T", out)
	}
	if len(f.Predicates) != 2 {
		t.Errorf("expected 2 fused conjuncts, got %d", len(f.Predicates))
	}
	if _, isFilter := f.Source.(*plan.Filter); isFilter {
		t.Errorf("expected fusion to flatten the nested Filter")
	}
}

func TestLimitFusionHead(t *testing.T) {
	p := &plan.Head{Source: &plan.Head{Source: leaf(10), N: 7}, N: 3}
	out := Optimize(p)
	h, ok := out.(*plan.Head)
	if !ok || h.N != 3 {
		t.Fatalf("expected Head(3), got %#v", out)
	}
	if _, isHead := h.Source.(*plan.Head); isHead {
		t.Errorf("expected limit fusion to flatten nested Head")
	}
}

func TestTopKFusion(t *testing.T) {
	p := &plan.Head{Source: &plan.Sort{Source: leaf(10), Keys: []tree.KeySpec{tree.Key("n")}}, N: 3}
	out := Optimize(p)
	if _, ok := out.(*plan.TopK); !ok {
		t.Fatalf("expected TopK fusion, got %T", out)
	}
}

func TestPredicatePushdownPastSelect(t *testing.T) {
	sel := plan.NewSelectFields(leaf(5), "a", "b")
	f := plan.NewFilterOnFields(sel, alwaysTrue, "a")
	out := Optimize(f)
	s, ok := out.(*plan.Select)
	if !ok {
		t.Fatalf("expected Select at root after pushdown, got %T", out)
	}
	if _, ok := s.Source.(*plan.Filter); !ok {
		t.Errorf("expected Filter pushed below Select, got %T", s.Source)
	}
}

func TestPredicatePushdownSkippedWhenFieldsUnknown(t *testing.T) {
	sel := plan.NewSelectFields(leaf(5), "a", "b")
	f := plan.NewFilter(sel, alwaysTrue) // Fields == nil: conservative
	out := Optimize(f)
	if _, ok := out.(*plan.Filter); !ok {
		t.Fatalf("expected Filter to remain at root when fields are unknown, got %T", out)
	}
}

func TestMutationElisionHeadOverAppend(t *testing.T) {
	src := leaf(10)
	app := &plan.Append{Source: src, Trees: []*tree.OwnedTree{tree.NewTree(tree.NewNumber(99))}}
	out := Optimize(&plan.Head{Source: app, N: 4})
	h, ok := out.(*plan.Head)
	if !ok || h.N != 4 {
		t.Fatalf("expected Head(4), got %#v", out)
	}
	if h.Source != src {
		t.Errorf("expected Append elided, source should be original leaf")
	}
}

func TestMutationElisionSetOverSet(t *testing.T) {
	src := leaf(5)
	inner := &plan.Set{Source: src, Index: 2, Tree: tree.NewTree(tree.NewNumber(1))}
	outer := &plan.Set{Source: inner, Index: 2, Tree: tree.NewTree(tree.NewNumber(2))}
	out := Optimize(outer)
	s, ok := out.(*plan.Set)
	if !ok {
		t.Fatalf("expected a single Set node, got %T", out)
	}
	if s.Source != src {
		t.Errorf("expected inner Set elided")
	}
	if v, _ := s.Tree.Root.AsNumber(); v != 2 {
		t.Errorf("expected outer Set's tree to win, got %v", v)
	}
}

func TestPlanLengthAppendAndRemove(t *testing.T) {
	src := leaf(5)
	app := &plan.Append{Source: src, Trees: []*tree.OwnedTree{tree.NewTree(tree.NewNumber(1)), tree.NewTree(tree.NewNumber(2))}}
	if n, ok := PlanLength(app); !ok || n != 7 {
		t.Fatalf("expected length 7, got %d ok=%v", n, ok)
	}
	rem := &plan.Remove{Source: app, Indices: []int{0, 1}}
	if n, ok := PlanLength(rem); !ok || n != 5 {
		t.Fatalf("expected length 5, got %d ok=%v", n, ok)
	}
}

func TestPlanLengthUnknownForUnsupportedNode(t *testing.T) {
	shuf := &plan.Shuffle{Source: leaf(5)}
	if _, ok := PlanLength(shuf); ok {
		t.Errorf("expected Shuffle length to be unprovable")
	}
}
