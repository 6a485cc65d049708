package physical

import (
	"testing"

	"github.com/tugtool/arbor/plan"
	"github.com/tugtool/arbor/tree"
)

func numTree(n float64) *tree.OwnedTree {
	return tree.NewTree(tree.NewObject(map[string]tree.Value{"n": tree.NewNumber(n)}))
}

func numLeaf(ns ...float64) plan.Node {
	trees := make([]*tree.OwnedTree, len(ns))
	schema := tree.NewSchema()
	for i, n := range ns {
		trees[i] = numTree(n)
		schema = schema.InferTree(trees[i])
	}
	return &plan.InMemory{Data: tree.NewMaterialized(trees, schema)}
}

func collectNums(t *testing.T, exec Execution) []float64 {
	t.Helper()
	data, err := Materialize(exec)
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	out := make([]float64, len(data.Trees))
	for i, tr := range data.Trees {
		v, _ := tr.Root.Get("n")
		n, ok := v.AsNumber()
		if !ok {
			t.Fatalf("row %d has no numeric n field: %v", i, tr.Root)
		}
		out[i] = n
	}
	return out
}

func mustExecute(t *testing.T, n plan.Node) Execution {
	t.Helper()
	exec, err := Execute(n)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	return exec
}

func assertNums(t *testing.T, got []float64, want ...float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestExecuteInMemoryLeaf(t *testing.T) {
	exec := mustExecute(t, numLeaf(0, 1, 2))
	if exec.Result.Variant() != VariantIndices {
		t.Fatalf("expected a leaf to execute to Indices, got %v", exec.Result.Variant())
	}
	assertNums(t, collectNums(t, exec), 0, 1, 2)
}

func TestExecuteFilterStaysIndices(t *testing.T) {
	even := func(tr *tree.OwnedTree) (bool, error) {
		v, _ := tr.Root.Get("n")
		n, _ := v.AsNumber()
		return int(n)%2 == 0, nil
	}
	p := plan.NewFilter(numLeaf(0, 1, 2, 3, 4), even)
	exec := mustExecute(t, p)
	if exec.Result.Variant() != VariantIndices {
		t.Errorf("expected Filter over Indices to stay Indices, got %v", exec.Result.Variant())
	}
	assertNums(t, collectNums(t, exec), 0, 2, 4)
}

func TestExecuteHeadTail(t *testing.T) {
	assertNums(t, collectNums(t, mustExecute(t, &plan.Head{Source: numLeaf(0, 1, 2, 3), N: 2})), 0, 1)
	assertNums(t, collectNums(t, mustExecute(t, &plan.Tail{Source: numLeaf(0, 1, 2, 3), N: 2})), 2, 3)
}

func TestExecuteSortAscDesc(t *testing.T) {
	p := &plan.Sort{Source: numLeaf(3, 1, 2), Keys: []tree.KeySpec{tree.Key("n")}}
	exec := mustExecute(t, p)
	if exec.Result.Variant() != VariantIndices {
		t.Errorf("expected Sort over Indices to stay Indices, got %v", exec.Result.Variant())
	}
	assertNums(t, collectNums(t, exec), 1, 2, 3)

	pd := &plan.Sort{Source: numLeaf(3, 1, 2), Keys: []tree.KeySpec{tree.KeyDesc("n")}}
	assertNums(t, collectNums(t, mustExecute(t, pd)), 3, 2, 1)
}

func TestExecuteTopKBottomK(t *testing.T) {
	top := &plan.TopK{Source: numLeaf(5, 1, 9, 3), Keys: []tree.KeySpec{tree.KeyDesc("n")}, N: 2}
	assertNums(t, collectNums(t, mustExecute(t, top)), 9, 5)

	bot := &plan.BottomK{Source: numLeaf(5, 1, 9, 3), Keys: []tree.KeySpec{tree.Key("n")}, N: 2}
	assertNums(t, collectNums(t, mustExecute(t, bot)), 5, 9)
}

func TestExecuteAppendPromotesToComposite(t *testing.T) {
	p := &plan.Append{Source: numLeaf(0, 1), Trees: []*tree.OwnedTree{numTree(2), numTree(3)}}
	exec := mustExecute(t, p)
	if exec.Result.Variant() != VariantComposite {
		t.Fatalf("expected Append to promote to Composite, got %v", exec.Result.Variant())
	}
	assertNums(t, collectNums(t, exec), 0, 1, 2, 3)
}

func TestExecuteAppendTwiceFlattens(t *testing.T) {
	inner := &plan.Append{Source: numLeaf(0), Trees: []*tree.OwnedTree{numTree(1)}}
	outer := &plan.Append{Source: inner, Trees: []*tree.OwnedTree{numTree(2)}}
	exec := mustExecute(t, outer)
	if exec.Result.Variant() != VariantComposite {
		t.Fatalf("expected Composite, got %v", exec.Result.Variant())
	}
	if exec.Result.Base().Variant() == VariantComposite {
		t.Errorf("expected the two Appends to flatten into one layer, not nest")
	}
	assertNums(t, collectNums(t, exec), 0, 1, 2)
}

func TestExecuteSetReplacesBaseElement(t *testing.T) {
	p := &plan.Set{Source: numLeaf(0, 1, 2), Index: 1, Tree: numTree(99)}
	exec := mustExecute(t, p)
	if exec.Result.Variant() != VariantComposite {
		t.Fatalf("expected Set to promote to Composite, got %v", exec.Result.Variant())
	}
	assertNums(t, collectNums(t, exec), 0, 99, 2)
}

func TestExecuteSetOnAppendedElement(t *testing.T) {
	app := &plan.Append{Source: numLeaf(0), Trees: []*tree.OwnedTree{numTree(1)}}
	set := &plan.Set{Source: app, Index: 1, Tree: numTree(999)}
	exec := mustExecute(t, set)
	assertNums(t, collectNums(t, exec), 0, 999)
}

func TestExecuteInsertAtPosition(t *testing.T) {
	p := plan.NewInsert(numLeaf(0, 1, 2), 1, []*tree.OwnedTree{numTree(100)})
	exec := mustExecute(t, p)
	if exec.Result.Variant() != VariantComposite {
		t.Fatalf("expected Insert to promote to Composite, got %v", exec.Result.Variant())
	}
	assertNums(t, collectNums(t, exec), 0, 100, 1, 2)
}

func TestExecuteRemoveOnOrderedIndices(t *testing.T) {
	p := &plan.Remove{Source: numLeaf(0, 1, 2, 3), Indices: []int{1, 3}}
	exec := mustExecute(t, p)
	if exec.Result.Variant() != VariantIndices {
		t.Errorf("expected Remove over Ordered Indices to stay Indices, got %v", exec.Result.Variant())
	}
	assertNums(t, collectNums(t, exec), 0, 2)
}

func TestExecuteRemoveOnPermutedIndices(t *testing.T) {
	sorted := &plan.Sort{Source: numLeaf(3, 1, 2), Keys: []tree.KeySpec{tree.Key("n")}}
	rem := &plan.Remove{Source: sorted, Indices: []int{1}}
	exec := mustExecute(t, rem)
	if exec.Result.Variant() != VariantCompositeIndices {
		t.Errorf("expected Remove over Permuted Indices to become CompositeIndices, got %v", exec.Result.Variant())
	}
	assertNums(t, collectNums(t, exec), 1, 3)
}

func TestExecuteRemoveThenAppendStaysFlat(t *testing.T) {
	app := &plan.Append{Source: numLeaf(0, 1), Trees: []*tree.OwnedTree{numTree(2)}}
	rem := &plan.Remove{Source: app, Indices: []int{0}}
	app2 := &plan.Append{Source: rem, Trees: []*tree.OwnedTree{numTree(3)}}
	exec := mustExecute(t, app2)
	if exec.Result.Base().Variant() == VariantComposite {
		t.Errorf("expected mutation chain to stay flat, not nest")
	}
	assertNums(t, collectNums(t, exec), 1, 2, 3)
}

func TestExecuteSelectProjectsFields(t *testing.T) {
	p := plan.NewSelectFields(numLeaf(1, 2), "n")
	exec := mustExecute(t, p)
	if exec.Result.Variant() != VariantInMemory {
		t.Fatalf("expected Select to materialize, got %v", exec.Result.Variant())
	}
	assertNums(t, collectNums(t, exec), 1, 2)
}

func TestExecuteAddFieldComputesExpr(t *testing.T) {
	double := func(tr *tree.OwnedTree) (tree.Value, error) {
		v, _ := tr.Root.Get("n")
		n, _ := v.AsNumber()
		return tree.NewNumber(n * 2), nil
	}
	p := &plan.AddField{Source: numLeaf(1, 2), Name: "doubled", Expr: double}
	exec := mustExecute(t, p)
	data, err := Materialize(exec)
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	v, ok := data.Trees[0].Root.Get("doubled")
	if !ok {
		t.Fatalf("expected doubled field to be present")
	}
	if n, _ := v.AsNumber(); n != 2 {
		t.Errorf("expected doubled == 2, got %v", n)
	}
}

func TestExecuteExplodeFlattensArray(t *testing.T) {
	tr := tree.NewTree(tree.NewObject(map[string]tree.Value{
		"tags": tree.NewArray([]tree.Value{tree.NewString("a"), tree.NewString("b")}),
	}))
	leaf := &plan.InMemory{Data: tree.NewMaterialized([]*tree.OwnedTree{tr}, tree.NewSchema().InferTree(tr))}
	p := &plan.Explode{Source: leaf, Path: "tags", AsBinding: "tag"}
	exec := mustExecute(t, p)
	data, err := Materialize(exec)
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if len(data.Trees) != 2 {
		t.Fatalf("expected 2 exploded rows, got %d", len(data.Trees))
	}
	v0, _ := data.Trees[0].Root.Get("tag")
	if s, _ := v0.AsString(); s != "a" {
		t.Errorf("expected first exploded tag == a, got %v", v0)
	}
}

func TestExecuteGroupBy(t *testing.T) {
	odd := func(n float64) tree.Value {
		if int(n)%2 == 0 {
			return tree.NewString("even")
		}
		return tree.NewString("odd")
	}
	trees := make([]*tree.OwnedTree, 4)
	for i := range trees {
		trees[i] = tree.NewTree(tree.NewObject(map[string]tree.Value{
			"n":       tree.NewNumber(float64(i)),
			"parity":  odd(float64(i)),
		}))
	}
	leaf := &plan.InMemory{Data: tree.NewMaterialized(trees, tree.NewSchema())}
	p := &plan.GroupBy{Source: leaf, Keys: []tree.KeySpec{tree.Key("parity")}}
	exec := mustExecute(t, p)
	data, err := Materialize(exec)
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if len(data.Trees) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(data.Trees))
	}
}

func TestExecuteIndexBy(t *testing.T) {
	trees := []*tree.OwnedTree{
		tree.NewTree(tree.NewObject(map[string]tree.Value{"id": tree.NewString("a"), "n": tree.NewNumber(1)})),
		tree.NewTree(tree.NewObject(map[string]tree.Value{"id": tree.NewString("b"), "n": tree.NewNumber(2)})),
	}
	leaf := &plan.InMemory{Data: tree.NewMaterialized(trees, tree.NewSchema())}
	p := &plan.IndexBy{Source: leaf, Key: tree.Key("id")}
	exec := mustExecute(t, p)
	data, err := Materialize(exec)
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if len(data.Trees) != 1 {
		t.Fatalf("expected a single indexed tree, got %d", len(data.Trees))
	}
	v, ok := data.Trees[0].Root.Get("b")
	if !ok {
		t.Fatalf("expected key \"b\" present in indexed result")
	}
	n, _ := v.Get("n")
	if val, _ := n.AsNumber(); val != 2 {
		t.Errorf("expected row b's n == 2, got %v", val)
	}
}
