package arbor

import (
	"testing"

	"github.com/tugtool/arbor/errs"
	"github.com/tugtool/arbor/tree"
)

func objTree(n float64, name string) *tree.OwnedTree {
	return tree.NewTree(tree.NewObject(map[string]tree.Value{
		"n":    tree.NewNumber(n),
		"name": tree.NewString(name),
	}))
}

func sampleMaterialized() *tree.Materialized {
	trees := []*tree.OwnedTree{
		objTree(1, "a"),
		objTree(2, "b"),
		objTree(3, "c"),
	}
	schema := tree.NewSchema()
	for _, t := range trees {
		schema = schema.InferTree(t)
	}
	return tree.NewMaterialized(trees, schema)
}

func TestFromMaterializedLen(t *testing.T) {
	a := FromMaterialized(sampleMaterialized())
	if a.Len() != 3 {
		t.Fatalf("expected 3 rows, got %d", a.Len())
	}
}

func TestFilterKeepsMatchingRows(t *testing.T) {
	a := FromMaterialized(sampleMaterialized())
	filtered, err := a.Filter(tree.Field("n").GT(1))
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if filtered.Len() != 2 {
		t.Fatalf("expected 2 rows after filter, got %d", filtered.Len())
	}
}

func TestHeadTailReverse(t *testing.T) {
	a := FromMaterialized(sampleMaterialized())

	head, err := a.Head(2)
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", head.Len())
	}

	rev, err := a.Reverse()
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}
	got, err := rev.Get(0)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Equal(objTree(3, "c")) {
		t.Fatalf("expected last row first after reverse, got %+v", got)
	}
}

func TestAppendInsertSetRemove(t *testing.T) {
	a := FromMaterialized(sampleMaterialized())

	appended, err := a.Append(objTree(4, "d"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if appended.Len() != 4 {
		t.Fatalf("expected 4 rows after append, got %d", appended.Len())
	}

	inserted, err := appended.Insert(0, objTree(0, "z"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if inserted.Len() != 5 {
		t.Fatalf("expected 5 rows after insert, got %d", inserted.Len())
	}
	first, err := inserted.Get(0)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !first.Equal(objTree(0, "z")) {
		t.Fatalf("expected inserted row first, got %+v", first)
	}

	replaced, err := inserted.Set(0, objTree(99, "replaced"))
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := replaced.Get(0)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Equal(objTree(99, "replaced")) {
		t.Fatalf("expected replaced row, got %+v", got)
	}

	removed, err := replaced.Remove(0)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed.Len() != 4 {
		t.Fatalf("expected 4 rows after remove, got %d", removed.Len())
	}
}

func TestConcat(t *testing.T) {
	a := FromMaterialized(sampleMaterialized())
	b := FromMaterialized(tree.NewMaterialized([]*tree.OwnedTree{objTree(10, "x")}, tree.NewSchema()))

	combined, err := a.Concat(b)
	if err != nil {
		t.Fatalf("concat: %v", err)
	}
	if combined.Len() != 4 {
		t.Fatalf("expected 4 rows after concat, got %d", combined.Len())
	}
}

func TestSortByAndTopK(t *testing.T) {
	a := FromMaterialized(sampleMaterialized())

	sorted, err := a.SortByDesc("n")
	if err != nil {
		t.Fatalf("sort: %v", err)
	}
	first, err := sorted.Get(0)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !first.Equal(objTree(3, "c")) {
		t.Fatalf("expected largest n first, got %+v", first)
	}

	top, err := a.TopK(1, tree.Key("n"))
	if err != nil {
		t.Fatalf("topk: %v", err)
	}
	if top.Len() != 1 {
		t.Fatalf("expected 1 row from top-1, got %d", top.Len())
	}
}

func TestTreePlanCollectTreeCardinality(t *testing.T) {
	tr := NewTree(objTree(1, "solo"))
	tp, err := tr.Plan().Filter(tree.Field("n").EQ(tree.NewNumber(1)))
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	collected, err := tp.CollectTree()
	if err != nil {
		t.Fatalf("collect tree: %v", err)
	}
	if !collected.Root.Equal(objTree(1, "solo")) {
		t.Fatalf("expected unchanged row, got %+v", collected.Root)
	}
}

func TestTreePlanCollectTreeFailsOnMultipleRows(t *testing.T) {
	a := FromMaterialized(sampleMaterialized())
	tp := &TreePlan{arbor: a}
	_, err := tp.CollectTree()
	if err == nil {
		t.Fatalf("expected cardinality error, got nil")
	}
	if !errs.Is(err, errs.CardinalityErr) {
		t.Fatalf("expected CardinalityErr, got %v", err)
	}
}

func TestOpenWithoutBackendFails(t *testing.T) {
	saved := backend
	backend = nil
	defer func() { backend = saved }()

	_, err := Open("/tmp/does-not-matter.arbors", "whatever")
	if err == nil {
		t.Fatalf("expected error with no backend registered")
	}
	if !errs.Is(err, errs.StorageErr) {
		t.Fatalf("expected StorageErr, got %v", err)
	}
}
