package storage

import (
	"path/filepath"
	"testing"

	"github.com/tugtool/arbor/arbor"
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
	trees := []*tree.OwnedTree{objTree(1, "a"), objTree(2, "b")}
	schema := tree.NewSchema()
	for _, t := range trees {
		schema = schema.InferTree(t)
	}
	return tree.NewMaterialized(trees, schema)
}

func TestOpenAbsentFileReportsNotFound(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing.arbors")

	_, err := arbor.Open(path, "whatever")
	if err == nil {
		t.Fatalf("expected error opening an absent file")
	}
	if !errs.Is(err, errs.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestListAbsentFileReportsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing.arbors")

	names, err := arbor.List(path)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("expected no names, got %v", names)
	}
}

func TestSaveMultipleThenOpenRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.arbors")

	data := sampleMaterialized()
	err := arbor.SaveMultiple(path, []arbor.NamedData{{Name: "rows", Data: data}}, arbor.Options{})
	if err != nil {
		t.Fatalf("save multiple: %v", err)
	}

	names, err := arbor.List(path)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 1 || names[0] != "rows" {
		t.Fatalf("expected [rows], got %v", names)
	}

	a, err := arbor.Open(path, "rows")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if a.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", a.Len())
	}
	got, err := a.Get(0)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Equal(objTree(1, "a")) {
		t.Fatalf("expected round-tripped row to match, got %+v", got)
	}
}

func TestSaveMultipleLastWriteWinsOnDuplicateName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.arbors")

	first := tree.NewMaterialized([]*tree.OwnedTree{objTree(1, "first")}, tree.NewSchema())
	second := tree.NewMaterialized([]*tree.OwnedTree{objTree(2, "second")}, tree.NewSchema())

	err := arbor.SaveMultiple(path, []arbor.NamedData{
		{Name: "dup", Data: first},
		{Name: "dup", Data: second},
	}, arbor.Options{})
	if err != nil {
		t.Fatalf("save multiple: %v", err)
	}

	a, err := arbor.Open(path, "dup")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	got, err := a.Get(0)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Equal(objTree(2, "second")) {
		t.Fatalf("expected second write to win, got %+v", got)
	}
}

func TestDeleteRemovesName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.arbors")

	if err := arbor.SaveMultiple(path, []arbor.NamedData{{Name: "rows", Data: sampleMaterialized()}}, arbor.Options{}); err != nil {
		t.Fatalf("save multiple: %v", err)
	}

	deleted, err := arbor.Delete(path, "rows")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted {
		t.Fatalf("expected delete to report the name was present")
	}

	_, err = arbor.Open(path, "rows")
	if !errs.Is(err, errs.NotFound) {
		t.Fatalf("expected NotFound after delete, got %v", err)
	}
}

func TestOpenDecodesOnlyTouchedBatches(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.arbors")

	// Span three batches so reading index 0 can only ever need the first.
	n := TreesPerBatch*2 + 5
	trees := make([]*tree.OwnedTree, n)
	for i := range trees {
		trees[i] = objTree(float64(i), "row")
	}
	data := tree.NewMaterialized(trees, tree.NewSchema())
	if err := arbor.SaveMultiple(path, []arbor.NamedData{{Name: "big", Data: data}}, arbor.Options{}); err != nil {
		t.Fatalf("save multiple: %v", err)
	}

	a, err := arbor.Open(path, "big")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if a.Len() != n {
		t.Fatalf("expected %d rows, got %d", n, a.Len())
	}

	got, err := a.Get(0)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Equal(objTree(0, "row")) {
		t.Fatalf("expected row 0, got %+v", got)
	}

	src, _, err := sqliteBackend{}.Open(path, "big", arbor.Options{})
	if err != nil {
		t.Fatalf("open backend directly: %v", err)
	}
	ss, ok := src.(*storedSource)
	if !ok {
		t.Fatalf("expected *storedSource, got %T", src)
	}
	if _, err := ss.GetBacking(0); err != nil {
		t.Fatalf("get backing 0: %v", err)
	}
	ss.mu.Lock()
	decoded := len(ss.batches)
	ss.mu.Unlock()
	if decoded != 1 {
		t.Fatalf("expected exactly 1 batch decoded after touching only index 0, got %d", decoded)
	}

	last, err := ss.GetBacking(n - 1)
	if err != nil {
		t.Fatalf("get backing %d: %v", n-1, err)
	}
	if !last.Equal(objTree(float64(n-1), "row")) {
		t.Fatalf("expected last row, got %+v", last)
	}
	ss.mu.Lock()
	decoded = len(ss.batches)
	ss.mu.Unlock()
	if decoded != 2 {
		t.Fatalf("expected 2 distinct batches decoded after touching first and last, got %d", decoded)
	}
}

func TestRefreshReReadsStoredSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.arbors")

	if err := arbor.SaveMultiple(path, []arbor.NamedData{{Name: "rows", Data: sampleMaterialized()}}, arbor.Options{}); err != nil {
		t.Fatalf("save multiple: %v", err)
	}

	a, err := arbor.Open(path, "rows")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	updated := tree.NewMaterialized([]*tree.OwnedTree{objTree(9, "updated")}, tree.NewSchema())
	if err := arbor.SaveMultiple(path, []arbor.NamedData{{Name: "rows", Data: updated}}, arbor.Options{}); err != nil {
		t.Fatalf("save multiple: %v", err)
	}

	refreshed, err := a.Refresh()
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.Len() != 1 {
		t.Fatalf("expected 1 row after refresh, got %d", refreshed.Len())
	}
	got, err := refreshed.Get(0)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Equal(objTree(9, "updated")) {
		t.Fatalf("expected refreshed row to match updated snapshot, got %+v", got)
	}
}
