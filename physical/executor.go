package physical

import (
	"math/rand"
	"sort"
	"strconv"

	"github.com/tugtool/arbor/composite"
	"github.com/tugtool/arbor/errs"
	"github.com/tugtool/arbor/indexset"
	"github.com/tugtool/arbor/mutation"
	"github.com/tugtool/arbor/plan"
	"github.com/tugtool/arbor/spread"
	"github.com/tugtool/arbor/tree"
	"github.com/tugtool/arbor/virtual"
)

// Execution is the output of executing one plan node: the Result itself
// plus the root tree.Source every Base-kind virtual index ultimately
// resolves against. Index-only and composite nodes pass their child's
// Base through unchanged, because every CompositeIndexSet's Base segments
// already carry backing indices expressed directly in that source's index
// space (composite's FromIndexSet/FromSpread flatten any prior
// indirection at construction time). Nodes that materialize new trees
// (Select, AddField, Aggregate, GroupBy and the like) return the new
// Materialized as both Result and Base, so later nodes resolve against it.
type Execution struct {
	Result Result
	Base   tree.Source
}

// Execute runs n and returns its Execution, recursing into n's child via
// plan.Child-style dispatch. The materialization boundary (§4.5): Filter,
// Sort, Aggregate, GroupBy, IndexBy, and Explode force the child to
// materialize first when it already carries an overlay (Composite or
// CompositeIndices); Head, Tail, Take, Sample, and Shuffle are index-only
// operations that stay lazy whenever the underlying segment model can
// represent the result, and only fall back to materializing when it
// can't (Shuffle/Take/Sample over an overlaid result — §9's segment-model
// limitation, since virtual.Segment's Appended/Inserted kinds have no
// permuted variant).
func Execute(n plan.Node) (Execution, error) {
	switch t := n.(type) {
	case *plan.InMemory:
		return Execution{
			Result: FromIndices(indexset.Ordered(spread.Full(t.Data.Len()))),
			Base:   t.Data,
		}, nil
	case *plan.Scoped:
		return Execution{
			Result: FromIndices(indexset.Ordered(spread.Full(t.Source.Len()))),
			Base:   t.Source,
		}, nil

	case *plan.Filter:
		return executeFilter(t)
	case *plan.Select:
		return executeSelect(t)
	case *plan.AddField:
		return executeAddField(t)
	case *plan.Explode:
		return executeExplode(t)
	case *plan.Sort:
		return executeSort(t)
	case *plan.Shuffle:
		return executeShuffle(t)
	case *plan.Head:
		return executeHead(t)
	case *plan.Tail:
		return executeTail(t)
	case *plan.Take:
		return executeTake(t)
	case *plan.Sample:
		return executeSample(t)
	case *plan.Aggregate:
		return executeAggregate(t)
	case *plan.GroupBy:
		return executeGroupBy(t)
	case *plan.IndexBy:
		return executeIndexBy(t)
	case *plan.TopK:
		return executeTopK(t)
	case *plan.BottomK:
		return executeBottomK(t)
	case *plan.Reverse:
		return executeReverse(t)

	case *plan.Append:
		return executeAppend(t)
	case *plan.Insert:
		return executeInsert(t)
	case *plan.Set:
		return executeSet(t)
	case *plan.Remove:
		return executeRemove(t)
	}
	return Execution{}, errs.New(errs.ExecutionErr, "physical.Execute", "unrecognized plan node")
}

// ---- index-shaped helpers ----

// asIndexSet reports whether exec can be viewed as a plain IndexSet over
// a tree.Source without consulting an overlay — true for Indices directly
// and for InMemory (a full, ordered identity index over its own data).
func asIndexSet(exec Execution) (indexset.IndexSet, tree.Source, bool) {
	switch exec.Result.Variant() {
	case VariantIndices:
		return exec.Result.Indices(), exec.Base, true
	case VariantInMemory:
		data := exec.Result.Data()
		return indexset.Ordered(spread.Full(data.Len())), data, true
	default:
		return indexset.IndexSet{}, nil, false
	}
}

// forceIndexShaped returns exec as a plain IndexSet+Source pair,
// materializing first if exec carries an overlay.
func forceIndexShaped(exec Execution) (indexset.IndexSet, tree.Source, error) {
	if is, base, ok := asIndexSet(exec); ok {
		return is, base, nil
	}
	data, err := Materialize(exec)
	if err != nil {
		return indexset.IndexSet{}, nil, err
	}
	return indexset.Ordered(spread.Full(data.Len())), data, nil
}

// ---- mutation-node promotion ----

// liftToComposite returns exec's overlay pieces, promoting an Indices or
// InMemory result into a fresh CompositeIndexSet + empty Layer, and
// passing a Composite result's existing layer/ci through unchanged so
// mutation ops extend it in place rather than nesting (§4.5: "flatten,
// do not nest").
func liftToComposite(exec Execution) (composite.CompositeIndexSet, *mutation.Layer, *Result) {
	switch exec.Result.Variant() {
	case VariantComposite:
		base := exec.Result.Base()
		return exec.Result.Composite(), exec.Result.Layer(), base
	case VariantCompositeIndices:
		prior := exec.Result
		return exec.Result.Composite(), mutation.Empty(), &prior
	default: // Indices, InMemory
		is, _, _ := asIndexSet(exec)
		prior := exec.Result
		return composite.FromIndexSet(is), mutation.Empty(), &prior
	}
}

// ---- query-node execution ----

func executeFilter(t *plan.Filter) (Execution, error) {
	childExec, err := Execute(t.Source)
	if err != nil {
		return Execution{}, err
	}
	pred := t.Predicate()

	if is, base, ok := asIndexSet(childExec); ok {
		n := is.Len()
		keepByBacking := make(map[int]bool, n)
		for pos := 0; pos < n; pos++ {
			backing, ok := is.GetBackingIndex(pos)
			if !ok {
				return Execution{}, errs.OutOfBounds("Filter", pos, n)
			}
			if _, done := keepByBacking[backing]; done {
				continue
			}
			tr, err := base.GetBacking(backing)
			if err != nil {
				return Execution{}, err
			}
			ok2, err := pred(tr)
			if err != nil {
				return Execution{}, err
			}
			keepByBacking[backing] = ok2
		}
		newIs := is.FilterBackingIndices(func(b int) bool { return keepByBacking[b] })
		return Execution{Result: FromIndices(newIs), Base: base}, nil
	}

	// Composite/CompositeIndices: content-sensitive, materialize first.
	data, err := Materialize(childExec)
	if err != nil {
		return Execution{}, err
	}
	var kept []*tree.OwnedTree
	for _, tr := range data.Trees {
		ok, err := pred(tr)
		if err != nil {
			return Execution{}, err
		}
		if ok {
			kept = append(kept, tr)
		}
	}
	return Execution{Result: FromInMemory(tree.NewMaterialized(kept, data.Schema)), Base: data}, nil
}

func executeSelect(t *plan.Select) (Execution, error) {
	childExec, err := Execute(t.Source)
	if err != nil {
		return Execution{}, err
	}
	data, err := Materialize(childExec)
	if err != nil {
		return Execution{}, err
	}
	out := make([]*tree.OwnedTree, len(data.Trees))
	schema := tree.NewSchema()
	for i, tr := range data.Trees {
		obj := make(map[string]tree.Value, len(t.Exprs))
		for _, ne := range t.Exprs {
			v, err := ne.Expr(tr)
			if err != nil {
				return Execution{}, err
			}
			obj[ne.Name] = v
		}
		newTree := tree.NewTree(tree.NewObject(obj))
		out[i] = newTree
		schema = schema.InferTree(newTree)
	}
	mat := tree.NewMaterialized(out, schema)
	return Execution{Result: FromInMemory(mat), Base: mat}, nil
}

func executeAddField(t *plan.AddField) (Execution, error) {
	childExec, err := Execute(t.Source)
	if err != nil {
		return Execution{}, err
	}
	data, err := Materialize(childExec)
	if err != nil {
		return Execution{}, err
	}
	out := make([]*tree.OwnedTree, len(data.Trees))
	schema := tree.NewSchema()
	for i, tr := range data.Trees {
		v, err := t.Expr(tr)
		if err != nil {
			return Execution{}, err
		}
		newTree := tr.WithField(t.Name, v)
		out[i] = newTree
		schema = schema.InferTree(newTree)
	}
	mat := tree.NewMaterialized(out, schema)
	return Execution{Result: FromInMemory(mat), Base: mat}, nil
}

func executeExplode(t *plan.Explode) (Execution, error) {
	childExec, err := Execute(t.Source)
	if err != nil {
		return Execution{}, err
	}
	data, err := Materialize(childExec)
	if err != nil {
		return Execution{}, err
	}
	binding := t.AsBinding
	if binding == "" {
		binding = t.Path
	}
	var out []*tree.OwnedTree
	schema := tree.NewSchema()
	for _, tr := range data.Trees {
		v, ok := tr.Root.Get(t.Path)
		if !ok {
			continue
		}
		elems, ok := v.AsArray()
		if !ok {
			continue
		}
		for _, e := range elems {
			newTree := tr.WithField(binding, e)
			out = append(out, newTree)
			schema = schema.InferTree(newTree)
		}
	}
	mat := tree.NewMaterialized(out, schema)
	return Execution{Result: FromInMemory(mat), Base: mat}, nil
}

func sortOrder(trees []*tree.OwnedTree, keys []tree.KeySpec) ([]int, error) {
	order := make([]int, len(trees))
	for i := range order {
		order[i] = i
	}
	vals := make([][]tree.Value, len(trees))
	for i, tr := range trees {
		row := make([]tree.Value, len(keys))
		for k, ks := range keys {
			v, err := ks.Expr(tr)
			if err != nil {
				return nil, err
			}
			row[k] = v
		}
		vals[i] = row
	}
	var sortErr error
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := vals[order[a]], vals[order[b]]
		for k, ks := range keys {
			c := ra[k].Compare(rb[k])
			if ks.Desc {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return false
	})
	return order, sortErr
}

func executeSort(t *plan.Sort) (Execution, error) {
	childExec, err := Execute(t.Source)
	if err != nil {
		return Execution{}, err
	}
	is, base, err := forceIndexShaped(childExec)
	if err != nil {
		return Execution{}, err
	}
	n := is.Len()
	trees := make([]*tree.OwnedTree, n)
	for i := 0; i < n; i++ {
		backing, _ := is.GetBackingIndex(i)
		tr, err := base.GetBacking(backing)
		if err != nil {
			return Execution{}, err
		}
		trees[i] = tr
	}
	order, err := sortOrder(trees, t.Keys)
	if err != nil {
		return Execution{}, err
	}
	backingOrder := make([]int, n)
	for i, pos := range order {
		backingOrder[i], _ = is.GetBackingIndex(pos)
	}
	return Execution{Result: FromIndices(indexset.FromOrderedIndices(backingOrder)), Base: base}, nil
}

func executeTopKLike(source plan.Node, keys []tree.KeySpec, n int, tail bool) (Execution, error) {
	childExec, err := Execute(source)
	if err != nil {
		return Execution{}, err
	}
	is, base, err := forceIndexShaped(childExec)
	if err != nil {
		return Execution{}, err
	}
	total := is.Len()
	trees := make([]*tree.OwnedTree, total)
	for i := 0; i < total; i++ {
		backing, _ := is.GetBackingIndex(i)
		tr, err := base.GetBacking(backing)
		if err != nil {
			return Execution{}, err
		}
		trees[i] = tr
	}
	order, err := sortOrder(trees, keys)
	if err != nil {
		return Execution{}, err
	}
	if n < 0 {
		n = 0
	}
	if n > total {
		n = total
	}
	var kept []int
	if tail {
		kept = order[total-n:]
	} else {
		kept = order[:n]
	}
	backingOrder := make([]int, len(kept))
	for i, pos := range kept {
		backingOrder[i], _ = is.GetBackingIndex(pos)
	}
	return Execution{Result: FromIndices(indexset.FromOrderedIndices(backingOrder)), Base: base}, nil
}

// executeTopK/BottomK do a full sort-then-truncate: correct, and simple
// given the sub-language's Expr closures carry no partial-order/heap
// hook to exploit. A true partial-select avoiding the full sort is
// possible future work within this function alone; it does not change
// TopK/BottomK's meaning, only how cheaply it's reached.
func executeTopK(t *plan.TopK) (Execution, error) {
	return executeTopKLike(t.Source, t.Keys, t.N, false)
}

func executeBottomK(t *plan.BottomK) (Execution, error) {
	return executeTopKLike(t.Source, t.Keys, t.N, true)
}

func executeShuffle(t *plan.Shuffle) (Execution, error) {
	childExec, err := Execute(t.Source)
	if err != nil {
		return Execution{}, err
	}
	is, base, err := forceIndexShaped(childExec)
	if err != nil {
		return Execution{}, err
	}
	n := is.Len()
	var rng *rand.Rand
	if t.HasSeed {
		rng = rand.New(rand.NewSource(t.Seed))
	} else {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	rng.Shuffle(n, func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
	backingOrder := make([]int, n)
	for i, pos := range perm {
		backingOrder[i], _ = is.GetBackingIndex(pos)
	}
	return Execution{Result: FromIndices(indexset.FromOrderedIndices(backingOrder)), Base: base}, nil
}

// executeReverse stays lazy via indexset.IndexSet.Reverse whenever the
// child carries no overlay; virtual.Segment has no reversed variant, so a
// Composite/CompositeIndices child is materialized first and its tree
// slice reversed directly, same fallback Take/Sample/Shuffle use.
func executeReverse(t *plan.Reverse) (Execution, error) {
	childExec, err := Execute(t.Source)
	if err != nil {
		return Execution{}, err
	}
	if is, base, ok := asIndexSet(childExec); ok {
		return Execution{Result: FromIndices(is.Reverse()), Base: base}, nil
	}
	data, err := Materialize(childExec)
	if err != nil {
		return Execution{}, err
	}
	n := len(data.Trees)
	reversed := make([]*tree.OwnedTree, n)
	for i, tr := range data.Trees {
		reversed[n-1-i] = tr
	}
	mat := tree.NewMaterialized(reversed, data.Schema)
	return Execution{Result: FromInMemory(mat), Base: mat}, nil
}

func executeHead(t *plan.Head) (Execution, error) {
	childExec, err := Execute(t.Source)
	if err != nil {
		return Execution{}, err
	}
	if is, base, ok := asIndexSet(childExec); ok {
		return Execution{Result: FromIndices(is.Head(t.N)), Base: base}, nil
	}
	ci := childExec.Result.Composite().Head(t.N)
	if childExec.Result.Variant() == VariantComposite {
		return Execution{Result: FromComposite(childExec.Result.Base(), childExec.Result.Layer(), ci), Base: childExec.Base}, nil
	}
	return Execution{Result: FromCompositeIndices(ci), Base: childExec.Base}, nil
}

func executeTail(t *plan.Tail) (Execution, error) {
	childExec, err := Execute(t.Source)
	if err != nil {
		return Execution{}, err
	}
	if is, base, ok := asIndexSet(childExec); ok {
		return Execution{Result: FromIndices(is.Tail(t.N)), Base: base}, nil
	}
	ci := childExec.Result.Composite().Tail(t.N)
	if childExec.Result.Variant() == VariantComposite {
		return Execution{Result: FromComposite(childExec.Result.Base(), childExec.Result.Layer(), ci), Base: childExec.Base}, nil
	}
	return Execution{Result: FromCompositeIndices(ci), Base: childExec.Base}, nil
}

func executeTake(t *plan.Take) (Execution, error) {
	childExec, err := Execute(t.Source)
	if err != nil {
		return Execution{}, err
	}
	is, base, err := forceIndexShaped(childExec)
	if err != nil {
		return Execution{}, err
	}
	n := is.Len()
	backing := make([]int, len(t.Indices))
	for i, pos := range t.Indices {
		if pos < 0 || pos >= n {
			return Execution{}, errs.OutOfBounds("Take", pos, n)
		}
		b, _ := is.GetBackingIndex(pos)
		backing[i] = b
	}
	return Execution{Result: FromIndices(indexset.FromOrderedIndices(backing)), Base: base}, nil
}

func executeSample(t *plan.Sample) (Execution, error) {
	childExec, err := Execute(t.Source)
	if err != nil {
		return Execution{}, err
	}
	is, base, err := forceIndexShaped(childExec)
	if err != nil {
		return Execution{}, err
	}
	total := is.Len()
	n := t.N
	if n < 0 {
		n = 0
	}
	if n > total {
		n = total
	}
	var rng *rand.Rand
	if t.HasSeed {
		rng = rand.New(rand.NewSource(t.Seed))
	} else {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	perm := make([]int, total)
	for i := range perm {
		perm[i] = i
	}
	for i := 0; i < n; i++ {
		j := i + rng.Intn(total-i)
		perm[i], perm[j] = perm[j], perm[i]
	}
	backing := make([]int, n)
	for i := 0; i < n; i++ {
		backing[i], _ = is.GetBackingIndex(perm[i])
	}
	return Execution{Result: FromIndices(indexset.FromOrderedIndices(backing)), Base: base}, nil
}

// ---- aggregation ----
//
// The expression sub-language is a single-row closure (tree.Expr,
// §tree/expr.go); it has no reducer shape of its own. Aggregate evaluates
// its NamedExprs against a synthetic wrapper tree { "_rows": [...] } so a
// caller-supplied Expr can still do the reducing (summing, counting, ...)
// over the "_rows" array with the same closure shape used everywhere
// else, without this package inventing a second expression type.

func wrapRows(trees []*tree.OwnedTree) *tree.OwnedTree {
	vals := make([]tree.Value, len(trees))
	for i, tr := range trees {
		vals[i] = tr.Root
	}
	return tree.NewTree(tree.NewObject(map[string]tree.Value{"_rows": tree.NewArray(vals)}))
}

func executeAggregate(t *plan.Aggregate) (Execution, error) {
	childExec, err := Execute(t.Source)
	if err != nil {
		return Execution{}, err
	}
	data, err := Materialize(childExec)
	if err != nil {
		return Execution{}, err
	}
	wrapper := wrapRows(data.Trees)
	obj := make(map[string]tree.Value, len(t.Exprs))
	for _, ne := range t.Exprs {
		v, err := ne.Expr(wrapper)
		if err != nil {
			return Execution{}, err
		}
		obj[ne.Name] = v
	}
	out := tree.NewTree(tree.NewObject(obj))
	mat := tree.NewMaterialized([]*tree.OwnedTree{out}, tree.NewSchema().InferTree(out))
	return Execution{Result: FromInMemory(mat), Base: mat}, nil
}

// GroupBy emits one output tree per distinct key (in first-seen order),
// shaped {"key": <key or composite key array>, "rows": [...]}.
func executeGroupBy(t *plan.GroupBy) (Execution, error) {
	childExec, err := Execute(t.Source)
	if err != nil {
		return Execution{}, err
	}
	data, err := Materialize(childExec)
	if err != nil {
		return Execution{}, err
	}

	type group struct {
		key  tree.Value
		rows []*tree.OwnedTree
	}
	var groups []*group
	for _, tr := range data.Trees {
		key, err := keyValue(t.Keys, tr)
		if err != nil {
			return Execution{}, err
		}
		var g *group
		for _, cand := range groups {
			if cand.key.Equal(key) {
				g = cand
				break
			}
		}
		if g == nil {
			g = &group{key: key}
			groups = append(groups, g)
		}
		g.rows = append(g.rows, tr)
	}

	out := make([]*tree.OwnedTree, len(groups))
	schema := tree.NewSchema()
	for i, g := range groups {
		rowVals := make([]tree.Value, len(g.rows))
		for j, r := range g.rows {
			rowVals[j] = r.Root
		}
		newTree := tree.NewTree(tree.NewObject(map[string]tree.Value{
			"key":  g.key,
			"rows": tree.NewArray(rowVals),
		}))
		out[i] = newTree
		schema = schema.InferTree(newTree)
	}
	mat := tree.NewMaterialized(out, schema)
	return Execution{Result: FromInMemory(mat), Base: mat}, nil
}

// IndexBy emits a single output tree whose root object maps each row's
// key (stringified) to the row itself; duplicate keys are last-write-wins,
// mirroring the storage layer's duplicate-name handling.
func executeIndexBy(t *plan.IndexBy) (Execution, error) {
	childExec, err := Execute(t.Source)
	if err != nil {
		return Execution{}, err
	}
	data, err := Materialize(childExec)
	if err != nil {
		return Execution{}, err
	}
	obj := make(map[string]tree.Value, len(data.Trees))
	for _, tr := range data.Trees {
		key, err := keyValue([]tree.KeySpec{t.Key}, tr)
		if err != nil {
			return Execution{}, err
		}
		obj[stringifyKey(key)] = tr.Root
	}
	out := tree.NewTree(tree.NewObject(obj))
	mat := tree.NewMaterialized([]*tree.OwnedTree{out}, tree.NewSchema().InferTree(out))
	return Execution{Result: FromInMemory(mat), Base: mat}, nil
}

func keyValue(keys []tree.KeySpec, tr *tree.OwnedTree) (tree.Value, error) {
	if len(keys) == 1 {
		return keys[0].Expr(tr)
	}
	vals := make([]tree.Value, len(keys))
	for i, ks := range keys {
		v, err := ks.Expr(tr)
		if err != nil {
			return tree.Value{}, err
		}
		vals[i] = v
	}
	return tree.NewArray(vals), nil
}

func stringifyKey(v tree.Value) string {
	switch v.Kind() {
	case tree.String:
		s, _ := v.AsString()
		return s
	case tree.Number:
		n, _ := v.AsNumber()
		return formatNumber(n)
	case tree.Bool:
		b, _ := v.AsBool()
		if b {
			return "true"
		}
		return "false"
	case tree.Null:
		return "null"
	default:
		return v.Kind().String()
	}
}

func formatNumber(n float64) string {
	i := int64(n)
	if float64(i) == n {
		return strconv.FormatInt(i, 10)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

// ---- mutation-node execution ----

func executeAppend(t *plan.Append) (Execution, error) {
	childExec, err := Execute(t.Source)
	if err != nil {
		return Execution{}, err
	}
	if len(t.Trees) == 0 {
		return childExec, nil
	}
	ci, layer, base := liftToComposite(childExec)
	appendStart := len(layer.Appends)
	newLayer := layer.WithAppended(t.Trees)
	newCi := ci.Appending(appendStart, len(t.Trees))
	return Execution{Result: FromComposite(base, newLayer, newCi), Base: childExec.Base}, nil
}

func executeInsert(t *plan.Insert) (Execution, error) {
	childExec, err := Execute(t.Source)
	if err != nil {
		return Execution{}, err
	}
	if len(t.Trees) == 0 {
		return childExec, nil
	}
	ci, layer, base := liftToComposite(childExec)
	newCi, err := ci.Inserting("Insert", t.Slot, t.Position, len(t.Trees))
	if err != nil {
		return Execution{}, err
	}
	newLayer := layer.WithInsertion(t.Slot, t.Trees)
	return Execution{Result: FromComposite(base, newLayer, newCi), Base: childExec.Base}, nil
}

func executeSet(t *plan.Set) (Execution, error) {
	childExec, err := Execute(t.Source)
	if err != nil {
		return Execution{}, err
	}
	ci, layer, base := liftToComposite(childExec)
	vi, ok := ci.Get(t.Index)
	if !ok {
		return Execution{}, errs.OutOfBounds("Set", t.Index, ci.Len())
	}
	var newLayer *mutation.Layer
	if vi.Kind() == virtual.Base {
		newLayer = layer.WithBaseReplacement(vi.Offset(), t.Tree)
	} else {
		newLayer = layer.WithVirtualReplacement(vi.AsKey(), t.Tree)
	}
	return Execution{Result: FromComposite(base, newLayer, ci), Base: childExec.Base}, nil
}

func executeRemove(t *plan.Remove) (Execution, error) {
	childExec, err := Execute(t.Source)
	if err != nil {
		return Execution{}, err
	}
	switch childExec.Result.Variant() {
	case VariantIndices:
		is := childExec.Result.Indices()
		if is.IsOrdered() {
			backing, err := is.ToBackingIndicesForMutation("Remove", t.Indices)
			if err != nil {
				return Execution{}, err
			}
			newSpread := is.Spread().Excluding(backing)
			return Execution{Result: FromIndices(indexset.Ordered(newSpread)), Base: childExec.Base}, nil
		}
		ci := composite.FromIndexSet(is)
		newCi, err := ci.Removing("Remove", t.Indices)
		if err != nil {
			return Execution{}, err
		}
		return Execution{Result: FromCompositeIndices(newCi), Base: childExec.Base}, nil
	case VariantInMemory:
		data := childExec.Result.Data()
		is := indexset.Ordered(spread.Full(data.Len()))
		backing, err := is.ToBackingIndicesForMutation("Remove", t.Indices)
		if err != nil {
			return Execution{}, err
		}
		newSpread := is.Spread().Excluding(backing)
		return Execution{Result: FromIndices(indexset.Ordered(newSpread)), Base: data}, nil
	case VariantCompositeIndices:
		ci := childExec.Result.Composite()
		newCi, err := ci.Removing("Remove", t.Indices)
		if err != nil {
			return Execution{}, err
		}
		return Execution{Result: FromCompositeIndices(newCi), Base: childExec.Base}, nil
	default: // Composite
		ci := childExec.Result.Composite()
		newCi, err := ci.Removing("Remove", t.Indices)
		if err != nil {
			return Execution{}, err
		}
		return Execution{Result: FromComposite(childExec.Result.Base(), childExec.Result.Layer(), newCi), Base: childExec.Base}, nil
	}
}
