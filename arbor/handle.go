package arbor

import (
	"github.com/tugtool/arbor/plan"
	"github.com/tugtool/arbor/tree"
)

// Filter keeps rows for which every predicate holds.
func (a *Arbor) Filter(preds ...tree.Predicate) (*Arbor, error) {
	if len(preds) == 0 {
		return a, nil
	}
	return derive(a, &plan.Filter{Source: a.plan, Predicates: preds, Mode: plan.Keep}, a.schema)
}

// FilterOnFields is Filter annotated with the fields the predicates read,
// enabling the optimizer's pushdown rules.
func (a *Arbor) FilterOnFields(fields []string, preds ...tree.Predicate) (*Arbor, error) {
	if len(preds) == 0 {
		return a, nil
	}
	return derive(a, &plan.Filter{Source: a.plan, Predicates: preds, Fields: fields, Mode: plan.Keep}, a.schema)
}

// Select projects the given named expressions into a new set of rows.
func (a *Arbor) Select(exprs ...plan.NamedExpr) (*Arbor, error) {
	return derive(a, plan.NewSelect(a.plan, exprs...), tree.NewSchema())
}

// SelectFields projects exactly the given fields, unchanged.
func (a *Arbor) SelectFields(fields ...string) (*Arbor, error) {
	return derive(a, plan.NewSelectFields(a.plan, fields...), tree.NewSchema())
}

// AddField computes expr against every row and attaches it under name.
func (a *Arbor) AddField(name string, expr tree.Expr) (*Arbor, error) {
	return derive(a, &plan.AddField{Source: a.plan, Name: name, Expr: expr}, tree.NewSchema())
}

// Explode flattens the array at path, emitting one row per element bound
// under asBinding (or path itself when asBinding is empty).
func (a *Arbor) Explode(path, asBinding string) (*Arbor, error) {
	return derive(a, &plan.Explode{Source: a.plan, Path: path, AsBinding: asBinding}, tree.NewSchema())
}

// SortBy orders rows ascending by a single field path.
func (a *Arbor) SortBy(field string) (*Arbor, error) {
	return a.SortByKeys(tree.Key(field))
}

// SortByDesc orders rows descending by a single field path.
func (a *Arbor) SortByDesc(field string) (*Arbor, error) {
	return a.SortByKeys(tree.KeyDesc(field))
}

// SortByKeys orders rows by a composite key, each KeySpec breaking ties
// left to right.
func (a *Arbor) SortByKeys(keys ...tree.KeySpec) (*Arbor, error) {
	return derive(a, &plan.Sort{Source: a.plan, Keys: keys}, a.schema)
}

// Shuffle randomizes row order with a nondeterministic seed.
func (a *Arbor) Shuffle() (*Arbor, error) {
	return derive(a, &plan.Shuffle{Source: a.plan}, a.schema)
}

// ShuffleSeed randomizes row order deterministically.
func (a *Arbor) ShuffleSeed(seed int64) (*Arbor, error) {
	return derive(a, &plan.Shuffle{Source: a.plan, Seed: seed, HasSeed: true}, a.schema)
}

// Head keeps the first n rows.
func (a *Arbor) Head(n int) (*Arbor, error) {
	return derive(a, &plan.Head{Source: a.plan, N: n}, a.schema)
}

// Tail keeps the last n rows.
func (a *Arbor) Tail(n int) (*Arbor, error) {
	return derive(a, &plan.Tail{Source: a.plan, N: n}, a.schema)
}

// Take keeps exactly the given logical positions, in the given order.
func (a *Arbor) Take(indices ...int) (*Arbor, error) {
	return derive(a, &plan.Take{Source: a.plan, Indices: indices}, a.schema)
}

// Sample draws n rows without replacement, nondeterministically.
func (a *Arbor) Sample(n int) (*Arbor, error) {
	return derive(a, &plan.Sample{Source: a.plan, N: n}, a.schema)
}

// SampleSeed draws n rows without replacement, deterministically.
func (a *Arbor) SampleSeed(n int, seed int64) (*Arbor, error) {
	return derive(a, &plan.Sample{Source: a.plan, N: n, Seed: seed, HasSeed: true}, a.schema)
}

// Reverse flips row order end to end.
func (a *Arbor) Reverse() (*Arbor, error) {
	return derive(a, &plan.Reverse{Source: a.plan}, a.schema)
}

// TopK keeps the first n rows of the order keys define (the same rows as
// SortByKeys followed by Head(n)), without materializing a full sort.
func (a *Arbor) TopK(n int, keys ...tree.KeySpec) (*Arbor, error) {
	return derive(a, &plan.TopK{Source: a.plan, Keys: keys, N: n}, a.schema)
}

// BottomK keeps the last n rows of the order keys define (the same rows
// as SortByKeys followed by Tail(n)).
func (a *Arbor) BottomK(n int, keys ...tree.KeySpec) (*Arbor, error) {
	return derive(a, &plan.BottomK{Source: a.plan, Keys: keys, N: n}, a.schema)
}

// Agg reduces every row into a single output row via the given named
// expressions (each evaluated against a {"_rows": [...]} wrapper, so a
// caller-supplied Expr does its own summing/counting over the array).
func (a *Arbor) Agg(exprs ...plan.NamedExpr) (*Arbor, error) {
	return derive(a, &plan.Aggregate{Source: a.plan, Exprs: exprs}, tree.NewSchema())
}

// GroupBy emits one output row per distinct key, shaped {"key", "rows"}.
func (a *Arbor) GroupBy(keys ...tree.KeySpec) (*Arbor, error) {
	return derive(a, &plan.GroupBy{Source: a.plan, Keys: keys}, tree.NewSchema())
}

// IndexBy emits a single output row whose root object maps each row's
// stringified key to the row itself (last write wins on duplicates).
func (a *Arbor) IndexBy(key tree.KeySpec) (*Arbor, error) {
	return derive(a, &plan.IndexBy{Source: a.plan, Key: key}, tree.NewSchema())
}
