package optimizer

import (
	"github.com/tugtool/arbor/plan"
	"github.com/tugtool/arbor/tree"
)

// reorderBySelectivity would reorder conjuncts so cheaper/more-selective
// predicates run first (§4.6). Predicates are opaque closures by design
// (tree.Predicate; see tree/expr.go) with no static cost signal to read,
// so the estimate degenerates to its documented fallback: "ties are
// broken by plan position", i.e. the original order is preserved.
func reorderBySelectivity(preds []tree.Predicate) []tree.Predicate {
	return preds
}

func unionFieldsIfBothKnown(a, b []string) []string {
	if a == nil || b == nil {
		return nil
	}
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, f := range append(append([]string(nil), a...), b...) {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

func fieldsSubset(sub, super []string) bool {
	if sub == nil {
		return false
	}
	have := make(map[string]bool, len(super))
	for _, f := range super {
		have[f] = true
	}
	for _, f := range sub {
		if !have[f] {
			return false
		}
	}
	return true
}

func containsField(fields []string, name string) bool {
	for _, f := range fields {
		if f == name {
			return true
		}
	}
	return false
}

// limitFusion: Head(n) . Head(m) -> Head(min(n,m)); same for Tail.
func limitFusion(n plan.Node) (plan.Node, bool) {
	switch outer := n.(type) {
	case *plan.Head:
		if inner, ok := outer.Source.(*plan.Head); ok {
			return &plan.Head{Source: inner.Source, N: min(outer.N, inner.N)}, true
		}
	case *plan.Tail:
		if inner, ok := outer.Source.(*plan.Tail); ok {
			return &plan.Tail{Source: inner.Source, N: min(outer.N, inner.N)}, true
		}
	}
	return n, false
}

// topKFusion: Head(n) . Sort(keys) -> TopK(keys, n); Tail(n) . Sort(keys)
// -> BottomK(keys, n) (symmetric, using the supplemented BottomK node).
// Avoids materializing the full sort (§4.6, SPEC_FULL §4).
func topKFusion(n plan.Node) (plan.Node, bool) {
	switch outer := n.(type) {
	case *plan.Head:
		if inner, ok := outer.Source.(*plan.Sort); ok {
			return &plan.TopK{Source: inner.Source, Keys: inner.Keys, N: outer.N}, true
		}
	case *plan.Tail:
		if inner, ok := outer.Source.(*plan.Sort); ok {
			return &plan.BottomK{Source: inner.Source, Keys: inner.Keys, N: outer.N}, true
		}
	}
	return n, false
}

// predicatePushdownPastSelect pushes a Filter below a Select that is
// known (via PassthroughFields) to preserve every field the filter
// reads unchanged.
func predicatePushdownPastSelect(n plan.Node) (plan.Node, bool) {
	f, ok := n.(*plan.Filter)
	if !ok || f.Fields == nil {
		return n, false
	}
	sel, ok := f.Source.(*plan.Select)
	if !ok || sel.PassthroughFields == nil {
		return n, false
	}
	if !fieldsSubset(f.Fields, sel.PassthroughFields) {
		return n, false
	}
	pushed := &plan.Filter{Source: sel.Source, Predicates: f.Predicates, Fields: f.Fields, Mode: f.Mode}
	return &plan.Select{Source: pushed, Exprs: sel.Exprs, PassthroughFields: sel.PassthroughFields}, true
}

// predicatePushdownPastAddField pushes a Filter below an AddField
// whenever the filter does not reference the newly added field —
// AddField never removes or renames an existing field, so that is the
// only way it could violate the predicate's inputs.
func predicatePushdownPastAddField(n plan.Node) (plan.Node, bool) {
	f, ok := n.(*plan.Filter)
	if !ok || f.Fields == nil {
		return n, false
	}
	add, ok := f.Source.(*plan.AddField)
	if !ok || containsField(f.Fields, add.Name) {
		return n, false
	}
	pushed := &plan.Filter{Source: add.Source, Predicates: f.Predicates, Fields: f.Fields, Mode: f.Mode}
	return &plan.AddField{Source: pushed, Name: add.Name, Expr: add.Expr}, true
}

// limitPushdownPastProjection pushes Head/Tail below Select/AddField,
// the two row-wise, order- and count-preserving ops named as "prefix
// preserving" in §4.6 — narrowing before a per-row projection is always
// cheaper and never changes the result.
func limitPushdownPastProjection(n plan.Node) (plan.Node, bool) {
	switch outer := n.(type) {
	case *plan.Head:
		switch src := outer.Source.(type) {
		case *plan.Select:
			return &plan.Select{Source: &plan.Head{Source: src.Source, N: outer.N}, Exprs: src.Exprs, PassthroughFields: src.PassthroughFields}, true
		case *plan.AddField:
			return &plan.AddField{Source: &plan.Head{Source: src.Source, N: outer.N}, Name: src.Name, Expr: src.Expr}, true
		}
	case *plan.Tail:
		switch src := outer.Source.(type) {
		case *plan.Select:
			return &plan.Select{Source: &plan.Tail{Source: src.Source, N: outer.N}, Exprs: src.Exprs, PassthroughFields: src.PassthroughFields}, true
		case *plan.AddField:
			return &plan.AddField{Source: &plan.Tail{Source: src.Source, N: outer.N}, Name: src.Name, Expr: src.Expr}, true
		}
	}
	return n, false
}

// mutationElision implements the phase-4 rules from §4.6, each guarded
// by static length analysis where one is needed.
func mutationElision(n plan.Node) (plan.Node, bool) {
	switch outer := n.(type) {
	case *plan.Head:
		// Head(n) . Append(src, trees) with |src| >= n -> Head(n, src).
		if app, ok := outer.Source.(*plan.Append); ok {
			if srcLen, known := PlanLength(app.Source); known && srcLen >= outer.N {
				return &plan.Head{Source: app.Source, N: outer.N}, true
			}
		}
		// Head(n) . Set(i, t, src) with i >= n -> Head(n, src).
		if set, ok := outer.Source.(*plan.Set); ok && set.Index >= outer.N {
			return &plan.Head{Source: set.Source, N: outer.N}, true
		}
	case *plan.Tail:
		// Tail(n) . Set(i, t, src) with i < |src| - n -> Tail(n, src).
		if set, ok := outer.Source.(*plan.Set); ok {
			if srcLen, known := PlanLength(set.Source); known && set.Index < srcLen-outer.N {
				return &plan.Tail{Source: set.Source, N: outer.N}, true
			}
		}
	case *plan.Remove:
		// Remove([|src|]) . Append(src, [t]) -> src.
		if app, ok := outer.Source.(*plan.Append); ok && len(app.Trees) == 1 && len(outer.Indices) == 1 {
			if srcLen, known := PlanLength(app.Source); known && outer.Indices[0] == srcLen {
				return app.Source, true
			}
		}
	case *plan.Set:
		// Set(i, b) . Set(i, a) -> Set(i, b).
		if inner, ok := outer.Source.(*plan.Set); ok && inner.Index == outer.Index {
			return &plan.Set{Source: inner.Source, Index: outer.Index, Tree: outer.Tree}, true
		}
	}
	return n, false
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
