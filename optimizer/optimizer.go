// Package optimizer rewrites a LogicalPlan to an equivalent plan with
// lower expected execution cost (§4.6). It never fails: every pass
// either produces a semantically equivalent plan or leaves its input
// untouched.
package optimizer

import (
	"github.com/tugtool/arbor/plan"
	"github.com/tugtool/arbor/tree"
)

// maxPasses bounds the rewrite budget (§4.6: "applied to fixed point or
// to a bounded rewrite budget"). Each pass is safe to apply redundantly,
// so a fixed budget is simpler than tracking structural equality of
// plans containing opaque predicate/expr closures.
const maxPasses = 6

// Optimize returns a rewritten plan equivalent to n.
func Optimize(n plan.Node) plan.Node {
	cur := n
	for i := 0; i < maxPasses; i++ {
		next := rewrite(cur)
		if next == cur {
			break
		}
		cur = next
	}
	return cur
}

// rewrite recurses into the single child first (post-order), then tries
// every local rule against the (possibly rebuilt) node. It returns the
// exact same Node value when nothing changed anywhere in the subtree,
// which Optimize uses as its fixed-point signal.
func rewrite(n plan.Node) plan.Node {
	child, ok := plan.Child(n)
	cur := n
	if ok {
		newChild := rewrite(child)
		if newChild != child {
			cur = plan.WithSource(n, newChild)
		}
	}
	for _, rule := range rules {
		if out, fired := rule(cur); fired {
			return out
		}
	}
	return cur
}

// rule tries to rewrite n (whose child, if any, is already rewritten)
// into an equivalent, cheaper node. fired reports whether it matched.
type rule func(n plan.Node) (plan.Node, bool)

// rules runs in order; the first match for a given node wins per pass,
// later passes pick up whatever the next rule in line would have done.
var rules = []rule{
	filterFusion,
	limitFusion,
	topKFusion,
	predicatePushdownPastSelect,
	predicatePushdownPastAddField,
	limitPushdownPastProjection,
	mutationElision,
}

// filterFusion combines an adjacent Filter-over-Filter pair into one
// Filter whose conjunct list is the concatenation of both (selectivity
// reordering, below, then orders that combined list).
func filterFusion(n plan.Node) (plan.Node, bool) {
	outer, ok := n.(*plan.Filter)
	if !ok {
		return n, false
	}
	inner, ok := outer.Source.(*plan.Filter)
	if !ok {
		return n, false
	}
	fused := &plan.Filter{
		Source:     inner.Source,
		Predicates: reorderBySelectivity(append(append([]tree.Predicate(nil), inner.Predicates...), outer.Predicates...)),
		Fields:     unionFieldsIfBothKnown(inner.Fields, outer.Fields),
		Mode:       outer.Mode,
	}
	return fused, true
}
