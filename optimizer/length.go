package optimizer

import "github.com/tugtool/arbor/plan"

// PlanLength statically proves the result length of n without executing
// it, succeeding for InMemory, Scoped, Head, Tail, Take, Append, and
// Remove (§4.6). Any other node, or one whose inputs aren't themselves provable,
// reports false; rules that need a length simply skip themselves in that
// case rather than treating it as an error.
func PlanLength(n plan.Node) (int, bool) {
	switch t := n.(type) {
	case *plan.InMemory:
		if t.Data == nil {
			return 0, false
		}
		return t.Data.Len(), true
	case *plan.Scoped:
		if t.Source == nil {
			return 0, false
		}
		return t.Source.Len(), true
	case *plan.Head:
		if srcLen, ok := PlanLength(t.Source); ok {
			return min(t.N, srcLen), true
		}
	case *plan.Tail:
		if srcLen, ok := PlanLength(t.Source); ok {
			return min(t.N, srcLen), true
		}
	case *plan.Take:
		return len(t.Indices), true
	case *plan.Append:
		if srcLen, ok := PlanLength(t.Source); ok {
			return srcLen + len(t.Trees), true
		}
	case *plan.Remove:
		if srcLen, ok := PlanLength(t.Source); ok {
			return srcLen - len(dedupInts(t.Indices)), true
		}
	}
	return 0, false
}

func dedupInts(xs []int) []int {
	seen := make(map[int]bool, len(xs))
	out := xs[:0:0]
	for _, x := range xs {
		if !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	return out
}
