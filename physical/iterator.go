package physical

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/tugtool/arbor/errs"
	"github.com/tugtool/arbor/tree"
)

// DefaultChunkBudget is the default number of trees decoded per chunk
// during lazy iteration (§4.8's "streaming budget").
const DefaultChunkBudget = 512

// resolveAt fetches the tree at logical position pos, dispatching on
// Result's variant: Indices/InMemory resolve straight through Base,
// CompositeIndices resolves a Base-only virtual index through Base (no
// overlay trees ever appear in that variant, per §3.7), and Composite
// consults the layer first via mutation.Layer.Resolve (§3.6, §4.4).
func resolveAt(exec Execution, pos int) (*tree.OwnedTree, error) {
	n := exec.Result.Len()
	if pos < 0 || pos >= n {
		return nil, errs.OutOfBounds("physical.resolveAt", pos, n)
	}
	switch exec.Result.Variant() {
	case VariantIndices:
		backing, ok := exec.Result.Indices().GetBackingIndex(pos)
		if !ok {
			return nil, errs.OutOfBounds("physical.resolveAt", pos, n)
		}
		return exec.Base.GetBacking(backing)
	case VariantCompositeIndices:
		vi, ok := exec.Result.Composite().Get(pos)
		if !ok {
			return nil, errs.OutOfBounds("physical.resolveAt", pos, n)
		}
		return exec.Base.GetBacking(vi.Offset())
	case VariantComposite:
		vi, ok := exec.Result.Composite().Get(pos)
		if !ok {
			return nil, errs.OutOfBounds("physical.resolveAt", pos, n)
		}
		return exec.Result.Layer().Resolve(exec.Base, vi)
	default: // InMemory
		return exec.Result.Data().Trees[pos], nil
	}
}

// ResolveAt fetches the tree at logical position pos without requiring a
// full materialize, for callers (e.g. Arbor.Get) that only need one row.
func ResolveAt(exec Execution, pos int) (*tree.OwnedTree, error) {
	return resolveAt(exec, pos)
}

// Iterate drives yield over exec in logical order, one chunk of at most
// budget trees at a time, stopping early if yield returns false. Chunks
// cover disjoint logical ranges and are decoded sequentially here;
// MaterializeWithBudget below is the variant that decodes chunks
// concurrently, which §5 permits "at the caller's discretion" because
// each chunk only touches its own disjoint range. Batch-locality
// grouping for stored bases (§4.8 step 3) is handled by the concrete
// tree.Source a Scoped leaf's Base resolves against: package storage's
// Source implementation decodes one on-disk batch per GetBacking miss
// and caches it, so repeated GetBacking calls into the same batch only
// pay for one decode. This iterator only fixes the logical order and
// chunk boundaries; it never groups backingIdx values by batch itself,
// so a Permuted IndexSet's batch-grouping fields (see
// indexset.PermutedBatchGrouped) still matter for minimizing how many
// distinct batches a single chunk touches.
func Iterate(exec Execution, budget int, yield func(chunk []*tree.OwnedTree) bool) error {
	n := exec.Result.Len()
	if budget <= 0 {
		budget = n
	}
	for start := 0; start < n; start += budget {
		end := start + budget
		if end > n {
			end = n
		}
		chunk := make([]*tree.OwnedTree, 0, end-start)
		for pos := start; pos < end; pos++ {
			t, err := resolveAt(exec, pos)
			if err != nil {
				return err
			}
			chunk = append(chunk, t)
		}
		if !yield(chunk) {
			return nil
		}
	}
	return nil
}

// Materialize collapses exec into a fresh Materialized by direct
// node/value copying — the no-JSON-on-the-hot-path materialization
// boundary from §4.5 — using DefaultChunkBudget.
func Materialize(exec Execution) (*tree.Materialized, error) {
	return MaterializeWithBudget(exec, DefaultChunkBudget)
}

// MaterializeWithBudget is Materialize with an explicit chunk budget,
// decoding disjoint chunks concurrently via errgroup the way
// internal/concurrency.WorkerPool fanned work across goroutines in the
// teacher, but using the standard errgroup idiom for the smaller surface
// this core needs (§5, SPEC_FULL §3 domain stack).
func MaterializeWithBudget(exec Execution, budget int) (*tree.Materialized, error) {
	n := exec.Result.Len()
	if n == 0 {
		return tree.NewMaterialized(nil, tree.NewSchema()), nil
	}
	if budget <= 0 {
		budget = n
	}
	numChunks := (n + budget - 1) / budget
	chunks := make([][]*tree.OwnedTree, numChunks)

	g, _ := errgroup.WithContext(context.Background())
	for c := 0; c < numChunks; c++ {
		c := c
		start := c * budget
		end := start + budget
		if end > n {
			end = n
		}
		g.Go(func() error {
			buf := make([]*tree.OwnedTree, 0, end-start)
			for pos := start; pos < end; pos++ {
				t, err := resolveAt(exec, pos)
				if err != nil {
					return err
				}
				buf = append(buf, t)
			}
			chunks[c] = buf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	trees := make([]*tree.OwnedTree, 0, n)
	for _, c := range chunks {
		trees = append(trees, c...)
	}
	schema := tree.NewSchema()
	for _, t := range trees {
		schema = schema.InferTree(t)
	}
	return tree.NewMaterialized(trees, schema), nil
}
