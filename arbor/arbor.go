// Package arbor defines the public Arbor handle: the eager, chainable
// query/mutation surface built on plan, optimizer, and physical (§3.9,
// §4.7, §6.1). Every chainable call builds a new LogicalPlan node,
// optimizes it, and executes it immediately — there is no separate
// "build, then run" step the way a lazily-evaluated frame API would have
// one, mirroring the teacher's internal/dataframe.DataFrame methods each
// returning a fully computed *DataFrame rather than a deferred plan.
package arbor

import (
	"github.com/google/uuid"

	"github.com/tugtool/arbor/errs"
	"github.com/tugtool/arbor/optimizer"
	"github.com/tugtool/arbor/physical"
	"github.com/tugtool/arbor/plan"
	"github.com/tugtool/arbor/tree"
)

// Options configures an open/save call against a stored .arbors file.
// Defined here (not in package storage) so Backend's signature needs no
// import of storage, which is what lets storage depend on arbor without
// arbor depending back on storage (see Backend, below).
type Options struct {
	ReadOnly    bool
	BusyTimeout int64 // milliseconds; 0 means "driver default"
}

func (o Options) WithReadOnly() Options {
	o.ReadOnly = true
	return o
}

func (o Options) WithBusyTimeoutMillis(ms int64) Options {
	o.BusyTimeout = ms
	return o
}

// NamedData pairs a stored name with the materialized rows saved or
// loaded under it, the unit save_multiple and List/Open exchange with a
// Backend.
type NamedData struct {
	Name string
	Data *tree.Materialized
}

// Backend is the storage surface an Arbor's free functions and Save/
// Refresh methods call through. storage.init() registers the concrete
// .arbors implementation via RegisterBackend, the same registration-at-
// init idiom database/sql uses for its drivers — it is what lets storage
// import arbor directly (for Options, NamedData and RegisterBackend)
// while arbor never imports storage,
// breaking what would otherwise be a two-package import cycle.
// Backend.Open returns a tree.Source rather than a *tree.Materialized: the
// .arbors implementation decodes lazily, batch by batch, as GetBacking
// touches each backing index (§4.8 step 3), so Open itself only reads
// enough metadata to report the row count and schema up front.
type Backend interface {
	Open(path, name string, opts Options) (tree.Source, tree.Schema, error)
	List(path string) ([]string, error)
	Delete(path, name string) (bool, error)
	SaveMultiple(path string, items []NamedData, opts Options) error
}

var backend Backend

// RegisterBackend installs the storage implementation. Called from
// package storage's init(); never called directly by application code.
func RegisterBackend(b Backend) { backend = b }

func requireBackend(op string) error {
	if backend == nil {
		return errs.New(errs.StorageErr, op, "no storage backend registered (import package storage for its side effect)")
	}
	return nil
}

// Arbor is a handle over a cached PhysicalResult (§4.7): every method
// below builds a new LogicalPlan node wrapping a.plan, optimizes it, and
// executes it against the same root binding, returning a new Arbor that
// has already done this work. schema is a best-effort running inference;
// it is carried over unchanged across nodes that only select or reorder
// existing rows (filter, sort family, head/tail/take/sample/shuffle/
// reverse, remove), and is reset to an empty schema by nodes that build,
// add or replace tree content.
type Arbor struct {
	plan   plan.Node
	exec   physical.Execution
	execErr error
	schema tree.Schema

	scoped      bool
	scopedPath  string
	scopedName  string
	lastOptions Options
	snapshot    uuid.UUID
}

// FromMaterialized wraps an already-materialized collection as an
// in-memory Arbor (§3.9's InMemory binding).
func FromMaterialized(data *tree.Materialized) *Arbor {
	a := &Arbor{plan: &plan.InMemory{Data: data}, schema: data.Schema}
	a.execute()
	return a
}

func (a *Arbor) execute() {
	optimized := optimizer.Optimize(a.plan)
	a.plan = optimized
	exec, err := physical.Execute(optimized)
	a.exec = exec
	a.execErr = err
}

// derive builds a new Arbor around n, inheriting a's binding metadata,
// and executes it immediately. It is the one place every chainable
// method funnels through, keeping the eager-execution contract in a
// single spot.
func derive(a *Arbor, n plan.Node, schema tree.Schema) (*Arbor, error) {
	next := &Arbor{
		plan:        n,
		schema:      schema,
		scoped:      a.scoped,
		scopedPath:  a.scopedPath,
		scopedName:  a.scopedName,
		lastOptions: a.lastOptions,
		snapshot:    a.snapshot,
	}
	next.execute()
	if next.execErr != nil {
		return nil, next.execErr
	}
	return next, nil
}

// Len reports the current logical row count.
func (a *Arbor) Len() int { return a.exec.Result.Len() }

// Schema returns the best-effort inferred schema for the current result.
func (a *Arbor) Schema() tree.Schema { return a.schema }

// Get resolves the tree at a single logical position without forcing a
// full materialize.
func (a *Arbor) Get(pos int) (*tree.OwnedTree, error) {
	return physical.ResolveAt(a.exec, pos)
}

// Collect materializes every row into a fresh Materialized.
func (a *Arbor) Collect() (*tree.Materialized, error) {
	return physical.Materialize(a.exec)
}

// Iterate streams the result in chunks of at most budget trees, per
// §4.8's lazy chunked iteration.
func (a *Arbor) Iterate(budget int, yield func(chunk []*tree.OwnedTree) bool) error {
	return physical.Iterate(a.exec, budget, yield)
}
