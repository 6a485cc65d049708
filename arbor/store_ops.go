package arbor

import (
	"github.com/google/uuid"

	"github.com/tugtool/arbor/errs"
	"github.com/tugtool/arbor/plan"
)

// Open opens the Arbor stored under name in the .arbors file at path
// (§4.9, §6.3). Fails with NotFound if the file or the name is absent.
func Open(path, name string) (*Arbor, error) {
	return OpenWithOptions(path, name, Options{})
}

// OpenWithOptions is Open with explicit Options (read-only, busy timeout).
func OpenWithOptions(path, name string, opts Options) (*Arbor, error) {
	if err := requireBackend("arbor.Open"); err != nil {
		return nil, err
	}
	src, schema, err := backend.Open(path, name, opts)
	if err != nil {
		return nil, err
	}
	a := &Arbor{
		plan:        &plan.Scoped{Source: src, Name: name},
		schema:      schema,
		scoped:      true,
		scopedPath:  path,
		scopedName:  name,
		lastOptions: opts,
		snapshot:    uuid.New(),
	}
	a.execute()
	if a.execErr != nil {
		return nil, a.execErr
	}
	return a, nil
}

// List returns every name stored in the .arbors file at path. An absent
// file reports an empty list rather than an error.
func List(path string) ([]string, error) {
	if err := requireBackend("arbor.List"); err != nil {
		return nil, err
	}
	return backend.List(path)
}

// Delete removes name from the .arbors file at path, reporting whether it
// was present.
func Delete(path, name string) (bool, error) {
	if err := requireBackend("arbor.Delete"); err != nil {
		return false, err
	}
	return backend.Delete(path, name)
}

// SaveMultiple atomically writes every item to the .arbors file at path
// in one transaction (§4.9: "all-or-nothing... no other writer observes a
// partial set"). Duplicate names within items are last-write-wins.
func SaveMultiple(path string, items []NamedData, opts Options) error {
	if err := requireBackend("arbor.SaveMultiple"); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	return backend.SaveMultiple(path, items, opts)
}

// Save collects a's current result and writes it under name in the
// .arbors file at path.
func (a *Arbor) Save(path, name string, opts Options) error {
	data, err := a.Collect()
	if err != nil {
		return err
	}
	return SaveMultiple(path, []NamedData{{Name: name, Data: data}}, opts)
}

// Refresh re-binds a scoped Arbor's root data binding to a fresh snapshot
// read from storage and re-executes the same LogicalPlan against it
// (§3.9: "the plan is re-executed from scratch against the new
// snapshot"). It fails with ExecutionErr on an in-memory Arbor, since
// there is no stored snapshot to refresh against.
func (a *Arbor) Refresh() (*Arbor, error) {
	if !a.scoped {
		return nil, errs.New(errs.ExecutionErr, "Arbor.Refresh", "cannot refresh an in-memory Arbor")
	}
	if err := requireBackend("Arbor.Refresh"); err != nil {
		return nil, err
	}
	src, schema, err := backend.Open(a.scopedPath, a.scopedName, a.lastOptions)
	if err != nil {
		return nil, err
	}
	newLeaf := &plan.Scoped{Source: src, Name: a.scopedName}
	newPlan := rebindLeaf(a.plan, newLeaf)
	next := &Arbor{
		plan:        newPlan,
		schema:      schema,
		scoped:      true,
		scopedPath:  a.scopedPath,
		scopedName:  a.scopedName,
		lastOptions: a.lastOptions,
		snapshot:    uuid.New(),
	}
	next.execute()
	if next.execErr != nil {
		return nil, next.execErr
	}
	return next, nil
}

// rebindLeaf walks down to the plan's single InMemory/Scoped leaf and
// replaces it with newLeaf, rebuilding every ancestor on the way back up
// via plan.WithSource — the same generic child-replacement primitive the
// optimizer's fixed-point rewriter uses.
func rebindLeaf(n plan.Node, newLeaf plan.Node) plan.Node {
	switch n.(type) {
	case *plan.InMemory, *plan.Scoped:
		return newLeaf
	}
	child, ok := plan.Child(n)
	if !ok {
		return n
	}
	newChild := rebindLeaf(child, newLeaf)
	return plan.WithSource(n, newChild)
}
