package tree

// Predicate evaluates to true/false for a tree; Filter keeps trees where
// it returns true. Expr evaluates to a Value; Select/AddField/sort keys
// use it. Both are plain function types: the expression sub-language and
// its type inference are external collaborators (§1) that compile down
// to one of these two shapes before reaching the core.
type Predicate func(*OwnedTree) (bool, error)

type Expr func(*OwnedTree) (Value, error)

// FieldRef is ergonomic sugar over Expr/Predicate for the common case of
// comparing one top-level or dotted field against a literal. It is not a
// parser for an expression language; it is a builder whose output is
// just a Predicate/Expr closure, matching how the dataframe-style
// condition functions were built by hand in the teacher's
// internal/dataframe.Filter.
type FieldRef struct {
	Path string
}

func Field(path string) FieldRef { return FieldRef{Path: path} }

// Expr returns the field extractor itself, usable wherever an Expr is
// expected (Select, AddField, sort keys).
func (f FieldRef) Expr() Expr {
	return func(t *OwnedTree) (Value, error) {
		v, ok := t.Root.Get(f.Path)
		if !ok {
			return Value{}, nil
		}
		return v, nil
	}
}

func (f FieldRef) cmp(lit Value, ok func(c int) bool) Predicate {
	return func(t *OwnedTree) (bool, error) {
		v, present := t.Root.Get(f.Path)
		if !present {
			return false, nil
		}
		return ok(v.Compare(lit)), nil
	}
}

func (f FieldRef) GT(n float64) Predicate { return f.cmp(NewNumber(n), func(c int) bool { return c > 0 }) }
func (f FieldRef) GE(n float64) Predicate { return f.cmp(NewNumber(n), func(c int) bool { return c >= 0 }) }
func (f FieldRef) LT(n float64) Predicate { return f.cmp(NewNumber(n), func(c int) bool { return c < 0 }) }
func (f FieldRef) LE(n float64) Predicate { return f.cmp(NewNumber(n), func(c int) bool { return c <= 0 }) }

func (f FieldRef) EQ(v Value) Predicate { return f.cmp(v, func(c int) bool { return c == 0 }) }
func (f FieldRef) NE(v Value) Predicate { return f.cmp(v, func(c int) bool { return c != 0 }) }

// And/Or/Not combine predicates; the optimizer's filter-fusion pass
// (§4.6) merges adjacent Filter nodes by concatenating their predicate
// lists, which plan.Filter.Predicate then combines with And. Any
// Predicate, including raw closures, is a legal Filter argument.
func And(preds ...Predicate) Predicate {
	return func(t *OwnedTree) (bool, error) {
		for _, p := range preds {
			ok, err := p(t)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	}
}

func Or(preds ...Predicate) Predicate {
	return func(t *OwnedTree) (bool, error) {
		for _, p := range preds {
			ok, err := p(t)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
}

func Not(p Predicate) Predicate {
	return func(t *OwnedTree) (bool, error) {
		ok, err := p(t)
		if err != nil {
			return false, err
		}
		return !ok, nil
	}
}

// KeySpec is one key in a sort/top-k/group-by specification.
type KeySpec struct {
	Expr Expr
	Desc bool
}

func Key(path string) KeySpec       { return KeySpec{Expr: Field(path).Expr()} }
func KeyDesc(path string) KeySpec   { return KeySpec{Expr: Field(path).Expr(), Desc: true} }
