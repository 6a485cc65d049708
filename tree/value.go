// Package tree defines the tagged-union tree value that Arbor trees are
// built from, together with the lightweight schema and expression types
// the physical executor and handle layer consult. Ingestion (JSON/JSONL
// tokenization), the columnar on-disk encoding, and the full expression
// sub-language with its type inference are external collaborators per
// §1 of the specification; this package only fixes the in-memory shape
// those collaborators hand the core.
package tree

import (
	"bytes"
	"encoding/gob"
	"sort"
)

// Kind tags the variant a Value holds.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a heterogeneous JSON-like value: exactly one of the tagged
// variants below is meaningful for a given Kind.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	arr  []Value
	obj  map[string]Value
}

func NewNull() Value           { return Value{kind: Null} }
func NewBool(b bool) Value     { return Value{kind: Bool, b: b} }
func NewNumber(n float64) Value { return Value{kind: Number, n: n} }
func NewString(s string) Value { return Value{kind: String, s: s} }
func NewArray(vs []Value) Value {
	return Value{kind: Array, arr: vs}
}
func NewObject(m map[string]Value) Value {
	return Value{kind: Object, obj: m}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) AsBool() (bool, bool)     { return v.b, v.kind == Bool }
func (v Value) AsNumber() (float64, bool) { return v.n, v.kind == Number }
func (v Value) AsString() (string, bool) { return v.s, v.kind == String }
func (v Value) AsArray() ([]Value, bool) { return v.arr, v.kind == Array }
func (v Value) AsObject() (map[string]Value, bool) { return v.obj, v.kind == Object }

// Get navigates a dotted field path ("a.b.c") through nested objects.
// Arrays are not indexed by Get; Explode is the operation that flattens
// them. Returns the zero Value and false if any segment is absent or the
// value at some prefix is not an object.
func (v Value) Get(path string) (Value, bool) {
	cur := v
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '.' {
			seg := path[start:i]
			obj, ok := cur.AsObject()
			if !ok {
				return Value{}, false
			}
			next, ok := obj[seg]
			if !ok {
				return Value{}, false
			}
			cur = next
			start = i + 1
		}
	}
	return cur, true
}

// Equal performs deep structural equality, treating object key order as
// insignificant and array order as significant.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case Null:
		return true
	case Bool:
		return v.b == other.b
	case Number:
		return v.n == other.n
	case String:
		return v.s == other.s
	case Array:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case Object:
		if len(v.obj) != len(other.obj) {
			return false
		}
		for k, vv := range v.obj {
			ov, ok := other.obj[k]
			if !ok || !vv.Equal(ov) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Compare orders two Values for sort_by. Cross-kind comparisons order by
// Kind, keeping the ordering total without coercion (the core does not
// perform cross-type coercion; that belongs to the expression
// sub-language's type inference).
func (v Value) Compare(other Value) int {
	if v.kind != other.kind {
		if v.kind < other.kind {
			return -1
		}
		return 1
	}
	switch v.kind {
	case Null:
		return 0
	case Bool:
		if v.b == other.b {
			return 0
		}
		if !v.b {
			return -1
		}
		return 1
	case Number:
		switch {
		case v.n < other.n:
			return -1
		case v.n > other.n:
			return 1
		default:
			return 0
		}
	case String:
		switch {
		case v.s < other.s:
			return -1
		case v.s > other.s:
			return 1
		default:
			return 0
		}
	case Array:
		for i := 0; i < len(v.arr) && i < len(other.arr); i++ {
			if c := v.arr[i].Compare(other.arr[i]); c != 0 {
				return c
			}
		}
		return len(v.arr) - len(other.arr)
	case Object:
		// Objects compare by sorted key/value pairs, so object-valued
		// sort keys still order deterministically.
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		okeys := make([]string, 0, len(other.obj))
		for k := range other.obj {
			okeys = append(okeys, k)
		}
		sort.Strings(okeys)
		for i := 0; i < len(keys) && i < len(okeys); i++ {
			if keys[i] != okeys[i] {
				if keys[i] < okeys[i] {
					return -1
				}
				return 1
			}
			if c := v.obj[keys[i]].Compare(other.obj[okeys[i]]); c != 0 {
				return c
			}
		}
		return len(keys) - len(okeys)
	default:
		return 0
	}
}

// wireValue mirrors Value with exported fields, the shape gob needs to
// serialize it. Value keeps its fields unexported everywhere else, so the
// storage package's on-disk format goes through MarshalBinary/
// UnmarshalBinary rather than reaching into Value directly.
type wireValue struct {
	Kind Kind
	B    bool
	N    float64
	S    string
	Arr  []wireValue
	Obj  map[string]wireValue
}

func toWire(v Value) wireValue {
	w := wireValue{Kind: v.kind, B: v.b, N: v.n, S: v.s}
	if v.arr != nil {
		w.Arr = make([]wireValue, len(v.arr))
		for i, e := range v.arr {
			w.Arr[i] = toWire(e)
		}
	}
	if v.obj != nil {
		w.Obj = make(map[string]wireValue, len(v.obj))
		for k, e := range v.obj {
			w.Obj[k] = toWire(e)
		}
	}
	return w
}

func fromWire(w wireValue) Value {
	v := Value{kind: w.Kind, b: w.B, n: w.N, s: w.S}
	if w.Arr != nil {
		v.arr = make([]Value, len(w.Arr))
		for i, e := range w.Arr {
			v.arr[i] = fromWire(e)
		}
	}
	if w.Obj != nil {
		v.obj = make(map[string]Value, len(w.Obj))
		for k, e := range w.Obj {
			v.obj[k] = fromWire(e)
		}
	}
	return v
}

// MarshalBinary/UnmarshalBinary let a Value round-trip through
// encoding/gob (which prefers these over reflecting into unexported
// fields), the wire format the storage package persists an Arbor's
// materialized rows in.
func (v Value) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(toWire(v)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v *Value) UnmarshalBinary(data []byte) error {
	var w wireValue
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&w); err != nil {
		return err
	}
	*v = fromWire(w)
	return nil
}

// OwnedTree is one row of an Arbor: a single root Value plus whatever
// bookkeeping the columnar builder attaches externally. The core treats
// it as an opaque, cloneable-by-reference unit; mutation overlays never
// mutate an OwnedTree in place, they produce a new one.
type OwnedTree struct {
	Root Value
}

func NewTree(root Value) *OwnedTree { return &OwnedTree{Root: root} }

func (t *OwnedTree) Equal(other *OwnedTree) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.Root.Equal(other.Root)
}

// WithField returns a new tree with name set to the given value at the
// top level, used by AddField. The receiver is left untouched.
func (t *OwnedTree) WithField(name string, v Value) *OwnedTree {
	obj, ok := t.Root.AsObject()
	next := make(map[string]Value, len(obj)+1)
	if ok {
		for k, vv := range obj {
			next[k] = vv
		}
	}
	next[name] = v
	return &OwnedTree{Root: NewObject(next)}
}

// Project returns a new tree containing only the given top-level fields.
func (t *OwnedTree) Project(fields []string) *OwnedTree {
	obj, _ := t.Root.AsObject()
	next := make(map[string]Value, len(fields))
	for _, f := range fields {
		if v, ok := obj[f]; ok {
			next[f] = v
		}
	}
	return &OwnedTree{Root: NewObject(next)}
}
