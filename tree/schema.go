package tree

import "github.com/tugtool/arbor/errs"

// FieldType is the widened type the single-pass inference assigns a
// field. Mixed means samples disagreed on type and the field is not
// safely narrowable; this mirrors "schema widening... implemented in the
// ingestion collaborator" (§9) — the core only consumes the result.
type FieldType int

const (
	TypeUnknown FieldType = iota
	TypeNull
	TypeBool
	TypeNumber
	TypeString
	TypeArray
	TypeObject
	TypeMixed
)

// Schema is the immutable, inferred-or-declared field-type map an Arbor
// carries. It is intentionally flat (dotted paths as keys) rather than
// a nested tree, which is sufficient for the field-presence and
// type-compatibility checks §7 requires of predicates/expressions.
type Schema struct {
	Fields map[string]FieldType
}

func NewSchema() Schema {
	return Schema{Fields: make(map[string]FieldType)}
}

func kindToFieldType(k Kind) FieldType {
	switch k {
	case Null:
		return TypeNull
	case Bool:
		return TypeBool
	case Number:
		return TypeNumber
	case String:
		return TypeString
	case Array:
		return TypeArray
	case Object:
		return TypeObject
	default:
		return TypeUnknown
	}
}

func widen(a, b FieldType) FieldType {
	if a == TypeUnknown {
		return b
	}
	if b == TypeUnknown {
		return a
	}
	if a == b {
		return a
	}
	// Null participates in widening without forcing Mixed: an optional
	// field sampled as both null and typed is just that type, optional.
	if a == TypeNull {
		return b
	}
	if b == TypeNull {
		return a
	}
	return TypeMixed
}

// InferTree performs a single-pass sample over one tree's top-level
// fields (nested paths are flattened with "." the same way Value.Get
// addresses them) and merges the result into the receiver, returning a
// new widened Schema. The receiver is left untouched.
func (s Schema) InferTree(t *OwnedTree) Schema {
	next := Schema{Fields: make(map[string]FieldType, len(s.Fields))}
	for k, v := range s.Fields {
		next.Fields[k] = v
	}
	inferInto(next.Fields, "", t.Root)
	return next
}

func inferInto(fields map[string]FieldType, prefix string, v Value) {
	obj, ok := v.AsObject()
	if !ok {
		if prefix != "" {
			fields[prefix] = widen(fields[prefix], kindToFieldType(v.Kind()))
		}
		return
	}
	if prefix != "" {
		fields[prefix] = widen(fields[prefix], TypeObject)
	}
	for k, vv := range obj {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if nested, ok := vv.AsObject(); ok {
			_ = nested
			inferInto(fields, path, vv)
		} else {
			fields[path] = widen(fields[path], kindToFieldType(vv.Kind()))
		}
	}
}

// Widen merges two Schemas field-by-field.
func (s Schema) Widen(other Schema) Schema {
	next := Schema{Fields: make(map[string]FieldType, len(s.Fields)+len(other.Fields))}
	for k, v := range s.Fields {
		next.Fields[k] = v
	}
	for k, v := range other.Fields {
		next.Fields[k] = widen(next.Fields[k], v)
	}
	return next
}

// Check validates that field is known to the schema. It returns a
// SchemaErr when the field was never observed, the zero value otherwise.
func (s Schema) Check(op, field string) error {
	if _, ok := s.Fields[field]; !ok {
		return &errs.Error{Kind: errs.SchemaErr, Op: op, Message: "field not present in schema", Field: field}
	}
	return nil
}

// CheckType validates that field's inferred type is compatible with
// want. TypeMixed is compatible with anything (the field's true type is
// only known per-row); TypeUnknown fields fail Check before reaching
// here.
func (s Schema) CheckType(op, field string, want FieldType) error {
	got, ok := s.Fields[field]
	if !ok {
		return &errs.Error{Kind: errs.SchemaErr, Op: op, Message: "field not present in schema", Field: field}
	}
	if got == TypeMixed || got == want {
		return nil
	}
	return &errs.Error{Kind: errs.TypeMismatchErr, Op: op, Message: "field type is incompatible with expression", Field: field}
}
