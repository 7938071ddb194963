// Package value defines the tagged-union result of decoding a DataForge
// instance, replacing a dynamic any-typed tree with a closed set of kinds
// that extractors can switch over directly.
package value

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Kind identifies which field of a Value is meaningful.
type Kind int

const (
	KindNull Kind = iota
	KindScalar
	KindString
	KindGuid
	KindArray
	KindObject
	KindPtrSymbolic
	KindRef
	KindSkipped
)

// Value is the sum type produced by the instance reader (package
// internal/instance) for every property and nested struct.
type Value struct {
	Kind Kind

	// KindScalar: the numeric payload, stored widened to the matching Go type.
	Scalar any

	// KindString: resolved string-table text.
	Str string

	// KindGuid: a decoded little-endian composite GUID.
	Guid uuid.UUID

	// KindArray: elements, in pool order, truncated to the array element cap.
	Array []Value

	// KindObject: struct name and its effective (inherited) property map.
	TypeName string
	Fields   map[string]Value

	// KindPtrSymbolic: "<structName>[<variantIndex>]" for a weak pointer. A
	// strong pointer that hits the depth bound becomes a Skipped object.
	Symbolic string

	// KindRef: a REFERENCE property's target GUID, unresolved.
	RefGuid uuid.UUID

	// KindSkipped: set alongside KindObject when depth was exceeded; the
	// object carries no Fields.
	Skipped bool
}

// Null is the empty/absent sentinel returned when a struct has no instance
// at the requested variant index, or a pointer index is -1.
var Null = Value{Kind: KindNull}

// IsNull reports whether v carries no data.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Field looks up a field on an Object value, returning Null if absent or if
// v is not an Object.
func (v Value) Field(name string) Value {
	if v.Kind != KindObject || v.Fields == nil {
		return Null
	}
	if f, ok := v.Fields[name]; ok {
		return f
	}
	return Null
}

// AsFloat64 widens any numeric scalar to float64; ok is false for
// non-scalars.
func (v Value) AsFloat64() (float64, bool) {
	if v.Kind != KindScalar {
		return 0, false
	}
	switch n := v.Scalar.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// AsString returns the value as a string for KindString, or "" otherwise.
func (v Value) AsString() string {
	if v.Kind == KindString {
		return v.Str
	}
	return ""
}

// Object builds a KindObject Value.
func Object(typeName string, fields map[string]Value) Value {
	return Value{Kind: KindObject, TypeName: typeName, Fields: fields}
}

// Scalarv builds a KindScalar Value.
func Scalarv(x any) Value { return Value{Kind: KindScalar, Scalar: x} }

// String builds a KindString Value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Guid builds a KindGuid Value.
func Guid(id uuid.UUID) Value { return Value{Kind: KindGuid, Guid: id} }

// Array builds a KindArray Value.
func Array(elems []Value) Value { return Value{Kind: KindArray, Array: elems} }

// PtrSymbolic builds a KindPtrSymbolic Value.
func PtrSymbolic(s string) Value { return Value{Kind: KindPtrSymbolic, Symbolic: s} }

// Ref builds a KindRef Value.
func Ref(id uuid.UUID) Value { return Value{Kind: KindRef, RefGuid: id} }

// SkippedObject builds a KindObject Value marked Skipped (depth-bound cutoff).
func SkippedObject(typeName string) Value {
	return Value{Kind: KindObject, TypeName: typeName, Skipped: true}
}

// MarshalJSON renders the tagged union as plain JSON for the opaque
// game_data blob: objects become {"__type": ..., fields...}, weak/symbolic
// pointers become {"__weakPtr": ...}, references become {"__ref": ...},
// skipped nodes become {"__type": ..., "__skipped": true}.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return []byte("null"), nil
	case KindScalar:
		return json.Marshal(v.Scalar)
	case KindString:
		return json.Marshal(v.Str)
	case KindGuid:
		return json.Marshal(v.Guid.String())
	case KindArray:
		return json.Marshal(v.Array)
	case KindPtrSymbolic:
		return json.Marshal(map[string]string{"__weakPtr": v.Symbolic})
	case KindRef:
		return json.Marshal(map[string]string{"__ref": v.RefGuid.String()})
	case KindObject:
		out := make(map[string]any, len(v.Fields)+2)
		out["__type"] = v.TypeName
		if v.Skipped {
			out["__skipped"] = true
		}
		for k, f := range v.Fields {
			out[k] = f
		}
		return json.Marshal(out)
	default:
		return []byte("null"), nil
	}
}
