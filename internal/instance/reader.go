// Package instance implements the polymorphic instance reader (spec §4.D):
// given (structIndex, variantIndex), it produces a value.Value tree honoring
// struct inheritance, inline vs array-indirection properties, pointer
// chasing, and a max-depth cycle guard. Dispatch per data-type tag follows
// the switch-based per-block-type dispatch idiom in
// houston/parser.FileData.BlockList.
package instance

import (
	"fmt"

	"github.com/ernie/starforge-extract/internal/dataforge"
	"github.com/ernie/starforge-extract/internal/value"
	"github.com/ernie/starforge-extract/internal/xerrors"
)

// DefaultMaxDepth is the default recursion bound for CLASS and STRONG_PTR
// properties (spec §6's maxInstanceDepth default).
const DefaultMaxDepth = 3

// DefaultArrayCap truncates array-indirection properties (spec §6's
// arrayElementCap default), protecting against corrupted counts.
const DefaultArrayCap = 200

// Reader reads instances out of a dataforge.View.
type Reader struct {
	view        *dataforge.View
	maxDepth    int
	arrayCap    int
}

// New returns a Reader bound to view, with maxDepth and arrayCap defaulted
// when <= 0.
func New(view *dataforge.View, maxDepth, arrayCap int) *Reader {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if arrayCap <= 0 {
		arrayCap = DefaultArrayCap
	}
	return &Reader{view: view, maxDepth: maxDepth, arrayCap: arrayCap}
}

// cycleKey is the explicit (structIndex, variantIndex, depth) memo key that
// replaces recursion-based cycle guarding (spec §9's re-architecture note).
type cycleKey struct {
	structIndex  int32
	variantIndex uint16
	depth        int
}

// Read produces the value.Value for the instance at (structIndex,
// variantIndex), starting at depth 0. It returns value.Null when the struct
// has no data-region mapping.
func (r *Reader) Read(structIndex int32, variantIndex uint16) (value.Value, error) {
	visited := make(map[cycleKey]bool)
	return r.readAt(structIndex, variantIndex, 0, visited)
}

func (r *Reader) readAt(structIndex int32, variantIndex uint16, depth int, visited map[cycleKey]bool) (value.Value, error) {
	sd, ok := r.view.StructAt(structIndex)
	if !ok {
		return value.Null, fmt.Errorf("%w: struct index %d out of range", xerrors.ErrFormat, structIndex)
	}

	dataOffset, ok := r.view.StructToDataOffset[structIndex]
	if !ok {
		return value.Null, nil // spec §8: reader returns absent, not crash
	}

	key := cycleKey{structIndex, variantIndex, depth}
	if visited[key] {
		return value.SkippedObject(sd.ResolvedName), nil
	}
	visited[key] = true
	defer delete(visited, key)

	pos := dataOffset + int64(variantIndex)*int64(sd.StructSize)

	chain := r.view.AncestorChain(structIndex)
	fields := make(map[string]value.Value)

	for _, ancestorIdx := range chain {
		ancestor, _ := r.view.StructAt(ancestorIdx)
		for i := uint16(0); i < ancestor.AttributeCount; i++ {
			propIdx := int(ancestor.FirstAttributeIndex) + int(i)
			if propIdx < 0 || propIdx >= len(r.view.PropertyDefs) {
				continue
			}
			prop := r.view.PropertyDefs[propIdx]
			v, newPos, err := r.readProperty(prop, pos, depth, visited)
			if err != nil {
				return value.Null, err
			}
			fields[prop.ResolvedName] = v
			pos = newPos
		}
	}

	return value.Object(sd.ResolvedName, fields), nil
}

// readProperty reads one property at pos, returning its value and the
// cursor position immediately after it.
func (r *Reader) readProperty(prop dataforge.PropertyDef, pos int64, depth int, visited map[cycleKey]bool) (value.Value, int64, error) {
	if prop.Inline() {
		return r.readInline(prop, pos, depth, visited)
	}
	return r.readIndirect(prop, pos, depth, visited)
}

// readInline reads a single value directly at pos and advances by the
// tag's inline size.
func (r *Reader) readInline(prop dataforge.PropertyDef, pos int64, depth int, visited map[cycleKey]bool) (value.Value, int64, error) {
	switch prop.DataType {
	case dataforge.Class:
		nestedSd, ok := r.view.StructAt(int32(prop.StructIndex))
		if !ok {
			return value.Null, pos, fmt.Errorf("%w: class property references unknown struct %d", xerrors.ErrFormat, prop.StructIndex)
		}
		v, err := r.readClassInline(int32(prop.StructIndex), pos, depth, visited)
		if err != nil {
			return value.Null, pos, err
		}
		return v, pos + int64(nestedSd.StructSize), nil

	case dataforge.StrongPtr:
		ref, err := readPtrRefAtOffset(r.view, pos)
		if err != nil {
			return value.Null, pos, err
		}
		if ref.IsNull() {
			return value.Null, pos + 8, nil
		}
		if depth >= r.maxDepth {
			sd, _ := r.view.StructAt(int32(ref.StructIndex))
			return value.SkippedObject(sd.ResolvedName), pos + 8, nil
		}
		v, err := r.readAt(int32(ref.StructIndex), ref.VariantIndex, depth+1, visited)
		if err != nil {
			return value.Null, pos, err
		}
		return v, pos + 8, nil

	case dataforge.WeakPtr:
		ref, err := readPtrRefAtOffset(r.view, pos)
		if err != nil {
			return value.Null, pos, err
		}
		if ref.IsNull() {
			return value.Null, pos + 8, nil
		}
		sd, _ := r.view.StructAt(int32(ref.StructIndex))
		return value.PtrSymbolic(fmt.Sprintf("%s[%d]", sd.ResolvedName, ref.VariantIndex)), pos + 8, nil

	case dataforge.Reference:
		if pos+20 > int64(len(r.view.Buf)) {
			return value.Null, pos, fmt.Errorf("%w: reference read past end", xerrors.ErrTruncation)
		}
		guidBytes := r.view.Buf[pos+4 : pos+20]
		return value.Ref(readGUIDBytes(guidBytes)), pos + 20, nil

	case dataforge.Guid:
		if pos+16 > int64(len(r.view.Buf)) {
			return value.Null, pos, fmt.Errorf("%w: guid read past end", xerrors.ErrTruncation)
		}
		return value.Guid(readGUIDBytes(r.view.Buf[pos : pos+16])), pos + 16, nil

	case dataforge.String, dataforge.Locale, dataforge.Enum:
		if pos+4 > int64(len(r.view.Buf)) {
			return value.Null, pos, fmt.Errorf("%w: string offset read past end", xerrors.ErrTruncation)
		}
		off := leUint32(r.view.Buf[pos : pos+4])
		return value.String(r.view.String1(off)), pos + 4, nil

	default:
		size, ok := dataforge.InlineSize(prop.DataType)
		if !ok {
			// Unknown tag: diagnostic, null, advance 4 bytes conservatively.
			return value.Null, pos + 4, nil
		}
		if pos+int64(size) > int64(len(r.view.Buf)) {
			return value.Null, pos, fmt.Errorf("%w: scalar read past end", xerrors.ErrTruncation)
		}
		sv := decodeScalar(prop.DataType, r.view.Buf[pos:pos+int64(size)])
		return value.Scalarv(sv), pos + int64(size), nil
	}
}

// readIndirect reads a (count, firstIndex) pair and gathers up to
// min(count, arrayCap) elements from the pool identified by the property's
// data type.
func (r *Reader) readIndirect(prop dataforge.PropertyDef, pos int64, depth int, visited map[cycleKey]bool) (value.Value, int64, error) {
	if pos+8 > int64(len(r.view.Buf)) {
		return value.Null, pos, fmt.Errorf("%w: array header read past end", xerrors.ErrTruncation)
	}
	count := int(leUint32(r.view.Buf[pos : pos+4]))
	firstIndex := int(leUint32(r.view.Buf[pos+4 : pos+8]))

	n := count
	if n > r.arrayCap {
		n = r.arrayCap
	}
	if n < 0 {
		n = 0
	}

	elems := make([]value.Value, 0, n)
	for i := 0; i < n; i++ {
		elemIdx := firstIndex + i
		v, err := r.readPoolElement(prop, elemIdx, depth, visited)
		if err != nil {
			return value.Null, pos, err
		}
		elems = append(elems, v)
	}
	return value.Array(elems), pos + 8, nil
}

func (r *Reader) readPoolElement(prop dataforge.PropertyDef, elemIdx int, depth int, visited map[cycleKey]bool) (value.Value, error) {
	v := r.view
	switch prop.DataType {
	case dataforge.Boolean:
		x, err := v.BoolAt(elemIdx)
		return value.Scalarv(x), err
	case dataforge.Int8:
		x, err := v.Int8At(elemIdx)
		return value.Scalarv(x), err
	case dataforge.Int16:
		x, err := v.Int16At(elemIdx)
		return value.Scalarv(x), err
	case dataforge.Int32:
		x, err := v.Int32At(elemIdx)
		return value.Scalarv(x), err
	case dataforge.Int64:
		x, err := v.Int64At(elemIdx)
		return value.Scalarv(x), err
	case dataforge.UInt8:
		x, err := v.UInt8At(elemIdx)
		return value.Scalarv(x), err
	case dataforge.UInt16:
		x, err := v.UInt16At(elemIdx)
		return value.Scalarv(x), err
	case dataforge.UInt32:
		x, err := v.UInt32At(elemIdx)
		return value.Scalarv(x), err
	case dataforge.UInt64:
		x, err := v.UInt64At(elemIdx)
		return value.Scalarv(x), err
	case dataforge.Single:
		x, err := v.SingleAt(elemIdx)
		return value.Scalarv(x), err
	case dataforge.Double:
		x, err := v.DoubleAt(elemIdx)
		return value.Scalarv(x), err
	case dataforge.Guid:
		x, err := v.GuidAt(elemIdx)
		return value.Guid(x), err
	case dataforge.String:
		x, err := v.StringIDAt(elemIdx)
		return value.String(x), err
	case dataforge.Locale:
		x, err := v.LocaleAt(elemIdx)
		return value.String(x), err
	case dataforge.Enum:
		x, err := v.EnumAt(elemIdx)
		return value.String(x), err
	case dataforge.StrongPtr:
		ref, err := v.StrongPtrAt(elemIdx)
		if err != nil {
			return value.Null, err
		}
		if ref.IsNull() {
			return value.Null, nil
		}
		if depth >= r.maxDepth {
			sd, _ := v.StructAt(int32(ref.StructIndex))
			return value.SkippedObject(sd.ResolvedName), nil
		}
		return r.readAt(int32(ref.StructIndex), ref.VariantIndex, depth+1, visited)
	case dataforge.WeakPtr:
		ref, err := v.WeakPtrAt(elemIdx)
		if err != nil {
			return value.Null, err
		}
		if ref.IsNull() {
			return value.Null, nil
		}
		sd, _ := v.StructAt(int32(ref.StructIndex))
		return value.PtrSymbolic(fmt.Sprintf("%s[%d]", sd.ResolvedName, ref.VariantIndex)), nil
	case dataforge.Reference:
		ref, err := v.ReferenceAt(elemIdx)
		return value.Ref(ref.GUID), err
	case dataforge.Class:
		return value.Null, fmt.Errorf("%w: array of CLASS is not a supported layout", xerrors.ErrFormat)
	default:
		return value.Null, nil
	}
}

// readClassInline reads a nested struct laid out directly in the parent's
// bytes rather than through the struct's own data-region offset.
func (r *Reader) readClassInline(structIndex int32, pos int64, depth int, visited map[cycleKey]bool) (value.Value, error) {
	sd, ok := r.view.StructAt(structIndex)
	if !ok {
		return value.Null, fmt.Errorf("%w: nested struct %d out of range", xerrors.ErrFormat, structIndex)
	}
	if depth >= r.maxDepth {
		return value.SkippedObject(sd.ResolvedName), nil
	}

	chain := r.view.AncestorChain(structIndex)
	fields := make(map[string]value.Value)
	cur := pos
	for _, ancestorIdx := range chain {
		ancestor, _ := r.view.StructAt(ancestorIdx)
		for i := uint16(0); i < ancestor.AttributeCount; i++ {
			propIdx := int(ancestor.FirstAttributeIndex) + int(i)
			if propIdx < 0 || propIdx >= len(r.view.PropertyDefs) {
				continue
			}
			prop := r.view.PropertyDefs[propIdx]
			v, newPos, err := r.readProperty(prop, cur, depth+1, visited)
			if err != nil {
				return value.Null, err
			}
			fields[prop.ResolvedName] = v
			cur = newPos
		}
	}
	return value.Object(sd.ResolvedName, fields), nil
}

func readPtrRefAtOffset(v *dataforge.View, pos int64) (dataforge.PtrRef, error) {
	if pos+8 > int64(len(v.Buf)) {
		return dataforge.PtrRef{}, fmt.Errorf("%w: pointer read past end", xerrors.ErrTruncation)
	}
	structIndex := leUint32(v.Buf[pos : pos+4])
	variantIndex := uint16(v.Buf[pos+4]) | uint16(v.Buf[pos+5])<<8
	return dataforge.PtrRef{StructIndex: structIndex, VariantIndex: variantIndex}, nil
}
