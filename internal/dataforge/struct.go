package dataforge

import "fmt"

// StructAt returns the struct definition at index i.
func (v *View) StructAt(i int32) (StructDef, bool) {
	if i < 0 || int(i) >= len(v.StructDefs) {
		return StructDef{}, false
	}
	return v.StructDefs[i], true
}

// InlineSize returns the number of bytes an inline property of the given
// data type occupies, per the table in spec §4.D. For DataType Class the
// nested struct's own StructSize is required and passed in separately by
// the instance reader, since it isn't known from the tag alone.
func InlineSize(dt DataType) (int, bool) {
	switch dt {
	case Boolean, Int8, UInt8:
		return 1, true
	case Int16, UInt16:
		return 2, true
	case Int32, UInt32, Single, String, Locale, Enum:
		return 4, true
	case Int64, UInt64, Double:
		return 8, true
	case Guid:
		return 16, true
	case StrongPtr, WeakPtr:
		return 8, true
	case Reference:
		return 20, true
	default:
		return 0, false
	}
}

// AncestorChain walks the parent chain of structIndex, parent-first, guarding
// against cycles caused by a malformed chain. It returns the struct indexes
// from the root ancestor down to structIndex itself.
func (v *View) AncestorChain(structIndex int32) []int32 {
	var chain []int32
	visited := make(map[int32]bool)
	cur := structIndex
	for {
		if cur < 0 || int(cur) >= len(v.StructDefs) {
			break
		}
		if visited[cur] {
			break // cycle in a malformed parent chain
		}
		visited[cur] = true
		chain = append(chain, cur)
		sd := v.StructDefs[cur]
		if !sd.HasParent() {
			break
		}
		cur = sd.ParentTypeIndex
	}
	// reverse so the chain is root-first
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// FindStructIndexByName returns the index of the struct with the given
// resolved name, used by the indexer and component extractor to dispatch on
// __type names.
func (v *View) FindStructIndexByName(name string) (int32, bool) {
	for i, sd := range v.StructDefs {
		if sd.ResolvedName == name {
			return int32(i), true
		}
	}
	return 0, false
}

func (v *View) String() string {
	return fmt.Sprintf("dataforge.View{structs=%d props=%d records=%d}", len(v.StructDefs), len(v.PropertyDefs), len(v.Records))
}
