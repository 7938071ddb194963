// Package entityutil holds small tree-navigation helpers shared by the
// variant resolver, component extractor, and ship extractor — all three
// walk the same decoded entity shape (a Components[*] array dispatched by
// __type) but for different purposes.
package entityutil

import "github.com/ernie/starforge-extract/internal/value"

// Components returns the Components array field of an entity instance, or
// nil if absent.
func Components(entity value.Value) []value.Value {
	f := entity.Field("Components")
	if f.Kind != value.KindArray {
		return nil
	}
	return f.Array
}

// ComponentsOfType returns every component whose __type equals typeName.
func ComponentsOfType(entity value.Value, typeName string) []value.Value {
	var out []value.Value
	for _, c := range Components(entity) {
		if c.Kind == value.KindObject && c.TypeName == typeName {
			out = append(out, c)
		}
	}
	return out
}

// FirstComponentOfType returns the first component with the given __type.
func FirstComponentOfType(entity value.Value, typeName string) (value.Value, bool) {
	for _, c := range Components(entity) {
		if c.Kind == value.KindObject && c.TypeName == typeName {
			return c, true
		}
	}
	return value.Null, false
}

// defaultLoadoutComponentType is the __type of the default-loadout
// component carried by SItemPortLoadoutComponentParams-style entities.
const defaultLoadoutComponentType = "SItemPortLoadoutManagerComponentParams"

// LoadoutEntries returns the loadout.entries array of the entity's
// default-loadout component, or nil if there is none.
func LoadoutEntries(entity value.Value) []value.Value {
	comp, ok := FirstComponentOfType(entity, defaultLoadoutComponentType)
	if !ok {
		return nil
	}
	entries := comp.Field("loadout").Field("entries")
	if entries.Kind != value.KindArray {
		return nil
	}
	return entries.Array
}

// LoadoutEntryCount is a thin convenience wrapper around LoadoutEntries.
func LoadoutEntryCount(entity value.Value) int {
	return len(LoadoutEntries(entity))
}
