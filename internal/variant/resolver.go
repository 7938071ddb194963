// Package variant implements the variant resolver (spec §4.F): real
// vehicles are packaged as a bare class plus several "_PU" entity variants,
// only some of which carry the default loadout. Grounded on
// assets/mappak.go's resolveShaderTextures fallback-chain shape (try
// direct, then indirect, then a scored choice).
package variant

import (
	"regexp"
	"strings"

	"github.com/ernie/starforge-extract/internal/entityutil"
	"github.com/ernie/starforge-extract/internal/index"
	"github.com/ernie/starforge-extract/internal/value"
)

// trivialLoadoutThreshold is the minimum entry count for a base loadout to
// be considered "real" rather than trivial (spec §4.F rule 1).
const trivialLoadoutThreshold = 20

// Entities is the resolved {baseEntity, loadoutEntity, vehicleXmlName}
// triple.
type Entities struct {
	BaseEntity     string
	LoadoutEntity  string
	VehicleXMLName string
}

// EntityReader reads a named entity class's decoded instance. Implemented
// by the session that owns the dataforge view + instance reader + indexer,
// kept as an interface here so the resolver has no dependency on the
// instance/dataforge packages directly.
type EntityReader interface {
	ReadEntityByClassName(className string) (value.Value, bool)
}

// Resolve implements the six-rule resolution order of spec §4.F.
func Resolve(idx *index.Index, reader EntityReader, class, shipName string) Entities {
	baseEntity, ok := reader.ReadEntityByClassName(class)
	if !ok {
		return Entities{BaseEntity: class, LoadoutEntity: class, VehicleXMLName: class}
	}

	// Rule 1: base loadout, if non-trivial, is canonical.
	if entityutil.LoadoutEntryCount(baseEntity) >= trivialLoadoutThreshold {
		return Entities{BaseEntity: class, LoadoutEntity: class, VehicleXMLName: class}
	}

	// Rule 2: "<class>_PU".
	puClass := class + "_PU"
	if e, ok := readWithFallback(idx, reader, puClass); ok && entityutil.LoadoutEntryCount(e) >= 1 {
		return Entities{BaseEntity: class, LoadoutEntity: puClass, VehicleXMLName: puStem(puClass)}
	}

	// Rule 3: "<class>_PU_AI_CIV".
	civClass := class + "_PU_AI_CIV"
	if e, ok := readWithFallback(idx, reader, civClass); ok && entityutil.LoadoutEntryCount(e) >= 1 {
		return Entities{BaseEntity: class, LoadoutEntity: civClass, VehicleXMLName: puStem(civClass)}
	}

	// Rule 4/5: score every variant-_PU group.
	groups := idx.FindVariantPUEntities(class)
	if len(groups) == 0 {
		return Entities{BaseEntity: class, LoadoutEntity: class, VehicleXMLName: class}
	}

	words := tokenize(shipName)
	type scored struct {
		token  string
		entity index.VehicleInfo
		score  int
	}
	var best scored
	var anyMatched bool
	var singleToken string
	count := 0
	for token, entity := range groups {
		count++
		singleToken = token
		s := scoreVariant(token, words)
		if s > 0 {
			anyMatched = true
		}
		if s > best.score || (count == 1) {
			best = scored{token: token, entity: entity, score: s}
		}
	}

	if anyMatched && best.score > 0 {
		return Entities{
			BaseEntity:     class,
			LoadoutEntity:  best.entity.ClassName,
			VehicleXMLName: puStem(best.entity.ClassName),
		}
	}

	// Rule 5: no word matched but exactly one distinct variant token.
	if !anyMatched && len(groups) == 1 {
		entity := groups[singleToken]
		return Entities{
			BaseEntity:     class,
			LoadoutEntity:  entity.ClassName,
			VehicleXMLName: puStem(entity.ClassName),
		}
	}

	// Rule 6: fall back to the base entity everywhere.
	return Entities{BaseEntity: class, LoadoutEntity: class, VehicleXMLName: class}
}

func readWithFallback(idx *index.Index, reader EntityReader, className string) (value.Value, bool) {
	if e, ok := reader.ReadEntityByClassName(className); ok {
		return e, true
	}
	if v, ok := idx.FindEntityRecord(className); ok {
		return reader.ReadEntityByClassName(v.ClassName)
	}
	return value.Null, false
}

// puStem is the portion of the entity name up to and including "_PU" —
// the stem used to look up the sidecar vehicle XML (spec §4.F). Any
// trailing "_AI_..." suffix lives after this point, so it is never part
// of the stem.
func puStem(entityName string) string {
	lower := strings.ToLower(entityName)
	i := strings.Index(lower, "_pu")
	if i < 0 {
		return entityName
	}
	return entityName[:i+3]
}

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// tokenize lowercases, strips punctuation, and keeps words of length >= 2.
func tokenize(s string) []string {
	lower := strings.ToLower(s)
	raw := tokenPattern.FindAllString(lower, -1)
	out := raw[:0]
	for _, w := range raw {
		if len(w) >= 2 {
			out = append(out, w)
		}
	}
	return out
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]`)

func stripAlnum(s string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(s), "")
}

// scoreVariant scores a variant token against the ship's tokenised words:
// for each word in the variant token, compare with each ship word —
// exact match +3, alphanumeric-stripped exact +2, substring either
// direction +1 (at most one match per variant word).
func scoreVariant(token string, shipWords []string) int {
	variantWords := tokenize(strings.ReplaceAll(token, "_", " "))
	total := 0
	for _, vw := range variantWords {
		best := 0
		for _, sw := range shipWords {
			s := 0
			switch {
			case vw == sw:
				s = 3
			case stripAlnum(vw) == stripAlnum(sw):
				s = 2
			case strings.Contains(vw, sw) || strings.Contains(sw, vw):
				s = 1
			}
			if s > best {
				best = s
			}
		}
		total += best
	}
	return total
}
