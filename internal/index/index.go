// Package index builds the fast lookups used by every downstream extractor
// (spec §4.E): class-name -> vehicle, GUID -> name, struct-name -> index,
// and record-by-GUID. Grounded on assets/baseline.go's buildGameBaseline
// pattern of building read-only maps once from a scan over records.
package index

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/ernie/starforge-extract/internal/dataforge"
)

// VehicleInfo is one entry of the vehicle index.
type VehicleInfo struct {
	GUID      uuid.UUID
	Name      string
	ClassName string
}

var knownManufacturers = map[string]bool{
	"AEGS": true, "ANVL": true, "ARGO": true, "BANU": true, "CNOU": true,
	"CRUS": true, "DRAK": true, "ESPR": true, "GAMA": true, "GLSN": true,
	"GREY": true, "GRIN": true, "KRIG": true, "MISC": true, "MRAI": true,
	"ORIG": true, "RSI": true, "TMBL": true, "VNCL": true, "XIAN": true,
	"XNAA": true,
}

var nameBlocklist = []string{
	"_ai_", "_test", "_template", "_unmanned", "_indestructible", "_prison",
}

var vehiclePathAllowlist = []string{"/spaceships/", "/groundvehicles/"}

// groundVehicleOutlierAllowlist narrowly admits the couple of ground-vehicle
// entity classes that live outside the two canonical folders.
var groundVehicleOutlierAllowlist = []string{
	"/groundvehicles_outliers/",
}

var nonVehicleEntityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ammo_?box`),
	regexp.MustCompile(`(?i)debris`),
	regexp.MustCompile(`(?i)probe`),
	regexp.MustCompile(`(?i)orbital_?sentry`),
	regexp.MustCompile(`(?i)storage_?prop`),
}

// Index holds every lookup built over a dataforge.View.
type Index struct {
	view *dataforge.View

	vehicleByClassName map[string]VehicleInfo
	// vehicleEntitiesByPath holds every EntityClassDefinition record under a
	// vehicle path, including "_ai_"/"_test"/etc variants the curated
	// vehicleByClassName rejects — the variant resolver needs to see
	// "_PU_AI_CIV" siblings that the main vehicle index intentionally hides.
	vehicleEntitiesByPath map[string]VehicleInfo
	guidIndex             map[uuid.UUID]string
	structIndexByName     map[string]int32
	recordByGUID          map[uuid.UUID]*dataforge.RecordDef
}

// entityClassDefinitionStruct is the resolved struct name the vehicle index
// filters on (spec §4.E).
const entityClassDefinitionStruct = "EntityClassDefinition"

// Build scans view.Records once and populates every index.
func Build(view *dataforge.View) *Index {
	idx := &Index{
		view:                  view,
		vehicleByClassName:    make(map[string]VehicleInfo),
		vehicleEntitiesByPath: make(map[string]VehicleInfo),
		guidIndex:             make(map[uuid.UUID]string),
		structIndexByName:     make(map[string]int32),
		recordByGUID:          make(map[uuid.UUID]*dataforge.RecordDef),
	}

	for i, sd := range view.StructDefs {
		idx.structIndexByName[sd.ResolvedName] = int32(i)
	}

	entityClassStruct, hasEntityClassStruct := idx.structIndexByName[entityClassDefinitionStruct]

	for i := range view.Records {
		rec := &view.Records[i]

		if rec.GUID != uuid.Nil {
			name := rec.ResolvedName
			if hasEntityClassStruct && rec.StructIndex == entityClassStruct {
				name = rec.ResolvedName
			}
			idx.guidIndex[rec.GUID] = name
			idx.recordByGUID[rec.GUID] = rec
		}

		if hasEntityClassStruct && rec.StructIndex == entityClassStruct && isVehiclePath(rec.ResolvedFileName) {
			idx.vehicleEntitiesByPath[strings.ToLower(rec.ResolvedName)] = VehicleInfo{
				GUID:      rec.GUID,
				Name:      rec.ResolvedName,
				ClassName: rec.ResolvedName,
			}
			idx.maybeAddVehicle(*rec)
		}
	}

	return idx
}

func isVehiclePath(path string) bool {
	lower := strings.ToLower(path)
	for _, prefix := range vehiclePathAllowlist {
		if strings.Contains(lower, prefix) {
			return true
		}
	}
	for _, prefix := range groundVehicleOutlierAllowlist {
		if strings.Contains(lower, prefix) {
			return true
		}
	}
	return false
}

func (idx *Index) maybeAddVehicle(rec dataforge.RecordDef) {
	className := rec.ResolvedName
	lowerName := strings.ToLower(className)

	for _, blocked := range nameBlocklist {
		if strings.Contains(lowerName, blocked) {
			return
		}
	}
	for _, pat := range nonVehicleEntityPatterns {
		if pat.MatchString(className) {
			return
		}
	}

	prefix := manufacturerPrefix(className)
	if !knownManufacturers[prefix] {
		return
	}

	idx.vehicleByClassName[lowerName] = VehicleInfo{
		GUID:      rec.GUID,
		Name:      rec.ResolvedName,
		ClassName: className,
	}
}

func manufacturerPrefix(className string) string {
	i := strings.IndexByte(className, '_')
	if i < 0 {
		return strings.ToUpper(className)
	}
	return strings.ToUpper(className[:i])
}

// VehicleByClassName returns the vehicle with the given class name
// (case-insensitive).
func (idx *Index) VehicleByClassName(className string) (VehicleInfo, bool) {
	v, ok := idx.vehicleByClassName[strings.ToLower(className)]
	return v, ok
}

// Vehicles returns every indexed vehicle.
func (idx *Index) Vehicles() []VehicleInfo {
	out := make([]VehicleInfo, 0, len(idx.vehicleByClassName))
	for _, v := range idx.vehicleByClassName {
		out = append(out, v)
	}
	return out
}

// GUIDName resolves a human-readable identifier for a record GUID.
func (idx *Index) GUIDName(id uuid.UUID) (string, bool) {
	n, ok := idx.guidIndex[id]
	return n, ok
}

// RecordByGUID returns the record identified by id.
func (idx *Index) RecordByGUID(id uuid.UUID) (*dataforge.RecordDef, bool) {
	r, ok := idx.recordByGUID[id]
	return r, ok
}

// StructIndexByName returns the struct index for a resolved struct name.
func (idx *Index) StructIndexByName(name string) (int32, bool) {
	i, ok := idx.structIndexByName[name]
	return i, ok
}

// FindEntityRecord tries an exact class-name match first, then a
// case-insensitive substring fallback, per spec §4.E.
func (idx *Index) FindEntityRecord(name string) (VehicleInfo, bool) {
	if v, ok := idx.VehicleByClassName(name); ok {
		return v, true
	}
	lower := strings.ToLower(name)
	for key, v := range idx.vehicleByClassName {
		if strings.Contains(key, lower) {
			return v, true
		}
	}
	return VehicleInfo{}, false
}

// FindVariantPUEntities returns one canonical entity per variant base for
// the given class, using the "_PU" segment rule of spec §4.F. The returned
// map is keyed by variant token (the segment strictly between "<class>_"
// and "_PU").
func (idx *Index) FindVariantPUEntities(class string) map[string]VehicleInfo {
	lowerClass := strings.ToLower(class)
	prefix := lowerClass + "_"
	result := make(map[string]VehicleInfo)

	type candidate struct {
		token  string
		suffix string
		entity VehicleInfo
	}
	grouped := make(map[string][]candidate)

	for key, v := range idx.vehicleEntitiesByPath {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := key[len(prefix):]
		puIdx := strings.Index(rest, "_pu")
		if puIdx < 0 {
			continue
		}
		token := rest[:puIdx]
		suffix := rest[puIdx+3:] // after "_pu"
		if token == "" {
			continue
		}
		grouped[token] = append(grouped[token], candidate{token: token, suffix: suffix, entity: v})
	}

	for token, cands := range grouped {
		best := cands[0]
		bestRank := rankPUCandidate(best.suffix)
		for _, c := range cands[1:] {
			if r := rankPUCandidate(c.suffix); r < bestRank {
				best, bestRank = c, r
			}
		}
		result[token] = best.entity
	}

	return result
}

// rankPUCandidate implements the preference order <base>_PU > *_AI_CIV >
// *_AI_UEE > first, lower rank wins.
func rankPUCandidate(suffix string) int {
	switch {
	case suffix == "":
		return 0
	case strings.HasPrefix(suffix, "_ai_civ"):
		return 1
	case strings.HasPrefix(suffix, "_ai_uee"):
		return 2
	default:
		return 3
	}
}
