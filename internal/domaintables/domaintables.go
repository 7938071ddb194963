// Package domaintables holds the process-wide frozen lookup tables shared
// by the ship, component, and domain extractors (spec §9 "Global tables"):
// manufacturer display names, vehicle career/role LOC keys, and shop LOC
// keys. Grounded on assets/manifest.go's read-only, load-once Manifest
// maps.
package domaintables

import "strings"

// ManufacturerNames maps a class-name prefix code to its display name.
var ManufacturerNames = map[string]string{
	"AEGS": "Aegis Dynamics",
	"ANVL": "Anvil Aerospace",
	"ARGO": "Argo Astronautics",
	"BANU": "Banu",
	"CNOU": "Consolidated Outland",
	"CRUS": "Crusader Industries",
	"DRAK": "Drake Interplanetary",
	"ESPR": "Esperia",
	"GAMA": "Gatac Manufacture",
	"GLSN": "Gallenson Tactical Systems",
	"GREY": "Greycat Industrial",
	"GRIN": "Greycat Industrial",
	"KRIG": "Kruger Intergalactic",
	"MISC": "Musashi Industrial & Starflight Concern",
	"MRAI": "Mirai",
	"ORIG": "Origin Jumpworks",
	"RSI":  "Roberts Space Industries",
	"TMBL": "Tumbril Land Systems",
	"VNCL": "Vanduul",
	"XIAN": "Aopoa",
	"XNAA": "Xi'an",
}

// vehicleCareerLOC maps a vehicleCareer LOC key to its display string.
var vehicleCareerLOC = map[string]string{
	"vehicle_career_combat":     "Combat",
	"vehicle_career_transport":  "Transport",
	"vehicle_career_exploration": "Exploration",
	"vehicle_career_industrial": "Industrial",
	"vehicle_career_support":    "Support",
	"vehicle_career_multi":      "Multi-Role",
}

// vehicleRoleLOC maps a vehicleRole LOC key to its display string.
var vehicleRoleLOC = map[string]string{
	"vehicle_role_fighter":  "Fighter",
	"vehicle_role_bomber":   "Bomber",
	"vehicle_role_freight":  "Freight",
	"vehicle_role_mining":   "Mining",
	"vehicle_role_racing":   "Racing",
	"vehicle_role_medical":  "Medical",
	"vehicle_role_salvage":  "Salvage",
	"vehicle_role_scout":    "Scout",
	"vehicle_role_gunship":  "Gunship",
	"vehicle_role_interdiction": "Interdiction",
}

// ShopLOC maps a shop-kiosk LOC key to its display name.
var ShopLOC = map[string]string{
	"shop_name_new_deal":       "New Deal",
	"shop_name_cubby_blast":    "Cubby Blast",
	"shop_name_dumpers_depot":  "Dumper's Depot",
	"shop_name_live_fire":      "Live Fire Weapons",
	"shop_name_outfitters":     "Outfitters",
}

var knownLOCPrefixes = []string{"vehicle_career_", "vehicle_role_", "shop_name_"}

// ResolveLOC resolves a LOC key through the given table, or falls back to
// stripping a known prefix and Title-Casing the remainder.
func ResolveLOC(table map[string]string, key string) string {
	if v, ok := table[strings.ToLower(key)]; ok {
		return v
	}
	return fallbackTitleCase(key)
}

func fallbackTitleCase(key string) string {
	name := key
	for _, p := range knownLOCPrefixes {
		name = strings.TrimPrefix(strings.ToLower(name), p)
	}
	parts := strings.Split(strings.ReplaceAll(name, "_", " "), " ")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

// VehicleCareer resolves a vehicleCareer LOC key.
func VehicleCareer(key string) string { return ResolveLOC(vehicleCareerLOC, key) }

// VehicleRole resolves a vehicleRole LOC key.
func VehicleRole(key string) string { return ResolveLOC(vehicleRoleLOC, key) }

// ManufacturerPrefix extracts the manufacturer code from a class name.
func ManufacturerPrefix(className string) string {
	i := strings.IndexByte(className, '_')
	if i < 0 {
		return strings.ToUpper(className)
	}
	return strings.ToUpper(className[:i])
}

// ManufacturerName resolves the display name for a class name's prefix, or
// "" if unknown.
func ManufacturerName(className string) string {
	return ManufacturerNames[ManufacturerPrefix(className)]
}
