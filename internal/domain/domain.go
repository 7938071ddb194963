// Package domain implements the four path-filtered passes of spec §4.J:
// paints, shops, items/commodities. Grounded on assets/baseline.go's
// isBaselineFile prefix-include/exclude pattern, reused here as path-regex
// classification tables.
package domain

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/ernie/starforge-extract/internal/component"
	"github.com/ernie/starforge-extract/internal/dataforge"
	"github.com/ernie/starforge-extract/internal/domaintables"
	"github.com/ernie/starforge-extract/internal/entityutil"
	"github.com/ernie/starforge-extract/internal/instance"
	"github.com/ernie/starforge-extract/internal/value"
)

// Paint is one extracted ship paint.
type Paint struct {
	ShipShortName string
	PaintClassName string
	PaintName     string
	PaintUUID     uuid.UUID
}

// paintSplitPattern splits a paint class name into its ship short
// name and the trailing event/colour keyword (spec scenario #6:
// "Paint_Cutlass_Black_Pirate" -> shortName "Cutlass_Black").
var paintSplitPattern = regexp.MustCompile(`(?i)_(Pirate|Military|Digital|Stealth|Anniversary|Invictus|IAE|CitizenCon|Ghost|Golden|Gold|Nomad|Olympus|Vintage|Camo|Arctic|Jungle|Desert)(?:$|_)`)

var paintPathPattern = regexp.MustCompile(`(?i)/paints?/`)

// ExtractPaint returns a Paint for a record under a paint path, or false if
// it doesn't match.
func ExtractPaint(rec dataforge.RecordDef, paintName string) (Paint, bool) {
	if !paintPathPattern.MatchString(rec.ResolvedFileName) {
		return Paint{}, false
	}
	className := rec.ResolvedName
	stem := strings.TrimPrefix(className, "Paint_")

	loc := paintSplitPattern.FindStringIndex(stem)
	shortName := stem
	if loc != nil {
		shortName = stem[:loc[0]]
	}

	return Paint{
		ShipShortName:  shortName,
		PaintClassName: className,
		PaintName:      paintName,
		PaintUUID:      rec.GUID,
	}, true
}

// ShopType is the inferred kind of a shop kiosk.
type ShopType string

const (
	ShopWeapons    ShopType = "Weapons"
	ShopArmor      ShopType = "Armor"
	ShopGeneral    ShopType = "General"
	ShopShipUpgrade ShopType = "ShipUpgrade"
)

var shopTypeKeywords = []struct {
	keyword string
	kind    ShopType
}{
	{"weapon", ShopWeapons},
	{"gun", ShopWeapons},
	{"armor", ShopArmor},
	{"armour", ShopArmor},
	{"ship", ShopShipUpgrade},
	{"upgrade", ShopShipUpgrade},
}

// Shop is one deduplicated shop kiosk.
type Shop struct {
	Name string
	Type ShopType
}

var shopPathPattern = regexp.MustCompile(`(?i)shop/shopkiosk/`)

const shopManufacturerRecordStruct = "SCItemManufacturer"

// ExtractShop returns a Shop for an SCItemManufacturer record under a
// shop kiosk path, or false if it doesn't match.
func ExtractShop(rec dataforge.RecordDef, structName string) (Shop, bool) {
	if structName != shopManufacturerRecordStruct || !shopPathPattern.MatchString(rec.ResolvedFileName) {
		return Shop{}, false
	}
	name := domaintables.ResolveLOC(domaintables.ShopLOC, rec.ResolvedName)
	kind := inferShopType(rec.ResolvedName)
	return Shop{Name: name, Type: kind}, true
}

func inferShopType(className string) ShopType {
	lower := strings.ToLower(className)
	for _, k := range shopTypeKeywords {
		if strings.Contains(lower, k.keyword) {
			return k.kind
		}
	}
	return ShopGeneral
}

// DedupeShops removes duplicate (name, type) shop entries, preserving
// first-seen order.
func DedupeShops(shops []Shop) []Shop {
	seen := make(map[Shop]bool, len(shops))
	out := make([]Shop, 0, len(shops))
	for _, s := range shops {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// ItemCategory is the path-regex classification for items/commodities.
type ItemCategory string

const (
	ItemWeapon    ItemCategory = "Weapon"
	ItemArmor     ItemCategory = "Armor"
	ItemClothing  ItemCategory = "Clothing"
	ItemCommodity ItemCategory = "Commodity"
)

type itemRule struct {
	pattern  *regexp.Regexp
	category ItemCategory
}

var itemClassificationTable = []itemRule{
	{regexp.MustCompile(`(?i)/weapons?/`), ItemWeapon},
	{regexp.MustCompile(`(?i)/armor/|/armour/`), ItemArmor},
	{regexp.MustCompile(`(?i)/clothing/`), ItemClothing},
	{regexp.MustCompile(`(?i)/commodities/|/cargo/`), ItemCommodity},
}

// ClassifyItem returns the item category for a path, and false when the path
// matches none of the item/armor/clothing/commodity regexes: this is a
// path-filtered pass (spec §4.J), not a catch-all.
func ClassifyItem(path string) (ItemCategory, bool) {
	for _, r := range itemClassificationTable {
		if r.pattern.MatchString(path) {
			return r.category, true
		}
	}
	return "", false
}

// TemperatureRange is a clothing comfort range.
type TemperatureRange struct{ Min, Max float64 }

// Item is one extracted item/commodity row.
type Item struct {
	GUID         uuid.UUID
	ClassName    string
	Category     ItemCategory
	Manufacturer string

	Type, SubType, Size, Grade, Name, ShortName string

	Mass float64
	HP   float64

	Weapon *component.WeaponStats

	ArmorResistances map[string]float64
	ClothingTemp     *TemperatureRange

	SCU float64
}

// cubicMetersPerSCU is the SCU conversion factor: 1 SCU is a 1.25m cube,
// 1.953125 m^3 of interior volume (spec §4.J).
const cubicMetersPerSCU = 1.25 * 1.25 * 1.25

// ExtractItem reads rec's instance and builds an Item, or false if rec's
// path isn't a genuine item/armor/clothing/commodity path.
func ExtractItem(reader *instance.Reader, recordReader component.RecordReader, rec dataforge.RecordDef) (*Item, bool) {
	category, ok := ClassifyItem(rec.ResolvedFileName)
	if !ok {
		return nil, false
	}

	entity, err := reader.Read(rec.StructIndex, rec.InstanceIndex)
	if err != nil || entity.IsNull() {
		return nil, false
	}

	item := &Item{
		GUID:             rec.GUID,
		ClassName:        rec.ResolvedName,
		Category:         category,
		Manufacturer:     domaintables.ManufacturerName(rec.ResolvedName),
		ArmorResistances: map[string]float64{},
	}

	for _, comp := range entityutil.Components(entity) {
		switch comp.TypeName {
		case "SAttachableComponentParams":
			item.Type = comp.Field("AttachDef").Field("Type").AsString()
			item.SubType = comp.Field("SubType").AsString()
			item.Name = comp.Field("AttachDef").Field("Localization").Field("Name").AsString()
			item.ShortName = comp.Field("AttachDef").Field("Localization").Field("ShortName").AsString()

			manufRef := comp.Field("Manufacturer")
			if manufRef.Kind == value.KindRef && recordReader != nil {
				if manufEntity, ok := recordReader.ReadRecord(manufRef.RefGuid); ok {
					if code := manufEntity.Field("Code").AsString(); code != "" {
						item.Manufacturer = code
					}
				}
			}
		case "SEntityPhysicsControllerParams":
			item.Mass = firstFloat(comp.Field("mass"))
		case "SHealthComponentParams":
			item.HP = firstFloat(comp.Field("Health"), comp.Field("hp"))
		case "SCItemWeaponComponentParams":
			fireRate := firstFloat(comp.Field("fireRate"))
			pellets := int(firstFloat(comp.Field("pelletCount")))
			heat := firstFloat(comp.Field("heatPerShot"))
			if pellets < 1 {
				pellets = 1
			}
			stats := component.DeriveWeaponStats(0, fireRate, pellets, heat)
			item.Weapon = &stats
		case "SCItemArmorParams":
			for _, m := range comp.Field("DamageResistances").Array {
				channel := m.Field("Channel").AsString()
				if channel != "" {
					item.ArmorResistances[channel] = firstFloat(m.Field("Multiplier"))
				}
			}
		case "SCItemClothingParams":
			item.ClothingTemp = &TemperatureRange{
				Min: firstFloat(comp.Field("temperatureMin")),
				Max: firstFloat(comp.Field("temperatureMax")),
			}
		case "SCItemCargoGridParams", "SCItemCommodityParams":
			if scu, ok := comp.Field("SCU").AsFloat64(); ok {
				item.SCU = scu
			} else {
				item.SCU = computeSCUFromVolume(comp)
			}
		}
	}

	return item, true
}

func computeSCUFromVolume(comp value.Value) float64 {
	x := firstFloat(comp.Field("interiorDimension").Field("x"))
	y := firstFloat(comp.Field("interiorDimension").Field("y"))
	z := firstFloat(comp.Field("interiorDimension").Field("z"))
	if x == 0 || y == 0 || z == 0 {
		return 0
	}
	return (x * y * z) / cubicMetersPerSCU
}

func firstFloat(vals ...value.Value) float64 {
	for _, v := range vals {
		if f, ok := v.AsFloat64(); ok {
			return f
		}
	}
	return 0
}
