package domain

import (
	"testing"

	"github.com/ernie/starforge-extract/internal/dataforge"
	"github.com/ernie/starforge-extract/internal/value"
)

func objectWithDims(x, y, z float64) value.Value {
	return value.Object("SCItemCargoGridParams", map[string]value.Value{
		"interiorDimension": value.Object("SVec3", map[string]value.Value{
			"x": value.Scalarv(x),
			"y": value.Scalarv(y),
			"z": value.Scalarv(z),
		}),
	})
}

// Scenario #6: "Paint_Cutlass_Black_Pirate" under a paints/ path splits at
// the "_Pirate" event keyword, leaving shortName "Cutlass_Black".
func TestExtractPaint_SplitsAtEventKeyword(t *testing.T) {
	rec := dataforge.RecordDef{
		ResolvedName:     "Paint_Cutlass_Black_Pirate",
		ResolvedFileName: "libs/foundry/records/entities/scitem/paints/cutlass/paint_cutlass_black_pirate.xml",
	}

	p, ok := ExtractPaint(rec, "Black Pirate")
	if !ok {
		t.Fatal("ExtractPaint rejected a paints/ path record")
	}
	if p.ShipShortName != "Cutlass_Black" {
		t.Errorf("ShipShortName = %q, want %q", p.ShipShortName, "Cutlass_Black")
	}
	if p.PaintClassName != "Paint_Cutlass_Black_Pirate" {
		t.Errorf("PaintClassName = %q, want unchanged class name", p.PaintClassName)
	}
}

func TestExtractPaint_NoKeywordKeepsWholeStem(t *testing.T) {
	rec := dataforge.RecordDef{
		ResolvedName:     "Paint_Avenger_Titan",
		ResolvedFileName: "libs/foundry/records/entities/scitem/paints/avenger/paint_avenger_titan.xml",
	}

	p, ok := ExtractPaint(rec, "Titan")
	if !ok {
		t.Fatal("ExtractPaint rejected a paints/ path record")
	}
	if p.ShipShortName != "Avenger_Titan" {
		t.Errorf("ShipShortName = %q, want %q", p.ShipShortName, "Avenger_Titan")
	}
}

func TestExtractPaint_RejectsNonPaintPath(t *testing.T) {
	rec := dataforge.RecordDef{
		ResolvedName:     "Paint_Cutlass_Black_Pirate",
		ResolvedFileName: "libs/foundry/records/entities/scitem/weapons/gun.xml",
	}
	if _, ok := ExtractPaint(rec, "Black Pirate"); ok {
		t.Fatal("ExtractPaint accepted a non-paints/ path")
	}
}

func TestExtractShop_DisplayNameAndType(t *testing.T) {
	rec := dataforge.RecordDef{
		ResolvedName:     "Shop_WeaponShop_Manufacturer",
		ResolvedFileName: "libs/foundry/records/entities/scitem/shop/shopkiosk/weaponshop.xml",
	}

	s, ok := ExtractShop(rec, "SCItemManufacturer")
	if !ok {
		t.Fatal("ExtractShop rejected a valid shop/shopkiosk/ record")
	}
	if s.Type != ShopWeapons {
		t.Errorf("Type = %v, want ShopWeapons", s.Type)
	}
	// Not in ShopLOC, so the name falls back to Title-Casing the class name.
	if s.Name != "Shop Weaponshop Manufacturer" {
		t.Errorf("Name = %q, want %q", s.Name, "Shop Weaponshop Manufacturer")
	}
}

func TestExtractShop_RejectsWrongStruct(t *testing.T) {
	rec := dataforge.RecordDef{
		ResolvedName:     "Shop_WeaponShop_Manufacturer",
		ResolvedFileName: "libs/foundry/records/entities/scitem/shop/shopkiosk/weaponshop.xml",
	}
	if _, ok := ExtractShop(rec, "SCItemPurchasableAmmo"); ok {
		t.Fatal("ExtractShop accepted a non-manufacturer struct")
	}
}

func TestDedupeShops(t *testing.T) {
	shops := []Shop{
		{Name: "Everus Harbor Arms", Type: ShopWeapons},
		{Name: "Everus Harbor Arms", Type: ShopWeapons},
		{Name: "Everus Harbor Arms", Type: ShopArmor},
	}
	deduped := DedupeShops(shops)
	if len(deduped) != 2 {
		t.Fatalf("DedupeShops returned %d entries, want 2: %+v", len(deduped), deduped)
	}
}

func TestClassifyItem(t *testing.T) {
	cases := []struct {
		path string
		want ItemCategory
	}{
		{"libs/foundry/records/entities/scitem/weapons/ballistic/gun.xml", ItemWeapon},
		{"libs/foundry/records/entities/scitem/armor/undersuit/suit.xml", ItemArmor},
		{"libs/foundry/records/entities/scitem/clothing/shirt.xml", ItemClothing},
		{"libs/foundry/records/entities/scitem/commodities/agricium.xml", ItemCommodity},
		{"libs/foundry/records/entities/scitem/cargo/container.xml", ItemCommodity},
	}
	for _, c := range cases {
		got, ok := ClassifyItem(c.path)
		if !ok {
			t.Errorf("ClassifyItem(%q) rejected a matching path", c.path)
		}
		if got != c.want {
			t.Errorf("ClassifyItem(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}

func TestClassifyItem_RejectsNonItemPath(t *testing.T) {
	if _, ok := ClassifyItem("libs/foundry/records/entities/scitem/misc/widget.xml"); ok {
		t.Fatal("ClassifyItem accepted a path matching none of the item categories")
	}
}

func TestComputeSCUFromVolume(t *testing.T) {
	// 2.5m x 2.5m x 2.5m interior -> 15.625 m^3 / 1.953125 = 8 SCU.
	comp := objectWithDims(2.5, 2.5, 2.5)
	got := computeSCUFromVolume(comp)
	want := 8.0
	if got < want-0.001 || got > want+0.001 {
		t.Errorf("computeSCUFromVolume = %v, want %v", got, want)
	}
}
