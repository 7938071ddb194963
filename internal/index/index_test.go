package index

import (
	"testing"

	"github.com/google/uuid"

	"github.com/ernie/starforge-extract/internal/dataforge"
)

func newView(entries map[string]string) *dataforge.View {
	v := &dataforge.View{
		StructDefs: []dataforge.StructDef{{ResolvedName: "EntityClassDefinition"}},
	}
	for name, path := range entries {
		v.Records = append(v.Records, dataforge.RecordDef{
			StructIndex:      0,
			GUID:             uuid.New(),
			ResolvedName:     name,
			ResolvedFileName: path,
		})
	}
	return v
}

func TestBuild_BlocklistExcludesFromCuratedIndex(t *testing.T) {
	v := newView(map[string]string{
		"RSI_Aurora":              "libs/foundry/records/entities/spaceships/RSI_Aurora.xml",
		"RSI_Aurora_MR_PU_AI_CIV": "libs/foundry/records/entities/spaceships/RSI_Aurora_MR_PU_AI_CIV.xml",
	})
	idx := Build(v)

	if _, ok := idx.VehicleByClassName("RSI_Aurora"); !ok {
		t.Error("RSI_Aurora should be in the curated vehicle index")
	}
	if _, ok := idx.VehicleByClassName("RSI_Aurora_MR_PU_AI_CIV"); ok {
		t.Error("RSI_Aurora_MR_PU_AI_CIV contains the _ai_ blocklist substring and must not appear in the curated index")
	}
}

func TestFindVariantPUEntities_SeesBlocklistedSiblings(t *testing.T) {
	v := newView(map[string]string{
		"RSI_Aurora":              "libs/foundry/records/entities/spaceships/RSI_Aurora.xml",
		"RSI_Aurora_MR_PU_AI_CIV": "libs/foundry/records/entities/spaceships/RSI_Aurora_MR_PU_AI_CIV.xml",
	})
	idx := Build(v)

	groups := idx.FindVariantPUEntities("RSI_Aurora")
	entity, ok := groups["mr"]
	if !ok {
		t.Fatalf("expected a 'mr' variant group, got %v", groups)
	}
	if entity.ClassName != "RSI_Aurora_MR_PU_AI_CIV" {
		t.Errorf("ClassName = %q, want RSI_Aurora_MR_PU_AI_CIV", entity.ClassName)
	}
}

func TestMaybeAddVehicle_RejectsUnknownManufacturer(t *testing.T) {
	v := newView(map[string]string{
		"ZZZZ_Nonsense": "libs/foundry/records/entities/spaceships/ZZZZ_Nonsense.xml",
	})
	idx := Build(v)
	if _, ok := idx.VehicleByClassName("ZZZZ_Nonsense"); ok {
		t.Error("unknown manufacturer prefix should be rejected")
	}
}

func TestFindEntityRecord_SubstringFallback(t *testing.T) {
	v := newView(map[string]string{
		"AEGS_Gladius_Valiant": "libs/foundry/records/entities/spaceships/AEGS_Gladius_Valiant.xml",
	})
	idx := Build(v)

	got, ok := idx.FindEntityRecord("gladius_valiant")
	if !ok || got.ClassName != "AEGS_Gladius_Valiant" {
		t.Errorf("FindEntityRecord substring fallback failed: got %+v, ok=%v", got, ok)
	}
}
