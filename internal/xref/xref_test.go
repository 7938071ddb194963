package xref

import (
	"testing"

	"github.com/google/uuid"
)

// Scenario #1: catalogue "Mercury" + ship class_name "CRUS_Mercury_StarRunner",
// name "Star Runner" -> link created in pass 2 via alias Mercury -> Star Runner.
func TestResolve_AliasPass(t *testing.T) {
	shipUUID := uuid.New()
	ships := []Ship{{UUID: shipUUID, ClassName: "CRUS_Mercury_StarRunner", DisplayName: "Star Runner"}}
	catalogue := []CatalogueEntry{{ID: "cat-1", DisplayName: "Mercury"}}
	aliases := AliasTable{"Mercury": "Star Runner"}

	links := Resolve(ships, catalogue, aliases)

	if len(links) != 1 || links[0].ShipUUID != shipUUID || links[0].CatalogueID != "cat-1" {
		t.Fatalf("links = %+v, want one link cat-1 -> %v", links, shipUUID)
	}
}

// Scenario #2: catalogue "F7C Hornet Wildfire Mk I" + ship name
// "Hornet F7C Wildfire" -> link via alias in pass 2.
func TestResolve_FuzzyViaAlias(t *testing.T) {
	shipUUID := uuid.New()
	ships := []Ship{{UUID: shipUUID, ClassName: "ANVL_Hornet_F7C_Wildfire", DisplayName: "Hornet F7C Wildfire"}}
	catalogue := []CatalogueEntry{{ID: "cat-2", DisplayName: "F7C Hornet Wildfire Mk I"}}
	aliases := AliasTable{"F7C Hornet Wildfire Mk I": "Hornet F7C Wildfire"}

	links := Resolve(ships, catalogue, aliases)

	if len(links) != 1 || links[0].ShipUUID != shipUUID {
		t.Fatalf("links = %+v, want one link to %v", links, shipUUID)
	}
}

func TestResolve_ExactPass(t *testing.T) {
	shipUUID := uuid.New()
	ships := []Ship{{UUID: shipUUID, ClassName: "AEGS_Gladius", DisplayName: "Gladius"}}
	catalogue := []CatalogueEntry{{ID: "cat-3", DisplayName: "Gladius"}}

	links := Resolve(ships, catalogue, nil)
	if len(links) != 1 || links[0].ShipUUID != shipUUID {
		t.Fatalf("exact pass failed: %+v", links)
	}
}

func TestResolve_TokenOverlapPass(t *testing.T) {
	shipUUID := uuid.New()
	ships := []Ship{{UUID: shipUUID, ClassName: "ANVL_Hornet_MkII", DisplayName: "Hornet Mk II Heartseeker"}}
	catalogue := []CatalogueEntry{{ID: "cat-4", DisplayName: "Hornet Mk II Heartseeker Edition"}}

	links := Resolve(ships, catalogue, nil)
	if len(links) != 1 || links[0].ShipUUID != shipUUID {
		t.Fatalf("token overlap pass failed: %+v", links)
	}
}

func TestNormalise(t *testing.T) {
	got := Normalise("Café - Ship's “Name”")
	want := "cafe ship's \"name\""
	if got != want {
		t.Errorf("Normalise = %q, want %q", got, want)
	}
}

func TestNoDoubleClaim(t *testing.T) {
	shipUUID := uuid.New()
	ships := []Ship{{UUID: shipUUID, ClassName: "AEGS_Gladius", DisplayName: "Gladius"}}
	catalogue := []CatalogueEntry{
		{ID: "cat-a", DisplayName: "Gladius"},
		{ID: "cat-b", DisplayName: "Gladius"},
	}

	links := Resolve(ships, catalogue, nil)
	if len(links) != 1 {
		t.Fatalf("expected exactly one link (no double claim), got %d: %+v", len(links), links)
	}
}
