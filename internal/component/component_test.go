package component

import (
	"math"
	"testing"
)

func approxEqual(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

// Scenario #4: damage 50, fireRate 600, pelletCount 1, heatPerShot 0.05.
func TestDeriveWeaponStats_Scenario4(t *testing.T) {
	w := DeriveWeaponStats(50, 600, 1, 0.05)

	cases := []struct {
		name string
		got  float64
		want float64
	}{
		{"AlphaDamage", w.AlphaDamage, 50},
		{"DPS", w.DPS, 500},
		{"TimeToOverheat", w.TimeToOverheat, 2.0},
		{"BurstDamage", w.BurstDamage, 1000},
		{"BurstDPS", w.BurstDPS, 500},
		{"HeatPerSecond", w.HeatPerSecond, 0.5},
		{"EstimatedCooldown", w.EstimatedCooldown, 5},
		{"SustainedDPS", w.SustainedDPS, 1000.0 / 7.0},
	}
	for _, c := range cases {
		if !approxEqual(c.got, c.want) {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if w.ShotsToOverheat != 20 {
		t.Errorf("ShotsToOverheat = %d, want 20", w.ShotsToOverheat)
	}
}

func TestDeriveWeaponStats_NoHeat(t *testing.T) {
	w := DeriveWeaponStats(10, 300, 2, 0)
	if w.AlphaDamage != 20 {
		t.Errorf("AlphaDamage = %v, want 20", w.AlphaDamage)
	}
	if w.DPS != 100 {
		t.Errorf("DPS = %v, want 100", w.DPS)
	}
	if w.BurstDPS != w.DPS || w.SustainedDPS != w.DPS {
		t.Errorf("without heat, burst/sustained DPS should equal DPS: %+v", w)
	}
}

func TestClassify(t *testing.T) {
	cat, ok := Classify("APAR_Ballistic_Gun_S1", "libs/foundry/records/entities/scitem/weapons/guns/APAR_Ballistic_Gun_S1.xml")
	if !ok || cat != CategoryWeaponGun {
		t.Errorf("got %v, %v, want WeaponGun, true", cat, ok)
	}
}

func TestClassify_PersonalFPSWeaponExcluded(t *testing.T) {
	_, ok := Classify("APAR_Rifle_01", "libs/foundry/records/entities/scitem/weapons/guns/APAR_Rifle_01.xml")
	if ok {
		t.Error("personal rifle should be excluded from the ship-gun category")
	}
}

func TestClassify_SkipsTestRecords(t *testing.T) {
	_, ok := Classify("APAR_Gun_test", "libs/foundry/records/entities/scitem/weapons/guns/APAR_Gun_test.xml")
	if ok {
		t.Error("_test records should be skipped")
	}
}

func TestResolveComponentName(t *testing.T) {
	got := resolveComponentName("APAR_PowerPlantSmall_SCItem")
	if got != "Power Plant Small" {
		t.Errorf("resolveComponentName = %q, want %q", got, "Power Plant Small")
	}
}
