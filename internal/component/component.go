// Package component implements the component extractor (spec §4.G): classify
// every SCItem-like entity record by a first-match path regex, walk its
// Components[*] array once, and derive weapon DPS/heat statistics from the
// extracted primitives. Grounded on assets/baseline.go's prefix-allowlist
// scan and assets/shader.go's directive dispatch-by-key switch, generalised
// to regex classification and __type dispatch.
package component

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/ernie/starforge-extract/internal/dataforge"
	"github.com/ernie/starforge-extract/internal/entityutil"
	"github.com/ernie/starforge-extract/internal/instance"
	"github.com/ernie/starforge-extract/internal/value"
)

// Category is the first-match classification bucket a record falls into.
type Category string

const (
	CategoryWeaponGun      Category = "WeaponGun"
	CategoryShield         Category = "Shield"
	CategoryPowerPlant     Category = "PowerPlant"
	CategoryCooler         Category = "Cooler"
	CategoryQuantumDrive   Category = "QuantumDrive"
	CategoryMissile        Category = "Missile"
	CategoryThruster       Category = "Thruster"
	CategoryRadar          Category = "Radar"
	CategoryCountermeasure Category = "Countermeasure"
	CategoryFuelIntake     Category = "FuelIntake"
	CategoryFuelTank       Category = "FuelTank"
	CategoryLifeSupport    Category = "LifeSupport"
	CategoryEMP            Category = "EMP"
	CategoryQIG            Category = "QuantumInterdictionGenerator"
	CategoryGimbal         Category = "Gimbal"
	CategoryTurretManned   Category = "TurretManned"
	CategoryTurretUnmanned Category = "TurretUnmanned"
	CategoryMissileRack    Category = "MissileRack"
	CategoryMiningLaser    Category = "MiningLaser"
	CategorySalvageHead    Category = "SalvageHead"
	CategoryTractorBeam    Category = "TractorBeam"
	CategorySelfDestruct   Category = "SelfDestruct"
)

type classRule struct {
	pattern  *regexp.Regexp
	category Category
}

// classificationTable is evaluated top to bottom; the first matching path
// regex wins (spec §4.G and the open question that preserves this
// first-match behaviour over the Weapons/weapon_rack overlap).
var classificationTable = []classRule{
	{regexp.MustCompile(`(?i)/weapons/missileracks?/`), CategoryMissileRack},
	{regexp.MustCompile(`(?i)/systems/.*missilerack`), CategoryMissileRack},
	{regexp.MustCompile(`(?i)/turrets?/.*unmanned`), CategoryTurretUnmanned},
	{regexp.MustCompile(`(?i)/turrets?/`), CategoryTurretManned},
	{regexp.MustCompile(`(?i)/gimbals?/`), CategoryGimbal},
	{regexp.MustCompile(`(?i)/weapons?/.*guns?/`), CategoryWeaponGun},
	{regexp.MustCompile(`(?i)/weapons/ballistic/|/weapons/energy/|/weapons/laser/`), CategoryWeaponGun},
	{regexp.MustCompile(`(?i)/mininglasers?/`), CategoryMiningLaser},
	{regexp.MustCompile(`(?i)/salvage/.*head`), CategorySalvageHead},
	{regexp.MustCompile(`(?i)/tractorbeams?/`), CategoryTractorBeam},
	{regexp.MustCompile(`(?i)/shields?/`), CategoryShield},
	{regexp.MustCompile(`(?i)/powerplants?/`), CategoryPowerPlant},
	{regexp.MustCompile(`(?i)/coolers?/`), CategoryCooler},
	{regexp.MustCompile(`(?i)/quantumdrives?/`), CategoryQuantumDrive},
	{regexp.MustCompile(`(?i)/quantuminterdictiongenerators?/|/qig/`), CategoryQIG},
	{regexp.MustCompile(`(?i)/missiles?/`), CategoryMissile},
	{regexp.MustCompile(`(?i)/thrusters?/`), CategoryThruster},
	{regexp.MustCompile(`(?i)/radars?/`), CategoryRadar},
	{regexp.MustCompile(`(?i)/countermeasures?/`), CategoryCountermeasure},
	{regexp.MustCompile(`(?i)/fuelintakes?/`), CategoryFuelIntake},
	{regexp.MustCompile(`(?i)/fueltanks?/`), CategoryFuelTank},
	{regexp.MustCompile(`(?i)/lifesupport/`), CategoryLifeSupport},
	{regexp.MustCompile(`(?i)/emp/`), CategoryEMP},
	{regexp.MustCompile(`(?i)/selfdestruct/`), CategorySelfDestruct},
}

// skipSubstrings rejects test/debug/display records outright (spec §4.G).
var skipSubstrings = []string{"_test", "_debug", "_display", "_template", "_placeholder"}

// fpsWeaponTokens exclude personal FPS weapons from the ship-gun category.
var fpsWeaponTokens = []string{
	"rifle", "pistol", "smg", "shotgun", "sniper", "multitool", "lmg", "grenadelauncher",
}

// Classify returns the category a record belongs to and whether it should be
// skipped entirely.
func Classify(className, path string) (Category, bool) {
	lowerClass := strings.ToLower(className)
	for _, s := range skipSubstrings {
		if strings.Contains(lowerClass, s) {
			return "", false
		}
	}
	for _, rule := range classificationTable {
		if rule.pattern.MatchString(path) {
			if rule.category == CategoryWeaponGun && isPersonalFPSWeapon(lowerClass) {
				return "", false
			}
			return rule.category, true
		}
	}
	return "", false
}

func isPersonalFPSWeapon(lowerClass string) bool {
	for _, t := range fpsWeaponTokens {
		if strings.Contains(lowerClass, t) {
			return true
		}
	}
	return false
}

// WeaponStats holds the extracted weapon primitives and derived DPS/heat
// statistics of spec §4.G.
type WeaponStats struct {
	Damage      float64
	FireRate    float64
	PelletCount int
	HeatPerShot float64

	AlphaDamage       float64
	DPS               float64
	ShotsToOverheat   int
	TimeToOverheat    float64
	BurstDamage       float64
	BurstDPS          float64
	HeatPerSecond     float64
	EstimatedCooldown float64
	SustainedDPS      float64
}

// DeriveWeaponStats recomputes every derived field from the extracted
// primitives, exactly per spec §4.G.
func DeriveWeaponStats(damage, fireRate float64, pelletCount int, heatPerShot float64) WeaponStats {
	pellets := pelletCount
	if pellets < 1 {
		pellets = 1
	}
	w := WeaponStats{
		Damage:      damage,
		FireRate:    fireRate,
		PelletCount: pelletCount,
		HeatPerShot: heatPerShot,
	}
	w.AlphaDamage = damage * float64(pellets)
	w.DPS = w.AlphaDamage * (fireRate / 60)

	if heatPerShot > 0 {
		shotsToOverheat := int(1.0 / heatPerShot)
		if shotsToOverheat < 1 {
			shotsToOverheat = 1
		}
		w.ShotsToOverheat = shotsToOverheat
		w.TimeToOverheat = float64(shotsToOverheat) / (fireRate / 60)
		w.BurstDamage = w.AlphaDamage * float64(shotsToOverheat)
		w.BurstDPS = w.BurstDamage / w.TimeToOverheat
		w.HeatPerSecond = heatPerShot * (fireRate / 60)
		cooldown := 1.0 / (w.HeatPerSecond * 0.4)
		if cooldown < 1.0 {
			cooldown = 1.0
		}
		w.EstimatedCooldown = cooldown
		w.SustainedDPS = w.BurstDamage / (w.TimeToOverheat + w.EstimatedCooldown)
	} else {
		w.BurstDPS = w.DPS
		w.SustainedDPS = w.DPS
	}

	return w
}

// DamageChannels holds the six ammo damage channels of spec §4.G.
type DamageChannels struct {
	Physical, Energy, Distortion, Thermal, Biochemical, Stun float64
}

func (d DamageChannels) maxWith(o DamageChannels) DamageChannels {
	max := func(a, b float64) float64 {
		if b > a {
			return b
		}
		return a
	}
	return DamageChannels{
		Physical:    max(d.Physical, o.Physical),
		Energy:      max(d.Energy, o.Energy),
		Distortion:  max(d.Distortion, o.Distortion),
		Thermal:     max(d.Thermal, o.Thermal),
		Biochemical: max(d.Biochemical, o.Biochemical),
		Stun:        max(d.Stun, o.Stun),
	}
}

func (d DamageChannels) isZero() bool {
	return d.Physical == 0 && d.Energy == 0 && d.Distortion == 0 && d.Thermal == 0 && d.Biochemical == 0 && d.Stun == 0
}

// AmmoStats holds the extracted ammo primitives of spec §4.G.
type AmmoStats struct {
	Count   int
	Speed   float64
	Lifetime float64
	Range   float64
	Damage  DamageChannels
}

// Component is one extracted SCItem component row, with a manufacturer
// back-filled from the class-name prefix and an opaque tree of every
// remaining decoded field.
type Component struct {
	GUID         uuid.UUID
	ClassName    string
	Category     Category
	Manufacturer string

	Size, Grade, SubType, Type, Name string

	Mass float64
	HP   float64

	PowerBase, PowerDraw, PowerOutput float64
	HeatGeneration                    float64

	Weapon *WeaponStats
	Ammo   *AmmoStats

	// Fields is the table-driven (__type, field) -> output field capture for
	// shield, cooler, quantum drive, missile, countermeasure, fuel, EMP,
	// QIG, mining, tractor and salvage components, plus a radar's averaged
	// passive signatureDetection. Power plants and gimbals add nothing here.
	Fields map[string]value.Value

	GameData value.Value
}

// gradeLetters maps the 0-based numeric grade to its A..K letter.
var gradeLetters = []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K"}

func gradeLetter(n int) string {
	if n < 0 || n >= len(gradeLetters) {
		return ""
	}
	return gradeLetters[n]
}

// RecordReader resolves a GUID reference to its decoded instance, used to
// follow ammoParamsRecord.__ref.
type RecordReader interface {
	ReadRecord(guid uuid.UUID) (value.Value, bool)
}

// Extract reads rec at the caller-configured depth (spec §4.G calls for
// depth 4) and builds a Component, or false if the record's class/path
// should be skipped.
func Extract(reader *instance.Reader, recordReader RecordReader, rec dataforge.RecordDef) (*Component, bool) {
	category, ok := Classify(rec.ResolvedName, rec.ResolvedFileName)
	if !ok {
		return nil, false
	}

	entity, err := reader.Read(rec.StructIndex, rec.InstanceIndex)
	if err != nil || entity.IsNull() {
		return nil, false
	}

	c := &Component{
		GUID:         rec.GUID,
		ClassName:    rec.ResolvedName,
		Category:     category,
		Manufacturer: manufacturerOf(rec.ResolvedName),
		Fields:       map[string]value.Value{},
		GameData:     entity,
	}

	var rawWeapon *rawWeaponPrimitives
	for _, comp := range entityutil.Components(entity) {
		switch comp.TypeName {
		case "SAttachableComponentParams":
			applyAttachable(c, comp)
		case "EntityComponentPowerConnection":
			applyPowerConnection(c, comp, category)
		case "EntityComponentHeatConnection":
			c.HeatGeneration = firstFloat(comp.Field("heatGeneration"))
		case "SHealthComponentParams":
			c.HP = firstFloat(comp.Field("Health"), comp.Field("hp"))
		case "SCItemWeaponComponentParams":
			rawWeapon = readWeaponPrimitives(comp)
		case "SAmmoContainerComponentParams":
			applyAmmoContainer(c, comp, recordReader)
		default:
			applyGenericFields(c, comp, category)
		}
	}

	if rawWeapon != nil {
		damage := 0.0
		if c.Ammo != nil {
			d := c.Ammo.Damage
			damage = d.Physical + d.Energy + d.Distortion + d.Thermal + d.Biochemical + d.Stun
		}
		stats := DeriveWeaponStats(damage, rawWeapon.fireRate, rawWeapon.pelletCount, rawWeapon.heatPerShot)
		c.Weapon = &stats
	}

	if c.Name == "" {
		c.Name = resolveComponentName(rec.ResolvedName)
	}

	return c, true
}

func manufacturerOf(className string) string {
	i := strings.IndexByte(className, '_')
	if i < 0 {
		return ""
	}
	return strings.ToUpper(className[:i])
}

func firstFloat(vals ...value.Value) float64 {
	for _, v := range vals {
		if f, ok := v.AsFloat64(); ok {
			return f
		}
	}
	return 0
}

func firstInt(vals ...value.Value) int {
	for _, v := range vals {
		if f, ok := v.AsFloat64(); ok {
			return int(f)
		}
	}
	return 0
}

func applyAttachable(c *Component, comp value.Value) {
	if f, ok := comp.Field("Size").AsFloat64(); ok {
		c.Size = gradeLetter(int(f) - 1)
	}
	if f, ok := comp.Field("Grade").AsFloat64(); ok {
		c.Grade = gradeLetter(int(f))
	}
	c.SubType = comp.Field("SubType").AsString()
	c.Type = comp.Field("AttachDef").Field("Type").AsString()
	if name := comp.Field("AttachDef").Field("Localization").Field("Name").AsString(); name != "" {
		c.Name = name
	}
}

func applyPowerConnection(c *Component, comp value.Value, category Category) {
	c.PowerBase = firstFloat(comp.Field("powerBase"))
	c.PowerDraw = firstFloat(comp.Field("powerDraw"))
	if category == CategoryPowerPlant {
		c.PowerOutput = c.PowerDraw
	}
}

// rawWeaponPrimitives holds the raw fireRate/heatPerShot/pelletCount read
// from SCItemWeaponComponentParams before the ammo-derived damage is known.
type rawWeaponPrimitives struct {
	fireRate    float64
	pelletCount int
	heatPerShot float64
}

func readWeaponPrimitives(comp value.Value) *rawWeaponPrimitives {
	fireRate := firstFloat(comp.Field("fireRate"))
	pellets := firstInt(comp.Field("pelletCount"))
	heat := firstFloat(comp.Field("heatPerShot"))

	if fireRate == 0 {
		sequenceEntries := comp.Field("sequenceEntries")
		if sequenceEntries.Kind == value.KindArray {
			for _, entry := range sequenceEntries.Array {
				action := entry.Field("weaponAction")
				fireRate += firstFloat(action.Field("fireRate"))
				if heat == 0 {
					heat = firstFloat(action.Field("heatPerShot"))
				}
				if pellets == 0 {
					pellets = firstInt(action.Field("pelletCount"))
				}
			}
		}
	}

	if pellets < 1 {
		pellets = 1
	}

	return &rawWeaponPrimitives{fireRate: fireRate, pelletCount: pellets, heatPerShot: heat}
}

func applyAmmoContainer(c *Component, comp value.Value, recordReader RecordReader) {
	stats := &AmmoStats{Count: firstInt(comp.Field("ammoCount"), comp.Field("initialAmmoCount"))}

	ref := comp.Field("ammoParamsRecord")
	if ref.Kind != value.KindRef || recordReader == nil {
		c.Ammo = stats
		return
	}

	ammoRecord, ok := recordReader.ReadRecord(ref.RefGuid)
	if !ok {
		c.Ammo = stats
		return
	}

	stats.Speed = firstFloat(ammoRecord.Field("speed"))
	stats.Lifetime = firstFloat(ammoRecord.Field("lifetime"))
	stats.Range = stats.Speed * stats.Lifetime

	direct := readDamageChannels(ammoRecord.Field("damage"))
	detonation := readDamageChannels(ammoRecord.Field("projectileParams").Field("detonationParams").Field("explosionParams").Field("damage"))
	if direct.isZero() && !detonation.isZero() {
		stats.Damage = detonation
	} else {
		stats.Damage = direct.maxWith(detonation)
	}

	c.Ammo = stats
}

func readDamageChannels(v value.Value) DamageChannels {
	return DamageChannels{
		Physical:    firstFloat(v.Field("DamagePhysical"), v.Field("Physical")),
		Energy:      firstFloat(v.Field("DamageEnergy"), v.Field("Energy")),
		Distortion:  firstFloat(v.Field("DamageDistortion"), v.Field("Distortion")),
		Thermal:     firstFloat(v.Field("DamageThermal"), v.Field("Thermal")),
		Biochemical: firstFloat(v.Field("DamageBiochemical"), v.Field("Biochemical")),
		Stun:        firstFloat(v.Field("DamageStun"), v.Field("Stun")),
	}
}

// fieldTable maps (__type, source field) -> output field name for every
// component kind whose contract is a straight pass-through rather than a
// derived formula (spec §4.G).
var fieldTable = map[string]map[string]string{
	"SCItemShieldGeneratorParams": {
		"MaxShieldHealth":   "shieldHp",
		"MaxShieldRegen":    "shieldRegen",
		"DownedRegenDelay":  "downedRegenDelay",
	},
	"SCItemCoolerParams": {
		"CoolingRate": "coolingRate",
	},
	"SCItemQuantumDriveParams": {
		"driveSpeed":     "quantumSpeed",
		"spoolUpTime":    "spoolUpTime",
		"splineJumpParams.jumpRange": "splineJumpRange",
	},
	"SCItemMissileParams": {
		"GCSParams.speed":               "missileSpeed",
		"targetingParams.lockTime":      "lockTime",
		"targetingParams.signalType":    "signalType",
		"targetingParams.trackingRange": "trackingRange",
	},
	"SCItemCountermeasureParams": {
		"decoyLifetime": "decoyLifetime",
		"decoyCount":    "decoyCount",
	},
	"SCItemFuelTankParams": {
		"capacity": "fuelCapacity",
	},
	"SCItemFuelIntakeParams": {
		"fuelPushRate": "fuelPushRate",
	},
	"SEntityComponentEMPParams": {
		"empRadius":   "empRadius",
		"empDuration": "empDuration",
	},
	"SCItemQuantumInterdictionGeneratorParams": {
		"quantumInterdictionPulseSettings.radius":   "qigRadius",
		"quantumInterdictionPulseSettings.duration":  "qigDuration",
	},
	"SCItemMiningLaserParams": {
		"laserPower":    "miningLaserPower",
		"extractionRate": "extractionRate",
	},
	"SCItemTractorBeamParams": {
		"maxRange": "tractorRange",
		"maxForce": "tractorForce",
	},
	"SCItemSalvageModifierParams": {
		"salvageSpeed": "salvageSpeed",
	},
}

func applyGenericFields(c *Component, comp value.Value, category Category) {
	for path, outputField := range fieldTable[comp.TypeName] {
		v := resolvePath(comp, path)
		if !v.IsNull() {
			c.Fields[outputField] = v
		}
	}
	if category == CategoryThruster {
		if t := thrusterTypeFromFilename(c.ClassName); t != "" {
			c.Type = t
		}
	}
	if category == CategoryRadar {
		if avg := averagePassiveSignatureDetection(comp.Field("signatureDetection")); !avg.IsNull() {
			c.Fields["signatureDetection"] = avg
		}
	}
}

func resolvePath(v value.Value, path string) value.Value {
	cur := v
	for _, part := range strings.Split(path, ".") {
		cur = cur.Field(part)
		if cur.IsNull() {
			return value.Null
		}
	}
	return cur
}

var thrusterTypeKeywords = []string{"main", "maneuvering", "retro", "vtol"}

func thrusterTypeFromFilename(className string) string {
	lower := strings.ToLower(className)
	for _, k := range thrusterTypeKeywords {
		if strings.Contains(lower, k) {
			return k
		}
	}
	return ""
}

func averagePassiveSignatureDetection(entries value.Value) value.Value {
	if entries.Kind != value.KindArray {
		return value.Null
	}
	var sum float64
	var n int
	for _, e := range entries.Array {
		if b, ok := e.Field("permitPassiveDetection").AsFloat64(); !ok || b == 0 {
			continue
		}
		if f, ok := e.Field("detectionRange").AsFloat64(); ok {
			sum += f
			n++
		}
	}
	if n == 0 {
		return value.Null
	}
	return value.Scalarv(sum / float64(n))
}

// resolveComponentName is the deterministic fallback name builder of the
// glossary: strip manufacturer and category prefixes and the _SCItem
// suffix, replace underscores with spaces, and insert spaces between
// camelCase words.
var categoryPrefixes = []string{"POWR_", "COOL_", "SHLD_", "QDRV_", "MISL_", "RADR_", "WEPN_", "TURR_"}

func resolveComponentName(class string) string {
	name := class
	if i := strings.IndexByte(name, '_'); i >= 0 {
		name = name[i+1:]
	}
	for _, p := range categoryPrefixes {
		name = strings.TrimPrefix(name, p)
	}
	name = strings.TrimSuffix(name, "_SCItem")
	name = strings.ReplaceAll(name, "_", " ")
	return insertCamelSpaces(name)
}

var camelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)

func insertCamelSpaces(s string) string {
	return camelBoundary.ReplaceAllString(s, "$1 $2")
}
