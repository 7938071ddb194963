// Package ship implements the ship extractor (spec §4.H): merge the base
// entity, the resolver's chosen variant, and a sidecar CryXmlB vehicle
// definition into one ship row, a port-metadata map, and a flattened
// loadout port tree. Grounded on assets/pk3.go's layered-override merge
// (later source wins unless the earlier one already supplied a field) and
// assets/bsp.go's lump-by-lump structured read.
package ship

import (
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/ernie/starforge-extract/internal/cryxml"
	"github.com/ernie/starforge-extract/internal/domaintables"
	"github.com/ernie/starforge-extract/internal/entityutil"
	"github.com/ernie/starforge-extract/internal/value"
	"github.com/ernie/starforge-extract/internal/variant"
)

// PortType is the classified purpose of a loadout port (Glossary →
// portClassifier).
type PortType string

const (
	PortWeaponGun              PortType = "WeaponGun"
	PortGimbal                 PortType = "Gimbal"
	PortTurret                 PortType = "Turret"
	PortMissileRack            PortType = "MissileRack"
	PortShield                 PortType = "Shield"
	PortPowerPlant             PortType = "PowerPlant"
	PortCooler                 PortType = "Cooler"
	PortQuantumDrive           PortType = "QuantumDrive"
	PortRadar                  PortType = "Radar"
	PortCountermeasure         PortType = "Countermeasure"
	PortFlightController       PortType = "FlightController"
	PortThruster               PortType = "Thruster"
	PortEMP                    PortType = "EMP"
	PortQIG                    PortType = "QuantumInterdictionGenerator"
	PortWeaponRack             PortType = "WeaponRack"
	PortWeapon                 PortType = "Weapon"
	PortOther                  PortType = "Other"
)

type portRule struct {
	portNameSubstr string
	classSubstr    string
	result         PortType
}

// portClassifyRules is evaluated top to bottom; the first matching rule
// wins, with the weapon-rack/turret/gimbal/QIG-vs-drive disambiguators
// ordered ahead of their broader siblings.
var portClassifyRules = []portRule{
	{"hardpoint_rack", "", PortMissileRack},
	{"weaponrack", "", PortWeaponRack},
	{"", "missilerack", PortMissileRack},
	{"turret", "", PortTurret},
	{"", "turret", PortTurret},
	{"gimbal", "", PortGimbal},
	{"", "gimbal", PortGimbal},
	{"qig", "", PortQIG},
	{"", "quantuminterdictiongenerator", PortQIG},
	{"quantum", "", PortQuantumDrive},
	{"", "quantumdrive", PortQuantumDrive},
	{"hardpoint_weapon", "", PortWeaponGun},
	{"", "weapon", PortWeapon},
	{"shield", "", PortShield},
	{"", "shield", PortShield},
	{"power", "", PortPowerPlant},
	{"", "powerplant", PortPowerPlant},
	{"cooler", "", PortCooler},
	{"", "cooler", PortCooler},
	{"radar", "", PortRadar},
	{"", "radar", PortRadar},
	{"countermeasure", "", PortCountermeasure},
	{"", "countermeasure", PortCountermeasure},
	{"flightcontroller", "", PortFlightController},
	{"", "flightcontroller", PortFlightController},
	{"thruster", "", PortThruster},
	{"", "thruster", PortThruster},
	{"emp", "", PortEMP},
	{"", "emp", PortEMP},
}

// ClassifyPort implements the §4.H port classifier.
func ClassifyPort(portName, componentClass string) PortType {
	lowerPort := strings.ToLower(portName)
	lowerClass := strings.ToLower(componentClass)
	for _, r := range portClassifyRules {
		if r.portNameSubstr != "" && strings.Contains(lowerPort, r.portNameSubstr) {
			return r.result
		}
		if r.classSubstr != "" && strings.Contains(lowerClass, r.classSubstr) {
			return r.result
		}
	}
	return PortOther
}

// variantLoadoutFallbackSuffixes is the priority order walked when an
// entry's entityClassName is empty (spec §4.H).
var variantLoadoutFallbackSuffixes = []string{
	"_PU_AI_UEE", "_PU_AI_SEC", "_PU_AI_CIV", "_PU_AI", "_PU", "_Template",
}

// skipClassPrefixes and skipSubstrings implement the §4.H ship skip
// filters.
var skipClassPrefixes = []string{"AMBX_"}

var skipSubstrings = []string{
	"_test", "_debug", "_template", "_indestructible", "_unmanned",
	"_npc_only", "_prison", "_hijacked", "_drug", "_ai_only", "_derelict", "_wreck",
}

var skipPatterns = []*regexp.Regexp{
	regexp.MustCompile(`_PU($|_)`),
	regexp.MustCompile(`_AI_`),
	regexp.MustCompile(`_Tier_\d+$`),
	regexp.MustCompile(`_Swarm($|_)`),
}
var skipTokens = []string{"CIG", "Event", "Reward", "Prize", "Trophy"}

// ShouldSkip reports whether a ship class name should be excluded entirely.
func ShouldSkip(className string) bool {
	for _, p := range skipClassPrefixes {
		if strings.HasPrefix(className, p) {
			return true
		}
	}
	lower := strings.ToLower(className)
	for _, s := range skipSubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	for _, tok := range skipTokens {
		if strings.Contains(className, tok) {
			return true
		}
	}
	for _, pat := range skipPatterns {
		if pat.MatchString(className) {
			return true
		}
	}
	return false
}

// BoundingBox is the (x, y, z) ship hull bounding box.
type BoundingBox struct{ X, Y, Z float64 }

// Insurance captures StaticEntityClassData's insurance terms.
type Insurance struct {
	BaseExpeditingFee         float64
	BaseWaitTimeMinutes       float64
	MandatoryWaitTimeMinutes  float64
}

// ManufacturerInfo is the materialised manufacturer sub-block of an
// attachable component, resolved via GUID when present.
type ManufacturerInfo struct {
	GUID uuid.UUID
	Name string
	Code string
}

// PortMeta is one entry of the port-metadata map, keyed by lowercased port
// name.
type PortMeta struct {
	DisplayName   string
	MinSize       int
	MaxSize       int
	AcceptedTypes []string
	RequiredTags  []string
	Editable      bool
}

// PortRow is one emitted loadout row: either a top-level port entry or a
// child of one.
type PortRow struct {
	PortName       string
	ParentPort     string
	EntityClassName string
	Type           PortType
	IsModule       bool
}

// Ship is the fully merged, extracted ship row.
type Ship struct {
	ClassName    string
	Manufacturer string
	DisplayName  string

	CrewSize      int
	Bounds        BoundingBox
	HullDamageNorm float64
	InventorySize float64
	Penetration   map[string]float64

	Mass     float64
	ScmSpeed float64

	Career string
	Role   string

	Ports map[string]PortMeta

	AttachType, AttachSubType, Size, Grade, Name, ShortName, Description string
	AttachManufacturer *ManufacturerInfo

	HP           float64
	Resistances  map[string]float64

	Insurance Insurance

	LoadoutPorts []PortRow
	ShipModules  []PortRow

	TotalHP   float64
	BodyHP    float64
	PartsTree *cryxml.Node

	GameData value.Value
}

// EntityReader reads a decoded entity instance by class name, and resolves
// a GUID reference to its decoded instance (e.g. a manufacturer record).
type EntityReader interface {
	variant.EntityReader
	ReadRecord(guid uuid.UUID) (value.Value, bool)
}

// SidecarReader loads a sidecar vehicle XML by stem name.
type SidecarReader interface {
	ReadVehicleXML(stem string) ([]byte, bool)
}

// ExtractWithEntities builds a Ship from already-resolved base/loadout
// entity values and the variant triple, implementing the merge, loadout
// walk, and sidecar fold of spec §4.H. Splitting the GUID-index lookups
// (owned by the caller's *index.Index) from the pure merge logic keeps
// this package free of a dependency cycle with internal/index.
func ExtractWithEntities(reader EntityReader, sidecars SidecarReader, entities variant.Entities, base, loadoutSource value.Value) *Ship {
	s := &Ship{
		ClassName:    entities.BaseEntity,
		Manufacturer: domaintables.ManufacturerName(entities.BaseEntity),
		Penetration:  map[string]float64{},
		Ports:        map[string]PortMeta{},
		Resistances:  map[string]float64{},
		GameData:     base,
	}

	applyVehicleComponent(s, base)
	applyPortContainer(s, base)
	applyAttachable(s, base, reader)
	applyHealth(s, base)
	applyInsurance(s, base)
	applyFlightController(s, base)
	if basePhysicsMass, ok := physicsControllerMass(base); ok {
		s.Mass = basePhysicsMass
	}

	chosVariant := entities.LoadoutEntity != "" && entities.LoadoutEntity != entities.BaseEntity

	if chosVariant {
		if s.CrewSize == 0 && s.Bounds == (BoundingBox{}) {
			applyVehicleComponent(s, loadoutSource)
		}
		if len(s.Ports) == 0 {
			applyPortContainer(s, loadoutSource)
		}
		if s.Insurance == (Insurance{}) {
			applyInsurance(s, loadoutSource)
		}
		applyFlightController(s, loadoutSource)
	}

	loadoutEntries := entityutil.LoadoutEntries(loadoutSource)
	fallbackMap := buildVariantLoadoutFallback(reader, entities.BaseEntity)
	s.LoadoutPorts, s.ShipModules = walkLoadout(loadoutEntries, fallbackMap)

	xmlIsBase := true
	if sidecars != nil {
		xmlName := firstNonEmpty(entities.VehicleXMLName, entities.BaseEntity, vehicleDefinitionStem(base))
		xmlIsBase = xmlName == entities.BaseEntity
		if buf, ok := sidecars.ReadVehicleXML(xmlName); ok {
			if root, err := cryxml.Decode(buf); err == nil && root != nil {
				s.PartsTree = root
				s.TotalHP, s.BodyHP = sumDamageMax(root)
				// The root-part mass attribute wins over the physics-controller
				// mass already set above, with one exception below (spec §4.H).
				if xmlMass, ok := xmlRootMass(root); ok {
					s.Mass = xmlMass
				}
			}
		}
	}

	// Exception: when we chose a variant entity but the sidecar XML we
	// loaded is still the base's (no variant-specific XML was found), the
	// variant's own flight-controller physics mass is more accurate than
	// the base XML's mass and takes precedence (spec §4.H).
	if chosVariant && xmlIsBase {
		if variantMass, ok := physicsControllerMass(loadoutSource); ok {
			s.Mass = variantMass
		}
	}

	if s.Name == "" {
		s.DisplayName = s.ClassName
	} else {
		s.DisplayName = s.Name
	}

	return s
}

func applyVehicleComponent(s *Ship, entity value.Value) {
	comp, ok := entityutil.FirstComponentOfType(entity, "VehicleComponentParams")
	if !ok {
		return
	}
	s.CrewSize = int(firstFloat(comp.Field("crewSize")))
	s.Bounds = BoundingBox{
		X: firstFloat(comp.Field("hullSize").Field("x")),
		Y: firstFloat(comp.Field("hullSize").Field("y")),
		Z: firstFloat(comp.Field("hullSize").Field("z")),
	}
	s.HullDamageNorm = firstFloat(comp.Field("damageNormalization"))
	s.InventorySize = firstFloat(comp.Field("inventorySize"))

	for _, k := range []string{"physical", "energy", "distortion"} {
		if f, ok := comp.Field("penetration" + strings.ToUpper(k[:1]) + k[1:]).AsFloat64(); ok {
			s.Penetration[k] = f
		}
	}

	s.Career = domaintables.VehicleCareer(comp.Field("vehicleCareer").AsString())
	s.Role = domaintables.VehicleRole(comp.Field("vehicleRole").AsString())
}

func applyPortContainer(s *Ship, entity value.Value) {
	comp, ok := entityutil.FirstComponentOfType(entity, "SItemPortContainerComponentParams")
	if !ok {
		return
	}
	ports := comp.Field("Ports")
	if ports.Kind != value.KindArray {
		return
	}
	for _, p := range ports.Array {
		name := strings.ToLower(p.Field("Name").AsString())
		if name == "" {
			continue
		}
		var accepted, required []string
		for _, t := range p.Field("Types").Array {
			accepted = append(accepted, t.AsString())
		}
		for _, t := range p.Field("RequiredTags").Array {
			required = append(required, t.AsString())
		}
		s.Ports[name] = PortMeta{
			DisplayName:   p.Field("DisplayName").AsString(),
			MinSize:       int(firstFloat(p.Field("MinSize"))),
			MaxSize:       int(firstFloat(p.Field("MaxSize"))),
			AcceptedTypes: accepted,
			RequiredTags:  required,
			Editable:      firstFloat(p.Field("Editable")) != 0,
		}
	}
}

func applyAttachable(s *Ship, entity value.Value, reader EntityReader) {
	comp, ok := entityutil.FirstComponentOfType(entity, "SAttachableComponentParams")
	if !ok {
		return
	}
	s.AttachType = comp.Field("AttachDef").Field("Type").AsString()
	s.AttachSubType = comp.Field("SubType").AsString()
	if f, ok := comp.Field("Size").AsFloat64(); ok {
		s.Size = strconv.Itoa(int(f))
	}
	if f, ok := comp.Field("Grade").AsFloat64(); ok {
		s.Grade = strconv.Itoa(int(f))
	}
	s.Name = comp.Field("AttachDef").Field("Localization").Field("Name").AsString()
	s.ShortName = comp.Field("AttachDef").Field("Localization").Field("ShortName").AsString()
	s.Description = comp.Field("AttachDef").Field("Localization").Field("Description").AsString()

	manufRef := comp.Field("Manufacturer")
	if manufRef.Kind == value.KindRef && reader != nil {
		if manufEntity, ok := reader.ReadRecord(manufRef.RefGuid); ok {
			s.AttachManufacturer = &ManufacturerInfo{
				GUID: manufRef.RefGuid,
				Name: manufEntity.Field("Localization").Field("Name").AsString(),
				Code: manufEntity.Field("Code").AsString(),
			}
		}
	}
}

func applyHealth(s *Ship, entity value.Value) {
	comp, ok := entityutil.FirstComponentOfType(entity, "SHealthComponentParams")
	if !ok {
		return
	}
	s.HP = firstFloat(comp.Field("Health"), comp.Field("hp"))
	for _, m := range comp.Field("DamageResistances").Array {
		channel := m.Field("Channel").AsString()
		if channel == "" {
			continue
		}
		s.Resistances[channel] = firstFloat(m.Field("Multiplier"))
	}
}

// physicsControllerMass reads SEntityPhysicsControllerParams.mass, the same
// component the item extractor reads (internal/domain.ExtractItem).
func physicsControllerMass(entity value.Value) (float64, bool) {
	comp, ok := entityutil.FirstComponentOfType(entity, "SEntityPhysicsControllerParams")
	if !ok {
		return 0, false
	}
	return comp.Field("mass").AsFloat64()
}

// applyFlightController reads the flight controller's commanded SCM speed.
func applyFlightController(s *Ship, entity value.Value) {
	comp, ok := entityutil.FirstComponentOfType(entity, "EntityComponentIFCSParams")
	if !ok {
		return
	}
	if f := firstFloat(comp.Field("scmSpeed"), comp.Field("maxSpeed")); f != 0 {
		s.ScmSpeed = f
	}
}

// xmlRootMass reads the mass attribute of the root part under the sidecar
// XML's <Parts> root element (spec §4.H).
func xmlRootMass(root *cryxml.Node) (float64, bool) {
	if root == nil || len(root.Children) == 0 {
		return 0, false
	}
	raw, ok := root.Children[0].Attributes["mass"]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func applyInsurance(s *Ship, entity value.Value) {
	for _, e := range entityutil.ComponentsOfType(entity, "StaticEntityClassData") {
		s.Insurance = Insurance{
			BaseExpeditingFee:        firstFloat(e.Field("baseExpeditingFee")),
			BaseWaitTimeMinutes:      firstFloat(e.Field("baseWaitTimeMinutes")),
			MandatoryWaitTimeMinutes: firstFloat(e.Field("mandatoryWaitTimeMinutes")),
		}
		return
	}
}

// buildVariantLoadoutFallback walks variantLoadoutFallbackSuffixes in order
// and returns the (portName -> className) map of the first suffix whose
// default-loadout component is non-empty.
func buildVariantLoadoutFallback(reader EntityReader, baseClass string) map[string]string {
	for _, suffix := range variantLoadoutFallbackSuffixes {
		entity, ok := reader.ReadEntityByClassName(baseClass + suffix)
		if !ok {
			continue
		}
		entries := entityutil.LoadoutEntries(entity)
		if len(entries) == 0 {
			continue
		}
		out := make(map[string]string, len(entries))
		for _, e := range entries {
			portName := e.Field("itemPortName").AsString()
			className := e.Field("entityClassName").AsString()
			if portName == "" || className == "" {
				continue
			}
			out[portName] = className
			if parent := e.Field("parentPort").AsString(); parent != "" {
				out[parent+"/"+portName] = className
			}
		}
		return out
	}
	return nil
}

func walkLoadout(entries []value.Value, fallback map[string]string) (ports, modules []PortRow) {
	for _, e := range entries {
		portName := e.Field("itemPortName").AsString()
		className := e.Field("entityClassName").AsString()
		parent := e.Field("parentPort").AsString()

		if className == "" && fallback != nil {
			key := portName
			if parent != "" {
				key = parent + "/" + portName
			}
			if v, ok := fallback[key]; ok {
				className = v
			} else if v, ok := fallback[portName]; ok {
				className = v
			}
		}

		row := PortRow{
			PortName:        portName,
			ParentPort:      parent,
			EntityClassName: className,
			Type:            ClassifyPort(portName, className),
		}
		if isModulePort(portName) {
			row.IsModule = true
			modules = append(modules, row)
		}
		ports = append(ports, row)

		for _, child := range e.Field("children").Array {
			childName := child.Field("itemPortName").AsString()
			childClass := child.Field("entityClassName").AsString()
			if childClass == "" && fallback != nil {
				if v, ok := fallback[portName+"/"+childName]; ok {
					childClass = v
				}
			}
			ports = append(ports, PortRow{
				PortName:        childName,
				ParentPort:      portName,
				EntityClassName: childClass,
				Type:            ClassifyPort(childName, childClass),
			})
		}
	}
	return ports, modules
}

var modulePortPattern = "module"
var noiseSlotPattern = "noise"

func isModulePort(portName string) bool {
	lower := strings.ToLower(portName)
	return strings.Contains(lower, modulePortPattern) && !strings.Contains(lower, noiseSlotPattern)
}

// sumDamageMax recursively sums every damageMax attribute on parts whose
// class != ItemPort, returning (totalHp, bodyHp) where bodyHp is the first
// part literally named "Body".
func sumDamageMax(node *cryxml.Node) (total, body float64) {
	if node.Tag == "Part" && node.Attributes["class"] != "ItemPort" {
		if v, err := strconv.ParseFloat(node.Attributes["damageMax"], 64); err == nil {
			total += v
			if body == 0 && node.Attributes["name"] == "Body" {
				body = v
			}
		}
	}
	for _, c := range node.Children {
		t, b := sumDamageMax(c)
		total += t
		if body == 0 {
			body = b
		}
	}
	return total, body
}

func vehicleDefinitionStem(entity value.Value) string {
	def := entity.Field("vehicleDefinition").AsString()
	if def == "" {
		return ""
	}
	base := path.Base(def)
	return strings.TrimSuffix(base, path.Ext(base))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstFloat(vals ...value.Value) float64 {
	for _, v := range vals {
		if f, ok := v.AsFloat64(); ok {
			return f
		}
	}
	return 0
}
