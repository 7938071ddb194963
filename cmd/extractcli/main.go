// Command extractcli wires the archive provider, DataForge decoder, index,
// instance reader and the A..J extractors into a single run: open a P4K
// archive, decode its DataForge database, walk every vehicle, component,
// paint, shop and item, and upsert the results into the reference SQLite
// sink. Grounded on assets/baseline.go's top-level driver shape (open
// inputs, build indexes, walk, report progress, write outputs).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/ernie/starforge-extract/internal/archive"
	"github.com/ernie/starforge-extract/internal/component"
	"github.com/ernie/starforge-extract/internal/config"
	"github.com/ernie/starforge-extract/internal/dataforge"
	"github.com/ernie/starforge-extract/internal/domain"
	"github.com/ernie/starforge-extract/internal/extractjson"
	"github.com/ernie/starforge-extract/internal/index"
	"github.com/ernie/starforge-extract/internal/instance"
	"github.com/ernie/starforge-extract/internal/progress"
	"github.com/ernie/starforge-extract/internal/ship"
	"github.com/ernie/starforge-extract/internal/sink/sqlitesink"
	"github.com/ernie/starforge-extract/internal/value"
	"github.com/ernie/starforge-extract/internal/variant"
	"github.com/google/uuid"
)

// dataForgeEntryPath is the in-archive path of the central binary database.
// The spec doesn't pin down a literal path for the retrieval archive
// format; this mirrors Star Citizen's real Data.p4k layout, and is the one
// place that would need a --dataforge-path override for a different game
// build.
const dataForgeEntryPath = "Data/Game.dcb"

// vehicleXMLDir is where sidecar CryXmlB vehicle definitions live, per
// spec §4.H.
const vehicleXMLDir = "Data/Scripts/Entities/Vehicles/Implementations/Xml/"

func main() {
	configPath := flag.String("config", "", "path to a YAML ExtractionOptions file")
	archivePath := flag.String("archive", "", "path to the P4K archive (overrides config)")
	outputPath := flag.String("out", "", "path to the SQLite output database (overrides config)")
	dataforgePath := flag.String("dataforge-path", dataForgeEntryPath, "in-archive path of the DataForge database")
	flag.Parse()

	opts := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("loading config: %v", err)
		}
		opts = loaded
	}
	if *archivePath != "" {
		opts.ArchivePath = *archivePath
	}
	if *outputPath != "" {
		opts.OutputPath = *outputPath
	}
	if err := opts.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	if err := run(opts, *dataforgePath); err != nil {
		log.Fatalf("extraction failed: %v", err)
	}
}

func run(opts config.ExtractionOptions, dataforgeEntryPath string) error {
	started := time.Now()

	provider, err := archive.Open(opts.ArchivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer provider.Close()

	provider.ProgressEvery = opts.ProgressEvery
	provider.OnProgress = func(done, total int) {
		log.Printf("archive: indexed %d/%d entries", done, total)
	}
	log.Printf("archive %s opened: %d entries", opts.ArchivePath, provider.Count())

	entry, ok := provider.Lookup(dataforgeEntryPath)
	if !ok {
		return fmt.Errorf("dataforge entry %q not found in archive", dataforgeEntryPath)
	}
	buf, err := provider.ReadEntry(entry)
	if err != nil {
		return fmt.Errorf("reading dataforge entry: %w", err)
	}

	view, err := dataforge.Parse(buf)
	if err != nil {
		return fmt.Errorf("parsing dataforge database: %w", err)
	}
	log.Printf("dataforge: %d structs, %d records, %s decoded", len(view.StructDefs), len(view.Records), humanize.Bytes(uint64(len(buf))))

	idx := index.Build(view)
	log.Printf("index: %d vehicles indexed", len(idx.Vehicles()))

	reader := instance.New(view, opts.MaxInstanceDepth, opts.ArrayElementCap)
	adapter := &entityAdapter{idx: idx, reader: reader, archive: provider}

	sinkDB, err := sqlitesink.New(opts.OutputPath)
	if err != nil {
		return fmt.Errorf("opening sink: %w", err)
	}
	defer sinkDB.Close()

	ctx := context.Background()
	width := terminalWidth()
	log.Printf("extracting with terminal width %d", width)

	if err := extractShips(ctx, opts, idx, reader, adapter, sinkDB); err != nil {
		return err
	}
	if err := extractComponentsAndDomain(ctx, opts, view, reader, adapter, sinkDB); err != nil {
		return err
	}

	log.Printf("done in %s", time.Since(started).Round(time.Millisecond))
	return nil
}

func terminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// entityAdapter implements variant.EntityReader, ship.EntityReader and
// ship.SidecarReader over the decoded view, letting the extractors stay
// free of any direct archive/index/instance dependency.
type entityAdapter struct {
	idx     *index.Index
	reader  *instance.Reader
	archive *archive.Provider
}

func (a *entityAdapter) ReadEntityByClassName(className string) (value.Value, bool) {
	v, ok := a.idx.FindEntityRecord(className)
	if !ok {
		return value.Null, false
	}
	rec, ok := a.idx.RecordByGUID(v.GUID)
	if !ok {
		return value.Null, false
	}
	entity, err := a.reader.Read(rec.StructIndex, rec.InstanceIndex)
	if err != nil {
		return value.Null, false
	}
	return entity, true
}

func (a *entityAdapter) ReadRecord(id uuid.UUID) (value.Value, bool) {
	rec, ok := a.idx.RecordByGUID(id)
	if !ok {
		return value.Null, false
	}
	entity, err := a.reader.Read(rec.StructIndex, rec.InstanceIndex)
	if err != nil {
		return value.Null, false
	}
	return entity, true
}

func (a *entityAdapter) ReadVehicleXML(stem string) ([]byte, bool) {
	if stem == "" {
		return nil, false
	}
	p := vehicleXMLDir + stem + ".xml"
	entry, ok := a.archive.Lookup(p)
	if !ok {
		return nil, false
	}
	buf, err := a.archive.ReadEntry(entry)
	if err != nil {
		return nil, false
	}
	return buf, true
}

func extractShips(ctx context.Context, opts config.ExtractionOptions, idx *index.Index, reader *instance.Reader, adapter *entityAdapter, sinkDB *sqlitesink.Sink) error {
	vehicles := idx.Vehicles()
	tick := progress.NewTick(opts.ShipProgressEvery)

	rows := make([]map[string]any, 0, len(vehicles))
	for _, v := range vehicles {
		if ship.ShouldSkip(v.ClassName) {
			continue
		}
		rec, ok := idx.RecordByGUID(v.GUID)
		if !ok {
			continue
		}
		base, err := reader.Read(rec.StructIndex, rec.InstanceIndex)
		if err != nil || base.IsNull() {
			continue
		}

		entities := variant.Resolve(idx, adapter, v.ClassName, v.Name)
		loadoutSource := base
		if entities.LoadoutEntity != "" && entities.LoadoutEntity != v.ClassName {
			if alt, ok := adapter.ReadEntityByClassName(entities.LoadoutEntity); ok {
				loadoutSource = alt
			}
		}

		s := ship.ExtractWithEntities(adapter, adapter, entities, base, loadoutSource)

		gameData, err := extractjson.Marshal(s.GameData)
		if err != nil {
			log.Printf("ship %s: marshalling game_data: %v", v.ClassName, err)
			continue
		}
		rows = append(rows, map[string]any{
			"guid":          v.GUID.String(),
			"class_name":    s.ClassName,
			"manufacturer":  s.Manufacturer,
			"display_name":  s.DisplayName,
			"crew_size":     s.CrewSize,
			"mass":          s.Mass,
			"scm_speed":     s.ScmSpeed,
			"hp":            s.HP,
			"total_hp":      s.TotalHP,
			"body_hp":       s.BodyHP,
			"career":        s.Career,
			"role":          s.Role,
			"game_data":     string(gameData),
		})

		if tick.Next() {
			log.Printf("ships: %d processed", tick.Count())
		}
	}

	log.Printf("ships: %d extracted of %d vehicle candidates", len(rows), len(vehicles))
	return sinkDB.UpsertBatch(ctx, "ships", rows)
}

func extractComponentsAndDomain(ctx context.Context, opts config.ExtractionOptions, view *dataforge.View, reader *instance.Reader, adapter *entityAdapter, sinkDB *sqlitesink.Sink) error {
	tick := progress.NewTick(opts.ProgressEvery)

	var componentRows, paintRows, shopRows, itemRows []map[string]any
	dedupeShops := make([]domain.Shop, 0)

	for _, rec := range view.Records {
		if tick.Next() {
			log.Printf("records: %d scanned", tick.Count())
		}

		structDef, ok := view.StructAt(rec.StructIndex)
		structName := ""
		if ok {
			structName = structDef.ResolvedName
		}

		if comp, ok := component.Extract(reader, adapter, rec); ok {
			gameData, err := extractjson.Marshal(comp.GameData)
			if err != nil {
				continue
			}
			componentRows = append(componentRows, map[string]any{
				"guid":         comp.GUID.String(),
				"class_name":   comp.ClassName,
				"category":     string(comp.Category),
				"manufacturer": comp.Manufacturer,
				"mass":         comp.Mass,
				"hp":           comp.HP,
				"game_data":    string(gameData),
			})
		}

		if paint, ok := domain.ExtractPaint(rec, rec.ResolvedName); ok {
			paintRows = append(paintRows, map[string]any{
				"guid":            rec.GUID.String(),
				"ship_short_name": paint.ShipShortName,
				"paint_class":     paint.PaintClassName,
				"paint_name":      paint.PaintName,
			})
		}

		if shop, ok := domain.ExtractShop(rec, structName); ok {
			dedupeShops = append(dedupeShops, shop)
		}

		if item, ok := domain.ExtractItem(reader, adapter, rec); ok {
			itemRows = append(itemRows, map[string]any{
				"guid":         item.GUID.String(),
				"class_name":   item.ClassName,
				"category":     string(item.Category),
				"manufacturer": item.Manufacturer,
				"mass":         item.Mass,
				"hp":           item.HP,
				"scu":          item.SCU,
			})
		}
	}

	for _, shop := range domain.DedupeShops(dedupeShops) {
		shopRows = append(shopRows, map[string]any{
			"class_name": string(shop.Type) + "|" + shop.Name,
			"name":       shop.Name,
			"type":       string(shop.Type),
		})
	}

	log.Printf("components: %d, paints: %d, shops: %d, items: %d",
		len(componentRows), len(paintRows), len(shopRows), len(itemRows))

	if err := sinkDB.UpsertBatch(ctx, "components", componentRows); err != nil {
		return fmt.Errorf("upserting components: %w", err)
	}
	if err := sinkDB.UpsertBatch(ctx, "paints", paintRows); err != nil {
		return fmt.Errorf("upserting paints: %w", err)
	}
	if err := sinkDB.UpsertBatch(ctx, "shops", shopRows); err != nil {
		return fmt.Errorf("upserting shops: %w", err)
	}
	if err := sinkDB.UpsertBatch(ctx, "items", itemRows); err != nil {
		return fmt.Errorf("upserting items: %w", err)
	}
	return nil
}
