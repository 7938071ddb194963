package dataforge

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log"
	"math"

	"github.com/google/uuid"

	"github.com/ernie/starforge-extract/internal/xerrors"
)

// cursor tracks a read position through the flat buffer, the way
// icza-mpq/mpq.go reads fields one at a time with explicit offset math
// instead of binary.Read/reflection.
type cursor struct {
	buf []byte
	pos int
}

func (c *cursor) need(n int) error {
	if c.pos+n > len(c.buf) {
		return fmt.Errorf("%w: need %d bytes at %d, have %d", xerrors.ErrTruncation, n, c.pos, len(c.buf))
	}
	return nil
}

func (c *cursor) skip(n int) { c.pos += n }

func (c *cursor) u8() (uint8, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	v := c.buf[c.pos]
	c.pos++
	return v, nil
}

func (c *cursor) u16() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(c.buf[c.pos:])
	c.pos += 2
	return v, nil
}

func (c *cursor) u32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(c.buf[c.pos:])
	c.pos += 4
	return v, nil
}

func (c *cursor) i32() (int32, error) {
	v, err := c.u32()
	return int32(v), err
}

func (c *cursor) bytesN(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// readGUID decodes the little-endian composite (u32-u16-u16 + 8 raw bytes)
// layout shared by record GUIDs and the guid value pool.
func readGUID(b []byte) uuid.UUID {
	var out [16]byte
	binary.BigEndian.PutUint32(out[0:4], binary.LittleEndian.Uint32(b[0:4]))
	binary.BigEndian.PutUint16(out[4:6], binary.LittleEndian.Uint16(b[4:6]))
	binary.BigEndian.PutUint16(out[6:8], binary.LittleEndian.Uint16(b[6:8]))
	copy(out[8:16], b[8:16])
	var id uuid.UUID
	copy(id[:], out[:])
	return id
}

// Parse decodes a complete DataForge buffer following the 11 phases of
// spec.md §4.C. The returned View borrows buf; callers must not mutate it
// afterward.
func Parse(buf []byte) (*View, error) {
	c := &cursor{buf: buf}

	// Phase 1: signature + version + reserved.
	if err := c.need(4); err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrFormat, err)
	}
	c.skip(4)
	version, err := c.u32()
	if err != nil {
		return nil, fmt.Errorf("%w: read version: %v", xerrors.ErrFormat, err)
	}
	c.skip(8)

	h := Header{Version: version}

	// Phase 2: 24 i32 counters, then u32 textLength (+ u32 textLength2 when
	// v>=6).
	counters := make([]int32, 24)
	for i := range counters {
		v, err := c.i32()
		if err != nil {
			return nil, fmt.Errorf("%w: read counter %d: %v", xerrors.ErrTruncation, i, err)
		}
		counters[i] = v
	}
	h.StructDefCount = counters[0]
	h.PropertyDefCount = counters[1]
	h.EnumDefCount = counters[2]
	h.DataMappingCount = counters[3]
	h.RecordCount = counters[4]
	h.Int8Count = counters[5]
	h.Int16Count = counters[6]
	h.Int32Count = counters[7]
	h.Int64Count = counters[8]
	h.UInt8Count = counters[9]
	h.UInt16Count = counters[10]
	h.UInt32Count = counters[11]
	h.UInt64Count = counters[12]
	h.BoolCount = counters[13]
	h.SingleCount = counters[14]
	h.DoubleCount = counters[15]
	h.GuidCount = counters[16]
	h.StringIDCount = counters[17]
	h.LocaleCount = counters[18]
	h.EnumCount = counters[19]
	h.StrongPtrCount = counters[20]
	h.WeakPtrCount = counters[21]
	h.ReferenceCount = counters[22]
	h.EnumOptionCount = counters[23]

	textLen, err := c.u32()
	if err != nil {
		return nil, fmt.Errorf("%w: read textLength: %v", xerrors.ErrTruncation, err)
	}
	h.TextLength = textLen

	if version >= 6 {
		textLen2, err := c.u32()
		if err != nil {
			return nil, fmt.Errorf("%w: read textLength2: %v", xerrors.ErrTruncation, err)
		}
		h.TextLength2 = textLen2
	}

	v := &View{Header: h, Buf: buf}

	// Phase 3: structDefs.
	v.StructDefs = make([]StructDef, h.StructDefCount)
	for i := range v.StructDefs {
		nameOffset, err := c.i32()
		if err != nil {
			return nil, fmt.Errorf("%w: structDef[%d].nameOffset: %v", xerrors.ErrTruncation, i, err)
		}
		parentTypeIndex, err := c.i32()
		if err != nil {
			return nil, fmt.Errorf("%w: structDef[%d].parentTypeIndex: %v", xerrors.ErrTruncation, i, err)
		}
		attrCount, err := c.u16()
		if err != nil {
			return nil, fmt.Errorf("%w: structDef[%d].attributeCount: %v", xerrors.ErrTruncation, i, err)
		}
		firstAttr, err := c.u16()
		if err != nil {
			return nil, fmt.Errorf("%w: structDef[%d].firstAttributeIndex: %v", xerrors.ErrTruncation, i, err)
		}
		structSize, err := c.u32()
		if err != nil {
			return nil, fmt.Errorf("%w: structDef[%d].structSize: %v", xerrors.ErrTruncation, i, err)
		}
		v.StructDefs[i] = StructDef{
			NameOffset:          nameOffset,
			ParentTypeIndex:     parentTypeIndex,
			AttributeCount:      attrCount,
			FirstAttributeIndex: firstAttr,
			StructSize:          structSize,
		}
	}

	// Phase 4: propertyDefs.
	v.PropertyDefs = make([]PropertyDef, h.PropertyDefCount)
	for i := range v.PropertyDefs {
		nameOffset, err := c.u32()
		if err != nil {
			return nil, fmt.Errorf("%w: propertyDef[%d].nameOffset: %v", xerrors.ErrTruncation, i, err)
		}
		structIndex, err := c.u16()
		if err != nil {
			return nil, fmt.Errorf("%w: propertyDef[%d].structIndex: %v", xerrors.ErrTruncation, i, err)
		}
		dataType, err := c.u16()
		if err != nil {
			return nil, fmt.Errorf("%w: propertyDef[%d].dataType: %v", xerrors.ErrTruncation, i, err)
		}
		conversionType, err := c.u16()
		if err != nil {
			return nil, fmt.Errorf("%w: propertyDef[%d].conversionType: %v", xerrors.ErrTruncation, i, err)
		}
		if _, err := c.u16(); err != nil { // padding
			return nil, fmt.Errorf("%w: propertyDef[%d].padding: %v", xerrors.ErrTruncation, i, err)
		}
		v.PropertyDefs[i] = PropertyDef{
			NameOffset:     nameOffset,
			StructIndex:    structIndex,
			DataType:       DataType(dataType),
			ConversionType: conversionType,
		}
	}

	// Phase 5: skip enum definitions (8 bytes each).
	c.skip(int(h.EnumDefCount) * 8)

	// Phase 6: dataMappings — width depends on version.
	v.DataMappings = make([]DataMapping, h.DataMappingCount)
	for i := range v.DataMappings {
		var structCount, structIndex uint32
		if version >= 5 {
			sc, err := c.u32()
			if err != nil {
				return nil, fmt.Errorf("%w: dataMapping[%d].structCount: %v", xerrors.ErrTruncation, i, err)
			}
			si, err := c.u32()
			if err != nil {
				return nil, fmt.Errorf("%w: dataMapping[%d].structIndex: %v", xerrors.ErrTruncation, i, err)
			}
			structCount, structIndex = sc, si
		} else {
			sc, err := c.u16()
			if err != nil {
				return nil, fmt.Errorf("%w: dataMapping[%d].structCount: %v", xerrors.ErrTruncation, i, err)
			}
			si, err := c.u16()
			if err != nil {
				return nil, fmt.Errorf("%w: dataMapping[%d].structIndex: %v", xerrors.ErrTruncation, i, err)
			}
			structCount, structIndex = uint32(sc), uint32(si)
		}
		v.DataMappings[i] = DataMapping{StructCount: structCount, StructIndex: structIndex}
	}

	// Phase 7: records.
	v.Records = make([]RecordDef, h.RecordCount)
	for i := range v.Records {
		nameOffset, err := c.i32()
		if err != nil {
			return nil, fmt.Errorf("%w: record[%d].nameOffset: %v", xerrors.ErrTruncation, i, err)
		}
		fileNameOffset, err := c.i32()
		if err != nil {
			return nil, fmt.Errorf("%w: record[%d].fileNameOffset: %v", xerrors.ErrTruncation, i, err)
		}
		structIndex, err := c.i32()
		if err != nil {
			return nil, fmt.Errorf("%w: record[%d].structIndex: %v", xerrors.ErrTruncation, i, err)
		}
		guidBytes, err := c.bytesN(16)
		if err != nil {
			return nil, fmt.Errorf("%w: record[%d].guid: %v", xerrors.ErrTruncation, i, err)
		}
		id := readGUID(guidBytes)
		instanceIndex, err := c.u16()
		if err != nil {
			return nil, fmt.Errorf("%w: record[%d].instanceIndex: %v", xerrors.ErrTruncation, i, err)
		}
		structSize, err := c.u32()
		if err != nil {
			return nil, fmt.Errorf("%w: record[%d].structSize: %v", xerrors.ErrTruncation, i, err)
		}
		v.Records[i] = RecordDef{
			NameOffset:     nameOffset,
			FileNameOffset: fileNameOffset,
			StructIndex:    structIndex,
			GUID:           id,
			InstanceIndex:  instanceIndex,
			StructSize:     structSize,
		}
	}

	// Phase 8: value pools, fixed order, each sized by its counter.
	if err := readPools(c, h, &v.pools); err != nil {
		return nil, err
	}

	// Phase 9: string tables.
	table1, err := c.bytesN(int(h.TextLength))
	if err != nil {
		return nil, fmt.Errorf("%w: string table #1: %v", xerrors.ErrTruncation, err)
	}
	v.stringTable1 = table1

	if version >= 6 && h.TextLength2 > 0 {
		table2, err := c.bytesN(int(h.TextLength2))
		if err != nil {
			return nil, fmt.Errorf("%w: string table #2: %v", xerrors.ErrTruncation, err)
		}
		v.stringTable2 = table2
	}

	// Phase 10: data region + structToDataOffsetMap.
	v.DataRegionOffset = int64(c.pos)
	v.StructToDataOffset = make(map[int32]int64, len(v.DataMappings))
	running := v.DataRegionOffset
	for _, m := range v.DataMappings {
		si := int32(m.StructIndex)
		if _, seen := v.StructToDataOffset[si]; !seen {
			v.StructToDataOffset[si] = running
		}
		if int(m.StructIndex) < len(v.StructDefs) {
			running += int64(m.StructCount) * int64(v.StructDefs[m.StructIndex].StructSize)
		}
	}

	if total := running - v.DataRegionOffset; total != int64(len(buf))-v.DataRegionOffset {
		log.Printf("dataforge: mapped data region size %d does not match remaining buffer %d; continuing", total, int64(len(buf))-v.DataRegionOffset)
	}

	// Phase 11: resolve struct/property/record names now that the tables exist.
	resolveNames(v)

	return v, nil
}

func readPools(c *cursor, h Header, p *pools) error {
	var err error

	p.Int8 = make([]int8, h.Int8Count)
	for i := range p.Int8 {
		b, e := c.u8()
		if e != nil {
			return fmt.Errorf("%w: int8 pool[%d]: %v", xerrors.ErrTruncation, i, e)
		}
		p.Int8[i] = int8(b)
	}

	p.Int16 = make([]int16, h.Int16Count)
	for i := range p.Int16 {
		b, e := c.u16()
		if e != nil {
			return fmt.Errorf("%w: int16 pool[%d]: %v", xerrors.ErrTruncation, i, e)
		}
		p.Int16[i] = int16(b)
	}

	p.Int32 = make([]int32, h.Int32Count)
	for i := range p.Int32 {
		b, e := c.i32()
		if e != nil {
			return fmt.Errorf("%w: int32 pool[%d]: %v", xerrors.ErrTruncation, i, e)
		}
		p.Int32[i] = b
	}

	p.Int64 = make([]int64, h.Int64Count)
	for i := range p.Int64 {
		b, e := c.bytesN(8)
		if e != nil {
			return fmt.Errorf("%w: int64 pool[%d]: %v", xerrors.ErrTruncation, i, e)
		}
		p.Int64[i] = int64(binary.LittleEndian.Uint64(b))
	}

	p.UInt8 = make([]uint8, h.UInt8Count)
	for i := range p.UInt8 {
		b, e := c.u8()
		if e != nil {
			return fmt.Errorf("%w: uint8 pool[%d]: %v", xerrors.ErrTruncation, i, e)
		}
		p.UInt8[i] = b
	}

	p.UInt16 = make([]uint16, h.UInt16Count)
	for i := range p.UInt16 {
		b, e := c.u16()
		if e != nil {
			return fmt.Errorf("%w: uint16 pool[%d]: %v", xerrors.ErrTruncation, i, e)
		}
		p.UInt16[i] = b
	}

	p.UInt32 = make([]uint32, h.UInt32Count)
	for i := range p.UInt32 {
		b, e := c.u32()
		if e != nil {
			return fmt.Errorf("%w: uint32 pool[%d]: %v", xerrors.ErrTruncation, i, e)
		}
		p.UInt32[i] = b
	}

	p.UInt64 = make([]uint64, h.UInt64Count)
	for i := range p.UInt64 {
		b, e := c.bytesN(8)
		if e != nil {
			return fmt.Errorf("%w: uint64 pool[%d]: %v", xerrors.ErrTruncation, i, e)
		}
		p.UInt64[i] = binary.LittleEndian.Uint64(b)
	}

	p.Bool = make([]bool, h.BoolCount)
	for i := range p.Bool {
		b, e := c.u8()
		if e != nil {
			return fmt.Errorf("%w: bool pool[%d]: %v", xerrors.ErrTruncation, i, e)
		}
		p.Bool[i] = b != 0
	}

	p.Single = make([]float32, h.SingleCount)
	for i := range p.Single {
		b, e := c.u32()
		if e != nil {
			return fmt.Errorf("%w: single pool[%d]: %v", xerrors.ErrTruncation, i, e)
		}
		p.Single[i] = float32FromBits(b)
	}

	p.Double = make([]float64, h.DoubleCount)
	for i := range p.Double {
		b, e := c.bytesN(8)
		if e != nil {
			return fmt.Errorf("%w: double pool[%d]: %v", xerrors.ErrTruncation, i, e)
		}
		p.Double[i] = float64FromBits(binary.LittleEndian.Uint64(b))
	}

	p.Guid = make([]uuid.UUID, h.GuidCount)
	for i := range p.Guid {
		b, e := c.bytesN(16)
		if e != nil {
			return fmt.Errorf("%w: guid pool[%d]: %v", xerrors.ErrTruncation, i, e)
		}
		p.Guid[i] = readGUID(b)
	}

	p.StringID = make([]uint32, h.StringIDCount)
	for i := range p.StringID {
		b, e := c.u32()
		if e != nil {
			return fmt.Errorf("%w: stringId pool[%d]: %v", xerrors.ErrTruncation, i, e)
		}
		p.StringID[i] = b
	}

	p.Locale = make([]uint32, h.LocaleCount)
	for i := range p.Locale {
		b, e := c.u32()
		if e != nil {
			return fmt.Errorf("%w: locale pool[%d]: %v", xerrors.ErrTruncation, i, e)
		}
		p.Locale[i] = b
	}

	p.Enum = make([]uint32, h.EnumCount)
	for i := range p.Enum {
		b, e := c.u32()
		if e != nil {
			return fmt.Errorf("%w: enum pool[%d]: %v", xerrors.ErrTruncation, i, e)
		}
		p.Enum[i] = b
	}

	p.StrongPtr = make([]PtrRef, h.StrongPtrCount)
	for i := range p.StrongPtr {
		ref, e := readPtrRef(c)
		if e != nil {
			return fmt.Errorf("%w: strongPtr pool[%d]: %v", xerrors.ErrTruncation, i, e)
		}
		p.StrongPtr[i] = ref
	}

	p.WeakPtr = make([]PtrRef, h.WeakPtrCount)
	for i := range p.WeakPtr {
		ref, e := readPtrRef(c)
		if e != nil {
			return fmt.Errorf("%w: weakPtr pool[%d]: %v", xerrors.ErrTruncation, i, e)
		}
		p.WeakPtr[i] = ref
	}

	p.Reference = make([]RefVal, h.ReferenceCount)
	for i := range p.Reference {
		tag, e := c.u32()
		if e != nil {
			return fmt.Errorf("%w: reference pool[%d].tag: %v", xerrors.ErrTruncation, i, e)
		}
		guidBytes, e := c.bytesN(16)
		if e != nil {
			return fmt.Errorf("%w: reference pool[%d].guid: %v", xerrors.ErrTruncation, i, e)
		}
		p.Reference[i] = RefVal{Tag: tag, GUID: readGUID(guidBytes)}
	}

	p.EnumOption = make([]uint32, h.EnumOptionCount)
	for i := range p.EnumOption {
		b, e := c.u32()
		if e != nil {
			return fmt.Errorf("%w: enumOption pool[%d]: %v", xerrors.ErrTruncation, i, e)
		}
		p.EnumOption[i] = b
	}

	return err
}

func readPtrRef(c *cursor) (PtrRef, error) {
	structIndex, err := c.u32()
	if err != nil {
		return PtrRef{}, err
	}
	variantIndex, err := c.u16()
	if err != nil {
		return PtrRef{}, err
	}
	if _, err := c.u16(); err != nil { // 2B pad
		return PtrRef{}, err
	}
	return PtrRef{StructIndex: structIndex, VariantIndex: variantIndex}, nil
}

// resolveNames fills in ResolvedName for struct defs, property defs, and
// records from the string tables. Schema identifiers come from table #2 when
// present, table #1 otherwise; filenames always come from table #1. Unknown
// offsets yield stable placeholder names so downstream matching is
// deterministic.
func resolveNames(v *View) {
	schemaTable := v.stringTable1
	if len(v.stringTable2) > 0 {
		schemaTable = v.stringTable2
	}

	for i := range v.StructDefs {
		v.StructDefs[i].ResolvedName = lookupString(schemaTable, v.StructDefs[i].NameOffset, "Struct", i)
	}
	for i := range v.PropertyDefs {
		v.PropertyDefs[i].ResolvedName = lookupString(schemaTable, int32(v.PropertyDefs[i].NameOffset), "Property", i)
	}
	for i := range v.Records {
		v.Records[i].ResolvedName = lookupString(v.stringTable1, v.Records[i].NameOffset, "Record", i)
		v.Records[i].ResolvedFileName = lookupString(v.stringTable1, v.Records[i].FileNameOffset, "File", i)
	}
}

func lookupString(table []byte, offset int32, placeholderKind string, placeholderIndex int) string {
	if offset == 0 {
		return ""
	}
	if offset < 0 || int(offset) >= len(table) {
		return fmt.Sprintf("@unresolved_%s_%d", placeholderKind, placeholderIndex)
	}
	end := bytes.IndexByte(table[offset:], 0)
	if end < 0 {
		return fmt.Sprintf("@unresolved_%s_%d", placeholderKind, placeholderIndex)
	}
	return string(table[offset : int(offset)+end])
}

// String1 resolves a byte offset directly against string table #1, used by
// the instance reader for STRING/LOCALE/ENUM property values.
func (v *View) String1(offset uint32) string {
	if offset == 0 {
		return ""
	}
	if int(offset) >= len(v.stringTable1) {
		return fmt.Sprintf("@unresolved_offset_%d", offset)
	}
	end := bytes.IndexByte(v.stringTable1[offset:], 0)
	if end < 0 {
		return fmt.Sprintf("@unresolved_offset_%d", offset)
	}
	return string(v.stringTable1[offset : int(offset)+end])
}

func float32FromBits(b uint32) float32 { return math.Float32frombits(b) }

func float64FromBits(b uint64) float64 { return math.Float64frombits(b) }
