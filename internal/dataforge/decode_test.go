package dataforge

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/google/uuid"
)

// buildFixture assembles a minimal, version-6 DataForge buffer by hand: one
// struct "Foo" with one inline String property "Bar", one data mapping, and
// one record "MyRecord" pointing at struct 0.
func buildFixture(t *testing.T) (buf []byte, recordGUID uuid.UUID) {
	t.Helper()

	u16 := func(v uint16) []byte { b := make([]byte, 2); binary.LittleEndian.PutUint16(b, v); return b }
	u32 := func(v uint32) []byte { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, v); return b }
	i32 := func(v int32) []byte { return u32(uint32(v)) }

	recordGUID = uuid.MustParse("01020304-0506-0708-090a-0b0c0d0e0f10")
	guidWire := guidToWire(recordGUID)

	var b bytes.Buffer
	b.WriteString("CDFB")        // signature, never inspected beyond 4 bytes skipped
	b.Write(u32(6))              // version
	b.Write(make([]byte, 8))     // reserved

	counters := make([]int32, 24)
	counters[0] = 1 // StructDefCount
	counters[1] = 1 // PropertyDefCount
	counters[3] = 1 // DataMappingCount
	counters[4] = 1 // RecordCount
	for _, c := range counters {
		b.Write(i32(c))
	}

	// Offset 0 of either string table decodes as the empty string, so both
	// tables start with a lone NUL.
	schema := []byte{0}
	addSchema := func(s string) uint32 {
		off := uint32(len(schema))
		schema = append(schema, []byte(s)...)
		schema = append(schema, 0)
		return off
	}
	fooOff := addSchema("Foo")
	barOff := addSchema("Bar")

	text1 := []byte{0}
	addText1 := func(s string) int32 {
		off := int32(len(text1))
		text1 = append(text1, []byte(s)...)
		text1 = append(text1, 0)
		return off
	}
	recNameOff := addText1("MyRecord")
	recFileOff := addText1("test/path/MyRecord.xml")

	b.Write(u32(uint32(len(text1)))) // textLength
	b.Write(u32(uint32(len(schema)))) // textLength2

	// structDefs: one struct, no parent, one attribute.
	b.Write(i32(int32(fooOff)))
	b.Write(i32(noParent))
	b.Write(u16(1)) // attributeCount
	b.Write(u16(0)) // firstAttributeIndex
	b.Write(u32(4)) // structSize

	// propertyDefs: one inline String property.
	b.Write(u32(barOff))
	b.Write(u16(0))             // structIndex
	b.Write(u16(uint16(String))) // dataType
	b.Write(u16(0))             // conversionType (inline)
	b.Write(u16(0))             // padding

	// no enum defs to skip

	// dataMappings (version >= 5: two u32 fields)
	b.Write(u32(1)) // structCount
	b.Write(u32(0)) // structIndex

	// records
	b.Write(i32(recNameOff))
	b.Write(i32(recFileOff))
	b.Write(i32(0)) // structIndex
	b.Write(guidWire)
	b.Write(u16(0)) // instanceIndex
	b.Write(u32(4)) // structSize

	// no pool values: every pool counter is 0

	b.Write(text1)
	b.Write(schema)

	return b.Bytes(), recordGUID
}

// guidToWire encodes id using the same u32/u16/u16-little-endian-plus-raw-
// tail layout that readGUID decodes.
func guidToWire(id uuid.UUID) []byte {
	out := make([]byte, 16)
	binary.LittleEndian.PutUint32(out[0:4], binary.BigEndian.Uint32(id[0:4]))
	binary.LittleEndian.PutUint16(out[4:6], binary.BigEndian.Uint16(id[4:6]))
	binary.LittleEndian.PutUint16(out[6:8], binary.BigEndian.Uint16(id[6:8]))
	copy(out[8:16], id[8:16])
	return out
}

func TestParse_ResolvesSchemaAndRecordNames(t *testing.T) {
	buf, wantGUID := buildFixture(t)

	view, err := Parse(buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(view.StructDefs) != 1 || view.StructDefs[0].ResolvedName != "Foo" {
		t.Fatalf("StructDefs = %+v, want one struct named Foo", view.StructDefs)
	}
	if view.StructDefs[0].HasParent() {
		t.Error("root struct should report HasParent() == false")
	}

	if len(view.PropertyDefs) != 1 || view.PropertyDefs[0].ResolvedName != "Bar" {
		t.Fatalf("PropertyDefs = %+v, want one property named Bar", view.PropertyDefs)
	}
	if !view.PropertyDefs[0].Inline() {
		t.Error("property with conversionType 0 should be Inline()")
	}
	if view.PropertyDefs[0].DataType != String {
		t.Errorf("DataType = %v, want String", view.PropertyDefs[0].DataType)
	}

	if len(view.Records) != 1 {
		t.Fatalf("len(Records) = %d, want 1", len(view.Records))
	}
	rec := view.Records[0]
	if rec.ResolvedName != "MyRecord" {
		t.Errorf("rec.ResolvedName = %q, want MyRecord", rec.ResolvedName)
	}
	if rec.ResolvedFileName != "test/path/MyRecord.xml" {
		t.Errorf("rec.ResolvedFileName = %q, want test/path/MyRecord.xml", rec.ResolvedFileName)
	}
	if rec.GUID != wantGUID {
		t.Errorf("rec.GUID = %s, want %s", rec.GUID, wantGUID)
	}

	if off, ok := view.StructToDataOffset[0]; !ok || off != view.DataRegionOffset {
		t.Errorf("StructToDataOffset[0] = (%d, %v), want (%d, true)", off, ok, view.DataRegionOffset)
	}

	idx, ok := view.FindStructIndexByName("Foo")
	if !ok || idx != 0 {
		t.Errorf("FindStructIndexByName(Foo) = (%d, %v), want (0, true)", idx, ok)
	}

	chain := view.AncestorChain(0)
	if len(chain) != 1 || chain[0] != 0 {
		t.Errorf("AncestorChain(0) = %v, want [0]", chain)
	}
}

func TestParse_TruncatedBufferErrors(t *testing.T) {
	if _, err := Parse([]byte{1, 2, 3}); err == nil {
		t.Fatal("Parse of a too-short buffer should return an error")
	}
}

func TestInlineSize(t *testing.T) {
	cases := []struct {
		dt   DataType
		want int
	}{
		{Boolean, 1},
		{Int16, 2},
		{Int32, 4},
		{String, 4},
		{Double, 8},
		{Guid, 16},
		{StrongPtr, 8},
		{Reference, 20},
	}
	for _, c := range cases {
		got, ok := InlineSize(c.dt)
		if !ok || got != c.want {
			t.Errorf("InlineSize(%v) = (%d, %v), want (%d, true)", c.dt, got, ok, c.want)
		}
	}
	if _, ok := InlineSize(Class); ok {
		t.Error("InlineSize(Class) should report ok=false: nested struct size isn't known from the tag alone")
	}
}

func TestPtrRef_IsNull(t *testing.T) {
	if !(PtrRef{StructIndex: 0xFFFFFFFF}).IsNull() {
		t.Error("PtrRef with structIndex 0xFFFFFFFF should report IsNull() == true")
	}
	if (PtrRef{StructIndex: 0}).IsNull() {
		t.Error("PtrRef with structIndex 0 should report IsNull() == false")
	}
}
