// Package dataforge parses the central binary "DataForge" database: a
// self-describing schema (struct inheritance, typed properties), global
// value-array pools, dual string tables, and the flat data region that the
// instance reader (internal/instance) walks.
package dataforge

import "github.com/google/uuid"

// DataType is the 16-bit property type tag from the schema.
type DataType uint16

const (
	Boolean   DataType = 0x0001
	Int8      DataType = 0x0002
	Int16     DataType = 0x0003
	Int32     DataType = 0x0004
	Int64     DataType = 0x0005
	UInt8     DataType = 0x0006
	UInt16    DataType = 0x0007
	UInt32    DataType = 0x0008
	UInt64    DataType = 0x0009
	String    DataType = 0x000A
	Single    DataType = 0x000B
	Double    DataType = 0x000C
	Locale    DataType = 0x000D
	Guid      DataType = 0x000E
	Enum      DataType = 0x000F
	Class     DataType = 0x0010
	StrongPtr DataType = 0x0110
	WeakPtr   DataType = 0x0210
	Reference DataType = 0x0310
)

// noParent marks a struct with no base in the inheritance chain.
const noParent = -1

// StructDef describes one schema struct, possibly inheriting from a parent.
type StructDef struct {
	NameOffset          int32
	ParentTypeIndex     int32 // noParent (0xFFFFFFFF as int32 == -1) when root
	AttributeCount      uint16
	FirstAttributeIndex uint16
	StructSize          uint32
	ResolvedName        string
}

// HasParent reports whether the struct inherits from another struct.
func (s StructDef) HasParent() bool { return s.ParentTypeIndex != noParent }

// PropertyDef describes one field of a struct.
type PropertyDef struct {
	NameOffset      uint32
	StructIndex     uint16 // meaningful only when DataType == Class
	DataType        DataType
	ConversionType  uint16 // low byte kept; 0 = inline, nonzero = array indirection
	ResolvedName    string
}

// Inline reports whether the property is stored inline rather than as a
// count+firstIndex array reference.
func (p PropertyDef) Inline() bool { return p.ConversionType&0xFF == 0 }

// RecordDef identifies a named top-level instance: a GUID-addressable row.
type RecordDef struct {
	NameOffset       int32
	FileNameOffset   int32
	StructIndex      int32
	GUID             uuid.UUID
	InstanceIndex    uint16
	StructSize       uint32
	ResolvedName     string
	ResolvedFileName string
}

// DataMapping groups contiguous instances of one struct within the data
// region.
type DataMapping struct {
	StructCount uint32
	StructIndex uint32
}

// pools holds the flat, typed value arrays addressed by element index, in
// the fixed order mandated by §6.
type pools struct {
	Int8       []int8
	Int16      []int16
	Int32      []int32
	Int64      []int64
	UInt8      []uint8
	UInt16     []uint16
	UInt32     []uint32
	UInt64     []uint64
	Bool       []bool
	Single     []float32
	Double     []float64
	Guid       []uuid.UUID
	StringID   []uint32 // offsets into string table #1
	Locale     []uint32
	Enum       []uint32
	StrongPtr  []PtrRef
	WeakPtr    []PtrRef
	Reference  []RefVal
	EnumOption []uint32
}

// PtrRef is the decoded (structIndex, variantIndex) payload of a
// strong/weak pointer pool element.
type PtrRef struct {
	StructIndex   uint32
	VariantIndex  uint16
}

// IsNull reports the structIndex == 0xFFFFFFFF null-pointer sentinel.
func (p PtrRef) IsNull() bool { return p.StructIndex == 0xFFFFFFFF }

// RefVal is a decoded REFERENCE pool element: a tag discarded by callers and
// the target record GUID.
type RefVal struct {
	Tag  uint32
	GUID uuid.UUID
}

// Header carries the format version and the 24 pool/table size counters.
type Header struct {
	Version uint32

	StructDefCount    int32
	PropertyDefCount  int32
	EnumDefCount      int32
	DataMappingCount  int32
	RecordCount       int32

	Int8Count, Int16Count, Int32Count, Int64Count         int32
	UInt8Count, UInt16Count, UInt32Count, UInt64Count     int32
	BoolCount, SingleCount, DoubleCount                   int32
	GuidCount, StringIDCount, LocaleCount, EnumCount       int32
	StrongPtrCount, WeakPtrCount, ReferenceCount           int32
	EnumOptionCount                                        int32

	TextLength  uint32
	TextLength2 uint32 // v>=6 only
}

// View is the fully parsed, read-only result of decoding one DataForge
// buffer. Every slice is frozen after construction; the instance reader
// never mutates it.
type View struct {
	Header Header

	StructDefs   []StructDef
	PropertyDefs []PropertyDef
	DataMappings []DataMapping
	Records      []RecordDef

	pools pools

	// stringTable1 holds data strings + file names; stringTable2 (v>=6) holds
	// schema identifiers. Both are NUL-separated byte runs addressed by byte
	// offset.
	stringTable1 []byte
	stringTable2 []byte

	// StructToDataOffset maps structIndex -> absolute byte offset in Buf of
	// that struct's first instance (DataRegionOffset plus the bytes of the
	// mappings laid out before it). Absent entries mean the struct has no
	// laid-out instances.
	StructToDataOffset map[int32]int64

	// DataRegionOffset is the byte offset where the data region begins
	// within the original buffer.
	DataRegionOffset int64

	// Buf is the original flat buffer; instance reads are relative to it.
	Buf []byte
}
