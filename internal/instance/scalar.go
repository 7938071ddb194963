package instance

import (
	"encoding/binary"
	"math"

	"github.com/google/uuid"

	"github.com/ernie/starforge-extract/internal/dataforge"
)

func leUint32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }

// readGUIDBytes decodes the little-endian composite (u32-u16-u16 + 8 raw
// bytes) GUID layout used both for inline GUID properties and REFERENCE
// payloads.
func readGUIDBytes(b []byte) uuid.UUID {
	var out [16]byte
	binary.BigEndian.PutUint32(out[0:4], binary.LittleEndian.Uint32(b[0:4]))
	binary.BigEndian.PutUint16(out[4:6], binary.LittleEndian.Uint16(b[4:6]))
	binary.BigEndian.PutUint16(out[6:8], binary.LittleEndian.Uint16(b[6:8]))
	copy(out[8:16], b[8:16])
	var id uuid.UUID
	copy(id[:], out[:])
	return id
}

// decodeScalar decodes an inline primitive scalar of the given data type
// from exactly InlineSize(dt) bytes.
func decodeScalar(dt dataforge.DataType, b []byte) any {
	switch dt {
	case dataforge.Boolean:
		return b[0] != 0
	case dataforge.Int8:
		return int8(b[0])
	case dataforge.UInt8:
		return uint8(b[0])
	case dataforge.Int16:
		return int16(binary.LittleEndian.Uint16(b))
	case dataforge.UInt16:
		return binary.LittleEndian.Uint16(b)
	case dataforge.Int32:
		return int32(binary.LittleEndian.Uint32(b))
	case dataforge.UInt32:
		return binary.LittleEndian.Uint32(b)
	case dataforge.Single:
		return math.Float32frombits(binary.LittleEndian.Uint32(b))
	case dataforge.Int64:
		return int64(binary.LittleEndian.Uint64(b))
	case dataforge.UInt64:
		return binary.LittleEndian.Uint64(b)
	case dataforge.Double:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	default:
		return nil
	}
}
