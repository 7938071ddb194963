// Package archive implements the P4K archive provider (spec §4.A): a
// ZIP64-aware central-directory scanner over an AES-128-CBC + Zstd/Deflate
// encrypted archive, with lazy, on-demand entry decryption and
// decompression. Grounded on assets/pk3.go's case-folded lookup-map shape
// and other_examples/9370e4a5_elliotnunn-BeHierarchic's bit-exact ZIP64
// EOCD/locator offsets.
package archive

// CompressionMethod is the on-disk compression method byte (spec §3/§6).
type CompressionMethod uint16

const (
	MethodStore   CompressionMethod = 0
	MethodDeflate CompressionMethod = 8
	MethodZstd93  CompressionMethod = 93
	MethodZstd100 CompressionMethod = 100
)

// Entry is one immutable directory record, keyed by its original path.
// Lookups accept both '/' and '\\' path separators and are case-folded.
type Entry struct {
	Path               string
	UncompressedSize   int64
	CompressedSize     int64
	Method             CompressionMethod
	IsDirectory        bool
	Encrypted          bool
	DataOffset         int64 // filled in lazily from the local header on first read
	LocalHeaderOffset  int64
}
