package archive

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ernie/starforge-extract/internal/xerrors"
)

const (
	sigLocalHeader   = 0x04034b50
	sigCentralDir    = 0x02014b50
	sigEOCD          = 0x06054b50
	sigZip64Locator  = 0x07064b50
	sigZip64EOCD     = 0x06064b50
	zip64ExtraHeader = 0x0001

	eocdSearchWindow = 65558 // 22-byte fixed EOCD + max 65535-byte comment
	chunkSize        = 64 << 20
)

// ProgressFunc is called every progressEvery central-directory entries
// scanned, per spec §5.
type ProgressFunc func(done, total int)

// Provider opens a P4K archive read-only and serves on-demand entry reads.
// One open file handle is shared behind mu. Any number of goroutines may
// call ReadEntry concurrently: the file reads for each entry are serialised
// under mu, while decryption and decompression run outside the lock.
type Provider struct {
	mu   sync.Mutex
	file *os.File
	size int64

	byPath     map[string]*Entry
	byCaseFold map[string]*Entry

	ProgressEvery int
	OnProgress    ProgressFunc
}

// Open opens path read-only and indexes its central directory.
func Open(path string) (*Provider, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("archive: stat %s: %w", path, err)
	}

	p := &Provider{
		file:          f,
		size:          info.Size(),
		byPath:        make(map[string]*Entry),
		byCaseFold:    make(map[string]*Entry),
		ProgressEvery: 50000,
	}

	if err := p.loadAll(); err != nil {
		f.Close()
		return nil, err
	}
	return p, nil
}

// Close releases the file handle and drops the indexes.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byPath = nil
	p.byCaseFold = nil
	if p.file == nil {
		return nil
	}
	err := p.file.Close()
	p.file = nil
	return err
}

// Count returns the number of indexed entries.
func (p *Provider) Count() int { return len(p.byPath) }

// Lookup finds an entry by path, accepting either path separator and
// case-insensitive matching as a fallback.
func (p *Provider) Lookup(path string) (*Entry, bool) {
	if e, ok := p.byPath[path]; ok {
		return e, true
	}
	norm := strings.ReplaceAll(path, "/", "\\")
	if e, ok := p.byPath[norm]; ok {
		return e, true
	}
	lower := strings.ToLower(strings.ReplaceAll(path, "/", "\\"))
	if e, ok := p.byCaseFold[lower]; ok {
		return e, true
	}
	return nil, false
}

// Entries returns every indexed entry once, in no defined order. Callers
// must not mutate the returned slice's Entry pointers.
func (p *Provider) Entries() []*Entry {
	out := make([]*Entry, 0, len(p.byPath))
	seen := make(map[*Entry]bool, len(p.byPath))
	for _, e := range p.byPath {
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	return out
}

func eocdScanBuf(f *os.File, size int64) ([]byte, int64, error) {
	window := int64(eocdSearchWindow)
	if window > size {
		window = size
	}
	start := size - window
	buf := make([]byte, window)
	if _, err := f.ReadAt(buf, start); err != nil {
		return nil, 0, fmt.Errorf("%w: read EOCD window: %v", xerrors.ErrFormat, err)
	}
	idx := bytes.LastIndex(buf, []byte{0x50, 0x4b, 0x05, 0x06})
	if idx < 0 {
		return nil, 0, fmt.Errorf("%w: end-of-central-directory signature not found", xerrors.ErrFormat)
	}
	return buf[idx:], start + int64(idx), nil
}

// loadAll scans the central directory, streaming the underlying file in
// chunkSize pieces (per spec §4.A) rather than one large read, and
// populates the path and case-folded lookup maps.
func (p *Provider) loadAll() error {
	eocd, eocdOffset, err := eocdScanBuf(p.file, p.size)
	if err != nil {
		return err
	}
	if len(eocd) < 22 {
		return fmt.Errorf("%w: EOCD record truncated", xerrors.ErrFormat)
	}

	recordsTotal := uint64(binary.LittleEndian.Uint16(eocd[10:12]))
	centralSize := uint64(binary.LittleEndian.Uint32(eocd[12:16]))
	centralOffset := uint64(binary.LittleEndian.Uint32(eocd[16:20]))

	if recordsTotal == 0xFFFF || centralOffset == 0xFFFFFFFF {
		locator := make([]byte, 20)
		locOffset := eocdOffset - 20
		if locOffset < 0 {
			return fmt.Errorf("%w: zip64 locator out of range", xerrors.ErrFormat)
		}
		if _, err := p.file.ReadAt(locator, locOffset); err != nil {
			return fmt.Errorf("%w: read zip64 locator: %v", xerrors.ErrFormat, err)
		}
		if binary.LittleEndian.Uint32(locator[0:4]) != sigZip64Locator {
			return fmt.Errorf("%w: zip64 locator signature mismatch", xerrors.ErrFormat)
		}
		eocd64Offset := int64(binary.LittleEndian.Uint64(locator[8:16]))

		eocd64 := make([]byte, 56)
		if _, err := p.file.ReadAt(eocd64, eocd64Offset); err != nil {
			return fmt.Errorf("%w: read zip64 EOCD: %v", xerrors.ErrFormat, err)
		}
		if binary.LittleEndian.Uint32(eocd64[0:4]) != sigZip64EOCD {
			return fmt.Errorf("%w: zip64 EOCD signature mismatch", xerrors.ErrFormat)
		}
		recordsTotal = binary.LittleEndian.Uint64(eocd64[32:40])
		centralSize = binary.LittleEndian.Uint64(eocd64[40:48])
		centralOffset = binary.LittleEndian.Uint64(eocd64[48:56])
	}

	dir, err := p.readChunked(int64(centralOffset), int64(centralSize))
	if err != nil {
		return err
	}

	done := 0
	pos := 0
	for pos < len(dir) {
		if pos+46 > len(dir) {
			return fmt.Errorf("%w: truncated central directory header at %d", xerrors.ErrTruncation, pos)
		}
		if binary.LittleEndian.Uint32(dir[pos:pos+4]) != sigCentralDir {
			return fmt.Errorf("%w: central directory signature mismatch at %d", xerrors.ErrFormat, pos)
		}

		method := binary.LittleEndian.Uint16(dir[pos+10 : pos+12])
		compSize := uint64(binary.LittleEndian.Uint32(dir[pos+20 : pos+24]))
		uncompSize := uint64(binary.LittleEndian.Uint32(dir[pos+24 : pos+28]))
		nameLen := int(binary.LittleEndian.Uint16(dir[pos+28 : pos+30]))
		extraLen := int(binary.LittleEndian.Uint16(dir[pos+30 : pos+32]))
		commentLen := int(binary.LittleEndian.Uint16(dir[pos+32 : pos+34]))
		localHeaderOffset := uint64(binary.LittleEndian.Uint32(dir[pos+42 : pos+46]))

		nameStart := pos + 46
		if nameStart+nameLen+extraLen+commentLen > len(dir) {
			return fmt.Errorf("%w: central directory record overruns buffer", xerrors.ErrTruncation)
		}
		name := string(dir[nameStart : nameStart+nameLen])
		extra := dir[nameStart+nameLen : nameStart+nameLen+extraLen]

		if uncompSize == 0xFFFFFFFF || compSize == 0xFFFFFFFF || localHeaderOffset == 0xFFFFFFFF {
			u, c, l, ok := parseZip64Extra(extra, uncompSize == 0xFFFFFFFF, compSize == 0xFFFFFFFF, localHeaderOffset == 0xFFFFFFFF)
			if ok {
				uncompSize, compSize, localHeaderOffset = u, c, l
			}
		}

		entry := &Entry{
			Path:              name,
			UncompressedSize:  int64(uncompSize),
			CompressedSize:    int64(compSize),
			Method:            CompressionMethod(method),
			IsDirectory:       strings.HasSuffix(name, "/") || strings.HasSuffix(name, "\\"),
			Encrypted:         entryEncryptedFlag(extra),
			LocalHeaderOffset: int64(localHeaderOffset),
		}
		p.byPath[name] = entry
		p.byCaseFold[strings.ToLower(strings.ReplaceAll(name, "/", "\\"))] = entry

		pos = nameStart + nameLen + extraLen + commentLen
		done++
		if p.OnProgress != nil && p.ProgressEvery > 0 && done%p.ProgressEvery == 0 {
			p.OnProgress(done, int(recordsTotal))
		}
	}

	if p.OnProgress != nil {
		p.OnProgress(done, int(recordsTotal))
	}
	return nil
}

// readChunked reads length bytes starting at offset in chunkSize pieces.
func (p *Provider) readChunked(offset, length int64) ([]byte, error) {
	buf := make([]byte, length)
	var read int64
	for read < length {
		n := chunkSize
		if remaining := length - read; remaining < int64(n) {
			n = int(remaining)
		}
		if _, err := p.file.ReadAt(buf[read:read+int64(n)], offset+read); err != nil {
			return nil, fmt.Errorf("%w: read central directory chunk at %d: %v", xerrors.ErrTruncation, offset+read, err)
		}
		read += int64(n)
	}
	return buf, nil
}

// parseZip64Extra decodes the ZIP64 extra field (header id 0x0001), whose
// fields appear in order {uncompressedSize?, compressedSize?,
// localHeaderOffset?} only when their 32-bit slot read 0xFFFFFFFF.
func parseZip64Extra(extra []byte, wantUncomp, wantComp, wantLocal bool) (uncomp, comp, local uint64, ok bool) {
	pos := 0
	for pos+4 <= len(extra) {
		id := binary.LittleEndian.Uint16(extra[pos:])
		size := int(binary.LittleEndian.Uint16(extra[pos+2:]))
		if pos+4+size > len(extra) {
			return 0, 0, 0, false
		}
		if id == zip64ExtraHeader {
			body := extra[pos+4 : pos+4+size]
			off := 0
			if wantUncomp && off+8 <= len(body) {
				uncomp = binary.LittleEndian.Uint64(body[off:])
				off += 8
			}
			if wantComp && off+8 <= len(body) {
				comp = binary.LittleEndian.Uint64(body[off:])
				off += 8
			}
			if wantLocal && off+8 <= len(body) {
				local = binary.LittleEndian.Uint64(body[off:])
				off += 8
			}
			return uncomp, comp, local, true
		}
		pos += 4 + size
	}
	return 0, 0, 0, false
}

// entryEncryptedFlag reads the AES-wrapped indicator bit at extra-field
// offset 168 (requires extra length >= 169).
func entryEncryptedFlag(extra []byte) bool {
	if len(extra) < 169 {
		return false
	}
	return extra[168] != 0
}
