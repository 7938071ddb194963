package archive

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"

	"github.com/ernie/starforge-extract/internal/xerrors"
)

// aesKey is the fixed 16-byte key distributed with the archive format
// (spec §4.A/§6). It is not a secret derived per-archive; every P4K uses it.
var aesKey = [16]byte{
	0x5E, 0x7A, 0x20, 0x02, 0x30, 0x2E, 0xEB, 0x1A,
	0x3B, 0xB6, 0x17, 0xC3, 0x0F, 0xDE, 0x1E, 0x47,
}

var zstdDecoderPool = sync.Pool{
	New: func() any {
		dec, _ := zstd.NewReader(nil)
		return dec
	},
}

var zstdMagic = [4]byte{0x28, 0xB5, 0x2F, 0xFD}

// ReadEntry decrypts (if needed) and decompresses a single entry, returning
// its uncompressed bytes. Failure is local to this entry; the provider
// remains usable for other reads.
func (p *Provider) ReadEntry(e *Entry) ([]byte, error) {
	raw, err := p.readRaw(e)
	if err != nil {
		return nil, err
	}

	encrypted := e.Encrypted
	if !encrypted && (e.Method == MethodZstd93 || e.Method == MethodZstd100) {
		if len(raw) < 4 || [4]byte{raw[0], raw[1], raw[2], raw[3]} != zstdMagic {
			encrypted = true
		}
	}

	if encrypted {
		raw, err = decryptAESCBC(raw, aesKey[:])
		if err != nil {
			return nil, fmt.Errorf("%w: AES decrypt %s: %v", xerrors.ErrDecryption, e.Path, err)
		}
	}

	switch e.Method {
	case MethodStore:
		return raw, nil
	case MethodDeflate:
		fr := flate.NewReader(bytes.NewReader(raw))
		defer fr.Close()
		out, err := io.ReadAll(fr)
		if err != nil {
			return nil, fmt.Errorf("%w: inflate %s: %v", xerrors.ErrDecryption, e.Path, err)
		}
		return out, nil
	case MethodZstd93, MethodZstd100:
		dec := zstdDecoderPool.Get().(*zstd.Decoder)
		defer zstdDecoderPool.Put(dec)
		if err := dec.Reset(bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("%w: zstd reset %s: %v", xerrors.ErrDecryption, e.Path, err)
		}
		out, err := io.ReadAll(dec)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd decompress %s: %v", xerrors.ErrDecryption, e.Path, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported compression method %d for %s", xerrors.ErrFormat, e.Method, e.Path)
	}
}

// readRaw opens the local header for e (resolving DataOffset lazily on
// first access) and reads exactly CompressedSize bytes.
func (p *Provider) readRaw(e *Entry) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f := p.file
	if f == nil {
		return nil, xerrors.ErrNotReady
	}

	if e.DataOffset == 0 {
		header := make([]byte, 30)
		if _, err := f.ReadAt(header, e.LocalHeaderOffset); err != nil {
			return nil, fmt.Errorf("%w: read local header for %s: %v", xerrors.ErrTruncation, e.Path, err)
		}
		if binary.LittleEndian.Uint32(header[0:4]) != sigLocalHeader {
			return nil, fmt.Errorf("%w: local header signature mismatch for %s", xerrors.ErrFormat, e.Path)
		}
		nameLen := int(binary.LittleEndian.Uint16(header[26:28]))
		extraLen := int(binary.LittleEndian.Uint16(header[28:30]))
		e.DataOffset = e.LocalHeaderOffset + 30 + int64(nameLen) + int64(extraLen)
	}

	buf := make([]byte, e.CompressedSize)
	if len(buf) > 0 {
		if _, err := f.ReadAt(buf, e.DataOffset); err != nil {
			return nil, fmt.Errorf("%w: read entry data for %s: %v", xerrors.ErrTruncation, e.Path, err)
		}
	}
	return buf, nil
}

// decryptAESCBC decrypts with a zero IV and no padding, trimming trailing
// zero bytes from the final block afterward (spec §4.A/§6).
func decryptAESCBC(ciphertext, key []byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return ciphertext, nil
	}
	if len(ciphertext)%aes.BlockSize != 0 {
		// Not a whole number of blocks: truncate to the nearest block
		// boundary rather than fail outright, since trailing slack is common
		// in P4K entries.
		ciphertext = ciphertext[:len(ciphertext)-(len(ciphertext)%aes.BlockSize)]
		if len(ciphertext) == 0 {
			return nil, fmt.Errorf("ciphertext shorter than one AES block")
		}
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, aes.BlockSize)
	mode := cipher.NewCBCDecrypter(block, iv)
	out := make([]byte, len(ciphertext))
	mode.CryptBlocks(out, ciphertext)
	return bytes.TrimRight(out, "\x00"), nil
}

// ReadEntries reads multiple entries concurrently, serialising only the
// positional file access (spec §5): "Parallel threads are permitted only
// for independent per-entry reads through the archive provider, provided
// the provider's handle access is serialised under a mutex."
func (p *Provider) ReadEntries(entries []*Entry, workers int) (map[*Entry][]byte, map[*Entry]error) {
	if workers <= 0 {
		workers = 1
	}
	results := make(map[*Entry][]byte, len(entries))
	errs := make(map[*Entry]error)
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)

	for _, e := range entries {
		e := e
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			data, err := p.ReadEntry(e)
			mu.Lock()
			if err != nil {
				errs[e] = err
			} else {
				results[e] = data
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results, errs
}
