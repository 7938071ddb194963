package archive

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
)

func TestDecryptAESCBC_RoundTrip(t *testing.T) {
	plain := []byte("sixteen byte blk")
	block, err := aes.NewCipher(aesKey[:])
	if err != nil {
		t.Fatalf("aes.NewCipher: %v", err)
	}
	iv := make([]byte, aes.BlockSize)
	cipherText := make([]byte, len(plain))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(cipherText, plain)

	out, err := decryptAESCBC(cipherText, aesKey[:])
	if err != nil {
		t.Fatalf("decryptAESCBC: %v", err)
	}
	if string(out) != string(plain) {
		t.Errorf("decryptAESCBC = %q, want %q", out, plain)
	}
}

func TestDecryptAESCBC_EmptyInput(t *testing.T) {
	out, err := decryptAESCBC(nil, aesKey[:])
	if err != nil || len(out) != 0 {
		t.Errorf("decryptAESCBC(nil) = (%v, %v), want (empty, nil)", out, err)
	}
}

func TestDecryptAESCBC_TruncatesPartialBlock(t *testing.T) {
	if _, err := decryptAESCBC([]byte{1, 2, 3}, aesKey[:]); err == nil {
		t.Fatal("decryptAESCBC with less than one block should error")
	}
}

// writeRawEntryZip writes a single-entry, non-ZIP64, unencrypted ZIP whose
// entry data is exactly rawData (already compressed by the caller) and whose
// compression method is method.
func writeRawEntryZip(t *testing.T, name string, method CompressionMethod, rawData []byte, uncompSize int) string {
	t.Helper()

	u16 := func(v uint16) []byte { b := make([]byte, 2); binary.LittleEndian.PutUint16(b, v); return b }
	u32 := func(v uint32) []byte { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, v); return b }
	nameBytes := []byte(name)

	var buf []byte
	buf = append(buf, u32(sigLocalHeader)...)
	buf = append(buf, u16(20)...)
	buf = append(buf, u16(0)...)
	buf = append(buf, u16(uint16(method))...)
	buf = append(buf, u16(0)...)
	buf = append(buf, u16(0)...)
	buf = append(buf, u32(0)...)
	buf = append(buf, u32(uint32(len(rawData)))...)
	buf = append(buf, u32(uint32(uncompSize))...)
	buf = append(buf, u16(uint16(len(nameBytes)))...)
	buf = append(buf, u16(0)...)
	buf = append(buf, nameBytes...)
	buf = append(buf, rawData...)

	centralOffset := uint32(len(buf))
	buf = append(buf, u32(sigCentralDir)...)
	buf = append(buf, u16(0)...)
	buf = append(buf, u16(20)...)
	buf = append(buf, u16(0)...)
	buf = append(buf, u16(uint16(method))...)
	buf = append(buf, u16(0)...)
	buf = append(buf, u16(0)...)
	buf = append(buf, u32(0)...)
	buf = append(buf, u32(uint32(len(rawData)))...)
	buf = append(buf, u32(uint32(uncompSize))...)
	buf = append(buf, u16(uint16(len(nameBytes)))...)
	buf = append(buf, u16(0)...)
	buf = append(buf, u16(0)...)
	buf = append(buf, u16(0)...)
	buf = append(buf, u16(0)...)
	buf = append(buf, u32(0)...)
	buf = append(buf, u32(0)...)
	buf = append(buf, nameBytes...)
	centralSize := uint32(len(buf)) - centralOffset

	buf = append(buf, u32(sigEOCD)...)
	buf = append(buf, u16(0)...)
	buf = append(buf, u16(0)...)
	buf = append(buf, u16(1)...)
	buf = append(buf, u16(1)...)
	buf = append(buf, u32(centralSize)...)
	buf = append(buf, u32(centralOffset)...)
	buf = append(buf, u16(0)...)

	path := filepath.Join(t.TempDir(), "fixture.p4k")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("writing fixture zip: %v", err)
	}
	return path
}

func TestReadEntry_Deflate(t *testing.T) {
	plain := []byte("the quick brown fox jumps over the lazy dog, repeated for compressibility: the quick brown fox jumps over the lazy dog")

	var compressed bytes.Buffer
	fw, err := flate.NewWriter(&compressed, flate.DefaultCompression)
	if err != nil {
		t.Fatalf("flate.NewWriter: %v", err)
	}
	if _, err := fw.Write(plain); err != nil {
		t.Fatalf("flate write: %v", err)
	}
	if err := fw.Close(); err != nil {
		t.Fatalf("flate close: %v", err)
	}

	path := writeRawEntryZip(t, "Data\\Deflated.bin", MethodDeflate, compressed.Bytes(), len(plain))
	p, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	entry, ok := p.Lookup("Data\\Deflated.bin")
	if !ok {
		t.Fatal("entry not indexed")
	}
	out, err := p.ReadEntry(entry)
	if err != nil {
		t.Fatalf("ReadEntry: %v", err)
	}
	if !bytes.Equal(out, plain) {
		t.Errorf("ReadEntry = %q, want %q", out, plain)
	}
}

func TestReadEntry_Zstd(t *testing.T) {
	plain := []byte("zstd-compressed payload for the extractor test suite")

	var compressed bytes.Buffer
	zw, err := zstd.NewWriter(&compressed)
	if err != nil {
		t.Fatalf("zstd.NewWriter: %v", err)
	}
	if _, err := zw.Write(plain); err != nil {
		t.Fatalf("zstd write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zstd close: %v", err)
	}

	path := writeRawEntryZip(t, "Data\\Zstd.bin", MethodZstd100, compressed.Bytes(), len(plain))
	p, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	entry, ok := p.Lookup("Data\\Zstd.bin")
	if !ok {
		t.Fatal("entry not indexed")
	}
	out, err := p.ReadEntry(entry)
	if err != nil {
		t.Fatalf("ReadEntry: %v", err)
	}
	if !bytes.Equal(out, plain) {
		t.Errorf("ReadEntry = %q, want %q", out, plain)
	}
}
