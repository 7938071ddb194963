package archive

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// writeFixtureZip builds a minimal, single-entry, non-ZIP64, unencrypted
// Store-method ZIP on disk and returns its path.
func writeFixtureZip(t *testing.T, name string, content []byte) string {
	t.Helper()

	u16 := func(v uint16) []byte { b := make([]byte, 2); binary.LittleEndian.PutUint16(b, v); return b }
	u32 := func(v uint32) []byte { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, v); return b }

	nameBytes := []byte(name)
	localHeaderOffset := uint32(0)

	var buf []byte
	// Local file header.
	buf = append(buf, u32(sigLocalHeader)...)
	buf = append(buf, u16(20)...) // version needed
	buf = append(buf, u16(0)...)  // flags
	buf = append(buf, u16(uint16(MethodStore))...)
	buf = append(buf, u16(0)...) // mod time
	buf = append(buf, u16(0)...) // mod date
	buf = append(buf, u32(0)...) // crc32, unchecked by the reader
	buf = append(buf, u32(uint32(len(content)))...)
	buf = append(buf, u32(uint32(len(content)))...)
	buf = append(buf, u16(uint16(len(nameBytes)))...)
	buf = append(buf, u16(0)...) // extra length
	buf = append(buf, nameBytes...)
	buf = append(buf, content...)

	centralOffset := uint32(len(buf))
	// Central directory header.
	buf = append(buf, u32(sigCentralDir)...)
	buf = append(buf, u16(0)...) // version made by
	buf = append(buf, u16(20)...) // version needed
	buf = append(buf, u16(0)...) // flags
	buf = append(buf, u16(uint16(MethodStore))...)
	buf = append(buf, u16(0)...) // mod time
	buf = append(buf, u16(0)...) // mod date
	buf = append(buf, u32(0)...) // crc32
	buf = append(buf, u32(uint32(len(content)))...)
	buf = append(buf, u32(uint32(len(content)))...)
	buf = append(buf, u16(uint16(len(nameBytes)))...)
	buf = append(buf, u16(0)...) // extra length
	buf = append(buf, u16(0)...) // comment length
	buf = append(buf, u16(0)...) // disk number start
	buf = append(buf, u16(0)...) // internal attrs
	buf = append(buf, u32(0)...) // external attrs
	buf = append(buf, u32(localHeaderOffset)...)
	buf = append(buf, nameBytes...)

	centralSize := uint32(len(buf)) - centralOffset

	// End of central directory record.
	buf = append(buf, u32(sigEOCD)...)
	buf = append(buf, u16(0)...) // disk number
	buf = append(buf, u16(0)...) // disk with central dir start
	buf = append(buf, u16(1)...) // records on this disk
	buf = append(buf, u16(1)...) // records total
	buf = append(buf, u32(centralSize)...)
	buf = append(buf, u32(centralOffset)...)
	buf = append(buf, u16(0)...) // comment length

	path := filepath.Join(t.TempDir(), "fixture.p4k")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("writing fixture zip: %v", err)
	}
	return path
}

func TestOpen_IndexesEntryAndReadsContent(t *testing.T) {
	path := writeFixtureZip(t, "Data\\Test\\Hello.txt", []byte("hello world"))

	p, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	if p.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", p.Count())
	}

	entry, ok := p.Lookup("Data\\Test\\Hello.txt")
	if !ok {
		t.Fatal("Lookup of exact path failed")
	}
	data, err := p.ReadEntry(entry)
	if err != nil {
		t.Fatalf("ReadEntry: %v", err)
	}
	if string(data) != "hello world" {
		t.Errorf("ReadEntry content = %q, want %q", data, "hello world")
	}
}

func TestLookup_NormalizesSeparatorAndCase(t *testing.T) {
	path := writeFixtureZip(t, "Data\\Test\\Hello.txt", []byte("x"))
	p, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	if _, ok := p.Lookup("Data/Test/Hello.txt"); !ok {
		t.Error("Lookup should accept '/' as an alternate path separator")
	}
	if _, ok := p.Lookup("data/test/hello.txt"); !ok {
		t.Error("Lookup should fall back to case-insensitive matching")
	}
	if _, ok := p.Lookup("Data\\Test\\Missing.txt"); ok {
		t.Error("Lookup of a nonexistent path should fail")
	}
}

func TestOpen_MissingFileErrors(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "does-not-exist.p4k")); err == nil {
		t.Fatal("Open of a nonexistent file should return an error")
	}
}

func TestEntries_ReturnsEachEntryOnce(t *testing.T) {
	path := writeFixtureZip(t, "Data\\Test\\Hello.txt", []byte("x"))
	p, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	entries := p.Entries()
	if len(entries) != 1 {
		t.Fatalf("len(Entries()) = %d, want 1", len(entries))
	}
	if entries[0].Path != "Data\\Test\\Hello.txt" {
		t.Errorf("Entries()[0].Path = %q, want Data\\Test\\Hello.txt", entries[0].Path)
	}
}
