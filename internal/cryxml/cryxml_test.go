package cryxml

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buildFixture assembles a minimal, two-node CryXmlB buffer by hand: a root
// <Parts> node with one child <Part name="Body" damageMax="50"/>.
func buildFixture(t *testing.T) []byte {
	t.Helper()

	pool := []byte{}
	addStr := func(s string) uint32 {
		off := uint32(len(pool))
		pool = append(pool, []byte(s)...)
		pool = append(pool, 0)
		return off
	}

	partsOff := addStr("Parts")
	partOff := addStr("Part")
	nameKeyOff := addStr("name")
	bodyValOff := addStr("Body")
	damageKeyOff := addStr("damageMax")
	damageValOff := addStr("50")
	emptyOff := addStr("")

	u32 := func(v uint32) []byte {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, v)
		return b
	}

	var nodeTable bytes.Buffer
	// node 0: root "Parts", 0 attrs, 1 child
	nodeTable.Write(u32(partsOff))
	nodeTable.Write(u32(emptyOff))
	nodeTable.Write(u32(0)) // attrCount
	nodeTable.Write(u32(1)) // childCount
	nodeTable.Write(u32(0)) // firstAttribute
	nodeTable.Write(u32(0)) // firstChild
	nodeTable.Write(u32(0)) // parent
	// node 1: "Part", 2 attrs, 0 children
	nodeTable.Write(u32(partOff))
	nodeTable.Write(u32(emptyOff))
	nodeTable.Write(u32(2)) // attrCount
	nodeTable.Write(u32(0)) // childCount
	nodeTable.Write(u32(0)) // firstAttribute
	nodeTable.Write(u32(0)) // firstChild
	nodeTable.Write(u32(0)) // parent

	var attrTable bytes.Buffer
	attrTable.Write(u32(nameKeyOff))
	attrTable.Write(u32(bodyValOff))
	attrTable.Write(u32(damageKeyOff))
	attrTable.Write(u32(damageValOff))

	var childTable bytes.Buffer
	childTable.Write(u32(1)) // root's only child is node index 1

	const headerSize = 8 + 44
	nodeTableOffset := uint32(headerSize)
	attrTableOffset := nodeTableOffset + uint32(nodeTable.Len())
	childTableOffset := attrTableOffset + uint32(attrTable.Len())
	stringTableOffset := childTableOffset + uint32(childTable.Len())

	var buf bytes.Buffer
	buf.WriteString(magic)
	buf.Write(u32(nodeTableOffset))
	buf.Write(u32(2))
	buf.Write(u32(2))
	buf.Write(u32(attrTableOffset))
	buf.Write(u32(2))
	buf.Write(u32(2))
	buf.Write(u32(childTableOffset))
	buf.Write(u32(1))
	buf.Write(u32(1))
	buf.Write(u32(stringTableOffset))
	buf.Write(u32(uint32(len(pool))))
	buf.Write(nodeTable.Bytes())
	buf.Write(attrTable.Bytes())
	buf.Write(childTable.Bytes())
	buf.Write(pool)

	return buf.Bytes()
}

func TestDecode_TwoNodeTree(t *testing.T) {
	root, err := Decode(buildFixture(t))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if root == nil {
		t.Fatal("Decode returned nil root for a valid CryXmlB buffer")
	}
	if root.Tag != "Parts" {
		t.Errorf("root.Tag = %q, want Parts", root.Tag)
	}
	if len(root.Children) != 1 {
		t.Fatalf("len(root.Children) = %d, want 1", len(root.Children))
	}

	part := root.Children[0]
	if part.Tag != "Part" {
		t.Errorf("part.Tag = %q, want Part", part.Tag)
	}
	if part.Attributes["name"] != "Body" {
		t.Errorf("part.Attributes[name] = %q, want Body", part.Attributes["name"])
	}
	if part.Attributes["damageMax"] != "50" {
		t.Errorf("part.Attributes[damageMax] = %q, want 50", part.Attributes["damageMax"])
	}

	if root.Find("Part") != part {
		t.Error("root.Find(\"Part\") did not return the child node")
	}
	if len(root.FindAll("Part")) != 1 {
		t.Errorf("root.FindAll(\"Part\") returned %d nodes, want 1", len(root.FindAll("Part")))
	}
}

func TestDecode_NonCryXmlBReturnsNilNil(t *testing.T) {
	root, err := Decode([]byte("<Parts><Part/></Parts>"))
	if err != nil {
		t.Fatalf("Decode of plain-text XML returned an error: %v", err)
	}
	if root != nil {
		t.Fatal("Decode of plain-text XML should return nil root")
	}
}

func TestDecode_TruncatedBufferErrors(t *testing.T) {
	if _, err := Decode([]byte(magic)); err == nil {
		t.Fatal("Decode of a truncated buffer should error, not panic or silently succeed")
	}
}
