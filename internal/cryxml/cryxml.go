// Package cryxml decodes CryXmlB, the binary XML format used by sidecar
// vehicle XMLs (spec §4.B). The layout mirrors the lump-table-of-offsets
// pattern in a Q3 BSP file (fixed header, arrays of fixed-size records read
// with binary.LittleEndian at computed offsets) generalised to CryXmlB's
// four tables: nodes, attribute pairs, child index list, string pool.
package cryxml

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const magic = "CryXmlB\x00"

const nodeRecordSize = 4 + 4 + 4 + 4 + 4 + 4 + 4 // tag,content,attrCount,childCount,firstAttr,firstChild,parent

// Node is one element of the decoded tree.
type Node struct {
	Tag        string
	Attributes map[string]string
	Children   []*Node
	Content    string
}

// Decode parses a CryXmlB buffer into its root Node. It returns (nil, nil)
// when buf does not start with the CryXmlB magic, so callers can fall back
// to a plain-text XML parser; any other malformed input is a hard error.
func Decode(buf []byte) (*Node, error) {
	if len(buf) < len(magic) || string(buf[:len(magic)]) != magic {
		return nil, nil
	}

	r := &reader{buf: buf, pos: len(magic)}

	// Header: table offsets + counts, all u32 LE, in a version-dependent but
	// stable layout: nodeTableOffset, nodeTableCount, nodeTableCount2,
	// attrTableOffset, attrTableCount, attrTableCount2, childTableOffset,
	// childTableCount, childTableCount2, stringTableOffset, stringTableLength.
	nodeOffset, err := r.u32At(r.pos)
	if err != nil {
		return nil, fmt.Errorf("cryxml: read header: %w", err)
	}
	nodeCount, err := r.u32At(r.pos + 4)
	if err != nil {
		return nil, fmt.Errorf("cryxml: read header: %w", err)
	}
	r.pos += 12 // skip nodeTableOffset, nodeTableCount, duplicate count
	attrOffset, err := r.u32At(r.pos)
	if err != nil {
		return nil, fmt.Errorf("cryxml: read header: %w", err)
	}
	r.pos += 12
	childOffset, err := r.u32At(r.pos)
	if err != nil {
		return nil, fmt.Errorf("cryxml: read header: %w", err)
	}
	r.pos += 12
	stringOffset, err := r.u32At(r.pos)
	if err != nil {
		return nil, fmt.Errorf("cryxml: read header: %w", err)
	}
	stringLength, err := r.u32At(r.pos + 4)
	if err != nil {
		return nil, fmt.Errorf("cryxml: read header: %w", err)
	}

	if int(stringOffset)+int(stringLength) > len(buf) {
		return nil, fmt.Errorf("cryxml: string pool out of range")
	}
	stringPool := buf[stringOffset : stringOffset+stringLength]

	nodes := make([]rawNode, nodeCount)
	for i := uint32(0); i < nodeCount; i++ {
		base := int(nodeOffset) + int(i)*nodeRecordSize
		n, err := readRawNode(buf, base)
		if err != nil {
			return nil, fmt.Errorf("cryxml: read node %d: %w", i, err)
		}
		nodes[i] = n
	}

	root, err := buildTree(nodes, 0, buf, int(attrOffset), int(childOffset), stringPool, make(map[int]bool))
	if err != nil {
		return nil, err
	}
	return root, nil
}

type rawNode struct {
	tagOffset, contentOffset         uint32
	attributeCount, childCount       uint32
	firstAttributeIndex, firstChild uint32
	parentIndex                     uint32
}

func readRawNode(buf []byte, base int) (rawNode, error) {
	if base+nodeRecordSize > len(buf) {
		return rawNode{}, fmt.Errorf("node record out of range")
	}
	u32 := func(off int) uint32 { return binary.LittleEndian.Uint32(buf[base+off:]) }
	return rawNode{
		tagOffset:           u32(0),
		contentOffset:       u32(4),
		attributeCount:      u32(8),
		childCount:          u32(12),
		firstAttributeIndex: u32(16),
		firstChild:          u32(20),
		parentIndex:         u32(24),
	}, nil
}

// buildTree recurses over the child-index list. visited guards against a
// malformed child-index cycle; CryXmlB trees are acyclic by construction, so
// a node index that reappears among its own ancestors is a hard error. The
// entry is removed on exit, so a node reached again through a different
// parent is decoded again rather than rejected.
func buildTree(nodes []rawNode, i int, buf []byte, attrOffset, childOffset int, strings []byte, visited map[int]bool) (*Node, error) {
	if i < 0 || i >= len(nodes) {
		return nil, fmt.Errorf("cryxml: node index %d out of range", i)
	}
	if visited[i] {
		return nil, fmt.Errorf("cryxml: cycle detected at node %d", i)
	}
	visited[i] = true
	defer delete(visited, i)

	rn := nodes[i]

	node := &Node{
		Tag:        lookupStr(strings, rn.tagOffset),
		Content:    lookupStr(strings, rn.contentOffset),
		Attributes: make(map[string]string, rn.attributeCount),
	}

	for a := uint32(0); a < rn.attributeCount; a++ {
		base := attrOffset + int(rn.firstAttributeIndex+a)*8
		if base+8 > len(buf) {
			return nil, fmt.Errorf("cryxml: attribute pair out of range")
		}
		keyOffset := binary.LittleEndian.Uint32(buf[base:])
		valOffset := binary.LittleEndian.Uint32(buf[base+4:])
		node.Attributes[lookupStr(strings, keyOffset)] = lookupStr(strings, valOffset)
	}

	for ch := uint32(0); ch < rn.childCount; ch++ {
		base := childOffset + int(rn.firstChild+ch)*4
		if base+4 > len(buf) {
			return nil, fmt.Errorf("cryxml: child index out of range")
		}
		childIdx := int(binary.LittleEndian.Uint32(buf[base:]))
		child, err := buildTree(nodes, childIdx, buf, attrOffset, childOffset, strings, visited)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}

	return node, nil
}

func lookupStr(pool []byte, offset uint32) string {
	if int(offset) >= len(pool) {
		return ""
	}
	end := bytes.IndexByte(pool[offset:], 0)
	if end < 0 {
		return string(pool[offset:])
	}
	return string(pool[offset : int(offset)+end])
}

type reader struct {
	buf []byte
	pos int
}

func (r *reader) u32At(off int) (uint32, error) {
	if off+4 > len(r.buf) {
		return 0, fmt.Errorf("cryxml: read past end at %d", off)
	}
	return binary.LittleEndian.Uint32(r.buf[off:]), nil
}

// Find returns the first child with the given tag, or nil.
func (n *Node) Find(tag string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

// FindAll returns every direct child with the given tag.
func (n *Node) FindAll(tag string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if c.Tag == tag {
			out = append(out, c)
		}
	}
	return out
}
