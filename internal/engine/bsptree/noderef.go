package bsptree

import "fmt"

// NodeRef is a child reference decoded once at build time: either an
// interior node or a leaf. The on-disk sign encoding never leaves Build.
type NodeRef uint32

const leafBit NodeRef = 1 << 31

// NodeOf returns a reference to interior node i.
func NodeOf(i int) NodeRef {
	return NodeRef(i)
}

// LeafOf returns a reference to leaf i.
func LeafOf(i int) NodeRef {
	return NodeRef(i) | leafBit
}

// decodeChild converts an on-disk child: >= 0 is a node, else leaf -(c+1).
func decodeChild(c int32) NodeRef {
	if c < 0 {
		return LeafOf(int(-(c + 1)))
	}
	return NodeOf(int(c))
}

// IsLeaf reports whether r refers to a leaf.
func (r NodeRef) IsLeaf() bool {
	return r&leafBit != 0
}

// Index returns the node or leaf index.
func (r NodeRef) Index() int {
	return int(r &^ leafBit)
}

func (r NodeRef) String() string {
	if r.IsLeaf() {
		return fmt.Sprintf("leaf(%d)", r.Index())
	}
	return fmt.Sprintf("node(%d)", r.Index())
}
