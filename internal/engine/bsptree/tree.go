// Package bsptree holds the world BSP tree: point classification, leaf
// face lookup and leaf-to-leaf visibility through the decoded PVS.
package bsptree

import (
	"errors"
	"fmt"

	"github.com/Faultbox/srcview/internal/engine/visibility"
	"github.com/Faultbox/srcview/internal/logger"
	"github.com/Faultbox/srcview/pkg/formats"
	"github.com/Faultbox/srcview/pkg/math"
	"go.uber.org/zap"
)

// Tree build errors.
var (
	ErrEmptyTree    = errors.New("bsp tree lump is empty")
	ErrBadReference = errors.New("bsp tree reference out of range")
)

// Input is the decoded lump data the tree is built from.
type Input struct {
	Planes     []formats.Plane
	Nodes      []formats.Node
	Leaves     []formats.Leaf
	Models     []formats.Model
	LeafFaces  []uint16
	Visibility []byte
}

// InputFromBSP collects the tree lumps of a parsed map.
func InputFromBSP(b *formats.BSP) Input {
	return Input{
		Planes:     b.Planes,
		Nodes:      b.Nodes,
		Leaves:     b.Leaves,
		Models:     b.Models,
		LeafFaces:  b.LeafFaces,
		Visibility: b.Visibility,
	}
}

type node struct {
	normal   math.Vec3
	dist     float32
	children [2]NodeRef
}

// Tree is immutable after Build.
type Tree struct {
	nodes     []node
	root      NodeRef
	leaves    []formats.Leaf
	clusters  []int32 // per leaf, -1 when the leaf has no visibility data
	leafFaces []uint16
	vis       *visibility.Matrix
}

// Build validates the lumps and builds the tree. Any inconsistency fails
// the whole build.
func Build(in Input) (*Tree, error) {
	switch {
	case len(in.Planes) == 0:
		return nil, fmt.Errorf("%w: planes", ErrEmptyTree)
	case len(in.Nodes) == 0:
		return nil, fmt.Errorf("%w: nodes", ErrEmptyTree)
	case len(in.Leaves) == 0:
		return nil, fmt.Errorf("%w: leaves", ErrEmptyTree)
	case len(in.Models) == 0:
		return nil, fmt.Errorf("%w: models", ErrEmptyTree)
	}

	vis, err := visibility.Decode(in.Visibility)
	if err != nil {
		return nil, fmt.Errorf("decoding visibility: %w", err)
	}

	t := &Tree{
		nodes:     make([]node, len(in.Nodes)),
		leaves:    in.Leaves,
		clusters:  make([]int32, len(in.Leaves)),
		leafFaces: in.LeafFaces,
		vis:       vis,
	}

	for i, n := range in.Nodes {
		if n.PlaneNum < 0 || int(n.PlaneNum) >= len(in.Planes) {
			return nil, fmt.Errorf("%w: node %d plane %d", ErrBadReference, i, n.PlaneNum)
		}
		p := in.Planes[n.PlaneNum]
		t.nodes[i] = node{normal: math.V3(p.Normal), dist: p.Dist}
		for side, c := range n.Children {
			ref := decodeChild(c)
			if err := t.checkRef(ref); err != nil {
				return nil, fmt.Errorf("node %d child %d: %w", i, side, err)
			}
			t.nodes[i].children[side] = ref
		}
	}

	head := in.Models[0].HeadNode
	if head < 0 || int(head) >= len(in.Nodes) {
		return nil, fmt.Errorf("%w: world head node %d", ErrBadReference, head)
	}
	t.root = NodeOf(int(head))
	if err := t.checkAcyclic(); err != nil {
		return nil, err
	}

	for i, l := range in.Leaves {
		end := int(l.FirstLeafFace) + int(l.NumLeafFaces)
		if end > len(in.LeafFaces) {
			return nil, fmt.Errorf("%w: leaf %d faces [%d,%d) of %d",
				ErrBadReference, i, l.FirstLeafFace, end, len(in.LeafFaces))
		}

		c := int32(l.Cluster)
		switch {
		case c < 0 || vis.NumClusters() == 0:
			c = -1
		case int(c) >= vis.NumClusters():
			return nil, fmt.Errorf("%w: leaf %d cluster %d of %d",
				ErrBadReference, i, c, vis.NumClusters())
		}
		t.clusters[i] = c
	}

	logger.Debug("bsp tree built",
		zap.Int("nodes", len(t.nodes)),
		zap.Int("leaves", len(t.leaves)),
		zap.Int("clusters", vis.NumClusters()))
	return t, nil
}

func (t *Tree) checkRef(r NodeRef) error {
	if r.IsLeaf() {
		if r.Index() >= len(t.leaves) {
			return fmt.Errorf("%w: %s of %d leaves", ErrBadReference, r, len(t.leaves))
		}
		return nil
	}
	if r.Index() >= len(t.nodes) {
		return fmt.Errorf("%w: %s of %d nodes", ErrBadReference, r, len(t.nodes))
	}
	return nil
}

// checkAcyclic walks the world tree once so ClassifyPoint always terminates.
func (t *Tree) checkAcyclic() error {
	seen := make([]bool, len(t.nodes))
	stack := []NodeRef{t.root}
	for len(stack) > 0 {
		r := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if r.IsLeaf() {
			continue
		}
		if seen[r.Index()] {
			return fmt.Errorf("%w: %s reached twice from the world root", ErrBadReference, r)
		}
		seen[r.Index()] = true
		n := &t.nodes[r.Index()]
		stack = append(stack, n.children[0], n.children[1])
	}
	return nil
}
