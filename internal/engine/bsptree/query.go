package bsptree

import (
	"fmt"

	"github.com/Faultbox/srcview/internal/engine/visibility"
	"github.com/Faultbox/srcview/pkg/formats"
	"github.com/Faultbox/srcview/pkg/math"
)

// ClassifyPoint returns the leaf containing pos. Points on a plane go to
// the front child.
func (t *Tree) ClassifyPoint(pos math.Vec3) int {
	r := t.root
	for !r.IsLeaf() {
		n := &t.nodes[r.Index()]
		if n.normal.Dot(pos)-n.dist >= 0 {
			r = n.children[0]
		} else {
			r = n.children[1]
		}
	}
	return r.Index()
}

// LeavesInBox returns every leaf whose region the box overlaps, in walk
// order. A box straddling a plane descends both sides.
func (t *Tree) LeavesInBox(mins, maxs math.Vec3) []int {
	center := mins.Add(maxs).Scale(0.5)
	half := maxs.Sub(center)

	var out []int
	stack := []NodeRef{t.root}
	for len(stack) > 0 {
		r := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if r.IsLeaf() {
			out = append(out, r.Index())
			continue
		}
		n := &t.nodes[r.Index()]
		d := n.normal.Dot(center) - n.dist
		extent := abs(n.normal.X)*half.X + abs(n.normal.Y)*half.Y + abs(n.normal.Z)*half.Z
		if d+extent >= 0 {
			stack = append(stack, n.children[0])
		}
		if d-extent < 0 {
			stack = append(stack, n.children[1])
		}
	}
	return out
}

func abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

// NumLeaves returns the number of leaves.
func (t *Tree) NumLeaves() int {
	return len(t.leaves)
}

// NumClusters returns the number of PVS clusters; 0 for maps without vis.
func (t *Tree) NumClusters() int {
	return t.vis.NumClusters()
}

// Visibility returns the decoded cluster matrix.
func (t *Tree) Visibility() *visibility.Matrix {
	return t.vis
}

// Leaf returns the on-disk record of leaf i.
func (t *Tree) Leaf(i int) formats.Leaf {
	t.checkLeaf(i)
	return t.leaves[i]
}

// ClusterOf returns the cluster of leaf i, or -1.
func (t *Tree) ClusterOf(i int) int {
	t.checkLeaf(i)
	return int(t.clusters[i])
}

// LeafBounds returns the leaf's integer bounding box.
func (t *Tree) LeafBounds(i int) (mins, maxs math.Vec3) {
	l := t.Leaf(i)
	mins = math.Vec3{X: float32(l.Mins[0]), Y: float32(l.Mins[1]), Z: float32(l.Mins[2])}
	maxs = math.Vec3{X: float32(l.Maxs[0]), Y: float32(l.Maxs[1]), Z: float32(l.Maxs[2])}
	return mins, maxs
}

// FacesOfLeaf returns the face indices of leaf i. The slice aliases the
// shared leaf-face table and must not be modified.
func (t *Tree) FacesOfLeaf(i int) []uint16 {
	l := t.Leaf(i)
	first := int(l.FirstLeafFace)
	return t.leafFaces[first : first+int(l.NumLeafFaces) : first+int(l.NumLeafFaces)]
}

// IsVisibilityLeaf reports whether leaf i carries PVS data.
func (t *Tree) IsVisibilityLeaf(i int) bool {
	return t.ClusterOf(i) != -1
}

// IsLeafVisibleFrom reports whether leaf to is potentially visible from
// leaf from. A leaf always sees itself; leaves without a cluster see
// nothing else and are seen by nothing else.
func (t *Tree) IsLeafVisibleFrom(from, to int) bool {
	t.checkLeaf(from)
	t.checkLeaf(to)
	if from == to {
		return true
	}
	fc, tc := t.clusters[from], t.clusters[to]
	if fc == -1 || tc == -1 {
		return false
	}
	return t.vis.Visible(int(fc), int(tc))
}

// VisibleLeaves returns every leaf visible from leaf from, in index order.
func (t *Tree) VisibleLeaves(from int) []int {
	var out []int
	for l := range t.leaves {
		if t.IsLeafVisibleFrom(from, l) {
			out = append(out, l)
		}
	}
	return out
}

// checkLeaf panics on an out-of-range leaf index. Callers only ever pass
// indices produced by the tree itself, so this is a contract violation.
func (t *Tree) checkLeaf(i int) {
	if i < 0 || i >= len(t.leaves) {
		panic(fmt.Sprintf("bsptree: leaf index %d out of range [0,%d)", i, len(t.leaves)))
	}
}
