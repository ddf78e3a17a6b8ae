package bsptree

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/Faultbox/srcview/internal/engine/visibility"
	"github.com/Faultbox/srcview/pkg/formats"
	"github.com/Faultbox/srcview/pkg/math"
)

// twoLeafInput is a world split by x = 0: leaf 0 in front (x >= 0),
// leaf 1 behind. Each leaf has its own cluster and the clusters cannot
// see each other.
func twoLeafInput() Input {
	return Input{
		Planes: []formats.Plane{{Normal: [3]float32{1, 0, 0}}},
		Nodes:  []formats.Node{{Children: [2]int32{-1, -2}}},
		Leaves: []formats.Leaf{
			{Cluster: 0, FirstLeafFace: 0, NumLeafFaces: 2},
			{Cluster: 1, FirstLeafFace: 2, NumLeafFaces: 1},
		},
		Models:     []formats.Model{{HeadNode: 0}},
		LeafFaces:  []uint16{0, 1, 2},
		Visibility: visibility.Encode([][]bool{{true, false}, {false, true}}),
	}
}

func mustBuild(t *testing.T, in Input) *Tree {
	t.Helper()
	tree, err := Build(in)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return tree
}

func TestClassifyPoint(t *testing.T) {
	tree := mustBuild(t, twoLeafInput())

	tests := []struct {
		pos  math.Vec3
		want int
	}{
		{math.Vec3{X: 10}, 0},
		{math.Vec3{X: 0}, 0}, // on the plane goes to the front child
		{math.Vec3{X: -0.5, Y: 100}, 1},
	}
	for _, tt := range tests {
		if got := tree.ClassifyPoint(tt.pos); got != tt.want {
			t.Errorf("ClassifyPoint(%v): expected leaf %d, got %d", tt.pos, tt.want, got)
		}
	}
}

// threeLeafInput splits space at x = 10 and x = 0 into leaves 0 (x < 0),
// 1 (0 <= x < 10) and 2 (x >= 10).
func threeLeafInput() Input {
	return Input{
		Planes: []formats.Plane{
			{Normal: [3]float32{1, 0, 0}, Dist: 10},
			{Normal: [3]float32{1, 0, 0}},
		},
		Nodes: []formats.Node{
			{PlaneNum: 0, Children: [2]int32{-3, 1}},
			{PlaneNum: 1, Children: [2]int32{-2, -1}},
		},
		Leaves: []formats.Leaf{{Cluster: 0}, {Cluster: 1}, {Cluster: 2}},
		Models: []formats.Model{{HeadNode: 0}},
	}
}

func TestLeavesInBox(t *testing.T) {
	tree := mustBuild(t, threeLeafInput())

	tests := []struct {
		name       string
		mins, maxs math.Vec3
		want       []int
	}{
		{"spans all", math.Vec3{X: -5, Y: -5}, math.Vec3{X: 15, Y: 5}, []int{0, 1, 2}},
		{"inside middle", math.Vec3{X: 2, Y: -5}, math.Vec3{X: 8, Y: 5}, []int{1}},
		{"straddles x=0", math.Vec3{X: -1}, math.Vec3{X: 1}, []int{0, 1}},
		{"point on plane", math.Vec3{X: 10}, math.Vec3{X: 10}, []int{2}},
	}
	for _, tt := range tests {
		got := tree.LeavesInBox(tt.mins, tt.maxs)
		seen := make(map[int]bool)
		for _, l := range got {
			seen[l] = true
		}
		if len(got) != len(tt.want) {
			t.Errorf("%s: expected leaves %v, got %v", tt.name, tt.want, got)
			continue
		}
		for _, l := range tt.want {
			if !seen[l] {
				t.Errorf("%s: expected leaves %v, got %v", tt.name, tt.want, got)
				break
			}
		}
		for _, corner := range []math.Vec3{tt.mins, tt.maxs} {
			if c := tree.ClassifyPoint(corner); !seen[c] {
				t.Errorf("%s: corner leaf %d missing from %v", tt.name, c, got)
			}
		}
	}
}

// randomInput builds a random tree of random planes with nLeaves leaves,
// some of which have no cluster.
func randomInput(rng *rand.Rand, nLeaves int) Input {
	var in Input
	var grow func(leaves int) int32
	grow = func(leaves int) int32 {
		if leaves == 1 {
			cluster := int16(len(in.Leaves) % 5)
			if rng.Intn(4) == 0 {
				cluster = -1
			}
			in.Leaves = append(in.Leaves, formats.Leaf{Cluster: cluster})
			return -int32(len(in.Leaves))
		}
		n := math.Vec3{X: rng.Float32() - 0.5, Y: rng.Float32() - 0.5, Z: rng.Float32() - 0.5}.Normalize()
		in.Planes = append(in.Planes, formats.Plane{Normal: n.Array(), Dist: rng.Float32()*200 - 100})
		idx := len(in.Nodes)
		in.Nodes = append(in.Nodes, formats.Node{PlaneNum: int32(len(in.Planes) - 1)})
		left := 1 + rng.Intn(leaves-1)
		front := grow(left)
		back := grow(leaves - left)
		in.Nodes[idx].Children = [2]int32{front, back}
		return int32(idx)
	}
	grow(nLeaves)
	in.Models = []formats.Model{{HeadNode: 0}}

	rows := make([][]bool, 5)
	for i := range rows {
		rows[i] = make([]bool, 5)
		for j := range rows[i] {
			rows[i][j] = rng.Intn(2) == 0
		}
	}
	in.Visibility = visibility.Encode(rows)
	return in
}

func TestClassifyPoint_AlwaysReturnsLeaf(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 20; trial++ {
		in := randomInput(rng, 2+rng.Intn(200))
		tree := mustBuild(t, in)

		for i := 0; i < 500; i++ {
			pos := math.Vec3{
				X: rng.Float32()*4000 - 2000,
				Y: rng.Float32()*4000 - 2000,
				Z: rng.Float32()*4000 - 2000,
			}
			leaf := tree.ClassifyPoint(pos)
			if leaf < 0 || leaf >= tree.NumLeaves() {
				t.Fatalf("ClassifyPoint(%v) = %d, want [0,%d)", pos, leaf, tree.NumLeaves())
			}
		}
	}
}

func TestIsLeafVisibleFrom_Self(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	tree := mustBuild(t, randomInput(rng, 64))

	for l := 0; l < tree.NumLeaves(); l++ {
		if !tree.IsLeafVisibleFrom(l, l) {
			t.Errorf("leaf %d (cluster %d) should see itself", l, tree.ClusterOf(l))
		}
	}
}

func TestIsLeafVisibleFrom_NoClusterSeesNothing(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	tree := mustBuild(t, randomInput(rng, 64))

	checked := 0
	for l := 0; l < tree.NumLeaves(); l++ {
		if tree.IsVisibilityLeaf(l) {
			continue
		}
		checked++
		for m := 0; m < tree.NumLeaves(); m++ {
			if m == l {
				continue
			}
			if tree.IsLeafVisibleFrom(l, m) || tree.IsLeafVisibleFrom(m, l) {
				t.Errorf("leaf %d has no cluster but visibility with leaf %d is reported", l, m)
			}
		}
	}
	if checked == 0 {
		t.Fatal("random tree produced no cluster -1 leaves")
	}
}

func TestIsLeafVisibleFrom_Matrix(t *testing.T) {
	tree := mustBuild(t, twoLeafInput())

	if tree.IsLeafVisibleFrom(0, 1) || tree.IsLeafVisibleFrom(1, 0) {
		t.Error("clusters 0 and 1 are mutually invisible")
	}
	if got := tree.VisibleLeaves(0); len(got) != 1 || got[0] != 0 {
		t.Errorf("expected only leaf 0 visible, got %v", got)
	}
}

func TestFacesOfLeaf(t *testing.T) {
	tree := mustBuild(t, twoLeafInput())

	faces := tree.FacesOfLeaf(0)
	if len(faces) != 2 || faces[0] != 0 || faces[1] != 1 {
		t.Errorf("expected faces [0 1], got %v", faces)
	}
	allocs := testing.AllocsPerRun(100, func() {
		_ = tree.FacesOfLeaf(1)
	})
	if allocs != 0 {
		t.Errorf("FacesOfLeaf should not allocate, got %v allocs", allocs)
	}
}

func TestNoVisibilityLump(t *testing.T) {
	in := twoLeafInput()
	in.Visibility = nil
	tree := mustBuild(t, in)

	if tree.NumClusters() != 0 {
		t.Errorf("expected 0 clusters, got %d", tree.NumClusters())
	}
	for l := 0; l < tree.NumLeaves(); l++ {
		if tree.IsVisibilityLeaf(l) {
			t.Errorf("leaf %d should not be a visibility leaf without PVS data", l)
		}
	}
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(in *Input)
		want   error
	}{
		{"no planes", func(in *Input) { in.Planes = nil }, ErrEmptyTree},
		{"no models", func(in *Input) { in.Models = nil }, ErrEmptyTree},
		{"bad plane", func(in *Input) { in.Nodes[0].PlaneNum = 3 }, ErrBadReference},
		{"bad leaf child", func(in *Input) { in.Nodes[0].Children[1] = -9 }, ErrBadReference},
		{"bad node child", func(in *Input) { in.Nodes[0].Children[0] = 4 }, ErrBadReference},
		{"cycle", func(in *Input) { in.Nodes[0].Children[0] = 0 }, ErrBadReference},
		{"bad head node", func(in *Input) { in.Models[0].HeadNode = 2 }, ErrBadReference},
		{"leaf faces past table", func(in *Input) { in.Leaves[1].NumLeafFaces = 5 }, ErrBadReference},
		{"cluster past matrix", func(in *Input) { in.Leaves[1].Cluster = 2 }, ErrBadReference},
		{"corrupt vis", func(in *Input) { in.Visibility = []byte{9, 0, 0, 0} }, visibility.ErrTruncated},
	}

	for _, tt := range tests {
		in := twoLeafInput()
		tt.modify(&in)
		if _, err := Build(in); !errors.Is(err, tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
	}
}

func TestLeafIndexOutOfRangePanics(t *testing.T) {
	tree := mustBuild(t, twoLeafInput())

	defer func() {
		if recover() == nil {
			t.Error("expected panic for out-of-range leaf")
		}
	}()
	tree.IsVisibilityLeaf(2)
}

func TestNodeRef(t *testing.T) {
	if r := decodeChild(-1); !r.IsLeaf() || r.Index() != 0 {
		t.Errorf("child -1 should be leaf 0, got %s", r)
	}
	if r := decodeChild(-10); !r.IsLeaf() || r.Index() != 9 {
		t.Errorf("child -10 should be leaf 9, got %s", r)
	}
	if r := decodeChild(5); r.IsLeaf() || r.Index() != 5 {
		t.Errorf("child 5 should be node 5, got %s", r)
	}
}
