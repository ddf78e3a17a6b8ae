package scene

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/srcview/internal/engine/bsptree"
	"github.com/Faultbox/srcview/internal/engine/visibility"
	"github.com/Faultbox/srcview/internal/logger"
	"github.com/Faultbox/srcview/pkg/formats"
	"github.com/Faultbox/srcview/pkg/math"
)

func TestFlagger_InitiallyNothingVisible(t *testing.T) {
	b, tree := testWorld(t)
	f := NewFlagger(mustBuild(t, b, tree, nil, Options{}))

	if f.Frame() != 0 || f.Flags() != 0 {
		t.Errorf("expected frame 0 and no passes, got %d and %d", f.Frame(), f.Flags())
	}
	for i := range f.Scene().Patches {
		if f.PatchVisible(i) {
			t.Errorf("patch %d visible before any pass", i)
		}
	}
}

func TestFlagger_StampsVisibleLeaves(t *testing.T) {
	b, tree := testWorld(t)
	s := mustBuild(t, b, tree, nil, Options{})
	f := NewFlagger(s)

	f.FlagVisible(0)
	if f.Frame() != 1 {
		t.Fatalf("expected frame 1, got %d", f.Frame())
	}

	// Leaf 0 sees leaves 0 and 1 but not leaf 2.
	wantPatches := []bool{true, true, false}
	for i, want := range wantPatches {
		if f.PatchVisible(i) != want {
			t.Errorf("patch %d: expected visible=%v", i, want)
		}
	}
	wantProps := []bool{true, false, true, true, false}
	for i, want := range wantProps {
		if f.PropVisible(i) != want {
			t.Errorf("prop %d: expected visible=%v", i, want)
		}
	}
	// models/b.mdl only sits in leaf 2; the crate has a visible instance.
	wantDicts := []bool{true, false, true}
	for i, want := range wantDicts {
		if f.DictVisible(i) != want {
			t.Errorf("dict %d: expected visible=%v", i, want)
		}
	}

	// Reflagging from leaf 2 replaces the visible set.
	f.FlagVisible(2)
	for i, want := range []bool{false, false, true} {
		if f.PatchVisible(i) != want {
			t.Errorf("after reflag, patch %d: expected visible=%v", i, want)
		}
	}
	if !f.PropVisible(1) || f.PropVisible(0) || !f.PropVisible(2) {
		t.Errorf("unexpected prop visibility after reflag")
	}
}

// TestFlagger_StampMatchesReachability checks that after a pass every
// patch and prop reachable from a visible leaf carries the frame, and
// nothing else does.
func TestFlagger_StampMatchesReachability(t *testing.T) {
	b, tree := testWorld(t)
	s := mustBuild(t, b, tree, nil, Options{})
	f := NewFlagger(s)

	for _, viewer := range []int{0, 1, 2, 0} {
		f.FlagVisible(viewer)

		reachPatch := make(map[int]bool)
		reachProp := make(map[int]bool)
		for l := 0; l < tree.NumLeaves(); l++ {
			if !tree.IsLeafVisibleFrom(viewer, l) {
				continue
			}
			for _, p := range s.PatchesOfLeaf(l) {
				reachPatch[p] = true
			}
			for _, p := range s.PropsOfLeaf(l) {
				reachProp[p] = true
			}
		}
		for i := range s.Patches {
			if f.PatchVisible(i) != reachPatch[i] {
				t.Errorf("viewer %d, patch %d: stamped=%v reachable=%v", viewer, i, f.PatchVisible(i), reachPatch[i])
			}
		}
		for i := range s.Props {
			if f.PropVisible(i) != reachProp[i] {
				t.Errorf("viewer %d, prop %d: stamped=%v reachable=%v", viewer, i, f.PropVisible(i), reachProp[i])
			}
		}
	}
}

func TestFlagger_MutuallyInvisibleLeaves(t *testing.T) {
	b := newBSP(2)
	addPolygon(b, 0, quad(5, 5, 15, 15)...)
	addPolygon(b, 1, quad(-15, 5, -5, 15)...)
	b.StaticProps = &formats.StaticProps{
		Names:  []string{"models/a.mdl"},
		Leaves: []uint16{1},
		Props:  []formats.StaticProp{{PropType: 0, FirstLeaf: 0, LeafCount: 1}},
	}
	tree, err := bsptree.Build(bsptree.Input{
		Planes: []formats.Plane{{Normal: [3]float32{1, 0, 0}}},
		Nodes:  []formats.Node{{Children: [2]int32{-1, -2}}},
		Leaves: []formats.Leaf{
			{Cluster: 0, FirstLeafFace: 0, NumLeafFaces: 1},
			{Cluster: 1, FirstLeafFace: 1, NumLeafFaces: 1},
		},
		Models:     []formats.Model{{HeadNode: 0}},
		LeafFaces:  []uint16{0, 1},
		Visibility: visibility.Encode([][]bool{{true, false}, {false, true}}),
	})
	if err != nil {
		t.Fatalf("bsptree.Build failed: %v", err)
	}
	s := mustBuild(t, b, tree, nil, Options{})
	f := NewFlagger(s)

	leaf, cull := f.Update(math.Vec3{X: 10, Y: 10})
	if leaf != 0 || !cull {
		t.Fatalf("expected leaf 0 with culling, got %d, %v", leaf, cull)
	}
	if !f.PatchVisible(int(s.FacePatch[0])) {
		t.Error("own leaf geometry not flagged")
	}
	if f.PatchVisible(int(s.FacePatch[1])) {
		t.Error("geometry of invisible leaf 1 flagged")
	}
	if f.PropVisible(0) || f.DictVisible(0) {
		t.Error("prop of invisible leaf 1 flagged")
	}
}

func TestFlagger_SameLeafDoesNoWork(t *testing.T) {
	b, tree := testWorld(t)
	f := NewFlagger(mustBuild(t, b, tree, nil, Options{}))

	f.Update(math.Vec3{X: 10, Y: 10})
	f.Update(math.Vec3{X: 11, Y: 12})
	if f.Flags() != 1 || f.Frame() != 1 {
		t.Errorf("expected one pass at frame 1, got %d passes at frame %d", f.Flags(), f.Frame())
	}
	if !f.PatchVisible(0) {
		t.Error("stamps from the first pass should stay valid")
	}

	f.Update(math.Vec3{X: 10, Y: -10})
	if f.Flags() != 2 || f.Frame() != 2 {
		t.Errorf("expected a second pass on leaf change, got %d passes at frame %d", f.Flags(), f.Frame())
	}
}

func TestFlagger_DegradedMode(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	defer logger.Replace(zap.New(core))()

	b, tree := testWorld(t)
	f := NewFlagger(mustBuild(t, b, tree, nil, Options{}))

	f.Update(math.Vec3{X: 10, Y: 10})
	leaf, cull := f.Update(math.Vec3{X: -10, Z: 2000})
	if n := logs.FilterMessage("viewer outside visibility data, drawing unculled").Len(); n != 1 {
		t.Errorf("expected one degraded-mode log entry, got %d", n)
	}
	if leaf != 3 || cull {
		t.Errorf("expected leaf 3 without culling, got %d, %v", leaf, cull)
	}
	if f.Flags() != 1 {
		t.Errorf("expected no pass for a leaf without cluster, got %d passes", f.Flags())
	}

	// Returning to a clustered leaf flags again.
	if _, cull := f.Update(math.Vec3{X: 10, Y: 10}); !cull || f.Flags() != 2 {
		t.Errorf("expected culling and a second pass, got %v and %d", cull, f.Flags())
	}
}
