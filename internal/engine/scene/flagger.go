package scene

import (
	"go.uber.org/zap"

	"github.com/Faultbox/srcview/internal/logger"
	"github.com/Faultbox/srcview/pkg/math"
)

// Flagger stamps the frame counter onto every tri-patch, prop and prop
// dictionary entry reachable from a leaf visible to the viewer. An object
// is visible iff its stamp equals the current frame, so nothing is ever
// reset between frames.
type Flagger struct {
	scene *Scene

	frame    int
	lastLeaf int
	passes   int

	patchStamps []int
	propStamps  []int
	dictStamps  []int
}

// NewFlagger creates a flagger with every stamp unset.
func NewFlagger(s *Scene) *Flagger {
	f := &Flagger{
		scene:       s,
		lastLeaf:    -1,
		patchStamps: make([]int, len(s.Patches)),
		propStamps:  make([]int, len(s.Props)),
		dictStamps:  make([]int, len(s.Dicts)),
	}
	for _, stamps := range [][]int{f.patchStamps, f.propStamps, f.dictStamps} {
		for i := range stamps {
			stamps[i] = -1
		}
	}
	return f
}

// Update classifies the viewer and reflags when it has entered a new leaf
// that carries visibility data. cull is false while the viewer is in a
// leaf without a cluster; the caller then draws everything.
func (f *Flagger) Update(viewPos math.Vec3) (leaf int, cull bool) {
	tree := f.scene.tree
	leaf = tree.ClassifyPoint(viewPos)
	newLeaf := leaf != f.lastLeaf
	f.lastLeaf = leaf

	cull = tree.IsVisibilityLeaf(leaf)
	if !newLeaf {
		return leaf, cull
	}
	if !cull {
		logger.Debug("viewer outside visibility data, drawing unculled", zap.Int("leaf", leaf))
		return leaf, false
	}
	f.FlagVisible(leaf)
	return leaf, true
}

// FlagVisible advances the frame counter and stamps everything in leaves
// visible from viewerLeaf. Cost is one pass over the leaves plus the
// visible patches and props.
func (f *Flagger) FlagVisible(viewerLeaf int) {
	f.frame++
	f.passes++

	s := f.scene
	for l := 0; l < s.tree.NumLeaves(); l++ {
		if !s.tree.IsLeafVisibleFrom(viewerLeaf, l) {
			continue
		}
		for _, p := range s.leafProps[l] {
			f.propStamps[p] = f.frame
			f.dictStamps[s.Props[p].Dict] = f.frame
		}
		for _, p := range s.leafPatches[l] {
			f.patchStamps[p] = f.frame
		}
	}
}

// Frame returns the current frame counter.
func (f *Flagger) Frame() int { return f.frame }

// Flags returns how many flagging passes have run.
func (f *Flagger) Flags() int { return f.passes }

// PatchVisible reports whether tri-patch i was stamped this frame.
func (f *Flagger) PatchVisible(i int) bool { return f.patchStamps[i] == f.frame }

// PropVisible reports whether prop i was stamped this frame.
func (f *Flagger) PropVisible(i int) bool { return f.propStamps[i] == f.frame }

// DictVisible reports whether any instance of dictionary entry i was
// stamped this frame.
func (f *Flagger) DictVisible(i int) bool { return f.dictStamps[i] == f.frame }

// Scene returns the flagged scene.
func (f *Flagger) Scene() *Scene { return f.scene }
