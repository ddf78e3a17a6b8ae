// Package render draws a partitioned scene. Pass selection and culling
// are backend-independent; Context is the OpenGL backend.
package render

import (
	"github.com/Faultbox/srcview/internal/engine/scene"
)

// Pass selects which half of the scene is drawn.
type Pass int

const (
	PassOpaque Pass = iota
	PassTranslucent
)

func (p Pass) String() string {
	if p == PassTranslucent {
		return "translucent"
	}
	return "opaque"
}

// Backend issues the draw calls of a pass.
type Backend interface {
	BindLockGroup(group int)
	BindMaterial(patch *scene.TriPatch)
	DrawPatch(group *scene.LockGroup, patch *scene.TriPatch)
	BindProp(dict int)
	DrawPropMesh(prop *scene.Prop)
	SetBlend(on bool)
}

// Visibility reports what the last flagging pass stamped.
// *scene.Flagger implements it.
type Visibility interface {
	PatchVisible(i int) bool
	PropVisible(i int) bool
	DictVisible(i int) bool
}

// Frame is the input of one frame's draw.
type Frame struct {
	Scene *scene.Scene
	Vis   Visibility

	// Cull is false while the viewer is outside visibility data; every
	// patch is then drawn and props are not.
	Cull bool
}

// Stats counts the work of one frame.
type Stats struct {
	Patches int
	Props   int
	// Skipped counts candidates deferred from the opaque pass.
	Skipped int
}

// DrawWorld draws the candidate tri-patches whose translucency matches
// pass and returns how many candidates it skipped for not matching.
// Displacement patches are always candidates.
func DrawWorld(b Backend, f Frame, pass Pass) (drawn, skipped int) {
	s := f.Scene
	want := pass == PassTranslucent
	for gi := range s.LockGroups {
		g := &s.LockGroups[gi]
		bound := false
		for pi := g.FirstPatch; pi < g.FirstPatch+g.NumPatches; pi++ {
			p := &s.Patches[pi]
			if f.Cull && !p.Displacement && !f.Vis.PatchVisible(pi) {
				continue
			}
			if p.Translucent != want {
				skipped++
				continue
			}
			if !bound {
				b.BindLockGroup(gi)
				bound = true
			}
			b.BindMaterial(p)
			b.DrawPatch(g, p)
			drawn++
		}
	}
	return drawn, skipped
}

// DrawProps draws visible props whose translucency matches pass, binding
// each model once. Props are only drawn while culling.
func DrawProps(b Backend, f Frame, pass Pass) (drawn, skipped int) {
	if !f.Cull {
		return 0, 0
	}
	s := f.Scene
	want := pass == PassTranslucent
	for d := range s.Dicts {
		if !f.Vis.DictVisible(d) {
			continue
		}
		bound := false
		for _, pi := range s.PropsOfDict(d) {
			if !f.Vis.PropVisible(pi) {
				continue
			}
			p := &s.Props[pi]
			if p.Translucent != want {
				skipped++
				continue
			}
			if !bound {
				b.BindProp(d)
				bound = true
			}
			b.DrawPropMesh(p)
			drawn++
		}
	}
	return drawn, skipped
}

// Draw runs the opaque pass, then the translucent pass with blending if
// the opaque pass deferred anything.
func Draw(b Backend, f Frame) Stats {
	var st Stats
	wp, ws := DrawWorld(b, f, PassOpaque)
	pp, ps := DrawProps(b, f, PassOpaque)
	st.Patches, st.Props = wp, pp
	st.Skipped = ws + ps
	if st.Skipped == 0 {
		return st
	}

	b.SetBlend(true)
	if ws > 0 {
		n, _ := DrawWorld(b, f, PassTranslucent)
		st.Patches += n
	}
	if ps > 0 {
		n, _ := DrawProps(b, f, PassTranslucent)
		st.Props += n
	}
	b.SetBlend(false)
	return st
}
