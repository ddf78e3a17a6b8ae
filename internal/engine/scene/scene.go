// Package scene partitions a map's static geometry into lock groups and
// tri-patches, places props into leaves, and flags what is potentially
// visible from the viewer's leaf each frame.
package scene

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/srcview/internal/engine/bsptree"
	"github.com/Faultbox/srcview/internal/engine/lightmap"
	"github.com/Faultbox/srcview/internal/engine/material"
	"github.com/Faultbox/srcview/internal/logger"
	"github.com/Faultbox/srcview/pkg/formats"
)

const (
	// MaxLockGroupVertices is the number of vertices a 16-bit index can address.
	MaxLockGroupVertices = 65536

	// VertexFloats is position (3), texture uv (2) and lightmap uv (2).
	VertexFloats = 7

	// VertexStride is the size of one vertex in bytes.
	VertexStride = VertexFloats * 4

	// IndexSize is the size of one index in bytes.
	IndexSize = 2
)

// skipFlags marks surfaces that are never drawn.
const skipFlags = formats.SurfSkip | formats.SurfNoDraw | formats.SurfTrigger |
	formats.SurfSky | formats.SurfSky2D

// ErrBadGeometry is returned for faces referencing edges or vertices that
// do not exist.
var ErrBadGeometry = errors.New("face geometry out of range")

// MaterialResolver maps a texture name to its material. *material.Manager
// implements it.
type MaterialResolver interface {
	Lookup(name string) *material.Material
}

// LockGroup is a region of the shared vertex and index buffers whose
// indices fit in 16 bits. Offsets are in bytes.
type LockGroup struct {
	VertexOffset int
	IndexOffset  int
	VertexCount  int
	IndexCount   int

	// Patches is the range [FirstPatch, FirstPatch+NumPatches) of Scene.Patches.
	FirstPatch int
	NumPatches int
}

// FirstVertex returns the group's first vertex in Scene.Vertices units.
func (g *LockGroup) FirstVertex() int {
	return g.VertexOffset / VertexStride
}

// FirstIndex returns the group's first element in Scene.Indices.
func (g *LockGroup) FirstIndex() int {
	return g.IndexOffset / IndexSize
}

// TriPatch is a run of triangles drawn with one material and one
// lightmap page. FirstIndex counts indices from the start of its lock
// group.
type TriPatch struct {
	LockGroup    int
	FirstIndex   int
	IndexCount   int
	TexData      int
	Material     *material.Material
	Page         int
	Translucent  bool
	Displacement bool
}

// Options tune the partitioner.
type Options struct {
	// PageSize is the lightmap page edge; 0 uses lightmap.DefaultPageSize.
	PageSize int

	// MaxVertices overrides MaxLockGroupVertices (tests only).
	MaxVertices int
}

// Scene is the render-ready partition of a map. It is read-only after
// Build; per-frame visibility lives in a Flagger.
type Scene struct {
	LockGroups []LockGroup
	Patches    []TriPatch

	// FacePatch maps each face to its tri-patch, or -1 when skipped.
	FacePatch []int32

	// Vertices holds VertexFloats floats per vertex for all lock groups.
	Vertices []float32
	// Indices holds per-group indices relative to the group's first vertex.
	Indices []uint16

	Atlas *lightmap.Atlas

	Dicts []PropDict
	Props []Prop

	tree        *bsptree.Tree
	leafPatches [][]int
	leafProps   [][]int
	dictProps   [][]int
}

// Tree returns the tree the scene was built against.
func (s *Scene) Tree() *bsptree.Tree {
	return s.tree
}

// PatchesOfLeaf returns the unique tri-patches with geometry in leaf.
func (s *Scene) PatchesOfLeaf(leaf int) []int {
	return s.leafPatches[leaf]
}

// PropsOfLeaf returns the props placed in leaf.
func (s *Scene) PropsOfLeaf(leaf int) []int {
	return s.leafProps[leaf]
}

// PropsOfDict returns the instances of dictionary entry d.
func (s *Scene) PropsOfDict(d int) []int {
	if d >= len(s.dictProps) {
		return nil
	}
	return s.dictProps[d]
}

// Build partitions b. mats may be nil, in which case translucency comes
// from surface flags only.
func Build(b *formats.BSP, tree *bsptree.Tree, mats MaterialResolver, opts Options) (*Scene, error) {
	s := &Scene{
		FacePatch:   make([]int32, len(b.Faces)),
		Atlas:       lightmap.NewAtlas(opts.PageSize),
		tree:        tree,
		leafPatches: make([][]int, tree.NumLeaves()),
		leafProps:   make([][]int, tree.NumLeaves()),
	}
	for i := range s.FacePatch {
		s.FacePatch[i] = -1
	}

	p := newPartitioner(b, s, mats, opts)
	if err := p.run(); err != nil {
		return nil, err
	}
	s.Atlas.Finish()
	s.buildLeafPatches(b, p.dispFaces)

	s.placeProps(b)

	logger.Info("scene partitioned",
		zap.Int("lockGroups", len(s.LockGroups)),
		zap.Int("patches", len(s.Patches)),
		zap.Int("vertices", len(s.Vertices)/VertexFloats),
		zap.Int("indices", len(s.Indices)),
		zap.Int("lightmapPages", len(s.Atlas.Pages)),
		zap.Int("props", len(s.Props)))
	return s, nil
}

// buildLeafPatches fills the leaf to tri-patch table from leaf faces,
// then registers displacement faces in every leaf their bounds overlap.
func (s *Scene) buildLeafPatches(b *formats.BSP, dispFaces []int) {
	seen := make(map[int]struct{})
	for leaf := range s.leafPatches {
		clear(seen)
		for _, f := range s.tree.FacesOfLeaf(leaf) {
			if int(f) >= len(s.FacePatch) {
				continue
			}
			if p := int(s.FacePatch[f]); p >= 0 {
				if _, dup := seen[p]; !dup {
					seen[p] = struct{}{}
					s.leafPatches[leaf] = append(s.leafPatches[leaf], p)
				}
			}
		}
	}

	for _, f := range dispFaces {
		p := int(s.FacePatch[f])
		if p < 0 {
			continue
		}
		mins, maxs := faceBounds(b, f)
		for _, leaf := range s.tree.LeavesInBox(mins, maxs) {
			s.addLeafPatch(leaf, p)
		}
	}
}

func (s *Scene) addLeafPatch(leaf, p int) {
	for _, q := range s.leafPatches[leaf] {
		if q == p {
			return
		}
	}
	s.leafPatches[leaf] = append(s.leafPatches[leaf], p)
}

// partitioner holds the state of one Build.
type partitioner struct {
	b     *formats.BSP
	s     *Scene
	mats  MaterialResolver
	limit int

	group int // open lock group
	patch int // open tri-patch, -1 before the first face of a group

	dispFaces []int
	fan       fanBuilder
}

func newPartitioner(b *formats.BSP, s *Scene, mats MaterialResolver, opts Options) *partitioner {
	limit := opts.MaxVertices
	if limit <= 0 || limit > MaxLockGroupVertices {
		limit = MaxLockGroupVertices
	}
	return &partitioner{b: b, s: s, mats: mats, limit: limit, patch: -1}
}

// texDataFaces collects drawable faces per texdata entry together with
// the sum of their edge counts.
func (p *partitioner) texDataFaces() (faces [][]int, estimate []int) {
	faces = make([][]int, len(p.b.TexData))
	estimate = make([]int, len(p.b.TexData))
	for i := range p.b.Faces {
		f := &p.b.Faces[i]
		ti := int(f.TexInfo)
		if ti < 0 || ti >= len(p.b.TexInfo) {
			continue
		}
		info := &p.b.TexInfo[ti]
		td := int(info.TexData)
		if td < 0 || td >= len(p.b.TexData) || info.Flags&skipFlags != 0 {
			continue
		}
		faces[td] = append(faces[td], i)
		estimate[td] += int(f.NumEdges)
	}
	return faces, estimate
}

func (p *partitioner) run() error {
	faces, estimate := p.texDataFaces()
	p.s.LockGroups = append(p.s.LockGroups, LockGroup{})

	for td := range faces {
		if len(faces[td]) == 0 {
			continue
		}
		perFace := estimate[td] > p.limit
		if p.current().VertexCount+estimate[td] > p.limit {
			p.seal()
		}
		for _, f := range faces[td] {
			if perFace && p.current().VertexCount+int(p.b.Faces[f].NumEdges) > p.limit {
				p.seal()
			}
			if err := p.addFace(td, f); err != nil {
				return err
			}
		}
	}

	p.closePatch()
	if g := p.current(); g.VertexCount == 0 && len(p.s.LockGroups) > 1 {
		p.s.LockGroups = p.s.LockGroups[:len(p.s.LockGroups)-1]
	}
	return nil
}

func (p *partitioner) current() *LockGroup {
	return &p.s.LockGroups[p.group]
}

// seal closes the open lock group and opens the next one right after
// it. An empty group is never sealed.
func (p *partitioner) seal() {
	prev := p.current()
	if prev.VertexCount == 0 {
		return
	}
	p.closePatch()
	next := LockGroup{
		VertexOffset: prev.VertexOffset + prev.VertexCount*VertexStride,
		IndexOffset:  prev.IndexOffset + prev.IndexCount*IndexSize,
		FirstPatch:   len(p.s.Patches),
	}
	logger.Debug("lock group sealed",
		zap.Int("group", p.group),
		zap.Int("vertices", prev.VertexCount),
		zap.Int("indices", prev.IndexCount))
	p.s.LockGroups = append(p.s.LockGroups, next)
	p.group++
	p.patch = -1
}

func (p *partitioner) closePatch() {
	g := p.current()
	g.NumPatches = len(p.s.Patches) - g.FirstPatch
}

// addFace triangulates face f, packs its lightmap and appends it to the
// open tri-patch, starting a new patch when its draw state differs.
func (p *partitioner) addFace(td, f int) error {
	face := &p.b.Faces[f]
	if err := p.fan.build(p.b, f); err != nil {
		return err
	}
	if len(p.fan.tris) == 0 {
		return nil
	}

	info := &p.b.TexInfo[face.TexInfo]
	translucent := info.Flags&formats.SurfTrans != 0
	var mat *material.Material
	if p.mats != nil {
		if mat = p.mats.Lookup(texName(p.b, td)); mat != nil && mat.Translucent {
			translucent = true
		}
	}
	disp := face.DispInfo >= 0

	pl := p.placeLightmap(f)
	key := TriPatch{
		LockGroup:    p.group,
		TexData:      td,
		Material:     mat,
		Page:         p.s.Atlas.Current(),
		Translucent:  translucent,
		Displacement: disp,
	}
	p.openPatch(key)

	g := p.current()
	base := g.VertexCount
	for _, v := range p.fan.verts {
		p.s.Vertices = appendVertex(p.s.Vertices, p.b, info, td, face, pl, p.b.Vertexes[v])
	}
	for _, i := range p.fan.tris {
		p.s.Indices = append(p.s.Indices, uint16(base+int(i)))
	}
	g.VertexCount += len(p.fan.verts)
	g.IndexCount += len(p.fan.tris)
	p.s.Patches[p.patch].IndexCount += len(p.fan.tris)
	p.s.FacePatch[f] = int32(p.patch)

	if disp {
		p.dispFaces = append(p.dispFaces, f)
	}
	return nil
}

// openPatch makes the open patch match key's draw state.
func (p *partitioner) openPatch(key TriPatch) {
	if p.patch >= 0 {
		cur := &p.s.Patches[p.patch]
		if samePatch(cur, &key) {
			return
		}
	}
	key.FirstIndex = p.current().IndexCount
	p.s.Patches = append(p.s.Patches, key)
	p.patch = len(p.s.Patches) - 1
}

func samePatch(a, b *TriPatch) bool {
	return a.LockGroup == b.LockGroup && a.TexData == b.TexData && a.Page == b.Page &&
		a.Translucent == b.Translucent && a.Displacement == b.Displacement
}

// placeLightmap packs face f into the atlas. Unlit faces and faces too
// large for any page sample the white block. A full page is finalized
// and replaced; the patch split follows from the page change.
func (p *partitioner) placeLightmap(f int) lightmap.Placement {
	face := &p.b.Faces[f]
	if p.b.FaceFlags(f)&formats.SurfNoLight != 0 {
		return p.s.Atlas.White()
	}
	lf, ok := lightmap.FaceFromBSP(face, p.b.Lighting)
	if !ok {
		return p.s.Atlas.White()
	}
	if !p.s.Atlas.Fits(lf) {
		logger.Warn("lightmap larger than a page",
			zap.Int("face", f),
			zap.Int("width", lf.Width),
			zap.Int("height", lf.Height))
		return p.s.Atlas.White()
	}
	if pl, ok := p.s.Atlas.Add(lf); ok {
		return pl
	}
	p.s.Atlas.Next()
	pl, _ := p.s.Atlas.Add(lf)
	return pl
}

// Validate checks the structural bounds of a built scene.
func (s *Scene) Validate() error {
	for i, g := range s.LockGroups {
		if g.VertexCount > MaxLockGroupVertices {
			return fmt.Errorf("lock group %d holds %d vertices", i, g.VertexCount)
		}
	}
	return nil
}
