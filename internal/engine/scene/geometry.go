package scene

import (
	"fmt"

	"github.com/Faultbox/srcview/internal/engine/lightmap"
	"github.com/Faultbox/srcview/pkg/formats"
	"github.com/Faultbox/srcview/pkg/math"
)

// fanBuilder triangulates one face at a time. Buffers are reused across
// faces.
type fanBuilder struct {
	verts []uint32          // source vertex ids in emit order
	tris  []uint16          // indices into verts
	local map[uint32]uint16 // source vertex id -> index into verts
}

// build fans face f around the start vertex of its first edge. Vertices
// are deduplicated within the face only. Edges touching the root emit
// nothing, so a face with fewer than three distinct vertices yields no
// triangles.
func (fb *fanBuilder) build(b *formats.BSP, f int) error {
	fb.verts = fb.verts[:0]
	fb.tris = fb.tris[:0]
	if fb.local == nil {
		fb.local = make(map[uint32]uint16)
	}
	clear(fb.local)

	face := &b.Faces[f]
	first, n := int(face.FirstEdge), int(face.NumEdges)
	if first < 0 || n < 0 || first+n > len(b.SurfEdges) {
		return fmt.Errorf("%w: face %d edges [%d,%d)", ErrBadGeometry, f, first, first+n)
	}

	var root uint32
	for i := 0; i < n; i++ {
		e, rev, ok := surfEdge(b, b.SurfEdges[first+i])
		if !ok {
			return fmt.Errorf("%w: face %d surfedge %d", ErrBadGeometry, f, b.SurfEdges[first+i])
		}
		if int(e[0]) >= len(b.Vertexes) || int(e[1]) >= len(b.Vertexes) {
			return fmt.Errorf("%w: face %d vertex %d/%d", ErrBadGeometry, f, e[0], e[1])
		}

		if i == 0 {
			if rev {
				root = uint32(e[1])
			} else {
				root = uint32(e[0])
			}
			continue
		}

		a, c := uint32(e[1]), uint32(e[0])
		if rev {
			a, c = c, a
		}
		if a == root || c == root {
			continue
		}
		fb.tris = append(fb.tris, fb.vertex(root), fb.vertex(a), fb.vertex(c))
	}
	return nil
}

func (fb *fanBuilder) vertex(id uint32) uint16 {
	if i, ok := fb.local[id]; ok {
		return i
	}
	i := uint16(len(fb.verts))
	fb.local[id] = i
	fb.verts = append(fb.verts, id)
	return i
}

// surfEdge resolves a signed surfedge. A negative value walks edge -se
// backwards; ok is false when the edge does not exist.
func surfEdge(b *formats.BSP, se int32) (e [2]uint16, rev, ok bool) {
	i := int64(se)
	if rev = i < 0; rev {
		i = -i
	}
	if i >= int64(len(b.Edges)) {
		return e, rev, false
	}
	return b.Edges[i], rev, true
}

// faceBounds returns the box around the start vertex of every edge of
// face f. Only faces that passed fanBuilder.build may be passed.
func faceBounds(b *formats.BSP, f int) (mins, maxs math.Vec3) {
	face := &b.Faces[f]
	for i := 0; i < int(face.NumEdges); i++ {
		e, rev, _ := surfEdge(b, b.SurfEdges[int(face.FirstEdge)+i])
		v := e[0]
		if rev {
			v = e[1]
		}
		p := vec3(b.Vertexes[v])
		if i == 0 {
			mins, maxs = p, p
			continue
		}
		mins, maxs = mins.Min(p), maxs.Max(p)
	}
	return mins, maxs
}

// appendVertex writes position, texture uv and page-space lightmap uv.
func appendVertex(dst []float32, b *formats.BSP, info *formats.TexInfo, td int,
	face *formats.Face, pl lightmap.Placement, pos [3]float32) []float32 {

	tex := &b.TexData[td]
	w, h := float32(max(tex.Width, 1)), float32(max(tex.Height, 1))
	u := project(info.TextureVecs[0], pos) / w
	v := project(info.TextureVecs[1], pos) / h

	lw := float32(face.LightmapTextureSizeInLuxels[0] + 1)
	lh := float32(face.LightmapTextureSizeInLuxels[1] + 1)
	lu := (project(info.LightmapVecs[0], pos) - float32(face.LightmapTextureMinsInLuxels[0]) + 0.5) / lw
	lv := (project(info.LightmapVecs[1], pos) - float32(face.LightmapTextureMinsInLuxels[1]) + 0.5) / lh
	lu, lv = pl.Apply(lu, lv)

	return append(dst, pos[0], pos[1], pos[2], u, v, lu, lv)
}

func project(vec [4]float32, p [3]float32) float32 {
	return vec[0]*p[0] + vec[1]*p[1] + vec[2]*p[2] + vec[3]
}

func vec3(p [3]float32) math.Vec3 {
	return math.V3(p)
}

func texName(b *formats.BSP, td int) string {
	if td < len(b.TexNames) {
		return b.TexNames[td]
	}
	return ""
}
