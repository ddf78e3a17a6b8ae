package export

import (
	"fmt"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Faultbox/srcview/internal/engine/scene"
)

// propHalfExtent is the half size of the box standing in for a prop model.
const propHalfExtent = 16

// zUpToYUp rotates Source's Z-up frame into glTF's Y-up frame
// (column-major, -90 degrees about X).
var zUpToYUp = [16]float32{
	1, 0, 0, 0,
	0, 0, -1, 0,
	0, 1, 0, 0,
	0, 0, 0, 1,
}

// World converts a scene into a glTF document: one mesh per lock group
// with a primitive per tri-patch, and one box node per prop.
func World(s *scene.Scene) (*gltf.Document, error) {
	doc := &gltf.Document{}
	doc.Asset.Version = "2.0"
	doc.Asset.Generator = "srcview"
	doc.Buffers = append(doc.Buffers, &gltf.Buffer{})

	root := uint32(0)
	doc.Nodes = append(doc.Nodes, &gltf.Node{Name: "world", Matrix: zUpToYUp})
	doc.Scene = &root
	doc.Scenes = append(doc.Scenes, &gltf.Scene{Name: "world", Nodes: []uint32{root}})

	materials := make(map[string]uint32)
	for gi := range s.LockGroups {
		mesh, err := groupMesh(doc, s, gi, materials)
		if err != nil {
			return nil, err
		}
		addChild(doc, &gltf.Node{Name: fmt.Sprintf("lockgroup_%d", gi), Mesh: &mesh})
	}

	if len(s.Props) > 0 {
		box := boxMesh(doc)
		for i := range s.Props {
			p := &s.Props[i]
			addChild(doc, &gltf.Node{
				Name:   fmt.Sprintf("%s_%d", s.Dicts[p.Dict].Model, i),
				Mesh:   &box,
				Matrix: [16]float32(p.Transform),
			})
		}
	}
	return doc, nil
}

// WriteGLB exports a scene as a binary glTF file.
func WriteGLB(path string, s *scene.Scene) error {
	doc, err := World(s)
	if err != nil {
		return err
	}
	return gltf.SaveBinary(doc, path)
}

func addChild(doc *gltf.Document, n *gltf.Node) {
	idx := uint32(len(doc.Nodes))
	doc.Nodes = append(doc.Nodes, n)
	doc.Nodes[0].Children = append(doc.Nodes[0].Children, idx)
}

// groupMesh writes one lock group's vertices once and a primitive per patch.
func groupMesh(doc *gltf.Document, s *scene.Scene, gi int, materials map[string]uint32) (uint32, error) {
	g := &s.LockGroups[gi]
	first := g.FirstVertex()
	if end := first + g.VertexCount; end*scene.VertexFloats > len(s.Vertices) {
		return 0, fmt.Errorf("lock group %d: vertices [%d,%d) out of range", gi, first, end)
	}

	pos := make([][3]float32, g.VertexCount)
	tex := make([][2]float32, g.VertexCount)
	lm := make([][2]float32, g.VertexCount)
	for i := range pos {
		v := s.Vertices[(first+i)*scene.VertexFloats:]
		pos[i] = [3]float32{v[0], v[1], v[2]}
		tex[i] = [2]float32{v[3], v[4]}
		lm[i] = [2]float32{v[5], v[6]}
	}
	attrs := gltf.Attribute{
		gltf.POSITION:   modeler.WritePosition(doc, pos),
		gltf.TEXCOORD_0: modeler.WriteTextureCoord(doc, tex),
		gltf.TEXCOORD_1: modeler.WriteTextureCoord(doc, lm),
	}

	mesh := &gltf.Mesh{Name: fmt.Sprintf("lockgroup_%d", gi)}
	base := g.FirstIndex()
	for pi := g.FirstPatch; pi < g.FirstPatch+g.NumPatches; pi++ {
		p := &s.Patches[pi]
		start := base + p.FirstIndex
		if start+p.IndexCount > len(s.Indices) {
			return 0, fmt.Errorf("patch %d: indices out of range", pi)
		}
		indices := modeler.WriteIndices(doc, s.Indices[start:start+p.IndexCount])
		mat := patchMaterial(doc, p, materials)
		mesh.Primitives = append(mesh.Primitives, &gltf.Primitive{
			Attributes: attrs,
			Indices:    &indices,
			Material:   &mat,
			Mode:       gltf.PrimitiveTriangles,
		})
	}

	idx := uint32(len(doc.Meshes))
	doc.Meshes = append(doc.Meshes, mesh)
	return idx, nil
}

// patchMaterial returns the glTF material for a patch, creating it on
// first use. Translucent patches get a separate blended material.
func patchMaterial(doc *gltf.Document, p *scene.TriPatch, materials map[string]uint32) uint32 {
	name := fmt.Sprintf("texdata_%d", p.TexData)
	color := [4]float32{0.7, 0.7, 0.7, 1}
	if p.Material != nil {
		name = p.Material.Name
		color = p.Material.Color
	}
	if p.Translucent {
		name += "#translucent"
		color[3] = 0.5
	}
	if idx, ok := materials[name]; ok {
		return idx
	}

	m := &gltf.Material{
		Name: name,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &color,
		},
	}
	if p.Translucent {
		m.AlphaMode = gltf.AlphaBlend
	}
	idx := uint32(len(doc.Materials))
	doc.Materials = append(doc.Materials, m)
	materials[name] = idx
	return idx
}

// boxMesh writes the shared prop box.
func boxMesh(doc *gltf.Document) uint32 {
	const e = propHalfExtent
	pos := [][3]float32{
		{-e, -e, -e}, {e, -e, -e}, {e, e, -e}, {-e, e, -e},
		{-e, -e, e}, {e, -e, e}, {e, e, e}, {-e, e, e},
	}
	indices := []uint16{
		0, 2, 1, 0, 3, 2, // bottom
		4, 5, 6, 4, 6, 7, // top
		0, 1, 5, 0, 5, 4,
		1, 2, 6, 1, 6, 5,
		2, 3, 7, 2, 7, 6,
		3, 0, 4, 3, 4, 7,
	}
	ind := modeler.WriteIndices(doc, indices)
	idx := uint32(len(doc.Meshes))
	doc.Meshes = append(doc.Meshes, &gltf.Mesh{
		Name: "prop_box",
		Primitives: []*gltf.Primitive{{
			Attributes: gltf.Attribute{gltf.POSITION: modeler.WritePosition(doc, pos)},
			Indices:    &ind,
			Mode:       gltf.PrimitiveTriangles,
		}},
	})
	return idx
}
