package export

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Faultbox/srcview/internal/engine/bsptree"
	"github.com/Faultbox/srcview/internal/engine/scene"
	"github.com/Faultbox/srcview/pkg/formats"
)

// testScene partitions a one-leaf map with two textured quads, a
// translucent quad and one static prop.
func testScene(t *testing.T) *scene.Scene {
	t.Helper()
	b := &formats.BSP{
		Planes:   []formats.Plane{{Normal: [3]float32{1, 0, 0}, Dist: -1000}},
		Nodes:    []formats.Node{{PlaneNum: 0, Children: [2]int32{-1, -1}}},
		Leaves:   []formats.Leaf{{Cluster: -1, NumLeafFaces: 3}},
		Models:   []formats.Model{{HeadNode: 0}},
		Edges:    [][2]uint16{{0, 0}},
		TexNames: []string{"brick/wall", "tile/floor"},
		TexData:  []formats.TexData{{Width: 64, Height: 64}, {Width: 64, Height: 64}},
		TexInfo: []formats.TexInfo{
			{TexData: 0},
			{TexData: 1},
			{TexData: 1, Flags: formats.SurfTrans},
		},
		LeafFaces: []uint16{0, 1, 2},
		StaticProps: &formats.StaticProps{
			Names:  []string{"models/crate.mdl"},
			Leaves: []uint16{0},
			Props: []formats.StaticProp{
				{Origin: [3]float32{1, 2, 3}, LeafCount: 1},
			},
		},
	}
	for i := 0; i < 3; i++ {
		x := float32(i * 20)
		base := len(b.Vertexes)
		b.Vertexes = append(b.Vertexes,
			[3]float32{x, 0, 0}, [3]float32{x + 10, 0, 0},
			[3]float32{x + 10, 10, 0}, [3]float32{x, 10, 0})
		first := len(b.SurfEdges)
		for j := 0; j < 4; j++ {
			b.Edges = append(b.Edges, [2]uint16{uint16(base + j), uint16(base + (j+1)%4)})
			b.SurfEdges = append(b.SurfEdges, int32(len(b.Edges)-1))
		}
		b.Faces = append(b.Faces, formats.Face{
			FirstEdge: int32(first),
			NumEdges:  4,
			TexInfo:   int16(i),
			DispInfo:  -1,
			LightOfs:  -1,
		})
	}

	tree, err := bsptree.Build(bsptree.InputFromBSP(b))
	if err != nil {
		t.Fatalf("bsptree.Build failed: %v", err)
	}
	s, err := scene.Build(b, tree, nil, scene.Options{PageSize: 64})
	if err != nil {
		t.Fatalf("scene.Build failed: %v", err)
	}
	return s
}

func TestWorld(t *testing.T) {
	s := testScene(t)
	doc, err := World(s)
	if err != nil {
		t.Fatalf("World failed: %v", err)
	}

	// One mesh per lock group plus the prop box.
	if got, want := len(doc.Meshes), len(s.LockGroups)+1; got != want {
		t.Errorf("expected %d meshes, got %d", want, got)
	}
	if got := len(doc.Meshes[0].Primitives); got != len(s.Patches) {
		t.Errorf("expected %d primitives, got %d", len(s.Patches), got)
	}
	// Opaque texdata 0, opaque texdata 1 and translucent texdata 1.
	if len(doc.Materials) != 3 {
		t.Errorf("expected 3 materials, got %d", len(doc.Materials))
	}

	root := doc.Nodes[0]
	if got, want := len(root.Children), len(s.LockGroups)+len(s.Props); got != want {
		t.Errorf("expected %d children of the root, got %d", want, got)
	}
	prop := doc.Nodes[len(doc.Nodes)-1]
	if prop.Matrix[12] != 1 || prop.Matrix[13] != 2 || prop.Matrix[14] != 3 {
		t.Errorf("expected prop translation (1, 2, 3), got %v", prop.Matrix[12:15])
	}
}

func TestWorldRejectsBadGroup(t *testing.T) {
	s := testScene(t)
	s.LockGroups[0].VertexCount += 100

	if _, err := World(s); err == nil {
		t.Error("expected error for a lock group past the vertex buffer")
	}
}

func TestWriteGLB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.glb")
	if err := WriteGLB(path, testScene(t)); err != nil {
		t.Fatalf("WriteGLB failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("glTF")) {
		t.Errorf("expected binary glTF magic, got %q", data[:4])
	}
}

func TestWriteLightmaps(t *testing.T) {
	s := testScene(t)
	dir := filepath.Join(t.TempDir(), "lightmaps")

	paths, err := WriteLightmaps(dir, s.Atlas)
	if err != nil {
		t.Fatalf("WriteLightmaps failed: %v", err)
	}
	if len(paths) != len(s.Atlas.Pages) {
		t.Fatalf("expected %d files, got %d", len(s.Atlas.Pages), len(paths))
	}

	data, err := os.ReadFile(paths[0])
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
		t.Errorf("expected a WebP container, got %q", data[:min(len(data), 12)])
	}
}

func TestFlipRGBA(t *testing.T) {
	// Two rows, bottom row first as OpenGL returns them.
	pixels := []byte{
		1, 1, 1, 255, 2, 2, 2, 255,
		3, 3, 3, 255, 4, 4, 4, 255,
	}
	img, err := FlipRGBA(pixels, 2, 2)
	if err != nil {
		t.Fatalf("FlipRGBA failed: %v", err)
	}
	if img.Pix[0] != 3 || img.Pix[img.Stride] != 1 {
		t.Errorf("expected rows to be flipped, got %v", img.Pix)
	}

	if _, err := FlipRGBA(pixels, 3, 2); err == nil {
		t.Error("expected error for a size mismatch")
	}
}

func TestScreenshotsSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shots")
	s := NewScreenshots(dir, "de_test")
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC) }

	path, err := s.Save(make([]byte, 4*4*4), 4, 4)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if want := filepath.Join(dir, "de_test_2024-05-01_12-30-00.webp"); path != want {
		t.Errorf("expected %s, got %s", want, path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected screenshot file: %v", err)
	}
}
