package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// BSP format errors.
var (
	ErrInvalidBSPMagic       = errors.New("invalid BSP magic: expected 'VBSP'")
	ErrUnsupportedBSPVersion = errors.New("unsupported BSP version")
	ErrTruncatedBSPData      = errors.New("truncated BSP data")
	ErrBadLumpSize           = errors.New("lump size is not a multiple of its record size")
	ErrMissingLump           = errors.New("required lump is empty")
)

// LumpID indexes the lump directory of a BSP header.
type LumpID int

// Lumps used by the loader. The directory always holds NumLumps entries.
const (
	LumpEntities          LumpID = 0
	LumpPlanes            LumpID = 1
	LumpTexData           LumpID = 2
	LumpVertexes          LumpID = 3
	LumpVisibility        LumpID = 4
	LumpNodes             LumpID = 5
	LumpTexInfo           LumpID = 6
	LumpFaces             LumpID = 7
	LumpLighting          LumpID = 8
	LumpLeafs             LumpID = 10
	LumpEdges             LumpID = 12
	LumpSurfEdges         LumpID = 13
	LumpModels            LumpID = 14
	LumpLeafFaces         LumpID = 16
	LumpLeafBrushes       LumpID = 17
	LumpDispInfo          LumpID = 26
	LumpGame              LumpID = 35
	LumpPakfile           LumpID = 40
	LumpTexDataStringData LumpID = 43
	LumpTexDataStringTbl  LumpID = 44
	LumpLightingHDR       LumpID = 53

	NumLumps = 64
)

// Supported BSP versions (Source 2004 through Source 2007 era).
const (
	MinBSPVersion = 19
	MaxBSPVersion = 21

	bspHeaderSize = 8 + NumLumps*16 + 4
)

// Surface flags stored in TexInfo.Flags.
const (
	SurfLight     int32 = 0x0001
	SurfSky2D     int32 = 0x0002
	SurfSky       int32 = 0x0004
	SurfWarp      int32 = 0x0008
	SurfTrans     int32 = 0x0010
	SurfNoPortal  int32 = 0x0020
	SurfTrigger   int32 = 0x0040
	SurfNoDraw    int32 = 0x0080
	SurfHint      int32 = 0x0100
	SurfSkip      int32 = 0x0200
	SurfNoLight   int32 = 0x0400
	SurfBumpLight int32 = 0x0800
)

// Lump is one entry of the lump directory.
type Lump struct {
	Offset  int32
	Length  int32
	Version int32
	FourCC  [4]byte
}

// Plane is a splitting plane: dot(Normal, p) = Dist.
type Plane struct {
	Normal [3]float32
	Dist   float32
	Type   int32
}

// Node is an interior BSP node. Children >= 0 are node indices,
// negative children encode leaf -(child+1).
type Node struct {
	PlaneNum  int32
	Children  [2]int32
	Mins      [3]int16
	Maxs      [3]int16
	FirstFace uint16
	NumFaces  uint16
	Area      int16
	_         [2]byte
}

// Leaf is a convex region at the bottom of the tree.
type Leaf struct {
	Contents        int32
	Cluster         int16
	AreaFlags       int16 // area:9 flags:7
	Mins            [3]int16
	Maxs            [3]int16
	FirstLeafFace   uint16
	NumLeafFaces    uint16
	FirstLeafBrush  uint16
	NumLeafBrushes  uint16
	LeafWaterDataID int16
	_               [2]byte
}

// leafV0 is the lump version 0 leaf with its ambient light cube.
type leafV0 struct {
	Contents        int32
	Cluster         int16
	AreaFlags       int16
	Mins            [3]int16
	Maxs            [3]int16
	FirstLeafFace   uint16
	NumLeafFaces    uint16
	FirstLeafBrush  uint16
	NumLeafBrushes  uint16
	LeafWaterDataID int16
	Ambient         [24]byte
	_               [2]byte
}

// Model is a brush model; model 0 is the world.
type Model struct {
	Mins      [3]float32
	Maxs      [3]float32
	Origin    [3]float32
	HeadNode  int32
	FirstFace int32
	NumFaces  int32
}

// Face is a planar polygon described by a run of surfedges.
type Face struct {
	PlaneNum                    uint16
	Side                        uint8
	OnNode                      uint8
	FirstEdge                   int32
	NumEdges                    int16
	TexInfo                     int16
	DispInfo                    int16
	FogVolumeID                 int16
	Styles                      [4]uint8
	LightOfs                    int32
	Area                        float32
	LightmapTextureMinsInLuxels [2]int32
	LightmapTextureSizeInLuxels [2]int32
	OrigFace                    int32
	NumPrims                    uint16
	FirstPrimID                 uint16
	SmoothingGroups             uint32
}

// TexInfo maps world positions to texture and lightmap space.
// Each vector is (x, y, z, offset).
type TexInfo struct {
	TextureVecs  [2][4]float32
	LightmapVecs [2][4]float32
	Flags        int32
	TexData      int32
}

// TexData describes one texture referenced by TexInfo.
type TexData struct {
	Reflectivity      [3]float32
	NameStringTableID int32
	Width             int32
	Height            int32
	ViewWidth         int32
	ViewHeight        int32
}

// BSP is a parsed Source map with its lumps decoded into record slices.
type BSP struct {
	Version     int32
	MapRevision int32
	Lumps       [NumLumps]Lump

	Entities    []Entity
	Planes      []Plane
	TexData     []TexData
	TexNames    []string // parallel to TexData
	Vertexes    [][3]float32
	Visibility  []byte
	Nodes       []Node
	TexInfo     []TexInfo
	Faces       []Face
	Lighting    []byte
	Leaves      []Leaf
	Edges       [][2]uint16
	SurfEdges   []int32
	Models      []Model
	LeafFaces   []uint16
	LeafBrushes []uint16
	Pakfile     []byte

	StaticProps *StaticProps
	GameLumps   []GameLump
}

// FaceFlags returns the surface flags of a face, or 0 when it has no texinfo.
func (b *BSP) FaceFlags(face int) int32 {
	ti := int(b.Faces[face].TexInfo)
	if ti < 0 || ti >= len(b.TexInfo) {
		return 0
	}
	return b.TexInfo[ti].Flags
}

// Worldspawn returns the entity holding map-wide settings, or nil.
func (b *BSP) Worldspawn() *Entity {
	for i := range b.Entities {
		if b.Entities[i].ClassName() == "worldspawn" {
			return &b.Entities[i]
		}
	}
	return nil
}

// ParseBSP parses a BSP file from raw bytes.
func ParseBSP(data []byte) (*BSP, error) {
	if len(data) < bspHeaderSize {
		return nil, fmt.Errorf("%w: header", ErrTruncatedBSPData)
	}
	if string(data[0:4]) != "VBSP" {
		return nil, ErrInvalidBSPMagic
	}

	b := &BSP{}
	r := bytes.NewReader(data[4:bspHeaderSize])
	if err := binary.Read(r, binary.LittleEndian, &b.Version); err != nil {
		return nil, fmt.Errorf("%w: reading version", ErrTruncatedBSPData)
	}
	if b.Version < MinBSPVersion || b.Version > MaxBSPVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBSPVersion, b.Version)
	}
	if err := binary.Read(r, binary.LittleEndian, &b.Lumps); err != nil {
		return nil, fmt.Errorf("%w: reading lump directory", ErrTruncatedBSPData)
	}
	if err := binary.Read(r, binary.LittleEndian, &b.MapRevision); err != nil {
		return nil, fmt.Errorf("%w: reading map revision", ErrTruncatedBSPData)
	}

	var err error
	if b.Planes, err = readLump[Plane](data, b.Lumps[LumpPlanes], "planes"); err != nil {
		return nil, err
	}
	if b.TexData, err = readLump[TexData](data, b.Lumps[LumpTexData], "texdata"); err != nil {
		return nil, err
	}
	if b.Vertexes, err = readLump[[3]float32](data, b.Lumps[LumpVertexes], "vertexes"); err != nil {
		return nil, err
	}
	if b.Nodes, err = readLump[Node](data, b.Lumps[LumpNodes], "nodes"); err != nil {
		return nil, err
	}
	if b.TexInfo, err = readLump[TexInfo](data, b.Lumps[LumpTexInfo], "texinfo"); err != nil {
		return nil, err
	}
	if b.Faces, err = readLump[Face](data, b.Lumps[LumpFaces], "faces"); err != nil {
		return nil, err
	}
	if b.Leaves, err = readLeaves(data, b.Lumps[LumpLeafs]); err != nil {
		return nil, err
	}
	if b.Edges, err = readLump[[2]uint16](data, b.Lumps[LumpEdges], "edges"); err != nil {
		return nil, err
	}
	if b.SurfEdges, err = readLump[int32](data, b.Lumps[LumpSurfEdges], "surfedges"); err != nil {
		return nil, err
	}
	if b.Models, err = readLump[Model](data, b.Lumps[LumpModels], "models"); err != nil {
		return nil, err
	}
	if b.LeafFaces, err = readLump[uint16](data, b.Lumps[LumpLeafFaces], "leaffaces"); err != nil {
		return nil, err
	}
	if b.LeafBrushes, err = readLump[uint16](data, b.Lumps[LumpLeafBrushes], "leafbrushes"); err != nil {
		return nil, err
	}

	switch {
	case len(b.Planes) == 0:
		return nil, fmt.Errorf("%w: planes", ErrMissingLump)
	case len(b.Nodes) == 0:
		return nil, fmt.Errorf("%w: nodes", ErrMissingLump)
	case len(b.Leaves) == 0:
		return nil, fmt.Errorf("%w: leafs", ErrMissingLump)
	case len(b.Models) == 0:
		return nil, fmt.Errorf("%w: models", ErrMissingLump)
	}

	if b.Visibility, err = lumpBytes(data, b.Lumps[LumpVisibility], "visibility"); err != nil {
		return nil, err
	}
	if b.Lighting, err = lumpBytes(data, b.Lumps[LumpLighting], "lighting"); err != nil {
		return nil, err
	}
	if len(b.Lighting) == 0 {
		if b.Lighting, err = lumpBytes(data, b.Lumps[LumpLightingHDR], "lighting_hdr"); err != nil {
			return nil, err
		}
	}
	if b.Pakfile, err = lumpBytes(data, b.Lumps[LumpPakfile], "pakfile"); err != nil {
		return nil, err
	}

	if b.TexNames, err = readTexNames(data, b); err != nil {
		return nil, err
	}

	ents, err := lumpBytes(data, b.Lumps[LumpEntities], "entities")
	if err != nil {
		return nil, err
	}
	if b.Entities, err = ParseEntities(ents); err != nil {
		return nil, fmt.Errorf("parsing entities: %w", err)
	}

	if err := parseGameLumps(data, b); err != nil {
		return nil, fmt.Errorf("parsing game lump: %w", err)
	}

	return b, nil
}

// ParseBSPFile parses a BSP file from disk.
func ParseBSPFile(path string) (*BSP, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading BSP file: %w", err)
	}
	return ParseBSP(data)
}

// lumpBytes returns the raw contents of a lump.
func lumpBytes(data []byte, l Lump, name string) ([]byte, error) {
	if l.Length == 0 {
		return nil, nil
	}
	if l.Offset < 0 || l.Length < 0 || int64(l.Offset)+int64(l.Length) > int64(len(data)) {
		return nil, fmt.Errorf("%w: %s lump at %d+%d exceeds file size %d",
			ErrTruncatedBSPData, name, l.Offset, l.Length, len(data))
	}
	return data[l.Offset : l.Offset+l.Length], nil
}

// readLump decodes a lump into fixed-size records of type T.
func readLump[T any](data []byte, l Lump, name string) ([]T, error) {
	raw, err := lumpBytes(data, l, name)
	if err != nil || len(raw) == 0 {
		return nil, err
	}
	var zero T
	stride := binary.Size(zero)
	if len(raw)%stride != 0 {
		return nil, fmt.Errorf("%w: %s lump is %d bytes, record size %d",
			ErrBadLumpSize, name, len(raw), stride)
	}
	out := make([]T, len(raw)/stride)
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, out); err != nil {
		return nil, fmt.Errorf("%w: reading %s", ErrTruncatedBSPData, name)
	}
	return out, nil
}

// readLeaves handles both leaf layouts. Lump version 0 leaves carry an
// ambient light cube and are 56 bytes; later versions are 32 bytes.
func readLeaves(data []byte, l Lump) ([]Leaf, error) {
	if l.Version != 0 {
		return readLump[Leaf](data, l, "leafs")
	}
	old, err := readLump[leafV0](data, l, "leafs")
	if err != nil {
		return nil, err
	}
	leaves := make([]Leaf, len(old))
	for i, o := range old {
		leaves[i] = Leaf{
			Contents:        o.Contents,
			Cluster:         o.Cluster,
			AreaFlags:       o.AreaFlags,
			Mins:            o.Mins,
			Maxs:            o.Maxs,
			FirstLeafFace:   o.FirstLeafFace,
			NumLeafFaces:    o.NumLeafFaces,
			FirstLeafBrush:  o.FirstLeafBrush,
			NumLeafBrushes:  o.NumLeafBrushes,
			LeafWaterDataID: o.LeafWaterDataID,
		}
	}
	return leaves, nil
}

// readTexNames resolves every texdata name through the string table.
func readTexNames(data []byte, b *BSP) ([]string, error) {
	if len(b.TexData) == 0 {
		return nil, nil
	}
	table, err := readLump[int32](data, b.Lumps[LumpTexDataStringTbl], "texdata_string_table")
	if err != nil {
		return nil, err
	}
	strs, err := lumpBytes(data, b.Lumps[LumpTexDataStringData], "texdata_string_data")
	if err != nil {
		return nil, err
	}

	names := make([]string, len(b.TexData))
	for i, td := range b.TexData {
		id := int(td.NameStringTableID)
		if id < 0 || id >= len(table) {
			continue
		}
		ofs := int(table[id])
		if ofs < 0 || ofs >= len(strs) {
			return nil, fmt.Errorf("%w: texdata %d name offset %d", ErrTruncatedBSPData, i, ofs)
		}
		names[i] = cString(strs[ofs:])
	}
	return names, nil
}

// cString returns the NUL-terminated prefix of b.
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
