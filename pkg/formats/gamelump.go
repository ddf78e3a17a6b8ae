package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Game lump errors.
var (
	ErrTruncatedGameLump = errors.New("truncated game lump")
	ErrBadStaticProps    = errors.New("malformed static prop lump")
)

// GameLumpStaticProps is the 'sprp' game lump id.
const GameLumpStaticProps int32 = 's'<<24 | 'p'<<16 | 'r'<<8 | 'p'

// StaticPropNameLength is the fixed size of a dictionary model name.
const StaticPropNameLength = 128

// staticPropStrides maps known lump versions to their record size.
var staticPropStrides = map[uint16]int{
	4: 56,
	5: 60,
	6: 64,
	7: 68,
}

// GameLump is one entry of the game lump directory. FileOfs is absolute.
type GameLump struct {
	ID      int32
	Flags   uint16
	Version uint16
	FileOfs int32
	FileLen int32
}

// StaticProp is the version-independent part of a static prop record.
type StaticProp struct {
	Origin         [3]float32
	Angles         [3]float32 // pitch, yaw, roll in degrees
	PropType       uint16     // index into StaticProps.Names
	FirstLeaf      uint16     // index into StaticProps.Leaves
	LeafCount      uint16
	Solid          uint8
	Flags          uint8
	Skin           int32
	FadeMinDist    float32
	FadeMaxDist    float32
	LightingOrigin [3]float32
}

// StaticProps is the decoded 'sprp' game lump.
type StaticProps struct {
	Version uint16
	Names   []string
	Leaves  []uint16
	Props   []StaticProp

	// ForcedFadeScale is parallel to Props; empty before version 5.
	ForcedFadeScale []float32
}

// PropLeaves returns the leaves a static prop was compiled into, or nil
// when its range runs past the leaf table.
func (s *StaticProps) PropLeaves(i int) []uint16 {
	p := s.Props[i]
	first, n := int(p.FirstLeaf), int(p.LeafCount)
	if first+n > len(s.Leaves) {
		return nil
	}
	return s.Leaves[first : first+n]
}

// parseGameLumps reads the game lump directory and decodes the static
// prop lump. Other game lumps are kept in the directory and otherwise ignored.
func parseGameLumps(data []byte, b *BSP) error {
	raw, err := lumpBytes(data, b.Lumps[LumpGame], "game")
	if err != nil || len(raw) == 0 {
		return err
	}

	r := bytes.NewReader(raw)
	var count int32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return fmt.Errorf("%w: reading lump count", ErrTruncatedGameLump)
	}
	if count < 0 || int(count)*16 > r.Len() {
		return fmt.Errorf("%w: %d entries", ErrTruncatedGameLump, count)
	}
	b.GameLumps = make([]GameLump, count)
	if err := binary.Read(r, binary.LittleEndian, b.GameLumps); err != nil {
		return fmt.Errorf("%w: reading directory", ErrTruncatedGameLump)
	}

	for _, gl := range b.GameLumps {
		if gl.ID != GameLumpStaticProps {
			continue
		}
		body, err := lumpBytes(data, Lump{Offset: gl.FileOfs, Length: gl.FileLen}, "sprp")
		if err != nil {
			return err
		}
		if b.StaticProps, err = ParseStaticProps(body, gl.Version); err != nil {
			return err
		}
	}
	return nil
}

// ParseStaticProps decodes the body of a 'sprp' game lump.
func ParseStaticProps(data []byte, version uint16) (*StaticProps, error) {
	sp := &StaticProps{Version: version}
	r := bytes.NewReader(data)

	var n int32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("%w: reading dictionary count", ErrBadStaticProps)
	}
	if n < 0 || int(n)*StaticPropNameLength > r.Len() {
		return nil, fmt.Errorf("%w: dictionary of %d names", ErrBadStaticProps, n)
	}
	name := make([]byte, StaticPropNameLength)
	sp.Names = make([]string, n)
	for i := range sp.Names {
		if _, err := r.Read(name); err != nil {
			return nil, fmt.Errorf("%w: reading name %d", ErrBadStaticProps, i)
		}
		sp.Names[i] = cString(name)
	}

	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("%w: reading leaf count", ErrBadStaticProps)
	}
	if n < 0 || int(n)*2 > r.Len() {
		return nil, fmt.Errorf("%w: leaf table of %d entries", ErrBadStaticProps, n)
	}
	sp.Leaves = make([]uint16, n)
	if err := binary.Read(r, binary.LittleEndian, sp.Leaves); err != nil {
		return nil, fmt.Errorf("%w: reading leaf table", ErrBadStaticProps)
	}

	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("%w: reading prop count", ErrBadStaticProps)
	}
	if n <= 0 {
		return sp, nil
	}

	rest := data[len(data)-r.Len():]
	stride, ok := staticPropStrides[version]
	if !ok || stride*int(n) > len(rest) {
		if len(rest)%int(n) != 0 {
			return nil, fmt.Errorf("%w: %d bytes for %d props (version %d)",
				ErrBadStaticProps, len(rest), n, version)
		}
		stride = len(rest) / int(n)
	}
	if stride < binary.Size(StaticProp{}) {
		return nil, fmt.Errorf("%w: record size %d too small", ErrBadStaticProps, stride)
	}

	sp.Props = make([]StaticProp, n)
	if stride >= 60 {
		sp.ForcedFadeScale = make([]float32, n)
	}
	for i := range sp.Props {
		rec := rest[i*stride : (i+1)*stride]
		if err := binary.Read(bytes.NewReader(rec), binary.LittleEndian, &sp.Props[i]); err != nil {
			return nil, fmt.Errorf("%w: reading prop %d", ErrBadStaticProps, i)
		}
		if sp.ForcedFadeScale != nil {
			sp.ForcedFadeScale[i] = math.Float32frombits(binary.LittleEndian.Uint32(rec[56:60]))
		}
	}
	return sp, nil
}
