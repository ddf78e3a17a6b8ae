package scene

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/srcview/internal/logger"
	"github.com/Faultbox/srcview/pkg/formats"
	"github.com/Faultbox/srcview/pkg/math"
)

// dynamicPropClasses are the entity classes placed as props.
var dynamicPropClasses = map[string]bool{
	"prop_dynamic":             true,
	"prop_dynamic_override":    true,
	"prop_physics":             true,
	"prop_physics_multiplayer": true,
}

// PropDict is one distinct prop model shared by its instances.
type PropDict struct {
	Model string
}

// Prop is one placed instance of a PropDict entry.
type Prop struct {
	Dict      int
	Origin    math.Vec3
	Angles    [3]float32 // pitch, yaw, roll in degrees
	Transform math.Mat4
	Skin      int
	Static    bool

	// Translucent is set for entities with a non-normal render mode.
	Translucent bool

	// Leaves lists the leaves the prop was registered into.
	Leaves []int
}

// placeProps registers static props by their compiled leaf ranges and
// dynamic prop entities by the leaf containing their origin.
func (s *Scene) placeProps(b *formats.BSP) {
	dicts := make(map[string]int)
	dictOf := func(model string) int {
		key := strings.ToLower(strings.ReplaceAll(model, "\\", "/"))
		if i, ok := dicts[key]; ok {
			return i
		}
		dicts[key] = len(s.Dicts)
		s.Dicts = append(s.Dicts, PropDict{Model: key})
		return len(s.Dicts) - 1
	}

	if sp := b.StaticProps; sp != nil {
		for i := range sp.Props {
			rec := &sp.Props[i]
			if int(rec.PropType) >= len(sp.Names) {
				logger.Warn("static prop references unknown model",
					zap.Int("prop", i),
					zap.Int("type", int(rec.PropType)))
				continue
			}
			prop := Prop{
				Dict:   dictOf(sp.Names[rec.PropType]),
				Origin: math.V3(rec.Origin),
				Angles: rec.Angles,
				Skin:   int(rec.Skin),
				Static: true,
			}
			leaves := sp.PropLeaves(i)
			if leaves == nil && rec.LeafCount > 0 {
				logger.Warn("static prop leaf range out of bounds",
					zap.Int("prop", i),
					zap.Int("first", int(rec.FirstLeaf)),
					zap.Int("count", int(rec.LeafCount)),
					zap.Int("table", len(sp.Leaves)))
			}
			for _, l := range leaves {
				if int(l) >= len(s.leafProps) {
					logger.Warn("static prop references unknown leaf",
						zap.Int("prop", i),
						zap.Int("leaf", int(l)))
					continue
				}
				prop.Leaves = append(prop.Leaves, int(l))
			}
			s.addProp(prop)
		}
	}

	for i := range b.Entities {
		e := &b.Entities[i]
		if !dynamicPropClasses[e.ClassName()] {
			continue
		}
		model := e.Get("model")
		origin, ok := e.Vec3("origin")
		if model == "" || !ok {
			logger.Debug("dynamic prop without model or origin", zap.Int("entity", i))
			continue
		}
		angles, _ := e.Vec3("angles")
		skin, _ := strconv.Atoi(e.Get("skin"))
		mode, _ := strconv.Atoi(e.Get("rendermode"))
		pos := math.V3(origin)
		s.addProp(Prop{
			Dict:        dictOf(model),
			Origin:      pos,
			Angles:      angles,
			Skin:        skin,
			Translucent: mode != 0,
			Leaves:      []int{s.tree.ClassifyPoint(pos)},
		})
	}
}

func (s *Scene) addProp(p Prop) {
	p.Transform = math.PlacementMatrix(p.Origin, p.Angles)
	idx := len(s.Props)
	s.Props = append(s.Props, p)
	for len(s.dictProps) <= p.Dict {
		s.dictProps = append(s.dictProps, nil)
	}
	s.dictProps[p.Dict] = append(s.dictProps[p.Dict], idx)
	for _, l := range p.Leaves {
		s.leafProps[l] = append(s.leafProps[l], idx)
	}
}
