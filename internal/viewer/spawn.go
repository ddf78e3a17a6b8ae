package viewer

import (
	"github.com/Faultbox/srcview/pkg/formats"
	"github.com/Faultbox/srcview/pkg/math"
)

// eyeHeight lifts the camera above a spawn entity's origin.
const eyeHeight = 64

// spawnClasses are searched in order for the initial camera position.
var spawnClasses = []string{
	"info_player_start",
	"info_player_deathmatch",
	"info_player_counterterrorist",
	"info_player_terrorist",
	"info_player_teamspawn",
}

// SpawnPoint returns the camera position and yaw in degrees for a map.
// Without a spawn entity it returns the center of the world bounds.
func SpawnPoint(b *formats.BSP) (pos math.Vec3, yaw float32, ok bool) {
	for _, class := range spawnClasses {
		for i := range b.Entities {
			e := &b.Entities[i]
			if e.ClassName() != class {
				continue
			}
			origin, found := e.Vec3("origin")
			if !found {
				continue
			}
			if angles, found := e.Vec3("angles"); found {
				yaw = angles[1]
			}
			pos = math.V3(origin)
			pos.Z += eyeHeight
			return pos, yaw, true
		}
	}

	if len(b.Models) > 0 {
		m := b.Models[0]
		return math.V3(m.Mins).Add(math.V3(m.Maxs)).Scale(0.5), 0, false
	}
	return math.Vec3{}, 0, false
}
