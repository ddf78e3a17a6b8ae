// Package camera provides the free-flying viewer camera.
package camera

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/srcview/pkg/math"
)

// FlyCamera moves freely through a Z-up world.
type FlyCamera struct {
	Position math.Vec3

	Yaw   float32 // around Z, radians; 0 looks down +X
	Pitch float32 // radians; positive looks up

	// Projection
	FovY   float32 // radians
	Aspect float32
	Near   float32
	Far    float32

	// Constraints
	MaxPitch float32

	// Sensitivity
	Speed           float32 // units per second
	FastMultiplier  float32
	LookSensitivity float32 // radians per pixel
}

// NewFlyCamera creates a camera with default settings.
func NewFlyCamera() *FlyCamera {
	return &FlyCamera{
		FovY:            math.Radians(75),
		Aspect:          16.0 / 9.0,
		Near:            4,
		Far:             16384,
		MaxPitch:        math.Radians(89),
		Speed:           320,
		FastMultiplier:  4,
		LookSensitivity: 0.003,
	}
}

// Forward returns the unit view direction.
func (c *FlyCamera) Forward() math.Vec3 {
	sy, cy := math32.Sincos(c.Yaw)
	sp, cp := math32.Sincos(c.Pitch)
	return math.Vec3{X: cp * cy, Y: cp * sy, Z: sp}
}

// Right returns the unit right vector on the horizontal plane.
func (c *FlyCamera) Right() math.Vec3 {
	sy, cy := math32.Sincos(c.Yaw)
	return math.Vec3{X: sy, Y: -cy}
}

// ViewMatrix returns the view matrix for this camera.
func (c *FlyCamera) ViewMatrix() math.Mat4 {
	up := math.Vec3{Z: 1}
	return math.LookAt(c.Position, c.Position.Add(c.Forward()), up)
}

// ProjectionMatrix returns the perspective projection.
func (c *FlyCamera) ProjectionMatrix() math.Mat4 {
	return math.Perspective(c.FovY, c.Aspect, c.Near, c.Far)
}

// ViewProjection returns projection * view.
func (c *FlyCamera) ViewProjection() math.Mat4 {
	return c.ProjectionMatrix().Mul(c.ViewMatrix())
}

// HandleLook rotates the camera by a mouse delta in pixels.
func (c *FlyCamera) HandleLook(deltaX, deltaY float32) {
	c.Yaw -= deltaX * c.LookSensitivity
	c.Pitch -= deltaY * c.LookSensitivity
	c.Pitch = math32.Max(-c.MaxPitch, math32.Min(c.Pitch, c.MaxPitch))
	c.Yaw = math32.Mod(c.Yaw, 2*math32.Pi)
}

// HandleMovement moves along the view direction, the right vector and
// world up. Inputs are in [-1, 1]; dt is in seconds.
func (c *FlyCamera) HandleMovement(forward, right, up, dt float32, fast bool) {
	speed := c.Speed * dt
	if fast {
		speed *= c.FastMultiplier
	}
	move := c.Forward().Scale(forward).
		Add(c.Right().Scale(right)).
		Add(math.Vec3{Z: up})
	c.Position = c.Position.Add(move.Scale(speed))
}

// SetAspect updates the aspect ratio from a viewport size.
func (c *FlyCamera) SetAspect(width, height int) {
	if height > 0 {
		c.Aspect = float32(width) / float32(height)
	}
}

// LookAt points the camera at target.
func (c *FlyCamera) LookAt(target math.Vec3) {
	d := target.Sub(c.Position)
	if d.Length() == 0 {
		return
	}
	d = d.Normalize()
	c.Yaw = math32.Atan2(d.Y, d.X)
	c.Pitch = math32.Asin(math32.Max(-1, math32.Min(d.Z, 1)))
}
