package math

import (
	"testing"

	"github.com/chewxy/math32"
)

func near(a, b float32) bool {
	return math32.Abs(a-b) < 0.001
}

func nearVec(a, b Vec3) bool {
	return near(a.X, b.X) && near(a.Y, b.Y) && near(a.Z, b.Z)
}

func TestIdentity(t *testing.T) {
	m := Identity()
	if m[0] != 1 || m[5] != 1 || m[10] != 1 || m[15] != 1 {
		t.Error("Identity diagonal should be 1")
	}
	if m[1] != 0 || m[4] != 0 {
		t.Error("Identity off-diagonal should be 0")
	}
}

func TestMulIdentity(t *testing.T) {
	m := Translate(1, 2, 3)
	result := m.Mul(Identity())

	for i := 0; i < 16; i++ {
		if result[i] != m[i] {
			t.Errorf("M * I should equal M, element %d: got %f, want %f", i, result[i], m[i])
		}
	}
}

func TestTranslate(t *testing.T) {
	got := Translate(10, 20, 30).TransformVec3(Vec3{1, 2, 3})
	if got != (Vec3{11, 22, 33}) {
		t.Errorf("TransformVec3: got %v, want (11, 22, 33)", got)
	}
}

func TestRotateZ90(t *testing.T) {
	got := RotateZ(math32.Pi / 2).TransformVec3(Vec3{1, 0, 0})
	if !nearVec(got, Vec3{0, 1, 0}) {
		t.Errorf("RotateZ 90: got %v, want (0, 1, 0)", got)
	}
}

func TestRotateY90(t *testing.T) {
	got := RotateY(math32.Pi / 2).TransformVec3(Vec3{1, 0, 0})
	if !nearVec(got, Vec3{0, 0, -1}) {
		t.Errorf("RotateY 90: got %v, want (0, 0, -1)", got)
	}
}

func TestPlacementMatrixYaw(t *testing.T) {
	// yaw 90 turns +X (forward) into +Y, then the origin is added
	m := PlacementMatrix(Vec3{100, 0, 0}, [3]float32{0, 90, 0})
	got := m.TransformVec3(Vec3{10, 0, 0})
	if !nearVec(got, Vec3{100, 10, 0}) {
		t.Errorf("yaw placement: got %v, want (100, 10, 0)", got)
	}
}

func TestPlacementMatrixOrder(t *testing.T) {
	// positive pitch looks down regardless of yaw
	m := PlacementMatrix(Vec3{}, [3]float32{90, 90, 0})
	got := m.TransformVec3(Vec3{1, 0, 0})
	if !nearVec(got, Vec3{0, 0, -1}) {
		t.Errorf("pitch after yaw: got %v, want (0, 0, -1)", got)
	}

	// roll only spins around the forward axis
	m = PlacementMatrix(Vec3{}, [3]float32{0, 0, 45})
	got = m.TransformVec3(Vec3{1, 0, 0})
	if !nearVec(got, Vec3{1, 0, 0}) {
		t.Errorf("roll moved forward axis: got %v", got)
	}
}

func TestPerspective(t *testing.T) {
	m := Perspective(math32.Pi/4, 1, 0.1, 100)
	if m[15] != 0 {
		t.Errorf("Perspective [15] should be 0, got %f", m[15])
	}
	if m[11] != -1 {
		t.Errorf("Perspective [11] should be -1, got %f", m[11])
	}
}

func TestLookAtEyeToOrigin(t *testing.T) {
	eye := Vec3{0, -5, 0}
	m := LookAt(eye, Vec3{}, Vec3{0, 0, 1})
	got := m.TransformVec3(eye)
	if !nearVec(got, Vec3{}) {
		t.Errorf("eye should map to origin, got %v", got)
	}
}
