// Package camera builds left-handed view and projection matrices.
//
// Matrices follow the row-vector convention: a point is transformed as
// v' = v * M, so a full transform is world * view * proj. Upload the
// transpose to a shader that multiplies column vectors.
package camera

import (
	"math"

	mgl32 "github.com/go-gl/mathgl/mgl32"
)

const (
	DefaultWidth  = 1280
	DefaultHeight = 720
	DefaultNear   = 0.1
	DefaultFar    = 100.0
)

// DefaultFovY is 60 degrees.
var DefaultFovY = mgl32.DegToRad(60)

type Camera struct {
	eye, target, up mgl32.Vec3

	fovY          float32
	width, height uint32
	near, far     float32

	view mgl32.Mat4
	proj mgl32.Mat4
}

// New returns a camera at (0,0,-3) looking at the origin with +Y up and the
// default lens.
func New() *Camera {
	c := &Camera{}
	c.SetLookAt(mgl32.Vec3{0, 0, -3}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	c.SetLens(DefaultFovY, DefaultWidth, DefaultHeight, DefaultNear, DefaultFar)
	return c
}

// SetLookAt recomputes the view matrix.
func (c *Camera) SetLookAt(eye, target, up mgl32.Vec3) {
	c.eye, c.target, c.up = eye, target, up
	c.view = LookAtLH(eye, target, up)
}

// SetLens recomputes the projection from a vertical field of view in radians
// and the aspect ratio width/height. A zero dimension keeps the previous
// aspect ratio.
func (c *Camera) SetLens(fovY float32, width, height uint32, near, far float32) {
	c.fovY, c.near, c.far = fovY, near, far
	if width > 0 && height > 0 {
		c.width, c.height = width, height
	}
	c.proj = PerspectiveFovLH(fovY, c.Aspect(), near, far)
}

// SetExtent re-applies the current lens for a new viewport size.
func (c *Camera) SetExtent(width, height uint32) {
	c.SetLens(c.fovY, width, height, c.near, c.far)
}

func (c *Camera) View() mgl32.Mat4 { return c.view }
func (c *Camera) Proj() mgl32.Mat4 { return c.proj }

// ViewProj is view * proj.
func (c *Camera) ViewProj() mgl32.Mat4 { return c.view.Mul4(c.proj) }

func (c *Camera) FovY() float32 { return c.fovY }

func (c *Camera) Aspect() float32 {
	if c.height == 0 {
		return 1
	}
	return float32(c.width) / float32(c.height)
}

// LookAtLH is the left-handed look-at matrix.
func LookAtLH(eye, target, up mgl32.Vec3) mgl32.Mat4 {
	z := target.Sub(eye).Normalize()
	x := up.Cross(z).Normalize()
	y := z.Cross(x)
	return mgl32.Mat4FromRows(
		mgl32.Vec4{x[0], y[0], z[0], 0},
		mgl32.Vec4{x[1], y[1], z[1], 0},
		mgl32.Vec4{x[2], y[2], z[2], 0},
		mgl32.Vec4{-x.Dot(eye), -y.Dot(eye), -z.Dot(eye), 1},
	)
}

// PerspectiveFovLH is the left-handed perspective projection mapping view
// depth [near, far] to [0, 1].
func PerspectiveFovLH(fovY, aspect, near, far float32) mgl32.Mat4 {
	h := float32(1 / math.Tan(float64(fovY)/2))
	w := h / aspect
	q := far / (far - near)
	return mgl32.Mat4FromRows(
		mgl32.Vec4{w, 0, 0, 0},
		mgl32.Vec4{0, h, 0, 0},
		mgl32.Vec4{0, 0, q, 1},
		mgl32.Vec4{0, 0, -q * near, 0},
	)
}

// RotationY rotates about +Y by angle radians.
func RotationY(angle float32) mgl32.Mat4 {
	return mgl32.HomogRotate3DY(angle).Transpose()
}

// AspectFromProj recovers width/height from a projection built by
// PerspectiveFovLH.
func AspectFromProj(p mgl32.Mat4) float32 {
	return p.At(1, 1) / p.At(0, 0)
}

// FovYFromProj recovers the vertical field of view in radians.
func FovYFromProj(p mgl32.Mat4) float32 {
	return float32(2 * math.Atan(1/float64(p.At(1, 1))))
}

// TransformPoint applies m to the row vector (p, 1) and divides by w.
func TransformPoint(p mgl32.Vec3, m mgl32.Mat4) mgl32.Vec3 {
	v := m.Transpose().Mul4x1(p.Vec4(1))
	return v.Vec3().Mul(1 / v[3])
}
