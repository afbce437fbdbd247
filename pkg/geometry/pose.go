// Package geometry holds the spatial types shared by the wire protocol and
// the physics engine boundary.
package geometry

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrInvalidPose is returned for poses that cannot be applied to a body.
var ErrInvalidPose = errors.New("invalid pose")

// Identity is the rotation that leaves a body unrotated.
var Identity = quat.Number{Real: 1}

// Pose is a rigid transform: a translation and a rotation quaternion.
type Pose struct {
	Translation r3.Vec
	Rotation    quat.Number
}

// NewPose builds a pose with the identity rotation.
func NewPose(translation r3.Vec) Pose {
	return Pose{Translation: translation, Rotation: Identity}
}

// VecFromArray converts an [x, y, z] triple.
func VecFromArray(v [3]float64) r3.Vec {
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}
}

// VecToArray converts to an [x, y, z] triple.
func VecToArray(v r3.Vec) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

// QuatFromXYZW converts the scalar-last wire layout [x, y, z, w].
func QuatFromXYZW(q [4]float64) quat.Number {
	return quat.Number{Real: q[3], Imag: q[0], Jmag: q[1], Kmag: q[2]}
}

// QuatToXYZW converts to the scalar-last wire layout [x, y, z, w].
func QuatToXYZW(q quat.Number) [4]float64 {
	return [4]float64{q.Imag, q.Jmag, q.Kmag, q.Real}
}

// Validate checks that every component is finite and that the rotation can
// be normalised.
func (p Pose) Validate() error {
	for _, v := range []float64{p.Translation.X, p.Translation.Y, p.Translation.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite translation %v", ErrInvalidPose, p.Translation)
		}
	}
	n := quat.Abs(p.Rotation)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return fmt.Errorf("%w: rotation %v has no usable norm", ErrInvalidPose, QuatToXYZW(p.Rotation))
	}
	return nil
}

// Normalized returns the pose with a unit rotation quaternion.
func (p Pose) Normalized() Pose {
	n := quat.Abs(p.Rotation)
	if n == 0 {
		return p
	}
	p.Rotation = quat.Scale(1/n, p.Rotation)
	return p
}
