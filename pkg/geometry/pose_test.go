package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestQuatWireLayout(t *testing.T) {
	q := QuatFromXYZW([4]float64{0.1, 0.2, 0.3, 0.9})

	assert.Equal(t, quat.Number{Real: 0.9, Imag: 0.1, Jmag: 0.2, Kmag: 0.3}, q)
	assert.Equal(t, [4]float64{0.1, 0.2, 0.3, 0.9}, QuatToXYZW(q))
}

func TestPoseValidate(t *testing.T) {
	require.NoError(t, NewPose(r3.Vec{X: 1}).Validate())

	zeroRot := Pose{Translation: r3.Vec{}, Rotation: quat.Number{}}
	assert.ErrorIs(t, zeroRot.Validate(), ErrInvalidPose)

	nanPos := NewPose(r3.Vec{X: math.NaN()})
	assert.ErrorIs(t, nanPos.Validate(), ErrInvalidPose)
}

func TestPoseNormalized(t *testing.T) {
	p := Pose{Rotation: quat.Number{Real: 2}}
	assert.InDelta(t, 1.0, quat.Abs(p.Normalized().Rotation), 1e-12)
}

func TestShapeValidate(t *testing.T) {
	assert.NoError(t, Sphere{Radius: 0.1}.Validate())
	assert.ErrorIs(t, Sphere{Radius: 0}.Validate(), ErrInvalidShape)
	assert.ErrorIs(t, Cuboid{HalfExtents: r3.Vec{X: 1, Y: 1}}.Validate(), ErrInvalidShape)
	assert.NoError(t, Capsule{Radius: 0.05, Length: 0.3}.Validate())
	assert.ErrorIs(t, Capsule{Radius: -1}.Validate(), ErrInvalidShape)
}
