package geometry

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrInvalidShape is returned for shapes with non-positive dimensions.
var ErrInvalidShape = errors.New("invalid shape")

// ShapeKind names a primitive. The names double as wire keys.
type ShapeKind string

const (
	KindSphere  ShapeKind = "Sphere"
	KindCuboid  ShapeKind = "Cuboid"
	KindCapsule ShapeKind = "Capsule"
)

// Shape is the closed set of collision primitives the engine can create.
type Shape interface {
	Kind() ShapeKind
	Validate() error
	isShape()
}

// Sphere is a ball of the given radius centred on its pose.
type Sphere struct {
	Radius float64
}

// Cuboid is a box described by its half extents along each axis.
type Cuboid struct {
	HalfExtents r3.Vec
}

// Capsule is a cylinder of Length along local z capped by hemispheres.
type Capsule struct {
	Radius float64
	Length float64
}

func (Sphere) Kind() ShapeKind  { return KindSphere }
func (Cuboid) Kind() ShapeKind  { return KindCuboid }
func (Capsule) Kind() ShapeKind { return KindCapsule }

func (Sphere) isShape()  {}
func (Cuboid) isShape()  {}
func (Capsule) isShape() {}

func (s Sphere) Validate() error {
	if !(s.Radius > 0) {
		return fmt.Errorf("%w: sphere radius %v", ErrInvalidShape, s.Radius)
	}
	return nil
}

func (c Cuboid) Validate() error {
	h := c.HalfExtents
	if !(h.X > 0 && h.Y > 0 && h.Z > 0) {
		return fmt.Errorf("%w: cuboid half extents %v", ErrInvalidShape, h)
	}
	return nil
}

func (c Capsule) Validate() error {
	if !(c.Radius > 0) || c.Length < 0 {
		return fmt.Errorf("%w: capsule radius %v length %v", ErrInvalidShape, c.Radius, c.Length)
	}
	return nil
}
