package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/open-teleop/simbridge/pkg/geometry"
)

// ObstacleDescriptor is one obstacle sighting delivered with a reply.
type ObstacleDescriptor struct {
	ID    int64
	Shape geometry.Shape
	Pose  geometry.Pose
}

type wireObstacle struct {
	ID    *int64          `json:"id"`
	Shape json.RawMessage `json:"shape"`
	Pose  *wirePose       `json:"pose"`
}

type wirePose struct {
	Translation json.RawMessage `json:"translation"`
	Rotation    json.RawMessage `json:"rotation,omitempty"`
}

type sphereParams struct {
	Radius *float64 `json:"radius"`
}

type cuboidParams struct {
	HalfExtents json.RawMessage `json:"half_extents"`
}

type capsuleParams struct {
	Radius *float64 `json:"radius"`
	Length *float64 `json:"length"`
}

// ParseObstacle decodes {"<Shape>": {"id": .., "shape": {..}, "pose": {..}}}.
// The outer key names the shape kind and selects how "shape" is read.
func ParseObstacle(data []byte) (ObstacleDescriptor, error) {
	kind, body, err := splitTagged(data)
	if err != nil {
		return ObstacleDescriptor{}, err
	}

	var w wireObstacle
	if err := json.Unmarshal(body, &w); err != nil {
		return ObstacleDescriptor{}, fmt.Errorf("%w: obstacle: %v", ErrMalformedMessage, err)
	}
	if w.ID == nil {
		return ObstacleDescriptor{}, fmt.Errorf("%w: obstacle is missing id", ErrMalformedMessage)
	}
	if w.Pose == nil {
		return ObstacleDescriptor{}, fmt.Errorf("%w: obstacle %d is missing pose", ErrMalformedMessage, *w.ID)
	}

	shape, err := ParseShape(geometry.ShapeKind(kind), w.Shape)
	if err != nil {
		return ObstacleDescriptor{}, fmt.Errorf("obstacle %d: %w", *w.ID, err)
	}
	pose, err := w.Pose.decode()
	if err != nil {
		return ObstacleDescriptor{}, fmt.Errorf("obstacle %d: %w", *w.ID, err)
	}

	return ObstacleDescriptor{ID: *w.ID, Shape: shape, Pose: pose}, nil
}

// ParseShape reads the parameters of a shape of the given kind. Fields that
// do not belong to the shape are ignored so that callers can embed the
// parameters in larger objects.
func ParseShape(kind geometry.ShapeKind, raw json.RawMessage) (geometry.Shape, error) {
	if isNull(raw) {
		return nil, fmt.Errorf("%w: %s parameters are missing", ErrMalformedMessage, kind)
	}

	var shape geometry.Shape
	switch kind {
	case geometry.KindSphere:
		var p sphereParams
		if err := json.Unmarshal(raw, &p); err != nil || p.Radius == nil {
			return nil, fmt.Errorf("%w: sphere needs a numeric radius", ErrMalformedMessage)
		}
		shape = geometry.Sphere{Radius: *p.Radius}
	case geometry.KindCuboid:
		var p cuboidParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: cuboid: %v", ErrMalformedMessage, err)
		}
		h, err := fixed(p.HalfExtents, 3, "half_extents")
		if err != nil {
			return nil, err
		}
		shape = geometry.Cuboid{HalfExtents: geometry.VecFromArray([3]float64(h))}
	case geometry.KindCapsule:
		var p capsuleParams
		if err := json.Unmarshal(raw, &p); err != nil || p.Radius == nil || p.Length == nil {
			return nil, fmt.Errorf("%w: capsule needs numeric radius and length", ErrMalformedMessage)
		}
		shape = geometry.Capsule{Radius: *p.Radius, Length: *p.Length}
	default:
		return nil, fmt.Errorf("%w: %w: %q", ErrMalformedMessage, ErrUnknownObstacleShape, kind)
	}

	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return shape, nil
}

func (p wirePose) decode() (geometry.Pose, error) {
	t, err := fixed(p.Translation, 3, "translation")
	if err != nil {
		return geometry.Pose{}, err
	}
	pose := geometry.NewPose(geometry.VecFromArray([3]float64(t)))
	if !isNull(p.Rotation) {
		r, err := fixed(p.Rotation, 4, "rotation")
		if err != nil {
			return geometry.Pose{}, err
		}
		pose.Rotation = geometry.QuatFromXYZW([4]float64(r))
	}
	if err := pose.Validate(); err != nil {
		return geometry.Pose{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return pose, nil
}

// MarshalObstacle encodes d in the reply envelope layout.
func MarshalObstacle(d ObstacleDescriptor) ([]byte, error) {
	var params interface{}
	switch s := d.Shape.(type) {
	case geometry.Sphere:
		params = map[string]float64{"radius": s.Radius}
	case geometry.Cuboid:
		params = map[string][3]float64{"half_extents": geometry.VecToArray(s.HalfExtents)}
	case geometry.Capsule:
		params = map[string]float64{"radius": s.Radius, "length": s.Length}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownObstacleShape, d.Shape)
	}

	body := map[string]interface{}{
		"id":    d.ID,
		"shape": params,
		"pose": map[string]interface{}{
			"translation": geometry.VecToArray(d.Pose.Translation),
			"rotation":    geometry.QuatToXYZW(d.Pose.Rotation),
		},
	}
	return json.Marshal(map[geometry.ShapeKind]interface{}{d.Shape.Kind(): body})
}
