package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/open-teleop/simbridge/pkg/geometry"
)

// MarshalCommand encodes c as {"<Tag>": <payload>}.
func MarshalCommand(c Command) ([]byte, error) {
	var payload interface{}
	switch c := c.(type) {
	case Joint:
		payload = vector(c.Positions)
	case JointWithPeriod:
		payload = []interface{}{c.Period, vector(c.Positions)}
	case Tau:
		payload = vector(c.Torques)
	case TauWithPeriod:
		payload = []interface{}{c.Period, vector(c.Torques)}
	case Pose:
		payload = []interface{}{geometry.QuatToXYZW(c.Rotation), geometry.VecToArray(c.Translation)}
	case Velocity:
		payload = geometry.VecToArray(c.Value)
	case Acceleration:
		payload = geometry.VecToArray(c.Value)
	case JointVelocity:
		payload = [][]float64{vector(c.Positions), vector(c.Velocities)}
	case JointVelocityAcceleration:
		payload = [][]float64{vector(c.Positions), vector(c.Velocities), vector(c.Accelerations)}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownCommandTag, c)
	}
	return json.Marshal(map[Tag]interface{}{c.Tag(): payload})
}

// ParseCommand decodes a single tagged command. It checks the payload shape
// but not joint arity, which depends on the receiving robot.
func ParseCommand(data []byte) (Command, error) {
	tag, payload, err := splitTagged(data)
	if err != nil {
		return nil, err
	}

	switch Tag(tag) {
	case TagJoint:
		p, err := floats(payload, "positions")
		if err != nil {
			return nil, err
		}
		return Joint{Positions: p}, nil

	case TagJointWithPeriod:
		period, p, err := periodAndVector(payload, "positions")
		if err != nil {
			return nil, err
		}
		return JointWithPeriod{Period: period, Positions: p}, nil

	case TagTau:
		t, err := floats(payload, "torques")
		if err != nil {
			return nil, err
		}
		return Tau{Torques: t}, nil

	case TagTauWithPeriod:
		period, t, err := periodAndVector(payload, "torques")
		if err != nil {
			return nil, err
		}
		return TauWithPeriod{Period: period, Torques: t}, nil

	case TagPose:
		parts, err := tuple(payload, 2, "pose")
		if err != nil {
			return nil, err
		}
		rot, err := fixed(parts[0], 4, "rotation")
		if err != nil {
			return nil, err
		}
		trans, err := fixed(parts[1], 3, "translation")
		if err != nil {
			return nil, err
		}
		return Pose{
			Rotation:    geometry.QuatFromXYZW([4]float64(rot)),
			Translation: geometry.VecFromArray([3]float64(trans)),
		}, nil

	case TagVelocity, TagAcceleration:
		v, err := fixed(payload, 3, "vector")
		if err != nil {
			return nil, err
		}
		if Tag(tag) == TagVelocity {
			return Velocity{Value: geometry.VecFromArray([3]float64(v))}, nil
		}
		return Acceleration{Value: geometry.VecFromArray([3]float64(v))}, nil

	case TagJointVelocity:
		vs, err := vectors(payload, "positions", "velocities")
		if err != nil {
			return nil, err
		}
		return JointVelocity{Positions: vs[0], Velocities: vs[1]}, nil

	case TagJointVelocityAcceleration:
		vs, err := vectors(payload, "positions", "velocities", "accelerations")
		if err != nil {
			return nil, err
		}
		return JointVelocityAcceleration{Positions: vs[0], Velocities: vs[1], Accelerations: vs[2]}, nil
	}

	return nil, fmt.Errorf("%w: %w: %q", ErrMalformedMessage, ErrUnknownCommandTag, tag)
}

// ParseStateReport decodes a single state report. Period-carrying variants
// are commands only and are rejected.
func ParseStateReport(data []byte) (StateReport, error) {
	c, err := ParseCommand(data)
	if err != nil {
		return nil, err
	}
	s, ok := c.(StateReport)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a state report", ErrUnsupportedCommand, c.Tag())
	}
	return s, nil
}

// EncodeStateBatch encodes reports as a JSON array in the given order.
func EncodeStateBatch(reports []StateReport) ([]byte, error) {
	items := make([]json.RawMessage, 0, len(reports))
	for i, r := range reports {
		b, err := MarshalCommand(r)
		if err != nil {
			return nil, fmt.Errorf("state report %d: %w", i, err)
		}
		items = append(items, b)
	}
	return json.Marshal(items)
}

// DecodeStateBatch decodes an array of state reports.
func DecodeStateBatch(data []byte) ([]StateReport, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: state batch: %v", ErrMalformedMessage, err)
	}
	if items == nil {
		return nil, fmt.Errorf("%w: state batch is not an array", ErrMalformedMessage)
	}
	reports := make([]StateReport, 0, len(items))
	for i, item := range items {
		r, err := ParseStateReport(item)
		if err != nil {
			return nil, fmt.Errorf("state report %d: %w", i, err)
		}
		reports = append(reports, r)
	}
	return reports, nil
}

// splitTagged unpacks a one-key object into its tag and payload.
func splitTagged(data []byte) (string, json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", nil, fmt.Errorf("%w: expected tagged object: %v", ErrMalformedMessage, err)
	}
	if len(obj) != 1 {
		return "", nil, fmt.Errorf("%w: tagged object must have exactly one key, got %d", ErrMalformedMessage, len(obj))
	}
	var tag string
	var payload json.RawMessage
	for k, v := range obj {
		tag, payload = k, v
	}
	if isNull(payload) {
		return "", nil, fmt.Errorf("%w: %s payload is null", ErrMalformedMessage, tag)
	}
	return tag, payload, nil
}

// floats decodes a numeric array, rejecting null elements and non-numbers.
func floats(raw json.RawMessage, what string) ([]float64, error) {
	if isNull(raw) {
		return nil, fmt.Errorf("%w: %s is null", ErrMalformedMessage, what)
	}
	var ptrs []*float64
	if err := json.Unmarshal(raw, &ptrs); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedMessage, what, err)
	}
	out := make([]float64, len(ptrs))
	for i, p := range ptrs {
		if p == nil {
			return nil, fmt.Errorf("%w: %s[%d] is null", ErrMalformedMessage, what, i)
		}
		out[i] = *p
	}
	return out, nil
}

func fixed(raw json.RawMessage, n int, what string) ([]float64, error) {
	v, err := floats(raw, what)
	if err != nil {
		return nil, err
	}
	if len(v) != n {
		return nil, fmt.Errorf("%w: %w: %s needs %d values, got %d", ErrMalformedMessage, ErrLengthMismatch, what, n, len(v))
	}
	return v, nil
}

func tuple(raw json.RawMessage, n int, what string) ([]json.RawMessage, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedMessage, what, err)
	}
	if len(parts) != n {
		return nil, fmt.Errorf("%w: %s needs %d elements, got %d", ErrMalformedMessage, what, n, len(parts))
	}
	return parts, nil
}

func periodAndVector(raw json.RawMessage, what string) (float64, []float64, error) {
	parts, err := tuple(raw, 2, "period payload")
	if err != nil {
		return 0, nil, err
	}
	var period *float64
	if err := json.Unmarshal(parts[0], &period); err != nil || period == nil {
		return 0, nil, fmt.Errorf("%w: period must be a number", ErrMalformedMessage)
	}
	if !(*period > 0) || math.IsInf(*period, 0) {
		return 0, nil, fmt.Errorf("%w: period must be positive and finite, got %v", ErrMalformedMessage, *period)
	}
	v, err := floats(parts[1], what)
	if err != nil {
		return 0, nil, err
	}
	return *period, v, nil
}

func vectors(raw json.RawMessage, names ...string) ([][]float64, error) {
	parts, err := tuple(raw, len(names), "joint state payload")
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(names))
	for i, name := range names {
		if out[i], err = floats(parts[i], name); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// vector keeps empty payloads encoded as [] rather than null.
func vector(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
