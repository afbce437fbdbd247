// Package robot models the simulated robots: their joints, how they are
// sampled and how decoded commands drive them.
package robot

import (
	"fmt"

	"github.com/open-teleop/simbridge/pkg/config"
	"github.com/open-teleop/simbridge/pkg/geometry"
	customlog "github.com/open-teleop/simbridge/pkg/log"
	"github.com/open-teleop/simbridge/pkg/physics"
	"github.com/open-teleop/simbridge/pkg/protocol"
)

// Robot is the capability set the exchange loop needs from a robot.
type Robot interface {
	Name() string
	Type() string
	DOF() int
	Reset() error
	ReportState() (protocol.StateReport, error)
	Actuate(cmd protocol.Command) error
}

// Joint is the cached state of one actuated joint. Index is stable and
// 0-based within the owning robot.
type Joint struct {
	Index    int
	Name     string
	Lower    float64
	Upper    float64
	Position float64
	Velocity float64
}

// SeriesRobot is a serial-chain arm driven joint by joint in index order.
type SeriesRobot struct {
	name   string
	model  Model
	base   geometry.Pose
	engine physics.Engine
	body   physics.BodyID
	joints []Joint
}

var _ Robot = (*SeriesRobot)(nil)

// New loads model into engine at base and resets it to its default
// configuration.
func New(engine physics.Engine, model Model, name string, base geometry.Pose) (*SeriesRobot, error) {
	if len(model.Default) != model.DOF() {
		return nil, fmt.Errorf("model %q: %d default positions for %d joints", model.Type, len(model.Default), model.DOF())
	}

	body, err := engine.LoadBody(model.bodyModel(), base)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s robot %q: %w", model.Type, name, err)
	}

	r := &SeriesRobot{
		name:   name,
		model:  model,
		base:   base,
		engine: engine,
		body:   body,
		joints: make([]Joint, model.DOF()),
	}
	for i := range r.joints {
		info, err := engine.JointInfo(body, i)
		if err != nil {
			return nil, fmt.Errorf("robot %q: %w", name, err)
		}
		r.joints[i] = Joint{Index: i, Name: info.Name, Lower: info.Lower, Upper: info.Upper}
	}

	if err := r.Reset(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *SeriesRobot) Name() string        { return r.name }
func (r *SeriesRobot) Type() string        { return r.model.Type }
func (r *SeriesRobot) DOF() int            { return len(r.joints) }
func (r *SeriesRobot) Base() geometry.Pose { return r.base }

// Joints returns a copy of the cached joint state.
func (r *SeriesRobot) Joints() []Joint {
	out := make([]Joint, len(r.joints))
	copy(out, r.joints)
	return out
}

// Reset places every joint at its default position with motors idle.
func (r *SeriesRobot) Reset() error {
	for i, q := range r.model.Default {
		if err := r.engine.ResetJointState(r.body, i, q); err != nil {
			return fmt.Errorf("robot %q: reset joint %d: %w", r.name, i, err)
		}
	}
	_, _, err := r.Sample()
	return err
}

// Sample reads every joint from the engine and refreshes the cache.
func (r *SeriesRobot) Sample() (positions, velocities []float64, err error) {
	positions = make([]float64, len(r.joints))
	velocities = make([]float64, len(r.joints))
	for i := range r.joints {
		st, err := r.engine.GetJointState(r.body, i)
		if err != nil {
			return nil, nil, fmt.Errorf("robot %q: sample joint %d: %w", r.name, i, err)
		}
		r.joints[i].Position = st.Position
		r.joints[i].Velocity = st.Velocity
		positions[i] = st.Position
		velocities[i] = st.Velocity
	}
	return positions, velocities, nil
}

// ReportState samples the robot and wraps the result as JointVelocity.
func (r *SeriesRobot) ReportState() (protocol.StateReport, error) {
	positions, velocities, err := r.Sample()
	if err != nil {
		return nil, err
	}
	return protocol.JointVelocity{Positions: positions, Velocities: velocities}, nil
}

// Actuate applies a per-joint command. Whole-body and state-only variants
// are rejected with protocol.ErrUnsupportedCommand. It does not step time.
func (r *SeriesRobot) Actuate(cmd protocol.Command) error {
	switch c := cmd.(type) {
	case protocol.Joint:
		return r.drive(physics.PositionControl, c.Positions, r.model.PositionForce)
	case protocol.JointWithPeriod:
		return r.drive(physics.PositionControl, c.Positions, r.model.PositionForce)
	case protocol.Tau:
		return r.drive(physics.TorqueControl, c.Torques, 0)
	case protocol.TauWithPeriod:
		return r.drive(physics.TorqueControl, c.Torques, 0)
	case nil:
		return fmt.Errorf("%w: robot %q received no command", protocol.ErrUnsupportedCommand, r.name)
	}
	return fmt.Errorf("%w: %s cannot drive the joints of robot %q", protocol.ErrUnsupportedCommand, cmd.Tag(), r.name)
}

func (r *SeriesRobot) drive(mode physics.ControlMode, values []float64, force float64) error {
	if len(values) != len(r.joints) {
		return fmt.Errorf("%w: robot %q: %d %s targets for %d joints",
			protocol.ErrLengthMismatch, r.name, len(values), mode, len(r.joints))
	}
	for i, v := range values {
		if err := r.engine.SetJointTarget(r.body, i, mode, v, force); err != nil {
			return fmt.Errorf("robot %q: joint %d: %w", r.name, i, err)
		}
	}
	return nil
}

// Build instantiates every configured robot in order. Types are resolved
// through the registry before anything is loaded into the engine, and names
// must be unique.
func Build(engine physics.Engine, specs []config.RobotSpec, logger customlog.Logger) ([]Robot, error) {
	models := make([]Model, len(specs))
	seen := make(map[string]bool, len(specs))
	for i, s := range specs {
		m, err := Lookup(s.Type)
		if err != nil {
			return nil, fmt.Errorf("robot %q: %w", s.Name, err)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("duplicate robot name %q", s.Name)
		}
		seen[s.Name] = true
		models[i] = m
	}

	robots := make([]Robot, 0, len(specs))
	for i, s := range specs {
		r, err := New(engine, models[i], s.Name, s.Base)
		if err != nil {
			return nil, err
		}
		logger.Infof("Loaded %s robot %q with %d joints at %v", s.Type, s.Name, r.DOF(), geometry.VecToArray(s.Base.Translation))
		for _, j := range r.Joints() {
			logger.Debugf("  joint %d (%s): limits [%.4f, %.4f]", j.Index, j.Name, j.Lower, j.Upper)
		}
		robots = append(robots, r)
	}
	return robots, nil
}
