// Package physics is the boundary to the simulation engine. The bridge only
// relies on the Engine interface; KinematicEngine is the in-process
// implementation used by the binaries and tests.
package physics

import (
	"errors"

	"github.com/open-teleop/simbridge/pkg/geometry"
)

// Common errors
var (
	ErrUnknownBody   = errors.New("unknown body")
	ErrUnknownJoint  = errors.New("unknown joint")
	ErrUnknownHandle = errors.New("unknown primitive handle")
	ErrEngineClosed  = errors.New("engine is closed")
)

// BodyID identifies an articulated body loaded into the engine.
type BodyID int

// Handle identifies a primitive created by the engine.
type Handle int

// ControlMode selects how a joint target is interpreted.
type ControlMode int

const (
	// PositionControl drives the joint toward a target position, limited by a
	// maximum force.
	PositionControl ControlMode = iota + 1
	// TorqueControl applies the value directly as joint torque.
	TorqueControl
)

func (m ControlMode) String() string {
	switch m {
	case PositionControl:
		return "position"
	case TorqueControl:
		return "torque"
	}
	return "unknown"
}

// JointSpec describes one actuated joint of a body model.
type JointSpec struct {
	Name  string
	Lower float64
	Upper float64
}

// BodyModel is the description an engine needs to instantiate a robot.
type BodyModel struct {
	Asset  string
	Joints []JointSpec
}

// JointInfo is the static description of a loaded joint.
type JointInfo struct {
	Name  string
	Lower float64
	Upper float64
}

// JointState is a sampled joint position and velocity.
type JointState struct {
	Position float64
	Velocity float64
}

// Engine is the simulation surface the bridge drives.
type Engine interface {
	LoadBody(model BodyModel, base geometry.Pose) (BodyID, error)
	JointInfo(body BodyID, joint int) (JointInfo, error)
	ResetJointState(body BodyID, joint int, position float64) error
	SetJointTarget(body BodyID, joint int, mode ControlMode, value, force float64) error
	GetJointState(body BodyID, joint int) (JointState, error)
	Step() error
	CreatePrimitive(shape geometry.Shape, pose geometry.Pose) (Handle, error)
	SetPose(h Handle, pose geometry.Pose) error
	Close() error
}

// PrimitiveEngine is the subset of Engine used for obstacle bookkeeping.
type PrimitiveEngine interface {
	CreatePrimitive(shape geometry.Shape, pose geometry.Pose) (Handle, error)
	SetPose(h Handle, pose geometry.Pose) error
}
