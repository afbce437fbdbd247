// Package protocol defines the messages exchanged with the controller peer:
// per-robot state reports going out, command batches and obstacle updates
// coming back. Every message is a single JSON value; tagged variants use the
// one-key object convention {"<Tag>": <payload>}.
package protocol

import (
	"fmt"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Tag is the discriminant of a Command or StateReport.
type Tag string

const (
	TagJoint                     Tag = "Joint"
	TagJointWithPeriod           Tag = "JointWithPeriod"
	TagTau                       Tag = "Tau"
	TagTauWithPeriod             Tag = "TauWithPeriod"
	TagPose                      Tag = "Pose"
	TagVelocity                  Tag = "Velocity"
	TagAcceleration              Tag = "Acceleration"
	TagJointVelocity             Tag = "JointVelocity"
	TagJointVelocityAcceleration Tag = "JointVelocityAcceleration"
)

// Tags lists the closed tag set in declaration order.
var Tags = []Tag{
	TagJoint, TagJointWithPeriod, TagTau, TagTauWithPeriod, TagPose,
	TagVelocity, TagAcceleration, TagJointVelocity, TagJointVelocityAcceleration,
}

// Command is one decoded per-robot instruction. The set of implementations is
// closed to this package.
type Command interface {
	Tag() Tag
	isCommand()
}

// StateReport is the subset of variants that can describe a robot's state.
type StateReport interface {
	Command
	isState()
}

// Joint drives each joint toward a target position.
type Joint struct {
	Positions []float64
}

// JointWithPeriod is Joint plus the control period to simulate afterwards.
type JointWithPeriod struct {
	Period    float64
	Positions []float64
}

// Tau applies a torque to each joint.
type Tau struct {
	Torques []float64
}

// TauWithPeriod is Tau plus the control period to simulate afterwards.
type TauWithPeriod struct {
	Period  float64
	Torques []float64
}

// Pose is a whole-body pose.
type Pose struct {
	Rotation    quat.Number
	Translation r3.Vec
}

// Velocity is a whole-body linear velocity.
type Velocity struct {
	Value r3.Vec
}

// Acceleration is a whole-body linear acceleration.
type Acceleration struct {
	Value r3.Vec
}

// JointVelocity carries joint positions and velocities. It is the report
// every robot sends each cycle.
type JointVelocity struct {
	Positions  []float64
	Velocities []float64
}

// JointVelocityAcceleration carries positions, velocities and accelerations.
type JointVelocityAcceleration struct {
	Positions     []float64
	Velocities    []float64
	Accelerations []float64
}

func (Joint) Tag() Tag                     { return TagJoint }
func (JointWithPeriod) Tag() Tag           { return TagJointWithPeriod }
func (Tau) Tag() Tag                       { return TagTau }
func (TauWithPeriod) Tag() Tag             { return TagTauWithPeriod }
func (Pose) Tag() Tag                      { return TagPose }
func (Velocity) Tag() Tag                  { return TagVelocity }
func (Acceleration) Tag() Tag              { return TagAcceleration }
func (JointVelocity) Tag() Tag             { return TagJointVelocity }
func (JointVelocityAcceleration) Tag() Tag { return TagJointVelocityAcceleration }

func (Joint) isCommand()                     {}
func (JointWithPeriod) isCommand()           {}
func (Tau) isCommand()                       {}
func (TauWithPeriod) isCommand()             {}
func (Pose) isCommand()                      {}
func (Velocity) isCommand()                  {}
func (Acceleration) isCommand()              {}
func (JointVelocity) isCommand()             {}
func (JointVelocityAcceleration) isCommand() {}

func (Joint) isState()                     {}
func (Tau) isState()                       {}
func (Pose) isState()                      {}
func (Velocity) isState()                  {}
func (Acceleration) isState()              {}
func (JointVelocity) isState()             {}
func (JointVelocityAcceleration) isState() {}

// Period returns the explicit control period carried by c, if any.
func Period(c Command) (float64, bool) {
	switch c := c.(type) {
	case JointWithPeriod:
		return c.Period, true
	case TauWithPeriod:
		return c.Period, true
	}
	return 0, false
}

// jointVectors returns the joint-indexed payload vectors of c, keyed by
// field name for diagnostics.
func jointVectors(c Command) []namedVector {
	switch c := c.(type) {
	case Joint:
		return []namedVector{{"positions", c.Positions}}
	case JointWithPeriod:
		return []namedVector{{"positions", c.Positions}}
	case Tau:
		return []namedVector{{"torques", c.Torques}}
	case TauWithPeriod:
		return []namedVector{{"torques", c.Torques}}
	case JointVelocity:
		return []namedVector{{"positions", c.Positions}, {"velocities", c.Velocities}}
	case JointVelocityAcceleration:
		return []namedVector{
			{"positions", c.Positions},
			{"velocities", c.Velocities},
			{"accelerations", c.Accelerations},
		}
	}
	return nil
}

type namedVector struct {
	name   string
	values []float64
}

// CheckArity verifies that every joint-indexed vector in c has exactly dof
// entries. Whole-body variants always pass.
func CheckArity(c Command, dof int) error {
	for _, v := range jointVectors(c) {
		if len(v.values) != dof {
			return fmt.Errorf("%w: %w: %s %s has %d entries, robot has %d joints",
				ErrMalformedMessage, ErrLengthMismatch, c.Tag(), v.name, len(v.values), dof)
		}
	}
	return nil
}

// IsActuation reports whether c can drive per-joint actuators.
func IsActuation(c Command) bool {
	switch c.(type) {
	case Joint, JointWithPeriod, Tau, TauWithPeriod:
		return true
	}
	return false
}
