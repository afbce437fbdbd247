package physics

import (
	"fmt"
	"math"
	"sync"

	"github.com/open-teleop/simbridge/pkg/geometry"
)

// KinematicOptions tunes the in-process engine.
type KinematicOptions struct {
	// StepRate is the fixed simulation frequency in steps per second.
	StepRate float64
	// PositionGain is the first-order tracking gain (1/s) under position control.
	PositionGain float64
	// JointInertia converts torque to angular acceleration.
	JointInertia float64
	// Damping is the viscous damping coefficient under torque control.
	Damping float64
}

// DefaultKinematicOptions matches the 240 Hz fixed step of the reference
// simulator.
func DefaultKinematicOptions() KinematicOptions {
	return KinematicOptions{
		StepRate:     240,
		PositionGain: 20,
		JointInertia: 1,
		Damping:      0.5,
	}
}

type kinematicJoint struct {
	info     JointInfo
	position float64
	velocity float64
	mode     ControlMode
	target   float64
	force    float64
}

type kinematicBody struct {
	model  BodyModel
	base   geometry.Pose
	joints []*kinematicJoint
}

type primitive struct {
	shape geometry.Shape
	pose  geometry.Pose
}

// KinematicEngine is a deterministic joint-space integrator. It tracks
// position targets with a first-order lag, integrates torques with damping
// and clamps every joint to its limits. It does not model contacts.
type KinematicEngine struct {
	opts       KinematicOptions
	bodies     []*kinematicBody
	primitives []*primitive
	steps      uint64
	closed     bool
	mu         sync.Mutex
}

var _ Engine = (*KinematicEngine)(nil)

// NewKinematicEngine creates an engine; zero-valued options take defaults.
func NewKinematicEngine(opts KinematicOptions) *KinematicEngine {
	def := DefaultKinematicOptions()
	if opts.StepRate <= 0 {
		opts.StepRate = def.StepRate
	}
	if opts.PositionGain <= 0 {
		opts.PositionGain = def.PositionGain
	}
	if opts.JointInertia <= 0 {
		opts.JointInertia = def.JointInertia
	}
	if opts.Damping < 0 {
		opts.Damping = def.Damping
	}
	return &KinematicEngine{opts: opts}
}

func (e *KinematicEngine) LoadBody(model BodyModel, base geometry.Pose) (BodyID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, ErrEngineClosed
	}
	if err := base.Validate(); err != nil {
		return 0, err
	}

	body := &kinematicBody{model: model, base: base.Normalized()}
	for _, j := range model.Joints {
		if j.Lower > j.Upper {
			return 0, fmt.Errorf("joint %q: lower limit %v exceeds upper limit %v", j.Name, j.Lower, j.Upper)
		}
		body.joints = append(body.joints, &kinematicJoint{
			info:     JointInfo(j),
			position: clamp(0, j.Lower, j.Upper),
		})
	}
	e.bodies = append(e.bodies, body)
	return BodyID(len(e.bodies) - 1), nil
}

func (e *KinematicEngine) JointInfo(body BodyID, joint int) (JointInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	j, err := e.joint(body, joint)
	if err != nil {
		return JointInfo{}, err
	}
	return j.info, nil
}

func (e *KinematicEngine) ResetJointState(body BodyID, joint int, position float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	j, err := e.joint(body, joint)
	if err != nil {
		return err
	}
	j.position = position
	j.velocity = 0
	j.mode = 0
	return nil
}

func (e *KinematicEngine) SetJointTarget(body BodyID, joint int, mode ControlMode, value, force float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	j, err := e.joint(body, joint)
	if err != nil {
		return err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("joint %q: non-finite %s target %v", j.info.Name, mode, value)
	}
	switch mode {
	case PositionControl, TorqueControl:
	default:
		return fmt.Errorf("joint %q: unsupported control mode %d", j.info.Name, mode)
	}
	j.mode = mode
	j.target = value
	j.force = force
	return nil
}

func (e *KinematicEngine) GetJointState(body BodyID, joint int) (JointState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	j, err := e.joint(body, joint)
	if err != nil {
		return JointState{}, err
	}
	return JointState{Position: j.position, Velocity: j.velocity}, nil
}

// Step advances every body by one fixed step.
func (e *KinematicEngine) Step() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}

	dt := 1 / e.opts.StepRate
	for _, b := range e.bodies {
		for _, j := range b.joints {
			e.integrate(j, dt)
		}
	}
	e.steps++
	return nil
}

func (e *KinematicEngine) integrate(j *kinematicJoint, dt float64) {
	switch j.mode {
	case PositionControl:
		v := (j.target - j.position) * e.opts.PositionGain
		// force bounds the achievable tracking rate
		if j.force > 0 {
			limit := j.force / e.opts.JointInertia
			v = clamp(v, -limit, limit)
		}
		j.velocity = v
	case TorqueControl:
		acc := j.target/e.opts.JointInertia - e.opts.Damping*j.velocity
		j.velocity += acc * dt
	default:
		j.velocity = 0
	}

	next := j.position + j.velocity*dt
	bounded := clamp(next, j.info.Lower, j.info.Upper)
	if bounded != next {
		j.velocity = 0
	}
	j.position = bounded
}

func (e *KinematicEngine) CreatePrimitive(shape geometry.Shape, pose geometry.Pose) (Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, ErrEngineClosed
	}
	if shape == nil {
		return 0, fmt.Errorf("create primitive: %w", geometry.ErrInvalidShape)
	}
	if err := shape.Validate(); err != nil {
		return 0, err
	}
	if err := pose.Validate(); err != nil {
		return 0, err
	}
	e.primitives = append(e.primitives, &primitive{shape: shape, pose: pose.Normalized()})
	return Handle(len(e.primitives) - 1), nil
}

func (e *KinematicEngine) SetPose(h Handle, pose geometry.Pose) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.primitive(h)
	if err != nil {
		return err
	}
	if err := pose.Validate(); err != nil {
		return err
	}
	p.pose = pose.Normalized()
	return nil
}

// PrimitivePose returns the current pose of a primitive.
func (e *KinematicEngine) PrimitivePose(h Handle) (geometry.Pose, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.primitive(h)
	if err != nil {
		return geometry.Pose{}, err
	}
	return p.pose, nil
}

// PrimitiveCount returns how many primitives have been created.
func (e *KinematicEngine) PrimitiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.primitives)
}

// Steps returns how many steps have been simulated.
func (e *KinematicEngine) Steps() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.steps
}

// JointMode returns the active control mode and target of a joint.
func (e *KinematicEngine) JointMode(body BodyID, joint int) (ControlMode, float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	j, err := e.joint(body, joint)
	if err != nil {
		return 0, 0, err
	}
	return j.mode, j.target, nil
}

func (e *KinematicEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func (e *KinematicEngine) joint(body BodyID, joint int) (*kinematicJoint, error) {
	if body < 0 || int(body) >= len(e.bodies) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownBody, body)
	}
	b := e.bodies[body]
	if joint < 0 || joint >= len(b.joints) {
		return nil, fmt.Errorf("%w: body %d joint %d", ErrUnknownJoint, body, joint)
	}
	return b.joints[joint], nil
}

func (e *KinematicEngine) primitive(h Handle) (*primitive, error) {
	if h < 0 || int(h) >= len(e.primitives) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	return e.primitives[h], nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
