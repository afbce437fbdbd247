package robot

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/open-teleop/simbridge/pkg/physics"
)

// ErrUnknownRobotType is returned when a configured type has no model.
var ErrUnknownRobotType = errors.New("unknown robot type")

// DefaultPositionForce is the maximum force applied while tracking a
// position target.
const DefaultPositionForce = 2000

// Model is the static description of a robot type.
type Model struct {
	Type          string
	Asset         string
	Joints        []physics.JointSpec
	Default       []float64
	PositionForce float64
}

// DOF returns the number of actuated joints.
func (m Model) DOF() int { return len(m.Joints) }

func (m Model) bodyModel() physics.BodyModel {
	return physics.BodyModel{Asset: m.Asset, Joints: m.Joints}
}

var frankaDefault = []float64{0, -math.Pi / 4, 0, -2.3562, 0, math.Pi / 2, math.Pi / 4}

// registry holds every robot type the bridge can instantiate.
var registry = map[string]Model{
	"panda": {
		Type:          "panda",
		Asset:         "franka_panda/panda.urdf",
		Joints:        frankaJoints("panda_joint", []float64{-2.8973, -1.7628, -2.8973, -3.0718, -2.8973, -0.0175, -2.8973}, []float64{2.8973, 1.7628, 2.8973, -0.0698, 2.8973, 3.7525, 2.8973}),
		Default:       frankaDefault,
		PositionForce: DefaultPositionForce,
	},
	"fr3": {
		Type:          "fr3",
		Asset:         "franka_fr3/fr3.urdf",
		Joints:        frankaJoints("fr3_joint", []float64{-2.7437, -1.7837, -2.9007, -3.0421, -2.8065, 0.5445, -3.0159}, []float64{2.7437, 1.7837, 2.9007, -0.1518, 2.8065, 4.5169, 3.0159}),
		Default:       frankaDefault,
		PositionForce: DefaultPositionForce,
	},
}

func frankaJoints(prefix string, lower, upper []float64) []physics.JointSpec {
	joints := make([]physics.JointSpec, len(lower))
	for i := range lower {
		joints[i] = physics.JointSpec{
			Name:  fmt.Sprintf("%s%d", prefix, i+1),
			Lower: lower[i],
			Upper: upper[i],
		}
	}
	return joints
}

// Lookup returns the model registered for robotType.
func Lookup(robotType string) (Model, error) {
	m, ok := registry[robotType]
	if !ok {
		return Model{}, fmt.Errorf("%w: %q (known: %v)", ErrUnknownRobotType, robotType, Types())
	}
	return m, nil
}

// Types lists the registered robot types in sorted order.
func Types() []string {
	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
