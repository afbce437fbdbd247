package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/open-teleop/simbridge/pkg/geometry"
	"github.com/open-teleop/simbridge/pkg/protocol"
)

// Robot source errors
var (
	ErrNoRobotSource        = errors.New("no robot source given: use either a robot list or a scene file")
	ErrAmbiguousRobotSource = errors.New("both a robot list and a scene file were given: use exactly one")
	ErrInvalidRobotToken    = errors.New("invalid robot token")
)

// RobotSpec describes one robot to instantiate.
type RobotSpec struct {
	Type string
	Name string
	Base geometry.Pose
}

// StaticObstacle is a scene obstacle created once at startup.
type StaticObstacle struct {
	Shape geometry.Shape
	Pose  geometry.Pose
}

// Scene is the resolved set of robots and static obstacles.
type Scene struct {
	Robots    []RobotSpec
	Obstacles []StaticObstacle
}

type sceneFile struct {
	Robots []struct {
		RobotType string `json:"robot_type"`
		Name      string `json:"name"`
		BasePose  struct {
			Translation []float64 `json:"translation"`
			Rotation    []float64 `json:"rotation,omitempty"`
		} `json:"base_pose"`
	} `json:"robots"`
	Obstacles []map[string]json.RawMessage `json:"obstacles"`
}

type obstacleCenter struct {
	Center []float64 `json:"center"`
}

// LoadScene reads a scene file. Unknown obstacle shapes fail with
// protocol.ErrUnknownObstacleShape.
func LoadScene(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading scene file '%s': %w", path, err)
	}
	scene, err := ParseScene(data)
	if err != nil {
		return nil, fmt.Errorf("scene file '%s': %w", path, err)
	}
	return scene, nil
}

// ParseScene decodes scene JSON.
func ParseScene(data []byte) (*Scene, error) {
	var f sceneFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("error parsing scene: %w", err)
	}

	scene := &Scene{}
	for i, r := range f.Robots {
		if r.RobotType == "" || r.Name == "" {
			return nil, fmt.Errorf("robots[%d]: robot_type and name are required", i)
		}
		if len(r.BasePose.Translation) != 3 {
			return nil, fmt.Errorf("robots[%d] %q: base_pose.translation needs 3 values, got %d", i, r.Name, len(r.BasePose.Translation))
		}
		base := geometry.NewPose(geometry.VecFromArray([3]float64(r.BasePose.Translation)))
		if r.BasePose.Rotation != nil {
			if len(r.BasePose.Rotation) != 4 {
				return nil, fmt.Errorf("robots[%d] %q: base_pose.rotation needs 4 values, got %d", i, r.Name, len(r.BasePose.Rotation))
			}
			base.Rotation = geometry.QuatFromXYZW([4]float64(r.BasePose.Rotation))
		}
		if err := base.Validate(); err != nil {
			return nil, fmt.Errorf("robots[%d] %q: %w", i, r.Name, err)
		}
		scene.Robots = append(scene.Robots, RobotSpec{Type: r.RobotType, Name: r.Name, Base: base})
	}

	for i, entry := range f.Obstacles {
		if len(entry) != 1 {
			return nil, fmt.Errorf("obstacles[%d]: expected exactly one shape key, got %d", i, len(entry))
		}
		for kind, raw := range entry {
			shape, err := protocol.ParseShape(geometry.ShapeKind(kind), raw)
			if err != nil {
				return nil, fmt.Errorf("obstacles[%d]: %w", i, err)
			}
			var c obstacleCenter
			if err := json.Unmarshal(raw, &c); err != nil || len(c.Center) != 3 {
				return nil, fmt.Errorf("obstacles[%d]: %s needs a 3-value center", i, kind)
			}
			scene.Obstacles = append(scene.Obstacles, StaticObstacle{
				Shape: shape,
				Pose:  geometry.NewPose(geometry.VecFromArray([3]float64(c.Center))),
			})
		}
	}
	return scene, nil
}

// ParseRobotTokens turns "type_id" tokens such as "panda_1" into robot specs.
// Robot i is placed at (i, 0, 0).
func ParseRobotTokens(tokens []string) ([]RobotSpec, error) {
	specs := make([]RobotSpec, 0, len(tokens))
	for i, tok := range tokens {
		parts := strings.Split(tok, "_")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("%w: %q, use 'type_id'", ErrInvalidRobotToken, tok)
		}
		specs = append(specs, RobotSpec{
			Type: parts[0],
			Name: tok,
			Base: geometry.NewPose(r3.Vec{X: float64(i)}),
		})
	}
	return specs, nil
}

// ResolveScene builds the scene from exactly one robot source.
func ResolveScene(tokens []string, scenePath string) (*Scene, error) {
	switch {
	case len(tokens) > 0 && scenePath != "":
		return nil, ErrAmbiguousRobotSource
	case len(tokens) > 0:
		robots, err := ParseRobotTokens(tokens)
		if err != nil {
			return nil, err
		}
		return &Scene{Robots: robots}, nil
	case scenePath != "":
		scene, err := LoadScene(scenePath)
		if err != nil {
			return nil, err
		}
		if len(scene.Robots) == 0 {
			return nil, fmt.Errorf("scene file '%s' defines no robots", scenePath)
		}
		return scene, nil
	}
	return nil, ErrNoRobotSource
}
