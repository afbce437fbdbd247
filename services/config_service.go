package services

import (
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/open-teleop/simbridge/pkg/config"
	"github.com/open-teleop/simbridge/pkg/geometry"
	customlog "github.com/open-teleop/simbridge/pkg/log"
)

// SceneRobot is the API view of a configured robot.
type SceneRobot struct {
	Type        string     `json:"robot_type"`
	Name        string     `json:"name"`
	Translation [3]float64 `json:"translation"`
	Rotation    [4]float64 `json:"rotation"`
}

// SceneSummary is the API view of the resolved scene.
type SceneSummary struct {
	Source          string       `json:"source"`
	Robots          []SceneRobot `json:"robots"`
	StaticObstacles int          `json:"static_obstacles"`
}

// BridgeConfigService exposes the configuration the bridge was started with.
// Configuration is fixed for the lifetime of a session.
type BridgeConfigService interface {
	GetCurrentConfig() *config.BootstrapConfig
	GetCurrentConfigYAML() ([]byte, error)
	GetScene() SceneSummary
}

type bridgeConfigService struct {
	path   string
	cfg    *config.BootstrapConfig
	scene  SceneSummary
	yaml   []byte
	logger customlog.Logger
	mu     sync.Mutex
}

// NewBridgeConfigService wraps the loaded configuration. path is the
// bootstrap file it came from, or empty when defaults were used; source
// names the robot source (token list or scene file).
func NewBridgeConfigService(path string, cfg *config.BootstrapConfig, scene *config.Scene, source string, logger customlog.Logger) (BridgeConfigService, error) {
	if cfg == nil || scene == nil {
		return nil, fmt.Errorf("config service needs a bootstrap config and a scene")
	}

	summary := SceneSummary{
		Source:          source,
		Robots:          make([]SceneRobot, len(scene.Robots)),
		StaticObstacles: len(scene.Obstacles),
	}
	for i, r := range scene.Robots {
		summary.Robots[i] = SceneRobot{
			Type:        r.Type,
			Name:        r.Name,
			Translation: geometry.VecToArray(r.Base.Translation),
			Rotation:    geometry.QuatToXYZW(r.Base.Rotation),
		}
	}

	if path == "" {
		logger.Infof("Using default bridge configuration")
	} else {
		logger.Infof("Bridge configuration loaded from %s", path)
	}
	return &bridgeConfigService{path: path, cfg: cfg, scene: summary, logger: logger}, nil
}

func (s *bridgeConfigService) GetCurrentConfig() *config.BootstrapConfig {
	copied := *s.cfg
	return &copied
}

// GetCurrentConfigYAML renders the effective configuration, defaults included.
func (s *bridgeConfigService) GetCurrentConfigYAML() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.yaml == nil {
		data, err := yaml.Marshal(s.cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal bridge config: %w", err)
		}
		s.yaml = data
	}
	return s.yaml, nil
}

func (s *bridgeConfigService) GetScene() SceneSummary {
	out := s.scene
	out.Robots = append([]SceneRobot(nil), s.scene.Robots...)
	return out
}
