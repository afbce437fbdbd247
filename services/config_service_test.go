package services

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/open-teleop/simbridge/pkg/config"
	customlog "github.com/open-teleop/simbridge/pkg/log"
)

func TestBridgeConfigService(t *testing.T) {
	logger := customlog.NewLogrusLoggerWithOutput("error", io.Discard)
	cfg := config.DefaultBootstrapConfig()
	cfg.ZeroMQ.PeerAddress = "tcp://controller:5555"

	scene, err := config.ResolveScene([]string{"panda_1", "fr3_2"}, "")
	require.NoError(t, err)

	svc, err := NewBridgeConfigService("", cfg, scene, "robot list", logger)
	require.NoError(t, err)

	data, err := svc.GetCurrentConfigYAML()
	require.NoError(t, err)
	var decoded config.BootstrapConfig
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, *cfg, decoded)

	summary := svc.GetScene()
	assert.Equal(t, "robot list", summary.Source)
	require.Len(t, summary.Robots, 2)
	assert.Equal(t, [3]float64{1, 0, 0}, summary.Robots[1].Translation)
	assert.Equal(t, [4]float64{0, 0, 0, 1}, summary.Robots[1].Rotation)

	// callers cannot mutate the service state
	summary.Robots[0].Name = "changed"
	got := svc.GetCurrentConfig()
	got.ZeroMQ.PeerAddress = "changed"
	assert.Equal(t, "panda_1", svc.GetScene().Robots[0].Name)
	assert.True(t, strings.HasPrefix(svc.GetCurrentConfig().ZeroMQ.PeerAddress, "tcp://controller"))
}

func TestBridgeConfigServiceRequiresInputs(t *testing.T) {
	logger := customlog.NewLogrusLoggerWithOutput("error", io.Discard)
	_, err := NewBridgeConfigService("", nil, &config.Scene{}, "", logger)
	assert.Error(t, err)
}
