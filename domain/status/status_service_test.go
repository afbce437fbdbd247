package status

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/open-teleop/simbridge/domain/bridge"
	"github.com/open-teleop/simbridge/domain/obstacle"
	"github.com/open-teleop/simbridge/pkg/geometry"
	"github.com/open-teleop/simbridge/pkg/protocol"
)

func record(cycle uint64, steps int) bridge.CycleRecord {
	return bridge.CycleRecord{
		Session:  "s1",
		Cycle:    cycle,
		Period:   0.1,
		Explicit: true,
		Steps:    steps,
		Duration: 2 * time.Millisecond,
	}
}

func newService() *StatusService {
	return NewStatusService("s1", []protocol.RobotLayout{{Name: "panda_1", DOF: 7}})
}

func TestObserveCycleUpdatesSnapshot(t *testing.T) {
	s := newService()
	s.ObserveCycle(record(1, 24))
	s.ObserveCycle(record(2, 24))

	snap := s.GetStatus()
	assert.Equal(t, StateRunning, snap.State)
	assert.Equal(t, uint64(2), snap.Cycles)
	assert.Equal(t, uint64(48), snap.Steps)
	require.NotNil(t, snap.LastCycle)
	assert.Equal(t, 24, snap.LastCycle.Steps)
	assert.InDelta(t, 2.0, snap.LastCycle.DurationMs, 1e-9)
	assert.Equal(t, []RobotStatus{{Name: "panda_1", DOF: 7}}, snap.Robots)
}

func TestObserveCycleSkipsUnencodableSummary(t *testing.T) {
	s := newService()
	ch, cancel := s.Subscribe(4)
	defer cancel()

	rec := record(1, 24)
	rec.Period = math.NaN()
	s.ObserveCycle(rec)

	select {
	case payload := <-ch:
		t.Fatalf("unexpected frame %q", payload)
	default:
	}
	snap := s.GetStatus()
	assert.Equal(t, uint64(1), snap.Cycles)
	assert.Equal(t, uint64(24), snap.Steps)

	s.ObserveCycle(record(2, 24))
	require.Len(t, ch, 1)
}

func TestSubscribeReceivesSummaries(t *testing.T) {
	s := newService()
	ch, cancel := s.Subscribe(4)

	s.ObserveCycle(record(1, 24))
	payload := <-ch
	var summary CycleSummary
	require.NoError(t, json.Unmarshal(payload, &summary))
	assert.Equal(t, uint64(1), summary.Cycle)
	assert.True(t, summary.Explicit)

	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	s := newService()
	ch, cancel := s.Subscribe(1)
	defer cancel()

	for i := uint64(1); i <= 10; i++ {
		s.ObserveCycle(record(i, 1))
	}
	assert.Len(t, ch, 1)
	assert.Equal(t, uint64(10), s.GetStatus().Cycles)
}

func TestMarkStopped(t *testing.T) {
	s := newService()
	ch, _ := s.Subscribe(1)

	s.MarkStopped(errors.New("cycle 3: connection lost"))
	_, ok := <-ch
	assert.False(t, ok, "subscribers are closed when the exchange stops")

	snap := s.GetStatus()
	assert.Equal(t, StateFailed, snap.State)
	assert.Equal(t, "cycle 3: connection lost", snap.Error)

	late, _ := s.Subscribe(1)
	_, ok = <-late
	assert.False(t, ok)
}

func TestHandlers(t *testing.T) {
	s := newService()
	rec := record(1, 24)
	rec.Obstacles = obstacle.MergeResult{Created: 1}
	rec.Known = 1
	rec.Tracked = []protocol.ObstacleDescriptor{{
		ID:    7,
		Shape: geometry.Sphere{Radius: 0.1},
		Pose:  geometry.NewPose(r3.Vec{X: 0.4}),
	}}
	s.ObserveCycle(rec)

	app := fiber.New()
	app.Get("/status", s.GetStatusHandler)
	app.Get("/obstacles", s.GetObstaclesHandler)

	resp, err := app.Test(httptest.NewRequest("GET", "/status", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	var status struct {
		Status   string   `json:"status"`
		Exchange Snapshot `json:"exchange"`
	}
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, "success", status.Status)
	assert.Equal(t, "s1", status.Exchange.Session)
	assert.Equal(t, 1, status.Exchange.LastCycle.Known)

	resp, err = app.Test(httptest.NewRequest("GET", "/obstacles", nil))
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	var obstacles struct {
		Obstacles []json.RawMessage `json:"obstacles"`
	}
	require.NoError(t, json.Unmarshal(body, &obstacles))
	require.Len(t, obstacles.Obstacles, 1)

	d, err := protocol.ParseObstacle(obstacles.Obstacles[0])
	require.NoError(t, err)
	assert.Equal(t, int64(7), d.ID)
	assert.Equal(t, geometry.Sphere{Radius: 0.1}, d.Shape)
}
