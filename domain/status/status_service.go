// Package status keeps a snapshot of the running exchange for the HTTP API.
package status

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/open-teleop/simbridge/domain/bridge"
	"github.com/open-teleop/simbridge/pkg/protocol"
)

// Exchange states
const (
	StateRunning = "running"
	StateStopped = "stopped"
	StateFailed  = "failed"
)

// RobotStatus describes a registered robot.
type RobotStatus struct {
	Name string `json:"name"`
	DOF  int    `json:"dof"`
}

// CycleSummary is the part of a cycle record exposed to API clients.
type CycleSummary struct {
	Cycle      uint64  `json:"cycle"`
	Period     float64 `json:"period"`
	Explicit   bool    `json:"explicit_period"`
	Steps      int     `json:"steps"`
	DurationMs float64 `json:"duration_ms"`
	Created    int     `json:"obstacles_created"`
	Updated    int     `json:"obstacles_updated"`
	Known      int     `json:"known_obstacles"`
}

// Snapshot is the current state of the exchange.
type Snapshot struct {
	Session   string        `json:"session"`
	State     string        `json:"state"`
	Error     string        `json:"error,omitempty"`
	Started   time.Time     `json:"started"`
	Robots    []RobotStatus `json:"robots"`
	Cycles    uint64        `json:"cycles"`
	Steps     uint64        `json:"steps"`
	LastCycle *CycleSummary `json:"last_cycle,omitempty"`
}

// StatusService observes cycles and serves them to API clients. It is
// written from the exchange loop and read from HTTP handlers.
type StatusService struct {
	mu          sync.RWMutex
	snapshot    Snapshot
	obstacles   []json.RawMessage
	subscribers map[chan []byte]struct{}
}

var _ bridge.CycleObserver = (*StatusService)(nil)

// NewStatusService creates a status service for a session.
func NewStatusService(session string, layout []protocol.RobotLayout) *StatusService {
	robots := make([]RobotStatus, len(layout))
	for i, l := range layout {
		robots[i] = RobotStatus{Name: l.Name, DOF: l.DOF}
	}
	return &StatusService{
		snapshot: Snapshot{
			Session: session,
			State:   StateRunning,
			Started: time.Now(),
			Robots:  robots,
		},
		obstacles:   []json.RawMessage{},
		subscribers: make(map[chan []byte]struct{}),
	}
}

// ObserveCycle records a completed cycle and forwards its summary to
// subscribers. Slow subscribers miss summaries rather than stall the loop.
func (s *StatusService) ObserveCycle(rec bridge.CycleRecord) {
	summary := CycleSummary{
		Cycle:      rec.Cycle,
		Period:     rec.Period,
		Explicit:   rec.Explicit,
		Steps:      rec.Steps,
		DurationMs: float64(rec.Duration) / float64(time.Millisecond),
		Created:    rec.Obstacles.Created,
		Updated:    rec.Obstacles.Updated,
		Known:      rec.Known,
	}

	var obstacles []json.RawMessage
	if rec.Tracked != nil {
		obstacles = make([]json.RawMessage, 0, len(rec.Tracked))
		for _, d := range rec.Tracked {
			b, err := protocol.MarshalObstacle(d)
			if err != nil {
				continue
			}
			obstacles = append(obstacles, b)
		}
	}
	payload, marshalErr := json.Marshal(summary)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.Cycles = rec.Cycle
	if rec.Steps > 0 {
		s.snapshot.Steps += uint64(rec.Steps)
	}
	s.snapshot.LastCycle = &summary
	if obstacles != nil {
		s.obstacles = obstacles
	}
	// Subscribers never see a frame that failed to encode
	if marshalErr != nil {
		return
	}
	for ch := range s.subscribers {
		select {
		case ch <- payload:
		default:
		}
	}
}

// MarkStopped records the end of the exchange. A nil err means a clean stop.
func (s *StatusService) MarkStopped(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.State = StateStopped
	if err != nil {
		s.snapshot.State = StateFailed
		s.snapshot.Error = err.Error()
	}
	for ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, ch)
	}
}

// GetStatus returns a copy of the current snapshot.
func (s *StatusService) GetStatus() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Robots = append([]RobotStatus(nil), s.snapshot.Robots...)
	if s.snapshot.LastCycle != nil {
		last := *s.snapshot.LastCycle
		snap.LastCycle = &last
	}
	return snap
}

// Subscribe returns a channel of JSON-encoded cycle summaries and a function
// that cancels the subscription. The channel is closed when the exchange
// stops or the subscription is cancelled.
func (s *StatusService) Subscribe(buffer int) (<-chan []byte, func()) {
	ch := make(chan []byte, buffer)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot.State != StateRunning {
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
	}
}

// GetStatusHandler handles API requests for the exchange status
func (s *StatusService) GetStatusHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "success",
		"exchange": s.GetStatus(),
	})
}

// GetObstaclesHandler handles API requests for the reconciled obstacles
func (s *StatusService) GetObstaclesHandler(c *fiber.Ctx) error {
	s.mu.RLock()
	obstacles := s.obstacles
	s.mu.RUnlock()

	return c.JSON(fiber.Map{
		"status":    "success",
		"obstacles": obstacles,
	})
}
