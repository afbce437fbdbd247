package bridge

import (
	"encoding/json"
	"time"

	"github.com/open-teleop/simbridge/domain/obstacle"
	"github.com/open-teleop/simbridge/pkg/protocol"
)

// CycleRecord summarises one completed exchange cycle.
type CycleRecord struct {
	Session   string               `json:"session"`
	Cycle     uint64               `json:"cycle"`
	Started   time.Time            `json:"started"`
	Duration  time.Duration        `json:"duration_ns"`
	States    json.RawMessage      `json:"states"`
	Reply     json.RawMessage      `json:"reply"`
	Period    float64              `json:"period"`
	Explicit  bool                 `json:"explicit_period"`
	Steps     int                  `json:"steps"`
	Obstacles obstacle.MergeResult `json:"obstacles"`
	Known     int                  `json:"known_obstacles"`
	// Tracked holds every known obstacle when this cycle changed the table.
	Tracked []protocol.ObstacleDescriptor `json:"-"`
}

// CycleObserver receives a record after every completed cycle. It is called
// on the exchange loop's goroutine and must not block.
type CycleObserver interface {
	ObserveCycle(rec CycleRecord)
}

// ObserverFunc adapts a function to CycleObserver.
type ObserverFunc func(rec CycleRecord)

func (f ObserverFunc) ObserveCycle(rec CycleRecord) { f(rec) }
