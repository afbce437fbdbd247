// Package bridge runs the step-synchronised exchange between the simulation
// and a controller peer.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/open-teleop/simbridge/domain/obstacle"
	"github.com/open-teleop/simbridge/domain/robot"
	"github.com/open-teleop/simbridge/pkg/config"
	customlog "github.com/open-teleop/simbridge/pkg/log"
	"github.com/open-teleop/simbridge/pkg/physics"
	"github.com/open-teleop/simbridge/pkg/protocol"
	"github.com/open-teleop/simbridge/pkg/transport"
)

// Options configures a Session.
type Options struct {
	Engine    physics.Engine
	Transport transport.Transport
	Robots    []robot.Robot
	// Static obstacles are created once and are not part of the id table.
	Static    []config.StaticObstacle
	Scheduler Scheduler
	Observers []CycleObserver
	Logger    customlog.Logger
}

// Session owns everything one exchange run touches. All of it is driven
// from the goroutine calling Run.
type Session struct {
	id        uuid.UUID
	engine    physics.Engine
	transport transport.Transport
	robots    []robot.Robot
	layout    []protocol.RobotLayout
	obstacles *obstacle.Table
	static    []physics.Handle
	scheduler Scheduler
	observers []CycleObserver
	logger    customlog.Logger
	cycle     uint64
}

// NewSession validates opts and creates the static scene primitives.
func NewSession(opts Options) (*Session, error) {
	if opts.Engine == nil || opts.Transport == nil || opts.Logger == nil {
		return nil, errors.New("session needs an engine, a transport and a logger")
	}
	if len(opts.Robots) == 0 {
		return nil, errors.New("session needs at least one robot")
	}
	if !(opts.Scheduler.StepRate > 0) || !(opts.Scheduler.DefaultPeriod > 0) {
		return nil, fmt.Errorf("invalid scheduler %+v", opts.Scheduler)
	}
	if _, err := opts.Scheduler.StepCount(opts.Scheduler.DefaultPeriod); err != nil {
		return nil, fmt.Errorf("invalid scheduler default period: %w", err)
	}

	id := uuid.New()
	s := &Session{
		id:        id,
		engine:    opts.Engine,
		transport: opts.Transport,
		robots:    opts.Robots,
		obstacles: obstacle.NewTable(),
		scheduler: opts.Scheduler,
		observers: opts.Observers,
		logger:    opts.Logger.WithField("session", id.String()),
	}
	for _, r := range opts.Robots {
		s.layout = append(s.layout, protocol.RobotLayout{Name: r.Name(), DOF: r.DOF()})
	}
	for i, o := range opts.Static {
		h, err := opts.Engine.CreatePrimitive(o.Shape, o.Pose)
		if err != nil {
			return nil, fmt.Errorf("static obstacle %d: %w", i, err)
		}
		s.static = append(s.static, h)
	}
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id.String() }

// Cycles returns how many cycles have completed.
func (s *Session) Cycles() uint64 { return s.cycle }

// Obstacles exposes the reconciled obstacle table.
func (s *Session) Obstacles() *obstacle.Table { return s.obstacles }

// AddObserver registers o for every following cycle. It must not be called
// while Run is active.
func (s *Session) AddObserver(o CycleObserver) {
	s.observers = append(s.observers, o)
}

// Layout returns the registered robots in registration order.
func (s *Session) Layout() []protocol.RobotLayout {
	out := make([]protocol.RobotLayout, len(s.layout))
	copy(out, s.layout)
	return out
}

// Run exchanges cycles until ctx is cancelled or a cycle fails. Cancellation
// is honoured between cycles and while waiting for a reply, never during
// decode, dispatch or stepping. The transport is closed on return. A
// cancelled run returns nil.
func (s *Session) Run(ctx context.Context) error {
	defer func() {
		if err := s.transport.Close(); err != nil {
			s.logger.Warnf("Error closing transport: %v", err)
		}
	}()

	s.logger.Infof("Starting exchange loop with %d robots (step rate %v, default period %v)",
		len(s.robots), s.scheduler.StepRate, s.scheduler.DefaultPeriod)

	for {
		select {
		case <-ctx.Done():
			s.logger.Infof("Exchange loop stopped after %d cycles", s.cycle)
			return nil
		default:
		}

		if _, err := s.RunCycle(ctx); err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				s.logger.Infof("Exchange loop interrupted while awaiting reply after %d cycles", s.cycle)
				return nil
			}
			s.logger.Errorf("Cycle %d failed: %v", s.cycle+1, err)
			return fmt.Errorf("cycle %d: %w", s.cycle+1, err)
		}
	}
}

// RunCycle performs one send, await, decode, reconcile, dispatch and step
// sequence. Nothing is touched unless the whole reply, its period included,
// is valid. An engine failure while reconciling leaves every robot
// unactuated; one during dispatch leaves the batch's obstacles merged.
func (s *Session) RunCycle(ctx context.Context) (CycleRecord, error) {
	started := time.Now()
	rec := CycleRecord{Session: s.ID(), Cycle: s.cycle + 1, Started: started}

	reports := make([]protocol.StateReport, len(s.robots))
	for i, r := range s.robots {
		st, err := r.ReportState()
		if err != nil {
			return rec, fmt.Errorf("sample robot %q: %w", r.Name(), err)
		}
		reports[i] = st
	}
	states, err := protocol.EncodeStateBatch(reports)
	if err != nil {
		return rec, err
	}
	rec.States = states

	raw, err := s.transport.Exchange(ctx, states)
	if err != nil {
		return rec, err
	}
	rec.Reply = raw

	reply, err := protocol.DecodeReply(raw, s.layout)
	if err != nil {
		return rec, err
	}
	for i, c := range reply.Commands {
		if !protocol.IsActuation(c) {
			return rec, fmt.Errorf("%w: command %d (robot %q): %s is a state report tag",
				protocol.ErrUnsupportedCommand, i, s.layout[i].Name, c.Tag())
		}
	}

	// Resolve the step count before anything is touched
	choice := s.scheduler.Resolve(reply.Commands)
	if len(choice.Ignored) > 0 {
		s.logger.Warnf("Cycle %d: conflicting periods %v, using %v", rec.Cycle, choice.Ignored, choice.Period)
	}
	steps, err := s.scheduler.StepCount(choice.Period)
	if err != nil {
		return rec, err
	}
	if steps == 0 {
		s.logger.Warnf("Cycle %d: period %v rounds to zero steps at %v Hz", rec.Cycle, choice.Period, s.scheduler.StepRate)
	}

	// Reconcile obstacles before any robot is actuated
	merged, err := s.obstacles.Merge(s.engine, reply.Obstacles)
	if err != nil {
		return rec, fmt.Errorf("reconcile obstacles: %w", err)
	}
	rec.Obstacles = merged
	rec.Known = s.obstacles.Len()
	if merged.Created+merged.Updated > 0 {
		rec.Tracked = s.obstacles.Descriptors()
	}
	if merged.Created > 0 {
		s.logger.Debugf("Cycle %d: created %d obstacles (%d known)", rec.Cycle, merged.Created, rec.Known)
	}

	// Dispatch in registration order
	for i, c := range reply.Commands {
		if err := s.robots[i].Actuate(c); err != nil {
			return rec, fmt.Errorf("dispatch to robot %q: %w", s.layout[i].Name, err)
		}
	}

	for i := 0; i < steps; i++ {
		if err := s.engine.Step(); err != nil {
			return rec, fmt.Errorf("step %d of %d: %w", i+1, steps, err)
		}
	}
	rec.Period = choice.Period
	rec.Explicit = choice.Explicit
	rec.Steps = steps

	s.cycle++
	rec.Duration = time.Since(started)
	for _, o := range s.observers {
		o.ObserveCycle(rec)
	}
	return rec, nil
}
