package bridge

import (
	"errors"
	"fmt"
	"math"

	"github.com/open-teleop/simbridge/pkg/protocol"
)

// MaxCycleSteps caps the steps a single cycle may run, whatever MaxPeriod says.
const MaxCycleSteps = math.MaxInt32

// ErrPeriodOutOfRange is returned for periods that cannot be turned into a
// bounded step count. It is always wrapped together with
// protocol.ErrMalformedMessage.
var ErrPeriodOutOfRange = errors.New("period out of range")

// Scheduler converts control periods into whole engine steps.
type Scheduler struct {
	// StepRate is the engine's fixed frequency in steps per second.
	StepRate float64
	// DefaultPeriod is used for cycles whose commands carry no period.
	DefaultPeriod float64
	// MaxPeriod is the longest period a cycle may request. Zero leaves only
	// the MaxCycleSteps cap.
	MaxPeriod float64
}

// NewScheduler validates rate, default period and period cap.
func NewScheduler(stepRate, defaultPeriod, maxPeriod float64) (Scheduler, error) {
	if !(stepRate > 0) || math.IsInf(stepRate, 0) {
		return Scheduler{}, fmt.Errorf("invalid step rate %v", stepRate)
	}
	if !(defaultPeriod > 0) || math.IsInf(defaultPeriod, 0) {
		return Scheduler{}, fmt.Errorf("invalid default period %v", defaultPeriod)
	}
	if maxPeriod < 0 || math.IsNaN(maxPeriod) || math.IsInf(maxPeriod, 0) {
		return Scheduler{}, fmt.Errorf("invalid max period %v", maxPeriod)
	}
	s := Scheduler{StepRate: stepRate, DefaultPeriod: defaultPeriod, MaxPeriod: maxPeriod}
	if _, err := s.StepCount(defaultPeriod); err != nil {
		return Scheduler{}, fmt.Errorf("default period: %w", err)
	}
	return s, nil
}

// StepCount returns round(period * StepRate). Halves round away from zero.
// Out-of-range periods fail with ErrPeriodOutOfRange, so the conversion to
// int never overflows.
func (s Scheduler) StepCount(period float64) (int, error) {
	if !(period >= 0) || math.IsInf(period, 0) {
		return 0, fmt.Errorf("%w: %w: %v", protocol.ErrMalformedMessage, ErrPeriodOutOfRange, period)
	}
	if s.MaxPeriod > 0 && period > s.MaxPeriod {
		return 0, fmt.Errorf("%w: %w: %v exceeds max period %v",
			protocol.ErrMalformedMessage, ErrPeriodOutOfRange, period, s.MaxPeriod)
	}
	steps := math.Round(period * s.StepRate)
	if !(steps <= MaxCycleSteps) {
		return 0, fmt.Errorf("%w: %w: %v is %v steps at %v Hz",
			protocol.ErrMalformedMessage, ErrPeriodOutOfRange, period, steps, s.StepRate)
	}
	return int(steps), nil
}

// PeriodChoice is the outcome of resolving a cycle's control period.
type PeriodChoice struct {
	Period   float64
	Explicit bool
	// Ignored lists explicit periods that differed from the chosen one.
	Ignored []float64
}

// Resolve picks the cycle period: the first explicit period in registration
// order, else the default.
func (s Scheduler) Resolve(cmds []protocol.Command) PeriodChoice {
	choice := PeriodChoice{Period: s.DefaultPeriod}
	for _, c := range cmds {
		p, ok := protocol.Period(c)
		if !ok {
			continue
		}
		if !choice.Explicit {
			choice.Period = p
			choice.Explicit = true
			continue
		}
		if p != choice.Period {
			choice.Ignored = append(choice.Ignored, p)
		}
	}
	return choice
}
