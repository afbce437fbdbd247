package bridge

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-teleop/simbridge/pkg/protocol"
)

func TestStepCount(t *testing.T) {
	s, err := NewScheduler(240, 1.0/240, 0)
	require.NoError(t, err)

	cases := []struct {
		period float64
		want   int
	}{
		{0.1, 24},
		{0.05, 12},
		{1.0 / 240, 1},
		{0.001, 0},
		{0.0021, 1},
		{1, 240},
		{2.5, 600},
	}
	for _, tc := range cases {
		got, err := s.StepCount(tc.period)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "period %v", tc.period)
		// pure: same input, same output
		again, _ := s.StepCount(tc.period)
		assert.Equal(t, got, again)
	}

	for p := 0.001; p < 3; p += 0.0137 {
		got, err := s.StepCount(p)
		require.NoError(t, err)
		assert.Equal(t, int(math.Round(p*240)), got)
	}
}

func TestStepCountRejectsOutOfRangePeriods(t *testing.T) {
	uncapped := Scheduler{StepRate: 240, DefaultPeriod: 1.0 / 240}
	for _, p := range []float64{1e7, 1e17, 1e300, math.Inf(1), math.NaN(), -0.1} {
		steps, err := uncapped.StepCount(p)
		assert.ErrorIs(t, err, ErrPeriodOutOfRange, "period %v", p)
		assert.ErrorIs(t, err, protocol.ErrMalformedMessage, "period %v", p)
		assert.Zero(t, steps)
	}

	// the largest period still under the step cap
	steps, err := uncapped.StepCount(float64(MaxCycleSteps) / 240)
	require.NoError(t, err)
	assert.Equal(t, MaxCycleSteps, steps)

	capped, err := NewScheduler(240, 1.0/240, 60)
	require.NoError(t, err)
	steps, err = capped.StepCount(60)
	require.NoError(t, err)
	assert.Equal(t, 14400, steps)
	_, err = capped.StepCount(60.5)
	assert.ErrorIs(t, err, ErrPeriodOutOfRange)
}

func TestNewSchedulerRejects(t *testing.T) {
	_, err := NewScheduler(0, 0.1, 0)
	assert.Error(t, err)
	_, err = NewScheduler(240, 0, 0)
	assert.Error(t, err)
	_, err = NewScheduler(math.Inf(1), 0.1, 0)
	assert.Error(t, err)
	_, err = NewScheduler(240, math.NaN(), 0)
	assert.Error(t, err)
	_, err = NewScheduler(240, 0.1, -1)
	assert.Error(t, err)
	_, err = NewScheduler(240, 1, 0.5)
	assert.ErrorIs(t, err, ErrPeriodOutOfRange, "default period above the cap")
}

func TestResolvePeriod(t *testing.T) {
	s := Scheduler{StepRate: 240, DefaultPeriod: 0.01}

	choice := s.Resolve([]protocol.Command{protocol.Joint{}, protocol.Tau{}})
	assert.Equal(t, PeriodChoice{Period: 0.01}, choice)

	choice = s.Resolve([]protocol.Command{
		protocol.Tau{},
		protocol.JointWithPeriod{Period: 0.1},
		protocol.TauWithPeriod{Period: 0.1},
		protocol.TauWithPeriod{Period: 0.2},
	})
	assert.Equal(t, 0.1, choice.Period)
	assert.True(t, choice.Explicit)
	assert.Equal(t, []float64{0.2}, choice.Ignored)
}
