package protocol

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestCommandRoundTrip(t *testing.T) {
	cases := []struct {
		wire string
		want Command
	}{
		{`{"Joint":[0.1,-0.2,0.3]}`, Joint{Positions: []float64{0.1, -0.2, 0.3}}},
		{`{"JointWithPeriod":[0.05,[1,2,3]]}`, JointWithPeriod{Period: 0.05, Positions: []float64{1, 2, 3}}},
		{`{"Tau":[0.5,0,-1.5]}`, Tau{Torques: []float64{0.5, 0, -1.5}}},
		{`{"TauWithPeriod":[0.1,[4,5,6]]}`, TauWithPeriod{Period: 0.1, Torques: []float64{4, 5, 6}}},
		{`{"Pose":[[0,0,0.7071,0.7071],[1,2,3]]}`, Pose{
			Rotation:    quat.Number{Real: 0.7071, Kmag: 0.7071},
			Translation: r3.Vec{X: 1, Y: 2, Z: 3},
		}},
		{`{"Velocity":[0.1,0.2,0.3]}`, Velocity{Value: r3.Vec{X: 0.1, Y: 0.2, Z: 0.3}}},
		{`{"Acceleration":[-1,0,9.81]}`, Acceleration{Value: r3.Vec{X: -1, Z: 9.81}}},
		{`{"JointVelocity":[[1,2],[3,4]]}`, JointVelocity{Positions: []float64{1, 2}, Velocities: []float64{3, 4}}},
		{`{"JointVelocityAcceleration":[[1],[2],[3]]}`, JointVelocityAcceleration{
			Positions: []float64{1}, Velocities: []float64{2}, Accelerations: []float64{3},
		}},
	}
	require.Len(t, cases, len(Tags), "every tag needs a round-trip case")

	for _, tc := range cases {
		t.Run(string(tc.want.Tag()), func(t *testing.T) {
			got, err := ParseCommand([]byte(tc.wire))
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("decoded command mismatch (-want +got):\n%s", diff)
			}

			encoded, err := MarshalCommand(got)
			require.NoError(t, err)
			assert.JSONEq(t, tc.wire, string(encoded))
		})
	}
}

func TestParseCommandRejects(t *testing.T) {
	cases := map[string]struct {
		wire   string
		target error
	}{
		"unknown tag":          {`{"Jump":[1,2]}`, ErrUnknownCommandTag},
		"legacy tag":           {`{"JointVel":[[1],[2]]}`, ErrUnknownCommandTag},
		"no tag":               {`{}`, ErrMalformedMessage},
		"two tags":             {`{"Joint":[1],"Tau":[1]}`, ErrMalformedMessage},
		"not an object":        {`[1,2,3]`, ErrMalformedMessage},
		"null payload":         {`{"Joint":null}`, ErrMalformedMessage},
		"string value":         {`{"Tau":[1,"2",3]}`, ErrMalformedMessage},
		"null element":         {`{"Joint":[1,null]}`, ErrMalformedMessage},
		"missing period":       {`{"JointWithPeriod":[[1,2]]}`, ErrMalformedMessage},
		"zero period":          {`{"TauWithPeriod":[0,[1,2]]}`, ErrMalformedMessage},
		"negative period":      {`{"JointWithPeriod":[-0.1,[1,2]]}`, ErrMalformedMessage},
		"short velocity":       {`{"Velocity":[1,2]}`, ErrLengthMismatch},
		"long quaternion":      {`{"Pose":[[0,0,0,1,0],[0,0,0]]}`, ErrLengthMismatch},
		"joint state one part": {`{"JointVelocity":[[1,2]]}`, ErrMalformedMessage},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCommand([]byte(tc.wire))
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.target)
			assert.ErrorIs(t, err, ErrMalformedMessage)
		})
	}
}

func TestCheckArity(t *testing.T) {
	assert.NoError(t, CheckArity(Joint{Positions: make([]float64, 7)}, 7))
	assert.NoError(t, CheckArity(Velocity{}, 7))

	err := CheckArity(TauWithPeriod{Period: 0.1, Torques: make([]float64, 6)}, 7)
	assert.ErrorIs(t, err, ErrLengthMismatch)
	assert.Contains(t, err.Error(), "torques has 6 entries")

	err = CheckArity(JointVelocity{Positions: make([]float64, 7), Velocities: make([]float64, 8)}, 7)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestStateBatchRoundTrip(t *testing.T) {
	reports := []StateReport{
		JointVelocity{Positions: []float64{0, -0.785}, Velocities: []float64{0, 0}},
		Pose{Rotation: quat.Number{Real: 1}, Translation: r3.Vec{X: 0.5}},
		Joint{Positions: []float64{}},
	}

	data, err := EncodeStateBatch(reports)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"JointVelocity":[[0,-0.785],[0,0]]},{"Pose":[[0,0,0,1],[0.5,0,0]]},{"Joint":[]}]`, string(data))

	decoded, err := DecodeStateBatch(data)
	require.NoError(t, err)
	if diff := cmp.Diff(reports, decoded); diff != "" {
		t.Fatalf("state batch mismatch (-want +got):\n%s", diff)
	}
}

func TestParseStateReportRejectsPeriodVariants(t *testing.T) {
	_, err := ParseStateReport([]byte(`{"JointWithPeriod":[0.1,[1]]}`))
	assert.True(t, errors.Is(err, ErrUnsupportedCommand))
}

func TestPeriod(t *testing.T) {
	p, ok := Period(JointWithPeriod{Period: 0.1})
	assert.True(t, ok)
	assert.Equal(t, 0.1, p)

	_, ok = Period(Tau{})
	assert.False(t, ok)
}

func TestIsActuation(t *testing.T) {
	for _, c := range []Command{Joint{}, JointWithPeriod{}, Tau{}, TauWithPeriod{}} {
		assert.True(t, IsActuation(c), c.Tag())
	}
	for _, c := range []Command{Pose{}, Velocity{}, Acceleration{}, JointVelocity{}, JointVelocityAcceleration{}} {
		assert.False(t, IsActuation(c), c.Tag())
	}
}
