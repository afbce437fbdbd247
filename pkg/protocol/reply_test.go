package protocol

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/open-teleop/simbridge/pkg/geometry"
)

var twoArms = []RobotLayout{{Name: "panda_1", DOF: 2}, {Name: "panda_2", DOF: 2}}

func TestDecodeBareReply(t *testing.T) {
	reply, err := DecodeReply([]byte(`[{"Tau":[1,2]},{"Joint":[0.1,0.2]}]`), twoArms)
	require.NoError(t, err)

	assert.False(t, reply.Extended)
	assert.Empty(t, reply.Obstacles)
	want := []Command{Tau{Torques: []float64{1, 2}}, Joint{Positions: []float64{0.1, 0.2}}}
	if diff := cmp.Diff(want, reply.Commands); diff != "" {
		t.Fatalf("commands mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeExtendedReply(t *testing.T) {
	wire := `{
		"command": [{"JointWithPeriod":[0.1,[0,0]]},{"Joint":[1,1]}],
		"obstacles": [
			{"Sphere": {"id": 7, "shape": {"radius": 0.05}, "pose": {"translation": [0.4,0,0.5], "rotation": [0,0,0,1]}}},
			{"Cuboid": {"id": 8, "shape": {"half_extents": [0.1,0.2,0.3]}, "pose": {"translation": [1,1,0]}}}
		]
	}`

	reply, err := DecodeReply([]byte(wire), twoArms)
	require.NoError(t, err)
	assert.True(t, reply.Extended)
	require.Len(t, reply.Obstacles, 2)

	want := []ObstacleDescriptor{
		{ID: 7, Shape: geometry.Sphere{Radius: 0.05}, Pose: geometry.Pose{Translation: r3.Vec{X: 0.4, Z: 0.5}, Rotation: quat.Number{Real: 1}}},
		{ID: 8, Shape: geometry.Cuboid{HalfExtents: r3.Vec{X: 0.1, Y: 0.2, Z: 0.3}}, Pose: geometry.NewPose(r3.Vec{X: 1, Y: 1})},
	}
	if diff := cmp.Diff(want, reply.Obstacles); diff != "" {
		t.Fatalf("obstacles mismatch (-want +got):\n%s", diff)
	}

	encoded, err := EncodeReply(reply)
	require.NoError(t, err)
	again, err := DecodeReply(encoded, twoArms)
	require.NoError(t, err)
	if diff := cmp.Diff(reply, again); diff != "" {
		t.Fatalf("re-decoded reply mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeReplyBatchLengthMismatch(t *testing.T) {
	_, err := DecodeReply([]byte(`[{"Joint":[1,2]}]`), twoArms)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLengthMismatch)
	assert.Contains(t, err.Error(), "1 commands for 2 registered robots")
}

func TestDecodeReplyArityNamesRobot(t *testing.T) {
	_, err := DecodeReply([]byte(`[{"Joint":[1,2]},{"Tau":[1,2,3]}]`), twoArms)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLengthMismatch)
	assert.ErrorIs(t, err, ErrMalformedMessage)
	assert.Contains(t, err.Error(), `robot "panda_2"`)
}

func TestDecodeReplyRejects(t *testing.T) {
	cases := map[string]struct {
		wire   string
		target error
	}{
		"empty":            {``, ErrMalformedMessage},
		"scalar":           {`42`, ErrMalformedMessage},
		"not json":         {`[{"Joint":[1,2]`, ErrMalformedMessage},
		"envelope no cmds": {`{"obstacles":[]}`, ErrMalformedMessage},
		"unknown tag":      {`[{"Joint":[1,2]},{"Spin":[1,2]}]`, ErrUnknownCommandTag},
		"unknown shape": {`{"command":[{"Joint":[1,2]},{"Joint":[1,2]}],
			"obstacles":[{"Torus":{"id":1,"shape":{"radius":1},"pose":{"translation":[0,0,0]}}}]}`, ErrUnknownObstacleShape},
		"obstacle no id": {`{"command":[{"Joint":[1,2]},{"Joint":[1,2]}],
			"obstacles":[{"Sphere":{"shape":{"radius":1},"pose":{"translation":[0,0,0]}}}]}`, ErrMalformedMessage},
		"zero rotation": {`{"command":[{"Joint":[1,2]},{"Joint":[1,2]}],
			"obstacles":[{"Sphere":{"id":1,"shape":{"radius":1},"pose":{"translation":[0,0,0],"rotation":[0,0,0,0]}}}]}`, ErrMalformedMessage},
		"negative radius": {`{"command":[{"Joint":[1,2]},{"Joint":[1,2]}],
			"obstacles":[{"Sphere":{"id":1,"shape":{"radius":-1},"pose":{"translation":[0,0,0]}}}]}`, ErrMalformedMessage},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeReply([]byte(tc.wire), twoArms)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.target)
		})
	}
}

func TestEncodeBareReply(t *testing.T) {
	data, err := EncodeReply(&Reply{Commands: []Command{Joint{Positions: []float64{1}}}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"Joint":[1]}]`, string(data))
}

func TestCapsuleObstacleRoundTrip(t *testing.T) {
	d := ObstacleDescriptor{
		ID:    3,
		Shape: geometry.Capsule{Radius: 0.05, Length: 0.4},
		Pose:  geometry.NewPose(r3.Vec{Z: 1}),
	}
	data, err := MarshalObstacle(d)
	require.NoError(t, err)

	got, err := ParseObstacle(data)
	require.NoError(t, err)
	if diff := cmp.Diff(d, got); diff != "" {
		t.Fatalf("obstacle mismatch (-want +got):\n%s", diff)
	}
}
