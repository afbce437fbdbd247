package zeromq

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-teleop/simbridge/pkg/config"
	customlog "github.com/open-teleop/simbridge/pkg/log"
	"github.com/open-teleop/simbridge/pkg/protocol"
	"github.com/open-teleop/simbridge/pkg/transport"
)

func testLogger() customlog.Logger {
	return customlog.NewLogrusLoggerWithOutput("error", io.Discard)
}

func startResponder(t *testing.T, h transport.Handler) *Responder {
	t.Helper()
	r, err := NewResponder("tcp://127.0.0.1:*", h, testLogger())
	require.NoError(t, err)
	r.Start()
	t.Cleanup(r.Stop)
	return r
}

func newRequester(t *testing.T, endpoint string, timeoutMs int) *Requester {
	t.Helper()
	req, err := NewRequester(config.ZeroMQBootstrap{
		PeerAddress:    endpoint,
		ReplyTimeoutMs: timeoutMs,
		PollIntervalMs: 10,
	}, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { req.Close() })
	return req
}

func TestExchangeWithHoldController(t *testing.T) {
	rep := startResponder(t, NewHoldHandler(testLogger()))
	req := newRequester(t, rep.Endpoint(), 5000)

	states, err := protocol.EncodeStateBatch([]protocol.StateReport{
		protocol.JointVelocity{Positions: []float64{0.1, 0.2}, Velocities: []float64{0, 0}},
		protocol.JointVelocity{Positions: []float64{-1, 1}, Velocities: []float64{0.5, 0.5}},
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		raw, err := req.Exchange(context.Background(), states)
		require.NoError(t, err)

		reply, err := protocol.DecodeReply(raw, []protocol.RobotLayout{{Name: "a", DOF: 2}, {Name: "b", DOF: 2}})
		require.NoError(t, err)
		assert.Equal(t, protocol.Joint{Positions: []float64{-1, 1}}, reply.Commands[1])
	}
}

func TestResponderReportsHandlerErrors(t *testing.T) {
	rep := startResponder(t, NewHoldHandler(testLogger()))
	req := newRequester(t, rep.Endpoint(), 5000)

	raw, err := req.Exchange(context.Background(), []byte(`not json`))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), `"type":"ERROR"`), string(raw))
}

func TestExchangeTimesOut(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	rep := startResponder(t, func(ctx context.Context, _ []byte) ([]byte, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return []byte(`[]`), nil
	})
	req := newRequester(t, rep.Endpoint(), 50)

	start := time.Now()
	_, err := req.Exchange(context.Background(), []byte(`[]`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, transport.ErrConnectionLost))
	assert.Less(t, time.Since(start), 2*time.Second)

	_, err = req.Exchange(context.Background(), []byte(`[]`))
	assert.ErrorIs(t, err, transport.ErrConnectionLost, "a timed out REQ socket cannot be reused")
}

func TestExchangeHonoursCancellation(t *testing.T) {
	// nothing listens on the peer address, the wait can only end by cancel
	req := newRequester(t, "tcp://127.0.0.1:1", 0)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	_, err := req.Exchange(ctx, []byte(`[]`))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExchangeAfterClose(t *testing.T) {
	req := newRequester(t, "tcp://127.0.0.1:1", 100)
	require.NoError(t, req.Close())
	require.NoError(t, req.Close())

	_, err := req.Exchange(context.Background(), []byte(`[]`))
	assert.ErrorIs(t, err, transport.ErrClosed)
}

func TestPublisherReachesSubscriber(t *testing.T) {
	pub, err := NewPublisher("tcp://127.0.0.1:*", testLogger())
	require.NoError(t, err)
	defer pub.Close()

	got := make(chan ZeroMQMessage, 16)
	sub, err := NewSubscriber(pub.Endpoint(), TopicCycle, func(topic string, msg ZeroMQMessage) {
		if topic == TopicCycle {
			select {
			case got <- msg:
			default:
			}
		}
	}, testLogger())
	require.NoError(t, err)
	sub.Start()
	defer sub.Stop()

	// PUB drops messages until the subscription has propagated
	deadline := time.After(5 * time.Second)
	for {
		require.NoError(t, pub.PublishJSON(TopicCycle, MsgTypeCycle, map[string]int{"cycle": 1}))
		select {
		case msg := <-got:
			assert.Equal(t, MsgTypeCycle, msg.Type)
			data, ok := msg.Data.(map[string]interface{})
			require.True(t, ok)
			assert.Equal(t, 1.0, data["cycle"])
			pub.Close()
			assert.ErrorIs(t, pub.PublishMessage(TopicCycle, nil), ErrServiceClosed)
			return
		case <-deadline:
			t.Fatal("subscriber never received a cycle message")
		case <-time.After(20 * time.Millisecond):
		}
	}
}
