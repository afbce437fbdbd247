package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RobotLayout identifies a registered robot for reply validation.
type RobotLayout struct {
	Name string
	DOF  int
}

// Reply is a decoded controller reply: one command per registered robot in
// registration order, plus any obstacle updates.
type Reply struct {
	Commands  []Command
	Obstacles []ObstacleDescriptor
	// Extended is set when the reply used the {"command", "obstacles"} envelope.
	Extended bool
}

type replyEnvelope struct {
	Command   json.RawMessage   `json:"command"`
	Obstacles []json.RawMessage `json:"obstacles"`
}

// DecodeReply parses a reply and validates it against the robot layout.
// Both the bare command array and the extended envelope are accepted. Any
// error leaves the reply unusable; nothing is defaulted.
func DecodeReply(data []byte, layout []RobotLayout) (*Reply, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty reply", ErrMalformedMessage)
	}

	reply := &Reply{}
	batch := json.RawMessage(trimmed)

	switch trimmed[0] {
	case '[':
	case '{':
		var env replyEnvelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("%w: reply envelope: %v", ErrMalformedMessage, err)
		}
		if isNull(env.Command) {
			return nil, fmt.Errorf("%w: reply envelope has no command batch", ErrMalformedMessage)
		}
		batch = env.Command
		reply.Extended = true

		for i, raw := range env.Obstacles {
			d, err := ParseObstacle(raw)
			if err != nil {
				return nil, fmt.Errorf("obstacles[%d]: %w", i, err)
			}
			reply.Obstacles = append(reply.Obstacles, d)
		}
	default:
		return nil, fmt.Errorf("%w: reply must be an array or an object", ErrMalformedMessage)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(batch, &items); err != nil {
		return nil, fmt.Errorf("%w: command batch: %v", ErrMalformedMessage, err)
	}
	if len(items) != len(layout) {
		return nil, fmt.Errorf("%w: %w: reply carries %d commands for %d registered robots",
			ErrMalformedMessage, ErrLengthMismatch, len(items), len(layout))
	}

	reply.Commands = make([]Command, len(items))
	for i, item := range items {
		c, err := ParseCommand(item)
		if err != nil {
			return nil, fmt.Errorf("command %d (robot %q): %w", i, layout[i].Name, err)
		}
		if err := CheckArity(c, layout[i].DOF); err != nil {
			return nil, fmt.Errorf("command %d (robot %q): %w", i, layout[i].Name, err)
		}
		reply.Commands[i] = c
	}
	return reply, nil
}

// EncodeReply is the inverse of DecodeReply. The envelope is used when the
// reply is marked extended or carries obstacles.
func EncodeReply(r *Reply) ([]byte, error) {
	cmds := make([]json.RawMessage, 0, len(r.Commands))
	for i, c := range r.Commands {
		b, err := MarshalCommand(c)
		if err != nil {
			return nil, fmt.Errorf("command %d: %w", i, err)
		}
		cmds = append(cmds, b)
	}
	if !r.Extended && len(r.Obstacles) == 0 {
		return json.Marshal(cmds)
	}

	obstacles := make([]json.RawMessage, 0, len(r.Obstacles))
	for _, d := range r.Obstacles {
		b, err := MarshalObstacle(d)
		if err != nil {
			return nil, fmt.Errorf("obstacle %d: %w", d.ID, err)
		}
		obstacles = append(obstacles, b)
	}
	return json.Marshal(struct {
		Command   []json.RawMessage `json:"command"`
		Obstacles []json.RawMessage `json:"obstacles"`
	}{cmds, obstacles})
}
