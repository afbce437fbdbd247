// Package obstacle keeps the mapping from controller obstacle ids to live
// simulation primitives.
package obstacle

import (
	"fmt"
	"sort"

	"github.com/open-teleop/simbridge/pkg/physics"
	"github.com/open-teleop/simbridge/pkg/protocol"
)

// Entry is one reconciled obstacle.
type Entry struct {
	ID     int64                       `json:"id"`
	Handle physics.Handle              `json:"handle"`
	Last   protocol.ObstacleDescriptor `json:"-"`
}

// MergeResult counts what a merge did.
type MergeResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// Table maps obstacle ids to simulation handles. Entries are created on the
// first sighting of an id and afterwards only have their pose updated; the
// table never shrinks. It is owned by a single session and is not safe for
// concurrent use.
type Table struct {
	entries map[int64]*Entry
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[int64]*Entry)}
}

// Merge reconciles a batch into the table. Ids missing from the batch are
// left untouched. The shape of a known id is never recreated, even if the
// batch carries a different one.
//
// Every descriptor is validated before the engine is touched, so a bad
// batch leaves the table and engine unchanged.
func (t *Table) Merge(engine physics.PrimitiveEngine, batch []protocol.ObstacleDescriptor) (MergeResult, error) {
	var res MergeResult
	for _, d := range batch {
		if err := d.Pose.Validate(); err != nil {
			return res, fmt.Errorf("obstacle %d: %w", d.ID, err)
		}
		if _, known := t.entries[d.ID]; known {
			continue
		}
		if d.Shape == nil {
			return res, fmt.Errorf("%w: obstacle %d has no shape", protocol.ErrMalformedMessage, d.ID)
		}
		if err := d.Shape.Validate(); err != nil {
			return res, fmt.Errorf("obstacle %d: %w", d.ID, err)
		}
	}

	for _, d := range batch {
		if e, ok := t.entries[d.ID]; ok {
			if err := engine.SetPose(e.Handle, d.Pose); err != nil {
				return res, fmt.Errorf("obstacle %d: set pose: %w", d.ID, err)
			}
			e.Last.Pose = d.Pose
			res.Updated++
			continue
		}

		h, err := engine.CreatePrimitive(d.Shape, d.Pose)
		if err != nil {
			return res, fmt.Errorf("obstacle %d: create %s: %w", d.ID, d.Shape.Kind(), err)
		}
		t.entries[d.ID] = &Entry{ID: d.ID, Handle: h, Last: d}
		res.Created++
	}
	return res, nil
}

// Len returns the number of known obstacles.
func (t *Table) Len() int { return len(t.entries) }

// Handle returns the handle for id.
func (t *Table) Handle(id int64) (physics.Handle, bool) {
	e, ok := t.entries[id]
	if !ok {
		return 0, false
	}
	return e.Handle, true
}

// Handles returns a copy of the id to handle mapping.
func (t *Table) Handles() map[int64]physics.Handle {
	out := make(map[int64]physics.Handle, len(t.entries))
	for id, e := range t.entries {
		out[id] = e.Handle
	}
	return out
}

// Descriptors returns the last known descriptor of every obstacle, ordered
// by id.
func (t *Table) Descriptors() []protocol.ObstacleDescriptor {
	out := make([]protocol.ObstacleDescriptor, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.Last)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
