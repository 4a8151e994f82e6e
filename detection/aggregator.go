// Package detection merges per-camera tag-detection arrays into one
// frame of (id, position) observations in the robot frame (spec.md
// #4.3), and extracts planar camera extrinsics from a 3D static
// transform lookup (spec.md #6).
package detection

import (
	"github.com/mobilerobots/tagslam/geometry"
	"github.com/mobilerobots/tagslam/landmarks"
)

// Detection is a single decoded tag observation in its camera's frame.
type Detection struct {
	TagID    uint64
	Position geometry.Point
}

// Aggregator holds each camera's planar extrinsic and its most recently
// published detection array, and merges them on demand into a single
// robot-frame observation frame.
type Aggregator struct {
	extrinsics map[string]geometry.Pose
	latest     map[string][]Detection
	pending    map[string]bool
}

// NewAggregator returns an Aggregator with no cameras registered.
func NewAggregator() *Aggregator {
	return &Aggregator{
		extrinsics: make(map[string]geometry.Pose),
		latest:     make(map[string][]Detection),
		pending:    make(map[string]bool),
	}
}

// SetExtrinsic registers (or replaces) the planar offset from the robot
// frame to camera named name.
func (a *Aggregator) SetExtrinsic(name string, offset geometry.Pose) {
	a.extrinsics[name] = offset
}

// Publish records camera name's latest detection array. Per spec.md
// #5, this runs on the same single dispatch loop as everything else,
// so a plain map is safe without additional synchronization.
func (a *Aggregator) Publish(name string, detections []Detection) {
	a.latest[name] = detections
	a.pending[name] = true
}

// Observation is a single tag-id / robot-frame-position pair produced
// by Merge.
type Observation struct {
	TagID    uint64
	Position geometry.Point
}

// Merge returns one frame of observations in the robot frame, "latest
// wins per camera name" (spec.md #5), applying each camera's planar
// extrinsic to its detections. Cameras that have not published since
// the previous Merge call are omitted, and their pending flag is
// consumed regardless of whether they had produced detections.
func (a *Aggregator) Merge() []Observation {
	var out []Observation
	for name, isPending := range a.pending {
		if !isPending {
			continue
		}
		offset, ok := a.extrinsics[name]
		if !ok {
			continue
		}
		for _, d := range a.latest[name] {
			out = append(out, Observation{
				TagID:    d.TagID,
				Position: offset.ToWorld(d.Position),
			})
		}
	}
	for name := range a.pending {
		a.pending[name] = false
	}
	return out
}

// FilterKnown drops observations whose tag id is not present in table.
// The aggregator itself stays agnostic to prior-map mode; per spec.md
// #4.3 it is the consumer's job to apply this filter when prior-map
// mode is active.
func FilterKnown(observations []Observation, table *landmarks.Table) []Observation {
	if table == nil {
		return observations
	}
	out := observations[:0:0]
	for _, o := range observations {
		if table.Has(o.TagID) {
			out = append(out, o)
		}
	}
	return out
}
