package pgraph

import "fmt"

// Channel distinguishes the two variable kinds in the graph (spec.md #3):
// pose variables live on channel X, landmark variables on channel L.
type Channel byte

const (
	// PoseChannel keys pose variables, indexed by keyframe order starting at 1.
	PoseChannel Channel = 'X'
	// LandmarkChannel keys landmark variables, indexed by tag id.
	LandmarkChannel Channel = 'L'
)

// Key identifies a variable in the graph: a channel plus a monotonically
// meaningful index (pose index or tag id).
type Key struct {
	Chan  Channel
	Index uint64
}

// PoseKey builds the key for pose variable X_i.
func PoseKey(i uint64) Key { return Key{Chan: PoseChannel, Index: i} }

// LandmarkKey builds the key for the landmark variable with the given tag id.
func LandmarkKey(tagID uint64) Key { return Key{Chan: LandmarkChannel, Index: tagID} }

// String renders the key the way GTSAM-style symbols are printed, e.g. "X3", "L12".
func (k Key) String() string {
	return fmt.Sprintf("%c%d", k.Chan, k.Index)
}

// IsPose reports whether k is on the pose channel.
func (k Key) IsPose() bool { return k.Chan == PoseChannel }

// IsLandmark reports whether k is on the landmark channel.
func (k Key) IsLandmark() bool { return k.Chan == LandmarkChannel }
