// Package keyframe implements the keyframe promotion gate (spec.md
// #4.5): the decision of whether a new odometry sample deserves its own
// pose variable and graph update, or is folded into dead reckoning
// only.
package keyframe

import (
	"github.com/mobilerobots/tagslam/geometry"
)

// Thresholds bundles the two motion gates from spec.md #6.
type Thresholds struct {
	Distance float64 // distanceThreshold
	Rotation float64 // rotationThreshold
}

// Gate decides whether the predicted pose P should be promoted to a new
// keyframe, given the last keyframe pose PK, the landmark set observed
// there (LK), and the landmark set observed now (L). It implements the
// three-way OR from spec.md #4.5 and is a pure, side-effect-free
// predicate, so repeated calls with identical inputs are idempotent
// (spec.md #8.7).
func Gate(pk, p geometry.Pose, lk, l map[uint64]bool, th Thresholds) bool {
	for id := range l {
		if !lk[id] {
			return true // a new tag is seen
		}
	}
	if geometry.Range(pk, p) > th.Distance {
		return true
	}
	if abs(geometry.WrapToPi(p.Theta-pk.Theta)) > th.Rotation {
		return true
	}
	return false
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
