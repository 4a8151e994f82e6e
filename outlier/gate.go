// Package outlier implements the lateral-jump outlier gate (spec.md
// #4.8): a batch-mode-only safety net that discards an optimizer result
// that jerks the current pose sideways relative to its predecessor.
package outlier

import (
	"math"

	"github.com/mobilerobots/tagslam/geometry"
)

// Config bundles the outlier-gate configuration from spec.md #6.
type Config struct {
	Enabled       bool
	StartIndex    uint64  // outlierRemovalStartIndex_
	JumpThreshold float64 // jumpCombinedThreshold
}

// Result reports what the gate decided.
type Result struct {
	Pose     geometry.Pose
	Rejected bool
	Lateral  float64
}

// Apply runs spec.md #4.8's check. lastAccepted is the previously
// accepted pose; lastOdom/currentOdom are the raw odometry readings at
// the last accepted keyframe and now, used to build the dead-reckoned
// fallback; optimized is the solver's result for the current pose.
//
// The gate is inert (returns optimized unchanged) when disabled or when
// indexOfPose is below StartIndex (spec.md #8.10).
func Apply(cfg Config, indexOfPose uint64, lastAccepted, lastOdom, currentOdom, optimized geometry.Pose) Result {
	if !cfg.Enabled || indexOfPose < cfg.StartIndex {
		return Result{Pose: optimized}
	}

	dx := optimized.X - lastAccepted.X
	dy := optimized.Y - lastAccepted.Y
	sin, cos := math.Sincos(lastAccepted.Theta)
	lateral := math.Abs(-sin*dx + cos*dy)

	if lateral <= cfg.JumpThreshold {
		return Result{Pose: optimized, Lateral: lateral}
	}

	deadReckoned := lastAccepted.Compose(geometry.Between(lastOdom, currentOdom))
	return Result{Pose: deadReckoned, Rejected: true, Lateral: lateral}
}
