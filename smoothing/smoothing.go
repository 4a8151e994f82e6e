// Package smoothing implements the trajectory smoothing supplement
// (spec.md #6 usetrajsmoothing/smoothingwindow/smoothingStartIndex_,
// recovered from original_source/aprilslamcpploc.cpp's smoothTrajectory):
// a moving average over the (x, y) of the last N trajectory poses,
// leaving heading alone. tagslam/engine applies it only when keyframing
// is disabled.
package smoothing

import "github.com/mobilerobots/tagslam/geometry"

// Config bundles the smoothing configuration from spec.md #6.
type Config struct {
	Enabled    bool
	Window     int
	StartIndex uint64 // smoothingStartIndex_
}

// Smooth replaces the last pose in trajectory's (x, y) with the moving
// average of its last cfg.Window poses' positions, keeping its heading.
// trajectory must be ordered oldest-first by pose index; index is the
// pose index of the last entry. It is a no-op below cfg.StartIndex, when
// disabled, or when fewer than cfg.Window poses are available.
func Smooth(cfg Config, index uint64, trajectory []geometry.Pose) []geometry.Pose {
	if !cfg.Enabled || index < cfg.StartIndex || len(trajectory) == 0 {
		return trajectory
	}
	if len(trajectory) < cfg.Window {
		return trajectory
	}

	window := trajectory[len(trajectory)-cfg.Window:]
	var sumX, sumY float64
	for _, p := range window {
		sumX += p.X
		sumY += p.Y
	}
	n := float64(cfg.Window)
	last := trajectory[len(trajectory)-1]
	trajectory[len(trajectory)-1] = geometry.Pose{X: sumX / n, Y: sumY / n, Theta: last.Theta}
	return trajectory
}
