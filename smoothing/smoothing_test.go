package smoothing_test

import (
	"testing"

	"go.viam.com/test"

	"github.com/mobilerobots/tagslam/geometry"
	"github.com/mobilerobots/tagslam/smoothing"
)

func TestSmoothAveragesLastWindow(t *testing.T) {
	cfg := smoothing.Config{Enabled: true, Window: 3, StartIndex: 0}
	traj := []geometry.Pose{
		geometry.NewPose(0, 0, 0),
		geometry.NewPose(1, 0, 0.1),
		geometry.NewPose(2, 0, 0.2),
		geometry.NewPose(3, 3, 0.3), // last pose: heading must survive, position gets averaged
	}
	out := smoothing.Smooth(cfg, 4, traj)
	last := out[len(out)-1]
	test.That(t, last.X, test.ShouldAlmostEqual, (1.0+2.0+3.0)/3.0, 1e-9)
	test.That(t, last.Y, test.ShouldAlmostEqual, (0.0+0.0+3.0)/3.0, 1e-9)
	test.That(t, last.Theta, test.ShouldAlmostEqual, 0.3, 1e-9)
}

func TestSmoothNoOpWhenDisabled(t *testing.T) {
	cfg := smoothing.Config{Enabled: false, Window: 2, StartIndex: 0}
	traj := []geometry.Pose{geometry.NewPose(0, 0, 0), geometry.NewPose(5, 5, 0)}
	out := smoothing.Smooth(cfg, 2, traj)
	test.That(t, out[len(out)-1].X, test.ShouldAlmostEqual, 5.0)
}

func TestSmoothNoOpBelowStartIndex(t *testing.T) {
	cfg := smoothing.Config{Enabled: true, Window: 2, StartIndex: 10}
	traj := []geometry.Pose{geometry.NewPose(0, 0, 0), geometry.NewPose(5, 5, 0)}
	out := smoothing.Smooth(cfg, 2, traj)
	test.That(t, out[len(out)-1].X, test.ShouldAlmostEqual, 5.0)
}

func TestSmoothNoOpWhenTrajectoryShorterThanWindow(t *testing.T) {
	cfg := smoothing.Config{Enabled: true, Window: 5, StartIndex: 0}
	traj := []geometry.Pose{geometry.NewPose(0, 0, 0), geometry.NewPose(5, 5, 0)}
	out := smoothing.Smooth(cfg, 2, traj)
	test.That(t, out[len(out)-1].X, test.ShouldAlmostEqual, 5.0)
}
