package outlier_test

import (
	"testing"

	"go.viam.com/test"

	"github.com/mobilerobots/tagslam/geometry"
	"github.com/mobilerobots/tagslam/outlier"
)

func TestGateInertBelowStartIndex(t *testing.T) {
	cfg := outlier.Config{Enabled: true, StartIndex: 10, JumpThreshold: 0.1}
	optimized := geometry.NewPose(5, 5, 0)
	res := outlier.Apply(cfg, 3, geometry.NewPose(0, 0, 0), geometry.NewPose(0, 0, 0), geometry.NewPose(1, 0, 0), optimized)
	test.That(t, res.Rejected, test.ShouldBeFalse)
	test.That(t, res.Pose, test.ShouldResemble, optimized)
}

func TestGateInertWhenDisabled(t *testing.T) {
	cfg := outlier.Config{Enabled: false, StartIndex: 0, JumpThreshold: 0.01}
	optimized := geometry.NewPose(100, 100, 0)
	res := outlier.Apply(cfg, 100, geometry.NewPose(0, 0, 0), geometry.NewPose(0, 0, 0), geometry.NewPose(1, 0, 0), optimized)
	test.That(t, res.Rejected, test.ShouldBeFalse)
	test.That(t, res.Pose, test.ShouldResemble, optimized)
}

func TestGateAcceptsSmallLateralJump(t *testing.T) {
	cfg := outlier.Config{Enabled: true, StartIndex: 0, JumpThreshold: 0.5}
	lastAccepted := geometry.NewPose(0, 0, 0)
	optimized := geometry.NewPose(1, 0.1, 0) // lateral (y) component 0.1 < 0.5
	res := outlier.Apply(cfg, 5, lastAccepted, geometry.NewPose(0, 0, 0), geometry.NewPose(1, 0, 0), optimized)
	test.That(t, res.Rejected, test.ShouldBeFalse)
	test.That(t, res.Pose, test.ShouldResemble, optimized)
}

func TestGateRejectsLargeLateralJump(t *testing.T) {
	cfg := outlier.Config{Enabled: true, StartIndex: 0, JumpThreshold: 0.5}
	lastAccepted := geometry.NewPose(0, 0, 0)
	lastOdom := geometry.NewPose(0, 0, 0)
	currentOdom := geometry.NewPose(1, 0, 0)
	optimized := geometry.NewPose(1, 2.0, 0) // way off to the side

	res := outlier.Apply(cfg, 5, lastAccepted, lastOdom, currentOdom, optimized)
	test.That(t, res.Rejected, test.ShouldBeTrue)

	wantFallback := lastAccepted.Compose(geometry.Between(lastOdom, currentOdom))
	test.That(t, res.Pose.X, test.ShouldAlmostEqual, wantFallback.X, 1e-9)
	test.That(t, res.Pose.Y, test.ShouldAlmostEqual, wantFallback.Y, 1e-9)
	test.That(t, res.Pose.Theta, test.ShouldAlmostEqual, wantFallback.Theta, 1e-9)
}

func TestGateProjectsOntoRotatedLateralAxis(t *testing.T) {
	// lastAccepted heading is 90 degrees: lateral axis is now world X.
	cfg := outlier.Config{Enabled: true, StartIndex: 0, JumpThreshold: 0.5}
	lastAccepted := geometry.NewPose(0, 0, 1.5707963267948966)
	// A pose that only moves forward (world Y) should not trip the gate...
	forwardOnly := geometry.NewPose(0, 2, 1.5707963267948966)
	res := outlier.Apply(cfg, 5, lastAccepted, geometry.NewPose(0, 0, 0), geometry.NewPose(0, 1, 0), forwardOnly)
	test.That(t, res.Rejected, test.ShouldBeFalse)

	// ...but a pose that drifts sideways (world X, lateral to a 90-degree heading) should.
	sideways := geometry.NewPose(2, 0, 1.5707963267948966)
	res2 := outlier.Apply(cfg, 5, lastAccepted, geometry.NewPose(0, 0, 0), geometry.NewPose(0, 1, 0), sideways)
	test.That(t, res2.Rejected, test.ShouldBeTrue)
}
