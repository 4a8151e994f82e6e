package detection_test

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/mobilerobots/tagslam/detection"
)

func TestExtractPlanarExtrinsicUsesTranslationAndProjectedYaw(t *testing.T) {
	pose := detection.ExtractPlanarExtrinsic(
		r3.Vector{X: 1, Y: 2, Z: 5},
		r3.Vector{X: 0, Y: 1, Z: 9},
	)
	test.That(t, pose.X, test.ShouldAlmostEqual, 1.0)
	test.That(t, pose.Y, test.ShouldAlmostEqual, 2.0)
	test.That(t, pose.Theta, test.ShouldAlmostEqual, math.Pi/2, 1e-9)
}

func TestExtractPlanarExtrinsicIdentityWhenZAxisPointsAlongX(t *testing.T) {
	pose := detection.ExtractPlanarExtrinsic(r3.Vector{}, r3.Vector{X: 1, Y: 0, Z: 0})
	test.That(t, pose.Theta, test.ShouldAlmostEqual, 0.0, 1e-9)
}
