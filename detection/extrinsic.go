package detection

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/mobilerobots/tagslam/geometry"
)

// ExtractPlanarExtrinsic reduces a 3D static transform (robot_frame ->
// camera frame_id) to the planar (x, y, yaw) offset the detection
// aggregator needs. Per spec.md #6, yaw is recovered by projecting the
// camera rotation's z-axis onto the ground plane and taking
// atan2(y, x); translation is used as-is in x/y. Grounded on
// component/posetracker/pose_tracker.go's use of golang/geo/r3.Vector
// to carry 3D orientation data before it is reduced to a planar
// quantity.
func ExtractPlanarExtrinsic(translation r3.Vector, rotatedZAxis r3.Vector) geometry.Pose {
	yaw := math.Atan2(rotatedZAxis.Y, rotatedZAxis.X)
	return geometry.NewPose(translation.X, translation.Y, yaw)
}
