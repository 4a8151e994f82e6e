// Package ports declares the external collaborator contracts spec.md
// #6 enumerates as out of core scope: transport, transform lookup,
// visualization publishers, and the bootstrap confirmation prompt. CSV
// persistence has no interface here. The core depends only
// on these interfaces; a host binds concrete implementations (a real
// ROS-style transport, a real viz publisher) to them. Grounded on
// component/posetracker/pose_tracker.go's small, context-first,
// single-purpose interface shape.
package ports

import (
	"context"
	"time"

	"github.com/golang/geo/r3"

	"github.com/mobilerobots/tagslam/geometry"
)

// OdometryMessage is a single (timestamp, position, orientation)
// sample from the odometry transport (spec.md #6).
type OdometryMessage struct {
	Time      time.Time
	Position  r3.Vector
	Yaw       float64 // already reduced from quaternion to planar yaw
}

// OdometrySource streams odometry samples to the core.
type OdometrySource interface {
	NextOdometry(ctx context.Context) (OdometryMessage, error)
}

// TagDetection is a single decoded tag pose in a camera's frame,
// carried over the per-camera detection transport.
type TagDetection struct {
	TagID    uint64
	Position geometry.Point
}

// DetectionSource streams a named camera's latest detection array.
type DetectionSource interface {
	CameraName() string
	NextDetections(ctx context.Context) ([]TagDetection, error)
}

// StaticTransformLookup resolves the fixed robot_frame -> camera
// frame_id transform (spec.md #5: "bounded retries with a 0.5s
// interval, up to 20 attempts").
type StaticTransformLookup interface {
	LookupStaticTransform(ctx context.Context, robotFrame, cameraFrame string) (translation, rotatedZAxis r3.Vector, err error)
}

// TrajectoryPublisher receives the ordered visualization-estimate path
// (spec.md #6, "Trajectory path").
type TrajectoryPublisher interface {
	PublishPath(poses []geometry.Pose) error
}

// LandmarkPublisher receives the current landmark set for visualization
// (spec.md #6, "Landmark set").
type LandmarkPublisher interface {
	PublishLandmarks(ids []uint64, positions []geometry.Point) error
}

// TransformBroadcaster receives the map-to-odom transform (spec.md #6).
type TransformBroadcaster interface {
	BroadcastMapToOdom(mapToOdom geometry.Pose) error
}

// LoopClosureNotifier receives loop-closure marker events (spec.md #6).
type LoopClosureNotifier interface {
	NotifyLoopClosure(fromIndex, toIndex uint64) error
}

// ConfirmationPort lifts the particle-filter bootstrap's human
// yes/no confirmation to an injected, non-blocking decision port
// (Design Notes: "lift the yes/no to an injected decision port so
// tests can drive it deterministically"). Poll must never block: it
// reports whether a decision has been made yet, and if so, what it was.
type ConfirmationPort interface {
	Poll() (decided bool, accept bool)
}
