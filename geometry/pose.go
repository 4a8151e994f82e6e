// Package geometry provides the SE(2) primitives the pose-graph core is
// built on: pose composition, inversion, the relative-pose operator, and
// the bearing-range projection used by landmark observations.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Pose is a planar rigid transform (x, y, theta). Theta is not
// canonicalized on construction; call WrapToPi where the invariant
// (spec.md #8.5: orientations lie in (-pi, pi]) must hold.
type Pose struct {
	X, Y, Theta float64
}

// Point is a bare 2D point, used for landmark positions which carry no
// orientation.
type Point struct {
	X, Y float64
}

// NewPose returns a Pose with theta wrapped to (-pi, pi].
func NewPose(x, y, theta float64) Pose {
	return Pose{X: x, Y: y, Theta: WrapToPi(theta)}
}

// WrapToPi canonicalizes an angle to (-pi, pi].
func WrapToPi(theta float64) float64 {
	theta = math.Mod(theta+math.Pi, 2*math.Pi)
	if theta <= 0 {
		theta += 2 * math.Pi
	}
	return theta - math.Pi
}

// Compose returns a (+) b, the SE(2) group operation: b expressed in a's
// frame, applied in the world frame.
func (a Pose) Compose(b Pose) Pose {
	sin, cos := math.Sincos(a.Theta)
	return Pose{
		X:     a.X + cos*b.X - sin*b.Y,
		Y:     a.Y + sin*b.X + cos*b.Y,
		Theta: WrapToPi(a.Theta + b.Theta),
	}
}

// Inverse returns a^-1 such that a.Compose(a.Inverse()) is the identity
// pose up to floating point tolerance.
func (a Pose) Inverse() Pose {
	sin, cos := math.Sincos(a.Theta)
	return Pose{
		X:     -cos*a.X - sin*a.Y,
		Y:     sin*a.X - cos*a.Y,
		Theta: WrapToPi(-a.Theta),
	}
}

// Between returns a^-1 (+) b, the relative pose of b as seen from a.
func Between(a, b Pose) Pose {
	return a.Inverse().Compose(b)
}

// Ominus returns the relative pose "a minus b": the transform that,
// composed onto b, yields a. Used for the map-to-odom broadcast
// (spec.md #6, "Estimate(X_i) (-) rawOdom").
func Ominus(a, b Pose) Pose {
	return Between(b, a)
}

// Range returns the planar Euclidean distance between two poses'
// positions.
func Range(a, b Pose) float64 {
	return floats.Distance([]float64{a.X, a.Y}, []float64{b.X, b.Y}, 2)
}

// RangePoint returns the planar Euclidean distance from a pose to a
// point.
func RangePoint(a Pose, p Point) float64 {
	return floats.Distance([]float64{a.X, a.Y}, []float64{p.X, p.Y}, 2)
}

// ToLocal expresses world point p in pose a's local frame.
func (a Pose) ToLocal(p Point) Point {
	dx, dy := p.X-a.X, p.Y-a.Y
	sin, cos := math.Sincos(a.Theta)
	return Point{
		X: cos*dx + sin*dy,
		Y: -sin*dx + cos*dy,
	}
}

// ToWorld expresses local-frame point p (given relative to pose a) in
// the world frame. Used to build the "provisional world position"
// P_i (+) detection in the graph updater (spec.md #4.6).
func (a Pose) ToWorld(p Point) Point {
	sin, cos := math.Sincos(a.Theta)
	return Point{
		X: a.X + cos*p.X - sin*p.Y,
		Y: a.Y + sin*p.X + cos*p.Y,
	}
}

// BearingRange computes the bearing (atan2(y,x)) and range of a landmark
// position expressed in the observing pose's local frame (spec.md #4.1).
func BearingRange(local Point) (bearing, rng float64) {
	return math.Atan2(local.Y, local.X), math.Hypot(local.X, local.Y)
}

// FromBearingRange reconstructs a local-frame point from a bearing/range
// pair; the inverse of BearingRange. Used by the particle-filter
// bootstrap to back-project an observation onto a candidate pose.
func FromBearingRange(bearing, rng float64) Point {
	sin, cos := math.Sincos(bearing)
	return Point{X: rng * cos, Y: rng * sin}
}

// PoseFromObservation solves for the pose, at the given orientation
// theta, whose local-frame observation of a world-frame landmark would
// be exactly localObservation. It is the particle-filter bootstrap's
// core hypothesis generator (spec.md #4.4): a bearing-range measurement
// alone constrains a robot to lie somewhere on the circle of radius
// range around the landmark, one point per candidate theta.
func PoseFromObservation(worldLandmark Point, localObservation Point, theta float64) Pose {
	sin, cos := math.Sincos(theta)
	return Pose{
		X:     worldLandmark.X - (cos*localObservation.X - sin*localObservation.Y),
		Y:     worldLandmark.Y - (sin*localObservation.X + cos*localObservation.Y),
		Theta: WrapToPi(theta),
	}
}
