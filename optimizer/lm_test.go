package optimizer_test

import (
	"testing"

	"go.viam.com/test"

	"github.com/mobilerobots/tagslam/geometry"
	"github.com/mobilerobots/tagslam/noise"
	"github.com/mobilerobots/tagslam/optimizer"
	"github.com/mobilerobots/tagslam/pgraph"
)

func mustNoise(t *testing.T, name string, sigma ...float64) noise.Model {
	t.Helper()
	m, err := noise.New(name, sigma)
	test.That(t, err, test.ShouldBeNil)
	return m
}

// TestSolveRecoversTrueOdometry builds a two-pose chain: a tight prior
// pins X1 at the origin, and a between-factor says X2 is 1m ahead. The
// initial estimate for X2 is deliberately wrong; Solve should pull it
// back onto the between-factor's prediction.
func TestSolveRecoversTrueOdometry(t *testing.T) {
	g := pgraph.NewGraph()
	x1, x2 := pgraph.PoseKey(1), pgraph.PoseKey(2)

	g.Estimates.Insert(x1, pgraph.PoseValue(geometry.NewPose(0, 0, 0)))
	g.Estimates.Insert(x2, pgraph.PoseValue(geometry.NewPose(0.5, 0.5, 0.2))) // bad initial guess

	prior := mustNoise(t, "prior", 0.01, 0.01, 0.01)
	odom := mustNoise(t, "odom", 0.05, 0.05, 0.02)

	g.Factors.Append(pgraph.PriorPoseFactor(x1, geometry.NewPose(0, 0, 0), prior))
	g.Factors.Append(pgraph.BetweenFactor(x1, x2, geometry.NewPose(1, 0, 0), odom))

	_, err := optimizer.Solve(g, optimizer.DefaultOptions())
	test.That(t, err, test.ShouldBeNil)

	p1, err := g.Estimates.Pose(x1)
	test.That(t, err, test.ShouldBeNil)
	p2, err := g.Estimates.Pose(x2)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, p1.X, test.ShouldAlmostEqual, 0.0, 0.01)
	test.That(t, p1.Y, test.ShouldAlmostEqual, 0.0, 0.01)
	test.That(t, p2.X, test.ShouldAlmostEqual, 1.0, 0.05)
	test.That(t, p2.Y, test.ShouldAlmostEqual, 0.0, 0.05)
}

// TestSolveTriangulatesLandmark checks that a landmark seen from two
// well-separated, well-pinned poses converges to its true position.
func TestSolveTriangulatesLandmark(t *testing.T) {
	g := pgraph.NewGraph()
	x1, x2 := pgraph.PoseKey(1), pgraph.PoseKey(2)
	l0 := pgraph.LandmarkKey(0)

	truePose1 := geometry.NewPose(0, 0, 0)
	truePose2 := geometry.NewPose(0, 2, 0)
	trueLandmark := geometry.Point{X: 2, Y: 1}

	g.Estimates.Insert(x1, pgraph.PoseValue(truePose1))
	g.Estimates.Insert(x2, pgraph.PoseValue(truePose2))
	g.Estimates.Insert(l0, pgraph.PointValue(geometry.Point{X: 1, Y: 1})) // wrong initial guess

	prior := mustNoise(t, "prior", 0.001, 0.001, 0.001)
	br := mustNoise(t, "br", 0.02, 0.05)

	g.Factors.Append(pgraph.PriorPoseFactor(x1, truePose1, prior))
	g.Factors.Append(pgraph.PriorPoseFactor(x2, truePose2, prior))

	b1, r1 := geometry.BearingRange(truePose1.ToLocal(trueLandmark))
	b2, r2 := geometry.BearingRange(truePose2.ToLocal(trueLandmark))
	g.Factors.Append(pgraph.BearingRangeFactor(x1, l0, b1, r1, br))
	g.Factors.Append(pgraph.BearingRangeFactor(x2, l0, b2, r2, br))

	_, err := optimizer.Solve(g, optimizer.DefaultOptions())
	test.That(t, err, test.ShouldBeNil)

	landmark, err := g.Estimates.Point(l0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, landmark.X, test.ShouldAlmostEqual, trueLandmark.X, 0.05)
	test.That(t, landmark.Y, test.ShouldAlmostEqual, trueLandmark.Y, 0.05)
}

func TestSolveNoOpOnEmptyGraph(t *testing.T) {
	g := pgraph.NewGraph()
	n, err := optimizer.Solve(g, optimizer.DefaultOptions())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, 0)
}

func TestDriverSeedsOnceThenTakesBoundedSteps(t *testing.T) {
	g := pgraph.NewGraph()
	x1 := pgraph.PoseKey(1)
	g.Estimates.Insert(x1, pgraph.PoseValue(geometry.NewPose(1, 1, 0.1)))
	prior := mustNoise(t, "prior", 0.01, 0.01, 0.01)
	g.Factors.Append(pgraph.PriorPoseFactor(x1, geometry.NewPose(0, 0, 0), prior))

	d := optimizer.NewDriver(optimizer.Incremental, optimizer.DefaultOptions(), 0.1, 1)
	test.That(t, d.State(), test.ShouldEqual, optimizer.Unseeded)

	test.That(t, d.Update(g), test.ShouldBeNil)
	test.That(t, d.State(), test.ShouldEqual, optimizer.Seeded)

	p, err := g.Estimates.Pose(x1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.X, test.ShouldAlmostEqual, 0.0, 0.01)

	// Subsequent incremental calls stay seeded and keep the estimate
	// converged.
	test.That(t, d.Update(g), test.ShouldBeNil)
	test.That(t, d.State(), test.ShouldEqual, optimizer.Seeded)
}

func TestDriverBatchAlwaysReconverges(t *testing.T) {
	g := pgraph.NewGraph()
	x1 := pgraph.PoseKey(1)
	g.Estimates.Insert(x1, pgraph.PoseValue(geometry.NewPose(2, -1, 0)))
	prior := mustNoise(t, "prior", 0.01, 0.01, 0.01)
	g.Factors.Append(pgraph.PriorPoseFactor(x1, geometry.NewPose(0, 0, 0), prior))

	d := optimizer.NewDriver(optimizer.Batch, optimizer.DefaultOptions(), 0.1, 1)
	test.That(t, d.Update(g), test.ShouldBeNil)

	p, err := g.Estimates.Pose(x1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.X, test.ShouldAlmostEqual, 0.0, 0.01)
	test.That(t, p.Y, test.ShouldAlmostEqual, 0.0, 0.01)
}
