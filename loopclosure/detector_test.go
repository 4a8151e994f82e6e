package loopclosure_test

import (
	"testing"

	"go.viam.com/test"

	"github.com/mobilerobots/tagslam/geometry"
	"github.com/mobilerobots/tagslam/loopclosure"
	"github.com/mobilerobots/tagslam/noise"
	"github.com/mobilerobots/tagslam/pgraph"
)

func mustLCNoise(t *testing.T) noise.Model {
	t.Helper()
	m, err := noise.New("loopClosureNoise", []float64{0.2, 0.2, 0.1})
	test.That(t, err, test.ShouldBeNil)
	return m
}

func seedSquareLoop(t *testing.T, g *pgraph.Graph) {
	t.Helper()
	l0 := pgraph.LandmarkKey(0)
	g.Estimates.Insert(l0, pgraph.PointValue(geometry.Point{X: 5, Y: 5}))

	x1 := pgraph.PoseKey(1)
	g.Estimates.Insert(x1, pgraph.PoseValue(geometry.NewPose(0, 0, 0)))
	g.RecordObservations(x1, []pgraph.Key{l0})

	// Ten keyframes with no shared landmarks in between.
	for i := uint64(2); i <= 10; i++ {
		xi := pgraph.PoseKey(i)
		g.Estimates.Insert(xi, pgraph.PoseValue(geometry.NewPose(float64(i), 0, 0)))
		g.RecordObservations(xi, nil)
	}

	x11 := pgraph.PoseKey(11)
	g.Estimates.Insert(x11, pgraph.PoseValue(geometry.NewPose(0.1, 0.1, 0)))
	g.RecordObservations(x11, []pgraph.Key{l0})
}

func TestDetectFindsEarliestCovisibleKeyframe(t *testing.T) {
	g := pgraph.NewGraph()
	seedSquareLoop(t, g)

	cfg := loopclosure.Config{Enabled: true, SearchRadius: 1.0, SearchNum: 5, RequiredReobserved: 1}
	x11 := pgraph.PoseKey(11)
	pose11, err := g.Estimates.Pose(x11)
	test.That(t, err, test.ShouldBeNil)

	factor, found, err := loopclosure.Detect(g, cfg, x11, pose11, mustLCNoise(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, found, test.ShouldBeTrue)
	test.That(t, factor.Kind, test.ShouldEqual, pgraph.LoopClosure)
	test.That(t, factor.Keys[0], test.ShouldResemble, pgraph.PoseKey(1))
	test.That(t, factor.Keys[1], test.ShouldResemble, x11)
}

func TestDetectInertWhenDisabled(t *testing.T) {
	g := pgraph.NewGraph()
	seedSquareLoop(t, g)

	cfg := loopclosure.Config{Enabled: false, SearchRadius: 1.0, SearchNum: 5, RequiredReobserved: 1}
	x11 := pgraph.PoseKey(11)
	pose11, _ := g.Estimates.Pose(x11)
	_, found, err := loopclosure.Detect(g, cfg, x11, pose11, mustLCNoise(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, found, test.ShouldBeFalse)
}

func TestDetectRejectsBelowIndexDeltaThreshold(t *testing.T) {
	g := pgraph.NewGraph()
	l0 := pgraph.LandmarkKey(0)
	g.Estimates.Insert(l0, pgraph.PointValue(geometry.Point{X: 5, Y: 5}))

	x1 := pgraph.PoseKey(1)
	g.Estimates.Insert(x1, pgraph.PoseValue(geometry.NewPose(0, 0, 0)))
	g.RecordObservations(x1, []pgraph.Key{l0})

	x3 := pgraph.PoseKey(3)
	g.Estimates.Insert(x3, pgraph.PoseValue(geometry.NewPose(0, 0, 0)))
	g.RecordObservations(x3, []pgraph.Key{l0})

	cfg := loopclosure.Config{Enabled: true, SearchRadius: 5.0, SearchNum: 5, RequiredReobserved: 1}
	pose3, _ := g.Estimates.Pose(x3)
	_, found, err := loopclosure.Detect(g, cfg, x3, pose3, mustLCNoise(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, found, test.ShouldBeFalse)
}

func TestDetectRejectsOutsideRadius(t *testing.T) {
	g := pgraph.NewGraph()
	seedSquareLoop(t, g)

	cfg := loopclosure.Config{Enabled: true, SearchRadius: 0.01, SearchNum: 5, RequiredReobserved: 1}
	x11 := pgraph.PoseKey(11)
	pose11, _ := g.Estimates.Pose(x11)
	_, found, err := loopclosure.Detect(g, cfg, x11, pose11, mustLCNoise(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, found, test.ShouldBeFalse)
}

func TestDetectRejectsInsufficientReobservedLandmarks(t *testing.T) {
	g := pgraph.NewGraph()
	seedSquareLoop(t, g)

	cfg := loopclosure.Config{Enabled: true, SearchRadius: 1.0, SearchNum: 5, RequiredReobserved: 2}
	x11 := pgraph.PoseKey(11)
	pose11, _ := g.Estimates.Pose(x11)
	_, found, err := loopclosure.Detect(g, cfg, x11, pose11, mustLCNoise(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, found, test.ShouldBeFalse)
}
