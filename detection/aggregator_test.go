package detection_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/mobilerobots/tagslam/detection"
	"github.com/mobilerobots/tagslam/geometry"
	"github.com/mobilerobots/tagslam/landmarks"
)

func TestMergeAppliesExtrinsicAndLatestWins(t *testing.T) {
	agg := detection.NewAggregator()
	agg.SetExtrinsic("front", geometry.NewPose(1, 0, math.Pi/2))

	agg.Publish("front", []detection.Detection{{TagID: 5, Position: geometry.Point{X: 2, Y: 0}}})
	obs := agg.Merge()
	test.That(t, len(obs), test.ShouldEqual, 1)
	test.That(t, obs[0].TagID, test.ShouldEqual, uint64(5))
	// camera at (1,0) facing +90deg: local (2,0) rotates to (0,2), plus offset -> (1,2)
	test.That(t, obs[0].Position.X, test.ShouldAlmostEqual, 1.0, 1e-9)
	test.That(t, obs[0].Position.Y, test.ShouldAlmostEqual, 2.0, 1e-9)

	// no publish since last merge -> empty
	obs = agg.Merge()
	test.That(t, len(obs), test.ShouldEqual, 0)
}

func TestMergeOmitsCamerasWithoutExtrinsic(t *testing.T) {
	agg := detection.NewAggregator()
	agg.Publish("unregistered", []detection.Detection{{TagID: 1, Position: geometry.Point{X: 1, Y: 1}}})
	obs := agg.Merge()
	test.That(t, len(obs), test.ShouldEqual, 0)
}

func TestFilterKnown(t *testing.T) {
	table, err := writeTempTable(t)
	test.That(t, err, test.ShouldBeNil)

	obs := []detection.Observation{
		{TagID: 0, Position: geometry.Point{X: 1, Y: 1}},
		{TagID: 99, Position: geometry.Point{X: 2, Y: 2}},
	}
	filtered := detection.FilterKnown(obs, table)
	test.That(t, len(filtered), test.ShouldEqual, 1)
	test.That(t, filtered[0].TagID, test.ShouldEqual, uint64(0))
}

func TestExtractPlanarExtrinsic(t *testing.T) {
	pose := detection.ExtractPlanarExtrinsic(r3.Vector{X: 1, Y: 2, Z: 0}, r3.Vector{X: 0, Y: 1, Z: 0})
	test.That(t, pose.X, test.ShouldAlmostEqual, 1.0)
	test.That(t, pose.Y, test.ShouldAlmostEqual, 2.0)
	test.That(t, pose.Theta, test.ShouldAlmostEqual, math.Pi/2, 1e-9)
}

func writeTempTable(t *testing.T) (*landmarks.Table, error) {
	t.Helper()
	// Drive the table through the real CSV load path used in production
	// rather than reaching into landmarks.Table's unexported fields.
	path := filepath.Join(t.TempDir(), "priors.csv")
	if err := os.WriteFile(path, []byte("0,1.0,1.0\n"), 0o600); err != nil {
		return nil, err
	}
	return landmarks.LoadCSV(path)
}
