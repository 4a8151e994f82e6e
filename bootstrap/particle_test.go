package bootstrap_test

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"github.com/mobilerobots/tagslam/bootstrap"
	"github.com/mobilerobots/tagslam/detection"
	"github.com/mobilerobots/tagslam/geometry"
	"github.com/mobilerobots/tagslam/landmarks"
)

// autoConfirm is an injected ConfirmationPort (Design Notes) that
// accepts or rejects immediately, for deterministic tests.
type autoConfirm struct {
	decided bool
	accept  bool
}

func (a *autoConfirm) Poll() (bool, bool) { return a.decided, a.accept }

func priorTable(t *testing.T, rows string) *landmarks.Table {
	t.Helper()
	path := filepath.Join(t.TempDir(), "priors.csv")
	test.That(t, os.WriteFile(path, []byte(rows), 0o600), test.ShouldBeNil)
	table, err := landmarks.LoadCSV(path)
	test.That(t, err, test.ShouldBeNil)
	return table
}

func TestFilterIdlesWithoutValidDetections(t *testing.T) {
	table := priorTable(t, "0,3.0,0.0\n")
	confirm := &autoConfirm{}
	f := bootstrap.NewFilter(bootstrap.Config{NParticles: 50, RangeVar: 0.05, BearingVar: 0.02}, table, confirm, rand.New(rand.NewSource(1)), 5)

	f.Step(nil)
	f.Step([]detection.Observation{{TagID: 99, Position: geometry.Point{X: 1, Y: 1}}})

	test.That(t, f.State(), test.ShouldEqual, bootstrap.Idle)
}

func TestFilterConvergesAndAcceptsCandidate(t *testing.T) {
	// One prior tag at (3,0); robot truly at (0,0) facing +x observes it
	// at bearing 0, range 3.
	table := priorTable(t, "0,3.0,0.0\n")
	confirm := &autoConfirm{}
	f := bootstrap.NewFilter(bootstrap.Config{NParticles: 500, RangeVar: 0.01, BearingVar: 0.005}, table, confirm, rand.New(rand.NewSource(42)), 20)

	obs := []detection.Observation{{TagID: 0, Position: geometry.Point{X: 3, Y: 0}}}
	for i := 0; i < 21; i++ {
		f.Step(obs)
	}
	test.That(t, f.State(), test.ShouldEqual, bootstrap.AwaitConfirm)

	confirm.decided = true
	confirm.accept = true
	f.Step(obs)

	test.That(t, f.State(), test.ShouldEqual, bootstrap.Initialized)
	pose0 := f.Pose0()
	test.That(t, pose0.Theta, test.ShouldAlmostEqual, 0.0)
	test.That(t, geometry.Range(pose0, geometry.NewPose(0, 0, 0)), test.ShouldBeLessThan, 0.2)
}

func TestFilterRestartsOnRejection(t *testing.T) {
	table := priorTable(t, "0,3.0,0.0\n")
	confirm := &autoConfirm{}
	f := bootstrap.NewFilter(bootstrap.Config{NParticles: 50, RangeVar: 0.05, BearingVar: 0.02}, table, confirm, rand.New(rand.NewSource(7)), 3)

	obs := []detection.Observation{{TagID: 0, Position: geometry.Point{X: 3, Y: 0}}}
	for i := 0; i < 4; i++ {
		f.Step(obs)
	}
	test.That(t, f.State(), test.ShouldEqual, bootstrap.AwaitConfirm)

	confirm.decided = true
	confirm.accept = false
	f.Step(obs)

	test.That(t, f.State(), test.ShouldEqual, bootstrap.Idle)
}
