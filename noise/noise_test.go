package noise_test

import (
	"testing"

	"go.viam.com/test"

	"github.com/mobilerobots/tagslam/noise"
)

func TestNewRejectsNonPositiveSigma(t *testing.T) {
	_, err := noise.New("bad", []float64{1, 0, 1})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = noise.New("bad", []float64{1, -0.5})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestWhiten(t *testing.T) {
	m, err := noise.New("ok", []float64{2, 5})
	test.That(t, err, test.ShouldBeNil)

	whitened, err := m.Whiten([]float64{4, 10})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, whitened[0], test.ShouldAlmostEqual, 2.0)
	test.That(t, whitened[1], test.ShouldAlmostEqual, 2.0)
}

func TestCovarianceDiagonal(t *testing.T) {
	m, err := noise.New("ok", []float64{2, 3})
	test.That(t, err, test.ShouldBeNil)
	cov := m.Covariance()
	test.That(t, cov.At(0, 0), test.ShouldAlmostEqual, 4.0)
	test.That(t, cov.At(1, 1), test.ShouldAlmostEqual, 9.0)
	test.That(t, cov.At(0, 1), test.ShouldAlmostEqual, 0.0)
}

func TestNewRegistry(t *testing.T) {
	reg, err := noise.NewRegistry(
		[]float64{0.1, 0.1, 0.05},
		[]float64{0.1, 0.1, 0.05},
		[]float64{0.05, 0.1},
		[]float64{0.1, 0.1},
		[]float64{0.2, 0.2, 0.1},
	)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, reg.Odometry.Dim(), test.ShouldEqual, 3)
	test.That(t, reg.BearingRange.Dim(), test.ShouldEqual, 2)
}
