// Package optimizer implements the Levenberg-Marquardt batch solver and
// the incremental relinearize-on-demand driver on top of it (spec.md
// #4.7). The factor graph exposes only per-factor residuals (pgraph
// Design Notes: tagged variants, not a virtual cost-function
// hierarchy), so the Jacobian here is built by central-difference
// perturbation of the state vector rather than analytic derivatives per
// factor kind; every linear-algebra step past that point runs on
// gonum/mat, the same package the teacher uses for its covariance
// bookkeeping (control/kalman_filter.go).
package optimizer

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/mobilerobots/tagslam/geometry"
	"github.com/mobilerobots/tagslam/pgraph"
)

// Options bundles the Levenberg-Marquardt tuning parameters.
type Options struct {
	MaxIterations int
	InitialLambda float64
	LambdaUp      float64
	LambdaDown    float64
	Tolerance     float64 // convergence: stop once |dx| falls below this
}

// DefaultOptions returns the batch-mode defaults: iterate to
// convergence every keyframe (spec.md #4.7 "Batch").
func DefaultOptions() Options {
	return Options{
		MaxIterations: 25,
		InitialLambda: 1e-3,
		LambdaUp:      10,
		LambdaDown:    10,
		Tolerance:     1e-8,
	}
}

// layout assigns every estimated variable a contiguous slice of the
// state vector: 3 dims (x, y, theta) for pose keys, 2 (x, y) for
// landmark keys.
type layout struct {
	keys   []pgraph.Key
	offset map[pgraph.Key]int
	dims   map[pgraph.Key]int
	n      int
}

func buildLayout(g *pgraph.Graph) *layout {
	l := &layout{offset: make(map[pgraph.Key]int), dims: make(map[pgraph.Key]int)}
	g.Estimates.Range(func(k pgraph.Key, _ pgraph.Value) {
		l.keys = append(l.keys, k)
	})
	for _, k := range l.keys {
		d := 2
		if k.IsPose() {
			d = 3
		}
		l.offset[k] = l.n
		l.dims[k] = d
		l.n += d
	}
	return l
}

func (l *layout) toVector(g *pgraph.Graph) *mat.VecDense {
	x := mat.NewVecDense(l.n, nil)
	for _, k := range l.keys {
		off := l.offset[k]
		if k.IsPose() {
			p, _ := g.Estimates.Pose(k)
			x.SetVec(off, p.X)
			x.SetVec(off+1, p.Y)
			x.SetVec(off+2, p.Theta)
		} else {
			p, _ := g.Estimates.Point(k)
			x.SetVec(off, p.X)
			x.SetVec(off+1, p.Y)
		}
	}
	return x
}

func (l *layout) apply(g *pgraph.Graph, x *mat.VecDense) {
	for _, k := range l.keys {
		off := l.offset[k]
		if k.IsPose() {
			g.Estimates.Update(k, pgraph.PoseValue(geometry.NewPose(x.AtVec(off), x.AtVec(off+1), x.AtVec(off+2))))
		} else {
			g.Estimates.Update(k, pgraph.PointValue(geometry.Point{X: x.AtVec(off), Y: x.AtVec(off + 1)}))
		}
	}
}

// residualDim returns the length of the whole graph's stacked residual
// vector: the sum of every factor's noise-model dimension.
func residualDim(g *pgraph.Graph) (int, error) {
	n := 0
	for _, f := range g.Factors.Factors() {
		n += f.Noise.Dim()
	}
	return n, nil
}

func residuals(g *pgraph.Graph, out *mat.VecDense) error {
	row := 0
	for _, f := range g.Factors.Factors() {
		raw, err := f.Residual(g.Estimates)
		if err != nil {
			return errors.Wrapf(err, "residual for factor %v", f.Kind)
		}
		whitened, err := f.Noise.Whiten(raw)
		if err != nil {
			return errors.Wrapf(err, "whitening factor %v", f.Kind)
		}
		for _, v := range whitened {
			out.SetVec(row, v)
			row++
		}
	}
	return nil
}

const jacobianStep = 1e-6

// jacobian computes the residual Jacobian at x by central differences,
// one column per state dimension.
func jacobian(g *pgraph.Graph, l *layout, x *mat.VecDense, m int) (*mat.Dense, error) {
	j := mat.NewDense(m, l.n, nil)
	plus := mat.NewVecDense(l.n, nil)
	minus := mat.NewVecDense(l.n, nil)
	rPlus := mat.NewVecDense(m, nil)
	rMinus := mat.NewVecDense(m, nil)

	for col := 0; col < l.n; col++ {
		plus.CopyVec(x)
		minus.CopyVec(x)
		plus.SetVec(col, x.AtVec(col)+jacobianStep)
		minus.SetVec(col, x.AtVec(col)-jacobianStep)

		l.apply(g, plus)
		if err := residuals(g, rPlus); err != nil {
			return nil, err
		}
		l.apply(g, minus)
		if err := residuals(g, rMinus); err != nil {
			return nil, err
		}

		for row := 0; row < m; row++ {
			j.Set(row, col, (rPlus.AtVec(row)-rMinus.AtVec(row))/(2*jacobianStep))
		}
	}
	l.apply(g, x)
	return j, nil
}

// Solve runs Levenberg-Marquardt over every variable and factor
// currently in g, mutating g.Estimates in place, and returns the number
// of accepted steps taken.
func Solve(g *pgraph.Graph, opts Options) (int, error) {
	l := buildLayout(g)
	if l.n == 0 {
		return 0, nil
	}
	m, _ := residualDim(g)
	if m == 0 {
		return 0, nil
	}

	x := l.toVector(g)
	r := mat.NewVecDense(m, nil)
	if err := residuals(g, r); err != nil {
		return 0, err
	}
	cost := 0.5 * mat.Dot(r, r)
	lambda := opts.InitialLambda

	accepted := 0
	for iter := 0; iter < opts.MaxIterations; iter++ {
		j, err := jacobian(g, l, x, m)
		if err != nil {
			return accepted, err
		}

		var jtj mat.Dense
		jtj.Mul(j.T(), j)
		var jtr mat.VecDense
		jtr.MulVec(j.T(), r)

		damped := mat.NewDense(l.n, l.n, nil)
		damped.Copy(&jtj)
		for i := 0; i < l.n; i++ {
			damped.Set(i, i, damped.At(i, i)+lambda*jtj.At(i, i))
		}

		var dx mat.VecDense
		if err := dx.SolveVec(damped, &jtr); err != nil {
			lambda *= opts.LambdaUp
			continue
		}
		dx.ScaleVec(-1, &dx)

		trial := mat.NewVecDense(l.n, nil)
		trial.AddVec(x, &dx)
		l.apply(g, trial)

		trialR := mat.NewVecDense(m, nil)
		if err := residuals(g, trialR); err != nil {
			return accepted, err
		}
		trialCost := 0.5 * mat.Dot(trialR, trialR)

		if trialCost < cost {
			x = trial
			r = trialR
			cost = trialCost
			lambda /= opts.LambdaDown
			accepted++
			if normVec(&dx) < opts.Tolerance {
				break
			}
		} else {
			l.apply(g, x)
			lambda *= opts.LambdaUp
			if math.IsInf(lambda, 1) {
				break
			}
		}
	}
	l.apply(g, x)
	return accepted, nil
}

func normVec(v *mat.VecDense) float64 {
	return math.Sqrt(mat.Dot(v, v))
}
