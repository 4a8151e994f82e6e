// Package bootstrap implements the particle-filter initial-pose
// estimator (spec.md #4.4 and its state machine, spec.md #4.11).
package bootstrap

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/mobilerobots/tagslam/detection"
	"github.com/mobilerobots/tagslam/geometry"
	"github.com/mobilerobots/tagslam/landmarks"
	"github.com/mobilerobots/tagslam/ports"
)

// State is one of the four bootstrap lifecycle states (spec.md #4.11).
type State int

const (
	// Idle is waiting for the first valid tag detection.
	Idle State = iota
	// Collecting is accumulating weighted particles during PFWaitTime.
	Collecting
	// AwaitConfirm is waiting on the injected ConfirmationPort.
	AwaitConfirm
	// Initialized is terminal: pose0 has been accepted.
	Initialized
)

// Particle is one (x, y, theta) hypothesis with an unnormalized weight.
type Particle struct {
	Pose   geometry.Pose
	Weight float64
}

// Config bundles the particle-filter parameters from spec.md #6.
type Config struct {
	NParticles int
	RangeVar   float64
	BearingVar float64
}

// Filter is the particle-filter bootstrap. It runs only while enabled
// and not yet initialized (spec.md #4.4 contract); the caller is
// responsible for gating on usePFinitialise/pfInitialized before
// calling Step.
type Filter struct {
	cfg     Config
	table   *landmarks.Table
	confirm ports.ConfirmationPort
	rng     *rand.Rand

	state     State
	particles []Particle
	elapsed   int // number of Update rounds seen since Collecting started
	windowLen int // number of Update rounds to collect before finalizing
	candidate geometry.Pose
	pose0     geometry.Pose
}

// NewFilter constructs a Filter. windowLen stands in for spec.md's
// wall-clock PFWaitTime: the engine advances the filter once per
// detection-aggregation cycle, so the window is expressed in cycles
// rather than a duration the filter itself would have to measure,
// keeping Filter free of a time source (Design Notes: pure state
// transition functions, no internal suspension points, spec.md #5).
func NewFilter(cfg Config, table *landmarks.Table, confirm ports.ConfirmationPort, rng *rand.Rand, windowLen int) *Filter {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Filter{cfg: cfg, table: table, confirm: confirm, rng: rng, windowLen: windowLen}
}

// State returns the filter's current lifecycle state.
func (f *Filter) State() State { return f.state }

// Pose0 returns the accepted initial pose, valid only once State() ==
// Initialized.
func (f *Filter) Pose0() geometry.Pose { return f.pose0 }

// Step advances the filter by one detection-aggregation cycle. It is a
// no-op once Initialized. observations should be the merged detection
// frame from tagslam/detection for this cycle (possibly empty).
func (f *Filter) Step(observations []detection.Observation) {
	switch f.state {
	case Idle:
		f.tryInitialize(observations)
	case Collecting:
		f.update(observations)
		f.elapsed++
		if f.elapsed >= f.windowLen {
			f.finalize()
		}
	case AwaitConfirm:
		if decided, accept := f.confirm.Poll(); decided {
			if accept {
				f.state = Initialized
				f.pose0 = f.candidate
			} else {
				f.reset()
			}
		}
	case Initialized:
		// terminal
	}
}

func (f *Filter) reset() {
	f.state = Idle
	f.particles = nil
	f.elapsed = 0
	f.candidate = geometry.Pose{}
}

func (f *Filter) tryInitialize(observations []detection.Observation) {
	for _, obs := range observations {
		landmark, ok := f.table.Get(obs.TagID)
		if !ok {
			continue
		}
		bearing, rng := geometry.BearingRange(obs.Position)
		f.particles = f.sampleAround(landmark, bearing, rng)
		f.state = Collecting
		f.elapsed = 0
		return
	}
	// spec.md #4.4 failure mode: no valid detections, filter idles.
}

// initialThetaStdDev bounds the orientation spread of the initial
// particle set. A bearing-range fix to a single landmark alone
// constrains the robot to a circle of hypotheses, one per candidate
// theta; the filter breaks that ambiguity the same way spec.md's Open
// Questions break it for the final answer ("orientation is initialized
// from body frame") by assuming the robot starts roughly facing its own
// body-x, not by sampling theta uniformly around the full circle.
const initialThetaStdDev = math.Pi / 6

// rngSource adapts *rand.Rand to the golang.org/x/exp/rand.Source
// interface gonum's distuv package requires, without changing the
// underlying PRNG algorithm or sequence.
type rngSource struct {
	r *rand.Rand
}

func (s rngSource) Uint64() uint64   { return s.r.Uint64() }
func (s rngSource) Seed(seed uint64) { s.r.Seed(int64(seed)) }

// sampleAround draws NParticles hypotheses consistent with a single
// bearing-range observation of a landmark at a known world position,
// grounded on utils/matrix/sampling.go's distuv-based sampling idiom.
func (f *Filter) sampleAround(landmark geometry.Point, bearing, rng float64) []Particle {
	src := rngSource{f.rng}
	thetaDist := distuv.Normal{Mu: 0, Sigma: initialThetaStdDev, Src: src}
	bearingNoise := distuv.Normal{Mu: 0, Sigma: sqrt(f.cfg.BearingVar), Src: src}
	rangeNoise := distuv.Normal{Mu: 0, Sigma: sqrt(f.cfg.RangeVar), Src: src}

	particles := make([]Particle, f.cfg.NParticles)
	for i := range particles {
		theta := thetaDist.Rand()
		noisyBearing := bearing + bearingNoise.Rand()
		noisyRange := rng + rangeNoise.Rand()
		local := geometry.FromBearingRange(noisyBearing, noisyRange)
		particles[i] = Particle{
			Pose:   geometry.PoseFromObservation(landmark, local, theta),
			Weight: 1.0 / float64(f.cfg.NParticles),
		}
	}
	return particles
}

// update reweights particles against every known-id observation this
// cycle using Gaussian bearing/range likelihoods, then resamples
// (spec.md #4.4 "Update").
func (f *Filter) update(observations []detection.Observation) {
	known := false
	for _, obs := range observations {
		landmark, ok := f.table.Get(obs.TagID)
		if !ok {
			continue
		}
		known = true
		obsBearing, obsRange := geometry.BearingRange(obs.Position)
		bearingDist := distuv.Normal{Mu: 0, Sigma: sqrt(f.cfg.BearingVar)}
		rangeDist := distuv.Normal{Mu: 0, Sigma: sqrt(f.cfg.RangeVar)}

		for i, p := range f.particles {
			local := p.Pose.ToLocal(landmark)
			predBearing, predRange := geometry.BearingRange(local)
			bearingResidual := geometry.WrapToPi(predBearing - obsBearing)
			rangeResidual := predRange - obsRange
			likelihood := bearingDist.Prob(bearingResidual) * rangeDist.Prob(rangeResidual)
			f.particles[i].Weight = p.Weight * likelihood
		}
		normalize(f.particles)
	}
	if known {
		f.particles = resample(f.particles, f.rng)
	}
}

// finalize reports the particle mean as pose0 (spec.md Open Questions:
// divide by N_particles, not PFWaitTime) with theta pinned to 0 (Open
// Questions: "orientation is initialized from body frame").
func (f *Filter) finalize() {
	var sumX, sumY float64
	for _, p := range f.particles {
		sumX += p.Pose.X
		sumY += p.Pose.Y
	}
	n := float64(len(f.particles))
	f.candidate = geometry.Pose{X: sumX / n, Y: sumY / n, Theta: 0}
	f.state = AwaitConfirm
}

func normalize(particles []Particle) {
	var sum float64
	for _, p := range particles {
		sum += p.Weight
	}
	if sum <= 0 {
		uniform := 1.0 / float64(len(particles))
		for i := range particles {
			particles[i].Weight = uniform
		}
		return
	}
	for i := range particles {
		particles[i].Weight /= sum
	}
}

// resample performs systematic resampling, the standard low-variance
// resampling scheme for particle filters.
func resample(particles []Particle, rng *rand.Rand) []Particle {
	n := len(particles)
	out := make([]Particle, n)
	cumulative := make([]float64, n)
	running := 0.0
	for i, p := range particles {
		running += p.Weight
		cumulative[i] = running
	}

	start := rng.Float64() / float64(n)
	j := 0
	for i := 0; i < n; i++ {
		target := start + float64(i)/float64(n)
		for j < n-1 && cumulative[j] < target {
			j++
		}
		out[i] = Particle{Pose: particles[j].Pose, Weight: 1.0 / float64(n)}
	}
	return out
}

func sqrt(v float64) float64 {
	if v <= 0 {
		return 1e-9
	}
	return math.Sqrt(v)
}
