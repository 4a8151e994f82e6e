// Package engine wires geometry, noise, pgraph, landmarks, detection,
// bootstrap, keyframe, updater, optimizer, outlier, loopclosure, pruner,
// and smoothing into the top-level control flow of spec.md #2: movement
// gate -> pose-index advance -> keyframe gate -> graph updater ->
// optimizer -> outlier gate -> pruner -> loop-closure detector, with the
// non-keyframe path only advancing a visualization estimate.
//
// Grounded on services/slam/builtin/builtin.go's service-struct shape
// (a single mutex-free aggregate mutated on one dispatch loop, per
// spec.md #5's single-threaded cooperative model) and on
// original_source/aprilslamcpploc.cpp's addOdomFactor for the exact
// step ordering, including the movement gate and trajectory smoothing
// this expansion recovered from that source.
package engine

import (
	"math/rand"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mobilerobots/tagslam/bootstrap"
	"github.com/mobilerobots/tagslam/detection"
	"github.com/mobilerobots/tagslam/geometry"
	"github.com/mobilerobots/tagslam/keyframe"
	"github.com/mobilerobots/tagslam/landmarks"
	"github.com/mobilerobots/tagslam/loopclosure"
	"github.com/mobilerobots/tagslam/noise"
	"github.com/mobilerobots/tagslam/optimizer"
	"github.com/mobilerobots/tagslam/outlier"
	"github.com/mobilerobots/tagslam/pgraph"
	"github.com/mobilerobots/tagslam/ports"
	"github.com/mobilerobots/tagslam/pruner"
	"github.com/mobilerobots/tagslam/smoothing"
	"github.com/mobilerobots/tagslam/updater"
)

// Config bundles every knob the engine itself consumes, translated from
// tsconfig.Config by ConfigFromTSConfig so this package stays free of a
// direct tsconfig dependency (the engine is the thing being configured,
// not the thing that knows how configuration is sourced).
type Config struct {
	UsePFInitialise  bool
	UseKeyframe      bool
	UsePriorTagTable bool
	UsePruneBySize   bool
	UseTrajSmoothing bool

	MovementPositionThreshold float64
	MovementRotationThreshold float64

	KeyframeThresholds keyframe.Thresholds
	Updater            updater.Config

	OptimizerMode        optimizer.Mode
	OptimizerOptions     optimizer.Options
	RelinearizeThreshold float64
	RelinearizeSkip      int

	Outlier     outlier.Config
	LoopClosure loopclosure.Config
	Pruner      pruner.Config
	Smoothing   smoothing.Config

	Bootstrap          bootstrap.Config
	BootstrapWindowLen int
}

// LandmarkEstimate is one entry of the landmark-set output (spec.md #6).
type LandmarkEstimate struct {
	TagID    uint64
	Position geometry.Point
}

// LoopClosureEvent reports a newly added loop-closure factor (spec.md #6).
type LoopClosureEvent struct {
	FromIndex uint64
	ToIndex   uint64
}

// Outputs bundles everything one Tick call may produce. Zero-valued
// fields mean "nothing new to report this cycle" (e.g. Keyframe==false
// and LoopClosure==nil are both common).
type Outputs struct {
	Accepted  bool // false while the bootstrap is running or when the movement gate dropped this sample
	Keyframe  bool
	VisIndex  uint64
	PoseIndex uint64 // 0 until the first pose variable exists

	RefinedPose     geometry.Pose
	Trajectory      []geometry.Pose
	Landmarks       []LandmarkEstimate
	MapToOdom       geometry.Pose
	LoopClosure     *LoopClosureEvent
	OutlierRejected bool
}

// MapToOdom computes the map-to-odom broadcast transform (spec.md #6:
// "Estimate(X_i) (-) rawOdom") as a pure function, independent of any
// engine state, so a host can call it directly wherever it has both
// values.
func MapToOdom(estimate, rawOdom geometry.Pose) geometry.Pose {
	return geometry.Ominus(estimate, rawOdom)
}

// Engine is the single owning aggregate for the core's mutable state
// (Design Notes: "encapsulate in a single owning aggregate passed by
// exclusive reference"). It runs entirely on the caller's dispatch
// loop; nothing here spawns a goroutine or blocks (spec.md #5).
type Engine struct {
	cfg      Config
	logger   *zap.SugaredLogger
	noiseReg *noise.Registry
	table    *landmarks.Table

	graph      *pgraph.Graph
	aggregator *detection.Aggregator
	bootstrap  *bootstrap.Filter
	updater    *updater.Updater
	optDriver  *optimizer.Driver

	visIndex       uint64
	graphPoseCount uint64

	movementInitialized bool
	lastRawOdom         geometry.Pose // last raw odom that passed the movement gate

	lastKeyframeKey       pgraph.Key
	lastKeyframePose      geometry.Pose
	lastKeyframeRawOdom   geometry.Pose
	lastKeyframeLandmarks map[uint64]bool
	lastAcceptedPose      geometry.Pose

	lastVisRawOdom geometry.Pose
	trajectory     []geometry.Pose
}

// New constructs an Engine. table may be Empty(); confirm and rng feed
// the particle-filter bootstrap and may be nil when cfg.UsePFInitialise
// is false.
func New(cfg Config, logger *zap.SugaredLogger, noiseReg *noise.Registry, table *landmarks.Table, confirm ports.ConfirmationPort, rng *rand.Rand) *Engine {
	if table == nil {
		table = landmarks.Empty()
	}
	e := &Engine{
		cfg:                   cfg,
		logger:                logger,
		noiseReg:              noiseReg,
		table:                 table,
		graph:                 pgraph.NewGraph(),
		aggregator:            detection.NewAggregator(),
		updater:               updater.New(logger, noiseReg, table, cfg.Updater),
		optDriver:             optimizer.NewDriver(cfg.OptimizerMode, cfg.OptimizerOptions, cfg.RelinearizeThreshold, cfg.RelinearizeSkip),
		lastKeyframeLandmarks: map[uint64]bool{},
	}
	if cfg.UsePFInitialise {
		e.bootstrap = bootstrap.NewFilter(cfg.Bootstrap, table, confirm, rng, cfg.BootstrapWindowLen)
	}
	return e
}

// SetExtrinsic registers the planar robot->camera offset for a named
// camera, resolved from ports.StaticTransformLookup by the caller.
func (e *Engine) SetExtrinsic(name string, offset geometry.Pose) {
	e.aggregator.SetExtrinsic(name, offset)
}

// PublishDetections records a camera's latest detection array ahead of
// the next Tick, per spec.md #5's "latest wins per camera name".
func (e *Engine) PublishDetections(camera string, detections []detection.Detection) {
	e.aggregator.Publish(camera, detections)
}

// Graph exposes the underlying pose graph for read-only inspection
// (tests, diagnostics); nothing outside this package should mutate it.
func (e *Engine) Graph() *pgraph.Graph { return e.graph }

// currentVisPose returns the most recent visualization-estimate pose,
// or the zero pose before the first accepted sample.
func (e *Engine) currentVisPose() geometry.Pose {
	if len(e.trajectory) == 0 {
		return geometry.Pose{}
	}
	return e.trajectory[len(e.trajectory)-1]
}

// movementExceedsThreshold implements the movement gate recovered from
// original_source/aprilslamcpploc.cpp's movementExceedsThreshold: an
// odometry sample is dropped before it ever reaches pose-index advance
// or the keyframe gate unless it has moved far enough since the last
// sample that passed this gate.
func movementExceedsThreshold(current, last geometry.Pose, positionThreshold, rotationThreshold float64) bool {
	return geometry.Range(last, current) >= positionThreshold ||
		absAngle(geometry.WrapToPi(current.Theta-last.Theta)) >= rotationThreshold
}

func absAngle(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Tick advances the engine by one odometry sample, merging whatever
// detections have arrived via PublishDetections since the previous
// call. It never blocks (spec.md #5).
func (e *Engine) Tick(rawOdom geometry.Pose) (Outputs, error) {
	var out Outputs

	if e.visIndex > 0 {
		out.MapToOdom = MapToOdom(e.currentVisPose(), rawOdom)
	}

	observations := e.aggregator.Merge()

	if e.cfg.UsePFInitialise && e.bootstrap.State() != bootstrap.Initialized {
		e.bootstrap.Step(observations)
		return out, nil
	}

	if e.movementInitialized && !movementExceedsThreshold(rawOdom, e.lastRawOdom, e.cfg.MovementPositionThreshold, e.cfg.MovementRotationThreshold) {
		return out, nil
	}
	e.movementInitialized = true
	e.lastRawOdom = rawOdom
	out.Accepted = true

	e.visIndex++

	if e.graphPoseCount == 0 {
		pose0 := geometry.Pose{}
		if e.cfg.UsePFInitialise {
			pose0 = e.bootstrap.Pose0()
		}
		if err := e.initializeFirstPose(pose0, rawOdom); err != nil {
			return out, err
		}
		key1 := e.lastKeyframeKey
		if err := e.updater.Update(e.graph, key1, pose0, nil, observations); err != nil {
			return out, errors.Wrap(err, "graph updater")
		}
		for l := range e.graph.LandmarksAt(key1) {
			e.lastKeyframeLandmarks[l.Index] = true
		}
		out.Keyframe = true
		out.PoseIndex = e.graphPoseCount
		out.VisIndex = e.visIndex
		out.RefinedPose = pose0
		out.Trajectory = e.snapshotTrajectory()
		out.Landmarks = e.snapshotLandmarks()
		return out, nil
	}

	predicted := e.lastKeyframePose.Compose(geometry.Between(e.lastKeyframeRawOdom, rawOdom))

	currentLandmarks := make(map[uint64]bool, len(observations))
	for _, o := range observations {
		if e.cfg.UsePriorTagTable && !e.table.Has(o.TagID) {
			continue
		}
		currentLandmarks[o.TagID] = true
	}

	isKeyframe := !e.cfg.UseKeyframe || keyframe.Gate(e.lastKeyframePose, predicted, e.lastKeyframeLandmarks, currentLandmarks, e.cfg.KeyframeThresholds)

	if isKeyframe {
		if err := e.acceptKeyframe(predicted, observations, currentLandmarks, rawOdom, &out); err != nil {
			return out, err
		}
	} else {
		visPose := e.currentVisPose().Compose(geometry.Between(e.lastVisRawOdom, rawOdom))
		e.trajectory = append(e.trajectory, visPose)
		out.RefinedPose = visPose
	}
	e.lastVisRawOdom = rawOdom

	if e.cfg.UseTrajSmoothing && !e.cfg.UseKeyframe {
		e.trajectory = smoothing.Smooth(e.cfg.Smoothing, e.visIndex, e.trajectory)
		out.RefinedPose = e.trajectory[len(e.trajectory)-1]
	}

	out.PoseIndex = e.graphPoseCount
	out.VisIndex = e.visIndex
	out.Trajectory = e.snapshotTrajectory()
	out.Landmarks = e.snapshotLandmarks()
	return out, nil
}

// initializeFirstPose seeds pose variable X_1 with a prior at pose0
// (spec.md #4.11's pose-index state machine and
// original_source/aprilslamcpploc.cpp's initializeFirstPose), optionally
// anchoring every prior-table landmark at the same time.
func (e *Engine) initializeFirstPose(pose0, rawOdom geometry.Pose) error {
	e.graphPoseCount = 1
	key1 := pgraph.PoseKey(1)
	e.graph.Estimates.Insert(key1, pgraph.PoseValue(pose0))
	e.graph.Factors.Append(pgraph.PriorPoseFactor(key1, pose0, e.noiseReg.Prior))
	e.graph.MarkPriorAddedAtPose(key1)
	e.graph.RecordObservations(key1, nil)

	if e.cfg.UsePriorTagTable {
		for _, id := range e.table.IDs() {
			point, _ := e.table.Get(id)
			landmarkKey := pgraph.LandmarkKey(id)
			e.graph.Estimates.Insert(landmarkKey, pgraph.PointValue(point))
			e.graph.Factors.Append(pgraph.PriorPointFactor(landmarkKey, point, e.noiseReg.Point))
			e.graph.MarkLandmarkHistoric(landmarkKey)
		}
	}

	e.lastKeyframeKey = key1
	e.lastKeyframePose = pose0
	e.lastKeyframeRawOdom = rawOdom
	e.lastKeyframeLandmarks = map[uint64]bool{}
	e.lastAcceptedPose = pose0
	e.lastVisRawOdom = rawOdom
	e.trajectory = []geometry.Pose{pose0}
	return nil
}

// acceptKeyframe runs spec.md #4.6-#4.10 for one accepted keyframe:
// graph update, optimize, outlier gate (batch mode only, spec.md #4.8),
// prune, loop-closure detection. Pruning also runs in batch mode only,
// and only when the outlier gate accepted the optimizer's result.
func (e *Engine) acceptKeyframe(predicted geometry.Pose, observations []detection.Observation, currentLandmarks map[uint64]bool, rawOdom geometry.Pose, out *Outputs) error {
	e.graphPoseCount++
	newKey := pgraph.PoseKey(e.graphPoseCount)
	prev := &updater.Prev{Key: e.lastKeyframeKey, Pose: e.lastKeyframePose}

	if err := e.updater.Update(e.graph, newKey, predicted, prev, observations); err != nil {
		return errors.Wrap(err, "graph updater")
	}

	if err := e.optDriver.Update(e.graph); err != nil {
		return errors.Wrap(err, "optimizer")
	}

	optimizedPose, err := e.graph.Estimates.Pose(newKey)
	if err != nil {
		return err
	}

	finalPose := optimizedPose
	if e.cfg.OptimizerMode == optimizer.Batch {
		res := outlier.Apply(e.cfg.Outlier, e.graphPoseCount, e.lastAcceptedPose, e.lastKeyframeRawOdom, rawOdom, optimizedPose)
		finalPose = res.Pose
		out.OutlierRejected = res.Rejected
		if res.Rejected {
			e.graph.Estimates.Update(newKey, pgraph.PoseValue(finalPose))
			e.logger.Warnw("outlier gate rejected optimizer solution", "poseIndex", e.graphPoseCount, "lateral", res.Lateral)
		} else if e.cfg.UsePruneBySize {
			if err := pruner.Prune(e.graph, e.cfg.Pruner, e.noiseReg.Prior); err != nil {
				return errors.Wrap(err, "pruner")
			}
		}
	}

	if factor, found, err := loopclosure.Detect(e.graph, e.cfg.LoopClosure, newKey, finalPose, e.noiseReg.LoopClosure); err != nil {
		return errors.Wrap(err, "loop closure")
	} else if found {
		e.graph.Factors.Append(factor)
		out.LoopClosure = &LoopClosureEvent{FromIndex: factor.Keys[0].Index, ToIndex: factor.Keys[1].Index}
		e.logger.Infow("loop closure added", "from", factor.Keys[0], "to", factor.Keys[1])
	}

	e.lastKeyframePose = finalPose
	e.lastKeyframeKey = newKey
	e.lastKeyframeRawOdom = rawOdom
	e.lastKeyframeLandmarks = currentLandmarks
	e.lastAcceptedPose = finalPose

	e.trajectory = append(e.trajectory, finalPose)
	out.Keyframe = true
	out.RefinedPose = finalPose
	return nil
}

func (e *Engine) snapshotTrajectory() []geometry.Pose {
	out := make([]geometry.Pose, len(e.trajectory))
	copy(out, e.trajectory)
	return out
}

func (e *Engine) snapshotLandmarks() []LandmarkEstimate {
	var out []LandmarkEstimate
	e.graph.Estimates.Range(func(k pgraph.Key, v pgraph.Value) {
		if k.IsLandmark() {
			out = append(out, LandmarkEstimate{TagID: k.Index, Position: v.Point})
		}
	})
	return out
}
