// Package updater implements the graph updater (spec.md #4.6): the
// component that turns one accepted keyframe into pose/landmark
// estimates and factors.
package updater

import (
	"math"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mobilerobots/tagslam/detection"
	"github.com/mobilerobots/tagslam/geometry"
	"github.com/mobilerobots/tagslam/landmarks"
	"github.com/mobilerobots/tagslam/noise"
	"github.com/mobilerobots/tagslam/pgraph"
)

// Config bundles the graph-updater-relevant configuration from
// spec.md #6.
type Config struct {
	UsePriorTagTable   bool
	Add2GraphThreshold float64
}

// Updater applies one keyframe's odometry and detections to a Graph.
type Updater struct {
	logger     *zap.SugaredLogger
	noiseReg   *noise.Registry
	priorTable *landmarks.Table
	cfg        Config
}

// New constructs an Updater.
func New(logger *zap.SugaredLogger, noiseReg *noise.Registry, priorTable *landmarks.Table, cfg Config) *Updater {
	return &Updater{logger: logger, noiseReg: noiseReg, priorTable: priorTable, cfg: cfg}
}

// Prev describes the previous keyframe, when one exists.
type Prev struct {
	Key  pgraph.Key
	Pose geometry.Pose
}

// Update performs spec.md #4.6 steps 1-4 for one accepted keyframe:
// insert the predicted pose, add the odometry between-factor if a
// previous keyframe exists, and process each detection through the
// residual gate / new-landmark prior logic.
func (u *Updater) Update(
	g *pgraph.Graph,
	poseKey pgraph.Key,
	predicted geometry.Pose,
	prev *Prev,
	observations []detection.Observation,
) error {
	// Step 1: insert predicted pose.
	g.Estimates.Insert(poseKey, pgraph.PoseValue(predicted))

	// Step 2: odometry between-factor.
	if prev != nil {
		delta := geometry.Between(prev.Pose, predicted)
		g.Factors.Append(pgraph.BetweenFactor(prev.Key, poseKey, delta, u.noiseReg.Odometry))
	}

	// Step 3: per-detection processing.
	observedNow := make([]pgraph.Key, 0, len(observations))
	for _, obs := range observations {
		if u.cfg.UsePriorTagTable && !u.priorTable.Has(obs.TagID) {
			u.logger.Warnw("unknown tag in prior-map mode, skipping", "tagID", obs.TagID)
			continue
		}

		landmarkKey := pgraph.LandmarkKey(obs.TagID)
		bearing, rng := geometry.BearingRange(obs.Position)
		factor := pgraph.BearingRangeFactor(poseKey, landmarkKey, bearing, rng, u.noiseReg.BearingRange)

		if !g.IsLandmarkHistoric(landmarkKey) {
			provisional := predicted.ToWorld(obs.Position)
			g.Estimates.Insert(landmarkKey, pgraph.PointValue(provisional))
			g.Factors.Append(pgraph.PriorPointFactor(landmarkKey, provisional, u.noiseReg.Point))
			g.Factors.Append(factor)
			g.MarkLandmarkHistoric(landmarkKey)
			observedNow = append(observedNow, landmarkKey)
			continue
		}

		residual, err := factor.Residual(g.Estimates)
		if err != nil {
			return errors.Wrapf(err, "computing residual for tag %d", obs.TagID)
		}
		if math.Abs(residual[0]) < u.cfg.Add2GraphThreshold {
			g.Factors.Append(factor)
			observedNow = append(observedNow, landmarkKey)
		} else {
			u.logger.Warnw("dropping ill-posed detection", "tagID", obs.TagID, "residual", residual[0])
		}
	}

	// Step 4: record which landmarks were observed at this keyframe.
	g.RecordObservations(poseKey, observedNow)
	return nil
}
