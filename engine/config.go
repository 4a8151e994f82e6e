package engine

import (
	"github.com/mobilerobots/tagslam/bootstrap"
	"github.com/mobilerobots/tagslam/keyframe"
	"github.com/mobilerobots/tagslam/loopclosure"
	"github.com/mobilerobots/tagslam/optimizer"
	"github.com/mobilerobots/tagslam/outlier"
	"github.com/mobilerobots/tagslam/pruner"
	"github.com/mobilerobots/tagslam/smoothing"
	"github.com/mobilerobots/tagslam/tsconfig"
	"github.com/mobilerobots/tagslam/updater"
)

// ConfigFromTSConfig translates a loaded tsconfig.Config into the
// per-component configs each engine collaborator expects, the same
// "attribute map decoded once, then handed to each subsystem as its own
// small config struct" flow services/slam/builtin/builtin.go uses
// between AttrConfig and its sub-components.
func ConfigFromTSConfig(c *tsconfig.Config) Config {
	optMode := optimizer.Incremental
	if c.BatchOptimisation {
		optMode = optimizer.Batch
	}

	return Config{
		UsePFInitialise:  c.UsePFInitialise,
		UseKeyframe:      c.UseKeyframe,
		UsePriorTagTable: c.UsePriorTagTable,
		UsePruneBySize:   c.UsePruneBySize,
		UseTrajSmoothing: c.UseTrajSmoothing,

		MovementPositionThreshold: c.StationaryPositionThreshold,
		MovementRotationThreshold: c.StationaryRotationThreshold,

		KeyframeThresholds: keyframe.Thresholds{
			Distance: c.DistanceThreshold,
			Rotation: c.RotationThreshold,
		},
		Updater: updater.Config{
			UsePriorTagTable:   c.UsePriorTagTable,
			Add2GraphThreshold: c.Add2GraphThreshold,
		},

		OptimizerMode:        optMode,
		OptimizerOptions:     optimizer.DefaultOptions(),
		RelinearizeThreshold: 0.1,
		RelinearizeSkip:      1,

		Outlier: outlier.Config{
			Enabled:       c.UseOutlierRemoval,
			StartIndex:    c.OutlierRemovalStartIndex,
			JumpThreshold: c.JumpCombinedThreshold,
		},
		LoopClosure: loopclosure.Config{
			Enabled:            c.UseLoopClosure,
			SearchRadius:       c.HistoryKeyframeSearchRadius,
			SearchNum:          c.HistoryKeyframeSearchNum,
			RequiredReobserved: c.RequiredReobservedLandmarks,
		},
		Pruner: pruner.Config{
			Enabled:    c.UsePruneBySize,
			MaxFactors: c.MaxFactors,
		},
		Smoothing: smoothing.Config{
			Enabled:    c.UseTrajSmoothing,
			Window:     c.SmoothingWindow,
			StartIndex: c.SmoothingStartIndex,
		},

		Bootstrap: bootstrap.Config{
			NParticles: c.NParticles,
			RangeVar:   c.RngVar,
			BearingVar: c.BrngVar,
		},
		BootstrapWindowLen: c.PFWaitTime,
	}
}
