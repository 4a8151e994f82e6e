// Package loopclosure implements the loop-closure detector (spec.md
// #4.9): after each keyframe, look for an earlier keyframe that shares
// enough re-observed landmarks with the current one to justify a direct
// between-factor linking them.
package loopclosure

import (
	"sort"

	"github.com/mobilerobots/tagslam/geometry"
	"github.com/mobilerobots/tagslam/noise"
	"github.com/mobilerobots/tagslam/pgraph"
)

// Config bundles the loop-closure configuration from spec.md #6.
type Config struct {
	Enabled            bool
	SearchRadius       float64 // historyKeyframeSearchRadius
	SearchNum          uint64  // historyKeyframeSearchNum
	RequiredReobserved int     // requiredReobservedLandmarks
}

// Detect looks for at most one loop-closure candidate for the keyframe
// at currentKey/currentPose, using the graph's covisibility index
// (pgraph.Graph.CovisibleNeighbors) instead of scanning every historical
// pose, per the Design Notes' "never walk the whole store" goal.
//
// Among historical keyframes sharing enough landmarks, radius, and
// index-delta with the current one, the earliest (lowest-index) one is
// preferred, matching spec.md #8's "closes to the earliest one that
// observed the tag again" scenario.
func Detect(g *pgraph.Graph, cfg Config, currentKey pgraph.Key, currentPose geometry.Pose, loopClosureNoise noise.Model) (pgraph.Factor, bool, error) {
	if !cfg.Enabled {
		return pgraph.Factor{}, false, nil
	}

	shared := g.CovisibleNeighbors(currentKey)
	candidates := make([]pgraph.Key, 0, len(shared))
	for k := range shared {
		candidates = append(candidates, k)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Index < candidates[j].Index })

	for _, j := range candidates {
		if j.Index >= currentKey.Index {
			continue
		}
		if currentKey.Index-j.Index <= cfg.SearchNum {
			continue
		}
		if shared[j] < cfg.RequiredReobserved {
			continue
		}

		pj, err := g.Estimates.Pose(j)
		if err != nil {
			return pgraph.Factor{}, false, err
		}
		if geometry.Range(currentPose, pj) >= cfg.SearchRadius {
			continue
		}

		delta := geometry.Between(pj, currentPose)
		return pgraph.LoopClosureFactor(j, currentKey, delta, loopClosureNoise), true, nil
	}
	return pgraph.Factor{}, false, nil
}
