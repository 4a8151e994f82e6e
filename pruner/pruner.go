// Package pruner implements the window-bounded pose eviction (spec.md
// #4.10): once the retained pose count exceeds a size budget, the
// oldest excess poses and every factor touching them are dropped, and
// the new oldest surviving pose is re-anchored with a prior so the
// trimmed graph stays well-posed.
package pruner

import (
	"sort"

	"github.com/mobilerobots/tagslam/noise"
	"github.com/mobilerobots/tagslam/pgraph"
)

// Config bundles the pruner configuration from spec.md #6.
type Config struct {
	Enabled    bool
	MaxFactors int // maxfactors: max retained pose count, spec.md #8's naming
}

// Prune evicts the oldest excess pose keys from g when the retained pose
// count exceeds cfg.MaxFactors, then re-anchors the new oldest surviving
// pose if it does not already carry a prior. It is a no-op when disabled
// or under budget.
func Prune(g *pgraph.Graph, cfg Config, priorNoise noise.Model) error {
	if !cfg.Enabled {
		return nil
	}

	poseKeys := g.PoseKeys()
	if len(poseKeys) <= cfg.MaxFactors {
		return nil
	}

	sort.Slice(poseKeys, func(i, j int) bool { return poseKeys[i].Index < poseKeys[j].Index })
	evictCount := len(poseKeys) - cfg.MaxFactors
	evicted := make(map[pgraph.Key]bool, evictCount)
	for _, k := range poseKeys[:evictCount] {
		evicted[k] = true
	}

	g.Factors.RebuildByFilter(func(f pgraph.Factor) bool {
		return !pgraph.ReferencesAny(f, evicted)
	})
	for k := range evicted {
		g.Estimates.Delete(k)
		g.EvictPose(k)
	}

	survivors := poseKeys[evictCount:]
	if len(survivors) == 0 {
		return nil
	}
	oldest := survivors[0]
	if g.HasPriorAtPose(oldest) {
		return nil
	}

	pose, err := g.Estimates.Pose(oldest)
	if err != nil {
		return err
	}
	g.Factors.Append(pgraph.PriorPoseFactor(oldest, pose, priorNoise))
	g.MarkPriorAddedAtPose(oldest)
	return nil
}
