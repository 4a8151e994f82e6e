package pgraph

import (
	"github.com/pkg/errors"

	"github.com/mobilerobots/tagslam/geometry"
	"github.com/mobilerobots/tagslam/noise"
)

// FactorKind tags the factor variant (Design Notes: "model the factor as
// a tagged variant... avoid virtual hierarchies").
type FactorKind int

const (
	// PriorPose anchors a pose variable to a fixed value.
	PriorPose FactorKind = iota
	// PriorPoint anchors a landmark variable to a fixed value.
	PriorPoint
	// Between constrains two pose variables by a relative pose.
	Between
	// BearingRange constrains a pose and a landmark by a bearing/range measurement.
	BearingRange
	// LoopClosure is a Between factor added by the loop-closure detector.
	LoopClosure
)

func (k FactorKind) String() string {
	switch k {
	case PriorPose:
		return "PriorPose"
	case PriorPoint:
		return "PriorPoint"
	case Between:
		return "Between"
	case BearingRange:
		return "BearingRange"
	case LoopClosure:
		return "LoopClosure"
	default:
		return "Unknown"
	}
}

// FactorID identifies a factor within a FactorStore's arena.
type FactorID uint64

// Factor is a single constraint in the graph. Only the fields relevant
// to Kind are meaningful; this mirrors the teacher's preference (spec.md
// Design Notes) for an explicit tagged variant over an interface
// hierarchy with one struct per kind.
type Factor struct {
	ID    FactorID
	Kind  FactorKind
	Keys  []Key
	Noise noise.Model

	// PriorPose / Between / LoopClosure
	PriorPoseValue geometry.Pose
	Delta          geometry.Pose

	// PriorPoint
	PriorPointValue geometry.Point

	// BearingRange
	Bearing float64
	Range   float64
}

// Residual computes the unwhitened residual of the factor against the
// current estimate. The graph updater's residual gate (spec.md #4.6)
// reads this before whitening.
func (f Factor) Residual(estimates *EstimateStore) ([]float64, error) {
	switch f.Kind {
	case PriorPose:
		pose, err := estimates.Pose(f.Keys[0])
		if err != nil {
			return nil, err
		}
		d := geometry.Between(f.PriorPoseValue, pose)
		return []float64{d.X, d.Y, d.Theta}, nil

	case PriorPoint:
		p, err := estimates.Point(f.Keys[0])
		if err != nil {
			return nil, err
		}
		return []float64{p.X - f.PriorPointValue.X, p.Y - f.PriorPointValue.Y}, nil

	case Between, LoopClosure:
		a, err := estimates.Pose(f.Keys[0])
		if err != nil {
			return nil, err
		}
		b, err := estimates.Pose(f.Keys[1])
		if err != nil {
			return nil, err
		}
		predicted := geometry.Between(a, b)
		return []float64{
			predicted.X - f.Delta.X,
			predicted.Y - f.Delta.Y,
			geometry.WrapToPi(predicted.Theta - f.Delta.Theta),
		}, nil

	case BearingRange:
		pose, err := estimates.Pose(f.Keys[0])
		if err != nil {
			return nil, err
		}
		landmark, err := estimates.Point(f.Keys[1])
		if err != nil {
			return nil, err
		}
		local := pose.ToLocal(landmark)
		bearing, rng := geometry.BearingRange(local)
		return []float64{
			geometry.WrapToPi(bearing - f.Bearing),
			rng - f.Range,
		}, nil

	default:
		return nil, errors.Errorf("unknown factor kind %v", f.Kind)
	}
}

// PriorPoseFactor builds a unary prior on a pose variable.
func PriorPoseFactor(key Key, value geometry.Pose, n noise.Model) Factor {
	return Factor{Kind: PriorPose, Keys: []Key{key}, PriorPoseValue: value, Noise: n}
}

// PriorPointFactor builds a unary prior on a landmark variable.
func PriorPointFactor(key Key, value geometry.Point, n noise.Model) Factor {
	return Factor{Kind: PriorPoint, Keys: []Key{key}, PriorPointValue: value, Noise: n}
}

// BetweenFactor builds a relative-pose constraint between two pose variables.
func BetweenFactor(from, to Key, delta geometry.Pose, n noise.Model) Factor {
	return Factor{Kind: Between, Keys: []Key{from, to}, Delta: delta, Noise: n}
}

// LoopClosureFactor builds a relative-pose constraint linking a current
// keyframe back to a historical one.
func LoopClosureFactor(from, to Key, delta geometry.Pose, n noise.Model) Factor {
	return Factor{Kind: LoopClosure, Keys: []Key{from, to}, Delta: delta, Noise: n}
}

// BearingRangeFactor builds a bearing-range observation from a pose to a landmark.
func BearingRangeFactor(pose, landmark Key, bearing, rng float64, n noise.Model) Factor {
	return Factor{Kind: BearingRange, Keys: []Key{pose, landmark}, Bearing: bearing, Range: rng, Noise: n}
}
