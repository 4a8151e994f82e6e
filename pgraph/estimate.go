package pgraph

import (
	"github.com/pkg/errors"

	"github.com/mobilerobots/tagslam/geometry"
)

// Value is the current estimate for a variable: exactly one of Pose or
// Point is meaningful, selected by the owning Key's channel.
type Value struct {
	Pose  geometry.Pose
	Point geometry.Point
}

// PoseValue wraps a pose estimate.
func PoseValue(p geometry.Pose) Value { return Value{Pose: p} }

// PointValue wraps a point estimate.
func PointValue(p geometry.Point) Value { return Value{Point: p} }

// EstimateStore maps variable keys to their current estimate (spec.md #3).
// Every variable referenced by any factor must have an entry here
// (invariant #1 in spec.md #8).
type EstimateStore struct {
	values map[Key]Value
}

// NewEstimateStore returns an empty estimate store.
func NewEstimateStore() *EstimateStore {
	return &EstimateStore{values: make(map[Key]Value)}
}

// Insert sets the estimate for key, overwriting any existing value.
func (s *EstimateStore) Insert(key Key, v Value) {
	s.values[key] = v
}

// Update is an alias for Insert kept for call-site clarity when the
// caller means "the key already exists" (spec.md #3 lifecycle: pose
// variables are "mutated only by the optimizer driver").
func (s *EstimateStore) Update(key Key, v Value) {
	s.values[key] = v
}

// Exists reports whether key has an estimate.
func (s *EstimateStore) Exists(key Key) bool {
	_, ok := s.values[key]
	return ok
}

// At returns the raw estimate for key.
func (s *EstimateStore) At(key Key) (Value, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Pose returns the pose estimate for key, erroring if key is missing or
// not a pose channel key.
func (s *EstimateStore) Pose(key Key) (geometry.Pose, error) {
	if !key.IsPose() {
		return geometry.Pose{}, errors.Errorf("%s is not a pose key", key)
	}
	v, ok := s.values[key]
	if !ok {
		return geometry.Pose{}, errors.Errorf("no estimate for %s", key)
	}
	return v.Pose, nil
}

// Point returns the point estimate for key, erroring if key is missing
// or not a landmark channel key.
func (s *EstimateStore) Point(key Key) (geometry.Point, error) {
	if !key.IsLandmark() {
		return geometry.Point{}, errors.Errorf("%s is not a landmark key", key)
	}
	v, ok := s.values[key]
	if !ok {
		return geometry.Point{}, errors.Errorf("no estimate for %s", key)
	}
	return v.Point, nil
}

// Delete removes key's estimate, used by the pruner.
func (s *EstimateStore) Delete(key Key) {
	delete(s.values, key)
}

// Range calls fn for every (key, value) pair. Iteration order is
// unspecified, matching Go's native map iteration.
func (s *EstimateStore) Range(fn func(Key, Value)) {
	for k, v := range s.values {
		fn(k, v)
	}
}

// Len returns the number of variables with an estimate.
func (s *EstimateStore) Len() int { return len(s.values) }
