package pgraph

// FactorStore is an ordered collection of factors with a key->factor-ids
// side index that serves ByKey lookups. Removal goes through
// RebuildByFilter, which walks every stored factor; there is no
// per-key removal path, so pruning costs a pass over the whole store.
type FactorStore struct {
	order        []FactorID
	byID         map[FactorID]Factor
	factorsByKey map[Key][]FactorID
	nextID       FactorID
}

// NewFactorStore returns an empty factor store.
func NewFactorStore() *FactorStore {
	return &FactorStore{
		byID:         make(map[FactorID]Factor),
		factorsByKey: make(map[Key][]FactorID),
	}
}

// Append adds f to the store, assigning it a fresh FactorID and
// indexing it under every key it references.
func (s *FactorStore) Append(f Factor) FactorID {
	id := s.nextID
	s.nextID++
	f.ID = id
	s.byID[id] = f
	s.order = append(s.order, id)
	for _, k := range f.Keys {
		s.factorsByKey[k] = append(s.factorsByKey[k], id)
	}
	return id
}

// Get returns the factor with the given id.
func (s *FactorStore) Get(id FactorID) (Factor, bool) {
	f, ok := s.byID[id]
	return f, ok
}

// ByKey returns every live factor that references key, in append order.
func (s *FactorStore) ByKey(key Key) []Factor {
	ids := s.factorsByKey[key]
	out := make([]Factor, 0, len(ids))
	for _, id := range ids {
		if f, ok := s.byID[id]; ok {
			out = append(out, f)
		}
	}
	return out
}

// Factors returns every live factor, in append order.
func (s *FactorStore) Factors() []Factor {
	out := make([]Factor, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Len returns the number of live factors.
func (s *FactorStore) Len() int { return len(s.order) }

// RebuildByFilter keeps only factors for which keep returns true,
// rebuilding the order slice and both side indices from scratch. Used
// by the pruner (spec.md #4.10) to drop every factor referencing an
// evicted key.
func (s *FactorStore) RebuildByFilter(keep func(Factor) bool) {
	newOrder := make([]FactorID, 0, len(s.order))
	newByID := make(map[FactorID]Factor, len(s.byID))
	newFactorsByKey := make(map[Key][]FactorID, len(s.factorsByKey))

	for _, id := range s.order {
		f := s.byID[id]
		if !keep(f) {
			continue
		}
		newOrder = append(newOrder, id)
		newByID[id] = f
		for _, k := range f.Keys {
			newFactorsByKey[k] = append(newFactorsByKey[k], id)
		}
	}

	s.order = newOrder
	s.byID = newByID
	s.factorsByKey = newFactorsByKey
}

// ReferencesAny reports whether f references any key in the given set.
func ReferencesAny(f Factor, evicted map[Key]bool) bool {
	for _, k := range f.Keys {
		if evicted[k] {
			return true
		}
	}
	return false
}
