package pgraph

import (
	"gonum.org/v1/gonum/graph/simple"
)

// Graph is the single owning aggregate for all of the core's mutable
// state (Design Notes: "encapsulate in a single owning aggregate passed
// by exclusive reference through the callback"). It composes the
// factor/estimate stores from spec.md #3 with the bookkeeping the loop
// closure detector and pruner need.
type Graph struct {
	Factors   *FactorStore
	Estimates *EstimateStore

	// landmarkHistory is the set of landmark keys ever added to the
	// graph, distinguishing first-observation from re-observation.
	landmarkHistory map[Key]bool

	// poseToLandmarks maps a keyframe pose key to the set of landmark
	// keys observed at that keyframe (spec.md #3, used for loop closure).
	poseToLandmarks map[Key]map[Key]bool

	// priorAddedToPose tracks poses that already carry a prior so the
	// pruner never double-adds one (spec.md #3).
	priorAddedToPose map[Key]bool

	// covis is a live covisibility graph over pose keys: an edge (i, j)
	// with weight w means keyframes i and j have jointly observed w
	// landmarks. It lets the loop-closure detector enumerate candidate
	// keyframes in O(shared landmarks) instead of scanning the entire
	// pose history, mirroring kinematics/model.go's map+gonum/graph
	// adjacency bookkeeping.
	covis *simple.WeightedUndirectedGraph
	// landmarkObservers maps a landmark key to the ordered list of pose
	// keys that have observed it, used to grow covis incrementally.
	landmarkObservers map[Key][]Key
}

// NewGraph returns an empty Graph.
func NewGraph() *Graph {
	return &Graph{
		Factors:           NewFactorStore(),
		Estimates:         NewEstimateStore(),
		landmarkHistory:   make(map[Key]bool),
		poseToLandmarks:   make(map[Key]map[Key]bool),
		priorAddedToPose:  make(map[Key]bool),
		covis:             simple.NewWeightedUndirectedGraph(0, 0),
		landmarkObservers: make(map[Key][]Key),
	}
}

// MarkLandmarkHistoric records that key has been added to the graph at
// least once.
func (g *Graph) MarkLandmarkHistoric(key Key) { g.landmarkHistory[key] = true }

// IsLandmarkHistoric reports whether key has ever been added to the graph.
func (g *Graph) IsLandmarkHistoric(key Key) bool { return g.landmarkHistory[key] }

// ForgetLandmark removes key from the historic set. Landmarks are never
// evicted by the pruner (spec.md #3: "never deleted"), so this exists
// only for tests that need to reset state between scenarios.
func (g *Graph) ForgetLandmark(key Key) { delete(g.landmarkHistory, key) }

// HasPriorAtPose reports whether pose key already carries a prior.
func (g *Graph) HasPriorAtPose(key Key) bool { return g.priorAddedToPose[key] }

// MarkPriorAddedAtPose records that pose key now carries a prior.
func (g *Graph) MarkPriorAddedAtPose(key Key) { g.priorAddedToPose[key] = true }

// ClearPriorAtPose is used by the pruner when an evicted pose is dropped
// so a later re-use of the same index (never happens in practice, but
// keeps the invariant honest) would not think it already has a prior.
func (g *Graph) ClearPriorAtPose(key Key) { delete(g.priorAddedToPose, key) }

// LandmarksAt returns the set of landmark keys observed at pose key.
func (g *Graph) LandmarksAt(key Key) map[Key]bool { return g.poseToLandmarks[key] }

// PoseKeys returns every pose key that has an observation record,
// i.e. every keyframe created and not yet removed by EvictPose.
func (g *Graph) PoseKeys() []Key {
	out := make([]Key, 0, len(g.poseToLandmarks))
	for k := range g.poseToLandmarks {
		out = append(out, k)
	}
	return out
}

// RecordObservations stores the set of landmarks observed at poseKey
// and extends the covisibility graph accordingly (spec.md #4.6 step 4).
func (g *Graph) RecordObservations(poseKey Key, landmarks []Key) {
	set := make(map[Key]bool, len(landmarks))
	for _, l := range landmarks {
		set[l] = true
	}
	g.poseToLandmarks[poseKey] = set
	g.ensureCovisNode(poseKey)

	shared := make(map[Key]int)
	for _, l := range landmarks {
		for _, observer := range g.landmarkObservers[l] {
			if observer == poseKey {
				continue
			}
			shared[observer]++
		}
		g.landmarkObservers[l] = append(g.landmarkObservers[l], poseKey)
	}

	for other, count := range shared {
		g.ensureCovisNode(other)
		weight := float64(count)
		if existing := g.covis.WeightedEdge(int64(poseKey.Index), int64(other.Index)); existing != nil {
			weight += existing.Weight()
		}
		g.covis.SetWeightedEdge(simple.WeightedEdge{
			F: simple.Node(int64(poseKey.Index)),
			T: simple.Node(int64(other.Index)),
			W: weight,
		})
	}
}

func (g *Graph) ensureCovisNode(key Key) {
	id := int64(key.Index)
	if g.covis.Node(id) == nil {
		g.covis.AddNode(simple.Node(id))
	}
}

// CovisibleNeighbors returns the pose keys that share at least one
// observed landmark with poseKey, along with the number of shared
// landmarks, used by the loop-closure detector to avoid scanning every
// historical keyframe.
func (g *Graph) CovisibleNeighbors(poseKey Key) map[Key]int {
	out := make(map[Key]int)
	nodes := g.covis.From(int64(poseKey.Index))
	for nodes.Next() {
		n := nodes.Node()
		edge := g.covis.WeightedEdge(int64(poseKey.Index), n.ID())
		if edge == nil {
			continue
		}
		out[PoseKey(uint64(n.ID()))] = int(edge.Weight())
	}
	return out
}

// EvictPose removes poseKey from every piece of bookkeeping the pruner
// (spec.md #4.10) does not otherwise know about: its observation
// record, its covisibility node/edges, and its entries in the
// per-landmark observer lists.
func (g *Graph) EvictPose(poseKey Key) {
	for l := range g.poseToLandmarks[poseKey] {
		observers := g.landmarkObservers[l]
		filtered := observers[:0]
		for _, o := range observers {
			if o != poseKey {
				filtered = append(filtered, o)
			}
		}
		g.landmarkObservers[l] = filtered
	}
	delete(g.poseToLandmarks, poseKey)
	g.covis.RemoveNode(int64(poseKey.Index))
	g.ClearPriorAtPose(poseKey)
}
