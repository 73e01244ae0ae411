package graph

import (
	"fmt"

	"github.com/sanonone/flatgraph/pkg/core/types"
)

// Add inserts one vector with its external label. It returns (false, nil)
// when the index is at capacity, so batch loaders can stop cleanly. The
// entry point is chosen before the node is allocated: an allocated-but-
// unlinked node is at distance zero from itself and would otherwise win the
// initialization scan and short-circuit the neighbor search.
func (idx *Index) Add(vec []float32, label uint64, efConstruction int) (bool, error) {
	if len(vec) != idx.space.Dimension() {
		return false, fmt.Errorf("graph: vector dimension %d, index dimension %d", len(vec), idx.space.Dimension())
	}
	if efConstruction < 1 {
		return false, fmt.Errorf("graph: ef_construction must be positive, got %d", efConstruction)
	}
	if idx.curNodes >= idx.maxNodes {
		return false, nil
	}

	distFn := idx.queryDistance(vec)
	entry := idx.initializeSearch(distFn)

	newID, ok := idx.allocateNode(vec, label)
	if !ok {
		return false, nil
	}
	if newID == 0 {
		// The first node has nothing to connect to; it becomes reachable
		// through later inserts' back-links. It still counts as inserted.
		return true, nil
	}

	neighbors := idx.beamSearch(distFn, entry, efConstruction)
	idx.selectNeighbors(neighbors, idx.m)
	idx.connectNeighbors(neighbors, newID)
	return true, nil
}

// selectNeighbors prunes a result heap down to at most mOut diverse
// neighbors with the HNSW heuristic: walking candidates nearest-first, a
// candidate is kept only if no already-kept neighbor is strictly closer to
// it than the query is. Pairwise distances use the symmetric metric.
func (idx *Index) selectNeighbors(neighbors *maxHeap, mOut int) {
	if neighbors.Len() <= mOut {
		return
	}

	candidates := newMinHeap(neighbors.Len())
	for neighbors.Len() > 0 {
		candidates.push(neighbors.pop())
	}

	saved := make([]types.Candidate, 0, mOut)
	for candidates.Len() > 0 && len(saved) < mOut {
		cur := candidates.pop()

		keep := true
		for _, r := range saved {
			if idx.nodeDistance(r.ID, cur.ID) < cur.Distance {
				keep = false
				break
			}
		}
		if keep {
			saved = append(saved, cur)
		}
	}

	for _, c := range saved {
		neighbors.push(c)
	}
}

// connectNeighbors links newID to each selected neighbor and installs the
// reverse edges. A reverse edge lands in a free (self-loop) slot when one
// exists; otherwise the neighbor's full link list plus the new edge is
// re-pruned with the selection heuristic so the diversity invariant holds
// on every node, not just the new one.
func (idx *Index) connectNeighbors(neighbors *maxHeap, newID uint32) {
	newLinks := idx.nodeLinks(newID)
	i := 0

	for neighbors.Len() > 0 {
		nb := neighbors.pop()
		newLinks[i] = nb.ID
		i++

		nbLinks := idx.nodeLinks(nb.ID)
		inserted := false
		for j := range nbLinks {
			if nbLinks[j] == nb.ID {
				nbLinks[j] = newID
				inserted = true
				break
			}
		}
		if inserted {
			continue
		}

		// No free slot: rebuild the neighborhood from the old links plus
		// the new edge and keep the heuristic's winners.
		candidates := newMaxHeap(idx.m + 1)
		candidates.push(types.Candidate{ID: newID, Distance: idx.nodeDistance(nb.ID, newID)})
		for _, v := range nbLinks {
			if v != nb.ID {
				candidates.push(types.Candidate{ID: v, Distance: idx.nodeDistance(nb.ID, v)})
			}
		}
		idx.selectNeighbors(candidates, idx.m)

		j := 0
		for candidates.Len() > 0 {
			nbLinks[j] = candidates.pop().ID
			j++
		}
		for ; j < idx.m; j++ {
			nbLinks[j] = nb.ID
		}
	}
}
