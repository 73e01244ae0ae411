package graph

import (
	"fmt"
	"sort"

	"github.com/sanonone/flatgraph/pkg/core/types"
)

// initializeSearch picks the entry node for a traversal by scanning a
// deterministic stride of roughly numInit existing nodes and keeping the
// argmin. Cost is fixed regardless of occupancy, and no RNG is involved.
// On an empty graph it returns 0; callers guard against searching before
// the first insert.
func (idx *Index) initializeSearch(distFn func(uint32) float32) uint32 {
	step := idx.curNodes / idx.numInit
	if step <= 0 {
		step = 1
	}

	var entry uint32
	first := true
	var minDist float32
	for n := 0; n < idx.curNodes; n += step {
		id := uint32(n)
		if d := distFn(id); first || d < minDist {
			first = false
			minDist = d
			entry = id
		}
	}
	return entry
}

// beamSearch runs the bounded best-first traversal from entry and returns
// up to ef results as a max-heap keyed by distance. The heap's root is the
// admission threshold: it only tightens as the search proceeds, and the
// frontier is abandoned as soon as its nearest candidate exceeds it.
func (idx *Index) beamSearch(distFn func(uint32) float32, entry uint32, ef int) *maxHeap {
	results := newMaxHeap(ef + 1)
	candidates := newMinHeap(ef + 1)

	idx.visited.Clear()

	d0 := distFn(entry)
	results.push(types.Candidate{ID: entry, Distance: d0})
	candidates.push(types.Candidate{ID: entry, Distance: d0})
	idx.visited.Insert(entry)
	maxDist := d0

	for candidates.Len() > 0 {
		cur := candidates.pop()
		if cur.Distance > maxDist {
			break
		}

		// Self-loop sentinels are absorbed by the visited check: the
		// owner was marked visited before its links are expanded.
		for _, v := range idx.nodeLinks(cur.ID) {
			if idx.visited.Contains(v) {
				continue
			}
			idx.visited.Insert(v)

			d := distFn(v)
			if results.Len() < ef || d < maxDist {
				c := types.Candidate{ID: v, Distance: d}
				candidates.push(c)
				results.push(c)
				if results.Len() > ef {
					results.pop()
				}
				maxDist = results.peek().Distance
			}
		}
	}

	return results
}

// Search returns the k nearest labels to query with beam width ef >= k.
// Results are sorted by ascending distance.
func (idx *Index) Search(query []float32, k, ef int) ([]types.SearchResult, error) {
	if idx.curNodes == 0 {
		return nil, ErrEmptyIndex
	}
	if k < 1 {
		return nil, fmt.Errorf("graph: k must be positive, got %d", k)
	}
	if ef < k {
		return nil, ErrInvalidEf
	}
	if len(query) != idx.space.Dimension() {
		return nil, fmt.Errorf("graph: query dimension %d, index dimension %d", len(query), idx.space.Dimension())
	}

	distFn := idx.queryDistance(query)
	entry := idx.initializeSearch(distFn)
	neighbors := idx.beamSearch(distFn, entry, ef)

	for neighbors.Len() > k {
		neighbors.pop()
	}

	results := make([]types.SearchResult, 0, neighbors.Len())
	for neighbors.Len() > 0 {
		c := neighbors.pop()
		results = append(results, types.SearchResult{
			Label:    idx.nodeLabel(c.ID),
			Distance: c.Distance,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	return results, nil
}
