package graph

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/sanonone/flatgraph/pkg/core/types"
)

func TestMinHeapOrdering(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	h := newMinHeap(16)

	dists := make([]float32, 50)
	for i := range dists {
		dists[i] = rng.Float32()
		h.push(types.Candidate{ID: uint32(i), Distance: dists[i]})
	}
	sort.Slice(dists, func(i, j int) bool { return dists[i] < dists[j] })

	for i := 0; h.Len() > 0; i++ {
		if got := h.pop().Distance; got != dists[i] {
			t.Fatalf("pop %d: got %f, want %f", i, got, dists[i])
		}
	}
}

func TestMaxHeapOrdering(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	h := newMaxHeap(16)

	dists := make([]float32, 50)
	for i := range dists {
		dists[i] = rng.Float32()
		h.push(types.Candidate{ID: uint32(i), Distance: dists[i]})
	}
	sort.Slice(dists, func(i, j int) bool { return dists[i] > dists[j] })

	if h.peek().Distance != dists[0] {
		t.Fatalf("peek: got %f, want %f", h.peek().Distance, dists[0])
	}
	for i := 0; h.Len() > 0; i++ {
		if got := h.pop().Distance; got != dists[i] {
			t.Fatalf("pop %d: got %f, want %f", i, got, dists[i])
		}
	}
}

// TestBoundedResultBuffer mirrors beam search's use of the max-heap: keep
// the ef closest by evicting the root on overflow.
func TestBoundedResultBuffer(t *testing.T) {
	const ef = 8
	rng := rand.New(rand.NewSource(7))
	h := newMaxHeap(ef + 1)

	all := make([]float32, 100)
	for i := range all {
		all[i] = rng.Float32()
		h.push(types.Candidate{ID: uint32(i), Distance: all[i]})
		if h.Len() > ef {
			h.pop()
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })

	kept := make([]float32, 0, ef)
	for h.Len() > 0 {
		kept = append(kept, h.pop().Distance)
	}
	// Popped farthest-first; the set must be the ef smallest overall.
	for i, want := range all[:ef] {
		if got := kept[ef-1-i]; got != want {
			t.Fatalf("kept[%d]: got %f, want %f", ef-1-i, got, want)
		}
	}
}
