package graph

import (
	"container/heap"

	"github.com/sanonone/flatgraph/pkg/core/types"
)

// The traversal keeps two priority queues: a min-heap of candidates still
// to expand (nearest first) and a bounded max-heap of the best results seen
// so far, whose root is the current admission threshold. Both are value
// heaps over types.Candidate on container/heap.

type minHeap []types.Candidate

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i].Distance < h[j].Distance }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)         { *h = append(*h, x.(types.Candidate)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func (h *minHeap) push(c types.Candidate) { heap.Push(h, c) }
func (h *minHeap) pop() types.Candidate   { return heap.Pop(h).(types.Candidate) }

type maxHeap []types.Candidate

func (h maxHeap) Len() int           { return len(h) }
func (h maxHeap) Less(i, j int) bool { return h[i].Distance > h[j].Distance }
func (h maxHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x any)        { *h = append(*h, x.(types.Candidate)) }
func (h *maxHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func (h *maxHeap) push(c types.Candidate) { heap.Push(h, c) }
func (h *maxHeap) pop() types.Candidate   { return heap.Pop(h).(types.Candidate) }

// peek returns the farthest kept result, the admission threshold.
func (h maxHeap) peek() types.Candidate { return h[0] }

func newMinHeap(capacity int) *minHeap {
	h := make(minHeap, 0, capacity)
	return &h
}

func newMaxHeap(capacity int) *maxHeap {
	h := make(maxHeap, 0, capacity)
	return &h
}
