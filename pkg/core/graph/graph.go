// Package graph implements a flat navigable-small-world index for
// approximate nearest neighbor search.
//
// Unlike a hierarchical HNSW graph, the index is a single layer: every node
// lives in one preallocated packed buffer and carries a fixed number of
// outgoing links. Insertion connects a new node to neighbors found by beam
// search and repairs the reverse direction with the same diversity
// heuristic; queries run the identical beam search. Payloads are either raw
// vectors in a metric's storage representation or product-quantization
// codes when a trained quantizer is attached.
package graph

import (
	"errors"
	"fmt"

	"github.com/sanonone/flatgraph/pkg/core/distance"
	"github.com/sanonone/flatgraph/pkg/core/quantization"
)

const (
	// linkWidth is the byte width of one stored link (uint32 node id).
	linkWidth = 4
	// labelWidth is the byte width of the external label (uint64).
	labelWidth = 8

	// defaultNumInitializations bounds the strided entry-point scan.
	defaultNumInitializations = 100
)

var (
	// ErrEmptyIndex is returned by Search before the first insert.
	ErrEmptyIndex = errors.New("graph: search on empty index")
	// ErrInvalidEf is returned when a search beam is narrower than k.
	ErrInvalidEf = errors.New("graph: ef must be >= k")
	// ErrNotTrained rejects construction with an untrained quantizer.
	ErrNotTrained = errors.New("graph: product quantizer must be trained before use")
)

// Index is the flat graph. All state lives in a single packed byte buffer
// of fixed capacity; nodes are identified by dense internal ids assigned in
// insertion order. One Index instance serves one caller at a time: the
// visited set and query scratch are per-instance, so Add and Search must
// not run concurrently.
type Index struct {
	space distance.Space
	pq    *quantization.ProductQuantizer

	m        int // max outgoing links per node
	maxNodes int
	curNodes int

	dataSize int // payload bytes per node
	nodeSize int // payload + links + label

	numInit int

	// memory holds maxNodes records of [payload | m links | label].
	memory []byte
	// scratch receives the transformed query for exact searches.
	scratch []byte

	visited *visitedSet
}

// Option configures an Index at construction.
type Option func(*Index)

// WithQuantizer stores product-quantization codes instead of raw vectors.
// The quantizer must already be trained.
func WithQuantizer(pq *quantization.ProductQuantizer) Option {
	return func(idx *Index) { idx.pq = pq }
}

// WithNumInitializations sets the entry-point scan budget (default 100).
func WithNumInitializations(n int) Option {
	return func(idx *Index) { idx.numInit = n }
}

// New allocates an index with capacity maxNodes and out-degree m over the
// given space. The node buffer is allocated once here and never grows.
func New(space distance.Space, maxNodes, m int, opts ...Option) (*Index, error) {
	if maxNodes <= 0 {
		return nil, fmt.Errorf("graph: capacity must be positive, got %d", maxNodes)
	}
	if m <= 0 {
		return nil, fmt.Errorf("graph: max degree must be positive, got %d", m)
	}

	idx := &Index{
		space:    space,
		m:        m,
		maxNodes: maxNodes,
		numInit:  defaultNumInitializations,
	}
	for _, opt := range opts {
		opt(idx)
	}
	if idx.numInit <= 0 {
		return nil, fmt.Errorf("graph: num initializations must be positive, got %d", idx.numInit)
	}

	idx.dataSize = space.DataSize()
	if idx.pq != nil {
		if !idx.pq.IsTrained() {
			return nil, ErrNotTrained
		}
		if idx.pq.Dimension() != space.Dimension() {
			return nil, fmt.Errorf("graph: quantizer dimension %d does not match space dimension %d",
				idx.pq.Dimension(), space.Dimension())
		}
		if idx.pq.Metric() != space.Metric() {
			return nil, fmt.Errorf("graph: quantizer metric %q does not match space metric %q",
				idx.pq.Metric(), space.Metric())
		}
		idx.dataSize = idx.pq.CodeSize()
	}

	idx.nodeSize = idx.dataSize + idx.m*linkWidth + labelWidth
	idx.memory = make([]byte, idx.nodeSize*idx.maxNodes)
	idx.scratch = make([]byte, idx.dataSize)
	idx.visited = newVisitedSet(idx.maxNodes + 1)

	return idx, nil
}

// --- Packed row accessors ---

func (idx *Index) nodeData(n uint32) []byte {
	off := int(n) * idx.nodeSize
	return idx.memory[off : off+idx.dataSize]
}

func (idx *Index) nodeLinks(n uint32) []uint32 {
	off := int(n)*idx.nodeSize + idx.dataSize
	return distance.BytesToUint32(idx.memory[off:off+idx.m*linkWidth], idx.m)
}

func (idx *Index) nodeLabelBytes(n uint32) []byte {
	off := int(n)*idx.nodeSize + idx.dataSize + idx.m*linkWidth
	return idx.memory[off : off+labelWidth]
}

func (idx *Index) nodeLabel(n uint32) uint64 {
	return hostEndian.Uint64(idx.nodeLabelBytes(n))
}

func (idx *Index) setNodeLabel(n uint32, label uint64) {
	hostEndian.PutUint64(idx.nodeLabelBytes(n), label)
}

// allocateNode claims the next id, writes the payload (transformed vector
// or PQ code), the label, and self-loop sentinels into every link slot.
// Returns false when the index is full.
func (idx *Index) allocateNode(vec []float32, label uint64) (uint32, bool) {
	if idx.curNodes >= idx.maxNodes {
		return 0, false
	}
	id := uint32(idx.curNodes)

	if idx.pq != nil {
		idx.pq.ComputeCode(vec, idx.nodeData(id))
	} else {
		idx.space.TransformData(idx.nodeData(id), vec)
	}
	idx.setNodeLabel(id, label)

	links := idx.nodeLinks(id)
	for i := range links {
		links[i] = id
	}

	idx.curNodes++
	return id, true
}

// --- Introspection ---

// Len returns the number of live nodes.
func (idx *Index) Len() int { return idx.curNodes }

// Capacity returns the fixed maximum node count.
func (idx *Index) Capacity() int { return idx.maxNodes }

// MaxDegree returns the per-node link budget M.
func (idx *Index) MaxDegree() int { return idx.m }

// DataSizeBytes returns the payload width of one node.
func (idx *Index) DataSizeBytes() int { return idx.dataSize }

// NodeSizeBytes returns the packed record width of one node.
func (idx *Index) NodeSizeBytes() int { return idx.nodeSize }

// Quantized reports whether payloads are PQ codes.
func (idx *Index) Quantized() bool { return idx.pq != nil }

// Label returns the external label of a live node.
func (idx *Index) Label(n uint32) uint64 { return idx.nodeLabel(n) }

// Neighbors returns the non-sentinel links of a live node as a fresh slice.
func (idx *Index) Neighbors(n uint32) []uint32 {
	links := idx.nodeLinks(n)
	out := make([]uint32, 0, len(links))
	for _, v := range links {
		if v != n {
			out = append(out, v)
		}
	}
	return out
}

// queryDistance returns the query-to-node distance function for one
// operation. For a quantized index this builds the per-query lookup table
// exactly once; every distance during the operation is a table fold. For an
// exact index the query is transformed into the scratch buffer once and
// compared against payloads in storage representation.
func (idx *Index) queryDistance(query []float32) func(id uint32) float32 {
	if idx.pq != nil {
		lut := idx.pq.NewLookupTable(query)
		return func(id uint32) float32 {
			return lut.Distance(idx.nodeData(id))
		}
	}
	idx.space.TransformData(idx.scratch, query)
	q := idx.scratch
	return func(id uint32) float32 {
		return idx.space.Distance(q, idx.nodeData(id))
	}
}

// nodeDistance computes the symmetric node-to-node distance used by the
// selection heuristic: exact payload distance, or the precomputed
// centroid-pair tables when quantized.
func (idx *Index) nodeDistance(a, b uint32) float32 {
	if idx.pq != nil {
		return idx.pq.SymmetricDistance(idx.nodeData(a), idx.nodeData(b))
	}
	return idx.space.Distance(idx.nodeData(a), idx.nodeData(b))
}
