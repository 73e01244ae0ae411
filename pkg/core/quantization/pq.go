// Package quantization implements product quantization (PQ) for lossy
// vector compression.
//
// A vector of dimension dim is split into m contiguous subvectors of
// dimension dim/m. Each subspace carries its own codebook of k = 2^nbits
// centroids learned by k-means, and a stored vector becomes an m-byte code
// of per-subspace centroid ids. Distances against codes are answered either
// asymmetrically (full-precision query vs. code, via a per-query lookup
// table) or symmetrically (code vs. code, via tables precomputed once after
// training).
package quantization

import (
	"fmt"

	"github.com/sanonone/flatgraph/pkg/core/distance"
)

// defaultSeed matches the fixed seed of the reference centroid generator so
// training runs are reproducible.
const defaultSeed = 3333

// ProductQuantizer holds the codebooks for one quantization scheme.
// It must be trained before codes or distances can be computed.
type ProductQuantizer struct {
	dim   int // input dimensionality
	m     int // number of subquantizers
	dsub  int // dim / m
	nbits int
	k     int // centroids per subspace, 1 << nbits

	metric distance.DistanceMetric

	// codebooks is m*k*dsub floats: subspace s, centroid c starts at
	// (s*k + c) * dsub.
	codebooks []float32

	// symTables is m*k*k floats of pairwise per-subspace centroid
	// distances (L2) or dot products (inner product), built by Train.
	symTables []float32

	iterations int
	init       InitStrategy
	seed       int64

	trained bool
}

// Option configures training behavior.
type Option func(*ProductQuantizer)

// WithIterations sets the number of k-means refinement iterations.
func WithIterations(n int) Option {
	return func(pq *ProductQuantizer) { pq.iterations = n }
}

// WithInitStrategy selects the centroid initialization strategy.
func WithInitStrategy(s InitStrategy) Option {
	return func(pq *ProductQuantizer) { pq.init = s }
}

// WithSeed overrides the training RNG seed.
func WithSeed(seed int64) Option {
	return func(pq *ProductQuantizer) { pq.seed = seed }
}

// New creates an untrained product quantizer for dim-dimensional vectors
// with m subquantizers of nbits each.
func New(dim, m, nbits int, metric distance.DistanceMetric, opts ...Option) (*ProductQuantizer, error) {
	if m <= 0 || dim <= 0 {
		return nil, fmt.Errorf("invalid quantizer shape: dim=%d m=%d", dim, m)
	}
	if dim%m != 0 {
		return nil, fmt.Errorf("dimension %d is not divisible by %d subquantizers", dim, m)
	}
	if nbits < 1 || nbits > 8 {
		return nil, fmt.Errorf("nbits must be in [1, 8], got %d", nbits)
	}
	if _, err := distance.Get(metric); err != nil {
		return nil, err
	}

	pq := &ProductQuantizer{
		dim:        dim,
		m:          m,
		dsub:       dim / m,
		nbits:      nbits,
		k:          1 << nbits,
		metric:     metric,
		iterations: defaultIterations,
		init:       InitDefault,
		seed:       defaultSeed,
	}
	for _, opt := range opts {
		opt(pq)
	}
	return pq, nil
}

// IsTrained reports whether codebooks have been learned.
func (pq *ProductQuantizer) IsTrained() bool { return pq.trained }

// CodeSize is the width of one code in bytes: one byte per subquantizer.
func (pq *ProductQuantizer) CodeSize() int { return pq.m }

// Dimension returns the input vector dimensionality.
func (pq *ProductQuantizer) Dimension() int { return pq.dim }

// Metric returns the metric distances are folded in.
func (pq *ProductQuantizer) Metric() distance.DistanceMetric { return pq.metric }

// centroid returns the view of centroid c in subspace s.
func (pq *ProductQuantizer) centroid(s, c int) []float32 {
	off := (s*pq.k + c) * pq.dsub
	return pq.codebooks[off : off+pq.dsub]
}

// Train learns the per-subspace codebooks from a training sample. It fails
// when fewer training points than centroids are supplied.
func (pq *ProductQuantizer) Train(vectors [][]float32) error {
	n := len(vectors)
	if n < pq.k {
		return fmt.Errorf("training needs at least %d points, got %d", pq.k, n)
	}
	for i, v := range vectors {
		if len(v) != pq.dim {
			return fmt.Errorf("training vector %d has dimension %d, want %d", i, len(v), pq.dim)
		}
	}

	pq.codebooks = make([]float32, pq.m*pq.k*pq.dsub)

	sub := make([][]float32, n)
	for s := 0; s < pq.m; s++ {
		start := s * pq.dsub
		for i, v := range vectors {
			sub[i] = v[start : start+pq.dsub]
		}
		centroids, err := runKMeans(sub, pq.k, pq.iterations, pq.init, pq.seed+int64(s))
		if err != nil {
			return fmt.Errorf("subspace %d: %w", s, err)
		}
		copy(pq.codebooks[s*pq.k*pq.dsub:], centroids)
	}

	pq.buildSymmetricTables()
	pq.trained = true
	return nil
}

// buildSymmetricTables precomputes the k x k per-subspace centroid tables
// used by SymmetricDistance.
func (pq *ProductQuantizer) buildSymmetricTables() {
	pq.symTables = make([]float32, pq.m*pq.k*pq.k)
	for s := 0; s < pq.m; s++ {
		base := s * pq.k * pq.k
		for a := 0; a < pq.k; a++ {
			ca := pq.centroid(s, a)
			for b := a; b < pq.k; b++ {
				cb := pq.centroid(s, b)
				var v float32
				if pq.metric == distance.InnerProduct {
					v = distance.Dot(ca, cb)
				} else {
					v = squaredL2(ca, cb)
				}
				pq.symTables[base+a*pq.k+b] = v
				pq.symTables[base+b*pq.k+a] = v
			}
		}
	}
}

// ComputeCode quantizes vec into code, which must be CodeSize() bytes.
// Centroid assignment is always by squared L2, as during training.
func (pq *ProductQuantizer) ComputeCode(vec []float32, code []byte) {
	if !pq.trained {
		panic("quantization: ComputeCode on untrained product quantizer")
	}
	for s := 0; s < pq.m; s++ {
		subvec := vec[s*pq.dsub : (s+1)*pq.dsub]
		best := 0
		bestDist := squaredL2(subvec, pq.centroid(s, 0))
		for c := 1; c < pq.k; c++ {
			if d := squaredL2(subvec, pq.centroid(s, c)); d < bestDist {
				bestDist = d
				best = c
			}
		}
		code[s] = byte(best)
	}
}

// Decode reconstructs the approximate vector a code stands for.
func (pq *ProductQuantizer) Decode(code []byte) []float32 {
	if !pq.trained {
		panic("quantization: Decode on untrained product quantizer")
	}
	out := make([]float32, pq.dim)
	for s := 0; s < pq.m; s++ {
		copy(out[s*pq.dsub:], pq.centroid(s, int(code[s])))
	}
	return out
}

// LookupTable is the per-query scratch for asymmetric distances: one entry
// per (subspace, centroid) pair. Build it once when a query arrives, then
// answer every code distance for that query from the table.
type LookupTable struct {
	pq    *ProductQuantizer
	table []float32 // m * k
}

// NewLookupTable builds the asymmetric distance table for query.
func (pq *ProductQuantizer) NewLookupTable(query []float32) *LookupTable {
	if !pq.trained {
		panic("quantization: distance on untrained product quantizer")
	}
	lut := &LookupTable{
		pq:    pq,
		table: make([]float32, pq.m*pq.k),
	}
	for s := 0; s < pq.m; s++ {
		sub := query[s*pq.dsub : (s+1)*pq.dsub]
		row := lut.table[s*pq.k : (s+1)*pq.k]
		for c := 0; c < pq.k; c++ {
			if pq.metric == distance.InnerProduct {
				row[c] = distance.Dot(sub, pq.centroid(s, c))
			} else {
				row[c] = squaredL2(sub, pq.centroid(s, c))
			}
		}
	}
	return lut
}

// Distance answers the asymmetric distance between the table's query and a
// stored code.
func (t *LookupTable) Distance(code []byte) float32 {
	pq := t.pq
	var sum float32
	for s := 0; s < pq.m; s++ {
		sum += t.table[s*pq.k+int(code[s])]
	}
	if pq.metric == distance.InnerProduct {
		return 1.0 - sum
	}
	return sum
}

// SymmetricDistance answers the code-vs-code distance from the tables built
// at training time.
func (pq *ProductQuantizer) SymmetricDistance(a, b []byte) float32 {
	if !pq.trained {
		panic("quantization: distance on untrained product quantizer")
	}
	var sum float32
	for s := 0; s < pq.m; s++ {
		sum += pq.symTables[s*pq.k*pq.k+int(a[s])*pq.k+int(b[s])]
	}
	if pq.metric == distance.InnerProduct {
		return 1.0 - sum
	}
	return sum
}

// squaredL2 is the plain assignment kernel. Training subvectors are short,
// so the loop beats the dispatch indirection here.
func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
