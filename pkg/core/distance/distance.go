// Package distance provides the metric kernels the graph core is built on.
//
// Two metrics are supported: squared Euclidean distance and an inner-product
// distance (1 - dot) that treats larger dot products as nearer. Kernels are
// selected once at startup: pure-Go reference implementations are the
// default, and init() swaps in Gonum BLAS kernels (which carry their own
// SIMD assembly) when the CPU advertises the right features.
package distance

import (
	"fmt"
	"sync"

	"github.com/klauspost/cpuid/v2"
	"gonum.org/v1/gonum/blas/gonum"
)

// DistanceMetric identifies the metric an index computes.
type DistanceMetric string

const (
	// Euclidean is the squared Euclidean distance (no square root).
	Euclidean DistanceMetric = "euclidean"
	// InnerProduct is 1 - <x, y>. Callers wanting angular distance must
	// L2-normalize their vectors before handing them to the index.
	InnerProduct DistanceMetric = "inner_product"
)

// Kernel is a pairwise distance function over equal-length float32 vectors.
// Kernels are infallible: length agreement is the caller's invariant.
type Kernel func(a, b []float32) float32

func init() {
	// Gonum's Sdot is assembly-backed on amd64 and arm64, so the dot based
	// metric always routes through it. The Saxpy+Sdot Euclidean path only
	// pays off on wider vector units, so it is gated on AVX2.
	kernels[InnerProduct] = innerProductGonum
	if cpuid.CPU.Has(cpuid.AVX2) {
		kernels[Euclidean] = squaredEuclideanGonum
	}
}

// kernels maps each metric to the implementation chosen at startup.
var kernels = map[DistanceMetric]Kernel{
	Euclidean:    squaredEuclideanGo,
	InnerProduct: innerProductGo,
}

// Get returns the kernel registered for metric.
func Get(metric DistanceMetric) (Kernel, error) {
	fn, ok := kernels[metric]
	if !ok {
		return nil, fmt.Errorf("unsupported distance metric %q", metric)
	}
	return fn, nil
}

// --- Reference implementations (pure Go) ---

func squaredEuclideanGo(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func dotGo(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func innerProductGo(a, b []float32) float32 {
	return 1.0 - dotGo(a, b)
}

// --- Gonum BLAS implementations ---

var gonumEngine = gonum.Implementation{}

// diffWorkspace lends scratch slices to the Saxpy-based Euclidean kernel so
// the hot path stays allocation-free.
var diffWorkspace = sync.Pool{
	New: func() any {
		s := make([]float32, 1536)
		return &s
	},
}

func squaredEuclideanGonum(a, b []float32) float32 {
	n := len(a)

	diffPtr := diffWorkspace.Get().(*[]float32)
	defer diffWorkspace.Put(diffPtr)
	if cap(*diffPtr) < n {
		*diffPtr = make([]float32, n)
	}
	diff := (*diffPtr)[:n]

	copy(diff, a)
	gonumEngine.Saxpy(n, -1, b, 1, diff, 1)
	return gonumEngine.Sdot(n, diff, 1, diff, 1)
}

func innerProductGonum(a, b []float32) float32 {
	return 1.0 - gonumEngine.Sdot(len(a), a, 1, b, 1)
}

// Dot exposes the dot product for callers outside the hot path (training,
// normalization checks).
func Dot(a, b []float32) float32 {
	return gonumEngine.Sdot(len(a), a, 1, b, 1)
}
