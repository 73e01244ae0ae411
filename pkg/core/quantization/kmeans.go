package quantization

import (
	"fmt"
	"math/rand"
)

// InitStrategy selects how k-means seeds its initial centroids.
type InitStrategy string

const (
	// InitDefault samples k distinct training points uniformly.
	InitDefault InitStrategy = "default"
	// InitKMeansPlusPlus seeds with the kmeans++ weighting of Arthur and
	// Vassilvitskii, trading init cost for better-spread codebooks.
	InitKMeansPlusPlus InitStrategy = "kmeans++"
)

// defaultIterations is the number of Lloyd refinement rounds; the reference
// generator converges well enough on subspace data in a handful of passes.
const defaultIterations = 5

// runKMeans clusters points into k centroids and returns them as a flat
// k*dim slice. points must hold at least k entries.
func runKMeans(points [][]float32, k, iterations int, strategy InitStrategy, seed int64) ([]float32, error) {
	n := len(points)
	if n < k {
		return nil, fmt.Errorf("kmeans: %d points for %d centroids", n, k)
	}
	dim := len(points[0])
	rng := rand.New(rand.NewSource(seed))

	centroids := make([]float32, k*dim)
	switch strategy {
	case InitDefault:
		randomInitialize(centroids, points, k, dim, rng)
	case InitKMeansPlusPlus:
		kmeansPlusPlusInitialize(centroids, points, k, dim, rng)
	default:
		return nil, fmt.Errorf("kmeans: unknown init strategy %q", strategy)
	}

	assignment := make([]int, n)
	sums := make([]float32, k*dim)
	counts := make([]int, k)

	for iter := 0; iter < iterations; iter++ {
		// Assignment step.
		for i, p := range points {
			best := 0
			bestDist := squaredL2(p, centroids[:dim])
			for c := 1; c < k; c++ {
				if d := squaredL2(p, centroids[c*dim:(c+1)*dim]); d < bestDist {
					bestDist = d
					best = c
				}
			}
			assignment[i] = best
		}

		// Update step.
		clear(sums)
		clear(counts)
		for i, p := range points {
			c := assignment[i]
			counts[c]++
			row := sums[c*dim : (c+1)*dim]
			for j, v := range p {
				row[j] += v
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				// Empty clusters keep their previous centroid.
				continue
			}
			inv := 1.0 / float32(counts[c])
			row := centroids[c*dim : (c+1)*dim]
			for j := range row {
				row[j] = sums[c*dim+j] * inv
			}
		}
	}

	return centroids, nil
}

// randomInitialize seeds centroids with k distinct training points.
func randomInitialize(centroids []float32, points [][]float32, k, dim int, rng *rand.Rand) {
	perm := rng.Perm(len(points))
	for c := 0; c < k; c++ {
		copy(centroids[c*dim:(c+1)*dim], points[perm[c]])
	}
}

// kmeansPlusPlusInitialize picks the first centroid uniformly and each
// following one with probability proportional to the squared distance from
// the nearest already-chosen centroid.
func kmeansPlusPlusInitialize(centroids []float32, points [][]float32, k, dim int, rng *rand.Rand) {
	n := len(points)
	first := rng.Intn(n)
	copy(centroids[:dim], points[first])

	minDist := make([]float32, n)
	var sum float32
	for i, p := range points {
		minDist[i] = squaredL2(p, centroids[:dim])
		sum += minDist[i]
	}

	for c := 1; c < k; c++ {
		chosen := 0
		if sum > 0 {
			target := rng.Float32() * sum
			var cumsum float32
			for i, d := range minDist {
				cumsum += d
				if cumsum >= target {
					chosen = i
					break
				}
			}
		} else {
			chosen = rng.Intn(n)
		}
		row := centroids[c*dim : (c+1)*dim]
		copy(row, points[chosen])

		sum = 0
		for i, p := range points {
			if d := squaredL2(p, row); d < minDist[i] {
				minDist[i] = d
			}
			sum += minDist[i]
		}
	}
}
