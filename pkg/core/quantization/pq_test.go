package quantization

import (
	"math"
	"math/rand"
	"testing"

	"github.com/sanonone/flatgraph/pkg/core/distance"
)

func randomVectors(rng *rand.Rand, n, dim int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		for j := range v {
			v[j] = rng.Float32()*2 - 1
		}
		out[i] = v
	}
	return out
}

func TestNewValidation(t *testing.T) {
	cases := []struct {
		name          string
		dim, m, nbits int
		metric        distance.DistanceMetric
		wantErr       bool
	}{
		{"ok", 64, 8, 8, distance.Euclidean, false},
		{"indivisible", 65, 8, 8, distance.Euclidean, true},
		{"zero subquantizers", 64, 0, 8, distance.Euclidean, true},
		{"nbits too large", 64, 8, 9, distance.Euclidean, true},
		{"nbits zero", 64, 8, 0, distance.Euclidean, true},
		{"bad metric", 64, 8, 8, distance.DistanceMetric("hamming"), true},
		{"small codes", 16, 4, 4, distance.InnerProduct, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.dim, tc.m, tc.nbits, tc.metric)
			if (err != nil) != tc.wantErr {
				t.Fatalf("New(%d, %d, %d): err=%v, wantErr=%v", tc.dim, tc.m, tc.nbits, err, tc.wantErr)
			}
		})
	}
}

func TestTrainRequiresEnoughPoints(t *testing.T) {
	pq, err := New(16, 4, 8, distance.Euclidean)
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(1))
	if err := pq.Train(randomVectors(rng, 100, 16)); err == nil {
		t.Fatal("expected error: 100 points cannot train 256 centroids")
	}
	if pq.IsTrained() {
		t.Fatal("failed training must leave the quantizer untrained")
	}
}

func TestTrainRejectsBadDimensions(t *testing.T) {
	pq, _ := New(16, 4, 4, distance.Euclidean)
	rng := rand.New(rand.NewSource(1))
	vecs := randomVectors(rng, 64, 16)
	vecs[10] = make([]float32, 8)
	if err := pq.Train(vecs); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestUnknownInitStrategy(t *testing.T) {
	pq, _ := New(16, 4, 4, distance.Euclidean, WithInitStrategy(InitStrategy("spectral")))
	rng := rand.New(rand.NewSource(1))
	if err := pq.Train(randomVectors(rng, 64, 16)); err == nil {
		t.Fatal("expected error for unknown init strategy")
	}
}

func TestUntrainedPanics(t *testing.T) {
	pq, _ := New(16, 4, 4, distance.Euclidean)

	assertPanics := func(name string, fn func()) {
		defer func() {
			if recover() == nil {
				t.Errorf("%s on untrained quantizer should panic", name)
			}
		}()
		fn()
	}
	assertPanics("ComputeCode", func() { pq.ComputeCode(make([]float32, 16), make([]byte, 4)) })
	assertPanics("NewLookupTable", func() { pq.NewLookupTable(make([]float32, 16)) })
	assertPanics("SymmetricDistance", func() { pq.SymmetricDistance(make([]byte, 4), make([]byte, 4)) })
}

func TestCodeAssignsNearestCentroid(t *testing.T) {
	pq, _ := New(8, 2, 4, distance.Euclidean, WithInitStrategy(InitKMeansPlusPlus))
	rng := rand.New(rand.NewSource(2))
	vecs := randomVectors(rng, 500, 8)
	if err := pq.Train(vecs); err != nil {
		t.Fatal(err)
	}
	if pq.CodeSize() != 2 {
		t.Fatalf("CodeSize: got %d, want 2", pq.CodeSize())
	}

	code := make([]byte, pq.CodeSize())
	for _, v := range vecs[:50] {
		pq.ComputeCode(v, code)
		for s := 0; s < pq.m; s++ {
			sub := v[s*pq.dsub : (s+1)*pq.dsub]
			got := squaredL2(sub, pq.centroid(s, int(code[s])))
			for c := 0; c < pq.k; c++ {
				if d := squaredL2(sub, pq.centroid(s, c)); d < got {
					t.Fatalf("subspace %d: code %d (dist %f) is not the argmin, centroid %d is at %f",
						s, code[s], got, c, d)
				}
			}
		}
	}
}

// TestLookupTableEquivalence checks that the LUT answer matches the direct
// per-subspace sum, term for term.
func TestLookupTableEquivalence(t *testing.T) {
	for _, metric := range []distance.DistanceMetric{distance.Euclidean, distance.InnerProduct} {
		t.Run(string(metric), func(t *testing.T) {
			pq, _ := New(32, 8, 5, metric)
			rng := rand.New(rand.NewSource(3))
			vecs := randomVectors(rng, 400, 32)
			if err := pq.Train(vecs); err != nil {
				t.Fatal(err)
			}

			code := make([]byte, pq.CodeSize())
			for trial := 0; trial < 20; trial++ {
				query := vecs[rng.Intn(len(vecs))]
				pq.ComputeCode(vecs[rng.Intn(len(vecs))], code)

				lut := pq.NewLookupTable(query)
				got := lut.Distance(code)

				var sum float32
				for s := 0; s < pq.m; s++ {
					sub := query[s*pq.dsub : (s+1)*pq.dsub]
					cent := pq.centroid(s, int(code[s]))
					if metric == distance.InnerProduct {
						sum += distance.Dot(sub, cent)
					} else {
						sum += squaredL2(sub, cent)
					}
				}
				want := sum
				if metric == distance.InnerProduct {
					want = 1.0 - sum
				}
				if got != want {
					t.Fatalf("trial %d: LUT %f != direct %f", trial, got, want)
				}
			}
		})
	}
}

func TestSymmetricDistanceProperties(t *testing.T) {
	pq, _ := New(16, 4, 6, distance.Euclidean)
	rng := rand.New(rand.NewSource(4))
	vecs := randomVectors(rng, 300, 16)
	if err := pq.Train(vecs); err != nil {
		t.Fatal(err)
	}

	a := make([]byte, pq.CodeSize())
	b := make([]byte, pq.CodeSize())
	for trial := 0; trial < 20; trial++ {
		pq.ComputeCode(vecs[rng.Intn(len(vecs))], a)
		pq.ComputeCode(vecs[rng.Intn(len(vecs))], b)

		if d1, d2 := pq.SymmetricDistance(a, b), pq.SymmetricDistance(b, a); d1 != d2 {
			t.Fatalf("symmetric distance is not symmetric: %f vs %f", d1, d2)
		}
	}
	pq.ComputeCode(vecs[0], a)
	if d := pq.SymmetricDistance(a, a); d != 0 {
		t.Fatalf("distance of a code to itself should be 0, got %f", d)
	}
}

// TestReconstructionBeatsRandom sanity-checks training quality: decoding a
// code must land much closer to the source vector than an unrelated vector
// does on average.
func TestReconstructionBeatsRandom(t *testing.T) {
	pq, _ := New(32, 8, 6, distance.Euclidean)
	rng := rand.New(rand.NewSource(5))
	vecs := randomVectors(rng, 1000, 32)
	if err := pq.Train(vecs); err != nil {
		t.Fatal(err)
	}

	code := make([]byte, pq.CodeSize())
	var reconErr, baseErr float64
	for i := 0; i < 200; i++ {
		v := vecs[i]
		pq.ComputeCode(v, code)
		dec := pq.Decode(code)
		reconErr += float64(squaredL2(v, dec))
		baseErr += float64(squaredL2(v, vecs[rng.Intn(len(vecs))]))
	}
	if reconErr >= baseErr {
		t.Fatalf("reconstruction error %f not better than random baseline %f", reconErr, baseErr)
	}
	if math.IsNaN(reconErr) {
		t.Fatal("reconstruction produced NaN")
	}
}

func BenchmarkLookupTableDistance(b *testing.B) {
	pq, _ := New(128, 8, 8, distance.Euclidean)
	rng := rand.New(rand.NewSource(6))
	vecs := randomVectors(rng, 2000, 128)
	if err := pq.Train(vecs); err != nil {
		b.Fatal(err)
	}
	code := make([]byte, pq.CodeSize())
	pq.ComputeCode(vecs[0], code)
	lut := pq.NewLookupTable(vecs[1])

	b.ReportAllocs()
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		_ = lut.Distance(code)
	}
}
