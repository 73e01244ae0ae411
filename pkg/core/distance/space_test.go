package distance

import (
	"math"
	"math/rand"
	"testing"
)

func TestFloatSpaceRoundTrip(t *testing.T) {
	space, err := NewSpace(Euclidean, 4)
	if err != nil {
		t.Fatal(err)
	}
	if space.DataSize() != 16 {
		t.Errorf("DataSize: got %d, want 16", space.DataSize())
	}

	src := []float32{1, -2, 3.5, 0}
	buf := make([]byte, space.DataSize())
	space.TransformData(buf, src)

	back := BytesToFloat32(buf, 4)
	for i := range src {
		if back[i] != src[i] {
			t.Fatalf("element %d: got %f, want %f", i, back[i], src[i])
		}
	}
}

func TestFloatSpaceDistance(t *testing.T) {
	space, _ := NewSpace(Euclidean, 2)
	a := make([]byte, space.DataSize())
	b := make([]byte, space.DataSize())
	space.TransformData(a, []float32{0, 0})
	space.TransformData(b, []float32{3, 4})

	if got := space.Distance(a, b); !floatsAreEqual(got, 25.0) {
		t.Errorf("got %f, want 25.0", got)
	}
}

func TestSpaceRejectsBadDimension(t *testing.T) {
	if _, err := NewSpace(Euclidean, 0); err == nil {
		t.Fatal("expected error for zero dimension")
	}
	if _, err := NewHalfSpace(-1); err == nil {
		t.Fatal("expected error for negative dimension")
	}
}

// TestHalfSpaceAgreement checks that the float16 space tracks the float32
// space within half-precision rounding error.
func TestHalfSpaceAgreement(t *testing.T) {
	const dim = 32
	rng := rand.New(rand.NewSource(7))

	full, _ := NewSpace(Euclidean, dim)
	half, _ := NewHalfSpace(dim)
	if half.DataSize() != dim*2 {
		t.Fatalf("half DataSize: got %d, want %d", half.DataSize(), dim*2)
	}

	for trial := 0; trial < 10; trial++ {
		v1 := make([]float32, dim)
		v2 := make([]float32, dim)
		for i := 0; i < dim; i++ {
			v1[i] = rng.Float32()
			v2[i] = rng.Float32()
		}

		fa := make([]byte, full.DataSize())
		fb := make([]byte, full.DataSize())
		ha := make([]byte, half.DataSize())
		hb := make([]byte, half.DataSize())
		full.TransformData(fa, v1)
		full.TransformData(fb, v2)
		half.TransformData(ha, v1)
		half.TransformData(hb, v2)

		exact := full.Distance(fa, fb)
		approx := half.Distance(ha, hb)
		if math.Abs(float64(exact-approx)) > 0.05*float64(dim) {
			t.Fatalf("half precision drifted too far: exact %f, half %f", exact, approx)
		}
	}
}
