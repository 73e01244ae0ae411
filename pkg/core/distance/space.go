package distance

import (
	"fmt"
	"unsafe"

	"github.com/x448/float16"
)

// Space binds a metric to a storage representation. The graph core only
// moves opaque byte payloads around; a Space is the sole interpreter of
// those bytes.
type Space interface {
	// DataSize is the width in bytes of one stored vector.
	DataSize() int
	// Dimension is the element count of the logical vector.
	Dimension() int
	// Metric names the distance this space computes.
	Metric() DistanceMetric
	// TransformData writes src into dst in the storage representation.
	// dst must be DataSize() bytes.
	TransformData(dst []byte, src []float32)
	// Distance computes the pairwise distance between two storage
	// representations.
	Distance(a, b []byte) float32
}

// NewSpace constructs the float32 space for metric.
func NewSpace(metric DistanceMetric, dim int) (Space, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dim)
	}
	kernel, err := Get(metric)
	if err != nil {
		return nil, err
	}
	return &floatSpace{metric: metric, dim: dim, kernel: kernel}, nil
}

// floatSpace stores vectors as raw float32 little slabs. The transform is a
// plain copy for both metrics; inner-product callers feed pre-normalized
// data.
type floatSpace struct {
	metric DistanceMetric
	dim    int
	kernel Kernel
}

func (s *floatSpace) DataSize() int          { return s.dim * 4 }
func (s *floatSpace) Dimension() int         { return s.dim }
func (s *floatSpace) Metric() DistanceMetric { return s.metric }

func (s *floatSpace) TransformData(dst []byte, src []float32) {
	copy(Float32ToBytes(dst, s.dim), src[:s.dim])
}

func (s *floatSpace) Distance(a, b []byte) float32 {
	return s.kernel(BytesToFloat32(a, s.dim), BytesToFloat32(b, s.dim))
}

// NewHalfSpace constructs a squared-Euclidean space that stores vectors as
// IEEE float16, halving resident payload size at the cost of decode work
// per distance call.
func NewHalfSpace(dim int) (Space, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dim)
	}
	return &halfSpace{dim: dim}, nil
}

type halfSpace struct {
	dim int
}

func (s *halfSpace) DataSize() int          { return s.dim * 2 }
func (s *halfSpace) Dimension() int         { return s.dim }
func (s *halfSpace) Metric() DistanceMetric { return Euclidean }

func (s *halfSpace) TransformData(dst []byte, src []float32) {
	out := BytesToUint16(dst, s.dim)
	for i, v := range src[:s.dim] {
		out[i] = float16.Fromfloat32(v).Bits()
	}
}

func (s *halfSpace) Distance(a, b []byte) float32 {
	ha := BytesToUint16(a, s.dim)
	hb := BytesToUint16(b, s.dim)
	var sum float32
	for i := range ha {
		d := float16.Frombits(ha[i]).Float32() - float16.Frombits(hb[i]).Float32()
		sum += d * d
	}
	return sum
}

// --- Zero-copy casting helpers ---
//
// Node payloads live in one packed byte arena; these views let the kernels
// read them without copying.

// BytesToFloat32 casts b to a float32 slice of length n without copying.
func BytesToFloat32(b []byte, n int) []float32 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), n)
}

// Float32ToBytes is the alias used when writing: it views b as n float32s.
func Float32ToBytes(b []byte, n int) []float32 {
	return BytesToFloat32(b, n)
}

// BytesToUint16 casts b to a uint16 slice of length n without copying.
func BytesToUint16(b []byte, n int) []uint16 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*uint16)(unsafe.Pointer(&b[0])), n)
}

// BytesToUint32 casts b to a uint32 slice of length n without copying.
func BytesToUint32(b []byte, n int) []uint32 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&b[0])), n)
}
