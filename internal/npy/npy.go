// Package npy reads NumPy .npy tensor files, the format ann-benchmarks
// datasets ship in. Only what the construct tool needs is implemented:
// versions 1.0 and 2.0, C-order, little-endian float32 or float64 data.
package npy

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrBadMagic indicates the stream is not a .npy file.
	ErrBadMagic = errors.New("npy: bad magic")
	// ErrUnsupported indicates a dtype, byte order, or layout this reader
	// does not handle.
	ErrUnsupported = errors.New("npy: unsupported format")
	// ErrNotMatrix indicates the tensor is not 2-dimensional.
	ErrNotMatrix = errors.New("npy: dataset must be a 2-D tensor")
)

var npyMagic = []byte("\x93NUMPY")

// Matrix is a row-major 2-D float32 tensor.
type Matrix struct {
	Rows int
	Cols int
	Data []float32 // len = Rows * Cols
}

// Row returns the i-th row as a view into Data.
func (m *Matrix) Row(i int) []float32 {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// headerPattern extracts the three fields of the Python dict literal the
// npy header carries. NumPy writes them in this order.
var headerPattern = regexp.MustCompile(
	`'descr':\s*'([^']+)',\s*'fortran_order':\s*(True|False),\s*'shape':\s*\(([^)]*)\)`)

// ReadFile loads path as a 2-D matrix, converting float64 data down to
// float32.
func ReadFile(path string) (*Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("npy: open dataset: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses a .npy stream.
func Read(r io.Reader) (*Matrix, error) {
	magic := make([]byte, 8)
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMagic, err)
	}
	if string(magic[:6]) != string(npyMagic) {
		return nil, ErrBadMagic
	}
	major := magic[6]

	var headerLen int
	switch major {
	case 1:
		var l uint16
		if err := binary.Read(r, binary.LittleEndian, &l); err != nil {
			return nil, fmt.Errorf("%w: header length: %v", ErrBadMagic, err)
		}
		headerLen = int(l)
	case 2:
		var l uint32
		if err := binary.Read(r, binary.LittleEndian, &l); err != nil {
			return nil, fmt.Errorf("%w: header length: %v", ErrBadMagic, err)
		}
		headerLen = int(l)
	default:
		return nil, fmt.Errorf("%w: version %d.%d", ErrUnsupported, major, magic[7])
	}

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrBadMagic, err)
	}

	match := headerPattern.FindSubmatch(header)
	if match == nil {
		return nil, fmt.Errorf("%w: unparseable header %q", ErrUnsupported, header)
	}
	descr := string(match[1])
	if string(match[2]) == "True" {
		return nil, fmt.Errorf("%w: fortran order", ErrUnsupported)
	}

	shape, err := parseShape(string(match[3]))
	if err != nil {
		return nil, err
	}
	if len(shape) != 2 {
		return nil, fmt.Errorf("%w: shape has %d dimensions", ErrNotMatrix, len(shape))
	}
	rows, cols := shape[0], shape[1]

	count := rows * cols
	out := &Matrix{Rows: rows, Cols: cols, Data: make([]float32, count)}

	switch descr {
	case "<f4", "|f4":
		raw := make([]byte, count*4)
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, fmt.Errorf("npy: truncated data: %w", err)
		}
		for i := 0; i < count; i++ {
			out.Data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
	case "<f8":
		raw := make([]byte, count*8)
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, fmt.Errorf("npy: truncated data: %w", err)
		}
		for i := 0; i < count; i++ {
			out.Data[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:])))
		}
	default:
		return nil, fmt.Errorf("%w: dtype %q", ErrUnsupported, descr)
	}

	return out, nil
}

func parseShape(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	shape := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue // trailing comma in 1-tuples
		}
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("%w: shape element %q", ErrUnsupported, p)
		}
		shape = append(shape, v)
	}
	return shape, nil
}
