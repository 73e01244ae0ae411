package npy

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"testing"
)

// writeNpy serializes a v1.0 .npy stream the way numpy.save does.
func writeNpy(descr string, rows, cols int, data []float64) []byte {
	header := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': (%d, %d), }", descr, rows, cols)
	// Pad so magic+length+header is a multiple of 64, newline-terminated.
	total := 8 + 2 + len(header) + 1
	pad := (64 - total%64) % 64
	header += string(bytes.Repeat([]byte{' '}, pad)) + "\n"

	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY")
	buf.WriteByte(1)
	buf.WriteByte(0)
	binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)

	switch descr {
	case "<f4":
		for _, v := range data {
			binary.Write(&buf, binary.LittleEndian, float32(v))
		}
	case "<f8":
		for _, v := range data {
			binary.Write(&buf, binary.LittleEndian, v)
		}
	}
	return buf.Bytes()
}

func TestReadFloat32(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6}
	m, err := Read(bytes.NewReader(writeNpy("<f4", 2, 3, data)))
	if err != nil {
		t.Fatal(err)
	}
	if m.Rows != 2 || m.Cols != 3 {
		t.Fatalf("shape: got (%d, %d), want (2, 3)", m.Rows, m.Cols)
	}
	for i, want := range data {
		if m.Data[i] != float32(want) {
			t.Fatalf("element %d: got %f, want %f", i, m.Data[i], want)
		}
	}
	if row := m.Row(1); row[0] != 4 || row[2] != 6 {
		t.Fatalf("Row(1): got %v", row)
	}
}

func TestReadFloat64Downcast(t *testing.T) {
	data := []float64{math.Pi, -math.E}
	m, err := Read(bytes.NewReader(writeNpy("<f8", 1, 2, data)))
	if err != nil {
		t.Fatal(err)
	}
	if m.Data[0] != float32(math.Pi) || m.Data[1] != float32(-math.E) {
		t.Fatalf("downcast mismatch: %v", m.Data)
	}
}

func TestReadRejections(t *testing.T) {
	t.Run("BadMagic", func(t *testing.T) {
		if _, err := Read(bytes.NewReader([]byte("not a npy file at all"))); !errors.Is(err, ErrBadMagic) {
			t.Fatalf("got %v, want ErrBadMagic", err)
		}
	})

	t.Run("UnsupportedDtype", func(t *testing.T) {
		stream := writeNpy("<i8", 1, 2, []float64{1, 2})
		if _, err := Read(bytes.NewReader(stream)); !errors.Is(err, ErrUnsupported) {
			t.Fatalf("got %v, want ErrUnsupported", err)
		}
	})

	t.Run("NotMatrix", func(t *testing.T) {
		header := "{'descr': '<f4', 'fortran_order': False, 'shape': (6,), }\n"
		var buf bytes.Buffer
		buf.WriteString("\x93NUMPY")
		buf.WriteByte(1)
		buf.WriteByte(0)
		binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
		buf.WriteString(header)
		for i := 0; i < 6; i++ {
			binary.Write(&buf, binary.LittleEndian, float32(i))
		}
		if _, err := Read(&buf); !errors.Is(err, ErrNotMatrix) {
			t.Fatalf("got %v, want ErrNotMatrix", err)
		}
	})

	t.Run("Truncated", func(t *testing.T) {
		stream := writeNpy("<f4", 4, 4, make([]float64, 16))
		if _, err := Read(bytes.NewReader(stream[:len(stream)-10])); err == nil {
			t.Fatal("truncated data must fail")
		}
	})
}
