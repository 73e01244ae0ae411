package graph

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/sanonone/flatgraph/pkg/core/distance"
)

// Snapshot format, single file, little endian:
//
//	[Magic(4)][Version(4)]
//	[M(8)][DataSize(8)][NodeSize(8)][MaxNodes(8)][CurNodes(8)][Dim(8)]
//	[VisitedGeneration(4)][VisitedLen(8)][VisitedMarks(4*len)]
//	[NodeBuffer(NodeSize*MaxNodes)][QueryScratch(DataSize)]
//	[CRC32(4) of NodeBuffer]
//
// The metric is deliberately not encoded; the loader receives the space
// from the caller and cross-checks its shape against the header.

const (
	snapshotMagic   = 0x46475248 // "FGRH"
	snapshotVersion = 1
)

// hostEndian fixes the byte order of labels and snapshots. Every supported
// target is little endian, so files move between hosts unchanged.
var hostEndian = binary.LittleEndian

var (
	// ErrQuantizedSnapshot rejects saving an index whose payloads are PQ
	// codes: the format does not carry codebooks, so such a file could
	// never be interpreted again.
	ErrQuantizedSnapshot = errors.New("graph: quantized index cannot be snapshotted")
	// ErrInvalidMagic indicates the stream is not a graph snapshot.
	ErrInvalidMagic = errors.New("graph: invalid snapshot magic")
	// ErrUnsupportedVersion indicates a snapshot from an unknown format
	// revision.
	ErrUnsupportedVersion = errors.New("graph: unsupported snapshot version")
	// ErrChecksumMismatch indicates the node buffer was corrupted.
	ErrChecksumMismatch = errors.New("graph: snapshot checksum mismatch")
	// ErrIncompleteSnapshot indicates the stream ended mid-record.
	ErrIncompleteSnapshot = errors.New("graph: incomplete snapshot")
	// ErrCorruptHeader indicates internally inconsistent header fields.
	ErrCorruptHeader = errors.New("graph: corrupt snapshot header")
)

// Save writes the index to w. Quantized indexes are refused, see
// ErrQuantizedSnapshot.
func (idx *Index) Save(w io.Writer) error {
	if idx.pq != nil {
		return ErrQuantizedSnapshot
	}

	bw := bufio.NewWriter(w)

	var u32 [4]byte
	var u64 [8]byte
	writeU32 := func(v uint32) error {
		hostEndian.PutUint32(u32[:], v)
		_, err := bw.Write(u32[:])
		return err
	}
	writeU64 := func(v uint64) error {
		hostEndian.PutUint64(u64[:], v)
		_, err := bw.Write(u64[:])
		return err
	}

	if err := writeU32(snapshotMagic); err != nil {
		return err
	}
	if err := writeU32(snapshotVersion); err != nil {
		return err
	}
	for _, v := range []uint64{
		uint64(idx.m),
		uint64(idx.dataSize),
		uint64(idx.nodeSize),
		uint64(idx.maxNodes),
		uint64(idx.curNodes),
		uint64(idx.space.Dimension()),
	} {
		if err := writeU64(v); err != nil {
			return err
		}
	}

	if err := writeU32(idx.visited.generation); err != nil {
		return err
	}
	if err := writeU64(uint64(len(idx.visited.marks))); err != nil {
		return err
	}
	for _, mark := range idx.visited.marks {
		if err := writeU32(mark); err != nil {
			return err
		}
	}

	if _, err := bw.Write(idx.memory); err != nil {
		return err
	}
	if _, err := bw.Write(idx.scratch); err != nil {
		return err
	}
	if err := writeU32(crc32.ChecksumIEEE(idx.memory)); err != nil {
		return err
	}

	return bw.Flush()
}

// Load reads a snapshot from r. The caller supplies the space the index
// was built with; its dimension and payload width are checked against the
// header. Loaded indexes never carry a quantizer.
func Load(r io.Reader, space distance.Space) (*Index, error) {
	br := bufio.NewReader(r)

	var u32 [4]byte
	var u64 [8]byte
	readU32 := func() (uint32, error) {
		if _, err := io.ReadFull(br, u32[:]); err != nil {
			return 0, errIncomplete(err)
		}
		return hostEndian.Uint32(u32[:]), nil
	}
	readU64 := func() (uint64, error) {
		if _, err := io.ReadFull(br, u64[:]); err != nil {
			return 0, errIncomplete(err)
		}
		return hostEndian.Uint64(u64[:]), nil
	}

	magic, err := readU32()
	if err != nil {
		return nil, err
	}
	if magic != snapshotMagic {
		return nil, ErrInvalidMagic
	}
	version, err := readU32()
	if err != nil {
		return nil, err
	}
	if version != snapshotVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	var fields [6]uint64
	for i := range fields {
		if fields[i], err = readU64(); err != nil {
			return nil, err
		}
	}
	m := int(fields[0])
	dataSize := int(fields[1])
	nodeSize := int(fields[2])
	maxNodes := int(fields[3])
	curNodes := int(fields[4])
	dim := int(fields[5])

	switch {
	case m <= 0 || maxNodes <= 0:
		return nil, ErrCorruptHeader
	case curNodes < 0 || curNodes > maxNodes:
		return nil, ErrCorruptHeader
	case nodeSize != dataSize+m*linkWidth+labelWidth:
		return nil, ErrCorruptHeader
	}
	if dim != space.Dimension() {
		return nil, fmt.Errorf("graph: snapshot dimension %d does not match space dimension %d", dim, space.Dimension())
	}
	if dataSize != space.DataSize() {
		return nil, fmt.Errorf("graph: snapshot payload width %d does not match space payload width %d", dataSize, space.DataSize())
	}

	idx, err := New(space, maxNodes, m)
	if err != nil {
		return nil, err
	}
	idx.curNodes = curNodes

	generation, err := readU32()
	if err != nil {
		return nil, err
	}
	marksLen, err := readU64()
	if err != nil {
		return nil, err
	}
	if marksLen != uint64(maxNodes+1) {
		return nil, ErrCorruptHeader
	}
	idx.visited.generation = generation
	for i := range idx.visited.marks {
		if idx.visited.marks[i], err = readU32(); err != nil {
			return nil, err
		}
	}

	if _, err := io.ReadFull(br, idx.memory); err != nil {
		return nil, errIncomplete(err)
	}
	if _, err := io.ReadFull(br, idx.scratch); err != nil {
		return nil, errIncomplete(err)
	}

	sum, err := readU32()
	if err != nil {
		return nil, err
	}
	if sum != crc32.ChecksumIEEE(idx.memory) {
		return nil, ErrChecksumMismatch
	}

	return idx, nil
}

func errIncomplete(err error) error {
	return fmt.Errorf("%w: %v", ErrIncompleteSnapshot, err)
}

// SaveFile writes the snapshot through a uniquely named temp file and
// renames it over path, so an interrupted save leaves any existing file
// untouched.
func (idx *Index) SaveFile(path string) error {
	tmp := fmt.Sprintf("%s.%s.tmp", path, uuid.NewString())
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("graph: create snapshot: %w", err)
	}

	if err := idx.Save(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("graph: sync snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("graph: close snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("graph: publish snapshot: %w", err)
	}
	return nil
}

// LoadFile reads a snapshot previously written by SaveFile.
func LoadFile(path string, space distance.Space) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("graph: open snapshot: %w", err)
	}
	defer f.Close()
	return Load(f, space)
}
