// Package snapshot persists sealed offset tables as a versioned binary blob.
//
// Layout: the 4-byte magic "VSYN", a little-endian uint16 format version,
// then the body. Version 1 stores the body raw; version 2 compresses it with
// zstd. The body is a uvarint chromosome count and, per chromosome, its name
// and uvarint track count; per track, the genome id, a uvarint entry count
// and each entry as three little-endian int64 values (reference position,
// native offset, meta offset). Strings are uvarint-length prefixed.
package snapshot

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/inodb/vibe-sync/internal/offset"
)

const magic = "VSYN"

// Format versions.
const (
	Version1 uint16 = 1
	Version2 uint16 = 2

	CurrentVersion = Version2
)

// maxPrealloc caps allocations driven by counts read from the blob.
const maxPrealloc = 1 << 16

// ErrBadMagic is returned for input that is not a snapshot.
var ErrBadMagic = errors.New("not a vibe-sync snapshot")

// UnsupportedVersionError is returned for a snapshot written by an unknown
// format version. Readers never guess a layout.
type UnsupportedVersionError struct {
	Version uint16
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported snapshot version %d (supported: %d, %d)", e.Version, Version1, Version2)
}

// Track holds the entries of one genome.
type Track struct {
	Genome  string
	Entries []offset.Entry
}

// Chromosome holds the tracks of one chromosome.
type Chromosome struct {
	Name   string
	Tracks []Track
}

// Snapshot is the persisted form of a sealed project.
type Snapshot struct {
	Chromosomes []Chromosome
}

// Write encodes s in the current format version.
func Write(w io.Writer, s *Snapshot) error {
	return WriteVersion(w, s, CurrentVersion)
}

// WriteVersion encodes s in the given format version.
func WriteVersion(w io.Writer, s *Snapshot, version uint16) error {
	if version != Version1 && version != Version2 {
		return &UnsupportedVersionError{Version: version}
	}

	header := make([]byte, 0, len(magic)+2)
	header = append(header, magic...)
	header = binary.LittleEndian.AppendUint16(header, version)
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write snapshot header: %w", err)
	}

	if version == Version1 {
		return writeBody(w, s)
	}

	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	if err := writeBody(enc, s); err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close zstd writer: %w", err)
	}
	return nil
}

// Read decodes a snapshot of any supported version.
func Read(r io.Reader) (*Snapshot, error) {
	header := make([]byte, len(magic)+2)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("read snapshot header: %w", err)
	}
	if string(header[:len(magic)]) != magic {
		return nil, ErrBadMagic
	}

	switch version := binary.LittleEndian.Uint16(header[len(magic):]); version {
	case Version1:
		return readBody(r)
	case Version2:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("create zstd reader: %w", err)
		}
		defer dec.Close()
		return readBody(dec)
	default:
		return nil, &UnsupportedVersionError{Version: version}
	}
}

func writeBody(w io.Writer, s *Snapshot) error {
	bw := bufio.NewWriter(w)
	var scratch []byte

	putUvarint := func(v uint64) {
		scratch = binary.AppendUvarint(scratch[:0], v)
		bw.Write(scratch)
	}
	putString := func(str string) {
		putUvarint(uint64(len(str)))
		bw.WriteString(str)
	}

	putUvarint(uint64(len(s.Chromosomes)))
	for _, c := range s.Chromosomes {
		putString(c.Name)
		putUvarint(uint64(len(c.Tracks)))
		for _, t := range c.Tracks {
			putString(t.Genome)
			putUvarint(uint64(len(t.Entries)))
			for _, e := range t.Entries {
				scratch = binary.LittleEndian.AppendUint64(scratch[:0], uint64(e.Position))
				scratch = binary.LittleEndian.AppendUint64(scratch, uint64(e.NativeOffset))
				scratch = binary.LittleEndian.AppendUint64(scratch, uint64(e.MetaOffset))
				bw.Write(scratch)
			}
		}
	}

	// bufio.Writer keeps the first write error and returns it here.
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write snapshot body: %w", err)
	}
	return nil
}

func readBody(r io.Reader) (*Snapshot, error) {
	br := bufio.NewReader(r)

	nChrom, err := binary.ReadUvarint(br)
	if err != nil {
		return nil, fmt.Errorf("read chromosome count: %w", err)
	}

	s := &Snapshot{Chromosomes: make([]Chromosome, 0, min(nChrom, maxPrealloc))}
	for range nChrom {
		var c Chromosome
		if c.Name, err = readString(br); err != nil {
			return nil, fmt.Errorf("read chromosome name: %w", err)
		}
		nTracks, err := binary.ReadUvarint(br)
		if err != nil {
			return nil, fmt.Errorf("read track count for %s: %w", c.Name, err)
		}
		c.Tracks = make([]Track, 0, min(nTracks, maxPrealloc))
		for range nTracks {
			t, err := readTrack(br)
			if err != nil {
				return nil, fmt.Errorf("read track on %s: %w", c.Name, err)
			}
			c.Tracks = append(c.Tracks, t)
		}
		s.Chromosomes = append(s.Chromosomes, c)
	}
	return s, nil
}

func readTrack(br *bufio.Reader) (Track, error) {
	var t Track
	var err error
	if t.Genome, err = readString(br); err != nil {
		return t, err
	}
	n, err := binary.ReadUvarint(br)
	if err != nil {
		return t, err
	}

	t.Entries = make([]offset.Entry, 0, min(n, maxPrealloc))
	var raw [24]byte
	for range n {
		if _, err := io.ReadFull(br, raw[:]); err != nil {
			return t, fmt.Errorf("read entry of %s: %w", t.Genome, err)
		}
		t.Entries = append(t.Entries, offset.Entry{
			Position:     int64(binary.LittleEndian.Uint64(raw[0:8])),
			NativeOffset: int64(binary.LittleEndian.Uint64(raw[8:16])),
			MetaOffset:   int64(binary.LittleEndian.Uint64(raw[16:24])),
		})
	}
	return t, nil
}

func readString(br *bufio.Reader) (string, error) {
	n, err := binary.ReadUvarint(br)
	if err != nil {
		return "", err
	}
	if n > maxPrealloc {
		return "", fmt.Errorf("string length %d exceeds %d", n, maxPrealloc)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(br, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
