package snapshot

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-sync/internal/offset"
)

func sample() *Snapshot {
	return &Snapshot{Chromosomes: []Chromosome{
		{Name: "1", Tracks: []Track{
			{Genome: "X", Entries: []offset.Entry{
				{Position: 200, NativeOffset: 2, MetaOffset: 5},
				{Position: 300, NativeOffset: -1, MetaOffset: 5},
			}},
			{Genome: "Y", Entries: []offset.Entry{
				{Position: 200, NativeOffset: 5, MetaOffset: 5},
			}},
		}},
		{Name: "2", Tracks: []Track{{Genome: "X", Entries: []offset.Entry{}}}},
	}}
}

func TestWriteRead(t *testing.T) {
	for _, version := range []uint16{Version1, Version2} {
		var buf bytes.Buffer
		require.NoError(t, WriteVersion(&buf, sample(), version))
		assert.Equal(t, "VSYN", buf.String()[:4])
		assert.Equal(t, version, binary.LittleEndian.Uint16(buf.Bytes()[4:6]))

		got, err := Read(&buf)
		require.NoError(t, err, "version %d", version)
		assert.Equal(t, sample(), got, "version %d", version)
	}
}

func TestWrite_CurrentVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sample()))
	assert.Equal(t, CurrentVersion, binary.LittleEndian.Uint16(buf.Bytes()[4:6]))
}

func TestRead_BadMagic(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("GOBX\x01\x00")))
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestRead_UnknownVersion(t *testing.T) {
	blob := append([]byte(magic), 9, 0)
	_, err := Read(bytes.NewReader(blob))

	var uv *UnsupportedVersionError
	require.ErrorAs(t, err, &uv)
	assert.Equal(t, uint16(9), uv.Version)
}

func TestWriteVersion_Unknown(t *testing.T) {
	var buf bytes.Buffer
	var uv *UnsupportedVersionError
	assert.ErrorAs(t, WriteVersion(&buf, sample(), 3), &uv)
	assert.Zero(t, buf.Len())
}

func TestRead_Truncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteVersion(&buf, sample(), Version1))

	data := buf.Bytes()
	for _, n := range []int{3, 6, 10, len(data) - 1} {
		_, err := Read(bytes.NewReader(data[:n]))
		assert.Error(t, err, "truncated at %d", n)
	}
}

func TestRead_EmptySnapshot(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, &Snapshot{}))

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Empty(t, got.Chromosomes)
}
