package engine

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-sync/internal/offset"
	"github.com/inodb/vibe-sync/internal/snapshot"
	"github.com/inodb/vibe-sync/internal/variant"
)

func twoGenomeEngine(t *testing.T) *Engine {
	t.Helper()
	return build(t, Input{
		Genomes: []string{"X", "Y", "Z"},
		Chromosomes: []ChromosomeInput{
			chromInput("1",
				insertion(t, "X", "1", 200, 2),
				insertion(t, "Y", "1", 200, 5),
				deletion(t, "Z", "1", 250, 4),
				insertion(t, "X", "1", 400, 1),
			),
			chromInput("2", deletion(t, "Y", "2", 10, 2)),
		},
	})
}

func TestEngine_SnapshotRestore(t *testing.T) {
	src := twoGenomeEngine(t)
	s, err := src.Snapshot()
	require.NoError(t, err)
	require.Len(t, s.Chromosomes, 2)
	assert.Equal(t, "1", s.Chromosomes[0].Name)
	assert.Len(t, s.Chromosomes[0].Tracks, 3)

	var buf bytes.Buffer
	require.NoError(t, snapshot.Write(&buf, s))
	decoded, err := snapshot.Read(&buf)
	require.NoError(t, err)

	dst := New()
	require.NoError(t, dst.Restore(decoded))
	assert.Equal(t, src.Chromosomes(), dst.Chromosomes())

	for _, chrom := range []string{"1", "2"} {
		for _, g := range []string{"X", "Y", "Z"} {
			for p := int64(0); p < 500; p += 7 {
				want, err := src.ToMeta(g, chrom, p)
				require.NoError(t, err)
				got, err := dst.ToMeta(g, chrom, p)
				require.NoError(t, err)
				assert.Equal(t, want, got)

				want, err = src.ToNative(g, chrom, p)
				require.NoError(t, err)
				got, err = dst.ToNative(g, chrom, p)
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}
		}
		for p := int64(0); p < 500; p += 3 {
			want, err := src.ReferenceToMeta(chrom, p)
			require.NoError(t, err)
			got, err := dst.ReferenceToMeta(chrom, p)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	}

	c, err := dst.Chromosome("1")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Stats().Loci)
	assert.Equal(t, int64(6), c.Stats().MetaWidth)
}

func TestEngine_RestoreRejectsUnsynchronized(t *testing.T) {
	s := &snapshot.Snapshot{Chromosomes: []snapshot.Chromosome{{
		Name: "1",
		Tracks: []snapshot.Track{
			{Genome: "X", Entries: []offset.Entry{{Position: 200, NativeOffset: 2, MetaOffset: 5}}},
			{Genome: "Y", Entries: []offset.Entry{{Position: 200, NativeOffset: 4, MetaOffset: 4}}},
		},
	}}}

	e := build(t, Input{Chromosomes: []ChromosomeInput{chromInput("9", insertion(t, "g", "9", 1, 1))}})
	err := e.Restore(s)

	var iv *offset.InvariantViolationError
	require.ErrorAs(t, err, &iv)
	assert.Equal(t, "Y", iv.Genome)
	assert.Equal(t, []string{"9"}, e.Chromosomes(), "failed restore publishes nothing")
}

func TestEngine_RestoreRejectsInvalidEntries(t *testing.T) {
	s := &snapshot.Snapshot{Chromosomes: []snapshot.Chromosome{{
		Name:   "1",
		Tracks: []snapshot.Track{{Genome: "X", Entries: []offset.Entry{{Position: 5, NativeOffset: 3, MetaOffset: 1}}}},
	}}}

	var iv *offset.InvariantViolationError
	assert.ErrorAs(t, New().Restore(s), &iv)
}

func TestEngine_RestoreRejectsDuplicates(t *testing.T) {
	dupChrom := &snapshot.Snapshot{Chromosomes: []snapshot.Chromosome{{Name: "1"}, {Name: "1"}}}
	assert.Error(t, New().Restore(dupChrom))

	dupTrack := &snapshot.Snapshot{Chromosomes: []snapshot.Chromosome{{
		Name:   "1",
		Tracks: []snapshot.Track{{Genome: "X"}, {Genome: "X"}},
	}}}
	assert.Error(t, New().Restore(dupTrack))
}

func TestEngine_RestoreThenBuild(t *testing.T) {
	s, err := twoGenomeEngine(t).Snapshot()
	require.NoError(t, err)

	e := New()
	require.NoError(t, e.Restore(s))
	_, err = e.Build(context.Background(), Input{Chromosomes: []ChromosomeInput{
		{Name: "3", Source: variant.NewSliceSource(insertion(t, "X", "3", 1, 1))},
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, e.Chromosomes())
}
