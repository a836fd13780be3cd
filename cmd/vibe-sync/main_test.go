package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/inodb/vibe-sync/internal/duckdb"
	"github.com/inodb/vibe-sync/internal/engine"
	"github.com/inodb/vibe-sync/internal/offset"
	"github.com/inodb/vibe-sync/internal/output"
	"github.com/inodb/vibe-sync/internal/snapshot"
)

// testTable is a genome with a 2-base insertion before 10 that shares a
// chromosome with a 5-base insertion before 20.
func testTable(t *testing.T) *offset.Table {
	t.Helper()
	tbl, err := offset.FromEntries("NA1", "1", []offset.Entry{
		{Position: 10, NativeOffset: 2, MetaOffset: 2},
		{Position: 20, NativeOffset: 2, MetaOffset: 5},
	})
	require.NoError(t, err)
	return tbl
}

func TestTranslatePosition(t *testing.T) {
	tbl := testTable(t)

	tests := []struct {
		name                    string
		from                    output.Space
		pos                     int64
		wantRef, wantNat, wantM int64
		wantExtra               int64
	}{
		{"reference before steps", output.Reference, 5, 5, 5, 5, 0},
		{"reference at insertion", output.Reference, 10, 10, 12, 12, 0},
		{"reference in padding", output.Reference, 25, 25, 27, 30, 3},
		{"native after insertion", output.Native, 15, 13, 15, 15, 0},
		{"meta past padding", output.Meta, 27, 22, 24, 27, 3},
		{"meta before padding", output.Meta, 21, 19, 21, 21, 0},
		{"meta inside padding", output.Meta, 23, 20, 22, 23, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := translatePosition(tbl, tt.from, tt.pos)
			require.NoError(t, err)
			assert.Equal(t, "NA1", tr.Genome)
			assert.Equal(t, "1", tr.Chrom)
			assert.Equal(t, tt.from, tr.From)
			assert.Equal(t, tt.pos, tr.Input)
			assert.Equal(t, tt.wantRef, tr.Reference.Position, "reference")
			assert.Equal(t, tt.wantNat, tr.Native.Position, "native")
			assert.Equal(t, tt.wantM, tr.Meta.Position, "meta")
			assert.Equal(t, tt.wantExtra, tr.Extra, "extra offset")
		})
	}
}

func TestTranslatePosition_UnknownSpace(t *testing.T) {
	_, err := translatePosition(testTable(t), output.Space("liftover"), 1)
	assert.Error(t, err)
}

func TestStoreLookup(t *testing.T) {
	store, err := duckdb.Open("")
	require.NoError(t, err)
	defer store.Close()

	id, err := store.WriteSnapshot("calls.vcf", &snapshot.Snapshot{Chromosomes: []snapshot.Chromosome{
		{Name: "1", Tracks: []snapshot.Track{
			{Genome: "NA1", Entries: []offset.Entry{{Position: 10, NativeOffset: 2, MetaOffset: 2}}},
		}},
		{Name: "2", Tracks: []snapshot.Track{{Genome: "NA1"}}},
	}})
	require.NoError(t, err)
	lookup := storeLookup(store, id)

	tbl, err := lookup("NA1", "1")
	require.NoError(t, err)
	native, err := tbl.NativeOffsetAt(20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), native)

	// a variant-free chromosome translates as the identity
	tbl, err = lookup("NA1", "2")
	require.NoError(t, err)
	tr, err := translatePosition(tbl, output.Reference, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(500), tr.Native.Position)
	assert.Equal(t, int64(500), tr.Meta.Position)

	_, err = lookup("NA2", "2")
	assert.ErrorIs(t, err, engine.ErrUnknownGenome)
}

func TestParseSpace(t *testing.T) {
	for _, s := range []string{"reference", "native", "meta"} {
		sp, err := parseSpace(s)
		require.NoError(t, err)
		assert.Equal(t, output.Space(s), sp)
	}
	_, err := parseSpace("hg19")
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger("warn", false)
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	_, err = newLogger("loud", false)
	assert.Error(t, err)
}

func TestParseConfigValue(t *testing.T) {
	v, err := parseConfigValue("vcf.split_haplotypes", "yes")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = parseConfigValue("workers", "4")
	require.NoError(t, err)
	assert.Equal(t, 4, v)

	v, err = parseConfigValue("duckdb.path", "/tmp/offsets.duckdb")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/offsets.duckdb", v)

	_, err = parseConfigValue("workers", "-1")
	assert.Error(t, err)
	_, err = parseConfigValue("log.development", "maybe")
	assert.Error(t, err)
	_, err = parseConfigValue("annotations.alphamissense", "true")
	assert.Error(t, err)
}

func TestWritePadding(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writePadding(&buf, map[string]int64{"NA2": 0, "NA1": 3}))
	assert.Equal(t, "#Genome\tExtra_offset\nNA1\t3\nNA2\t0\n", buf.String())
}

func TestWriteBuilds(t *testing.T) {
	var buf bytes.Buffer
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, writeBuilds(&buf, []duckdb.Build{
		{ID: "b1", Source: "/data/a.vcf", CreatedAt: created, Chromosomes: 2, Genomes: 3},
	}))
	assert.Equal(t,
		"#Build\tCreated\tChromosomes\tGenomes\tSource\nb1\t2024-03-01T12:00:00Z\t2\t3\t/data/a.vcf\n",
		buf.String())
}
