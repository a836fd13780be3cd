package output

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-sync/internal/engine"
)

func TestWriteSummary(t *testing.T) {
	r := &engine.Report{
		Chromosomes: []engine.ChromosomeStats{
			{Name: "1", Records: 10, Skipped: 1, Genomes: 2, Loci: 3, MetaWidth: 7},
			{Name: "X", Records: 2, Genomes: 2},
		},
		Failed: map[string]error{
			"7": errors.New("out of order"),
			"2": errors.New("out of order"),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, r))

	assert.Equal(t,
		"#Chromosome\tStatus\tRecords\tSkipped\tGenomes\tLoci\tMeta_width\n"+
			"1\tSEALED\t10\t1\t2\t3\t7\n"+
			"X\tSEALED\t2\t0\t2\t0\t0\n"+
			"2\tFAILED\t-\t-\t-\t-\t-\n"+
			"7\tFAILED\t-\t-\t-\t-\t-\n",
		buf.String())
}
