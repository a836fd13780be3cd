package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-sync/internal/translate"
)

func TestTabWriter_WriteHeader(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)

	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.Flush())

	assert.Equal(t, "#Genome\tLocation\tFrom\tReference\tNative\tMeta\tExtra_offset\tClamped\n", buf.String())
}

func TestTabWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)

	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.Write(&Translation{
		Genome:    "X",
		Chrom:     "1",
		From:      Reference,
		Input:     200,
		Reference: translate.Result{Position: 200},
		Native:    translate.Result{Position: 202},
		Meta:      translate.Result{Position: 205},
		Extra:     3,
	}))
	require.NoError(t, w.Flush())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "X\t1:200\treference\t200\t202\t205\t3\t-", lines[1])
}

func TestTabWriter_Write_Clamped(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)

	require.NoError(t, w.Write(&Translation{
		Genome: "g1",
		Chrom:  "2",
		From:   Reference,
		Native: translate.Result{Position: 0, Clamped: true},
	}))
	require.NoError(t, w.Flush())

	assert.True(t, strings.HasSuffix(buf.String(), "\tYES\n"))
}
