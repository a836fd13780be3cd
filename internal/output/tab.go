// Package output provides tab-delimited formatters for translations and
// build summaries.
package output

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/vibe-sync/internal/translate"
)

// Space names a coordinate space.
type Space string

const (
	Reference Space = "reference"
	Native    Space = "native"
	Meta      Space = "meta"
)

// Translation is one queried position projected into every space.
type Translation struct {
	Genome    string
	Chrom     string
	From      Space
	Input     int64
	Reference translate.Result
	Native    translate.Result
	Meta      translate.Result
	Extra     int64 // meta padding at the reference position
}

// TabWriter writes translations in tab-delimited format.
type TabWriter struct {
	w       *bufio.Writer
	columns []string
}

// NewTabWriter creates a new tab-delimited writer.
func NewTabWriter(w io.Writer) *TabWriter {
	return &TabWriter{
		w: bufio.NewWriter(w),
		columns: []string{
			"#Genome",
			"Location",
			"From",
			"Reference",
			"Native",
			"Meta",
			"Extra_offset",
			"Clamped",
		},
	}
}

// WriteHeader writes the header line.
func (tw *TabWriter) WriteHeader() error {
	_, err := tw.w.WriteString(strings.Join(tw.columns, "\t") + "\n")
	return err
}

// Write writes a single translation.
func (tw *TabWriter) Write(t *Translation) error {
	clamped := "-"
	if t.Reference.Clamped || t.Native.Clamped || t.Meta.Clamped {
		clamped = "YES"
	}

	values := []string{
		t.Genome,
		t.Chrom + ":" + strconv.FormatInt(t.Input, 10),
		string(t.From),
		strconv.FormatInt(t.Reference.Position, 10),
		strconv.FormatInt(t.Native.Position, 10),
		strconv.FormatInt(t.Meta.Position, 10),
		strconv.FormatInt(t.Extra, 10),
		clamped,
	}

	_, err := tw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}
