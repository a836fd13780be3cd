package output

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/inodb/vibe-sync/internal/engine"
)

// WriteSummary writes one tab-delimited line per chromosome of a build
// report, sealed chromosomes first in build order, then failures by name.
func WriteSummary(w io.Writer, r *engine.Report) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(strings.Join([]string{
		"#Chromosome", "Status", "Records", "Skipped", "Genomes", "Loci", "Meta_width",
	}, "\t") + "\n")

	for _, c := range r.Chromosomes {
		fmt.Fprintf(bw, "%s\tSEALED\t%d\t%d\t%d\t%d\t%d\n",
			c.Name, c.Records, c.Skipped, c.Genomes, c.Loci, c.MetaWidth)
	}

	failed := make([]string, 0, len(r.Failed))
	for name := range r.Failed {
		failed = append(failed, name)
	}
	sort.Strings(failed)
	for _, name := range failed {
		fmt.Fprintf(bw, "%s\tFAILED\t-\t-\t-\t-\t-\n", name)
	}

	return bw.Flush()
}
