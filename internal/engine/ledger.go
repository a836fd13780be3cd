package engine

import "github.com/inodb/vibe-sync/internal/offset"

// ledgerStep is a locus where the meta coordinate widens.
type ledgerStep struct {
	position int64
	growth   int64
}

// metaLedger tracks, across all genomes of one chromosome, the widest
// insertion at each locus. It relies on the merged stream being ascending:
// once the locus advances, the previous locus is final.
type metaLedger struct {
	chrom   string
	steps   []ledgerStep
	locus   int64
	started bool
	totals  map[string]int64 // net length per genome at the current locus
}

func newMetaLedger(chrom string) *metaLedger {
	return &metaLedger{chrom: chrom, totals: make(map[string]int64)}
}

// observe records net length for genome at pos.
func (l *metaLedger) observe(genome string, pos, net int64) error {
	if l.started && pos < l.locus {
		return &offset.OutOfOrderInputError{Genome: genome, Chromosome: l.chrom, Position: pos, Last: l.locus}
	}
	if !l.started || pos > l.locus {
		l.flush()
		l.locus, l.started = pos, true
	}
	l.totals[genome] += net
	return nil
}

// flush closes the current locus. Deletions never narrow the meta space.
func (l *metaLedger) flush() {
	if !l.started {
		return
	}
	var growth int64
	for _, net := range l.totals {
		growth = max(growth, net)
	}
	if growth > 0 {
		l.steps = append(l.steps, ledgerStep{position: l.locus, growth: growth})
	}
	clear(l.totals)
}

// finish closes the last locus and returns the steps in ascending order.
func (l *metaLedger) finish() []ledgerStep {
	l.flush()
	l.started = false
	return l.steps
}
