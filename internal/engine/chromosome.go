package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/inodb/vibe-sync/internal/offset"
	"github.com/inodb/vibe-sync/internal/variant"
)

// ReferenceGenome names the reference track of every chromosome.
const ReferenceGenome = "<reference>"

// ChromosomeStats summarises the build of one chromosome.
type ChromosomeStats struct {
	Name      string
	Records   int   // records ingested
	Skipped   int   // malformed records dropped
	Genomes   int   // genome tables
	Loci      int   // loci where the meta coordinate widens
	MetaWidth int64 // total meta padding at the chromosome end
}

// Chromosome holds the sealed offset tables of one chromosome. It is
// immutable and safe for concurrent use.
type Chromosome struct {
	name      string
	tables    map[string]*offset.Table
	genomes   []string
	reference *offset.Table
	stats     ChromosomeStats
}

func (c *Chromosome) Name() string           { return c.name }
func (c *Chromosome) Stats() ChromosomeStats { return c.stats }

// Reference returns the reference track, which has no native offsets.
func (c *Chromosome) Reference() *offset.Table { return c.reference }

// Genomes returns the genome ids in order of first appearance.
func (c *Chromosome) Genomes() []string {
	out := make([]string, len(c.genomes))
	copy(out, c.genomes)
	return out
}

// Table returns the sealed table of a genome.
func (c *Chromosome) Table(genome string) (*offset.Table, bool) {
	t, ok := c.tables[genome]
	return t, ok
}

// chromosomeBuild ingests one chromosome's merged stream.
type chromosomeBuild struct {
	name    string
	logger  *zap.Logger
	tables  map[string]*offset.Table
	genomes []string
	ledger  *metaLedger
	stats   ChromosomeStats
}

func newChromosomeBuild(name string, genomes []string, logger *zap.Logger) *chromosomeBuild {
	b := &chromosomeBuild{
		name:   name,
		logger: logger,
		tables: make(map[string]*offset.Table, len(genomes)),
		ledger: newMetaLedger(name),
		stats:  ChromosomeStats{Name: name},
	}
	for _, g := range genomes {
		b.table(g)
	}
	return b
}

func (b *chromosomeBuild) table(genome string) *offset.Table {
	t, ok := b.tables[genome]
	if !ok {
		t = offset.New(genome, b.name)
		b.tables[genome] = t
		b.genomes = append(b.genomes, genome)
	}
	return t
}

// run consumes src and seals every table. Cancellation is checked between
// records; on any error the partial tables are dropped.
func (b *chromosomeBuild) run(ctx context.Context, src variant.Source) (*Chromosome, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, cancelled(err)
		}
		rec, err := src.Next()
		if err == nil && rec == nil {
			break
		}
		if err == nil {
			err = b.ingest(rec)
		}
		if err != nil {
			var mv *variant.MalformedVariantError
			if errors.As(err, &mv) {
				b.skip(mv)
				continue
			}
			return nil, err
		}
	}
	return b.seal()
}

func (b *chromosomeBuild) ingest(rec *variant.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if rec.Chromosome() != b.name {
		return &variant.MalformedVariantError{
			Genome:     rec.GenomeID(),
			Chromosome: rec.Chromosome(),
			Start:      rec.Start(),
			Reason:     fmt.Sprintf("record in stream for chromosome %s", b.name),
		}
	}
	if err := b.ledger.observe(rec.GenomeID(), rec.Start(), rec.NetLength()); err != nil {
		return err
	}
	if err := b.table(rec.GenomeID()).Append(rec.Start(), rec.NetLength()); err != nil {
		return err
	}
	b.stats.Records++
	return nil
}

func (b *chromosomeBuild) skip(err *variant.MalformedVariantError) {
	b.stats.Skipped++
	b.logger.Warn("skipping malformed variant",
		zap.String("chrom", b.name),
		zap.String("genome", err.Genome),
		zap.Int64("pos", err.Start),
		zap.String("reason", err.Reason))
}

// seal back-fills the shared meta offsets into every table, including the
// reference track, so all tracks agree at every locus.
func (b *chromosomeBuild) seal() (*Chromosome, error) {
	steps := b.ledger.finish()
	reference := offset.New(ReferenceGenome, b.name)

	tracks := make([]*offset.Table, 0, len(b.genomes)+1)
	for _, g := range b.genomes {
		tracks = append(tracks, b.tables[g])
	}
	tracks = append(tracks, reference)

	var running int64
	cumulative := make([]int64, len(steps))
	for i, s := range steps {
		running += s.growth
		cumulative[i] = running
	}

	for _, t := range tracks {
		if err := t.Finish(); err != nil {
			return nil, err
		}
		for i, s := range steps {
			if err := t.SetMetaOffset(s.position, cumulative[i]); err != nil {
				return nil, err
			}
		}
		if err := t.Seal(); err != nil {
			return nil, err
		}
	}

	b.stats.Genomes = len(b.genomes)
	b.stats.Loci = len(steps)
	b.stats.MetaWidth = running

	b.logger.Debug("sealed chromosome",
		zap.String("chrom", b.name),
		zap.Int("records", b.stats.Records),
		zap.Int("genomes", b.stats.Genomes),
		zap.Int("loci", b.stats.Loci))

	return &Chromosome{
		name:      b.name,
		tables:    b.tables,
		genomes:   b.genomes,
		reference: reference,
		stats:     b.stats,
	}, nil
}
