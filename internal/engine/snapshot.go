package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/inodb/vibe-sync/internal/offset"
	"github.com/inodb/vibe-sync/internal/snapshot"
)

// Snapshot captures the published project. The reference tracks are not
// stored; Restore derives them.
func (e *Engine) Snapshot() (*snapshot.Snapshot, error) {
	p := e.current.Load()
	if p == nil {
		return nil, &offset.NotReadyError{State: offset.Open}
	}

	s := &snapshot.Snapshot{Chromosomes: make([]snapshot.Chromosome, 0, len(p.order))}
	for _, name := range p.order {
		c := p.chromosomes[name]
		sc := snapshot.Chromosome{Name: name, Tracks: make([]snapshot.Track, 0, len(c.genomes))}
		for _, g := range c.genomes {
			entries, err := c.tables[g].Entries()
			if err != nil {
				return nil, err
			}
			sc.Tracks = append(sc.Tracks, snapshot.Track{Genome: g, Entries: entries})
		}
		s.Chromosomes = append(s.Chromosomes, sc)
	}
	return s, nil
}

// Restore publishes a project from a snapshot. Every table is validated and
// the tracks of each chromosome must agree on the meta offset at every
// entry; otherwise nothing is published.
func (e *Engine) Restore(s *snapshot.Snapshot) error {
	e.building.Lock()
	defer e.building.Unlock()

	p := &project{
		chromosomes: make(map[string]*Chromosome, len(s.Chromosomes)),
		failed:      make(map[string]error),
	}
	for _, sc := range s.Chromosomes {
		if _, dup := p.chromosomes[sc.Name]; dup {
			return fmt.Errorf("duplicate chromosome %q in snapshot", sc.Name)
		}
		c, err := restoreChromosome(sc)
		if err != nil {
			return fmt.Errorf("restore %s: %w", sc.Name, err)
		}
		p.chromosomes[sc.Name] = c
		p.order = append(p.order, sc.Name)
	}

	e.current.Store(p)
	e.logger.Info("restored snapshot", zap.Int("chromosomes", len(p.order)))
	return nil
}

func restoreChromosome(sc snapshot.Chromosome) (*Chromosome, error) {
	c := &Chromosome{
		name:   sc.Name,
		tables: make(map[string]*offset.Table, len(sc.Tracks)),
		stats:  ChromosomeStats{Name: sc.Name, Genomes: len(sc.Tracks)},
	}
	for _, tr := range sc.Tracks {
		if _, dup := c.tables[tr.Genome]; dup {
			return nil, fmt.Errorf("duplicate genome %q", tr.Genome)
		}
		t, err := offset.FromEntries(tr.Genome, sc.Name, tr.Entries)
		if err != nil {
			return nil, err
		}
		c.tables[tr.Genome] = t
		c.genomes = append(c.genomes, tr.Genome)
	}

	// Every track carries an entry at each locus where meta widens, so the
	// steps of any one track rebuild the reference.
	var steps []offset.Entry
	if len(c.genomes) > 0 {
		var prev int64
		for _, en := range sc.Tracks[0].Entries {
			if en.MetaOffset != prev {
				steps = append(steps, offset.Entry{Position: en.Position, MetaOffset: en.MetaOffset})
				prev = en.MetaOffset
			}
		}
	}
	ref, err := offset.FromEntries(ReferenceGenome, sc.Name, steps)
	if err != nil {
		return nil, err
	}
	c.reference = ref
	c.stats.Loci = len(steps)
	if len(steps) > 0 {
		c.stats.MetaWidth = steps[len(steps)-1].MetaOffset
	}

	for _, g := range c.genomes {
		if err := checkSynchronized(c.tables[g], ref); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// checkSynchronized verifies that t and the reference agree on the meta
// offset at every entry of either table.
func checkSynchronized(t, ref *offset.Table) error {
	check := func(pos int64) error {
		a, err := t.MetaOffsetAt(pos)
		if err != nil {
			return err
		}
		b, err := ref.MetaOffsetAt(pos)
		if err != nil {
			return err
		}
		if a != b {
			return &offset.InvariantViolationError{
				Genome:     t.Genome(),
				Chromosome: t.Chromosome(),
				Position:   pos,
				Message:    fmt.Sprintf("meta offset %d differs from shared %d", a, b),
			}
		}
		return nil
	}
	for i := range t.Len() {
		if err := check(t.Entry(i).Position); err != nil {
			return err
		}
	}
	for i := range ref.Len() {
		if err := check(ref.Entry(i).Position); err != nil {
			return err
		}
	}
	return nil
}
