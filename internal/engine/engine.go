// Package engine synchronizes reference, native and meta coordinates across
// all genomes of a project.
package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/inodb/vibe-sync/internal/offset"
	"github.com/inodb/vibe-sync/internal/translate"
	"github.com/inodb/vibe-sync/internal/variant"
)

// ChromosomeInput is the merged, ascending variant stream of one chromosome.
type ChromosomeInput struct {
	Name   string
	Source variant.Source
}

// Input describes one build. Every genome in Genomes gets a table on every
// chromosome, even without calls there.
type Input struct {
	Genomes     []string
	Chromosomes []ChromosomeInput
}

// Report summarises a build.
type Report struct {
	Chromosomes []ChromosomeStats
	Failed      map[string]error
	Skipped     int // malformed records dropped before chromosome assignment
}

// Records returns the number of ingested records.
func (r *Report) Records() int {
	n := 0
	for _, c := range r.Chromosomes {
		n += c.Records
	}
	return n
}

// SkippedTotal returns every malformed record dropped by the build.
func (r *Report) SkippedTotal() int {
	n := r.Skipped
	for _, c := range r.Chromosomes {
		n += c.Skipped
	}
	return n
}

// project is one published, read-only build.
type project struct {
	chromosomes map[string]*Chromosome
	order       []string
	failed      map[string]error
}

// Engine owns the offset tables of a project. Builds replace the published
// project as a whole; queries read whichever project is current and never
// take locks.
type Engine struct {
	logger  *zap.Logger
	workers int

	building sync.Mutex
	current  atomic.Pointer[project]
}

// New creates an engine with no project loaded.
func New() *Engine {
	return &Engine{logger: zap.NewNop()}
}

// SetLogger sets the logger for build diagnostics.
func (e *Engine) SetLogger(l *zap.Logger) {
	e.logger = l
}

// SetWorkers bounds the number of chromosomes built concurrently.
// If workers is 0, runtime.NumCPU() is used.
func (e *Engine) SetWorkers(workers int) {
	e.workers = workers
}

func (e *Engine) workerCount() int {
	if e.workers <= 0 {
		return runtime.NumCPU()
	}
	return e.workers
}

// Build constructs and seals the tables of every chromosome, one worker per
// chromosome, and publishes them once all workers are done.
//
// A chromosome whose input is out of order is dropped and reported in a
// *BuildError; the others are still published. Cancellation and invariant
// violations abort the whole build and publish nothing.
func (e *Engine) Build(ctx context.Context, in Input) (*Report, error) {
	e.building.Lock()
	defer e.building.Unlock()

	seen := make(map[string]bool, len(in.Chromosomes))
	for _, c := range in.Chromosomes {
		if seen[c.Name] {
			return nil, fmt.Errorf("duplicate chromosome %q in build input", c.Name)
		}
		seen[c.Name] = true
	}

	results := make([]*Chromosome, len(in.Chromosomes))
	failures := make([]error, len(in.Chromosomes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workerCount())

	for i, ci := range in.Chromosomes {
		g.Go(func() error {
			b := newChromosomeBuild(ci.Name, in.Genomes, e.logger)
			c, err := b.run(gctx, ci.Source)
			switch {
			case err == nil:
				results[i] = c
			case errors.Is(err, ErrCancelled):
				return err
			case isInvariantViolation(err):
				e.logger.DPanic("offset invariant violated",
					zap.String("chrom", ci.Name),
					zap.Error(err))
				return err
			default:
				e.logger.Error("chromosome build failed",
					zap.String("chrom", ci.Name),
					zap.Error(err))
				failures[i] = err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, ErrCancelled) {
			e.logger.Info("build cancelled")
		}
		return nil, err
	}

	p := &project{
		chromosomes: make(map[string]*Chromosome, len(results)),
		failed:      make(map[string]error),
	}
	report := &Report{Failed: make(map[string]error)}
	for i, c := range results {
		if c == nil {
			p.failed[in.Chromosomes[i].Name] = failures[i]
			report.Failed[in.Chromosomes[i].Name] = failures[i]
			continue
		}
		p.chromosomes[c.name] = c
		p.order = append(p.order, c.name)
		report.Chromosomes = append(report.Chromosomes, c.stats)
	}
	e.current.Store(p)

	e.logger.Info("build complete",
		zap.Int("chromosomes", len(p.order)),
		zap.Int("failed", len(p.failed)),
		zap.Int("records", report.Records()))

	if len(report.Failed) > 0 {
		return report, &BuildError{Failures: report.Failed}
	}
	return report, nil
}

// BuildFromSource splits an ascending multi-chromosome stream, such as a
// sorted VCF, into per-chromosome inputs and builds them.
func (e *Engine) BuildFromSource(ctx context.Context, genomes []string, src variant.Source) (*Report, error) {
	byChrom := make(map[string][]*variant.Record)
	var order []string
	skipped := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, cancelled(err)
		}
		rec, err := src.Next()
		if err == nil && rec == nil {
			break
		}
		if err == nil {
			err = rec.Validate()
		}
		if err != nil {
			var mv *variant.MalformedVariantError
			if errors.As(err, &mv) {
				skipped++
				e.logger.Warn("skipping malformed variant",
					zap.String("chrom", mv.Chromosome),
					zap.Int("line", mv.Line),
					zap.String("reason", mv.Reason))
				continue
			}
			return nil, fmt.Errorf("read variants: %w", err)
		}

		chrom := rec.Chromosome()
		if _, ok := byChrom[chrom]; !ok {
			order = append(order, chrom)
		}
		byChrom[chrom] = append(byChrom[chrom], rec)
	}

	in := Input{Genomes: genomes}
	for _, chrom := range order {
		in.Chromosomes = append(in.Chromosomes, ChromosomeInput{
			Name:   chrom,
			Source: variant.NewSliceSource(byChrom[chrom]...),
		})
	}

	report, err := e.Build(ctx, in)
	if report != nil {
		report.Skipped += skipped
	}
	return report, err
}

// Discard unpublishes the current project. Queries report not ready until
// the next build.
func (e *Engine) Discard() {
	e.current.Store(nil)
}

// Ready reports whether a project has been published.
func (e *Engine) Ready() bool {
	return e.current.Load() != nil
}

// IsSealed reports whether chrom is built and queryable.
func (e *Engine) IsSealed(chrom string) bool {
	p := e.current.Load()
	if p == nil {
		return false
	}
	_, ok := p.chromosomes[chrom]
	return ok
}

// Chromosomes returns the sealed chromosome names in build order.
func (e *Engine) Chromosomes() []string {
	p := e.current.Load()
	if p == nil {
		return nil
	}
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// Chromosome returns a sealed chromosome.
func (e *Engine) Chromosome(name string) (*Chromosome, error) {
	p := e.current.Load()
	if p == nil {
		return nil, &offset.NotReadyError{Chromosome: name, State: offset.Open}
	}
	c, ok := p.chromosomes[name]
	if ok {
		return c, nil
	}
	if err, failed := p.failed[name]; failed {
		return nil, fmt.Errorf("chromosome %s failed to build: %w", name, err)
	}
	return nil, fmt.Errorf("chromosome %s: %w", name, ErrUnknownChromosome)
}

// Table returns the sealed table of genome on chrom.
func (e *Engine) Table(genome, chrom string) (*offset.Table, error) {
	c, err := e.Chromosome(chrom)
	if err != nil {
		return nil, err
	}
	t, ok := c.Table(genome)
	if !ok {
		return nil, fmt.Errorf("genome %s on %s: %w", genome, chrom, ErrUnknownGenome)
	}
	return t, nil
}

func (e *Engine) translate(genome, chrom string, pos int64, fn func(*offset.Table, int64) (translate.Result, error)) (translate.Result, error) {
	t, err := e.Table(genome, chrom)
	if err != nil {
		return translate.Result{}, err
	}
	return fn(t, pos)
}

// ToNative maps a reference position to genome's native coordinate.
func (e *Engine) ToNative(genome, chrom string, ref int64) (translate.Result, error) {
	return e.translate(genome, chrom, ref, translate.ToNative)
}

// ToReferenceFromNative maps a native position of genome to the reference.
func (e *Engine) ToReferenceFromNative(genome, chrom string, native int64) (translate.Result, error) {
	return e.translate(genome, chrom, native, translate.ToReferenceFromNative)
}

// ToMeta maps a reference position to the meta coordinate of chrom.
func (e *Engine) ToMeta(genome, chrom string, ref int64) (translate.Result, error) {
	return e.translate(genome, chrom, ref, translate.ToMeta)
}

// ToReferenceFromMeta maps a meta position back to the reference.
func (e *Engine) ToReferenceFromMeta(genome, chrom string, meta int64) (translate.Result, error) {
	return e.translate(genome, chrom, meta, translate.ToReferenceFromMeta)
}

// NativeToMeta maps a native position of genome into meta space.
func (e *Engine) NativeToMeta(genome, chrom string, native int64) (translate.Result, error) {
	return e.translate(genome, chrom, native, translate.NativeToMeta)
}

// ReferenceToMeta places a reference position on the meta coordinate.
func (e *Engine) ReferenceToMeta(chrom string, ref int64) (translate.Result, error) {
	c, err := e.Chromosome(chrom)
	if err != nil {
		return translate.Result{}, err
	}
	return translate.ToMeta(c.reference, ref)
}

// MetaToReference maps a meta position to the reference.
func (e *Engine) MetaToReference(chrom string, meta int64) (translate.Result, error) {
	c, err := e.Chromosome(chrom)
	if err != nil {
		return translate.Result{}, err
	}
	return translate.ToReferenceFromMeta(c.reference, meta)
}
