package vcf

import (
	"errors"
	"fmt"
	"sort"

	"github.com/inodb/vibe-sync/internal/variant"
)

// DefaultGenome names the single track of a VCF without sample columns.
const DefaultGenome = "sites"

// RecordOptions configures how VCF rows become variant records.
type RecordOptions struct {
	// SplitHaplotypes emits one track per haplotype, named "<sample>#1" and
	// "<sample>#2", instead of one track per sample.
	SplitHaplotypes bool
}

// RecordSource turns VCF rows into variant records, one per genome track
// and alt allele carried by its genotype. It implements variant.Source.
//
// Records from rows sharing a POS are ordered by locus before they are
// emitted; rows are never reordered otherwise.
type RecordSource struct {
	parser  VariantParser
	opts    RecordOptions
	samples []string

	group      []*variant.Record
	groupChrom string
	groupPos   int64
	ready      []*variant.Record
	pending    error
	done       bool
}

// NewRecordSource creates a record source reading from p.
func NewRecordSource(p VariantParser, opts RecordOptions) *RecordSource {
	return &RecordSource{
		parser:  p,
		opts:    opts,
		samples: p.SampleNames(),
	}
}

// Genomes returns the genome track ids the source can emit.
func (s *RecordSource) Genomes() []string {
	if len(s.samples) == 0 {
		return []string{DefaultGenome}
	}
	var out []string
	for _, sample := range s.samples {
		if s.opts.SplitHaplotypes {
			out = append(out, haplotypeTrack(sample, variant.FirstHaplotype), haplotypeTrack(sample, variant.SecondHaplotype))
		} else {
			out = append(out, sample)
		}
	}
	return out
}

// Next returns the next record, or nil at end of file. Unparseable rows and
// unsupported alleles yield a *variant.MalformedVariantError; reading can
// continue after it.
func (s *RecordSource) Next() (*variant.Record, error) {
	for {
		if len(s.ready) > 0 {
			rec := s.ready[0]
			s.ready = s.ready[1:]
			return rec, nil
		}
		if s.pending != nil {
			err := s.pending
			s.pending = nil
			return nil, err
		}
		if s.done {
			return nil, nil
		}

		v, err := s.parser.Next()
		if err != nil {
			var pe *ParseError
			if errors.As(err, &pe) {
				return nil, &variant.MalformedVariantError{Line: pe.Line, Reason: pe.Message}
			}
			return nil, err
		}
		if v == nil {
			s.done = true
			s.release()
			continue
		}

		if v.Chrom != s.groupChrom || v.Pos != s.groupPos {
			s.release()
			s.groupChrom, s.groupPos = v.Chrom, v.Pos
		}
		// A malformed row is reported once the records before it are out.
		s.pending = s.collect(v)
	}
}

// release moves the current POS group to the output, ordered by locus.
func (s *RecordSource) release() {
	sort.SliceStable(s.group, func(i, j int) bool {
		return s.group[i].Start() < s.group[j].Start()
	})
	s.ready = append(s.ready, s.group...)
	s.group = nil
}

// collect adds the records of one row to the current group. The first
// malformed allele or genotype is reported after the rest of the row is
// collected.
func (s *RecordSource) collect(v *Variant) error {
	var bad error
	malformed := func(reason string) {
		if bad == nil {
			bad = &variant.MalformedVariantError{
				Chromosome: v.Chrom,
				Start:      v.Pos - 1,
				Line:       s.parser.LineNumber(),
				Reason:     reason,
			}
		}
	}

	chrom := v.NormalizeChrom()
	for _, alt := range SplitMultiAllelic(v) {
		if !isSequence(alt.Ref) || !isSequence(alt.Alt) {
			malformed(fmt.Sprintf("unsupported allele %s>%s", alt.Ref, alt.Alt))
			continue
		}
		locus := alt.Locus()

		if len(s.samples) == 0 {
			s.add(DefaultGenome, chrom, locus, alt, variant.BothAlleles)
			continue
		}

		for i, sample := range s.samples {
			gtField, ok := alt.SampleField(i, "GT")
			if !ok {
				continue
			}
			gt, err := ParseGenotype(gtField)
			if err != nil {
				malformed(err.Error())
				continue
			}
			if !gt.Carries(alt.AltIndex) {
				continue
			}
			phase := gt.Phase(alt.AltIndex)

			if !s.opts.SplitHaplotypes {
				s.add(sample, chrom, locus, alt, phase)
				continue
			}
			rec, err := variant.NewRecord(sample, chrom, locus, alt.Ref, alt.Alt, phase)
			if err != nil {
				malformed(err.Error())
				continue
			}
			for _, h := range []variant.Haplotype{variant.FirstHaplotype, variant.SecondHaplotype} {
				if rec.AppliesTo(h) {
					s.group = append(s.group, rec.WithGenome(haplotypeTrack(sample, h)))
				}
			}
		}
	}
	return bad
}

func (s *RecordSource) add(genome, chrom string, locus int64, v *Variant, phase variant.Phase) {
	rec, err := variant.NewRecord(genome, chrom, locus, v.Ref, v.Alt, phase)
	if err != nil {
		// alleles and locus were checked above
		return
	}
	s.group = append(s.group, rec)
}

func haplotypeTrack(sample string, h variant.Haplotype) string {
	return fmt.Sprintf("%s#%d", sample, int(h)+1)
}
