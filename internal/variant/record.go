// Package variant defines the variant calls consumed by the coordinate engine.
//
// Readers that produce one sorted stream per genome, such as single-sample
// files, combine them with Merge before building; the VCF reader already
// emits one ascending stream for all samples and does not need it.
package variant

import "fmt"

// Type classifies a variant by the length difference of its alleles.
type Type int

const (
	Substitution Type = iota
	Insertion
	Deletion
)

func (t Type) String() string {
	switch t {
	case Substitution:
		return "SUBSTITUTION"
	case Insertion:
		return "INSERTION"
	case Deletion:
		return "DELETION"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Haplotype selects one allele track of a diploid genome.
type Haplotype int

const (
	FirstHaplotype Haplotype = iota
	SecondHaplotype
)

// Phase holds the genotype-derived flags of a call.
type Phase struct {
	Phased   bool
	OnFirst  bool
	OnSecond bool
}

// BothAlleles is the phase of a call present on both haplotypes.
var BothAlleles = Phase{OnFirst: true, OnSecond: true}

// Record is one called variant on one genome. Records are immutable; use
// NewRecord to build one.
type Record struct {
	genome string
	chrom  string
	start  int64
	ref    string
	alt    string
	phase  Phase
}

// NewRecord validates and returns a variant record. start is the 0-based
// reference locus at which the variant takes effect.
func NewRecord(genome, chrom string, start int64, ref, alt string, phase Phase) (*Record, error) {
	r := &Record{
		genome: genome,
		chrom:  chrom,
		start:  start,
		ref:    ref,
		alt:    alt,
		phase:  phase,
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate reports a *MalformedVariantError when the record shape is invalid.
// The zero Record is invalid.
func (r *Record) Validate() error {
	switch {
	case r == nil:
		return &MalformedVariantError{Reason: "nil record"}
	case r.genome == "":
		return r.malformed("empty genome id")
	case r.chrom == "":
		return r.malformed("empty chromosome")
	case r.start < 0:
		return r.malformed(fmt.Sprintf("negative reference start %d", r.start))
	case r.ref == "":
		return r.malformed("empty reference sequence")
	case r.alt == "":
		return r.malformed("empty alternate sequence")
	}
	return nil
}

func (r *Record) malformed(reason string) error {
	return &MalformedVariantError{
		Genome:     r.genome,
		Chromosome: r.chrom,
		Start:      r.start,
		Reason:     reason,
	}
}

func (r *Record) GenomeID() string          { return r.genome }
func (r *Record) Chromosome() string        { return r.chrom }
func (r *Record) Start() int64              { return r.start }
func (r *Record) ReferenceSequence() string { return r.ref }
func (r *Record) AlternateSequence() string { return r.alt }
func (r *Record) Phase() Phase              { return r.phase }
func (r *Record) IsPhased() bool            { return r.phase.Phased }
func (r *Record) IsOnFirstAllele() bool     { return r.phase.OnFirst }
func (r *Record) IsOnSecondAllele() bool    { return r.phase.OnSecond }

// VariantType returns the classification implied by the allele lengths.
func (r *Record) VariantType() Type {
	switch {
	case len(r.alt) > len(r.ref):
		return Insertion
	case len(r.alt) < len(r.ref):
		return Deletion
	default:
		return Substitution
	}
}

// NetLength returns the signed length change: positive for insertions,
// negative for deletions and zero for substitutions.
func (r *Record) NetLength() int64 {
	return int64(len(r.alt)) - int64(len(r.ref))
}

// AppliesTo reports whether the variant is carried by haplotype h. Unphased
// calls cannot be assigned to one allele, so a call on either allele applies
// to both tracks.
func (r *Record) AppliesTo(h Haplotype) bool {
	if !r.phase.Phased {
		return r.phase.OnFirst || r.phase.OnSecond
	}
	switch h {
	case FirstHaplotype:
		return r.phase.OnFirst
	case SecondHaplotype:
		return r.phase.OnSecond
	}
	return false
}

// WithGenome returns a copy of r assigned to another genome track.
func (r *Record) WithGenome(genome string) *Record {
	c := *r
	c.genome = genome
	return &c
}

func (r *Record) String() string {
	return fmt.Sprintf("%s:%s:%d %s>%s", r.genome, r.chrom, r.start, r.ref, r.alt)
}

// MalformedVariantError is returned for records that cannot be ingested.
// It is recoverable: the record is skipped.
type MalformedVariantError struct {
	Genome     string
	Chromosome string
	Start      int64
	Line       int // source line, 0 when unknown
	Reason     string
}

func (e *MalformedVariantError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed variant at line %d (%s:%d): %s", e.Line, e.Chromosome, e.Start, e.Reason)
	}
	return fmt.Sprintf("malformed variant %s:%s:%d: %s", e.Genome, e.Chromosome, e.Start, e.Reason)
}
