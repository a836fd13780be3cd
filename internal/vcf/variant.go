package vcf

import (
	"slices"
	"strings"
)

// Variant represents a single genomic variant from a VCF file. ID, QUAL,
// FILTER and INFO do not affect coordinates and are not kept.
type Variant struct {
	Chrom    string   // Chromosome name (e.g., "12", "chr12")
	Pos      int64    // 1-based genomic position
	Ref      string   // Reference allele
	Alt      string   // Alternate allele (single allele after splitting)
	AltIndex int      // 1-based index of Alt in the original ALT column
	Format   []string // FORMAT keys
	Samples  []string // raw sample columns, one per sample
}

// IsIndel returns true if the variant is an insertion or deletion.
func (v *Variant) IsIndel() bool {
	return len(v.Ref) != len(v.Alt)
}

// NormalizeChrom returns the chromosome name without "chr" prefix.
func (v *Variant) NormalizeChrom() string {
	if len(v.Chrom) > 3 && v.Chrom[:3] == "chr" {
		return v.Chrom[3:]
	}
	return v.Chrom
}

// Locus returns the 0-based reference position where the variant's length
// change takes effect: POS-1, moved past the bases an indel shares with its
// reference allele. Unnormalized calls such as ATG>ATGC are placed after the
// whole common prefix.
func (v *Variant) Locus() int64 {
	locus := v.Pos - 1
	if !v.IsIndel() {
		return locus
	}
	n := min(len(v.Ref), len(v.Alt))
	for i := 0; i < n && v.Ref[i] == v.Alt[i]; i++ {
		locus++
	}
	return locus
}

// SampleField returns a FORMAT field of the i-th sample.
func (v *Variant) SampleField(i int, key string) (string, bool) {
	idx := slices.Index(v.Format, key)
	if idx < 0 || i < 0 || i >= len(v.Samples) {
		return "", false
	}
	parts := strings.Split(v.Samples[i], ":")
	if idx >= len(parts) {
		return "", false
	}
	return parts[idx], true
}

// isSequence reports whether an allele is a plain nucleotide sequence, as
// opposed to a symbolic, breakend, spanning or missing allele.
func isSequence(allele string) bool {
	if allele == "" {
		return false
	}
	for i := 0; i < len(allele); i++ {
		switch allele[i] {
		case 'A', 'C', 'G', 'T', 'N', 'a', 'c', 'g', 't', 'n':
		default:
			return false
		}
	}
	return true
}
