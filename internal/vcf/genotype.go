package vcf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/inodb/vibe-sync/internal/variant"
)

// Genotype is a parsed GT field.
type Genotype struct {
	Alleles []int // allele indexes, -1 for missing
	Phased  bool
}

// ParseGenotype parses a GT value such as "0|1", "1/1", "1" or "./.".
// Haploid calls count as phased.
func ParseGenotype(gt string) (Genotype, error) {
	if gt == "" {
		return Genotype{}, fmt.Errorf("empty genotype")
	}

	g := Genotype{Phased: true}
	start := 0
	for i := 0; i <= len(gt); i++ {
		if i < len(gt) && gt[i] != '|' && gt[i] != '/' {
			continue
		}
		if i < len(gt) && gt[i] == '/' {
			g.Phased = false
		}

		tok := gt[start:i]
		start = i + 1
		if tok == "." {
			g.Alleles = append(g.Alleles, -1)
			continue
		}
		idx, err := strconv.Atoi(tok)
		if err != nil || idx < 0 {
			return Genotype{}, fmt.Errorf("invalid genotype %q", gt)
		}
		g.Alleles = append(g.Alleles, idx)
	}
	return g, nil
}

// Phase returns the phase flags of the given alt allele index.
func (g Genotype) Phase(alt int) variant.Phase {
	p := variant.Phase{Phased: g.Phased}
	if len(g.Alleles) > 0 {
		p.OnFirst = g.Alleles[0] == alt
	}
	if len(g.Alleles) > 1 {
		p.OnSecond = g.Alleles[1] == alt
	}
	return p
}

// Carries reports whether any allele is alt.
func (g Genotype) Carries(alt int) bool {
	for _, a := range g.Alleles {
		if a == alt {
			return true
		}
	}
	return false
}

func (g Genotype) String() string {
	sep := "/"
	if g.Phased {
		sep = "|"
	}
	parts := make([]string, len(g.Alleles))
	for i, a := range g.Alleles {
		if a < 0 {
			parts[i] = "."
		} else {
			parts[i] = strconv.Itoa(a)
		}
	}
	return strings.Join(parts, sep)
}
