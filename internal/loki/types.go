// Package loki provides the read-only query surface over a compiled LOKI
// prior-knowledge database: entities (genes, groups, sources, SNPs), their
// identifiers, genomic regions, and group membership records. The engine
// consumes this surface only; building the database is a separate pipeline.
package loki

import "strconv"

// EntityID is the stable integer identity of a knowledge entity within one
// compiled database. For SNPs the id is the current rs number.
type EntityID int64

// Kind selects which class of entity an identifier lookup targets.
type Kind int

const (
	// KindGene targets biopolymer records
	KindGene Kind = iota
	// KindGroup targets group (pathway) records
	KindGroup
	// KindSource targets knowledge source records
	KindSource
	// KindSNP targets rs-number records
	KindSNP
)

func (k Kind) String() string {
	switch k {
	case KindGene:
		return "gene"
	case KindGroup:
		return "group"
	case KindSource:
		return "source"
	case KindSNP:
		return "snp"
	}
	return "unknown"
}

// Entity is the capability surface shared by all knowledge entities.
type Entity interface {
	ID() EntityID
	Label() string
}

// MemberName is one identifier attached to a group member, together with the
// gene entities it implicates. Protein marks identifiers from a polygenic
// namespace: a protein name may legitimately map to several genes.
type MemberName struct {
	Type    string
	Value   string
	Protein bool
	Genes   []EntityID
}

// Member is one membership record of a group: the set of identifiers the
// source used to name a (possibly ambiguous) gene.
type Member struct {
	GroupID  EntityID
	MemberID int
	Names    []MemberName
}

// Locus is a single SNP placement.
type Locus struct {
	Chr int
	Pos int
}

// chromosome numbering follows the knowledge database: 1-22, then X, Y, XY
// pseudoautosomal, and MT
var chrNum = map[string]int{
	"X": 23, "Y": 24, "XY": 25, "MT": 26, "M": 26,
}

var chrName = map[int]string{
	23: "X", 24: "Y", 25: "XY", 26: "MT",
}

// ParseChromosome converts a chromosome token ("7", "chr7", "X", "chrX")
// into its numeric code, or 0 when unrecognized.
func ParseChromosome(s string) int {
	if len(s) > 3 && (s[:3] == "chr" || s[:3] == "CHR" || s[:3] == "Chr") {
		s = s[3:]
	}
	if n, ok := chrNum[s]; ok {
		return n
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 26 {
		return 0
	}
	return n
}

// ParseRS extracts the numeric rs identifier from a SNP token ("rs12345",
// "RS12345", or a bare number).
func ParseRS(s string) (int64, bool) {
	if len(s) > 2 && (s[:2] == "rs" || s[:2] == "RS" || s[:2] == "Rs") {
		s = s[2:]
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// ChromosomeName renders a numeric chromosome code back to its display name.
func ChromosomeName(n int) string {
	if s, ok := chrName[n]; ok {
		return s
	}
	if n >= 1 && n <= 22 {
		return strconv.Itoa(n)
	}
	return "?"
}
