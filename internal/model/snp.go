package model

import (
	"biofilter/internal/loki"
)

// SNPModel is one unordered rs-number pair carrying its gene pair's score.
// A is always the smaller rs number.
type SNPModel struct {
	A, B  int64
	Score Score
}

// ExpandSNPs derives SNP-level models from gene-level models: each gene pair
// expands into the cross product of the input SNPs associated with its genes,
// inheriting the pair's score. Duplicate unordered rs pairs keep their first
// (highest-ranked) occurrence; the same maximum-count limit applies.
func ExpandSNPs(models []Model, geneSNPs map[loki.EntityID][]int64, max int) []SNPModel {
	seen := make(map[[2]int64]struct{})
	var out []SNPModel

	for _, m := range models {
		for _, ra := range geneSNPs[m.A] {
			for _, rb := range geneSNPs[m.B] {
				if ra == rb {
					continue
				}
				a, b := ra, rb
				if a > b {
					a, b = b, a
				}
				key := [2]int64{a, b}
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}
				out = append(out, SNPModel{A: a, B: b, Score: m.Score})
				if max > 0 && len(out) >= max {
					return out
				}
			}
		}
	}
	return out
}
