// Package paris implements the pathway permutation analysis: input SNPs and
// positions are folded into LD-block features, features are stratified into
// size bins, and each group's significant-feature count is compared against
// permuted draws from those bins to produce an empirical p-value.
package paris

import (
	"fmt"

	"biofilter/internal/interval"
	"biofilter/internal/loki"
)

// State tracks a group or gene analysis through its phases.
type State int

const (
	StateInit State = iota
	StateFingerprintBuilt
	StateBinned
	StatePermuting
	StateCompleted
	StateEarlyStopped
	StateDegenerate
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateFingerprintBuilt:
		return "fingerprint"
	case StateBinned:
		return "binned"
	case StatePermuting:
		return "permuting"
	case StateCompleted:
		return "completed"
	case StateEarlyStopped:
		return "early-stopped"
	case StateDegenerate:
		return "degenerate"
	}
	return "unknown"
}

// Bound qualifies how a reported p-value relates to the true one.
type Bound int

const (
	// Exact is an empirical p-value measured to full permutation resolution.
	Exact Bound = iota
	// LessThan marks zero permutation successes: the true p-value is below
	// the resolution floor 1/N.
	LessThan
	// AtLeast marks an early-stopped run: only a lower bound is known.
	AtLeast
	// Undefined marks a degenerate run with no features to permute.
	Undefined
)

// PValue is an empirical p-value or its bound.
type PValue struct {
	Value float64
	Bound Bound
}

func (p PValue) String() string {
	switch p.Bound {
	case LessThan:
		return fmt.Sprintf("< %g", p.Value)
	case AtLeast:
		return fmt.Sprintf(">= %g", p.Value)
	case Undefined:
		return "NA"
	}
	return fmt.Sprintf("%g", p.Value)
}

// Input is one SNP or position carrying its association p-value. Chr and Pos
// are already validated against the knowledge store by the caller; a zero
// p-value is meaningful and handled by the zero-p policy.
type Input struct {
	Label string
	Chr   int
	Pos   int
	P     float64
}

// Feature is an LD-block region together with the inputs that fell inside
// it. Size counts matched inputs, not basepairs; a feature with more than
// one input is complex.
type Feature struct {
	Region      interval.Region
	Size        int
	Significant bool
}

// Complex reports whether more than one input matched the feature.
func (f Feature) Complex() bool {
	return f.Size > 1
}

// Fingerprint aggregates a group's or gene's feature counts, deduplicated by
// feature identity.
type Fingerprint struct {
	Features   int
	Simple     int
	SimpleSig  int
	Complex    int
	ComplexSig int
}

// GeneResult is one gene's sub-run in detail mode.
type GeneResult struct {
	Gene        loki.EntityID
	Label       string
	Fingerprint Fingerprint
	P           PValue
	State       State
}

// GroupResult is the outcome of one group's permutation run.
type GroupResult struct {
	Group       loki.EntityID
	Label       string
	GeneCount   int
	Fingerprint Fingerprint
	P           PValue
	State       State
	Genes       []GeneResult // populated in detail mode
}

func fingerprintOf(features []Feature, idxs []int) Fingerprint {
	var fp Fingerprint
	for _, i := range idxs {
		f := features[i]
		fp.Features++
		if f.Complex() {
			fp.Complex++
			if f.Significant {
				fp.ComplexSig++
			}
		} else {
			fp.Simple++
			if f.Significant {
				fp.SimpleSig++
			}
		}
	}
	return fp
}
