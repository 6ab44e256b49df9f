package resolve

import (
	"sort"
	"strconv"

	"biofilter/internal/loki"
	"biofilter/internal/logging"
)

// Tally accumulates resolution statistics across a run.
type Tally struct {
	Zero int // identifiers matching no entity
	One  int // clean single-entity matches
	Many int // ambiguous matches
}

// Resolver maps input identifiers to knowledge entities. It is safe for
// concurrent use only after all Resolve calls complete; the tally is not
// synchronized.
type Resolver struct {
	store          loki.Store
	logger         *logging.Logger
	heuristic      Heuristic
	allowAmbiguous bool
	tally          Tally
}

// NewResolver creates a resolver over the given knowledge store. heuristic
// and allowAmbiguous apply only to group-membership reduction, never to user
// input lookups.
func NewResolver(store loki.Store, logger *logging.Logger, heuristic Heuristic, allowAmbiguous bool) *Resolver {
	return &Resolver{
		store:          store,
		logger:         logger,
		heuristic:      heuristic,
		allowAmbiguous: allowAmbiguous,
	}
}

// Tally returns the resolution statistics accumulated so far.
func (r *Resolver) Tally() Tally {
	return r.tally
}

// Resolve maps one input identifier to its candidate entities. A miss is not
// an error; it yields an empty set and is counted in the tally.
func (r *Resolver) Resolve(kind loki.Kind, dt DeclaredType, value string) ([]loki.EntityID, error) {
	var ids []loki.EntityID
	var err error

	switch dt.Class {
	case InternalID:
		n, perr := strconv.ParseInt(value, 10, 64)
		if perr == nil && n > 0 {
			ids = []loki.EntityID{loki.EntityID(n)}
		}
	case PrimaryLabel:
		ids, err = r.store.LookupLabel(kind, value)
	case NamedType:
		ids, err = r.store.Lookup(kind, dt.Name, value)
	default:
		ids, err = r.store.Lookup(kind, "", value)
	}
	if err != nil {
		return nil, err
	}

	switch len(ids) {
	case 0:
		r.tally.Zero++
		r.logger.Debug("Identifier matched no entities", map[string]interface{}{
			"kind":  kind.String(),
			"type":  dt.String(),
			"value": value,
		})
	case 1:
		r.tally.One++
	default:
		r.tally.Many++
	}
	return ids, nil
}

// ResolveMember reduces one group membership record to its winner gene set.
// With ambiguity disallowed, anything short of a single un-tied winner yields
// nil and the member contributes nothing.
func (r *Resolver) ResolveMember(m loki.Member) []loki.EntityID {
	names := m.Names

	// A protein identifier legitimately names several genes. When any name on
	// the member is protein-typed the non-protein names are discarded, and
	// protein names always contribute weight 1 apiece.
	protein := false
	for _, n := range names {
		if n.Protein {
			protein = true
			break
		}
	}
	if protein {
		kept := names[:0:0]
		for _, n := range names {
			if n.Protein {
				kept = append(kept, n)
			}
		}
		names = kept
	}

	candidates := make(map[loki.EntityID]struct{})
	for _, n := range names {
		for _, g := range n.Genes {
			candidates[g] = struct{}{}
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	if len(candidates) == 1 {
		for g := range candidates {
			return []loki.EntityID{g}
		}
	}

	var winners map[loki.EntityID]struct{}
	switch r.heuristic {
	case ReduceImplication:
		winners = scoreWinners(names, false)
	case ReduceQuality:
		winners = scoreWinners(names, true)
	case ReduceAny:
		winners = scoreWinners(names, false)
		for g := range scoreWinners(names, true) {
			winners[g] = struct{}{}
		}
	default:
		winners = candidates
	}

	if !r.allowAmbiguous && len(winners) > 1 {
		r.logger.Debug("Ambiguous member dropped", map[string]interface{}{
			"group":      int64(m.GroupID),
			"member":     m.MemberID,
			"candidates": len(candidates),
			"winners":    len(winners),
		})
		return nil
	}

	out := make([]loki.EntityID, 0, len(winners))
	for g := range winners {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// scoreWinners runs one scoring pass over a member's identifiers and returns
// the entities attaining the maximum score. With weighted=false each
// identifier contributes 1 to every gene it implicates (implication); with
// weighted=true the contribution is split across the genes it implicates
// (quality). Protein identifiers contribute 1 either way.
func scoreWinners(names []loki.MemberName, weighted bool) map[loki.EntityID]struct{} {
	scores := make(map[loki.EntityID]float64)
	for _, n := range names {
		if len(n.Genes) == 0 {
			continue
		}
		w := 1.0
		if weighted && !n.Protein {
			w = 1.0 / float64(len(n.Genes))
		}
		for _, g := range n.Genes {
			scores[g] += w
		}
	}

	best := 0.0
	for _, s := range scores {
		if s > best {
			best = s
		}
	}
	winners := make(map[loki.EntityID]struct{})
	for g, s := range scores {
		if s == best {
			winners[g] = struct{}{}
		}
	}
	return winners
}
