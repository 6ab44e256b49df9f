package resolve

import (
	"sort"

	"biofilter/internal/loki"
)

// Membership is an immutable snapshot of resolved group membership, built
// once per run before the hot phases begin. All slices are sorted by id so
// downstream consumers see deterministic order.
type Membership struct {
	GroupGenes  map[loki.EntityID][]loki.EntityID
	GeneGroups  map[loki.EntityID][]loki.EntityID
	GroupSource map[loki.EntityID]loki.EntityID
	GroupLabel  map[loki.EntityID]string

	DroppedMembers int // members with no un-tied winner
}

// BuildMembership resolves every listed group's members into the snapshot.
// Groups whose members all fail to resolve still appear, with an empty gene
// set.
func (r *Resolver) BuildMembership(groups []loki.EntityID) (*Membership, error) {
	r.logger.Push("Resolving group membership", map[string]interface{}{
		"groups":    len(groups),
		"heuristic": r.heuristic.String(),
	})

	ms := &Membership{
		GroupGenes:  make(map[loki.EntityID][]loki.EntityID, len(groups)),
		GeneGroups:  make(map[loki.EntityID][]loki.EntityID),
		GroupSource: make(map[loki.EntityID]loki.EntityID, len(groups)),
		GroupLabel:  make(map[loki.EntityID]string, len(groups)),
	}

	for _, group := range groups {
		members, err := r.store.GroupMembers(group)
		if err != nil {
			r.logger.Pop("failed resolving group membership", nil)
			return nil, err
		}

		geneSet := make(map[loki.EntityID]struct{})
		for _, m := range members {
			winners := r.ResolveMember(m)
			if winners == nil {
				ms.DroppedMembers++
				continue
			}
			for _, g := range winners {
				geneSet[g] = struct{}{}
			}
		}

		genes := make([]loki.EntityID, 0, len(geneSet))
		for g := range geneSet {
			genes = append(genes, g)
		}
		sort.Slice(genes, func(i, j int) bool { return genes[i] < genes[j] })
		ms.GroupGenes[group] = genes

		for _, g := range genes {
			ms.GeneGroups[g] = append(ms.GeneGroups[g], group)
		}

		src, err := r.store.GroupSource(group)
		if err != nil {
			r.logger.Pop("failed resolving group membership", nil)
			return nil, err
		}
		ms.GroupSource[group] = src

		label, _, ok, err := r.store.LabelOf(loki.KindGroup, group)
		if err != nil {
			r.logger.Pop("failed resolving group membership", nil)
			return nil, err
		}
		if !ok {
			label = ""
		}
		ms.GroupLabel[group] = label
	}

	for g := range ms.GeneGroups {
		grps := ms.GeneGroups[g]
		sort.Slice(grps, func(i, j int) bool { return grps[i] < grps[j] })
	}

	r.logger.Pop("resolved group membership", map[string]interface{}{
		"genes":          len(ms.GeneGroups),
		"droppedMembers": ms.DroppedMembers,
	})
	return ms, nil
}

// SharedGroups returns the groups containing both genes.
func (ms *Membership) SharedGroups(a, b loki.EntityID) []loki.EntityID {
	ga, gb := ms.GeneGroups[a], ms.GeneGroups[b]
	if len(ga) == 0 || len(gb) == 0 {
		return nil
	}

	// both sides are sorted; walk them together
	var shared []loki.EntityID
	i, j := 0, 0
	for i < len(ga) && j < len(gb) {
		switch {
		case ga[i] < gb[j]:
			i++
		case ga[i] > gb[j]:
			j++
		default:
			shared = append(shared, ga[i])
			i++
			j++
		}
	}
	return shared
}

// GroupSize returns the resolved gene count of a group.
func (ms *Membership) GroupSize(group loki.EntityID) int {
	return len(ms.GroupGenes[group])
}
