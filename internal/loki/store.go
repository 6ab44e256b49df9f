package loki

import "biofilter/internal/interval"

// Store is the knowledge query surface the analysis engine runs against.
// Implementations must be safe for concurrent reads; the engine materializes
// and indexes everything it needs before its hot phases, so Store calls never
// happen inside the matching or permutation loops.
type Store interface {
	// Lookup resolves an identifier value of the given type against one
	// entity class. An empty type searches every identifier type. A value
	// matching zero entities returns an empty slice, not an error.
	Lookup(kind Kind, typ, value string) ([]EntityID, error)

	// LookupLabel resolves against primary labels only.
	LookupLabel(kind Kind, value string) ([]EntityID, error)

	// LabelOf returns the primary label and description of an entity, with
	// ok=false for an unknown id.
	LabelOf(kind Kind, id EntityID) (label, description string, ok bool, err error)

	// CurrentRS maps a possibly-merged rs number to its current one. The
	// second result reports whether a merge record was applied.
	CurrentRS(rs int64) (int64, bool, error)

	// SNPLoci returns the known placements of an rs number; more than one
	// means the SNP is ambiguously placed.
	SNPLoci(rs int64) ([]Locus, error)

	// RegionOf returns the canonical region of a gene under the store's
	// active LD profile, or nil when the gene has none.
	RegionOf(id EntityID) (*interval.Region, error)

	// GroupMembers returns the membership records of a group, each name
	// already joined to the gene entities it implicates.
	GroupMembers(group EntityID) ([]Member, error)

	// GroupSource returns the source an entire group was loaded from.
	GroupSource(group EntityID) (EntityID, error)

	// GroupSize returns the total number of distinct genes in a group.
	GroupSize(group EntityID) (int, error)

	// GroupsOf returns every group a gene belongs to.
	GroupsOf(gene EntityID) ([]EntityID, error)

	// Groups returns all group ids, for whole-knowledge analyses.
	Groups() ([]EntityID, error)
}
