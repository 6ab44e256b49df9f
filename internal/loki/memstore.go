package loki

import (
	"sort"
	"strconv"

	"biofilter/internal/interval"
)

// MemStore is an in-memory Store used for engine tests and for user-supplied
// knowledge. Populate it fully before handing it to the engine; reads are
// lock-free and therefore only safe once loading is done.
type MemStore struct {
	labels     map[Kind]map[EntityID][2]string // label, description
	names      map[Kind]map[nameKey][]EntityID
	labelIdx   map[Kind]map[string][]EntityID
	regions    map[EntityID]interval.Region
	snpLoci    map[int64][]Locus
	snpMerges  map[int64]int64
	members    map[EntityID][]Member
	groupSrc   map[EntityID]EntityID
	groupOrder []EntityID
}

type nameKey struct {
	typ   string
	value string
}

// NewMemStore creates an empty in-memory knowledge store.
func NewMemStore() *MemStore {
	return &MemStore{
		labels:    make(map[Kind]map[EntityID][2]string),
		names:     make(map[Kind]map[nameKey][]EntityID),
		labelIdx:  make(map[Kind]map[string][]EntityID),
		regions:   make(map[EntityID]interval.Region),
		snpLoci:   make(map[int64][]Locus),
		snpMerges: make(map[int64]int64),
		members:   make(map[EntityID][]Member),
		groupSrc:  make(map[EntityID]EntityID),
	}
}

// AddEntity registers an entity with its primary label.
func (s *MemStore) AddEntity(kind Kind, id EntityID, label, description string) {
	if s.labels[kind] == nil {
		s.labels[kind] = make(map[EntityID][2]string)
		s.labelIdx[kind] = make(map[string][]EntityID)
	}
	s.labels[kind][id] = [2]string{label, description}
	s.labelIdx[kind][label] = append(s.labelIdx[kind][label], id)
	if kind == KindGroup {
		s.groupOrder = append(s.groupOrder, id)
	}
}

// AddName attaches a typed identifier to an entity.
func (s *MemStore) AddName(kind Kind, typ, value string, id EntityID) {
	if s.names[kind] == nil {
		s.names[kind] = make(map[nameKey][]EntityID)
	}
	key := nameKey{typ, value}
	s.names[kind][key] = append(s.names[kind][key], id)
	// blank-type lookups search all types
	all := nameKey{"", value}
	s.names[kind][all] = append(s.names[kind][all], id)
}

// SetRegion sets a gene's canonical region.
func (s *MemStore) SetRegion(id EntityID, r interval.Region) {
	s.regions[id] = r
}

// AddSNP registers a SNP placement.
func (s *MemStore) AddSNP(rs int64, chr, pos int) {
	s.snpLoci[rs] = append(s.snpLoci[rs], Locus{Chr: chr, Pos: pos})
}

// AddSNPMerge records that an old rs number was merged into a current one.
func (s *MemStore) AddSNPMerge(old, current int64) {
	s.snpMerges[old] = current
}

// AddMember appends a membership record to a group.
func (s *MemStore) AddMember(group EntityID, names ...MemberName) {
	m := Member{GroupID: group, MemberID: len(s.members[group]) + 1, Names: names}
	s.members[group] = append(s.members[group], m)
}

// SetGroupSource records the source a group was loaded from.
func (s *MemStore) SetGroupSource(group, source EntityID) {
	s.groupSrc[group] = source
}

// Lookup implements Store.
func (s *MemStore) Lookup(kind Kind, typ, value string) ([]EntityID, error) {
	if kind == KindSNP {
		return s.lookupSNP(value)
	}
	return dedupIDs(s.names[kind][nameKey{typ, value}]), nil
}

// LookupLabel implements Store.
func (s *MemStore) LookupLabel(kind Kind, value string) ([]EntityID, error) {
	if kind == KindSNP {
		return s.lookupSNP(value)
	}
	return dedupIDs(s.labelIdx[kind][value]), nil
}

func (s *MemStore) lookupSNP(value string) ([]EntityID, error) {
	rs, ok := ParseRS(value)
	if !ok {
		return nil, nil
	}
	cur, _, _ := s.CurrentRS(rs)
	if len(s.snpLoci[cur]) == 0 {
		return nil, nil
	}
	return []EntityID{EntityID(cur)}, nil
}

// LabelOf implements Store.
func (s *MemStore) LabelOf(kind Kind, id EntityID) (string, string, bool, error) {
	if kind == KindSNP {
		if len(s.snpLoci[int64(id)]) == 0 {
			return "", "", false, nil
		}
		return "rs" + strconv.FormatInt(int64(id), 10), "", true, nil
	}
	ld, ok := s.labels[kind][id]
	return ld[0], ld[1], ok, nil
}

// CurrentRS implements Store.
func (s *MemStore) CurrentRS(rs int64) (int64, bool, error) {
	if cur, ok := s.snpMerges[rs]; ok {
		return cur, true, nil
	}
	return rs, false, nil
}

// SNPLoci implements Store.
func (s *MemStore) SNPLoci(rs int64) ([]Locus, error) {
	return s.snpLoci[rs], nil
}

// RegionOf implements Store.
func (s *MemStore) RegionOf(id EntityID) (*interval.Region, error) {
	r, ok := s.regions[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

// GroupMembers implements Store.
func (s *MemStore) GroupMembers(group EntityID) ([]Member, error) {
	return s.members[group], nil
}

// GroupSource implements Store.
func (s *MemStore) GroupSource(group EntityID) (EntityID, error) {
	return s.groupSrc[group], nil
}

// GroupSize implements Store.
func (s *MemStore) GroupSize(group EntityID) (int, error) {
	genes := make(map[EntityID]struct{})
	for _, m := range s.members[group] {
		for _, n := range m.Names {
			for _, g := range n.Genes {
				genes[g] = struct{}{}
			}
		}
	}
	return len(genes), nil
}

// GroupsOf implements Store.
func (s *MemStore) GroupsOf(gene EntityID) ([]EntityID, error) {
	var out []EntityID
	for _, group := range s.groupOrder {
		for _, m := range s.members[group] {
			if memberImplicates(m, gene) {
				out = append(out, group)
				break
			}
		}
	}
	return out, nil
}

// Groups implements Store.
func (s *MemStore) Groups() ([]EntityID, error) {
	out := append([]EntityID(nil), s.groupOrder...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func memberImplicates(m Member, gene EntityID) bool {
	for _, n := range m.Names {
		for _, g := range n.Genes {
			if g == gene {
				return true
			}
		}
	}
	return false
}

func dedupIDs(in []EntityID) []EntityID {
	if len(in) < 2 {
		return append([]EntityID(nil), in...)
	}
	seen := make(map[EntityID]struct{}, len(in))
	var out []EntityID
	for _, id := range in {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
