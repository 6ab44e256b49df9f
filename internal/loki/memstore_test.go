package loki

import (
	"testing"

	"biofilter/internal/interval"
)

func buildTestStore() *MemStore {
	s := NewMemStore()

	s.AddEntity(KindGene, 10, "GENE_A", "gene A")
	s.AddEntity(KindGene, 11, "GENE_B", "gene B")
	s.AddName(KindGene, "symbol", "GENE_A", 10)
	s.AddName(KindGene, "symbol", "GENE_B", 11)
	s.AddName(KindGene, "entrez", "1001", 10)
	s.AddName(KindGene, "entrez", "1001", 11) // ambiguous identifier
	s.SetRegion(10, interval.Region{Chr: 1, Start: 1000, Stop: 2000})

	s.AddEntity(KindSource, 90, "testdb", "")
	s.AddEntity(KindGroup, 50, "pathway_one", "first pathway")
	s.SetGroupSource(50, 90)
	s.AddMember(50, MemberName{Type: "symbol", Value: "GENE_A", Genes: []EntityID{10}})
	s.AddMember(50, MemberName{Type: "symbol", Value: "GENE_B", Genes: []EntityID{11}})

	s.AddSNP(777, 1, 1500)
	s.AddSNPMerge(555, 777)

	return s
}

func TestMemStoreLookup(t *testing.T) {
	s := buildTestStore()

	tests := []struct {
		name  string
		kind  Kind
		typ   string
		value string
		want  int
	}{
		{"typed hit", KindGene, "symbol", "GENE_A", 1},
		{"typed miss", KindGene, "entrez", "GENE_A", 0},
		{"any type", KindGene, "", "GENE_A", 1},
		{"ambiguous", KindGene, "entrez", "1001", 2},
		{"unknown value", KindGene, "symbol", "NOPE", 0},
		{"snp by rs", KindSNP, "", "rs777", 1},
		{"snp merged", KindSNP, "", "rs555", 1},
		{"snp unknown", KindSNP, "", "rs9999", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Lookup(tt.kind, tt.typ, tt.value)
			if err != nil {
				t.Fatalf("Lookup() error: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("Lookup() = %v, want %d candidates", got, tt.want)
			}
		})
	}
}

func TestMemStoreMergedRS(t *testing.T) {
	s := buildTestStore()

	// merged rs numbers resolve to the current id, not the old one
	ids, err := s.Lookup(KindSNP, "", "rs555")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != 777 {
		t.Errorf("Lookup(rs555) = %v, want [777]", ids)
	}

	cur, merged, _ := s.CurrentRS(555)
	if cur != 777 || !merged {
		t.Errorf("CurrentRS(555) = %d, %v; want 777, true", cur, merged)
	}
	cur, merged, _ = s.CurrentRS(777)
	if cur != 777 || merged {
		t.Errorf("CurrentRS(777) = %d, %v; want 777, false", cur, merged)
	}
}

func TestMemStoreRegions(t *testing.T) {
	s := buildTestStore()

	r, err := s.RegionOf(10)
	if err != nil || r == nil {
		t.Fatalf("RegionOf(10) = %v, %v", r, err)
	}
	if r.Chr != 1 || r.Start != 1000 || r.Stop != 2000 {
		t.Errorf("RegionOf(10) = %v", *r)
	}

	r, err = s.RegionOf(11)
	if err != nil || r != nil {
		t.Errorf("RegionOf(11) = %v, %v; want nil region", r, err)
	}
}

func TestMemStoreGroups(t *testing.T) {
	s := buildTestStore()

	members, err := s.GroupMembers(50)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 2 {
		t.Fatalf("GroupMembers(50) = %d members, want 2", len(members))
	}
	if members[0].Names[0].Value != "GENE_A" {
		t.Errorf("first member name = %q", members[0].Names[0].Value)
	}

	src, err := s.GroupSource(50)
	if err != nil || src != 90 {
		t.Errorf("GroupSource(50) = %d, %v; want 90", src, err)
	}

	size, err := s.GroupSize(50)
	if err != nil || size != 2 {
		t.Errorf("GroupSize(50) = %d, %v; want 2", size, err)
	}

	groups, err := s.GroupsOf(10)
	if err != nil || len(groups) != 1 || groups[0] != 50 {
		t.Errorf("GroupsOf(10) = %v, %v", groups, err)
	}
}
