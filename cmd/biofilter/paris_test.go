package main

import (
	"io"
	"reflect"
	"testing"

	"biofilter/internal/config"
	"biofilter/internal/input"
	"biofilter/internal/interval"
	"biofilter/internal/logging"
	"biofilter/internal/loki"
	"biofilter/internal/resolve"
)

func testCmdLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{
		Format: logging.HumanFormat,
		Level:  logging.ErrorLevel,
		Output: io.Discard,
	})
}

func TestParisInputsEnforceChromosome(t *testing.T) {
	store := loki.NewMemStore()
	store.AddSNP(100, 1, 1500)
	store.AddSNP(300, 2, 2500)
	store.AddSNPMerge(200, 300)

	tests := []struct {
		name    string
		enforce bool
		pos     input.Position
		kept    bool
	}{
		{
			"declared chromosome agrees",
			true,
			input.Position{Label: "rs100", Chr: 1, Pos: 1500, P: 0.01},
			true,
		},
		{
			"declared chromosome disagrees",
			true,
			input.Position{Label: "rs100", Chr: 2, Pos: 1500, P: 0.01},
			false,
		},
		{
			"merged rs checked against current placement",
			true,
			input.Position{Label: "rs200", Chr: 2, Pos: 2500, P: 0.01},
			true,
		},
		{
			"rs unknown to the store kept as declared",
			true,
			input.Position{Label: "rs999", Chr: 5, Pos: 100, P: 0.01},
			true,
		},
		{
			"non-rs label kept as declared",
			true,
			input.Position{Label: "marker7", Chr: 3, Pos: 400, P: 0.01},
			true,
		},
		{
			"enforcement off keeps disagreeing input",
			false,
			input.Position{Label: "rs100", Chr: 2, Pos: 1500, P: 0.01},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := config.DefaultOptions()
			opts.Paris.EnforceInputChromosome = tt.enforce

			got, err := parisInputs(store, testCmdLogger(), opts, []input.Position{tt.pos})
			if err != nil {
				t.Fatalf("parisInputs() error: %v", err)
			}

			if tt.kept {
				if len(got) != 1 {
					t.Fatalf("inputs kept = %d, want 1", len(got))
				}
				if got[0].Label != tt.pos.Label || got[0].Chr != tt.pos.Chr || got[0].Pos != tt.pos.Pos {
					t.Errorf("kept input = %+v, want %+v", got[0], tt.pos)
				}
			} else if len(got) != 0 {
				t.Errorf("inputs kept = %v, want none", got)
			}
		})
	}
}

func TestGeneRegionsFromStore(t *testing.T) {
	region := interval.Region{Chr: 1, Start: 100, Stop: 200}

	store := loki.NewMemStore()
	store.AddEntity(loki.KindGene, 11, "GENE_A", "")
	store.AddEntity(loki.KindGene, 12, "GENE_B", "")
	store.SetRegion(11, region)
	store.AddEntity(loki.KindGroup, 1, "pathway", "")
	store.SetGroupSource(1, 90)
	store.AddMember(1,
		loki.MemberName{Type: "symbol", Value: "GENE_A", Genes: []loki.EntityID{11}},
		loki.MemberName{Type: "symbol", Value: "GENE_B", Genes: []loki.EntityID{12}},
	)

	resolver := resolve.NewResolver(store, testCmdLogger(), resolve.ReduceNone, true)
	ms, err := resolver.BuildMembership([]loki.EntityID{1})
	if err != nil {
		t.Fatalf("BuildMembership() error: %v", err)
	}

	regions, labels, err := geneRegions(store, ms)
	if err != nil {
		t.Fatalf("geneRegions() error: %v", err)
	}

	if regions[11] == nil || *regions[11] != region {
		t.Errorf("gene 11 region = %v", regions[11])
	}
	if regions[12] != nil {
		t.Errorf("gene 12 region = %v, want nil (no placement)", regions[12])
	}
	if !reflect.DeepEqual(labels, map[loki.EntityID]string{11: "GENE_A", 12: "GENE_B"}) {
		t.Errorf("labels = %v", labels)
	}
}
