package main

import (
	"testing"

	"biofilter/internal/config"
)

func resetModelFlags() {
	modelMaxCount = -1
	modelMinScore = -1
	modelMaxGroupSize = -1
	modelAllPairwise = false
	modelNoSort = false
}

func TestApplyModelFlags(t *testing.T) {
	tests := []struct {
		name    string
		set     func()
		wantErr bool
		check   func(t *testing.T, mo config.ModelOptions)
	}{
		{
			"defaults untouched",
			func() {},
			false,
			func(t *testing.T, mo config.ModelOptions) {
				defaults := config.DefaultOptions().Models
				if mo != defaults {
					t.Errorf("options changed without flags: %+v", mo)
				}
			},
		},
		{
			"max count zero means unlimited",
			func() { modelMaxCount = 0 },
			false,
			func(t *testing.T, mo config.ModelOptions) {
				if mo.MaximumCount != 0 {
					t.Errorf("MaximumCount = %d, want 0", mo.MaximumCount)
				}
			},
		},
		{
			"min score override",
			func() { modelMinScore = 5 },
			false,
			func(t *testing.T, mo config.ModelOptions) {
				if mo.MinimumScore != 5 {
					t.Errorf("MinimumScore = %d, want 5", mo.MinimumScore)
				}
			},
		},
		{
			"all pairwise and no sort",
			func() { modelAllPairwise = true; modelNoSort = true },
			false,
			func(t *testing.T, mo config.ModelOptions) {
				if !mo.AllPairwise || mo.Sort {
					t.Errorf("AllPairwise = %v, Sort = %v", mo.AllPairwise, mo.Sort)
				}
			},
		},
		{
			"out-of-range min score rejected",
			func() { modelMinScore = 0 },
			true,
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetModelFlags()
			defer resetModelFlags()
			tt.set()

			opts := config.DefaultOptions()
			err := applyModelFlags(opts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("applyModelFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, opts.Models)
			}
		})
	}
}

func resetParisFlags() {
	parisDetails = false
	parisPermutations = 0
	parisPValue = 0
	parisMaxPValue = 0
}

func TestApplyParisFlags(t *testing.T) {
	resetParisFlags()
	defer resetParisFlags()

	opts := config.DefaultOptions()
	if err := applyParisFlags(opts); err != nil {
		t.Fatalf("applyParisFlags() error: %v", err)
	}
	if opts.Paris.MaxPValueSet {
		t.Error("MaxPValueSet without --max-p-value")
	}

	parisDetails = true
	parisPermutations = 500
	parisMaxPValue = 0.1
	if err := applyParisFlags(opts); err != nil {
		t.Fatalf("applyParisFlags() error: %v", err)
	}
	if !opts.Paris.Details || opts.Paris.PermutationCount != 500 {
		t.Errorf("Details = %v, PermutationCount = %d", opts.Paris.Details, opts.Paris.PermutationCount)
	}
	if !opts.Paris.MaxPValueSet || opts.Paris.MaxPValue != 0.1 {
		t.Errorf("MaxPValue = %v (set=%v), want 0.1 set", opts.Paris.MaxPValue, opts.Paris.MaxPValueSet)
	}
}

func TestApplyParisFlagsRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name string
		set  func()
	}{
		{"p-value above one", func() { parisPValue = 2 }},
		{"max p-value above one", func() { parisMaxPValue = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetParisFlags()
			defer resetParisFlags()
			tt.set()

			if err := applyParisFlags(config.DefaultOptions()); err == nil {
				t.Error("applyParisFlags() accepted an out-of-range flag")
			}
		})
	}
}
