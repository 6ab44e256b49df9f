package paris

import (
	"context"
	"io"
	"math"
	"reflect"
	"testing"

	"biofilter/internal/config"
	bferrors "biofilter/internal/errors"
	"biofilter/internal/interval"
	"biofilter/internal/logging"
	"biofilter/internal/loki"
	"biofilter/internal/resolve"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{
		Format: logging.HumanFormat,
		Level:  logging.ErrorLevel,
		Output: io.Discard,
	})
}

func testEngine(opts config.ParisOptions, seed int64) *Engine {
	match := config.MatchingOptions{
		MatchPercent:   100,
		CoordinateBase: 1,
	}
	return NewEngine(opts, match, testLogger(), seed, 2)
}

func defaultParisOpts() config.ParisOptions {
	return config.ParisOptions{
		PValue:           0.05,
		ZeroPValues:      "ignore",
		PermutationCount: 1000,
		BinSize:          10000,
	}
}

func TestSignificance(t *testing.T) {
	tests := []struct {
		name        string
		policy      string
		p           float64
		wantSig     bool
		wantCounted bool
	}{
		{"below threshold", "ignore", 0.01, true, true},
		{"at threshold", "ignore", 0.05, true, true},
		{"above threshold", "ignore", 0.5, false, true},
		{"zero ignored", "ignore", 0, false, false},
		{"zero insignificant", "insignificant", 0, false, true},
		{"zero significant", "significant", 0, true, true},
		{"negative ignored", "ignore", -1, false, false},
		{"negative significant", "significant", -0.5, true, true},
		{"unparseable kept insignificant", "ignore", math.NaN(), false, true},
		{"unparseable unaffected by policy", "significant", math.NaN(), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := defaultParisOpts()
			opts.ZeroPValues = tt.policy
			e := testEngine(opts, 1)

			sig, counted := e.significance(tt.p)
			if sig != tt.wantSig || counted != tt.wantCounted {
				t.Errorf("significance(%v) = %v, %v; want %v, %v",
					tt.p, sig, counted, tt.wantSig, tt.wantCounted)
			}
		})
	}
}

// three LD regions on chr1 plus one input that matches none of them
func buildTestEngine(t *testing.T, opts config.ParisOptions, seed int64) *Engine {
	t.Helper()

	e := testEngine(opts, seed)
	ldRegions := []interval.Region{
		{Chr: 1, Start: 100, Stop: 200},
		{Chr: 1, Start: 300, Stop: 400},
		{Chr: 1, Start: 500, Stop: 600},
	}
	inputs := []Input{
		{Label: "rs1", Chr: 1, Pos: 150, P: 0.01},
		{Label: "rs2", Chr: 1, Pos: 160, P: 0.5},
		{Label: "rs3", Chr: 1, Pos: 350, P: 0.5},
		{Label: "rs4", Chr: 1, Pos: 550, P: 0.01},
		{Label: "rs5", Chr: 1, Pos: 700, P: 0.9},
	}
	e.BuildFeatures(inputs, ldRegions)
	return e
}

func TestBuildFeatures(t *testing.T) {
	e := buildTestEngine(t, defaultParisOpts(), 1)

	if len(e.features) != 4 {
		t.Fatalf("built %d features, want 4 (3 regions + 1 singleton)", len(e.features))
	}

	// region 0 matched rs1 and rs2: complex and significant
	if e.features[0].Size != 2 || !e.features[0].Complex() || !e.features[0].Significant {
		t.Errorf("feature 0 = %+v, want complex significant size 2", e.features[0])
	}
	// region 1 matched only the insignificant rs3
	if e.features[1].Size != 1 || e.features[1].Significant {
		t.Errorf("feature 1 = %+v, want simple insignificant", e.features[1])
	}
	// region 2 matched the significant rs4
	if !e.features[2].Significant {
		t.Errorf("feature 2 = %+v, want significant", e.features[2])
	}
	// rs5 matched nothing and becomes a singleton point feature
	if e.features[3].Size != 1 || e.features[3].Region.Start != 700 {
		t.Errorf("feature 3 = %+v, want singleton at 700", e.features[3])
	}
}

func TestBuildFeaturesZeroPIgnored(t *testing.T) {
	e := testEngine(defaultParisOpts(), 1)
	e.BuildFeatures([]Input{
		{Label: "rs1", Chr: 1, Pos: 150, P: 0},
	}, []interval.Region{{Chr: 1, Start: 100, Stop: 200}})

	if len(e.features) != 0 {
		t.Errorf("zero-p input under ignore built %d features, want 0", len(e.features))
	}
}

func TestBuildFeaturesKeepsUnparseableP(t *testing.T) {
	e := testEngine(defaultParisOpts(), 1)
	e.BuildFeatures([]Input{
		{Label: "rs1", Chr: 1, Pos: 150, P: math.NaN()},
		{Label: "rs2", Chr: 1, Pos: 160, P: 0.5},
		{Label: "rs3", Chr: 1, Pos: 700, P: math.NaN()},
	}, []interval.Region{{Chr: 1, Start: 100, Stop: 200}})

	if len(e.features) != 2 {
		t.Fatalf("built %d features, want 2 (region + singleton)", len(e.features))
	}
	// the NaN input still counts toward the region feature's size
	if e.features[0].Size != 2 || e.features[0].Significant {
		t.Errorf("feature 0 = %+v, want insignificant size 2", e.features[0])
	}
	if e.features[1].Size != 1 || e.features[1].Significant {
		t.Errorf("singleton = %+v, want insignificant size 1", e.features[1])
	}
}

func TestBin(t *testing.T) {
	e := buildTestEngine(t, defaultParisOpts(), 1)
	if err := e.Bin(); err != nil {
		t.Fatalf("Bin() error: %v", err)
	}

	// features 1, 2, 3 are size 1 and land in the unlimited bin 1; the
	// complex feature 0 gets its own bin
	if !reflect.DeepEqual(e.bins[1], []int{1, 2, 3}) {
		t.Errorf("bins[1] = %v, want [1 2 3]", e.bins[1])
	}
	if len(e.bins) != 3 || !reflect.DeepEqual(e.bins[2], []int{0}) {
		t.Errorf("bins = %v, want complex feature alone in bin 2", e.bins)
	}
	if e.featureBin[0] != 2 || e.featureBin[1] != 1 {
		t.Errorf("featureBin = %v", e.featureBin)
	}
}

func TestBinEmpty(t *testing.T) {
	e := testEngine(defaultParisOpts(), 1)

	err := e.Bin()
	if err == nil {
		t.Fatal("Bin() with no features should fail")
	}
	if bferrors.CodeOf(err) != bferrors.BinningEmpty {
		t.Errorf("error code = %v, want BinningEmpty", bferrors.CodeOf(err))
	}
}

func TestBinSplitSizes(t *testing.T) {
	opts := defaultParisOpts()
	opts.BinSize = 10
	e := testEngine(opts, 1)

	// 25 multi-input features: sizes descend so contiguity is checkable
	for i := 0; i < 25; i++ {
		e.features = append(e.features, Feature{
			Region: interval.Region{Chr: 1, Start: i * 1000, Stop: i*1000 + 10},
			Size:   2 + i/5,
		})
	}
	if err := e.Bin(); err != nil {
		t.Fatal(err)
	}

	// round(25/10) = 3 permutable multi-size bins after the empty size-1 bin
	if len(e.bins) != 5 {
		t.Fatalf("bins = %d, want 5 (culled + size-1 + 3 splits)", len(e.bins))
	}
	total := 0
	for b := 2; b < len(e.bins); b++ {
		n := len(e.bins[b])
		if n < 8 || n > 9 {
			t.Errorf("bin %d has %d features, want 8 or 9", b, n)
		}
		total += n
	}
	if total != 25 {
		t.Errorf("split bins hold %d features, want 25", total)
	}

	// descending size order across bin boundaries
	last := 1 << 30
	for b := 2; b < len(e.bins); b++ {
		for _, f := range e.bins[b] {
			if e.features[f].Size > last {
				t.Fatalf("bin order violates descending size")
			}
			last = e.features[f].Size
		}
	}
}

func groupMembership(groups map[loki.EntityID][]loki.EntityID) *resolve.Membership {
	ms := &resolve.Membership{
		GroupGenes:  groups,
		GeneGroups:  map[loki.EntityID][]loki.EntityID{},
		GroupSource: map[loki.EntityID]loki.EntityID{},
		GroupLabel:  map[loki.EntityID]string{},
	}
	for g := range groups {
		ms.GroupLabel[g] = "group"
	}
	return ms
}

func runTestGroups(t *testing.T, opts config.ParisOptions, seed int64) []GroupResult {
	t.Helper()

	e := buildTestEngine(t, opts, seed)
	e.MapGenes(map[loki.EntityID]*interval.Region{
		11: {Chr: 1, Start: 100, Stop: 200},
		12: {Chr: 1, Start: 300, Stop: 600},
	})
	if err := e.Bin(); err != nil {
		t.Fatal(err)
	}

	ms := groupMembership(map[loki.EntityID][]loki.EntityID{
		1: {11, 12},
	})
	results, err := e.RunGroups(context.Background(), ms, []loki.EntityID{1})
	if err != nil {
		t.Fatal(err)
	}
	return results
}

func TestRunGroupsFingerprint(t *testing.T) {
	results := runTestGroups(t, defaultParisOpts(), 42)
	if len(results) != 1 {
		t.Fatalf("got %d results", len(results))
	}

	r := results[0]
	want := Fingerprint{Features: 3, Simple: 2, SimpleSig: 1, Complex: 1, ComplexSig: 1}
	if r.Fingerprint != want {
		t.Errorf("fingerprint = %+v, want %+v", r.Fingerprint, want)
	}
	if r.State != StateCompleted {
		t.Errorf("state = %v, want completed", r.State)
	}
	if r.P.Bound != Exact || r.P.Value <= 0 || r.P.Value > 1 {
		t.Errorf("p-value = %+v, want exact in (0,1]", r.P)
	}
}

func TestRunGroupsReproducible(t *testing.T) {
	first := runTestGroups(t, defaultParisOpts(), 42)
	for i := 0; i < 3; i++ {
		again := runTestGroups(t, defaultParisOpts(), 42)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs with identical seed: %+v vs %+v", i, first, again)
		}
	}

	other := runTestGroups(t, defaultParisOpts(), 43)
	if reflect.DeepEqual(first[0].P, other[0].P) {
		t.Log("different seeds produced equal p-values; possible but unlikely")
	}
}

func TestRunGroupsDegenerate(t *testing.T) {
	e := buildTestEngine(t, defaultParisOpts(), 1)
	e.MapGenes(map[loki.EntityID]*interval.Region{
		11: {Chr: 1, Start: 100, Stop: 200},
	})
	if err := e.Bin(); err != nil {
		t.Fatal(err)
	}

	// gene 99 has no region and therefore no features
	ms := groupMembership(map[loki.EntityID][]loki.EntityID{
		2: {99},
	})
	results, err := e.RunGroups(context.Background(), ms, []loki.EntityID{2})
	if err != nil {
		t.Fatal(err)
	}

	r := results[0]
	if r.State != StateDegenerate {
		t.Errorf("state = %v, want degenerate", r.State)
	}
	if r.P.Bound != Undefined || r.P.String() != "NA" {
		t.Errorf("p-value = %+v, want undefined", r.P)
	}
}

func TestPermuteEarlyStop(t *testing.T) {
	opts := defaultParisOpts()
	opts.MaxPValue = 0.5
	opts.MaxPValueSet = true
	e := testEngine(opts, 7)

	// every bin candidate is significant, so every iteration succeeds and
	// the tally is guaranteed to exceed 500/1000
	e.features = []Feature{
		{Size: 1, Significant: true},
		{Size: 1, Significant: true},
	}
	e.bins = [][]int{nil, {0, 1}}
	e.featureBin = []int{1, 1}

	p, state := e.permute([]int{0}, e.rngFor(streamGroup, 1))
	if state != StateEarlyStopped {
		t.Errorf("state = %v, want early-stopped", state)
	}
	if p.Bound != AtLeast || p.Value != 0.5 {
		t.Errorf("p-value = %+v, want >= 0.5", p)
	}
	if p.String() != ">= 0.5" {
		t.Errorf("p.String() = %q, want %q", p.String(), ">= 0.5")
	}
}

func TestPermuteZeroSuccesses(t *testing.T) {
	e := testEngine(defaultParisOpts(), 7)

	// the real feature is significant but its bin holds only insignificant
	// candidates, so no simulated draw can ever reach the real score
	e.features = []Feature{
		{Size: 1, Significant: true},
		{Size: 1, Significant: false},
		{Size: 1, Significant: false},
	}
	e.bins = [][]int{nil, {1, 2}}
	e.featureBin = []int{1, 1, 1}

	p, state := e.permute([]int{0}, e.rngFor(streamGroup, 1))
	if state != StateCompleted {
		t.Errorf("state = %v, want completed", state)
	}
	if p.Bound != LessThan || p.Value != 0.001 {
		t.Errorf("p-value = %+v, want < 0.001", p)
	}
	if p.String() != "< 0.001" {
		t.Errorf("p.String() = %q", p.String())
	}
}

func TestRunGroupsDetailMode(t *testing.T) {
	opts := defaultParisOpts()
	opts.Details = true
	opts.PermutationCount = 100

	e := buildTestEngine(t, opts, 5)
	e.MapGenes(map[loki.EntityID]*interval.Region{
		11: {Chr: 1, Start: 100, Stop: 200},
		12: {Chr: 1, Start: 300, Stop: 600},
	})
	e.SetGeneLabels(map[loki.EntityID]string{11: "GENE_A", 12: "GENE_B"})
	if err := e.Bin(); err != nil {
		t.Fatal(err)
	}

	ms := groupMembership(map[loki.EntityID][]loki.EntityID{
		1: {11, 12},
		2: {11},
	})
	ms.GroupLabel[1] = "alpha"
	ms.GroupLabel[2] = "beta"

	results, err := e.RunGroups(context.Background(), ms, []loki.EntityID{2, 1})
	if err != nil {
		t.Fatal(err)
	}

	// report order follows labels, not submission order
	if results[0].Label != "alpha" || results[1].Label != "beta" {
		t.Fatalf("result order = %q, %q", results[0].Label, results[1].Label)
	}
	if len(results[0].Genes) != 2 {
		t.Fatalf("detail rows = %d, want 2", len(results[0].Genes))
	}
	if results[0].Genes[0].Label != "GENE_A" {
		t.Errorf("gene label = %q", results[0].Genes[0].Label)
	}

	// gene 11 appears in both groups; the cached sub-run must be identical
	var fromAlpha, fromBeta GeneResult
	for _, g := range results[0].Genes {
		if g.Gene == 11 {
			fromAlpha = g
		}
	}
	fromBeta = results[1].Genes[0]
	if !reflect.DeepEqual(fromAlpha, fromBeta) {
		t.Errorf("gene 11 sub-runs differ across groups: %+v vs %+v", fromAlpha, fromBeta)
	}
}

func TestRunGroupsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := buildTestEngine(t, defaultParisOpts(), 1)
	if err := e.Bin(); err != nil {
		t.Fatal(err)
	}
	ms := groupMembership(map[loki.EntityID][]loki.EntityID{1: {}})

	_, err := e.RunGroups(ctx, ms, []loki.EntityID{1})
	if err == nil {
		t.Error("RunGroups() with cancelled context should return an error")
	}
}
