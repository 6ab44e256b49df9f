package paris

import (
	"context"
	"encoding/binary"
	"runtime"
	"sort"
	"sync"

	"github.com/aead/chacha20/chacha"
	"github.com/hhcho/frand"

	"biofilter/internal/config"
	"biofilter/internal/interval"
	"biofilter/internal/logging"
	"biofilter/internal/loki"
	"biofilter/internal/resolve"
)

const (
	rngBufferSize = 1024
	rngRounds     = 20
)

// rngStream namespaces the derived RNG keys so binning, group runs, and gene
// runs never share a stream.
type rngStream byte

const (
	streamBinning rngStream = iota
	streamGroup
	streamGene
)

// Engine runs the permutation analysis. Build order is BuildFeatures,
// MapGenes, Bin, then RunGroups; the feature and bin indexes are read-only
// during RunGroups and shared by all workers without locks.
type Engine struct {
	opts config.ParisOptions

	matcher     interval.Matcher
	parisMargin int // input-to-LD-region matching
	geneMargin  int // feature-to-gene matching

	logger  *logging.Logger
	seed    int64
	workers int

	features     []Feature
	featureIdx   *interval.Index
	featureBin   []int
	bins         [][]int
	geneFeatures map[loki.EntityID][]int
	geneLabels   map[loki.EntityID]string

	// gene sub-runs repeat across groups in detail mode; the cache keeps
	// each gene's p-value computed exactly once
	geneMu    sync.Mutex
	geneCache map[loki.EntityID]GeneResult
}

// NewEngine creates a PARIS engine. workers <= 0 means one per CPU. The seed
// fully determines every random draw: group and gene runs derive their own
// RNG streams from it, so results are reproducible regardless of worker
// scheduling.
func NewEngine(opts config.ParisOptions, match config.MatchingOptions, logger *logging.Logger, seed int64, workers int) *Engine {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	// every region reaching the engine is already normalized to the
	// canonical convention, the input convention only applies at read time
	conv := interval.DefaultConvention()
	params := interval.Params{
		Percent:       match.MatchPercent,
		Bases:         match.MatchBases,
		PercentWaived: match.PercentWaived,
	}
	return &Engine{
		opts:        opts,
		matcher:     interval.NewMatcher(conv, params),
		parisMargin: opts.PositionMargin,
		geneMargin:  match.PositionMargin,
		logger:      logger,
		seed:        seed,
		workers:     workers,
		geneCache:   make(map[loki.EntityID]GeneResult),
	}
}

// SetGeneLabels provides display labels for detail-mode output.
func (e *Engine) SetGeneLabels(labels map[loki.EntityID]string) {
	e.geneLabels = labels
}

func (e *Engine) rngFor(stream rngStream, id int64) *frand.RNG {
	key := make([]byte, chacha.KeySize)
	binary.LittleEndian.PutUint64(key[0:8], uint64(e.seed))
	key[8] = byte(stream)
	binary.LittleEndian.PutUint64(key[9:17], uint64(id))
	return frand.NewCustom(key, rngBufferSize, rngRounds)
}

// RunGroups permutes every listed group against the genome-wide bins.
// Results come back sorted by group label so report order is deterministic
// regardless of completion order.
func (e *Engine) RunGroups(ctx context.Context, ms *resolve.Membership, groups []loki.EntityID) ([]GroupResult, error) {
	e.logger.Push("Permuting groups", map[string]interface{}{
		"groups":       len(groups),
		"permutations": e.opts.PermutationCount,
		"workers":      e.workers,
	})

	results := make([]GroupResult, len(groups))
	queue := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range queue {
				results[i] = e.runGroup(ms, groups[i])
			}
		}()
	}

	cancelled := false
feed:
	for i := range groups {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		select {
		case <-ctx.Done():
			cancelled = true
			break feed
		case queue <- i:
		}
	}
	close(queue)
	wg.Wait()

	if cancelled {
		e.logger.Pop("permutation cancelled", nil)
		return nil, ctx.Err()
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Label != results[j].Label {
			return results[i].Label < results[j].Label
		}
		return results[i].Group < results[j].Group
	})

	e.logger.Pop("permuted groups", map[string]interface{}{
		"results": len(results),
	})
	return results, nil
}

func (e *Engine) runGroup(ms *resolve.Membership, group loki.EntityID) GroupResult {
	genes := ms.GroupGenes[group]
	real := e.groupFeatureSet(genes)

	res := GroupResult{
		Group:       group,
		Label:       ms.GroupLabel[group],
		GeneCount:   len(genes),
		Fingerprint: fingerprintOf(e.features, real),
		State:       StateFingerprintBuilt,
	}

	rng := e.rngFor(streamGroup, int64(group))
	res.P, res.State = e.permute(real, rng)

	if e.opts.Details {
		for _, g := range genes {
			res.Genes = append(res.Genes, e.runGene(g))
		}
	}
	return res
}

// runGene repeats the permutation at single-gene granularity, reusing the
// genome-wide bins.
func (e *Engine) runGene(gene loki.EntityID) GeneResult {
	e.geneMu.Lock()
	cached, ok := e.geneCache[gene]
	e.geneMu.Unlock()
	if ok {
		return cached
	}

	real := e.geneFeatures[gene]
	res := GeneResult{
		Gene:        gene,
		Label:       e.geneLabels[gene],
		Fingerprint: fingerprintOf(e.features, real),
	}
	rng := e.rngFor(streamGene, int64(gene))
	res.P, res.State = e.permute(real, rng)

	e.geneMu.Lock()
	e.geneCache[gene] = res
	e.geneMu.Unlock()
	return res
}

// permute runs the iteration loop for one real feature set: each iteration
// replaces every permutable real feature with a uniform draw (with
// replacement) from its size bin and compares the simulated significant
// count against the real one.
func (e *Engine) permute(real []int, rng *frand.RNG) (PValue, State) {
	var permutable []int
	realScore := 0
	for _, f := range real {
		if e.featureBin[f] < 1 {
			continue
		}
		permutable = append(permutable, f)
		if e.features[f].Significant {
			realScore++
		}
	}
	if len(permutable) == 0 {
		return PValue{Bound: Undefined}, StateDegenerate
	}
	if realScore == 0 {
		// every draw trivially succeeds, no need to run the iterations
		return PValue{Value: 1, Bound: Exact}, StateCompleted
	}

	count := e.opts.PermutationCount
	maxScore := -1
	if e.opts.MaxPValueSet {
		maxScore = int(e.opts.MaxPValue*float64(count) + 0.5)
	}

	tally := 0
	for it := 0; it < count; it++ {
		sim := 0
		for _, f := range permutable {
			bin := e.bins[e.featureBin[f]]
			pick := bin[rng.Intn(len(bin))]
			if e.features[pick].Significant {
				sim++
			}
		}
		if sim >= realScore {
			tally++
		}
		// once the tally alone exceeds the cutoff the final p-value cannot
		// come back under the threshold; only a lower bound is reportable
		if maxScore >= 0 && tally > maxScore {
			return PValue{Value: e.opts.MaxPValue, Bound: AtLeast}, StateEarlyStopped
		}
	}

	if tally == 0 {
		return PValue{Value: 1 / float64(count), Bound: LessThan}, StateCompleted
	}
	return PValue{Value: float64(tally) / float64(count), Bound: Exact}, StateCompleted
}
