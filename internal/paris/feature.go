package paris

import (
	"math"
	"sort"

	"biofilter/internal/interval"
	"biofilter/internal/loki"
)

// significance applies the zero-p policy to one input. counted=false drops
// the input from consideration entirely (zero-p "ignore"). An unparseable
// p-value (NaN) keeps the input, never significant; zero and negative
// p-values fall under the zero-p policy.
func (e *Engine) significance(p float64) (sig, counted bool) {
	if math.IsNaN(p) {
		return false, true
	}
	if p <= 0 {
		switch e.opts.ZeroPValues {
		case "insignificant":
			return false, true
		case "significant":
			return true, true
		default:
			return false, false
		}
	}
	return p <= e.opts.PValue, true
}

// BuildFeatures matches the inputs against the LD regions and materializes
// the genome-wide feature set. Inputs matching no region become singleton
// features so they still participate in fingerprints and binning.
func (e *Engine) BuildFeatures(inputs []Input, ldRegions []interval.Region) {
	e.logger.Push("Building features", map[string]interface{}{
		"inputs":  len(inputs),
		"regions": len(ldRegions),
	})

	idx := interval.NewIndex(0)
	for i, r := range ldRegions {
		idx.Add(int64(i), r, e.parisMargin)
	}

	matched := make(map[int64][]int) // region index -> input indexes
	var singletons []int
	dropped := 0

	for i, in := range inputs {
		if _, counted := e.significance(in.P); !counted {
			dropped++
			continue
		}
		hits := idx.Containing(e.matcher, in.Chr, in.Pos, e.parisMargin)
		if len(hits) == 0 {
			singletons = append(singletons, i)
			continue
		}
		for _, h := range hits {
			matched[h] = append(matched[h], i)
		}
	}

	// deterministic feature order: regions by index, then singletons by input
	regionIDs := make([]int64, 0, len(matched))
	for id := range matched {
		regionIDs = append(regionIDs, id)
	}
	sort.Slice(regionIDs, func(i, j int) bool { return regionIDs[i] < regionIDs[j] })

	e.features = e.features[:0]
	for _, id := range regionIDs {
		f := Feature{Region: ldRegions[id], Size: len(matched[id])}
		for _, i := range matched[id] {
			if sig, _ := e.significance(inputs[i].P); sig {
				f.Significant = true
				break
			}
		}
		e.features = append(e.features, f)
	}
	for _, i := range singletons {
		in := inputs[i]
		sig, _ := e.significance(in.P)
		e.features = append(e.features, Feature{
			Region:      interval.Point(in.Chr, in.Pos),
			Size:        1,
			Significant: sig,
		})
	}

	e.featureIdx = interval.NewIndex(0)
	for i, f := range e.features {
		e.featureIdx.Add(int64(i), f.Region, e.geneMargin)
	}

	e.logger.Pop("built features", map[string]interface{}{
		"features":     len(e.features),
		"singletons":   len(singletons),
		"droppedZeroP": dropped,
	})
}

// MapGenes assigns features to genes by region overlap. Gene feature lists
// are deduplicated and sorted so group aggregation counts each feature once.
func (e *Engine) MapGenes(regions map[loki.EntityID]*interval.Region) {
	e.geneFeatures = make(map[loki.EntityID][]int, len(regions))
	for gene, r := range regions {
		if r == nil {
			continue
		}
		hits := e.featureIdx.Overlapping(e.matcher, *r, e.geneMargin)
		if len(hits) == 0 {
			continue
		}
		idxs := make([]int, len(hits))
		for i, h := range hits {
			idxs[i] = int(h)
		}
		sort.Ints(idxs)
		e.geneFeatures[gene] = idxs
	}

	e.logger.Info("Mapped features to genes", map[string]interface{}{
		"genes": len(e.geneFeatures),
	})
}

// groupFeatureSet unions the member genes' features, deduplicated by feature
// identity.
func (e *Engine) groupFeatureSet(genes []loki.EntityID) []int {
	seen := make(map[int]struct{})
	var idxs []int
	for _, g := range genes {
		for _, f := range e.geneFeatures[g] {
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			idxs = append(idxs, f)
		}
	}
	sort.Ints(idxs)
	return idxs
}
