package paris

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	bferrors "biofilter/internal/errors"
)

// Bin stratifies the genome-wide features by size. Bin 0 collects culled
// features that never participate in permutation; bin 1 holds every
// single-input feature regardless of the target size; larger features are
// shuffled within their size class and split into near-equal contiguous bins
// in descending size order.
func (e *Engine) Bin() error {
	if len(e.features) == 0 {
		return bferrors.Newf(bferrors.BinningEmpty,
			"no features genome-wide; nothing to permute against")
	}

	e.featureBin = make([]int, len(e.features))
	var ones, rest []int
	for i, f := range e.features {
		switch {
		case f.Size < 1:
			// culled, stays in bin 0
		case f.Size == 1:
			ones = append(ones, i)
		default:
			rest = append(rest, i)
		}
	}

	e.bins = [][]int{nil, ones}
	if len(ones) == 0 && len(rest) == 0 {
		return bferrors.Newf(bferrors.BinningEmpty,
			"no features genome-wide; nothing to permute against")
	}

	if len(rest) > 0 {
		e.bins = append(e.bins, e.splitBySize(rest)...)
	}

	for b, bin := range e.bins {
		for _, f := range bin {
			e.featureBin[f] = b
		}
	}

	e.logBinStats()
	return nil
}

// splitBySize orders the multi-input features by descending size, shuffling
// ties with the master RNG, and cuts the sequence into near-equal contiguous
// bins targeting the configured bin size.
func (e *Engine) splitBySize(rest []int) [][]int {
	rng := e.rngFor(streamBinning, 0)

	sort.Slice(rest, func(i, j int) bool {
		a, b := e.features[rest[i]], e.features[rest[j]]
		if a.Size != b.Size {
			return a.Size > b.Size
		}
		return rest[i] < rest[j]
	})

	// shuffle within each equal-size run so bin boundaries are not biased by
	// feature construction order
	start := 0
	for start < len(rest) {
		end := start + 1
		for end < len(rest) && e.features[rest[end]].Size == e.features[rest[start]].Size {
			end++
		}
		run := rest[start:end]
		rng.Shuffle(len(run), func(i, j int) { run[i], run[j] = run[j], run[i] })
		start = end
	}

	nbins := int(math.Round(float64(len(rest)) / float64(e.opts.BinSize)))
	if nbins < 1 {
		nbins = 1
	}

	bins := make([][]int, 0, nbins)
	base, extra := len(rest)/nbins, len(rest)%nbins
	pos := 0
	for b := 0; b < nbins; b++ {
		n := base
		if b < extra {
			n++
		}
		bins = append(bins, rest[pos:pos+n])
		pos += n
	}
	return bins
}

func (e *Engine) logBinStats() {
	for b, bin := range e.bins {
		if b == 0 || len(bin) == 0 {
			continue
		}
		sizes := make([]float64, len(bin))
		for i, f := range bin {
			sizes[i] = float64(e.features[f].Size)
		}
		e.logger.Debug("Feature bin", map[string]interface{}{
			"bin":      b,
			"features": len(bin),
			"meanSize": stat.Mean(sizes, nil),
			"sdSize":   stat.StdDev(sizes, nil),
		})
	}
	e.logger.Info("Binned features", map[string]interface{}{
		"features": len(e.features),
		"bins":     len(e.bins) - 1,
	})
}
