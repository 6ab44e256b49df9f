// Package model builds scored pairwise association models from resolved gene
// sets: each candidate pair is scored by how many distinct knowledge sources
// and qualifying groups place both genes together.
package model

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"biofilter/internal/config"
	"biofilter/internal/logging"
	"biofilter/internal/loki"
	"biofilter/internal/resolve"
)

// Score is a model's source-group tally.
type Score struct {
	Sources int
	Groups  int
}

// Model is one unordered gene pair with its score. A is always the smaller
// entity id.
type Model struct {
	A, B  loki.EntityID
	Score Score
}

// Generator enumerates and scores candidate models against a membership
// snapshot.
type Generator struct {
	ms      *resolve.Membership
	logger  *logging.Logger
	opts    config.ModelOptions
	workers int
}

// NewGenerator creates a model generator. workers <= 0 means one per CPU.
func NewGenerator(ms *resolve.Membership, logger *logging.Logger, opts config.ModelOptions, workers int) *Generator {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Generator{ms: ms, logger: logger, opts: opts, workers: workers}
}

// Generate scores every unordered pair between the primary and alternate
// gene sets. A nil alternate set pairs the primary set against itself.
// Pairs are scored in parallel; ordering and truncation happen in a single
// global pass afterwards, so partial per-worker order never leaks out.
func (g *Generator) Generate(ctx context.Context, primary, alternate []loki.EntityID) ([]Model, error) {
	pairs := enumeratePairs(primary, alternate)

	g.logger.Push("Generating models", map[string]interface{}{
		"primary":   len(primary),
		"alternate": len(alternate),
		"pairs":     len(pairs),
		"workers":   g.workers,
	})

	results := make([]Model, len(pairs))
	keep := make([]bool, len(pairs))

	chunk := (len(pairs) + g.workers - 1) / g.workers
	if chunk < 1 {
		chunk = 1
	}

	var wg sync.WaitGroup
	var cancelled bool
	var mu sync.Mutex

	for start := 0; start < len(pairs); start += chunk {
		end := start + chunk
		if end > len(pairs) {
			end = len(pairs)
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				if (i-start)%256 == 0 && ctx.Err() != nil {
					mu.Lock()
					cancelled = true
					mu.Unlock()
					return
				}
				m, ok := g.scorePair(pairs[i][0], pairs[i][1])
				results[i] = m
				keep[i] = ok
			}
		}(start, end)
	}
	wg.Wait()

	if cancelled {
		g.logger.Pop("model generation cancelled", nil)
		return nil, ctx.Err()
	}

	models := make([]Model, 0, len(pairs))
	for i, ok := range keep {
		if ok {
			models = append(models, results[i])
		}
	}

	if g.opts.Sort {
		sort.Slice(models, func(i, j int) bool {
			a, b := models[i], models[j]
			if a.Score.Sources != b.Score.Sources {
				return a.Score.Sources > b.Score.Sources
			}
			if a.Score.Groups != b.Score.Groups {
				return a.Score.Groups > b.Score.Groups
			}
			if a.A != b.A {
				return a.A < b.A
			}
			return a.B < b.B
		})
	}
	models = truncate(models, g.opts.MaximumCount)

	g.logger.Pop("generated models", map[string]interface{}{
		"models": len(models),
	})
	return models, nil
}

// scorePair computes one pair's source-group tally. In all-pairwise mode
// every pair survives unscored; otherwise the pair must reach the minimum
// source count across qualifying shared groups.
func (g *Generator) scorePair(a, b loki.EntityID) (Model, bool) {
	m := Model{A: a, B: b}
	if g.opts.AllPairwise {
		return m, true
	}

	sources := make(map[loki.EntityID]struct{})
	groups := 0
	for _, group := range g.ms.SharedGroups(a, b) {
		size := g.ms.GroupSize(group)
		if size < 2 {
			continue
		}
		if g.opts.MaximumGroupSize > 0 && size > g.opts.MaximumGroupSize {
			continue
		}
		groups++
		sources[g.ms.GroupSource[group]] = struct{}{}
	}

	m.Score = Score{Sources: len(sources), Groups: groups}
	return m, m.Score.Sources >= g.opts.MinimumScore
}

// enumeratePairs produces the deduplicated unordered candidate pairs in a
// deterministic order.
func enumeratePairs(primary, alternate []loki.EntityID) [][2]loki.EntityID {
	var pairs [][2]loki.EntityID

	if alternate == nil {
		for i := 0; i < len(primary); i++ {
			for j := i + 1; j < len(primary); j++ {
				pairs = append(pairs, orient(primary[i], primary[j]))
			}
		}
		return dedupPairs(pairs)
	}

	for _, l := range primary {
		for _, r := range alternate {
			if l == r {
				continue
			}
			pairs = append(pairs, orient(l, r))
		}
	}
	return dedupPairs(pairs)
}

func orient(a, b loki.EntityID) [2]loki.EntityID {
	if a > b {
		a, b = b, a
	}
	return [2]loki.EntityID{a, b}
}

func dedupPairs(pairs [][2]loki.EntityID) [][2]loki.EntityID {
	seen := make(map[[2]loki.EntityID]struct{}, len(pairs))
	out := pairs[:0]
	for _, p := range pairs {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func truncate(models []Model, max int) []Model {
	if max > 0 && len(models) > max {
		return models[:max]
	}
	return models
}
