// Package interval implements genomic interval matching: a side-agnostic
// overlap test with margin, percent, and basepair thresholds, and an
// immutable per-chromosome zone index for point and range queries.
package interval

import "fmt"

// Region is a chromosome-anchored basepair interval. The coordinate base and
// the open/closed convention are run-wide settings (Convention), not
// per-region state.
type Region struct {
	Chr   int
	Start int
	Stop  int
}

// Point returns a zero-length region at the given position, used to match
// positions against regions with the same overlap test.
func Point(chr, pos int) Region {
	return Region{Chr: chr, Start: pos, Stop: pos}
}

// Valid reports whether the region is well-formed. A start past the stop is
// malformed input data and must be skipped by loaders, never indexed.
func (r Region) Valid() bool {
	return r.Chr > 0 && r.Start <= r.Stop
}

func (r Region) String() string {
	return fmt.Sprintf("chr%d:%d-%d", r.Chr, r.Start, r.Stop)
}

// Convention captures the run-wide coordinate interpretation shared by every
// region in a run.
type Convention struct {
	// CoordinateBase is the position of the first basepair (1 for standard
	// one-based coordinates, 0 for zero-based inputs).
	CoordinateBase int
	// HalfOpen marks Stop as exclusive; when false intervals are closed.
	HalfOpen bool
}

// DefaultConvention is one-based, closed intervals, matching the compiled
// knowledge database.
func DefaultConvention() Convention {
	return Convention{CoordinateBase: 1, HalfOpen: false}
}

// adjustment is the closed-interval correction term: a closed interval
// [x,x] spans one basepair, a half-open [x,x) spans zero.
func (c Convention) adjustment() int {
	if c.HalfOpen {
		return 0
	}
	return 1
}

// Length returns the basepair span of a region under this convention.
func (c Convention) Length(r Region) int {
	return r.Stop - r.Start + c.adjustment()
}

// Normalize converts a region from an input convention into this one.
// Biofilter stores everything one-based and closed internally; inputs
// declared zero-based or half-open are shifted once at the boundary.
func (c Convention) Normalize(r Region, input Convention) Region {
	r.Start += c.CoordinateBase - input.CoordinateBase
	r.Stop += c.CoordinateBase - input.CoordinateBase
	// a half-open stop is exclusive, so it sits one basepair past a closed stop
	r.Stop += input.adjustment() - c.adjustment()
	return r
}
