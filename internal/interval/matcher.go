package interval

// Params are the thresholds an overlap must clear. Both checks apply
// independently: the overlap must cover at least Bases basepairs and at least
// Percent of the smaller region. PercentWaived records, as an explicit
// configuration decision, that the caller supplied a basepair threshold while
// leaving the percent at its default; the percent requirement is then
// disabled rather than silently forced to 100.
type Params struct {
	Percent       float64
	Bases         int
	PercentWaived bool
}

// DefaultParams requires full coverage of the smaller region, the knowledge
// database's historical matching behavior.
func DefaultParams() Params {
	return Params{Percent: 100, Bases: 0}
}

// Matcher performs overlap tests under one run-wide coordinate convention.
// A Matcher is a value; it carries no mutable state and is safe for
// concurrent use.
type Matcher struct {
	Conv   Convention
	Params Params
}

// NewMatcher creates a matcher for the given convention and thresholds.
func NewMatcher(conv Convention, params Params) Matcher {
	return Matcher{Conv: conv, Params: params}
}

// Overlaps reports whether two regions, each expanded by its own margin,
// overlap by at least the configured thresholds. The test is symmetric in
// its arguments. Regions on different chromosomes never overlap.
func (m Matcher) Overlaps(a Region, marginA int, b Region, marginB int) bool {
	if a.Chr != b.Chr {
		return false
	}

	adjust := m.Conv.adjustment()

	lo := a.Start - marginA
	if blo := b.Start - marginB; blo > lo {
		lo = blo
	}
	hi := a.Stop + marginA
	if bhi := b.Stop + marginB; bhi < hi {
		hi = bhi
	}

	overlap := hi - lo + adjust
	if overlap < 0 {
		overlap = 0
	}

	if overlap < m.Params.Bases {
		return false
	}
	if m.Params.PercentWaived {
		return true
	}

	minLen := m.Conv.Length(a)
	if lb := m.Conv.Length(b); lb < minLen {
		minLen = lb
	}
	if minLen < 1 {
		// zero-length points under a half-open convention still span one
		// candidate basepair for coverage purposes
		minLen = 1
	}

	return 100*float64(overlap)/float64(minLen) >= m.Params.Percent
}

// Contains reports whether a position falls within a region expanded by the
// margin: the point-in-region test is the overlap test with the point as a
// zero-length interval and no thresholds beyond touching.
func (m Matcher) Contains(r Region, margin int, chr, pos int) bool {
	if r.Chr != chr {
		return false
	}
	return pos >= r.Start-margin && pos <= r.Stop+margin
}
