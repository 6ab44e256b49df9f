package interval

// Index is a per-chromosome zone index over identified regions. Every region
// is registered in each fixed-size zone its (margin-expanded) span touches,
// so point and range queries only examine the handful of zones they cover
// instead of the whole chromosome.
//
// Build the index fully (Add) before querying it; after that it is never
// mutated and is safe for unsynchronized concurrent reads from the matching
// and permutation phases.
type Index struct {
	zoneSize int
	regions  map[int64]Region
	zones    map[int]map[int][]int64
}

// DefaultZoneSize matches the zone stride used by the knowledge database's
// own region zone tables.
const DefaultZoneSize = 100000

// NewIndex creates an empty index with the given zone size; sizes below 1
// fall back to DefaultZoneSize.
func NewIndex(zoneSize int) *Index {
	if zoneSize < 1 {
		zoneSize = DefaultZoneSize
	}
	return &Index{
		zoneSize: zoneSize,
		regions:  make(map[int64]Region),
		zones:    make(map[int]map[int][]int64),
	}
}

// Add registers a region under the caller's identifier, expanding its zone
// coverage by the given margin. Adding the same id twice replaces the stored
// region but not its previous zone entries, so loaders must use fresh ids.
func (ix *Index) Add(id int64, r Region, margin int) {
	ix.regions[id] = r

	chrZones := ix.zones[r.Chr]
	if chrZones == nil {
		chrZones = make(map[int][]int64)
		ix.zones[r.Chr] = chrZones
	}
	for z := zoneOf(r.Start-margin, ix.zoneSize); z <= zoneOf(r.Stop+margin, ix.zoneSize); z++ {
		chrZones[z] = append(chrZones[z], id)
	}
}

// Len returns the number of indexed regions.
func (ix *Index) Len() int {
	return len(ix.regions)
}

// Region returns the stored region for an id.
func (ix *Index) Region(id int64) (Region, bool) {
	r, ok := ix.regions[id]
	return r, ok
}

// Candidates returns the ids of all regions whose zone coverage includes the
// position. Zone coverage over-approximates: callers still apply the exact
// containment or overlap test.
func (ix *Index) Candidates(chr, pos int) []int64 {
	chrZones := ix.zones[chr]
	if chrZones == nil {
		return nil
	}
	return chrZones[zoneOf(pos, ix.zoneSize)]
}

// Containing returns the ids of regions that contain the position when each
// region is expanded by the margin.
func (ix *Index) Containing(m Matcher, chr, pos, margin int) []int64 {
	var out []int64
	for _, id := range ix.Candidates(chr, pos) {
		if m.Contains(ix.regions[id], margin, chr, pos) {
			out = append(out, id)
		}
	}
	return out
}

// Overlapping returns the ids of regions that pass the matcher's overlap
// test against the query region. Each candidate is tested once even when it
// spans several query zones.
func (ix *Index) Overlapping(m Matcher, query Region, queryMargin int) []int64 {
	chrZones := ix.zones[query.Chr]
	if chrZones == nil {
		return nil
	}

	var out []int64
	seen := make(map[int64]struct{})
	for z := zoneOf(query.Start-queryMargin, ix.zoneSize); z <= zoneOf(query.Stop+queryMargin, ix.zoneSize); z++ {
		for _, id := range chrZones[z] {
			if _, done := seen[id]; done {
				continue
			}
			seen[id] = struct{}{}
			if m.Overlaps(ix.regions[id], 0, query, queryMargin) {
				out = append(out, id)
			}
		}
	}
	return out
}

func zoneOf(pos, zoneSize int) int {
	if pos < 0 {
		// integer division truncates toward zero; negative positions (from
		// margin expansion near a chromosome start) belong to zone <= -1
		return (pos+1)/zoneSize - 1
	}
	return pos / zoneSize
}
