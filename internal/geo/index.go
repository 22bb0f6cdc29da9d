package geo

import (
	"math"
	"sync"

	"github.com/couchcryptid/price-locator/internal/domain"
	"github.com/dhconnelly/rtreego"
)

const (
	tolerance   = 0.01
	minChildren = 2
	maxChildren = 8
	dimensions  = 2

	// candidates is how many planar R-tree neighbours are re-ranked by
	// haversine distance.
	candidates = 4
)

// regionItem wraps a Region for R-tree indexing.
type regionItem struct {
	region domain.Region
	rect   *rtreego.Rect
}

func (ri *regionItem) Bounds() *rtreego.Rect {
	return ri.rect
}

// RegionIndex answers nearest-region queries over region centroids.
type RegionIndex struct {
	mu   sync.RWMutex
	tree *rtreego.Rtree
	size int
}

// NewRegionIndex indexes the given regions.
func NewRegionIndex(regions map[string]domain.Region) *RegionIndex {
	idx := &RegionIndex{tree: rtreego.NewTree(dimensions, minChildren, maxChildren)}
	for _, r := range regions {
		p := rtreego.Point{r.Lat, r.Lon}
		idx.tree.Insert(&regionItem{region: r, rect: p.ToRect(tolerance)})
		idx.size++
	}
	return idx
}

// Size returns the number of indexed regions.
func (g *RegionIndex) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.size
}

// Nearest returns the region whose centroid is closest to (lat, lon).
func (g *RegionIndex) Nearest(lat, lon float64) (domain.Region, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.size == 0 {
		return domain.Region{}, false
	}

	results := g.tree.NearestNeighbors(min(candidates, g.size), rtreego.Point{lat, lon})

	var (
		best     domain.Region
		bestDist = math.Inf(1)
		found    bool
	)
	for _, result := range results {
		item, ok := result.(*regionItem)
		if !ok {
			continue
		}
		d := Haversine(lat, lon, item.region.Lat, item.region.Lon)
		if d < bestDist || (d == bestDist && item.region.Code < best.Code) {
			best, bestDist, found = item.region, d, true
		}
	}
	return best, found
}
