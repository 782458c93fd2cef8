package calc

import (
	"context"
	"math"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/PublicMapping/districtcore/internal/distcache"
)

// Spread reports the average pairwise distance between the district's unit
// centers, a rough compactness signal. Distances are served from the cache
// when one is configured; a disabled cache only makes this slower, never
// wrong.
type Spread struct {
	cache *distcache.Cache
}

// NewSpread creates a spread calculator. cache may be disabled.
func NewSpread(cache *distcache.Cache) *Spread {
	return &Spread{cache: cache}
}

func (c *Spread) Name() string {
	return "spread"
}

func (c *Spread) Compute(ctx context.Context, in Input) (Result, error) {
	var total float64
	var pairs int
	for i := 0; i < len(in.Units); i++ {
		for j := i + 1; j < len(in.Units); j++ {
			a, b := in.Units[i], in.Units[j]
			d, ok := c.cache.Get(ctx, a.ID, b.ID)
			if !ok {
				d = centerDistance(a.Center, b.Center)
				c.cache.Put(ctx, a.ID, b.ID, d)
			}
			total += d
			pairs++
		}
	}
	if pairs == 0 {
		return Result{Calculator: c.Name()}, nil
	}
	return Result{Calculator: c.Name(), Value: total / float64(pairs)}, nil
}

func centerDistance(a, b geom.Point) float64 {
	pa, okA := a.XY()
	pb, okB := b.XY()
	if !okA || !okB {
		return 0
	}
	return math.Hypot(pa.X-pb.X, pa.Y-pb.Y)
}
