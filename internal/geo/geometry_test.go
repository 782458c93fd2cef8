package geo_test

import (
	"testing"

	"github.com/peterstace/simplefeatures/geom"
	"github.com/stretchr/testify/require"

	"github.com/PublicMapping/districtcore/internal/geo"
)

func TestParseWKT(t *testing.T) {
	g, err := geo.ParseWKT("POLYGON((0 0,2 0,2 2,0 2,0 0))")
	require.NoError(t, err)
	require.Equal(t, 4.0, geo.Area(g))

	_, err = geo.ParseWKT("not wkt")
	require.Error(t, err)
}

func TestParseWKT_RepairsSelfIntersection(t *testing.T) {
	// Bowtie polygon, invalid as written.
	g, err := geo.ParseWKT("POLYGON((0 0,2 2,2 0,0 2,0 0))")
	require.NoError(t, err)
	require.NoError(t, g.Validate())
	require.Greater(t, geo.Area(g), 0.0)
}

func TestOverlapArea(t *testing.T) {
	a, err := geo.ParseWKT("POLYGON((0 0,2 0,2 2,0 2,0 0))")
	require.NoError(t, err)
	b, err := geo.ParseWKT("POLYGON((1 0,3 0,3 2,1 2,1 0))")
	require.NoError(t, err)

	overlap, err := geo.OverlapArea(a, b)
	require.NoError(t, err)
	require.InDelta(t, 2.0, overlap, 1e-9)
}

func TestOverlapArea_TouchingIsZero(t *testing.T) {
	a, err := geo.ParseWKT("POLYGON((0 0,1 0,1 1,0 1,0 0))")
	require.NoError(t, err)
	b, err := geo.ParseWKT("POLYGON((1 0,2 0,2 1,1 1,1 0))")
	require.NoError(t, err)

	overlap, err := geo.OverlapArea(a, b)
	require.NoError(t, err)
	require.Equal(t, 0.0, overlap)
}

func TestUnionAll(t *testing.T) {
	a, err := geo.ParseWKT("POLYGON((0 0,1 0,1 1,0 1,0 0))")
	require.NoError(t, err)
	b, err := geo.ParseWKT("POLYGON((1 0,2 0,2 1,1 1,1 0))")
	require.NoError(t, err)

	merged, err := geo.UnionAll([]geom.Geometry{a, geo.Empty(), b})
	require.NoError(t, err)
	require.InDelta(t, 2.0, geo.Area(merged), 1e-9)
}

func TestCoveredBy(t *testing.T) {
	outer, err := geo.ParseWKT("POLYGON((0 0,4 0,4 4,0 4,0 0))")
	require.NoError(t, err)
	inner, err := geo.ParseWKT("POLYGON((0 0,2 0,2 2,0 2,0 0))")
	require.NoError(t, err)

	// Boundary touching still counts as covered.
	covered, err := geo.CoveredBy(inner, outer)
	require.NoError(t, err)
	require.True(t, covered)

	covered, err = geo.CoveredBy(outer, inner)
	require.NoError(t, err)
	require.False(t, covered)
}

func TestInteriorPoint_NonConvex(t *testing.T) {
	// C-shape whose centroid falls in the notch.
	g, err := geo.ParseWKT("POLYGON((0 0,3 0,3 1,1 1,1 3,3 3,3 4,0 4,0 0))")
	require.NoError(t, err)

	pt := geo.InteriorPoint(g)
	require.False(t, pt.IsEmpty())
	inside, err := geo.CoveredBy(pt.AsGeometry(), g)
	require.NoError(t, err)
	require.True(t, inside)
}

func TestEnvelopeClip(t *testing.T) {
	big, err := geo.ParseWKT("POLYGON((-10 -10,10 -10,10 10,-10 10,-10 -10))")
	require.NoError(t, err)
	bounds, err := geo.ParseWKT("POLYGON((0 0,2 0,2 2,0 2,0 0))")
	require.NoError(t, err)

	clipped, err := geo.EnvelopeClip(big, bounds)
	require.NoError(t, err)
	require.InDelta(t, 4.0, geo.Area(clipped), 1e-9)
}
