package geo_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/PublicMapping/districtcore/internal/geo"
)

func TestSimplify_RemovesRedundantVertices(t *testing.T) {
	// Square with collinear midpoints on every edge.
	g, err := geo.ParseWKT("POLYGON((0 0,1 0,2 0,2 1,2 2,1 2,0 2,0 1,0 0))")
	require.NoError(t, err)

	s := geo.NewSimplifier(0, nil)
	tiers := []geo.TierTolerance{{GeoLevelID: 1, Tolerance: 0.5}}
	views := s.Simplify(g, tiers)
	require.Len(t, views, 1)

	simplified := views[1]
	require.NoError(t, simplified.Validate())
	require.InDelta(t, 4.0, geo.Area(simplified), 1e-9)
}

func TestSimplify_Idempotent(t *testing.T) {
	g, err := geo.ParseWKT("POLYGON((0 0,1 0,2 0,2 1,2 2,1 2,0 2,0 1,0 0))")
	require.NoError(t, err)

	s := geo.NewSimplifier(0, nil)
	tiers := []geo.TierTolerance{{GeoLevelID: 1, Tolerance: 0.5}, {GeoLevelID: 2, Tolerance: 0.1}}

	first := s.Simplify(g, tiers)
	for _, tier := range tiers {
		second := s.Simplify(first[tier.GeoLevelID], []geo.TierTolerance{tier})
		require.Equal(t, first[tier.GeoLevelID].AsText(), second[tier.GeoLevelID].AsText())
	}
}

func TestSimplify_ZeroToleranceReturnsInput(t *testing.T) {
	g, err := geo.ParseWKT("POLYGON((0 0,2 0,2 2,0 2,0 0))")
	require.NoError(t, err)

	s := geo.NewSimplifier(0, nil)
	views := s.Simplify(g, []geo.TierTolerance{{GeoLevelID: 7, Tolerance: 0}})
	require.Equal(t, g.AsText(), views[7].AsText())
}

func TestSimplify_EachTierIndependent(t *testing.T) {
	g, err := geo.ParseWKT("POLYGON((0 0,1 0,2 0,2 2,0 2,0 0))")
	require.NoError(t, err)

	s := geo.NewSimplifier(2, nil)
	views := s.Simplify(g, []geo.TierTolerance{
		{GeoLevelID: 1, Tolerance: 0.5},
		{GeoLevelID: 2, Tolerance: 0},
	})
	require.Len(t, views, 2)
	for id, v := range views {
		require.NoError(t, v.Validate(), "tier %d", id)
	}
}
