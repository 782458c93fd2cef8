package geounit_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/PublicMapping/districtcore/internal/domain/geounit"
)

func TestNestingCheck_CleanGrid(t *testing.T) {
	repo, hierSvc := gridFixture(t)
	checker := geounit.NewNestingChecker(repo, hierSvc, nil)

	violations, err := checker.Check(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, violations)
}

func TestNestingCheck_ReportsUncoveredParent(t *testing.T) {
	repo, hierSvc := gridFixture(t)

	// Remove one base cell so its middle parent is no longer fully tiled.
	delete(repo.units, "b44")

	checker := geounit.NewNestingChecker(repo, hierSvc, nil)
	violations, err := checker.Check(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, violations, 1)

	v := violations[0]
	require.Equal(t, "m11", v.UnitID)
	require.Equal(t, int64(2), v.GeoLevelID)
	require.Equal(t, int64(3), v.ChildLevelID)
	require.InDelta(t, 1.0, v.Uncovered, 1e-9)
	require.InDelta(t, 0.0, v.Overshoot, 1e-9)
	require.Equal(t, 8, v.ChildCount)
}
