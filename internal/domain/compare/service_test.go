package compare_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/PublicMapping/districtcore/internal/domain/compare"
	"github.com/PublicMapping/districtcore/internal/domain/plan"
	"github.com/PublicMapping/districtcore/internal/geo"
)

type fakePlans struct {
	districts map[string][]plan.District
}

func (f *fakePlans) Districts(_ context.Context, planID string, _ int64) ([]plan.District, error) {
	return f.districts[planID], nil
}

func district(t *testing.T, id int64, wkt string) plan.District {
	t.Helper()
	g, err := geo.ParseWKT(wkt)
	require.NoError(t, err)
	return plan.District{DistrictID: id, Geom: g}
}

// fixture: plan A splits a 4x2 strip into left and right halves; plan B has
// one district straddling the middle and one contained in A's left half.
func fixture(t *testing.T) *fakePlans {
	t.Helper()
	return &fakePlans{districts: map[string][]plan.District{
		"A": {
			district(t, 1, "POLYGON((0 0,2 0,2 2,0 2,0 0))"),
			district(t, 2, "POLYGON((2 0,4 0,4 2,2 2,2 0))"),
		},
		"B": {
			district(t, 1, "POLYGON((1 0,3 0,3 2,1 2,1 0))"),
			district(t, 2, "POLYGON((0 0,1 0,1 1,0 1,0 0))"),
		},
	}}
}

func TestFindSplits(t *testing.T) {
	svc := compare.NewService(fixture(t), 0, nil)

	splits, err := svc.FindSplits(context.Background(), "A", "B", -1, -1)
	require.NoError(t, err)
	require.Len(t, splits, 2)

	// B1 straddles both A districts; ordered by district A then B.
	require.Equal(t, int64(1), splits[0].DistrictA)
	require.Equal(t, int64(1), splits[0].DistrictB)
	require.InDelta(t, 2.0, splits[0].OverlapArea, 1e-9)
	require.Equal(t, int64(2), splits[1].DistrictA)
	require.Equal(t, int64(1), splits[1].DistrictB)
}

func TestFindComponents(t *testing.T) {
	svc := compare.NewService(fixture(t), 0, nil)

	components, err := svc.FindComponents(context.Background(), "A", "B", -1, -1)
	require.NoError(t, err)
	require.Len(t, components, 1)
	require.Equal(t, int64(1), components[0].DistrictA)
	require.Equal(t, int64(2), components[0].DistrictB)
	require.InDelta(t, 1.0, components[0].OverlapArea, 1e-9)
}

func TestSplitsAndComponentsAreExclusive(t *testing.T) {
	svc := compare.NewService(fixture(t), 0, nil)
	ctx := context.Background()

	splits, err := svc.FindSplits(ctx, "A", "B", -1, -1)
	require.NoError(t, err)
	components, err := svc.FindComponents(ctx, "A", "B", -1, -1)
	require.NoError(t, err)

	type pair struct{ a, b int64 }
	seen := make(map[pair]bool)
	for _, s := range splits {
		seen[pair{s.DistrictA, s.DistrictB}] = true
	}
	for _, c := range components {
		require.False(t, seen[pair{c.DistrictA, c.DistrictB}],
			"pair (%d,%d) reported as both split and containment", c.DistrictA, c.DistrictB)
	}
}

func TestNegligibleOverlapIsNotASplit(t *testing.T) {
	plans := &fakePlans{districts: map[string][]plan.District{
		"A": {district(t, 1, "POLYGON((0 0,2 0,2 2,0 2,0 0))")},
		"B": {district(t, 1, "POLYGON((1.999 0,4 0,4 2,1.999 2,1.999 0))")},
	}}
	svc := compare.NewService(plans, 0.01, nil)

	splits, err := svc.FindSplits(context.Background(), "A", "B", -1, -1)
	require.NoError(t, err)
	require.Empty(t, splits)
}

func TestUnassignedAndEmptyDistrictsExcluded(t *testing.T) {
	g, err := geo.ParseWKT("POLYGON((0 0,2 0,2 2,0 2,0 0))")
	require.NoError(t, err)
	plans := &fakePlans{districts: map[string][]plan.District{
		"A": {
			{DistrictID: plan.Unassigned, Geom: g},
			{DistrictID: 1, Geom: geo.Empty()},
		},
		"B": {district(t, 1, "POLYGON((1 0,3 0,3 2,1 2,1 0))")},
	}}
	svc := compare.NewService(plans, 0, nil)

	splits, err := svc.FindSplits(context.Background(), "A", "B", -1, -1)
	require.NoError(t, err)
	require.Empty(t, splits)
}
