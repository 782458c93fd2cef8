package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/peterstace/simplefeatures/geom"
	"github.com/stretchr/testify/require"

	"github.com/PublicMapping/districtcore/internal/domain/plan"
	"github.com/PublicMapping/districtcore/internal/geo"
	"github.com/PublicMapping/districtcore/internal/repository"
)

func testPlan(id string) *plan.Plan {
	now := time.Now().UTC()
	return &plan.Plan{
		ID:        id,
		Name:      "test plan",
		BodyID:    10,
		Owner:     "tester",
		CreatedAt: now,
		EditedAt:  now,
	}
}

func newPlanFixture(t *testing.T) (*PlanRepository, context.Context) {
	t.Helper()
	db := NewTestDB(t)
	seedHierarchy(t, db)
	units := NewGeoUnitRepository(db)
	ctx := context.Background()
	for _, id := range []string{"u1", "u2", "u3"} {
		u := mustWKT(t, "POLYGON((0 0,1 0,1 1,0 1,0 0))")
		u.ID = id
		u.GeoLevelID = 2
		require.NoError(t, units.InsertUnit(ctx, u))
	}
	repo := NewPlanRepository(db)
	require.NoError(t, repo.CreatePlan(ctx, testPlan("p1")))
	return repo, ctx
}

func TestPlanRepository_CreateAndGet(t *testing.T) {
	repo, ctx := newPlanFixture(t)

	p, err := repo.GetPlan(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, "test plan", p.Name)
	require.Equal(t, int64(10), p.BodyID)
	require.Zero(t, p.Version)
	require.Zero(t, p.MinVersion)

	_, err = repo.GetPlan(ctx, "missing")
	require.ErrorIs(t, err, plan.ErrPlanNotFound)

	require.ErrorIs(t, repo.CreatePlan(ctx, testPlan("p1")), repository.ErrConflict)

	bad := testPlan("p2")
	bad.BodyID = 99
	require.ErrorIs(t, repo.CreatePlan(ctx, bad), repository.ErrForeignKeyViolation)
}

func TestPlanRepository_ListPlans(t *testing.T) {
	repo, ctx := newPlanFixture(t)
	require.NoError(t, repo.CreatePlan(ctx, testPlan("p2")))

	plans, err := repo.ListPlans(ctx, 10)
	require.NoError(t, err)
	require.Len(t, plans, 2)

	plans, err = repo.ListPlans(ctx, 99)
	require.NoError(t, err)
	require.Empty(t, plans)
}

func TestPlanRepository_ApplyEdit(t *testing.T) {
	repo, ctx := newPlanFixture(t)

	g, err := geo.ParseWKT("POLYGON((0 0,2 0,2 1,0 1,0 0))")
	require.NoError(t, err)
	require.NoError(t, repo.ApplyEdit(ctx, "p1", 1, []plan.Snapshot{{
		DistrictID: 1,
		Name:       "District 1",
		Version:    1,
		Geom:       g,
		Members:    []string{"u1", "u2"},
		Tags:       plan.TagSet{{Key: "party", Value: "none"}},
	}}))

	p, err := repo.GetPlan(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, int64(1), p.Version)

	row, err := repo.LatestRow(ctx, "p1", 1, 1)
	require.NoError(t, err)
	require.Equal(t, "District 1", row.Name)
	require.InDelta(t, 2.0, row.Geom.Area(), 1e-9)
	require.Equal(t, plan.TagSet{{Key: "party", Value: "none"}}, row.Tags)

	members, err := repo.Members(ctx, row.RowID)
	require.NoError(t, err)
	require.Equal(t, []string{"u1", "u2"}, members)
}

func TestPlanRepository_ApplyEdit_Atomic(t *testing.T) {
	repo, ctx := newPlanFixture(t)

	// Second snapshot references a unit that does not exist, so the whole
	// edit must roll back, including the version bump.
	err := repo.ApplyEdit(ctx, "p1", 1, []plan.Snapshot{
		{DistrictID: 1, Version: 1, Members: []string{"u1"}},
		{DistrictID: 2, Version: 1, Members: []string{"missing"}},
	})
	require.ErrorIs(t, err, repository.ErrForeignKeyViolation)

	p, err := repo.GetPlan(ctx, "p1")
	require.NoError(t, err)
	require.Zero(t, p.Version)

	rows, err := repo.AllRows(ctx, "p1")
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestPlanRepository_ApplyEdit_UnknownPlan(t *testing.T) {
	repo, ctx := newPlanFixture(t)

	err := repo.ApplyEdit(ctx, "missing", 1, nil)
	require.ErrorIs(t, err, plan.ErrPlanNotFound)
}

func TestPlanRepository_EffectiveRows(t *testing.T) {
	repo, ctx := newPlanFixture(t)

	require.NoError(t, repo.ApplyEdit(ctx, "p1", 1, []plan.Snapshot{
		{DistrictID: 1, Version: 1, Members: []string{"u1"}},
		{DistrictID: 2, Version: 1, Members: []string{"u2"}},
	}))
	require.NoError(t, repo.ApplyEdit(ctx, "p1", 2, []plan.Snapshot{
		{DistrictID: 1, Version: 2, Members: []string{"u1", "u3"}},
	}))

	// At version 1 both districts carry their first snapshot.
	rows, err := repo.EffectiveRows(ctx, "p1", 1)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, int64(1), rows[0].Version)
	require.Equal(t, int64(1), rows[1].Version)

	// At version 2 district 1 advanced, district 2 carries over.
	rows, err = repo.EffectiveRows(ctx, "p1", 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, int64(2), rows[0].Version)
	require.Equal(t, int64(1), rows[1].Version)
}

func TestPlanRepository_LatestRow_NotFound(t *testing.T) {
	repo, ctx := newPlanFixture(t)

	_, err := repo.LatestRow(ctx, "p1", 7, 0)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPlanRepository_Versions(t *testing.T) {
	repo, ctx := newPlanFixture(t)

	require.NoError(t, repo.ApplyEdit(ctx, "p1", 1, []plan.Snapshot{{DistrictID: 1, Version: 1}}))
	require.NoError(t, repo.ApplyEdit(ctx, "p1", 2, []plan.Snapshot{{DistrictID: 1, Version: 2}}))
	require.NoError(t, repo.ApplyEdit(ctx, "p1", 3, []plan.Snapshot{{DistrictID: 2, Version: 3}}))

	versions, err := repo.Versions(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3}, versions)
}

func TestPlanRepository_PurgeRows(t *testing.T) {
	repo, ctx := newPlanFixture(t)

	require.NoError(t, repo.ApplyEdit(ctx, "p1", 1, []plan.Snapshot{
		{DistrictID: 1, Version: 1, Members: []string{"u1"}},
	}))
	require.NoError(t, repo.ApplyEdit(ctx, "p1", 2, []plan.Snapshot{
		{DistrictID: 1, Version: 2, Members: []string{"u1", "u2"}},
	}))

	rows, err := repo.AllRows(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	min := int64(2)
	require.NoError(t, repo.PurgeRows(ctx, "p1", []int64{rows[0].RowID}, &min))

	rows, err = repo.AllRows(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, int64(2), rows[0].Version)

	members, err := repo.Members(ctx, rows[0].RowID)
	require.NoError(t, err)
	require.Len(t, members, 2)

	p, err := repo.GetPlan(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, int64(2), p.MinVersion)

	// A lower bound never lowers min_version.
	lower := int64(1)
	require.NoError(t, repo.PurgeRows(ctx, "p1", []int64{rows[0].RowID + 100}, &lower))
	p, err = repo.GetPlan(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, int64(2), p.MinVersion)
}

func TestPlanRepository_SimpleViews(t *testing.T) {
	repo, ctx := newPlanFixture(t)

	require.NoError(t, repo.ApplyEdit(ctx, "p1", 1, []plan.Snapshot{{DistrictID: 1, Version: 1}}))
	row, err := repo.LatestRow(ctx, "p1", 1, 1)
	require.NoError(t, err)

	g1, err := geo.ParseWKT("POLYGON((0 0,2 0,2 2,0 2,0 0))")
	require.NoError(t, err)
	g2, err := geo.ParseWKT("POLYGON((0 0,2 0,2 2,0 0))")
	require.NoError(t, err)
	require.NoError(t, repo.SaveSimple(ctx, row.RowID, map[int64]geom.Geometry{1: g1, 2: g2}))

	views, err := repo.GetSimple(ctx, row.RowID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	require.InDelta(t, 4.0, views[1].Area(), 1e-9)
	require.InDelta(t, 2.0, views[2].Area(), 1e-9)

	// Saving again replaces the previous set.
	require.NoError(t, repo.SaveSimple(ctx, row.RowID, map[int64]geom.Geometry{1: g1}))
	views, err = repo.GetSimple(ctx, row.RowID)
	require.NoError(t, err)
	require.Len(t, views, 1)
}

func TestPlanRepository_SetTags(t *testing.T) {
	repo, ctx := newPlanFixture(t)

	require.NoError(t, repo.ApplyEdit(ctx, "p1", 1, []plan.Snapshot{{
		DistrictID: 1, Version: 1,
		Tags: plan.TagSet{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}},
	}}))
	row, err := repo.LatestRow(ctx, "p1", 1, 1)
	require.NoError(t, err)

	require.NoError(t, repo.SetTags(ctx, row.RowID, plan.TagSet{{Key: "c", Value: "3"}}))

	row, err = repo.LatestRow(ctx, "p1", 1, 1)
	require.NoError(t, err)
	require.Equal(t, plan.TagSet{{Key: "c", Value: "3"}}, row.Tags)
}
