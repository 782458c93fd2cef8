package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/PublicMapping/districtcore/internal/domain/plan"
	"github.com/PublicMapping/districtcore/internal/domain/stats"
	"github.com/PublicMapping/districtcore/internal/repository"
)

// seedSubjects inserts population and hispanic subjects with raw values over
// three base units.
func seedSubjects(t *testing.T, db *DB) *SubjectRepository {
	t.Helper()
	seedHierarchy(t, db)
	units := NewGeoUnitRepository(db)
	repo := NewSubjectRepository(db)
	ctx := context.Background()

	for _, id := range []string{"u1", "u2", "u3"} {
		u := mustWKT(t, "POLYGON((0 0,1 0,1 1,0 1,0 0))")
		u.ID = id
		u.GeoLevelID = 2
		require.NoError(t, units.InsertUnit(ctx, u))
	}

	require.NoError(t, repo.InsertSubject(ctx, stats.Subject{Name: "population", DisplayName: "Population"}))
	require.NoError(t, repo.InsertSubject(ctx, stats.Subject{Name: "hispanic", PercentageDenominator: "population"}))
	require.NoError(t, repo.InsertCharacteristics(ctx, []stats.Characteristic{
		{Subject: "population", GeoUnitID: "u1", Number: 100},
		{Subject: "population", GeoUnitID: "u2", Number: 200},
		{Subject: "population", GeoUnitID: "u3", Number: 50},
		{Subject: "hispanic", GeoUnitID: "u1", Number: 40},
		{Subject: "hispanic", GeoUnitID: "u2", Number: 20},
	}))
	return repo
}

func TestSubjectRepository_ListSubjects(t *testing.T) {
	db := NewTestDB(t)
	repo := seedSubjects(t, db)

	subjects, err := repo.ListSubjects(context.Background())
	require.NoError(t, err)
	require.Len(t, subjects, 2)
	require.Equal(t, "hispanic", subjects[0].Name)
	require.Equal(t, "population", subjects[0].PercentageDenominator)
	require.Equal(t, "population", subjects[1].Name)
	require.Empty(t, subjects[1].PercentageDenominator)
}

func TestSubjectRepository_SumByUnits(t *testing.T) {
	db := NewTestDB(t)
	repo := seedSubjects(t, db)
	ctx := context.Background()

	sums, err := repo.SumByUnits(ctx, []string{"u1", "u2"})
	require.NoError(t, err)
	require.InDelta(t, 300, sums["population"], 1e-9)
	require.InDelta(t, 60, sums["hispanic"], 1e-9)

	// u3 has no hispanic row; the subject is simply absent.
	sums, err = repo.SumByUnits(ctx, []string{"u3"})
	require.NoError(t, err)
	require.InDelta(t, 50, sums["population"], 1e-9)
	_, ok := sums["hispanic"]
	require.False(t, ok)

	sums, err = repo.SumByUnits(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, sums)
}

func TestSubjectRepository_InsertErrors(t *testing.T) {
	db := NewTestDB(t)
	repo := seedSubjects(t, db)
	ctx := context.Background()

	err := repo.InsertSubject(ctx, stats.Subject{Name: "population"})
	require.ErrorIs(t, err, repository.ErrConflict)

	err = repo.InsertCharacteristics(ctx, []stats.Characteristic{
		{Subject: "population", GeoUnitID: "missing", Number: 1},
	})
	require.ErrorIs(t, err, repository.ErrForeignKeyViolation)
}

func TestComputedRepository_UpsertAndCopy(t *testing.T) {
	db := NewTestDB(t)
	seedSubjects(t, db)
	plans := NewPlanRepository(db)
	repo := NewComputedRepository(db)
	ctx := context.Background()

	p := testPlan("p1")
	require.NoError(t, plans.CreatePlan(ctx, p))
	require.NoError(t, plans.ApplyEdit(ctx, "p1", 1, []plan.Snapshot{
		{DistrictID: 1, Version: 1},
		{DistrictID: 2, Version: 1},
	}))
	rows, err := plans.AllRows(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	rowA, rowB := rows[0].RowID, rows[1].RowID

	require.NoError(t, repo.UpsertComputed(ctx, []stats.ComputedCharacteristic{
		{DistrictRowID: rowA, Subject: "population", Number: 100},
		{DistrictRowID: rowA, Subject: "hispanic", Number: 40, Percentage: 0.4},
	}))
	// Upsert replaces values for an existing (row, subject) pair.
	require.NoError(t, repo.UpsertComputed(ctx, []stats.ComputedCharacteristic{
		{DistrictRowID: rowA, Subject: "population", Number: 150},
	}))

	computed, err := repo.GetComputed(ctx, rowA)
	require.NoError(t, err)
	require.Len(t, computed, 2)
	require.Equal(t, "hispanic", computed[0].Subject)
	require.InDelta(t, 0.4, computed[0].Percentage, 1e-9)
	require.InDelta(t, 150, computed[1].Number, 1e-9)

	require.NoError(t, repo.CopyComputed(ctx, rowA, rowB))
	copied, err := repo.GetComputed(ctx, rowB)
	require.NoError(t, err)
	require.Len(t, copied, 2)

	require.NoError(t, repo.DeleteComputed(ctx, rowA))
	computed, err = repo.GetComputed(ctx, rowA)
	require.NoError(t, err)
	require.Empty(t, computed)
}
