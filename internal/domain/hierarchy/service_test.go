package hierarchy_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/PublicMapping/districtcore/internal/domain/hierarchy"
)

type fakeRepo struct {
	levels []hierarchy.GeoLevel
	bodies []hierarchy.LegislativeBody
}

func (r *fakeRepo) ListLevels(context.Context) ([]hierarchy.GeoLevel, error) {
	return r.levels, nil
}

func (r *fakeRepo) ListBodies(context.Context) ([]hierarchy.LegislativeBody, error) {
	return r.bodies, nil
}

func ptr(v int64) *int64 { return &v }

func threeLevelRepo() *fakeRepo {
	return &fakeRepo{
		levels: []hierarchy.GeoLevel{
			{ID: 1, Name: "county"},
			{ID: 2, Name: "tract"},
			{ID: 3, Name: "block"},
		},
		bodies: []hierarchy.LegislativeBody{
			{
				ID: 10, Name: "senate", RegionID: 1, MaxDistricts: 40,
				Levels: []hierarchy.LegislativeLevel{
					{GeoLevelID: 1},
					{GeoLevelID: 2, ParentGeoLevelID: ptr(1)},
					{GeoLevelID: 3, ParentGeoLevelID: ptr(2)},
				},
			},
		},
	}
}

func TestService_OrdersLevelsCoarsestFirst(t *testing.T) {
	svc, err := hierarchy.NewService(context.Background(), threeLevelRepo(), nil)
	require.NoError(t, err)

	chain, err := svc.LevelsFor(10)
	require.NoError(t, err)
	require.Len(t, chain, 3)
	require.Equal(t, "county", chain[0].Name)
	require.Equal(t, "tract", chain[1].Name)
	require.Equal(t, "block", chain[2].Name)

	base, err := svc.BaseLevel(10)
	require.NoError(t, err)
	require.Equal(t, int64(3), base.ID)
}

func TestService_RejectsCycle(t *testing.T) {
	repo := threeLevelRepo()
	repo.bodies[0].Levels = []hierarchy.LegislativeLevel{
		{GeoLevelID: 1, ParentGeoLevelID: ptr(3)},
		{GeoLevelID: 2, ParentGeoLevelID: ptr(1)},
		{GeoLevelID: 3, ParentGeoLevelID: ptr(2)},
	}
	_, err := hierarchy.NewService(context.Background(), repo, nil)
	require.Error(t, err)
}

func TestService_RejectsFork(t *testing.T) {
	repo := threeLevelRepo()
	repo.bodies[0].Levels = []hierarchy.LegislativeLevel{
		{GeoLevelID: 1},
		{GeoLevelID: 2, ParentGeoLevelID: ptr(1)},
		{GeoLevelID: 3, ParentGeoLevelID: ptr(1)},
	}
	_, err := hierarchy.NewService(context.Background(), repo, nil)
	require.ErrorIs(t, err, hierarchy.ErrLevelChain)
}

func TestService_RejectsUnknownLevel(t *testing.T) {
	repo := threeLevelRepo()
	repo.bodies[0].Levels = append(repo.bodies[0].Levels,
		hierarchy.LegislativeLevel{GeoLevelID: 99, ParentGeoLevelID: ptr(3)})
	_, err := hierarchy.NewService(context.Background(), repo, nil)
	require.ErrorIs(t, err, hierarchy.ErrLevelNotFound)
}

func TestService_IsBelow(t *testing.T) {
	svc, err := hierarchy.NewService(context.Background(), threeLevelRepo(), nil)
	require.NoError(t, err)

	below, err := svc.IsBelow(10, 3, 1)
	require.NoError(t, err)
	require.True(t, below)

	below, err = svc.IsBelow(10, 1, 3)
	require.NoError(t, err)
	require.False(t, below)

	// Irreflexive.
	below, err = svc.IsBelow(10, 2, 2)
	require.NoError(t, err)
	require.False(t, below)

	_, err = svc.IsBelow(10, 2, 99)
	require.ErrorIs(t, err, hierarchy.ErrLevelNotInBody)
}

func TestService_BodyLookups(t *testing.T) {
	svc, err := hierarchy.NewService(context.Background(), threeLevelRepo(), nil)
	require.NoError(t, err)

	body, err := svc.Body(10)
	require.NoError(t, err)
	require.Equal(t, "senate", body.Name)

	body, err = svc.BodyByName("senate")
	require.NoError(t, err)
	require.Equal(t, int64(10), body.ID)

	_, err = svc.Body(99)
	require.ErrorIs(t, err, hierarchy.ErrBodyNotFound)
}
