package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/PublicMapping/districtcore/internal/config"
)

func ptr(v int64) *int64 { return &v }

func validDataFile() config.DataFile {
	return config.DataFile{
		GeoLevels: []config.GeoLevelSpec{
			{ID: 1, Name: "county", Tolerance: 0.01},
			{ID: 2, Name: "block"},
		},
		Regions: []config.RegionSpec{{ID: 1, Name: "state"}},
		Bodies: []config.BodySpec{{
			ID: 10, Name: "senate", RegionID: 1, MaxDistricts: 40,
			Levels: []config.BodyLevelSpec{
				{GeoLevelID: 1},
				{GeoLevelID: 2, ParentGeoLevelID: ptr(1)},
			},
		}},
		Subjects: []config.SubjectSpec{
			{Name: "population"},
			{Name: "hispanic", PercentageDenominator: "population"},
		},
		Units: []config.UnitSpec{
			{ID: "u1", GeoLevelID: 2, WKT: "POLYGON((0 0,1 0,1 1,0 1,0 0))"},
		},
		Characteristics: []config.CharacteristicSpec{
			{Subject: "population", UnitID: "u1", Number: 100},
		},
		Calculators: []config.CalculatorSpec{
			{Kind: "sum", Subject: "population"},
			{Kind: "spread"},
		},
	}
}

func TestDataFile_Valid(t *testing.T) {
	require.NoError(t, validDataFile().Validate())
}

func TestDataFile_RejectsNestingCycle(t *testing.T) {
	df := validDataFile()
	df.Bodies[0].Levels = []config.BodyLevelSpec{
		{GeoLevelID: 1, ParentGeoLevelID: ptr(2)},
		{GeoLevelID: 2, ParentGeoLevelID: ptr(1)},
	}
	require.ErrorContains(t, df.Validate(), "cycle")
}

func TestDataFile_RejectsUnknownReferences(t *testing.T) {
	df := validDataFile()
	df.Bodies[0].RegionID = 99
	require.ErrorContains(t, df.Validate(), "unknown region")

	df = validDataFile()
	df.Units[0].GeoLevelID = 99
	require.ErrorContains(t, df.Validate(), "unknown geolevel")

	df = validDataFile()
	df.Subjects[1].PercentageDenominator = "nope"
	require.ErrorContains(t, df.Validate(), "unknown denominator")

	df = validDataFile()
	df.Characteristics[0].UnitID = "nope"
	require.ErrorContains(t, df.Validate(), "unknown unit")

	df = validDataFile()
	df.Calculators = []config.CalculatorSpec{{Kind: "median"}}
	require.ErrorContains(t, df.Validate(), "unknown calculator kind")
}

func TestDataFile_RejectsDuplicates(t *testing.T) {
	df := validDataFile()
	df.GeoLevels = append(df.GeoLevels, config.GeoLevelSpec{ID: 1, Name: "again"})
	require.ErrorContains(t, df.Validate(), "duplicate")

	df = validDataFile()
	df.Units = append(df.Units, df.Units[0])
	require.ErrorContains(t, df.Validate(), "duplicate")
}

func TestLoadDataFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
geolevels:
  - id: 1
    name: county
regions:
  - id: 1
    name: state
bodies:
  - id: 10
    name: senate
    region_id: 1
    levels:
      - geolevel_id: 1
subjects:
  - name: population
units:
  - id: u1
    geolevel_id: 1
    wkt: "POLYGON((0 0,1 0,1 1,0 1,0 0))"
characteristics:
  - subject: population
    unit_id: u1
    number: 100
`), 0o644))

	df, err := config.LoadDataFile(path)
	require.NoError(t, err)
	require.Len(t, df.GeoLevels, 1)
	require.Len(t, df.Units, 1)
	require.Equal(t, 100.0, df.Characteristics[0].Number)
}

func TestLoadDataFile_MissingFile(t *testing.T) {
	_, err := config.LoadDataFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
