package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DataFile is the YAML document districtctl load imports: the geographic
// hierarchy, subjects, units and raw characteristic values, plus the
// calculators to enable. Validation is strict; a bad reference fails the
// whole load before anything touches the database.
type DataFile struct {
	GeoLevels       []GeoLevelSpec       `yaml:"geolevels"`
	Regions         []RegionSpec         `yaml:"regions"`
	Bodies          []BodySpec           `yaml:"bodies"`
	Subjects        []SubjectSpec        `yaml:"subjects"`
	Units           []UnitSpec           `yaml:"units"`
	Characteristics []CharacteristicSpec `yaml:"characteristics"`
	Calculators     []CalculatorSpec     `yaml:"calculators"`
}

type GeoLevelSpec struct {
	ID        int64   `yaml:"id"`
	Name      string  `yaml:"name"`
	Tolerance float64 `yaml:"tolerance"`
	MinZoom   int     `yaml:"min_zoom"`
}

type RegionSpec struct {
	ID    int64  `yaml:"id"`
	Name  string `yaml:"name"`
	Label string `yaml:"label"`
}

type BodyLevelSpec struct {
	GeoLevelID       int64  `yaml:"geolevel_id"`
	ParentGeoLevelID *int64 `yaml:"parent_geolevel_id,omitempty"`
}

type BodySpec struct {
	ID           int64           `yaml:"id"`
	Name         string          `yaml:"name"`
	RegionID     int64           `yaml:"region_id"`
	MaxDistricts int             `yaml:"max_districts"`
	Levels       []BodyLevelSpec `yaml:"levels"`
}

type SubjectSpec struct {
	Name                  string `yaml:"name"`
	DisplayName           string `yaml:"display_name"`
	PercentageDenominator string `yaml:"percentage_denominator,omitempty"`
}

type UnitSpec struct {
	ID         string `yaml:"id"`
	PortableID string `yaml:"portable_id"`
	Name       string `yaml:"name"`
	GeoLevelID int64  `yaml:"geolevel_id"`
	WKT        string `yaml:"wkt"`
}

type CharacteristicSpec struct {
	Subject string  `yaml:"subject"`
	UnitID  string  `yaml:"unit_id"`
	Number  float64 `yaml:"number"`
}

// CalculatorSpec enables one calculator by kind. sum and percent require a
// subject; spread takes none.
type CalculatorSpec struct {
	Kind    string `yaml:"kind"`
	Subject string `yaml:"subject,omitempty"`
}

// LoadDataFile reads and validates an import document.
func LoadDataFile(path string) (DataFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DataFile{}, fmt.Errorf("read data file: %w", err)
	}
	var df DataFile
	if err := yaml.Unmarshal(data, &df); err != nil {
		return DataFile{}, fmt.Errorf("parse data file: %w", err)
	}
	if err := df.Validate(); err != nil {
		return DataFile{}, err
	}
	return df, nil
}

// Validate checks internal consistency: unique identifiers, resolvable
// references, and acyclic body level chains.
func (df DataFile) Validate() error {
	levelIDs := make(map[int64]bool, len(df.GeoLevels))
	for _, lvl := range df.GeoLevels {
		if lvl.Name == "" {
			return fmt.Errorf("geolevel %d: missing name", lvl.ID)
		}
		if levelIDs[lvl.ID] {
			return fmt.Errorf("geolevel %d: duplicate id", lvl.ID)
		}
		levelIDs[lvl.ID] = true
	}

	regionIDs := make(map[int64]bool, len(df.Regions))
	for _, region := range df.Regions {
		if regionIDs[region.ID] {
			return fmt.Errorf("region %d: duplicate id", region.ID)
		}
		regionIDs[region.ID] = true
	}

	for _, body := range df.Bodies {
		if !regionIDs[body.RegionID] {
			return fmt.Errorf("body %q: unknown region %d", body.Name, body.RegionID)
		}
		if len(body.Levels) == 0 {
			return fmt.Errorf("body %q: no levels declared", body.Name)
		}
		declared := make(map[int64]*int64, len(body.Levels))
		for _, ll := range body.Levels {
			if !levelIDs[ll.GeoLevelID] {
				return fmt.Errorf("body %q: unknown geolevel %d", body.Name, ll.GeoLevelID)
			}
			if _, ok := declared[ll.GeoLevelID]; ok {
				return fmt.Errorf("body %q: geolevel %d declared twice", body.Name, ll.GeoLevelID)
			}
			declared[ll.GeoLevelID] = ll.ParentGeoLevelID
		}
		for id, parent := range declared {
			if parent == nil {
				continue
			}
			if _, ok := declared[*parent]; !ok {
				return fmt.Errorf("body %q: geolevel %d nests under undeclared geolevel %d", body.Name, id, *parent)
			}
		}
		if err := checkLevelChain(body.Name, declared); err != nil {
			return err
		}
	}

	subjectNames := make(map[string]bool, len(df.Subjects))
	for _, subj := range df.Subjects {
		if subj.Name == "" {
			return fmt.Errorf("subject with empty name")
		}
		if subjectNames[subj.Name] {
			return fmt.Errorf("subject %q: duplicate name", subj.Name)
		}
		subjectNames[subj.Name] = true
	}
	for _, subj := range df.Subjects {
		if subj.PercentageDenominator != "" && !subjectNames[subj.PercentageDenominator] {
			return fmt.Errorf("subject %q: unknown denominator %q", subj.Name, subj.PercentageDenominator)
		}
	}

	unitIDs := make(map[string]bool, len(df.Units))
	for _, u := range df.Units {
		if u.ID == "" {
			return fmt.Errorf("unit with empty id")
		}
		if unitIDs[u.ID] {
			return fmt.Errorf("unit %q: duplicate id", u.ID)
		}
		if !levelIDs[u.GeoLevelID] {
			return fmt.Errorf("unit %q: unknown geolevel %d", u.ID, u.GeoLevelID)
		}
		if u.WKT == "" {
			return fmt.Errorf("unit %q: missing geometry", u.ID)
		}
		unitIDs[u.ID] = true
	}

	for _, c := range df.Characteristics {
		if !subjectNames[c.Subject] {
			return fmt.Errorf("characteristic for unknown subject %q", c.Subject)
		}
		if !unitIDs[c.UnitID] {
			return fmt.Errorf("characteristic for unknown unit %q", c.UnitID)
		}
	}

	for _, calc := range df.Calculators {
		switch calc.Kind {
		case "sum", "percent":
			if !subjectNames[calc.Subject] {
				return fmt.Errorf("calculator %q: unknown subject %q", calc.Kind, calc.Subject)
			}
		case "spread":
			if calc.Subject != "" {
				return fmt.Errorf("calculator spread takes no subject")
			}
		default:
			return fmt.Errorf("unknown calculator kind %q", calc.Kind)
		}
	}
	return nil
}

// checkLevelChain rejects cycles in a body's parent declarations. The strict
// single-chain shape is enforced again when the hierarchy service loads.
func checkLevelChain(bodyName string, declared map[int64]*int64) error {
	for start := range declared {
		seen := map[int64]bool{start: true}
		cur := declared[start]
		for cur != nil {
			if seen[*cur] {
				return fmt.Errorf("body %q: geolevel nesting cycle through %d", bodyName, *cur)
			}
			seen[*cur] = true
			cur = declared[*cur]
		}
	}
	return nil
}
