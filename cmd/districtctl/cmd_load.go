package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PublicMapping/districtcore/internal/calc"
	"github.com/PublicMapping/districtcore/internal/config"
	"github.com/PublicMapping/districtcore/internal/distcache"
	"github.com/PublicMapping/districtcore/internal/domain/geounit"
	"github.com/PublicMapping/districtcore/internal/domain/hierarchy"
	"github.com/PublicMapping/districtcore/internal/domain/stats"
	"github.com/PublicMapping/districtcore/internal/geo"
	"github.com/PublicMapping/districtcore/internal/sqlite"
)

func newLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load <datafile.yaml>",
		Short: "Import hierarchy, units and characteristics from a YAML document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			df, err := config.LoadDataFile(args[0])
			if err != nil {
				return err
			}

			cfg, db, logger, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close()
			ctx := cmd.Context()

			hierRepo := sqlite.NewHierarchyRepository(db)
			unitRepo := sqlite.NewGeoUnitRepository(db)
			subjectRepo := sqlite.NewSubjectRepository(db)

			for _, lvl := range df.GeoLevels {
				if err := hierRepo.InsertLevel(ctx, hierarchy.GeoLevel{
					ID: lvl.ID, Name: lvl.Name, Tolerance: lvl.Tolerance, MinZoom: lvl.MinZoom,
				}); err != nil {
					return fmt.Errorf("geolevel %q: %w", lvl.Name, err)
				}
			}
			for _, region := range df.Regions {
				if err := hierRepo.InsertRegion(ctx, hierarchy.Region{
					ID: region.ID, Name: region.Name, Label: region.Label,
				}); err != nil {
					return fmt.Errorf("region %q: %w", region.Name, err)
				}
			}
			for _, body := range df.Bodies {
				levels := make([]hierarchy.LegislativeLevel, len(body.Levels))
				for i, ll := range body.Levels {
					levels[i] = hierarchy.LegislativeLevel{GeoLevelID: ll.GeoLevelID, ParentGeoLevelID: ll.ParentGeoLevelID}
				}
				if err := hierRepo.InsertBody(ctx, hierarchy.LegislativeBody{
					ID: body.ID, Name: body.Name, RegionID: body.RegionID,
					MaxDistricts: body.MaxDistricts, Levels: levels,
				}); err != nil {
					return fmt.Errorf("body %q: %w", body.Name, err)
				}
			}

			// A hierarchy that fails the strict chain check must not be
			// imported silently.
			if _, err := hierarchy.NewService(ctx, hierRepo, logger); err != nil {
				return fmt.Errorf("imported hierarchy invalid: %w", err)
			}

			for _, subj := range df.Subjects {
				if err := subjectRepo.InsertSubject(ctx, stats.Subject{
					Name: subj.Name, DisplayName: subj.DisplayName,
					PercentageDenominator: subj.PercentageDenominator,
				}); err != nil {
					return fmt.Errorf("subject %q: %w", subj.Name, err)
				}
			}

			for _, u := range df.Units {
				g, err := geo.ParseWKT(u.WKT)
				if err != nil {
					return fmt.Errorf("unit %q: %w", u.ID, err)
				}
				if err := unitRepo.InsertUnit(ctx, geounit.GeoUnit{
					ID: u.ID, PortableID: u.PortableID, Name: u.Name,
					GeoLevelID: u.GeoLevelID, Geom: g,
				}); err != nil {
					return fmt.Errorf("unit %q: %w", u.ID, err)
				}
			}

			chars := make([]stats.Characteristic, len(df.Characteristics))
			for i, c := range df.Characteristics {
				chars[i] = stats.Characteristic{Subject: c.Subject, GeoUnitID: c.UnitID, Number: c.Number}
			}
			if err := subjectRepo.InsertCharacteristics(ctx, chars); err != nil {
				return fmt.Errorf("characteristics: %w", err)
			}

			// Resolve configured calculators now so a bad name fails the load.
			cache := distcache.Open(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
			defer cache.Close()
			if _, err := buildCalculators(df, cache); err != nil {
				return err
			}

			logger.Info("data loaded",
				"geolevels", len(df.GeoLevels), "bodies", len(df.Bodies),
				"subjects", len(df.Subjects), "units", len(df.Units),
				"characteristics", len(df.Characteristics))
			return nil
		},
	}
}

// buildCalculators registers the configured calculators.
func buildCalculators(df config.DataFile, cache *distcache.Cache) (*calc.Registry, error) {
	reg := calc.NewRegistry()
	for _, spec := range df.Calculators {
		var c calc.Calculator
		switch spec.Kind {
		case "sum":
			c = calc.NewSum(spec.Subject)
		case "percent":
			c = calc.NewPercent(spec.Subject)
		case "spread":
			c = calc.NewSpread(cache)
		default:
			return nil, fmt.Errorf("unknown calculator kind %q", spec.Kind)
		}
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
