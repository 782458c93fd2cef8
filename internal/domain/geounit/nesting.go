package geounit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/PublicMapping/districtcore/internal/domain/hierarchy"
	"github.com/PublicMapping/districtcore/internal/geo"
)

// NestingTolerance is the area slack allowed between a unit and the union of
// its children before the pair counts as a violation.
const NestingTolerance = 1e-9

// NestingViolation records one coarse unit whose children do not exactly
// tile it.
type NestingViolation struct {
	UnitID       string  `json:"unit_id"`
	GeoLevelID   int64   `json:"geolevel_id"`
	Uncovered    float64 `json:"uncovered"`
	Overshoot    float64 `json:"overshoot"`
	ChildCount   int     `json:"child_count"`
	ChildLevelID int64   `json:"child_geolevel_id"`
}

// NestingChecker verifies the admin guarantee the resolver relies on: every
// unit at a coarser tier is exactly the union of the finer units inside it.
type NestingChecker struct {
	units  Repository
	hier   *hierarchy.Service
	logger *slog.Logger
}

// NewNestingChecker creates a NestingChecker.
func NewNestingChecker(units Repository, hier *hierarchy.Service, logger *slog.Logger) *NestingChecker {
	if logger == nil {
		logger = slog.Default()
	}
	return &NestingChecker{units: units, hier: hier, logger: logger}
}

// Check walks every adjacent tier pair of a body and reports each coarse unit
// whose children leave part of it uncovered or spill outside it.
func (c *NestingChecker) Check(ctx context.Context, bodyID int64) ([]NestingViolation, error) {
	levels, err := c.hier.LevelsFor(bodyID)
	if err != nil {
		return nil, err
	}

	var violations []NestingViolation
	for i := 0; i+1 < len(levels); i++ {
		parents, err := c.units.ListByLevel(ctx, levels[i].ID)
		if err != nil {
			return nil, fmt.Errorf("loading geolevel %d units: %w", levels[i].ID, err)
		}
		children, err := c.units.ListByLevel(ctx, levels[i+1].ID)
		if err != nil {
			return nil, fmt.Errorf("loading geolevel %d units: %w", levels[i+1].ID, err)
		}

		for _, parent := range parents {
			v, err := c.checkUnit(parent, children, levels[i+1].ID)
			if err != nil {
				c.logger.Warn("skipping unit with degenerate geometry", "unit", parent.ID, "error", err)
				continue
			}
			if v != nil {
				violations = append(violations, *v)
			}
		}
	}
	return violations, nil
}

func (c *NestingChecker) checkUnit(parent GeoUnit, children []GeoUnit, childLevelID int64) (*NestingViolation, error) {
	var inside []geom.Geometry
	count := 0
	for _, child := range children {
		covered, err := geo.CoveredBy(child.Geom, parent.Geom)
		if err != nil {
			return nil, err
		}
		if covered {
			inside = append(inside, child.Geom)
			count++
		}
	}
	union, err := geo.UnionAll(inside)
	if err != nil {
		return nil, err
	}

	uncoveredGeom, err := geo.Difference(parent.Geom, union)
	if err != nil {
		return nil, err
	}
	overshootGeom, err := geo.Difference(union, parent.Geom)
	if err != nil {
		return nil, err
	}
	uncovered := geo.Area(uncoveredGeom)
	overshoot := geo.Area(overshootGeom)
	if uncovered <= NestingTolerance && overshoot <= NestingTolerance {
		return nil, nil
	}
	return &NestingViolation{
		UnitID:       parent.ID,
		GeoLevelID:   parent.GeoLevelID,
		Uncovered:    uncovered,
		Overshoot:    overshoot,
		ChildCount:   count,
		ChildLevelID: childLevelID,
	}, nil
}
