package geounit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/PublicMapping/districtcore/internal/domain/hierarchy"
	"github.com/PublicMapping/districtcore/internal/geo"
)

// Repository provides geounit lookup for the resolver.
type Repository interface {
	GetByIDs(ctx context.Context, ids []string) ([]GeoUnit, error)
	ListByLevel(ctx context.Context, geoLevelID int64) ([]GeoUnit, error)
}

// Resolver translates a set of units at one geolevel into the minimal mixed
// set of units selected by a boundary. Units wholly determined at a coarse
// tier are reported at that tier; the boundary's remainder is pushed down one
// tier at a time until the base tier resolves it by area overlap.
type Resolver struct {
	units  Repository
	hier   *hierarchy.Service
	logger *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(units Repository, hier *hierarchy.Service, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{units: units, hier: hier, logger: logger}
}

// Resolve selects units for a boundary.
//
// With inside=true a candidate is selected when the boundary covers it
// outright; with inside=false when it doesn't overlap the boundary at all.
// Candidates that merely overlap are not selected at their own tier. Their
// unresolved region descends tier by tier: intermediate units wholly covered
// by the region are selected and subtracted, and whatever remains is resolved
// at the base tier by positive-area overlap. Outside queries bound the
// unresolved region by the boundary's envelope so the complement stays
// finite. A unit that only touches the boundary (zero-area overlap) counts
// as outside.
//
// An empty or unrepairable boundary yields an empty result, not an error.
func (r *Resolver) Resolve(ctx context.Context, bodyID, geoLevelID int64, unitIDs []string, boundary geom.Geometry, inside bool) ([]GeoUnit, error) {
	repaired, ok := geo.Repair(boundary)
	if !ok {
		r.logger.Warn("unresolvable boundary, returning no units", "body", bodyID)
		return nil, nil
	}
	if repaired.IsEmpty() && inside {
		return nil, nil
	}
	boundary = repaired

	levels, err := r.hier.LevelsFor(bodyID)
	if err != nil {
		return nil, err
	}
	tierIdx := -1
	for i, lvl := range levels {
		if lvl.ID == geoLevelID {
			tierIdx = i
		}
	}
	if tierIdx < 0 {
		return nil, hierarchy.ErrLevelNotInBody
	}
	baseIdx := len(levels) - 1

	candidates, err := r.units.GetByIDs(ctx, unitIDs)
	if err != nil {
		return nil, fmt.Errorf("loading candidate units: %w", err)
	}
	if len(candidates) != len(unitIDs) {
		return nil, ErrUnitNotFound
	}
	for _, c := range candidates {
		if c.GeoLevelID != geoLevelID {
			return nil, ErrLevelMismatch
		}
	}

	// Base tier: candidates resolve directly by area overlap.
	if tierIdx == baseIdx {
		var selected []GeoUnit
		for _, c := range candidates {
			overlap, err := geo.OverlapArea(c.Geom, boundary)
			if err != nil {
				r.logger.Warn("skipping degenerate unit", "unit", c.ID, "error", err)
				continue
			}
			if (overlap > 0) == inside {
				selected = append(selected, c)
			}
		}
		return selected, nil
	}

	var selected []GeoUnit
	var descend []GeoUnit
	for _, c := range candidates {
		overlap, err := geo.OverlapArea(c.Geom, boundary)
		if err != nil {
			r.logger.Warn("skipping degenerate unit", "unit", c.ID, "error", err)
			continue
		}
		covered, err := geo.CoveredBy(c.Geom, boundary)
		if err != nil {
			r.logger.Warn("skipping degenerate unit", "unit", c.ID, "error", err)
			continue
		}
		switch {
		case inside && covered:
			selected = append(selected, c)
		case inside && overlap > 0:
			descend = append(descend, c)
		case !inside && overlap == 0 && !covered:
			selected = append(selected, c)
		case !inside && !covered:
			descend = append(descend, c)
		}
	}
	if len(descend) == 0 {
		return selected, nil
	}

	region, err := r.unresolvedRegion(descend, boundary, inside)
	if err != nil {
		r.logger.Warn("unresolvable boundary region, returning coarse matches only", "error", err)
		return selected, nil
	}

	for i := tierIdx + 1; i <= baseIdx && !region.IsEmpty() && geo.Area(region) > 0; i++ {
		pool, err := r.units.ListByLevel(ctx, levels[i].ID)
		if err != nil {
			return nil, fmt.Errorf("loading geolevel %d units: %w", levels[i].ID, err)
		}
		if i == baseIdx {
			for _, u := range pool {
				overlap, err := geo.OverlapArea(u.Geom, region)
				if err != nil {
					r.logger.Warn("skipping degenerate unit", "unit", u.ID, "error", err)
					continue
				}
				if overlap > 0 {
					selected = append(selected, u)
				}
			}
			break
		}
		for _, u := range pool {
			if geo.Area(u.Geom) == 0 {
				continue
			}
			covered, err := geo.CoveredBy(u.Geom, region)
			if err != nil || !covered {
				continue
			}
			selected = append(selected, u)
			region, err = geo.Difference(region, u.Geom)
			if err != nil {
				return nil, fmt.Errorf("shrinking region: %w", err)
			}
		}
	}
	return selected, nil
}

// ResolveBase expands units at any declared tier into the base units they
// spatially cover: each named unit's own geometry is the boundary and base
// units are selected by positive-area overlap. Units already at the base
// tier are returned as-is.
func (r *Resolver) ResolveBase(ctx context.Context, bodyID, geoLevelID int64, unitIDs []string) ([]GeoUnit, error) {
	base, err := r.hier.BaseLevel(bodyID)
	if err != nil {
		return nil, err
	}

	candidates, err := r.units.GetByIDs(ctx, unitIDs)
	if err != nil {
		return nil, fmt.Errorf("loading candidate units: %w", err)
	}
	if len(candidates) != len(unitIDs) {
		return nil, ErrUnitNotFound
	}
	for _, c := range candidates {
		if c.GeoLevelID != geoLevelID {
			return nil, ErrLevelMismatch
		}
	}
	if geoLevelID == base.ID {
		return candidates, nil
	}

	geoms := make([]geom.Geometry, len(candidates))
	for i, c := range candidates {
		geoms[i] = c.Geom
	}
	selection, err := geo.UnionAll(geoms)
	if err != nil {
		return nil, fmt.Errorf("merging candidate geometries: %w", err)
	}

	pool, err := r.units.ListByLevel(ctx, base.ID)
	if err != nil {
		return nil, fmt.Errorf("loading base units: %w", err)
	}
	var selected []GeoUnit
	for _, u := range pool {
		overlap, err := geo.OverlapArea(u.Geom, selection)
		if err != nil {
			r.logger.Warn("skipping degenerate unit", "unit", u.ID, "error", err)
			continue
		}
		if overlap > 0 {
			selected = append(selected, u)
		}
	}
	return selected, nil
}

// unresolvedRegion is the part of the descending candidates' territory still
// to be resolved: the overlap with the boundary for inside queries, the
// envelope-bounded complement for outside queries.
func (r *Resolver) unresolvedRegion(descend []GeoUnit, boundary geom.Geometry, inside bool) (geom.Geometry, error) {
	geoms := make([]geom.Geometry, len(descend))
	for i, u := range descend {
		geoms[i] = u.Geom
	}
	selection, err := geo.UnionAll(geoms)
	if err != nil {
		return geom.Geometry{}, err
	}
	if inside {
		return geo.Intersection(selection, boundary)
	}
	clipped, err := geo.EnvelopeClip(selection, boundary)
	if err != nil {
		return geom.Geometry{}, err
	}
	return geo.Difference(clipped, boundary)
}
