// Package compare computes split and containment relationships between two
// independently versioned plans.
package compare

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/PublicMapping/districtcore/internal/domain/plan"
	"github.com/PublicMapping/districtcore/internal/geo"
	"github.com/PublicMapping/districtcore/internal/metrics"
)

// DefaultNegligibleArea is the overlap below which a pair is not a split.
const DefaultNegligibleArea = 1e-6

// PlanReader supplies district snapshots for comparison.
type PlanReader interface {
	Districts(ctx context.Context, planID string, version int64) ([]plan.District, error)
}

// Relation is one reported pair: a district from plan A against one from
// plan B, with the area they share.
type Relation struct {
	DistrictA   int64   `json:"district_a"`
	DistrictB   int64   `json:"district_b"`
	OverlapArea float64 `json:"overlap_area"`
}

// Service compares two plans' district geometries. Reads only; safe to run
// concurrently with edits since it observes a specific version.
type Service struct {
	plans          PlanReader
	negligibleArea float64
	logger         *slog.Logger
}

// NewService creates a comparator. negligibleArea <= 0 selects the default.
func NewService(plans PlanReader, negligibleArea float64, logger *slog.Logger) *Service {
	if negligibleArea <= 0 {
		negligibleArea = DefaultNegligibleArea
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{plans: plans, negligibleArea: negligibleArea, logger: logger}
}

// FindSplits reports every pair of districts, one from each plan, whose
// geometries overlap with more than negligible area while neither contains
// the other. versionA/versionB < 0 select each plan's current version.
// Ordered by district A then district B.
func (s *Service) FindSplits(ctx context.Context, planA, planB string, versionA, versionB int64) ([]Relation, error) {
	started := time.Now()
	defer func() {
		metrics.CompareDurationMs.Observe(float64(time.Since(started).Milliseconds()))
	}()

	as, bs, err := s.loadBoth(ctx, planA, planB, versionA, versionB)
	if err != nil {
		return nil, err
	}

	var out []Relation
	for _, a := range as {
		for _, b := range bs {
			overlap, err := geo.OverlapArea(a.Geom, b.Geom)
			if err != nil {
				s.logger.Warn("skipping degenerate pair", "district_a", a.DistrictID, "district_b", b.DistrictID, "error", err)
				continue
			}
			if overlap <= s.negligibleArea {
				continue
			}
			aInB, err := geo.CoveredBy(a.Geom, b.Geom)
			if err != nil {
				continue
			}
			bInA, err := geo.CoveredBy(b.Geom, a.Geom)
			if err != nil {
				continue
			}
			if aInB || bInA {
				continue
			}
			out = append(out, Relation{DistrictA: a.DistrictID, DistrictB: b.DistrictID, OverlapArea: overlap})
		}
	}
	sortRelations(out)
	return out, nil
}

// FindComponents reports every pair where district A's geometry entirely
// contains district B's, boundary touching allowed. Ordered like FindSplits.
// A pair reported here is never also a split: containment and partial
// overlap are mutually exclusive by construction.
func (s *Service) FindComponents(ctx context.Context, planA, planB string, versionA, versionB int64) ([]Relation, error) {
	as, bs, err := s.loadBoth(ctx, planA, planB, versionA, versionB)
	if err != nil {
		return nil, err
	}

	var out []Relation
	for _, a := range as {
		for _, b := range bs {
			contained, err := geo.CoveredBy(b.Geom, a.Geom)
			if err != nil {
				s.logger.Warn("skipping degenerate pair", "district_a", a.DistrictID, "district_b", b.DistrictID, "error", err)
				continue
			}
			if !contained {
				continue
			}
			overlap := geo.Area(b.Geom)
			out = append(out, Relation{DistrictA: a.DistrictID, DistrictB: b.DistrictID, OverlapArea: overlap})
		}
	}
	sortRelations(out)
	return out, nil
}

// loadBoth fetches both plans' effective districts, dropping the reserved
// unassigned district and anything with empty or unrepairable geometry.
// Invalid geometries are repaired rather than failing the comparison.
func (s *Service) loadBoth(ctx context.Context, planA, planB string, versionA, versionB int64) ([]plan.District, []plan.District, error) {
	as, err := s.comparable(ctx, planA, versionA)
	if err != nil {
		return nil, nil, fmt.Errorf("loading plan %s: %w", planA, err)
	}
	bs, err := s.comparable(ctx, planB, versionB)
	if err != nil {
		return nil, nil, fmt.Errorf("loading plan %s: %w", planB, err)
	}
	return as, bs, nil
}

func (s *Service) comparable(ctx context.Context, planID string, version int64) ([]plan.District, error) {
	rows, err := s.plans.Districts(ctx, planID, version)
	if err != nil {
		return nil, err
	}
	out := make([]plan.District, 0, len(rows))
	for _, row := range rows {
		if row.IsUnassigned() || row.Geom.IsEmpty() || geo.Area(row.Geom) == 0 {
			continue
		}
		if row.Geom.Validate() != nil {
			repaired, ok := geo.Repair(row.Geom)
			if !ok {
				s.logger.Warn("excluding unrepairable district", "plan", planID, "district", row.DistrictID)
				continue
			}
			metrics.GeometryRepairs.Inc()
			row.Geom = repaired
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DistrictID < out[j].DistrictID })
	return out, nil
}

func sortRelations(rels []Relation) {
	sort.Slice(rels, func(i, j int) bool {
		if rels[i].DistrictA != rels[j].DistrictA {
			return rels[i].DistrictA < rels[j].DistrictA
		}
		return rels[i].DistrictB < rels[j].DistrictB
	})
}
