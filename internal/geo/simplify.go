package geo

import (
	"log/slog"

	"github.com/peterstace/simplefeatures/geom"
)

// DefaultSimplifyAttempts bounds the tolerance back-off per tier.
const DefaultSimplifyAttempts = 5

// TierTolerance pairs a geolevel with its display simplification tolerance.
type TierTolerance struct {
	GeoLevelID int64
	Tolerance  float64
}

// Simplifier produces per-tier simplified views of a geometry. Each tier is
// attempted independently so one tier falling back to the full geometry never
// blocks the others.
type Simplifier struct {
	attempts int
	logger   *slog.Logger
}

// NewSimplifier creates a Simplifier. attempts <= 0 selects the default.
func NewSimplifier(attempts int, logger *slog.Logger) *Simplifier {
	if attempts <= 0 {
		attempts = DefaultSimplifyAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Simplifier{attempts: attempts, logger: logger}
}

// Simplify returns one simplified geometry per tier, keyed by geolevel ID.
// A tier whose simplification cannot be made structurally valid within the
// attempt budget falls back to the unsimplified input.
func (s *Simplifier) Simplify(g geom.Geometry, tiers []TierTolerance) map[int64]geom.Geometry {
	out := make(map[int64]geom.Geometry, len(tiers))
	for _, tier := range tiers {
		simplified, ok := s.simplifyOne(g, tier.Tolerance)
		if !ok {
			s.logger.Warn("simplification fell back to full geometry",
				"geolevel", tier.GeoLevelID, "tolerance", tier.Tolerance)
		}
		out[tier.GeoLevelID] = simplified
	}
	return out
}

// simplifyOne attempts simplification at tol, halving the tolerance on each
// retry. The result must be valid and keep the input's geometry type. The
// unsimplified input is returned with ok=false once the budget is exhausted.
func (s *Simplifier) simplifyOne(g geom.Geometry, tol float64) (geom.Geometry, bool) {
	if g.IsEmpty() || tol <= 0 {
		return g, true
	}
	tolerance := tol
	for attempt := 0; attempt < s.attempts; attempt++ {
		simplified, err := g.Simplify(tolerance)
		if err == nil && simplified.Validate() == nil && simplified.Type() == g.Type() {
			return simplified, true
		}
		tolerance /= 2
	}
	return g, false
}
