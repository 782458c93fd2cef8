// Package geo wraps the planar geometry operations the engine needs. All
// simplefeatures usage is kept behind this package so the rest of the code
// deals in opaque geometries and WKT.
package geo

import (
	"fmt"

	"github.com/peterstace/simplefeatures/geom"
)

// Empty returns the empty geometry.
func Empty() geom.Geometry {
	return geom.Geometry{}
}

// ParseWKT parses a WKT string, repairing invalid input where possible.
// Unrepairable input yields an error; callers decide whether that is fatal.
func ParseWKT(wkt string) (geom.Geometry, error) {
	g, err := geom.UnmarshalWKT(wkt, geom.NoValidate{})
	if err != nil {
		return geom.Geometry{}, fmt.Errorf("parse wkt: %w", err)
	}
	repaired, ok := Repair(g)
	if !ok {
		return geom.Geometry{}, fmt.Errorf("parse wkt: unrepairable geometry")
	}
	return repaired, nil
}

// Repair returns a structurally valid version of g. Valid input is returned
// unchanged. Invalid input is re-noded by unioning the geometry with itself,
// the planar equivalent of a zero-width buffer. The second return is false
// when no valid form could be produced.
func Repair(g geom.Geometry) (geom.Geometry, bool) {
	if err := g.Validate(); err == nil {
		return g, true
	}
	fixed, err := geom.Union(g, g)
	if err != nil {
		return geom.Geometry{}, false
	}
	if err := fixed.Validate(); err != nil {
		return geom.Geometry{}, false
	}
	return fixed, true
}

// Area returns the planar area of g, zero for empty or non-areal input.
func Area(g geom.Geometry) float64 {
	return g.Area()
}

// OverlapArea returns the area of the intersection of a and b. Touching
// geometries overlap with zero area.
func OverlapArea(a, b geom.Geometry) (float64, error) {
	if a.IsEmpty() || b.IsEmpty() {
		return 0, nil
	}
	inter, err := geom.Intersection(a, b)
	if err != nil {
		return 0, fmt.Errorf("intersection: %w", err)
	}
	return inter.Area(), nil
}

// Intersection returns a ∩ b.
func Intersection(a, b geom.Geometry) (geom.Geometry, error) {
	return geom.Intersection(a, b)
}

// Difference returns a − b.
func Difference(a, b geom.Geometry) (geom.Geometry, error) {
	return geom.Difference(a, b)
}

// CoveredBy reports whether every point of a lies in b, allowing the two to
// touch along their boundaries.
func CoveredBy(a, b geom.Geometry) (bool, error) {
	return geom.CoveredBy(a, b)
}

// UnionAll unions a slice of geometries, skipping empties.
func UnionAll(gs []geom.Geometry) (geom.Geometry, error) {
	out := geom.Geometry{}
	for _, g := range gs {
		if g.IsEmpty() {
			continue
		}
		if out.IsEmpty() {
			out = g
			continue
		}
		merged, err := geom.Union(out, g)
		if err != nil {
			return geom.Geometry{}, fmt.Errorf("union: %w", err)
		}
		out = merged
	}
	return out, nil
}

// EnvelopeClip returns the portion of g lying inside the bounding box of
// bounds. Used to keep "outside this boundary" queries finite.
func EnvelopeClip(g, bounds geom.Geometry) (geom.Geometry, error) {
	env := bounds.Envelope()
	box, ok := env.AsGeometry().AsPolygon()
	if !ok {
		return geom.Geometry{}, nil
	}
	return geom.Intersection(g, box.AsGeometry())
}

// InteriorPoint returns a point guaranteed to lie within g. The raw centroid
// is used when it already falls inside; otherwise the interior-point heuristic
// (a horizontal cut line through the widest interior span) takes over, which
// handles non-convex shapes whose centroid falls outside.
func InteriorPoint(g geom.Geometry) geom.Point {
	c := g.Centroid()
	if !c.IsEmpty() {
		if in, err := geom.CoveredBy(c.AsGeometry(), g); err == nil && in {
			return c
		}
	}
	return g.PointOnSurface()
}
