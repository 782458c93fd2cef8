package geounit

import "github.com/peterstace/simplefeatures/geom"

// GeoUnit is an immutable geographic area at one geolevel. Geometry and the
// precomputed simplified view are loaded once at import time and never
// mutated. Center is guaranteed to lie within Geom; the importer recomputes
// it with an interior-point heuristic when the raw centroid of a non-convex
// shape falls outside.
type GeoUnit struct {
	ID         string
	PortableID string
	Name       string
	GeoLevelID int64
	Geom       geom.Geometry
	Simple     geom.Geometry
	Center     geom.Point
}
