package hierarchy

// GeoLevel is a named geographic resolution tier. Tiers are strictly ordered
// per legislative body; the finest tier (smallest unit footprint) is the base
// level at which assignment ground truth is kept.
type GeoLevel struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Tolerance float64 `json:"tolerance"`
	MinZoom   int     `json:"min_zoom"`
}

// Region groups legislative bodies.
type Region struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Label string `json:"label"`
}

// LegislativeLevel declares that a geolevel participates in a body's
// hierarchy, optionally nested under a coarser participating level.
type LegislativeLevel struct {
	GeoLevelID       int64  `json:"geolevel_id"`
	ParentGeoLevelID *int64 `json:"parent_geolevel_id,omitempty"`
}

// LegislativeBody is a political body whose territory is partitioned into
// districts. Its participating geolevels form a strict parent chain.
type LegislativeBody struct {
	ID           int64              `json:"id"`
	Name         string             `json:"name"`
	RegionID     int64              `json:"region_id"`
	MaxDistricts int                `json:"max_districts"`
	Levels       []LegislativeLevel `json:"levels"`
}
