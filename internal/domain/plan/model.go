package plan

import (
	"time"

	"github.com/peterstace/simplefeatures/geom"
)

// Unassigned is the reserved district number every plan carries. It owns
// every base unit not assigned to a real district, so the plan's assignment
// is always a total partition.
const Unassigned int64 = 0

// Plan is a named, owned, versioned partition of a legislative body's base
// units into districts. Version only ever increases, by exactly one per
// applied edit; purge never changes it.
type Plan struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	BodyID     int64     `json:"body_id"`
	Owner      string    `json:"owner"`
	IsTemplate bool      `json:"is_template"`
	IsShared   bool      `json:"is_shared"`
	IsPending  bool      `json:"is_pending"`
	IsValid    bool      `json:"is_valid"`
	Version    int64     `json:"version"`
	MinVersion int64     `json:"min_version"`
	CreatedAt  time.Time `json:"created_at"`
	EditedAt   time.Time `json:"edited_at"`
}

// District is one immutable snapshot of a district at one plan version.
// Rows form an append-only log keyed by (plan, district number, version);
// editing writes a new row at the next plan version and never mutates old
// ones. Members carries the base unit IDs assigned as of this snapshot.
type District struct {
	RowID      int64         `json:"row_id"`
	PlanID     string        `json:"plan_id"`
	DistrictID int64         `json:"district_id"`
	Name       string        `json:"name"`
	Version    int64         `json:"version"`
	Geom       geom.Geometry `json:"-"`
	Members    []string      `json:"members,omitempty"`
	Tags       TagSet        `json:"tags,omitempty"`
}

// IsUnassigned reports whether this is the plan's reserved district.
func (d *District) IsUnassigned() bool {
	return d.DistrictID == Unassigned
}
