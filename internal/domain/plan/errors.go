package plan

import "errors"

var (
	// ErrPlanNotFound indicates an unknown plan.
	ErrPlanNotFound = errors.New("plan not found")
	// ErrDistrictNotFound indicates an unknown district within a plan.
	ErrDistrictNotFound = errors.New("district not found")
	// ErrVersionNotFound indicates no materialized rows at or below the
	// requested version.
	ErrVersionNotFound = errors.New("plan version not found")
	// ErrPlanBusy indicates another edit is in flight for the plan. The
	// caller may retry once the in-flight edit finishes.
	ErrPlanBusy = errors.New("plan busy: edit already in progress")
	// ErrPurgeWouldOrphan indicates a purge would delete the last surviving
	// row for a district. The purge is rejected as a whole.
	ErrPurgeWouldOrphan = errors.New("purge would orphan a district")
	// ErrDistrictLimit indicates the district number exceeds the body's
	// configured maximum.
	ErrDistrictLimit = errors.New("district number exceeds body limit")
	// ErrReservedDistrict indicates an operation targeted the reserved
	// unassigned district.
	ErrReservedDistrict = errors.New("operation not permitted on the unassigned district")
	// ErrInvalidPurgeBounds indicates a purge call without usable bounds.
	ErrInvalidPurgeBounds = errors.New("purge requires a before or after bound")
)
