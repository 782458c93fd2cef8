package plan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/peterstace/simplefeatures/geom"

	"github.com/PublicMapping/districtcore/internal/domain/geounit"
	"github.com/PublicMapping/districtcore/internal/domain/hierarchy"
	"github.com/PublicMapping/districtcore/internal/domain/stats"
	"github.com/PublicMapping/districtcore/internal/geo"
	"github.com/PublicMapping/districtcore/internal/metrics"
	"github.com/PublicMapping/districtcore/internal/repository"
)

// Snapshot is one district row staged for an atomic edit write.
type Snapshot struct {
	DistrictID int64
	Name       string
	Version    int64
	Geom       geom.Geometry
	Members    []string
	Tags       TagSet
	Computed   []stats.ComputedCharacteristic
}

// PlanRepository persists plans and applies edits atomically.
type PlanRepository interface {
	CreatePlan(ctx context.Context, p *Plan) error
	GetPlan(ctx context.Context, id string) (*Plan, error)
	ListPlans(ctx context.Context, bodyID int64) ([]Plan, error)
	// ApplyEdit writes the snapshots, their members, tags and aggregates,
	// and moves the plan's version counter, all in one transaction. Either
	// every row becomes visible or none do.
	ApplyEdit(ctx context.Context, planID string, newVersion int64, snapshots []Snapshot) error
	// PurgeRows deletes district rows (cascading members, tags, aggregates
	// and simplified views) and raises the plan's minimum retained version,
	// all in one transaction.
	PurgeRows(ctx context.Context, planID string, rowIDs []int64, minVersion *int64) error
}

// DistrictRepository reads the append-only district log.
type DistrictRepository interface {
	// EffectiveRows returns, for every district number, the latest row with
	// version at or below the requested version.
	EffectiveRows(ctx context.Context, planID string, version int64) ([]District, error)
	// LatestRow returns one district's latest row at or below version, or
	// repository not-found.
	LatestRow(ctx context.Context, planID string, districtID, version int64) (*District, error)
	Members(ctx context.Context, rowID int64) ([]string, error)
	// Versions returns the distinct materialized versions ascending.
	Versions(ctx context.Context, planID string) ([]int64, error)
	// AllRows returns every row (no geometry or members) for purge planning.
	AllRows(ctx context.Context, planID string) ([]District, error)
	SaveSimple(ctx context.Context, rowID int64, views map[int64]geom.Geometry) error
	GetSimple(ctx context.Context, rowID int64) (map[int64]geom.Geometry, error)
	SetTags(ctx context.Context, rowID int64, tags TagSet) error
}

// Service is the versioned assignment store. It owns the per-plan version
// counter and enforces the single-writer-per-plan rule; all writes go
// through it.
type Service struct {
	plans      PlanRepository
	districts  DistrictRepository
	units      geounit.Repository
	resolver   *geounit.Resolver
	hier       *hierarchy.Service
	stats      *stats.Service
	simplifier *geo.Simplifier
	logger     *slog.Logger

	mu      sync.Mutex
	editing map[string]*sync.Mutex
}

// NewService creates the assignment store service.
func NewService(
	plans PlanRepository,
	districts DistrictRepository,
	units geounit.Repository,
	resolver *geounit.Resolver,
	hier *hierarchy.Service,
	statsSvc *stats.Service,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		plans:      plans,
		districts:  districts,
		units:      units,
		resolver:   resolver,
		hier:       hier,
		stats:      statsSvc,
		simplifier: geo.NewSimplifier(geo.DefaultSimplifyAttempts, logger),
		logger:     logger,
		editing:    make(map[string]*sync.Mutex),
	}
}

// editLock returns the per-plan edit mutex. Edits to different plans are
// fully independent; edits to one plan are serialized through this lock.
func (s *Service) editLock(planID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.editing[planID]
	if !ok {
		lock = &sync.Mutex{}
		s.editing[planID] = lock
	}
	return lock
}

// CreateRequest describes a new plan.
type CreateRequest struct {
	Name       string
	BodyID     int64
	Owner      string
	IsTemplate bool
	IsShared   bool
	IsPending  bool
}

// Create creates a plan at version 0 whose reserved unassigned district owns
// every base unit of the body.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Plan, error) {
	if _, err := s.hier.Body(req.BodyID); err != nil {
		return nil, err
	}
	base, err := s.hier.BaseLevel(req.BodyID)
	if err != nil {
		return nil, err
	}
	allUnits, err := s.units.ListByLevel(ctx, base.ID)
	if err != nil {
		return nil, fmt.Errorf("loading base units: %w", err)
	}

	memberIDs := make([]string, len(allUnits))
	geoms := make([]geom.Geometry, len(allUnits))
	for i, u := range allUnits {
		memberIDs[i] = u.ID
		geoms[i] = u.Geom
	}
	territory, err := geo.UnionAll(geoms)
	if err != nil {
		return nil, fmt.Errorf("merging base geometry: %w", err)
	}
	computed, err := s.stats.ComputeDelta(ctx, 0, memberIDs, nil)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	p := &Plan{
		ID:         uuid.NewString(),
		Name:       req.Name,
		BodyID:     req.BodyID,
		Owner:      req.Owner,
		IsTemplate: req.IsTemplate,
		IsShared:   req.IsShared,
		IsPending:  req.IsPending,
		Version:    0,
		CreatedAt:  now,
		EditedAt:   now,
	}
	if err := s.plans.CreatePlan(ctx, p); err != nil {
		return nil, fmt.Errorf("creating plan: %w", err)
	}

	snapshot := Snapshot{
		DistrictID: Unassigned,
		Name:       "Unassigned",
		Version:    0,
		Geom:       territory,
		Members:    memberIDs,
		Computed:   computed,
	}
	if err := s.plans.ApplyEdit(ctx, p.ID, 0, []Snapshot{snapshot}); err != nil {
		return nil, fmt.Errorf("writing initial assignment: %w", err)
	}
	s.logger.Info("plan created", "plan", p.ID, "body", req.BodyID, "units", len(memberIDs))
	return p, nil
}

// Get returns a plan by ID.
func (s *Service) Get(ctx context.Context, planID string) (*Plan, error) {
	return s.plans.GetPlan(ctx, planID)
}

// List returns a body's plans.
func (s *Service) List(ctx context.Context, bodyID int64) ([]Plan, error) {
	return s.plans.ListPlans(ctx, bodyID)
}

// AssignRequest describes one edit: assign units at some declared tier to a
// district, against the assignment state at Version.
type AssignRequest struct {
	PlanID     string
	DistrictID int64
	UnitIDs    []string
	GeoLevelID int64
	Version    int64
}

// Assign applies one edit. The named units are resolved down to base units,
// reassigned from their current owners to the target district, and a new row
// is written at plan.version+1 for every district whose membership changed,
// sources included. The version counter advances by exactly one regardless
// of how many districts changed; an edit that moves nothing leaves the plan
// untouched. Returns the number of districts affected.
//
// At most one Assign or Purge may be in flight per plan; a concurrent call
// fails immediately with ErrPlanBusy.
func (s *Service) Assign(ctx context.Context, req AssignRequest) (int, error) {
	lock := s.editLock(req.PlanID)
	if !lock.TryLock() {
		return 0, ErrPlanBusy
	}
	defer lock.Unlock()

	p, err := s.plans.GetPlan(ctx, req.PlanID)
	if err != nil {
		return 0, err
	}
	body, err := s.hier.Body(p.BodyID)
	if err != nil {
		return 0, err
	}
	if req.DistrictID == Unassigned {
		return 0, ErrReservedDistrict
	}
	if body.MaxDistricts > 0 && req.DistrictID > int64(body.MaxDistricts) {
		return 0, ErrDistrictLimit
	}
	atVersion := req.Version
	if atVersion < 0 {
		atVersion = p.Version
	}
	if atVersion > p.Version || atVersion < p.MinVersion {
		return 0, ErrVersionNotFound
	}

	baseUnits, err := s.resolver.ResolveBase(ctx, p.BodyID, req.GeoLevelID, req.UnitIDs)
	if err != nil {
		return 0, err
	}
	if len(baseUnits) == 0 {
		return 0, nil
	}

	assignment, err := s.assignedAt(ctx, req.PlanID, atVersion)
	if err != nil {
		return 0, err
	}

	// Group the units actually changing hands by their current owner.
	movedBySource := make(map[int64][]geounit.GeoUnit)
	var movedIDs []string
	for _, u := range baseUnits {
		owner, ok := assignment[u.ID]
		if !ok {
			owner = Unassigned
		}
		if owner == req.DistrictID {
			continue
		}
		movedBySource[owner] = append(movedBySource[owner], u)
		movedIDs = append(movedIDs, u.ID)
	}
	if len(movedIDs) == 0 {
		return 0, nil
	}

	newVersion := p.Version + 1
	snapshots := make([]Snapshot, 0, len(movedBySource)+1)

	target, err := s.buildTargetSnapshot(ctx, p, req.DistrictID, atVersion, newVersion, movedBySource, movedIDs)
	if err != nil {
		return 0, err
	}
	snapshots = append(snapshots, target)

	sourceIDs := make([]int64, 0, len(movedBySource))
	for id := range movedBySource {
		sourceIDs = append(sourceIDs, id)
	}
	sort.Slice(sourceIDs, func(i, j int) bool { return sourceIDs[i] < sourceIDs[j] })
	for _, sourceID := range sourceIDs {
		snap, err := s.buildSourceSnapshot(ctx, p, sourceID, atVersion, newVersion, movedBySource[sourceID])
		if err != nil {
			return 0, err
		}
		snapshots = append(snapshots, snap)
	}

	if err := s.plans.ApplyEdit(ctx, req.PlanID, newVersion, snapshots); err != nil {
		return 0, fmt.Errorf("applying edit: %w", err)
	}

	metrics.EditsTotal.Inc()
	metrics.DistrictsChanged.Add(float64(len(snapshots)))
	s.logger.Info("edit applied",
		"plan", req.PlanID, "district", req.DistrictID,
		"version", newVersion, "moved_units", len(movedIDs), "districts_changed", len(snapshots))
	return len(snapshots), nil
}

// buildTargetSnapshot stages the gaining district's new row: prior members
// plus everything moved, geometry grown by the moved units' territory, and
// aggregates advanced by an additive delta.
func (s *Service) buildTargetSnapshot(ctx context.Context, p *Plan, districtID, atVersion, newVersion int64, movedBySource map[int64][]geounit.GeoUnit, movedIDs []string) (Snapshot, error) {
	var movedGeoms []geom.Geometry
	for _, units := range movedBySource {
		for _, u := range units {
			movedGeoms = append(movedGeoms, u.Geom)
		}
	}
	gained, err := geo.UnionAll(movedGeoms)
	if err != nil {
		return Snapshot{}, fmt.Errorf("merging moved geometry: %w", err)
	}

	snap := Snapshot{
		DistrictID: districtID,
		Name:       fmt.Sprintf("District %d", districtID),
		Version:    newVersion,
		Geom:       gained,
	}

	prior, err := s.districts.LatestRow(ctx, p.ID, districtID, atVersion)
	switch {
	case err == nil:
		snap.Name = prior.Name
		snap.Tags = prior.Tags
		merged, err := geo.UnionAll([]geom.Geometry{prior.Geom, gained})
		if err != nil {
			return Snapshot{}, fmt.Errorf("growing district geometry: %w", err)
		}
		snap.Geom = merged
		members, err := s.districts.Members(ctx, prior.RowID)
		if err != nil {
			return Snapshot{}, fmt.Errorf("loading district members: %w", err)
		}
		snap.Members = members
		snap.Computed, err = s.stats.ComputeDelta(ctx, prior.RowID, movedIDs, nil)
		if err != nil {
			return Snapshot{}, err
		}
	case errors.Is(err, repository.ErrNotFound):
		// First time this district receives units.
		snap.Computed, err = s.stats.ComputeDelta(ctx, 0, movedIDs, nil)
		if err != nil {
			return Snapshot{}, err
		}
	default:
		return Snapshot{}, fmt.Errorf("loading target district %d: %w", districtID, err)
	}
	snap.Members = append(snap.Members, movedIDs...)
	return snap, nil
}

// buildSourceSnapshot stages a losing district's new row: prior members
// minus the moved units, geometry shrunk by their territory, and aggregates
// advanced by a subtractive delta.
func (s *Service) buildSourceSnapshot(ctx context.Context, p *Plan, districtID, atVersion, newVersion int64, moved []geounit.GeoUnit) (Snapshot, error) {
	prior, err := s.districts.LatestRow(ctx, p.ID, districtID, atVersion)
	if err != nil {
		return Snapshot{}, fmt.Errorf("loading source district %d: %w", districtID, err)
	}

	lostIDs := make(map[string]bool, len(moved))
	lostGeoms := make([]geom.Geometry, len(moved))
	for i, u := range moved {
		lostIDs[u.ID] = true
		lostGeoms[i] = u.Geom
	}
	lost, err := geo.UnionAll(lostGeoms)
	if err != nil {
		return Snapshot{}, fmt.Errorf("merging lost geometry: %w", err)
	}
	shrunk, err := geo.Difference(prior.Geom, lost)
	if err != nil {
		return Snapshot{}, fmt.Errorf("shrinking district geometry: %w", err)
	}

	members, err := s.districts.Members(ctx, prior.RowID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("loading district members: %w", err)
	}
	remaining := make([]string, 0, len(members))
	lostList := make([]string, 0, len(moved))
	for _, m := range members {
		if lostIDs[m] {
			lostList = append(lostList, m)
		} else {
			remaining = append(remaining, m)
		}
	}

	computed, err := s.stats.ComputeDelta(ctx, prior.RowID, nil, lostList)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		DistrictID: districtID,
		Name:       prior.Name,
		Version:    newVersion,
		Geom:       shrunk,
		Members:    remaining,
		Tags:       prior.Tags,
		Computed:   computed,
	}, nil
}

// AssignedUnits reconstructs the total base-unit assignment as of a version:
// for every district number, the latest row at or below the version defines
// its membership.
func (s *Service) AssignedUnits(ctx context.Context, planID string, version int64) (map[string]int64, error) {
	p, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if version < 0 {
		version = p.Version
	}
	return s.assignedAt(ctx, planID, version)
}

func (s *Service) assignedAt(ctx context.Context, planID string, version int64) (map[string]int64, error) {
	rows, err := s.districts.EffectiveRows(ctx, planID, version)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrVersionNotFound
	}
	assignment := make(map[string]int64)
	for _, row := range rows {
		members, err := s.districts.Members(ctx, row.RowID)
		if err != nil {
			return nil, fmt.Errorf("loading members of district %d: %w", row.DistrictID, err)
		}
		for _, unitID := range members {
			assignment[unitID] = row.DistrictID
		}
	}
	return assignment, nil
}

// Districts returns the district snapshots effective at a version, with
// geometry and tags. version < 0 selects the plan's current version.
func (s *Service) Districts(ctx context.Context, planID string, version int64) ([]District, error) {
	p, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if version < 0 {
		version = p.Version
	}
	rows, err := s.districts.EffectiveRows(ctx, planID, version)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrVersionNotFound
	}
	return rows, nil
}

// District returns one district's snapshot effective at a version.
func (s *Service) District(ctx context.Context, planID string, districtID, version int64) (*District, error) {
	p, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if version < 0 {
		version = p.Version
	}
	row, err := s.districts.LatestRow(ctx, planID, districtID, version)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrDistrictNotFound
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

// Purge deletes district rows with version below before or above after,
// always preserving, for every district number, the row with the greatest
// surviving version at or below the plan's current version. The plan's
// version counter is untouched; a before bound raises the plan's minimum
// retained version. All-or-nothing per call.
func (s *Service) Purge(ctx context.Context, planID string, before, after *int64) error {
	if before == nil && after == nil {
		return ErrInvalidPurgeBounds
	}
	lock := s.editLock(planID)
	if !lock.TryLock() {
		return ErrPlanBusy
	}
	defer lock.Unlock()

	p, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		return err
	}
	rows, err := s.districts.AllRows(ctx, planID)
	if err != nil {
		return err
	}

	// The row defining each district's current state must survive any bounds.
	keep := make(map[int64]int64) // district_id -> row id
	keepVersion := make(map[int64]int64)
	seen := make(map[int64]bool)
	for _, row := range rows {
		seen[row.DistrictID] = true
		if row.Version > p.Version {
			continue
		}
		if v, ok := keepVersion[row.DistrictID]; !ok || row.Version > v {
			keepVersion[row.DistrictID] = row.Version
			keep[row.DistrictID] = row.RowID
		}
	}
	for districtID := range seen {
		if _, ok := keep[districtID]; !ok {
			return fmt.Errorf("district %d: %w", districtID, ErrPurgeWouldOrphan)
		}
	}

	var doomed []int64
	for _, row := range rows {
		if keep[row.DistrictID] == row.RowID {
			continue
		}
		if (before != nil && row.Version < *before) || (after != nil && row.Version > *after) {
			doomed = append(doomed, row.RowID)
		}
	}
	if len(doomed) == 0 {
		return nil
	}

	var minVersion *int64
	if before != nil && *before > p.MinVersion {
		minVersion = before
	}
	if err := s.plans.PurgeRows(ctx, planID, doomed, minVersion); err != nil {
		return fmt.Errorf("purging rows: %w", err)
	}
	metrics.PurgedRows.Add(float64(len(doomed)))
	s.logger.Info("history purged", "plan", planID, "rows", len(doomed))
	return nil
}

// NthPreviousVersion walks the materialized edit history backward. Version
// numbers are sparse once purge has run, so steps count only versions that
// actually have rows, never arithmetic subtraction.
func (s *Service) NthPreviousVersion(ctx context.Context, planID string, fromVersion int64, steps int) (int64, error) {
	if steps < 0 {
		return 0, ErrVersionNotFound
	}
	versions, err := s.districts.Versions(ctx, planID)
	if err != nil {
		return 0, err
	}
	var at []int64
	for _, v := range versions {
		if v <= fromVersion {
			at = append(at, v)
		}
	}
	idx := len(at) - 1 - steps
	if idx < 0 {
		return 0, ErrVersionNotFound
	}
	return at[idx], nil
}

// SimplifyDistrict computes and stores the per-tier simplified views of a
// district's current geometry using each geolevel's configured tolerance.
func (s *Service) SimplifyDistrict(ctx context.Context, planID string, districtID int64) error {
	p, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		return err
	}
	row, err := s.districts.LatestRow(ctx, planID, districtID, p.Version)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrDistrictNotFound
	}
	if err != nil {
		return err
	}
	levels, err := s.hier.LevelsFor(p.BodyID)
	if err != nil {
		return err
	}
	tiers := make([]geo.TierTolerance, len(levels))
	for i, lvl := range levels {
		tiers[i] = geo.TierTolerance{GeoLevelID: lvl.ID, Tolerance: lvl.Tolerance}
	}
	views := s.simplifier.Simplify(row.Geom, tiers)
	if err := s.districts.SaveSimple(ctx, row.RowID, views); err != nil {
		return fmt.Errorf("storing simplified views: %w", err)
	}
	return nil
}

// SimplifyPlan simplifies every district effective at the plan's current
// version. One district failing does not stop the others.
func (s *Service) SimplifyPlan(ctx context.Context, planID string) error {
	rows, err := s.Districts(ctx, planID, -1)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := s.SimplifyDistrict(ctx, planID, row.DistrictID); err != nil {
			s.logger.Warn("district simplification failed", "plan", planID, "district", row.DistrictID, "error", err)
		}
	}
	return nil
}

// SimplifiedViews returns the stored per-tier simplified geometries for a
// district's current snapshot.
func (s *Service) SimplifiedViews(ctx context.Context, planID string, districtID int64) (map[int64]geom.Geometry, error) {
	p, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	row, err := s.districts.LatestRow(ctx, planID, districtID, p.Version)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrDistrictNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.districts.GetSimple(ctx, row.RowID)
}

// TagDistrict replaces the tag set on a district's current snapshot.
func (s *Service) TagDistrict(ctx context.Context, planID string, districtID int64, tags TagSet) error {
	p, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		return err
	}
	row, err := s.districts.LatestRow(ctx, planID, districtID, p.Version)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrDistrictNotFound
	}
	if err != nil {
		return err
	}
	return s.districts.SetTags(ctx, row.RowID, tags)
}

// Reaggregate recomputes every effective district's aggregates from raw
// characteristics, the repair path after bulk data changes.
func (s *Service) Reaggregate(ctx context.Context, planID string) error {
	rows, err := s.Districts(ctx, planID, -1)
	if err != nil {
		return err
	}
	for _, row := range rows {
		members, err := s.districts.Members(ctx, row.RowID)
		if err != nil {
			return fmt.Errorf("loading members of district %d: %w", row.DistrictID, err)
		}
		if err := s.stats.Reaggregate(ctx, row.RowID, members); err != nil {
			return fmt.Errorf("reaggregating district %d: %w", row.DistrictID, err)
		}
	}
	s.logger.Info("plan reaggregated", "plan", planID, "districts", len(rows))
	return nil
}
