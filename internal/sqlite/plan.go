package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/PublicMapping/districtcore/internal/domain/plan"
	"github.com/PublicMapping/districtcore/internal/geo"
	"github.com/PublicMapping/districtcore/internal/repository"
)

// PlanRepository implements plan.PlanRepository and plan.DistrictRepository
// for SQLite. District rows are append-only; ApplyEdit and PurgeRows are the
// only writers and each runs in a single transaction.
type PlanRepository struct {
	db *DB
}

// NewPlanRepository creates a new PlanRepository
func NewPlanRepository(db *DB) *PlanRepository {
	return &PlanRepository{db: db}
}

// CreatePlan stores a new plan.
func (r *PlanRepository) CreatePlan(ctx context.Context, p *plan.Plan) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO plans (id, name, body_id, owner, is_template, is_shared, is_pending, is_valid, version, min_version, created_at, edited_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.BodyID, p.Owner, p.IsTemplate, p.IsShared, p.IsPending, p.IsValid,
		p.Version, p.MinVersion, p.CreatedAt, p.EditedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		if isForeignKeyViolation(err) {
			return repository.ErrForeignKeyViolation
		}
		return fmt.Errorf("failed to create plan: %w", err)
	}
	return nil
}

// GetPlan returns a plan by ID.
func (r *PlanRepository) GetPlan(ctx context.Context, id string) (*plan.Plan, error) {
	var p plan.Plan
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, body_id, owner, is_template, is_shared, is_pending, is_valid, version, min_version, created_at, edited_at
		 FROM plans WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.BodyID, &p.Owner, &p.IsTemplate, &p.IsShared, &p.IsPending, &p.IsValid,
			&p.Version, &p.MinVersion, &p.CreatedAt, &p.EditedAt)
	if err == sql.ErrNoRows {
		return nil, plan.ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return &p, nil
}

// ListPlans returns a body's plans ordered by creation time.
func (r *PlanRepository) ListPlans(ctx context.Context, bodyID int64) ([]plan.Plan, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, body_id, owner, is_template, is_shared, is_pending, is_valid, version, min_version, created_at, edited_at
		 FROM plans WHERE body_id = ? ORDER BY created_at, id`, bodyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []plan.Plan
	for rows.Next() {
		var p plan.Plan
		if err := rows.Scan(&p.ID, &p.Name, &p.BodyID, &p.Owner, &p.IsTemplate, &p.IsShared, &p.IsPending, &p.IsValid,
			&p.Version, &p.MinVersion, &p.CreatedAt, &p.EditedAt); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// ApplyEdit writes the staged snapshots and advances the plan's version
// counter in one transaction.
func (r *PlanRepository) ApplyEdit(ctx context.Context, planID string, newVersion int64, snapshots []plan.Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, snap := range snapshots {
		geomWKT := ""
		if !snap.Geom.IsEmpty() {
			geomWKT = snap.Geom.AsText()
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO districts (plan_id, district_id, name, version, geom) VALUES (?, ?, ?, ?, ?)`,
			planID, snap.DistrictID, snap.Name, snap.Version, geomWKT)
		if err != nil {
			if isUniqueViolation(err) {
				return repository.ErrConflict
			}
			if isForeignKeyViolation(err) {
				return repository.ErrForeignKeyViolation
			}
			return fmt.Errorf("failed to insert district row: %w", err)
		}
		rowID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read district row id: %w", err)
		}

		for _, unitID := range snap.Members {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO district_members (district_row, geounit_id) VALUES (?, ?)`,
				rowID, unitID); err != nil {
				if isForeignKeyViolation(err) {
					return repository.ErrForeignKeyViolation
				}
				return fmt.Errorf("failed to insert district member: %w", err)
			}
		}
		for pos, tag := range snap.Tags {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO district_tags (district_row, position, key, value) VALUES (?, ?, ?, ?)`,
				rowID, pos, tag.Key, tag.Value); err != nil {
				return fmt.Errorf("failed to insert district tag: %w", err)
			}
		}
		for _, cc := range snap.Computed {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO computed_characteristics (district_row, subject, number, percentage) VALUES (?, ?, ?, ?)`,
				rowID, cc.Subject, cc.Number, cc.Percentage); err != nil {
				return fmt.Errorf("failed to insert district aggregate: %w", err)
			}
		}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE plans SET version = ?, edited_at = CURRENT_TIMESTAMP WHERE id = ?`,
		newVersion, planID)
	if err != nil {
		return fmt.Errorf("failed to advance plan version: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check plan update: %w", err)
	}
	if affected == 0 {
		return plan.ErrPlanNotFound
	}
	return tx.Commit()
}

// PurgeRows deletes district rows and optionally raises the plan's minimum
// retained version, in one transaction. Child rows cascade.
func (r *PlanRepository) PurgeRows(ctx context.Context, planID string, rowIDs []int64, minVersion *int64) error {
	if len(rowIDs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	placeholders := strings.Repeat("?,", len(rowIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, 0, len(rowIDs)+1)
	args = append(args, planID)
	for _, id := range rowIDs {
		args = append(args, id)
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM districts WHERE plan_id = ? AND id IN (%s)`, placeholders),
		args...); err != nil {
		return fmt.Errorf("failed to delete district rows: %w", err)
	}

	if minVersion != nil {
		if _, err := tx.ExecContext(ctx,
			`UPDATE plans SET min_version = ? WHERE id = ? AND min_version < ?`,
			*minVersion, planID, *minVersion); err != nil {
			return fmt.Errorf("failed to raise minimum version: %w", err)
		}
	}
	return tx.Commit()
}

const districtColumns = `d.id, d.plan_id, d.district_id, d.name, d.version, d.geom`

// EffectiveRows returns, for every district number, the latest row with
// version at or below the requested version, with geometry and tags loaded.
func (r *PlanRepository) EffectiveRows(ctx context.Context, planID string, version int64) ([]plan.District, error) {
	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM districts d
		 WHERE d.plan_id = ? AND d.version = (
		     SELECT MAX(version) FROM districts
		     WHERE plan_id = d.plan_id AND district_id = d.district_id AND version <= ?
		 )
		 ORDER BY d.district_id`, districtColumns),
		planID, version)
	if err != nil {
		return nil, fmt.Errorf("failed to query effective rows: %w", err)
	}
	defer rows.Close()

	districts, err := r.scanDistricts(rows)
	if err != nil {
		return nil, err
	}
	for i := range districts {
		tags, err := r.rowTags(ctx, districts[i].RowID)
		if err != nil {
			return nil, err
		}
		districts[i].Tags = tags
	}
	return districts, nil
}

// LatestRow returns one district's latest row at or below version.
func (r *PlanRepository) LatestRow(ctx context.Context, planID string, districtID, version int64) (*plan.District, error) {
	row := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM districts d
		 WHERE d.plan_id = ? AND d.district_id = ? AND d.version <= ?
		 ORDER BY d.version DESC LIMIT 1`, districtColumns),
		planID, districtID, version)

	var d plan.District
	var geomWKT string
	err := row.Scan(&d.RowID, &d.PlanID, &d.DistrictID, &d.Name, &d.Version, &geomWKT)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get district row: %w", err)
	}
	if geomWKT != "" {
		g, err := geo.ParseWKT(geomWKT)
		if err != nil {
			return nil, fmt.Errorf("district %d geometry: %w", d.DistrictID, err)
		}
		d.Geom = g
	}
	tags, err := r.rowTags(ctx, d.RowID)
	if err != nil {
		return nil, err
	}
	d.Tags = tags
	return &d, nil
}

// Members returns the base unit IDs of a district snapshot.
func (r *PlanRepository) Members(ctx context.Context, rowID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT geounit_id FROM district_members WHERE district_row = ? ORDER BY geounit_id`, rowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list district members: %w", err)
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, id)
	}
	return members, rows.Err()
}

// Versions returns the distinct materialized versions of a plan, ascending.
func (r *PlanRepository) Versions(ctx context.Context, planID string) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT version FROM districts WHERE plan_id = ? ORDER BY version`, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var versions []int64
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// AllRows returns every district row of a plan without geometry, members or
// tags. Purge planning only needs the identifiers.
func (r *PlanRepository) AllRows(ctx context.Context, planID string) ([]plan.District, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, plan_id, district_id, name, version FROM districts WHERE plan_id = ? ORDER BY district_id, version`,
		planID)
	if err != nil {
		return nil, fmt.Errorf("failed to list district rows: %w", err)
	}
	defer rows.Close()

	var districts []plan.District
	for rows.Next() {
		var d plan.District
		if err := rows.Scan(&d.RowID, &d.PlanID, &d.DistrictID, &d.Name, &d.Version); err != nil {
			return nil, fmt.Errorf("failed to scan district row: %w", err)
		}
		districts = append(districts, d)
	}
	return districts, rows.Err()
}

// SaveSimple replaces the stored per-geolevel simplified views of a snapshot.
func (r *PlanRepository) SaveSimple(ctx context.Context, rowID int64, views map[int64]geom.Geometry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM district_simple WHERE district_row = ?`, rowID); err != nil {
		return fmt.Errorf("failed to clear simplified views: %w", err)
	}
	for geoLevelID, g := range views {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO district_simple (district_row, geolevel_id, geom) VALUES (?, ?, ?)`,
			rowID, geoLevelID, g.AsText()); err != nil {
			if isForeignKeyViolation(err) {
				return repository.ErrForeignKeyViolation
			}
			return fmt.Errorf("failed to insert simplified view: %w", err)
		}
	}
	return tx.Commit()
}

// GetSimple returns the stored per-geolevel simplified views of a snapshot.
func (r *PlanRepository) GetSimple(ctx context.Context, rowID int64) (map[int64]geom.Geometry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT geolevel_id, geom FROM district_simple WHERE district_row = ?`, rowID)
	if err != nil {
		return nil, fmt.Errorf("failed to get simplified views: %w", err)
	}
	defer rows.Close()

	views := make(map[int64]geom.Geometry)
	for rows.Next() {
		var geoLevelID int64
		var wkt string
		if err := rows.Scan(&geoLevelID, &wkt); err != nil {
			return nil, fmt.Errorf("failed to scan simplified view: %w", err)
		}
		g, err := geo.ParseWKT(wkt)
		if err != nil {
			return nil, fmt.Errorf("simplified view for geolevel %d: %w", geoLevelID, err)
		}
		views[geoLevelID] = g
	}
	return views, rows.Err()
}

// SetTags replaces the tag set on a snapshot.
func (r *PlanRepository) SetTags(ctx context.Context, rowID int64, tags plan.TagSet) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM district_tags WHERE district_row = ?`, rowID); err != nil {
		return fmt.Errorf("failed to clear tags: %w", err)
	}
	for pos, tag := range tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO district_tags (district_row, position, key, value) VALUES (?, ?, ?, ?)`,
			rowID, pos, tag.Key, tag.Value); err != nil {
			if isForeignKeyViolation(err) {
				return repository.ErrForeignKeyViolation
			}
			return fmt.Errorf("failed to insert tag: %w", err)
		}
	}
	return tx.Commit()
}

func (r *PlanRepository) scanDistricts(rows *sql.Rows) ([]plan.District, error) {
	var districts []plan.District
	for rows.Next() {
		var d plan.District
		var geomWKT string
		if err := rows.Scan(&d.RowID, &d.PlanID, &d.DistrictID, &d.Name, &d.Version, &geomWKT); err != nil {
			return nil, fmt.Errorf("failed to scan district row: %w", err)
		}
		if geomWKT != "" {
			g, err := geo.ParseWKT(geomWKT)
			if err != nil {
				return nil, fmt.Errorf("district %d geometry: %w", d.DistrictID, err)
			}
			d.Geom = g
		}
		districts = append(districts, d)
	}
	return districts, rows.Err()
}

func (r *PlanRepository) rowTags(ctx context.Context, rowID int64) (plan.TagSet, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT key, value FROM district_tags WHERE district_row = ? ORDER BY position`, rowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	var tags plan.TagSet
	for rows.Next() {
		var t plan.Tag
		if err := rows.Scan(&t.Key, &t.Value); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}
