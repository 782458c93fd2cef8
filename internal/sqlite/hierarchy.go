package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/PublicMapping/districtcore/internal/domain/hierarchy"
	"github.com/PublicMapping/districtcore/internal/repository"
)

// HierarchyRepository implements hierarchy.Repository for SQLite, plus the
// write side used by configuration import.
type HierarchyRepository struct {
	db *DB
}

// NewHierarchyRepository creates a new HierarchyRepository
func NewHierarchyRepository(db *DB) *HierarchyRepository {
	return &HierarchyRepository{db: db}
}

// ListLevels returns every configured geolevel.
func (r *HierarchyRepository) ListLevels(ctx context.Context) ([]hierarchy.GeoLevel, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, tolerance, min_zoom FROM geolevels ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list geolevels: %w", err)
	}
	defer rows.Close()

	var levels []hierarchy.GeoLevel
	for rows.Next() {
		var lvl hierarchy.GeoLevel
		if err := rows.Scan(&lvl.ID, &lvl.Name, &lvl.Tolerance, &lvl.MinZoom); err != nil {
			return nil, fmt.Errorf("failed to scan geolevel: %w", err)
		}
		levels = append(levels, lvl)
	}
	return levels, rows.Err()
}

// ListBodies returns every legislative body with its participating levels.
func (r *HierarchyRepository) ListBodies(ctx context.Context) ([]hierarchy.LegislativeBody, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, region_id, max_districts FROM legislative_bodies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list bodies: %w", err)
	}
	defer rows.Close()

	var bodies []hierarchy.LegislativeBody
	for rows.Next() {
		var body hierarchy.LegislativeBody
		if err := rows.Scan(&body.ID, &body.Name, &body.RegionID, &body.MaxDistricts); err != nil {
			return nil, fmt.Errorf("failed to scan body: %w", err)
		}
		bodies = append(bodies, body)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range bodies {
		levels, err := r.bodyLevels(ctx, bodies[i].ID)
		if err != nil {
			return nil, err
		}
		bodies[i].Levels = levels
	}
	return bodies, nil
}

func (r *HierarchyRepository) bodyLevels(ctx context.Context, bodyID int64) ([]hierarchy.LegislativeLevel, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT geolevel_id, parent_geolevel_id FROM legislative_levels WHERE body_id = ?`, bodyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list body levels: %w", err)
	}
	defer rows.Close()

	var levels []hierarchy.LegislativeLevel
	for rows.Next() {
		var ll hierarchy.LegislativeLevel
		var parent sql.NullInt64
		if err := rows.Scan(&ll.GeoLevelID, &parent); err != nil {
			return nil, fmt.Errorf("failed to scan body level: %w", err)
		}
		if parent.Valid {
			ll.ParentGeoLevelID = &parent.Int64
		}
		levels = append(levels, ll)
	}
	return levels, rows.Err()
}

// InsertLevel stores a geolevel.
func (r *HierarchyRepository) InsertLevel(ctx context.Context, lvl hierarchy.GeoLevel) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO geolevels (id, name, tolerance, min_zoom) VALUES (?, ?, ?, ?)`,
		lvl.ID, lvl.Name, lvl.Tolerance, lvl.MinZoom)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to insert geolevel: %w", err)
	}
	return nil
}

// InsertRegion stores a region.
func (r *HierarchyRepository) InsertRegion(ctx context.Context, region hierarchy.Region) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO regions (id, name, label) VALUES (?, ?, ?)`,
		region.ID, region.Name, region.Label)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to insert region: %w", err)
	}
	return nil
}

// InsertBody stores a legislative body and its level declarations.
func (r *HierarchyRepository) InsertBody(ctx context.Context, body hierarchy.LegislativeBody) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO legislative_bodies (id, name, region_id, max_districts) VALUES (?, ?, ?, ?)`,
		body.ID, body.Name, body.RegionID, body.MaxDistricts); err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrForeignKeyViolation
		}
		return fmt.Errorf("failed to insert body: %w", err)
	}
	for _, ll := range body.Levels {
		var parent interface{}
		if ll.ParentGeoLevelID != nil {
			parent = *ll.ParentGeoLevelID
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO legislative_levels (body_id, geolevel_id, parent_geolevel_id) VALUES (?, ?, ?)`,
			body.ID, ll.GeoLevelID, parent); err != nil {
			if isForeignKeyViolation(err) {
				return repository.ErrForeignKeyViolation
			}
			return fmt.Errorf("failed to insert body level: %w", err)
		}
	}
	return tx.Commit()
}
