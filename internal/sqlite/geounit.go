package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/PublicMapping/districtcore/internal/domain/geounit"
	"github.com/PublicMapping/districtcore/internal/geo"
	"github.com/PublicMapping/districtcore/internal/repository"
)

// GeoUnitRepository implements geounit.Repository for SQLite. Geometry is
// stored as WKT text.
type GeoUnitRepository struct {
	db *DB
}

// NewGeoUnitRepository creates a new GeoUnitRepository
func NewGeoUnitRepository(db *DB) *GeoUnitRepository {
	return &GeoUnitRepository{db: db}
}

const geoUnitColumns = `id, portable_id, name, geolevel_id, geom, simple, center`

// GetByIDs returns the units with the given IDs. Missing IDs are simply
// absent from the result; callers compare lengths when that matters.
func (r *GeoUnitRepository) GetByIDs(ctx context.Context, ids []string) ([]geounit.GeoUnit, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM geounits WHERE id IN (%s) ORDER BY id`, geoUnitColumns, placeholders),
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get geounits: %w", err)
	}
	defer rows.Close()
	return scanGeoUnits(rows)
}

// ListByLevel returns every unit at a geolevel.
func (r *GeoUnitRepository) ListByLevel(ctx context.Context, geoLevelID int64) ([]geounit.GeoUnit, error) {
	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM geounits WHERE geolevel_id = ? ORDER BY id`, geoUnitColumns),
		geoLevelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list geounits: %w", err)
	}
	defer rows.Close()
	return scanGeoUnits(rows)
}

// InsertUnit stores a unit. When Center is empty an interior point is
// derived from the geometry so the stored center always lies within it.
func (r *GeoUnitRepository) InsertUnit(ctx context.Context, u geounit.GeoUnit) error {
	center := u.Center
	if center.IsEmpty() && !u.Geom.IsEmpty() {
		center = geo.InteriorPoint(u.Geom)
	}
	simple := ""
	if !u.Simple.IsEmpty() {
		simple = u.Simple.AsText()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO geounits (id, portable_id, name, geolevel_id, geom, simple, center)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.PortableID, u.Name, u.GeoLevelID, u.Geom.AsText(), simple, center.AsText())
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		if isForeignKeyViolation(err) {
			return repository.ErrForeignKeyViolation
		}
		return fmt.Errorf("failed to insert geounit: %w", err)
	}
	return nil
}

type rowScanner interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanGeoUnits(rows rowScanner) ([]geounit.GeoUnit, error) {
	var units []geounit.GeoUnit
	for rows.Next() {
		var u geounit.GeoUnit
		var geomWKT, simpleWKT, centerWKT string
		if err := rows.Scan(&u.ID, &u.PortableID, &u.Name, &u.GeoLevelID, &geomWKT, &simpleWKT, &centerWKT); err != nil {
			return nil, fmt.Errorf("failed to scan geounit: %w", err)
		}
		g, err := geo.ParseWKT(geomWKT)
		if err != nil {
			return nil, fmt.Errorf("unit %s geometry: %w", u.ID, err)
		}
		u.Geom = g
		if simpleWKT != "" {
			simple, err := geo.ParseWKT(simpleWKT)
			if err != nil {
				return nil, fmt.Errorf("unit %s simplified geometry: %w", u.ID, err)
			}
			u.Simple = simple
		}
		if centerWKT != "" {
			center, err := geo.ParseWKT(centerWKT)
			if err != nil {
				return nil, fmt.Errorf("unit %s center: %w", u.ID, err)
			}
			if pt, ok := center.AsPoint(); ok {
				u.Center = pt
			}
		}
		units = append(units, u)
	}
	return units, rows.Err()
}
