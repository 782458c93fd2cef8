package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection
type DB struct {
	*sql.DB
}

// New creates a new SQLite database connection
func New(dataSourceName string) (*DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &DB{db}, nil
}

// RunMigrations creates the schema. Already-migrated databases are left
// untouched.
func (db *DB) RunMigrations() error {
	var n int
	if err := db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'plans'`).Scan(&n); err != nil {
		return fmt.Errorf("failed to inspect schema: %w", err)
	}
	if n > 0 {
		return nil
	}

	migration := `
-- Geographic resolution tiers
CREATE TABLE geolevels (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    tolerance REAL NOT NULL DEFAULT 0,
    min_zoom INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE regions (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    label TEXT NOT NULL DEFAULT ''
);

CREATE TABLE legislative_bodies (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    region_id INTEGER NOT NULL REFERENCES regions(id),
    max_districts INTEGER NOT NULL DEFAULT 0
);

-- Which geolevels participate in a body, and how they nest
CREATE TABLE legislative_levels (
    body_id INTEGER NOT NULL REFERENCES legislative_bodies(id),
    geolevel_id INTEGER NOT NULL REFERENCES geolevels(id),
    parent_geolevel_id INTEGER REFERENCES geolevels(id),
    PRIMARY KEY (body_id, geolevel_id)
);

-- Immutable geographic units; geometry stored as WKT
CREATE TABLE geounits (
    id TEXT PRIMARY KEY,
    portable_id TEXT NOT NULL DEFAULT '',
    name TEXT NOT NULL DEFAULT '',
    geolevel_id INTEGER NOT NULL REFERENCES geolevels(id),
    geom TEXT NOT NULL,
    simple TEXT NOT NULL DEFAULT '',
    center TEXT NOT NULL DEFAULT ''
);
CREATE INDEX idx_geounits_level ON geounits(geolevel_id);

CREATE TABLE subjects (
    name TEXT PRIMARY KEY,
    display_name TEXT NOT NULL DEFAULT '',
    percentage_denominator TEXT
);

-- Raw demographic values, immutable after import
CREATE TABLE characteristics (
    subject TEXT NOT NULL REFERENCES subjects(name),
    geounit_id TEXT NOT NULL REFERENCES geounits(id),
    number REAL NOT NULL,
    PRIMARY KEY (subject, geounit_id)
);

CREATE TABLE plans (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    body_id INTEGER NOT NULL REFERENCES legislative_bodies(id),
    owner TEXT NOT NULL DEFAULT '',
    is_template INTEGER NOT NULL DEFAULT 0,
    is_shared INTEGER NOT NULL DEFAULT 0,
    is_pending INTEGER NOT NULL DEFAULT 0,
    is_valid INTEGER NOT NULL DEFAULT 0,
    version INTEGER NOT NULL DEFAULT 0,
    min_version INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    edited_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX idx_plans_body ON plans(body_id);

-- Append-only district snapshot log
CREATE TABLE districts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    plan_id TEXT NOT NULL REFERENCES plans(id),
    district_id INTEGER NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    version INTEGER NOT NULL,
    geom TEXT NOT NULL DEFAULT '',
    UNIQUE (plan_id, district_id, version)
);
CREATE INDEX idx_districts_plan_version ON districts(plan_id, version);

CREATE TABLE district_members (
    district_row INTEGER NOT NULL REFERENCES districts(id) ON DELETE CASCADE,
    geounit_id TEXT NOT NULL REFERENCES geounits(id),
    PRIMARY KEY (district_row, geounit_id)
);

CREATE TABLE district_tags (
    district_row INTEGER NOT NULL REFERENCES districts(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    key TEXT NOT NULL,
    value TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (district_row, key)
);

-- Per-geolevel simplified views of a snapshot's geometry
CREATE TABLE district_simple (
    district_row INTEGER NOT NULL REFERENCES districts(id) ON DELETE CASCADE,
    geolevel_id INTEGER NOT NULL REFERENCES geolevels(id),
    geom TEXT NOT NULL,
    PRIMARY KEY (district_row, geolevel_id)
);

-- Cached per-snapshot aggregates
CREATE TABLE computed_characteristics (
    district_row INTEGER NOT NULL REFERENCES districts(id) ON DELETE CASCADE,
    subject TEXT NOT NULL REFERENCES subjects(name),
    number REAL NOT NULL DEFAULT 0,
    percentage REAL NOT NULL DEFAULT 0,
    PRIMARY KEY (district_row, subject)
);
`

	_, err := db.Exec(migration)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
