package sqlite

import (
	"context"
	"fmt"

	"github.com/PublicMapping/districtcore/internal/domain/stats"
)

// ComputedRepository implements stats.ComputedRepository for SQLite.
type ComputedRepository struct {
	db *DB
}

// NewComputedRepository creates a new ComputedRepository
func NewComputedRepository(db *DB) *ComputedRepository {
	return &ComputedRepository{db: db}
}

// GetComputed returns the aggregate rows for a district snapshot.
func (r *ComputedRepository) GetComputed(ctx context.Context, districtRowID int64) ([]stats.ComputedCharacteristic, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT district_row, subject, number, percentage
		 FROM computed_characteristics WHERE district_row = ? ORDER BY subject`,
		districtRowID)
	if err != nil {
		return nil, fmt.Errorf("failed to get computed characteristics: %w", err)
	}
	defer rows.Close()

	var out []stats.ComputedCharacteristic
	for rows.Next() {
		var cc stats.ComputedCharacteristic
		if err := rows.Scan(&cc.DistrictRowID, &cc.Subject, &cc.Number, &cc.Percentage); err != nil {
			return nil, fmt.Errorf("failed to scan computed characteristic: %w", err)
		}
		out = append(out, cc)
	}
	return out, rows.Err()
}

// UpsertComputed writes a batch of aggregate rows, replacing existing values
// for the same snapshot and subject, in one transaction.
func (r *ComputedRepository) UpsertComputed(ctx context.Context, batch []stats.ComputedCharacteristic) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO computed_characteristics (district_row, subject, number, percentage)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (district_row, subject) DO UPDATE SET number = excluded.number, percentage = excluded.percentage`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, cc := range batch {
		if _, err := stmt.ExecContext(ctx, cc.DistrictRowID, cc.Subject, cc.Number, cc.Percentage); err != nil {
			return fmt.Errorf("failed to upsert computed characteristic: %w", err)
		}
	}
	return tx.Commit()
}

// DeleteComputed removes every aggregate row for a district snapshot.
func (r *ComputedRepository) DeleteComputed(ctx context.Context, districtRowID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM computed_characteristics WHERE district_row = ?`, districtRowID)
	if err != nil {
		return fmt.Errorf("failed to delete computed characteristics: %w", err)
	}
	return nil
}

// CopyComputed duplicates one snapshot's aggregate rows onto another.
func (r *ComputedRepository) CopyComputed(ctx context.Context, fromRowID, toRowID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO computed_characteristics (district_row, subject, number, percentage)
		 SELECT ?, subject, number, percentage FROM computed_characteristics WHERE district_row = ?`,
		toRowID, fromRowID)
	if err != nil {
		return fmt.Errorf("failed to copy computed characteristics: %w", err)
	}
	return nil
}
