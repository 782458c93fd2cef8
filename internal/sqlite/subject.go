package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/PublicMapping/districtcore/internal/domain/stats"
	"github.com/PublicMapping/districtcore/internal/repository"
)

// SubjectRepository implements stats.SubjectRepository for SQLite, plus the
// write side used by data import.
type SubjectRepository struct {
	db *DB
}

// NewSubjectRepository creates a new SubjectRepository
func NewSubjectRepository(db *DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// ListSubjects returns every configured subject.
func (r *SubjectRepository) ListSubjects(ctx context.Context) ([]stats.Subject, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, display_name, percentage_denominator FROM subjects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	defer rows.Close()

	var subjects []stats.Subject
	for rows.Next() {
		var subj stats.Subject
		var denom sql.NullString
		if err := rows.Scan(&subj.Name, &subj.DisplayName, &denom); err != nil {
			return nil, fmt.Errorf("failed to scan subject: %w", err)
		}
		subj.PercentageDenominator = denom.String
		subjects = append(subjects, subj)
	}
	return subjects, rows.Err()
}

// SumByUnits sums raw characteristic values per subject over the given base
// units. Subjects with no rows for these units are absent from the result.
func (r *SubjectRepository) SumByUnits(ctx context.Context, unitIDs []string) (map[string]float64, error) {
	sums := make(map[string]float64)
	if len(unitIDs) == 0 {
		return sums, nil
	}
	placeholders := strings.Repeat("?,", len(unitIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(unitIDs))
	for i, id := range unitIDs {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT subject, SUM(number) FROM characteristics WHERE geounit_id IN (%s) GROUP BY subject`, placeholders),
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to sum characteristics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var subject string
		var sum float64
		if err := rows.Scan(&subject, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan characteristic sum: %w", err)
		}
		sums[subject] = sum
	}
	return sums, rows.Err()
}

// InsertSubject stores a subject.
func (r *SubjectRepository) InsertSubject(ctx context.Context, subj stats.Subject) error {
	var denom interface{}
	if subj.PercentageDenominator != "" {
		denom = subj.PercentageDenominator
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO subjects (name, display_name, percentage_denominator) VALUES (?, ?, ?)`,
		subj.Name, subj.DisplayName, denom)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to insert subject: %w", err)
	}
	return nil
}

// InsertCharacteristics stores a batch of raw characteristic values in one
// transaction.
func (r *SubjectRepository) InsertCharacteristics(ctx context.Context, chars []stats.Characteristic) error {
	if len(chars) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO characteristics (subject, geounit_id, number) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chars {
		if _, err := stmt.ExecContext(ctx, c.Subject, c.GeoUnitID, c.Number); err != nil {
			if isForeignKeyViolation(err) {
				return repository.ErrForeignKeyViolation
			}
			if isUniqueViolation(err) {
				return repository.ErrConflict
			}
			return fmt.Errorf("failed to insert characteristic: %w", err)
		}
	}
	return tx.Commit()
}
