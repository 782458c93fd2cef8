package stats

import (
	"context"
	"fmt"
	"log/slog"
)

// SubjectRepository provides subjects and raw characteristic sums.
type SubjectRepository interface {
	ListSubjects(ctx context.Context) ([]Subject, error)
	// SumByUnits sums raw characteristic values per subject over the given
	// base units.
	SumByUnits(ctx context.Context, unitIDs []string) (map[string]float64, error)
}

// ComputedRepository persists per-district aggregate rows.
type ComputedRepository interface {
	GetComputed(ctx context.Context, districtRowID int64) ([]ComputedCharacteristic, error)
	UpsertComputed(ctx context.Context, rows []ComputedCharacteristic) error
	DeleteComputed(ctx context.Context, districtRowID int64) error
	CopyComputed(ctx context.Context, fromRowID, toRowID int64) error
}

// Service maintains cached per-district aggregates. It mutates only
// ComputedCharacteristic state; raw characteristics and district geometry are
// read-only from here.
type Service struct {
	subjects SubjectRepository
	computed ComputedRepository
	logger   *slog.Logger
}

// NewService creates a stats service.
func NewService(subjects SubjectRepository, computed ComputedRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{subjects: subjects, computed: computed, logger: logger}
}

// Delta incrementally adjusts every subject's aggregate for a district
// snapshot by the characteristic values of the changed units. added selects
// the direction; the operation is symmetric, so a removal followed by the
// same addition is a no-op. Aggregate rows are created lazily at zero on
// first touch. Percentages are recomputed for subjects with a denominator.
func (s *Service) Delta(ctx context.Context, districtRowID int64, changedUnitIDs []string, added bool) error {
	if len(changedUnitIDs) == 0 {
		return nil
	}
	sums, err := s.subjects.SumByUnits(ctx, changedUnitIDs)
	if err != nil {
		return fmt.Errorf("summing characteristics: %w", err)
	}

	subjects, err := s.subjects.ListSubjects(ctx)
	if err != nil {
		return fmt.Errorf("listing subjects: %w", err)
	}
	current, err := s.currentByID(ctx, districtRowID)
	if err != nil {
		return err
	}

	sign := 1.0
	if !added {
		sign = -1.0
	}
	for _, subj := range subjects {
		cc := current[subj.Name]
		cc.DistrictRowID = districtRowID
		cc.Subject = subj.Name
		cc.Number += sign * sums[subj.Name]
		current[subj.Name] = cc
	}

	return s.storePercentages(ctx, subjects, current)
}

// Reset removes all aggregate rows for a district snapshot. Used when a
// district's geometry becomes empty.
func (s *Service) Reset(ctx context.Context, districtRowID int64) error {
	if err := s.computed.DeleteComputed(ctx, districtRowID); err != nil {
		return fmt.Errorf("resetting aggregates: %w", err)
	}
	return nil
}

// Reaggregate recomputes every subject's aggregate for a district snapshot
// from raw characteristics over its current membership, bypassing incremental
// deltas. It is the correctness-repair path and must agree with any sequence
// of correctly applied deltas.
func (s *Service) Reaggregate(ctx context.Context, districtRowID int64, memberUnitIDs []string) error {
	subjects, err := s.subjects.ListSubjects(ctx)
	if err != nil {
		return fmt.Errorf("listing subjects: %w", err)
	}
	sums := map[string]float64{}
	if len(memberUnitIDs) > 0 {
		sums, err = s.subjects.SumByUnits(ctx, memberUnitIDs)
		if err != nil {
			return fmt.Errorf("summing characteristics: %w", err)
		}
	}

	fresh := make(map[string]ComputedCharacteristic, len(subjects))
	for _, subj := range subjects {
		fresh[subj.Name] = ComputedCharacteristic{
			DistrictRowID: districtRowID,
			Subject:       subj.Name,
			Number:        sums[subj.Name],
		}
	}
	return s.storePercentages(ctx, subjects, fresh)
}

// ComputeDelta derives the aggregate rows for a new district snapshot from a
// prior snapshot's aggregates adjusted by unit membership changes, without
// persisting anything. fromRowID zero starts from empty aggregates. The
// caller stages the returned rows inside the edit's atomic write.
func (s *Service) ComputeDelta(ctx context.Context, fromRowID int64, addedUnits, removedUnits []string) ([]ComputedCharacteristic, error) {
	subjects, err := s.subjects.ListSubjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing subjects: %w", err)
	}

	byName := make(map[string]ComputedCharacteristic, len(subjects))
	if fromRowID != 0 {
		prior, err := s.computed.GetComputed(ctx, fromRowID)
		if err != nil {
			return nil, fmt.Errorf("loading prior aggregates: %w", err)
		}
		for _, cc := range prior {
			byName[cc.Subject] = cc
		}
	}

	addSums := map[string]float64{}
	if len(addedUnits) > 0 {
		if addSums, err = s.subjects.SumByUnits(ctx, addedUnits); err != nil {
			return nil, fmt.Errorf("summing added units: %w", err)
		}
	}
	remSums := map[string]float64{}
	if len(removedUnits) > 0 {
		if remSums, err = s.subjects.SumByUnits(ctx, removedUnits); err != nil {
			return nil, fmt.Errorf("summing removed units: %w", err)
		}
	}

	for _, subj := range subjects {
		cc := byName[subj.Name]
		cc.DistrictRowID = 0
		cc.Subject = subj.Name
		cc.Number += addSums[subj.Name] - remSums[subj.Name]
		byName[subj.Name] = cc
	}

	rows := make([]ComputedCharacteristic, 0, len(subjects))
	for _, subj := range subjects {
		cc := byName[subj.Name]
		cc.Percentage = 0
		if subj.PercentageDenominator != "" {
			if denom := byName[subj.PercentageDenominator].Number; denom != 0 {
				cc.Percentage = cc.Number / denom
			}
		}
		rows = append(rows, cc)
	}
	return rows, nil
}

// Seed copies the aggregates of a prior snapshot onto a new one, the
// starting point for a delta during an edit.
func (s *Service) Seed(ctx context.Context, fromRowID, toRowID int64) error {
	if err := s.computed.CopyComputed(ctx, fromRowID, toRowID); err != nil {
		return fmt.Errorf("seeding aggregates: %w", err)
	}
	return nil
}

// Computed returns the cached aggregates for a district snapshot.
func (s *Service) Computed(ctx context.Context, districtRowID int64) ([]ComputedCharacteristic, error) {
	return s.computed.GetComputed(ctx, districtRowID)
}

func (s *Service) currentByID(ctx context.Context, districtRowID int64) (map[string]ComputedCharacteristic, error) {
	rows, err := s.computed.GetComputed(ctx, districtRowID)
	if err != nil {
		return nil, fmt.Errorf("loading aggregates: %w", err)
	}
	out := make(map[string]ComputedCharacteristic, len(rows))
	for _, cc := range rows {
		out[cc.Subject] = cc
	}
	return out, nil
}

// storePercentages derives percentage fields from denominator aggregates and
// persists the full set in one batch.
func (s *Service) storePercentages(ctx context.Context, subjects []Subject, byName map[string]ComputedCharacteristic) error {
	rows := make([]ComputedCharacteristic, 0, len(byName))
	for _, subj := range subjects {
		cc := byName[subj.Name]
		cc.Percentage = 0
		if subj.PercentageDenominator != "" {
			if denom := byName[subj.PercentageDenominator].Number; denom != 0 {
				cc.Percentage = cc.Number / denom
			}
		}
		rows = append(rows, cc)
	}
	if err := s.computed.UpsertComputed(ctx, rows); err != nil {
		return fmt.Errorf("storing aggregates: %w", err)
	}
	return nil
}
