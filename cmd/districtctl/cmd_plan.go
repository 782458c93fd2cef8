package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/PublicMapping/districtcore/internal/domain/geounit"
	"github.com/PublicMapping/districtcore/internal/domain/hierarchy"
	"github.com/PublicMapping/districtcore/internal/domain/plan"
	"github.com/PublicMapping/districtcore/internal/domain/stats"
	"github.com/PublicMapping/districtcore/internal/sqlite"
)

// buildPlanService wires the full edit path over an open database.
func buildPlanService(ctx context.Context, db *sqlite.DB, logger *slog.Logger) (*plan.Service, error) {
	hierRepo := sqlite.NewHierarchyRepository(db)
	unitRepo := sqlite.NewGeoUnitRepository(db)
	subjectRepo := sqlite.NewSubjectRepository(db)
	computedRepo := sqlite.NewComputedRepository(db)
	planRepo := sqlite.NewPlanRepository(db)

	hierSvc, err := hierarchy.NewService(ctx, hierRepo, logger)
	if err != nil {
		return nil, fmt.Errorf("loading hierarchy: %w", err)
	}
	statsSvc := stats.NewService(subjectRepo, computedRepo, logger)
	resolver := geounit.NewResolver(unitRepo, hierSvc, logger)
	return plan.NewService(planRepo, planRepo, unitRepo, resolver, hierSvc, statsSvc, logger), nil
}

func newReaggregateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reaggregate <plan-id>",
		Short: "Recompute every district's aggregates from raw characteristics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, logger, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			svc, err := buildPlanService(cmd.Context(), db, logger)
			if err != nil {
				return err
			}
			return svc.Reaggregate(cmd.Context(), args[0])
		},
	}
}

func newPurgeCmd() *cobra.Command {
	var before, after int64
	var hasBefore, hasAfter bool
	cmd := &cobra.Command{
		Use:   "purge <plan-id>",
		Short: "Delete district version history outside the given bounds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hasBefore = cmd.Flags().Changed("before")
			hasAfter = cmd.Flags().Changed("after")

			_, db, logger, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			svc, err := buildPlanService(cmd.Context(), db, logger)
			if err != nil {
				return err
			}
			var beforePtr, afterPtr *int64
			if hasBefore {
				beforePtr = &before
			}
			if hasAfter {
				afterPtr = &after
			}
			return svc.Purge(cmd.Context(), args[0], beforePtr, afterPtr)
		},
	}
	cmd.Flags().Int64Var(&before, "before", 0, "delete rows with version below this")
	cmd.Flags().Int64Var(&after, "after", 0, "delete rows with version above this")
	return cmd
}

func newSimplifyCmd() *cobra.Command {
	var districtID int64
	cmd := &cobra.Command{
		Use:   "simplify <plan-id>",
		Short: "Compute per-geolevel simplified geometry for a plan's districts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, logger, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			svc, err := buildPlanService(cmd.Context(), db, logger)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("district") {
				return svc.SimplifyDistrict(cmd.Context(), args[0], districtID)
			}
			return svc.SimplifyPlan(cmd.Context(), args[0])
		},
	}
	cmd.Flags().Int64Var(&districtID, "district", 0, "simplify only this district")
	return cmd
}
