package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/PublicMapping/districtcore/internal/domain/compare"
	"github.com/PublicMapping/districtcore/internal/domain/geounit"
	"github.com/PublicMapping/districtcore/internal/domain/hierarchy"
	"github.com/PublicMapping/districtcore/internal/sqlite"
)

func newNestingCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "nesting-check <body-id>",
		Short: "Verify every coarse unit is exactly tiled by its child units",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var bodyID int64
			if _, err := fmt.Sscanf(args[0], "%d", &bodyID); err != nil {
				return fmt.Errorf("invalid body id %q", args[0])
			}

			_, db, logger, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			hierRepo := sqlite.NewHierarchyRepository(db)
			unitRepo := sqlite.NewGeoUnitRepository(db)
			hierSvc, err := hierarchy.NewService(cmd.Context(), hierRepo, logger)
			if err != nil {
				return fmt.Errorf("loading hierarchy: %w", err)
			}

			checker := geounit.NewNestingChecker(unitRepo, hierSvc, logger)
			violations, err := checker.Check(cmd.Context(), bodyID)
			if err != nil {
				return err
			}
			if len(violations) == 0 {
				fmt.Println("nesting ok")
				return nil
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(violations); err != nil {
				return err
			}
			return fmt.Errorf("%d nesting violations", len(violations))
		},
	}
}

func newCompareCmd() *cobra.Command {
	var versionA, versionB int64
	var components bool
	cmd := &cobra.Command{
		Use:   "compare <plan-a> <plan-b>",
		Short: "Report split or containment relations between two plans",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, logger, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			planSvc, err := buildPlanService(cmd.Context(), db, logger)
			if err != nil {
				return err
			}
			compareSvc := compare.NewService(planSvc, cfg.Compare.NegligibleArea, logger)

			var relations []compare.Relation
			if components {
				relations, err = compareSvc.FindComponents(cmd.Context(), args[0], args[1], versionA, versionB)
			} else {
				relations, err = compareSvc.FindSplits(cmd.Context(), args[0], args[1], versionA, versionB)
			}
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(relations)
		},
	}
	cmd.Flags().Int64Var(&versionA, "version-a", -1, "version of plan A (-1 for current)")
	cmd.Flags().Int64Var(&versionB, "version-b", -1, "version of plan B (-1 for current)")
	cmd.Flags().BoolVar(&components, "components", false, "report containment instead of splits")
	return cmd
}
