package main

import (
	"errors"
	"fmt"

	"github.com/jackyeh168/loyalty_engine/src/internal/domain/points"
	"github.com/spf13/cobra"
)

func reconcileCmd(load loadFunc) *cobra.Command {
	var skipSweep bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Sweep stalled redemptions and audit every ledger",
		Long: `Run one sweep pass over all active tenants, then replay each customer's
ledger entries against the stored balance. Exits non-zero when any balance
disagrees with the sum of its entries.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()
			ctx := cmd.Context()

			if !skipSweep {
				report, err := a.sweeper.SweepOnce(ctx)
				if err != nil {
					return fmt.Errorf("sweep failed: %w", err)
				}
				logger.Info("sweep finished",
					"examined", report.Examined,
					"recovered", report.Recovered,
					"failed", report.Failed,
				)
			}

			records, err := a.tenants.ListActive(ctx)
			if err != nil {
				return err
			}

			violations := 0
			for _, record := range records {
				t, err := a.resolver.Resolve(ctx, record.ID.String())
				if err != nil {
					return err
				}
				// 不一致的顧客由 ledger.Service 逐筆記錄
				result, err := a.ledger.ReconcileTenant(ctx, t)
				if err != nil && !errors.Is(err, points.ErrInvariantViolation) {
					return fmt.Errorf("reconcile tenant %s: %w", t, err)
				}
				violations += len(result.Violations)
				logger.Info("tenant reconciled",
					"tenant_id", t.String(),
					"customers", result.Checked,
					"violations", len(result.Violations),
				)
			}

			if violations > 0 {
				return fmt.Errorf("%d ledger invariant violation(s) found", violations)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipSweep, "skip-sweep", false, "only audit ledgers, do not sweep redemptions")
	return cmd
}
