package tasks

import (
	"context"
	"fmt"

	"github.com/edgard/smartblinds/internal/errs"
)

// newScheduleAuditTask creates a task that checks every persisted action has
// exactly one armed timer and nothing else is armed. Drift is reported, not
// repaired.
func newScheduleAuditTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "schedule_audit")

	return func(ctx context.Context) error {
		report, err := deps.Auditor.Audit(ctx)
		if err != nil {
			return fmt.Errorf("schedule audit failed: %w", err)
		}

		if !report.Consistent() {
			log.ErrorContext(ctx, "Armed timers do not match persisted actions",
				"unarmed", report.Unarmed,
				"orphaned", report.Orphaned)
			return errs.NewInconsistencyError(
				fmt.Sprintf("%d unarmed and %d orphaned timers", len(report.Unarmed), len(report.Orphaned)), nil)
		}

		log.DebugContext(ctx, "Armed timers match persisted actions")
		return nil
	}
}
