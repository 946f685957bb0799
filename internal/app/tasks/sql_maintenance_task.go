package tasks

import (
	"context"
	"fmt"
	"time"
)

// newSQLMaintenanceTask compacts the action database. Deleted actions leave
// free pages behind; VACUUM returns them and PRAGMA optimize refreshes the
// planner statistics for the weekday/time index.
func newSQLMaintenanceTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "sql_maintenance")
	if deps.Config != nil {
		log = log.With("database", deps.Config.Database.Path)
	}

	return func(ctx context.Context) error {
		start := time.Now()
		log.InfoContext(ctx, "Compacting action database...")

		if err := deps.Store.RunSQLMaintenance(ctx); err != nil {
			log.ErrorContext(ctx, "Action database maintenance failed", "error", err, "elapsed", time.Since(start))
			return fmt.Errorf("action database maintenance: %w", err)
		}

		log.InfoContext(ctx, "Action database compacted", "elapsed", time.Since(start))
		return nil
	}
}
