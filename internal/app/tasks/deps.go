// Package tasks implements the periodic maintenance tasks of smartblinds.
// It includes task definitions, dependencies, and registration mechanisms.
package tasks

import (
	"context"
	"log/slog"

	"github.com/edgard/smartblinds/internal/alarm"
	"github.com/edgard/smartblinds/internal/config"
)

// MaintenanceStore is the store surface used by the SQL maintenance task.
type MaintenanceStore interface {
	RunSQLMaintenance(ctx context.Context) error
}

// Auditor compares persisted actions with armed timers.
type Auditor interface {
	Audit(ctx context.Context) (alarm.AuditReport, error)
}

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger  *slog.Logger
	Store   MaintenanceStore
	Auditor Auditor
	Config  *config.Config
}
