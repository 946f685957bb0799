package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/edgard/smartblinds/internal/alarm"
	"github.com/edgard/smartblinds/internal/config"
	"github.com/edgard/smartblinds/internal/database"
	"github.com/edgard/smartblinds/internal/schedule"
)

// ActionService is the part of the alarm service the commands drive.
type ActionService interface {
	CreateAction(ctx context.Context, weekday schedule.Weekday, tod schedule.TimeOfDay, open bool) (*database.Action, error)
	DeleteAction(ctx context.Context, id int64) (bool, error)
	ListActions(ctx context.Context) ([]alarm.ScheduledAction, error)
	NextRun(id int64) (time.Time, bool)
}

// Blinds is the manual control surface of the blinds.
type Blinds interface {
	IsOpen() bool
	Move(ctx context.Context, open bool) (bool, error)
	Toggle(ctx context.Context) (bool, error)
}

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger  *slog.Logger
	Config  *config.Config
	Service ActionService
	Blinds  Blinds
}

func (d HandlerDeps) operationTimeout() time.Duration {
	if d.Config != nil && d.Config.Database.OperationTimeout > 0 {
		return d.Config.Database.OperationTimeout
	}
	return 15 * time.Second
}
