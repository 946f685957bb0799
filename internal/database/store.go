package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/edgard/smartblinds/internal/errs"
	"github.com/edgard/smartblinds/internal/schedule"
)

// Store defines the interface for database operations.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// CreateAction inserts a new action and returns it with its assigned ID.
	// A second action on the same weekday and time is rejected with errs.ErrConflict.
	CreateAction(ctx context.Context, weekday schedule.Weekday, tod schedule.TimeOfDay, open bool) (*Action, error)

	// ListActions returns all actions ordered by weekday, time and ID.
	ListActions(ctx context.Context) ([]*Action, error)

	// DeleteAction removes an action and reports whether it existed.
	DeleteAction(ctx context.Context, id int64) (bool, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) CreateAction(ctx context.Context, weekday schedule.Weekday, tod schedule.TimeOfDay, open bool) (*Action, error) {
	if !weekday.Valid() {
		return nil, errs.NewValidationError(fmt.Sprintf("invalid weekday %d", int(weekday)), nil)
	}
	if !tod.Valid() {
		return nil, errs.NewValidationError(fmt.Sprintf("invalid time of day %s", tod), nil)
	}

	query := `
        INSERT INTO actions (day, time, open)
        VALUES (?, ?, ?)
        RETURNING id, day, time, open;
    `

	var row actionRow
	if err := s.db.QueryRowxContext(ctx, query, int64(weekday), tod.String(), open).StructScan(&row); err != nil {
		if isUniqueViolation(err) {
			s.logger.WarnContext(ctx, "Action already exists for weekday and time",
				"weekday", weekday.String(), "time", tod.String())
			return nil, errs.NewStoreQueryError(
				fmt.Sprintf("failed to create action on %s at %s", weekday, tod),
				fmt.Errorf("%w: %w", errs.ErrConflict, err))
		}
		s.logger.ErrorContext(ctx, "Error creating action",
			"weekday", weekday.String(), "time", tod.String(), "error", err)
		return nil, errs.NewStoreQueryError("failed to create action", err)
	}

	action, err := row.toAction()
	if err != nil {
		return nil, errs.NewStoreQueryError("created action has corrupt data", err)
	}

	s.logger.DebugContext(ctx, "Action created",
		"action_id", action.ID, "weekday", action.Weekday.String(), "time", action.Time.String(), "open", action.Open)
	return action, nil
}

// ListActions fails with a store query error if any persisted row holds an
// out-of-range weekday or an unparsable time.
func (s *sqlxStore) ListActions(ctx context.Context) ([]*Action, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var rows []actionRow
	query := `
        SELECT id, day, time, open
        FROM actions
        ORDER BY day, time, id;
    `
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		s.logger.ErrorContext(ctx, "Error listing actions", "error", err)
		return nil, errs.NewStoreQueryError("failed to list actions", err)
	}

	actions := make([]*Action, 0, len(rows))
	for _, row := range rows {
		action, err := row.toAction()
		if err != nil {
			s.logger.ErrorContext(ctx, "Corrupt action row", "action_id", row.ID, "day", row.Day, "time", row.Time, "error", err)
			return nil, errs.NewStoreQueryError(fmt.Sprintf("action %d has corrupt data", row.ID), err)
		}
		actions = append(actions, action)
	}

	s.logger.DebugContext(ctx, "Listed actions", "count", len(actions))
	return actions, nil
}

func (s *sqlxStore) DeleteAction(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM actions WHERE id = ?;`, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting action", "action_id", id, "error", err)
		return false, errs.NewStoreQueryError(fmt.Sprintf("failed to delete action %d", id), err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, errs.NewStoreQueryError(fmt.Sprintf("failed to read result of deleting action %d", id), err)
	}

	s.logger.DebugContext(ctx, "Delete action finished", "action_id", id, "existed", affected > 0)
	return affected > 0, nil
}

// RunSQLMaintenance executes VACUUM followed by PRAGMA optimize.
// VACUUM cannot run inside a transaction.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	if _, err := s.db.ExecContext(ctx, "VACUUM;"); err != nil {
		s.logger.ErrorContext(ctx, "VACUUM failed", "error", err)
		return errs.NewStoreQueryError("failed to vacuum database", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize;"); err != nil {
		s.logger.ErrorContext(ctx, "PRAGMA optimize failed", "error", err)
		return errs.NewStoreQueryError("failed to optimize database", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance completed")
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return true
		}
		// Without extended result codes only the primary code is reported.
		if sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
			return strings.Contains(sqliteErr.Error(), "UNIQUE")
		}
	}
	return false
}
