// Package alarm implements the recurring alarm scheduler: a registry of
// armed timers kept consistent with the action store, and the service that
// drives the blinds whenever one of them fires.
package alarm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/edgard/smartblinds/internal/database"
	"github.com/edgard/smartblinds/internal/errs"
	"github.com/edgard/smartblinds/internal/metrics"
	"github.com/edgard/smartblinds/internal/schedule"
)

// Store is the part of the action store the scheduler needs.
type Store interface {
	CreateAction(ctx context.Context, weekday schedule.Weekday, tod schedule.TimeOfDay, open bool) (*database.Action, error)
	ListActions(ctx context.Context) ([]*database.Action, error)
	DeleteAction(ctx context.Context, id int64) (bool, error)
}

// Actuator applies a target position. It must tolerate being called with the
// position it is already in.
type Actuator interface {
	Apply(ctx context.Context, open bool) error
}

// Options tunes a Service. The zero value is usable.
type Options struct {
	Logger  *slog.Logger
	Clock   clockwork.Clock
	Metrics *metrics.Metrics
	// ActuatorTimeout bounds each actuator call made by a firing; zero means
	// no bound beyond the service lifetime.
	ActuatorTimeout time.Duration
}

// ScheduledAction is an action together with its armed trigger instant.
type ScheduledAction struct {
	database.Action
	NextRun time.Time
}

// AuditReport lists the ids on which the store and the registry disagree.
type AuditReport struct {
	Unarmed  []int64 // in the store, no timer
	Orphaned []int64 // timer, not in the store
}

func (r AuditReport) Consistent() bool {
	return len(r.Unarmed) == 0 && len(r.Orphaned) == 0
}

// Service owns the timers of all persisted actions.
//
// CreateAction, DeleteAction and Audit are serialized by mu for their whole
// store-then-registry sequence. Firings never take mu: they call the actuator
// unlocked and only take the registry's own lock to rearm.
type Service struct {
	mu       sync.Mutex
	store    Store
	actuator Actuator
	registry *Registry
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *metrics.Metrics
	timeout  time.Duration
	fatal    chan error
}

// Start loads every persisted action and arms its timer. The service is
// ready for CreateAction and DeleteAction once Start returns.
func Start(ctx context.Context, store Store, actuator Actuator, opts Options) (*Service, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	log := opts.Logger.With("component", "alarm_service")

	registry, err := NewRegistry(opts.Clock, opts.Logger)
	if err != nil {
		return nil, err
	}

	s := &Service{
		store:    store,
		actuator: actuator,
		registry: registry,
		clock:    opts.Clock,
		logger:   log,
		metrics:  opts.Metrics,
		timeout:  opts.ActuatorTimeout,
		fatal:    make(chan error, 1),
	}

	actions, err := store.ListActions(ctx)
	if err != nil {
		s.closeAfterFailedStart()
		log.ErrorContext(ctx, "Failed to load actions", "error", err)
		return nil, errs.NewStoreConnectError("failed to load actions", err)
	}

	for _, action := range actions {
		if _, err := s.arm(ctx, *action); err != nil {
			s.closeAfterFailedStart()
			return nil, err
		}
	}
	s.metrics.SetArmed(registry.Len())

	log.InfoContext(ctx, "Alarm service started", "armed", registry.Len())
	return s, nil
}

// CreateAction persists a new action and arms its timer. Store errors are
// returned as is and leave nothing armed.
func (s *Service) CreateAction(ctx context.Context, weekday schedule.Weekday, tod schedule.TimeOfDay, open bool) (*database.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	action, err := s.store.CreateAction(ctx, weekday, tod, open)
	if err != nil {
		s.metrics.StoreFailed("create")
		return nil, err
	}

	if _, err := s.arm(ctx, *action); err != nil {
		existed, delErr := s.store.DeleteAction(ctx, action.ID)
		if delErr != nil || !existed {
			s.logger.ErrorContext(ctx, "Failed to roll back action after arming failed",
				"action_id", action.ID, "error", delErr)
			s.reportFatal(errs.NewInconsistencyError(
				fmt.Sprintf("action %d is persisted but could not be armed", action.ID), err))
		}
		return nil, err
	}

	s.metrics.SetArmed(s.registry.Len())
	return action, nil
}

// DeleteAction deletes the action from the store and then disarms it. It
// reports false, touching nothing, when the store had no such action.
//
// A deletion confirmed by the store for an id without a timer is an
// inconsistency error; the deletion itself still happened.
func (s *Service) DeleteAction(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existed, err := s.store.DeleteAction(ctx, id)
	if err != nil {
		s.metrics.StoreFailed("delete")
		return false, err
	}
	if !existed {
		return false, nil
	}

	if !s.registry.Cancel(id) {
		s.logger.ErrorContext(ctx, "Deleted action had no armed timer", "action_id", id)
		return true, errs.NewInconsistencyError(
			fmt.Sprintf("action %d was deleted from the store but had no armed timer", id), nil)
	}

	s.metrics.SetArmed(s.registry.Len())
	s.logger.InfoContext(ctx, "Action removed", "action_id", id)
	return true, nil
}

// ListActions returns the persisted actions with their next trigger instants.
func (s *Service) ListActions(ctx context.Context) ([]ScheduledAction, error) {
	actions, err := s.store.ListActions(ctx)
	if err != nil {
		s.metrics.StoreFailed("list")
		return nil, err
	}

	now := s.clock.Now()
	out := make([]ScheduledAction, 0, len(actions))
	for _, action := range actions {
		next, ok := s.registry.NextRun(action.ID)
		if !ok {
			// Created or deleted concurrently with this listing.
			next = action.NextOccurrence(now)
		}
		out = append(out, ScheduledAction{Action: *action, NextRun: next})
	}
	return out, nil
}

// Audit compares the store with the registry under the service lock.
func (s *Service) Audit(ctx context.Context) (AuditReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	actions, err := s.store.ListActions(ctx)
	if err != nil {
		s.metrics.StoreFailed("list")
		return AuditReport{}, err
	}

	var report AuditReport
	stored := make([]int64, 0, len(actions))
	for _, action := range actions {
		stored = append(stored, action.ID)
		if !s.registry.Has(action.ID) {
			report.Unarmed = append(report.Unarmed, action.ID)
		}
	}
	for _, id := range s.registry.IDs() {
		if !slices.Contains(stored, id) {
			report.Orphaned = append(report.Orphaned, id)
		}
	}
	return report, nil
}

// NextRun returns when the timer of id is next due.
func (s *Service) NextRun(id int64) (time.Time, bool) { return s.registry.NextRun(id) }

// Armed returns the number of armed timers.
func (s *Service) Armed() int { return s.registry.Len() }

// ArmedIDs returns the ids of all armed timers in ascending order.
func (s *Service) ArmedIDs() []int64 { return s.registry.IDs() }

// Err delivers the first fatal scheduling failure raised outside a caller's
// request, such as a timer that could not be rearmed after firing.
func (s *Service) Err() <-chan error { return s.fatal }

// Close releases every timer and waits for firings in flight.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.registry.Close()
	s.metrics.SetArmed(0)
	s.logger.Info("Alarm service stopped")
	return err
}

// arm must be called with s.mu held, or before Start returns.
func (s *Service) arm(ctx context.Context, action database.Action) (Handle, error) {
	when := action.NextOccurrence(s.clock.Now())
	h, err := s.registry.Register(action.ID, when, func(ctx context.Context, h Handle) {
		s.fire(ctx, action, h)
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to arm action timer", "action_id", action.ID, "error", err)
		return Handle{}, err
	}

	s.logger.InfoContext(ctx, "Armed action timer",
		"action_id", action.ID,
		"weekday", action.Weekday.String(),
		"time", action.Time.String(),
		"open", action.Open,
		"next_run", when)
	return h, nil
}

// fire drives the actuator and rearms for the following week. The next
// occurrence is computed from the later of now and the scheduled instant, so
// an early wake-up cannot fire twice and a late one does not accumulate drift.
func (s *Service) fire(ctx context.Context, action database.Action, h Handle) {
	log := s.logger.With("action_id", action.ID, "open", action.Open)
	log.InfoContext(ctx, "Alarm fired", "scheduled_for", h.When)

	applyCtx, cancel := s.actuatorContext(ctx)
	err := s.actuator.Apply(applyCtx, action.Open)
	cancel()
	if err != nil {
		s.metrics.ActuatorFailed()
		log.ErrorContext(ctx, "Actuator failed to apply target state", "error", err)
	}
	s.metrics.Fired(action.Open)

	from := s.clock.Now()
	if from.Before(h.When) {
		from = h.When
	}
	next, ok, err := s.registry.Rearm(h, action.NextOccurrence(from))
	switch {
	case err != nil:
		log.ErrorContext(ctx, "Failed to rearm action timer", "error", err)
		s.metrics.SetArmed(s.registry.Len())
		s.reportFatal(err)
	case !ok:
		log.InfoContext(ctx, "Action removed while firing, not rearming")
	default:
		log.InfoContext(ctx, "Rearmed action timer", "next_run", next.When)
	}
}

func (s *Service) actuatorContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

func (s *Service) reportFatal(err error) {
	select {
	case s.fatal <- err:
	default:
	}
}

func (s *Service) closeAfterFailedStart() {
	if err := s.registry.Close(); err != nil {
		s.logger.Error("Failed to release timers after failed start", "error", err)
	}
}
