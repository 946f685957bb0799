// Package blinds drives the motorized blinds and tracks their position.
package blinds

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Driver moves the physical blinds. Calls block until the hardware is done.
type Driver interface {
	Open(ctx context.Context) error
	Close(ctx context.Context) error
}

// Manager serializes hardware moves and remembers the last known position.
// Moves to the position the blinds are already in skip the driver, so Apply
// is idempotent.
type Manager struct {
	mu         sync.RWMutex
	driver     Driver
	clock      clockwork.Clock
	logger     *slog.Logger
	open       bool
	lastAction time.Time
}

// NewManager creates a manager; initialOpen is the assumed starting position.
func NewManager(driver Driver, initialOpen bool, clock clockwork.Clock, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{
		driver: driver,
		clock:  clock,
		logger: logger.With("component", "blinds"),
		open:   initialOpen,
	}
}

// IsOpen returns if the blinds are open.
func (m *Manager) IsOpen() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.open
}

// LastAction returns when the blinds last moved, and false if they never did.
func (m *Manager) LastAction() (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastAction, !m.lastAction.IsZero()
}

// Move drives the blinds to the requested position. It reports whether the
// hardware was actually moved.
func (m *Manager) Move(ctx context.Context, open bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.open == open {
		m.logger.DebugContext(ctx, "Blinds already in requested position", "open", open)
		return false, nil
	}
	if err := m.drive(ctx, open); err != nil {
		return false, err
	}
	return true, nil
}

// Toggle flips the blinds and returns the new position.
func (m *Manager) Toggle(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	target := !m.open
	if err := m.drive(ctx, target); err != nil {
		return m.open, err
	}
	return target, nil
}

// Apply implements the scheduler's actuator contract.
func (m *Manager) Apply(ctx context.Context, open bool) error {
	_, err := m.Move(ctx, open)
	return err
}

// drive must be called with m.mu held.
func (m *Manager) drive(ctx context.Context, open bool) error {
	var err error
	if open {
		err = m.driver.Open(ctx)
	} else {
		err = m.driver.Close(ctx)
	}
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to move blinds", "open", open, "error", err)
		return fmt.Errorf("failed to move blinds (open=%t): %w", open, err)
	}

	m.open = open
	m.lastAction = m.clock.Now()
	m.logger.InfoContext(ctx, "Blinds moved", "open", open)
	return nil
}

// MockDriver stands in for the hardware until a real driver exists. Each
// move only logs, optionally after a fixed delay that emulates the motor.
type MockDriver struct {
	logger *slog.Logger
	delay  time.Duration
}

// NewMockDriver creates a MockDriver that sleeps for delay on every move.
func NewMockDriver(logger *slog.Logger, delay time.Duration) *MockDriver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &MockDriver{logger: logger.With("component", "mock_driver"), delay: delay}
}

func (d *MockDriver) Open(ctx context.Context) error {
	return d.move(ctx, "Open curtains")
}

func (d *MockDriver) Close(ctx context.Context) error {
	return d.move(ctx, "Close curtains")
}

func (d *MockDriver) move(ctx context.Context, msg string) error {
	if d.delay > 0 {
		t := time.NewTimer(d.delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	d.logger.InfoContext(ctx, msg)
	return nil
}

// NewDriver returns the driver registered under name.
func NewDriver(name string, logger *slog.Logger, delay time.Duration) (Driver, error) {
	switch name {
	case "mock", "":
		return NewMockDriver(logger, delay), nil
	default:
		return nil, fmt.Errorf("unknown blinds driver %q", name)
	}
}
