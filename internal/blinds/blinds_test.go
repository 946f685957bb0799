package blinds

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDriver struct {
	mu    sync.Mutex
	moves []bool
	err   error
}

func (d *recordingDriver) Open(context.Context) error  { return d.record(true) }
func (d *recordingDriver) Close(context.Context) error { return d.record(false) }

func (d *recordingDriver) record(open bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.moves = append(d.moves, open)
	return nil
}

func (d *recordingDriver) Moves() []bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]bool(nil), d.moves...)
}

func TestMoveSkipsWhenInPosition(t *testing.T) {
	t.Parallel()

	driver := &recordingDriver{}
	clock := clockwork.NewFakeClockAt(time.Date(2016, time.August, 17, 12, 0, 0, 0, time.UTC))
	m := NewManager(driver, false, clock, nil)

	_, moved := m.LastAction()
	assert.False(t, moved)

	changed, err := m.Move(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = m.Move(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, m.IsOpen())

	require.NoError(t, m.Apply(context.Background(), true))

	assert.Equal(t, []bool{true}, driver.Moves())
	last, moved := m.LastAction()
	assert.True(t, moved)
	assert.Equal(t, clock.Now(), last)
}

func TestToggle(t *testing.T) {
	t.Parallel()

	driver := &recordingDriver{}
	m := NewManager(driver, true, nil, nil)

	open, err := m.Toggle(context.Background())
	require.NoError(t, err)
	assert.False(t, open)

	open, err = m.Toggle(context.Background())
	require.NoError(t, err)
	assert.True(t, open)

	assert.Equal(t, []bool{false, true}, driver.Moves())
}

func TestDriverFailureKeepsPosition(t *testing.T) {
	t.Parallel()

	driver := &recordingDriver{err: errors.New("motor stalled")}
	m := NewManager(driver, false, nil, nil)

	_, err := m.Move(context.Background(), true)
	require.Error(t, err)
	assert.False(t, m.IsOpen())

	open, err := m.Toggle(context.Background())
	require.Error(t, err)
	assert.False(t, open)

	assert.Error(t, m.Apply(context.Background(), true))
}

func TestMockDriverHonoursContext(t *testing.T) {
	t.Parallel()

	d := NewMockDriver(nil, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, d.Open(ctx), context.Canceled)
	assert.NoError(t, NewMockDriver(nil, 0).Close(context.Background()))
}

func TestNewDriver(t *testing.T) {
	t.Parallel()

	d, err := NewDriver("mock", nil, 0)
	require.NoError(t, err)
	assert.IsType(t, &MockDriver{}, d)

	_, err = NewDriver("gpio", nil, 0)
	assert.Error(t, err)
}
