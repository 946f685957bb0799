package alarm

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/smartblinds/internal/database"
	"github.com/edgard/smartblinds/internal/errs"
	"github.com/edgard/smartblinds/internal/schedule"
)

type memStore struct {
	mu        sync.Mutex
	nextID    int64
	actions   map[int64]database.Action
	createErr error
	listErr   error
	deleteErr error
}

func newMemStore(seed ...database.Action) *memStore {
	s := &memStore{actions: make(map[int64]database.Action)}
	for _, a := range seed {
		s.actions[a.ID] = a
		s.nextID = max(s.nextID, a.ID)
	}
	return s
}

func (s *memStore) CreateAction(_ context.Context, wd schedule.Weekday, tod schedule.TimeOfDay, open bool) (*database.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.nextID++
	a := database.Action{ID: s.nextID, Weekday: wd, Time: tod, Open: open}
	s.actions[a.ID] = a
	return &a, nil
}

func (s *memStore) ListActions(context.Context) ([]*database.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]*database.Action, 0, len(s.actions))
	for _, a := range s.actions {
		out = append(out, &a)
	}
	return out, nil
}

func (s *memStore) DeleteAction(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return false, s.deleteErr
	}
	_, ok := s.actions[id]
	delete(s.actions, id)
	return ok, nil
}

type recordingActuator struct {
	mu    sync.Mutex
	calls []bool
	err   error
	// When block is set, Apply signals entered and then waits on block.
	block   chan struct{}
	entered chan struct{}
}

func (a *recordingActuator) Apply(ctx context.Context, open bool) error {
	if a.block != nil {
		close(a.entered)
		select {
		case <-a.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, open)
	return a.err
}

func (a *recordingActuator) Calls() []bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]bool(nil), a.calls...)
}

func startTestService(t *testing.T, store Store, act Actuator) (*Service, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(fakeNow)
	s, err := Start(context.Background(), store, act, Options{Clock: clock})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, clock
}

// currentTimer returns the armed timer of id so tests can deliver a firing
// without waiting on the clock.
func currentTimer(t *testing.T, s *Service, id int64) *armedTimer {
	t.Helper()
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()
	timer, ok := s.registry.timers[id]
	require.True(t, ok, "action %d is not armed", id)
	return timer
}

func TestStartArmsPersistedActions(t *testing.T) {
	t.Parallel()

	store := newMemStore(
		database.Action{ID: 3, Weekday: schedule.Tuesday, Time: schedule.TimeOfDay{Hour: 8}, Open: true},
		database.Action{ID: 7, Weekday: schedule.Monday, Time: schedule.TimeOfDay{Hour: 11}, Open: false},
	)
	s, _ := startTestService(t, store, &recordingActuator{})

	assert.Equal(t, 2, s.Armed())
	assert.Equal(t, []int64{3, 7}, s.ArmedIDs())

	next, ok := s.registry.NextRun(3)
	require.True(t, ok)
	assert.Equal(t, time.Date(2030, time.January, 8, 8, 0, 0, 0, time.UTC), next)

	// Monday 11:00 has already passed at Monday 12:00.
	next, ok = s.registry.NextRun(7)
	require.True(t, ok)
	assert.Equal(t, time.Date(2030, time.January, 14, 11, 0, 0, 0, time.UTC), next)
}

func TestStartFailsWhenStoreUnavailable(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.listErr = errs.NewStoreQueryError("disk gone", nil)

	s, err := Start(context.Background(), store, &recordingActuator{}, Options{Clock: clockwork.NewFakeClockAt(fakeNow)})
	require.Error(t, err)
	assert.Nil(t, s)
	assert.Equal(t, errs.CodeStoreConnect, errs.Code(err))
}

func TestStartFailsOnCorruptRow(t *testing.T) {
	t.Parallel()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "actions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })

	_, err = db.Exec(`INSERT INTO actions (day, time, open) VALUES (?, ?, ?)`, 12, "08:00:00", true)
	require.NoError(t, err)

	_, err = Start(context.Background(), database.NewStore(db, nil), &recordingActuator{},
		Options{Clock: clockwork.NewFakeClockAt(fakeNow)})
	require.Error(t, err)
	assert.Equal(t, errs.CodeStoreConnect, errs.Code(err))
	assert.True(t, errs.IsStoreQuery(err))
}

func TestCreateAndDeleteAction(t *testing.T) {
	t.Parallel()

	s, _ := startTestService(t, newMemStore(), &recordingActuator{})
	ctx := context.Background()

	action, err := s.CreateAction(ctx, schedule.Wednesday, schedule.TimeOfDay{Hour: 19, Minute: 30, Second: 9}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Armed())

	next, ok := s.registry.NextRun(action.ID)
	require.True(t, ok)
	assert.Equal(t, time.Date(2030, time.January, 9, 19, 30, 9, 0, time.UTC), next)

	removed, err := s.DeleteAction(ctx, action.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Zero(t, s.Armed())

	removed, err = s.DeleteAction(ctx, action.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestCreateActionStoreFailureArmsNothing(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.createErr = errs.NewStoreQueryError("insert failed", nil)
	s, _ := startTestService(t, store, &recordingActuator{})

	_, err := s.CreateAction(context.Background(), schedule.Friday, schedule.TimeOfDay{Hour: 6}, true)
	require.Error(t, err)
	assert.True(t, errs.IsStoreQuery(err))
	assert.Zero(t, s.Armed())
}

func TestDeleteActionStoreFailureKeepsTimer(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	s, _ := startTestService(t, store, &recordingActuator{})

	action, err := s.CreateAction(context.Background(), schedule.Friday, schedule.TimeOfDay{Hour: 6}, true)
	require.NoError(t, err)

	store.mu.Lock()
	store.deleteErr = errs.NewStoreQueryError("delete failed", nil)
	store.mu.Unlock()

	removed, err := s.DeleteAction(context.Background(), action.ID)
	require.Error(t, err)
	assert.False(t, removed)
	assert.True(t, s.registry.Has(action.ID))
}

func TestDeleteActionWithoutTimerIsInconsistent(t *testing.T) {
	t.Parallel()

	s, _ := startTestService(t, newMemStore(), &recordingActuator{})

	action, err := s.CreateAction(context.Background(), schedule.Sunday, schedule.TimeOfDay{Hour: 10}, false)
	require.NoError(t, err)
	require.True(t, s.registry.Cancel(action.ID))

	removed, err := s.DeleteAction(context.Background(), action.ID)
	assert.True(t, removed)
	require.Error(t, err)
	assert.True(t, errs.IsInconsistency(err))
}

func TestConcurrentCreateAndDelete(t *testing.T) {
	t.Parallel()

	const creates, deletes = 24, 9
	seed := make([]database.Action, 0, deletes)
	for i := range deletes {
		seed = append(seed, database.Action{
			ID:      int64(i + 1),
			Weekday: schedule.Weekday(i % 7),
			Time:    schedule.TimeOfDay{Hour: 20, Minute: i},
			Open:    true,
		})
	}
	s, _ := startTestService(t, newMemStore(seed...), &recordingActuator{})
	require.Equal(t, deletes, s.Armed())
	ctx := context.Background()

	// Creates and deletes are released together so they interleave.
	release := make(chan struct{})
	created := make(chan int64, creates)
	var wg sync.WaitGroup
	for i := range creates {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-release
			tod := schedule.TimeOfDay{Hour: i % 24, Minute: i}
			a, err := s.CreateAction(ctx, schedule.Weekday(i%7), tod, i%2 == 0)
			if assert.NoError(t, err) {
				created <- a.ID
			}
		}()
	}
	for _, a := range seed {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-release
			removed, err := s.DeleteAction(ctx, a.ID)
			assert.NoError(t, err)
			assert.True(t, removed)
		}()
	}
	close(release)
	wg.Wait()
	close(created)

	var ids []int64
	for id := range created {
		ids = append(ids, id)
	}
	assert.Equal(t, creates, s.Armed())
	assert.ElementsMatch(t, ids, s.ArmedIDs())
	for _, a := range seed {
		assert.False(t, s.registry.Has(a.ID), "deleted action %d still armed", a.ID)
	}

	report, err := s.Audit(ctx)
	require.NoError(t, err)
	assert.True(t, report.Consistent())
}

func TestCreateActionArmFailureRollsBack(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	s, _ := startTestService(t, store, &recordingActuator{})
	require.NoError(t, s.registry.Close())

	_, err := s.CreateAction(context.Background(), schedule.Friday, schedule.TimeOfDay{Hour: 6}, true)
	require.Error(t, err)
	assert.True(t, errs.IsScheduling(err))

	store.mu.Lock()
	assert.Empty(t, store.actions, "persisted action must be deleted again")
	store.mu.Unlock()

	select {
	case err := <-s.Err():
		t.Fatalf("unexpected fatal error: %v", err)
	default:
	}
}

func TestCreateActionFailedRollbackIsFatal(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.deleteErr = errs.NewStoreQueryError("delete failed", nil)
	s, _ := startTestService(t, store, &recordingActuator{})
	require.NoError(t, s.registry.Close())

	_, err := s.CreateAction(context.Background(), schedule.Friday, schedule.TimeOfDay{Hour: 6}, true)
	require.Error(t, err)
	assert.True(t, errs.IsScheduling(err))

	store.mu.Lock()
	assert.Len(t, store.actions, 1)
	store.mu.Unlock()

	select {
	case err := <-s.Err():
		assert.True(t, errs.IsInconsistency(err), "got %v", err)
	default:
		t.Fatal("expected a fatal inconsistency error")
	}
}

func TestRearmFailureIsFatal(t *testing.T) {
	t.Parallel()

	act := &recordingActuator{}
	s, _ := startTestService(t, newMemStore(), act)

	action, err := s.CreateAction(context.Background(), schedule.Thursday, schedule.TimeOfDay{Hour: 7}, true)
	require.NoError(t, err)
	timer := currentTimer(t, s, action.ID)

	// An engine running a year ahead rejects next week's instant as past.
	ahead, err := gocron.NewScheduler(gocron.WithClock(clockwork.NewFakeClockAt(fakeNow.AddDate(1, 0, 0))))
	require.NoError(t, err)
	ahead.Start()
	s.registry.mu.Lock()
	engine := s.registry.sched
	s.registry.sched = ahead
	s.registry.mu.Unlock()
	require.NoError(t, engine.Shutdown())

	s.registry.dispatch(timer.handle, timer.fire)

	assert.Equal(t, []bool{true}, act.Calls())
	select {
	case err := <-s.Err():
		assert.True(t, errs.IsScheduling(err), "got %v", err)
	default:
		t.Fatal("expected a fatal scheduling error")
	}
	assert.Zero(t, s.Armed())
	assert.False(t, s.registry.Has(action.ID))
}

func TestFiringAppliesTargetAndRearmsNextWeek(t *testing.T) {
	t.Parallel()

	act := &recordingActuator{}
	s, _ := startTestService(t, newMemStore(), act)

	action, err := s.CreateAction(context.Background(), schedule.Thursday, schedule.TimeOfDay{Hour: 7, Minute: 15}, true)
	require.NoError(t, err)

	timer := currentTimer(t, s, action.ID)
	s.registry.dispatch(timer.handle, timer.fire)

	assert.Equal(t, []bool{true}, act.Calls())
	next, ok := s.registry.NextRun(action.ID)
	require.True(t, ok)
	assert.Equal(t, timer.handle.When.AddDate(0, 0, 7), next)
	assert.Equal(t, 1, s.Armed())
}

func TestLateFiringRearmsFromNow(t *testing.T) {
	t.Parallel()

	act := &recordingActuator{}
	s, clock := startTestService(t, newMemStore(), act)

	action, err := s.CreateAction(context.Background(), schedule.Tuesday, schedule.TimeOfDay{Hour: 8}, false)
	require.NoError(t, err)
	timer := currentTimer(t, s, action.ID)

	// Wake up ten days late, on a Thursday.
	clock.Advance(10 * 24 * time.Hour)
	s.registry.dispatch(timer.handle, timer.fire)

	next, ok := s.registry.NextRun(action.ID)
	require.True(t, ok)
	assert.Equal(t, time.Date(2030, time.January, 22, 8, 0, 0, 0, time.UTC), next)
	assert.True(t, next.After(clock.Now()))
}

func TestActuatorFailureStillRearms(t *testing.T) {
	t.Parallel()

	act := &recordingActuator{err: errors.New("motor stalled")}
	s, _ := startTestService(t, newMemStore(), act)

	action, err := s.CreateAction(context.Background(), schedule.Saturday, schedule.TimeOfDay{Hour: 9}, true)
	require.NoError(t, err)

	timer := currentTimer(t, s, action.ID)
	s.registry.dispatch(timer.handle, timer.fire)

	assert.Len(t, act.Calls(), 1)
	next, ok := s.registry.NextRun(action.ID)
	require.True(t, ok)
	assert.Equal(t, timer.handle.When.AddDate(0, 0, 7), next)

	select {
	case err := <-s.Err():
		t.Fatalf("unexpected fatal error: %v", err)
	default:
	}
}

func TestStaleFiringAfterDeleteDoesNothing(t *testing.T) {
	t.Parallel()

	act := &recordingActuator{}
	s, _ := startTestService(t, newMemStore(), act)

	action, err := s.CreateAction(context.Background(), schedule.Monday, schedule.TimeOfDay{Hour: 18}, true)
	require.NoError(t, err)
	timer := currentTimer(t, s, action.ID)

	removed, err := s.DeleteAction(context.Background(), action.ID)
	require.NoError(t, err)
	require.True(t, removed)

	s.registry.dispatch(timer.handle, timer.fire)

	assert.Empty(t, act.Calls())
	assert.Zero(t, s.Armed())
}

func TestDeleteDuringFiringPreventsRearm(t *testing.T) {
	t.Parallel()

	act := &recordingActuator{block: make(chan struct{}), entered: make(chan struct{})}
	s, _ := startTestService(t, newMemStore(), act)

	action, err := s.CreateAction(context.Background(), schedule.Monday, schedule.TimeOfDay{Hour: 18}, true)
	require.NoError(t, err)
	timer := currentTimer(t, s, action.ID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.registry.dispatch(timer.handle, timer.fire)
	}()

	// The firing is parked inside the actuator and holds no service lock.
	<-act.entered
	removed, err := s.DeleteAction(context.Background(), action.ID)
	require.NoError(t, err)
	require.True(t, removed)

	close(act.block)
	<-done

	assert.Equal(t, []bool{true}, act.Calls())
	assert.False(t, s.registry.Has(action.ID))
	assert.Zero(t, s.Armed())
}

func TestListActionsReportsNextRun(t *testing.T) {
	t.Parallel()

	s, _ := startTestService(t, newMemStore(), &recordingActuator{})

	action, err := s.CreateAction(context.Background(), schedule.Sunday, schedule.TimeOfDay{Hour: 21}, false)
	require.NoError(t, err)

	listed, err := s.ListActions(context.Background())
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, action.ID, listed[0].ID)
	assert.Equal(t, time.Date(2030, time.January, 13, 21, 0, 0, 0, time.UTC), listed[0].NextRun)
}

func TestAuditDetectsDrift(t *testing.T) {
	t.Parallel()

	s, _ := startTestService(t, newMemStore(), &recordingActuator{})
	ctx := context.Background()

	a, err := s.CreateAction(ctx, schedule.Monday, schedule.TimeOfDay{Hour: 20}, true)
	require.NoError(t, err)

	report, err := s.Audit(ctx)
	require.NoError(t, err)
	assert.True(t, report.Consistent())

	require.True(t, s.registry.Cancel(a.ID))
	_, err = s.registry.Register(99, fakeNow.Add(time.Hour), noopFire)
	require.NoError(t, err)

	report, err = s.Audit(ctx)
	require.NoError(t, err)
	assert.False(t, report.Consistent())
	assert.Equal(t, []int64{a.ID}, report.Unarmed)
	assert.Equal(t, []int64{99}, report.Orphaned)
}

func TestServiceWithSQLiteStore(t *testing.T) {
	t.Parallel()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "actions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })
	store := database.NewStore(db, nil)
	ctx := context.Background()

	s, _ := startTestService(t, store, &recordingActuator{})
	a, err := s.CreateAction(ctx, schedule.Friday, schedule.TimeOfDay{Hour: 6, Minute: 45}, true)
	require.NoError(t, err)

	_, err = s.CreateAction(ctx, schedule.Friday, schedule.TimeOfDay{Hour: 6, Minute: 45}, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrConflict)
	assert.Equal(t, 1, s.Armed())
	require.NoError(t, s.Close())

	// A restart re-arms what was persisted.
	restarted, _ := startTestService(t, store, &recordingActuator{})
	assert.Equal(t, []int64{a.ID}, restarted.ArmedIDs())
}
