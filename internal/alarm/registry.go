package alarm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/edgard/smartblinds/internal/errs"
	"github.com/edgard/smartblinds/internal/logger"
)

// FireFunc is invoked on gocron's executor when an armed timer is due.
type FireFunc func(ctx context.Context, h Handle)

// Handle identifies one arming of a timer. Every Register or Rearm yields a
// new handle; only the latest handle of an id is current.
type Handle struct {
	ID   int64
	When time.Time
	gen  uint64
}

type armedTimer struct {
	handle Handle
	jobID  uuid.UUID
	fire   FireFunc
}

// Registry maps action ids to one-shot gocron jobs. It holds no business
// logic; recurrence is the caller rearming from inside its FireFunc.
//
// Cancel removes the id under the registry lock before touching gocron, so no
// new firing starts once it returns. A firing that already passed that check
// may still run to completion.
type Registry struct {
	mu     sync.Mutex
	sched  gocron.Scheduler
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	timers map[int64]*armedTimer
	gen    uint64
	closed bool
}

// NewRegistry creates and starts a registry whose timers run on clock.
func NewRegistry(clock clockwork.Clock, log *slog.Logger) (*Registry, error) {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	log = log.With("component", "timer_registry")

	s, err := gocron.NewScheduler(
		gocron.WithClock(clock),
		gocron.WithLogger(logger.NewGocronLogger(log)),
	)
	if err != nil {
		return nil, errs.NewSchedulingError("failed to create timer engine", err)
	}
	s.Start()

	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		sched:  s,
		logger: log,
		ctx:    ctx,
		cancel: cancel,
		timers: make(map[int64]*armedTimer),
	}, nil
}

// Register arms a timer for id that calls fire at when. An id can only have
// one timer; registering it twice is a scheduling error.
func (r *Registry) Register(id int64, when time.Time, fire FireFunc) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return Handle{}, errs.NewSchedulingError("timer registry is closed", nil)
	}
	if _, ok := r.timers[id]; ok {
		return Handle{}, errs.NewSchedulingError(fmt.Sprintf("timer already armed for action %d", id), nil)
	}

	t, err := r.schedule(id, when, fire)
	if err != nil {
		return Handle{}, err
	}
	r.timers[id] = t
	return t.handle, nil
}

// Rearm replaces the timer behind h with one due at when. It returns false,
// and does nothing, when h is no longer current because its id was canceled
// or rearmed meanwhile. On error the id is left without a timer.
func (r *Registry) Rearm(h Handle, when time.Time) (Handle, bool, error) {
	r.mu.Lock()
	cur, ok := r.timers[h.ID]
	if r.closed || !ok || cur.handle.gen != h.gen {
		r.mu.Unlock()
		return Handle{}, false, nil
	}

	next, err := r.schedule(h.ID, when, cur.fire)
	if err != nil {
		delete(r.timers, h.ID)
		r.mu.Unlock()
		r.removeJob(cur.jobID)
		return Handle{}, false, err
	}
	r.timers[h.ID] = next
	r.mu.Unlock()

	r.removeJob(cur.jobID)
	return next.handle, true, nil
}

// Cancel disarms the timer of id and reports whether one existed.
func (r *Registry) Cancel(id int64) bool {
	r.mu.Lock()
	t, ok := r.timers[id]
	if ok {
		delete(r.timers, id)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	r.removeJob(t.jobID)
	return true
}

func (r *Registry) Has(id int64) bool {
	_, ok := r.lookup(id)
	return ok
}

// NextRun returns when the timer of id is due.
func (r *Registry) NextRun(id int64) (time.Time, bool) {
	h, ok := r.lookup(id)
	return h.When, ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// IDs returns the armed ids in ascending order.
func (r *Registry) IDs() []int64 {
	r.mu.Lock()
	ids := make([]int64, 0, len(r.timers))
	for id := range r.timers {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	slices.Sort(ids)
	return ids
}

// Close discards every timer and shuts gocron down, waiting for firings in
// flight. The context handed to those firings is canceled first.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	n := len(r.timers)
	r.timers = make(map[int64]*armedTimer)
	r.mu.Unlock()

	r.cancel()
	if err := r.sched.Shutdown(); err != nil {
		return errs.NewSchedulingError("failed to shut down timer engine", err)
	}
	r.logger.Info("Timer registry closed", "released", n)
	return nil
}

// schedule must be called with r.mu held.
func (r *Registry) schedule(id int64, when time.Time, fire FireFunc) (*armedTimer, error) {
	r.gen++
	h := Handle{ID: id, When: when, gen: r.gen}
	name := fmt.Sprintf("action-%d", id)

	job, err := r.sched.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(when)),
		gocron.NewTask(func() { r.dispatch(h, fire) }),
		gocron.WithName(name),
		gocron.WithTags(name),
	)
	if err != nil {
		return nil, errs.NewSchedulingError(
			fmt.Sprintf("failed to arm timer for action %d at %s", id, when.Format(time.RFC3339)), err)
	}

	r.logger.Debug("Timer armed", "action_id", id, "when", when, "job_id", job.ID())
	return &armedTimer{handle: h, jobID: job.ID(), fire: fire}, nil
}

// dispatch runs fire unless h was canceled or superseded.
func (r *Registry) dispatch(h Handle, fire FireFunc) {
	if cur, ok := r.lookup(h.ID); !ok || cur.gen != h.gen {
		r.logger.Debug("Skipping stale timer firing", "action_id", h.ID, "when", h.When)
		return
	}
	fire(r.ctx, h)
}

func (r *Registry) lookup(id int64) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.timers[id]
	if !ok || r.closed {
		return Handle{}, false
	}
	return t.handle, true
}

func (r *Registry) removeJob(jobID uuid.UUID) {
	if err := r.sched.RemoveJob(jobID); err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
		r.logger.Warn("Failed to remove timer job", "job_id", jobID, "error", err)
	}
}
