// Package scheduler is the daemon control loop: it polls the store on a
// fixed interval, evaluates which enabled targets are due, dispatches them
// to a bounded worker pool, and funnels every outcome through a single
// persistence goroutine.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kebairia/dbshield/internal/config"
	"github.com/kebairia/dbshield/internal/executor"
	"github.com/kebairia/dbshield/internal/logger"
	"github.com/kebairia/dbshield/internal/schedule"
)

// State is the daemon's coarse lifecycle state.
type State int32

const (
	StateIdle State = iota
	StatePolling
	StateDispatching
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateDispatching:
		return "dispatching"
	case StateShuttingDown:
		return "shutting_down"
	}
	return "unknown"
}

// JobRunner executes one backup job. Implemented by *executor.Executor;
// tests substitute fakes.
type JobRunner interface {
	Execute(ctx context.Context, t config.Target) executor.Outcome
}

// ErrTerminated marks an execution that was forcibly ended on shutdown
// after the grace period.
var ErrTerminated = errors.New("terminated on shutdown")

// persistAttempts bounds the store-write retry for one outcome. Exhausting
// it logs an integrity warning for that tick; the loop keeps going.
const persistAttempts = 3

// result pairs an outcome with the target it belongs to.
type result struct {
	name    string
	at      time.Time
	outcome executor.Outcome
}

// cachedSpec memoizes the parse of one target's schedule so a malformed
// expression is reported once, not on every tick. A nil spec means the
// target is never due until the expression is corrected.
type cachedSpec struct {
	expr string
	spec *schedule.Spec
}

// Option overrides a Daemon default.
type Option func(*Daemon)

// WithLogger overrides the logger.
func WithLogger(log logger.Logger) Option {
	return func(d *Daemon) { d.log = log }
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(d *Daemon) { d.now = now }
}

// Daemon drives scheduled backups. A Daemon instance runs one lifecycle:
// either Run (the long-lived loop) or RunAll (one-shot), not both.
type Daemon struct {
	store  *config.Store
	runner JobRunner
	log    logger.Logger
	now    func() time.Time

	poll  time.Duration
	grace time.Duration

	mu       sync.Mutex
	inflight map[string]bool
	specs    map[string]cachedSpec

	sem     chan struct{}
	results chan result
	state   atomic.Int32
	wg      sync.WaitGroup
}

// New builds a Daemon from the store's daemon settings.
func New(store *config.Store, runner JobRunner, opts ...Option) *Daemon {
	dc := store.Daemon()
	d := &Daemon{
		store:    store,
		runner:   runner,
		log:      logger.Global(),
		now:      time.Now,
		poll:     dc.PollInterval,
		grace:    dc.ShutdownGrace,
		inflight: make(map[string]bool),
		specs:    make(map[string]cachedSpec),
		sem:      make(chan struct{}, dc.MaxConcurrent),
		results:  make(chan result, dc.MaxConcurrent),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// State returns the daemon's current lifecycle state.
func (d *Daemon) State() State {
	return State(d.state.Load())
}

// Run is the daemon loop. It polls on the configured interval until ctx is
// canceled, then stops accepting dispatches, gives in-flight executions the
// grace period, persists their outcomes, and returns.
func (d *Daemon) Run(ctx context.Context) error {
	d.state.Store(int32(StateIdle))
	d.log.Info("daemon started",
		"poll_interval", d.poll.String(),
		"max_concurrent", cap(d.sem),
	)

	persistDone := make(chan struct{})
	go d.persistLoop(persistDone)

	ticker := time.NewTicker(d.poll)
	defer ticker.Stop()

	// First poll happens immediately; never-run targets are due at start.
	d.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			d.state.Store(int32(StateShuttingDown))
			d.log.Info("daemon shutting down", "grace", d.grace.String())
			d.wg.Wait()
			close(d.results)
			<-persistDone
			d.log.Info("daemon stopped")
			return nil
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

// RunAll executes every enabled target immediately, bypassing the due
// check. Dedup and the retry policy still apply. It blocks until every
// outcome is persisted.
func (d *Daemon) RunAll(ctx context.Context) error {
	persistDone := make(chan struct{})
	go d.persistLoop(persistDone)

	for _, t := range d.store.Targets() {
		if !t.Enabled {
			continue
		}
		d.dispatch(ctx, t)
	}

	d.wg.Wait()
	close(d.results)
	<-persistDone
	return nil
}

// tick runs one poll cycle: reload the store, evaluate due targets, and
// dispatch them.
func (d *Daemon) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	d.state.Store(int32(StatePolling))

	// Re-read the file so externally added, edited, or toggled targets
	// take effect on this tick.
	if err := d.store.Reload(); err != nil {
		d.log.Error("config reload failed, keeping previous targets", "error", err.Error())
	}

	now := d.now()
	dispatched := 0
	for _, t := range d.store.Targets() {
		if !t.Enabled {
			continue
		}
		spec := d.specFor(t)
		if spec == nil {
			continue
		}
		if !spec.IsDue(now, t.LastRunAt) {
			continue
		}
		if d.dispatch(ctx, t) {
			dispatched++
		}
	}

	if dispatched > 0 {
		d.state.CompareAndSwap(int32(StatePolling), int32(StateDispatching))
	} else {
		d.state.CompareAndSwap(int32(StatePolling), int32(StateIdle))
	}
}

// specFor returns the parsed schedule for a target, caching by expression.
// Malformed expressions are logged once and make the target never-due.
func (d *Daemon) specFor(t config.Target) *schedule.Spec {
	d.mu.Lock()
	defer d.mu.Unlock()
	cached, ok := d.specs[t.Name]
	if ok && cached.expr == t.Schedule {
		return cached.spec
	}
	spec, err := schedule.Parse(t.Schedule)
	if err != nil {
		d.log.Error("invalid schedule, target will not run until corrected",
			"target", t.Name,
			"schedule", t.Schedule,
			"error", err.Error(),
		)
		spec = nil
	}
	d.specs[t.Name] = cachedSpec{expr: t.Schedule, spec: spec}
	return spec
}

// dispatch hands one target to the worker pool. Returns false when the
// target already has an execution in flight; per-target execution is
// strictly serial.
func (d *Daemon) dispatch(ctx context.Context, t config.Target) bool {
	d.mu.Lock()
	if d.inflight[t.Name] {
		d.mu.Unlock()
		return false
	}
	d.inflight[t.Name] = true
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.clearInflight(t.Name)

		// Queue for a concurrency slot. A stop signal cancels dispatches
		// that have not started; no outcome is recorded for those.
		select {
		case <-ctx.Done():
			d.log.Debug("pending dispatch canceled", "target", t.Name)
			return
		case d.sem <- struct{}{}:
		}
		defer func() { <-d.sem }()

		execCtx, cancel := d.execContext(ctx)
		defer cancel()

		out := d.runner.Execute(execCtx, t)
		if ctx.Err() != nil && execCtx.Err() != nil &&
			(out.Kind == executor.OutcomeFailedFatal || out.Kind == executor.OutcomeFailedRetryable) {
			out = executor.Outcome{
				Kind:     executor.OutcomeFailedFatal,
				Err:      ErrTerminated,
				Attempts: out.Attempts,
			}
		}
		d.results <- result{name: t.Name, at: d.now(), outcome: out}
	}()
	return true
}

// execContext detaches the execution from the stop signal for the grace
// period: a shutdown lets in-flight dumps finish, then cancels them.
func (d *Daemon) execContext(parent context.Context) (context.Context, context.CancelFunc) {
	execCtx, cancel := context.WithCancel(context.WithoutCancel(parent))
	stop := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			timer := time.NewTimer(d.grace)
			defer timer.Stop()
			select {
			case <-timer.C:
				cancel()
			case <-stop:
			}
		case <-stop:
		}
	}()
	return execCtx, func() {
		close(stop)
		cancel()
	}
}

func (d *Daemon) clearInflight(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.inflight, name)
	if len(d.inflight) == 0 {
		d.state.CompareAndSwap(int32(StateDispatching), int32(StateIdle))
	}
}

// persistLoop is the single writer for execution outcomes. Store write
// failures are retried a few times, then logged as an integrity warning
// for that tick only; the daemon never crashes over them.
func (d *Daemon) persistLoop(done chan<- struct{}) {
	defer close(done)
	for res := range d.results {
		d.persist(res)
	}
}

func (d *Daemon) persist(res result) {
	fp := ""
	if res.outcome.Kind == executor.OutcomeSucceeded {
		fp = string(res.outcome.Fingerprint)
	}

	var err error
	for i := 0; i < persistAttempts; i++ {
		err = d.store.RecordOutcome(res.name, res.at, fp)
		if err == nil || errors.Is(err, config.ErrNotFound) {
			break
		}
		time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
	}
	switch {
	case errors.Is(err, config.ErrNotFound):
		// Target deleted while its execution was in flight; the result
		// is discarded rather than resurrected.
		d.log.Debug("discarding outcome for deleted target", "target", res.name)
		return
	case err != nil:
		d.log.Error("outcome persistence failed, state may lag until next run",
			"target", res.name,
			"error", err.Error(),
		)
	}

	detail := ""
	switch res.outcome.Kind {
	case executor.OutcomeSkipped:
		detail = res.outcome.Reason
	case executor.OutcomeSucceeded:
		detail = res.outcome.ArtifactPath
	case executor.OutcomeFailedRetryable, executor.OutcomeFailedFatal:
		if res.outcome.Err != nil {
			detail = res.outcome.Err.Error()
		}
	}
	d.log.Info("execution recorded",
		"target", res.name,
		"outcome", res.outcome.Kind.String(),
		"attempts", res.outcome.Attempts,
		"detail", detail,
	)
}
