package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/IshaanNene/StockGoat/internal/events"
	"github.com/IshaanNene/StockGoat/internal/extractor"
	"github.com/IshaanNene/StockGoat/internal/observability"
	"github.com/IshaanNene/StockGoat/internal/pipeline"
	"github.com/IshaanNene/StockGoat/internal/reconcile"
	"github.com/IshaanNene/StockGoat/internal/storage"
	"github.com/IshaanNene/StockGoat/internal/types"
)

// State is the lifecycle state of the most recent run.
type State int32

const (
	StateIdle      State = 0
	StateRunning   State = 1
	StateCompleted State = 2
	StateFailed    State = 3
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Source resolves distributor names to extractors. *extractor.Catalog satisfies it.
type Source interface {
	Names() []string
	Extractor(name string) (extractor.Extractor, error)
}

// Reconciler applies one distributor's records. *reconcile.Engine satisfies it.
type Reconciler interface {
	Apply(ctx context.Context, distributor string, records []*types.CanonicalProduct) (reconcile.Result, error)
}

// Engine is the run orchestrator. At most one run is active at a time; runs execute
// on a background goroutine and report through the event sink and Status.
type Engine struct {
	source     Source
	reconciler Reconciler
	pipeline   *pipeline.Pipeline
	store      storage.Store
	sink       events.Sink
	metrics    *observability.Metrics
	logger     *slog.Logger
	now        func() time.Time

	state  atomic.Int32
	mu     sync.RWMutex
	status types.RunStatus

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithSink sets the event sink. The default discards events.
func WithSink(sink events.Sink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithPipeline replaces the record cleaning pipeline run before reconciliation.
func WithPipeline(p *pipeline.Pipeline) Option {
	return func(e *Engine) { e.pipeline = p }
}

// WithMetrics records run metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an orchestrator.
func New(source Source, reconciler Reconciler, store storage.Store, logger *slog.Logger, opts ...Option) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		source:     source,
		reconciler: reconciler,
		pipeline:   pipeline.Default(logger),
		store:      store,
		sink:       events.Discard,
		logger:     logger.With("component", "engine"),
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type job struct {
	name string
	ex   extractor.Extractor
}

// Start begins a run over the named distributors, or every enabled distributor when
// names is empty. It returns the run ID immediately. ErrRunInProgress is returned,
// with no state change, while another run is active.
func (e *Engine) Start(names []string) (string, error) {
	prev, ok := e.acquire()
	if !ok {
		e.metrics.RunRequested(false)
		return "", types.ErrRunInProgress
	}

	if len(names) == 0 {
		names = e.source.Names()
	}

	jobs := make([]job, 0, len(names))
	for _, name := range names {
		ex, err := e.source.Extractor(name)
		if err != nil {
			e.state.Store(int32(prev))
			e.metrics.RunRequested(false)
			return "", err
		}
		jobs = append(jobs, job{name: name, ex: ex})
	}

	runID := uuid.NewString()
	start := e.now()

	e.mu.Lock()
	e.status = types.RunStatus{
		Running:   true,
		RunID:     runID,
		StartTime: &start,
	}
	e.mu.Unlock()

	e.metrics.RunRequested(true)
	e.metrics.SetRunning(true)
	e.logger.Info("run starting", "run_id", runID, "distributors", names)
	e.sink.Emit(events.ScrapingProgress, e.Status())

	e.wg.Add(1)
	go e.run(runID, jobs)

	return runID, nil
}

// acquire moves the engine into StateRunning unless it is already there and
// returns the state it replaced.
func (e *Engine) acquire() (State, bool) {
	for {
		cur := e.state.Load()
		if State(cur) == StateRunning {
			return StateRunning, false
		}
		if e.state.CompareAndSwap(cur, int32(StateRunning)) {
			return State(cur), true
		}
	}
}

func (e *Engine) run(runID string, jobs []job) {
	final := StateFailed
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("run crashed", "run_id", runID, "panic", r)
			e.mu.Lock()
			e.status.Error = fmt.Sprintf("run crashed: %v", r)
			e.mu.Unlock()
		}

		end := e.now()
		e.mu.Lock()
		e.status.Running = false
		e.status.EndTime = &end
		e.mu.Unlock()

		// The gauge is cleared before the state is released so a run started right
		// after cannot have its gauge overwritten.
		e.metrics.SetRunning(false)
		e.state.Store(int32(final))
	}()

	for i, j := range jobs {
		e.mu.Lock()
		e.status.CurrentDistributor = j.name
		e.status.Progress = i * 100 / len(jobs)
		e.mu.Unlock()
		e.sink.Emit(events.ScrapingProgress, e.Status())

		e.runDistributor(runID, j)
	}

	e.mu.Lock()
	e.status.Progress = 100
	e.status.CurrentDistributor = ""
	totals := events.RunTotals{
		TotalProducts: e.status.TotalProducts,
		TotalUpdated:  e.status.TotalUpdated,
		TotalNew:      e.status.TotalNew,
	}
	e.mu.Unlock()

	final = StateCompleted
	e.logger.Info("run completed",
		"run_id", runID,
		"products", totals.TotalProducts,
		"updated", totals.TotalUpdated,
		"new", totals.TotalNew,
	)
	e.sink.Emit(events.ScrapingCompleted, totals)
}

// runDistributor processes one distributor and records its RunLog. Failures are
// logged and reported; they never stop the run.
func (e *Engine) runDistributor(runID string, j job) {
	logger := e.logger.With("run_id", runID, "distributor", j.name)

	log := &types.RunLog{
		ID:          uuid.NewString(),
		RunID:       runID,
		Distributor: j.name,
		Status:      types.RunLogStarted,
		StartedAt:   e.now(),
	}
	logged := true
	if err := e.store.CreateRunLog(e.ctx, log); err != nil {
		logged = false
		logger.Error("failed to create run log", "error", err)
	}

	found, res, err := e.process(j)

	log.ProductsFound = found
	log.ProductsUpdated = res.Updated
	log.ProductsNew = res.Created
	log.Finish(e.now(), err)
	if logged {
		if uerr := e.store.UpdateRunLog(e.ctx, log); uerr != nil {
			logger.Error("failed to update run log", "error", uerr)
		}
	}
	e.metrics.DistributorFinished(j.name, string(log.Status), log.Duration)

	e.mu.Lock()
	e.status.TotalProducts += found
	e.status.CompletedProducts += res.Created + res.Updated + res.Unchanged
	e.status.TotalUpdated += res.Updated
	e.status.TotalNew += res.Created
	if err != nil {
		e.status.Error = err.Error()
	}
	e.mu.Unlock()

	if err != nil {
		logger.Error("distributor failed", "error", err, "duration", log.Duration)
		e.sink.Emit(events.ScrapingError, events.DistributorFailure{Distributor: j.name, Error: err.Error()})
		return
	}

	logger.Info("distributor completed",
		"found", found,
		"new", res.Created,
		"updated", res.Updated,
		"duration", log.Duration,
	)
	e.sink.Emit(events.DistributorCompleted, events.DistributorResult{
		Distributor:     j.name,
		ProductsFound:   found,
		ProductsUpdated: res.Updated,
		ProductsNew:     res.Created,
	})
}

// process extracts and reconciles one distributor. Every failure, including a
// panic in reconciliation, comes back as a *types.DistributorRunError.
func (e *Engine) process(j job) (found int, res reconcile.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &types.DistributorRunError{Distributor: j.name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	report, err := extractor.Run(e.ctx, j.ex, e.logger)
	if err != nil {
		return 0, reconcile.Result{}, err
	}
	found = len(report.Products)
	e.metrics.Extraction(j.name, found, len(report.Failures))

	records, dropped := e.pipeline.ProcessAll(report.Products)
	if dropped > 0 {
		e.logger.Info("records dropped before reconciliation", "distributor", j.name, "dropped", dropped)
	}

	res, err = e.reconciler.Apply(e.ctx, j.name, records)
	if err != nil {
		return found, reconcile.Result{}, &types.DistributorRunError{Distributor: j.name, Err: err}
	}
	return found, res, nil
}

// Status returns a snapshot of the current run state.
func (e *Engine) Status() types.RunStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := e.status
	if s.StartTime != nil {
		t := *s.StartTime
		s.StartTime = &t
	}
	if s.EndTime != nil {
		t := *s.EndTime
		s.EndTime = &t
	}
	return s
}

// State returns the lifecycle state of the latest run.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Running reports whether a run is active.
func (e *Engine) Running() bool {
	return e.State() == StateRunning
}

// Wait blocks until the active run, if any, has finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Close cancels any active run and waits for it to stop.
func (e *Engine) Close() {
	e.cancel()
	e.wg.Wait()
}
