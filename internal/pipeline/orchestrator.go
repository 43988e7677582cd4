package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"cdrlens/domain/analysis"
	"cdrlens/domain/carrier"
	"cdrlens/domain/core"
	"cdrlens/internal/logx"
)

// EventType tags progress stream events.
type EventType string

const (
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
)

// Event is one update on a run's progress stream. Completed events carry the
// full result payload; progress events carry only message and percent.
type Event struct {
	RunID     core.RunID        `json:"run_id"`
	Type      EventType         `json:"type"`
	Message   string            `json:"message"`
	Percent   int               `json:"percent"`
	Result    *analysis.Result  `json:"result,omitempty"`
	Insights  []string          `json:"insights,omitempty"`
	Artifacts map[string]string `json:"artifacts,omitempty"`
	Err       string            `json:"error,omitempty"`
}

// Renderer turns aggregates into visualization artifacts on disk, returning
// artifact key -> file path. A renderer failure omits its key; it never fails
// the run.
type Renderer interface {
	Render(ctx context.Context, p *carrier.Profile, agg *analysis.Aggregates, outDir string) map[string]string
}

// Reporter assembles the final report files from the run's outputs.
type Reporter interface {
	Build(p *carrier.Profile, source string, res *analysis.Result, insights []string, artifacts map[string]string, outDir string) (map[string]string, error)
}

// RunRecord is the persisted summary of a finished run.
type RunRecord struct {
	ID         core.RunID
	Carrier    carrier.Key
	Source     string
	State      analysis.RunState
	StartedAt  time.Time
	FinishedAt time.Time
	Error      string
	Insights   []string
	Artifacts  map[string]string
}

// Recorder persists run records. Recording failures are logged, not fatal.
type Recorder interface {
	Record(ctx context.Context, rec RunRecord) error
}

// Run is one background analysis execution. Events are delivered on a
// buffered channel closed by the worker when the run reaches a terminal
// state or is abandoned.
type Run struct {
	ID      core.RunID
	Carrier carrier.Key
	Source  string

	events    chan Event
	cancel    context.CancelFunc
	abandoned atomic.Bool

	mu        sync.Mutex
	state     analysis.RunState
	startedAt time.Time
}

// Events returns the run's progress stream.
func (r *Run) Events() <-chan Event { return r.events }

// State returns the current lifecycle state.
func (r *Run) State() analysis.RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Run) setState(s analysis.RunState) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Abandon cancels the run's context and marks the run so that no further
// events, including partial results, reach the stream. The worker goroutine
// drains out on its own; abandonment never blocks.
func (r *Run) Abandon() {
	r.abandoned.Store(true)
	r.cancel()
}

// Abandoned reports whether the run was displaced by a newer one.
func (r *Run) Abandoned() bool { return r.abandoned.Load() }

// emit delivers an event unless the run was abandoned. A full buffer drops
// progress events rather than stalling the worker; terminal events block
// until delivered.
func (r *Run) emit(ev Event, terminal bool) {
	if r.abandoned.Load() {
		return
	}
	if terminal {
		r.events <- ev
		return
	}
	select {
	case r.events <- ev:
	default:
	}
}

// Orchestrator owns the single active analysis run. Starting a new run
// abandons the previous one: its context is cancelled and its remaining
// events are suppressed, so no partial output from a displaced run is ever
// observed.
type Orchestrator struct {
	locator  Locator
	renderer Renderer
	reporter Reporter
	recorder Recorder
	outDir   string
	log      *logx.Logger

	mu     sync.Mutex
	active *Run
}

// NewOrchestrator wires the pipeline collaborators. renderer, reporter,
// recorder and locator may each be nil; the corresponding stage is skipped.
func NewOrchestrator(outDir string, locator Locator, renderer Renderer, reporter Reporter, recorder Recorder, log *logx.Logger) *Orchestrator {
	if log == nil {
		log = logx.NewDefaultLogger()
	}
	return &Orchestrator{
		locator:  locator,
		renderer: renderer,
		reporter: reporter,
		recorder: recorder,
		outDir:   outDir,
		log:      log,
	}
}

// Active returns the current run, which may be terminal, or nil.
func (o *Orchestrator) Active() *Run {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

// Start validates the carrier key, displaces any in-flight run and launches
// the analysis in the background. The returned Run's event stream reports
// progress through completion or failure.
func (o *Orchestrator) Start(ctx context.Context, key carrier.Key, source string, d *Dataset) (*Run, error) {
	p, err := carrier.Lookup(key)
	if err != nil {
		return nil, err
	}
	if d == nil || d.Len() == 0 {
		return nil, core.ErrNoData
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	run := &Run{
		ID:        core.NewRunID(),
		Carrier:   key,
		Source:    source,
		events:    make(chan Event, 16),
		cancel:    cancel,
		state:     analysis.StateCreated,
		startedAt: time.Now(),
	}

	o.mu.Lock()
	if o.active != nil && !o.active.State().Terminal() {
		o.log.Info("abandoning run %s in favor of %s", o.active.ID, run.ID)
		o.active.Abandon()
	}
	o.active = run
	o.mu.Unlock()

	go o.execute(runCtx, run, p, d)
	return run, nil
}

func (o *Orchestrator) execute(ctx context.Context, run *Run, p *carrier.Profile, d *Dataset) {
	defer close(run.events)
	defer run.cancel()
	defer func() {
		if r := recover(); r != nil {
			o.finish(ctx, run, nil, nil, nil, fmt.Errorf("analysis panic: %v", r))
		}
	}()

	run.setState(analysis.StateRunning)

	engine := NewEngine(p, o.locator, o.log)
	// validate + engine steps + render + report
	total := len(engine.StepLabels()) + 3
	done := 0
	progress := func(msg string) {
		done++
		pct := done * 100 / total
		if pct > 99 {
			pct = 99
		}
		run.emit(Event{RunID: run.ID, Type: EventProgress, Message: msg, Percent: pct}, false)
	}

	run.emit(Event{RunID: run.ID, Type: EventProgress, Message: "Validating file structure...", Percent: 0}, false)
	if err := Validate(d, p); err != nil {
		o.finish(ctx, run, nil, nil, nil, err)
		return
	}
	progress("File structure validated")

	res, agg := engine.Run(ctx, d, progress)
	if ctx.Err() != nil {
		o.finish(ctx, run, nil, nil, nil, core.ErrRunAbandoned)
		return
	}

	artifacts := make(map[string]string)
	if o.renderer != nil {
		runDir := filepath.Join(o.outDir, run.ID.String())
		artifacts = o.renderer.Render(ctx, p, agg, runDir)
	}
	progress("Generating visualizations...")
	if ctx.Err() != nil {
		o.finish(ctx, run, nil, nil, nil, core.ErrRunAbandoned)
		return
	}

	insights := Synthesize(p, agg)

	if o.reporter != nil {
		runDir := filepath.Join(o.outDir, run.ID.String())
		reports, err := o.reporter.Build(p, run.Source, res, insights, artifacts, runDir)
		if err != nil {
			o.log.Warn("report build failed for run %s: %v", run.ID, err)
		} else {
			for k, v := range reports {
				artifacts[k] = v
			}
		}
	}
	progress("Compiling report...")

	o.finish(ctx, run, res, insights, artifacts, nil)
}

// finish records the run and emits its terminal event.
func (o *Orchestrator) finish(ctx context.Context, run *Run, res *analysis.Result, insights []string, artifacts map[string]string, runErr error) {
	state := analysis.StateCompleted
	errMsg := ""
	if runErr != nil {
		state = analysis.StateFailed
		errMsg = runErr.Error()
	}
	run.setState(state)

	if o.recorder != nil && !errors.Is(runErr, core.ErrRunAbandoned) {
		rec := RunRecord{
			ID:         run.ID,
			Carrier:    run.Carrier,
			Source:     run.Source,
			State:      state,
			StartedAt:  run.startedAt,
			FinishedAt: time.Now(),
			Error:      errMsg,
			Insights:   insights,
			Artifacts:  artifacts,
		}
		if err := o.recorder.Record(context.WithoutCancel(ctx), rec); err != nil {
			o.log.Warn("recording run %s failed: %v", run.ID, err)
		}
	}

	if runErr != nil {
		run.emit(Event{RunID: run.ID, Type: EventFailed, Message: errMsg, Percent: 100, Err: errMsg}, true)
		return
	}
	run.emit(Event{
		RunID:     run.ID,
		Type:      EventCompleted,
		Message:   "Analysis complete",
		Percent:   100,
		Result:    res,
		Insights:  insights,
		Artifacts: artifacts,
	}, true)
}
