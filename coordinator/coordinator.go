package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/pipeline"
	"github.com/poiesic/docpipe/storage"
)

var (
	// ErrNotTriggered is returned by Run for an event the trigger rejects.
	ErrNotTriggered = errors.New("event does not match trigger")

	// ErrStagesRequired is returned when the stage list is not exactly the
	// pipeline's four stages in order.
	ErrStagesRequired = errors.New("extraction, embeddings, indexing and summary stages required")
)

// Result describes a finished run. Payload is the last successful stage's
// output, or nil when extraction failed.
type Result struct {
	ExecutionID string
	State       State
	FailedStage core.StageName
	Payload     *core.Payload
}

// SummaryKey returns the key of the summary artifact of a completed run.
func (r *Result) SummaryKey() string {
	if r == nil || r.Payload == nil {
		return ""
	}
	return r.Payload.SummaryFileKey
}

// Coordinator runs the pipeline stages for one document at a time. It is
// safe for concurrent use; each Run owns its own state machine.
type Coordinator struct {
	stages []pipeline.Stage
	runs   storage.RunRepository
	cfg    *settings
	logger *slog.Logger
}

// New creates a coordinator over stages, which must be the extraction,
// embeddings, indexing and summary stages in that order. runs may be nil, in
// which case run records are not persisted.
func New(stages []pipeline.Stage, runs storage.RunRepository, opts ...Option) (*Coordinator, error) {
	if len(stages) != len(core.Stages) {
		return nil, ErrStagesRequired
	}
	for i, s := range stages {
		if s == nil || s.Name() != core.Stages[i] {
			return nil, ErrStagesRequired
		}
	}
	cfg := defaultSettings()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	return &Coordinator{
		stages: stages,
		runs:   runs,
		cfg:    cfg,
		logger: cfg.logger.With("component", "coordinator"),
	}, nil
}

// Trigger returns the trigger events are matched against.
func (c *Coordinator) Trigger() Trigger {
	return c.cfg.trigger
}

// NewExecutionID returns a fresh execution id for ev.
func (c *Coordinator) NewExecutionID(ev Event) string {
	return c.cfg.newID(ev.Key)
}

// Run processes ev under a new execution id.
func (c *Coordinator) Run(ctx context.Context, ev Event) (*Result, error) {
	return c.RunWithID(ctx, c.NewExecutionID(ev), ev)
}

// RunWithID processes ev under executionID. The returned Result is non-nil
// whenever the run started; on failure its State is StateFailed and the
// error is the failing stage's error.
func (c *Coordinator) RunWithID(ctx context.Context, executionID string, ev Event) (*Result, error) {
	if !c.cfg.trigger.Matches(ev) {
		return nil, fmt.Errorf("%w: %w: %s", core.ErrValidation, ErrNotTriggered, ev)
	}
	logger := c.logger.With("execution_id", executionID, "key", ev.Key)

	r := &run{
		c:       c,
		machine: NewMachine(),
		record: &core.RunRecord{
			ExecutionID: executionID,
			Bucket:      ev.Bucket,
			Key:         ev.Key,
			StartedAt:   c.cfg.now(),
		},
	}
	r.record.State = string(StateIdle)
	if id, err := core.DocumentIDFromKey(ev.Key); err == nil {
		r.record.DocumentID = id
	}
	if err := r.advance(ctx, StateTriggered); err != nil {
		return nil, err
	}
	logger.Info("run started")

	payload := core.NewPayload(ev.Bucket, ev.Key)
	var last *core.Payload
	for _, stage := range c.stages {
		if err := r.advance(ctx, StateFor(stage.Name())); err != nil {
			r.abort(ctx, stage.Name(), err, logger)
			return r.result(last), err
		}

		out, err := c.runStage(ctx, r.record, stage, payload, logger)
		if err != nil {
			r.abort(ctx, stage.Name(), err, logger)
			return r.result(last), err
		}
		if r.record.DocumentID == "" {
			r.record.DocumentID = out.DocumentID
		}
		payload = out
		last = out
	}

	if err := r.advance(ctx, StateCompleted); err != nil {
		r.abort(ctx, c.stages[len(c.stages)-1].Name(), err, logger)
		return r.result(last), err
	}
	logger.Info("run completed", "document_id", r.record.DocumentID, "summary", last.SummaryFileKey)
	return r.result(last), nil
}

func (c *Coordinator) runStage(ctx context.Context, record *core.RunRecord, stage pipeline.Stage, in *core.Payload, logger *slog.Logger) (*core.Payload, error) {
	var out *core.Payload
	err := RetryWithBackoff(ctx, func() error {
		record.AddAttempt(stage.Name())
		if n := record.AttemptsFor(stage.Name()); n > 1 {
			logger.Warn("retrying stage", "stage", stage.Name(), "attempt", n)
		}
		var err error
		out, err = stage.Run(ctx, in)
		return err
	}, c.cfg.maxAttempts, c.cfg.retryDelay, core.IsRetryable)
	return out, err
}

// run is the mutable state of one execution.
type run struct {
	c       *Coordinator
	machine *Machine
	record  *core.RunRecord
}

// advance persists the move to to before committing it, so a record that
// cannot be saved leaves the machine where it was.
func (r *run) advance(ctx context.Context, to State) error {
	if !CanTransition(r.machine.State(), to) {
		return r.machine.Transition(to)
	}
	if err := r.save(ctx, to); err != nil {
		return err
	}
	return r.machine.Transition(to)
}

// abort moves the run to failed at stage and records cause. The record is
// saved on a best-effort basis.
func (r *run) abort(ctx context.Context, stage core.StageName, cause error, logger *slog.Logger) {
	logger.Error("run failed", "stage", stage, "err", cause)
	if err := r.machine.Fail(stage); err != nil {
		logger.Warn("failed to record failure", "err", err)
		return
	}
	r.record.FailedStage = stage
	r.record.Error = cause.Error()
	if err := r.save(ctx, StateFailed); err != nil {
		logger.Warn("failed to record failure", "err", err)
	}
}

func (r *run) save(ctx context.Context, state State) error {
	prevState, prevTransitions := r.record.State, len(r.record.Transitions)
	now := r.c.cfg.now()
	r.record.State = string(state)
	r.record.UpdatedAt = now
	r.record.Transitions = append(r.record.Transitions, core.Transition{State: r.record.State, At: now})
	if r.c.runs == nil {
		return nil
	}
	if err := r.c.runs.SaveRun(ctx, r.record); err != nil {
		r.record.State = prevState
		r.record.Transitions = r.record.Transitions[:prevTransitions]
		return fmt.Errorf("saving run %s: %w", r.record.ExecutionID, err)
	}
	return nil
}

func (r *run) result(last *core.Payload) *Result {
	return &Result{
		ExecutionID: r.record.ExecutionID,
		State:       r.machine.State(),
		FailedStage: r.machine.FailedStage(),
		Payload:     last,
	}
}
