// Package temporal runs the document pipeline as a Temporal workflow. Each
// stage is an activity; Temporal's retry policy replaces the coordinator's
// backoff, and validation and precondition failures are non-retryable.
package temporal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/docpipe/coordinator"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/pipeline"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

const (
	DefaultTaskQueue = "docpipe"

	// WorkflowName is the registered name of DocumentPipeline.
	WorkflowName = "DocumentPipeline"
)

// Settings tune the workflow's activity options.
type Settings struct {
	StageTimeout    time.Duration `json:"stage_timeout"`
	MaxAttempts     int32         `json:"max_attempts"`
	InitialInterval time.Duration `json:"initial_interval"`
}

// DefaultSettings returns a ten minute stage timeout and three attempts
// starting one second apart.
func DefaultSettings() Settings {
	return Settings{
		StageTimeout:    10 * time.Minute,
		MaxAttempts:     coordinator.DefaultMaxAttempts,
		InitialInterval: coordinator.DefaultRetryDelay,
	}
}

// Input starts one DocumentPipeline execution.
type Input struct {
	Event    coordinator.Event `json:"event"`
	Settings Settings          `json:"settings"`
}

// DocumentPipeline runs the four stages in order, each consuming the
// previous stage's output, and returns the summary stage's payload.
func DocumentPipeline(ctx workflow.Context, in Input) (*core.Payload, error) {
	s := in.Settings
	if s.StageTimeout <= 0 {
		s = DefaultSettings()
	}
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: s.StageTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    s.InitialInterval,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    s.MaxAttempts,
			NonRetryableErrorTypes: []string{
				string(core.KindValidation),
				string(core.KindPrecondition),
			},
		},
	})
	logger := workflow.GetLogger(ctx)

	payload := core.NewPayload(in.Event.Bucket, in.Event.Key)
	for _, activity := range []any{
		(*Activities).Extract,
		(*Activities).Embed,
		(*Activities).Index,
		(*Activities).Summarize,
	} {
		var out core.Payload
		if err := workflow.ExecuteActivity(ctx, activity, payload).Get(ctx, &out); err != nil {
			logger.Error("pipeline failed", "key", in.Event.Key, "err", err)
			return payload, err
		}
		payload = &out
	}
	logger.Info("pipeline completed", "document_id", payload.DocumentID, "summary", payload.SummaryFileKey)
	return payload, nil
}

// Activities exposes the pipeline stages as Temporal activities.
type Activities struct {
	Pipeline *pipeline.Pipeline
}

func (a *Activities) Extract(ctx context.Context, in *core.Payload) (*core.Payload, error) {
	return a.run(ctx, core.StageExtraction, in)
}

func (a *Activities) Embed(ctx context.Context, in *core.Payload) (*core.Payload, error) {
	return a.run(ctx, core.StageEmbeddings, in)
}

func (a *Activities) Index(ctx context.Context, in *core.Payload) (*core.Payload, error) {
	return a.run(ctx, core.StageIndexing, in)
}

func (a *Activities) Summarize(ctx context.Context, in *core.Payload) (*core.Payload, error) {
	return a.run(ctx, core.StageSummary, in)
}

func (a *Activities) run(ctx context.Context, name core.StageName, in *core.Payload) (*core.Payload, error) {
	stage, err := a.Pipeline.Stage(name)
	if err != nil {
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), string(core.KindValidation), err)
	}
	out, err := stage.Run(ctx, in)
	if err != nil {
		return nil, toApplicationError(err)
	}
	return out, nil
}

// toApplicationError tags stage errors with their kind so the retry policy
// can skip permanent failures.
func toApplicationError(err error) error {
	var se *core.StageError
	if !errors.As(err, &se) {
		return err
	}
	if se.Kind == core.KindCapability {
		return temporal.NewApplicationErrorWithCause(err.Error(), string(se.Kind), err)
	}
	return temporal.NewNonRetryableApplicationError(err.Error(), string(se.Kind), err)
}

// NewWorker registers the workflow and activities on taskQueue.
func NewWorker(c client.Client, taskQueue string, acts *Activities) worker.Worker {
	if taskQueue == "" {
		taskQueue = DefaultTaskQueue
	}
	w := worker.New(c, taskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(DocumentPipeline, workflow.RegisterOptions{Name: WorkflowName})
	w.RegisterActivity(acts)
	return w
}

// Starter starts DocumentPipeline executions. It implements
// coordinator.Executor.
type Starter struct {
	client    client.Client
	taskQueue string
	trigger   coordinator.Trigger
	settings  Settings
}

var _ coordinator.Executor = (*Starter)(nil)

// NewStarter creates a Starter on taskQueue.
func NewStarter(c client.Client, taskQueue string, trigger coordinator.Trigger, settings Settings) *Starter {
	if taskQueue == "" {
		taskQueue = DefaultTaskQueue
	}
	return &Starter{client: c, taskQueue: taskQueue, trigger: trigger, settings: settings}
}

// Start starts a workflow for ev and returns its workflow id.
func (s *Starter) Start(ctx context.Context, ev coordinator.Event) (string, error) {
	if !s.trigger.Matches(ev) {
		return "", fmt.Errorf("%w: %w: %s", core.ErrValidation, coordinator.ErrNotTriggered, ev)
	}
	opts := client.StartWorkflowOptions{
		ID:        coordinator.ExecutionName(ev.Key),
		TaskQueue: s.taskQueue,
	}
	run, err := s.client.ExecuteWorkflow(ctx, opts, WorkflowName, Input{Event: ev, Settings: s.settings})
	if err != nil {
		return "", fmt.Errorf("starting workflow for %s: %w", ev, err)
	}
	return run.GetID(), nil
}
