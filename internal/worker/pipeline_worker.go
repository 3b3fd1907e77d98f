package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/storylinez/storylinez-go/internal/model"
	"github.com/storylinez/storylinez-go/internal/service"
	"github.com/storylinez/storylinez-go/pkg/apierr"
	"github.com/storylinez/storylinez-go/pkg/client"
	"github.com/storylinez/storylinez-go/pkg/pipeline"
)

// Runner executes pipeline specs. *pipeline.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, spec pipeline.Spec) (*pipeline.Result, error)
	Resume(ctx context.Context, spec pipeline.Spec, prev *pipeline.Result) (*pipeline.Result, error)
}

// RunnerFactory builds a Runner that reports stage transitions to obs.
type RunnerFactory func(obs pipeline.Observer) Runner

// Orchestrators returns a factory for orchestrators sharing one client.
func Orchestrators(c *client.Client, opts pipeline.Options) RunnerFactory {
	return func(obs pipeline.Observer) Runner {
		o := opts
		o.Observer = obs
		return pipeline.New(c, o)
	}
}

// Notifier is told about run progress as it happens. *websocket.Hub
// satisfies it.
type Notifier interface {
	BroadcastProgress(runID string, ev pipeline.Event)
	BroadcastRun(run *model.Run)
}

type nopNotifier struct{}

func (nopNotifier) BroadcastProgress(string, pipeline.Event) {}
func (nopNotifier) BroadcastRun(*model.Run)                  {}

// PipelineWorker processes queued pipeline runs
type PipelineWorker struct {
	svc       *service.PipelineService
	newRunner RunnerFactory
	notify    Notifier
	log       *slog.Logger
	// hasRetry reports whether asynq will run the task again after an error.
	hasRetry func(ctx context.Context) bool
}

// NewPipelineWorker creates a new pipeline worker. notify may be nil.
func NewPipelineWorker(svc *service.PipelineService, newRunner RunnerFactory, notify Notifier, logger *slog.Logger) *PipelineWorker {
	if logger == nil {
		logger = slog.Default()
	}
	if notify == nil {
		notify = nopNotifier{}
	}
	return &PipelineWorker{
		svc:       svc,
		newRunner: newRunner,
		notify:    notify,
		log:       logger.With("component", "worker"),
		hasRetry:  retriesLeft,
	}
}

func retriesLeft(ctx context.Context) bool {
	n, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	max, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return true
	}
	return n < max
}

// ProcessTask handles pipeline task processing. Pending runs and transient
// failures are returned as errors so asynq schedules another attempt, which
// resumes from the stored result.
func (w *PipelineWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.RunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}

	run, err := w.svc.StartAttempt(ctx, payload.RunID)
	if err != nil {
		if errors.Is(err, service.ErrRunNotFound) {
			return fmt.Errorf("run %s: %v: %w", payload.RunID, err, asynq.SkipRetry)
		}
		return err
	}

	log := w.log.With("run_id", run.ID, "attempt", run.Attempts)
	if run.Status == model.RunStatusSucceeded || run.Status == model.RunStatusCanceled {
		log.InfoContext(ctx, "skipping run", "status", run.Status)
		w.notify.BroadcastRun(run)
		return nil
	}

	observer := func(ev pipeline.Event) {
		log.DebugContext(ctx, "stage transition", "stage", ev.Stage, "kind", ev.Kind)
		if err := w.svc.UpdateProgress(ctx, run.ID, ev.Result); err != nil {
			log.WarnContext(ctx, "failed to update progress", "error", err)
		}
		w.notify.BroadcastProgress(run.ID, ev)
	}
	runner := w.newRunner(observer)

	var res *pipeline.Result
	if run.Result != nil {
		log.InfoContext(ctx, "resuming run", "stage", run.Result.Stage, "state", run.Result.State)
		res, err = runner.Resume(ctx, run.Spec, run.Result)
	} else {
		log.InfoContext(ctx, "starting run")
		res, err = runner.Run(ctx, run.Spec)
	}

	retryable := err != nil && (pipeline.IsPending(err) || apierr.IsTransient(err))
	willRetry := retryable && w.hasRetry(ctx)
	if ferr := w.svc.Finish(ctx, run.ID, res, err, willRetry); ferr != nil {
		log.ErrorContext(ctx, "failed to record outcome", "error", ferr)
	} else if final, gerr := w.svc.Get(ctx, run.ID); gerr == nil {
		w.notify.BroadcastRun(final)
	}

	switch {
	case err == nil:
		log.InfoContext(ctx, "run completed", "render_id", res.RenderID)
		return nil
	case pipeline.IsPending(err):
		log.InfoContext(ctx, "run pending", "stage", pipeline.StageOf(err))
		return err
	case apierr.IsTransient(err):
		log.WarnContext(ctx, "run failed, will retry", "stage", pipeline.StageOf(err), "error", err)
		return err
	default:
		log.ErrorContext(ctx, "run failed", "stage", pipeline.StageOf(err), "error", err)
		return fmt.Errorf("run %s: %v: %w", run.ID, err, asynq.SkipRetry)
	}
}
