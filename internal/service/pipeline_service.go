package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/storylinez/storylinez-go/internal/model"
	"github.com/storylinez/storylinez-go/internal/store"
	"github.com/storylinez/storylinez-go/pkg/pipeline"
)

var (
	ErrRunNotFound = store.ErrNotFound
	ErrRunFinished = errors.New("run already finished")
)

// QueueName is the asynq queue pipeline runs are placed on.
const QueueName = "pipeline"

// Enqueuer is the part of *asynq.Client the service needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// PipelineService manages background pipeline runs
type PipelineService struct {
	store    store.Store
	enqueuer Enqueuer
	maxRetry int
	now      func() time.Time
}

func NewPipelineService(s store.Store, enqueuer Enqueuer, maxRetry int) *PipelineService {
	return &PipelineService{
		store:    s,
		enqueuer: enqueuer,
		maxRetry: maxRetry,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Enqueue validates spec, records a queued run and hands it to the worker queue.
func (s *PipelineService) Enqueue(ctx context.Context, spec pipeline.Spec) (*model.Run, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	run := &model.Run{
		ID:        uuid.New().String(),
		Status:    model.RunStatusQueued,
		Spec:      spec,
		CreatedAt: s.now(),
	}

	if err := s.store.Save(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}

	task, err := newPipelineTask(run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	_, err = s.enqueuer.EnqueueContext(ctx, task,
		asynq.Queue(QueueName),
		asynq.TaskID(run.ID),
		asynq.MaxRetry(s.maxRetry),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		msg := err.Error()
		run.Status = model.RunStatusFailed
		run.Error = &msg
		_ = s.store.Save(ctx, run)
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return run, nil
}

// Get returns the current record of a run.
func (s *PipelineService) Get(ctx context.Context, runID string) (*model.Run, error) {
	return s.store.Get(ctx, runID)
}

// Cancel marks a run canceled. A worker that has not picked it up yet skips it;
// one already executing finishes its current attempt.
func (s *PipelineService) Cancel(ctx context.Context, runID string) (*model.Run, error) {
	run, err := s.store.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status.Terminal() {
		return nil, ErrRunFinished
	}
	now := s.now()
	run.Status = model.RunStatusCanceled
	run.CompletedAt = &now
	if err := s.store.Save(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// StartAttempt marks the run running and counts the attempt (called by worker).
func (s *PipelineService) StartAttempt(ctx context.Context, runID string) (*model.Run, error) {
	run, err := s.store.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	// Failed runs are retried by the queue; only these two are final for a worker.
	if run.Status == model.RunStatusSucceeded || run.Status == model.RunStatusCanceled {
		return run, nil
	}
	now := s.now()
	run.Status = model.RunStatusRunning
	run.Attempts++
	run.Error = nil
	if run.StartedAt == nil {
		run.StartedAt = &now
	}
	return run, s.store.Save(ctx, run)
}

// UpdateProgress stores an intermediate result (called by worker).
func (s *PipelineService) UpdateProgress(ctx context.Context, runID string, res *pipeline.Result) error {
	run, err := s.store.Get(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status.Terminal() {
		return nil
	}
	run.Result = res
	run.CurrentStage = res.Stage
	return s.store.Save(ctx, run)
}

// Finish records the outcome of an attempt (called by worker). When willRetry
// is set a failed attempt is stored as retrying, since the queue runs it again.
func (s *PipelineService) Finish(ctx context.Context, runID string, res *pipeline.Result, runErr error, willRetry bool) error {
	run, err := s.store.Get(ctx, runID)
	if err != nil {
		return err
	}
	canceled := run.Status == model.RunStatusCanceled
	if res != nil {
		run.Result = res
		run.CurrentStage = res.Stage
		run.Status = model.StatusFromState(res.State)
	}
	if runErr != nil {
		msg := runErr.Error()
		run.Error = &msg
		if res == nil {
			run.Status = model.RunStatusFailed
		}
	}
	if willRetry && run.Status == model.RunStatusFailed {
		run.Status = model.RunStatusRetrying
	}
	if canceled {
		run.Status = model.RunStatusCanceled
	}
	if run.Status.Terminal() {
		now := s.now()
		run.CompletedAt = &now
	}
	return s.store.Save(ctx, run)
}

func newPipelineTask(runID string) (*asynq.Task, error) {
	data, err := json.Marshal(model.RunPayload{RunID: runID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(model.TaskTypePipeline, data), nil
}
