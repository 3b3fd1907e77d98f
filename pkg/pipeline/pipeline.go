// Package pipeline chains resource operations into a full video run:
// project, attachments, prompt, optional stock selection, storyboard,
// optional voiceover, sequence, render and optional archival.
//
// Each stage starts a remote job and waits for it before the next stage
// begins. A run that stops keeps every id it produced so it can be resumed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/storylinez/storylinez-go/pkg/apierr"
	"github.com/storylinez/storylinez-go/pkg/client"
	"github.com/storylinez/storylinez-go/pkg/poller"
	"github.com/storylinez/storylinez-go/pkg/selector"
)

const tracerName = "github.com/storylinez/storylinez-go/pkg/pipeline"

// Archiver copies a finished render somewhere durable and returns its public URL.
type Archiver interface {
	ArchiveRender(ctx context.Context, projectID, renderID, sourceURL string) (string, error)
}

// EventKind is the transition an Observer is told about.
type EventKind string

const (
	EventStarted   EventKind = "started"
	EventCompleted EventKind = "completed"
	EventPending   EventKind = "pending"
	EventFailed    EventKind = "failed"
)

// Event is one stage transition. Result is a snapshot taken at that moment.
type Event struct {
	Stage  Stage
	Kind   EventKind
	Result *Result
	Err    error
}

// Observer receives stage transitions synchronously.
type Observer func(Event)

// Options configures an Orchestrator.
type Options struct {
	Poll       poller.Options
	MaxRetries int
	Backoff    poller.Backoff
	Logger     *slog.Logger
	Observer   Observer
	Archiver   Archiver
}

// Orchestrator runs pipeline specs against one client.
type Orchestrator struct {
	c      *client.Client
	sel    *selector.Selector
	opts   Options
	log    *slog.Logger
	tracer trace.Tracer
}

// New creates an orchestrator. Zero Poll and Backoff fall back to the poller defaults.
func New(c *client.Client, opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Poll == (poller.Options{}) {
		opts.Poll = poller.DefaultOptions()
	}
	if opts.Backoff == (poller.Backoff{}) {
		opts.Backoff = poller.DefaultBackoff()
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	log := opts.Logger.With("component", "pipeline")
	return &Orchestrator{
		c:      c,
		sel:    selector.New(c, selector.WithPollOptions(opts.Poll), selector.WithLogger(opts.Logger)),
		opts:   opts,
		log:    log,
		tracer: otel.Tracer(tracerName),
	}
}

type step struct {
	stage   Stage
	enabled bool
	run     func(ctx context.Context, spec *Spec, r *Result, repoll bool) error
}

// Run executes spec from the first stage.
func (o *Orchestrator) Run(ctx context.Context, spec Spec) (*Result, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	r := &Result{State: StateRunning, StartedAt: time.Now().UTC()}
	return o.execute(ctx, &spec, r, false)
}

// Resume continues a run that ended pending or failed. Completed stages are
// skipped. A pending stage, or one whose status fetches kept failing, is
// polled again without creating a new job; any other failed stage is started
// over.
func (o *Orchestrator) Resume(ctx context.Context, spec Spec, prev *Result) (*Result, error) {
	if prev == nil {
		return nil, apierr.Validation("pipeline.resume", "previous result is required")
	}
	if prev.State == StateSucceeded {
		return prev.Clone(), nil
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	r := prev.Clone()
	repoll := r.State == StatePending || r.ErrorKind == apierr.KindPersistentFailure
	r.State, r.Error, r.ErrorKind, r.FinishedAt = StateRunning, "", "", time.Time{}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now().UTC()
	}
	o.log.InfoContext(ctx, "resuming run", "project_id", r.ProjectID, "stage", r.Stage, "repoll", repoll)
	return o.execute(ctx, &spec, r, repoll)
}

func (o *Orchestrator) execute(ctx context.Context, spec *Spec, r *Result, resuming bool) (*Result, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.run")
	defer span.End()

	if spec.Archive && o.opts.Archiver == nil {
		o.log.WarnContext(ctx, "archive requested but no archiver configured, skipping")
	}

	steps := []step{
		{StageProject, true, o.project},
		{StageAttach, len(spec.Files)+len(spec.Stock) > 0, o.attach},
		{StagePrompt, true, o.prompt},
		{StageContent, spec.Content != nil, o.content},
		{StageStoryboard, true, o.storyboard},
		{StageVoiceover, spec.Voiceover != nil, o.voiceover},
		{StageSequence, true, o.sequence},
		{StageRender, true, o.render},
		{StageArchive, spec.Archive && o.opts.Archiver != nil, o.archive},
	}

	for _, s := range steps {
		if !s.enabled || r.Done(s.stage) {
			continue
		}
		repoll := resuming && r.Stage == s.stage
		r.Stage = s.stage
		o.notify(s.stage, EventStarted, r, nil)

		if err := o.runStage(ctx, s, spec, r, repoll); err != nil {
			se := &StageError{Stage: s.stage, Pending: poller.IsTimeout(err), Err: err}
			r.Error = err.Error()
			r.ErrorKind = apierr.KindOf(err)
			r.FinishedAt = time.Now().UTC()
			kind := EventFailed
			if se.Pending {
				r.State, kind = StatePending, EventPending
				o.log.WarnContext(ctx, "stage still pending", "stage", s.stage, "project_id", r.ProjectID, "error", err)
			} else {
				r.State = StateFailed
				o.log.ErrorContext(ctx, "stage failed", "stage", s.stage, "project_id", r.ProjectID, "error", err)
			}
			span.SetStatus(codes.Error, se.Error())
			o.notify(s.stage, kind, r, se)
			return r, se
		}

		r.Completed = append(r.Completed, s.stage)
		o.log.InfoContext(ctx, "stage completed", "stage", s.stage, "project_id", r.ProjectID)
		o.notify(s.stage, EventCompleted, r, nil)
	}

	r.State, r.Stage = StateSucceeded, ""
	r.FinishedAt = time.Now().UTC()
	span.SetAttributes(attribute.String("storylinez.project_id", r.ProjectID))
	span.SetStatus(codes.Ok, "")
	return r, nil
}

func (o *Orchestrator) runStage(ctx context.Context, s step, spec *Spec, r *Result, repoll bool) error {
	ctx, span := o.tracer.Start(ctx, "pipeline."+string(s.stage),
		trace.WithAttributes(
			attribute.String("storylinez.stage", string(s.stage)),
			attribute.Bool("storylinez.repoll", repoll),
		))
	defer span.End()

	err := s.run(ctx, spec, r, repoll)
	if r.ProjectID != "" {
		span.SetAttributes(attribute.String("storylinez.project_id", r.ProjectID))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (o *Orchestrator) notify(stage Stage, kind EventKind, r *Result, err error) {
	if o.opts.Observer == nil {
		return
	}
	o.opts.Observer(Event{Stage: stage, Kind: kind, Result: r.Clone(), Err: err})
}

// retry wraps a create call; only rate limits and network errors are repeated.
func (o *Orchestrator) retry(ctx context.Context, fn func(context.Context) error) error {
	return poller.Retry(ctx, o.opts.MaxRetries, o.opts.Backoff, fn)
}

func (o *Orchestrator) pollOptions(name string) poller.Options {
	p := o.opts.Poll
	p.Name = name
	if p.Logger == nil {
		p.Logger = o.opts.Logger
	}
	return p
}

// ref prefers the resource id and falls back to the project.
func ref(id, projectID string) client.Ref {
	if id != "" {
		return client.Ref{ID: id}
	}
	return client.Ref{ProjectID: projectID}
}

func (o *Orchestrator) project(ctx context.Context, spec *Spec, r *Result, _ bool) error {
	p := spec.Project
	if p.ID != "" {
		resp, err := o.c.GetProject(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("get project: %w", err)
		}
		r.ProjectID = resp.Project.ProjectID
		if r.ProjectID == "" {
			r.ProjectID = p.ID
		}
		return nil
	}

	orientation := p.Orientation
	if orientation == "" {
		orientation = client.OrientationLandscape
	}
	req := &client.CreateProjectRequest{
		Name:             p.Name,
		OrgID:            p.OrgID,
		Orientation:      orientation,
		Purpose:          p.Purpose,
		TargetAudience:   p.TargetAudience,
		FolderID:         p.FolderID,
		BrandID:          p.BrandID,
		CompanyDetailsID: p.CompanyDetailsID,
	}
	var resp *client.ProjectResponse
	err := o.retry(ctx, func(ctx context.Context) (err error) {
		resp, err = o.c.CreateProject(ctx, req)
		return err
	})
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	if resp.Project.ProjectID == "" {
		return apierr.New(apierr.KindServer, "projects.create", "response carried no project_id")
	}
	r.ProjectID = resp.Project.ProjectID
	return nil
}

func (o *Orchestrator) attach(ctx context.Context, spec *Spec, r *Result, _ bool) error {
	for _, fileID := range spec.Files {
		err := o.retry(ctx, func(ctx context.Context) error {
			_, err := o.c.AddAssociatedFile(ctx, r.ProjectID, fileID)
			return err
		})
		if err != nil {
			return fmt.Errorf("attach file %s: %w", fileID, err)
		}
	}
	for _, s := range spec.Stock {
		err := o.retry(ctx, func(ctx context.Context) error {
			_, err := o.c.AddStockFile(ctx, r.ProjectID, s.StockID, s.MediaType)
			return err
		})
		if err != nil {
			return fmt.Errorf("attach stock %s: %w", s.StockID, err)
		}
	}
	return nil
}

func (o *Orchestrator) prompt(ctx context.Context, spec *Spec, r *Result, _ bool) error {
	p := spec.Prompt
	req := &client.CreateTextPromptRequest{
		ProjectID:       r.ProjectID,
		MainPrompt:      p.MainPrompt,
		DocumentContext: p.DocumentContext,
		Temperature:     p.Temperature,
		TotalLength:     p.TotalLength,
		Iterations:      p.Iterations,
		Deepthink:       p.Deepthink,
		Overdrive:       p.Overdrive,
		WebSearch:       p.WebSearch,
		Eco:             p.Eco,
		SkipVoiceover:   spec.Voiceover == nil,
		VoiceoverMode:   p.VoiceoverMode,
	}
	var resp *client.PromptResponse
	err := o.retry(ctx, func(ctx context.Context) (err error) {
		resp, err = o.c.CreateTextPrompt(ctx, req)
		return err
	})
	if err != nil {
		return fmt.Errorf("create prompt: %w", err)
	}
	r.PromptID = resp.Prompt.PromptID
	return nil
}

func (o *Orchestrator) content(ctx context.Context, spec *Spec, r *Result, _ bool) error {
	sel, err := o.sel.SelectMedia(ctx, spec.Content.request(r.ProjectID, spec.Project.Orientation))
	if err != nil {
		return err
	}
	r.Content = sel
	if failed := sel.Failed(); len(failed) > 0 {
		o.log.WarnContext(ctx, "some selected media could not be attached", "count", len(failed))
	}
	return nil
}

func (o *Orchestrator) storyboard(ctx context.Context, spec *Spec, r *Result, repoll bool) error {
	if !repoll || r.StoryboardID == "" {
		sb := spec.Storyboard
		req := &client.CreateStoryboardRequest{
			ProjectID:     r.ProjectID,
			Deepthink:     sb.Deepthink,
			Overdrive:     sb.Overdrive,
			WebSearch:     sb.WebSearch,
			Eco:           sb.Eco,
			Temperature:   sb.Temperature,
			Iterations:    sb.Iterations,
			FullLength:    sb.FullLength,
			VoiceoverMode: spec.Prompt.VoiceoverMode,
			SkipVoiceover: spec.Voiceover == nil,
		}
		var ack *client.StoryboardAck
		err := o.retry(ctx, func(ctx context.Context) (err error) {
			ack, err = o.c.CreateStoryboard(ctx, req)
			return err
		})
		if err != nil {
			return fmt.Errorf("create storyboard: %w", err)
		}
		r.StoryboardID = ack.Storyboard.StoryboardID
	}
	_, err := o.c.WaitForStoryboard(ctx, ref(r.StoryboardID, r.ProjectID), o.pollOptions("storyboard"))
	return err
}

func (o *Orchestrator) voiceover(ctx context.Context, spec *Spec, r *Result, repoll bool) error {
	if !repoll || r.VoiceoverID == "" {
		var ack *client.VoiceoverAck
		err := o.retry(ctx, func(ctx context.Context) (err error) {
			ack, err = o.c.CreateVoiceover(ctx, r.ProjectID, spec.Voiceover.Code)
			return err
		})
		if err != nil {
			return fmt.Errorf("create voiceover: %w", err)
		}
		r.VoiceoverID = ack.Voiceover.VoiceoverID
	}
	_, err := o.c.WaitForVoiceover(ctx, ref(r.VoiceoverID, r.ProjectID), o.pollOptions("voiceover"))
	return err
}

func (o *Orchestrator) sequence(ctx context.Context, spec *Spec, r *Result, repoll bool) error {
	if !repoll || r.SequenceID == "" {
		s := spec.Sequence
		req := &client.CreateSequenceRequest{
			ProjectID:     r.ProjectID,
			ApplyTemplate: s.ApplyTemplate,
			ApplyGrade:    s.ApplyGrade,
			GradeType:     s.GradeType,
			Orientation:   spec.Project.Orientation,
			Deepthink:     s.Deepthink,
			Overdrive:     s.Overdrive,
			WebSearch:     s.WebSearch,
			Eco:           s.Eco,
			Temperature:   s.Temperature,
			Iterations:    s.Iterations,
		}
		var ack *client.SequenceAck
		err := o.retry(ctx, func(ctx context.Context) (err error) {
			ack, err = o.c.CreateSequence(ctx, req)
			return err
		})
		if err != nil {
			return fmt.Errorf("create sequence: %w", err)
		}
		r.SequenceID = ack.Sequence.SequenceID
	}
	_, err := o.c.WaitForSequence(ctx, ref(r.SequenceID, r.ProjectID), o.pollOptions("sequence"))
	return err
}

func (o *Orchestrator) render(ctx context.Context, spec *Spec, r *Result, repoll bool) error {
	if !repoll || r.RenderID == "" {
		req := &client.CreateRenderRequest{ProjectID: r.ProjectID, RenderSettings: spec.Render}
		if req.TargetWidth == nil && req.TargetHeight == nil && spec.Project.Orientation != "" {
			w, h := spec.Project.Orientation.Resolution()
			req.TargetWidth, req.TargetHeight = client.Int(w), client.Int(h)
		}
		var ack *client.RenderAck
		err := o.retry(ctx, func(ctx context.Context) (err error) {
			ack, err = o.c.CreateRender(ctx, req)
			return err
		})
		if err != nil {
			return fmt.Errorf("create render: %w", err)
		}
		r.RenderID = ack.Render.RenderID
	}
	out, err := o.c.WaitForRender(ctx, ref(r.RenderID, r.ProjectID), o.pollOptions("render"))
	if errors.Is(err, client.ErrLinksUnavailable) {
		// The render is done; archive fetches the link again when it needs one.
		o.log.WarnContext(ctx, "render completed without links", "project_id", r.ProjectID, "render_id", out.RenderID, "error", err)
		err = nil
	}
	if err != nil {
		return err
	}
	if r.RenderID == "" {
		r.RenderID = out.RenderID
	}
	r.DownloadURL, r.StreamableURL = out.DownloadURL, out.StreamableURL
	return nil
}

func (o *Orchestrator) archive(ctx context.Context, _ *Spec, r *Result, _ bool) error {
	source := r.DownloadURL
	if source == "" {
		out, err := o.c.GetRender(ctx, ref(r.RenderID, r.ProjectID), true)
		if err != nil {
			return fmt.Errorf("fetch download link: %w", err)
		}
		source = out.DownloadURL
	}
	if source == "" {
		return errors.New("render has no download link to archive")
	}
	u, err := o.opts.Archiver.ArchiveRender(ctx, r.ProjectID, r.RenderID, source)
	if err != nil {
		return fmt.Errorf("archive render: %w", err)
	}
	r.ArchiveURL = u
	return nil
}
