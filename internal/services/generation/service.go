package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"calliope/internal/adapters/config"
	"calliope/internal/agents"
	"calliope/internal/domain/audit"
	"calliope/internal/domain/generation"
	"calliope/internal/domain/usage"
	"calliope/internal/events"
	"calliope/internal/metrics"
	auditsvc "calliope/internal/services/audit"
	"calliope/internal/services/costs"
	usagesvc "calliope/internal/services/usage"
	"calliope/pkg/errors"
	"calliope/pkg/logger"
)

const (
	maxSlides = 10

	snapshotKeyPrefix = "generation:snapshot:"
)

// Notifier delivers terminal job notifications. Nil disables notifications.
type Notifier interface {
	NotifyJobCompleted(ctx context.Context, job *generation.Job) error
	NotifyJobFailed(ctx context.Context, job *generation.Job) error
}

// SnapshotCache mirrors the latest progress snapshot for cheap reconnect reads.
// Nil disables the mirror; Postgres remains the durable copy.
type SnapshotCache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
}

// StartParams describes a generation job request.
type StartParams struct {
	UserID  *int64
	PostID  *int64
	BrandID int64

	Pipeline generation.PipelineKind
	Prompt   string

	// SlideCount is required for carousel pipelines, ignored otherwise.
	SlideCount int
}

// Service orchestrates multi-agent generation jobs. Pipelines run on a
// detached context: a started job always reaches a terminal status, clients
// observe it through the progress stream and reconnect.
type Service struct {
	repo      generation.Repository
	registry  *agents.Registry
	hub       *events.ProgressHub
	usage     *usagesvc.Service
	auditLog  *auditsvc.Service
	calc      *costs.Calculator
	publisher *events.Publisher
	notifier  Notifier
	cache     SnapshotCache

	// totalsMu guards the in-memory job totals; concurrent slide executions
	// book their usage from separate goroutines.
	totalsMu sync.Mutex

	cfg config.GenerationConfig
	now func() time.Time
	log *logger.Logger
}

// NewService creates the generation orchestrator.
// publisher, notifier and cache may be nil.
func NewService(
	repo generation.Repository,
	registry *agents.Registry,
	hub *events.ProgressHub,
	usageSvc *usagesvc.Service,
	auditSvc *auditsvc.Service,
	calc *costs.Calculator,
	publisher *events.Publisher,
	notifier Notifier,
	cache SnapshotCache,
	cfg config.GenerationConfig,
) *Service {
	if cfg.SlideConcurrency <= 0 {
		cfg.SlideConcurrency = 4
	}
	return &Service{
		repo:      repo,
		registry:  registry,
		hub:       hub,
		usage:     usageSvc,
		auditLog:  auditSvc,
		calc:      calc,
		publisher: publisher,
		notifier:  notifier,
		cache:     cache,
		cfg:       cfg,
		now:       time.Now,
		log:       logger.Get().With("component", "generation_orchestrator"),
	}
}

// Start validates the request, persists the job in status started and launches
// the pipeline in the background. The returned job is the caller's handle for
// status polling and progress subscription.
func (s *Service) Start(ctx context.Context, params StartParams) (*generation.Job, error) {
	if params.BrandID == 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "generation requires a brand")
	}
	if params.Prompt == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "generation requires a prompt")
	}
	if !params.Pipeline.Valid() {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unknown pipeline %q", params.Pipeline)
	}

	slideCount := 0
	if params.Pipeline == generation.PipelineCarousel {
		if params.SlideCount < 2 || params.SlideCount > maxSlides {
			return nil, errors.Wrapf(errors.ErrInvalidInput,
				"carousel requires 2..%d slides, got %d", maxSlides, params.SlideCount)
		}
		slideCount = params.SlideCount
	}

	steps := params.Pipeline.Steps()
	createdAt := s.now().UTC()

	job := &generation.Job{
		ID:          uuid.New(),
		UserID:      params.UserID,
		PostID:      params.PostID,
		BrandID:     params.BrandID,
		Pipeline:    params.Pipeline,
		Prompt:      params.Prompt,
		SlideCount:  slideCount,
		Status:      generation.StatusStarted,
		CurrentStep: steps[0],
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}

	if err := s.repo.Create(ctx, job); err != nil {
		return nil, errors.Wrap(err, "create generation job")
	}

	metrics.JobsStarted.WithLabelValues(string(job.Pipeline)).Inc()
	s.publisher.PublishJobStarted(ctx, job)

	s.emit(job, generation.ProgressEvent{
		JobID:      job.ID,
		Status:     generation.StatusStarted,
		Step:       steps[0],
		StepIndex:  0,
		TotalSteps: len(steps),
		Message:    "generation started",
		EmittedAt:  createdAt,
	})

	s.log.Infow("Generation job started",
		"job_id", job.ID,
		"pipeline", job.Pipeline,
		"brand_id", job.BrandID,
	)

	// Detached context: client disconnects never abort a running pipeline.
	// The goroutine owns its own copy; the returned job is a read-only handle.
	jobCopy := *job
	go s.run(context.Background(), &jobCopy)

	return job, nil
}

// Status loads the job's current persisted state.
func (s *Service) Status(ctx context.Context, jobID uuid.UUID) (*generation.Job, error) {
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrJobNotFound, "job %s: %v", jobID, err)
	}
	return job, nil
}

// Reconnect restores a client's view of a job. For terminal jobs it returns
// the final snapshot and a nil channel. For live jobs it returns the latest
// snapshot plus a subscription for subsequent events; subscription happens
// before the snapshot read so no event can fall between them.
func (s *Service) Reconnect(ctx context.Context, jobID uuid.UUID) (*generation.ProgressEvent, <-chan generation.ProgressEvent, func(), error) {
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, nil, nil, errors.Wrapf(errors.ErrJobNotFound, "job %s: %v", jobID, err)
	}

	if job.Status.Terminal() {
		snapshot := s.decodeSnapshot(job)
		return snapshot, nil, func() {}, nil
	}

	hubCh, hubCancel := s.hub.Subscribe(jobID)

	// The returned channel closes itself after forwarding a terminal event,
	// so callers need not invoke the disposer on the happy path.
	done := make(chan struct{})
	var once sync.Once
	dispose := func() {
		once.Do(func() {
			hubCancel()
			close(done)
		})
	}

	out := make(chan generation.ProgressEvent)
	go func() {
		defer close(out)
		for {
			select {
			case event, ok := <-hubCh:
				if !ok {
					return
				}
				select {
				case out <- event:
				case <-done:
					return
				}
				if event.Terminal() {
					dispose()
					return
				}
			case <-done:
				return
			}
		}
	}()

	snapshot := s.readSnapshot(ctx, job)
	return snapshot, out, dispose, nil
}

// run executes all pipeline steps sequentially and drives the job to a
// terminal status. It never returns an error: failures terminate the job.
func (s *Service) run(ctx context.Context, job *generation.Job) {
	steps := job.Pipeline.Steps()
	stepContext := make(map[agents.AgentType]string)
	var artifacts []generation.Artifact

	for i, step := range steps {
		job.Status = generation.StatusInProgress
		job.CurrentStep = step

		s.emit(job, generation.ProgressEvent{
			JobID:      job.ID,
			Status:     generation.StatusInProgress,
			Step:       step,
			StepIndex:  i,
			TotalSteps: len(steps),
			Message:    fmt.Sprintf("running %s", step),
			EmittedAt:  s.now().UTC(),
		})

		executor, err := s.registry.ForStep(step)
		if err != nil {
			s.fail(ctx, job, step, i, len(steps), err)
			return
		}

		var outputs []*agents.ExecutionOutput
		if step == generation.StepImageGeneration && job.SlideCount > 1 {
			outputs, err = s.runSlides(ctx, job, executor, stepContext, i, len(steps))
		} else {
			outputs, err = s.runSingle(ctx, job, executor, stepContext, i, len(steps))
		}
		if err != nil {
			s.fail(ctx, job, step, i, len(steps), err)
			return
		}

		for _, out := range outputs {
			if out.Content != "" {
				stepContext[out.AgentType] = out.Content
			}
			artifacts = append(artifacts, out.Artifacts...)
		}
	}

	if caption, ok := stepContext[agents.AgentCopywriting]; ok {
		artifacts = append([]generation.Artifact{{Kind: "caption", Text: caption}}, artifacts...)
	}

	s.complete(ctx, job, artifacts, len(steps))
}

// runSingle executes one step once and books its usage.
func (s *Service) runSingle(ctx context.Context, job *generation.Job, executor agents.Executor, stepContext map[agents.AgentType]string, stepIndex, totalSteps int) ([]*agents.ExecutionOutput, error) {
	input := agents.ExecutionInput{
		JobID:   job.ID,
		BrandID: job.BrandID,
		Prompt:  job.Prompt,
		Context: stepContext,
	}

	out, err := executor.Execute(ctx, input)
	if out != nil {
		s.bookkeep(ctx, job, &out.Execution, err)
	}
	if err != nil {
		return nil, err
	}

	s.emit(job, generation.ProgressEvent{
		JobID:      job.ID,
		Status:     generation.StatusInProgress,
		Step:       job.CurrentStep,
		StepIndex:  stepIndex,
		TotalSteps: totalSteps,
		Message:    fmt.Sprintf("finished %s", job.CurrentStep),
		Execution:  &out.Execution,
		EmittedAt:  s.now().UTC(),
	})

	return []*agents.ExecutionOutput{out}, nil
}

// runSlides fans one step out across carousel slides with bounded concurrency.
// The first slide error fails the whole step; already-running slides finish
// and their usage is still booked.
func (s *Service) runSlides(ctx context.Context, job *generation.Job, executor agents.Executor, stepContext map[agents.AgentType]string, stepIndex, totalSteps int) ([]*agents.ExecutionOutput, error) {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
		done     int
	)

	outputs := make([]*agents.ExecutionOutput, job.SlideCount)
	sem := make(chan struct{}, s.cfg.SlideConcurrency)

	for slide := 1; slide <= job.SlideCount; slide++ {
		wg.Add(1)
		sem <- struct{}{}

		go func(slide int) {
			defer wg.Done()
			defer func() { <-sem }()

			input := agents.ExecutionInput{
				JobID:      job.ID,
				BrandID:    job.BrandID,
				Prompt:     job.Prompt,
				Context:    stepContext,
				SlideIndex: slide,
			}

			out, err := executor.Execute(ctx, input)
			if out != nil {
				s.bookkeep(ctx, job, &out.Execution, err)
			}

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}

			outputs[slide-1] = out
			done++

			current, total := done, job.SlideCount
			s.emit(job, generation.ProgressEvent{
				JobID:      job.ID,
				Status:     generation.StatusInProgress,
				Step:       job.CurrentStep,
				StepIndex:  stepIndex,
				TotalSteps: totalSteps,
				Message:    fmt.Sprintf("slide %d of %d", current, total),
				SubCurrent: &current,
				SubTotal:   &total,
				Execution:  &out.Execution,
				EmittedAt:  s.now().UTC(),
			})
		}(slide)
	}

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	result := make([]*agents.ExecutionOutput, 0, len(outputs))
	for _, out := range outputs {
		if out != nil {
			result = append(result, out)
		}
	}
	return result, nil
}

// bookkeep prices one execution and records it in the usage aggregator, the
// audit log, the job totals and metrics. Every sink is best-effort: a
// bookkeeping failure is logged and counted, never surfaced to the pipeline.
func (s *Service) bookkeep(ctx context.Context, job *generation.Job, execution *generation.AgentExecution, execErr error) {
	// Malformed execution reports never reach the sinks: booking them would
	// corrupt the usage counters (a call produces images or video, not both).
	if err := execution.Validate(); err != nil {
		metrics.BookkeepingFailures.WithLabelValues("validation").Inc()
		s.log.Errorf("Rejecting invalid execution for job %s (agent %s): %v", job.ID, execution.AgentType, err)
		return
	}

	result := s.calc.Calculate(ctx, execution.Provider, execution.Model, costs.Usage{
		PromptTokens:     execution.PromptTokens,
		CompletionTokens: execution.CompletionTokens,
		ImagesGenerated:  execution.ImagesGenerated,
		VideoSeconds:     execution.VideoSeconds,
	})

	latency := execution.CompletedAt.Sub(execution.StartedAt)
	metrics.RecordAgentCall(execution.AgentType, execution.Model, latency, result.CostUSD,
		execution.PromptTokens, execution.CompletionTokens, execErr)

	// Failed executions are audited but never counted as usage.
	if execErr == nil {
		if err := s.addUsage(ctx, job, execution, result.CostUSD); err != nil {
			metrics.BookkeepingFailures.WithLabelValues("usage").Inc()
			s.log.Errorf("Usage bookkeeping failed for job %s: %v", job.ID, err)
		}
	}

	status := audit.StatusSuccess
	var errMessage *string
	if execErr != nil {
		status = audit.StatusFailed
		msg := execErr.Error()
		errMessage = &msg
	}

	if _, err := s.auditLog.Log(ctx, auditsvc.Params{
		PostID:           job.PostID,
		UserID:           job.UserID,
		BrandID:          job.BrandID,
		JobID:            &job.ID,
		ActionCode:       agents.ActionCode[job.Pipeline],
		AgentType:        execution.AgentType,
		Provider:         execution.Provider,
		Model:            execution.Model,
		PromptTokens:     execution.PromptTokens,
		CompletionTokens: execution.CompletionTokens,
		ImagesGenerated:  execution.ImagesGenerated,
		VideoSeconds:     execution.VideoSeconds,
		RequestedAt:      execution.StartedAt,
		CompletedAt:      &execution.CompletedAt,
		Status:           status,
		ErrorMessage:     errMessage,
	}); err != nil {
		metrics.BookkeepingFailures.WithLabelValues("audit").Inc()
		s.log.Errorf("Audit bookkeeping failed for job %s: %v", job.ID, err)
	}

	tokens := execution.PromptTokens + execution.CompletionTokens
	if err := s.repo.AddTotals(ctx, job.ID, tokens, result.CostUSD, execution.ImagesGenerated); err != nil {
		metrics.BookkeepingFailures.WithLabelValues("totals").Inc()
		s.log.Errorf("Totals bookkeeping failed for job %s: %v", job.ID, err)
	}

	s.totalsMu.Lock()
	job.TotalTokens += tokens
	job.TotalCostUSD += result.CostUSD
	job.TotalImages += execution.ImagesGenerated
	job.ExecutionCount++
	s.totalsMu.Unlock()
}

func (s *Service) addUsage(ctx context.Context, job *generation.Job, execution *generation.AgentExecution, costUSD float64) error {
	return s.usage.AddUsage(ctx, usage.Record{
		UserID:           job.UserID,
		BrandID:          job.BrandID,
		Provider:         execution.Provider,
		Model:            execution.Model,
		PromptTokens:     execution.PromptTokens,
		CompletionTokens: execution.CompletionTokens,
		ImagesGenerated:  execution.ImagesGenerated,
		VideoSeconds:     execution.VideoSeconds,
		CostUSD:          costUSD,
		OccurredAt:       execution.CompletedAt,
	})
}

// complete drives the job into its completed terminal state.
func (s *Service) complete(ctx context.Context, job *generation.Job, artifacts []generation.Artifact, totalSteps int) {
	completedAt := s.now().UTC()

	event := generation.ProgressEvent{
		JobID:      job.ID,
		Status:     generation.StatusCompleted,
		Step:       job.CurrentStep,
		StepIndex:  totalSteps - 1,
		TotalSteps: totalSteps,
		Message:    "generation completed",
		EmittedAt:  completedAt,
	}
	snapshot := s.encodeSnapshot(event)

	artifactsJSON, err := json.Marshal(artifacts)
	if err != nil {
		s.fail(ctx, job, job.CurrentStep, totalSteps-1, totalSteps, errors.Wrap(err, "encode artifacts"))
		return
	}

	if err := s.repo.Complete(ctx, job.ID, artifactsJSON, snapshot, completedAt); err != nil {
		s.log.Errorf("Failed to persist completion of job %s: %v", job.ID, err)
	}

	job.Status = generation.StatusCompleted
	job.Artifacts = artifactsJSON
	job.CompletedAt = &completedAt

	s.mirrorSnapshot(job.ID, event)
	s.hub.Publish(event)

	metrics.RecordJobFinished(string(job.Pipeline), string(generation.StatusCompleted), completedAt.Sub(job.CreatedAt))
	s.publisher.PublishJobCompleted(ctx, job)
	s.notify(ctx, job)

	s.log.Infow("Generation job completed",
		"job_id", job.ID,
		"tokens", job.TotalTokens,
		"cost_usd", job.TotalCostUSD,
		"artifacts", len(artifacts),
	)
}

// fail drives the job into its failed terminal state.
func (s *Service) fail(ctx context.Context, job *generation.Job, step generation.Step, stepIndex, totalSteps int, cause error) {
	failedAt := s.now().UTC()
	message := cause.Error()

	event := generation.ProgressEvent{
		JobID:      job.ID,
		Status:     generation.StatusFailed,
		Step:       step,
		StepIndex:  stepIndex,
		TotalSteps: totalSteps,
		Message:    fmt.Sprintf("failed at %s", step),
		Error:      message,
		EmittedAt:  failedAt,
	}
	snapshot := s.encodeSnapshot(event)

	if err := s.repo.Fail(ctx, job.ID, message, snapshot, failedAt); err != nil {
		s.log.Errorf("Failed to persist failure of job %s: %v", job.ID, err)
	}

	job.Status = generation.StatusFailed
	job.ErrorMessage = &message
	job.CompletedAt = &failedAt

	s.mirrorSnapshot(job.ID, event)
	s.hub.Publish(event)

	metrics.RecordJobFinished(string(job.Pipeline), string(generation.StatusFailed), failedAt.Sub(job.CreatedAt))
	s.publisher.PublishJobFailed(ctx, job, message)
	s.notify(ctx, job)

	s.log.Errorw("Generation job failed",
		"job_id", job.ID,
		"step", step,
		"error", message,
	)
}

// emit persists the latest snapshot and broadcasts the event. Only used for
// non-terminal events; terminal transitions persist through Complete/Fail.
func (s *Service) emit(job *generation.Job, event generation.ProgressEvent) {
	snapshot := s.encodeSnapshot(event)

	if err := s.repo.UpdateProgress(context.Background(), job.ID, event.Status, event.Step, snapshot); err != nil {
		metrics.BookkeepingFailures.WithLabelValues("snapshot").Inc()
		s.log.Errorf("Failed to persist progress snapshot for job %s: %v", job.ID, err)
	}

	s.mirrorSnapshot(job.ID, event)
	s.hub.Publish(event)
}

func (s *Service) mirrorSnapshot(jobID uuid.UUID, event generation.ProgressEvent) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(context.Background(), snapshotKeyPrefix+jobID.String(), event, s.cfg.SnapshotTTL); err != nil {
		metrics.BookkeepingFailures.WithLabelValues("snapshot").Inc()
		s.log.Warnf("Failed to mirror snapshot for job %s: %v", jobID, err)
	}
}

// readSnapshot prefers the cache mirror and falls back to the durable copy.
func (s *Service) readSnapshot(ctx context.Context, job *generation.Job) *generation.ProgressEvent {
	if s.cache != nil {
		var event generation.ProgressEvent
		if err := s.cache.Get(ctx, snapshotKeyPrefix+job.ID.String(), &event); err == nil && event.JobID == job.ID {
			return &event
		}
	}
	return s.decodeSnapshot(job)
}

func (s *Service) decodeSnapshot(job *generation.Job) *generation.ProgressEvent {
	if len(job.LastProgress) == 0 {
		return nil
	}
	var event generation.ProgressEvent
	if err := json.Unmarshal(job.LastProgress, &event); err != nil {
		s.log.Warnf("Corrupt progress snapshot for job %s: %v", job.ID, err)
		return nil
	}
	return &event
}

func (s *Service) encodeSnapshot(event generation.ProgressEvent) []byte {
	data, err := json.Marshal(event)
	if err != nil {
		s.log.Errorf("Failed to encode progress snapshot for job %s: %v", event.JobID, err)
		return nil
	}
	return data
}

func (s *Service) notify(ctx context.Context, job *generation.Job) {
	if s.notifier == nil {
		return
	}
	if job.Status == generation.StatusCompleted && !s.cfg.NotifyOnCompleted {
		return
	}

	var err error
	switch job.Status {
	case generation.StatusCompleted:
		err = s.notifier.NotifyJobCompleted(ctx, job)
	case generation.StatusFailed:
		err = s.notifier.NotifyJobFailed(ctx, job)
	}
	if err != nil {
		metrics.BookkeepingFailures.WithLabelValues("notify").Inc()
		s.log.Warnf("Failed to notify about job %s: %v", job.ID, err)
	}
}
