package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aslbekqoziboyev/aiverselabs/internal/auth"
	"github.com/aslbekqoziboyev/aiverselabs/internal/featureflags"
	"github.com/aslbekqoziboyev/aiverselabs/internal/generation"
	"github.com/aslbekqoziboyev/aiverselabs/internal/middleware"
	"github.com/aslbekqoziboyev/aiverselabs/internal/models"
	"github.com/aslbekqoziboyev/aiverselabs/internal/notifications"
	"github.com/aslbekqoziboyev/aiverselabs/internal/observability"
	"github.com/aslbekqoziboyev/aiverselabs/internal/repository"
	"github.com/aslbekqoziboyev/aiverselabs/internal/validation"

	"github.com/google/uuid"
)

var errShuttingDown = models.NewInternalError(errors.New("generation service is shutting down"))

// GenerationService runs generation jobs in the background. Each job owns a
// cancel func; Shutdown cancels them all and waits for their goroutines.
type GenerationService struct {
	jobs       repository.GenerationJobRepository
	generators map[models.MediaKind]generation.Generator
	flags      *featureflags.Manager
	events     EventPublisher

	base    context.Context
	mu      sync.Mutex
	running map[uuid.UUID]context.CancelFunc
	wg      sync.WaitGroup
	closed  bool
}

// NewGenerationService derives every job context from base, normally the server lifetime.
func NewGenerationService(
	base context.Context,
	jobs repository.GenerationJobRepository,
	generators map[models.MediaKind]generation.Generator,
	flags *featureflags.Manager,
	events EventPublisher,
) *GenerationService {
	return &GenerationService{
		jobs:       jobs,
		generators: generators,
		flags:      flags,
		events:     eventsOrNoop(events),
		base:       base,
		running:    make(map[uuid.UUID]context.CancelFunc),
	}
}

// Start validates the request, records a pending job and runs it in the background.
func (s *GenerationService) Start(ctx context.Context, session *auth.Session, kind models.MediaKind, prompt string) (*models.GenerationJob, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}
	gen, ok := s.generators[kind]
	if !ok {
		return nil, models.NewValidationError("No generator for " + string(kind))
	}
	if !s.flags.EnabledOr(featureflags.GenerationFlag(string(kind)), session.UserID, true) {
		return nil, models.NewForbiddenError(kind.Label() + " generation is disabled")
	}
	p, err := validation.NormalizePrompt(prompt)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	if s.isClosed() {
		return nil, errShuttingDown
	}

	job := &models.GenerationJob{UserID: session.UserID, Kind: kind, Prompt: p, Status: models.JobPending}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.abandon(ctx, job)
		return nil, errShuttingDown
	}
	jobCtx, cancel := context.WithCancel(s.base)
	s.running[job.ID] = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	snapshot := *job
	go s.run(jobCtx, &snapshot, gen)
	return job, nil
}

func (s *GenerationService) run(ctx context.Context, job *models.GenerationJob, gen generation.Generator) {
	defer s.wg.Done()
	defer s.forget(job.ID)

	// Writes after cancellation must still land.
	persistCtx := context.WithoutCancel(ctx)
	logger := middleware.Logger.With(slog.String("job_id", job.ID.String()), slog.String("kind", string(job.Kind)))

	job.Status = models.JobRunning
	s.save(persistCtx, job)

	hooks := generation.Hooks{
		OnSubmit: func(providerID string) {
			job.ProviderJobID = providerID
			s.save(persistCtx, job)
		},
		OnTick: func(p generation.Progress) {
			job.Attempts = p.Attempt
			s.save(persistCtx, job)
			s.events.PublishUser(persistCtx, job.UserID, notifications.EventGenerationProgress, map[string]any{
				"job_id":          job.ID,
				"kind":            job.Kind,
				"attempt":         p.Attempt,
				"elapsed_seconds": int(p.Elapsed / time.Second),
			})
		},
	}

	result, err := gen.Generate(ctx, job.Prompt, hooks)
	now := time.Now().UTC()
	job.CompletedAt = &now
	if err == nil {
		job.Status = models.JobSucceeded
		job.ResultURL = result.URL
		job.Title = result.Title
		job.CoverURL = result.CoverURL
		if result.ProviderJobID != "" {
			job.ProviderJobID = result.ProviderJobID
		}
	} else {
		job.Status = statusForError(err)
		job.Error = err.Error()
	}
	s.save(persistCtx, job)
	observability.GenerationJobs.WithLabelValues(string(job.Kind), string(job.Status)).Inc()

	eventType := notifications.EventGenerationCompleted
	if job.Status != models.JobSucceeded {
		eventType = notifications.EventGenerationFailed
		logger.Warn("generation job ended without result", slog.String("status", string(job.Status)), slog.Any("error", err))
	} else {
		logger.Info("generation job completed")
	}
	s.events.PublishUser(persistCtx, job.UserID, eventType, map[string]any{"job": job})
}

func statusForError(err error) models.JobStatus {
	switch {
	case errors.Is(err, context.Canceled):
		return models.JobCancelled
	case models.HasCode(err, models.CodeGenerationTimeout), errors.Is(err, context.DeadlineExceeded):
		return models.JobTimedOut
	default:
		return models.JobFailed
	}
}

func (s *GenerationService) save(ctx context.Context, job *models.GenerationJob) {
	if err := s.jobs.Save(ctx, job); err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to save generation job",
			slog.String("job_id", job.ID.String()), slog.Any("error", err))
	}
}

func (s *GenerationService) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// abandon marks a job that was recorded but never started.
func (s *GenerationService) abandon(ctx context.Context, job *models.GenerationJob) {
	now := time.Now().UTC()
	job.Status = models.JobCancelled
	job.Error = "server shutting down"
	job.CompletedAt = &now
	s.save(context.WithoutCancel(ctx), job)
}

func (s *GenerationService) forget(id uuid.UUID) {
	s.mu.Lock()
	if cancel, ok := s.running[id]; ok {
		cancel()
		delete(s.running, id)
	}
	s.mu.Unlock()
}

// Get returns one of the caller's jobs.
func (s *GenerationService) Get(ctx context.Context, session *auth.Session, id uuid.UUID) (*models.GenerationJob, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}
	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !session.Owns(job.UserID) {
		return nil, models.NewNotFoundError("Generation job", id)
	}
	return job, nil
}

func (s *GenerationService) List(ctx context.Context, session *auth.Session, limit, offset int) ([]*models.GenerationJob, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}
	return s.jobs.ListByUser(ctx, session.UserID, limit, offset)
}

// Cancel stops one of the caller's running jobs. Finished jobs are returned unchanged.
func (s *GenerationService) Cancel(ctx context.Context, session *auth.Session, id uuid.UUID) (*models.GenerationJob, error) {
	job, err := s.Get(ctx, session, id)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return job, nil
	}

	s.mu.Lock()
	cancel, ok := s.running[id]
	s.mu.Unlock()
	if ok {
		cancel()
		return job, nil
	}

	// Orphaned by a restart; nothing is polling it any more.
	now := time.Now().UTC()
	job.Status = models.JobCancelled
	job.Error = "cancelled"
	job.CompletedAt = &now
	if err := s.jobs.Save(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Running reports how many jobs are in flight.
func (s *GenerationService) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.running)
}

// Shutdown cancels every running job and waits for them to record their final state.
func (s *GenerationService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	for _, cancel := range s.running {
		cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

