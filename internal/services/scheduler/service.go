package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/KirkDiggler/gatherer/internal/common/clock"
	"github.com/KirkDiggler/gatherer/internal/common/ids"
	"github.com/KirkDiggler/gatherer/internal/common/logging"
	"github.com/KirkDiggler/gatherer/internal/models"
	jobRepo "github.com/KirkDiggler/gatherer/internal/repositories/job"
)

const (
	defaultPollInterval   = 5 * time.Second
	defaultLeaseDuration  = 2 * time.Minute
	defaultBatchSize      = 50
	defaultHandlerTimeout = time.Minute
	defaultBaseBackoff    = 10 * time.Second
	defaultMaxBackoff     = 10 * time.Minute
)

type registration struct {
	handler     Handler
	maxAttempts int
}

type service struct {
	jobRepo     jobRepo.Repository
	clock       clock.Clock
	idGenerator ids.Generator

	pollInterval   time.Duration
	leaseDuration  time.Duration
	batchSize      int
	handlerTimeout time.Duration
	baseBackoff    time.Duration
	maxBackoff     time.Duration

	mu       sync.RWMutex
	handlers map[models.JobKind]registration
}

// New creates a new scheduler service
func New(cfg *Config) (*service, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if cfg.JobRepo == nil {
		return nil, ErrNilJobRepo
	}
	if cfg.Clock == nil {
		return nil, ErrNilClock
	}
	if cfg.IDGenerator == nil {
		return nil, ErrNilIDGenerator
	}

	s := &service{
		jobRepo:        cfg.JobRepo,
		clock:          cfg.Clock,
		idGenerator:    cfg.IDGenerator,
		pollInterval:   orDefault(cfg.PollInterval, defaultPollInterval),
		leaseDuration:  orDefault(cfg.LeaseDuration, defaultLeaseDuration),
		batchSize:      cfg.BatchSize,
		handlerTimeout: orDefault(cfg.HandlerTimeout, defaultHandlerTimeout),
		baseBackoff:    orDefault(cfg.BaseBackoff, defaultBaseBackoff),
		maxBackoff:     orDefault(cfg.MaxBackoff, defaultMaxBackoff),
		handlers:       make(map[models.JobKind]registration),
	}
	if s.batchSize <= 0 {
		s.batchSize = defaultBatchSize
	}

	return s, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// Schedule persists a job under its deterministic id
func (s *service) Schedule(ctx context.Context, input *ScheduleInput) (*ScheduleOutput, error) {
	if input == nil || input.Kind == "" || input.TargetID == "" {
		return nil, ErrInvalidJob
	}

	job := &models.ScheduledJob{
		ID:        JobID(input.Kind, input.TargetID),
		Kind:      input.Kind,
		TargetID:  input.TargetID,
		FireAt:    input.FireAt,
		Status:    models.JobStatusPending,
		CreatedAt: s.clock.Now(),
	}

	if err := s.jobRepo.SaveJob(ctx, &jobRepo.SaveJobInput{Job: job}); err != nil {
		return nil, fmt.Errorf("failed to schedule job: %w", err)
	}

	slog.DebugContext(ctx, "job scheduled",
		"job_id", job.ID, "fire_at", job.FireAt)

	return &ScheduleOutput{Job: job}, nil
}

// Cancel removes every job of a target, including one being executed
func (s *service) Cancel(ctx context.Context, input *CancelInput) (*CancelOutput, error) {
	if input == nil || input.TargetID == "" {
		return nil, ErrInvalidJob
	}

	n, err := s.jobRepo.DeleteJobsByTarget(ctx, &jobRepo.DeleteJobsByTargetInput{
		TargetID: input.TargetID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to cancel jobs: %w", err)
	}

	return &CancelOutput{Cancelled: n}, nil
}

// Register binds a handler to a job kind, replacing any earlier one
func (s *service) Register(input *RegisterInput) error {
	if input == nil || input.Kind == "" {
		return ErrInvalidJob
	}
	if input.Handler == nil {
		return ErrNilHandler
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[input.Kind] = registration{
		handler:     input.Handler,
		maxAttempts: input.MaxAttempts,
	}
	return nil
}

// Run polls for due jobs until ctx is done
func (s *service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			slog.ErrorContext(ctx, "scheduler pass failed", logging.ErrKey, err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce claims due jobs one at a time and executes them
func (s *service) RunOnce(ctx context.Context) (*RunOnceOutput, error) {
	now := s.clock.Now()
	jobIDs, err := s.jobRepo.ListDueJobIDs(ctx, &jobRepo.ListDueJobIDsInput{
		Now:   now,
		Limit: s.batchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list due jobs: %w", err)
	}

	output := &RunOnceOutput{}
	for _, jobID := range jobIDs {
		if ctx.Err() != nil {
			break
		}

		now = s.clock.Now()
		job, err := s.jobRepo.ClaimJob(ctx, &jobRepo.ClaimJobInput{
			JobID:      jobID,
			Token:      s.idGenerator.NewToken(),
			Now:        now,
			LeaseUntil: now.Add(s.leaseDuration),
		})
		if errors.Is(err, jobRepo.ErrJobNotClaimable) {
			continue
		}
		if err != nil {
			slog.WarnContext(ctx, "failed to claim job", "job_id", jobID, logging.ErrKey, err)
			continue
		}

		s.execute(ctx, job, output)
	}

	return output, nil
}

func (s *service) execute(ctx context.Context, job *models.ScheduledJob, output *RunOnceOutput) {
	ctx = logging.AppendCtx(ctx, slog.String("job_id", job.ID))
	ctx = logging.AppendCtx(ctx, slog.Int("attempt", job.Attempts))

	s.mu.RLock()
	reg, ok := s.handlers[job.Kind]
	s.mu.RUnlock()
	if !ok {
		s.bury(ctx, job, ErrNoHandler, output)
		return
	}

	handlerCtx, cancel := context.WithTimeout(ctx, s.handlerTimeout)
	err := reg.handler.HandleJob(handlerCtx, job)
	cancel()

	switch {
	case err == nil:
		s.complete(ctx, job, output)
	case IsPermanent(err):
		s.bury(ctx, job, err, output)
	case reg.maxAttempts > 0 && job.Attempts >= reg.maxAttempts:
		s.bury(ctx, job, fmt.Errorf("gave up after %d attempts: %w", job.Attempts, err), output)
	default:
		s.retry(ctx, job, err, output)
	}
}

func (s *service) complete(ctx context.Context, job *models.ScheduledJob, output *RunOnceOutput) {
	err := s.jobRepo.CompleteJob(ctx, &jobRepo.CompleteJobInput{Job: job})
	if errors.Is(err, jobRepo.ErrLockLost) {
		// cancelled or rescheduled while running
		slog.InfoContext(ctx, "job changed while running")
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to complete job", logging.ErrKey, err)
		return
	}
	output.Completed++
	slog.InfoContext(ctx, "job completed")
}

func (s *service) retry(ctx context.Context, job *models.ScheduledJob, cause error, output *RunOnceOutput) {
	fireAt := s.clock.Now().Add(s.backoff(job.Attempts))
	err := s.jobRepo.ReleaseJob(ctx, &jobRepo.ReleaseJobInput{
		Job:       job,
		FireAt:    fireAt,
		LastError: cause.Error(),
	})
	if err != nil && !errors.Is(err, jobRepo.ErrLockLost) {
		slog.ErrorContext(ctx, "failed to release job", logging.ErrKey, err)
		return
	}
	if err == nil {
		output.Retried++
	}
	slog.WarnContext(ctx, "job failed, retrying", "retry_at", fireAt, logging.ErrKey, cause)
}

func (s *service) bury(ctx context.Context, job *models.ScheduledJob, cause error, output *RunOnceOutput) {
	err := s.jobRepo.BuryJob(ctx, &jobRepo.BuryJobInput{
		Job:       job,
		LastError: cause.Error(),
	})
	if err != nil && !errors.Is(err, jobRepo.ErrLockLost) {
		slog.ErrorContext(ctx, "failed to bury job", logging.ErrKey, err)
		return
	}
	if err == nil {
		output.Buried++
	}
	slog.ErrorContext(ctx, "job abandoned", logging.ErrKey, cause)
}

// backoff doubles BaseBackoff per attempt, capped at MaxBackoff
func (s *service) backoff(attempts int) time.Duration {
	d := s.baseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= s.maxBackoff {
			return s.maxBackoff
		}
	}
	if d > s.maxBackoff {
		return s.maxBackoff
	}
	return d
}
