package service

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-engine/internal/dto"
	"github.com/noah-isme/timetable-engine/internal/models"
	"github.com/noah-isme/timetable-engine/internal/scheduler"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
	"github.com/noah-isme/timetable-engine/pkg/jobs"
)

// Batch and per-cohort statuses.
const (
	BatchStatusQueued     = "queued"
	BatchStatusRunning    = "running"
	BatchStatusCompleted  = "completed"
	BatchStatusFailed     = "failed"
	BatchStatusPartial    = "completed_with_errors"
	batchJobType          = "timetable.generate"
	defaultBatchRetention = 24 * time.Hour
)

// BatchConfig tunes the batch worker pool.
type BatchConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
	Retention  time.Duration
}

type batchCohortJob struct {
	BatchID string
	Index   int
	Cohort  scheduler.Cohort
	Seed    int64
	Options scheduler.Options
	Actor   string
}

type batchState struct {
	id        string
	createdAt time.Time
	cohorts   []dto.BatchCohortStatus
}

// BatchService generates many cohorts in the background. Each cohort runs
// under the same per-cohort lock as a direct request.
type BatchService struct {
	timetables *TimetableService
	queue      *jobs.Queue
	validator  *validator.Validate
	metrics    *MetricsService
	logger     *zap.Logger
	retention  time.Duration
	now        func() time.Time

	mu      sync.Mutex
	batches map[string]*batchState
}

// NewBatchService constructs the service and its worker pool. Call Start
// before submitting.
func NewBatchService(timetables *TimetableService, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, cfg BatchConfig) *BatchService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Retention <= 0 {
		cfg.Retention = defaultBatchRetention
	}
	s := &BatchService{
		timetables: timetables,
		validator:  validate,
		metrics:    metrics,
		logger:     logger,
		retention:  cfg.Retention,
		now:        time.Now,
		batches:    make(map[string]*batchState),
	}
	s.queue = jobs.NewQueue("timetable-batch", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: 256,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
		OnSettled:  s.settled,
	})
	return s
}

// Start launches the workers.
func (s *BatchService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *BatchService) Stop() {
	s.queue.Stop()
}

// Submit enqueues one generation per distinct cohort and returns the job handle.
func (s *BatchService) Submit(ctx context.Context, req dto.BatchGenerateRequest, actor string) (*dto.BatchJobResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch payload")
	}

	seen := make(map[string]bool, len(req.Cohorts))
	state := &batchState{id: uuid.NewString(), createdAt: s.now()}
	for _, raw := range req.Cohorts {
		cohort := normalizeCohort(raw)
		if seen[cohort.Key()] {
			continue
		}
		seen[cohort.Key()] = true
		state.cohorts = append(state.cohorts, dto.BatchCohortStatus{Cohort: cohort, Status: BatchStatusQueued})
	}

	s.mu.Lock()
	s.pruneLocked()
	s.batches[state.id] = state
	s.mu.Unlock()

	seed := s.timetables.seed(req.Seed)
	opts := s.timetables.options(req.Options)
	for i, entry := range state.cohorts {
		job := jobs.Job{
			ID:   state.id + "/" + entry.Cohort.Key(),
			Type: batchJobType,
			Payload: batchCohortJob{
				BatchID: state.id,
				Index:   i,
				Cohort:  entry.Cohort,
				Seed:    seed,
				Options: opts,
				Actor:   actor,
			},
		}
		if err := s.queue.Enqueue(job); err != nil {
			s.update(state.id, i, func(status *dto.BatchCohortStatus) {
				status.Status = BatchStatusFailed
				status.Error = err.Error()
			})
		}
	}

	s.logger.Info("batch submitted", zap.String("job_id", state.id), zap.Int("cohorts", len(state.cohorts)))
	return s.Get(ctx, state.id)
}

// Get reports the progress of a batch.
func (s *BatchService) Get(_ context.Context, id string) (*dto.BatchJobResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.batches[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "batch job not found")
	}
	cohorts := make([]dto.BatchCohortStatus, len(state.cohorts))
	copy(cohorts, state.cohorts)
	return &dto.BatchJobResponse{JobID: state.id, Status: overallStatus(cohorts), Cohorts: cohorts}, nil
}

func (s *BatchService) handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(batchCohortJob)
	if !ok {
		return appErrors.Clone(appErrors.ErrInternal, "unexpected batch payload")
	}
	s.update(payload.BatchID, payload.Index, func(status *dto.BatchCohortStatus) {
		status.Status = BatchStatusRunning
	})

	release, err := acquireCohort(ctx, s.timetables.locker, payload.Cohort)
	if err != nil {
		return err
	}
	defer release()

	resp, err := s.timetables.generateLocked(ctx, payload.Cohort, payload.Seed, payload.Options, models.SourceBatch, payload.Actor)
	if err != nil {
		if retryable(err) {
			return err
		}
		s.update(payload.BatchID, payload.Index, func(status *dto.BatchCohortStatus) {
			status.Status = BatchStatusFailed
			status.Error = err.Error()
		})
		return nil
	}
	s.update(payload.BatchID, payload.Index, func(status *dto.BatchCohortStatus) {
		status.TimetableID = resp.Timetable.ID
	})
	return nil
}

func (s *BatchService) settled(job jobs.Job, err error) {
	payload, ok := job.Payload.(batchCohortJob)
	if !ok {
		return
	}
	var final string
	s.update(payload.BatchID, payload.Index, func(status *dto.BatchCohortStatus) {
		switch {
		case err != nil:
			status.Status = BatchStatusFailed
			status.Error = err.Error()
		case status.Status != BatchStatusFailed:
			status.Status = BatchStatusCompleted
		}
		final = status.Status
	})
	s.metrics.RecordBatchJob(final)
}

func (s *BatchService) update(batchID string, index int, fn func(*dto.BatchCohortStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.batches[batchID]
	if !ok || index < 0 || index >= len(state.cohorts) {
		return
	}
	fn(&state.cohorts[index])
}

func (s *BatchService) pruneLocked() {
	cutoff := s.now().Add(-s.retention)
	for id, state := range s.batches {
		if state.createdAt.Before(cutoff) && overallStatus(state.cohorts) != BatchStatusRunning && overallStatus(state.cohorts) != BatchStatusQueued {
			delete(s.batches, id)
		}
	}
}

// retryable reports whether a failed cohort may succeed on a later attempt.
func retryable(err error) bool {
	switch appErrors.FromError(err).Code {
	case appErrors.ErrLocked.Code, appErrors.ErrUnavailable.Code, appErrors.ErrInternal.Code:
		return true
	}
	return false
}

func overallStatus(cohorts []dto.BatchCohortStatus) string {
	var queued, running, completed, failed int
	for _, c := range cohorts {
		switch c.Status {
		case BatchStatusQueued:
			queued++
		case BatchStatusRunning:
			running++
		case BatchStatusCompleted:
			completed++
		case BatchStatusFailed:
			failed++
		}
	}
	switch {
	case running > 0 || (queued > 0 && completed+failed > 0):
		return BatchStatusRunning
	case queued > 0:
		return BatchStatusQueued
	case failed == 0:
		return BatchStatusCompleted
	case completed == 0:
		return BatchStatusFailed
	default:
		return BatchStatusPartial
	}
}
