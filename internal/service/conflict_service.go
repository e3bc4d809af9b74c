package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/timetable-engine/internal/dto"
	"github.com/noah-isme/timetable-engine/internal/models"
	"github.com/noah-isme/timetable-engine/internal/repository"
	"github.com/noah-isme/timetable-engine/internal/scheduler"
)

func conflictCacheKey(timetableID string) string {
	return "conflicts:" + timetableID
}

// ConflictServiceConfig tunes conflict report caching.
type ConflictServiceConfig struct {
	CacheTTL time.Duration
	Options  scheduler.Options
}

// ConflictService reports and repairs double bookings in stored versions.
type ConflictService struct {
	store   *timetableStore
	locker  cohortLocker
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
	cfg     ConflictServiceConfig
}

// NewConflictService wires conflict dependencies.
func NewConflictService(
	catalog catalogReader,
	timetables timetableRepository,
	slots timetableSlotRepository,
	locker cohortLocker,
	tx txProvider,
	cache *CacheService,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg ConflictServiceConfig,
) *ConflictService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = repository.NewCohortLockRepository(nil, 0)
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.Options.Mode == "" {
		cfg.Options = scheduler.DefaultOptions()
	}
	return &ConflictService{
		store: &timetableStore{
			catalog:    catalog,
			timetables: timetables,
			slots:      slots,
			tx:         tx,
			metrics:    metrics,
		},
		locker:  locker,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
	}
}

// Detect returns the conflict report of a stored version. Versions are
// immutable, so reports are cached by timetable id.
func (s *ConflictService) Detect(ctx context.Context, id string) (*dto.ConflictReportResponse, error) {
	var cached dto.ConflictReportResponse
	if hit, err := s.cache.Get(ctx, conflictCacheKey(id), &cached); err == nil && hit {
		cached.Cached = true
		return &cached, nil
	}

	record, slots, err := s.store.loadTimetable(ctx, id)
	if err != nil {
		return nil, err
	}
	report := scheduler.Detect(models.ToSchedulerTimetable(*record, slots))
	s.metrics.RecordConflicts(countByType(report.Conflicts))

	resp := &dto.ConflictReportResponse{
		TimetableID:    record.ID,
		Conflicts:      report.Conflicts,
		AvailableCells: report.AvailableCells,
	}
	if err := s.cache.Set(ctx, conflictCacheKey(id), resp, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("cache conflict report", zap.String("timetable_id", id), zap.Error(err))
	}
	return resp, nil
}

// Resolve relocates conflicting slots and, when anything moved, stores the
// repaired timetable as a new DRAFT version.
func (s *ConflictService) Resolve(ctx context.Context, id, actor string) (*dto.ResolveResponse, error) {
	record, slots, err := s.store.loadTimetable(ctx, id)
	if err != nil {
		return nil, err
	}
	tt := models.ToSchedulerTimetable(*record, slots)
	report := scheduler.Detect(tt)
	if len(report.Conflicts) == 0 {
		return &dto.ResolveResponse{Moves: []scheduler.Move{}, Unresolved: []scheduler.ConflictRecord{}}, nil
	}

	cohort := record.Cohort()
	release, err := acquireCohort(ctx, s.locker, cohort)
	if err != nil {
		return nil, err
	}
	defer release()

	in, err := s.store.loadInput(ctx, cohort)
	if err != nil {
		return nil, err
	}
	in.Options = s.cfg.Options
	in.Options.Mode = scheduler.FillMode(record.Mode)

	resolution := scheduler.Resolve(in, tt, report.Conflicts)
	resp := &dto.ResolveResponse{Moves: resolution.Moves, Unresolved: resolution.Unresolved}
	if len(resolution.Moves) == 0 {
		return resp, nil
	}

	parentMeta := decodeMeta(record.Meta)
	next, err := s.store.writeVersion(ctx, resolution.Timetable, scheduler.FillMode(record.Mode), record.Seed, models.TimetableMeta{
		Source:   models.SourceResolved,
		ParentID: record.ID,
		Phase:    parentMeta.Phase,
		Moves:    resolution.Moves,
		Actor:    actor,
	})
	if err != nil {
		return nil, err
	}
	resp.Timetable = next
	s.logger.Info("timetable conflicts resolved",
		zap.String("parent_id", record.ID),
		zap.String("timetable_id", next.ID),
		zap.Int("moves", len(resolution.Moves)),
		zap.Int("unresolved", len(resolution.Unresolved)),
	)
	return resp, nil
}

func countByType(conflicts []scheduler.ConflictRecord) map[string]int {
	counts := make(map[string]int)
	for _, conflict := range conflicts {
		counts[string(conflict.Type)]++
	}
	return counts
}
