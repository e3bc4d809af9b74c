package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-engine/internal/dto"
	"github.com/noah-isme/timetable-engine/internal/models"
	"github.com/noah-isme/timetable-engine/internal/repository"
	"github.com/noah-isme/timetable-engine/internal/scheduler"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
)

type cohortLocker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

type timetableEngine interface {
	Generate(in scheduler.Input) (*scheduler.Result, error)
}

// TimetableServiceConfig governs defaults applied to engine runs.
type TimetableServiceConfig struct {
	// DefaultSeed is used when a request carries none; zero draws one from the clock.
	DefaultSeed    int64
	DefaultOptions scheduler.Options
}

// TimetableService runs the engine for cohorts and manages stored versions.
type TimetableService struct {
	store     *timetableStore
	locker    cohortLocker
	engine    timetableEngine
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       TimetableServiceConfig
}

// NewTimetableService wires timetable dependencies.
func NewTimetableService(
	catalog catalogReader,
	timetables timetableRepository,
	slots timetableSlotRepository,
	locker cohortLocker,
	engine timetableEngine,
	tx txProvider,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableServiceConfig,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if engine == nil {
		engine = scheduler.New(scheduler.Config{Logger: logger})
	}
	if locker == nil {
		locker = repository.NewCohortLockRepository(nil, 0)
	}
	if cfg.DefaultOptions.Mode == "" {
		cfg.DefaultOptions = scheduler.DefaultOptions()
	}
	return &TimetableService{
		store: &timetableStore{
			catalog:    catalog,
			timetables: timetables,
			slots:      slots,
			tx:         tx,
			metrics:    metrics,
		},
		locker:    locker,
		engine:    engine,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

func (s *TimetableService) seed(requested *int64) int64 {
	if requested != nil {
		return *requested
	}
	if s.cfg.DefaultSeed != 0 {
		return s.cfg.DefaultSeed
	}
	return time.Now().UnixNano()
}

func (s *TimetableService) options(requested *scheduler.Options) scheduler.Options {
	if requested != nil {
		return *requested
	}
	return s.cfg.DefaultOptions
}

func (s *TimetableService) run(in scheduler.Input) (*scheduler.Result, error) {
	started := time.Now()
	result, err := s.engine.Generate(in)
	if err != nil {
		s.metrics.ObserveGeneration(string(in.Options.Mode), string(scheduler.PhaseFailed), time.Since(started), 0)
		return nil, engineError(err)
	}
	s.metrics.ObserveGeneration(string(result.Mode), string(result.Phase), time.Since(started), len(result.Unplaced))
	return result, nil
}

// Generate schedules a cohort against the stored catalog and persists the
// result as a new DRAFT version. Only one run per cohort proceeds at a time.
func (s *TimetableService) Generate(ctx context.Context, req dto.GenerateTimetableRequest, actor string) (*dto.GenerationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable generation payload")
	}
	cohort := normalizeCohort(req.Cohort)

	release, err := acquireCohort(ctx, s.locker, cohort)
	if err != nil {
		return nil, err
	}
	defer release()

	return s.generateLocked(ctx, cohort, s.seed(req.Seed), s.options(req.Options), models.SourceGenerated, actor)
}

func (s *TimetableService) generateLocked(ctx context.Context, cohort scheduler.Cohort, seed int64, opts scheduler.Options, source, actor string) (*dto.GenerationResponse, error) {
	in, err := s.store.loadInput(ctx, cohort)
	if err != nil {
		return nil, err
	}
	in.Options = opts
	in.Seed = seed

	result, err := s.run(in)
	if err != nil {
		return nil, err
	}

	stats := result.Stats
	record, err := s.store.writeVersion(ctx, result.Timetable, result.Mode, result.Seed, models.TimetableMeta{
		Source:   source,
		Phase:    result.Phase,
		Unplaced: result.Unplaced,
		Warnings: result.Warnings,
		Stats:    &stats,
		Actor:    actor,
	})
	if err != nil {
		return nil, err
	}
	if err := result.Commit(); err != nil {
		s.logger.Warn("commit generation result", zap.String("timetable_id", record.ID), zap.Error(err))
	}

	s.logger.Info("timetable generated",
		zap.String("cohort", cohort.Key()),
		zap.String("timetable_id", record.ID),
		zap.Int("version", record.Version),
		zap.Int("slots", len(result.Timetable.Slots)),
		zap.Int("unplaced", len(result.Unplaced)),
		zap.Int64("seed", result.Seed),
	)
	return dto.NewGenerationResponse(result, record), nil
}

// Simulate runs the engine without persisting. An inline snapshot replaces
// the stored catalog; otherwise published timetables of other cohorts are
// honoured as in Generate.
func (s *TimetableService) Simulate(ctx context.Context, req dto.SimulateTimetableRequest) (*dto.GenerationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid simulation payload")
	}
	in, err := s.simulationInput(ctx, normalizeCohort(req.Cohort), req.Snapshot)
	if err != nil {
		return nil, err
	}
	in.Options = s.options(req.Options)
	in.Seed = s.seed(req.Seed)

	result, err := s.run(in)
	if err != nil {
		return nil, err
	}
	return dto.NewGenerationResponse(result, nil), nil
}

// Scenario patches the cohort snapshot and simulates the outcome.
func (s *TimetableService) Scenario(ctx context.Context, req dto.ScenarioRequest) (*dto.GenerationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scenario payload")
	}
	in, err := s.simulationInput(ctx, normalizeCohort(req.Cohort), req.Snapshot)
	if err != nil {
		return nil, err
	}
	in.Options = s.options(req.Options)
	in.Seed = s.seed(req.Seed)

	patched := scheduler.ApplyScenario(in, req.Scenario)
	s.logger.Debug("running scenario",
		zap.String("cohort", in.Cohort.Key()),
		zap.String("scenario", req.Scenario.Name),
		zap.Int("courses", len(patched.Courses)),
		zap.Int("rooms", len(patched.Rooms)),
	)

	result, err := s.run(patched)
	if err != nil {
		return nil, err
	}
	return dto.NewGenerationResponse(result, nil), nil
}

func (s *TimetableService) simulationInput(ctx context.Context, cohort scheduler.Cohort, snap *dto.SnapshotPayload) (scheduler.Input, error) {
	if snap != nil {
		return snapshotInput(cohort, snap), nil
	}
	return s.store.loadInput(ctx, cohort)
}

// List returns all versions of a cohort, newest first.
func (s *TimetableService) List(ctx context.Context, query dto.TimetableQuery) ([]models.Timetable, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable query")
	}
	items, err := s.store.timetables.ListByCohort(ctx, normalizeCohort(query.Cohort()))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetables")
	}
	return items, nil
}

// Get returns a stored version with its slots.
func (s *TimetableService) Get(ctx context.Context, id string) (*dto.TimetableDetail, error) {
	record, slots, err := s.store.loadTimetable(ctx, id)
	if err != nil {
		return nil, err
	}
	if slots == nil {
		slots = []models.TimetableSlot{}
	}
	return &dto.TimetableDetail{Timetable: *record, Slots: slots}, nil
}

// Load returns a stored version in engine form along with its course catalog.
func (s *TimetableService) Load(ctx context.Context, id string) (*models.Timetable, scheduler.Timetable, []scheduler.Course, error) {
	record, slots, err := s.store.loadTimetable(ctx, id)
	if err != nil {
		return nil, scheduler.Timetable{}, nil, err
	}
	courses, err := s.store.catalog.ListCourses(ctx, record.Year)
	if err != nil {
		return nil, scheduler.Timetable{}, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}
	converted := make([]scheduler.Course, 0, len(courses))
	for _, course := range courses {
		converted = append(converted, course.ToScheduler())
	}
	return record, models.ToSchedulerTimetable(*record, slots), converted, nil
}

// UpdateSlots stores a manual edit of a version as a new DRAFT version.
// Instructor and elective group are taken from the course catalog.
func (s *TimetableService) UpdateSlots(ctx context.Context, id string, req dto.UpdateSlotsRequest, actor string) (*models.Timetable, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot update payload")
	}
	parent, err := s.store.timetables.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "timetable not found", "failed to load timetable")
	}
	if parent.Status == models.TimetableStatusArchived {
		return nil, appErrors.Clone(appErrors.ErrConflict, "archived timetables cannot be edited")
	}
	cohort := parent.Cohort()

	courses, err := s.store.catalog.ListCourses(ctx, cohort.Year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}
	byID := make(map[string]scheduler.Course, len(courses))
	for _, course := range courses {
		converted := course.ToScheduler()
		if cohort.Includes(converted.Year, converted.Branch, converted.Division, converted.Program) {
			byID[converted.ID] = converted
		}
	}

	slots := make([]scheduler.ScheduledSlot, 0, len(req.Slots))
	for i, input := range req.Slots {
		slot, slotErr := slotFromInput(input, byID)
		if slotErr != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("slots[%d]: %v", i, slotErr))
		}
		slots = append(slots, slot)
	}

	release, err := acquireCohort(ctx, s.locker, cohort)
	if err != nil {
		return nil, err
	}
	defer release()

	parentMeta := decodeMeta(parent.Meta)
	tt := scheduler.Timetable{Cohort: cohort}.Replace(slots)
	record, err := s.store.writeVersion(ctx, tt, scheduler.FillMode(parent.Mode), parent.Seed, models.TimetableMeta{
		Source:   models.SourceEdited,
		ParentID: parent.ID,
		Phase:    parentMeta.Phase,
		Actor:    actor,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("timetable edited", zap.String("parent_id", parent.ID), zap.String("timetable_id", record.ID), zap.Int("slots", len(slots)))
	return record, nil
}

func slotFromInput(input dto.SlotInput, courses map[string]scheduler.Course) (scheduler.ScheduledSlot, error) {
	course, ok := courses[input.CourseID]
	if !ok {
		return scheduler.ScheduledSlot{}, fmt.Errorf("course %s is not offered to this cohort", input.CourseID)
	}
	day, ok := scheduler.ParseDay(input.Day)
	if !ok {
		return scheduler.ScheduledSlot{}, fmt.Errorf("unknown day %q", input.Day)
	}
	t, ok := scheduler.NormalizeTime(input.Time)
	if !ok {
		return scheduler.ScheduledSlot{}, fmt.Errorf("invalid time %q", input.Time)
	}
	if scheduler.IsLunch(t) {
		return scheduler.ScheduledSlot{}, fmt.Errorf("%s is reserved for lunch", t)
	}
	return scheduler.ScheduledSlot{
		CourseID:      course.ID,
		InstructorID:  course.InstructorID,
		ElectiveGroup: course.ElectiveGroup,
		Day:           day,
		Time:          t,
		RoomID:        input.RoomID,
		LabPosition:   scheduler.LabPosition(input.LabPosition),
	}, nil
}

// Delete removes a DRAFT version.
func (s *TimetableService) Delete(ctx context.Context, id string) error {
	record, err := s.store.timetables.FindByID(ctx, id)
	if err != nil {
		return notFoundOr(err, "timetable not found", "failed to load timetable")
	}
	if record.Status != models.TimetableStatusDraft {
		return appErrors.Clone(appErrors.ErrConflict, "only draft timetables can be deleted")
	}
	if err := s.store.timetables.Delete(ctx, id); err != nil {
		return notFoundOr(err, "timetable not found", "failed to delete timetable")
	}
	if err := s.cache.Invalidate(ctx, conflictCacheKey(id)); err != nil {
		s.logger.Warn("invalidate conflict report", zap.String("timetable_id", id), zap.Error(err))
	}
	return nil
}

// Publish makes a version the cohort's published timetable, archiving the
// previous one in the same transaction.
func (s *TimetableService) Publish(ctx context.Context, id, actor string) (*models.Timetable, error) {
	record, err := s.store.timetables.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "timetable not found", "failed to load timetable")
	}
	switch record.Status {
	case models.TimetableStatusPublished:
		return record, nil
	case models.TimetableStatusArchived:
		return nil, appErrors.Clone(appErrors.ErrConflict, "archived timetables cannot be published")
	}
	if s.store.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	cohort := record.Cohort()
	release, err := acquireCohort(ctx, s.locker, cohort)
	if err != nil {
		return nil, err
	}
	defer release()

	meta := decodeMeta(record.Meta)
	if actor != "" {
		meta.Actor = actor
	}
	metaBytes, marshalErr := json.Marshal(meta)
	if marshalErr != nil {
		return nil, appErrors.Wrap(marshalErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode timetable metadata")
	}

	tx, err := s.store.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	archived, err := s.store.timetables.ArchivePublished(ctx, tx, cohort)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive published timetable")
		return nil, err
	}
	if err = s.store.timetables.UpdateStatus(ctx, tx, record.ID, models.TimetableStatusPublished, types.JSONText(metaBytes)); err != nil {
		err = notFoundOr(err, "timetable not found", "failed to publish timetable")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit publish transaction")
		return nil, err
	}

	record.Status = models.TimetableStatusPublished
	record.Meta = types.JSONText(metaBytes)
	s.logger.Info("timetable published",
		zap.String("cohort", cohort.Key()),
		zap.String("timetable_id", record.ID),
		zap.Int64("archived", archived),
	)
	return record, nil
}

func notFoundOr(err error, notFound, internal string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internal)
}
