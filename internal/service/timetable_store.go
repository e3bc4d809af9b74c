package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/timetable-engine/internal/dto"
	"github.com/noah-isme/timetable-engine/internal/models"
	"github.com/noah-isme/timetable-engine/internal/repository"
	"github.com/noah-isme/timetable-engine/internal/scheduler"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
)

type catalogReader interface {
	ListCourses(ctx context.Context, year int) ([]models.Course, error)
	ListRooms(ctx context.Context) ([]models.Room, error)
	ListInstructors(ctx context.Context) ([]models.Instructor, error)
	ListStudents(ctx context.Context, cohort scheduler.Cohort) ([]models.Student, error)
	ListPracticums(ctx context.Context, year int) ([]models.Practicum, error)
}

type timetableRepository interface {
	CreateVersioned(ctx context.Context, exec sqlx.ExtContext, timetable *models.Timetable) error
	ListByCohort(ctx context.Context, cohort scheduler.Cohort) ([]models.Timetable, error)
	FindByID(ctx context.Context, id string) (*models.Timetable, error)
	Delete(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.TimetableStatus, meta types.JSONText) error
	ArchivePublished(ctx context.Context, exec sqlx.ExtContext, cohort scheduler.Cohort) (int64, error)
}

type timetableSlotRepository interface {
	InsertBatch(ctx context.Context, exec sqlx.ExtContext, slots []models.TimetableSlot) error
	ListByTimetable(ctx context.Context, timetableID string) ([]models.TimetableSlot, error)
	ListPublishedExcluding(ctx context.Context, cohort scheduler.Cohort) ([]models.TimetableSlot, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// timetableStore bundles the reads and writes shared by the timetable,
// conflict and batch services.
type timetableStore struct {
	catalog    catalogReader
	timetables timetableRepository
	slots      timetableSlotRepository
	tx         txProvider
	metrics    *MetricsService
}

// acquireCohort takes the per-cohort run lock without waiting.
func acquireCohort(ctx context.Context, locker cohortLocker, cohort scheduler.Cohort) (func(), error) {
	release, err := locker.Acquire(ctx, cohort.Key())
	if err != nil {
		if errors.Is(err, repository.ErrLockHeld) {
			return nil, appErrors.Clone(appErrors.ErrLocked, fmt.Sprintf("cohort %s is being scheduled by another request", cohort.Key()))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to acquire cohort lock")
	}
	return release, nil
}

func normalizeCohort(c scheduler.Cohort) scheduler.Cohort {
	return scheduler.Cohort{
		Year:     c.Year,
		Branch:   strings.ToUpper(strings.TrimSpace(c.Branch)),
		Division: strings.ToUpper(strings.TrimSpace(c.Division)),
		Program:  strings.ToUpper(strings.TrimSpace(c.Program)),
	}
}

// loadInput assembles the engine snapshot for a cohort from the catalog and
// the published timetables of every other cohort.
func (s *timetableStore) loadInput(ctx context.Context, cohort scheduler.Cohort) (scheduler.Input, error) {
	in := scheduler.Input{Cohort: cohort}

	courses, err := s.catalog.ListCourses(ctx, cohort.Year)
	if err != nil {
		return in, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}
	rooms, err := s.catalog.ListRooms(ctx)
	if err != nil {
		return in, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rooms")
	}
	instructors, err := s.catalog.ListInstructors(ctx)
	if err != nil {
		return in, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructors")
	}
	students, err := s.catalog.ListStudents(ctx, cohort)
	if err != nil {
		return in, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	practicums, err := s.catalog.ListPracticums(ctx, cohort.Year)
	if err != nil {
		return in, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load practicums")
	}
	existing, err := s.slots.ListPublishedExcluding(ctx, cohort)
	if err != nil {
		return in, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load published timetables")
	}

	for _, course := range courses {
		in.Courses = append(in.Courses, course.ToScheduler())
	}
	for _, room := range rooms {
		in.Rooms = append(in.Rooms, room.ToScheduler())
	}
	for _, instructor := range instructors {
		converted, convErr := instructor.ToScheduler()
		if convErr != nil {
			return in, appErrors.Wrap(convErr, appErrors.ErrPreconditionFailed.Code, appErrors.ErrPreconditionFailed.Status, "instructor availability is malformed")
		}
		in.Instructors = append(in.Instructors, converted)
	}
	for _, student := range students {
		in.Students = append(in.Students, student.ToScheduler())
	}
	for _, practicum := range practicums {
		in.Practicums = append(in.Practicums, practicum.ToScheduler())
	}
	for _, slot := range existing {
		in.Existing = append(in.Existing, slot.ToScheduler())
	}
	return in, nil
}

// loadTimetable fetches a stored version together with its slots.
func (s *timetableStore) loadTimetable(ctx context.Context, id string) (*models.Timetable, []models.TimetableSlot, error) {
	record, err := s.timetables.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	slots, err := s.slots.ListByTimetable(ctx, id)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable slots")
	}
	return record, slots, nil
}

// writeVersion persists a timetable as a new DRAFT version of its cohort.
func (s *timetableStore) writeVersion(ctx context.Context, tt scheduler.Timetable, mode scheduler.FillMode, seed int64, meta models.TimetableMeta) (*models.Timetable, error) {
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	metaBytes, marshalErr := json.Marshal(meta)
	if marshalErr != nil {
		return nil, appErrors.Wrap(marshalErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode timetable metadata")
	}

	started := time.Now()
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	record := &models.Timetable{
		Status: models.TimetableStatusDraft,
		Mode:   string(mode),
		Seed:   seed,
		Meta:   types.JSONText(metaBytes),
	}
	record.SetCohort(tt.Cohort)

	if err = s.timetables.CreateVersioned(ctx, tx, record); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timetable version")
		return nil, err
	}

	rows := make([]models.TimetableSlot, 0, len(tt.Slots))
	for _, slot := range tt.Slots {
		rows = append(rows, models.SlotFromScheduler(record.ID, slot))
	}
	if err = s.slots.InsertBatch(ctx, tx, rows); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist timetable slots")
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable transaction")
		return nil, err
	}
	s.metrics.ObserveDBQuery("write_timetable_version", time.Since(started))
	return record, nil
}

func decodeMeta(raw types.JSONText) models.TimetableMeta {
	var meta models.TimetableMeta
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &meta)
	}
	return meta
}

// engineError maps engine failures onto API errors.
func engineError(err error) error {
	var missing *scheduler.MissingResourceError
	if errors.As(err, &missing) {
		wrapped := appErrors.Wrap(err, appErrors.ErrPreconditionFailed.Code, appErrors.ErrPreconditionFailed.Status, missing.Error())
		return appErrors.WithDetails(wrapped, map[string]string{"missing": string(missing.Kind), "cohort": missing.Cohort.Key()})
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("timetable generation failed: %v", err))
}

// snapshotInput converts an inline snapshot into engine input.
func snapshotInput(cohort scheduler.Cohort, snap *dto.SnapshotPayload) scheduler.Input {
	return scheduler.Input{
		Cohort:      cohort,
		Courses:     snap.Courses,
		Rooms:       snap.Rooms,
		Instructors: snap.Instructors,
		Students:    snap.Students,
		Practicums:  snap.Practicums,
	}
}
