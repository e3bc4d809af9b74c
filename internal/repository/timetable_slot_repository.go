package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timetable-engine/internal/models"
	"github.com/noah-isme/timetable-engine/internal/scheduler"
)

const slotColumns = `id, timetable_id, course_id, instructor_id, elective_group, day, time, room_id, lab_position, created_at`

// TimetableSlotRepository manages slots of stored timetable versions.
type TimetableSlotRepository struct {
	db *sqlx.DB
}

// NewTimetableSlotRepository builds repository.
func NewTimetableSlotRepository(db *sqlx.DB) *TimetableSlotRepository {
	return &TimetableSlotRepository{db: db}
}

func (r *TimetableSlotRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// InsertBatch stores the slots of a freshly created version.
func (r *TimetableSlotRepository) InsertBatch(ctx context.Context, exec sqlx.ExtContext, slots []models.TimetableSlot) error {
	if len(slots) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `
INSERT INTO timetable_slots (` + slotColumns + `)
VALUES (:id, :timetable_id, :course_id, :instructor_id, :elective_group, :day, :time, :room_id, :lab_position, :created_at)`

	for i := range slots {
		slot := &slots[i]
		if slot.ID == "" {
			slot.ID = uuid.NewString()
		}
		if slot.CreatedAt.IsZero() {
			slot.CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, slot); err != nil {
			return fmt.Errorf("insert timetable slot: %w", err)
		}
	}
	return nil
}

// ListByTimetable returns the slots of a version.
func (r *TimetableSlotRepository) ListByTimetable(ctx context.Context, timetableID string) ([]models.TimetableSlot, error) {
	const query = `SELECT ` + slotColumns + `
FROM timetable_slots WHERE timetable_id = $1 ORDER BY day ASC, time ASC, room_id ASC`
	var slots []models.TimetableSlot
	if err := r.db.SelectContext(ctx, &slots, query, timetableID); err != nil {
		return nil, fmt.Errorf("list timetable slots: %w", err)
	}
	return slots, nil
}

// ListPublishedExcluding returns the slots of every published version that
// belongs to a cohort other than the given one.
func (r *TimetableSlotRepository) ListPublishedExcluding(ctx context.Context, cohort scheduler.Cohort) ([]models.TimetableSlot, error) {
	const query = `SELECT s.id, s.timetable_id, s.course_id, s.instructor_id, s.elective_group, s.day, s.time, s.room_id, s.lab_position, s.created_at
FROM timetable_slots s JOIN timetables t ON t.id = s.timetable_id
WHERE t.status = $1 AND NOT (t.year = $2 AND t.branch = $3 AND t.division = $4 AND t.program = $5)`
	var slots []models.TimetableSlot
	if err := r.db.SelectContext(ctx, &slots, query, models.TimetableStatusPublished, cohort.Year, cohort.Branch, cohort.Division, cohort.Program); err != nil {
		return nil, fmt.Errorf("list published slots: %w", err)
	}
	return slots, nil
}
