package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/timetable-engine/internal/scheduler"
)

// TimetableStatus represents lifecycle phases of a stored timetable version.
type TimetableStatus string

const (
	TimetableStatusDraft     TimetableStatus = "DRAFT"
	TimetableStatusPublished TimetableStatus = "PUBLISHED"
	TimetableStatusArchived  TimetableStatus = "ARCHIVED"
)

// Timetable is one persisted version of a cohort timetable.
type Timetable struct {
	ID        string          `db:"id" json:"id"`
	Year      int             `db:"year" json:"year"`
	Branch    string          `db:"branch" json:"branch"`
	Division  string          `db:"division" json:"division"`
	Program   string          `db:"program" json:"program"`
	Version   int             `db:"version" json:"version"`
	Status    TimetableStatus `db:"status" json:"status"`
	Mode      string          `db:"mode" json:"mode"`
	Seed      int64           `db:"seed" json:"seed"`
	Meta      types.JSONText  `db:"meta" json:"meta"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// Cohort returns the engine cohort the version belongs to.
func (t Timetable) Cohort() scheduler.Cohort {
	return scheduler.Cohort{Year: t.Year, Branch: t.Branch, Division: t.Division, Program: t.Program}
}

// SetCohort copies the cohort fields onto the record.
func (t *Timetable) SetCohort(c scheduler.Cohort) {
	t.Year = c.Year
	t.Branch = c.Branch
	t.Division = c.Division
	t.Program = c.Program
}

// TimetableSlot is a placed session inside a stored version.
type TimetableSlot struct {
	ID            string    `db:"id" json:"id"`
	TimetableID   string    `db:"timetable_id" json:"timetable_id"`
	CourseID      string    `db:"course_id" json:"course_id"`
	InstructorID  string    `db:"instructor_id" json:"instructor_id"`
	ElectiveGroup string    `db:"elective_group" json:"elective_group"`
	Day           string    `db:"day" json:"day"`
	Time          string    `db:"time" json:"time"`
	RoomID        string    `db:"room_id" json:"room_id"`
	LabPosition   string    `db:"lab_position" json:"lab_position"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// ToScheduler converts the stored slot into the engine representation.
func (s TimetableSlot) ToScheduler() scheduler.ScheduledSlot {
	return scheduler.ScheduledSlot{
		CourseID:      s.CourseID,
		InstructorID:  s.InstructorID,
		ElectiveGroup: s.ElectiveGroup,
		Day:           scheduler.Day(s.Day),
		Time:          s.Time,
		RoomID:        s.RoomID,
		LabPosition:   scheduler.LabPosition(s.LabPosition),
	}
}

// SlotFromScheduler builds a storable slot for the given version.
func SlotFromScheduler(timetableID string, slot scheduler.ScheduledSlot) TimetableSlot {
	return TimetableSlot{
		TimetableID:   timetableID,
		CourseID:      slot.CourseID,
		InstructorID:  slot.InstructorID,
		ElectiveGroup: slot.ElectiveGroup,
		Day:           string(slot.Day),
		Time:          slot.Time,
		RoomID:        slot.RoomID,
		LabPosition:   string(slot.LabPosition),
	}
}

// ToSchedulerTimetable assembles the engine timetable of a stored version.
func ToSchedulerTimetable(t Timetable, slots []TimetableSlot) scheduler.Timetable {
	converted := make([]scheduler.ScheduledSlot, len(slots))
	for i, slot := range slots {
		converted[i] = slot.ToScheduler()
	}
	return scheduler.Timetable{Cohort: t.Cohort()}.Replace(converted)
}

// TimetableMeta is stored in the meta column of each version.
type TimetableMeta struct {
	Source   string              `json:"source"`
	ParentID string              `json:"parent_id,omitempty"`
	Phase    scheduler.Phase     `json:"phase,omitempty"`
	Unplaced []string            `json:"unplaced,omitempty"`
	Warnings []scheduler.Warning `json:"warnings,omitempty"`
	Moves    []scheduler.Move    `json:"moves,omitempty"`
	Stats    *scheduler.Stats    `json:"stats,omitempty"`
	Actor    string              `json:"actor,omitempty"`
}

// Version sources recorded in TimetableMeta.Source.
const (
	SourceGenerated = "generated"
	SourceEdited    = "edited"
	SourceResolved  = "resolved"
	SourceBatch     = "batch"
)
