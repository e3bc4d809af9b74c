package dto

import (
	"github.com/noah-isme/timetable-engine/internal/models"
	"github.com/noah-isme/timetable-engine/internal/scheduler"
)

// SnapshotPayload carries inline catalog data for what-if runs. When present
// it replaces the stored catalog for the request.
type SnapshotPayload struct {
	Courses     []scheduler.Course       `json:"courses" validate:"required,min=1"`
	Rooms       []scheduler.Room         `json:"rooms" validate:"required,min=1"`
	Instructors []scheduler.Instructor   `json:"instructors" validate:"required,min=1"`
	Students    []scheduler.Student      `json:"students"`
	Practicums  []scheduler.BlockedRange `json:"practicums"`
}

// GenerateTimetableRequest asks for a new persisted version of a cohort timetable.
type GenerateTimetableRequest struct {
	Cohort  scheduler.Cohort   `json:"cohort" validate:"required"`
	Seed    *int64             `json:"seed"`
	Options *scheduler.Options `json:"options"`
}

// SimulateTimetableRequest runs the engine without persisting the result.
type SimulateTimetableRequest struct {
	Cohort   scheduler.Cohort   `json:"cohort" validate:"required"`
	Seed     *int64             `json:"seed"`
	Options  *scheduler.Options `json:"options"`
	Snapshot *SnapshotPayload   `json:"snapshot"`
}

// ScenarioRequest applies a patch to the cohort snapshot before simulating.
type ScenarioRequest struct {
	Cohort   scheduler.Cohort   `json:"cohort" validate:"required"`
	Seed     *int64             `json:"seed"`
	Options  *scheduler.Options `json:"options"`
	Scenario scheduler.Scenario `json:"scenario"`
	Snapshot *SnapshotPayload   `json:"snapshot"`
}

// BatchGenerateRequest enqueues generation for several cohorts.
type BatchGenerateRequest struct {
	Cohorts []scheduler.Cohort `json:"cohorts" validate:"required,min=1,max=50,dive"`
	Seed    *int64             `json:"seed"`
	Options *scheduler.Options `json:"options"`
}

// TimetableQuery filters stored versions by cohort.
type TimetableQuery struct {
	Year     int    `form:"year" json:"year" validate:"required,min=1"`
	Branch   string `form:"branch" json:"branch" validate:"required"`
	Division string `form:"division" json:"division" validate:"required"`
	Program  string `form:"program" json:"program" validate:"required"`
}

// Cohort converts the query into an engine cohort.
func (q TimetableQuery) Cohort() scheduler.Cohort {
	return scheduler.Cohort{Year: q.Year, Branch: q.Branch, Division: q.Division, Program: q.Program}
}

// SlotInput is one slot in a manual edit.
type SlotInput struct {
	CourseID    string `json:"courseId" validate:"required"`
	Day         string `json:"day" validate:"required"`
	Time        string `json:"time" validate:"required"`
	RoomID      string `json:"roomId" validate:"required"`
	LabPosition string `json:"labPosition" validate:"omitempty,oneof=first second"`
}

// UpdateSlotsRequest replaces the slots of a version, producing a new version.
type UpdateSlotsRequest struct {
	Slots []SlotInput `json:"slots" validate:"required,min=1,dive"`
}

// GenerationResponse reports an engine run and, when persisted, the stored version.
type GenerationResponse struct {
	Timetable *models.Timetable         `json:"timetable,omitempty"`
	Cohort    scheduler.Cohort          `json:"cohort"`
	Slots     []scheduler.ScheduledSlot `json:"slots"`
	Unplaced  []string                  `json:"unplaced"`
	Warnings  []scheduler.Warning       `json:"warnings"`
	Phase     scheduler.Phase           `json:"phase"`
	Mode      scheduler.FillMode        `json:"mode"`
	Seed      int64                     `json:"seed"`
	Stats     scheduler.Stats           `json:"stats"`
}

// NewGenerationResponse flattens an engine result.
func NewGenerationResponse(result *scheduler.Result, record *models.Timetable) *GenerationResponse {
	return &GenerationResponse{
		Timetable: record,
		Cohort:    result.Timetable.Cohort,
		Slots:     result.Timetable.Slots,
		Unplaced:  result.Unplaced,
		Warnings:  result.Warnings,
		Phase:     result.Phase,
		Mode:      result.Mode,
		Seed:      result.Seed,
		Stats:     result.Stats,
	}
}

// TimetableDetail is a stored version with its slots.
type TimetableDetail struct {
	Timetable models.Timetable       `json:"timetable"`
	Slots     []models.TimetableSlot `json:"slots"`
}

// ConflictReportResponse is the detector output for a stored version.
type ConflictReportResponse struct {
	TimetableID    string                     `json:"timetableId"`
	Conflicts      []scheduler.ConflictRecord `json:"conflicts"`
	AvailableCells []scheduler.Cell           `json:"availableCells"`
	Cached         bool                       `json:"cached"`
}

// ResolveResponse reports the relocations applied to a stored version.
type ResolveResponse struct {
	Timetable  *models.Timetable          `json:"timetable,omitempty"`
	Moves      []scheduler.Move           `json:"moves"`
	Unresolved []scheduler.ConflictRecord `json:"unresolved"`
}

// BatchCohortStatus tracks one cohort inside a batch job.
type BatchCohortStatus struct {
	Cohort      scheduler.Cohort `json:"cohort"`
	Status      string           `json:"status"`
	TimetableID string           `json:"timetableId,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// BatchJobResponse reports the progress of a batch job.
type BatchJobResponse struct {
	JobID   string              `json:"jobId"`
	Status  string              `json:"status"`
	Cohorts []BatchCohortStatus `json:"cohorts"`
}

// ExportQuery selects the export format.
type ExportQuery struct {
	Format string `form:"format" validate:"omitempty,oneof=csv pdf xlsx"`
}
