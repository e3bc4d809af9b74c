package scheduler

import "strings"

// RejectReason explains why a candidate placement was refused.
type RejectReason string

const (
	ReasonNone                  RejectReason = ""
	ReasonInvalidCell           RejectReason = "invalid_cell"
	ReasonLunchCell             RejectReason = "lunch_cell"
	ReasonBlockedCell           RejectReason = "blocked_cell"
	ReasonElectiveCapacity      RejectReason = "elective_capacity"
	ReasonRoomBusy              RejectReason = "room_busy"
	ReasonInstructorBusy        RejectReason = "instructor_busy"
	ReasonInstructorUnavailable RejectReason = "instructor_unavailable"
	ReasonElectiveGroupClash    RejectReason = "elective_group_clash"
	ReasonExpertiseMismatch     RejectReason = "expertise_mismatch"
	ReasonWeeklyLoadExceeded    RejectReason = "weekly_load_exceeded"
	ReasonDailyLoadExceeded     RejectReason = "daily_load_exceeded"
	ReasonNoCompatibleRoom      RejectReason = "no_compatible_room"
	ReasonNoContiguousPair      RejectReason = "no_contiguous_pair"
	ReasonBudgetExhausted       RejectReason = "budget_exhausted"
	ReasonUnknownCourse         RejectReason = "unknown_course"
)

// Decision is the tagged result of an admission attempt.
type Decision struct {
	Accepted bool         `json:"accepted"`
	Reason   RejectReason `json:"reason,omitempty"`
}

// Accepted is the admitting decision.
func Accepted() Decision {
	return Decision{Accepted: true}
}

// Rejected refuses a placement for the given reason.
func Rejected(reason RejectReason) Decision {
	return Decision{Reason: reason}
}

// Candidate is a proposed placement of one course session.
type Candidate struct {
	Course      *Course
	Instructor  *Instructor
	Room        *Room
	Cell        Cell
	LabPosition LabPosition
}

// Slot converts the candidate into the slot it would commit.
func (c Candidate) Slot() ScheduledSlot {
	slot := ScheduledSlot{
		Day:         c.Cell.Day,
		Time:        c.Cell.Time,
		LabPosition: c.LabPosition,
	}
	if c.Course != nil {
		slot.CourseID = c.Course.ID
		slot.InstructorID = c.Course.InstructorID
		slot.ElectiveGroup = c.Course.ElectiveGroup
	}
	if c.Room != nil {
		slot.RoomID = c.Room.ID
	}
	return slot
}

// TryPlace runs the admission checks in fixed order and stops at the first
// failure. placed is the timetable under construction; rc.Existing is
// consulted alongside it. Neither is modified.
func TryPlace(c Candidate, placed []ScheduledSlot, rc RunContext, opts Options) Decision {
	if c.Course == nil || c.Room == nil {
		return Rejected(ReasonUnknownCourse)
	}
	if !c.Cell.Valid() {
		return Rejected(ReasonInvalidCell)
	}
	if IsLunch(c.Cell.Time) {
		return Rejected(ReasonLunchCell)
	}

	// 1. practicum / field-work cells
	if rc.IsBlocked(c.Cell) {
		return Rejected(ReasonBlockedCell)
	}

	// 2. elective capacity
	if c.Course.IsElective && c.Room.Capacity < rc.Enrollment[c.Course.ID] {
		return Rejected(ReasonElectiveCapacity)
	}

	// 3. room and instructor double-booking
	instructorID := c.Course.InstructorID
	var weekly, daily int
	var groupClash bool
	scan := func(slot ScheduledSlot) RejectReason {
		sameInstructor := instructorID != "" && slot.InstructorID == instructorID
		if sameInstructor {
			weekly++
			if slot.Day == c.Cell.Day {
				daily++
			}
		}
		if slot.Day != c.Cell.Day || slot.Time != c.Cell.Time {
			return ReasonNone
		}
		if slot.RoomID == c.Room.ID {
			return ReasonRoomBusy
		}
		if sameInstructor {
			return ReasonInstructorBusy
		}
		if c.Course.ElectiveGroup != "" && slot.ElectiveGroup == c.Course.ElectiveGroup && slot.CourseID != c.Course.ID {
			groupClash = true
		}
		return ReasonNone
	}
	for _, slot := range placed {
		if reason := scan(slot); reason != ReasonNone {
			return Rejected(reason)
		}
	}
	for _, slot := range rc.Existing {
		if reason := scan(slot); reason != ReasonNone {
			return Rejected(reason)
		}
	}
	if c.Instructor != nil && !c.Instructor.AvailableAt(c.Cell) {
		return Rejected(ReasonInstructorUnavailable)
	}

	// 4. elective group no-clash
	if opts.EnforceElectiveGroupNoClash && groupClash {
		return Rejected(ReasonElectiveGroupClash)
	}

	// 5. expertise
	if opts.EnforceExpertise && !hasExpertise(c.Instructor, c.Course) {
		return Rejected(ReasonExpertiseMismatch)
	}

	// 6. workload ceilings
	if opts.EnforceWorkload {
		if limit := opts.weeklyLimit(c.Instructor); limit > 0 && weekly >= limit {
			return Rejected(ReasonWeeklyLoadExceeded)
		}
		if limit := opts.dailyLimit(c.Instructor); limit > 0 && daily >= limit {
			return Rejected(ReasonDailyLoadExceeded)
		}
	}

	return Accepted()
}

// TryPlaceAll admits a group of candidates atomically: each one is checked
// against placed plus the group members before it, and the first rejection
// rejects the whole group.
func TryPlaceAll(candidates []Candidate, placed []ScheduledSlot, rc RunContext, opts Options) Decision {
	working := make([]ScheduledSlot, len(placed), len(placed)+len(candidates))
	copy(working, placed)
	for _, c := range candidates {
		decision := TryPlace(c, working, rc, opts)
		if !decision.Accepted {
			return decision
		}
		working = append(working, c.Slot())
	}
	return Accepted()
}

func hasExpertise(instructor *Instructor, course *Course) bool {
	if instructor == nil {
		return false
	}
	if len(instructor.Years) > 0 {
		teaches := false
		for _, y := range instructor.Years {
			if y == course.Year {
				teaches = true
				break
			}
		}
		if !teaches {
			return false
		}
	}
	category := course.CategoryOrPrefix()
	for _, tag := range instructor.Expertise {
		if strings.EqualFold(tag, course.Code) || (category != "" && strings.EqualFold(tag, category)) {
			return true
		}
	}
	return false
}
