package scheduler

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// LectureType separates single-slot theory courses from two-slot labs.
type LectureType string

const (
	LectureTheory LectureType = "theory"
	LectureLab    LectureType = "lab"
)

// RoomType classifies rooms for placement compatibility.
type RoomType string

const (
	RoomClassroom   RoomType = "classroom"
	RoomLectureHall RoomType = "lecture-hall"
	RoomLab         RoomType = "lab"
)

// LabPosition marks which half of a lab session a slot holds.
type LabPosition string

const (
	LabNone   LabPosition = ""
	LabFirst  LabPosition = "first"
	LabSecond LabPosition = "second"
)

// Cohort identifies the (year, branch, division, program) group sharing one timetable.
type Cohort struct {
	Year     int    `json:"year" yaml:"year" validate:"required,min=1"`
	Branch   string `json:"branch" yaml:"branch" validate:"required"`
	Division string `json:"division" yaml:"division" validate:"required"`
	Program  string `json:"program" yaml:"program" validate:"required"`
}

// Key renders a stable identifier, e.g. "2/CSE/A/BTECH".
func (c Cohort) Key() string {
	return fmt.Sprintf("%d/%s/%s/%s", c.Year, strings.ToUpper(c.Branch), strings.ToUpper(c.Division), strings.ToUpper(c.Program))
}

// Includes reports whether a record tagged with the given cohort fields belongs
// to c. Zero-valued fields on the record act as wildcards.
func (c Cohort) Includes(year int, branch, division, program string) bool {
	if year != 0 && year != c.Year {
		return false
	}
	if branch != "" && !strings.EqualFold(branch, c.Branch) {
		return false
	}
	if division != "" && !strings.EqualFold(division, c.Division) {
		return false
	}
	if program != "" && !strings.EqualFold(program, c.Program) {
		return false
	}
	return true
}

// Course is a schedulable offering for a cohort.
type Course struct {
	ID             string      `json:"id" yaml:"id"`
	Name           string      `json:"name" yaml:"name"`
	Code           string      `json:"code" yaml:"code"`
	Category       string      `json:"category,omitempty" yaml:"category,omitempty"`
	InstructorID   string      `json:"instructorId" yaml:"instructorId"`
	Duration       int         `json:"duration" yaml:"duration"`
	Capacity       int         `json:"capacity" yaml:"capacity"`
	Year           int         `json:"year" yaml:"year"`
	Branch         string      `json:"branch" yaml:"branch"`
	Division       string      `json:"division" yaml:"division"`
	LectureType    LectureType `json:"lectureType" yaml:"lectureType"`
	PreferredSlots []string    `json:"preferredTimeSlots,omitempty" yaml:"preferredTimeSlots,omitempty"`
	Credits        int         `json:"credits" yaml:"credits"`
	Program        string      `json:"program" yaml:"program"`
	IsElective     bool        `json:"isElective" yaml:"isElective"`
	ElectiveGroup  string      `json:"electiveGroup,omitempty" yaml:"electiveGroup,omitempty"`
}

// IsLab reports whether the course needs a two-slot lab session.
func (c Course) IsLab() bool {
	return c.LectureType == LectureLab
}

// CategoryOrPrefix returns the explicit category or the alphabetic prefix of the code.
func (c Course) CategoryOrPrefix() string {
	if c.Category != "" {
		return c.Category
	}
	end := strings.IndexFunc(c.Code, func(r rune) bool { return !unicode.IsLetter(r) })
	if end < 0 {
		return c.Code
	}
	return c.Code[:end]
}

// Room is a bookable teaching space.
type Room struct {
	ID           string   `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	Capacity     int      `json:"capacity" yaml:"capacity"`
	Type         RoomType `json:"type" yaml:"type"`
	Department   string   `json:"department" yaml:"department"`
	AllowedYears []int    `json:"allowedYears,omitempty" yaml:"allowedYears,omitempty"`
	Available    bool     `json:"available" yaml:"available"`
}

// AllowsYear reports whether the room accepts the given study year.
func (r Room) AllowsYear(year int) bool {
	if len(r.AllowedYears) == 0 {
		return true
	}
	for _, y := range r.AllowedYears {
		if y == year {
			return true
		}
	}
	return false
}

// Instructor teaches courses subject to availability and load ceilings.
type Instructor struct {
	ID            string           `json:"id" yaml:"id"`
	Name          string           `json:"name" yaml:"name"`
	Department    string           `json:"department" yaml:"department"`
	Years         []int            `json:"years,omitempty" yaml:"years,omitempty"`
	Expertise     []string         `json:"expertise,omitempty" yaml:"expertise,omitempty"`
	Availability  map[Day][]string `json:"availability,omitempty" yaml:"availability,omitempty"`
	MaxWeeklyLoad int              `json:"maxWeeklyLoad" yaml:"maxWeeklyLoad"`
	MaxDailyLoad  int              `json:"maxDailyLoad" yaml:"maxDailyLoad"`
}

// AvailableAt reports whether the instructor may teach in the cell. Days absent
// from a non-empty availability map are treated as fully available.
func (i Instructor) AvailableAt(cell Cell) bool {
	if len(i.Availability) == 0 {
		return true
	}
	slots, ok := i.Availability[cell.Day]
	if !ok {
		return true
	}
	for _, t := range slots {
		if t == cell.Time {
			return true
		}
	}
	return false
}

// Student only contributes elective selections to enrollment counts.
type Student struct {
	ID                string   `json:"id" yaml:"id"`
	ElectiveCourseIDs []string `json:"electiveCourseIds" yaml:"electiveCourseIds"`
}

// BlockedRange reserves day×slot cells for practicum or field work.
type BlockedRange struct {
	ID     string   `json:"id,omitempty" yaml:"id,omitempty"`
	Cohort *Cohort  `json:"cohort,omitempty" yaml:"cohort,omitempty"`
	Days   []string `json:"days" yaml:"days"`
	Slots  []string `json:"slots" yaml:"slots"`
}

// ScheduledSlot is one placed session.
type ScheduledSlot struct {
	CourseID      string      `json:"courseId"`
	InstructorID  string      `json:"instructorId"`
	ElectiveGroup string      `json:"electiveGroup,omitempty"`
	Day           Day         `json:"day"`
	Time          string      `json:"time"`
	RoomID        string      `json:"roomId"`
	LabPosition   LabPosition `json:"labPosition,omitempty"`
}

// Cell returns the grid coordinate of the slot.
func (s ScheduledSlot) Cell() Cell {
	return Cell{Day: s.Day, Time: s.Time}
}

// Timetable is the ordered set of slots for one cohort.
type Timetable struct {
	Cohort Cohort          `json:"cohort"`
	Slots  []ScheduledSlot `json:"slots"`
}

// Clone returns a deep copy so edits never alias engine output.
func (t Timetable) Clone() Timetable {
	slots := make([]ScheduledSlot, len(t.Slots))
	copy(slots, t.Slots)
	return Timetable{Cohort: t.Cohort, Slots: slots}
}

// Replace returns a new timetable carrying the given slots in grid order.
func (t Timetable) Replace(slots []ScheduledSlot) Timetable {
	next := Timetable{Cohort: t.Cohort, Slots: make([]ScheduledSlot, len(slots))}
	copy(next.Slots, slots)
	sortSlots(next.Slots)
	return next
}

// Occupied returns the set of cells holding at least one slot.
func (t Timetable) Occupied() map[Cell]bool {
	occupied := make(map[Cell]bool, len(t.Slots))
	for _, slot := range t.Slots {
		occupied[slot.Cell()] = true
	}
	return occupied
}

// CountByCourse tallies sessions per course.
func (t Timetable) CountByCourse() map[string]int {
	counts := make(map[string]int)
	for _, slot := range t.Slots {
		counts[slot.CourseID]++
	}
	return counts
}

func sortSlots(slots []ScheduledSlot) {
	sort.SliceStable(slots, func(i, j int) bool {
		a, b := slots[i], slots[j]
		if a.Day != b.Day || a.Time != b.Time {
			return cellLess(a.Cell(), b.Cell())
		}
		if a.RoomID != b.RoomID {
			return a.RoomID < b.RoomID
		}
		return a.CourseID < b.CourseID
	})
}
