package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"

	"github.com/noah-isme/timetable-engine/internal/scheduler"
)

// Course is a stored course offering.
type Course struct {
	ID                 string         `db:"id" json:"id"`
	Name               string         `db:"name" json:"name"`
	Code               string         `db:"code" json:"code"`
	Category           string         `db:"category" json:"category"`
	InstructorID       string         `db:"instructor_id" json:"instructor_id"`
	Duration           int            `db:"duration" json:"duration"`
	Capacity           int            `db:"capacity" json:"capacity"`
	Year               int            `db:"year" json:"year"`
	Branch             string         `db:"branch" json:"branch"`
	Division           string         `db:"division" json:"division"`
	Program            string         `db:"program" json:"program"`
	LectureType        string         `db:"lecture_type" json:"lecture_type"`
	PreferredTimeSlots pq.StringArray `db:"preferred_time_slots" json:"preferred_time_slots"`
	Credits            int            `db:"credits" json:"credits"`
	IsElective         bool           `db:"is_elective" json:"is_elective"`
	ElectiveGroup      string         `db:"elective_group" json:"elective_group"`
}

// ToScheduler converts the record into the engine representation.
func (c Course) ToScheduler() scheduler.Course {
	return scheduler.Course{
		ID:             c.ID,
		Name:           c.Name,
		Code:           c.Code,
		Category:       c.Category,
		InstructorID:   c.InstructorID,
		Duration:       c.Duration,
		Capacity:       c.Capacity,
		Year:           c.Year,
		Branch:         c.Branch,
		Division:       c.Division,
		LectureType:    scheduler.LectureType(strings.ToLower(c.LectureType)),
		PreferredSlots: []string(c.PreferredTimeSlots),
		Credits:        c.Credits,
		Program:        c.Program,
		IsElective:     c.IsElective,
		ElectiveGroup:  c.ElectiveGroup,
	}
}

// Room is a stored teaching space.
type Room struct {
	ID           string        `db:"id" json:"id"`
	Name         string        `db:"name" json:"name"`
	Capacity     int           `db:"capacity" json:"capacity"`
	Type         string        `db:"type" json:"type"`
	Department   string        `db:"department" json:"department"`
	AllowedYears pq.Int64Array `db:"allowed_years" json:"allowed_years"`
	Available    bool          `db:"available" json:"available"`
}

// ToScheduler converts the record into the engine representation.
func (r Room) ToScheduler() scheduler.Room {
	return scheduler.Room{
		ID:           r.ID,
		Name:         r.Name,
		Capacity:     r.Capacity,
		Type:         scheduler.RoomType(strings.ToLower(r.Type)),
		Department:   r.Department,
		AllowedYears: ints(r.AllowedYears),
		Available:    r.Available,
	}
}

// Instructor is a stored instructor profile. Availability holds a JSON object
// keyed by weekday with lists of time marks.
type Instructor struct {
	ID            string         `db:"id" json:"id"`
	Name          string         `db:"name" json:"name"`
	Department    string         `db:"department" json:"department"`
	Years         pq.Int64Array  `db:"years" json:"years"`
	Expertise     pq.StringArray `db:"expertise" json:"expertise"`
	Availability  types.JSONText `db:"availability" json:"availability"`
	MaxWeeklyLoad int            `db:"max_weekly_load" json:"max_weekly_load"`
	MaxDailyLoad  int            `db:"max_daily_load" json:"max_daily_load"`
}

// ToScheduler converts the record, parsing the availability document.
func (i Instructor) ToScheduler() (scheduler.Instructor, error) {
	availability, err := ParseAvailability(i.Availability)
	if err != nil {
		return scheduler.Instructor{}, fmt.Errorf("instructor %s: %w", i.ID, err)
	}
	return scheduler.Instructor{
		ID:            i.ID,
		Name:          i.Name,
		Department:    i.Department,
		Years:         ints(i.Years),
		Expertise:     []string(i.Expertise),
		Availability:  availability,
		MaxWeeklyLoad: i.MaxWeeklyLoad,
		MaxDailyLoad:  i.MaxDailyLoad,
	}, nil
}

// ParseAvailability decodes {"mon": ["9", "10:00"], ...} into grid marks.
// Unknown days and times are rejected.
func ParseAvailability(raw []byte) (map[scheduler.Day][]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var doc map[string][]string
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode availability: %w", err)
	}
	if len(doc) == 0 {
		return nil, nil
	}
	out := make(map[scheduler.Day][]string, len(doc))
	for rawDay, rawSlots := range doc {
		day, ok := scheduler.ParseDay(rawDay)
		if !ok {
			return nil, fmt.Errorf("availability: unknown day %q", rawDay)
		}
		slots := make([]string, 0, len(rawSlots))
		for _, rawSlot := range rawSlots {
			mark, ok := scheduler.NormalizeTime(rawSlot)
			if !ok {
				return nil, fmt.Errorf("availability: unknown time %q on %s", rawSlot, day)
			}
			slots = append(slots, mark)
		}
		out[day] = append(out[day], slots...)
	}
	return out, nil
}

// Student carries the elective selections of one student.
type Student struct {
	ID                string         `db:"id" json:"id"`
	Year              int            `db:"year" json:"year"`
	Branch            string         `db:"branch" json:"branch"`
	Division          string         `db:"division" json:"division"`
	Program           string         `db:"program" json:"program"`
	ElectiveCourseIDs pq.StringArray `db:"elective_course_ids" json:"elective_course_ids"`
}

// ToScheduler converts the record into the engine representation.
func (s Student) ToScheduler() scheduler.Student {
	return scheduler.Student{ID: s.ID, ElectiveCourseIDs: []string(s.ElectiveCourseIDs)}
}

// Practicum blocks day and time ranges for a cohort. Nil cohort columns act
// as wildcards.
type Practicum struct {
	ID       string         `db:"id" json:"id"`
	Year     *int           `db:"year" json:"year,omitempty"`
	Branch   *string        `db:"branch" json:"branch,omitempty"`
	Division *string        `db:"division" json:"division,omitempty"`
	Program  *string        `db:"program" json:"program,omitempty"`
	Days     pq.StringArray `db:"days" json:"days"`
	Slots    pq.StringArray `db:"slots" json:"slots"`
}

// ToScheduler converts the record into a blocked range. A practicum without
// any cohort column applies to every cohort.
func (p Practicum) ToScheduler() scheduler.BlockedRange {
	blocked := scheduler.BlockedRange{
		ID:    p.ID,
		Days:  []string(p.Days),
		Slots: []string(p.Slots),
	}
	if p.Year == nil && p.Branch == nil && p.Division == nil && p.Program == nil {
		return blocked
	}
	cohort := scheduler.Cohort{}
	if p.Year != nil {
		cohort.Year = *p.Year
	}
	cohort.Branch = deref(p.Branch)
	cohort.Division = deref(p.Division)
	cohort.Program = deref(p.Program)
	blocked.Cohort = &cohort
	return blocked
}

// CourseFromScheduler converts an engine course into a storable record.
func CourseFromScheduler(c scheduler.Course) Course {
	return Course{
		ID:                 c.ID,
		Name:               c.Name,
		Code:               c.Code,
		Category:           c.Category,
		InstructorID:       c.InstructorID,
		Duration:           c.Duration,
		Capacity:           c.Capacity,
		Year:               c.Year,
		Branch:             c.Branch,
		Division:           c.Division,
		Program:            c.Program,
		LectureType:        string(c.LectureType),
		PreferredTimeSlots: pq.StringArray(c.PreferredSlots),
		Credits:            c.Credits,
		IsElective:         c.IsElective,
		ElectiveGroup:      c.ElectiveGroup,
	}
}

// RoomFromScheduler converts an engine room into a storable record.
func RoomFromScheduler(r scheduler.Room) Room {
	return Room{
		ID:           r.ID,
		Name:         r.Name,
		Capacity:     r.Capacity,
		Type:         string(r.Type),
		Department:   r.Department,
		AllowedYears: int64s(r.AllowedYears),
		Available:    r.Available,
	}
}

// InstructorFromScheduler converts an engine instructor, encoding availability
// as the JSON document ParseAvailability reads.
func InstructorFromScheduler(i scheduler.Instructor) (Instructor, error) {
	doc := make(map[string][]string, len(i.Availability))
	for day, slots := range i.Availability {
		doc[string(day)] = slots
	}
	availability, err := json.Marshal(doc)
	if err != nil {
		return Instructor{}, fmt.Errorf("encode availability of %s: %w", i.ID, err)
	}
	return Instructor{
		ID:            i.ID,
		Name:          i.Name,
		Department:    i.Department,
		Years:         int64s(i.Years),
		Expertise:     pq.StringArray(i.Expertise),
		Availability:  types.JSONText(availability),
		MaxWeeklyLoad: i.MaxWeeklyLoad,
		MaxDailyLoad:  i.MaxDailyLoad,
	}, nil
}

// PracticumFromScheduler converts a blocked range. Zero cohort fields are
// stored as NULL wildcards.
func PracticumFromScheduler(b scheduler.BlockedRange) Practicum {
	p := Practicum{
		ID:    b.ID,
		Days:  pq.StringArray(b.Days),
		Slots: pq.StringArray(b.Slots),
	}
	if b.Cohort == nil {
		return p
	}
	if b.Cohort.Year != 0 {
		year := b.Cohort.Year
		p.Year = &year
	}
	p.Branch = ref(b.Cohort.Branch)
	p.Division = ref(b.Cohort.Division)
	p.Program = ref(b.Cohort.Program)
	return p
}

func int64s(values []int) pq.Int64Array {
	if len(values) == 0 {
		return nil
	}
	out := make(pq.Int64Array, len(values))
	for i, v := range values {
		out[i] = int64(v)
	}
	return out
}

func ref(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func ints(values pq.Int64Array) []int {
	if len(values) == 0 {
		return nil
	}
	out := make([]int, len(values))
	for i, v := range values {
		out[i] = int(v)
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
