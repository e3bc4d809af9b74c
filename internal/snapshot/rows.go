package snapshot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/noah-isme/timetable-engine/internal/scheduler"
)

// List-valued columns are separated by ';'. Instructor availability uses
// "Monday=09:00|10:00;Tuesday=14:00".
const (
	listSeparator  = ";"
	slotSeparator  = "|"
	availSeparator = "="
)

// CourseRow is one line of courses.csv.
type CourseRow struct {
	ID             string `csv:"id"`
	Name           string `csv:"name"`
	Code           string `csv:"code"`
	Category       string `csv:"category"`
	InstructorID   string `csv:"instructor_id"`
	Duration       int    `csv:"duration"`
	Capacity       int    `csv:"capacity"`
	Year           int    `csv:"year"`
	Branch         string `csv:"branch"`
	Division       string `csv:"division"`
	Program        string `csv:"program"`
	LectureType    string `csv:"lecture_type"`
	PreferredSlots string `csv:"preferred_time_slots"`
	Credits        int    `csv:"credits"`
	IsElective     bool   `csv:"is_elective"`
	ElectiveGroup  string `csv:"elective_group"`
}

func (r CourseRow) toScheduler() (scheduler.Course, error) {
	preferred, err := splitTimes(r.PreferredSlots)
	if err != nil {
		return scheduler.Course{}, fmt.Errorf("course %s: %w", r.ID, err)
	}
	lecture := scheduler.LectureType(strings.ToLower(strings.TrimSpace(r.LectureType)))
	if lecture == "" {
		lecture = scheduler.LectureTheory
	}
	return scheduler.Course{
		ID:             r.ID,
		Name:           r.Name,
		Code:           r.Code,
		Category:       r.Category,
		InstructorID:   r.InstructorID,
		Duration:       r.Duration,
		Capacity:       r.Capacity,
		Year:           r.Year,
		Branch:         r.Branch,
		Division:       r.Division,
		Program:        r.Program,
		LectureType:    lecture,
		PreferredSlots: preferred,
		Credits:        r.Credits,
		IsElective:     r.IsElective,
		ElectiveGroup:  r.ElectiveGroup,
	}, nil
}

// RoomRow is one line of rooms.csv.
type RoomRow struct {
	ID           string `csv:"id"`
	Name         string `csv:"name"`
	Capacity     int    `csv:"capacity"`
	Type         string `csv:"type"`
	Department   string `csv:"department"`
	AllowedYears string `csv:"allowed_years"`
	Available    bool   `csv:"available"`
}

func (r RoomRow) toScheduler() (scheduler.Room, error) {
	years, err := splitInts(r.AllowedYears)
	if err != nil {
		return scheduler.Room{}, fmt.Errorf("room %s: %w", r.ID, err)
	}
	return scheduler.Room{
		ID:           r.ID,
		Name:         r.Name,
		Capacity:     r.Capacity,
		Type:         scheduler.RoomType(strings.ToLower(strings.TrimSpace(r.Type))),
		Department:   r.Department,
		AllowedYears: years,
		Available:    r.Available,
	}, nil
}

// InstructorRow is one line of instructors.csv.
type InstructorRow struct {
	ID            string `csv:"id"`
	Name          string `csv:"name"`
	Department    string `csv:"department"`
	Years         string `csv:"years"`
	Expertise     string `csv:"expertise"`
	Availability  string `csv:"availability"`
	MaxWeeklyLoad int    `csv:"max_weekly_load"`
	MaxDailyLoad  int    `csv:"max_daily_load"`
}

func (r InstructorRow) toScheduler() (scheduler.Instructor, error) {
	years, err := splitInts(r.Years)
	if err != nil {
		return scheduler.Instructor{}, fmt.Errorf("instructor %s: %w", r.ID, err)
	}
	availability, err := parseAvailability(r.Availability)
	if err != nil {
		return scheduler.Instructor{}, fmt.Errorf("instructor %s: %w", r.ID, err)
	}
	return scheduler.Instructor{
		ID:            r.ID,
		Name:          r.Name,
		Department:    r.Department,
		Years:         years,
		Expertise:     splitList(r.Expertise),
		Availability:  availability,
		MaxWeeklyLoad: r.MaxWeeklyLoad,
		MaxDailyLoad:  r.MaxDailyLoad,
	}, nil
}

// StudentRow is one line of students.csv.
type StudentRow struct {
	ID                string `csv:"id"`
	Year              int    `csv:"year"`
	Branch            string `csv:"branch"`
	Division          string `csv:"division"`
	Program           string `csv:"program"`
	ElectiveCourseIDs string `csv:"elective_course_ids"`
}

// PracticumRow is one line of practicums.csv. Empty cohort columns match
// every cohort.
type PracticumRow struct {
	ID       string `csv:"id"`
	Year     int    `csv:"year"`
	Branch   string `csv:"branch"`
	Division string `csv:"division"`
	Program  string `csv:"program"`
	Days     string `csv:"days"`
	Slots    string `csv:"slots"`
}

func (r PracticumRow) toScheduler() scheduler.BlockedRange {
	block := scheduler.BlockedRange{
		ID:    r.ID,
		Days:  splitList(r.Days),
		Slots: splitList(r.Slots),
	}
	if r.Year != 0 || r.Branch != "" || r.Division != "" || r.Program != "" {
		block.Cohort = &scheduler.Cohort{Year: r.Year, Branch: r.Branch, Division: r.Division, Program: r.Program}
	}
	return block
}

// Electives lists the elective course ids of the student.
func (r StudentRow) Electives() []string {
	return splitList(r.ElectiveCourseIDs)
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, listSeparator)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func splitInts(raw string) ([]int, error) {
	parts := splitList(raw)
	if len(parts) == 0 {
		return nil, nil
	}
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", part)
		}
		out = append(out, n)
	}
	return out, nil
}

func splitTimes(raw string) ([]string, error) {
	parts := splitList(raw)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		t, ok := scheduler.NormalizeTime(part)
		if !ok {
			return nil, fmt.Errorf("invalid time %q", part)
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func parseAvailability(raw string) (map[scheduler.Day][]string, error) {
	entries := splitList(raw)
	if len(entries) == 0 {
		return nil, nil
	}
	out := make(map[scheduler.Day][]string, len(entries))
	for _, entry := range entries {
		dayPart, timesPart, ok := strings.Cut(entry, availSeparator)
		if !ok {
			return nil, fmt.Errorf("availability entry %q must be Day=HH:MM|HH:MM", entry)
		}
		day, ok := scheduler.ParseDay(dayPart)
		if !ok {
			return nil, fmt.Errorf("unknown day %q", dayPart)
		}
		for _, t := range strings.Split(timesPart, slotSeparator) {
			if strings.TrimSpace(t) == "" {
				continue
			}
			normalized, ok := scheduler.NormalizeTime(t)
			if !ok {
				return nil, fmt.Errorf("invalid time %q", t)
			}
			out[day] = append(out[day], normalized)
		}
	}
	return out, nil
}
