// Package snapshot reads the CSV catalog used by the offline CLI and converts
// timetables to and from their tabular export forms.
package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/noah-isme/timetable-engine/internal/scheduler"
)

// Catalog file names expected inside a data directory.
const (
	CoursesFile     = "courses.csv"
	RoomsFile       = "rooms.csv"
	InstructorsFile = "instructors.csv"
	StudentsFile    = "students.csv"
	PracticumsFile  = "practicums.csv"
)

// Snapshot is the full catalog of one institution.
type Snapshot struct {
	Courses     []scheduler.Course
	Rooms       []scheduler.Room
	Instructors []scheduler.Instructor
	Students    []StudentRow
	Practicums  []scheduler.BlockedRange
}

// Load reads the catalog CSV files from dir. Courses, rooms and instructors
// are required; students and practicums may be absent.
func Load(dir string) (*Snapshot, error) {
	var (
		courses     []CourseRow
		rooms       []RoomRow
		instructors []InstructorRow
		students    []StudentRow
		practicums  []PracticumRow
	)
	if err := readCSV(filepath.Join(dir, CoursesFile), &courses, true); err != nil {
		return nil, err
	}
	if err := readCSV(filepath.Join(dir, RoomsFile), &rooms, true); err != nil {
		return nil, err
	}
	if err := readCSV(filepath.Join(dir, InstructorsFile), &instructors, true); err != nil {
		return nil, err
	}
	if err := readCSV(filepath.Join(dir, StudentsFile), &students, false); err != nil {
		return nil, err
	}
	if err := readCSV(filepath.Join(dir, PracticumsFile), &practicums, false); err != nil {
		return nil, err
	}

	snap := &Snapshot{Students: students}
	for _, row := range courses {
		course, err := row.toScheduler()
		if err != nil {
			return nil, err
		}
		snap.Courses = append(snap.Courses, course)
	}
	for _, row := range rooms {
		room, err := row.toScheduler()
		if err != nil {
			return nil, err
		}
		snap.Rooms = append(snap.Rooms, room)
	}
	for _, row := range instructors {
		instructor, err := row.toScheduler()
		if err != nil {
			return nil, err
		}
		snap.Instructors = append(snap.Instructors, instructor)
	}
	for _, row := range practicums {
		snap.Practicums = append(snap.Practicums, row.toScheduler())
	}
	return snap, nil
}

func readCSV(path string, out interface{}, required bool) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer file.Close()

	if err := gocsv.UnmarshalFile(file, out); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) && !required {
			return nil
		}
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Cohorts lists the distinct cohorts named by fully specified courses, in
// key order.
func (s *Snapshot) Cohorts() []scheduler.Cohort {
	seen := make(map[string]bool)
	var out []scheduler.Cohort
	for _, course := range s.Courses {
		if course.Year == 0 || course.Branch == "" || course.Division == "" || course.Program == "" {
			continue
		}
		cohort := scheduler.Cohort{
			Year:     course.Year,
			Branch:   strings.ToUpper(course.Branch),
			Division: strings.ToUpper(course.Division),
			Program:  strings.ToUpper(course.Program),
		}
		if seen[cohort.Key()] {
			continue
		}
		seen[cohort.Key()] = true
		out = append(out, cohort)
	}
	sortCohorts(out)
	return out
}

// Input builds the engine input for one cohort. Only the students of that
// cohort are passed on.
func (s *Snapshot) Input(cohort scheduler.Cohort, opts scheduler.Options, seed int64) scheduler.Input {
	in := scheduler.Input{
		Cohort:      cohort,
		Courses:     s.Courses,
		Rooms:       s.Rooms,
		Instructors: s.Instructors,
		Practicums:  s.Practicums,
		Options:     opts,
		Seed:        seed,
	}
	for _, row := range s.Students {
		if row.Year != cohort.Year ||
			!strings.EqualFold(row.Branch, cohort.Branch) ||
			!strings.EqualFold(row.Division, cohort.Division) ||
			!strings.EqualFold(row.Program, cohort.Program) {
			continue
		}
		in.Students = append(in.Students, scheduler.Student{ID: row.ID, ElectiveCourseIDs: row.Electives()})
	}
	return in
}

// ParseCohort reads "year/branch/division/program".
func ParseCohort(raw string) (scheduler.Cohort, error) {
	parts := strings.Split(strings.TrimSpace(raw), "/")
	if len(parts) != 4 {
		return scheduler.Cohort{}, fmt.Errorf("cohort %q must look like 2/CSE/A/BTECH", raw)
	}
	var year int
	if _, err := fmt.Sscanf(parts[0], "%d", &year); err != nil || year <= 0 {
		return scheduler.Cohort{}, fmt.Errorf("cohort %q has invalid year", raw)
	}
	for _, part := range parts[1:] {
		if strings.TrimSpace(part) == "" {
			return scheduler.Cohort{}, fmt.Errorf("cohort %q has an empty field", raw)
		}
	}
	return scheduler.Cohort{
		Year:     year,
		Branch:   strings.ToUpper(strings.TrimSpace(parts[1])),
		Division: strings.ToUpper(strings.TrimSpace(parts[2])),
		Program:  strings.ToUpper(strings.TrimSpace(parts[3])),
	}, nil
}
