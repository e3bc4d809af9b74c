package snapshot

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/noah-isme/timetable-engine/internal/scheduler"
	"github.com/noah-isme/timetable-engine/pkg/export"
)

// LunchLabel fills the lunch column of rendered grids.
const LunchLabel = "LUNCH"

// SlotRow is the tabular form of one scheduled slot.
type SlotRow struct {
	Day           string `csv:"day"`
	Time          string `csv:"time"`
	CourseID      string `csv:"course_id"`
	InstructorID  string `csv:"instructor_id"`
	RoomID        string `csv:"room_id"`
	ElectiveGroup string `csv:"elective_group"`
	LabPosition   string `csv:"lab_position"`
}

// SlotRows flattens a timetable in grid order.
func SlotRows(t scheduler.Timetable) []SlotRow {
	rows := make([]SlotRow, 0, len(t.Slots))
	for _, slot := range t.Slots {
		rows = append(rows, SlotRow{
			Day:           string(slot.Day),
			Time:          slot.Time,
			CourseID:      slot.CourseID,
			InstructorID:  slot.InstructorID,
			RoomID:        slot.RoomID,
			ElectiveGroup: slot.ElectiveGroup,
			LabPosition:   string(slot.LabPosition),
		})
	}
	return rows
}

// FromSlotRows rebuilds a timetable, normalising day and time spellings.
func FromSlotRows(cohort scheduler.Cohort, rows []SlotRow) (scheduler.Timetable, error) {
	slots := make([]scheduler.ScheduledSlot, 0, len(rows))
	for i, row := range rows {
		day, ok := scheduler.ParseDay(row.Day)
		if !ok {
			return scheduler.Timetable{}, fmt.Errorf("row %d: unknown day %q", i+1, row.Day)
		}
		t, ok := scheduler.NormalizeTime(row.Time)
		if !ok {
			return scheduler.Timetable{}, fmt.Errorf("row %d: invalid time %q", i+1, row.Time)
		}
		position := scheduler.LabPosition(strings.ToLower(strings.TrimSpace(row.LabPosition)))
		switch position {
		case scheduler.LabNone, scheduler.LabFirst, scheduler.LabSecond:
		default:
			return scheduler.Timetable{}, fmt.Errorf("row %d: invalid lab position %q", i+1, row.LabPosition)
		}
		slots = append(slots, scheduler.ScheduledSlot{
			CourseID:      row.CourseID,
			InstructorID:  row.InstructorID,
			ElectiveGroup: row.ElectiveGroup,
			Day:           day,
			Time:          t,
			RoomID:        row.RoomID,
			LabPosition:   position,
		})
	}
	return scheduler.Timetable{Cohort: cohort}.Replace(slots), nil
}

// ReadTimetable loads a slot CSV previously written by the CLI or the export
// endpoint.
func ReadTimetable(path string, cohort scheduler.Cohort) (scheduler.Timetable, error) {
	file, err := os.Open(path)
	if err != nil {
		return scheduler.Timetable{}, fmt.Errorf("open timetable: %w", err)
	}
	defer file.Close()

	var rows []SlotRow
	if err := gocsv.UnmarshalFile(file, &rows); err != nil {
		return scheduler.Timetable{}, fmt.Errorf("parse timetable: %w", err)
	}
	return FromSlotRows(cohort, rows)
}

// BuildGrid lays the timetable out with weekdays as rows and time marks as
// columns. Each cell lists "course\nroom" entries; the lunch column is labelled.
func BuildGrid(t scheduler.Timetable, codes map[string]string, title string) export.Grid {
	grid := export.Grid{Title: title, Columns: append([]string(nil), scheduler.TimeSlots...)}
	if grid.Title == "" {
		grid.Title = "Timetable " + t.Cohort.Key()
	}

	column := make(map[string]int, len(scheduler.TimeSlots))
	for i, mark := range scheduler.TimeSlots {
		column[mark] = i
	}

	cells := make(map[scheduler.Day][]string, len(scheduler.Days))
	for _, day := range scheduler.Days {
		row := make([]string, len(scheduler.TimeSlots))
		for i, mark := range scheduler.TimeSlots {
			if scheduler.IsLunch(mark) {
				row[i] = LunchLabel
			}
		}
		cells[day] = row
	}

	for _, slot := range t.Slots {
		row, ok := cells[slot.Day]
		if !ok {
			continue
		}
		i, ok := column[slot.Time]
		if !ok {
			continue
		}
		label := slot.CourseID
		if code, ok := codes[slot.CourseID]; ok && code != "" {
			label = code
		}
		entry := label + "\n" + slot.RoomID
		if row[i] != "" {
			row[i] += "\n" + entry
		} else {
			row[i] = entry
		}
	}

	for _, day := range scheduler.Days {
		grid.Rows = append(grid.Rows, export.GridRow{Label: string(day), Cells: cells[day]})
	}
	return grid
}

// CourseCodes indexes course codes by id for grid labels.
func CourseCodes(courses []scheduler.Course) map[string]string {
	codes := make(map[string]string, len(courses))
	for _, course := range courses {
		codes[course.ID] = course.Code
	}
	return codes
}

func sortCohorts(cohorts []scheduler.Cohort) {
	sort.Slice(cohorts, func(i, j int) bool {
		a, b := cohorts[i], cohorts[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Key() < b.Key()
	})
}
