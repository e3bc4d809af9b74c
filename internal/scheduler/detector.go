package scheduler

import "sort"

// ConflictType names the double-booked resource.
type ConflictType string

const (
	ConflictRoom       ConflictType = "room"
	ConflictInstructor ConflictType = "instructor"
)

// ConflictRecord lists the courses sharing one resource in one cell.
type ConflictRecord struct {
	Type         ConflictType `json:"type"`
	Day          Day          `json:"day"`
	Time         string       `json:"time"`
	Key          string       `json:"key"`
	Participants []string     `json:"participants"`
}

// Cell returns the grid coordinate of the conflict.
func (c ConflictRecord) Cell() Cell {
	return Cell{Day: c.Day, Time: c.Time}
}

// Report is the detector output.
type Report struct {
	Conflicts      []ConflictRecord `json:"conflicts"`
	AvailableCells []Cell           `json:"availableCells"`
}

type conflictKey struct {
	kind ConflictType
	cell Cell
	key  string
}

// Detect groups slots by (cell, room) and (cell, instructor) and reports every
// group with more than one member, plus the cells with no slot at all.
func Detect(t Timetable) Report {
	groups := make(map[conflictKey][]string)
	var keys []conflictKey
	add := func(k conflictKey, courseID string) {
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], courseID)
	}
	for _, slot := range t.Slots {
		cell := slot.Cell()
		if slot.RoomID != "" {
			add(conflictKey{kind: ConflictRoom, cell: cell, key: slot.RoomID}, slot.CourseID)
		}
		if slot.InstructorID != "" {
			add(conflictKey{kind: ConflictInstructor, cell: cell, key: slot.InstructorID}, slot.CourseID)
		}
	}

	sort.SliceStable(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.cell != b.cell {
			return cellLess(a.cell, b.cell)
		}
		if a.kind != b.kind {
			return a.kind == ConflictRoom
		}
		return a.key < b.key
	})

	report := Report{Conflicts: []ConflictRecord{}, AvailableCells: []Cell{}}
	for _, k := range keys {
		participants := groups[k]
		if len(participants) < 2 {
			continue
		}
		report.Conflicts = append(report.Conflicts, ConflictRecord{
			Type:         k.kind,
			Day:          k.cell.Day,
			Time:         k.cell.Time,
			Key:          k.key,
			Participants: participants,
		})
	}

	report.AvailableCells = availableCells(t.Slots)
	return report
}

func availableCells(slots []ScheduledSlot) []Cell {
	occupied := make(map[Cell]bool, len(slots))
	for _, slot := range slots {
		occupied[slot.Cell()] = true
	}
	cells := make([]Cell, 0)
	for _, cell := range SchedulableCells() {
		if !occupied[cell] {
			cells = append(cells, cell)
		}
	}
	return cells
}
