package scheduler

import "sort"

func theoryRoomFits(course *Course, room *Room) bool {
	if room.Type != RoomClassroom && room.Type != RoomLectureHall {
		return false
	}
	if !room.Available || !room.AllowsYear(course.Year) {
		return false
	}
	return course.Capacity <= 0 || room.Capacity >= course.Capacity
}

// distributeTheory fills the cells left after labs so that per-course session
// counts differ by at most one.
func (b *builder) distributeTheory(courses []*Course) {
	if len(courses) == 0 {
		return
	}

	var remaining []Cell
	for _, cell := range SchedulableCells() {
		if b.occupied[cell] || b.rc.IsBlocked(cell) {
			continue
		}
		remaining = append(remaining, cell)
	}

	n := len(courses)
	targets := make([]int, n)
	for i := range targets {
		targets[i] = len(remaining) / n
		if i < len(remaining)%n {
			targets[i]++
		}
	}
	assigned := make([]int, n)

	compatible := make([][]*Room, n)
	for i, course := range courses {
		for _, room := range b.rooms {
			if theoryRoomFits(course, room) {
				compatible[i] = append(compatible[i], room)
			}
		}
	}

	cursor := 0
	order := make([]int, 0, n)
	for _, cell := range remaining {
		order = order[:0]
		for i := range courses {
			if assigned[i] < targets[i] {
				order = append(order, i)
			}
		}
		sort.SliceStable(order, func(x, y int) bool {
			return targets[order[x]]-assigned[order[x]] > targets[order[y]]-assigned[order[y]]
		})

		placed := false
		last := ReasonNone
		for _, ci := range order {
			course := courses[ci]
			rooms := compatible[ci]
			if len(rooms) == 0 {
				last = ReasonNoCompatibleRoom
				continue
			}
			instructor := b.instructors[course.InstructorID]
			for k := 0; k < len(rooms); k++ {
				room := rooms[(cursor+k)%len(rooms)]
				candidate := Candidate{Course: course, Instructor: instructor, Room: room, Cell: cell}
				decision := TryPlace(candidate, b.slots, b.rc, b.opts)
				if decision.Accepted {
					b.commit(candidate)
					assigned[ci]++
					cursor = cursor + k + 1
					placed = true
					break
				}
				last = decision.Reason
			}
			if placed {
				break
			}
		}
		if !placed {
			c := cell
			b.warnings = append(b.warnings, Warning{Kind: WarningUnfilledCell, Cell: &c, Reason: last})
		}
	}

	for i, course := range courses {
		if assigned[i] >= targets[i] {
			continue
		}
		b.warnings = append(b.warnings, Warning{
			Kind:     WarningUnderTarget,
			CourseID: course.ID,
			Target:   targets[i],
			Placed:   assigned[i],
		})
		if assigned[i] == 0 {
			b.unplaced = append(b.unplaced, course.ID)
		}
	}
}
