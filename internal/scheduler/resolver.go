package scheduler

// Move records one relocation made by the resolver. Lab moves carry both cells.
type Move struct {
	CourseID string       `json:"courseId"`
	Conflict ConflictType `json:"conflict"`
	From     []Cell       `json:"from"`
	To       []Cell       `json:"to"`
	FromRoom string       `json:"fromRoom"`
	ToRoom   string       `json:"toRoom"`
}

// Resolution is the resolver output. Timetable is a new value; the input
// timetable is left untouched.
type Resolution struct {
	Timetable  Timetable        `json:"timetable"`
	Moves      []Move           `json:"moves"`
	Unresolved []ConflictRecord `json:"unresolved"`
}

type resolver struct {
	slots       []ScheduledSlot
	courses     map[string]*Course
	rooms       []*Room
	roomByID    map[string]*Room
	instructors map[string]*Instructor
	rc          RunContext
	opts        Options
}

// Resolve tries to relocate every participant but the first of each conflict
// into an available cell the Validator accepts. Same-day cells are tried
// first, and the current room before other rooms of a compatible type.
// Conflicts that cannot be cleared are returned unchanged; no slot is ever
// dropped.
func Resolve(in Input, t Timetable, conflicts []ConflictRecord) Resolution {
	r := newResolver(in, t)
	res := Resolution{Moves: []Move{}, Unresolved: []ConflictRecord{}}

	for _, conflict := range conflicts {
		members := r.members(conflict)
		if len(members) < 2 {
			continue
		}
		cleared := true
		for _, idx := range members[1:] {
			move, ok := r.relocate(idx, conflict.Type)
			if !ok {
				cleared = false
				continue
			}
			res.Moves = append(res.Moves, move)
		}
		if !cleared {
			res.Unresolved = append(res.Unresolved, conflict)
		}
	}

	res.Timetable = t.Replace(r.slots)
	return res
}

func newResolver(in Input, t Timetable) *resolver {
	r := &resolver{
		slots:       make([]ScheduledSlot, len(t.Slots)),
		courses:     make(map[string]*Course, len(in.Courses)),
		roomByID:    make(map[string]*Room, len(in.Rooms)),
		instructors: make(map[string]*Instructor, len(in.Instructors)),
		opts:        in.Options,
	}
	copy(r.slots, t.Slots)
	for i := range in.Courses {
		r.courses[in.Courses[i].ID] = &in.Courses[i]
	}
	for i := range in.Rooms {
		room := &in.Rooms[i]
		r.roomByID[room.ID] = room
		if room.Available {
			r.rooms = append(r.rooms, room)
		}
	}
	for i := range in.Instructors {
		r.instructors[in.Instructors[i].ID] = &in.Instructors[i]
	}
	if in.Options.mode() == FillSystematic {
		r.opts = in.Options.stripped()
	} else {
		r.rc = Normalize(in.Students, in.Practicums, t.Cohort)
		r.rc.Existing = in.Existing
	}
	return r
}

func (r *resolver) members(conflict ConflictRecord) []int {
	var idx []int
	for i, slot := range r.slots {
		if slot.Day != conflict.Day || slot.Time != conflict.Time {
			continue
		}
		switch conflict.Type {
		case ConflictRoom:
			if slot.RoomID == conflict.Key {
				idx = append(idx, i)
			}
		case ConflictInstructor:
			if slot.InstructorID == conflict.Key {
				idx = append(idx, i)
			}
		}
	}
	return idx
}

// partner finds the other half of a lab session.
func (r *resolver) partner(idx int) int {
	slot := r.slots[idx]
	for i, other := range r.slots {
		if i == idx || other.CourseID != slot.CourseID || other.Day != slot.Day || other.RoomID != slot.RoomID {
			continue
		}
		switch {
		case slot.LabPosition == LabFirst && other.LabPosition == LabSecond:
			if next, ok := NextSlot(slot.Time); ok && next == other.Time {
				return i
			}
		case slot.LabPosition == LabSecond && other.LabPosition == LabFirst:
			if next, ok := NextSlot(other.Time); ok && next == slot.Time {
				return i
			}
		}
	}
	return -1
}

func (r *resolver) relocate(idx int, kind ConflictType) (Move, bool) {
	slot := r.slots[idx]
	base, ok := r.courses[slot.CourseID]
	if !ok {
		return Move{}, false
	}
	course := *base
	if slot.InstructorID != "" {
		course.InstructorID = slot.InstructorID
	}
	instructor := r.instructors[course.InstructorID]

	moving := []int{idx}
	if slot.LabPosition != LabNone {
		p := r.partner(idx)
		if p >= 0 {
			if slot.LabPosition == LabFirst {
				moving = []int{idx, p}
			} else {
				moving = []int{p, idx}
			}
		}
	}

	others := make([]ScheduledSlot, 0, len(r.slots))
	for i, s := range r.slots {
		if i == moving[0] || (len(moving) > 1 && i == moving[1]) {
			continue
		}
		others = append(others, s)
	}
	free := make(map[Cell]bool)
	for _, cell := range availableCells(others) {
		free[cell] = true
	}

	home := r.slots[moving[0]].Day
	var ordered []Cell
	for _, cell := range SchedulableCells() {
		if free[cell] && cell.Day == home {
			ordered = append(ordered, cell)
		}
	}
	for _, cell := range SchedulableCells() {
		if free[cell] && cell.Day != home {
			ordered = append(ordered, cell)
		}
	}

	rooms := r.roomOrder(&course, slot.RoomID)
	from := make([]Cell, len(moving))
	for i, m := range moving {
		from[i] = r.slots[m].Cell()
	}

	for _, cell := range ordered {
		targets := []Cell{cell}
		if len(moving) == 2 {
			next, ok := NextSlot(cell.Time)
			if !ok || IsLunch(next) || !free[Cell{Day: cell.Day, Time: next}] {
				continue
			}
			targets = append(targets, Cell{Day: cell.Day, Time: next})
		}
		for _, room := range rooms {
			candidates := make([]Candidate, len(targets))
			for i, target := range targets {
				candidates[i] = Candidate{Course: &course, Instructor: instructor, Room: room, Cell: target, LabPosition: r.slots[moving[i]].LabPosition}
			}
			if !TryPlaceAll(candidates, others, r.rc, r.opts).Accepted {
				continue
			}
			for i, m := range moving {
				r.slots[m].Day = targets[i].Day
				r.slots[m].Time = targets[i].Time
				r.slots[m].RoomID = room.ID
			}
			return Move{
				CourseID: course.ID,
				Conflict: kind,
				From:     from,
				To:       targets,
				FromRoom: slot.RoomID,
				ToRoom:   room.ID,
			}, true
		}
	}
	return Move{}, false
}

// roomOrder puts the current room first, then the remaining rooms of a
// compatible type.
func (r *resolver) roomOrder(course *Course, current string) []*Room {
	fits := func(room *Room) bool {
		if course.IsLab() {
			return ProfileAnyLabRoom.admits(course, room)
		}
		return theoryRoomFits(course, room)
	}
	var rooms []*Room
	if room, ok := r.roomByID[current]; ok && room.Available && fits(room) {
		rooms = append(rooms, room)
	}
	for _, room := range r.rooms {
		if room.ID != current && fits(room) {
			rooms = append(rooms, room)
		}
	}
	return rooms
}
