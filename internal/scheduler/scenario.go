package scheduler

// Scenario patches the input arrays of a what-if run. It never changes
// Options: the same Validator runs on the patched data.
type Scenario struct {
	Name               string         `json:"name" yaml:"name"`
	UpsertCourses      []Course       `json:"upsertCourses,omitempty" yaml:"upsertCourses,omitempty"`
	RemoveCourses      []string       `json:"removeCourses,omitempty" yaml:"removeCourses,omitempty"`
	UpsertRooms        []Room         `json:"upsertRooms,omitempty" yaml:"upsertRooms,omitempty"`
	RemoveRooms        []string       `json:"removeRooms,omitempty" yaml:"removeRooms,omitempty"`
	UnavailableRooms   []string       `json:"unavailableRooms,omitempty" yaml:"unavailableRooms,omitempty"`
	UpsertInstructors  []Instructor   `json:"upsertInstructors,omitempty" yaml:"upsertInstructors,omitempty"`
	RemoveInstructors  []string       `json:"removeInstructors,omitempty" yaml:"removeInstructors,omitempty"`
	AddPracticums      []BlockedRange `json:"addPracticums,omitempty" yaml:"addPracticums,omitempty"`
	AddStudents        []Student      `json:"addStudents,omitempty" yaml:"addStudents,omitempty"`
	ClearExistingSlots bool           `json:"clearExistingSlots,omitempty" yaml:"clearExistingSlots,omitempty"`
}

// ApplyScenario returns a patched copy of in. The original slices are not
// modified. Upserts replace records with the same id in place and append
// new ones; removals run after upserts.
func ApplyScenario(in Input, s Scenario) Input {
	out := in

	out.Courses = upsert(in.Courses, s.UpsertCourses, func(c Course) string { return c.ID })
	out.Courses = remove(out.Courses, s.RemoveCourses, func(c Course) string { return c.ID })

	out.Rooms = upsert(in.Rooms, s.UpsertRooms, func(r Room) string { return r.ID })
	out.Rooms = remove(out.Rooms, s.RemoveRooms, func(r Room) string { return r.ID })
	if len(s.UnavailableRooms) > 0 {
		off := toSet(s.UnavailableRooms)
		for i := range out.Rooms {
			if off[out.Rooms[i].ID] {
				out.Rooms[i].Available = false
			}
		}
	}

	out.Instructors = upsert(in.Instructors, s.UpsertInstructors, func(i Instructor) string { return i.ID })
	out.Instructors = remove(out.Instructors, s.RemoveInstructors, func(i Instructor) string { return i.ID })

	out.Practicums = append(append([]BlockedRange{}, in.Practicums...), s.AddPracticums...)
	out.Students = append(append([]Student{}, in.Students...), s.AddStudents...)
	if s.ClearExistingSlots {
		out.Existing = nil
	} else {
		out.Existing = append([]ScheduledSlot{}, in.Existing...)
	}
	return out
}

func upsert[T any](base, patch []T, id func(T) string) []T {
	out := make([]T, len(base), len(base)+len(patch))
	copy(out, base)
	index := make(map[string]int, len(out))
	for i, item := range out {
		index[id(item)] = i
	}
	for _, item := range patch {
		if i, ok := index[id(item)]; ok {
			out[i] = item
			continue
		}
		index[id(item)] = len(out)
		out = append(out, item)
	}
	return out
}

func remove[T any](items []T, ids []string, id func(T) string) []T {
	if len(ids) == 0 {
		return items
	}
	drop := toSet(ids)
	out := items[:0:0]
	for _, item := range items {
		if !drop[id(item)] {
			out = append(out, item)
		}
	}
	return out
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
