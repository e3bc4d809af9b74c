package scheduler

// RunContext is the per-invocation lookup state consulted by the Validator.
type RunContext struct {
	// Enrollment counts elective selections per course id.
	Enrollment map[string]int
	// Blocked holds practicum cells that are never schedulable.
	Blocked map[Cell]struct{}
	// Existing holds committed slots of other cohorts sharing rooms and instructors.
	Existing []ScheduledSlot
}

// IsBlocked reports whether the cell is reserved.
func (rc RunContext) IsBlocked(cell Cell) bool {
	_, ok := rc.Blocked[cell]
	return ok
}

// Normalize builds the enrollment tally and blocked-cell set for a cohort.
// A practicum without a cohort applies to every cohort. Unknown days, unknown
// marks and the lunch mark are ignored.
func Normalize(students []Student, practicums []BlockedRange, cohort Cohort) RunContext {
	rc := RunContext{
		Enrollment: make(map[string]int),
		Blocked:    make(map[Cell]struct{}),
	}

	for _, student := range students {
		seen := make(map[string]bool, len(student.ElectiveCourseIDs))
		for _, courseID := range student.ElectiveCourseIDs {
			if courseID == "" || seen[courseID] {
				continue
			}
			seen[courseID] = true
			rc.Enrollment[courseID]++
		}
	}

	for _, practicum := range practicums {
		if pc := practicum.Cohort; pc != nil && !cohort.Includes(pc.Year, pc.Branch, pc.Division, pc.Program) {
			continue
		}
		for _, rawDay := range practicum.Days {
			day, ok := ParseDay(rawDay)
			if !ok {
				continue
			}
			for _, rawSlot := range practicum.Slots {
				t, ok := NormalizeTime(rawSlot)
				if !ok || IsLunch(t) {
					continue
				}
				rc.Blocked[Cell{Day: day, Time: t}] = struct{}{}
			}
		}
	}

	return rc
}
