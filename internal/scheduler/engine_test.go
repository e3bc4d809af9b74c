package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testCohort = Cohort{Year: 2, Branch: "CSE", Division: "A", Program: "BTECH"}

func theoryCourse(id, instructorID string) Course {
	return Course{
		ID:           id,
		Name:         "Course " + id,
		Code:         "CS" + id,
		InstructorID: instructorID,
		Duration:     1,
		Capacity:     40,
		Year:         2,
		Branch:       "CSE",
		Division:     "A",
		Program:      "BTECH",
		LectureType:  LectureTheory,
	}
}

func labCourse(id, instructorID string, preferred ...string) Course {
	c := theoryCourse(id, instructorID)
	c.LectureType = LectureLab
	c.Duration = 2
	c.PreferredSlots = preferred
	return c
}

func classroom(id string) Room {
	return Room{ID: id, Name: id, Capacity: 60, Type: RoomClassroom, Department: "CSE", Available: true}
}

func labRoom(id string) Room {
	return Room{ID: id, Name: id, Capacity: 60, Type: RoomLab, Department: "CSE", Available: true}
}

func instructor(id string) Instructor {
	return Instructor{ID: id, Name: id, Department: "CSE"}
}

func newTestEngine() *Engine {
	return New(Config{Logger: zap.NewNop(), LabPhaseBudget: time.Second})
}

func baseInput() Input {
	return Input{
		Cohort: testCohort,
		Courses: []Course{
			theoryCourse("c1", "i1"),
			theoryCourse("c2", "i2"),
			theoryCourse("c3", "i3"),
			theoryCourse("c4", "i4"),
			theoryCourse("c5", "i5"),
		},
		Rooms:       []Room{classroom("r1"), classroom("r2")},
		Instructors: []Instructor{instructor("i1"), instructor("i2"), instructor("i3"), instructor("i4"), instructor("i5")},
		Options:     DefaultOptions(),
		Seed:        42,
	}
}

func TestGenerateEvenTheoryDistribution(t *testing.T) {
	res, err := newTestEngine().Generate(baseInput())
	require.NoError(t, err)

	assert.Equal(t, PhaseAllPlaced, res.Phase)
	assert.Len(t, res.Timetable.Slots, 35)
	assert.Len(t, res.Timetable.Occupied(), 35)
	assert.Empty(t, res.Unplaced)
	assert.Empty(t, res.Warnings)

	counts := res.Timetable.CountByCourse()
	for _, id := range []string{"c1", "c2", "c3", "c4", "c5"} {
		assert.Equal(t, 7, counts[id], "course %s", id)
	}
}

func TestGenerateTheoryCountsDifferByAtMostOne(t *testing.T) {
	in := baseInput()
	in.Courses = in.Courses[:4]
	in.Instructors = in.Instructors[:4]

	res, err := newTestEngine().Generate(in)
	require.NoError(t, err)

	counts := res.Timetable.CountByCourse()
	minCount, maxCount := 100, 0
	for _, n := range counts {
		if n < minCount {
			minCount = n
		}
		if n > maxCount {
			maxCount = n
		}
	}
	assert.LessOrEqual(t, maxCount-minCount, 1)
	assert.Equal(t, 35, len(res.Timetable.Slots))
}

func TestGenerateLabHonoursPreferredSlots(t *testing.T) {
	in := Input{
		Cohort:      testCohort,
		Courses:     []Course{labCourse("lab1", "i1", "15:00", "16:00")},
		Rooms:       []Room{labRoom("L1")},
		Instructors: []Instructor{instructor("i1")},
		Options:     DefaultOptions(),
		Seed:        7,
	}

	res, err := newTestEngine().Generate(in)
	require.NoError(t, err)
	require.Len(t, res.Timetable.Slots, 2)

	first, second := res.Timetable.Slots[0], res.Timetable.Slots[1]
	assert.Equal(t, first.Day, second.Day)
	assert.Equal(t, "L1", first.RoomID)
	assert.Equal(t, "L1", second.RoomID)
	assert.Equal(t, "15:00", first.Time)
	assert.Equal(t, "16:00", second.Time)
	assert.Equal(t, LabFirst, first.LabPosition)
	assert.Equal(t, LabSecond, second.LabPosition)
	assert.Equal(t, PhaseAllPlaced, res.Phase)
}

func TestGenerateDailyLoadCeiling(t *testing.T) {
	teacher := instructor("i1")
	teacher.MaxDailyLoad = 2
	in := Input{
		Cohort: testCohort,
		Courses: []Course{
			theoryCourse("c1", "i1"),
			theoryCourse("c2", "i1"),
			theoryCourse("c3", "i1"),
		},
		Rooms:       []Room{classroom("r1")},
		Instructors: []Instructor{teacher},
		Practicums: []BlockedRange{{
			ID:    "field-work",
			Days:  []string{"Tuesday", "Wednesday", "Thursday", "Friday"},
			Slots: []string{"09:00", "10:00", "11:00", "13:00", "14:00", "15:00", "16:00"},
		}},
		Options: DefaultOptions(),
		Seed:    1,
	}

	res, err := newTestEngine().Generate(in)
	require.NoError(t, err)

	monday := 0
	for _, slot := range res.Timetable.Slots {
		assert.Equal(t, Monday, slot.Day)
		if slot.InstructorID == "i1" {
			monday++
		}
	}
	assert.LessOrEqual(t, monday, 2)
	assert.Equal(t, PhasePartiallyPlaced, res.Phase)
	assert.NotEmpty(t, res.Warnings)
}

func TestGenerateIsDeterministicForSeed(t *testing.T) {
	in := baseInput()
	in.Courses = append(in.Courses, labCourse("lab1", "i6"), labCourse("lab2", "i7"))
	in.Rooms = append(in.Rooms, labRoom("L1"))
	in.Instructors = append(in.Instructors, instructor("i6"), instructor("i7"))

	engine := newTestEngine()
	first, err := engine.Generate(in)
	require.NoError(t, err)
	second, err := engine.Generate(in)
	require.NoError(t, err)

	assert.Equal(t, first.Timetable, second.Timetable)
	assert.Equal(t, first.Unplaced, second.Unplaced)
	assert.Equal(t, first.Warnings, second.Warnings)
}

func TestGenerateStructuralInvariants(t *testing.T) {
	in := baseInput()
	in.Courses = append(in.Courses, labCourse("lab1", "i6"), labCourse("lab2", "i6", "10:00"))
	in.Rooms = append(in.Rooms, labRoom("L1"))
	in.Instructors = append(in.Instructors, instructor("i6"))

	res, err := newTestEngine().Generate(in)
	require.NoError(t, err)

	rooms := make(map[string]bool)
	teachers := make(map[string]bool)
	for _, slot := range res.Timetable.Slots {
		assert.NotEqual(t, LunchSlot, slot.Time)
		assert.True(t, slot.Cell().Valid())

		roomKey := slot.Cell().String() + "/" + slot.RoomID
		assert.False(t, rooms[roomKey], "room double-booked at %s", roomKey)
		rooms[roomKey] = true

		teacherKey := slot.Cell().String() + "/" + slot.InstructorID
		assert.False(t, teachers[teacherKey], "instructor double-booked at %s", teacherKey)
		teachers[teacherKey] = true
	}

	for _, slot := range res.Timetable.Slots {
		if slot.LabPosition != LabFirst {
			continue
		}
		next, ok := NextSlot(slot.Time)
		require.True(t, ok)
		found := false
		for _, other := range res.Timetable.Slots {
			if other.CourseID == slot.CourseID && other.Day == slot.Day && other.Time == next &&
				other.RoomID == slot.RoomID && other.LabPosition == LabSecond {
				found = true
			}
		}
		assert.True(t, found, "lab %s has no second half", slot.CourseID)
	}
}

func TestGenerateSkipsBlockedCells(t *testing.T) {
	in := baseInput()
	in.Practicums = []BlockedRange{{Cohort: &testCohort, Days: []string{"Mon"}, Slots: []string{"9", "10"}}}

	res, err := newTestEngine().Generate(in)
	require.NoError(t, err)

	for _, slot := range res.Timetable.Slots {
		assert.False(t, slot.Day == Monday && (slot.Time == "09:00" || slot.Time == "10:00"))
	}
	assert.Len(t, res.Timetable.Slots, 33)
	assert.Equal(t, 2, res.Stats.CellsBlocked)
}

func TestGenerateAvoidsExistingCohortSlots(t *testing.T) {
	in := baseInput()
	in.Existing = []ScheduledSlot{
		{CourseID: "other", InstructorID: "i1", Day: Monday, Time: "09:00", RoomID: "r9"},
		{CourseID: "other2", InstructorID: "i9", Day: Monday, Time: "10:00", RoomID: "r1"},
	}

	res, err := newTestEngine().Generate(in)
	require.NoError(t, err)

	for _, slot := range res.Timetable.Slots {
		if slot.Day == Monday && slot.Time == "09:00" {
			assert.NotEqual(t, "i1", slot.InstructorID)
		}
		if slot.Day == Monday && slot.Time == "10:00" {
			assert.NotEqual(t, "r1", slot.RoomID)
		}
	}
}

func TestGenerateElectiveGroupClashWithExisting(t *testing.T) {
	elective := theoryCourse("e1", "i1")
	elective.IsElective = true
	elective.ElectiveGroup = "G1"
	in := Input{
		Cohort:      testCohort,
		Courses:     []Course{elective},
		Rooms:       []Room{classroom("r1")},
		Instructors: []Instructor{instructor("i1")},
		Existing: []ScheduledSlot{
			{CourseID: "e2", InstructorID: "i2", ElectiveGroup: "G1", Day: Monday, Time: "09:00", RoomID: "r7"},
		},
		Options: DefaultOptions(),
	}

	res, err := newTestEngine().Generate(in)
	require.NoError(t, err)
	for _, slot := range res.Timetable.Slots {
		assert.False(t, slot.Day == Monday && slot.Time == "09:00")
	}
	assert.Len(t, res.Timetable.Slots, 34)
}

func TestGenerateFiltersCoursesByCohort(t *testing.T) {
	in := baseInput()
	other := theoryCourse("x1", "i1")
	other.Division = "B"
	in.Courses = append(in.Courses, other)

	res, err := newTestEngine().Generate(in)
	require.NoError(t, err)
	assert.NotContains(t, res.Timetable.CountByCourse(), "x1")
}

func TestGenerateMissingResources(t *testing.T) {
	cases := map[string]struct {
		mutate func(*Input)
		kind   ResourceKind
	}{
		"no courses": {
			mutate: func(in *Input) { in.Courses = nil },
			kind:   ResourceCourses,
		},
		"no available rooms": {
			mutate: func(in *Input) {
				for i := range in.Rooms {
					in.Rooms[i].Available = false
				}
			},
			kind: ResourceRooms,
		},
		"no rooms open to the cohort year": {
			mutate: func(in *Input) {
				for i := range in.Rooms {
					in.Rooms[i].AllowedYears = []int{4}
				}
			},
			kind: ResourceRooms,
		},
		"no instructors": {
			mutate: func(in *Input) { in.Instructors = nil },
			kind:   ResourceInstructors,
		},
		"courses name unknown instructors": {
			mutate: func(in *Input) { in.Instructors = []Instructor{instructor("i9")} },
			kind:   ResourceInstructors,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			in := baseInput()
			tc.mutate(&in)

			res, err := newTestEngine().Generate(in)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, ErrMissingResource))

			var missing *MissingResourceError
			require.ErrorAs(t, err, &missing)
			assert.Equal(t, tc.kind, missing.Kind)
		})
	}
}

func TestGenerateLabUnplacedWithoutLabRoom(t *testing.T) {
	in := baseInput()
	in.Courses = append(in.Courses, labCourse("lab1", "i1"))

	res, err := newTestEngine().Generate(in)
	require.NoError(t, err)

	assert.Contains(t, res.Unplaced, "lab1")
	assert.Equal(t, PhasePartiallyPlaced, res.Phase)
	require.NotEmpty(t, res.Warnings)
	assert.Equal(t, WarningLabUnplaced, res.Warnings[0].Kind)
	assert.Equal(t, ReasonNoCompatibleRoom, res.Warnings[0].Reason)
}

func TestGenerateLabFallsBackToAnyLabRoom(t *testing.T) {
	foreign := labRoom("EE-LAB")
	foreign.Department = "EEE"
	in := Input{
		Cohort:      testCohort,
		Courses:     []Course{labCourse("lab1", "i1")},
		Rooms:       []Room{foreign},
		Instructors: []Instructor{instructor("i1")},
		Options:     DefaultOptions(),
	}

	res, err := newTestEngine().Generate(in)
	require.NoError(t, err)
	require.Len(t, res.Timetable.Slots, 2)
	assert.Equal(t, "EE-LAB", res.Timetable.Slots[0].RoomID)
}

func TestGenerateRelaxedProfileRespectsBudget(t *testing.T) {
	foreign := labRoom("EE-LAB")
	foreign.Department = "EEE"
	clock := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	calls := 0
	engine := New(Config{
		LabPhaseBudget: time.Millisecond,
		Now: func() time.Time {
			calls++
			return clock.Add(time.Duration(calls) * time.Second)
		},
	})
	in := Input{
		Cohort:      testCohort,
		Courses:     []Course{labCourse("lab1", "i1")},
		Rooms:       []Room{foreign},
		Instructors: []Instructor{instructor("i1")},
		Options:     DefaultOptions(),
	}

	res, err := engine.Generate(in)
	require.NoError(t, err)
	assert.Empty(t, res.Timetable.Slots)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, ReasonBudgetExhausted, res.Warnings[0].Reason)
}

func TestGenerateSystematicModeIgnoresContext(t *testing.T) {
	in := baseInput()
	in.Options.Mode = FillSystematic
	in.Practicums = []BlockedRange{{Days: []string{"Monday"}, Slots: []string{"09:00"}}}
	in.Existing = []ScheduledSlot{{CourseID: "other", InstructorID: "i1", Day: Tuesday, Time: "09:00", RoomID: "r1"}}

	res, err := newTestEngine().Generate(in)
	require.NoError(t, err)
	assert.Equal(t, FillSystematic, res.Mode)
	assert.Len(t, res.Timetable.Slots, 35)
	assert.Zero(t, res.Stats.CellsBlocked)
}

func TestResultCommit(t *testing.T) {
	res, err := newTestEngine().Generate(baseInput())
	require.NoError(t, err)

	require.NoError(t, res.Commit())
	assert.Equal(t, PhaseCommitted, res.Phase)
	assert.Error(t, res.Commit())

	var nilResult *Result
	assert.Error(t, nilResult.Commit())
}

func TestPhaseTransitions(t *testing.T) {
	assert.True(t, PhaseNotStarted.CanTransition(PhaseLab))
	assert.True(t, PhaseNotStarted.CanTransition(PhaseFailed))
	assert.True(t, PhaseTheory.CanTransition(PhasePartiallyPlaced))
	assert.False(t, PhaseLab.CanTransition(PhaseAllPlaced))
	assert.False(t, PhaseCommitted.CanTransition(PhaseLab))
	assert.True(t, PhaseCommitted.Terminal())
	assert.True(t, PhaseFailed.Terminal())
	assert.False(t, PhaseTheory.Terminal())

	state := &runState{phase: PhaseNotStarted}
	assert.Panics(t, func() { state.advance(PhaseTheory) })
}
