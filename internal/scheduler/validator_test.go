package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTryPlace(t *testing.T) {
	course := theoryCourse("c1", "i1")
	teacher := instructor("i1")
	room := classroom("r1")
	monday9 := Cell{Day: Monday, Time: "09:00"}

	elective := theoryCourse("e1", "i1")
	elective.IsElective = true
	elective.ElectiveGroup = "G1"
	smallRoom := classroom("small")
	smallRoom.Capacity = 2

	expert := instructor("i1")
	expert.Expertise = []string{"csc1"}
	expert.Years = []int{2}
	wrongYear := expert
	wrongYear.Years = []int{4}

	restricted := instructor("i1")
	restricted.Availability = map[Day][]string{Monday: {"10:00"}}

	loaded := instructor("i1")
	loaded.MaxWeeklyLoad = 1
	dailyLoaded := instructor("i1")
	dailyLoaded.MaxDailyLoad = 1

	strict := DefaultOptions()
	strict.EnforceExpertise = true
	override := 5

	cases := []struct {
		name      string
		candidate Candidate
		placed    []ScheduledSlot
		rc        RunContext
		opts      Options
		want      Decision
	}{
		{
			name:      "accepts free cell",
			candidate: Candidate{Course: &course, Instructor: &teacher, Room: &room, Cell: monday9},
			opts:      DefaultOptions(),
			want:      Accepted(),
		},
		{
			name:      "rejects lunch",
			candidate: Candidate{Course: &course, Instructor: &teacher, Room: &room, Cell: Cell{Day: Monday, Time: LunchSlot}},
			opts:      DefaultOptions(),
			want:      Rejected(ReasonLunchCell),
		},
		{
			name:      "rejects off-grid cell",
			candidate: Candidate{Course: &course, Instructor: &teacher, Room: &room, Cell: Cell{Day: "Saturday", Time: "09:00"}},
			opts:      DefaultOptions(),
			want:      Rejected(ReasonInvalidCell),
		},
		{
			name:      "rejects blocked cell",
			candidate: Candidate{Course: &course, Instructor: &teacher, Room: &room, Cell: monday9},
			rc:        RunContext{Blocked: map[Cell]struct{}{monday9: {}}},
			opts:      DefaultOptions(),
			want:      Rejected(ReasonBlockedCell),
		},
		{
			name:      "rejects elective over capacity",
			candidate: Candidate{Course: &elective, Instructor: &teacher, Room: &smallRoom, Cell: monday9},
			rc:        RunContext{Enrollment: map[string]int{"e1": 3}},
			opts:      DefaultOptions(),
			want:      Rejected(ReasonElectiveCapacity),
		},
		{
			name:      "rejects busy room",
			candidate: Candidate{Course: &course, Instructor: &teacher, Room: &room, Cell: monday9},
			placed:    []ScheduledSlot{{CourseID: "c2", InstructorID: "i2", Day: Monday, Time: "09:00", RoomID: "r1"}},
			opts:      DefaultOptions(),
			want:      Rejected(ReasonRoomBusy),
		},
		{
			name:      "rejects busy instructor from another cohort",
			candidate: Candidate{Course: &course, Instructor: &teacher, Room: &room, Cell: monday9},
			rc:        RunContext{Existing: []ScheduledSlot{{CourseID: "x", InstructorID: "i1", Day: Monday, Time: "09:00", RoomID: "r5"}}},
			opts:      DefaultOptions(),
			want:      Rejected(ReasonInstructorBusy),
		},
		{
			name:      "rejects unavailable instructor",
			candidate: Candidate{Course: &course, Instructor: &restricted, Room: &room, Cell: monday9},
			opts:      DefaultOptions(),
			want:      Rejected(ReasonInstructorUnavailable),
		},
		{
			name:      "rejects elective group clash",
			candidate: Candidate{Course: &elective, Instructor: &teacher, Room: &room, Cell: monday9},
			placed:    []ScheduledSlot{{CourseID: "e2", InstructorID: "i2", ElectiveGroup: "G1", Day: Monday, Time: "09:00", RoomID: "r2"}},
			opts:      DefaultOptions(),
			want:      Rejected(ReasonElectiveGroupClash),
		},
		{
			name:      "allows elective group clash when disabled",
			candidate: Candidate{Course: &elective, Instructor: &teacher, Room: &room, Cell: monday9},
			placed:    []ScheduledSlot{{CourseID: "e2", InstructorID: "i2", ElectiveGroup: "G1", Day: Monday, Time: "09:00", RoomID: "r2"}},
			opts:      Options{},
			want:      Accepted(),
		},
		{
			name:      "rejects missing expertise",
			candidate: Candidate{Course: &course, Instructor: &teacher, Room: &room, Cell: monday9},
			opts:      strict,
			want:      Rejected(ReasonExpertiseMismatch),
		},
		{
			name:      "accepts expertise by course code",
			candidate: Candidate{Course: &course, Instructor: &expert, Room: &room, Cell: monday9},
			opts:      strict,
			want:      Accepted(),
		},
		{
			name:      "rejects expertise for another year",
			candidate: Candidate{Course: &course, Instructor: &wrongYear, Room: &room, Cell: monday9},
			opts:      strict,
			want:      Rejected(ReasonExpertiseMismatch),
		},
		{
			name:      "rejects weekly load",
			candidate: Candidate{Course: &course, Instructor: &loaded, Room: &room, Cell: monday9},
			placed:    []ScheduledSlot{{CourseID: "c1", InstructorID: "i1", Day: Friday, Time: "09:00", RoomID: "r1"}},
			opts:      DefaultOptions(),
			want:      Rejected(ReasonWeeklyLoadExceeded),
		},
		{
			name:      "weekly override lifts the ceiling",
			candidate: Candidate{Course: &course, Instructor: &loaded, Room: &room, Cell: monday9},
			placed:    []ScheduledSlot{{CourseID: "c1", InstructorID: "i1", Day: Friday, Time: "09:00", RoomID: "r1"}},
			opts:      Options{EnforceWorkload: true, MaxWeeklyLoadOverride: &override},
			want:      Accepted(),
		},
		{
			name:      "rejects daily load",
			candidate: Candidate{Course: &course, Instructor: &dailyLoaded, Room: &room, Cell: monday9},
			placed:    []ScheduledSlot{{CourseID: "c1", InstructorID: "i1", Day: Monday, Time: "10:00", RoomID: "r1"}},
			opts:      DefaultOptions(),
			want:      Rejected(ReasonDailyLoadExceeded),
		},
		{
			name:      "ignores load when workload disabled",
			candidate: Candidate{Course: &course, Instructor: &dailyLoaded, Room: &room, Cell: monday9},
			placed:    []ScheduledSlot{{CourseID: "c1", InstructorID: "i1", Day: Monday, Time: "10:00", RoomID: "r1"}},
			opts:      Options{},
			want:      Accepted(),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, TryPlace(tc.candidate, tc.placed, tc.rc, tc.opts))
		})
	}
}

func TestTryPlaceCheckOrder(t *testing.T) {
	teacher := instructor("i1")
	room := classroom("r1")
	monday9 := Cell{Day: Monday, Time: "09:00"}

	elective := theoryCourse("e1", "i1")
	elective.IsElective = true
	elective.ElectiveGroup = "G1"
	smallRoom := classroom("r1")
	smallRoom.Capacity = 2

	roomTaken := []ScheduledSlot{{CourseID: "c2", InstructorID: "i2", ElectiveGroup: "G1", Day: Monday, Time: "09:00", RoomID: "r1"}}
	crowded := map[string]int{"e1": 3}

	relaxed := instructor("i1")
	relaxed.MaxDailyLoad = 5
	dailyOverride := 1

	cases := []struct {
		name      string
		candidate Candidate
		placed    []ScheduledSlot
		rc        RunContext
		opts      Options
		want      RejectReason
	}{
		{
			name:      "blocked cell wins over capacity and busy room",
			candidate: Candidate{Course: &elective, Instructor: &teacher, Room: &smallRoom, Cell: monday9},
			placed:    roomTaken,
			rc:        RunContext{Blocked: map[Cell]struct{}{monday9: {}}, Enrollment: crowded},
			opts:      DefaultOptions(),
			want:      ReasonBlockedCell,
		},
		{
			name:      "elective capacity wins over busy room",
			candidate: Candidate{Course: &elective, Instructor: &teacher, Room: &smallRoom, Cell: monday9},
			placed:    roomTaken,
			rc:        RunContext{Enrollment: crowded},
			opts:      DefaultOptions(),
			want:      ReasonElectiveCapacity,
		},
		{
			name:      "busy room wins over elective group clash",
			candidate: Candidate{Course: &elective, Instructor: &teacher, Room: &room, Cell: monday9},
			placed:    roomTaken,
			opts:      Options{EnforceElectiveGroupNoClash: true},
			want:      ReasonRoomBusy,
		},
		{
			name:      "busy instructor wins over missing expertise",
			candidate: Candidate{Course: &elective, Instructor: &teacher, Room: &room, Cell: monday9},
			placed:    []ScheduledSlot{{CourseID: "c3", InstructorID: "i1", Day: Monday, Time: "09:00", RoomID: "r2"}},
			opts:      Options{EnforceExpertise: true},
			want:      ReasonInstructorBusy,
		},
		{
			name:      "daily override lowers the instructor ceiling",
			candidate: Candidate{Course: &elective, Instructor: &relaxed, Room: &room, Cell: monday9},
			placed:    []ScheduledSlot{{CourseID: "c1", InstructorID: "i1", Day: Monday, Time: "10:00", RoomID: "r1"}},
			opts:      Options{EnforceWorkload: true, MaxDailyLoadOverride: &dailyOverride},
			want:      ReasonDailyLoadExceeded,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, Rejected(tc.want), TryPlace(tc.candidate, tc.placed, tc.rc, tc.opts))
		})
	}

	// Without the override the same placement fits under the instructor's own ceiling.
	withoutOverride := TryPlace(cases[4].candidate, cases[4].placed, RunContext{}, Options{EnforceWorkload: true})
	assert.Equal(t, Accepted(), withoutOverride)
}

func TestTryPlaceDoesNotMutateInputs(t *testing.T) {
	course := theoryCourse("c1", "i1")
	room := classroom("r1")
	placed := []ScheduledSlot{{CourseID: "c2", InstructorID: "i2", Day: Monday, Time: "10:00", RoomID: "r1"}}
	snapshot := append([]ScheduledSlot(nil), placed...)

	TryPlace(Candidate{Course: &course, Room: &room, Cell: Cell{Day: Monday, Time: "09:00"}}, placed, RunContext{}, DefaultOptions())
	assert.Equal(t, snapshot, placed)
}

func TestTryPlaceAllIsAtomic(t *testing.T) {
	course := labCourse("lab1", "i1")
	teacher := instructor("i1")
	teacher.MaxDailyLoad = 1
	room := labRoom("L1")
	pair := []Candidate{
		{Course: &course, Instructor: &teacher, Room: &room, Cell: Cell{Day: Monday, Time: "14:00"}, LabPosition: LabFirst},
		{Course: &course, Instructor: &teacher, Room: &room, Cell: Cell{Day: Monday, Time: "15:00"}, LabPosition: LabSecond},
	}

	decision := TryPlaceAll(pair, nil, RunContext{}, DefaultOptions())
	assert.False(t, decision.Accepted)
	assert.Equal(t, ReasonDailyLoadExceeded, decision.Reason)

	teacher.MaxDailyLoad = 2
	assert.Equal(t, Accepted(), TryPlaceAll(pair, nil, RunContext{}, DefaultOptions()))
}

func TestCandidateSlot(t *testing.T) {
	course := theoryCourse("c1", "i1")
	course.ElectiveGroup = "G"
	room := classroom("r1")
	slot := Candidate{Course: &course, Room: &room, Cell: Cell{Day: Friday, Time: "16:00"}}.Slot()

	assert.Equal(t, ScheduledSlot{CourseID: "c1", InstructorID: "i1", ElectiveGroup: "G", Day: Friday, Time: "16:00", RoomID: "r1"}, slot)
}
