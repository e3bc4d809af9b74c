// Package scheduler builds weekly cohort timetables and inspects existing ones
// for conflicts. It performs no I/O and keeps no state between calls.
package scheduler

import (
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// WarningKind classifies non-fatal generation outcomes.
type WarningKind string

const (
	WarningLabUnplaced  WarningKind = "lab_unplaced"
	WarningUnfilledCell WarningKind = "unfilled_cell"
	WarningUnderTarget  WarningKind = "under_target"
)

// Warning reports a placement the engine could not make.
type Warning struct {
	Kind     WarningKind  `json:"kind"`
	CourseID string       `json:"courseId,omitempty"`
	Cell     *Cell        `json:"cell,omitempty"`
	Reason   RejectReason `json:"reason,omitempty"`
	Target   int          `json:"target,omitempty"`
	Placed   int          `json:"placed,omitempty"`
}

// Input is the plain data snapshot for one cohort run.
type Input struct {
	Cohort      Cohort
	Courses     []Course
	Rooms       []Room
	Instructors []Instructor
	Students    []Student
	Practicums  []BlockedRange
	// Existing carries committed slots of other cohorts.
	Existing []ScheduledSlot
	Options  Options
	Seed     int64
}

// Stats summarises a run.
type Stats struct {
	LabCourses    int           `json:"labCourses"`
	TheoryCourses int           `json:"theoryCourses"`
	CellsFilled   int           `json:"cellsFilled"`
	CellsBlocked  int           `json:"cellsBlocked"`
	Duration      time.Duration `json:"duration"`
}

// Result is the immutable outcome of a generation run.
type Result struct {
	Timetable Timetable `json:"timetable"`
	Unplaced  []string  `json:"unplaced"`
	Warnings  []Warning `json:"warnings"`
	Phase     Phase     `json:"phase"`
	Mode      FillMode  `json:"mode"`
	Seed      int64     `json:"seed"`
	Stats     Stats     `json:"stats"`
}

// Config tunes an Engine.
type Config struct {
	Logger *zap.Logger
	// LabPhaseBudget caps the wall-clock time spent in relaxed lab retries.
	LabPhaseBudget time.Duration
	Now            func() time.Time
}

// Engine runs generation. It is safe for concurrent use across cohorts.
type Engine struct {
	logger    *zap.Logger
	labBudget time.Duration
	now       func() time.Time
}

// New constructs an Engine.
func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.LabPhaseBudget <= 0 {
		cfg.LabPhaseBudget = 2 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{logger: cfg.Logger, labBudget: cfg.LabPhaseBudget, now: cfg.Now}
}

// Generate places labs, then theory sessions, and returns the timetable along
// with unplaced courses and warnings. Missing courses, rooms or instructors
// fail the run before any phase starts.
func (e *Engine) Generate(in Input) (*Result, error) {
	started := e.now()
	state := &runState{phase: PhaseNotStarted}

	b, err := e.newBuilder(in)
	if err != nil {
		state.advance(PhaseFailed)
		e.logger.Warn("generation precondition failed", zap.String("cohort", in.Cohort.Key()), zap.Error(err))
		return nil, err
	}

	state.advance(PhaseLab)
	var labs, theory []*Course
	for _, course := range b.courses {
		if course.IsLab() {
			labs = append(labs, course)
		} else {
			theory = append(theory, course)
		}
	}
	b.placeLabs(labs)

	state.advance(PhaseTheory)
	b.distributeTheory(theory)

	if len(b.unplaced) == 0 && len(b.warnings) == 0 {
		state.advance(PhaseAllPlaced)
	} else {
		state.advance(PhasePartiallyPlaced)
	}

	timetable := Timetable{Cohort: in.Cohort}.Replace(b.slots)
	result := &Result{
		Timetable: timetable,
		Unplaced:  b.unplaced,
		Warnings:  b.warnings,
		Phase:     state.phase,
		Mode:      in.Options.mode(),
		Seed:      in.Seed,
		Stats: Stats{
			LabCourses:    len(labs),
			TheoryCourses: len(theory),
			CellsFilled:   len(timetable.Occupied()),
			CellsBlocked:  len(b.rc.Blocked),
			Duration:      e.now().Sub(started),
		},
	}
	if result.Unplaced == nil {
		result.Unplaced = []string{}
	}
	if result.Warnings == nil {
		result.Warnings = []Warning{}
	}

	e.logger.Debug("generation finished",
		zap.String("cohort", in.Cohort.Key()),
		zap.String("phase", string(result.Phase)),
		zap.String("mode", string(result.Mode)),
		zap.Int("slots", len(timetable.Slots)),
		zap.Int("unplaced", len(result.Unplaced)),
		zap.Int("warnings", len(result.Warnings)),
	)
	return result, nil
}

// builder holds the append-only state of a single run.
type builder struct {
	logger      *zap.Logger
	cohort      Cohort
	courses     []*Course
	rooms       []*Room
	instructors map[string]*Instructor
	rc          RunContext
	opts        Options
	rng         *rand.Rand
	deadline    time.Time
	now         func() time.Time

	slots    []ScheduledSlot
	occupied map[Cell]bool
	unplaced []string
	warnings []Warning
}

func (e *Engine) newBuilder(in Input) (*builder, error) {
	var courses []*Course
	for i := range in.Courses {
		c := &in.Courses[i]
		if in.Cohort.Includes(c.Year, c.Branch, c.Division, c.Program) {
			courses = append(courses, c)
		}
	}
	if len(courses) == 0 {
		return nil, &MissingResourceError{Kind: ResourceCourses, Cohort: in.Cohort}
	}

	var rooms []*Room
	for i := range in.Rooms {
		if in.Rooms[i].Available && in.Rooms[i].AllowsYear(in.Cohort.Year) {
			rooms = append(rooms, &in.Rooms[i])
		}
	}
	if len(rooms) == 0 {
		return nil, &MissingResourceError{Kind: ResourceRooms, Cohort: in.Cohort}
	}

	instructors := make(map[string]*Instructor, len(in.Instructors))
	for i := range in.Instructors {
		instructors[in.Instructors[i].ID] = &in.Instructors[i]
	}
	if !teachesAny(courses, instructors) {
		return nil, &MissingResourceError{Kind: ResourceInstructors, Cohort: in.Cohort}
	}

	opts := in.Options
	var rc RunContext
	if opts.mode() == FillSystematic {
		opts = opts.stripped()
		rc = RunContext{}
	} else {
		rc = Normalize(in.Students, in.Practicums, in.Cohort)
		rc.Existing = in.Existing
	}

	return &builder{
		logger:      e.logger,
		cohort:      in.Cohort,
		courses:     courses,
		rooms:       rooms,
		instructors: instructors,
		rc:          rc,
		opts:        opts,
		rng:         rand.New(rand.NewSource(in.Seed)),
		deadline:    e.now().Add(e.labBudget),
		now:         e.now,
		occupied:    make(map[Cell]bool),
	}, nil
}

func (b *builder) commit(candidates ...Candidate) {
	for _, c := range candidates {
		b.slots = append(b.slots, c.Slot())
		b.occupied[c.Cell] = true
	}
}

func (b *builder) shuffledDays() []Day {
	days := make([]Day, len(Days))
	copy(days, Days)
	b.rng.Shuffle(len(days), func(i, j int) { days[i], days[j] = days[j], days[i] })
	return days
}

func (b *builder) expired() bool {
	return b.now().After(b.deadline)
}

// teachesAny reports whether at least one cohort course names a known instructor.
func teachesAny(courses []*Course, instructors map[string]*Instructor) bool {
	for _, c := range courses {
		if _, ok := instructors[c.InstructorID]; ok {
			return true
		}
	}
	return false
}
