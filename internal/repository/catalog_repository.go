package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timetable-engine/internal/models"
	"github.com/noah-isme/timetable-engine/internal/scheduler"
)

// CatalogRepository reads and writes the scheduling inputs: courses, rooms,
// instructors, student elective selections and practicum blocks.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository constructs the repository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const courseColumns = `id, name, code, category, instructor_id, duration, capacity, year, branch, division, program, lecture_type, preferred_time_slots, credits, is_elective, elective_group`

// ListCourses returns the courses of a study year. Cohort wildcard matching
// on branch, division and program happens in the engine.
func (r *CatalogRepository) ListCourses(ctx context.Context, year int) ([]models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE year = $1 ORDER BY code ASC, id ASC`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, year); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// ListRooms returns every room, available or not.
func (r *CatalogRepository) ListRooms(ctx context.Context) ([]models.Room, error) {
	const query = `SELECT id, name, capacity, type, department, allowed_years, available FROM rooms ORDER BY id ASC`
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// ListInstructors returns every instructor profile.
func (r *CatalogRepository) ListInstructors(ctx context.Context) ([]models.Instructor, error) {
	const query = `SELECT id, name, department, years, expertise, availability, max_weekly_load, max_daily_load FROM instructors ORDER BY id ASC`
	var instructors []models.Instructor
	if err := r.db.SelectContext(ctx, &instructors, query); err != nil {
		return nil, fmt.Errorf("list instructors: %w", err)
	}
	return instructors, nil
}

// ListStudents returns the students of one cohort.
func (r *CatalogRepository) ListStudents(ctx context.Context, cohort scheduler.Cohort) ([]models.Student, error) {
	const query = `SELECT id, year, branch, division, program, elective_course_ids FROM students
WHERE year = $1 AND UPPER(branch) = UPPER($2) AND UPPER(division) = UPPER($3) AND UPPER(program) = UPPER($4) ORDER BY id ASC`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, cohort.Year, cohort.Branch, cohort.Division, cohort.Program); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// ListPracticums returns practicum blocks that may apply to the year,
// including those without a year.
func (r *CatalogRepository) ListPracticums(ctx context.Context, year int) ([]models.Practicum, error) {
	const query = `SELECT id, year, branch, division, program, days, slots FROM practicums WHERE year IS NULL OR year = $1 ORDER BY id ASC`
	var practicums []models.Practicum
	if err := r.db.SelectContext(ctx, &practicums, query, year); err != nil {
		return nil, fmt.Errorf("list practicums: %w", err)
	}
	return practicums, nil
}

// UpsertCourses inserts or replaces courses by id.
func (r *CatalogRepository) UpsertCourses(ctx context.Context, exec sqlx.ExtContext, courses []models.Course) error {
	const query = `
INSERT INTO courses (` + courseColumns + `)
VALUES (:id, :name, :code, :category, :instructor_id, :duration, :capacity, :year, :branch, :division, :program, :lecture_type, :preferred_time_slots, :credits, :is_elective, :elective_group)
ON CONFLICT (id) DO UPDATE
SET name = EXCLUDED.name,
    code = EXCLUDED.code,
    category = EXCLUDED.category,
    instructor_id = EXCLUDED.instructor_id,
    duration = EXCLUDED.duration,
    capacity = EXCLUDED.capacity,
    year = EXCLUDED.year,
    branch = EXCLUDED.branch,
    division = EXCLUDED.division,
    program = EXCLUDED.program,
    lecture_type = EXCLUDED.lecture_type,
    preferred_time_slots = EXCLUDED.preferred_time_slots,
    credits = EXCLUDED.credits,
    is_elective = EXCLUDED.is_elective,
    elective_group = EXCLUDED.elective_group`
	target := r.exec(exec)
	for i := range courses {
		if _, err := sqlx.NamedExecContext(ctx, target, query, &courses[i]); err != nil {
			return fmt.Errorf("upsert course %s: %w", courses[i].ID, err)
		}
	}
	return nil
}

// UpsertRooms inserts or replaces rooms by id.
func (r *CatalogRepository) UpsertRooms(ctx context.Context, exec sqlx.ExtContext, rooms []models.Room) error {
	const query = `
INSERT INTO rooms (id, name, capacity, type, department, allowed_years, available)
VALUES (:id, :name, :capacity, :type, :department, :allowed_years, :available)
ON CONFLICT (id) DO UPDATE
SET name = EXCLUDED.name,
    capacity = EXCLUDED.capacity,
    type = EXCLUDED.type,
    department = EXCLUDED.department,
    allowed_years = EXCLUDED.allowed_years,
    available = EXCLUDED.available`
	target := r.exec(exec)
	for i := range rooms {
		if _, err := sqlx.NamedExecContext(ctx, target, query, &rooms[i]); err != nil {
			return fmt.Errorf("upsert room %s: %w", rooms[i].ID, err)
		}
	}
	return nil
}

// UpsertInstructors inserts or replaces instructors by id.
func (r *CatalogRepository) UpsertInstructors(ctx context.Context, exec sqlx.ExtContext, instructors []models.Instructor) error {
	const query = `
INSERT INTO instructors (id, name, department, years, expertise, availability, max_weekly_load, max_daily_load)
VALUES (:id, :name, :department, :years, :expertise, :availability, :max_weekly_load, :max_daily_load)
ON CONFLICT (id) DO UPDATE
SET name = EXCLUDED.name,
    department = EXCLUDED.department,
    years = EXCLUDED.years,
    expertise = EXCLUDED.expertise,
    availability = EXCLUDED.availability,
    max_weekly_load = EXCLUDED.max_weekly_load,
    max_daily_load = EXCLUDED.max_daily_load`
	target := r.exec(exec)
	for i := range instructors {
		if len(instructors[i].Availability) == 0 {
			instructors[i].Availability = []byte(`{}`)
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, &instructors[i]); err != nil {
			return fmt.Errorf("upsert instructor %s: %w", instructors[i].ID, err)
		}
	}
	return nil
}

// UpsertStudents inserts or replaces students by id.
func (r *CatalogRepository) UpsertStudents(ctx context.Context, exec sqlx.ExtContext, students []models.Student) error {
	const query = `
INSERT INTO students (id, year, branch, division, program, elective_course_ids)
VALUES (:id, :year, :branch, :division, :program, :elective_course_ids)
ON CONFLICT (id) DO UPDATE
SET year = EXCLUDED.year,
    branch = EXCLUDED.branch,
    division = EXCLUDED.division,
    program = EXCLUDED.program,
    elective_course_ids = EXCLUDED.elective_course_ids`
	target := r.exec(exec)
	for i := range students {
		if _, err := sqlx.NamedExecContext(ctx, target, query, &students[i]); err != nil {
			return fmt.Errorf("upsert student %s: %w", students[i].ID, err)
		}
	}
	return nil
}

// UpsertPracticums inserts or replaces practicum blocks by id.
func (r *CatalogRepository) UpsertPracticums(ctx context.Context, exec sqlx.ExtContext, practicums []models.Practicum) error {
	const query = `
INSERT INTO practicums (id, year, branch, division, program, days, slots)
VALUES (:id, :year, :branch, :division, :program, :days, :slots)
ON CONFLICT (id) DO UPDATE
SET year = EXCLUDED.year,
    branch = EXCLUDED.branch,
    division = EXCLUDED.division,
    program = EXCLUDED.program,
    days = EXCLUDED.days,
    slots = EXCLUDED.slots`
	target := r.exec(exec)
	for i := range practicums {
		if _, err := sqlx.NamedExecContext(ctx, target, query, &practicums[i]); err != nil {
			return fmt.Errorf("upsert practicum %s: %w", practicums[i].ID, err)
		}
	}
	return nil
}
