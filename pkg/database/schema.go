package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Schema lists the DDL statements for the timetable store in apply order.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS courses (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    code TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    instructor_id TEXT NOT NULL,
    duration INT NOT NULL DEFAULT 1,
    capacity INT NOT NULL DEFAULT 0,
    year INT NOT NULL,
    branch TEXT NOT NULL,
    division TEXT NOT NULL,
    program TEXT NOT NULL,
    lecture_type TEXT NOT NULL,
    preferred_time_slots TEXT[] NOT NULL DEFAULT '{}',
    credits INT NOT NULL DEFAULT 0,
    is_elective BOOLEAN NOT NULL DEFAULT FALSE,
    elective_group TEXT NOT NULL DEFAULT ''
)`,
	`CREATE TABLE IF NOT EXISTS rooms (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    capacity INT NOT NULL,
    type TEXT NOT NULL,
    department TEXT NOT NULL DEFAULT '',
    allowed_years INT[] NOT NULL DEFAULT '{}',
    available BOOLEAN NOT NULL DEFAULT TRUE
)`,
	`CREATE TABLE IF NOT EXISTS instructors (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    department TEXT NOT NULL DEFAULT '',
    years INT[] NOT NULL DEFAULT '{}',
    expertise TEXT[] NOT NULL DEFAULT '{}',
    availability JSONB NOT NULL DEFAULT '{}',
    max_weekly_load INT NOT NULL DEFAULT 0,
    max_daily_load INT NOT NULL DEFAULT 0
)`,
	`CREATE TABLE IF NOT EXISTS students (
    id TEXT PRIMARY KEY,
    year INT NOT NULL,
    branch TEXT NOT NULL,
    division TEXT NOT NULL,
    program TEXT NOT NULL,
    elective_course_ids TEXT[] NOT NULL DEFAULT '{}'
)`,
	`CREATE TABLE IF NOT EXISTS practicums (
    id TEXT PRIMARY KEY,
    year INT,
    branch TEXT,
    division TEXT,
    program TEXT,
    days TEXT[] NOT NULL,
    slots TEXT[] NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS timetables (
    id UUID PRIMARY KEY,
    year INT NOT NULL,
    branch TEXT NOT NULL,
    division TEXT NOT NULL,
    program TEXT NOT NULL,
    version INT NOT NULL,
    status TEXT NOT NULL,
    mode TEXT NOT NULL,
    seed BIGINT NOT NULL,
    meta JSONB NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    UNIQUE (year, branch, division, program, version)
)`,
	`CREATE TABLE IF NOT EXISTS timetable_slots (
    id UUID PRIMARY KEY,
    timetable_id UUID NOT NULL REFERENCES timetables(id) ON DELETE CASCADE,
    course_id TEXT NOT NULL,
    instructor_id TEXT NOT NULL,
    elective_group TEXT NOT NULL DEFAULT '',
    day TEXT NOT NULL,
    time TEXT NOT NULL,
    room_id TEXT NOT NULL,
    lab_position TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_timetable_slots_timetable ON timetable_slots (timetable_id)`,
	`CREATE INDEX IF NOT EXISTS idx_timetables_cohort_status ON timetables (year, branch, division, program, status)`,
}

// EnsureSchema applies the DDL inside a single transaction.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	for i, stmt := range Schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}
