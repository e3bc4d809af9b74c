package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-engine/internal/models"
)

var slotRowColumns = []string{"id", "timetable_id", "course_id", "instructor_id", "elective_group", "day", "time", "room_id", "lab_position", "created_at"}

func TestTimetableSlotRepositoryInsertBatch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableSlotRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_slots")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_slots")).WillReturnResult(sqlmock.NewResult(0, 1))

	slots := []models.TimetableSlot{
		{TimetableID: "tt-1", CourseID: "lab", Day: "Monday", Time: "14:00", RoomID: "L1", LabPosition: "first"},
		{TimetableID: "tt-1", CourseID: "lab", Day: "Monday", Time: "15:00", RoomID: "L1", LabPosition: "second"},
	}
	require.NoError(t, repo.InsertBatch(context.Background(), nil, slots))
	for _, slot := range slots {
		assert.NotEmpty(t, slot.ID)
		assert.False(t, slot.CreatedAt.IsZero())
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableSlotRepositoryInsertBatchEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableSlotRepository(db)

	require.NoError(t, repo.InsertBatch(context.Background(), nil, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableSlotRepositoryListByTimetable(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableSlotRepository(db)

	rows := sqlmock.NewRows(slotRowColumns).
		AddRow("s1", "tt-1", "c1", "i1", "", "Monday", "09:00", "r1", "", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_slots WHERE timetable_id = $1")).
		WithArgs("tt-1").
		WillReturnRows(rows)

	slots, err := repo.ListByTimetable(context.Background(), "tt-1")
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "c1", slots[0].CourseID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableSlotRepositoryListPublishedExcluding(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableSlotRepository(db)

	rows := sqlmock.NewRows(slotRowColumns).
		AddRow("s9", "tt-9", "x1", "i1", "", "Tuesday", "10:00", "r1", "", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("JOIN timetables t ON t.id = s.timetable_id")).
		WithArgs(models.TimetableStatusPublished, 2, "CSE", "A", "BTECH").
		WillReturnRows(rows)

	slots, err := repo.ListPublishedExcluding(context.Background(), repoCohort)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "tt-9", slots[0].TimetableID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
