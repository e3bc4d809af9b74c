package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogDir = "../snapshot/testdata/catalog"

func execute(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	if a == nil {
		a = &app{openDB: func(context.Context) (*sqlx.DB, error) {
			t.Fatal("unexpected database access")
			return nil, nil
		}}
	}
	cmd := newRootCmd(a)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestGenerateSingleCohortWritesCSV(t *testing.T) {
	target := filepath.Join(t.TempDir(), "cse-a.csv")

	out, err := execute(t, nil, "generate", "--data", catalogDir, "--cohort", "2/cse/a/btech", "--seed", "7", "--out", target)
	require.NoError(t, err)
	assert.Contains(t, out, "2/CSE/A/BTECH phase=")
	assert.Contains(t, out, "seed=7")

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Greater(t, len(lines), 1)
	assert.Equal(t, "day,time,course_id,instructor_id,room_id,elective_group,lab_position", lines[0])
}

func TestGenerateIsDeterministicForSeed(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.csv")
	second := filepath.Join(dir, "second.csv")

	_, err := execute(t, nil, "generate", "--data", catalogDir, "--cohort", "2/CSE/A/BTECH", "--seed", "3", "--out", first)
	require.NoError(t, err)
	_, err = execute(t, nil, "generate", "--data", catalogDir, "--cohort", "2/CSE/A/BTECH", "--seed", "3", "--out", second)
	require.NoError(t, err)

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGenerateAllWritesOneFilePerCohort(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, nil, "generate", "--data", catalogDir, "--all", "--out-dir", dir, "--format", "xlsx")
	require.NoError(t, err)
	assert.Contains(t, out, "2/CSE/A/BTECH")
	assert.Contains(t, out, "3/CSE/B/BTECH")

	for _, name := range []string{"2_CSE_A_BTECH.xlsx", "3_CSE_B_BTECH.xlsx"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Positive(t, info.Size())
	}
}

func TestGenerateRejectsBadFlags(t *testing.T) {
	cases := [][]string{
		{"generate", "--data", catalogDir},
		{"generate", "--data", catalogDir, "--all", "--cohort", "2/CSE/A/BTECH"},
		{"generate", "--data", catalogDir, "--cohort", "2/CSE/A/BTECH", "--mode", "fast"},
		{"generate", "--data", catalogDir, "--cohort", "CSE"},
		{"generate", "--data", catalogDir, "--all", "--out", "x.csv"},
		{"generate", "--data", t.TempDir(), "--cohort", "2/CSE/A/BTECH"},
	}
	for _, args := range cases {
		_, err := execute(t, nil, args...)
		assert.Error(t, err, strings.Join(args, " "))
	}
}

func writeConflictingTimetable(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clash.csv")
	content := "day,time,course_id,instructor_id,room_id,elective_group,lab_position\n" +
		"Monday,09:00,c1,i1,R1,,\n" +
		"Monday,09:00,e1,i2,R1,E1,\n" +
		"Tuesday,09:00,c1,i1,R1,,\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDetectReportsRoomConflict(t *testing.T) {
	path := writeConflictingTimetable(t)

	out, err := execute(t, nil, "detect", "--timetable", path, "--cohort", "2/CSE/A/BTECH")
	require.NoError(t, err)

	var report detectOutput
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, "room", string(report.Conflicts[0].Type))
	assert.Equal(t, "R1", report.Conflicts[0].Key)
	assert.ElementsMatch(t, []string{"c1", "e1"}, report.Conflicts[0].Participants)
	assert.Len(t, report.AvailableCells, 33)
	assert.Empty(t, report.Moves)
}

func TestDetectResolveWritesRepairedTimetable(t *testing.T) {
	path := writeConflictingTimetable(t)
	repaired := filepath.Join(t.TempDir(), "fixed.csv")

	out, err := execute(t, nil, "detect", "--timetable", path, "--cohort", "2/CSE/A/BTECH",
		"--resolve", "--data", catalogDir, "--out", repaired)
	require.NoError(t, err)

	var report detectOutput
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Moves, 1)
	assert.Empty(t, report.Unresolved)

	again, err := execute(t, nil, "detect", "--timetable", repaired, "--cohort", "2/CSE/A/BTECH")
	require.NoError(t, err)
	var clean detectOutput
	require.NoError(t, json.Unmarshal([]byte(again), &clean))
	assert.Empty(t, clean.Conflicts)
}

func TestDetectResolveNeedsOut(t *testing.T) {
	path := writeConflictingTimetable(t)
	_, err := execute(t, nil, "detect", "--timetable", path, "--cohort", "2/CSE/A/BTECH", "--resolve", "--data", catalogDir)
	assert.Error(t, err)
}

func TestScenarioReportsNewlyUnplacedLab(t *testing.T) {
	patch := filepath.Join(t.TempDir(), "no-lab.yaml")
	require.NoError(t, os.WriteFile(patch, []byte("name: lab-closed\nremoveRooms:\n  - L1\n"), 0o644))

	out, err := execute(t, nil, "scenario", "--data", catalogDir, "--cohort", "2/CSE/A/BTECH", "--patch", patch)
	require.NoError(t, err)
	assert.Contains(t, out, "baseline: 2/CSE/A/BTECH")
	assert.Contains(t, out, "scenario lab-closed: 2/CSE/A/BTECH")
	assert.Contains(t, out, "newly unplaced: c2")
}

func TestScenarioRejectsMalformedPatch(t *testing.T) {
	patch := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(patch, []byte("removeRooms: [L1\n"), 0o644))

	_, err := execute(t, nil, "scenario", "--data", catalogDir, "--cohort", "2/CSE/A/BTECH", "--patch", patch)
	assert.Error(t, err)
}

func TestImportUpsertsCatalogInTransaction(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	db := sqlx.NewDb(mockDB, "sqlmock")

	mock.ExpectBegin()
	for _, table := range []struct {
		name string
		rows int
	}{{"instructors", 2}, {"rooms", 2}, {"courses", 4}, {"students", 2}, {"practicums", 1}} {
		for i := 0; i < table.rows; i++ {
			mock.ExpectExec(regexp.QuoteMeta("INSERT INTO " + table.name)).WillReturnResult(sqlmock.NewResult(0, 1))
		}
	}
	mock.ExpectCommit()
	mock.ExpectClose()

	a := &app{openDB: func(context.Context) (*sqlx.DB, error) { return db, nil }}
	out, err := execute(t, a, "import", "--data", catalogDir)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 4 courses, 2 rooms, 2 instructors, 2 students, 1 practicums")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImportRollsBackOnFailure(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	db := sqlx.NewDb(mockDB, "sqlmock")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO instructors")).WillReturnError(assert.AnError)
	mock.ExpectRollback()
	mock.ExpectClose()

	a := &app{openDB: func(context.Context) (*sqlx.DB, error) { return db, nil }}
	_, err = execute(t, a, "import", "--data", catalogDir)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
