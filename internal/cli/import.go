package cli

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-engine/internal/models"
	"github.com/noah-isme/timetable-engine/internal/repository"
	"github.com/noah-isme/timetable-engine/internal/snapshot"
	"github.com/noah-isme/timetable-engine/pkg/database"
)

func newImportCmd(a *app) *cobra.Command {
	var (
		dataDir string
		migrate bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Upsert a CSV catalog into postgres",
		Long: `Loads the catalog CSV files from --data and upserts them by id in a single
transaction. Database settings come from the same DB_* environment as the API.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := snapshot.Load(dataDir)
			if err != nil {
				return err
			}
			records, err := catalogRecords(snap)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			db, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck

			if migrate {
				if err := database.EnsureSchema(ctx, db); err != nil {
					return err
				}
			}

			repo := repository.NewCatalogRepository(db)
			tx, err := db.BeginTxx(ctx, nil)
			if err != nil {
				return fmt.Errorf("begin import: %w", err)
			}
			defer func() {
				if err != nil {
					_ = tx.Rollback()
				}
			}()

			if err = repo.UpsertInstructors(ctx, tx, records.instructors); err != nil {
				return err
			}
			if err = repo.UpsertRooms(ctx, tx, records.rooms); err != nil {
				return err
			}
			if err = repo.UpsertCourses(ctx, tx, records.courses); err != nil {
				return err
			}
			if err = repo.UpsertStudents(ctx, tx, records.students); err != nil {
				return err
			}
			if err = repo.UpsertPracticums(ctx, tx, records.practicums); err != nil {
				return err
			}
			if err = tx.Commit(); err != nil {
				return fmt.Errorf("commit import: %w", err)
			}

			a.logger.Info("catalog imported",
				zap.Int("courses", len(records.courses)),
				zap.Int("rooms", len(records.rooms)),
				zap.Int("instructors", len(records.instructors)),
				zap.Int("students", len(records.students)),
				zap.Int("practicums", len(records.practicums)),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d courses, %d rooms, %d instructors, %d students, %d practicums\n",
				len(records.courses), len(records.rooms), len(records.instructors), len(records.students), len(records.practicums))
			return nil
		},
	}

	cmd.Flags().StringVar(&dataDir, "data", ".", "Directory holding the catalog CSV files")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Create missing tables before importing")

	return cmd
}

type catalogBatch struct {
	courses     []models.Course
	rooms       []models.Room
	instructors []models.Instructor
	students    []models.Student
	practicums  []models.Practicum
}

func catalogRecords(snap *snapshot.Snapshot) (catalogBatch, error) {
	var batch catalogBatch
	for _, c := range snap.Courses {
		batch.courses = append(batch.courses, models.CourseFromScheduler(c))
	}
	for _, r := range snap.Rooms {
		batch.rooms = append(batch.rooms, models.RoomFromScheduler(r))
	}
	for _, i := range snap.Instructors {
		record, err := models.InstructorFromScheduler(i)
		if err != nil {
			return catalogBatch{}, err
		}
		batch.instructors = append(batch.instructors, record)
	}
	for _, s := range snap.Students {
		batch.students = append(batch.students, models.Student{
			ID:                s.ID,
			Year:              s.Year,
			Branch:            strings.ToUpper(s.Branch),
			Division:          strings.ToUpper(s.Division),
			Program:           strings.ToUpper(s.Program),
			ElectiveCourseIDs: pq.StringArray(s.Electives()),
		})
	}
	for _, p := range snap.Practicums {
		batch.practicums = append(batch.practicums, models.PracticumFromScheduler(p))
	}
	return batch, nil
}
