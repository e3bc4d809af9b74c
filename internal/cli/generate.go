package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/timetable-engine/internal/scheduler"
	"github.com/noah-isme/timetable-engine/internal/service"
	"github.com/noah-isme/timetable-engine/internal/snapshot"
	"github.com/noah-isme/timetable-engine/pkg/export"
	"github.com/noah-isme/timetable-engine/pkg/storage"
)

func newGenerateCmd(a *app) *cobra.Command {
	var (
		dataDir   string
		cohortArg string
		all       bool
		seed      int64
		mode      string
		out       string
		outDir    string
		format    string
		labBudget time.Duration
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate timetables from a CSV catalog",
		Long: `Loads courses.csv, rooms.csv, instructors.csv and the optional
students.csv and practicums.csv from --data, then schedules one cohort
(--cohort 2/CSE/A/BTECH) or every cohort found in the catalog (--all).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (cohortArg != "") {
				return fmt.Errorf("exactly one of --cohort or --all is required")
			}
			if out != "" && all {
				return fmt.Errorf("--out writes a single file; use --out-dir with --all")
			}
			opts, err := parseMode(mode)
			if err != nil {
				return err
			}

			snap, err := snapshot.Load(dataDir)
			if err != nil {
				return err
			}
			cohorts := snap.Cohorts()
			if !all {
				cohort, err := snapshot.ParseCohort(cohortArg)
				if err != nil {
					return err
				}
				cohorts = []scheduler.Cohort{cohort}
			}

			engine := scheduler.New(scheduler.Config{Logger: a.logger, LabPhaseBudget: labBudget})
			results, err := generateAll(cmd, engine, snap, cohorts, opts, seed)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, result := range results {
				printSummary(w, result)
			}

			switch {
			case out != "":
				ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(out)), ".")
				data, err := render(results[0], snap.Courses, ext)
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", out, err)
				}
				a.logger.Info("timetable written", zap.String("path", out))
			case outDir != "":
				store, err := storage.NewLocalStorage(outDir)
				if err != nil {
					return err
				}
				for _, result := range results {
					data, err := render(result, snap.Courses, format)
					if err != nil {
						return err
					}
					path, err := store.Save(storage.FileName(result.Timetable.Cohort.Key(), format), data)
					if err != nil {
						return err
					}
					a.logger.Info("timetable written", zap.String("cohort", result.Timetable.Cohort.Key()), zap.String("path", path))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dataDir, "data", ".", "Directory holding the catalog CSV files")
	cmd.Flags().StringVar(&cohortArg, "cohort", "", "Cohort as year/branch/division/program")
	cmd.Flags().BoolVar(&all, "all", false, "Generate every cohort in the catalog in parallel")
	cmd.Flags().Int64Var(&seed, "seed", 1, "Random seed; equal seeds give equal timetables")
	cmd.Flags().StringVar(&mode, "mode", string(scheduler.FillValidated), "Fill mode (validated, systematic)")
	cmd.Flags().StringVar(&out, "out", "", "Output file; the extension selects csv, pdf or xlsx")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Directory receiving one file per cohort")
	cmd.Flags().StringVar(&format, "format", service.ExportFormatCSV, "File format for --out-dir (csv, pdf, xlsx)")
	cmd.Flags().DurationVar(&labBudget, "lab-budget", 2*time.Second, "Time budget for relaxed lab placement")

	return cmd
}

// generateAll runs cohorts concurrently; results keep the cohort order.
func generateAll(cmd *cobra.Command, engine *scheduler.Engine, snap *snapshot.Snapshot, cohorts []scheduler.Cohort, opts scheduler.Options, seed int64) ([]*scheduler.Result, error) {
	results := make([]*scheduler.Result, len(cohorts))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(runtime.NumCPU())
	for i, cohort := range cohorts {
		i, cohort := i, cohort
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			result, err := engine.Generate(snap.Input(cohort, opts, seed))
			if err != nil {
				return fmt.Errorf("cohort %s: %w", cohort.Key(), err)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func render(result *scheduler.Result, courses []scheduler.Course, format string) ([]byte, error) {
	title := "Timetable " + result.Timetable.Cohort.Key()
	data, err := service.Render(result.Timetable, courses, format, title,
		export.NewCSVExporter(), export.NewPDFExporter(), export.NewXLSXExporter())
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", result.Timetable.Cohort.Key(), err)
	}
	return data, nil
}

func printSummary(w io.Writer, result *scheduler.Result) {
	fmt.Fprintf(w, "%s phase=%s mode=%s seed=%d slots=%d unplaced=%d warnings=%d\n",
		result.Timetable.Cohort.Key(), result.Phase, result.Mode, result.Seed,
		len(result.Timetable.Slots), len(result.Unplaced), len(result.Warnings))
	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", describeWarning(warning))
	}
}

func describeWarning(w scheduler.Warning) string {
	parts := []string{string(w.Kind)}
	if w.CourseID != "" {
		parts = append(parts, "course="+w.CourseID)
	}
	if w.Cell != nil {
		parts = append(parts, "cell="+w.Cell.String())
	}
	if w.Reason != "" {
		parts = append(parts, "reason="+string(w.Reason))
	}
	if w.Target > 0 {
		parts = append(parts, fmt.Sprintf("placed=%d/%d", w.Placed, w.Target))
	}
	return strings.Join(parts, " ")
}
