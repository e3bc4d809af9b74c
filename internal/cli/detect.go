package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-engine/internal/scheduler"
	"github.com/noah-isme/timetable-engine/internal/snapshot"
	"github.com/noah-isme/timetable-engine/pkg/export"
)

type detectOutput struct {
	Cohort         string                     `json:"cohort"`
	Conflicts      []scheduler.ConflictRecord `json:"conflicts"`
	AvailableCells []scheduler.Cell           `json:"availableCells"`
	Moves          []scheduler.Move           `json:"moves,omitempty"`
	Unresolved     []scheduler.ConflictRecord `json:"unresolved,omitempty"`
}

func newDetectCmd(a *app) *cobra.Command {
	var (
		timetablePath string
		cohortArg     string
		resolve       bool
		dataDir       string
		out           string
	)

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Report room and instructor conflicts in a timetable CSV",
		Long: `Reads a timetable written by "generate --out FILE.csv" (or edited by hand)
and prints every double-booked room and instructor together with the free
cells. With --resolve the catalog in --data is loaded and conflicting slots
are relocated; the repaired timetable is written to --out.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cohort, err := snapshot.ParseCohort(cohortArg)
			if err != nil {
				return err
			}
			tt, err := snapshot.ReadTimetable(timetablePath, cohort)
			if err != nil {
				return err
			}

			report := scheduler.Detect(tt)
			output := detectOutput{
				Cohort:         cohort.Key(),
				Conflicts:      report.Conflicts,
				AvailableCells: report.AvailableCells,
			}

			if resolve && len(report.Conflicts) > 0 {
				if out == "" {
					return fmt.Errorf("--resolve needs --out for the repaired timetable")
				}
				snap, err := snapshot.Load(dataDir)
				if err != nil {
					return err
				}
				resolution := scheduler.Resolve(snap.Input(cohort, scheduler.DefaultOptions(), 0), tt, report.Conflicts)
				output.Moves = resolution.Moves
				output.Unresolved = resolution.Unresolved

				rows := snapshot.SlotRows(resolution.Timetable)
				data, err := export.NewCSVExporter().Render(&rows)
				if err != nil {
					return fmt.Errorf("render resolved timetable: %w", err)
				}
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", out, err)
				}
				a.logger.Info("resolved timetable written",
					zap.String("path", out),
					zap.Int("moves", len(resolution.Moves)),
					zap.Int("unresolved", len(resolution.Unresolved)),
				)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(output)
		},
	}

	cmd.Flags().StringVar(&timetablePath, "timetable", "", "Timetable CSV to check")
	cmd.Flags().StringVar(&cohortArg, "cohort", "", "Cohort the timetable belongs to")
	cmd.Flags().BoolVar(&resolve, "resolve", false, "Relocate conflicting slots")
	cmd.Flags().StringVar(&dataDir, "data", ".", "Catalog directory used by --resolve")
	cmd.Flags().StringVar(&out, "out", "", "Where --resolve writes the repaired timetable CSV")
	_ = cmd.MarkFlagRequired("timetable")
	_ = cmd.MarkFlagRequired("cohort")

	return cmd
}
