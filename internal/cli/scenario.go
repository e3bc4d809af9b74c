package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/timetable-engine/internal/scheduler"
	"github.com/noah-isme/timetable-engine/internal/snapshot"
)

func newScenarioCmd(a *app) *cobra.Command {
	var (
		dataDir   string
		cohortArg string
		patchPath string
		seed      int64
		mode      string
	)

	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Compare a cohort timetable before and after a what-if patch",
		Long: `Applies a YAML patch (courses, rooms and instructors to add, replace or
remove, rooms to close, extra practicum blocks) to the catalog and runs the
engine twice with the same seed, printing the baseline and the patched result.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := parseMode(mode)
			if err != nil {
				return err
			}
			cohort, err := snapshot.ParseCohort(cohortArg)
			if err != nil {
				return err
			}
			patch, err := readScenario(patchPath)
			if err != nil {
				return err
			}
			snap, err := snapshot.Load(dataDir)
			if err != nil {
				return err
			}

			engine := scheduler.New(scheduler.Config{Logger: a.logger})
			in := snap.Input(cohort, opts, seed)

			baseline, err := engine.Generate(in)
			if err != nil {
				return fmt.Errorf("baseline: %w", err)
			}
			patched, err := engine.Generate(scheduler.ApplyScenario(in, patch))
			if err != nil {
				return fmt.Errorf("scenario %s: %w", patch.Name, err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprint(w, "baseline: ")
			printSummary(w, baseline)
			fmt.Fprintf(w, "scenario %s: ", patch.Name)
			printSummary(w, patched)
			for _, id := range newlyUnplaced(baseline, patched) {
				fmt.Fprintf(w, "  newly unplaced: %s\n", id)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dataDir, "data", ".", "Directory holding the catalog CSV files")
	cmd.Flags().StringVar(&cohortArg, "cohort", "", "Cohort as year/branch/division/program")
	cmd.Flags().StringVar(&patchPath, "patch", "", "YAML scenario patch")
	cmd.Flags().Int64Var(&seed, "seed", 1, "Random seed shared by both runs")
	cmd.Flags().StringVar(&mode, "mode", string(scheduler.FillValidated), "Fill mode (validated, systematic)")
	_ = cmd.MarkFlagRequired("cohort")
	_ = cmd.MarkFlagRequired("patch")

	return cmd
}

func readScenario(path string) (scheduler.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return scheduler.Scenario{}, fmt.Errorf("read scenario: %w", err)
	}
	var patch scheduler.Scenario
	if err := yaml.Unmarshal(data, &patch); err != nil {
		return scheduler.Scenario{}, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if patch.Name == "" {
		patch.Name = path
	}
	return patch, nil
}

func newlyUnplaced(before, after *scheduler.Result) []string {
	seen := make(map[string]bool, len(before.Unplaced))
	for _, id := range before.Unplaced {
		seen[id] = true
	}
	var out []string
	for _, id := range after.Unplaced {
		if !seen[id] {
			out = append(out, id)
		}
	}
	return out
}
