// Package cli implements the offline timetable command line tool.
package cli

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-engine/internal/scheduler"
	"github.com/noah-isme/timetable-engine/pkg/config"
	"github.com/noah-isme/timetable-engine/pkg/database"
	"github.com/noah-isme/timetable-engine/pkg/logger"
)

type app struct {
	logLevel string
	logger   *zap.Logger
	openDB   func(ctx context.Context) (*sqlx.DB, error)
}

// NewRootCmd creates the root cobra command for the timetable CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{openDB: openConfiguredDB})
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "timetable",
		Short: "Generate and check weekly cohort timetables",
		Long:  "timetable schedules cohorts from a CSV catalog, detects conflicts in exported timetables and imports catalogs into postgres.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := logger.NewCLI(a.logLevel)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			a.logger = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	root.AddCommand(
		newGenerateCmd(a),
		newDetectCmd(a),
		newScenarioCmd(a),
		newImportCmd(a),
	)
	return root
}

func openConfiguredDB(ctx context.Context) (*sqlx.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return database.NewPostgres(ctx, cfg.Database)
}

func parseMode(raw string) (scheduler.Options, error) {
	opts := scheduler.DefaultOptions()
	switch scheduler.FillMode(raw) {
	case scheduler.FillValidated, scheduler.FillSystematic:
		opts.Mode = scheduler.FillMode(raw)
	default:
		return opts, fmt.Errorf("unknown mode %q (want validated or systematic)", raw)
	}
	return opts, nil
}
