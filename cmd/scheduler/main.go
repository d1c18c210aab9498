// Command scheduler is the thin ambient entrypoint for the deterministic
// project scheduler: configuration, logging, persistence, and event
// publishing wiring around internal/scheduling/application/services. It is
// not a declarative-language parser; project definitions are read from a
// plain JSON document via internal/scheduling/infrastructure/projectio.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/taskgrid/scheduler/internal/scheduling/application/services"
	domain "github.com/taskgrid/scheduler/internal/scheduling/domain"
	schedpersistence "github.com/taskgrid/scheduler/internal/scheduling/infrastructure/persistence"
	"github.com/taskgrid/scheduler/internal/scheduling/infrastructure/projectio"
	"github.com/taskgrid/scheduler/internal/shared/infrastructure/database"
	dbpostgres "github.com/taskgrid/scheduler/internal/shared/infrastructure/database/postgres"
	dbsqlite "github.com/taskgrid/scheduler/internal/shared/infrastructure/database/sqlite"
	"github.com/taskgrid/scheduler/internal/shared/infrastructure/eventbus"
	"github.com/taskgrid/scheduler/internal/shared/infrastructure/migrations"
	"github.com/taskgrid/scheduler/internal/shared/infrastructure/security"
	"github.com/taskgrid/scheduler/pkg/config"
)

var logger *slog.Logger

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "scheduler",
		Short: "Deterministic discrete time-slot project scheduler",
	}

	var projectPath string
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Schedule every active scenario in a project document and persist the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchedule(cmd.Context(), projectPath)
		},
	}
	runCmd.Flags().StringVar(&projectPath, "project", "", "path to a project JSON document")
	_ = runCmd.MarkFlagRequired("project")

	var replayProjectID string
	var replayScenarioIdx int
	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Print the stored tracking bookings and scenario result for a project/scenario",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), replayProjectID, replayScenarioIdx)
		},
	}
	replayCmd.Flags().StringVar(&replayProjectID, "project-id", "", "project UUID to load")
	replayCmd.Flags().IntVar(&replayScenarioIdx, "scenario", 0, "scenario index to load")
	_ = replayCmd.MarkFlagRequired("project-id")

	root.AddCommand(runCmd, replayCmd)

	if err := root.Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func runSchedule(ctx context.Context, projectPath string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.IsDevelopment() {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	f, err := security.SafeOpen(projectPath)
	if err != nil {
		return fmt.Errorf("open project document: %w", err)
	}
	defer f.Close()

	project, err := projectio.Load(f)
	if err != nil {
		return fmt.Errorf("load project: %w", err)
	}

	repo, publisher, closeAll, err := wireInfrastructure(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeAll()

	engine := services.NewSchedulerEngine(
		services.WithLogger(logger),
		services.WithPublisher(publisher),
	)
	result, err := engine.Run(ctx, project)
	if err != nil {
		return fmt.Errorf("run scheduler: %w", err)
	}

	for _, sr := range result.Scenarios {
		rec := toScenarioRecord(project, sr)
		if repo != nil {
			if err := repo.SaveScenarioResult(ctx, rec); err != nil {
				logger.Warn("failed to persist scenario result", "scenario", sr.Scenario.Name, "error", err)
			}
		}
		logger.Info("scenario done", "scenario", sr.Scenario.Name, "success", !sr.Failed)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"success":        result.Success,
		"diagnostics":    project.Diagnostics.All(),
		"scenario_count": len(result.Scenarios),
	})
}

func runReplay(ctx context.Context, projectIDStr string, scenarioIdx int) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	repo, _, closeAll, err := wireInfrastructure(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeAll()
	if repo == nil {
		return fmt.Errorf("no persistence backend configured")
	}

	projectID, err := uuid.Parse(projectIDStr)
	if err != nil {
		return fmt.Errorf("parse project id: %w", err)
	}

	rec, err := repo.GetScenarioResult(ctx, projectID, scenarioIdx)
	if err != nil {
		return fmt.Errorf("load scenario result: %w", err)
	}
	bookings, err := repo.GetTrackingBookings(ctx, projectID, scenarioIdx)
	if err != nil {
		return fmt.Errorf("load tracking bookings: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"scenario_result":   rec,
		"tracking_bookings": bookings,
	})
}

// wireInfrastructure connects to the configured database driver and builds
// the persistence repository and event publisher. closeAll is always
// non-nil and safe to call even when individual resources never connected.
func wireInfrastructure(ctx context.Context, cfg *config.Config) (schedpersistence.Repository, eventbus.Publisher, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var repo schedpersistence.Repository
	if cfg.IsSQLite() {
		if err := database.EnsureDirectory(cfg.SQLitePath); err != nil {
			return nil, nil, closeAll, fmt.Errorf("ensure sqlite directory: %w", err)
		}
		conn, err := database.NewConnection(ctx, database.Config{Driver: database.DriverSQLite, SQLitePath: cfg.SQLitePath})
		if err != nil {
			return nil, nil, closeAll, fmt.Errorf("connect sqlite: %w", err)
		}
		closers = append(closers, func() { _ = conn.Close() })
		sqliteConn, ok := conn.(*dbsqlite.Connection)
		if !ok {
			return nil, nil, closeAll, fmt.Errorf("unexpected sqlite connection type")
		}
		if err := migrations.RunSQLiteMigrations(ctx, sqliteConn.DB()); err != nil {
			return nil, nil, closeAll, fmt.Errorf("run sqlite migrations: %w", err)
		}
		repo = schedpersistence.NewSQLiteRepository(sqliteConn.DB())
	} else {
		conn, err := database.NewConnection(ctx, database.Config{Driver: database.DriverPostgres, URL: cfg.DatabaseURL})
		if err != nil {
			return nil, nil, closeAll, fmt.Errorf("connect postgres: %w", err)
		}
		closers = append(closers, func() { _ = conn.Close() })
		pgConn, ok := conn.(*dbpostgres.Connection)
		if !ok {
			return nil, nil, closeAll, fmt.Errorf("unexpected postgres connection type")
		}
		pool := poolOf(pgConn)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return nil, nil, closeAll, fmt.Errorf("run postgres migrations: %w", err)
		}
		repo = schedpersistence.NewPostgresRepository(pool)
	}

	var publisher eventbus.Publisher
	if cfg.RabbitMQURL != "" {
		rabbit, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, logger)
		if err != nil {
			logger.Warn("RabbitMQ unavailable, falling back to in-process bus", "error", err)
			publisher = eventbus.NewInProcessEventBus(logger)
		} else {
			publisher = rabbit
			closers = append(closers, func() { _ = rabbit.Close() })
		}
	} else {
		publisher = eventbus.NewInProcessEventBus(logger)
	}

	return repo, publisher, closeAll, nil
}

// poolOf extracts the underlying pgxpool.Pool from a postgres.Connection for
// the scheduling repository, which talks to pgx directly rather than through
// the abstract database.Connection interface.
func poolOf(conn *dbpostgres.Connection) *pgxpool.Pool {
	return conn.Pool()
}

func toScenarioRecord(project *domain.Project, sr *services.ScenarioResult) schedpersistence.ScenarioRecord {
	rec := schedpersistence.ScenarioRecord{
		ProjectID:     project.ID(),
		ScenarioIndex: sr.Scenario.Index,
		ScenarioName:  sr.Scenario.Name,
		Success:       !sr.Failed,
	}
	for _, t := range project.Tasks {
		if !t.IsLeaf() {
			continue
		}
		ts := sr.State.Task(t.Handle)
		if ts == nil {
			continue
		}
		rec.Tasks = append(rec.Tasks, schedpersistence.TaskRecord{
			TaskID:    t.ID,
			Scheduled: ts.Scheduled,
			Failed:    ts.Failed,
			Start:     ts.Start,
			End:       ts.End,
		})
	}
	return rec
}
