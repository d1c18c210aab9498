package persistence

import (
	"time"

	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	sharedPersistence "github.com/taskgrid/scheduler/internal/shared/infrastructure/persistence"
)

// PostgresRepository implements Repository using PostgreSQL, hand written
// against jackc/pgx/v5 in the same style as outbox.PostgresRepository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new Postgres scheduling persistence repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// SaveScenarioResult upserts the scenario row and replaces its task rows.
func (r *PostgresRepository) SaveScenarioResult(ctx context.Context, rec ScenarioRecord) error {
	if _, ok := sharedPersistence.TxInfoFromContext(ctx); ok {
		return r.saveScenarioResult(ctx, sharedPersistence.Executor(ctx, r.pool), rec)
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := r.saveScenarioResult(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PostgresRepository) saveScenarioResult(ctx context.Context, ex sharedPersistence.DBExecutor, rec ScenarioRecord) error {
	_, err := ex.Exec(ctx, `
		INSERT INTO scenario_results (project_id, scenario_index, scenario_name, success, scheduled_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (project_id, scenario_index) DO UPDATE SET
			scenario_name = EXCLUDED.scenario_name,
			success = EXCLUDED.success,
			scheduled_at = EXCLUDED.scheduled_at
	`, rec.ProjectID, rec.ScenarioIndex, rec.ScenarioName, rec.Success, rec.ScheduledAt)
	if err != nil {
		return err
	}

	if _, err := ex.Exec(ctx,
		`DELETE FROM scenario_task_results WHERE project_id = $1 AND scenario_index = $2`,
		rec.ProjectID, rec.ScenarioIndex); err != nil {
		return err
	}

	for _, task := range rec.Tasks {
		if _, err := ex.Exec(ctx, `
			INSERT INTO scenario_task_results (project_id, scenario_index, task_id, scheduled, failed, start_at, end_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, rec.ProjectID, rec.ScenarioIndex, task.TaskID, task.Scheduled, task.Failed, task.Start, task.End); err != nil {
			return err
		}
	}
	return nil
}

// GetScenarioResult loads a previously saved scenario result, or nil if none
// was recorded.
func (r *PostgresRepository) GetScenarioResult(ctx context.Context, projectID uuid.UUID, scenarioIndex int) (*ScenarioRecord, error) {
	ex := sharedPersistence.Executor(ctx, r.pool)

	var rec ScenarioRecord
	var scheduledAt time.Time
	err := ex.QueryRow(ctx, `
		SELECT project_id, scenario_index, scenario_name, success, scheduled_at
		FROM scenario_results WHERE project_id = $1 AND scenario_index = $2
	`, projectID, scenarioIndex).Scan(&rec.ProjectID, &rec.ScenarioIndex, &rec.ScenarioName, &rec.Success, &scheduledAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	rec.ScheduledAt = scheduledAt

	rows, err := ex.Query(ctx, `
		SELECT task_id, scheduled, failed, start_at, end_at
		FROM scenario_task_results WHERE project_id = $1 AND scenario_index = $2
	`, projectID, scenarioIndex)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var task TaskRecord
		if err := rows.Scan(&task.TaskID, &task.Scheduled, &task.Failed, &task.Start, &task.End); err != nil {
			return nil, err
		}
		rec.Tasks = append(rec.Tasks, task)
	}
	return &rec, rows.Err()
}

// SaveTrackingBookings replaces the stored tracking bookings for a scenario.
func (r *PostgresRepository) SaveTrackingBookings(ctx context.Context, projectID uuid.UUID, scenarioIndex int, bookings []BookingRecord) error {
	if _, ok := sharedPersistence.TxInfoFromContext(ctx); ok {
		return r.saveTrackingBookings(ctx, sharedPersistence.Executor(ctx, r.pool), projectID, scenarioIndex, bookings)
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := r.saveTrackingBookings(ctx, tx, projectID, scenarioIndex, bookings); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PostgresRepository) saveTrackingBookings(ctx context.Context, ex sharedPersistence.DBExecutor, projectID uuid.UUID, scenarioIndex int, bookings []BookingRecord) error {
	if _, err := ex.Exec(ctx,
		`DELETE FROM tracking_bookings WHERE project_id = $1 AND scenario_index = $2`,
		projectID, scenarioIndex); err != nil {
		return err
	}
	for _, b := range bookings {
		if _, err := ex.Exec(ctx, `
			INSERT INTO tracking_bookings (project_id, scenario_index, task_id, resource_id, slot)
			VALUES ($1, $2, $3, $4, $5)
		`, projectID, scenarioIndex, b.TaskID, b.ResourceID, b.Slot); err != nil {
			return err
		}
	}
	return nil
}

// GetTrackingBookings loads the stored tracking bookings for a scenario.
func (r *PostgresRepository) GetTrackingBookings(ctx context.Context, projectID uuid.UUID, scenarioIndex int) ([]BookingRecord, error) {
	rows, err := sharedPersistence.Executor(ctx, r.pool).Query(ctx, `
		SELECT task_id, resource_id, slot
		FROM tracking_bookings WHERE project_id = $1 AND scenario_index = $2
		ORDER BY slot
	`, projectID, scenarioIndex)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []BookingRecord
	for rows.Next() {
		var b BookingRecord
		if err := rows.Scan(&b.TaskID, &b.ResourceID, &b.Slot); err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}
