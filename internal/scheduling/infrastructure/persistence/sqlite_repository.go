package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	sharedPersistence "github.com/taskgrid/scheduler/internal/shared/infrastructure/persistence"
)

// SQLiteRepository implements Repository using database/sql against
// modernc.org/sqlite, hand written in the same style as
// internal/shared/infrastructure/outbox.SQLiteRepository since this module
// carries no sqlc toolchain.
type SQLiteRepository struct {
	dbConn *sql.DB
}

// NewSQLiteRepository creates a new SQLite scheduling persistence repository.
func NewSQLiteRepository(dbConn *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{dbConn: dbConn}
}

type sqliteQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *SQLiteRepository) querier(ctx context.Context) sqliteQuerier {
	if info, ok := sharedPersistence.SQLiteTxInfoFromContext(ctx); ok {
		return info.Tx
	}
	return r.dbConn
}

// SaveScenarioResult upserts the scenario-level row and replaces its task
// rows wholesale; scenario runs are deterministic and idempotent, so a
// re-run simply overwrites the prior recording.
func (r *SQLiteRepository) SaveScenarioResult(ctx context.Context, rec ScenarioRecord) error {
	if info, ok := sharedPersistence.SQLiteTxInfoFromContext(ctx); ok {
		return r.saveScenarioResult(ctx, info.Tx, rec)
	}
	tx, err := r.dbConn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := r.saveScenarioResult(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SQLiteRepository) saveScenarioResult(ctx context.Context, q sqliteQuerier, rec ScenarioRecord) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO scenario_results (project_id, scenario_index, scenario_name, success, scheduled_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(project_id, scenario_index) DO UPDATE SET
			scenario_name = excluded.scenario_name,
			success = excluded.success,
			scheduled_at = excluded.scheduled_at
	`, rec.ProjectID.String(), rec.ScenarioIndex, rec.ScenarioName, rec.Success, rec.ScheduledAt.Format(time.RFC3339))
	if err != nil {
		return err
	}

	if _, err := q.ExecContext(ctx,
		`DELETE FROM scenario_task_results WHERE project_id = ? AND scenario_index = ?`,
		rec.ProjectID.String(), rec.ScenarioIndex); err != nil {
		return err
	}

	for _, task := range rec.Tasks {
		var start, end any
		if task.Start != nil {
			start = task.Start.Format(time.RFC3339)
		}
		if task.End != nil {
			end = task.End.Format(time.RFC3339)
		}
		if _, err := q.ExecContext(ctx, `
			INSERT INTO scenario_task_results (project_id, scenario_index, task_id, scheduled, failed, start_at, end_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, rec.ProjectID.String(), rec.ScenarioIndex, task.TaskID, task.Scheduled, task.Failed, start, end); err != nil {
			return err
		}
	}
	return nil
}

// GetScenarioResult loads a previously saved scenario result, or nil if none
// was recorded.
func (r *SQLiteRepository) GetScenarioResult(ctx context.Context, projectID uuid.UUID, scenarioIndex int) (*ScenarioRecord, error) {
	q := r.querier(ctx)

	var rec ScenarioRecord
	var scheduledAt string
	row := q.QueryRowContext(ctx, `
		SELECT project_id, scenario_index, scenario_name, success, scheduled_at
		FROM scenario_results WHERE project_id = ? AND scenario_index = ?
	`, projectID.String(), scenarioIndex)
	var projectIDStr string
	if err := row.Scan(&projectIDStr, &rec.ScenarioIndex, &rec.ScenarioName, &rec.Success, &scheduledAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	rec.ProjectID, _ = uuid.Parse(projectIDStr)
	rec.ScheduledAt, _ = time.Parse(time.RFC3339, scheduledAt)

	rows, err := q.QueryContext(ctx, `
		SELECT task_id, scheduled, failed, start_at, end_at
		FROM scenario_task_results WHERE project_id = ? AND scenario_index = ?
	`, projectID.String(), scenarioIndex)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var task TaskRecord
		var start, end sql.NullString
		if err := rows.Scan(&task.TaskID, &task.Scheduled, &task.Failed, &start, &end); err != nil {
			return nil, err
		}
		if start.Valid {
			t, _ := time.Parse(time.RFC3339, start.String)
			task.Start = &t
		}
		if end.Valid {
			t, _ := time.Parse(time.RFC3339, end.String)
			task.End = &t
		}
		rec.Tasks = append(rec.Tasks, task)
	}
	return &rec, rows.Err()
}

// SaveTrackingBookings replaces the stored tracking bookings for a scenario.
func (r *SQLiteRepository) SaveTrackingBookings(ctx context.Context, projectID uuid.UUID, scenarioIndex int, bookings []BookingRecord) error {
	if info, ok := sharedPersistence.SQLiteTxInfoFromContext(ctx); ok {
		return r.saveTrackingBookings(ctx, info.Tx, projectID, scenarioIndex, bookings)
	}
	tx, err := r.dbConn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := r.saveTrackingBookings(ctx, tx, projectID, scenarioIndex, bookings); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SQLiteRepository) saveTrackingBookings(ctx context.Context, q sqliteQuerier, projectID uuid.UUID, scenarioIndex int, bookings []BookingRecord) error {
	if _, err := q.ExecContext(ctx,
		`DELETE FROM tracking_bookings WHERE project_id = ? AND scenario_index = ?`,
		projectID.String(), scenarioIndex); err != nil {
		return err
	}
	for _, b := range bookings {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO tracking_bookings (project_id, scenario_index, task_id, resource_id, slot)
			VALUES (?, ?, ?, ?, ?)
		`, projectID.String(), scenarioIndex, b.TaskID, b.ResourceID, b.Slot); err != nil {
			return err
		}
	}
	return nil
}

// GetTrackingBookings loads the stored tracking bookings for a scenario.
func (r *SQLiteRepository) GetTrackingBookings(ctx context.Context, projectID uuid.UUID, scenarioIndex int) ([]BookingRecord, error) {
	rows, err := r.querier(ctx).QueryContext(ctx, `
		SELECT task_id, resource_id, slot
		FROM tracking_bookings WHERE project_id = ? AND scenario_index = ?
		ORDER BY slot
	`, projectID.String(), scenarioIndex)
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
