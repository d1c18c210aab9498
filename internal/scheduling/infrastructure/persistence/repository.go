// Package persistence stores scenario results and the tracking-scenario
// replay log so a scheduled scenario survives a process restart and a
// tracking scenario's pre-supplied bookings can be re-applied on prepare
// without re-deriving them.
package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"

	domain "github.com/taskgrid/scheduler/internal/scheduling/domain"
)

// TaskRecord is one leaf task's outcome from a scenario run.
type TaskRecord struct {
	TaskID    string
	Scheduled bool
	Failed    bool
	Start     *time.Time
	End       *time.Time
}

// ScenarioRecord is the durable summary of one scenario run, enough to
// answer "was this scenario successful and when did each task land" without
// re-running the solve.
type ScenarioRecord struct {
	ProjectID     uuid.UUID
	ScenarioIndex int
	ScenarioName  string
	Success       bool
	ScheduledAt   time.Time
	Tasks         []TaskRecord
}

// BookingRecord is one (task, resource, slot) triple from a tracking
// scenario, identified by business IDs rather than arena handles since
// handles are only stable within a single in-memory Project.
type BookingRecord struct {
	TaskID     string
	ResourceID string
	Slot       int
}

// Repository persists scenario results and tracking bookings. Both SQLite
// and Postgres adapters implement it identically from the caller's side;
// the driver is selected by config.Config.DatabaseDriver.
type Repository interface {
	SaveScenarioResult(ctx context.Context, rec ScenarioRecord) error
	GetScenarioResult(ctx context.Context, projectID uuid.UUID, scenarioIndex int) (*ScenarioRecord, error)

	SaveTrackingBookings(ctx context.Context, projectID uuid.UUID, scenarioIndex int, bookings []BookingRecord) error
	GetTrackingBookings(ctx context.Context, projectID uuid.UUID, scenarioIndex int) ([]BookingRecord, error)
}

// ToBookingRecords converts a scenario's in-memory tracking bookings into
// their durable, ID-keyed form for SaveTrackingBookings.
func ToBookingRecords(project *domain.Project, bookings []domain.TrackingBooking) []BookingRecord {
	records := make([]BookingRecord, 0, len(bookings))
	for _, b := range bookings {
		t := project.TaskByHandle(b.Task)
		r := project.ResourceByHandle(b.Resource)
		if t == nil || r == nil {
			continue
		}
		records = append(records, BookingRecord{TaskID: t.ID, ResourceID: r.ID, Slot: int(b.Slot)})
	}
	return records
}

// ToTrackingBookings resolves stored BookingRecords back to arena handles
// for the given project, dropping any record whose ID no longer resolves
// (the project definition changed since the recording was made).
func ToTrackingBookings(project *domain.Project, records []BookingRecord) []domain.TrackingBooking {
	taskByID := make(map[string]domain.TaskHandle, len(project.Tasks))
	for _, t := range project.Tasks {
		taskByID[t.ID] = t.Handle
	}
	resourceByID := make(map[string]domain.ResourceHandle, len(project.Resources))
	for _, r := range project.Resources {
		resourceByID[r.ID] = r.Handle
	}

	bookings := make([]domain.TrackingBooking, 0, len(records))
	for _, rec := range records {
		taskHandle, ok := taskByID[rec.TaskID]
		if !ok {
			continue
		}
		resourceHandle, ok := resourceByID[rec.ResourceID]
		if !ok {
			continue
		}
		bookings = append(bookings, domain.TrackingBooking{
			Task:     taskHandle,
			Resource: resourceHandle,
			Slot:     domain.SlotIdx(rec.Slot),
		})
	}
	return bookings
}
