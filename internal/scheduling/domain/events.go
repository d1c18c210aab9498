package domain

import (
	"github.com/google/uuid"

	sharedDomain "github.com/taskgrid/scheduler/internal/shared/domain"
)

// Scheduling domain events, handed by the scheduler engine straight to the
// configured event bus publisher for the (out-of-scope) report layer to
// subscribe to. They are not written to the outbox.

// ScenarioScheduled is raised once a scenario's schedule pass completes,
// successfully or not.
type ScenarioScheduled struct {
	sharedDomain.BaseEvent
	ScenarioIndex int
	ScenarioName  string
	Failed        bool
}

// NewScenarioScheduled constructs the event for a project/scenario pair.
func NewScenarioScheduled(projectID uuid.UUID, scenarioIdx int, name string, failed bool) ScenarioScheduled {
	return ScenarioScheduled{
		BaseEvent:     sharedDomain.NewBaseEvent(projectID, "Project", "scheduling.scenario.scheduled"),
		ScenarioIndex: scenarioIdx,
		ScenarioName:  name,
		Failed:        failed,
	}
}

// TaskScheduled is raised for every leaf task the schedule pass places.
type TaskScheduled struct {
	sharedDomain.BaseEvent
	ScenarioIndex int
	TaskHandle    TaskHandle
	TaskID        string
}

// NewTaskScheduled constructs the event.
func NewTaskScheduled(projectID uuid.UUID, scenarioIdx int, task *Task) TaskScheduled {
	return TaskScheduled{
		BaseEvent:     sharedDomain.NewBaseEvent(projectID, "Project", "scheduling.task.scheduled"),
		ScenarioIndex: scenarioIdx,
		TaskHandle:    task.Handle,
		TaskID:        task.ID,
	}
}

// Deadlocked is raised when the ready-set loop can make no further progress
// with tasks remaining unscheduled.
type Deadlocked struct {
	sharedDomain.BaseEvent
	ScenarioIndex     int
	RemainingTaskIDs  []string
}

// NewDeadlocked constructs the event.
func NewDeadlocked(projectID uuid.UUID, scenarioIdx int, remainingTaskIDs []string) Deadlocked {
	return Deadlocked{
		BaseEvent:        sharedDomain.NewBaseEvent(projectID, "Project", "scheduling.scenario.deadlocked"),
		ScenarioIndex:    scenarioIdx,
		RemainingTaskIDs: remainingTaskIDs,
	}
}

// LimitViolated describes a booking rejected because a Limit's cap would be
// exceeded. It is informational: the scenario is not failed. The scheduler
// engine does not publish it; rejected bookings are recorded as
// limit_violation diagnostics instead.
type LimitViolated struct {
	sharedDomain.BaseEvent
	ScenarioIndex int
	LimitName     string
	TaskID        string
}

// NewLimitViolated constructs the event.
func NewLimitViolated(projectID uuid.UUID, scenarioIdx int, limitName, taskID string) LimitViolated {
	return LimitViolated{
		BaseEvent:     sharedDomain.NewBaseEvent(projectID, "Project", "scheduling.limit.violated"),
		ScenarioIndex: scenarioIdx,
		LimitName:     limitName,
		TaskID:        taskID,
	}
}
