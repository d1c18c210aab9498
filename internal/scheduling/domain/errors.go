package domain

import "errors"

var (
	// ErrInvalidProjectInterval indicates end <= start or the interval does
	// not align with granularity.
	ErrInvalidProjectInterval = errors.New("project interval is invalid")

	// ErrInvalidGranularity indicates a granularity outside [60s, 86400s].
	ErrInvalidGranularity = errors.New("granularity out of range")

	// ErrMixedDurationSpec indicates a task declares more than one duration
	// category (effort/length/duration/milestone/startEnd).
	ErrMixedDurationSpec = errors.New("task declares more than one duration category")

	// ErrNoDurationSpec indicates a leaf task has no duration category and no
	// anchor from which one can be inferred.
	ErrNoDurationSpec = errors.New("task has no duration specification")

	// ErrUnknownTaskHandle indicates a reference to a task handle outside the arena.
	ErrUnknownTaskHandle = errors.New("unknown task handle")

	// ErrUnknownResourceHandle indicates a reference to a resource handle outside the arena.
	ErrUnknownResourceHandle = errors.New("unknown resource handle")

	// ErrResourceIDExpected indicates an allocation candidate resolved to no resource.
	ErrResourceIDExpected = errors.New("resource id expected")

	// ErrManagerIsGroup indicates a group resource was used where a leaf manager was expected.
	ErrManagerIsGroup = errors.New("manager is a group resource")

	// ErrManagerIsSelf indicates a resource was declared as its own manager.
	ErrManagerIsSelf = errors.New("manager is self")

	// ErrManagerLoop indicates a cycle in the resource management chain.
	ErrManagerLoop = errors.New("manager loop detected")

	// ErrDependencyLoop indicates a cycle in the task dependency graph.
	ErrDependencyLoop = errors.New("dependency loop detected")

	// ErrNoScenarios indicates a project has no scenarios to schedule.
	ErrNoScenarios = errors.New("project has no scenarios")
)
