package domain

import "time"

// DurationMode is the task's inferred scheduling category. Exactly one
// applies; it is chosen once during prepare by the precedence milestone >
// effort > length > duration > startEnd.
type DurationMode int

const (
	ModeUnset DurationMode = iota
	ModeMilestone
	ModeEffort
	ModeLength
	ModeDuration
	ModeStartEnd
)

// Direction is the task's scheduling anchor: forward (ASAP, anchored on
// start) or backward (ALAP, anchored on end).
type Direction int

const (
	DirectionForward Direction = iota
	DirectionALAP
)

// Task is a node in the task tree. Only leaves (no ChildHandles) are
// directly scheduled; containers derive their span from their children.
type Task struct {
	Handle       TaskHandle
	ID           string
	Name         string
	ParentHandle TaskHandle
	ChildHandles []TaskHandle

	Mode DurationMode

	EffortHours  float64
	Length       time.Duration
	DurationSpan time.Duration

	ExplicitStart *time.Time
	ExplicitEnd   *time.Time
	MinStart      *time.Time
	MaxStart      *time.Time
	MinEnd        *time.Time
	MaxEnd        *time.Time

	Direction Direction

	Depends  []Dependency
	Precedes []Dependency

	Allocations []Allocation

	Priority int
	SeqNo    int

	PathCriticalness float64
	Criticalness     float64
}

// NewTask constructs a leaf task with default priority 500 (spec default).
func NewTask(handle TaskHandle, id, name string, seqNo int) *Task {
	return &Task{
		Handle:       handle,
		ID:           id,
		Name:         name,
		ParentHandle: NoTask,
		Priority:     500,
		SeqNo:        seqNo,
	}
}

// IsLeaf reports whether the task has no children.
func (t *Task) IsLeaf() bool { return len(t.ChildHandles) == 0 }

// InferMode assigns Mode by precedence milestone > effort > length >
// duration > startEnd, rejecting cross-category combinations.
func (t *Task) InferMode() error {
	categories := 0
	if t.EffortHours > 0 {
		categories++
	}
	if t.Length > 0 {
		categories++
	}
	if t.DurationSpan > 0 {
		categories++
	}
	startEnd := t.ExplicitStart != nil && t.ExplicitEnd != nil
	// A task with no duration category and not both anchors explicit is a
	// milestone: zero anchors is a free-floating milestone, one anchor is an
	// implicit milestone whose missing side the schedule pass copies over.
	noDurationCategory := categories == 0
	isMilestone := noDurationCategory && !startEnd

	switch {
	case isMilestone:
		t.Mode = ModeMilestone
	case t.EffortHours > 0:
		if categories > 1 {
			return ErrMixedDurationSpec
		}
		t.Mode = ModeEffort
	case t.Length > 0:
		if categories > 1 {
			return ErrMixedDurationSpec
		}
		t.Mode = ModeLength
	case t.DurationSpan > 0:
		if categories > 1 {
			return ErrMixedDurationSpec
		}
		t.Mode = ModeDuration
	case startEnd:
		t.Mode = ModeStartEnd
	default:
		return ErrNoDurationSpec
	}
	return nil
}

// TaskState is the per-scenario mutable scheduling state for a task.
type TaskState struct {
	Task *Task

	Scheduled bool
	Failed    bool
	IsRunAway bool

	Start *time.Time
	End   *time.Time

	Cursor SlotIdx

	DoneEffortHours float64
	DoneLength      time.Duration
	DoneDuration    time.Duration

	// LockedResource remembers, per allocation index, the resource picked
	// under a Persistent allocation once one has been chosen.
	LockedResource map[int]ResourceHandle
	// CachedOrder remembers a non-persistent min-allocated ordering computed
	// once for the task (selectionMode orderings other than min-allocated are
	// recomputed every slot and do not need a cache entry here).
	CachedOrder map[int][]ResourceHandle

	Bookings []Booking
}

// Booking records one slot a task claimed on a resource, for reporting.
type Booking struct {
	Resource ResourceHandle
	Slot     SlotIdx
}

// NewTaskState returns zeroed per-scenario state for task.
func NewTaskState(task *Task) *TaskState {
	return &TaskState{
		Task:           task,
		Cursor:         NoSlot,
		LockedResource: make(map[int]ResourceHandle),
		CachedOrder:    make(map[int][]ResourceHandle),
	}
}

// EffectiveStart returns the task's start time if known, for container
// aggregation and dependency resolution.
func (ts *TaskState) EffectiveStart() (time.Time, bool) {
	if ts.Start != nil {
		return *ts.Start, true
	}
	if ts.Task.ExplicitStart != nil {
		return *ts.Task.ExplicitStart, true
	}
	return time.Time{}, false
}

// EffectiveEnd returns the task's end time if known.
func (ts *TaskState) EffectiveEnd() (time.Time, bool) {
	if ts.End != nil {
		return *ts.End, true
	}
	if ts.Task.ExplicitEnd != nil {
		return *ts.Task.ExplicitEnd, true
	}
	return time.Time{}, false
}
