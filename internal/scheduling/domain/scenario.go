package domain

// Scenario is a named alternative schedule. Scenario-specific task/resource
// state lives in ScenarioState, keyed by this scenario's Index.
type Scenario struct {
	Index  int
	Name   string
	Active bool

	// Tracking indicates this scenario replays a pre-supplied set of actual
	// bookings (from an external time-tracking source) before the normal
	// schedule pass runs; those bookings are forced in during prepare.
	Tracking         bool
	TrackingBookings []TrackingBooking
}

// TrackingBooking is a pre-supplied (task, resource, slot) triple forced into
// the scoreboard during prepare for a tracking scenario.
type TrackingBooking struct {
	Task     TaskHandle
	Resource ResourceHandle
	Slot     SlotIdx
}

// NewScenario constructs an active, non-tracking scenario.
func NewScenario(index int, name string) *Scenario {
	return &Scenario{Index: index, Name: name, Active: true}
}

// ScenarioState is the full per-scenario mutable state: one TaskState per
// task handle and one ResourceState per resource handle, plus whether the
// scenario failed. Diagnostics are recorded on the Project, tagged with the
// scenario index.
type ScenarioState struct {
	Scenario       *Scenario
	TaskStates     []*TaskState
	ResourceStates []*ResourceState
	Failed         bool
}

// Task returns the state for handle, or nil if out of range.
func (s *ScenarioState) Task(handle TaskHandle) *TaskState {
	if handle < 0 || int(handle) >= len(s.TaskStates) {
		return nil
	}
	return s.TaskStates[handle]
}

// Resource returns the state for handle, or nil if out of range.
func (s *ScenarioState) Resource(handle ResourceHandle) *ResourceState {
	if handle < 0 || int(handle) >= len(s.ResourceStates) {
		return nil
	}
	return s.ResourceStates[handle]
}
