package domain

import (
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/taskgrid/scheduler/internal/shared/domain"
)

// Project is the aggregate root holding the task/resource arenas, the global
// calendar, and the scenario list. Unlike Task/Resource tree nodes it uses a
// uuid.UUID identity via the shared BaseAggregateRoot, matching every other
// aggregate root in this codebase.
type Project struct {
	sharedDomain.BaseAggregateRoot

	Name        string
	Start       time.Time
	End         time.Time
	Granularity time.Duration
	Timezone    *time.Location

	DailyWorkingHours WorkingHours
	Leaves            []Leave // project-level holidays

	Scenarios []*Scenario
	Tasks     []*Task
	Resources []*Resource

	Diagnostics *Diagnostics
}

// NewProject validates the interval/granularity invariants and constructs an
// empty project ready to receive tasks, resources, and scenarios.
func NewProject(name string, start, end time.Time, granularity time.Duration, tz *time.Location) (*Project, error) {
	if !end.After(start) {
		return nil, ErrInvalidProjectInterval
	}
	if granularity < time.Minute || granularity > 24*time.Hour {
		return nil, ErrInvalidGranularity
	}
	if end.Sub(start)%granularity != 0 {
		return nil, ErrInvalidProjectInterval
	}
	if tz == nil {
		tz = time.UTC
	}
	return &Project{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		Name:              name,
		Start:             start,
		End:               end,
		Granularity:       granularity,
		Timezone:          tz,
		Diagnostics:       NewDiagnostics(),
	}, nil
}

// AddTask appends a task to the arena and returns its handle.
func (p *Project) AddTask(t *Task) TaskHandle {
	t.Handle = TaskHandle(len(p.Tasks))
	p.Tasks = append(p.Tasks, t)
	return t.Handle
}

// AddResource appends a resource to the arena and returns its handle.
func (p *Project) AddResource(r *Resource) ResourceHandle {
	r.Handle = ResourceHandle(len(p.Resources))
	p.Resources = append(p.Resources, r)
	return r.Handle
}

// AddScenario appends a scenario.
func (p *Project) AddScenario(s *Scenario) {
	s.Index = len(p.Scenarios)
	p.Scenarios = append(p.Scenarios, s)
}

// LinkChildTask records child as a child of parent for container aggregation
// (spec 4.7). Both handles must already be in the arena.
func (p *Project) LinkChildTask(parent, child TaskHandle) {
	parentTask := p.TaskByHandle(parent)
	childTask := p.TaskByHandle(child)
	if parentTask == nil || childTask == nil {
		return
	}
	childTask.ParentHandle = parent
	parentTask.ChildHandles = append(parentTask.ChildHandles, child)
}

// AddChildTask appends a new task to the arena as a child of parent.
func (p *Project) AddChildTask(parent TaskHandle, t *Task) TaskHandle {
	handle := p.AddTask(t)
	p.LinkChildTask(parent, handle)
	return handle
}

// LinkChildResource records child as a child of parent and marks parent as a
// group resource (spec 4.4). Both handles must already be in the arena.
func (p *Project) LinkChildResource(parent, child ResourceHandle) {
	parentRes := p.ResourceByHandle(parent)
	childRes := p.ResourceByHandle(child)
	if parentRes == nil || childRes == nil {
		return
	}
	childRes.ParentHandle = parent
	parentRes.ChildHandles = append(parentRes.ChildHandles, child)
	parentRes.IsGroup = true
}

// AddChildResource appends a new resource to the arena as a child of parent.
func (p *Project) AddChildResource(parent ResourceHandle, r *Resource) ResourceHandle {
	handle := p.AddResource(r)
	p.LinkChildResource(parent, handle)
	return handle
}

// LeafDescendants flattens h to its ordered leaf descendants: h itself if it
// is not a group, or every non-group resource reachable by walking
// ChildHandles (recursing through nested groups) otherwise. Used to resolve
// a group resource's candidates down to bookable leaves (spec 4.4).
func (p *Project) LeafDescendants(h ResourceHandle) []ResourceHandle {
	res := p.ResourceByHandle(h)
	if res == nil {
		return nil
	}
	if !res.IsGroup {
		return []ResourceHandle{h}
	}
	var leaves []ResourceHandle
	for _, child := range res.ChildHandles {
		leaves = append(leaves, p.LeafDescendants(child)...)
	}
	return leaves
}

// TaskByHandle returns the task for handle, or nil if out of range.
func (p *Project) TaskByHandle(h TaskHandle) *Task {
	if h < 0 || int(h) >= len(p.Tasks) {
		return nil
	}
	return p.Tasks[h]
}

// ResourceByHandle returns the resource for handle, or nil if out of range.
func (p *Project) ResourceByHandle(h ResourceHandle) *Resource {
	if h < 0 || int(h) >= len(p.Resources) {
		return nil
	}
	return p.Resources[h]
}

// SlotCount returns the scoreboard length for this project's span.
func (p *Project) SlotCount() int {
	return int(p.End.Sub(p.Start)/p.Granularity) + 1
}

// InstantToSlot maps t to a slot index within this project's span.
func (p *Project) InstantToSlot(t time.Time, clamp bool) SlotIdx {
	return InstantToSlot(p.Start, p.End, p.Granularity, t, clamp)
}

// SlotToInstant maps idx to the instant at which it begins.
func (p *Project) SlotToInstant(idx SlotIdx) time.Time {
	return SlotToInstant(p.Start, p.Granularity, idx)
}

// IsOnShift reports whether t falls within the project's global working
// hours and is not covered by a project-level leave (holiday). It is used
// for working-time dependency gaps that are not tied to a specific
// resource's calendar.
func (p *Project) IsOnShift(t time.Time) bool {
	cal := Calendar{Timezone: p.Timezone, WorkingHours: p.DailyWorkingHours, Leaves: p.Leaves}
	return cal.IsOnShift(t)
}

// EnsureID assigns a random identity if one was never set; Project is
// normally constructed fresh via NewProject which already sets one, this
// exists for rehydration paths.
func (p *Project) EnsureID() {
	if p.ID() == uuid.Nil {
		p.BaseAggregateRoot = sharedDomain.NewBaseAggregateRoot()
	}
}
