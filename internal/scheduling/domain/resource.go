package domain

import "time"

// Resource is a node in the resource tree. Leaf resources carry a calendar
// and are directly bookable; group resources aggregate children and delegate
// booking to a descendant via the requesting Allocation's selection mode.
type Resource struct {
	Handle       ResourceHandle
	ID           string
	Name         string
	ParentHandle ResourceHandle
	ChildHandles []ResourceHandle
	IsGroup      bool

	Efficiency   float64
	Timezone     *time.Location
	WorkingHours WorkingHours
	Shifts       []Shift
	Leaves       []Leave
	Limits       []*Limit

	// ManagerHandle names another resource responsible for approving this
	// one's bookings (validated during prepare: no self-management, no group
	// manager, no cycles).
	ManagerHandle ResourceHandle
}

// NewResource constructs a leaf resource with default efficiency 1.0.
func NewResource(handle ResourceHandle, id, name string) *Resource {
	return &Resource{
		Handle:        handle,
		ID:            id,
		Name:          name,
		ParentHandle:  NoResource,
		ManagerHandle: NoResource,
		Efficiency:    1.0,
		Timezone:      time.UTC,
	}
}

// effectiveTimezone returns the resource's timezone, defaulting to UTC.
func (r *Resource) effectiveTimezone() *time.Location {
	if r.Timezone != nil {
		return r.Timezone
	}
	return time.UTC
}

// effectiveWorkingHoursAt resolves the working hours and leave set active at
// instant t, accounting for a windowed Shift override and its Replace flag.
func (r *Resource) effectiveWorkingHoursAt(t time.Time) (WorkingHours, []Leave) {
	if shift, ok := activeShiftAt(r.Shifts, t); ok {
		if shift.Replace {
			return shift.WorkingHours, nil
		}
		return shift.WorkingHours, r.Leaves
	}
	return r.WorkingHours, r.Leaves
}

// IsOnShiftIgnoringProjectLeaves reports whether the resource is on duty at
// t under its own calendar (shift/working-hours/leaves), ignoring
// project-level leaves. Used by the scheduler's per-slot on-shift check of a
// task's candidates, which tests project leaves separately.
func (r *Resource) IsOnShiftIgnoringProjectLeaves(t time.Time) bool {
	wh, leaves := r.effectiveWorkingHoursAt(t)
	local := t.In(r.effectiveTimezone())
	if !wh.isOnShift(local) {
		return false
	}
	_, covered := leavesOverlap(leaves, t)
	return !covered
}

// ActiveShiftName returns the name of the shift active at t, if any, used to
// honor an Allocation's optional shift restriction.
func (r *Resource) ActiveShiftName(t time.Time) (string, bool) {
	shift, ok := activeShiftAt(r.Shifts, t)
	if !ok {
		return "", false
	}
	return shift.Name, true
}

// ResourceState is the per-scenario mutable state for one resource: its
// lazily-built scoreboard, scenario-local limit instances, and duties.
type ResourceState struct {
	Resource   *Resource
	Scoreboard *Scoreboard
	Limits     []*Limit
	Duties     map[TaskHandle]bool
	FirstBooked SlotIdx
	LastBooked  SlotIdx
}

// NewResourceState allocates scenario-local state for a resource. The
// scoreboard is built immediately here (the spec's "lazy" build happens once
// per scenario, which in this single-pass driver is the same moment as
// construction, right before scheduling begins).
func NewResourceState(res *Resource, projectLeaves []Leave, start, end time.Time, granularity time.Duration) *ResourceState {
	rs := &ResourceState{
		Resource:    res,
		Duties:      make(map[TaskHandle]bool),
		FirstBooked: NoSlot,
		LastBooked:  NoSlot,
	}
	if res.IsGroup {
		return rs
	}
	sb := NewScoreboard(start, end, granularity, CellOffDuty)
	rs.Scoreboard = sb
	for i := 0; i < sb.Len(); i++ {
		instant := sb.SlotToInstant(SlotIdx(i))
		if !mergeCalendars(projectLeaves, res, instant) {
			leaveType, reason := resolveOffDutyReason(projectLeaves, res, instant)
			sb.Set(SlotIdx(i), Cell{State: CellOffDuty, Task: NoTask, LeaveType: leaveType})
			_ = reason
			continue
		}
		sb.Set(SlotIdx(i), Cell{State: CellAvailable, Task: NoTask})
	}
	for _, tmpl := range res.Limits {
		rs.Limits = append(rs.Limits, tmpl.Clone())
	}
	return rs
}

// resolveOffDutyReason picks a LeaveType to annotate an off-duty slot, for
// reporting purposes only; it never affects scheduling decisions.
func resolveOffDutyReason(projectLeaves []Leave, res *Resource, t time.Time) (LeaveType, bool) {
	if l, ok := leavesOverlap(projectLeaves, t); ok {
		return l.Type, true
	}
	_, leaves := res.effectiveWorkingHoursAt(t)
	if l, ok := leavesOverlap(leaves, t); ok {
		return l.Type, true
	}
	return "", false
}

// Available reports whether slot is bookable: Available state plus every
// resource-level limit still permitting another booking.
func (rs *ResourceState) Available(idx SlotIdx) bool {
	if rs.Scoreboard == nil || !rs.Scoreboard.InBounds(idx) {
		return false
	}
	if rs.Scoreboard.Get(idx).State != CellAvailable {
		return false
	}
	instant := rs.Scoreboard.SlotToInstant(idx)
	for _, lim := range rs.Limits {
		if lim.applies(rs.Resource.Handle) && !lim.Ok(instant) {
			return false
		}
	}
	return true
}

// Book marks idx as owned by task, updates duties, bumps limits, and tracks
// first/last booked slot. Returns false if the slot was not available and
// force is false.
func (rs *ResourceState) Book(idx SlotIdx, task TaskHandle, force bool) bool {
	if !force && !rs.Available(idx) {
		return false
	}
	rs.Scoreboard.Set(idx, Cell{State: CellBooked, Task: task})
	rs.Duties[task] = true
	instant := rs.Scoreboard.SlotToInstant(idx)
	for _, lim := range rs.Limits {
		if lim.applies(rs.Resource.Handle) {
			lim.Inc(instant)
		}
	}
	if rs.FirstBooked == NoSlot || idx < rs.FirstBooked {
		rs.FirstBooked = idx
	}
	if rs.LastBooked == NoSlot || idx > rs.LastBooked {
		rs.LastBooked = idx
	}
	return true
}

// Unbook reverts task's booking of idx: the cell returns to Available and the
// resource's limit counts are decremented. It is a no-op if idx is not booked
// by task.
func (rs *ResourceState) Unbook(idx SlotIdx, task TaskHandle) {
	cell := rs.Scoreboard.Get(idx)
	if cell.State != CellBooked || cell.Task != task {
		return
	}
	rs.Scoreboard.Set(idx, Cell{State: CellAvailable, Task: NoTask})
	instant := rs.Scoreboard.SlotToInstant(idx)
	for _, lim := range rs.Limits {
		if lim.applies(rs.Resource.Handle) {
			lim.Dec(instant)
		}
	}
}

// GetAllocatedSlots counts slots within [from, to) booked by task (or any
// task when task == NoTask).
func (rs *ResourceState) GetAllocatedSlots(from, to SlotIdx, task TaskHandle) int {
	if rs.Scoreboard == nil {
		return 0
	}
	count := 0
	if to > SlotIdx(rs.Scoreboard.Len()) {
		to = SlotIdx(rs.Scoreboard.Len())
	}
	for i := from; i < to; i++ {
		cell := rs.Scoreboard.Get(i)
		if cell.State == CellBooked && (task == NoTask || cell.Task == task) {
			count++
		}
	}
	return count
}

// GetEffectiveWork returns allocatedSlots * granularity * efficiency in
// hours for this resource. A group resource has no scoreboard of its own and
// always returns 0 here; aggregating over its leaves is the caller's job
// (see Project.LeafDescendants), since ResourceState has no tree knowledge.
func (rs *ResourceState) GetEffectiveWork(from, to SlotIdx, task TaskHandle) float64 {
	if rs.Scoreboard == nil {
		return 0
	}
	slots := rs.GetAllocatedSlots(from, to, task)
	hours := float64(slots) * rs.Scoreboard.Granularity.Hours()
	return hours * rs.Resource.Efficiency
}
