package domain

// SelectionMode orders an allocation's candidate resources at booking time.
type SelectionMode int

const (
	SelectionOrder SelectionMode = iota
	SelectionMinAllocated
	SelectionMinLoaded
	SelectionMaxLoaded
	SelectionRandom
)

// Allocation is a task's requirement for one resource out of a candidate
// list, picked under SelectionMode.
type Allocation struct {
	Candidates    []ResourceHandle
	SelectionMode SelectionMode
	// Mandatory allocations must place a resource for the slot to advance the
	// task's accumulator; once a mandatory allocation fails for a slot, any
	// later non-mandatory allocation in the same task is skipped entirely for
	// that slot (clarified against core/allocation.py).
	Mandatory bool
	// Persistent remembers the resource picked for this allocation across
	// subsequent slots rather than re-deciding every time.
	Persistent bool
	// Atomic requires every allocation in the task to find a candidate for
	// the slot simultaneously, or none is booked. One atomic allocation makes
	// the whole task's booking for the slot all-or-nothing.
	Atomic bool
	// ShiftName, if set, restricts candidates to those with an active Shift of this name.
	ShiftName string
}
