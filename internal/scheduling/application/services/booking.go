package services

import (
	"math/rand"

	domain "github.com/taskgrid/scheduler/internal/scheduling/domain"
)

// bookingAttempt is the resolved candidate for one allocation before commit,
// used to support atomic all-or-nothing commits across a task's allocations.
type bookingAttempt struct {
	allocIdx int
	resource domain.ResourceHandle
	ok       bool
}

// bookResources attempts to book slot for every allocation on task t,
// honoring selection mode ordering, the mandatory short-circuit, persistent
// resource locking, and atomic all-or-nothing commit. It returns the total
// effort gained this slot, expressed in hours (Σ efficiency of newly booked
// resources scaled by the project's slot width).
func bookResources(project *domain.Project, state *domain.ScenarioState, diag *domain.Diagnostics, scenarioIdx int, t *domain.Task, ts *domain.TaskState, slot domain.SlotIdx, rng *rand.Rand) float64 {
	if len(t.Allocations) == 0 {
		return 0
	}

	anyAtomic := false
	for _, a := range t.Allocations {
		if a.Atomic {
			anyAtomic = true
			break
		}
	}

	attempts := make([]bookingAttempt, len(t.Allocations))
	mandatoryFailed := false

	for i, alloc := range t.Allocations {
		attempts[i] = bookingAttempt{allocIdx: i, resource: domain.NoResource}
		if !alloc.Mandatory && mandatoryFailed {
			continue // short-circuit: skip non-mandatory allocations once a mandatory one failed
		}
		picked, ok := resolveCandidate(project, state, t, ts, i, alloc, slot, rng)
		if !ok {
			if alloc.Mandatory {
				mandatoryFailed = true
				diag.Info(domain.KindLimitViolation, scenarioIdx, t.Handle, domain.NoResource, "no candidate resource available for mandatory allocation")
			}
			continue
		}
		attempts[i] = bookingAttempt{allocIdx: i, resource: picked, ok: true}
	}

	if anyAtomic {
		for i := range t.Allocations {
			if !attempts[i].ok {
				return 0 // atomic revert: nothing was committed yet, so there is nothing to undo
			}
		}
	}

	gained := 0.0
	hourFraction := project.Granularity.Hours()
	for _, att := range attempts {
		if !att.ok {
			continue
		}
		rs := state.Resource(att.resource)
		if rs == nil || !rs.Book(slot, t.Handle, false) {
			continue
		}
		ts.Bookings = append(ts.Bookings, domain.Booking{Resource: att.resource, Slot: slot})
		if t.Allocations[att.allocIdx].Persistent {
			ts.LockedResource[att.allocIdx] = att.resource
		}
		gained += rs.Resource.Efficiency * hourFraction
	}
	return gained
}

// resolveCandidate picks (without booking) the best available candidate for
// one allocation at slot, per its selection mode and persistent lock.
func resolveCandidate(project *domain.Project, state *domain.ScenarioState, t *domain.Task, ts *domain.TaskState, allocIdx int, alloc domain.Allocation, slot domain.SlotIdx, rng *rand.Rand) (domain.ResourceHandle, bool) {
	if alloc.Persistent {
		if locked, ok := ts.LockedResource[allocIdx]; ok {
			if resolved, ok := resolveLeaf(project, state, alloc, locked, slot, rng); ok {
				return resolved, true
			}
		}
	}

	order := orderCandidates(project, state, ts, allocIdx, alloc, rng)
	for _, rh := range order {
		if resolved, ok := resolveLeaf(project, state, alloc, rh, slot, rng); ok {
			return resolved, true
		}
	}
	return domain.NoResource, false
}

// resolveLeaf resolves rh to a bookable leaf available at slot. A leaf
// candidate is checked directly; a group candidate delegates to its leaf
// descendants, ordered by the allocation's selection mode, recursing through
// nested groups until a bookable leaf is found (spec 4.4). A group resource
// is never itself booked.
func resolveLeaf(project *domain.Project, state *domain.ScenarioState, alloc domain.Allocation, rh domain.ResourceHandle, slot domain.SlotIdx, rng *rand.Rand) (domain.ResourceHandle, bool) {
	rs := state.Resource(rh)
	if rs == nil {
		return domain.NoResource, false
	}
	if !rs.Resource.IsGroup {
		if !candidateMatchesShift(project, alloc, rs, slot) {
			return domain.NoResource, false
		}
		if rs.Available(slot) {
			return rh, true
		}
		return domain.NoResource, false
	}
	leaves := project.LeafDescendants(rh)
	for _, leaf := range orderHandles(state, leaves, alloc.SelectionMode, rng) {
		if resolved, ok := resolveLeaf(project, state, alloc, leaf, slot, rng); ok {
			return resolved, true
		}
	}
	return domain.NoResource, false
}

// candidateMatchesShift reports whether rs satisfies alloc's optional shift
// restriction: no restriction always matches, otherwise rs must have the
// named shift active at slot.
func candidateMatchesShift(project *domain.Project, alloc domain.Allocation, rs *domain.ResourceState, slot domain.SlotIdx) bool {
	if alloc.ShiftName == "" {
		return true
	}
	name, ok := rs.Resource.ActiveShiftName(project.SlotToInstant(slot))
	return ok && name == alloc.ShiftName
}

// orderHandles orders an arbitrary resource handle list per mode, used both
// for top-level candidates (orderCandidates) and a group's leaf descendants.
func orderHandles(state *domain.ScenarioState, candidates []domain.ResourceHandle, mode domain.SelectionMode, rng *rand.Rand) []domain.ResourceHandle {
	switch mode {
	case domain.SelectionMinAllocated, domain.SelectionMinLoaded:
		return sortByLoad(state, candidates, true)
	case domain.SelectionMaxLoaded:
		return sortByLoad(state, candidates, false)
	case domain.SelectionRandom:
		return shuffled(candidates, rng)
	default:
		return candidates
	}
}

// orderCandidates returns alloc's candidates ordered per its selection mode.
func orderCandidates(project *domain.Project, state *domain.ScenarioState, ts *domain.TaskState, allocIdx int, alloc domain.Allocation, rng *rand.Rand) []domain.ResourceHandle {
	switch alloc.SelectionMode {
	case domain.SelectionOrder:
		return alloc.Candidates

	case domain.SelectionMinAllocated:
		if !alloc.Persistent {
			if cached, ok := ts.CachedOrder[allocIdx]; ok {
				return cached
			}
		}
		order := sortByLoad(state, alloc.Candidates, true)
		if !alloc.Persistent {
			ts.CachedOrder[allocIdx] = order
		}
		return order

	default:
		return orderHandles(state, alloc.Candidates, alloc.SelectionMode, rng)
	}
}

// sortByLoad orders candidates by their current total effective work,
// ascending when asc is true.
func sortByLoad(state *domain.ScenarioState, candidates []domain.ResourceHandle, asc bool) []domain.ResourceHandle {
	order := make([]domain.ResourceHandle, len(candidates))
	copy(order, candidates)
	load := make(map[domain.ResourceHandle]float64, len(order))
	for _, rh := range order {
		if rs := state.Resource(rh); rs != nil && rs.Scoreboard != nil {
			load[rh] = rs.GetEffectiveWork(0, domain.SlotIdx(rs.Scoreboard.Len()), domain.NoTask)
		}
	}
	for i := 1; i < len(order); i++ {
		for j := i; j > 0; j-- {
			less := load[order[j]] < load[order[j-1]]
			if !asc {
				less = load[order[j]] > load[order[j-1]]
			}
			if !less {
				break
			}
			order[j], order[j-1] = order[j-1], order[j]
		}
	}
	return order
}

// shuffled returns a uniformly shuffled copy of candidates using rng, which
// callers seed deterministically from (project id, scenario index).
func shuffled(candidates []domain.ResourceHandle, rng *rand.Rand) []domain.ResourceHandle {
	order := make([]domain.ResourceHandle, len(candidates))
	copy(order, candidates)
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	return order
}
