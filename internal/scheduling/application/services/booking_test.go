package services

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/taskgrid/scheduler/internal/scheduling/domain"
)

func bookingTestState(t *testing.T, p *domain.Project) *domain.ScenarioState {
	t.Helper()
	engine := NewSchedulerEngine()
	state, _ := engine.prepareScenario(p, p.Scenarios[0])
	return state
}

// A group resource's candidates delegate per-leaf by selection mode (spec
// 4.4): the group itself is never bookable, but resolveCandidate must find
// an available leaf descendant underneath it.
func TestResolveCandidate_GroupDelegatesToLeaf(t *testing.T) {
	monday := time.Date(2026, 8, 3, 0, 0, 0, 0, utc)
	p := newTestProject(t, monday, monday.AddDate(0, 0, 1))
	p.AddScenario(domain.NewScenario(0, "base"))

	alice := addResource(p, "alice")
	bob := addResource(p, "bob")
	team := p.AddResource(domain.NewResource(domain.NoResource, "team", "team"))
	p.LinkChildResource(team, alice)
	p.LinkChildResource(team, bob)

	taskHandle := addLeafTask(p, "design", 0, 500, 1, team)

	state := bookingTestState(t, p)
	slot := state.ResourceStates[alice].Scoreboard.InstantToSlot(monday.Add(9*time.Hour), false)

	task := p.Tasks[taskHandle]
	alloc := task.Allocations[0]
	resolved, ok := resolveCandidate(p, state, task, state.Task(taskHandle), 0, alloc, slot, rand.New(rand.NewSource(1)))
	require.True(t, ok)
	assert.True(t, resolved == alice || resolved == bob, "must resolve to one of the group's leaf descendants, never the group handle itself")
	assert.NotEqual(t, team, resolved)
}

// When a group's first-ordered leaf is exhausted, resolution falls through
// to the next leaf rather than failing outright.
func TestResolveCandidate_GroupFallsThroughToNextLeaf(t *testing.T) {
	monday := time.Date(2026, 8, 3, 0, 0, 0, 0, utc)
	p := newTestProject(t, monday, monday.AddDate(0, 0, 1))
	p.AddScenario(domain.NewScenario(0, "base"))

	alice := addResource(p, "alice")
	bob := addResource(p, "bob")
	team := p.AddResource(domain.NewResource(domain.NoResource, "team", "team"))
	p.LinkChildResource(team, alice)
	p.LinkChildResource(team, bob)
	p.Resources[team].ChildHandles = []domain.ResourceHandle{alice, bob} // fix declaration order for SelectionOrder

	taskHandle := addLeafTask(p, "design", 0, 500, 1, team)
	task := p.Tasks[taskHandle]
	task.Allocations[0].SelectionMode = domain.SelectionOrder

	state := bookingTestState(t, p)
	slot := state.ResourceStates[alice].Scoreboard.InstantToSlot(monday.Add(9*time.Hour), false)
	require.True(t, state.ResourceStates[alice].Book(slot, domain.TaskHandle(99), false))

	alloc := task.Allocations[0]
	resolved, ok := resolveCandidate(p, state, task, state.Task(taskHandle), 0, alloc, slot, rand.New(rand.NewSource(1)))
	require.True(t, ok)
	assert.Equal(t, bob, resolved, "alice is already booked this slot, so resolution must fall through to bob")
}

// Allocation.ShiftName restricts candidates to those with the named shift
// active at the slot.
func TestResolveCandidate_ShiftNameRestriction(t *testing.T) {
	monday := time.Date(2026, 8, 3, 0, 0, 0, 0, utc)
	p := newTestProject(t, monday, monday.AddDate(0, 0, 1))
	p.AddScenario(domain.NewScenario(0, "base"))

	dayShift := addResource(p, "day")
	nightShift := addResource(p, "night")
	p.Resources[nightShift].WorkingHours = domain.WorkingHours{}
	nightHours := domain.NewWorkingHours()
	nightHours.Set(time.Monday, domain.TimeRange{StartMin: 22 * 60, EndMin: 23*60 + 59})
	p.Resources[nightShift].Shifts = []domain.Shift{{
		Name:         "graveyard",
		WorkingHours: nightHours,
		ValidFrom:    monday,
		ValidTo:      monday.AddDate(0, 0, 1),
	}}

	taskHandle := addLeafTask(p, "patch", 0, 500, 1, dayShift, nightShift)
	task := p.Tasks[taskHandle]
	task.Allocations[0].ShiftName = "graveyard"

	state := bookingTestState(t, p)
	slot := state.ResourceStates[dayShift].Scoreboard.InstantToSlot(monday.Add(22*time.Hour+30*time.Minute), false)

	alloc := task.Allocations[0]
	resolved, ok := resolveCandidate(p, state, task, state.Task(taskHandle), 0, alloc, slot, rand.New(rand.NewSource(1)))
	require.True(t, ok)
	assert.Equal(t, nightShift, resolved, "only the candidate with the named active shift may be picked")
}

// An atomic allocation set must revert fully when any mandatory member
// fails to resolve: nothing gets booked on either resource for that slot
// (spec.md section 9's atomic-allocation revert path).
func TestBookResources_AtomicRevertsOnMandatoryFailure(t *testing.T) {
	monday := time.Date(2026, 8, 3, 0, 0, 0, 0, utc)
	p := newTestProject(t, monday, monday.AddDate(0, 0, 1))
	p.AddScenario(domain.NewScenario(0, "base"))

	dev := addResource(p, "dev")
	blocked := addResource(p, "blocked")
	p.Resources[blocked].Limits = []*domain.Limit{{
		IntervalStart: monday,
		IntervalEnd:   monday.AddDate(0, 0, 1),
		Period:        domain.PeriodDay,
		Value:         0,
		Upper:         true,
	}}

	task := domain.NewTask(domain.NoTask, "pair", "pair", 0)
	task.EffortHours = 1
	task.Allocations = []domain.Allocation{
		{Candidates: []domain.ResourceHandle{dev}, Mandatory: true, Atomic: true},
		{Candidates: []domain.ResourceHandle{blocked}, Mandatory: true, Atomic: true},
	}
	handle := p.AddTask(task)

	state := bookingTestState(t, p)
	ts := state.Task(handle)
	slot := state.ResourceStates[dev].Scoreboard.InstantToSlot(monday.Add(9*time.Hour), false)

	gained := bookResources(p, state, p.Diagnostics, 0, task, ts, slot, rand.New(rand.NewSource(1)))

	assert.Equal(t, 0.0, gained, "atomic revert must gain zero effort when any mandatory allocation fails")
	assert.Empty(t, ts.Bookings, "no allocation may be committed once the atomic set reverts")
	assert.True(t, state.ResourceStates[dev].Available(slot), "dev's slot must remain free since its booking was never committed")
}

// Without Atomic, a mandatory failure on one allocation still short-circuits
// later non-mandatory allocations, but an already-succeeded mandatory
// allocation from an earlier index is not reverted.
func TestBookResources_NonAtomicPartialCommit(t *testing.T) {
	monday := time.Date(2026, 8, 3, 0, 0, 0, 0, utc)
	p := newTestProject(t, monday, monday.AddDate(0, 0, 1))
	p.AddScenario(domain.NewScenario(0, "base"))

	dev := addResource(p, "dev")
	blocked := addResource(p, "blocked")
	p.Resources[blocked].Limits = []*domain.Limit{{
		IntervalStart: monday,
		IntervalEnd:   monday.AddDate(0, 0, 1),
		Period:        domain.PeriodDay,
		Value:         0,
		Upper:         true,
	}}

	task := domain.NewTask(domain.NoTask, "solo-plus-extra", "solo-plus-extra", 0)
	task.EffortHours = 1
	task.Allocations = []domain.Allocation{
		{Candidates: []domain.ResourceHandle{dev}, Mandatory: true},
		{Candidates: []domain.ResourceHandle{blocked}, Mandatory: true},
	}
	handle := p.AddTask(task)

	state := bookingTestState(t, p)
	ts := state.Task(handle)
	slot := state.ResourceStates[dev].Scoreboard.InstantToSlot(monday.Add(9*time.Hour), false)

	gained := bookResources(p, state, p.Diagnostics, 0, task, ts, slot, rand.New(rand.NewSource(1)))

	require.Len(t, ts.Bookings, 1)
	assert.Equal(t, dev, ts.Bookings[0].Resource)
	assert.Greater(t, gained, 0.0, "the non-atomic mandatory allocation that did resolve is still committed")
}
