package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResourceState_Available_RespectsLimit(t *testing.T) {
	monday := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	r := NewResource(0, "qa", "qa")
	r.WorkingHours = nineToFive()
	r.Limits = []*Limit{{IntervalStart: monday, IntervalEnd: monday.AddDate(0, 0, 7), Period: PeriodDay, Value: 4, Upper: true}}

	rs := NewResourceState(r, nil, monday, monday.AddDate(0, 0, 1), time.Hour)
	slot9 := rs.Scoreboard.InstantToSlot(monday.Add(9*time.Hour), false)

	for i := 0; i < 4; i++ {
		require.True(t, rs.Available(slot9+SlotIdx(i)))
		require.True(t, rs.Book(slot9+SlotIdx(i), TaskHandle(1), false))
	}
	assert.False(t, rs.Available(slot9+4), "dailymax 4h is exhausted for the day")
}

func TestResourceState_Unbook_RevertsLimitAndScoreboard(t *testing.T) {
	monday := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	r := NewResource(0, "qa", "qa")
	r.WorkingHours = nineToFive()
	r.Limits = []*Limit{{IntervalStart: monday, IntervalEnd: monday.AddDate(0, 0, 1), Period: PeriodDay, Value: 1, Upper: true}}
	rs := NewResourceState(r, nil, monday, monday.AddDate(0, 0, 1), time.Hour)

	slot := rs.Scoreboard.InstantToSlot(monday.Add(9*time.Hour), false)
	require.True(t, rs.Book(slot, TaskHandle(1), false))
	assert.False(t, rs.Available(slot), "a booked slot is not available")
	rs.Unbook(slot, TaskHandle(1))
	assert.True(t, rs.Available(slot), "unbooking must restore both the scoreboard cell and the limit count")
}

func TestResourceState_NewResourceState_GroupHasNoScoreboard(t *testing.T) {
	monday := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	group := NewResource(0, "team", "team")
	group.IsGroup = true
	rs := NewResourceState(group, nil, monday, monday.AddDate(0, 0, 1), time.Hour)
	assert.Nil(t, rs.Scoreboard)
	assert.False(t, rs.Available(0), "a group resource is never itself bookable")
}

func TestResource_ActiveShiftName(t *testing.T) {
	r := NewResource(0, "dev", "dev")
	from := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 4, 0, 0, 0, 0, time.UTC)
	r.Shifts = []Shift{{Name: "night", WorkingHours: nineToFive(), ValidFrom: from, ValidTo: to}}

	name, ok := r.ActiveShiftName(from.Add(10 * time.Hour))
	require.True(t, ok)
	assert.Equal(t, "night", name)

	_, ok = r.ActiveShiftName(to.Add(time.Hour))
	assert.False(t, ok, "no shift is active outside its [ValidFrom, ValidTo) window")
}

func TestProject_LeafDescendants_FlattensNestedGroups(t *testing.T) {
	p, err := NewProject("p", time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC), time.Date(2026, 8, 4, 0, 0, 0, 0, time.UTC), time.Hour, time.UTC)
	require.NoError(t, err)

	root := p.AddResource(NewResource(NoResource, "team", "team"))
	sub := p.AddResource(NewResource(NoResource, "frontend", "frontend"))
	aliceLeaf := p.AddResource(NewResource(NoResource, "alice", "alice"))
	bobLeaf := p.AddResource(NewResource(NoResource, "bob", "bob"))
	caraLeaf := p.AddResource(NewResource(NoResource, "cara", "cara"))

	p.LinkChildResource(root, sub)
	p.LinkChildResource(root, caraLeaf)
	p.LinkChildResource(sub, aliceLeaf)
	p.LinkChildResource(sub, bobLeaf)

	assert.True(t, p.Resources[root].IsGroup)
	assert.True(t, p.Resources[sub].IsGroup)
	assert.False(t, p.Resources[caraLeaf].IsGroup)

	leaves := p.LeafDescendants(root)
	assert.ElementsMatch(t, []ResourceHandle{aliceLeaf, bobLeaf, caraLeaf}, leaves)

	// A leaf resource's own LeafDescendants is itself.
	assert.Equal(t, []ResourceHandle{aliceLeaf}, p.LeafDescendants(aliceLeaf))
}

func TestProject_LinkChildTask_PopulatesParentAndChildHandles(t *testing.T) {
	p, err := NewProject("p", time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC), time.Date(2026, 8, 4, 0, 0, 0, 0, time.UTC), time.Hour, time.UTC)
	require.NoError(t, err)

	parent := p.AddTask(NewTask(NoTask, "phase1", "phase1", 0))
	child := p.AddTask(NewTask(NoTask, "design", "design", 1))
	p.LinkChildTask(parent, child)

	assert.Equal(t, []TaskHandle{child}, p.Tasks[parent].ChildHandles)
	assert.Equal(t, parent, p.Tasks[child].ParentHandle)
	assert.False(t, p.Tasks[parent].IsLeaf())
	assert.True(t, p.Tasks[child].IsLeaf())
}
