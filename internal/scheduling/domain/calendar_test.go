package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nineToFive() WorkingHours {
	wh := NewWorkingHours()
	for _, d := range []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday} {
		wh.Set(d, TimeRange{StartMin: 9 * 60, EndMin: 17 * 60})
	}
	return wh
}

func TestCalendar_IsOnShift_WeekdayBoundaries(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	cal := Calendar{Timezone: ny, WorkingHours: nineToFive()}

	monday9am := time.Date(2026, 8, 3, 9, 0, 0, 0, ny)
	assert.True(t, cal.IsOnShift(monday9am))

	mondayBefore := monday9am.Add(-time.Minute)
	assert.False(t, cal.IsOnShift(mondayBefore))

	monday5pm := time.Date(2026, 8, 3, 17, 0, 0, 0, ny)
	assert.False(t, cal.IsOnShift(monday5pm), "end boundary is exclusive")

	saturday := time.Date(2026, 8, 8, 10, 0, 0, 0, ny)
	assert.False(t, cal.IsOnShift(saturday))
}

func TestCalendar_IsOnShift_Leave(t *testing.T) {
	cal := Calendar{Timezone: time.UTC, WorkingHours: nineToFive()}
	holidayStart := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	cal.Leaves = []Leave{{Type: LeaveHoliday, Start: holidayStart, End: holidayStart.AddDate(0, 0, 1)}}

	onHoliday := time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC)
	assert.False(t, cal.IsOnShift(onHoliday))

	leave, ok := cal.LeaveAt(onHoliday)
	require.True(t, ok)
	assert.Equal(t, LeaveHoliday, leave.Type)

	nextDay := time.Date(2026, 8, 4, 10, 0, 0, 0, time.UTC)
	assert.True(t, cal.IsOnShift(nextDay))
}

// Cross-timezone handoff (spec S5): a working-hours pattern evaluated through
// a DST-observing timezone must land on the correct UTC instant depending on
// whether standard or daylight time applies on that date.
func TestCalendar_IsOnShift_CrossesDSTTransition(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	cal := Calendar{Timezone: ny, WorkingHours: nineToFive()}

	// Monday 2026-03-09 is the day after the US spring-forward (2026-03-08
	// 02:00 local), so 09:00 local is 13:00 UTC (EDT, UTC-4).
	nineAMEDT := time.Date(2026, 3, 9, 13, 0, 0, 0, time.UTC)
	assert.True(t, cal.IsOnShift(nineAMEDT))

	// A week earlier, still EST (UTC-5): 09:00 local is 14:00 UTC, so 13:00
	// UTC is only 08:00 local and must NOT be on shift.
	stillEST := time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC)
	assert.False(t, cal.IsOnShift(stillEST))
}

func TestCalendar_IsOnShift_FallBackDuplicatedHourBothInstants(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	earlyHours := WorkingHours{}
	earlyHours.Set(time.Sunday, TimeRange{StartMin: 1 * 60, EndMin: 2 * 60})
	cal := Calendar{Timezone: ny, WorkingHours: earlyHours}

	// Clocks fall back from 02:00 EDT to 01:00 EST on 2026-11-01, so local
	// 01:30 occurs twice: once at 05:30 UTC (EDT) and once at 06:30 UTC (EST).
	firstPass := time.Date(2026, 11, 1, 5, 30, 0, 0, time.UTC)
	secondPass := time.Date(2026, 11, 1, 6, 30, 0, 0, time.UTC)
	assert.True(t, cal.IsOnShift(firstPass))
	assert.True(t, cal.IsOnShift(secondPass))
	assert.NotEqual(t, firstPass, secondPass)
}

func TestMergeCalendars_ShiftReplacesWorkingHoursAndLeaves(t *testing.T) {
	res := NewResource(0, "r1", "r1")
	res.WorkingHours = nineToFive()
	res.Leaves = []Leave{{Type: LeaveSick, Start: time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC), End: time.Date(2026, 8, 11, 0, 0, 0, 0, time.UTC)}}

	nightShift := WorkingHours{}
	nightShift.Set(time.Monday, TimeRange{StartMin: 22 * 60, EndMin: 23*60 + 59})
	res.Shifts = []Shift{{
		Name:         "night",
		WorkingHours: nightShift,
		ValidFrom:    time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		ValidTo:      time.Date(2026, 8, 11, 0, 0, 0, 0, time.UTC),
		Replace:      true,
	}}

	duringShiftOnSickDay := time.Date(2026, 8, 10, 22, 30, 0, 0, time.UTC)
	assert.True(t, mergeCalendars(nil, res, duringShiftOnSickDay), "Replace suppresses the resource's own sick leave during the shift window")

	duringBaseHoursOnSickDay := time.Date(2026, 8, 10, 9, 30, 0, 0, time.UTC)
	assert.False(t, mergeCalendars(nil, res, duringBaseHoursOnSickDay), "inside the shift window the shift's hours replace the base working hours, so 09:30 is off shift")
}

func TestMergeCalendars_ProjectLeaveAlwaysApplies(t *testing.T) {
	res := NewResource(0, "r1", "r1")
	res.WorkingHours = nineToFive()
	res.Shifts = []Shift{{
		Name:         "overtime",
		WorkingHours: nineToFive(),
		ValidFrom:    time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC),
		ValidTo:      time.Date(2026, 8, 4, 0, 0, 0, 0, time.UTC),
		Replace:      true,
	}}
	projectLeaves := []Leave{{Type: LeaveHoliday, Start: time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC), End: time.Date(2026, 8, 4, 0, 0, 0, 0, time.UTC)}}

	duringShift := time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC)
	assert.False(t, mergeCalendars(projectLeaves, res, duringShift), "a project-level holiday is never suppressed by Replace")
}
