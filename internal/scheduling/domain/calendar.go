package domain

import "time"

// TimeRange is a half-open local-time-of-day interval, expressed in minutes
// since midnight: [StartMin, EndMin).
type TimeRange struct {
	StartMin int
	EndMin   int
}

// contains reports whether minuteOfDay falls within the range.
func (r TimeRange) contains(minuteOfDay int) bool {
	return minuteOfDay >= r.StartMin && minuteOfDay < r.EndMin
}

// WorkingHours is a weekly pattern: for each weekday (time.Sunday == 0) an
// ordered list of non-overlapping local-time intervals.
type WorkingHours struct {
	Weekly [7][]TimeRange
}

// NewWorkingHours returns an empty WorkingHours with no working intervals on
// any weekday; callers fill in each weekday with Set.
func NewWorkingHours() WorkingHours {
	return WorkingHours{}
}

// Set replaces the interval list for a weekday.
func (w *WorkingHours) Set(day time.Weekday, ranges ...TimeRange) {
	w.Weekly[int(day)] = ranges
}

// isOnShift reports whether the local wall-clock instant falls inside one of
// the weekday's working intervals.
func (w WorkingHours) isOnShift(local time.Time) bool {
	ranges := w.Weekly[int(local.Weekday())]
	if len(ranges) == 0 {
		return false
	}
	minuteOfDay := local.Hour()*60 + local.Minute()
	for _, r := range ranges {
		if r.contains(minuteOfDay) {
			return true
		}
	}
	return false
}

// Calendar couples a timezone, a weekly WorkingHours pattern, and a set of
// Leave intervals that override it.
type Calendar struct {
	Timezone     *time.Location
	WorkingHours WorkingHours
	Leaves       []Leave
}

// IsOnShift reports whether absolute instant t is within the calendar's
// working hours and not covered by a Leave. DST is handled by converting the
// instant to the calendar's timezone before the weekday/time-of-day lookup:
// spring-forward instants land on whatever local time.Time.In produces for
// that instant (so the skipped wall-clock hour never matches a pattern), and
// fall-back instants are evaluated independently per (distinct) UTC slot, so
// the duplicated local hour is naturally on-shift once per slot.
func (c Calendar) IsOnShift(t time.Time) bool {
	local := t.In(c.Timezone)
	if !c.WorkingHours.isOnShift(local) {
		return false
	}
	if _, covered := leavesOverlap(c.Leaves, t); covered {
		return false
	}
	return true
}

// LeaveAt returns the leave covering t, if any.
func (c Calendar) LeaveAt(t time.Time) (Leave, bool) {
	return leavesOverlap(c.Leaves, t)
}

// SlotToInstant returns the absolute instant at which slotIdx begins.
func SlotToInstant(projectStart time.Time, granularity time.Duration, idx SlotIdx) time.Time {
	return projectStart.Add(time.Duration(idx) * granularity)
}

// InstantToSlot returns the slot index containing instant t. When clampIntoProject
// is true, results outside [0, N) are clamped to the nearest boundary.
func InstantToSlot(projectStart, projectEnd time.Time, granularity time.Duration, t time.Time, clampIntoProject bool) SlotIdx {
	if t.Before(projectStart) {
		if clampIntoProject {
			return 0
		}
		return SlotIdx(t.Sub(projectStart) / granularity)
	}
	idx := SlotIdx(t.Sub(projectStart) / granularity)
	if clampIntoProject {
		n := SlotIdx(projectEnd.Sub(projectStart) / granularity)
		if idx >= n {
			return n - 1
		}
	}
	return idx
}

// mergeCalendars resolves the effective calendar a resource should use at
// instant t: the resource's active Shift (if any covers t) replaces its base
// WorkingHours, and the Shift's Replace flag controls whether the resource's
// own leaves are suppressed during the shift window. Project-level leaves
// (holidays) always apply regardless of Replace.
func mergeCalendars(projectLeaves []Leave, res *Resource, t time.Time) bool {
	tz := res.effectiveTimezone()
	wh, leaves := res.effectiveWorkingHoursAt(t)

	local := t.In(tz)
	if !wh.isOnShift(local) {
		return false
	}
	if _, covered := leavesOverlap(projectLeaves, t); covered {
		return false
	}
	if _, covered := leavesOverlap(leaves, t); covered {
		return false
	}
	return true
}
