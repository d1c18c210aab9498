package domain

import "time"

// LeaveType classifies why a slot is off-duty, for reporting.
type LeaveType string

const (
	LeaveProject    LeaveType = "project"
	LeaveHoliday    LeaveType = "holiday"
	LeaveSick       LeaveType = "sick"
	LeaveSpecial    LeaveType = "special"
	LeaveUnpaid     LeaveType = "unpaid"
	LeaveAnnual     LeaveType = "annual"
	LeaveUnemployed LeaveType = "unemployed"
)

// Leave is a half-open time interval during which a resource (or, at project
// scope, every resource) is off-duty.
type Leave struct {
	Type  LeaveType
	Start time.Time
	End   time.Time
}

// Covers reports whether the leave interval contains instant t.
func (l Leave) Covers(t time.Time) bool {
	return !t.Before(l.Start) && t.Before(l.End)
}

// leavesOverlap reports whether any leave in the slice covers t.
func leavesOverlap(leaves []Leave, t time.Time) (Leave, bool) {
	for _, l := range leaves {
		if l.Covers(t) {
			return l, true
		}
	}
	return Leave{}, false
}
