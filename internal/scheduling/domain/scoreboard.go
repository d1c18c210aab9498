package domain

import "time"

// CellState tags a Scoreboard slot.
type CellState uint8

const (
	// CellOffDuty is the initial state: the slot is not within working hours
	// or is covered by a leave.
	CellOffDuty CellState = iota
	// CellAvailable marks an on-duty slot not yet booked.
	CellAvailable
	// CellBooked marks a slot owned by exactly one leaf task.
	CellBooked
)

// Cell is the dense per-slot payload. Task and LeaveType are only meaningful
// for the matching CellState.
type Cell struct {
	State     CellState
	Task      TaskHandle
	LeaveType LeaveType
}

// Scoreboard is a dense vector of length N = ceil((end-start)/granularity)+1,
// one Cell per discrete time slot over [start, end). It owns slot<->instant
// arithmetic for its own span.
type Scoreboard struct {
	Start       time.Time
	End         time.Time
	Granularity time.Duration
	cells       []Cell
}

// NewScoreboard allocates a scoreboard with every cell set to initial.
func NewScoreboard(start, end time.Time, granularity time.Duration, initial CellState) *Scoreboard {
	n := int(end.Sub(start)/granularity) + 1
	cells := make([]Cell, n)
	for i := range cells {
		cells[i] = Cell{State: initial, Task: NoTask}
	}
	return &Scoreboard{Start: start, End: end, Granularity: granularity, cells: cells}
}

// Len returns the number of slots.
func (s *Scoreboard) Len() int { return len(s.cells) }

// SlotToInstant returns the instant at which idx begins.
func (s *Scoreboard) SlotToInstant(idx SlotIdx) time.Time {
	return s.Start.Add(time.Duration(idx) * s.Granularity)
}

// InstantToSlot maps an instant to a slot index, clamping into [0, Len) when requested.
func (s *Scoreboard) InstantToSlot(t time.Time, clamp bool) SlotIdx {
	idx := SlotIdx(t.Sub(s.Start) / s.Granularity)
	if clamp {
		if idx < 0 {
			return 0
		}
		if int(idx) >= len(s.cells) {
			return SlotIdx(len(s.cells) - 1)
		}
	}
	return idx
}

// InBounds reports whether idx addresses an existing slot.
func (s *Scoreboard) InBounds(idx SlotIdx) bool {
	return idx >= 0 && int(idx) < len(s.cells)
}

// Get returns the cell at idx. Callers must check InBounds first.
func (s *Scoreboard) Get(idx SlotIdx) Cell {
	return s.cells[idx]
}

// Set overwrites the cell at idx.
func (s *Scoreboard) Set(idx SlotIdx, cell Cell) {
	s.cells[idx] = cell
}

// Interval is a maximal run of consecutive slots returned by CollectIntervals.
type Interval struct {
	Start time.Time
	End   time.Time
}

// CollectIntervals returns maximal runs of consecutive slots in [rangeStart,
// rangeEnd) satisfying predicate, each at least minDuration long.
func (s *Scoreboard) CollectIntervals(rangeStart, rangeEnd SlotIdx, minDuration time.Duration, predicate func(Cell) bool) []Interval {
	if rangeStart < 0 {
		rangeStart = 0
	}
	if int(rangeEnd) > len(s.cells) {
		rangeEnd = SlotIdx(len(s.cells))
	}
	var out []Interval
	runStart := NoSlot
	flush := func(runEnd SlotIdx) {
		if runStart == NoSlot {
			return
		}
		start := s.SlotToInstant(runStart)
		end := s.SlotToInstant(runEnd)
		if end.Sub(start) >= minDuration {
			out = append(out, Interval{Start: start, End: end})
		}
		runStart = NoSlot
	}
	for i := rangeStart; i < rangeEnd; i++ {
		if predicate(s.cells[i]) {
			if runStart == NoSlot {
				runStart = i
			}
		} else {
			flush(i)
		}
	}
	flush(rangeEnd)
	return out
}
