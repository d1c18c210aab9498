package domain

import "time"

// RefPoint selects which endpoint of a related task a Dependency measures from/to.
type RefPoint int

const (
	RefOnStart RefPoint = iota
	RefOnEnd
)

// Dependency is a resolved reference to another task, with a gap applied
// between the reference point and the dependent task's own anchor.
type Dependency struct {
	Target           TaskHandle
	Gap              time.Duration
	GapIsWorkingTime bool
	Ref              RefPoint
}
