package domain

// TaskHandle and ResourceHandle are small integer arena indices rather than
// UUIDs or pointers. Tasks and resources form trees with back-references to
// their parent plus a dependency DAG; pointer-based nodes would make those
// back-references cyclic strong references. A handle is just an index into
// Project.Tasks / Project.Resources.
type TaskHandle int

// ResourceHandle indexes Project.Resources.
type ResourceHandle int

// NoTask and NoResource are the sentinel "absent" handle values.
const (
	NoTask     TaskHandle     = -1
	NoResource ResourceHandle = -1
)

// SlotIdx indexes a Scoreboard.
type SlotIdx int

// NoSlot is the sentinel "absent" slot index.
const NoSlot SlotIdx = -1
