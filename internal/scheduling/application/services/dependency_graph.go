package services

import (
	"time"

	domain "github.com/taskgrid/scheduler/internal/scheduling/domain"
)

// dependencyGraph is the combined DAG formed by every task's Depends (edge
// target -> task) and Precedes (edge task -> target) declarations. It is
// rebuilt once per scenario during prepare.
type dependencyGraph struct {
	successors   map[domain.TaskHandle][]domain.TaskHandle
	predecessors map[domain.TaskHandle][]domain.TaskHandle
}

func buildDependencyGraph(project *domain.Project) *dependencyGraph {
	g := &dependencyGraph{
		successors:   make(map[domain.TaskHandle][]domain.TaskHandle),
		predecessors: make(map[domain.TaskHandle][]domain.TaskHandle),
	}
	addEdge := func(u, v domain.TaskHandle) {
		g.successors[u] = append(g.successors[u], v)
		g.predecessors[v] = append(g.predecessors[v], u)
	}
	for _, t := range project.Tasks {
		for _, dep := range t.Depends {
			addEdge(dep.Target, t.Handle)
		}
		for _, dep := range t.Precedes {
			addEdge(t.Handle, dep.Target)
		}
	}
	return g
}

// detectCycles runs a grey/black DFS over the dependency graph. Each task on
// a detected cycle is reported via a dependency_loop diagnostic and returned
// in the cyclic set so the caller can mark it unscheduleable.
func (g *dependencyGraph) detectCycles(project *domain.Project, diag *domain.Diagnostics, scenarioIdx int) map[domain.TaskHandle]bool {
	colors := make(map[domain.TaskHandle]uint8, len(project.Tasks))
	cyclic := make(map[domain.TaskHandle]bool)

	var visit func(domain.TaskHandle, []domain.TaskHandle)
	visit = func(u domain.TaskHandle, path []domain.TaskHandle) {
		colors[u] = 1 // grey
		path = append(path, u)
		for _, v := range g.successors[u] {
			switch colors[v] {
			case 1: // grey: back edge, cycle found
				cyclic[v] = true
				for i := len(path) - 1; i >= 0 && path[i] != v; i-- {
					cyclic[path[i]] = true
				}
				diag.Error(domain.KindDependencyLoop, scenarioIdx, v, domain.NoResource, "dependency loop detected")
			case 0: // white
				visit(v, path)
			}
		}
		colors[u] = 2 // black
	}

	for _, t := range project.Tasks {
		if colors[t.Handle] == 0 {
			visit(t.Handle, nil)
		}
	}
	return cyclic
}

// computeCriticalness fills Criticalness and PathCriticalness on every leaf
// task. Criticalness is the ratio of expected work to the work capacity of
// its allocated candidate resources over the project span; PathCriticalness
// is the maximum accumulated criticalness over any directed path ending or
// beginning at the task, via a forward then backward topological sweep.
func computeCriticalness(project *domain.Project, state *domain.ScenarioState, g *dependencyGraph) {
	order := topologicalOrder(project, g)

	for _, t := range project.Tasks {
		if !t.IsLeaf() {
			continue
		}
		t.Criticalness = leafCriticalness(project, state, t)
	}

	forward := make(map[domain.TaskHandle]float64)
	for _, h := range order {
		t := project.TaskByHandle(h)
		best := t.Criticalness
		for _, pred := range g.predecessors[h] {
			if v := forward[pred] + t.Criticalness; v > best {
				best = v
			}
		}
		forward[h] = best
	}

	backward := make(map[domain.TaskHandle]float64)
	for i := len(order) - 1; i >= 0; i-- {
		h := order[i]
		t := project.TaskByHandle(h)
		best := t.Criticalness
		for _, succ := range g.successors[h] {
			if v := backward[succ] + t.Criticalness; v > best {
				best = v
			}
		}
		backward[h] = best
	}

	for _, t := range project.Tasks {
		f, b := forward[t.Handle], backward[t.Handle]
		if f > b {
			t.PathCriticalness = f
		} else {
			t.PathCriticalness = b
		}
	}
}

// leafCriticalness is expectedWork / availableWork across the task's first
// allocation's candidate resources (subsequent allocations contend for
// different resource pools and do not change the task's own bottleneck
// ratio). A task with no allocations or zero available work has
// criticalness 0 (no resource bottleneck to report).
func leafCriticalness(project *domain.Project, state *domain.ScenarioState, t *domain.Task) float64 {
	expected := expectedWorkHours(t)
	if expected <= 0 || len(t.Allocations) == 0 {
		return 0
	}
	alloc := t.Allocations[0]
	available := 0.0
	for _, rh := range alloc.Candidates {
		rs := state.Resource(rh)
		if rs == nil || rs.Scoreboard == nil {
			continue
		}
		for i := 0; i < rs.Scoreboard.Len(); i++ {
			if rs.Scoreboard.Get(domain.SlotIdx(i)).State == domain.CellAvailable {
				available += rs.Scoreboard.Granularity.Hours() * rs.Resource.Efficiency
			}
		}
	}
	if available <= 0 {
		return 0
	}
	return expected / available
}

func expectedWorkHours(t *domain.Task) float64 {
	switch t.Mode {
	case domain.ModeEffort:
		return t.EffortHours
	case domain.ModeLength:
		return t.Length.Hours()
	case domain.ModeDuration:
		return t.DurationSpan.Hours()
	default:
		return 0
	}
}

// topologicalOrder returns task handles in dependency order via Kahn's
// algorithm. Any task left out of a complete ordering (due to a cycle) is
// appended in declaration order so computeCriticalness still terminates.
func topologicalOrder(project *domain.Project, g *dependencyGraph) []domain.TaskHandle {
	inDegree := make(map[domain.TaskHandle]int, len(project.Tasks))
	for _, t := range project.Tasks {
		inDegree[t.Handle] = len(g.predecessors[t.Handle])
	}
	var queue []domain.TaskHandle
	for _, t := range project.Tasks {
		if inDegree[t.Handle] == 0 {
			queue = append(queue, t.Handle)
		}
	}
	var order []domain.TaskHandle
	seen := make(map[domain.TaskHandle]bool)
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if seen[h] {
			continue
		}
		seen[h] = true
		order = append(order, h)
		for _, succ := range g.successors[h] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				queue = append(queue, succ)
			}
		}
	}
	for _, t := range project.Tasks {
		if !seen[t.Handle] {
			order = append(order, t.Handle)
		}
	}
	return order
}

// resolveGap advances instant t by gap in calendar time, or in working time
// (walking the project's global calendar one slot at a time) when
// workingTime is true.
// resolveGap advances t by gap, counting only on-shift slots toward it when
// workingTime is set. gap may be negative (effectiveEnd's backward walk from
// a precedes successor), in which case the walk runs backward: the cursor
// steps back one slot at a time and a slot counts toward the gap once it is
// entered, mirroring the forward walk's check-then-advance shape in reverse.
func resolveGap(project *domain.Project, t time.Time, gap time.Duration, workingTime bool) time.Time {
	if !workingTime || gap == 0 {
		return t.Add(gap)
	}
	if gap > 0 {
		remaining := gap
		cursor := t
		for remaining > 0 {
			if project.IsOnShift(cursor) {
				remaining -= project.Granularity
			}
			cursor = cursor.Add(project.Granularity)
		}
		return cursor
	}
	remaining := -gap
	cursor := t
	for remaining > 0 {
		cursor = cursor.Add(-project.Granularity)
		if project.IsOnShift(cursor) {
			remaining -= project.Granularity
		}
	}
	return cursor
}
