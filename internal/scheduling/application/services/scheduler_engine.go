package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	domain "github.com/taskgrid/scheduler/internal/scheduling/domain"
	"github.com/taskgrid/scheduler/internal/shared/infrastructure/eventbus"
	"github.com/taskgrid/scheduler/pkg/observability"
)

// ScenarioResult is the outcome of scheduling one scenario.
type ScenarioResult struct {
	Scenario *domain.Scenario
	State    *domain.ScenarioState
	Failed   bool
}

// Result is the outcome of running the scheduler over every active scenario
// in a project.
type Result struct {
	Success   bool
	Scenarios []*ScenarioResult
}

// SchedulerEngine drives the prepare -> schedule -> finish passes over a
// project's scenarios. It is stateless between runs; all mutable state lives
// in the per-scenario domain.ScenarioState produced during prepare.
type SchedulerEngine struct {
	logger    *slog.Logger
	metrics   observability.Metrics
	publisher eventbus.Publisher
}

// Option configures a SchedulerEngine.
type Option func(*SchedulerEngine)

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *SchedulerEngine) { e.logger = logger }
}

// WithMetrics overrides the default (no-op) metrics sink.
func WithMetrics(m observability.Metrics) Option {
	return func(e *SchedulerEngine) { e.metrics = m }
}

// WithPublisher attaches an event bus publisher for domain events
// (ScenarioScheduled, TaskScheduled, Deadlocked).
func WithPublisher(p eventbus.Publisher) Option {
	return func(e *SchedulerEngine) { e.publisher = p }
}

// NewSchedulerEngine constructs a driver with the given options.
func NewSchedulerEngine(opts ...Option) *SchedulerEngine {
	e := &SchedulerEngine{
		logger:  slog.Default(),
		metrics: observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run schedules every active scenario in declaration order. The core's
// single entrypoint: callers construct a fully populated domain.Project and
// hand it here. Scheduling is deterministic and single-threaded; a failed
// scenario does not abort the others.
func (e *SchedulerEngine) Run(ctx context.Context, project *domain.Project) (*Result, error) {
	if len(project.Scenarios) == 0 {
		return nil, domain.ErrNoScenarios
	}

	result := &Result{Success: true}
	for _, scenario := range project.Scenarios {
		if !scenario.Active {
			continue
		}

		state, graph := e.prepareScenario(project, scenario)
		e.scheduleScenario(ctx, project, state, graph)
		e.finishScenario(project, state)

		failed := project.Diagnostics.HasErrors(scenario.Index)
		state.Failed = failed
		if failed {
			result.Success = false
		}
		result.Scenarios = append(result.Scenarios, &ScenarioResult{Scenario: scenario, State: state, Failed: failed})

		e.logger.Info("scenario scheduled",
			"scenario", scenario.Name,
			"scenario_index", scenario.Index,
			"failed", failed,
		)
		e.metrics.Counter(observability.MetricScenariosScheduled, 1, observability.T("failed", boolString(failed)))
		e.publish(ctx, domain.NewScenarioScheduled(project.ID(), scenario.Index, scenario.Name, failed))
	}

	return result, nil
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// schedulingEvent is the minimal surface publish needs from a domain event.
type schedulingEvent interface {
	RoutingKey() string
}

// publish serializes a domain event and hands it straight to the configured
// Publisher, logging but not failing the schedule on a publish error — event
// delivery is not a precondition for a correct schedule. Events are not
// written to the outbox, so a failed publish is not retried.
func (e *SchedulerEngine) publish(ctx context.Context, event schedulingEvent) {
	if e.publisher == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		e.logger.Warn("failed to marshal scheduling event", "error", err)
		return
	}
	if err := e.publisher.Publish(ctx, event.RoutingKey(), payload); err != nil {
		e.logger.Warn("failed to publish scheduling event", "error", err, "routing_key", event.RoutingKey())
	}
	e.metrics.Counter(observability.MetricEventsPublished, 1, observability.T("routing_key", event.RoutingKey()))
}

// prepareScenario (mode=1): builds scenario-local state, infers each leaf's
// duration mode, validates resource managers, resolves dependencies and
// validates the graph, computes criticalness, and replays a tracking
// scenario's pre-supplied bookings. No attributes are inherited from
// container tasks: each leaf is scheduled from its own fields only.
func (e *SchedulerEngine) prepareScenario(project *domain.Project, scenario *domain.Scenario) (*domain.ScenarioState, *dependencyGraph) {
	state := &domain.ScenarioState{
		Scenario:       scenario,
		TaskStates:     make([]*domain.TaskState, len(project.Tasks)),
		ResourceStates: make([]*domain.ResourceState, len(project.Resources)),
	}
	for _, r := range project.Resources {
		state.ResourceStates[r.Handle] = domain.NewResourceState(r, project.Leaves, project.Start, project.End, project.Granularity)
	}
	for _, t := range project.Tasks {
		state.TaskStates[t.Handle] = domain.NewTaskState(t)
	}

	for _, t := range project.Tasks {
		if !t.IsLeaf() {
			continue
		}
		if err := t.InferMode(); err != nil {
			project.Diagnostics.Error(domain.KindTaskNeverCompleted, scenario.Index, t.Handle, domain.NoResource, err.Error())
			state.Task(t.Handle).Failed = true
		}
	}

	validateResourceManagers(project, scenario.Index)

	graph := buildDependencyGraph(project)
	cyclic := graph.detectCycles(project, project.Diagnostics, scenario.Index)
	for handle := range cyclic {
		if ts := state.Task(handle); ts != nil {
			ts.Failed = true
		}
	}

	computeCriticalness(project, state, graph)

	if scenario.Tracking {
		for _, tb := range scenario.TrackingBookings {
			rs := state.Resource(tb.Resource)
			ts := state.Task(tb.Task)
			if rs == nil || ts == nil {
				continue
			}
			if rs.Book(tb.Slot, tb.Task, true) {
				ts.DoneEffortHours += rs.Resource.Efficiency * project.Granularity.Hours()
				ts.Bookings = append(ts.Bookings, domain.Booking{Resource: tb.Resource, Slot: tb.Slot})
			}
		}
	}

	return state, graph
}

// validateResourceManagers checks each resource's ManagerHandle against the
// three prepare-time validation failures from spec section 7.
func validateResourceManagers(project *domain.Project, scenarioIdx int) {
	for _, r := range project.Resources {
		if r.ManagerHandle == domain.NoResource {
			continue
		}
		if r.ManagerHandle == r.Handle {
			project.Diagnostics.Error(domain.KindManagerIsSelf, scenarioIdx, domain.NoTask, r.Handle, "resource is its own manager")
			continue
		}
		manager := project.ResourceByHandle(r.ManagerHandle)
		if manager == nil {
			project.Diagnostics.Error(domain.KindResourceIDExpected, scenarioIdx, domain.NoTask, r.Handle, "manager resource not found")
			continue
		}
		if manager.IsGroup {
			project.Diagnostics.Error(domain.KindManagerIsGroup, scenarioIdx, domain.NoTask, r.Handle, "manager must be a leaf resource")
			continue
		}
		seen := map[domain.ResourceHandle]bool{r.Handle: true}
		cursor := manager
		for cursor.ManagerHandle != domain.NoResource {
			if seen[cursor.ManagerHandle] {
				project.Diagnostics.Error(domain.KindManagerLoop, scenarioIdx, domain.NoTask, r.Handle, "manager chain forms a loop")
				break
			}
			seen[cursor.Handle] = true
			next := project.ResourceByHandle(cursor.ManagerHandle)
			if next == nil {
				break
			}
			cursor = next
		}
	}
}

// scheduleScenario (mode=2): the priority-ordered ready-set loop.
func (e *SchedulerEngine) scheduleScenario(ctx context.Context, project *domain.Project, state *domain.ScenarioState, graph *dependencyGraph) {
	markImplicitMilestones(project, state)

	ready := readySet(project, state)
	rng := rand.New(rand.NewSource(seedFor(project.ID(), state.Scenario.Index)))

	for len(ready) > 0 {
		sortReadySet(project, ready)

		idx := firstReady(project, state, ready)
		if idx < 0 {
			var remaining []string
			for _, h := range ready {
				remaining = append(remaining, project.TaskByHandle(h).ID)
			}
			project.Diagnostics.Warning(domain.KindDeadlock, state.Scenario.Index, domain.NoTask, domain.NoResource, "ready set nonempty but no task is ready")
			e.publish(ctx, domain.NewDeadlocked(project.ID(), state.Scenario.Index, remaining))
			for _, h := range ready {
				state.Task(h).Failed = true
			}
			break
		}

		handle := ready[idx]
		ready = append(ready[:idx], ready[idx+1:]...)

		task := project.TaskByHandle(handle)
		ts := state.Task(handle)
		ok := e.scheduleTask(project, state, task, ts, rng)
		if ok {
			e.metrics.Counter(observability.MetricTasksScheduled, 1)
			e.publish(ctx, domain.NewTaskScheduled(project.ID(), state.Scenario.Index, task))
		} else {
			e.metrics.Counter(observability.MetricTasksUnscheduled, 1)
		}
		recomputeContainerStatus(project, state, task.ParentHandle)
	}

	unscheduled := 0
	for _, t := range project.Tasks {
		if t.IsLeaf() {
			if ts := state.Task(t.Handle); ts != nil && !ts.Scheduled {
				unscheduled++
			}
		}
	}
	if unscheduled > 0 {
		project.Diagnostics.Warning(domain.KindUnscheduledTasks, state.Scenario.Index, domain.NoTask, domain.NoResource, "scenario has unscheduled tasks")
	}
}

// seedFor derives a deterministic RNG seed from the project identity and
// scenario index, so random selection-mode runs are reproducible.
func seedFor(projectID uuid.UUID, scenarioIdx int) int64 {
	seed := int64(scenarioIdx)
	for _, b := range projectID {
		seed = seed*31 + int64(b)
	}
	return seed
}

// markImplicitMilestones implements schedule-pass step 1: a leaf with
// milestone mode and exactly one anchor known copies it to the other side
// and marks itself scheduled immediately.
func markImplicitMilestones(project *domain.Project, state *domain.ScenarioState) {
	for _, t := range project.Tasks {
		if !t.IsLeaf() || t.Mode != domain.ModeMilestone {
			continue
		}
		ts := state.Task(t.Handle)
		if ts.Failed {
			continue
		}
		switch {
		case t.ExplicitStart != nil && t.ExplicitEnd == nil:
			v := *t.ExplicitStart
			ts.Start, ts.End = &v, &v
		case t.ExplicitEnd != nil && t.ExplicitStart == nil:
			v := *t.ExplicitEnd
			ts.Start, ts.End = &v, &v
		case t.ExplicitStart != nil && t.ExplicitEnd != nil:
			ts.Start, ts.End = t.ExplicitStart, t.ExplicitEnd
		default:
			// Free-floating milestone with neither anchor: default to project start.
			v := project.Start
			ts.Start, ts.End = &v, &v
		}
		ts.Scheduled = true
	}
}

func readySet(project *domain.Project, state *domain.ScenarioState) []domain.TaskHandle {
	var ready []domain.TaskHandle
	for _, t := range project.Tasks {
		if !t.IsLeaf() {
			continue
		}
		ts := state.Task(t.Handle)
		if ts.Scheduled || ts.Failed {
			continue
		}
		ready = append(ready, t.Handle)
	}
	return ready
}

// sortReadySet orders by (-priority, -pathCriticalness, +seqno), the
// deterministic conflict-resolution order required of every scenario run.
func sortReadySet(project *domain.Project, handles []domain.TaskHandle) {
	sort.SliceStable(handles, func(i, j int) bool {
		a, b := project.TaskByHandle(handles[i]), project.TaskByHandle(handles[j])
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.PathCriticalness != b.PathCriticalness {
			return a.PathCriticalness > b.PathCriticalness
		}
		return a.SeqNo < b.SeqNo
	})
}

// firstReady returns the index in the (already sorted) ready set of the
// first task whose dependencies are satisfied, or -1 if none is ready.
func firstReady(project *domain.Project, state *domain.ScenarioState, ready []domain.TaskHandle) int {
	for i, h := range ready {
		t := project.TaskByHandle(h)
		ts := state.Task(h)
		if readyForScheduling(t, ts, state) {
			return i
		}
	}
	return -1
}

func readyForScheduling(t *domain.Task, ts *domain.TaskState, state *domain.ScenarioState) bool {
	if ts.Scheduled || ts.Failed {
		return false
	}
	if t.Direction == domain.DirectionForward {
		if t.MinStart != nil && t.MaxStart != nil && t.MinStart.After(*t.MaxStart) {
			return false // anchor bounds unsatisfiable; surfaces as a deadlock
		}
		for _, dep := range t.Depends {
			pred := state.Task(dep.Target)
			if pred == nil || !pred.Scheduled {
				return false
			}
		}
		return true
	}
	if t.MinEnd != nil && t.MaxEnd != nil && t.MinEnd.After(*t.MaxEnd) {
		return false // anchor bounds unsatisfiable; surfaces as a deadlock
	}
	for _, dep := range t.Precedes {
		succ := state.Task(dep.Target)
		if succ == nil || !succ.Scheduled {
			return false
		}
	}
	return true
}

// scheduleTask computes the initial cursor and iterates scheduleSlot until
// done or the cursor leaves the project span (runaway).
func (e *SchedulerEngine) scheduleTask(project *domain.Project, state *domain.ScenarioState, t *domain.Task, ts *domain.TaskState, rng *rand.Rand) bool {
	if t.Mode == domain.ModeMilestone {
		return true // already placed by markImplicitMilestones
	}

	forward := t.Direction == domain.DirectionForward
	var cursorInstant time.Time
	if forward {
		cursorInstant = effectiveStart(project, state, t)
	} else {
		cursorInstant = effectiveEnd(project, state, t)
	}

	cursor := project.InstantToSlot(cursorInstant, false)
	if !forward {
		cursor--
	}
	ts.Cursor = cursor

	lowBound := project.InstantToSlot(project.Start, false)
	highBound := project.InstantToSlot(project.End, false)

	// firstWorked is the first slot of the walk where the task made progress;
	// it fixes the anchored endpoint (start forward, end ALAP) once done.
	firstWorked := domain.NoSlot
	for {
		if cursor < lowBound || cursor >= highBound {
			ts.IsRunAway = true
			project.Diagnostics.Error(domain.KindTaskNeverCompleted, state.Scenario.Index, t.Handle, domain.NoResource, "task never completed before leaving project span")
			ts.Failed = true
			return false
		}

		before := ts.DoneEffortHours + (ts.DoneLength + ts.DoneDuration).Hours()
		done := e.scheduleSlot(project, state, t, ts, cursor, rng)
		if firstWorked == domain.NoSlot && ts.DoneEffortHours+(ts.DoneLength+ts.DoneDuration).Hours() > before {
			firstWorked = cursor
		}
		if done {
			if firstWorked != domain.NoSlot && forward {
				s := project.SlotToInstant(firstWorked)
				ts.Start = &s
			} else if firstWorked != domain.NoSlot {
				en := project.SlotToInstant(firstWorked + 1)
				ts.End = &en
			}
			ts.Scheduled = true
			return true
		}

		if forward {
			cursor++
		} else {
			cursor--
		}
		ts.Cursor = cursor
	}
}

func effectiveStart(project *domain.Project, state *domain.ScenarioState, t *domain.Task) time.Time {
	start := project.Start
	if t.ExplicitStart != nil && t.ExplicitStart.After(start) {
		start = *t.ExplicitStart
	}
	for _, dep := range t.Depends {
		predState := state.Task(dep.Target)
		if predState == nil {
			continue
		}
		point, ok := refPoint(predState, dep.Ref)
		if !ok {
			continue
		}
		candidate := resolveGap(project, point, dep.Gap, dep.GapIsWorkingTime)
		if candidate.After(start) {
			start = candidate
		}
	}
	if t.MinStart != nil && t.MinStart.After(start) {
		start = *t.MinStart
	}
	if t.MaxStart != nil && t.MaxStart.Before(start) {
		start = *t.MaxStart
	}
	return start
}

func effectiveEnd(project *domain.Project, state *domain.ScenarioState, t *domain.Task) time.Time {
	end := project.End
	if t.ExplicitEnd != nil && t.ExplicitEnd.Before(end) {
		end = *t.ExplicitEnd
	}
	for _, dep := range t.Precedes {
		succState := state.Task(dep.Target)
		if succState == nil {
			continue
		}
		point, ok := refPoint(succState, dep.Ref)
		if !ok {
			continue
		}
		candidate := resolveGap(project, point, -dep.Gap, dep.GapIsWorkingTime)
		if candidate.Before(end) {
			end = candidate
		}
	}
	if t.MaxEnd != nil && t.MaxEnd.Before(end) {
		end = *t.MaxEnd
	}
	if t.MinEnd != nil && t.MinEnd.After(end) {
		end = *t.MinEnd
	}
	return end
}

func refPoint(ts *domain.TaskState, ref domain.RefPoint) (time.Time, bool) {
	if ref == domain.RefOnStart {
		return ts.EffectiveStart()
	}
	return ts.EffectiveEnd()
}

// scheduleSlot applies the per-mode state machine for one slot of the
// cursor walk and reports whether the task is now done.
func (e *SchedulerEngine) scheduleSlot(project *domain.Project, state *domain.ScenarioState, t *domain.Task, ts *domain.TaskState, slot domain.SlotIdx, rng *rand.Rand) bool {
	switch t.Mode {
	case domain.ModeEffort:
		if !anyCandidateOnShift(project, state, t, slot) {
			return false
		}
		gained := bookResources(project, state, project.Diagnostics, state.Scenario.Index, t, ts, slot, rng)
		ts.DoneEffortHours += gained
		if ts.DoneEffortHours >= t.EffortHours {
			setFarEndpoint(project, t, ts, slot)
			return true
		}
		return false

	case domain.ModeLength:
		if anyCandidateOnShift(project, state, t, slot) {
			bookResources(project, state, project.Diagnostics, state.Scenario.Index, t, ts, slot, rng)
			ts.DoneLength += project.Granularity
		}
		if ts.DoneLength >= t.Length {
			setFarEndpoint(project, t, ts, slot)
			return true
		}
		return false

	case domain.ModeDuration:
		bookResources(project, state, project.Diagnostics, state.Scenario.Index, t, ts, slot, rng)
		ts.DoneDuration += project.Granularity
		if ts.DoneDuration >= t.DurationSpan {
			setFarEndpoint(project, t, ts, slot)
			return true
		}
		return false

	case domain.ModeStartEnd:
		bookResources(project, state, project.Diagnostics, state.Scenario.Index, t, ts, slot, rng)
		boundary := project.InstantToSlot(*t.ExplicitEnd, false)
		if t.Direction != domain.DirectionForward {
			boundary = project.InstantToSlot(*t.ExplicitStart, false)
		}
		if (t.Direction == domain.DirectionForward && slot >= boundary) || (t.Direction != domain.DirectionForward && slot <= boundary) {
			ts.Start, ts.End = t.ExplicitStart, t.ExplicitEnd
			return true
		}
		return false

	default:
		return true
	}
}

// anyCandidateOnShift reports whether at least one candidate resource across
// the task's allocations is on-shift at slot (ignoring availability/limits,
// which bookResources checks separately).
func anyCandidateOnShift(project *domain.Project, state *domain.ScenarioState, t *domain.Task, slot domain.SlotIdx) bool {
	instant := project.SlotToInstant(slot)
	if projectLeaveBlocks(project, instant) {
		return false
	}
	for _, alloc := range t.Allocations {
		for _, rh := range alloc.Candidates {
			rs := state.Resource(rh)
			if rs == nil {
				continue
			}
			if rs.Resource.IsGroup {
				for _, leaf := range project.LeafDescendants(rh) {
					leafState := state.Resource(leaf)
					if leafState != nil && leafState.Resource.IsOnShiftIgnoringProjectLeaves(instant) {
						return true
					}
				}
				continue
			}
			if rs.Resource.IsOnShiftIgnoringProjectLeaves(instant) {
				return true
			}
		}
	}
	return false
}

func projectLeaveBlocks(project *domain.Project, instant time.Time) bool {
	_, covered := leaveAt(project.Leaves, instant)
	return covered
}

func leaveAt(leaves []domain.Leave, t time.Time) (domain.Leave, bool) {
	for _, l := range leaves {
		if !t.Before(l.Start) && t.Before(l.End) {
			return l, true
		}
	}
	return domain.Leave{}, false
}

// setFarEndpoint fixes the endpoint opposite the task's anchor once its
// accumulator target is reached: end in forward mode, start in ALAP.
func setFarEndpoint(project *domain.Project, t *domain.Task, ts *domain.TaskState, slot domain.SlotIdx) {
	boundary := project.SlotToInstant(slot + 1)
	if t.Direction == domain.DirectionForward {
		if ts.Start == nil {
			s := effectiveTaskStart(project, ts)
			ts.Start = &s
		}
		ts.End = &boundary
	} else {
		if ts.End == nil {
			en := project.SlotToInstant(ts.Cursor + 1)
			ts.End = &en
		}
		start := project.SlotToInstant(slot)
		ts.Start = &start
	}
}

func effectiveTaskStart(project *domain.Project, ts *domain.TaskState) time.Time {
	if s, ok := ts.EffectiveStart(); ok {
		return s
	}
	return project.SlotToInstant(ts.Cursor)
}

// recomputeContainerStatus walks up the task tree from a just-scheduled
// leaf's parent, updating Start/End/Scheduled for every ancestor container so
// dependencies on the container become ready as soon as its last child is
// placed (spec 4.7).
func recomputeContainerStatus(project *domain.Project, state *domain.ScenarioState, parent domain.TaskHandle) {
	for parent != domain.NoTask {
		container := project.TaskByHandle(parent)
		cs := state.Task(parent)
		if container == nil || cs == nil {
			return
		}

		var start, end *time.Time
		allScheduled := true
		for _, childHandle := range container.ChildHandles {
			childState := state.Task(childHandle)
			if childState == nil || !childState.Scheduled {
				allScheduled = false
				continue
			}
			if childState.Start != nil && (start == nil || childState.Start.Before(*start)) {
				start = childState.Start
			}
			if childState.End != nil && (end == nil || childState.End.After(*end)) {
				end = childState.End
			}
		}
		cs.Start, cs.End = start, end
		cs.Scheduled = allScheduled

		if container.ExplicitStart != nil && start != nil && start.Before(*container.ExplicitStart) {
			project.Diagnostics.Warning(domain.KindTaskNeverCompleted, state.Scenario.Index, parent, domain.NoResource, "container start narrower than child envelope")
		}
		if container.ExplicitEnd != nil && end != nil && end.After(*container.ExplicitEnd) {
			project.Diagnostics.Warning(domain.KindTaskNeverCompleted, state.Scenario.Index, parent, domain.NoResource, "container end narrower than child envelope")
		}

		parent = container.ParentHandle
	}
}

// finishScenario (mode=3): bottom-up aggregation is already maintained
// incrementally by recomputeContainerStatus; this pass verifies lower limits
// and emits the final diagnostics.
func (e *SchedulerEngine) finishScenario(project *domain.Project, state *domain.ScenarioState) {
	for _, rs := range state.ResourceStates {
		if rs == nil {
			continue
		}
		for _, lim := range rs.Limits {
			if !lim.MeetsMinimum() {
				project.Diagnostics.Info(domain.KindLimitViolation, state.Scenario.Index, domain.NoTask, rs.Resource.Handle, "resource did not meet minimum booking requirement for limit "+lim.Name)
			}
		}
	}
}
