package domain

// DiagnosticKind is a stable identifier for a diagnostic message. These
// strings are part of the public contract: callers match on them verbatim.
type DiagnosticKind string

const (
	KindDependencyLoop      DiagnosticKind = "dependency_loop"
	KindDeadlock            DiagnosticKind = "deadlock"
	KindTaskNeverCompleted  DiagnosticKind = "task_never_completed"
	KindResourceIDExpected  DiagnosticKind = "resource_id_expected"
	KindManagerIsGroup      DiagnosticKind = "manager_is_group"
	KindManagerIsSelf       DiagnosticKind = "manager_is_self"
	KindManagerLoop         DiagnosticKind = "manager_loop"
	KindUnscheduledTasks    DiagnosticKind = "unscheduled_tasks"
	KindLimitViolation      DiagnosticKind = "limit_violation"
)

// Severity classifies how a Diagnostic affects the enclosing scenario.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Diagnostic is a single message produced during prepare/schedule/finish.
type Diagnostic struct {
	Kind        DiagnosticKind
	Severity    Severity
	Message     string
	ScenarioIdx int
	TaskHandle  TaskHandle
	ResourceHandle ResourceHandle
}

// Diagnostics is the message handler sink threaded through the scheduler
// passes. It never aborts on its own; only the driver interprets severities.
type Diagnostics struct {
	messages []Diagnostic
}

// NewDiagnostics returns an empty sink.
func NewDiagnostics() *Diagnostics {
	return &Diagnostics{}
}

// Add records a diagnostic.
func (d *Diagnostics) Add(diag Diagnostic) {
	d.messages = append(d.messages, diag)
}

// Info records an info-severity diagnostic.
func (d *Diagnostics) Info(kind DiagnosticKind, scenarioIdx int, task TaskHandle, resource ResourceHandle, message string) {
	d.Add(Diagnostic{Kind: kind, Severity: SeverityInfo, Message: message, ScenarioIdx: scenarioIdx, TaskHandle: task, ResourceHandle: resource})
}

// Warning records a warning-severity diagnostic.
func (d *Diagnostics) Warning(kind DiagnosticKind, scenarioIdx int, task TaskHandle, resource ResourceHandle, message string) {
	d.Add(Diagnostic{Kind: kind, Severity: SeverityWarning, Message: message, ScenarioIdx: scenarioIdx, TaskHandle: task, ResourceHandle: resource})
}

// Error records an error-severity diagnostic. Error-severity diagnostics mark
// the enclosing scenario as failed; they never abort the outer scenario loop.
func (d *Diagnostics) Error(kind DiagnosticKind, scenarioIdx int, task TaskHandle, resource ResourceHandle, message string) {
	d.Add(Diagnostic{Kind: kind, Severity: SeverityError, Message: message, ScenarioIdx: scenarioIdx, TaskHandle: task, ResourceHandle: resource})
}

// All returns every recorded diagnostic in emission order.
func (d *Diagnostics) All() []Diagnostic {
	return d.messages
}

// HasErrors reports whether any error-severity diagnostic was recorded for
// the given scenario index.
func (d *Diagnostics) HasErrors(scenarioIdx int) bool {
	for _, m := range d.messages {
		if m.ScenarioIdx == scenarioIdx && m.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ByKind filters diagnostics by kind.
func (d *Diagnostics) ByKind(kind DiagnosticKind) []Diagnostic {
	var out []Diagnostic
	for _, m := range d.messages {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}
