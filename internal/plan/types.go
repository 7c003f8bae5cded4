// Package plan parses structured task documents into a dependency graph,
// computes blocked status, and rewrites task status fields without
// disturbing any other byte of the document. Parsing and updating are
// stateless; ownership of a live Plan belongs to the planwatch package.
package plan

import "fmt"

// Status is a task's lifecycle state as recorded in the document.
type Status int

const (
	StatusPending Status = iota
	StatusInProgress
	StatusAwaitingReview
	StatusComplete
	StatusSkipped
	// StatusBlocked is derived from the dependency graph, never ground
	// truth. It appears here because documents may carry a stale
	// [blocked] tag; resolution always recomputes it.
	StatusBlocked
)

// statusTags maps document tags 1:1 to the status enum.
var statusTags = map[string]Status{
	"pending":         StatusPending,
	"in_progress":     StatusInProgress,
	"awaiting_review": StatusAwaitingReview,
	"complete":        StatusComplete,
	"skipped":         StatusSkipped,
	"blocked":         StatusBlocked,
}

// String returns the document tag for the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInProgress:
		return "in_progress"
	case StatusAwaitingReview:
		return "awaiting_review"
	case StatusComplete:
		return "complete"
	case StatusSkipped:
		return "skipped"
	case StatusBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// ParseStatus converts a document tag to a Status.
func ParseStatus(tag string) (Status, error) {
	s, ok := statusTags[tag]
	if !ok {
		return 0, fmt.Errorf("unknown status tag %q", tag)
	}
	return s, nil
}

// IsDone reports whether the status satisfies a dependency.
func (s Status) IsDone() bool {
	return s == StatusComplete || s == StatusSkipped
}

// Task is a unit of work parsed from one task line plus its metadata lines.
type Task struct {
	// ID is unique within the plan: explicit numbering from the title when
	// present, otherwise synthesized as {phase}.{ordinal}.
	ID     string
	Title  string
	Status Status
	// Checked mirrors the checkbox character; true iff the box held "x".
	Checked bool
	// DependsOn lists the ids this task waits on, from the Depends line.
	DependsOn []string
	// Spec, Scope, and Acceptance carry free-text metadata lines.
	Spec       string
	Scope      string
	Acceptance string
	// SessionID links the task to a monitored terminal session.
	SessionID string
	// Line is the task line's 0-based index in the source document.
	Line int
	// Blocked is derived by ResolveDependencies, never parsed as truth.
	Blocked bool
}

// EffectiveStatus returns StatusBlocked when the dependency graph blocks
// the task, otherwise the recorded status.
func (t *Task) EffectiveStatus() Status {
	if t.Blocked {
		return StatusBlocked
	}
	return t.Status
}

// Phase is an ordered group of tasks under one heading.
type Phase struct {
	Title   string
	Ordinal int // 1-based position in the document
	Tasks   []*Task
}

// Completion returns the fraction of the phase's tasks that are complete
// or skipped. An empty phase reports zero.
func (p *Phase) Completion() float64 {
	if len(p.Tasks) == 0 {
		return 0
	}
	done := 0
	for _, t := range p.Tasks {
		if t.Status.IsDone() {
			done++
		}
	}
	return float64(done) / float64(len(p.Tasks))
}

// Plan is a parsed task document: ordered phases, or a single implicit
// phase when the document has no phase headings.
type Plan struct {
	Phases []*Phase
	// Implicit is true when the document had no phase headings.
	Implicit bool
}

// Tasks returns the flattened task list in document order.
func (p *Plan) Tasks() []*Task {
	var tasks []*Task
	for _, ph := range p.Phases {
		tasks = append(tasks, ph.Tasks...)
	}
	return tasks
}

// TaskByID returns the task with the given id, or nil.
func (p *Plan) TaskByID(id string) *Task {
	for _, t := range p.Tasks() {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// StatusCounts returns per-status task counts (recorded status, not the
// derived blocked flag).
func (p *Plan) StatusCounts() map[Status]int {
	counts := make(map[Status]int)
	for _, t := range p.Tasks() {
		counts[t.Status]++
	}
	return counts
}

// TaskCount returns the total number of tasks.
func (p *Plan) TaskCount() int {
	n := 0
	for _, ph := range p.Phases {
		n += len(ph.Tasks)
	}
	return n
}

// TaskStatuses returns a map of task id to recorded status tag. This is
// the view carried by plan events and used for conflict diffing.
func (p *Plan) TaskStatuses() map[string]string {
	statuses := make(map[string]string, p.TaskCount())
	for _, t := range p.Tasks() {
		statuses[t.ID] = t.Status.String()
	}
	return statuses
}

// AllDone reports whether every task is complete or skipped. False for an
// empty plan.
func (p *Plan) AllDone() bool {
	tasks := p.Tasks()
	if len(tasks) == 0 {
		return false
	}
	for _, t := range tasks {
		if !t.Status.IsDone() {
			return false
		}
	}
	return true
}
