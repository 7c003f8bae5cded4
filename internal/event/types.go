// Package event defines the typed events that decouple the session monitor,
// plan watcher, workflow controller, and any presentation layer. Components
// communicate through the Bus without direct dependencies.
package event

import (
	"time"

	"github.com/petestewart/iterm-controller-sub000/internal/detect"
)

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "session.attention_changed").
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// Event type identifiers for subscription.
const (
	TypeSessionAttentionChanged = "session.attention_changed"
	TypeSessionOutputAppended   = "session.output_appended"
	TypeSessionRemoved          = "session.removed"
	TypePlanReloaded            = "plan.reloaded"
	TypePlanConflict            = "plan.conflict"
	TypePlanParseWarning        = "plan.parse_warning"
	TypeWorkflowStageChanged    = "workflow.stage_changed"
	TypeAutomationDispatched    = "workflow.automation_dispatched"
	TypeAutomationFailed        = "workflow.automation_failed"
)

// -----------------------------------------------------------------------------
// Session Events
// -----------------------------------------------------------------------------

// SessionAttentionChangedEvent is emitted when a session's attention state
// transitions. It is never emitted for a re-detection of the same state.
type SessionAttentionChangedEvent struct {
	baseEvent
	SessionID string
	Old       detect.AttentionState
	New       detect.AttentionState
}

// NewSessionAttentionChangedEvent creates a SessionAttentionChangedEvent.
func NewSessionAttentionChangedEvent(sessionID string, old, new detect.AttentionState) SessionAttentionChangedEvent {
	return SessionAttentionChangedEvent{
		baseEvent: newBaseEvent(TypeSessionAttentionChanged),
		SessionID: sessionID,
		Old:       old,
		New:       new,
	}
}

// SessionOutputAppendedEvent is emitted when a poll cycle observes new
// output. Delta holds only the incremental text, never the full buffer.
type SessionOutputAppendedEvent struct {
	baseEvent
	SessionID string
	Delta     string
}

// NewSessionOutputAppendedEvent creates a SessionOutputAppendedEvent.
func NewSessionOutputAppendedEvent(sessionID, delta string) SessionOutputAppendedEvent {
	return SessionOutputAppendedEvent{
		baseEvent: newBaseEvent(TypeSessionOutputAppended),
		SessionID: sessionID,
		Delta:     delta,
	}
}

// SessionRemovedEvent is emitted when a session is dropped from the
// registry because the provider no longer knows it.
type SessionRemovedEvent struct {
	baseEvent
	SessionID string
	Reason    string
}

// NewSessionRemovedEvent creates a SessionRemovedEvent.
func NewSessionRemovedEvent(sessionID, reason string) SessionRemovedEvent {
	return SessionRemovedEvent{
		baseEvent: newBaseEvent(TypeSessionRemoved),
		SessionID: sessionID,
		Reason:    reason,
	}
}

// -----------------------------------------------------------------------------
// Plan Events
// -----------------------------------------------------------------------------

// PlanSnapshot is the minimal view of a parsed plan carried by events.
// The concrete *plan.Plan satisfies it; events avoid importing the plan
// package so the plan package can stay dependency-free.
type PlanSnapshot interface {
	TaskStatuses() map[string]string
	TaskCount() int
}

// PlanReloadedEvent is emitted when an external edit is adopted (either
// silently, because statuses were unchanged, or after a conflict decision).
type PlanReloadedEvent struct {
	baseEvent
	Path string
	Plan PlanSnapshot
}

// NewPlanReloadedEvent creates a PlanReloadedEvent.
func NewPlanReloadedEvent(path string, plan PlanSnapshot) PlanReloadedEvent {
	return PlanReloadedEvent{
		baseEvent: newBaseEvent(TypePlanReloaded),
		Path:      path,
		Plan:      plan,
	}
}

// PlanConflictEvent is emitted when an external edit changed per-task
// statuses while the in-memory plan also held changes. Diffs holds
// human-readable lines like "1.1: in_progress -> complete".
type PlanConflictEvent struct {
	baseEvent
	Path     string
	Current  PlanSnapshot
	Incoming PlanSnapshot
	Diffs    []string
}

// NewPlanConflictEvent creates a PlanConflictEvent.
func NewPlanConflictEvent(path string, current, incoming PlanSnapshot, diffs []string) PlanConflictEvent {
	return PlanConflictEvent{
		baseEvent: newBaseEvent(TypePlanConflict),
		Path:      path,
		Current:   current,
		Incoming:  incoming,
		Diffs:     diffs,
	}
}

// PlanParseWarningEvent is emitted when a reload failed to parse. The
// previous good plan remains live.
type PlanParseWarningEvent struct {
	baseEvent
	Path string
	Err  string
}

// NewPlanParseWarningEvent creates a PlanParseWarningEvent.
func NewPlanParseWarningEvent(path string, err error) PlanParseWarningEvent {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return PlanParseWarningEvent{
		baseEvent: newBaseEvent(TypePlanParseWarning),
		Path:      path,
		Err:       msg,
	}
}

// -----------------------------------------------------------------------------
// Workflow Events
// -----------------------------------------------------------------------------

// WorkflowStageChangedEvent is emitted only on an actual stage transition,
// never on a no-op recompute.
type WorkflowStageChangedEvent struct {
	baseEvent
	ProjectID string
	Old       string
	New       string
}

// NewWorkflowStageChangedEvent creates a WorkflowStageChangedEvent.
func NewWorkflowStageChangedEvent(projectID, old, new string) WorkflowStageChangedEvent {
	return WorkflowStageChangedEvent{
		baseEvent: newBaseEvent(TypeWorkflowStageChanged),
		ProjectID: projectID,
		Old:       old,
		New:       new,
	}
}

// AutomationDispatchedEvent is emitted after a stage command was sent to
// the terminal provider.
type AutomationDispatchedEvent struct {
	baseEvent
	ProjectID string
	Stage     string
	SessionID string
	Command   string
}

// NewAutomationDispatchedEvent creates an AutomationDispatchedEvent.
func NewAutomationDispatchedEvent(projectID, stage, sessionID, command string) AutomationDispatchedEvent {
	return AutomationDispatchedEvent{
		baseEvent: newBaseEvent(TypeAutomationDispatched),
		ProjectID: projectID,
		Stage:     stage,
		SessionID: sessionID,
		Command:   command,
	}
}

// AutomationFailedEvent is emitted when a stage command could not be
// dispatched. Stage inference continues after this event.
type AutomationFailedEvent struct {
	baseEvent
	ProjectID string
	Stage     string
	Command   string
	Err       string
}

// NewAutomationFailedEvent creates an AutomationFailedEvent.
func NewAutomationFailedEvent(projectID, stage, command string, err error) AutomationFailedEvent {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return AutomationFailedEvent{
		baseEvent: newBaseEvent(TypeAutomationFailed),
		ProjectID: projectID,
		Stage:     stage,
		Command:   command,
		Err:       msg,
	}
}
