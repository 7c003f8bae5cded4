// Package workflow infers the project's delivery stage from the current
// plan and pull-request state, and dispatches per-stage automation
// commands to terminal sessions when the stage transitions.
package workflow

import "github.com/petestewart/iterm-controller-sub000/internal/plan"

// Stage represents a phase of the plan-to-merge delivery workflow.
type Stage string

const (
	// StagePlanning indicates no tasks exist yet; the plan is being drafted.
	StagePlanning Stage = "planning"

	// StageExecute indicates tasks exist and at least one is unfinished.
	StageExecute Stage = "execute"

	// StageReview indicates every task is complete or skipped.
	StageReview Stage = "review"

	// StagePR indicates a pull request is open.
	StagePR Stage = "pr"

	// StageDone indicates the pull request has merged.
	StageDone Stage = "done"
)

// String returns the string representation of the stage.
func (s Stage) String() string {
	return string(s)
}

// IsTerminal returns true if this stage represents a final state.
func (s Stage) IsTerminal() bool {
	return s == StageDone
}

// PRStatus is an externally supplied snapshot of pull-request state.
type PRStatus int

const (
	// PRNone means no pull request exists for the project's branch.
	PRNone PRStatus = iota
	// PROpen means a pull request is open and unmerged.
	PROpen
	// PRMerged means the pull request has merged.
	PRMerged
)

// String returns the string representation of the PR status.
func (s PRStatus) String() string {
	switch s {
	case PROpen:
		return "open"
	case PRMerged:
		return "merged"
	default:
		return "none"
	}
}

// InferStage maps the current plan and PR state to a stage. The chain is
// strictly ordered: PR state outranks plan state, and completion outranks
// mere task existence. A nil or empty plan never reaches Review.
//
// prdExists reports whether the project has a requirements document; it
// surfaces planning readiness to callers but does not reorder the chain.
func InferStage(p *plan.Plan, pr PRStatus, prdExists bool) Stage {
	switch pr {
	case PRMerged:
		return StageDone
	case PROpen:
		return StagePR
	}

	if p != nil && p.AllDone() {
		return StageReview
	}
	if p != nil && p.TaskCount() > 0 {
		return StageExecute
	}
	return StagePlanning
}
