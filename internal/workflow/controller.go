package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/petestewart/iterm-controller-sub000/internal/errors"
	"github.com/petestewart/iterm-controller-sub000/internal/event"
	"github.com/petestewart/iterm-controller-sub000/internal/logging"
	"github.com/petestewart/iterm-controller-sub000/internal/plan"
	"github.com/petestewart/iterm-controller-sub000/internal/term"
)

// dispatchTimeout bounds a single automation send.
const dispatchTimeout = 10 * time.Second

// ConfirmFunc gates an automation dispatch. Returning false skips the
// dispatch; the stage transition itself still happens.
type ConfirmFunc func(stage Stage, command string) bool

// ControllerConfig holds the dependencies for creating a Controller.
type ControllerConfig struct {
	ProjectID string
	Provider  term.Provider
	Bus       *event.Bus
	Logger    *logging.Logger
	Rules     *RulesFile
	// Confirm, if set, is consulted before dispatching a rule marked
	// confirm: true. Nil means confirmed rules are skipped.
	Confirm ConfirmFunc
	// PRDExists reports whether the project's requirements document is
	// present, surfaced alongside the planning stage.
	PRDExists bool
}

// Controller recomputes the workflow stage as plan and PR state change,
// and runs the configured automation on each transition. Inference is a
// pure function of its inputs; the controller only adds edge detection
// and dispatch.
type Controller struct {
	projectID string
	provider  term.Provider
	bus       *event.Bus
	log       *logging.Logger
	rules     *RulesFile
	confirm   ConfirmFunc

	mu        sync.Mutex
	stage     Stage
	prStatus  PRStatus
	prdExists bool
	plan      *plan.Plan
}

// NewController creates a controller starting in the planning stage.
func NewController(cfg ControllerConfig) *Controller {
	log := cfg.Logger
	if log == nil {
		log = logging.NopLogger()
	}
	return &Controller{
		projectID: cfg.ProjectID,
		provider:  cfg.Provider,
		bus:       cfg.Bus,
		log:       log.WithProject(cfg.ProjectID),
		rules:     cfg.Rules,
		confirm:   cfg.Confirm,
		stage:     StagePlanning,
		prdExists: cfg.PRDExists,
	}
}

// Stage returns the current stage.
func (c *Controller) Stage() Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage
}

// PRDExists reports whether the requirements document was present.
func (c *Controller) PRDExists() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prdExists
}

// OnPlanChanged records the new plan snapshot and re-infers the stage.
func (c *Controller) OnPlanChanged(p *plan.Plan) {
	c.mu.Lock()
	c.plan = p
	c.mu.Unlock()
	c.recompute()
}

// SetPRStatus records a fresh PR snapshot and re-infers the stage.
func (c *Controller) SetPRStatus(status PRStatus) {
	c.mu.Lock()
	c.prStatus = status
	c.mu.Unlock()
	c.recompute()
}

// recompute re-infers the stage and acts only on an actual transition.
// Repeated inputs that map to the current stage never re-dispatch.
func (c *Controller) recompute() {
	c.mu.Lock()
	inferred := InferStage(c.plan, c.prStatus, c.prdExists)
	if inferred == c.stage {
		c.mu.Unlock()
		return
	}
	old := c.stage
	c.stage = inferred
	c.mu.Unlock()

	c.log.Info("workflow stage changed", "old", old.String(), "new", inferred.String())
	if c.bus != nil {
		c.bus.Publish(event.NewWorkflowStageChangedEvent(c.projectID, old.String(), inferred.String()))
	}
	c.dispatch(inferred)
}

// dispatch runs the automation rule for the stage just entered, if any.
// Failures are surfaced and logged but never stall inference.
func (c *Controller) dispatch(stage Stage) {
	rule, ok := c.rules.Rule(stage)
	if !ok {
		return
	}

	if rule.Confirm {
		if c.confirm == nil || !c.confirm(stage, rule.Command) {
			c.log.Info("automation declined", "stage", stage.String(), "command", rule.Command)
			return
		}
	}

	if c.provider == nil {
		c.fail(stage, rule.Command, errors.ErrProviderUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	if !c.provider.Exists(ctx, rule.Session) {
		c.fail(stage, rule.Command, errors.NewSessionError("target session not found", errors.ErrSessionGone).WithSessionID(rule.Session))
		return
	}
	if err := c.provider.SendText(ctx, rule.Session, rule.Command); err != nil {
		c.fail(stage, rule.Command, err)
		return
	}

	c.log.Info("automation dispatched", "stage", stage.String(), "session", rule.Session, "command", rule.Command)
	if c.bus != nil {
		c.bus.Publish(event.NewAutomationDispatchedEvent(c.projectID, stage.String(), rule.Session, rule.Command))
	}
}

func (c *Controller) fail(stage Stage, command string, err error) {
	c.log.Error("automation dispatch failed", "stage", stage.String(), "command", command, "error", err.Error())
	if c.bus != nil {
		c.bus.Publish(event.NewAutomationFailedEvent(c.projectID, stage.String(), command, err))
	}
}
