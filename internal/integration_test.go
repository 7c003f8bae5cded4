// Package internal contains integration tests that verify the monitor, plan
// watcher, and workflow controller compose correctly over a shared event bus.
package internal

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/petestewart/iterm-controller-sub000/internal/detect"
	"github.com/petestewart/iterm-controller-sub000/internal/event"
	"github.com/petestewart/iterm-controller-sub000/internal/monitor"
	"github.com/petestewart/iterm-controller-sub000/internal/plan"
	"github.com/petestewart/iterm-controller-sub000/internal/planwatch"
	"github.com/petestewart/iterm-controller-sub000/internal/term"
	"github.com/petestewart/iterm-controller-sub000/internal/workflow"
)

const integrationTimeout = 5 * time.Second

// fakeTerminal is an in-memory terminal provider. Tests mutate pane content
// directly and record every command the workflow controller dispatches.
type fakeTerminal struct {
	mu      sync.Mutex
	content map[string]string
	sent    []string
}

func newFakeTerminal() *fakeTerminal {
	return &fakeTerminal{content: make(map[string]string)}
}

func (f *fakeTerminal) SpawnSession(ctx context.Context, spec term.SessionSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.content[spec.Name] = ""
	return spec.Name, nil
}

func (f *fakeTerminal) SendText(ctx context.Context, handle, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, handle+":"+text)
	return nil
}

func (f *fakeTerminal) ReadRecentContent(ctx context.Context, handle string, lineCount int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.content[handle], nil
}

func (f *fakeTerminal) Close(ctx context.Context, handle string, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.content, handle)
	return nil
}

func (f *fakeTerminal) Exists(ctx context.Context, handle string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.content[handle]
	return ok
}

func (f *fakeTerminal) setContent(handle, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.content[handle] = content
}

func (f *fakeTerminal) dispatched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

var _ term.Provider = (*fakeTerminal)(nil)

// eventRecorder collects all bus events for later inspection.
type eventRecorder struct {
	mu     sync.Mutex
	events []event.Event
}

func recordBus(bus *event.Bus) *eventRecorder {
	r := &eventRecorder{}
	bus.SubscribeAll(func(e event.Event) {
		r.mu.Lock()
		r.events = append(r.events, e)
		r.mu.Unlock()
	})
	return r
}

func (r *eventRecorder) ofType(eventType string) []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []event.Event
	for _, e := range r.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(integrationTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

const integrationPlan = `# Build plan

## Phase 1: Core

- [ ] **1.1 Implement the parser** ` + "`[in_progress]`" + `
- [ ] **1.2 Wire the watcher** ` + "`[pending]`" + `
  - Depends: 1.1
`

func writeTestPlan(t *testing.T, dir, text string) string {
	t.Helper()
	path := filepath.Join(dir, "plan.md")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("writing plan: %v", err)
	}
	return path
}

// TestIntegration_PlanDrivesWorkflow walks a plan document from execution
// through completion and checks that the watcher, controller, and bus agree
// at every step: stage transitions fire exactly once and each transition
// with a rule dispatches its command to the terminal provider.
func TestIntegration_PlanDrivesWorkflow(t *testing.T) {
	bus := event.NewBus()
	rec := recordBus(bus)
	provider := newFakeTerminal()
	if _, err := provider.SpawnSession(context.Background(), term.SessionSpec{Name: "agent-1"}); err != nil {
		t.Fatalf("spawning fake session: %v", err)
	}

	path := writeTestPlan(t, t.TempDir(), integrationPlan)
	w, err := planwatch.Open(path, bus, nil)
	if err != nil {
		t.Fatalf("opening watcher: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })

	ctrl := workflow.NewController(workflow.ControllerConfig{
		ProjectID: "proj",
		Provider:  provider,
		Bus:       bus,
		Rules: &workflow.RulesFile{
			Stages: map[string]workflow.StageRule{
				"execute": {Command: "start working", Session: "agent-1"},
				"review":  {Command: "review the changes", Session: "agent-1"},
			},
		},
	})
	w.OnChange(ctrl.OnPlanChanged)

	// Feeding the initial plan moves planning to execute and dispatches.
	ctrl.OnPlanChanged(w.Plan())
	if got := ctrl.Stage(); got != workflow.StageExecute {
		t.Fatalf("stage after initial plan = %s, want execute", got)
	}
	waitFor(t, "execute dispatch", func() bool {
		return len(provider.dispatched()) == 1
	})
	if got := provider.dispatched()[0]; got != "agent-1:start working" {
		t.Errorf("dispatched = %q, want agent-1 start command", got)
	}

	// Completing tasks through the watcher funnels back into the controller
	// via OnChange. The first completion leaves the stage at execute.
	if err := w.UpdateTask("1.1", plan.StatusComplete); err != nil {
		t.Fatalf("UpdateTask 1.1: %v", err)
	}
	waitFor(t, "1.1 write to land", func() bool {
		task := w.Plan().TaskByID("1.1")
		return task != nil && task.Status == plan.StatusComplete
	})
	if got := ctrl.Stage(); got != workflow.StageExecute {
		t.Errorf("stage after partial completion = %s, want execute", got)
	}

	if err := w.UpdateTask("1.2", plan.StatusComplete); err != nil {
		t.Fatalf("UpdateTask 1.2: %v", err)
	}
	waitFor(t, "review stage", func() bool {
		return ctrl.Stage() == workflow.StageReview
	})
	waitFor(t, "review dispatch", func() bool {
		return len(provider.dispatched()) == 2
	})
	if got := provider.dispatched()[1]; got != "agent-1:review the changes" {
		t.Errorf("dispatched = %q, want agent-1 review command", got)
	}

	// PR state outranks the plan.
	ctrl.SetPRStatus(workflow.PROpen)
	if got := ctrl.Stage(); got != workflow.StagePR {
		t.Errorf("stage after PR open = %s, want pr", got)
	}
	ctrl.SetPRStatus(workflow.PRMerged)
	if got := ctrl.Stage(); got != workflow.StageDone {
		t.Errorf("stage after PR merge = %s, want done", got)
	}

	// The bus saw every transition exactly once, in order.
	changes := rec.ofType(event.TypeWorkflowStageChanged)
	wantTransitions := []string{"execute", "review", "pr", "done"}
	if len(changes) != len(wantTransitions) {
		t.Fatalf("stage change events = %d, want %d", len(changes), len(wantTransitions))
	}
	for i, want := range wantTransitions {
		sc := changes[i].(event.WorkflowStageChangedEvent)
		if sc.New != want {
			t.Errorf("transition %d: got %s, want %s", i, sc.New, want)
		}
	}
	if got := len(rec.ofType(event.TypeAutomationDispatched)); got != 2 {
		t.Errorf("automation dispatched events = %d, want 2", got)
	}

	// Writes went through the watcher's queue, so the file reflects both
	// completions and still parses.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading plan back: %v", err)
	}
	final, err := plan.Parse(string(data))
	if err != nil {
		t.Fatalf("final document does not parse: %v", err)
	}
	if !final.AllDone() {
		t.Error("final document should have every task complete")
	}
	if !strings.Contains(string(data), "- [x] **1.1 Implement the parser** `[complete]`") {
		t.Errorf("checkbox and tag not updated together:\n%s", data)
	}
}

// TestIntegration_MonitorAndWatcherShareBus runs the session monitor and the
// plan watcher against the same bus and checks both publish into it: the
// monitor reports an attention change when pane content shows a prompt, and
// the watcher reports an externally grown plan as a silent reload.
func TestIntegration_MonitorAndWatcherShareBus(t *testing.T) {
	bus := event.NewBus()
	rec := recordBus(bus)
	provider := newFakeTerminal()
	provider.setContent("sess-1", "building...\n")

	cfg := monitor.Config{
		PollInterval:         20 * time.Millisecond,
		MinPollInterval:      10 * time.Millisecond,
		MaxPollInterval:      100 * time.Millisecond,
		BufferSize:           4096,
		CaptureLines:         100,
		RecencyWindow:        time.Second,
		GracefulCloseTimeout: 300 * time.Millisecond,
		SubscriberBuffer:     8,
	}
	mon := monitor.New(provider, bus, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := mon.Start(ctx); err != nil {
		t.Fatalf("starting monitor: %v", err)
	}
	t.Cleanup(mon.Stop)
	mon.Track("sess-1", "proj")

	path := writeTestPlan(t, t.TempDir(), integrationPlan)
	w, err := planwatch.Open(path, bus, nil)
	if err != nil {
		t.Fatalf("opening watcher: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })

	// A question on the last line flips the session to waiting.
	provider.setContent("sess-1", "building...\nProceed with the changes? (y/n)\n")
	waitFor(t, "waiting attention event", func() bool {
		for _, e := range rec.ofType(event.TypeSessionAttentionChanged) {
			ac := e.(event.SessionAttentionChangedEvent)
			if ac.SessionID == "sess-1" && ac.New == detect.StateWaiting {
				return true
			}
		}
		return false
	})

	// An external edit that only adds tasks is adopted without conflict.
	grown := integrationPlan + "- [ ] **1.3 Ship it** `[pending]`\n"
	if err := os.WriteFile(path, []byte(grown), 0o644); err != nil {
		t.Fatalf("external edit: %v", err)
	}
	waitFor(t, "plan reload event", func() bool {
		return len(rec.ofType(event.TypePlanReloaded)) > 0
	})
	if len(rec.ofType(event.TypePlanConflict)) != 0 {
		t.Error("structural growth must not raise a conflict")
	}
	if got := w.Plan().TaskCount(); got != 3 {
		t.Errorf("live plan tasks = %d, want 3", got)
	}
}
