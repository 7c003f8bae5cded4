package plan

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/petestewart/iterm-controller-sub000/internal/errors"
)

// Document line patterns. Kept as data so the format stays easy to extend
// and test in isolation.
var (
	// phaseHeaderRe matches a phase heading: "## Phase 1: Parser".
	phaseHeaderRe = regexp.MustCompile(`^##\s+(.+?)\s*$`)

	// taskLineRe matches a task line:
	//   - [ ] **Build the parser** `[pending]`
	//   - [x] **1.2 Wire the watcher** `[complete]`
	// Groups: 1=checkbox char, 2=title, 3=status tag.
	taskLineRe = regexp.MustCompile("^-\\s\\[([ x])\\]\\s\\*\\*(.+?)\\*\\*\\s*`\\[([a-z_]+)\\]`\\s*$")

	// metadataLineRe matches an indented metadata line under a task:
	//   - Depends: 1.1, 1.2
	// Groups: 1=key, 2=value.
	metadataLineRe = regexp.MustCompile(`^\s+-\s(Spec|Depends|Scope|Acceptance|Session):\s*(.*?)\s*$`)

	// explicitIDRe extracts explicit numbering from a task title: "1.2 Title".
	explicitIDRe = regexp.MustCompile(`^(\d+(?:\.\d+)+)\s+`)
)

// Parse walks the document top to bottom recognizing phase headers, task
// lines, and indented metadata lines. Documents without phase headers get
// a single implicit phase. Task ids are synthesized as
// {phaseOrdinal}.{taskOrdinal} unless the title carries explicit numbering;
// either way ids are stable across re-parses of an unedited document.
//
// Dependency cycles are rejected here rather than left undefined.
func Parse(text string) (*Plan, error) {
	p := &Plan{}

	var current *Phase
	var lastTask *Task

	ensurePhase := func() *Phase {
		if current == nil {
			current = &Phase{Ordinal: len(p.Phases) + 1}
			if current.Ordinal == 1 && current.Title == "" {
				p.Implicit = true
			}
			p.Phases = append(p.Phases, current)
		}
		return current
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if m := phaseHeaderRe.FindStringSubmatch(line); m != nil {
			current = &Phase{Title: m[1], Ordinal: len(p.Phases) + 1}
			p.Phases = append(p.Phases, current)
			p.Implicit = false
			lastTask = nil
			continue
		}

		if m := taskLineRe.FindStringSubmatch(line); m != nil {
			ph := ensurePhase()
			status, err := ParseStatus(m[3])
			if err != nil {
				return nil, errors.NewPlanError("invalid task line", err).WithLine(i + 1)
			}

			task := &Task{
				Title:   m[2],
				Status:  status,
				Checked: m[1] == "x",
				Line:    i,
			}
			if id := explicitIDRe.FindStringSubmatch(task.Title); id != nil {
				task.ID = id[1]
			} else {
				task.ID = fmt.Sprintf("%d.%d", ph.Ordinal, len(ph.Tasks)+1)
			}

			// The checkbox must agree with the tag: x iff complete.
			if task.Checked != (status == StatusComplete) {
				return nil, errors.NewPlanError(
					fmt.Sprintf("checkbox disagrees with status tag %q for task %s", m[3], task.ID),
					nil).WithLine(i + 1)
			}

			ph.Tasks = append(ph.Tasks, task)
			lastTask = task
			continue
		}

		if m := metadataLineRe.FindStringSubmatch(line); m != nil && lastTask != nil {
			switch m[1] {
			case "Spec":
				lastTask.Spec = m[2]
			case "Depends":
				for _, dep := range strings.Split(m[2], ",") {
					dep = strings.TrimSpace(dep)
					if dep != "" {
						lastTask.DependsOn = append(lastTask.DependsOn, dep)
					}
				}
			case "Scope":
				lastTask.Scope = m[2]
			case "Acceptance":
				lastTask.Acceptance = m[2]
			case "Session":
				lastTask.SessionID = m[2]
			}
			continue
		}

		// Any other line ends metadata attachment for the previous task.
		if strings.TrimSpace(line) != "" {
			lastTask = nil
		}
	}

	// Duplicate ids would make status updates ambiguous.
	seen := make(map[string]int)
	for _, t := range p.Tasks() {
		if prev, dup := seen[t.ID]; dup {
			return nil, errors.NewPlanError(
				fmt.Sprintf("duplicate task id %s (lines %d and %d)", t.ID, prev+1, t.Line+1),
				nil).WithLine(t.Line + 1)
		}
		seen[t.ID] = t.Line
	}

	if err := detectCycle(p); err != nil {
		return nil, err
	}

	ResolveDependencies(p)
	return p, nil
}

// detectCycle rejects plans whose declared dependencies form a cycle.
// Unknown dependency ids are not part of any cycle; they are handled as
// unmet dependencies during resolution.
func detectCycle(p *Plan) error {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)

	tasks := make(map[string]*Task)
	for _, t := range p.Tasks() {
		tasks[t.ID] = t
	}

	state := make(map[string]int, len(tasks))
	var path []string

	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case visiting:
			return fmt.Errorf("%w: %s", errors.ErrDependencyCycle,
				strings.Join(append(path, id), " -> "))
		case done:
			return nil
		}
		state[id] = visiting
		path = append(path, id)
		for _, dep := range tasks[id].DependsOn {
			if _, ok := tasks[dep]; !ok {
				continue
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[id] = done
		return nil
	}

	for id := range tasks {
		if err := visit(id); err != nil {
			return err
		}
	}
	return nil
}

// ResolveDependencies recomputes each task's derived blocked flag in place:
// blocked iff any declared dependency is not complete/skipped. A dependency
// id that resolves to no task counts as unmet — fail-safe to blocked rather
// than silently ignored.
func ResolveDependencies(p *Plan) {
	tasks := make(map[string]*Task)
	for _, t := range p.Tasks() {
		tasks[t.ID] = t
	}

	for _, t := range p.Tasks() {
		t.Blocked = false
		for _, dep := range t.DependsOn {
			d, ok := tasks[dep]
			if !ok || !d.Status.IsDone() {
				t.Blocked = true
				break
			}
		}
	}
}
