package plan

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/petestewart/iterm-controller-sub000/internal/errors"
)

// StepStatus is a QA checklist step's state.
type StepStatus int

const (
	StepPending StepStatus = iota
	StepInProgress
	StepPassed
	StepFailed
)

// String returns a human-readable name for the step status.
func (s StepStatus) String() string {
	switch s {
	case StepPending:
		return "pending"
	case StepInProgress:
		return "in_progress"
	case StepPassed:
		return "passed"
	case StepFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Mark returns the checkbox character for the status.
func (s StepStatus) Mark() string {
	switch s {
	case StepInProgress:
		return "~"
	case StepPassed:
		return "x"
	case StepFailed:
		return "!"
	default:
		return " "
	}
}

// stepMarks maps checkbox characters to step statuses.
var stepMarks = map[string]StepStatus{
	" ": StepPending,
	"~": StepInProgress,
	"x": StepPassed,
	"!": StepFailed,
}

// Step is one verification item in a QA checklist.
type Step struct {
	Description string
	Status      StepStatus
	// Note carries the optional trailing "Note: ..." line's text.
	Note string
	// Line is the step line's 0-based index in the source document.
	Line int
}

// Section groups steps under one heading.
type Section struct {
	Title string
	Steps []*Step
}

// Checklist is a parsed QA tracking document.
type Checklist struct {
	Sections []*Section
}

// Steps returns the flattened step list in document order.
func (c *Checklist) Steps() []*Step {
	var steps []*Step
	for _, s := range c.Sections {
		steps = append(steps, s.Steps...)
	}
	return steps
}

// Checklist line patterns.
var (
	stepLineRe = regexp.MustCompile(`^-\s\[([ ~x!])\]\s(.+?)\s*$`)
	noteLineRe = regexp.MustCompile(`^\s+Note:\s*(.*?)\s*$`)
)

// ParseChecklist parses the secondary plan variant: section headings plus
// "- [ |~|x|!] description" step lines, each optionally followed by an
// indented "Note: text" line attached to the preceding step.
func ParseChecklist(text string) (*Checklist, error) {
	c := &Checklist{}
	var current *Section
	var lastStep *Step

	for i, line := range strings.Split(text, "\n") {
		if m := phaseHeaderRe.FindStringSubmatch(line); m != nil {
			current = &Section{Title: m[1]}
			c.Sections = append(c.Sections, current)
			lastStep = nil
			continue
		}

		if m := stepLineRe.FindStringSubmatch(line); m != nil {
			if current == nil {
				current = &Section{}
				c.Sections = append(c.Sections, current)
			}
			step := &Step{
				Description: m[2],
				Status:      stepMarks[m[1]],
				Line:        i,
			}
			current.Steps = append(current.Steps, step)
			lastStep = step
			continue
		}

		if m := noteLineRe.FindStringSubmatch(line); m != nil && lastStep != nil {
			lastStep.Note = m[1]
			continue
		}

		if strings.TrimSpace(line) != "" {
			lastStep = nil
		}
	}

	return c, nil
}

// stepLineParts splits a step line around its mutable checkbox character.
var stepLineParts = regexp.MustCompile(`^(-\s\[)([ ~x!])(\]\s.+)$`)

// UpdateStep rewrites only the checkbox character of the step at the given
// section and step ordinals (both 1-based). All other bytes are preserved,
// and re-applying the same update is byte-identical.
func UpdateStep(text string, section, step int, status StepStatus) (string, error) {
	c, err := ParseChecklist(text)
	if err != nil {
		return "", err
	}

	if section < 1 || section > len(c.Sections) {
		return "", fmt.Errorf("%w: section %d", errors.ErrTaskNotFound, section)
	}
	sec := c.Sections[section-1]
	if step < 1 || step > len(sec.Steps) {
		return "", fmt.Errorf("%w: step %d.%d", errors.ErrTaskNotFound, section, step)
	}
	target := sec.Steps[step-1]

	lines := strings.Split(text, "\n")
	m := stepLineParts.FindStringSubmatch(lines[target.Line])
	if m == nil {
		return "", errors.NewPlanError("step line no longer matches expected shape", nil).
			WithLine(target.Line + 1)
	}

	lines[target.Line] = m[1] + status.Mark() + m[3]
	return strings.Join(lines, "\n"), nil
}
