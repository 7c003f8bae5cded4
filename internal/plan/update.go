package plan

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/petestewart/iterm-controller-sub000/internal/errors"
)

// taskLineParts splits a task line around its two mutable fields.
// Groups: 1=prefix up to checkbox char, 2=checkbox char, 3=middle through
// the opening of the status tag, 4=tag, 5=suffix.
var taskLineParts = regexp.MustCompile("^(-\\s\\[)([ x])(\\]\\s\\*\\*.+?\\*\\*\\s*`\\[)([a-z_]+)(\\]`\\s*)$")

// UpdateTaskStatus rewrites only the checkbox character and the bracketed
// status tag on the identified task's line. Every other byte of the
// document is preserved — the document is also hand-edited and must not be
// reformatted here. Applying the same update twice yields byte-identical
// output.
func UpdateTaskStatus(text, taskID string, status Status) (string, error) {
	p, err := Parse(text)
	if err != nil {
		return "", err
	}

	task := p.TaskByID(taskID)
	if task == nil {
		return "", fmt.Errorf("%w: %s", errors.ErrTaskNotFound, taskID)
	}

	lines := strings.Split(text, "\n")
	m := taskLineParts.FindStringSubmatch(lines[task.Line])
	if m == nil {
		// Parse located the task on this line, so the line must match.
		return "", errors.NewPlanError("task line no longer matches expected shape", nil).
			WithLine(task.Line + 1)
	}

	checkbox := " "
	if status == StatusComplete {
		checkbox = "x"
	}

	lines[task.Line] = m[1] + checkbox + m[3] + status.String() + m[5]
	return strings.Join(lines, "\n"), nil
}
