package plan

import (
	"strings"
	"testing"
)

const sampleChecklist = `# QA round two

## Login flow
- [x] Sign in with valid credentials
- [!] Sign in with expired token
  Note: backend returns 500 instead of 401
- [~] Password reset email

## Dashboard
- [ ] Widgets render on first load
- [x] Refresh preserves filters
`

func TestParseChecklist_Structure(t *testing.T) {
	c, err := ParseChecklist(sampleChecklist)
	if err != nil {
		t.Fatalf("ParseChecklist failed: %v", err)
	}

	if len(c.Sections) != 2 {
		t.Fatalf("sections = %d, want 2", len(c.Sections))
	}
	if c.Sections[0].Title != "Login flow" || c.Sections[1].Title != "Dashboard" {
		t.Errorf("titles = %q, %q", c.Sections[0].Title, c.Sections[1].Title)
	}
	if len(c.Steps()) != 5 {
		t.Errorf("steps = %d, want 5", len(c.Steps()))
	}
}

func TestParseChecklist_Statuses(t *testing.T) {
	c, err := ParseChecklist(sampleChecklist)
	if err != nil {
		t.Fatalf("ParseChecklist failed: %v", err)
	}

	login := c.Sections[0].Steps
	want := []StepStatus{StepPassed, StepFailed, StepInProgress}
	for i, s := range want {
		if login[i].Status != s {
			t.Errorf("login step %d status = %s, want %s", i+1, login[i].Status, s)
		}
	}

	if c.Sections[1].Steps[0].Status != StepPending {
		t.Errorf("dashboard step 1 = %s, want pending", c.Sections[1].Steps[0].Status)
	}
}

func TestParseChecklist_NoteAttachesToPrecedingStep(t *testing.T) {
	c, err := ParseChecklist(sampleChecklist)
	if err != nil {
		t.Fatalf("ParseChecklist failed: %v", err)
	}

	failed := c.Sections[0].Steps[1]
	if failed.Note != "backend returns 500 instead of 401" {
		t.Errorf("note = %q", failed.Note)
	}
	if c.Sections[0].Steps[0].Note != "" {
		t.Error("note must attach only to the step above it")
	}
}

func TestUpdateStep_ByteSurgery(t *testing.T) {
	updated, err := UpdateStep(sampleChecklist, 2, 1, StepPassed)
	if err != nil {
		t.Fatalf("UpdateStep failed: %v", err)
	}

	origLines := strings.Split(sampleChecklist, "\n")
	newLines := strings.Split(updated, "\n")

	changed := 0
	for i := range origLines {
		if origLines[i] != newLines[i] {
			changed++
			if newLines[i] != "- [x] Widgets render on first load" {
				t.Errorf("rewritten line = %q", newLines[i])
			}
		}
	}
	if changed != 1 {
		t.Errorf("changed lines = %d, want exactly 1", changed)
	}
}

func TestUpdateStep_Idempotent(t *testing.T) {
	once, err := UpdateStep(sampleChecklist, 1, 3, StepFailed)
	if err != nil {
		t.Fatalf("first update failed: %v", err)
	}
	twice, err := UpdateStep(once, 1, 3, StepFailed)
	if err != nil {
		t.Fatalf("second update failed: %v", err)
	}
	if once != twice {
		t.Error("re-applying the same update must be byte-identical")
	}
}

func TestUpdateStep_OutOfRange(t *testing.T) {
	if _, err := UpdateStep(sampleChecklist, 3, 1, StepPassed); err == nil {
		t.Error("unknown section should fail")
	}
	if _, err := UpdateStep(sampleChecklist, 1, 9, StepPassed); err == nil {
		t.Error("unknown step should fail")
	}
	if _, err := UpdateStep(sampleChecklist, 0, 1, StepPassed); err == nil {
		t.Error("section ordinals are 1-based")
	}
}

func TestStepStatus_MarkRoundTrip(t *testing.T) {
	for mark, status := range stepMarks {
		if status.Mark() != mark {
			t.Errorf("Mark(%s) = %q, want %q", status, status.Mark(), mark)
		}
	}
}
