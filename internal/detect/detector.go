// Package detect provides output analysis for classifying a terminal
// session's need for human attention. It examines recent output to decide
// whether the session is waiting for input, actively working, or idle.
package detect

import (
	"regexp"
	"strings"
	"time"
)

// AttentionState classifies a session's need for human input.
type AttentionState int

const (
	// StateIdle means the session shows a bare shell prompt or has gone
	// quiet with no pending question. This is also the fallback state.
	StateIdle AttentionState = iota

	// StateWorking means the session produced output within the recency
	// window and nothing suggests it is blocked on the user.
	StateWorking

	// StateWaiting means the session needs human input: a question,
	// a confirmation prompt, or clarification phrasing was detected.
	StateWaiting
)

// String returns a human-readable string for the attention state.
func (s AttentionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWorking:
		return "working"
	case StateWaiting:
		return "waiting"
	default:
		return "unknown"
	}
}

// DefaultRecencyWindow is how recently output must have arrived for a
// session to be considered working rather than idle.
const DefaultRecencyWindow = 2 * time.Second

// tailBytes bounds how much buffered history is scanned per classification.
const tailBytes = 2000

// recentLineCount is how many trailing non-empty lines are scanned for
// waiting patterns.
const recentLineCount = 10

// Classifier analyzes session output to determine its attention state.
// Classify is a pure function of its inputs and is safe for concurrent use.
type Classifier struct {
	waiting       []Pattern
	prompt        []Pattern
	recencyWindow time.Duration
}

// NewClassifier creates a Classifier with pre-compiled patterns and the
// default recency window.
func NewClassifier() *Classifier {
	return NewClassifierWithWindow(DefaultRecencyWindow)
}

// NewClassifierWithWindow creates a Classifier with a custom recency window.
func NewClassifierWithWindow(window time.Duration) *Classifier {
	return &Classifier{
		waiting:       compilePatterns(WaitingPatterns, CategoryWaiting),
		prompt:        compilePatterns(PromptPatterns, CategoryPrompt),
		recencyWindow: window,
	}
}

// Classify determines the attention state from the session's buffered
// history (which already includes any new output), the newly observed
// delta, and the time of last activity. The delta signals fresh output;
// the buffer supplies matching context.
//
// Classification is priority-ordered and first-match wins:
//  1. StateWaiting — the delta matches any waiting pattern; on a silent
//     cycle (empty delta) the recent tail is consulted instead. Checked
//     first regardless of recency.
//  2. StateIdle — the last non-empty line is a bare shell prompt.
//  3. StateWorking — output (or other activity) within the recency window.
//  4. StateIdle — fallback.
//
// now is injected so the recency check is deterministic in tests.
func (c *Classifier) Classify(buffer, delta string, lastActivity, now time.Time) AttentionState {
	text := buffer
	if len(text) > tailBytes {
		text = text[len(text)-tailBytes:]
	}
	text = StripANSI(text)

	lines := strings.Split(text, "\n")
	recent := LastNonEmptyLines(lines, recentLineCount)
	recentText := strings.Join(recent, "\n")

	// Fresh output is the waiting signal; a question lingering on screen
	// while new output streams past it is no longer a question.
	scanText := recentText
	if deltaLines := LastNonEmptyLines(strings.Split(StripANSI(delta), "\n"), recentLineCount); len(deltaLines) > 0 {
		scanText = strings.Join(deltaLines, "\n")
	}

	for _, p := range c.waiting {
		if p.Regexp.MatchString(scanText) {
			return StateWaiting
		}
	}

	if len(recent) > 0 {
		last := recent[len(recent)-1]
		for _, p := range c.prompt {
			if p.Regexp.MatchString(last) {
				return StateIdle
			}
		}
	}

	if delta != "" || now.Sub(lastActivity) <= c.recencyWindow {
		return StateWorking
	}

	return StateIdle
}

// ansiRegex matches CSI sequences (ESC[...letter) and OSC sequences
// (ESC]...BEL).
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]|\x1b\][^\x07]*\x07`)

// StripANSI removes ANSI escape codes from text.
func StripANSI(text string) string {
	return ansiRegex.ReplaceAllString(text, "")
}

// LastNonEmptyLines returns the last n non-empty lines from a slice,
// trimmed of surrounding whitespace, in document order.
func LastNonEmptyLines(lines []string, n int) []string {
	result := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(result) < n; i-- {
		line := strings.TrimSpace(lines[i])
		if line != "" {
			result = append([]string{line}, result...)
		}
	}
	return result
}
