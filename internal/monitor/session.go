package monitor

import (
	"strings"
	"time"

	"github.com/petestewart/iterm-controller-sub000/internal/detect"
)

// session is one tracked terminal session. It is owned exclusively by the
// Monitor and mutated only inside the monitor's poll cycle; other
// components read it through Monitor methods.
type session struct {
	id        string
	projectID string

	state        detect.AttentionState
	buf          *RingBuffer
	lastActivity time.Time
	lastContent  string

	sched   *Scheduler
	nextDue time.Time
}

// SessionInfo is the read-only view of a tracked session returned by
// Monitor.Sessions.
type SessionInfo struct {
	ID           string
	ProjectID    string
	State        detect.AttentionState
	LastActivity time.Time
	PollInterval time.Duration
}

// maxDiffAnchor bounds how much of the previous capture is used as the
// suffix anchor when computing output deltas.
const maxDiffAnchor = 512

// diffBySuffix returns the text in cur that follows the previous capture,
// anchoring on the tail of prev rather than re-scanning the whole screen.
// If the anchor no longer appears (the screen redrew or scrolled past it),
// the entire capture is treated as new output.
func diffBySuffix(prev, cur string) string {
	if prev == "" {
		return cur
	}
	if cur == prev {
		return ""
	}

	anchor := prev
	if len(anchor) > maxDiffAnchor {
		anchor = anchor[len(anchor)-maxDiffAnchor:]
	}
	if i := strings.LastIndex(cur, anchor); i >= 0 {
		return cur[i+len(anchor):]
	}
	return cur
}
