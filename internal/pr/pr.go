// Package pr resolves a project's pull request status through the gh CLI
// and feeds it to the workflow controller. The controller treats PR status
// as an external input; this package is the one place that input is probed.
package pr

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/petestewart/iterm-controller-sub000/internal/logging"
	"github.com/petestewart/iterm-controller-sub000/internal/workflow"
)

// view mirrors the fields requested from gh pr view.
type view struct {
	State string `json:"state"`
}

// Probe asks gh for the pull request associated with the current branch of
// dir. A branch without a pull request maps to PRNone, not an error; gh
// being absent or failing for any other reason is an error.
func Probe(ctx context.Context, dir string) (workflow.PRStatus, error) {
	cmd := exec.CommandContext(ctx, "gh", "pr", "view", "--json", "state")
	cmd.Dir = dir
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			stderr := strings.TrimSpace(string(exitErr.Stderr))
			if strings.Contains(stderr, "no pull requests found") {
				return workflow.PRNone, nil
			}
			return workflow.PRNone, fmt.Errorf("gh pr view failed: %w: %s", err, stderr)
		}
		return workflow.PRNone, fmt.Errorf("failed to run gh: %w", err)
	}
	return StatusFromView(output)
}

// StatusFromView maps a gh pr view JSON payload to a PR status. A closed
// but unmerged pull request counts as no pull request: the workflow falls
// back to plan-driven stages.
func StatusFromView(data []byte) (workflow.PRStatus, error) {
	var v view
	if err := json.Unmarshal(data, &v); err != nil {
		return workflow.PRNone, fmt.Errorf("failed to parse gh response: %w", err)
	}
	switch strings.ToUpper(v.State) {
	case "OPEN":
		return workflow.PROpen, nil
	case "MERGED":
		return workflow.PRMerged, nil
	case "CLOSED", "":
		return workflow.PRNone, nil
	default:
		return workflow.PRNone, fmt.Errorf("unknown pull request state %q", v.State)
	}
}

// Poller probes PR status on an interval and forwards every observation to
// apply. The consumer deduplicates; the poller only avoids logging the same
// status twice in a row.
type Poller struct {
	dir      string
	interval time.Duration
	log      *logging.Logger
	apply    func(workflow.PRStatus)
	probeFn  func(ctx context.Context, dir string) (workflow.PRStatus, error)

	last   workflow.PRStatus
	seeded bool
}

// NewPoller creates a poller for the project at dir. apply is called from
// the poller's goroutine.
func NewPoller(dir string, interval time.Duration, log *logging.Logger, apply func(workflow.PRStatus)) *Poller {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Poller{
		dir:      dir,
		interval: interval,
		log:      log,
		apply:    apply,
		probeFn:  Probe,
	}
}

// Run probes until ctx is cancelled. The first probe happens immediately so
// a freshly started monitor does not sit a full interval behind reality.
func (p *Poller) Run(ctx context.Context) {
	p.probe(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.probe(ctx)
		}
	}
}

func (p *Poller) probe(ctx context.Context) {
	status, err := p.probeFn(ctx, p.dir)
	if err != nil {
		// Probe failures are routine: gh missing, no remote, rate limits.
		// The workflow keeps its last known status.
		p.log.Debug("pr probe failed", "error", err)
		return
	}
	if !p.seeded || status != p.last {
		p.log.Info("pr status observed", "status", status.String())
		p.seeded = true
		p.last = status
	}
	p.apply(status)
}
