package monitor

import (
	"time"

	"github.com/petestewart/iterm-controller-sub000/internal/detect"
)

// Scheduler controls one session's polling cadence. The interval adapts to
// activity but never leaves [min, max] for any input sequence.
type Scheduler struct {
	min, max time.Duration
	interval time.Duration
}

// NewScheduler creates a scheduler starting at the given interval, clamped
// into [min, max].
func NewScheduler(initial, min, max time.Duration) *Scheduler {
	s := &Scheduler{min: min, max: max, interval: initial}
	s.interval = s.clamp(initial)
	return s
}

// Interval returns the current poll interval.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// OnOutput halves the interval down to the floor: fast-moving output gets
// sampled more often.
func (s *Scheduler) OnOutput() {
	s.interval = s.clamp(s.interval / 2)
}

// OnSilent backs the interval off by half again, up to the ceiling.
func (s *Scheduler) OnSilent() {
	s.interval = s.clamp(s.interval + s.interval/2)
}

// OnStateChange retunes immediately on an attention transition. Entering
// waiting jumps to the ceiling — a human, not the poller, drives the next
// change. Entering working drops to the floor to catch fast output.
func (s *Scheduler) OnStateChange(state detect.AttentionState) {
	switch state {
	case detect.StateWaiting:
		s.interval = s.max
	case detect.StateWorking:
		s.interval = s.min
	}
}

func (s *Scheduler) clamp(d time.Duration) time.Duration {
	if d < s.min {
		return s.min
	}
	if d > s.max {
		return s.max
	}
	return d
}
