package monitor

import (
	"testing"
	"time"

	"github.com/petestewart/iterm-controller-sub000/internal/detect"
)

func TestScheduler_ClampsInitial(t *testing.T) {
	s := NewScheduler(10*time.Second, 250*time.Millisecond, 5*time.Second)
	if s.Interval() != 5*time.Second {
		t.Errorf("initial above max: got %s, want 5s", s.Interval())
	}

	s = NewScheduler(time.Millisecond, 250*time.Millisecond, 5*time.Second)
	if s.Interval() != 250*time.Millisecond {
		t.Errorf("initial below min: got %s, want 250ms", s.Interval())
	}
}

func TestScheduler_OnOutputHalves(t *testing.T) {
	s := NewScheduler(time.Second, 250*time.Millisecond, 5*time.Second)

	s.OnOutput()
	if s.Interval() != 500*time.Millisecond {
		t.Errorf("after one halving: got %s, want 500ms", s.Interval())
	}

	// Repeated output pins the interval at the floor.
	for range 10 {
		s.OnOutput()
	}
	if s.Interval() != 250*time.Millisecond {
		t.Errorf("after repeated output: got %s, want 250ms floor", s.Interval())
	}
}

func TestScheduler_OnSilentBacksOff(t *testing.T) {
	s := NewScheduler(time.Second, 250*time.Millisecond, 5*time.Second)

	s.OnSilent()
	if s.Interval() != 1500*time.Millisecond {
		t.Errorf("after one silent cycle: got %s, want 1.5s", s.Interval())
	}

	// Sustained silence pins the interval at the ceiling.
	for range 10 {
		s.OnSilent()
	}
	if s.Interval() != 5*time.Second {
		t.Errorf("after sustained silence: got %s, want 5s ceiling", s.Interval())
	}
}

func TestScheduler_OnStateChange(t *testing.T) {
	s := NewScheduler(time.Second, 250*time.Millisecond, 5*time.Second)

	s.OnStateChange(detect.StateWaiting)
	if s.Interval() != 5*time.Second {
		t.Errorf("entering waiting: got %s, want ceiling", s.Interval())
	}

	s.OnStateChange(detect.StateWorking)
	if s.Interval() != 250*time.Millisecond {
		t.Errorf("entering working: got %s, want floor", s.Interval())
	}

	// Going idle leaves the interval alone; silence will back it off.
	s.OnStateChange(detect.StateIdle)
	if s.Interval() != 250*time.Millisecond {
		t.Errorf("entering idle: got %s, want unchanged", s.Interval())
	}
}

func TestScheduler_NeverLeavesBounds(t *testing.T) {
	s := NewScheduler(time.Second, 250*time.Millisecond, 5*time.Second)

	// Arbitrary interleavings stay within [min, max].
	ops := []func(){
		s.OnOutput, s.OnSilent, s.OnOutput, s.OnOutput, s.OnSilent,
		s.OnSilent, s.OnSilent, s.OnOutput, s.OnSilent, s.OnOutput,
	}
	for _, op := range ops {
		op()
		if s.Interval() < 250*time.Millisecond || s.Interval() > 5*time.Second {
			t.Fatalf("interval %s escaped [250ms, 5s]", s.Interval())
		}
	}
}
