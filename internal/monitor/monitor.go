// Package monitor owns the session registry, the batched polling loop,
// per-session output buffers, and the output subscription streams. It is
// the only component that mutates session state; everything downstream
// consumes events or the read-only views exposed here.
package monitor

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/petestewart/iterm-controller-sub000/internal/config"
	"github.com/petestewart/iterm-controller-sub000/internal/detect"
	"github.com/petestewart/iterm-controller-sub000/internal/errors"
	"github.com/petestewart/iterm-controller-sub000/internal/event"
	"github.com/petestewart/iterm-controller-sub000/internal/logging"
	"github.com/petestewart/iterm-controller-sub000/internal/term"
)

// Config holds monitor tuning derived from the global configuration.
type Config struct {
	PollInterval         time.Duration
	MinPollInterval      time.Duration
	MaxPollInterval      time.Duration
	BufferSize           int
	CaptureLines         int
	RecencyWindow        time.Duration
	GracefulCloseTimeout time.Duration
	SubscriberBuffer     int
}

// NewConfig creates a monitor Config from the global monitor settings.
func NewConfig(cfg config.MonitorConfig) Config {
	return Config{
		PollInterval:         cfg.PollInterval(),
		MinPollInterval:      cfg.MinPollInterval(),
		MaxPollInterval:      cfg.MaxPollInterval(),
		BufferSize:           cfg.OutputBufferSize,
		CaptureLines:         cfg.CaptureLines,
		RecencyWindow:        cfg.RecencyWindow(),
		GracefulCloseTimeout: cfg.GracefulCloseTimeout(),
		SubscriberBuffer:     cfg.SubscriberBuffer,
	}
}

// availabilityChecker is implemented by providers that can verify
// reachability at startup.
type availabilityChecker interface {
	Available(ctx context.Context) error
}

// Monitor polls tracked sessions, classifies their attention state, and
// streams incremental output. One scheduling loop serves all sessions,
// batched by per-session due time.
type Monitor struct {
	provider   term.Provider
	bus        *event.Bus
	cfg        Config
	log        *logging.Logger
	classifier *detect.Classifier

	mu       sync.RWMutex
	sessions map[string]*session
	subs     map[string][]*Subscription // sessionID -> registration order
	started  bool

	wake   chan struct{}
	cancel context.CancelFunc
	group  *errgroup.Group
}

// New creates a Monitor. The bus receives attention and output events;
// pass a fresh bus when no other component subscribes.
func New(provider term.Provider, bus *event.Bus, cfg Config, log *logging.Logger) *Monitor {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Monitor{
		provider:   provider,
		bus:        bus,
		cfg:        cfg,
		log:        log,
		classifier: detect.NewClassifierWithWindow(cfg.RecencyWindow),
		sessions:   make(map[string]*session),
		subs:       make(map[string][]*Subscription),
		wake:       make(chan struct{}, 1),
	}
}

// Start verifies the provider and launches the polling loop. A provider
// that cannot be reached is the only startup error; everything later
// degrades instead of failing.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return errors.New("monitor already started")
	}
	m.started = true
	m.mu.Unlock()

	if checker, ok := m.provider.(availabilityChecker); ok {
		if err := checker.Available(ctx); err != nil {
			m.mu.Lock()
			m.started = false
			m.mu.Unlock()
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.group, ctx = errgroup.WithContext(ctx)
	m.group.Go(func() error {
		m.run(ctx)
		return nil
	})

	m.log.Info("monitor started",
		"poll_interval", m.cfg.PollInterval.String(),
		"min", m.cfg.MinPollInterval.String(),
		"max", m.cfg.MaxPollInterval.String())
	return nil
}

// Stop cancels the polling loop, waits for it to exit, and closes all
// subscriber channels. Safe to call once after Start.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
		_ = m.group.Wait()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, subs := range m.subs {
		for _, sub := range subs {
			sub.close()
		}
	}
	m.subs = make(map[string][]*Subscription)
	m.started = false
}

// Track adds a session to the registry. It is polled immediately on the
// next loop iteration.
func (m *Monitor) Track(sessionID, projectID string) {
	now := time.Now()
	s := &session{
		id:           sessionID,
		projectID:    projectID,
		state:        detect.StateIdle,
		buf:          NewRingBuffer(m.cfg.BufferSize),
		lastActivity: now,
		sched:        NewScheduler(m.cfg.PollInterval, m.cfg.MinPollInterval, m.cfg.MaxPollInterval),
		nextDue:      now,
	}

	m.mu.Lock()
	m.sessions[sessionID] = s
	m.mu.Unlock()

	m.log.Debug("session tracked", "session_id", sessionID, "project_id", projectID)
	m.poke()
}

// Untrack removes a session from the registry and ends its subscriptions.
func (m *Monitor) Untrack(sessionID string) {
	m.removeSession(sessionID, "untracked")
}

// Subscribe returns a live output stream for the session. Delivery order
// follows emission order; subscribers registered earlier receive each
// event first.
func (m *Monitor) Subscribe(sessionID string) *Subscription {
	sub := newSubscription(m, sessionID, m.cfg.SubscriberBuffer)

	m.mu.Lock()
	m.subs[sessionID] = append(m.subs[sessionID], sub)
	m.mu.Unlock()

	return sub
}

// unsubscribe detaches and closes one subscription.
func (m *Monitor) unsubscribe(sub *Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()

	subs := m.subs[sub.sessionID]
	for i, s := range subs {
		if s.id == sub.id {
			m.subs[sub.sessionID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	sub.close()
}

// State returns the session's current attention state.
func (m *Monitor) State(sessionID string) (detect.AttentionState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return detect.StateIdle, false
	}
	return s.state, true
}

// Output returns a copy of the session's buffered output.
func (m *Monitor) Output(sessionID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return "", false
	}
	return s.buf.String(), true
}

// Sessions returns read-only views of all tracked sessions, sorted by id.
func (m *Monitor) Sessions() []SessionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		infos = append(infos, SessionInfo{
			ID:           s.id,
			ProjectID:    s.projectID,
			State:        s.state,
			LastActivity: s.lastActivity,
			PollInterval: s.sched.Interval(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// CloseSession shuts the session down with signal-then-timeout-then-force
// escalation: a graceful close, the configured deadline, then the force
// path. The session is untracked either way.
func (m *Monitor) CloseSession(ctx context.Context, sessionID string) error {
	defer m.removeSession(sessionID, "closed")

	if err := m.provider.Close(ctx, sessionID, false); err != nil {
		return m.provider.Close(ctx, sessionID, true)
	}

	deadline := time.After(m.cfg.GracefulCloseTimeout)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return m.provider.Close(ctx, sessionID, true)
		case <-deadline:
			return m.provider.Close(ctx, sessionID, true)
		case <-tick.C:
			if !m.provider.Exists(ctx, sessionID) {
				return nil
			}
		}
	}
}

// poke wakes the polling loop after a registry change.
func (m *Monitor) poke() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// run is the single scheduling loop. Each iteration sleeps until the
// soonest per-session due time, then polls every due session in one batch.
func (m *Monitor) run(ctx context.Context) {
	for {
		wait, any := m.nextWait(time.Now())
		if !any {
			// Nothing tracked; sleep until woken or cancelled.
			select {
			case <-ctx.Done():
				return
			case <-m.wake:
				continue
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-m.wake:
			timer.Stop()
			continue
		case <-timer.C:
		}

		for _, id := range m.dueSessions(time.Now()) {
			if ctx.Err() != nil {
				return
			}
			m.pollSession(ctx, id)
		}
	}
}

// nextWait returns how long until the soonest session is due.
func (m *Monitor) nextWait(now time.Time) (time.Duration, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.sessions) == 0 {
		return 0, false
	}

	var soonest time.Time
	for _, s := range m.sessions {
		if soonest.IsZero() || s.nextDue.Before(soonest) {
			soonest = s.nextDue
		}
	}

	wait := soonest.Sub(now)
	if wait < 0 {
		wait = 0
	}
	return wait, true
}

// dueSessions returns ids of sessions whose due time has arrived, sorted
// for deterministic polling order.
func (m *Monitor) dueSessions(now time.Time) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var due []string
	for id, s := range m.sessions {
		if !s.nextDue.After(now) {
			due = append(due, id)
		}
	}
	sort.Strings(due)
	return due
}

// pollSession runs one poll cycle for one session: capture, delta, buffer,
// classify, retune. Transient capture faults skip the cycle; a vanished
// session is removed silently — expected churn, not an error.
func (m *Monitor) pollSession(ctx context.Context, sessionID string) {
	if !m.provider.Exists(ctx, sessionID) {
		m.removeSession(sessionID, "session gone")
		return
	}

	content, err := m.provider.ReadRecentContent(ctx, sessionID, m.cfg.CaptureLines)
	if err != nil {
		if errors.Is(err, errors.ErrSessionGone) {
			m.removeSession(sessionID, "session gone")
			return
		}
		// Transient fault: skip this cycle, keep the previous state.
		m.log.Debug("capture failed, skipping cycle", "session_id", sessionID, "error", err.Error())
		m.deferSession(sessionID)
		return
	}

	now := time.Now()

	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return
	}

	delta := diffBySuffix(s.lastContent, content)
	s.lastContent = content

	if delta != "" {
		_, _ = s.buf.Write([]byte(delta))
		s.lastActivity = now
		s.sched.OnOutput()
	} else {
		s.sched.OnSilent()
	}

	oldState := s.state
	newState := m.classifier.Classify(s.buf.String(), delta, s.lastActivity, now)
	if newState != oldState {
		s.state = newState
		s.sched.OnStateChange(newState)
	}
	s.nextDue = now.Add(s.sched.Interval())

	// Push to subscribers while holding the lock: push never blocks, and
	// holding the lock means no close can race the send.
	var subs []*Subscription
	if delta != "" {
		subs = m.subs[sessionID]
		ev := OutputEvent{SessionID: sessionID, Delta: delta, Time: now}
		for _, sub := range subs {
			sub.push(ev)
		}
	}
	m.mu.Unlock()

	// Bus publication happens outside the lock.
	if delta != "" {
		m.bus.Publish(event.NewSessionOutputAppendedEvent(sessionID, delta))
	}
	if newState != oldState {
		m.log.Debug("attention changed",
			"session_id", sessionID, "old", oldState.String(), "new", newState.String())
		m.bus.Publish(event.NewSessionAttentionChangedEvent(sessionID, oldState, newState))
	}
}

// deferSession pushes a session's due time forward after a skipped cycle.
func (m *Monitor) deferSession(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		s.nextDue = time.Now().Add(s.sched.Interval())
	}
}

// removeSession drops a session and closes its subscriptions.
func (m *Monitor) removeSession(sessionID, reason string) {
	m.mu.Lock()
	_, existed := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	subs := m.subs[sessionID]
	delete(m.subs, sessionID)
	for _, sub := range subs {
		sub.close()
	}
	m.mu.Unlock()

	if existed {
		m.log.Debug("session removed", "session_id", sessionID, "reason", reason)
		m.bus.Publish(event.NewSessionRemovedEvent(sessionID, reason))
	}
}
