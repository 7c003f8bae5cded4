// Package planwatch owns the canonical in-memory Plan for one document.
// It watches the backing file for external edits, serializes local status
// writes through a single-consumer FIFO queue, and reconciles the two:
// external edits that change task statuses raise a conflict for the caller
// to decide; everything else is adopted silently.
package planwatch

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/petestewart/iterm-controller-sub000/internal/errors"
	"github.com/petestewart/iterm-controller-sub000/internal/event"
	"github.com/petestewart/iterm-controller-sub000/internal/logging"
	"github.com/petestewart/iterm-controller-sub000/internal/plan"
)

// pendingWrite is a queued (taskID, status) mutation awaiting serialized
// application to the backing document.
type pendingWrite struct {
	taskID string
	status plan.Status
}

// Conflict carries both sides of an unreconciled external edit.
// Diffs holds lines like "1.1: in_progress -> complete".
type Conflict struct {
	Current  *plan.Plan
	Incoming *plan.Plan
	Diffs    []string
}

// ConflictFunc is notified when an external edit conflicts with the
// in-memory plan. The caller must later call Resolve.
type ConflictFunc func(Conflict)

// ReloadFunc is notified when an external version is adopted.
type ReloadFunc func(*plan.Plan)

// ChangeFunc is notified after any mutation of the live plan: a local
// write applied or an external version adopted.
type ChangeFunc func(*plan.Plan)

// Watcher owns the live Plan for one document. All mutations of the plan
// and the backing file flow through it; other components read snapshots
// via Plan() or react to events.
type Watcher struct {
	path string
	bus  *event.Bus
	log  *logging.Logger

	mu       sync.Mutex
	plan     *plan.Plan
	lastText string
	closed   bool

	queue    []pendingWrite
	inFlight int

	// expectedModTime is the file's post-write marker; change events that
	// match it are self-triggered and suppressed.
	expectedModTime time.Time

	// heldExternal marks an external change observed while local writes
	// were in flight; it is reconciled after the queue drains.
	heldExternal bool

	pendingConflict *Conflict
	incomingText    string

	// keepBase marks a keep-resolution: the next local write bases itself
	// on the kept text rather than the file, so the rejected external edit
	// is overwritten on disk instead of merged back in.
	keepBase bool

	onConflict ConflictFunc
	onReload   ReloadFunc
	onChange   ChangeFunc

	fsw    *fsnotify.Watcher
	notify chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
}

// Open parses the document at path and starts the file watch and write
// queue. The parent directory is watched rather than the file itself so
// editors that replace the file (rename-over) stay visible.
func Open(path string, bus *event.Bus, log *logging.Logger) (*Watcher, error) {
	if log == nil {
		log = logging.NopLogger()
	}

	text, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewPlanError("failed to read plan document", err).WithPath(path)
	}

	p, err := plan.Parse(string(text))
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		path:     path,
		bus:      bus,
		log:      log,
		plan:     p,
		lastText: string(text),
		fsw:      fsw,
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	w.wg.Add(2)
	go w.watchLoop()
	go w.writeLoop()

	return w, nil
}

// OnConflict registers the conflict callback.
func (w *Watcher) OnConflict(fn ConflictFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onConflict = fn
}

// OnReload registers the reload callback.
func (w *Watcher) OnReload(fn ReloadFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = fn
}

// OnChange registers the any-mutation callback.
func (w *Watcher) OnChange(fn ChangeFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = fn
}

// Plan returns the current snapshot. The watcher never mutates a plan it
// has handed out; every reload or applied write installs a fresh value.
func (w *Watcher) Plan() *plan.Plan {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.plan
}

// PendingConflict returns the unresolved conflict, if any.
func (w *Watcher) PendingConflict() *Conflict {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pendingConflict
}

// UpdateTask enqueues a status write. The queue is strictly FIFO with a
// single consumer, so no two writes ever interleave on the file, and a
// pending write is never dropped.
func (w *Watcher) UpdateTask(taskID string, status plan.Status) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.ErrWatcherClosed
	}

	w.queue = append(w.queue, pendingWrite{taskID: taskID, status: status})
	w.inFlight++

	select {
	case w.notify <- struct{}{}:
	default:
	}
	return nil
}

// Resolve settles a pending conflict. adopt=true replaces the live plan
// with the incoming version (reload); adopt=false keeps the current plan,
// which the next local write will persist over the external edit.
func (w *Watcher) Resolve(adopt bool) error {
	w.mu.Lock()
	conflict := w.pendingConflict
	if conflict == nil {
		w.mu.Unlock()
		return errors.New("no pending conflict")
	}
	w.pendingConflict = nil
	incomingText := w.incomingText
	w.incomingText = ""

	if !adopt {
		w.keepBase = true
		w.mu.Unlock()
		return nil
	}

	w.keepBase = false
	w.plan = conflict.Incoming
	w.lastText = incomingText
	onReload := w.onReload
	onChange := w.onChange
	p := w.plan
	w.mu.Unlock()

	w.publishReload(p, onReload, onChange)
	return nil
}

// Close stops the file watch, drains the write queue, and waits for both
// background goroutines to exit.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.done)
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

// watchLoop consumes fsnotify events for the plan document.
func (w *Watcher) watchLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.handleFileChanged()
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			// Watch errors are transient; the next event retries.
		}
	}
}

// handleFileChanged decides whether a change event is self-triggered,
// must be held behind in-flight writes, or can be reconciled now.
func (w *Watcher) handleFileChanged() {
	info, err := os.Stat(w.path)
	if err != nil {
		// File busy or mid-rename; the next event retries.
		return
	}

	w.mu.Lock()
	if info.ModTime().Equal(w.expectedModTime) {
		// Our own write landing back; nothing external happened.
		w.mu.Unlock()
		return
	}
	if w.inFlight > 0 {
		// A local write is in flight: hold the external version until the
		// queue drains, then conflict-check it.
		w.heldExternal = true
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	w.reconcile()
}

// reconcile re-parses the file and merges the result with the live plan.
func (w *Watcher) reconcile() {
	raw, err := os.ReadFile(w.path)
	if err != nil {
		// Transient read fault: skip, the next change event retries.
		w.log.Debug("plan read failed during reconcile", "error", err.Error())
		return
	}
	text := string(raw)

	w.mu.Lock()
	if text == w.lastText {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	incoming, err := plan.Parse(text)
	if err != nil {
		// Malformed document: the previous good plan stays live and the
		// fault surfaces as a warning, never as an applied reload.
		w.log.Warn("external edit failed to parse", "path", w.path, "error", err.Error())
		w.bus.Publish(event.NewPlanParseWarningEvent(w.path, err))
		return
	}

	w.mu.Lock()
	diffs := diffStatuses(w.plan, incoming)
	if len(diffs) == 0 {
		// No status divergence: silently adopt the external version.
		w.plan = incoming
		w.lastText = text
		onReload := w.onReload
		onChange := w.onChange
		w.mu.Unlock()

		w.publishReload(incoming, onReload, onChange)
		return
	}

	conflict := Conflict{Current: w.plan, Incoming: incoming, Diffs: diffs}
	w.pendingConflict = &conflict
	w.incomingText = text
	onConflict := w.onConflict
	current := w.plan
	w.mu.Unlock()

	w.log.Warn("plan conflict detected", "path", w.path, "diffs", diffs)
	w.bus.Publish(event.NewPlanConflictEvent(w.path, current, incoming, diffs))
	if onConflict != nil {
		onConflict(conflict)
	}
}

// publishReload fires the reload event and callbacks.
func (w *Watcher) publishReload(p *plan.Plan, onReload ReloadFunc, onChange ChangeFunc) {
	w.bus.Publish(event.NewPlanReloadedEvent(w.path, p))
	if onReload != nil {
		onReload(p)
	}
	if onChange != nil {
		onChange(p)
	}
}

// writeLoop is the queue's single consumer. Writes apply strictly in
// submission order; after the queue drains, any held external change is
// reconciled.
func (w *Watcher) writeLoop() {
	defer w.wg.Done()

	for {
		write, ok, drained := w.nextWrite()
		if ok {
			w.applyWrite(write)
			continue
		}
		if drained {
			w.reconcile()
			continue
		}

		select {
		case <-w.done:
			// Drain remaining writes before exiting.
			for {
				write, ok, _ := w.nextWrite()
				if !ok {
					return
				}
				w.applyWrite(write)
			}
		case <-w.notify:
		}
	}
}

// nextWrite pops the queue head. drained reports a held external change
// that became processable because the queue just emptied.
func (w *Watcher) nextWrite() (pendingWrite, bool, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.queue) > 0 {
		write := w.queue[0]
		w.queue = w.queue[1:]
		return write, true, false
	}

	if w.heldExternal {
		w.heldExternal = false
		return pendingWrite{}, false, true
	}
	return pendingWrite{}, false, false
}

// applyWrite performs one serialized document mutation. The modified time
// is captured immediately before and after the write so the watch loop can
// tell this write apart from an external edit.
func (w *Watcher) applyWrite(write pendingWrite) {
	defer func() {
		w.mu.Lock()
		w.inFlight--
		w.mu.Unlock()
	}()

	w.mu.Lock()
	base := w.lastText
	kept := w.keepBase
	w.mu.Unlock()

	// After a keep-resolution the file holds the rejected edit, so the
	// write bases itself on the kept text and stomps the file.
	if !kept {
		raw, err := os.ReadFile(w.path)
		if err != nil {
			w.log.Error("plan write failed: read", "task_id", write.taskID, "error", err.Error())
			w.bus.Publish(event.NewPlanParseWarningEvent(w.path, err))
			return
		}
		base = string(raw)
	}

	updated, err := plan.UpdateTaskStatus(base, write.taskID, write.status)
	if err != nil {
		w.log.Error("plan write failed: update", "task_id", write.taskID, "error", err.Error())
		w.bus.Publish(event.NewPlanParseWarningEvent(w.path, err))
		return
	}

	var mode os.FileMode = 0644
	before, statErr := os.Stat(w.path)
	if statErr == nil {
		mode = before.Mode()
	}

	if err := os.WriteFile(w.path, []byte(updated), mode); err != nil {
		w.log.Error("plan write failed: write", "task_id", write.taskID, "error", err.Error())
		w.bus.Publish(event.NewPlanParseWarningEvent(w.path, err))
		return
	}

	after, statErr := os.Stat(w.path)

	// Re-parse instead of mutating in place so previously handed-out plan
	// pointers stay stable snapshots.
	p, parseErr := plan.Parse(updated)

	w.mu.Lock()
	if statErr == nil {
		w.expectedModTime = after.ModTime()
	}
	w.keepBase = false
	w.lastText = updated
	if parseErr == nil {
		w.plan = p
	} else {
		p = w.plan
	}
	onChange := w.onChange
	w.mu.Unlock()

	w.log.Debug("plan write applied", "task_id", write.taskID, "status", write.status.String())
	if onChange != nil {
		onChange(p)
	}
}

// diffStatuses compares per-task statuses of tasks present in both plans.
// Structural changes (tasks added or removed by hand) are not conflicts;
// only divergence on a shared task's status is.
func diffStatuses(current, incoming *plan.Plan) []string {
	cur := current.TaskStatuses()
	inc := incoming.TaskStatuses()

	var diffs []string
	for _, t := range current.Tasks() {
		if incStatus, ok := inc[t.ID]; ok && incStatus != cur[t.ID] {
			diffs = append(diffs, t.ID+": "+cur[t.ID]+" -> "+incStatus)
		}
	}
	return diffs
}
