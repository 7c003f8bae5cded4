// Package tui renders a read-only dashboard over the session monitor and
// workflow state. It consumes bus events and monitor snapshots; it never
// mutates core state.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/petestewart/iterm-controller-sub000/internal/detect"
	"github.com/petestewart/iterm-controller-sub000/internal/event"
	"github.com/petestewart/iterm-controller-sub000/internal/monitor"
	"github.com/petestewart/iterm-controller-sub000/internal/util"
)

// refreshInterval paces table redraws between events.
const refreshInterval = time.Second

// eventBufferSize bounds the bus-to-model bridge channel. The dashboard
// redraws from monitor snapshots anyway, so dropped events only delay a
// refresh by one tick.
const eventBufferSize = 64

// busEventMsg wraps a bus event for the bubbletea update loop.
type busEventMsg struct {
	ev event.Event
}

// tickMsg drives the periodic snapshot refresh.
type tickMsg time.Time

// Dashboard is the bubbletea model for the itc watch view.
type Dashboard struct {
	mon    *monitor.Monitor
	bus    *event.Bus
	busSub string
	events chan event.Event

	tbl      table.Model
	spin     spinner.Model
	stage    string
	conflict []string
	warning  string
	width    int
	quitting bool
}

// NewDashboard creates a dashboard bound to a monitor and bus. The bus
// subscription is registered immediately and released when the program
// receives a quit key.
func NewDashboard(mon *monitor.Monitor, bus *event.Bus) *Dashboard {
	columns := []table.Column{
		{Title: "Session", Width: 20},
		{Title: "Project", Width: 16},
		{Title: "State", Width: 9},
		{Title: "Interval", Width: 9},
		{Title: "Last activity", Width: 14},
	}

	tbl := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	ts := table.DefaultStyles()
	ts.Header = ts.Header.Foreground(colorPrimary).Bold(true)
	ts.Selected = ts.Selected.Foreground(colorText).Background(colorIdle)
	tbl.SetStyles(ts)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorPrimary)

	d := &Dashboard{
		mon:    mon,
		bus:    bus,
		events: make(chan event.Event, eventBufferSize),
		tbl:    tbl,
		spin:   sp,
		stage:  "planning",
	}

	d.busSub = bus.SubscribeAll(func(ev event.Event) {
		select {
		case d.events <- ev:
		default:
		}
	})
	return d
}

// Init starts the spinner, the refresh tick, and the event pump.
func (d *Dashboard) Init() tea.Cmd {
	return tea.Batch(d.spin.Tick, tick(), d.waitForEvent())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForEvent blocks on the bridge channel and hands the next bus event
// to the update loop.
func (d *Dashboard) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-d.events
		if !ok {
			return nil
		}
		return busEventMsg{ev: ev}
	}
}

// Update handles key, tick, spinner, and bus event messages.
func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			d.quitting = true
			d.bus.Unsubscribe(d.busSub)
			return d, tea.Quit
		}

	case tea.WindowSizeMsg:
		d.width = msg.Width
		d.tbl.SetWidth(msg.Width)

	case tickMsg:
		d.refreshRows()
		return d, tick()

	case busEventMsg:
		d.handleEvent(msg.ev)
		d.refreshRows()
		return d, d.waitForEvent()

	case spinner.TickMsg:
		var cmd tea.Cmd
		d.spin, cmd = d.spin.Update(msg)
		return d, cmd
	}

	var cmd tea.Cmd
	d.tbl, cmd = d.tbl.Update(msg)
	return d, cmd
}

// handleEvent folds a bus event into the dashboard's display state.
func (d *Dashboard) handleEvent(ev event.Event) {
	switch ev := ev.(type) {
	case event.WorkflowStageChangedEvent:
		d.stage = ev.New
	case event.PlanConflictEvent:
		d.conflict = ev.Diffs
	case event.PlanReloadedEvent:
		d.conflict = nil
		d.warning = ""
	case event.PlanParseWarningEvent:
		d.warning = ev.Err
	}
}

// refreshRows rebuilds the table from the monitor's current snapshot.
func (d *Dashboard) refreshRows() {
	infos := d.mon.Sessions()
	rows := make([]table.Row, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, table.Row{
			util.Truncate(info.ID, 20),
			util.Truncate(info.ProjectID, 16),
			stateCell(info.State),
			info.PollInterval.Truncate(time.Millisecond).String(),
			util.RelativeTime(info.LastActivity),
		})
	}
	d.tbl.SetRows(rows)
}

// View renders the dashboard.
func (d *Dashboard) View() string {
	if d.quitting {
		return ""
	}

	header := titleStyle.Render("itc") + " " + d.spin.View() +
		stageStyle.Render("stage: "+d.stage)

	body := header + "\n" + d.tbl.View() + "\n"

	if len(d.conflict) > 0 {
		body += d.fitLine(conflictStyle.Render(fmt.Sprintf("plan conflict (%d): %s", len(d.conflict), d.conflict[0]))) + "\n"
	}
	if d.warning != "" {
		body += d.fitLine(conflictStyle.Render("plan warning: "+d.warning)) + "\n"
	}

	body += helpStyle.Render("q: quit")
	return body
}

// fitLine clips a styled status line to the terminal width.
func (d *Dashboard) fitLine(s string) string {
	if d.width <= 0 {
		return s
	}
	return util.TruncateANSI(s, d.width)
}

// stateCell renders an attention state with its color.
func stateCell(s detect.AttentionState) string {
	switch s {
	case detect.StateWaiting:
		return waitingStyle.Render("WAITING")
	case detect.StateWorking:
		return workingStyle.Render("WORKING")
	default:
		return idleStyle.Render("IDLE")
	}
}
