package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/petestewart/iterm-controller-sub000/internal/config"
	"github.com/petestewart/iterm-controller-sub000/internal/event"
	"github.com/petestewart/iterm-controller-sub000/internal/logging"
	"github.com/petestewart/iterm-controller-sub000/internal/monitor"
	"github.com/petestewart/iterm-controller-sub000/internal/pr"
	"github.com/petestewart/iterm-controller-sub000/internal/term"
	"github.com/petestewart/iterm-controller-sub000/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Open the interactive session dashboard",
	Long: `Open a terminal dashboard showing every tracked session with its
attention state, poll interval, and last activity, plus the current
workflow stage and any pending plan conflict.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// The dashboard is interactive; logs go to a file or nowhere, never
	// to the terminal it is drawing on.
	logDir := cfg.Logging.Dir
	log, err := logging.NewLogger(logDir, cfg.Logging.Level)
	if err != nil || logDir == "" {
		log = logging.NopLogger()
	} else {
		defer log.Close()
	}

	projectDir := viper.GetString("project")
	projectID := filepath.Base(absOrSelf(projectDir))

	bus := event.NewBus()
	provider := term.NewTmuxProvider()
	mon := monitor.New(provider, bus, monitor.NewConfig(cfg.Monitor), log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := mon.Start(ctx); err != nil {
		return err
	}
	defer mon.Stop()

	if err := trackInitialSessions(ctx, provider, mon, projectID); err != nil {
		return err
	}

	watcher, currentPlan, err := openPlanWatcher(projectDir, cfg, bus, log)
	if err != nil {
		return err
	}
	if watcher != nil {
		defer watcher.Close()
	}

	// No prompt surface exists under the altscreen, so rules that ask
	// for confirmation are skipped while the dashboard runs.
	controller, err := newController(projectDir, projectID, cfg, provider, bus, log, nil)
	if err != nil {
		return err
	}
	if currentPlan != nil {
		controller.OnPlanChanged(currentPlan)
	}
	if watcher != nil {
		watcher.OnChange(controller.OnPlanChanged)
	}

	if interval := cfg.Workflow.PRPollInterval(); interval > 0 {
		poller := pr.NewPoller(projectDir, interval, log, controller.SetPRStatus)
		go poller.Run(ctx)
	}

	program := tea.NewProgram(tui.NewDashboard(mon, bus), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("dashboard error: %w", err)
	}
	return nil
}
