package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/petestewart/iterm-controller-sub000/internal/config"
	"github.com/petestewart/iterm-controller-sub000/internal/event"
	"github.com/petestewart/iterm-controller-sub000/internal/logging"
	"github.com/petestewart/iterm-controller-sub000/internal/monitor"
	"github.com/petestewart/iterm-controller-sub000/internal/plan"
	"github.com/petestewart/iterm-controller-sub000/internal/planwatch"
	"github.com/petestewart/iterm-controller-sub000/internal/pr"
	"github.com/petestewart/iterm-controller-sub000/internal/term"
	"github.com/petestewart/iterm-controller-sub000/internal/workflow"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Supervise terminal sessions and the project plan",
	Long: `Start the session monitor, plan watcher, and workflow controller for
a project directory.

The monitor polls every tracked tmux session on an adaptive interval,
classifies its attention state, and logs transitions. The plan watcher
keeps PLAN.md in sync with external edits. The workflow controller
advances the delivery stage as tasks complete and dispatches any
automation configured in .itc/workflow.yaml.`,
	RunE: runMonitor,
}

var trackSessions []string

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().StringSliceVar(&trackSessions, "track", nil, "session handles to track (default: all discovered itc sessions)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	defer log.Close()

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

	// The plan document is optional: without one the project simply sits
	// in the planning stage.
	watcher, currentPlan, err := openPlanWatcher(projectDir, cfg, bus, log)
	if err != nil {
		return err
	}
	if watcher != nil {
		defer watcher.Close()
	}

	confirm := func(stage workflow.Stage, command string) bool {
		return promptYesNo(fmt.Sprintf("dispatch %q for stage %s?", command, stage))
	}
	controller, err := newController(projectDir, projectID, cfg, provider, bus, log, confirm)
	if err != nil {
		return err
	}
	if currentPlan != nil {
		controller.OnPlanChanged(currentPlan)
	}
	if watcher != nil {
		watcher.OnChange(controller.OnPlanChanged)
		watcher.OnConflict(func(c planwatch.Conflict) {
			fmt.Fprintf(os.Stderr, "\nplan conflict: the document changed on disk\n")
			for _, d := range c.Diffs {
				fmt.Fprintf(os.Stderr, "  %s\n", d)
			}
			adopt := promptYesNo("adopt the external version?")
			if err := watcher.Resolve(adopt); err != nil {
				fmt.Fprintf(os.Stderr, "resolve failed: %v\n", err)
			}
		})
	}

	if interval := cfg.Workflow.PRPollInterval(); interval > 0 {
		poller := pr.NewPoller(projectDir, interval, log, controller.SetPRStatus)
		go poller.Run(ctx)
	}

	fmt.Printf("itc monitor running for project %s (ctrl-c to stop)\n", projectID)
	<-ctx.Done()
	fmt.Println("\nshutting down")
	return nil
}

// trackInitialSessions registers the sessions named by --track, or every
// session the provider can enumerate when no names were given.
func trackInitialSessions(ctx context.Context, provider term.Provider, mon *monitor.Monitor, projectID string) error {
	names := trackSessions
	if len(names) == 0 {
		lister, ok := provider.(term.Lister)
		if !ok {
			return nil
		}
		discovered, err := lister.ListSessions(ctx)
		if err != nil {
			// No server running means no sessions to track yet.
			return nil
		}
		names = discovered
	}

	for _, name := range names {
		mon.Track(name, projectID)
	}
	if len(names) > 0 {
		fmt.Printf("tracking %d session(s): %s\n", len(names), strings.Join(names, ", "))
	}
	return nil
}

// openPlanWatcher starts the watcher when the plan document exists.
func openPlanWatcher(projectDir string, cfg *config.Config, bus *event.Bus, log *logging.Logger) (*planwatch.Watcher, *plan.Plan, error) {
	planPath := filepath.Join(projectDir, cfg.Plan.File)
	if _, err := os.Stat(planPath); err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	watcher, err := planwatch.Open(planPath, bus, log)
	if err != nil {
		return nil, nil, err
	}
	return watcher, watcher.Plan(), nil
}

// newController builds the workflow controller from the rules file and
// any stage commands set in the global config. confirm gates rules that
// ask for confirmation; nil skips them.
func newController(projectDir, projectID string, cfg *config.Config, provider term.Provider, bus *event.Bus, log *logging.Logger, confirm workflow.ConfirmFunc) (*workflow.Controller, error) {
	rules, err := workflow.LoadRules(filepath.Join(projectDir, cfg.Workflow.RulesFile))
	if err != nil {
		return nil, err
	}

	// Config-level commands fill stages the rules file left unset. They
	// target no session by themselves, so they only matter combined with
	// a rules-file session or as documentation of intent.
	for stage, command := range cfg.Workflow.Commands {
		if _, ok := rules.Stages[stage]; !ok && command != "" {
			rules.Stages[stage] = workflow.StageRule{Command: command}
		}
	}

	// The global confirm flag upgrades every rule to confirmed.
	if cfg.Workflow.ConfirmBeforeDispatch {
		for stage, rule := range rules.Stages {
			rule.Confirm = true
			rules.Stages[stage] = rule
		}
	}

	prdExists := fileExists(filepath.Join(projectDir, cfg.Plan.PRDFile))

	return workflow.NewController(workflow.ControllerConfig{
		ProjectID: projectID,
		Provider:  provider,
		Bus:       bus,
		Logger:    log,
		Rules:     rules,
		Confirm:   confirm,
		PRDExists: prdExists,
	}), nil
}

// promptYesNo reads a y/n answer from stdin. Anything but y is no.
func promptYesNo(question string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N] ", question)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func absOrSelf(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
