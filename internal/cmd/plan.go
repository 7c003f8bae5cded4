package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/petestewart/iterm-controller-sub000/internal/config"
	"github.com/petestewart/iterm-controller-sub000/internal/event"
	"github.com/petestewart/iterm-controller-sub000/internal/logging"
	"github.com/petestewart/iterm-controller-sub000/internal/plan"
	"github.com/petestewart/iterm-controller-sub000/internal/planwatch"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Inspect and update the project plan document",
}

var planValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Parse the plan document and report problems",
	RunE:  runPlanValidate,
}

var planStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-phase progress and task states",
	RunE:  runPlanStatus,
}

var planSetCmd = &cobra.Command{
	Use:   "set <task-id> <status>",
	Short: "Set a task's status",
	Long: `Set a task's status in the plan document. Valid statuses:
pending, in_progress, awaiting_review, complete, skipped.

The write goes through the same serialized queue the monitor uses, so it
is safe to run while a monitor is attached to the same document.`,
	Args: cobra.ExactArgs(2),
	RunE: runPlanSet,
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.AddCommand(planValidateCmd)
	planCmd.AddCommand(planStatusCmd)
	planCmd.AddCommand(planSetCmd)
}

// planPath resolves the plan document for the current project flag.
func planPath() (string, error) {
	cfg, err := config.Load()
	if err != nil {
		return "", err
	}
	return filepath.Join(viper.GetString("project"), cfg.Plan.File), nil
}

func runPlanValidate(cmd *cobra.Command, args []string) error {
	path, err := planPath()
	if err != nil {
		return err
	}

	text, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	p, err := plan.Parse(string(text))
	if err != nil {
		return fmt.Errorf("invalid plan: %w", err)
	}

	fmt.Printf("%s: %d phase(s), %d task(s), OK\n", path, len(p.Phases), p.TaskCount())
	return nil
}

func runPlanStatus(cmd *cobra.Command, args []string) error {
	path, err := planPath()
	if err != nil {
		return err
	}

	text, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	p, err := plan.Parse(string(text))
	if err != nil {
		return fmt.Errorf("invalid plan: %w", err)
	}

	for _, phase := range p.Phases {
		fmt.Printf("%s (%.0f%%)\n", phase.Title, phase.Completion()*100)
		for _, t := range phase.Tasks {
			marker := " "
			if t.Status == plan.StatusComplete {
				marker = "x"
			}
			status := t.EffectiveStatus().String()
			fmt.Printf("  [%s] %-6s %-16s %s\n", marker, t.ID, status, t.Title)
			if t.Blocked && len(t.DependsOn) > 0 {
				fmt.Printf("       waiting on: %s\n", strings.Join(t.DependsOn, ", "))
			}
		}
	}

	counts := p.StatusCounts()
	fmt.Printf("\n%d task(s): %d complete, %d in progress, %d pending\n",
		p.TaskCount(),
		counts[plan.StatusComplete],
		counts[plan.StatusInProgress],
		counts[plan.StatusPending])
	return nil
}

func runPlanSet(cmd *cobra.Command, args []string) error {
	taskID := args[0]
	status, err := plan.ParseStatus(args[1])
	if err != nil {
		return err
	}

	path, err := planPath()
	if err != nil {
		return err
	}

	watcher, err := planwatch.Open(path, event.NewBus(), logging.NopLogger())
	if err != nil {
		return err
	}
	defer watcher.Close()

	if watcher.Plan().TaskByID(taskID) == nil {
		return fmt.Errorf("task not found: %s", taskID)
	}
	if err := watcher.UpdateTask(taskID, status); err != nil {
		return err
	}

	// Close drains the queue, so the write has landed when it returns.
	if err := watcher.Close(); err != nil {
		return err
	}

	fmt.Printf("%s -> %s\n", taskID, status)
	return nil
}
