package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/petestewart/iterm-controller-sub000/internal/config"
	"github.com/petestewart/iterm-controller-sub000/internal/plan"
	"github.com/petestewart/iterm-controller-sub000/internal/pr"
	"github.com/petestewart/iterm-controller-sub000/internal/workflow"
)

var stageCmd = &cobra.Command{
	Use:   "stage",
	Short: "Print the inferred workflow stage",
	Long: `Infer the project's workflow stage from the plan document and the
pull-request state. A merged PR outranks everything; an open PR outranks
plan state; otherwise the plan decides.

The PR state is probed through the gh CLI by default; pass --pr to
override (none, open, or merged).`,
	RunE: runStage,
}

var stagePRState string

func init() {
	rootCmd.AddCommand(stageCmd)
	stageCmd.Flags().StringVar(&stagePRState, "pr", "auto", "pull request state: auto, none, open, or merged")
}

func runStage(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	projectDir := viper.GetString("project")

	var prStatus workflow.PRStatus
	switch stagePRState {
	case "auto":
		// Best effort: a missing gh binary or absent remote just means no
		// observable pull request.
		prStatus, err = pr.Probe(cmd.Context(), projectDir)
		if err != nil {
			prStatus = workflow.PRNone
		}
	case "none":
		prStatus = workflow.PRNone
	case "open":
		prStatus = workflow.PROpen
	case "merged":
		prStatus = workflow.PRMerged
	default:
		return fmt.Errorf("invalid --pr value: %s (expected auto, none, open, or merged)", stagePRState)
	}

	var p *plan.Plan
	planFile := filepath.Join(projectDir, cfg.Plan.File)
	if text, err := os.ReadFile(planFile); err == nil {
		p, err = plan.Parse(string(text))
		if err != nil {
			return fmt.Errorf("invalid plan: %w", err)
		}
	}

	prdExists := fileExists(filepath.Join(projectDir, cfg.Plan.PRDFile))
	stage := workflow.InferStage(p, prStatus, prdExists)

	fmt.Println(stage)
	if stage == workflow.StagePlanning && !prdExists {
		fmt.Fprintf(os.Stderr, "note: no %s found; planning inputs are missing\n", cfg.Plan.PRDFile)
	}
	return nil
}
