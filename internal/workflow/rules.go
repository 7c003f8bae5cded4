package workflow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RulesFile represents per-stage automation rules loaded from YAML,
// conventionally .itc/workflow.yaml in the project directory.
type RulesFile struct {
	// Version is the rules file format version (currently "1").
	Version string `yaml:"version"`
	// Stages maps a stage name to its automation rule.
	Stages map[string]StageRule `yaml:"stages"`
}

// StageRule configures what happens when the workflow enters a stage.
type StageRule struct {
	// Command is the text dispatched to the target session.
	Command string `yaml:"command"`
	// Session is the handle of the session that receives the command.
	Session string `yaml:"session"`
	// Confirm gates the dispatch behind the controller's confirmation
	// callback when true.
	Confirm bool `yaml:"confirm,omitempty"`
}

// LoadRules loads automation rules from a YAML file. A missing file is
// not an error; it returns an empty rule set so automation is simply off.
func LoadRules(path string) (*RulesFile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &RulesFile{Stages: map[string]StageRule{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}

	var rules RulesFile
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parsing rules file: %w", err)
	}

	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules: %w", err)
	}
	return &rules, nil
}

// Validate checks that the rules file is well-formed.
func (r *RulesFile) Validate() error {
	if r.Version != "" && r.Version != "1" {
		return fmt.Errorf("unsupported rules version: %s (supported: 1)", r.Version)
	}

	for name, rule := range r.Stages {
		switch Stage(name) {
		case StagePlanning, StageExecute, StageReview, StagePR, StageDone:
		default:
			return fmt.Errorf("unknown stage '%s'", name)
		}
		if rule.Command != "" && rule.Session == "" {
			return fmt.Errorf("stage '%s': command requires a session", name)
		}
	}
	return nil
}

// Rule returns the rule for a stage, if one is configured with a command.
func (r *RulesFile) Rule(stage Stage) (StageRule, bool) {
	if r == nil {
		return StageRule{}, false
	}
	rule, ok := r.Stages[stage.String()]
	if !ok || rule.Command == "" {
		return StageRule{}, false
	}
	return rule, true
}
