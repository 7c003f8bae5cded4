package detect

import "regexp"

// Category identifies which attention signal a pattern detects.
// Patterns are evaluated as a data table in fixed priority order so the
// library can be extended and tested without touching classifier code.
type Category int

const (
	// CategoryWaiting marks patterns that mean the session needs input.
	CategoryWaiting Category = iota
	// CategoryPrompt marks shell-prompt shapes that mean the session is idle.
	CategoryPrompt
)

// Pattern pairs a category with a compiled matcher.
type Pattern struct {
	Category Category
	Regexp   *regexp.Regexp
}

// WaitingPatterns detect a session asking for input. They cover trailing
// questions, explicit confirmation prompts, and clarification phrasing.
// A waiting match always wins over recency-based classification: an agent
// can be waiting even immediately after heavy output.
var WaitingPatterns = []string{
	// Direct question at the end of the most recent line
	`\?\s*$`,
	// Confirmation prompts
	`(?i)\[Y(?:es)?/[Nn](?:o)?\]`,
	`(?i)\(y(?:es)?/n(?:o)?\)`,
	`(?i)do you want (?:me )?to (?:proceed|continue|run|execute|apply|make)`,
	`(?i)(?:shall|should|can|may) I (?:proceed|continue|go ahead|run|execute|apply)`,
	`(?i)press (?:y|enter) to (?:confirm|continue|proceed|approve)`,
	`(?i)type ['"]?(?:yes|y)['"]? to (?:confirm|continue|proceed)`,
	// Clarification phrasing
	`(?i)please (?:specify|clarify|provide|tell me|let me know)`,
	`(?i)(?:can|could|would) you (?:tell me|specify|clarify|explain|provide)`,
	`(?i)I need (?:to know|more information|clarification|you to)`,
	`(?i)(?:select|choose|pick) (?:one|an option|from)`,
	// Explicit waiting statements
	`(?i)waiting for (?:your )?(?:input|response|answer|reply|approval|confirmation)`,
	`(?i)requires? (?:your )?(?:approval|confirmation|permission)`,
}

// PromptPatterns detect shell-prompt shapes on the last non-empty line.
// A bare prompt with no pending question means the session is idle.
var PromptPatterns = []string{
	// Classic sh/bash/zsh prompts: "$ ", "% ", "# " at end of line,
	// optionally preceded by user@host:path decoration
	`(?:^|\s)[\$%#]\s*$`,
	// Fish / starship / pure style prompts
	`(?:^|\s)❯\s*$`,
	`(?:^|\s)➜\s*$`,
	// Bare REPL-style "> " prompt
	`^>\s*$`,
}

// compilePatterns compiles a list of regex pattern strings.
// Invalid patterns are silently skipped.
func compilePatterns(patterns []string, cat Category) []Pattern {
	compiled := make([]Pattern, 0, len(patterns))
	for _, p := range patterns {
		if re, err := regexp.Compile(p); err == nil {
			compiled = append(compiled, Pattern{Category: cat, Regexp: re})
		}
	}
	return compiled
}
