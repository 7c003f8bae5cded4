// Package term defines the narrow terminal-control contract the monitor
// consumes, and a tmux-backed implementation of it. Nothing outside this
// package depends on anything terminal-emulator-specific.
package term

import "context"

// SessionSpec describes a session to spawn.
type SessionSpec struct {
	// Name is the desired session handle. Empty means the provider picks one.
	Name string
	// Workdir is the working directory for the session's shell.
	Workdir string
	// Command, if non-empty, is sent to the session immediately after spawn.
	Command string
	// Width and Height size the virtual terminal. Zero means provider default.
	Width  int
	Height int
}

// Provider is the terminal-control backend contract. Spawning, killing,
// sending text, and reading screen content all go through this interface;
// the core treats every implementation identically.
type Provider interface {
	// SpawnSession creates a session and returns its handle.
	SpawnSession(ctx context.Context, spec SessionSpec) (string, error)

	// SendText sends literal text to the session, followed by a newline.
	SendText(ctx context.Context, handle, text string) error

	// ReadRecentContent returns up to lineCount trailing lines of the
	// session's current screen content, including scrollback.
	ReadRecentContent(ctx context.Context, handle string, lineCount int) (string, error)

	// Close terminates the session. When force is false the provider
	// signals a graceful shutdown; when true it kills the session outright.
	Close(ctx context.Context, handle string, force bool) error

	// Exists reports whether the provider still knows the session.
	Exists(ctx context.Context, handle string) bool
}

// Lister is an optional extension for providers that can enumerate their
// sessions, used for discovery at monitor startup.
type Lister interface {
	ListSessions(ctx context.Context) ([]string, error)
}
