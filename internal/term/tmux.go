package term

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/petestewart/iterm-controller-sub000/internal/errors"
)

// SocketName is the tmux socket used for all sessions this tool manages.
// A dedicated socket isolates monitored sessions from the user's own
// tmux server.
const SocketName = "itc"

// Default virtual terminal dimensions for spawned sessions.
const (
	defaultWidth  = 200
	defaultHeight = 50
)

// TmuxProvider implements Provider on top of a tmux server.
type TmuxProvider struct {
	socket string
}

// NewTmuxProvider creates a provider using the default socket.
func NewTmuxProvider() *TmuxProvider {
	return NewTmuxProviderWithSocket(SocketName)
}

// NewTmuxProviderWithSocket creates a provider bound to a custom socket.
// Tests use throwaway sockets so runs never collide.
func NewTmuxProviderWithSocket(socket string) *TmuxProvider {
	return &TmuxProvider{socket: socket}
}

// command creates a context-aware exec.Cmd for tmux on this provider's socket.
func (p *TmuxProvider) command(ctx context.Context, args ...string) *exec.Cmd {
	fullArgs := append([]string{"-L", p.socket}, args...)
	return exec.CommandContext(ctx, "tmux", fullArgs...)
}

// Available reports whether the tmux binary can be executed. The monitor
// calls this once at startup; an unavailable provider aborts startup.
func (p *TmuxProvider) Available(ctx context.Context) error {
	if err := p.command(ctx, "-V").Run(); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrProviderUnavailable, err)
	}
	return nil
}

// SpawnSession creates a new detached tmux session and optionally sends an
// initial command to it.
func (p *TmuxProvider) SpawnSession(ctx context.Context, spec SessionSpec) (string, error) {
	name := spec.Name
	if name == "" {
		name = fmt.Sprintf("itc-%d", os.Getpid())
	}
	width, height := spec.Width, spec.Height
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}

	// Kill any stale session with this name from a previous run.
	_ = p.command(ctx, "kill-session", "-t", name).Run()

	createCmd := p.command(ctx,
		"new-session",
		"-d",
		"-s", name,
		"-x", strconv.Itoa(width),
		"-y", strconv.Itoa(height),
	)
	if spec.Workdir != "" {
		createCmd.Dir = spec.Workdir
	}
	// Inherit the full environment and ensure TERM supports colors.
	createCmd.Env = append(os.Environ(), "TERM=xterm-256color")
	if err := createCmd.Run(); err != nil {
		return "", fmt.Errorf("failed to create tmux session: %w", err)
	}

	_ = p.command(ctx, "set-option", "-t", name, "history-limit", "10000").Run()

	if spec.Command != "" {
		if err := p.SendText(ctx, name, spec.Command); err != nil {
			_ = p.command(ctx, "kill-session", "-t", name).Run()
			return "", fmt.Errorf("failed to start command in session: %w", err)
		}
	}

	return name, nil
}

// SendText sends literal text to the session followed by Enter.
func (p *TmuxProvider) SendText(ctx context.Context, handle, text string) error {
	if !p.Exists(ctx, handle) {
		return errors.ErrSessionGone
	}
	// -l sends keys without interpretation so the text arrives verbatim.
	if err := p.command(ctx, "send-keys", "-t", handle, "-l", text).Run(); err != nil {
		return errors.NewSessionError("send-keys failed", err).WithSessionID(handle)
	}
	if err := p.command(ctx, "send-keys", "-t", handle, "Enter").Run(); err != nil {
		return errors.NewSessionError("send Enter failed", err).WithSessionID(handle)
	}
	return nil
}

// ReadRecentContent captures up to lineCount trailing lines of the pane,
// including scrollback. ANSI escapes are preserved; the classifier strips
// them.
func (p *TmuxProvider) ReadRecentContent(ctx context.Context, handle string, lineCount int) (string, error) {
	if lineCount <= 0 {
		lineCount = 200
	}
	captureCmd := p.command(ctx,
		"capture-pane",
		"-t", handle,
		"-p", // print to stdout
		"-e", // preserve escape sequences
		"-S", fmt.Sprintf("-%d", lineCount),
	)
	output, err := captureCmd.Output()
	if err != nil {
		if !p.Exists(ctx, handle) {
			return "", errors.ErrSessionGone
		}
		return "", errors.NewSessionError("capture-pane failed", err).WithSessionID(handle)
	}
	return string(output), nil
}

// Close terminates the session. A graceful close sends C-c and leaves the
// session to wind down; callers escalate to force after their deadline.
func (p *TmuxProvider) Close(ctx context.Context, handle string, force bool) error {
	if !p.Exists(ctx, handle) {
		return nil
	}
	if !force {
		return p.command(ctx, "send-keys", "-t", handle, "C-c").Run()
	}
	return p.command(ctx, "kill-session", "-t", handle).Run()
}

// Exists reports whether tmux still knows the session.
func (p *TmuxProvider) Exists(ctx context.Context, handle string) bool {
	return p.command(ctx, "has-session", "-t", handle).Run() == nil
}

// ListSessions returns all session names on this provider's socket.
func (p *TmuxProvider) ListSessions(ctx context.Context) ([]string, error) {
	output, err := p.command(ctx, "list-sessions", "-F", "#{session_name}").Output()
	if err != nil {
		// No server on this socket means no sessions.
		return nil, nil
	}

	var sessions []string
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		if line != "" {
			sessions = append(sessions, line)
		}
	}
	return sessions, nil
}

// compile-time interface checks
var (
	_ Provider = (*TmuxProvider)(nil)
	_ Lister   = (*TmuxProvider)(nil)
)
