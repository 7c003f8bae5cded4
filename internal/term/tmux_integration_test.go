//go:build integration

package term

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	itcerrors "github.com/petestewart/iterm-controller-sub000/internal/errors"
)

// skipIfNoTmux skips the test if tmux is not available
func skipIfNoTmux(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("tmux"); err != nil {
		t.Skip("tmux not available, skipping integration test")
	}
}

// testProvider returns a provider on a throwaway socket so test runs never
// touch the user's tmux server or each other.
func testProvider(t *testing.T) *TmuxProvider {
	t.Helper()
	socket := fmt.Sprintf("itc-test-%d-%d", os.Getpid(), time.Now().UnixNano())
	p := NewTmuxProviderWithSocket(socket)
	t.Cleanup(func() {
		_ = exec.Command("tmux", "-L", socket, "kill-server").Run()
	})
	return p
}

func TestIntegration_Available(t *testing.T) {
	skipIfNoTmux(t)

	p := testProvider(t)
	if err := p.Available(context.Background()); err != nil {
		t.Fatalf("Available() failed: %v", err)
	}
}

func TestIntegration_SpawnAndExists(t *testing.T) {
	skipIfNoTmux(t)

	p := testProvider(t)
	ctx := context.Background()

	handle, err := p.SpawnSession(ctx, SessionSpec{Name: "spawn-test", Workdir: t.TempDir()})
	if err != nil {
		t.Fatalf("SpawnSession() failed: %v", err)
	}
	if handle != "spawn-test" {
		t.Errorf("handle = %q, want %q", handle, "spawn-test")
	}
	if !p.Exists(ctx, handle) {
		t.Error("Exists() should be true after SpawnSession()")
	}
	if p.Exists(ctx, "no-such-session") {
		t.Error("Exists() should be false for unknown session")
	}
}

func TestIntegration_SendTextAndCapture(t *testing.T) {
	skipIfNoTmux(t)

	p := testProvider(t)
	ctx := context.Background()

	handle, err := p.SpawnSession(ctx, SessionSpec{Name: "capture-test", Workdir: t.TempDir()})
	if err != nil {
		t.Fatalf("SpawnSession() failed: %v", err)
	}

	const marker = "ITC_CAPTURE_MARKER_42"
	if err := p.SendText(ctx, handle, "echo "+marker); err != nil {
		t.Fatalf("SendText() failed: %v", err)
	}

	var content string
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		content, err = p.ReadRecentContent(ctx, handle, 50)
		if err != nil {
			t.Fatalf("ReadRecentContent() failed: %v", err)
		}
		// The echoed command appears too; require the marker on its own line.
		if strings.Contains(content, "\n"+marker) {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if !strings.Contains(content, marker) {
		t.Errorf("captured content should contain %q, got: %q", marker, content)
	}
}

func TestIntegration_SendTextToGoneSession(t *testing.T) {
	skipIfNoTmux(t)

	p := testProvider(t)
	err := p.SendText(context.Background(), "never-existed", "echo hi")
	if err != itcerrors.ErrSessionGone {
		t.Errorf("SendText() to missing session = %v, want ErrSessionGone", err)
	}
}

func TestIntegration_CloseForce(t *testing.T) {
	skipIfNoTmux(t)

	p := testProvider(t)
	ctx := context.Background()

	handle, err := p.SpawnSession(ctx, SessionSpec{Name: "close-test", Command: "sleep 60"})
	if err != nil {
		t.Fatalf("SpawnSession() failed: %v", err)
	}

	if err := p.Close(ctx, handle, true); err != nil {
		t.Fatalf("Close(force) failed: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	if p.Exists(ctx, handle) {
		t.Error("session should not exist after forced Close()")
	}

	// Closing an already-gone session is a no-op.
	if err := p.Close(ctx, handle, true); err != nil {
		t.Errorf("Close() on gone session = %v, want nil", err)
	}
}

func TestIntegration_ListSessions(t *testing.T) {
	skipIfNoTmux(t)

	p := testProvider(t)
	ctx := context.Background()

	// No server yet means no sessions and no error.
	sessions, err := p.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions() on empty socket failed: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("expected no sessions, got %v", sessions)
	}

	names := []string{"list-a", "list-b"}
	for _, name := range names {
		if _, err := p.SpawnSession(ctx, SessionSpec{Name: name}); err != nil {
			t.Fatalf("SpawnSession(%q) failed: %v", name, err)
		}
	}

	sessions, err = p.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions() failed: %v", err)
	}
	for _, want := range names {
		found := false
		for _, got := range sessions {
			if got == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("session %q not found in list: %v", want, sessions)
		}
	}
}

func TestIntegration_SpawnReplacesStaleSession(t *testing.T) {
	skipIfNoTmux(t)

	p := testProvider(t)
	ctx := context.Background()

	if _, err := p.SpawnSession(ctx, SessionSpec{Name: "stale-test", Command: "sleep 60"}); err != nil {
		t.Fatalf("first SpawnSession() failed: %v", err)
	}

	// Spawning again with the same name replaces the old session.
	handle, err := p.SpawnSession(ctx, SessionSpec{Name: "stale-test"})
	if err != nil {
		t.Fatalf("second SpawnSession() failed: %v", err)
	}
	if !p.Exists(ctx, handle) {
		t.Error("replacement session should exist")
	}
}
