package server

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/emberwatch-io/emberwatch/internal/config"
	"github.com/emberwatch-io/emberwatch/internal/models"
)

// handoffTimeout bounds a single hand-off invocation.
const handoffTimeout = 30 * time.Second

// AllowedActions is the bounded capability set trigger_action may
// invoke. Anything outside it is rejected before reaching the runner.
var AllowedActions = map[string]bool{
	"compact":   true,
	"clear":     true,
	"interrupt": true,
	"resume":    true,
}

// HandoffRunner carries a triggered action to the session's assistant
// process. The action has already passed the allowlist; the context
// cancels a hung hand-off.
type HandoffRunner interface {
	Run(ctx context.Context, session *models.Session, action string) error
}

// defaultHandoffCommand is the helper the exec runner invokes when no
// command is configured.
const defaultHandoffCommand = "emberwatch-handoff"

// ExecRunner is the local default: it shells out to a helper with the
// action and session identity on argv, letting deployments swap the
// helper without rebuilding the daemon.
type ExecRunner struct {
	command string
}

// NewExecRunner creates an ExecRunner invoking the given helper, or the
// default when command is empty.
func NewExecRunner(command string) *ExecRunner {
	if command == "" {
		command = defaultHandoffCommand
	}
	return &ExecRunner{command: command}
}

// Run implements HandoffRunner.
func (r *ExecRunner) Run(ctx context.Context, session *models.Session, action string) error {
	cmd := exec.CommandContext(ctx, r.command, action, session.ID)
	cmd.Env = append(cmd.Environ(),
		"EMBERWATCH_SESSION_TTY="+session.TTY,
		"EMBERWATCH_SESSION_PANE="+session.MuxPane,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("hand-off %s for %s: %w (%s)", action, session.ID, err, out)
	}
	return nil
}

// toggleAutoCompact flips the persisted assistant setting and returns
// the new value. The settings watcher observes the same write, but the
// registry update is pushed directly so observers do not wait out the
// debounce.
func (s *Server) toggleAutoCompact() (bool, error) {
	return config.ToggleAutoCompact()
}

// triggerAction validates and dispatches a hand-off. The target
// defaults to the focused session when no id is given. The runner
// executes off the event queue so a slow helper never stalls mutations.
func (s *Server) triggerAction(sessionID, action string) error {
	if !AllowedActions[action] {
		return fmt.Errorf("action %q not allowed", action)
	}

	if sessionID == "" {
		sessionID = s.registry.Focus()
	}
	session := s.registry.Get(sessionID)
	if session == nil {
		return fmt.Errorf("no session %q", sessionID)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), handoffTimeout)
		defer cancel()
		if err := s.runner.Run(ctx, session, action); err != nil {
			s.hub.Diagnosticf("hand-off failed: %v", err)
			return
		}
		s.hub.Processf("hand-off %s delivered to %s", action, session.ID)
	}()
	return nil
}
