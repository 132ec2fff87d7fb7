// Package broadcast fans registry changes out to observer connections.
// The hub enqueues each frame once; every observer drains its own bounded
// queue independently, so one slow peer never blocks the rest.
package broadcast

import "github.com/emberwatch-io/emberwatch/internal/models"

// Frame type tags on the observer wire. Every server→observer message is
// a JSON object whose "type" field carries one of these.
const (
	FrameInit           = "init"
	FrameSession        = "session"
	FrameSessionRemoved = "session_removed"
	FrameFocusChanged   = "focus_changed"
	FrameAutoCompact    = "autocompact"
	FrameLog            = "log"
)

// Log stream names.
const (
	StreamDiagnostic = "diagnostic"
	StreamProcess    = "process"
	StreamRequest    = "request"
)

// InitFrame is the full-state frame sent once when an observer attaches.
type InitFrame struct {
	Type        string              `json:"type"`
	Sessions    []*models.Session   `json:"sessions"`
	Focus       string              `json:"focus"`
	AutoCompact bool                `json:"auto_compact"`
	Logs        map[string][]string `json:"logs"`
}

// SessionFrame carries one session snapshot after a mutation.
type SessionFrame struct {
	Type    string          `json:"type"`
	Session *models.Session `json:"session"`
}

// SessionRemovedFrame announces a session's removal. Removal is a
// distinct notice, never a null snapshot.
type SessionRemovedFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// FocusChangedFrame announces the new focus; an empty id means no
// session holds focus.
type FocusChangedFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// AutoCompactFrame announces an auto-compact toggle.
type AutoCompactFrame struct {
	Type    string `json:"type"`
	Enabled bool   `json:"enabled"`
}

// LogFrame mirrors one appended log line to observers.
type LogFrame struct {
	Type   string `json:"type"`
	Stream string `json:"stream"`
	Line   string `json:"line"`
}

// Command is the small observer→server command set. Commands are
// validated and routed through the registry operations, never applied
// directly.
type Command struct {
	Cmd       string `json:"cmd"`
	SessionID string `json:"session_id,omitempty"`
	Action    string `json:"action,omitempty"`
}

// Observer command names.
const (
	CmdSelectFocus       = "select_focus"
	CmdTriggerAction     = "trigger_action"
	CmdToggleAutoCompact = "toggle_autocompact"
)
