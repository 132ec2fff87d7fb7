package models

import (
	"fmt"
	"time"
)

// EventKind identifies a hook event type on the ingress socket.
type EventKind string

// Hook event kinds emitted by the per-session producer scripts.
const (
	EventStart         EventKind = "start"
	EventActivity      EventKind = "activity"
	EventContextUpdate EventKind = "context_update"
	EventIdle          EventKind = "idle"
	EventEnd           EventKind = "end"
)

// HookEvent is one newline-delimited JSON object received on the local
// ingress socket. Producers are independent processes with no shared
// clock, so Timestamp is informational only and never used for ordering.
type HookEvent struct {
	Kind           EventKind       `json:"kind"`
	SessionID      string          `json:"session_id"`
	Timestamp      time.Time       `json:"ts"`
	TTY            string          `json:"tty,omitempty"`
	MuxPane        string          `json:"mux_pane,omitempty"`
	WorkingDir     string          `json:"cwd,omitempty"`
	TranscriptPath string          `json:"transcript_path,omitempty"`
	Context        *ContextMetrics `json:"context,omitempty"`
}

// Validate checks the fields every event must carry. A failing event is
// dropped at the ingress boundary and never reaches the registry.
func (e *HookEvent) Validate() error {
	if e.SessionID == "" {
		return fmt.Errorf("event missing session_id")
	}
	switch e.Kind {
	case EventStart, EventActivity, EventContextUpdate, EventIdle, EventEnd:
		return nil
	case "":
		return fmt.Errorf("event missing kind")
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
}
