package models

import (
	"path/filepath"
	"time"
)

// SessionStatus represents the lifecycle status of a tracked session.
type SessionStatus string

const (
	SessionActive  SessionStatus = "active"
	SessionWorking SessionStatus = "working"
	SessionIdle    SessionStatus = "idle"
)

// ContextMetrics holds a point-in-time sample of a session's context
// window consumption, as reported by the monitored assistant.
type ContextMetrics struct {
	UsedPercent      float64 `json:"used_pct"`
	InputTokens      int64   `json:"input_tokens"`
	CacheReadTokens  int64   `json:"cache_read_tokens"`
	CacheWriteTokens int64   `json:"cache_write_tokens"`
	OutputTokens     int64   `json:"output_tokens"`
	WindowSize       int64   `json:"window_size"`
	Estimated        bool    `json:"estimated"`
}

// Session represents one tracked interactive run of the monitored
// assistant tool. The registry owns the authoritative copy; everything
// handed to observers is a clone.
type Session struct {
	ID             string          `json:"id"`
	Status         SessionStatus   `json:"status"`
	TTY            string          `json:"tty,omitempty"`
	MuxPane        string          `json:"mux_pane,omitempty"`
	WorkingDir     string          `json:"cwd,omitempty"`
	ProjectName    string          `json:"project,omitempty"`
	TranscriptPath string          `json:"transcript_path,omitempty"`
	Context        *ContextMetrics `json:"context,omitempty"`
	AutoCompact    bool            `json:"auto_compact"`
	RegisteredAt   time.Time       `json:"registered_at"`
	LastActivityAt time.Time       `json:"last_activity_at"`
}

// NewSession creates a session in the active state.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:             id,
		Status:         SessionActive,
		RegisteredAt:   now,
		LastActivityAt: now,
	}
}

// Clone returns a deep copy safe to hand outside the registry.
func (s *Session) Clone() *Session {
	out := *s
	if s.Context != nil {
		ctx := *s.Context
		out.Context = &ctx
	}
	return &out
}

// SetWorkingDir updates the working directory and derives the project
// label from its base name.
func (s *Session) SetWorkingDir(cwd string) {
	if cwd == "" {
		return
	}
	s.WorkingDir = cwd
	if name := filepath.Base(cwd); name != "" && name != "." && name != string(filepath.Separator) {
		s.ProjectName = name
	}
}
