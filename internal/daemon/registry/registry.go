// Package registry owns the live session table and the focus arbiter.
// All mutation flows through the daemon's single event path; the registry
// serializes it behind one lock so observers always read a consistent
// snapshot.
package registry

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/emberwatch-io/emberwatch/internal/models"
)

// Notifier receives the result of every mutating operation before it
// returns. Removal is a distinct notice, never a nil snapshot.
type Notifier interface {
	SessionUpdated(s *models.Session)
	SessionRemoved(id string)
	FocusChanged(id string)
	AutoCompactChanged(enabled bool)
}

// Registry is the authoritative in-memory session table. Sessions are
// exclusively owned by the registry; everything handed out is a clone.
type Registry struct {
	mu       sync.Mutex
	notifier Notifier
	now      func() time.Time

	sessions    map[string]*models.Session
	focusID     string // pinned focus, validated lazily against the table
	autoCompact bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock replaces the registry's time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New creates a registry reporting into the given notifier.
func New(notifier Notifier, opts ...Option) *Registry {
	r := &Registry{
		notifier:    notifier,
		now:         time.Now,
		sessions:    map[string]*models.Session{},
		autoCompact: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Apply routes one validated hook event to its operation. Unknown session
// ids are a normal case, not an error: producers are unsynchronized and a
// context sample can arrive before its start event.
func (r *Registry) Apply(evt *models.HookEvent) {
	switch evt.Kind {
	case models.EventStart:
		r.registerSession(evt)
	case models.EventActivity:
		r.recordActivity(evt)
	case models.EventContextUpdate:
		r.updateContext(evt)
	case models.EventIdle:
		r.setIdle(evt)
	case models.EventEnd:
		r.endSession(evt)
	}
}

// registerSession creates or overwrites the record for the event's id.
// A (re-)started session always becomes focused.
func (r *Registry) registerSession(evt *models.HookEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	s := models.NewSession(evt.SessionID, now)
	s.AutoCompact = r.autoCompact
	applyIdentity(s, evt)
	r.sessions[evt.SessionID] = s

	log.Printf("[registry] session %s registered (%s)", s.ID, s.ProjectName)
	r.notifier.SessionUpdated(s.Clone())
	r.setFocusLocked(evt.SessionID)
}

// recordActivity marks the session as working and pulls focus onto it.
// Near-simultaneous activity from two sessions resolves by queue arrival
// order: the later-applied event wins.
func (r *Registry) recordActivity(evt *models.HookEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.ensureLocked(evt)
	s.Status = models.SessionWorking
	s.LastActivityAt = r.now()

	r.notifier.SessionUpdated(s.Clone())
	r.setFocusLocked(evt.SessionID)
}

// updateContext overwrites the context metrics wholesale: no partial
// merge, latest applied wins. Terminal and project labels refresh only
// when the event carries fresher values.
func (r *Registry) updateContext(evt *models.HookEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.ensureLocked(evt)
	if evt.Context != nil {
		ctx := *evt.Context
		ctx.UsedPercent = clampPercent(ctx.UsedPercent)
		s.Context = &ctx
	} else {
		s.Context = nil
	}
	applyIdentity(s, evt)
	s.LastActivityAt = r.now()

	r.notifier.SessionUpdated(s.Clone())
	r.setFocusLocked(evt.SessionID)
}

// setIdle marks the session idle. Focus is left alone.
func (r *Registry) setIdle(evt *models.HookEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.ensureLocked(evt)
	s.Status = models.SessionIdle
	r.notifier.SessionUpdated(s.Clone())
}

// endSession removes the record. When the focused session ends, focus
// falls back to the most-recently-active survivor, or clears.
func (r *Registry) endSession(evt *models.HookEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[evt.SessionID]; !ok {
		return
	}
	hadFocus := r.focusLocked() == evt.SessionID
	delete(r.sessions, evt.SessionID)
	log.Printf("[registry] session %s ended", evt.SessionID)
	r.notifier.SessionRemoved(evt.SessionID)

	if hadFocus {
		r.focusID = r.mostRecentLocked()
		r.notifier.FocusChanged(r.focusID)
	}
}

// SelectFocus pins focus onto an existing session. Requests for unknown
// ids are ignored so a stale observer command can never dangle focus.
func (r *Registry) SelectFocus(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return
	}
	r.setFocusLocked(id)
}

// Focus resolves the currently focused session id, or "" when no session
// holds focus. Resolution is lazy: the pinned id is validated against the
// table on every call and recency breaks in when the pin is stale.
func (r *Registry) Focus() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.focusLocked()
}

func (r *Registry) focusLocked() string {
	if _, ok := r.sessions[r.focusID]; ok {
		return r.focusID
	}
	return r.mostRecentLocked()
}

// Get returns a clone of the session, or nil when unknown.
func (r *Registry) Get(id string) *models.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil
	}
	return s.Clone()
}

// List returns clones of every session, most recently active first.
func (r *Registry) List() []*models.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*models.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastActivityAt.Equal(out[j].LastActivityAt) {
			return out[i].LastActivityAt.After(out[j].LastActivityAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len returns the number of tracked sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// MatchByTerminal finds the session whose terminal identity matches the
// given tty/pane pair, after reducing multiplexer compound keys to their
// stable pane token.
func (r *Registry) MatchByTerminal(tty, muxPane string) *models.Session {
	key := NormalizeTerminal(tty, muxPane)
	if key == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if NormalizeTerminal(s.TTY, s.MuxPane) == key {
			return s.Clone()
		}
	}
	return nil
}

// AutoCompact reports the registry's current auto-compact view.
func (r *Registry) AutoCompact() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.autoCompact
}

// SetAutoCompact applies an auto-compact change to every tracked
// session's reported view and notifies observers once.
func (r *Registry) SetAutoCompact(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.autoCompact == enabled {
		return
	}
	r.autoCompact = enabled
	for _, s := range r.sessions {
		s.AutoCompact = enabled
	}
	r.notifier.AutoCompactChanged(enabled)
}

// ensureLocked returns the session for the event's id, auto-registering a
// minimal active record first when the id is unknown.
func (r *Registry) ensureLocked(evt *models.HookEvent) *models.Session {
	if s, ok := r.sessions[evt.SessionID]; ok {
		return s
	}
	s := models.NewSession(evt.SessionID, r.now())
	s.AutoCompact = r.autoCompact
	applyIdentity(s, evt)
	r.sessions[evt.SessionID] = s
	log.Printf("[registry] session %s auto-registered on %s event", s.ID, evt.Kind)
	return s
}

// setFocusLocked moves focus and notifies when the resolved focus
// actually changes.
func (r *Registry) setFocusLocked(id string) {
	previous := r.focusLocked()
	r.focusID = id
	if current := r.focusLocked(); current != previous {
		r.notifier.FocusChanged(current)
	}
}

// mostRecentLocked returns the id of the most recently active session,
// ties broken by id for determinism.
func (r *Registry) mostRecentLocked() string {
	best := ""
	var bestTime time.Time
	for id, s := range r.sessions {
		switch {
		case best == "",
			s.LastActivityAt.After(bestTime),
			s.LastActivityAt.Equal(bestTime) && id < best:
			best = id
			bestTime = s.LastActivityAt
		}
	}
	return best
}

// applyIdentity refreshes terminal identity, working directory, and
// transcript reference from an event, keeping existing values when the
// event omits them.
func applyIdentity(s *models.Session, evt *models.HookEvent) {
	if evt.TTY != "" {
		s.TTY = evt.TTY
	}
	if evt.MuxPane != "" {
		s.MuxPane = evt.MuxPane
	}
	if evt.TranscriptPath != "" {
		s.TranscriptPath = evt.TranscriptPath
	}
	s.SetWorkingDir(evt.WorkingDir)
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
