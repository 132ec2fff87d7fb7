package registry

import (
	"testing"
	"time"

	"github.com/emberwatch-io/emberwatch/internal/models"
)

// recordingNotifier captures every notification in order.
type recordingNotifier struct {
	updated     []*models.Session
	removed     []string
	focus       []string
	autoCompact []bool
}

func (n *recordingNotifier) SessionUpdated(s *models.Session) { n.updated = append(n.updated, s) }
func (n *recordingNotifier) SessionRemoved(id string)         { n.removed = append(n.removed, id) }
func (n *recordingNotifier) FocusChanged(id string)           { n.focus = append(n.focus, id) }
func (n *recordingNotifier) AutoCompactChanged(enabled bool) {
	n.autoCompact = append(n.autoCompact, enabled)
}

// testClock hands out strictly increasing instants.
func testClock() func() time.Time {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func newTestRegistry() (*Registry, *recordingNotifier) {
	n := &recordingNotifier{}
	return New(n, WithClock(testClock())), n
}

func event(kind models.EventKind, id string) *models.HookEvent {
	return &models.HookEvent{Kind: kind, SessionID: id}
}

func TestLatestAppliedWins(t *testing.T) {
	r, _ := newTestRegistry()

	first := event(models.EventContextUpdate, "S1")
	first.Context = &models.ContextMetrics{UsedPercent: 10}
	second := event(models.EventContextUpdate, "S1")
	second.Context = &models.ContextMetrics{UsedPercent: 55}

	r.Apply(first)
	r.Apply(second)

	s := r.Get("S1")
	if s == nil {
		t.Fatal("session S1 missing")
	}
	if s.Context == nil || s.Context.UsedPercent != 55 {
		t.Errorf("used%% = %+v, want 55", s.Context)
	}
}

func TestContextUpdateAutoRegisters(t *testing.T) {
	r, _ := newTestRegistry()

	evt := event(models.EventContextUpdate, "S1")
	evt.Context = &models.ContextMetrics{UsedPercent: 5}
	r.Apply(evt)

	s := r.Get("S1")
	if s == nil {
		t.Fatal("context_update before start did not auto-register")
	}
	if s.Status != models.SessionActive {
		t.Errorf("status = %s, want active", s.Status)
	}
	if s.Context.UsedPercent != 5 {
		t.Errorf("used%% = %v, want 5", s.Context.UsedPercent)
	}

	// A following activity event mutates the same record.
	r.Apply(event(models.EventActivity, "S1"))
	if r.Len() != 1 {
		t.Errorf("table size = %d, want 1 (no duplicate record)", r.Len())
	}
	if got := r.Get("S1").Status; got != models.SessionWorking {
		t.Errorf("status = %s, want working", got)
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	r, _ := newTestRegistry()

	first := event(models.EventStart, "S1")
	first.WorkingDir = "/work/alpha"
	r.Apply(first)

	second := event(models.EventStart, "S1")
	second.WorkingDir = "/work/beta"
	r.Apply(second)

	if r.Len() != 1 {
		t.Fatalf("table size = %d, want 1", r.Len())
	}
	if got := r.Get("S1").ProjectName; got != "beta" {
		t.Errorf("project = %q, want beta (second start wins)", got)
	}
}

func TestStartScenario(t *testing.T) {
	r, _ := newTestRegistry()

	r.Apply(event(models.EventStart, "S1"))
	ctx := event(models.EventContextUpdate, "S1")
	ctx.Context = &models.ContextMetrics{UsedPercent: 20}
	r.Apply(ctx)
	r.Apply(event(models.EventActivity, "S1"))

	s := r.Get("S1")
	if s.Status != models.SessionWorking {
		t.Errorf("status = %s, want working", s.Status)
	}
	if s.Context.UsedPercent != 20 {
		t.Errorf("used%% = %v, want 20", s.Context.UsedPercent)
	}
	if r.Focus() != "S1" {
		t.Errorf("focus = %q, want S1", r.Focus())
	}
}

func TestFocusFollowsLatestActivity(t *testing.T) {
	r, _ := newTestRegistry()

	r.Apply(event(models.EventStart, "S1"))
	r.Apply(event(models.EventStart, "S2"))
	if r.Focus() != "S2" {
		t.Errorf("focus = %q, want S2 after its start", r.Focus())
	}

	r.Apply(event(models.EventActivity, "S1"))
	if r.Focus() != "S1" {
		t.Errorf("focus = %q, want S1 after its activity", r.Focus())
	}
}

func TestIdleKeepsFocus(t *testing.T) {
	r, _ := newTestRegistry()

	r.Apply(event(models.EventStart, "S1"))
	r.Apply(event(models.EventIdle, "S1"))

	if got := r.Get("S1").Status; got != models.SessionIdle {
		t.Errorf("status = %s, want idle", got)
	}
	if r.Focus() != "S1" {
		t.Errorf("focus = %q, want S1 (idle never moves focus)", r.Focus())
	}
}

func TestEndFocusedFallsBack(t *testing.T) {
	r, n := newTestRegistry()

	r.Apply(event(models.EventStart, "S1"))
	r.Apply(event(models.EventStart, "S2"))
	r.Apply(event(models.EventActivity, "S1")) // S1 most recent, focused

	r.Apply(event(models.EventEnd, "S1"))

	if len(n.removed) != 1 || n.removed[0] != "S1" {
		t.Errorf("removed notices = %v, want [S1]", n.removed)
	}
	// Focus falls back to the most-recently-active survivor.
	if r.Focus() != "S2" {
		t.Errorf("focus = %q, want S2", r.Focus())
	}

	r.Apply(event(models.EventEnd, "S2"))
	if r.Focus() != "" {
		t.Errorf("focus = %q, want empty with no sessions left", r.Focus())
	}
}

func TestFocusNeverDangles(t *testing.T) {
	r, _ := newTestRegistry()

	r.Apply(event(models.EventStart, "S1"))
	r.Apply(event(models.EventEnd, "S1"))

	if focus := r.Focus(); focus != "" {
		if r.Get(focus) == nil {
			t.Errorf("focus %q points at a session not in the table", focus)
		}
	}
}

func TestEndUnknownSessionIsNoop(t *testing.T) {
	r, n := newTestRegistry()

	r.Apply(event(models.EventEnd, "ghost"))
	if len(n.removed) != 0 {
		t.Errorf("removed notices = %v, want none", n.removed)
	}
}

func TestSelectFocusIgnoresUnknownID(t *testing.T) {
	r, _ := newTestRegistry()

	r.Apply(event(models.EventStart, "S1"))
	r.SelectFocus("ghost")
	if r.Focus() != "S1" {
		t.Errorf("focus = %q, want S1 after ignoring unknown select", r.Focus())
	}

	r.Apply(event(models.EventStart, "S2"))
	r.SelectFocus("S1")
	if r.Focus() != "S1" {
		t.Errorf("focus = %q, want S1 after explicit select", r.Focus())
	}
}

func TestContextOverwriteIsWholesale(t *testing.T) {
	r, _ := newTestRegistry()

	full := event(models.EventContextUpdate, "S1")
	full.Context = &models.ContextMetrics{UsedPercent: 40, InputTokens: 1000, WindowSize: 200000}
	r.Apply(full)

	sparse := event(models.EventContextUpdate, "S1")
	sparse.Context = &models.ContextMetrics{UsedPercent: 41}
	r.Apply(sparse)

	s := r.Get("S1")
	if s.Context.InputTokens != 0 || s.Context.WindowSize != 0 {
		t.Errorf("context = %+v, want wholesale overwrite, not a merge", s.Context)
	}

	// A context-less sample clears the metrics entirely.
	r.Apply(event(models.EventContextUpdate, "S1"))
	if r.Get("S1").Context != nil {
		t.Error("context should be nil after a metrics-less update")
	}
}

func TestContextPercentClamped(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{name: "negative", in: -3, want: 0},
		{name: "in range", in: 55, want: 55},
		{name: "overflow", in: 130, want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRegistry()
			evt := event(models.EventContextUpdate, "S1")
			evt.Context = &models.ContextMetrics{UsedPercent: tt.in}
			r.Apply(evt)
			if got := r.Get("S1").Context.UsedPercent; got != tt.want {
				t.Errorf("used%% = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchByTerminal(t *testing.T) {
	r, _ := newTestRegistry()

	evt := event(models.EventStart, "S1")
	evt.TTY = "/dev/ttys004"
	evt.MuxPane = "%12"
	r.Apply(evt)

	plain := event(models.EventStart, "S2")
	plain.TTY = "/dev/ttys007"
	r.Apply(plain)

	tests := []struct {
		name    string
		tty     string
		muxPane string
		want    string
	}{
		{name: "exact pane", muxPane: "%12", want: "S1"},
		{name: "compound session pane", muxPane: "main:1.%12", want: "S1"},
		{name: "pane with tty suffix", muxPane: "%12:/dev/ttys004", want: "S1"},
		{name: "tty only", tty: "/dev/ttys007", want: "S2"},
		{name: "no match", muxPane: "%99", want: ""},
		{name: "empty identity", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := r.MatchByTerminal(tt.tty, tt.muxPane)
			got := ""
			if s != nil {
				got = s.ID
			}
			if got != tt.want {
				t.Errorf("MatchByTerminal(%q, %q) = %q, want %q", tt.tty, tt.muxPane, got, tt.want)
			}
		})
	}
}

func TestSetAutoCompactAppliesToAllSessions(t *testing.T) {
	r, n := newTestRegistry()

	r.Apply(event(models.EventStart, "S1"))
	r.Apply(event(models.EventStart, "S2"))

	r.SetAutoCompact(false)
	for _, s := range r.List() {
		if s.AutoCompact {
			t.Errorf("session %s still reports auto-compact on", s.ID)
		}
	}
	if len(n.autoCompact) != 1 || n.autoCompact[0] {
		t.Errorf("auto-compact notices = %v, want [false]", n.autoCompact)
	}

	// Same value again is not a change.
	r.SetAutoCompact(false)
	if len(n.autoCompact) != 1 {
		t.Errorf("auto-compact notices = %v, want exactly one", n.autoCompact)
	}

	// New sessions inherit the current value.
	r.Apply(event(models.EventStart, "S3"))
	if r.Get("S3").AutoCompact {
		t.Error("new session should inherit auto-compact off")
	}
}

func TestMutationsNotifyWithSnapshots(t *testing.T) {
	r, n := newTestRegistry()

	r.Apply(event(models.EventStart, "S1"))
	if len(n.updated) != 1 {
		t.Fatalf("updated notices = %d, want 1", len(n.updated))
	}

	// The notifier's copy must be isolated from later mutations.
	snapshot := n.updated[0]
	r.Apply(event(models.EventActivity, "S1"))
	if snapshot.Status != models.SessionActive {
		t.Errorf("snapshot status mutated to %s; clones must be isolated", snapshot.Status)
	}
}

func TestListOrdersByRecency(t *testing.T) {
	r, _ := newTestRegistry()

	r.Apply(event(models.EventStart, "S1"))
	r.Apply(event(models.EventStart, "S2"))
	r.Apply(event(models.EventActivity, "S1"))

	list := r.List()
	if len(list) != 2 {
		t.Fatalf("list size = %d, want 2", len(list))
	}
	if list[0].ID != "S1" {
		t.Errorf("first = %s, want S1 (most recently active)", list[0].ID)
	}
}

func TestNormalizeTerminal(t *testing.T) {
	tests := []struct {
		name    string
		tty     string
		muxPane string
		want    string
	}{
		{name: "bare pane", muxPane: "%3", want: "pane:%3"},
		{name: "compound", muxPane: "work:2.%31", want: "pane:%31"},
		{name: "pane wins over tty", tty: "/dev/ttys001", muxPane: "%7", want: "pane:%7"},
		{name: "tty fallback", tty: "/dev/ttys001", want: "tty:/dev/ttys001"},
		{name: "tty cleaned", tty: "/dev//ttys001", want: "tty:/dev/ttys001"},
		{name: "malformed pane falls back", tty: "/dev/ttys001", muxPane: "%x", want: "tty:/dev/ttys001"},
		{name: "nothing", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeTerminal(tt.tty, tt.muxPane); got != tt.want {
				t.Errorf("NormalizeTerminal(%q, %q) = %q, want %q", tt.tty, tt.muxPane, got, tt.want)
			}
		})
	}
}
