package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/emberwatch-io/emberwatch/internal/config"
)

type recordingSink struct {
	ch chan bool
}

func (s *recordingSink) SetAutoCompact(enabled bool) {
	s.ch <- enabled
}

func startWatcher(t *testing.T) (string, *recordingSink) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "settings.json")
	t.Setenv(config.EnvAssistantSettings, path)

	sink := &recordingSink{ch: make(chan bool, 8)}
	w, err := New(sink)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(w.Stop)
	return path, sink
}

func awaitValue(t *testing.T, sink *recordingSink, want bool) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case got := <-sink.ch:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("never observed auto-compact=%t", want)
		}
	}
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path, sink := startWatcher(t)

	if err := os.WriteFile(path, []byte(`{"autoCompactEnabled": false}`), 0o644); err != nil {
		t.Fatal(err)
	}
	awaitValue(t, sink, false)
}

func TestWatcherSurvivesAtomicReplace(t *testing.T) {
	path, sink := startWatcher(t)

	if err := os.WriteFile(path, []byte(`{"autoCompactEnabled": false}`), 0o644); err != nil {
		t.Fatal(err)
	}
	awaitValue(t, sink, false)

	// Atomic write: new temp file renamed over the target, replacing
	// the inode the way the assistant saves its settings.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(`{"autoCompactEnabled": true}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}
	awaitValue(t, sink, true)
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	path, sink := startWatcher(t)

	other := filepath.Join(filepath.Dir(path), "other.json")
	if err := os.WriteFile(other, []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-sink.ch:
		t.Fatalf("sink received %t for an unrelated file", got)
	case <-time.After(400 * time.Millisecond):
	}
}
