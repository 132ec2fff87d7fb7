package cli

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/emberwatch-io/emberwatch/internal/config"
	"github.com/emberwatch-io/emberwatch/internal/models"
)

func TestEnsureDaemonWithLiveDaemon(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	// A handshake file naming a live process (this one) means the
	// daemon is already up; EnsureDaemon must not try to start another.
	info := models.NewDaemonInfo("/tmp/events.sock", "localhost", 4321, os.Getpid())
	if err := config.SaveDaemonInfo(info); err != nil {
		t.Fatalf("SaveDaemonInfo() error: %v", err)
	}

	if err := EnsureDaemon(); err != nil {
		t.Errorf("EnsureDaemon() error: %v, want nil with a live daemon", err)
	}
}

func TestConnectAutoStartsDaemon(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PATH", t.TempDir())

	// With no daemon running and no binary to launch, connect must take
	// the auto-start path and surface its failure, not refuse outright.
	_, _, err := connect(context.Background())
	if err == nil {
		t.Fatal("connect() succeeded with no daemon and no binary")
	}
	if !strings.Contains(err.Error(), "emberwatchd") {
		t.Errorf("connect() error = %v, want the daemon auto-start failure", err)
	}
}
