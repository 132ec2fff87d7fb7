package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/emberwatch-io/emberwatch/internal/config"
	"github.com/emberwatch-io/emberwatch/internal/daemon/broadcast"
	"github.com/emberwatch-io/emberwatch/internal/models"
)

const dialTimeout = 5 * time.Second

// initSnapshot is the decoded init frame.
type initSnapshot struct {
	Type        string              `json:"type"`
	Sessions    []*models.Session   `json:"sessions"`
	Focus       string              `json:"focus"`
	AutoCompact bool                `json:"auto_compact"`
	Logs        map[string][]string `json:"logs"`
}

// observerFrame is one server frame with every variant's fields; Type
// selects which are meaningful.
type observerFrame struct {
	Type      string          `json:"type"`
	Session   *models.Session `json:"session,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Enabled   bool            `json:"enabled,omitempty"`
	Stream    string          `json:"stream,omitempty"`
	Line      string          `json:"line,omitempty"`

	Sessions    []*models.Session   `json:"sessions,omitempty"`
	Focus       string              `json:"focus,omitempty"`
	AutoCompact bool                `json:"auto_compact,omitempty"`
	Logs        map[string][]string `json:"logs,omitempty"`
}

// connect dials the daemon's observer endpoint using daemon.yaml,
// starting the daemon first when none is running, and returns the
// connection plus the init frame.
func connect(ctx context.Context) (*websocket.Conn, *initSnapshot, error) {
	if err := EnsureDaemon(); err != nil {
		return nil, nil, fmt.Errorf("failed to start daemon: %w", err)
	}

	running, info, err := config.IsDaemonRunning()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check daemon status: %w", err)
	}
	if !running || info == nil {
		return nil, nil, fmt.Errorf("daemon is not running (try: emberwatch daemon start)")
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	url := fmt.Sprintf("ws://%s:%d/ws", info.Host, info.Port)
	conn, _, err := websocket.Dial(dialCtx, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to daemon at %s: %w", url, err)
	}

	var init initSnapshot
	if err := wsjson.Read(dialCtx, conn, &init); err != nil {
		conn.Close(websocket.StatusProtocolError, "bad init frame")
		return nil, nil, fmt.Errorf("failed to read daemon state: %w", err)
	}
	if init.Type != broadcast.FrameInit {
		conn.Close(websocket.StatusProtocolError, "bad init frame")
		return nil, nil, fmt.Errorf("unexpected first frame %q", init.Type)
	}
	return conn, &init, nil
}

// fetchSnapshot connects, grabs the init frame, and disconnects.
func fetchSnapshot(ctx context.Context) (*initSnapshot, error) {
	conn, init, err := connect(ctx)
	if err != nil {
		return nil, err
	}
	conn.Close(websocket.StatusNormalClosure, "")
	return init, nil
}

// sendCommand connects, sends one command, and disconnects.
func sendCommand(ctx context.Context, cmd *broadcast.Command) error {
	conn, _, err := connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	writeCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := wsjson.Write(writeCtx, conn, cmd); err != nil {
		return fmt.Errorf("failed to send command: %w", err)
	}
	return nil
}

// readFrame decodes the next server frame.
func readFrame(ctx context.Context, conn *websocket.Conn) (*observerFrame, error) {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	var frame observerFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("undecodable frame: %w", err)
	}
	return &frame, nil
}
