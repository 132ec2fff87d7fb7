package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/emberwatch-io/emberwatch/internal/daemon/broadcast"
)

// handleObserver upgrades the connection and splits it into a writer
// draining the observer's frame queue and a reader routing commands.
func (s *Server) handleObserver(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.hub.Diagnosticf("observer upgrade failed: %v", err)
		return
	}

	obs := s.hub.Attach(s.registry)
	ctx := r.Context()

	go func() {
		for {
			frame, ok := obs.Next()
			if !ok {
				conn.Close(websocket.StatusGoingAway, "shutting down")
				return
			}
			if err := wsjson.Write(ctx, conn, frame); err != nil {
				s.hub.Detach(obs)
				return
			}
		}
	}()

	for {
		var cmd broadcast.Command
		if err := wsjson.Read(ctx, conn, &cmd); err != nil {
			s.hub.Detach(obs)
			conn.Close(websocket.StatusNormalClosure, "")
			return
		}
		s.handleCommand(&cmd)
	}
}

// handleCommand validates and routes one observer command. Every
// command gets a request id and its outcome lands on the request log
// stream; invalid commands are logged and otherwise ignored.
func (s *Server) handleCommand(cmd *broadcast.Command) {
	reqID := uuid.NewString()[:8]
	start := time.Now()
	outcome := "accepted"

	switch cmd.Cmd {
	case broadcast.CmdSelectFocus:
		if cmd.SessionID == "" {
			outcome = "rejected: missing session_id"
			break
		}
		id := cmd.SessionID
		s.enqueue(func() { s.registry.SelectFocus(id) })

	case broadcast.CmdToggleAutoCompact:
		enabled, err := s.toggleAutoCompact()
		if err != nil {
			outcome = "failed: " + err.Error()
			break
		}
		s.enqueue(func() { s.registry.SetAutoCompact(enabled) })

	case broadcast.CmdTriggerAction:
		if err := s.triggerAction(cmd.SessionID, cmd.Action); err != nil {
			outcome = "rejected: " + err.Error()
		}

	default:
		outcome = "rejected: unknown command"
		s.hub.Diagnosticf("unknown observer command %q", cmd.Cmd)
	}

	s.hub.Requestf("req %s %s %s (%s)", reqID, cmd.Cmd, outcome, time.Since(start).Round(time.Microsecond))
}
