package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"nhooyr.io/websocket"

	"github.com/emberwatch-io/emberwatch/internal/daemon/broadcast"
	"github.com/emberwatch-io/emberwatch/internal/models"
)

var watchLogs bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live session updates",
	Long: `Watch streams session updates from the daemon until interrupted.
Each registry change prints as one line; --logs mirrors the daemon's
log streams as well.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchLogs, "logs", false, "also stream daemon log lines")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, init, err := connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	fmt.Printf("Watching %d session(s). Ctrl-C to stop.\n", len(init.Sessions))
	for _, s := range init.Sessions {
		printSessionLine(s, s.ID == init.Focus)
	}

	for {
		frame, err := readFrame(ctx, conn)
		if err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			// The daemon says goodbye with a going-away close.
			if websocket.CloseStatus(err) == websocket.StatusGoingAway {
				fmt.Println(styleHint.Render("daemon shut down"))
				return nil
			}
			return fmt.Errorf("stream ended: %w", err)
		}
		printFrame(frame)
	}
}

func printFrame(frame *observerFrame) {
	switch frame.Type {
	case broadcast.FrameSession:
		printSessionLine(frame.Session, false)
	case broadcast.FrameSessionRemoved:
		fmt.Printf("%s %s\n", styleError.Render("ended"), shortID(frame.SessionID))
	case broadcast.FrameFocusChanged:
		if frame.SessionID == "" {
			fmt.Println(styleHint.Render("focus cleared"))
		} else {
			fmt.Printf("%s %s\n", styleFocus.Render("focus"), shortID(frame.SessionID))
		}
	case broadcast.FrameAutoCompact:
		state := "enabled"
		if !frame.Enabled {
			state = "disabled"
		}
		fmt.Printf("%s auto-compact %s\n", styleWarning.Render("settings"), state)
	case broadcast.FrameLog:
		if watchLogs {
			fmt.Printf("%s %s\n", styleLabel.Render(frame.Stream), frame.Line)
		}
	}
}

func printSessionLine(s *models.Session, focused bool) {
	if s == nil {
		return
	}
	marker := " "
	if focused {
		marker = styleFocus.Render("*")
	}
	fmt.Printf("%s %s %s %s%s\n",
		marker,
		styleValue.Render(shortID(s.ID)),
		statusBadge(s.Status),
		styleLabel.Render(s.ProjectName),
		contextSummary(s.Context),
	)
}
