package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/emberwatch-io/emberwatch/internal/daemon/broadcast"
	"github.com/emberwatch-io/emberwatch/internal/models"
)

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"ls"},
	Short:   "List tracked sessions",
	RunE:    runSessions,
}

var sessionsFocusCmd = &cobra.Command{
	Use:   "focus <session-id>",
	Short: "Move focus onto a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsFocus,
}

func init() {
	sessionsCmd.AddCommand(sessionsFocusCmd)
}

func runSessions(cmd *cobra.Command, args []string) error {
	snap, err := fetchSnapshot(cmd.Context())
	if err != nil {
		return err
	}

	if len(snap.Sessions) == 0 {
		fmt.Println("No tracked sessions.")
		return nil
	}

	for _, s := range snap.Sessions {
		marker := " "
		if s.ID == snap.Focus {
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
	if !snap.AutoCompact {
		fmt.Println(styleWarning.Render("auto-compact is disabled"))
	}
	return nil
}

func runSessionsFocus(cmd *cobra.Command, args []string) error {
	err := sendCommand(cmd.Context(), &broadcast.Command{
		Cmd:       broadcast.CmdSelectFocus,
		SessionID: args[0],
	})
	if err != nil {
		return err
	}
	fmt.Println(styleSuccess.Render("focus requested for " + args[0]))
	return nil
}

// shortID trims a session id for list display.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func statusBadge(status models.SessionStatus) string {
	switch status {
	case models.SessionWorking:
		return badgeWorking.Render("working")
	case models.SessionIdle:
		return badgeIdle.Render("idle")
	default:
		return badgeActive.Render("active")
	}
}

func contextSummary(ctx *models.ContextMetrics) string {
	if ctx == nil {
		return ""
	}
	s := fmt.Sprintf("  ctx %.0f%%", ctx.UsedPercent)
	if ctx.Estimated {
		s += " (est)"
	}
	switch {
	case ctx.UsedPercent >= 90:
		return styleError.Render(s)
	case ctx.UsedPercent >= 70:
		return styleWarning.Render(s)
	default:
		return styleHint.Render(s)
	}
}
