package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/emberwatch-io/emberwatch/internal/config"
	"github.com/emberwatch-io/emberwatch/internal/daemon/broadcast"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Inspect and change Emberwatch settings",
}

var autocompactCmd = &cobra.Command{
	Use:   "autocompact",
	Short: "Show or toggle the assistant's auto-compact setting",
	RunE:  runAutocompactShow,
}

var autocompactToggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Flip the auto-compact setting",
	RunE:  runAutocompactToggle,
}

func init() {
	settingsCmd.AddCommand(autocompactCmd)
	autocompactCmd.AddCommand(autocompactToggleCmd)
}

func runAutocompactShow(cmd *cobra.Command, args []string) error {
	enabled, err := config.LoadAutoCompact()
	if err != nil {
		return fmt.Errorf("failed to read assistant settings: %w", err)
	}
	if enabled {
		fmt.Println(styleSuccess.Render("auto-compact is enabled"))
	} else {
		fmt.Println(styleWarning.Render("auto-compact is disabled"))
	}
	return nil
}

// runAutocompactToggle routes through the daemon when one is running so
// observers hear about the change immediately; otherwise it edits the
// settings file directly.
func runAutocompactToggle(cmd *cobra.Command, args []string) error {
	running, _, err := config.IsDaemonRunning()
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	if running {
		if err := sendCommand(cmd.Context(), &broadcast.Command{Cmd: broadcast.CmdToggleAutoCompact}); err != nil {
			return err
		}
	} else {
		if _, err := config.ToggleAutoCompact(); err != nil {
			return fmt.Errorf("failed to toggle auto-compact: %w", err)
		}
	}
	return runAutocompactShow(cmd, args)
}
