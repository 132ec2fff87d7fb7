package registry

import (
	"path/filepath"
	"strings"
)

// NormalizeTerminal reduces a terminal identity to a stable comparable
// key. Multiplexing terminal emulators report compound pane identities in
// several shapes ("%12", "main:1.%12", "%12:/dev/ttys004"); the pane id
// token is the stable sub-identifier, so it wins over the tty when both
// are present. Returns "" when neither component is usable.
func NormalizeTerminal(tty, muxPane string) string {
	if pane := paneToken(muxPane); pane != "" {
		return "pane:" + pane
	}
	if tty = strings.TrimSpace(tty); tty != "" {
		return "tty:" + filepath.Clean(tty)
	}
	return ""
}

// paneToken extracts the "%N" pane id from a possibly compound
// multiplexer key.
func paneToken(key string) string {
	start := strings.IndexByte(key, '%')
	if start < 0 {
		return ""
	}
	end := start + 1
	for end < len(key) && key[end] >= '0' && key[end] <= '9' {
		end++
	}
	if end == start+1 {
		return ""
	}
	return key[start:end]
}
