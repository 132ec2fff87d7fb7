package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/emberwatch-io/emberwatch/internal/transcript"
)

var transcriptCmd = &cobra.Command{
	Use:   "transcript",
	Short: "Inspect assistant transcript files",
}

var transcriptStatsCmd = &cobra.Command{
	Use:   "stats <file>",
	Short: "Show aggregate statistics for a transcript",
	Args:  cobra.ExactArgs(1),
	RunE:  runTranscriptStats,
}

var transcriptShowCmd = &cobra.Command{
	Use:   "show <file>",
	Short: "Show the entry stream with delegation and search summaries",
	Args:  cobra.ExactArgs(1),
	RunE:  runTranscriptShow,
}

func init() {
	transcriptCmd.AddCommand(transcriptShowCmd)
	transcriptCmd.AddCommand(transcriptStatsCmd)
}

func runTranscriptStats(cmd *cobra.Command, args []string) error {
	result, err := transcript.ParseFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to parse transcript: %w", err)
	}
	stats := result.Stats

	fmt.Printf("%s %d\n", styleLabel.Render("Entries:"), stats.TotalEntries)
	for _, kind := range []transcript.EntryKind{
		transcript.KindUser,
		transcript.KindAssistant,
		transcript.KindToolResult,
		transcript.KindDelegation,
		transcript.KindShell,
		transcript.KindExternalTool,
		transcript.KindSearchQuery,
		transcript.KindSearchResults,
		transcript.KindHook,
		transcript.KindProgress,
	} {
		if n := stats.EntryCounts[kind]; n > 0 {
			fmt.Printf("  %-16s %d\n", kind, n)
		}
	}

	if stats.UsageSeen {
		fmt.Printf("%s %d\n", styleLabel.Render("Tokens:"), stats.TotalTokens())
		fmt.Printf("  %-16s %d\n", "input", stats.InputTokens)
		fmt.Printf("  %-16s %d\n", "output", stats.OutputTokens)
		fmt.Printf("  %-16s %d\n", "cache write", stats.CacheWriteTokens)
		fmt.Printf("  %-16s %d\n", "cache read", stats.CacheReadTokens)
	} else {
		fmt.Println(styleHint.Render("No usage data in this transcript."))
	}

	if stats.Unrecognized > 0 {
		fmt.Println(styleWarning.Render(fmt.Sprintf("%d unrecognized line(s) skipped", stats.Unrecognized)))
	}
	return nil
}

func runTranscriptShow(cmd *cobra.Command, args []string) error {
	result, err := transcript.ParseFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to parse transcript: %w", err)
	}

	for i := range result.Entries {
		fmt.Println(formatEntry(&result.Entries[i]))
	}

	if delegations := transcript.SummarizeDelegations(result.Entries); len(delegations) > 0 {
		fmt.Printf("\n%s\n", styleBrand.Render("Delegations"))
		for _, d := range delegations {
			fmt.Printf("  %s %s (%d record(s))\n",
				styleValue.Render(d.AgentType),
				styleLabel.Render(d.Description),
				d.Records,
			)
		}
	}

	if searches := transcript.SummarizeSearches(result.Entries); len(searches) > 0 {
		fmt.Printf("\n%s\n", styleBrand.Render("Searches"))
		for _, s := range searches {
			fmt.Printf("  %s (%d result(s))\n", styleValue.Render(s.Query), s.Count)
			for _, r := range s.Results {
				fmt.Printf("    %s\n", styleHint.Render(r.URL))
			}
		}
	}
	return nil
}

// formatEntry renders one entry as a single display line.
func formatEntry(e *transcript.Entry) string {
	ts := ""
	if !e.Timestamp.IsZero() {
		ts = styleLabel.Render(e.Timestamp.Format("15:04:05")) + " "
	}
	head := fmt.Sprintf("%s%-14s", ts, e.Kind)

	switch p := e.Payload.(type) {
	case *transcript.UserPayload:
		return head + " " + truncate(p.Text, 80)
	case *transcript.AssistantPayload:
		line := head + " " + truncate(p.Text, 80)
		for _, use := range p.ToolUses {
			line += "\n" + strings.Repeat(" ", 4) + styleHint.Render("tool "+use.Name)
		}
		return line
	case *transcript.ToolResultPayload:
		name := p.ToolName
		if name == "" {
			name = "?"
		}
		status := styleSuccess.Render("ok")
		if p.IsError {
			status = styleError.Render("error")
		}
		return fmt.Sprintf("%s %s %s", head, name, status)
	case *transcript.DelegationPayload:
		return fmt.Sprintf("%s %s: %s", head, p.AgentType, truncate(p.Message, 60))
	case *transcript.ShellPayload:
		return fmt.Sprintf("%s [%s] %s", head, p.Stream, truncate(p.Chunk, 60))
	case *transcript.ExternalToolPayload:
		return fmt.Sprintf("%s %s/%s %s", head, p.Server, p.Tool, p.Status)
	case *transcript.SearchQueryPayload:
		return head + " " + p.Query
	case *transcript.SearchResultsPayload:
		return fmt.Sprintf("%s %q: %d result(s)", head, p.Query, p.Count)
	case *transcript.HookPayload:
		return fmt.Sprintf("%s %s %s", head, p.Hook, p.Phase)
	default:
		return head
	}
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
