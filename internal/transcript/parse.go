package transcript

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// DelegationToolName is the tool the assistant uses to hand a sub-task to
// a secondary agent. Invocations of it feed the delegation table.
const DelegationToolName = "Task"

// maxLineSize bounds a single transcript line. Tool results can embed
// whole files, so the ceiling is generous.
const maxLineSize = 10 * 1024 * 1024

// Result is the output of one parse: the ordered entry stream and its
// aggregate statistics. Both are owned by the caller.
type Result struct {
	Entries []Entry
	Stats   *Statistics
}

// ParseFile parses the transcript at path.
func ParseFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads newline-delimited JSON records from r and produces the
// normalized entry stream. Unrecognized records are counted and skipped;
// a dangling partial record at the end of a truncated log is discarded
// silently. The only error Parse returns is an I/O failure on r.
func Parse(r io.Reader) (*Result, error) {
	p := &parser{
		toolUses:    map[string]toolUseDetail{},
		delegations: map[string]delegationDetail{},
		searchLinks: map[string][]SearchResult{},
		stats:       newStatistics(),
	}

	// Pass 1: classify records in file order and build the correlation
	// tables.
	reader := bufio.NewReaderSize(r, 256*1024)
	for {
		line, err := readLine(reader)
		if err == errLineTooLong {
			// Skip the oversized record but keep parsing the rest.
			p.stats.Unrecognized++
			continue
		}
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("failed to read transcript: %w", err)
		}
		terminated := err == nil
		if len(strings.TrimSpace(line)) > 0 {
			p.classify(line, terminated)
		}
		if err == io.EOF {
			break
		}
	}

	// Pass 2: attach deferred search result lists. This enriches payloads
	// in place and never changes entry order or count.
	for i := range p.entries {
		payload, ok := p.entries[i].Payload.(*SearchResultsPayload)
		if !ok || payload.QueryID == "" {
			continue
		}
		results, ok := p.searchLinks[payload.QueryID]
		if !ok {
			continue
		}
		payload.Results = results
		if payload.Count == 0 {
			payload.Count = len(results)
		}
	}

	return &Result{Entries: p.entries, Stats: p.stats}, nil
}

// errLineTooLong marks a record larger than maxLineSize. The line is
// consumed so parsing can resume at the next record.
var errLineTooLong = errors.New("transcript line too long")

// readLine reads one line of up to maxLineSize bytes. Returns io.EOF with
// the partial line when the stream ends without a trailing newline.
func readLine(r *bufio.Reader) (string, error) {
	var b strings.Builder
	for {
		chunk, err := r.ReadString('\n')
		b.WriteString(chunk)
		if err != nil || strings.HasSuffix(chunk, "\n") {
			line := strings.TrimSuffix(b.String(), "\n")
			return line, err
		}
		if b.Len() > maxLineSize {
			// Drain the rest of the oversized line.
			for {
				chunk, err := r.ReadString('\n')
				if err != nil || strings.HasSuffix(chunk, "\n") {
					return "", errLineTooLong
				}
			}
		}
	}
}

// Correlation table values. Built in pass 1, consulted during pass 1
// (tool results, delegation progress) and pass 2 (search results), and
// discarded with the parser.
type toolUseDetail struct {
	Name  string
	Input json.RawMessage
}

type delegationDetail struct {
	AgentType   string
	Description string
}

type parser struct {
	entries     []Entry
	stats       *Statistics
	toolUses    map[string]toolUseDetail
	delegations map[string]delegationDetail
	searchLinks map[string][]SearchResult
}

// Raw record shapes. Only the fields the parser reads are declared;
// everything else in a record is ignored.
type rawRecord struct {
	Type            string          `json:"type"`
	UUID            string          `json:"uuid"`
	Timestamp       string          `json:"timestamp"`
	Message         *rawMessage     `json:"message"`
	ParentToolUseID string          `json:"parent_tool_use_id"`
	Data            json.RawMessage `json:"data"`

	// search_links side-channel records.
	ID      string         `json:"id"`
	Results []SearchResult `json:"results"`
}

type rawMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
	Usage   *rawUsage       `json:"usage"`
}

type rawUsage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`

	// tool_use blocks
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`

	// tool_result blocks
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"`
	IsError   bool            `json:"is_error"`
}

type progressData struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Stream  string `json:"stream"`
	Chunk   string `json:"chunk"`
	Server  string `json:"server"`
	Tool    string `json:"tool"`
	Status  string `json:"status"`
	Query   string `json:"query"`
	QueryID string `json:"query_id"`
	Count   int    `json:"count"`
	Hook    string `json:"hook"`
	Phase   string `json:"phase"`
}

// classify handles one raw line. terminated is false only for the final
// line of a log with no trailing newline: a parse failure there is a
// truncation, discarded without touching the unrecognized counter.
func (p *parser) classify(line string, terminated bool) {
	var record rawRecord
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		if terminated {
			p.stats.Unrecognized++
		}
		return
	}

	switch record.Type {
	case "user":
		p.classifyUser(&record)
	case "assistant":
		p.classifyAssistant(&record)
	case "progress":
		p.classifyProgress(&record)
	case "search_links":
		// Side channel: carries a result list for a search entry, emits
		// no entry of its own. Most recent detail wins for a reused id.
		if record.ID != "" {
			p.searchLinks[record.ID] = record.Results
		}
	default:
		p.stats.Unrecognized++
	}
}

func (p *parser) classifyUser(record *rawRecord) {
	if record.Message == nil {
		p.stats.Unrecognized++
		return
	}

	// Content is either a plain string or a block list.
	var text string
	if err := json.Unmarshal(record.Message.Content, &text); err == nil {
		p.emit(record, KindUser, &UserPayload{Text: text}, "")
		return
	}

	var blocks []contentBlock
	if err := json.Unmarshal(record.Message.Content, &blocks); err != nil {
		p.stats.Unrecognized++
		return
	}

	var texts []string
	emitted := false
	for _, b := range blocks {
		switch b.Type {
		case "tool_result":
			payload := &ToolResultPayload{
				Content: blockText(b.Content),
				IsError: b.IsError,
			}
			// A missing invocation leaves the name blank, never fails.
			if detail, ok := p.toolUses[b.ToolUseID]; ok {
				payload.ToolName = detail.Name
			}
			p.emit(record, KindToolResult, payload, b.ToolUseID)
			emitted = true
		case "text":
			if b.Text != "" {
				texts = append(texts, b.Text)
			}
		}
	}
	if !emitted {
		p.emit(record, KindUser, &UserPayload{Text: strings.Join(texts, "\n")}, "")
	}
}

func (p *parser) classifyAssistant(record *rawRecord) {
	if record.Message == nil {
		p.stats.Unrecognized++
		return
	}

	var blocks []contentBlock
	if err := json.Unmarshal(record.Message.Content, &blocks); err != nil {
		// Some assistant records carry plain string content.
		var text string
		if err := json.Unmarshal(record.Message.Content, &text); err != nil {
			p.stats.Unrecognized++
			return
		}
		p.emit(record, KindAssistant, &AssistantPayload{Text: text}, "")
		return
	}

	payload := &AssistantPayload{}
	var texts []string
	for _, b := range blocks {
		switch b.Type {
		case "text":
			if b.Text != "" {
				texts = append(texts, b.Text)
			}
		case "tool_use":
			payload.ToolUses = append(payload.ToolUses, ToolUse{ID: b.ID, Name: b.Name, Input: b.Input})
			p.toolUses[b.ID] = toolUseDetail{Name: b.Name, Input: b.Input}
			if b.Name == DelegationToolName {
				p.delegations[b.ID] = parseDelegationInput(b.Input)
			}
		}
	}
	payload.Text = strings.Join(texts, "\n")
	p.emit(record, KindAssistant, payload, "")
}

func (p *parser) classifyProgress(record *rawRecord) {
	var data progressData
	if len(record.Data) > 0 {
		// A malformed data object falls through to the generic payload.
		_ = json.Unmarshal(record.Data, &data)
	}

	switch data.Type {
	case "agent_progress":
		payload := &DelegationPayload{Message: data.Message}
		if detail, ok := p.delegations[record.ParentToolUseID]; ok {
			payload.AgentType = detail.AgentType
			payload.Description = detail.Description
		}
		p.emit(record, KindDelegation, payload, record.ParentToolUseID)
	case "bash_progress":
		p.emit(record, KindShell, &ShellPayload{Stream: data.Stream, Chunk: data.Chunk}, record.ParentToolUseID)
	case "mcp_progress":
		p.emit(record, KindExternalTool, &ExternalToolPayload{Server: data.Server, Tool: data.Tool, Status: data.Status}, record.ParentToolUseID)
	case "search_query":
		p.emit(record, KindSearchQuery, &SearchQueryPayload{Query: data.Query}, record.ParentToolUseID)
	case "search_results":
		p.emit(record, KindSearchResults, &SearchResultsPayload{
			Query:   data.Query,
			QueryID: data.QueryID,
			Count:   data.Count,
		}, record.ParentToolUseID)
	case "hook_progress":
		p.emit(record, KindHook, &HookPayload{Hook: data.Hook, Phase: data.Phase}, record.ParentToolUseID)
	default:
		p.emit(record, KindProgress, &ProgressPayload{Subtype: data.Type, Data: record.Data}, record.ParentToolUseID)
	}
}

// emit appends an entry in file order and updates the statistics.
func (p *parser) emit(record *rawRecord, kind EntryKind, payload Payload, parentID string) {
	entry := Entry{
		ID:        record.UUID,
		Kind:      kind,
		Timestamp: parseTimestamp(record.Timestamp),
		ParentID:  parentID,
		Payload:   payload,
	}
	if record.Message != nil && record.Message.Usage != nil {
		// Corrupt records can carry negative counts; usage fields are
		// defined non-negative, so clamp rather than poison the totals.
		u := record.Message.Usage
		entry.Usage = &Usage{
			InputTokens:      nonNegative(u.InputTokens),
			OutputTokens:     nonNegative(u.OutputTokens),
			CacheWriteTokens: nonNegative(u.CacheCreationInputTokens),
			CacheReadTokens:  nonNegative(u.CacheReadInputTokens),
		}
	}
	p.entries = append(p.entries, entry)
	p.stats.count(&entry)
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

// parseDelegationInput pulls the agent type and description out of a
// delegation tool invocation's arguments.
func parseDelegationInput(input json.RawMessage) delegationDetail {
	var args struct {
		SubagentType string `json:"subagent_type"`
		Description  string `json:"description"`
	}
	_ = json.Unmarshal(input, &args)
	return delegationDetail{AgentType: args.SubagentType, Description: args.Description}
}

// blockText flattens tool_result content, which can be a plain string or
// a list of text blocks.
func blockText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}
	var texts []string
	for _, b := range blocks {
		if b.Type == "text" && b.Text != "" {
			texts = append(texts, b.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// parseTimestamp tolerates missing or malformed timestamps: ordering
// comes from file position, never from the clock values.
func parseTimestamp(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}
