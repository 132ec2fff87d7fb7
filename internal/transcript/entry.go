// Package transcript parses the append-only JSONL conversation logs
// written by the monitored assistant into a normalized entry stream plus
// aggregate usage statistics. Parsing is pure: no shared state, safe to
// run concurrently for different logs.
package transcript

import (
	"encoding/json"
	"time"
)

// EntryKind identifies the type of a parsed transcript entry.
type EntryKind string

// The closed set of entry kinds the parser emits.
const (
	KindUser          EntryKind = "user"
	KindAssistant     EntryKind = "assistant"
	KindToolResult    EntryKind = "tool_result"
	KindDelegation    EntryKind = "delegation"
	KindShell         EntryKind = "shell"
	KindExternalTool  EntryKind = "external_tool"
	KindSearchQuery   EntryKind = "search_query"
	KindSearchResults EntryKind = "search_results"
	KindHook          EntryKind = "hook"
	KindProgress      EntryKind = "progress"
)

// Usage holds the token counts attached to a single record. All fields
// are non-negative.
type Usage struct {
	InputTokens      int64 `json:"input_tokens"`
	OutputTokens     int64 `json:"output_tokens"`
	CacheWriteTokens int64 `json:"cache_write_tokens"`
	CacheReadTokens  int64 `json:"cache_read_tokens"`
}

// Entry is one normalized record from the transcript. Entries keep the
// original log order; cross-reference resolution enriches payloads but
// never reorders or drops them.
type Entry struct {
	ID        string    `json:"id"`
	Kind      EntryKind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	// ParentID is the correlation id linking this entry to the record
	// that spawned it (a tool invocation, a delegation). Empty when the
	// entry stands alone.
	ParentID string   `json:"parent_id,omitempty"`
	Usage    *Usage   `json:"usage,omitempty"`
	Payload  Payload  `json:"payload"`
}

// Payload is the kind-specific body of an entry. The set of
// implementations is closed; Kind() always matches the owning
// Entry.Kind.
type Payload interface {
	Kind() EntryKind
}

// UserPayload is a plain user message.
type UserPayload struct {
	Text string `json:"text"`
}

func (*UserPayload) Kind() EntryKind { return KindUser }

// ToolUse describes one tool invocation embedded in an assistant message.
type ToolUse struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input,omitempty"`
}

// AssistantPayload is an assistant message, possibly carrying tool
// invocations alongside its text.
type AssistantPayload struct {
	Text     string    `json:"text"`
	ToolUses []ToolUse `json:"tool_uses,omitempty"`
}

func (*AssistantPayload) Kind() EntryKind { return KindAssistant }

// ToolResultPayload is the outcome of a tool invocation. ToolName is
// resolved from the invocation table and left blank when the invocation
// was never seen.
type ToolResultPayload struct {
	ToolName string `json:"tool_name,omitempty"`
	Content  string `json:"content,omitempty"`
	IsError  bool   `json:"is_error,omitempty"`
}

func (*ToolResultPayload) Kind() EntryKind { return KindToolResult }

// DelegationPayload is progress from a sub-task handed off to a secondary
// agent. AgentType and Description are resolved from the delegation table
// and left blank when the invocation was never seen.
type DelegationPayload struct {
	AgentType   string `json:"agent_type,omitempty"`
	Description string `json:"description,omitempty"`
	Message     string `json:"message,omitempty"`
}

func (*DelegationPayload) Kind() EntryKind { return KindDelegation }

// ShellPayload is a chunk of streamed shell output.
type ShellPayload struct {
	Stream string `json:"stream,omitempty"` // stdout | stderr
	Chunk  string `json:"chunk,omitempty"`
}

func (*ShellPayload) Kind() EntryKind { return KindShell }

// ExternalToolPayload is progress from an external (MCP) tool call.
type ExternalToolPayload struct {
	Server string `json:"server,omitempty"`
	Tool   string `json:"tool,omitempty"`
	Status string `json:"status,omitempty"`
}

func (*ExternalToolPayload) Kind() EntryKind { return KindExternalTool }

// SearchQueryPayload records a web search being issued.
type SearchQueryPayload struct {
	Query string `json:"query"`
}

func (*SearchQueryPayload) Kind() EntryKind { return KindSearchQuery }

// SearchResult is one (title, url) pair from a search.
type SearchResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// SearchResultsPayload records search results arriving. QueryID is the
// correlation id joining this entry to its side-channel URL record;
// Results is attached in the parser's second pass when that record exists
// anywhere in the file.
type SearchResultsPayload struct {
	Query   string         `json:"query,omitempty"`
	QueryID string         `json:"query_id,omitempty"`
	Count   int            `json:"count"`
	Results []SearchResult `json:"results,omitempty"`
}

func (*SearchResultsPayload) Kind() EntryKind { return KindSearchResults }

// HookPayload is a hook lifecycle notification recorded in the transcript.
type HookPayload struct {
	Hook  string `json:"hook,omitempty"`
	Phase string `json:"phase,omitempty"`
}

func (*HookPayload) Kind() EntryKind { return KindHook }

// ProgressPayload is the generic fallback for progress records whose
// subtype the parser does not recognize.
type ProgressPayload struct {
	Subtype string          `json:"subtype,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (*ProgressPayload) Kind() EntryKind { return KindProgress }
